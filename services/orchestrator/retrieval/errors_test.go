// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsVectorStoreError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &VectorStoreError{Op: "answer cache search", Err: cause}

	assert.True(t, IsVectorStoreError(err))
	assert.True(t, IsVectorStoreError(fmt.Errorf("lookup: %w", err)))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "answer cache search")

	assert.False(t, IsVectorStoreError(cause))
	assert.False(t, IsVectorStoreError(nil))
}
