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
)

// VectorStoreError marks a failed Weaviate operation. Callers treat
// these as degradations, never fatal: a lookup failure is a cache
// miss, a store failure is a logged no-op.
type VectorStoreError struct {
	// Op names the failed operation, e.g. "answer cache search".
	Op  string
	Err error
}

func (e *VectorStoreError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *VectorStoreError) Unwrap() error {
	return e.Err
}

// IsVectorStoreError reports whether err is a vector store failure.
func IsVectorStoreError(err error) bool {
	var vse *VectorStoreError
	return errors.As(err, &vse)
}
