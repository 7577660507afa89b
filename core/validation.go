// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"math"
	"strings"
)

// ValidateStoreRecord validates a StoreRecord before it is persisted.
//
// Validation rules:
//   - ID must not be empty
//   - Embedding must have exactly EmbeddingDim finite elements
//
// NOT validated:
//   - Metadata (free-form, may be empty)
//   - Document (may be empty)
func ValidateStoreRecord(record *StoreRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidStoreRecord)
	}

	if strings.TrimSpace(string(record.ID)) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidStoreRecord, ErrEmptyID)
	}

	if err := ValidateEmbedding(record.Embedding); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidStoreRecord, err)
	}

	return nil
}

// ValidateEmbedding checks arity and finiteness of an embedding.
func ValidateEmbedding(embedding Embedding) error {
	if len(embedding) != EmbeddingDim {
		return fmt.Errorf("%w: got %d, want %d", ErrEmbeddingArity, len(embedding), EmbeddingDim)
	}
	for i, v := range embedding {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: element %d is %v", ErrEmbeddingNotFinite, i, v)
		}
	}
	return nil
}

// ValidateSchema validates a CollectionSchema.
func ValidateSchema(schema *CollectionSchema) error {
	if schema == nil {
		return fmt.Errorf("%w: schema is nil", ErrInvalidSchema)
	}
	if schema.Name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidSchema)
	}
	if len(schema.Fields) == 0 {
		return fmt.Errorf("%w: no fields", ErrInvalidSchema)
	}
	return nil
}
