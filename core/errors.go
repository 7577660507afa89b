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

import "errors"

// Domain validation errors
var (
	// ErrInvalidStoreRecord indicates a StoreRecord failed validation.
	ErrInvalidStoreRecord = errors.New("invalid store record")

	// ErrEmptyID indicates the record identity is empty.
	ErrEmptyID = errors.New("item id cannot be empty")

	// ErrEmbeddingArity indicates an embedding does not have EmbeddingDim elements.
	ErrEmbeddingArity = errors.New("embedding has wrong arity")

	// ErrEmbeddingNotFinite indicates an embedding holds NaN or Inf.
	ErrEmbeddingNotFinite = errors.New("embedding values must be finite")

	// ErrInvalidSchema indicates a CollectionSchema failed validation.
	ErrInvalidSchema = errors.New("invalid collection schema")
)
