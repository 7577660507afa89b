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


// Package storage provides the storage abstraction layer for voxbank.
//
// A Collection is a named, persistent set of embedded recordings. The
// ingestion pipeline only needs three of its operations (Get, Add and
// Count); search uses FindNearest.
//
// # Architecture
//
//   - Collection: records keyed by core.ItemID, append-only
//   - RunRepository: latest ingestion run summary per collection
//   - serialization.go: MUS binary codecs for records, schemas and runs
//
// The BadgerDB implementation lives in storage/badger.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	col, err := badger.OpenCollection(backend, "audio_features_collection", core.EmbeddingFields)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Consistency
//
// There are no cross-call transactions. Get followed by Add is not atomic,
// so a collection assumes a single writing process. BadgerDB's directory
// lock prevents two processes from opening the same store at once, which is
// the only guard against concurrent writers.
package storage
