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


package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/voxbank/core"
	"github.com/poiesic/voxbank/storage"
)

// RunRepository implements storage.RunRepository for BadgerDB.
type RunRepository struct {
	backend *Backend
}

var _ storage.RunRepository = (*RunRepository)(nil)

// NewRunRepository creates a new RunRepository.
func NewRunRepository(backend *Backend) *RunRepository {
	return &RunRepository{
		backend: backend,
	}
}

// SaveRun persists a run summary as the latest run of its collection.
func (r *RunRepository) SaveRun(ctx context.Context, summary *core.RunSummary) error {
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeRunKey(summary.Collection)
		value := storage.MarshalRunSummary(summary)
		if err := tx.Set(key, value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LastRun retrieves the latest run summary of a collection.
// Returns nil, nil if no run exists.
func (r *RunRepository) LastRun(ctx context.Context, collection string) (*core.RunSummary, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var summary *core.RunSummary
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeRunKey(collection))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			summary, unmarshalErr = storage.UnmarshalRunSummary(val)
			return unmarshalErr
		})
	}, false)

	return summary, err
}
