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
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/voxbank/core"
	"github.com/poiesic/voxbank/storage"
)

// Collection implements storage.Collection for BadgerDB.
type Collection struct {
	backend *Backend
	schema  *core.CollectionSchema
	prefix  []byte
	logger  *slog.Logger
	closed  atomic.Bool
}

var _ storage.Collection = (*Collection)(nil)

// OpenCollection returns the named collection, creating it with the given
// embedding fields if it does not exist yet. Opening an existing collection
// with a different field layout returns storage.ErrSchemaMismatch.
func OpenCollection(backend *Backend, name string, fields []string) (*Collection, error) {
	if name == "" || strings.ContainsRune(name, ':') {
		return nil, fmt.Errorf("%w: %q", storage.ErrInvalidCollectionName, name)
	}
	if backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	requested := &core.CollectionSchema{
		Name:      name,
		Fields:    slices.Clone(fields),
		CreatedAt: time.Now().UTC(),
	}
	if err := core.ValidateSchema(requested); err != nil {
		return nil, err
	}

	var schema *core.CollectionSchema
	err := backend.WithTx(func(tx *badger.Txn) error {
		key := makeSchemaKey(name)
		item, err := tx.Get(key)
		if err == nil {
			return item.Value(func(val []byte) error {
				var unmarshalErr error
				schema, unmarshalErr = storage.UnmarshalSchema(val)
				return unmarshalErr
			})
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		schema = requested
		if err := tx.Set(key, storage.MarshalSchema(schema)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	if !slices.Equal(schema.Fields, requested.Fields) {
		return nil, fmt.Errorf("%w: collection %q has fields %v, requested %v",
			storage.ErrSchemaMismatch, name, schema.Fields, requested.Fields)
	}

	return &Collection{
		backend: backend,
		schema:  schema,
		prefix:  makeRecordPrefix(name),
		logger:  backend.logger.With("collection", name),
	}, nil
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.schema.Name
}

// Schema returns the stored schema.
func (c *Collection) Schema() *core.CollectionSchema {
	return c.schema
}

// Close marks the collection closed. The backend is owned by the caller.
func (c *Collection) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *Collection) check(ctx context.Context) error {
	if c.closed.Load() || c.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return ctx.Err()
}

// Get returns the subset of ids present in the collection. A stored record
// whose key matches but whose ID differs is a hash collision and counts as
// absent.
func (c *Collection) Get(ctx context.Context, ids ...core.ItemID) (map[core.ItemID]struct{}, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}

	found := make(map[core.ItemID]struct{}, len(ids))
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			record, err := c.load(tx, id)
			if err != nil {
				return err
			}
			if record == nil {
				continue
			}
			if record.ID != id {
				c.logger.Warn("storage key collision", "id", id, "stored_id", record.ID)
				continue
			}
			found[id] = struct{}{}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return found, nil
}

// GetRecord retrieves a single record.
func (c *Collection) GetRecord(ctx context.Context, id core.ItemID) (*core.StoreRecord, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}

	var record *core.StoreRecord
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		record, err = c.load(tx, id)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if record == nil || record.ID != id {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return record, nil
}

// Add appends a record to the collection.
func (c *Collection) Add(ctx context.Context, record *core.StoreRecord) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	if err := core.ValidateStoreRecord(record); err != nil {
		return err
	}
	if len(record.Embedding) != c.schema.Dimension() {
		return fmt.Errorf("%w: collection %q expects %d values, got %d",
			core.ErrEmbeddingArity, c.Name(), c.schema.Dimension(), len(record.Embedding))
	}

	return c.backend.WithTx(func(tx *badger.Txn) error {
		existing, err := c.load(tx, record.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.ID == record.ID {
				return fmt.Errorf("%w: %s", storage.ErrDuplicateKey, record.ID)
			}
			return fmt.Errorf("%w: %s and %s", storage.ErrKeyCollision, record.ID, existing.ID)
		}

		if record.InsertedAt.IsZero() {
			record.InsertedAt = time.Now().UTC()
		}
		if err := tx.Set(makeRecordKey(c.Name(), record.ID), storage.MarshalRecord(record)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Count returns the number of records in the collection.
func (c *Collection) Count(ctx context.Context) (int, error) {
	if err := c.check(ctx); err != nil {
		return 0, err
	}

	count := 0
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		return c.backend.scan(tx, c.prefix, false, func(*badger.Item) error {
			count++
			return nil
		})
	}, false)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// FindNearest returns up to limit records ordered by ascending Euclidean
// distance. Ties are broken by ID.
func (c *Collection) FindNearest(ctx context.Context, embedding core.Embedding, limit int) ([]*core.SearchResult, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", storage.ErrInvalidQuery, limit)
	}
	if len(embedding) != c.schema.Dimension() {
		return nil, fmt.Errorf("%w: query has %d values, collection expects %d",
			storage.ErrInvalidQuery, len(embedding), c.schema.Dimension())
	}

	var results []*core.SearchResult
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		return c.backend.scan(tx, c.prefix, true, func(item *badger.Item) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				record, err := storage.UnmarshalRecord(val)
				if err != nil {
					return err
				}
				if len(record.Embedding) != len(embedding) {
					return nil
				}
				results = append(results, &core.SearchResult{
					Record:   record,
					Distance: l2Distance(embedding, record.Embedding),
				})
				return nil
			})
		})
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.SearchResult) int {
		if a.Distance < b.Distance {
			return -1
		}
		if a.Distance > b.Distance {
			return 1
		}
		return strings.Compare(string(a.Record.ID), string(b.Record.ID))
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// load reads the record stored under id's key. Returns nil, nil if the key
// is absent. The returned record may carry a different ID on collision.
func (c *Collection) load(tx *badger.Txn, id core.ItemID) (*core.StoreRecord, error) {
	item, err := tx.Get(makeRecordKey(c.Name(), id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var record *core.StoreRecord
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		record, unmarshalErr = storage.UnmarshalRecord(val)
		return unmarshalErr
	})
	return record, err
}

// l2Distance calculates the Euclidean distance between two vectors.
func l2Distance(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}
