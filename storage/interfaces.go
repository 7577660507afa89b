package storage

import (
	"context"

	"github.com/poiesic/voxbank/core"
)

// Collection is a named, persistent set of embedded records.
//
// Existence checks and inserts are separate calls and are not atomic with
// respect to each other. A collection assumes a single writer: two processes
// running exists-then-add for the same ID concurrently may both insert.
type Collection interface {
	// Name returns the collection name.
	Name() string

	// Schema returns the vector layout the collection was created with.
	Schema() *core.CollectionSchema

	// Get returns the subset of ids that are present in the collection.
	// Missing ids are not an error.
	Get(ctx context.Context, ids ...core.ItemID) (map[core.ItemID]struct{}, error)

	// GetRecord retrieves a single record.
	// Returns ErrNotFound if the record doesn't exist.
	GetRecord(ctx context.Context, id core.ItemID) (*core.StoreRecord, error)

	// Add appends a record. Records are never updated in place: adding an
	// ID that is already present returns ErrDuplicateKey.
	// Sets InsertedAt if not already set.
	Add(ctx context.Context, record *core.StoreRecord) error

	// Count returns the number of records in the collection.
	Count(ctx context.Context) (int, error)

	// FindNearest returns up to limit records ordered by ascending L2
	// distance to the embedding.
	FindNearest(ctx context.Context, embedding core.Embedding, limit int) ([]*core.SearchResult, error)

	// Close releases resources held by the collection.
	Close() error
}

// RunRepository persists ingestion run summaries.
type RunRepository interface {
	// SaveRun stores the summary as the latest run of its collection.
	SaveRun(ctx context.Context, summary *core.RunSummary) error

	// LastRun returns the latest run of a collection.
	// Returns nil, nil if no run has been recorded.
	LastRun(ctx context.Context, collection string) (*core.RunSummary, error)
}
