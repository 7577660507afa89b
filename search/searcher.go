package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/voxbank/core"
	"github.com/poiesic/voxbank/features"
	"github.com/poiesic/voxbank/storage"
)

// Searcher ranks stored recordings by acoustic similarity.
type Searcher struct {
	collection storage.Collection
	extractor  *features.Adapter
	logger     *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(collection storage.Collection, analyzer features.Analyzer, opts ...Option) (*Searcher, error) {
	if collection == nil {
		return nil, ErrCollectionRequired
	}
	if analyzer == nil {
		return nil, ErrAnalyzerRequired
	}

	s := &Searcher{
		collection: collection,
		logger:     slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "search")

	extractor, err := features.NewAdapter(analyzer, features.WithAdapterLogger(s.logger))
	if err != nil {
		return nil, err
	}
	s.extractor = extractor

	return s, nil
}

// FindSimilar extracts features from the audio file at path and returns up
// to limit stored records nearest to it.
func (s *Searcher) FindSimilar(ctx context.Context, path string, limit int) ([]*core.SearchResult, error) {
	return s.FindSimilarWithMonitor(ctx, path, limit, nil)
}

// FindSimilarWithMonitor is FindSimilar with monitoring.
// The monitor receives callbacks at each stage of the search process.
func (s *Searcher) FindSimilarWithMonitor(ctx context.Context, path string, limit int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(path)

	record, err := s.extractor.Extract(ctx, path)
	if err != nil {
		s.logger.Error("error extracting features from query", "path", path, "err", err)
		return nil, err
	}
	embedding := features.Project(record)
	monitor.AfterExtraction(record, embedding)

	results, err := s.collection.FindNearest(ctx, embedding, limit)
	if err != nil {
		s.logger.Error("error querying for similar records", "err", err)
		return nil, err
	}
	monitor.Finish(results)

	return results, nil
}

// FindSimilarTo returns up to limit records nearest to a stored record,
// excluding the record itself.
func (s *Searcher) FindSimilarTo(ctx context.Context, id core.ItemID, limit int) ([]*core.SearchResult, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}

	anchor, err := s.collection.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	// Ask for one extra to make room for the anchor itself.
	matches, err := s.collection.FindNearest(ctx, anchor.Embedding, limit+1)
	if err != nil {
		s.logger.Error("error querying for similar records", "id", id, "err", err)
		return nil, err
	}

	results := make([]*core.SearchResult, 0, limit)
	for _, match := range matches {
		if match.Record.ID == id {
			continue
		}
		results = append(results, match)
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
