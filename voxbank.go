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


package voxbank

import (
	"log/slog"

	"github.com/poiesic/voxbank/config"
	"github.com/poiesic/voxbank/core"
	"github.com/poiesic/voxbank/features"
	"github.com/poiesic/voxbank/features/pcm"
	"github.com/poiesic/voxbank/ingestion"
	"github.com/poiesic/voxbank/search"
	"github.com/poiesic/voxbank/storage"
	"github.com/poiesic/voxbank/storage/badger"
)

type Database struct {
	backend    *badger.Backend
	collection *badger.Collection
	runs       *badger.RunRepository
	analyzer   features.Analyzer
	cfg        *config.Config
	logger     *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	analyzer features.Analyzer
	inMemory bool
	logger   *slog.Logger
}

// WithAnalyzer replaces the built-in PCM analyzer.
func WithAnalyzer(analyzer features.Analyzer) DatabaseOption {
	return func(o *databaseOptions) {
		o.analyzer = analyzer
	}
}

// WithInMemory keeps the store in memory. StorePath is ignored.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// WithLogger sets the logger handed to pipelines and searchers.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// NewDatabase validates cfg, opens the store and the configured collection,
// creating both if absent. A nil cfg means config.DefaultConfig().
func NewDatabase(cfg *config.Config, opts ...DatabaseOption) (*Database, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &databaseOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	analyzer := options.analyzer
	if analyzer == nil {
		a, err := pcm.NewAnalyzer(pcm.WithLogger(options.logger))
		if err != nil {
			return nil, err
		}
		analyzer = a
	}

	backend, err := badger.OpenBackend(cfg.StorePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	collection, err := badger.OpenCollection(backend, cfg.Collection, core.EmbeddingFields)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &Database{
		backend:    backend,
		collection: collection,
		runs:       badger.NewRunRepository(backend),
		analyzer:   analyzer,
		cfg:        cfg,
		logger:     options.logger,
	}, nil
}

func (db *Database) Close() error {
	if err := db.collection.Close(); err != nil {
		db.logger.Error("error closing collection", "err", err)
		return err
	}
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) Config() *config.Config {
	return db.cfg
}

func (db *Database) Collection() storage.Collection {
	return db.collection
}

func (db *Database) Runs() storage.RunRepository {
	return db.runs
}

// NewIngestionPipeline creates a pipeline bound to the configured
// collection. Options derived from the configuration are applied first, so
// opts can override them.
func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	base := []ingestion.Option{
		ingestion.WithIDPrefix(db.cfg.IDPrefix),
		ingestion.WithDocumentTemplate(db.cfg.DocumentTemplate),
		ingestion.WithRequiredColumns(db.cfg.RequiredColumns),
		ingestion.WithRunRepository(db.runs),
		ingestion.WithLogger(db.logger),
	}
	return ingestion.NewPipeline(db.collection, db.analyzer, append(base, opts...)...)
}

func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	base := []search.Option{search.WithLogger(db.logger)}
	return search.NewSearcher(db.collection, db.analyzer, append(base, opts...)...)
}
