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


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/voxbank/core"
	"github.com/poiesic/voxbank/features"
	"github.com/poiesic/voxbank/metadata"
	"github.com/poiesic/voxbank/storage"
)

// DefaultDocumentTemplate renders the document stored with each record.
const DefaultDocumentTemplate = "Voice analysis for %s"

// Pipeline ingests recordings listed in a metadata table into a collection.
// A Pipeline is not safe for concurrent use, and two pipelines must not
// write to the same collection at once.
type Pipeline struct {
	collection       storage.Collection
	extractor        *features.Adapter
	resolver         Resolver
	runs             storage.RunRepository
	requiredColumns  []string
	documentTemplate string
	progress         io.Writer
	reportInterval   int
	logger           *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithIDPrefix sets the prefix of item identities.
// Default is core.DefaultIDPrefix.
func WithIDPrefix(prefix string) Option {
	return func(p *Pipeline) error {
		p.resolver = NewResolver(prefix)
		return nil
	}
}

// WithDocumentTemplate sets the document template. It must contain exactly
// one %s, which receives the filename.
func WithDocumentTemplate(template string) Option {
	return func(p *Pipeline) error {
		if strings.Count(template, "%s") != 1 || strings.Count(template, "%") != 1 {
			return fmt.Errorf("%w: %q", ErrInvalidDocumentTemplate, template)
		}
		p.documentTemplate = template
		return nil
	}
}

// WithRequiredColumns sets the columns RunFile requires in the metadata
// table. Default is metadata.DefaultRequiredColumns.
func WithRequiredColumns(columns []string) Option {
	return func(p *Pipeline) error {
		p.requiredColumns = columns
		return nil
	}
}

// WithRunRepository records a summary of every run.
func WithRunRepository(runs storage.RunRepository) Option {
	return func(p *Pipeline) error {
		p.runs = runs
		return nil
	}
}

// WithProgress reports progress to w every interval rows.
func WithProgress(w io.Writer, interval int) Option {
	return func(p *Pipeline) error {
		p.progress = w
		p.reportInterval = interval
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(collection storage.Collection, analyzer features.Analyzer, opts ...Option) (*Pipeline, error) {
	if collection == nil {
		return nil, ErrCollectionRequired
	}
	if analyzer == nil {
		return nil, ErrAnalyzerRequired
	}

	p := &Pipeline{
		collection:       collection,
		resolver:         NewResolver(core.DefaultIDPrefix),
		requiredColumns:  metadata.DefaultRequiredColumns,
		documentTemplate: DefaultDocumentTemplate,
		logger:           slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "ingestion", "collection", collection.Name())

	extractor, err := features.NewAdapter(analyzer, features.WithAdapterLogger(p.logger))
	if err != nil {
		return nil, err
	}
	p.extractor = extractor

	return p, nil
}

// RunFile loads the metadata file at metadataPath and runs the pipeline.
// A missing or invalid metadata file fails before anything is ingested.
func (p *Pipeline) RunFile(ctx context.Context, metadataPath, audioDir string) (*Report, error) {
	table, err := metadata.Load(metadataPath, p.requiredColumns)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, table, audioDir)
}

// Run ingests every row of table, reading audio files from audioDir.
//
// Per-row problems are recorded as skips. A store failure or cancelled
// context stops the run; the partial report is returned with the error.
func (p *Pipeline) Run(ctx context.Context, table *metadata.Table, audioDir string) (*Report, error) {
	if table == nil {
		return nil, ErrTableRequired
	}

	report := &Report{
		RunID:      uuid.NewString(),
		Collection: p.collection.Name(),
		StartedAt:  time.Now().UTC(),
	}
	logger := p.logger.With("run", report.RunID)

	if info, err := os.Stat(audioDir); err != nil || !info.IsDir() {
		logger.Warn("audio directory is not accessible; every row will be reported missing", "dir", audioDir)
	}
	logger.Info("ingestion started", "rows", table.Len(), "audio_dir", audioDir)

	var tracker *ProgressTracker
	if p.progress != nil {
		tracker = NewProgressTracker(p.progress, table.Len(), p.reportInterval)
		tracker.Start()
	}

	var runErr error
	for _, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		skipped, err := p.processRow(ctx, row, audioDir, logger)
		if err != nil {
			runErr = fmt.Errorf("line %d: %w", row.Line, err)
			break
		}
		if skipped != nil {
			report.Skipped = append(report.Skipped, *skipped)
		} else {
			report.NewEntries++
		}
		if tracker != nil {
			tracker.Increment(1)
		}
	}

	if tracker != nil {
		tracker.Finish()
	}
	return p.finish(ctx, report, runErr, logger)
}

// finish records totals and persists the run summary.
func (p *Pipeline) finish(ctx context.Context, report *Report, runErr error, logger *slog.Logger) (*Report, error) {
	// Totals and the summary are still recorded after a cancellation.
	finishCtx := context.WithoutCancel(ctx)

	total, err := p.collection.Count(finishCtx)
	if err != nil {
		logger.Error("failed to count collection", "error", err)
		if runErr == nil {
			runErr = err
		}
	}
	report.TotalInStore = total
	report.FinishedAt = time.Now().UTC()

	if p.runs != nil {
		if err := p.runs.SaveRun(finishCtx, report.Summary()); err != nil {
			logger.Error("failed to save run summary", "error", err)
		}
	}

	if runErr != nil {
		logger.Error("ingestion stopped", "error", runErr,
			"new_entries", report.NewEntries, "skipped", len(report.Skipped))
		return report, runErr
	}
	logger.Info("ingestion finished",
		"new_entries", report.NewEntries,
		"skipped", len(report.Skipped),
		"total_in_store", report.TotalInStore,
		"elapsed", report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

// processRow runs one row through every step. Returns a skip, or nil if
// the row was stored. An error is fatal to the run.
func (p *Pipeline) processRow(ctx context.Context, row *core.MetadataRow, audioDir string, logger *slog.Logger) (*core.Skip, error) {
	filename := row.Filename()
	logger = logger.With("line", row.Line, "file", filename)

	o := p.storeRow(ctx, row, filename, audioDir)
	switch o.kind {
	case fatal:
		return nil, o.err
	case skip:
		logSkip(logger, o.reason, o.cause)
		return &core.Skip{Line: row.Line, Filename: filename, Reason: o.reason, Cause: o.cause}, nil
	}
	logger.Debug("record added", "id", o.value)
	return nil, nil
}

func (p *Pipeline) storeRow(ctx context.Context, row *core.MetadataRow, filename, audioDir string) outcome[core.ItemID] {
	if row.Malformed != "" {
		return skipWith[core.ItemID](core.SkipMalformedRow, row.Malformed)
	}

	id := p.resolver.Identity(filename)
	if o := p.checkAbsent(ctx, id); o.kind != proceed {
		return o
	}

	located := p.locate(audioDir, filename)
	if located.kind != proceed {
		return forward[core.ItemID](located)
	}

	extracted := p.extract(ctx, located.value)
	if extracted.kind != proceed {
		return forward[core.ItemID](extracted)
	}

	record := p.buildRecord(id, row, filename, extracted.value)
	return p.add(ctx, record)
}

func (p *Pipeline) checkAbsent(ctx context.Context, id core.ItemID) outcome[core.ItemID] {
	exists, err := p.resolver.Exists(ctx, p.collection, id)
	if err != nil {
		return fatalWith[core.ItemID](fmt.Errorf("existence check for %s: %w", id, err))
	}
	if exists {
		return skipWith[core.ItemID](core.SkipDuplicate, "")
	}
	return proceedWith(id)
}

// locate resolves the audio file for filename. Only regular files directly
// under audioDir are accepted.
func (p *Pipeline) locate(audioDir, filename string) outcome[string] {
	if strings.ContainsAny(filename, `/\`) || filename == "." || filename == ".." {
		return skipWith[string](core.SkipMissingFile, "filename must not contain path separators")
	}

	path := filepath.Join(audioDir, filename)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return skipWith[string](core.SkipMissingFile, "")
		}
		return skipWith[string](core.SkipMissingFile, err.Error())
	}
	if !info.Mode().IsRegular() {
		return skipWith[string](core.SkipMissingFile, "not a regular file")
	}
	return proceedWith(path)
}

func (p *Pipeline) extract(ctx context.Context, path string) outcome[*core.FeatureRecord] {
	record, err := p.extractor.Extract(ctx, path)
	if err != nil {
		// Cancellation during extraction is not the recording's fault.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fatalWith[*core.FeatureRecord](ctxErr)
		}
		var failure *features.ExtractionFailure
		if errors.As(err, &failure) {
			return skipWith[*core.FeatureRecord](core.SkipExtractionFailed, failure.Cause.Error())
		}
		return skipWith[*core.FeatureRecord](core.SkipExtractionFailed, err.Error())
	}
	return proceedWith(record)
}

// buildRecord merges the row with the rendered features. Feature values
// replace row columns of the same name.
func (p *Pipeline) buildRecord(id core.ItemID, row *core.MetadataRow, filename string, rec *core.FeatureRecord) *core.StoreRecord {
	meta := make(map[string]string, len(row.Fields)+core.EmbeddingDim)
	maps.Copy(meta, row.Fields)
	maps.Copy(meta, features.Fields(rec))

	return &core.StoreRecord{
		ID:        id,
		Embedding: features.Project(rec),
		Metadata:  meta,
		Document:  fmt.Sprintf(p.documentTemplate, filename),
	}
}

func (p *Pipeline) add(ctx context.Context, record *core.StoreRecord) outcome[core.ItemID] {
	err := p.collection.Add(ctx, record)
	if err == nil {
		return proceedWith(record.ID)
	}
	// Another writer stored the same identity after our existence check.
	if errors.Is(err, storage.ErrDuplicateKey) {
		return skipWith[core.ItemID](core.SkipDuplicate, "added concurrently")
	}
	return fatalWith[core.ItemID](fmt.Errorf("add %s: %w", record.ID, err))
}

func logSkip(logger *slog.Logger, reason core.SkipReason, cause string) {
	switch reason {
	case core.SkipDuplicate:
		logger.Info("item already stored, skipping")
	case core.SkipMissingFile:
		logger.Warn("audio file not found, skipping", "cause", cause)
	default:
		logger.Warn("row skipped", "reason", reason, "cause", cause)
	}
}
