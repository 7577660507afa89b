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


package features

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/poiesic/voxbank/core"
)

// ExtractionFailure reports that features could not be extracted from one
// recording. It wraps ErrExtractionFailed and the underlying cause.
type ExtractionFailure struct {
	Filename string
	Cause    error
}

func (e *ExtractionFailure) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrExtractionFailed, e.Filename, e.Cause)
}

func (e *ExtractionFailure) Unwrap() []error {
	return []error{ErrExtractionFailed, e.Cause}
}

// Adapter isolates an Analyzer's failures. Errors, panics and nil results
// all become an *ExtractionFailure.
type Adapter struct {
	analyzer Analyzer
	logger   *slog.Logger
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter) error

// WithAdapterLogger sets the logger used to report recovered panics.
func WithAdapterLogger(logger *slog.Logger) AdapterOption {
	return func(a *Adapter) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		a.logger = logger
		return nil
	}
}

// NewAdapter wraps an analyzer.
func NewAdapter(analyzer Analyzer, opts ...AdapterOption) (*Adapter, error) {
	if analyzer == nil {
		return nil, ErrAnalyzerRequired
	}
	a := &Adapter{
		analyzer: analyzer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	a.logger = a.logger.With("component", "extractor")
	return a, nil
}

// Extract analyzes the file at path. The returned error, if any, is always
// an *ExtractionFailure.
func (a *Adapter) Extract(ctx context.Context, path string) (record *core.FeatureRecord, err error) {
	filename := filepath.Base(path)
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("analyzer panicked", "file", filename, "panic", r)
			record = nil
			err = &ExtractionFailure{Filename: filename, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	record, err = a.analyzer.Analyze(ctx, path)
	if err != nil {
		return nil, &ExtractionFailure{Filename: filename, Cause: err}
	}
	if record == nil {
		return nil, &ExtractionFailure{Filename: filename, Cause: errors.New("analyzer returned no record")}
	}
	return record, nil
}
