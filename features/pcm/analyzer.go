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


package pcm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/poiesic/voxbank/core"
	"github.com/poiesic/voxbank/features"
)

// Analyzer measures pitch, jitter, shimmer and harmonicity of WAVE files
// without external tools.
type Analyzer struct {
	params features.Params
	logger *slog.Logger
}

var _ features.Analyzer = (*Analyzer)(nil)

// Option configures an Analyzer.
type Option func(*Analyzer) error

// WithParams overrides the default analysis parameters.
func WithParams(params features.Params) Option {
	return func(a *Analyzer) error {
		if err := params.Validate(); err != nil {
			return err
		}
		a.params = params
		return nil
	}
}

// WithLogger sets the logger for the analyzer.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		a.logger = logger
		return nil
	}
}

// NewAnalyzer creates an analyzer with features.DefaultParams.
func NewAnalyzer(opts ...Option) (*Analyzer, error) {
	a := &Analyzer{
		params: features.DefaultParams(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	a.logger = a.logger.With("component", "pcm-analyzer")
	return a, nil
}

// Params returns the analysis parameters in use.
func (a *Analyzer) Params() features.Params {
	return a.params
}

// Analyze decodes the WAVE file at path and measures it.
func (a *Analyzer) Analyze(ctx context.Context, path string) (*core.FeatureRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	audio, err := Decode(f)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeAudio(ctx, audio)
}

// AnalyzeAudio measures a decoded signal. Measures that cannot be computed,
// such as pitch of a silent recording, are left undefined.
func (a *Analyzer) AnalyzeAudio(ctx context.Context, audio *Audio) (*core.FeatureRecord, error) {
	if audio == nil || audio.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: no audio", ErrInvalidWAV)
	}
	g := newGrid(a.params, audio.SampleRate)
	if len(audio.Samples) < g.span() {
		return nil, fmt.Errorf("%w: %.3fs, need %.3fs", ErrTooShort,
			audio.Duration(), float64(g.span())/float64(audio.SampleRate))
	}

	frames := analyzeFrames(audio.Samples, g, a.params)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pulses := markPulses(audio.Samples, frames, g, audio.SampleRate)

	record := &core.FeatureRecord{}
	if v, ok := jitterLocal(pulses, a.params); ok {
		record.JitterLocal = core.DefinedMeasure(v)
	}
	if v, ok := shimmerLocal(pulses, a.params); ok {
		record.ShimmerLocal = core.DefinedMeasure(v)
	}
	if v, ok := meanPitch(frames, audio.SampleRate); ok {
		record.MeanPitch = core.DefinedMeasure(v)
	}
	if v, ok := meanHNR(frames); ok {
		record.MeanHNR = core.DefinedMeasure(v)
	}

	a.logger.Debug("analyzed recording",
		"duration", audio.Duration(),
		"frames", len(frames),
		"pulses", len(pulses),
		"mean_pitch", record.MeanPitch.Value)
	return record, nil
}
