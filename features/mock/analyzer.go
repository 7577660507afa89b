package mock

import (
	"context"
	"hash/fnv"
	"path/filepath"
	"sync"

	"github.com/poiesic/voxbank/core"
	"github.com/poiesic/voxbank/features"
)

var _ features.Analyzer = (*MockAnalyzer)(nil)

// MockAnalyzer is a test double for features.Analyzer.
type MockAnalyzer struct {
	// AnalyzeFunc is called by Analyze if set.
	// If nil, uses registered records and errors, then default behavior.
	AnalyzeFunc func(ctx context.Context, path string) (*core.FeatureRecord, error)

	mu      sync.Mutex
	records map[string]*core.FeatureRecord
	errs    map[string]error
	calls   []string
}

// NewMockAnalyzer creates a mock analyzer with default deterministic behavior.
func NewMockAnalyzer() *MockAnalyzer {
	return &MockAnalyzer{
		records: make(map[string]*core.FeatureRecord),
		errs:    make(map[string]error),
	}
}

// WithRecord registers the record returned for a base filename.
func (m *MockAnalyzer) WithRecord(filename string, record *core.FeatureRecord) *MockAnalyzer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[filename] = record
	return m
}

// WithError registers the error returned for a base filename.
func (m *MockAnalyzer) WithError(filename string, err error) *MockAnalyzer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[filename] = err
	return m
}

// Analyze returns the registered result for the file's base name, or a
// deterministic record.
func (m *MockAnalyzer) Analyze(ctx context.Context, path string) (*core.FeatureRecord, error) {
	name := filepath.Base(path)

	m.mu.Lock()
	m.calls = append(m.calls, name)
	fn := m.AnalyzeFunc
	record, hasRecord := m.records[name]
	err := m.errs[name]
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, path)
	}
	if err != nil {
		return nil, err
	}
	if hasRecord {
		return record, nil
	}
	return DeterministicRecord(name), nil
}

// CallCount returns the number of times Analyze was called.
func (m *MockAnalyzer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns the base filenames passed to Analyze, in call order.
func (m *MockAnalyzer) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Reset clears recorded calls and registered results.
func (m *MockAnalyzer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.records = make(map[string]*core.FeatureRecord)
	m.errs = make(map[string]error)
	m.AnalyzeFunc = nil
}

// DeterministicRecord derives a plausible feature record from a name.
// The same name always produces the same record.
func DeterministicRecord(name string) *core.FeatureRecord {
	h := fnv.New32a()
	h.Write([]byte(name))
	seed := h.Sum32()

	next := func() float64 {
		seed = seed*1664525 + 1013904223 // LCG constants
		return float64(seed%10000) / 10000.0
	}

	return &core.FeatureRecord{
		JitterLocal:  core.DefinedMeasure(0.001 + 0.009*next()),
		ShimmerLocal: core.DefinedMeasure(0.01 + 0.09*next()),
		MeanPitch:    core.DefinedMeasure(80 + 220*next()),
		MeanHNR:      core.DefinedMeasure(5 + 20*next()),
	}
}
