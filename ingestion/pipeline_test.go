package ingestion

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/voxbank/core"
	"github.com/poiesic/voxbank/features"
	"github.com/poiesic/voxbank/features/mock"
	"github.com/poiesic/voxbank/features/pcm"
	"github.com/poiesic/voxbank/metadata"
	"github.com/poiesic/voxbank/storage"
	"github.com/poiesic/voxbank/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hookedCollection wraps a collection and lets tests intercept calls.
type hookedCollection struct {
	storage.Collection
	getFunc func(ctx context.Context, ids ...core.ItemID) (map[core.ItemID]struct{}, error)
	addFunc func(ctx context.Context, record *core.StoreRecord) error
}

func (h *hookedCollection) Get(ctx context.Context, ids ...core.ItemID) (map[core.ItemID]struct{}, error) {
	if h.getFunc != nil {
		return h.getFunc(ctx, ids...)
	}
	return h.Collection.Get(ctx, ids...)
}

func (h *hookedCollection) Add(ctx context.Context, record *core.StoreRecord) error {
	if h.addFunc != nil {
		return h.addFunc(ctx, record)
	}
	return h.Collection.Add(ctx, record)
}

// failingRuns is a RunRepository whose writes always fail.
type failingRuns struct{}

func (failingRuns) SaveRun(ctx context.Context, summary *core.RunSummary) error {
	return errors.New("disk full")
}

func (failingRuns) LastRun(ctx context.Context, collection string) (*core.RunSummary, error) {
	return nil, nil
}

func setupCollection(t *testing.T) (*badger.Collection, *badger.Backend) {
	t.Helper()
	col, backend, err := badger.NewMemoryCollection("audio_features_collection")
	require.NoError(t, err)
	t.Cleanup(func() {
		col.Close()
		backend.Close()
	})
	return col, backend
}

// setupAudioDir creates empty placeholder files; the mock analyzer never
// reads them.
func setupAudioDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	return dir
}

func parseTable(t *testing.T, lines ...string) *metadata.Table {
	t.Helper()
	table, err := metadata.Parse(strings.NewReader(strings.Join(lines, "\n")), nil)
	require.NoError(t, err)
	return table
}

func reasons(report *Report) []core.SkipReason {
	var out []core.SkipReason
	for _, s := range report.Skipped {
		out = append(out, s.Reason)
	}
	return out
}

func TestNewPipeline_Validation(t *testing.T) {
	col, _ := setupCollection(t)

	_, err := NewPipeline(nil, mock.NewMockAnalyzer())
	assert.ErrorIs(t, err, ErrCollectionRequired)

	_, err = NewPipeline(col, nil)
	assert.ErrorIs(t, err, ErrAnalyzerRequired)

	for _, tmpl := range []string{"no verb", "%s and %s", "%d for %s"} {
		_, err = NewPipeline(col, mock.NewMockAnalyzer(), WithDocumentTemplate(tmpl))
		assert.ErrorIs(t, err, ErrInvalidDocumentTemplate, tmpl)
	}

	p, err := NewPipeline(col, mock.NewMockAnalyzer())
	require.NoError(t, err)
	_, err = p.Run(context.Background(), nil, t.TempDir())
	assert.ErrorIs(t, err, ErrTableRequired)
}

func TestPipeline_FreshIngestion(t *testing.T) {
	col, _ := setupCollection(t)
	ctx := context.Background()

	record := &core.FeatureRecord{
		JitterLocal:  core.DefinedMeasure(0.015625),
		ShimmerLocal: core.DefinedMeasure(0.0625),
		MeanPitch:    core.DefinedMeasure(180),
		MeanHNR:      core.DefinedMeasure(15.5),
	}
	analyzer := mock.NewMockAnalyzer().WithRecord("a.wav", record)
	dir := setupAudioDir(t, "a.wav", "b.wav", "c.wav")
	table := parseTable(t,
		"filename,diagnosis,age",
		"a.wav,healthy,34",
		"b.wav,dysphonia,",
		"c.wav,healthy,51",
	)

	p, err := NewPipeline(col, analyzer)
	require.NoError(t, err)

	report, err := p.Run(ctx, table, dir)
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "audio_features_collection", report.Collection)
	assert.Equal(t, 3, report.NewEntries)
	assert.Empty(t, report.Skipped)
	assert.Equal(t, 3, report.TotalInStore)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
	assert.Equal(t, 3, analyzer.CallCount())

	stored, err := col.GetRecord(ctx, "audio_a")
	require.NoError(t, err)
	assert.Equal(t, core.Embedding{0.015625, 0.0625, 180, 15.5}, stored.Embedding)
	assert.Equal(t, "Voice analysis for a.wav", stored.Document)
	assert.Equal(t, map[string]string{
		"filename":      "a.wav",
		"diagnosis":     "healthy",
		"age":           "34",
		"jitter_local":  "0.015625",
		"shimmer_local": "0.0625",
		"mean_pitch":    "180",
		"mean_hnr":      "15.5",
	}, stored.Metadata)

	other, err := col.GetRecord(ctx, "audio_b")
	require.NoError(t, err)
	assert.Equal(t, "", other.Metadata["age"])
	assert.Len(t, other.Embedding, core.EmbeddingDim)
}

func TestPipeline_Idempotent(t *testing.T) {
	col, _ := setupCollection(t)
	ctx := context.Background()

	analyzer := mock.NewMockAnalyzer()
	dir := setupAudioDir(t, "a.wav", "b.wav")
	table := parseTable(t, "filename,diagnosis", "a.wav,x", "b.wav,y")

	p, err := NewPipeline(col, analyzer)
	require.NoError(t, err)

	first, err := p.Run(ctx, table, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, first.NewEntries)

	before, err := col.GetRecord(ctx, "audio_a")
	require.NoError(t, err)

	second, err := p.Run(ctx, table, dir)
	require.NoError(t, err)
	assert.Equal(t, 0, second.NewEntries)
	assert.Equal(t, []core.SkipReason{core.SkipDuplicate, core.SkipDuplicate}, reasons(second))
	assert.Equal(t, 2, second.TotalInStore)
	assert.NotEqual(t, first.RunID, second.RunID)

	// No extraction runs for items already present.
	assert.Equal(t, 2, analyzer.CallCount())

	after, err := col.GetRecord(ctx, "audio_a")
	require.NoError(t, err)
	assert.Equal(t, before.Embedding, after.Embedding)
	assert.True(t, before.InsertedAt.Equal(after.InsertedAt))
}

func TestPipeline_ValidationGate(t *testing.T) {
	col, _ := setupCollection(t)
	ctx := context.Background()

	dir := setupAudioDir(t, "a.wav")
	metadataPath := filepath.Join(t.TempDir(), "metadata.csv")
	require.NoError(t, os.WriteFile(metadataPath, []byte("filename,age\na.wav,3\n"), 0644))

	analyzer := mock.NewMockAnalyzer()
	p, err := NewPipeline(col, analyzer)
	require.NoError(t, err)

	report, err := p.RunFile(ctx, metadataPath, dir)
	assert.Nil(t, report)
	require.ErrorIs(t, err, metadata.ErrValidation)

	var verr *metadata.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"diagnosis"}, verr.Missing)

	count, err := col.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, 0, analyzer.CallCount())

	_, err = p.RunFile(ctx, filepath.Join(t.TempDir(), "missing.csv"), dir)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPipeline_RunFile(t *testing.T) {
	col, _ := setupCollection(t)

	dir := setupAudioDir(t, "a.wav")
	metadataPath := filepath.Join(t.TempDir(), "metadata.csv")
	require.NoError(t, os.WriteFile(metadataPath, []byte("Filename;Diagnosis;Speaker\na.wav;x;s1\n"), 0644))

	p, err := NewPipeline(col, mock.NewMockAnalyzer(), WithRequiredColumns([]string{"filename", "speaker"}))
	require.NoError(t, err)

	report, err := p.RunFile(context.Background(), metadataPath, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, report.NewEntries)
}

func TestPipeline_SkipReasons(t *testing.T) {
	col, _ := setupCollection(t)
	ctx := context.Background()

	analyzer := mock.NewMockAnalyzer().WithError("broken.wav", errors.New("corrupt header"))
	dir := setupAudioDir(t, "ok.wav", "broken.wav", "dup.wav", "later.wav")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "folder.wav"), 0755))
	outside := filepath.Join(filepath.Dir(dir), "outside.wav")
	require.NoError(t, os.WriteFile(outside, nil, 0644))

	table := parseTable(t,
		"filename,diagnosis",
		"ok.wav,x",
		"missing.wav,x",
		"broken.wav,x",
		"dup.wav,x",
		"dup.wav,y",
		",x",
		"extra.wav,x,surplus",
		"folder.wav,x",
		"../outside.wav,x",
		"later.wav,x",
	)

	p, err := NewPipeline(col, analyzer)
	require.NoError(t, err)

	report, err := p.Run(ctx, table, dir)
	require.NoError(t, err)

	assert.Equal(t, 3, report.NewEntries) // ok, dup, later
	assert.Equal(t, []core.SkipReason{
		core.SkipMissingFile,
		core.SkipExtractionFailed,
		core.SkipDuplicate,
		core.SkipMalformedRow,
		core.SkipMalformedRow,
		core.SkipMissingFile,
		core.SkipMissingFile,
	}, reasons(report))
	assert.Equal(t, 3, report.TotalInStore)

	broken := report.Skipped[1]
	assert.Equal(t, "broken.wav", broken.Filename)
	assert.Equal(t, 4, broken.Line)
	assert.Contains(t, broken.Cause, "corrupt header")

	dup := report.Skipped[2]
	assert.Equal(t, 6, dup.Line)

	counts := report.SkipCounts()
	assert.Equal(t, 3, counts[core.SkipMissingFile])
	assert.Equal(t, 2, counts[core.SkipMalformedRow])

	// The later row was still processed after every failure.
	found, err := col.Get(ctx, "audio_later")
	require.NoError(t, err)
	assert.Contains(t, found, core.ItemID("audio_later"))
}

func TestPipeline_ExtractionPanicIsolated(t *testing.T) {
	col, _ := setupCollection(t)

	analyzer := mock.NewMockAnalyzer()
	analyzer.AnalyzeFunc = func(ctx context.Context, path string) (*core.FeatureRecord, error) {
		if filepath.Base(path) == "bad.wav" {
			panic("decoder state corrupted")
		}
		return mock.DeterministicRecord(filepath.Base(path)), nil
	}
	dir := setupAudioDir(t, "bad.wav", "good.wav")
	table := parseTable(t, "filename,diagnosis", "bad.wav,x", "good.wav,x")

	p, err := NewPipeline(col, analyzer)
	require.NoError(t, err)

	report, err := p.Run(context.Background(), table, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, report.NewEntries)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, core.SkipExtractionFailed, report.Skipped[0].Reason)
	assert.Contains(t, report.Skipped[0].Cause, "panic")
}

func TestPipeline_UndefinedFeatures(t *testing.T) {
	col, _ := setupCollection(t)
	ctx := context.Background()

	analyzer := mock.NewMockAnalyzer().WithRecord("quiet.wav", &core.FeatureRecord{
		MeanHNR: core.DefinedMeasure(2.5),
	})
	dir := setupAudioDir(t, "quiet.wav")
	table := parseTable(t, "filename,diagnosis", "quiet.wav,x")

	p, err := NewPipeline(col, analyzer)
	require.NoError(t, err)
	_, err = p.Run(ctx, table, dir)
	require.NoError(t, err)

	stored, err := col.GetRecord(ctx, "audio_quiet")
	require.NoError(t, err)
	assert.Equal(t, core.Embedding{0, 0, 0, 2.5}, stored.Embedding)
	assert.Equal(t, "", stored.Metadata["mean_pitch"])
	assert.Equal(t, "2.5", stored.Metadata["mean_hnr"])
}

func TestPipeline_Identity(t *testing.T) {
	col, _ := setupCollection(t)
	ctx := context.Background()

	dir := setupAudioDir(t, "session.01.wav", ".hidden")
	table := parseTable(t, "filename,diagnosis", "session.01.wav,x", ".hidden,x")

	p, err := NewPipeline(col, mock.NewMockAnalyzer(), WithIDPrefix("rec_"), WithDocumentTemplate("Recording %s"))
	require.NoError(t, err)
	_, err = p.Run(ctx, table, dir)
	require.NoError(t, err)

	found, err := col.Get(ctx, "rec_session.01", "rec_.hidden")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	stored, err := col.GetRecord(ctx, "rec_session.01")
	require.NoError(t, err)
	assert.Equal(t, "Recording session.01.wav", stored.Document)
}

func TestPipeline_FeatureColumnsOverrideRow(t *testing.T) {
	col, _ := setupCollection(t)
	ctx := context.Background()

	analyzer := mock.NewMockAnalyzer().WithRecord("a.wav", &core.FeatureRecord{MeanPitch: core.DefinedMeasure(99)})
	dir := setupAudioDir(t, "a.wav")
	table := parseTable(t, "filename,diagnosis,mean_pitch", "a.wav,x,stale")

	p, err := NewPipeline(col, analyzer)
	require.NoError(t, err)
	_, err = p.Run(ctx, table, dir)
	require.NoError(t, err)

	stored, err := col.GetRecord(ctx, "audio_a")
	require.NoError(t, err)
	assert.Equal(t, "99", stored.Metadata["mean_pitch"])
}

func TestPipeline_StoreFailureIsFatal(t *testing.T) {
	col, _ := setupCollection(t)
	ctx := context.Background()

	adds := 0
	hooked := &hookedCollection{Collection: col}
	hooked.addFunc = func(ctx context.Context, record *core.StoreRecord) error {
		adds++
		if adds == 2 {
			return errors.New("value log write failed")
		}
		return col.Add(ctx, record)
	}

	dir := setupAudioDir(t, "a.wav", "b.wav", "c.wav")
	table := parseTable(t, "filename,diagnosis", "a.wav,x", "b.wav,x", "c.wav,x")

	p, err := NewPipeline(hooked, mock.NewMockAnalyzer())
	require.NoError(t, err)

	report, err := p.Run(ctx, table, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "value log write failed")
	assert.Contains(t, err.Error(), "line 3")

	require.NotNil(t, report)
	assert.Equal(t, 1, report.NewEntries)
	assert.Equal(t, 1, report.TotalInStore)
	assert.False(t, report.FinishedAt.IsZero())
}

func TestPipeline_ExistenceCheckFailureIsFatal(t *testing.T) {
	col, _ := setupCollection(t)

	hooked := &hookedCollection{Collection: col}
	hooked.getFunc = func(ctx context.Context, ids ...core.ItemID) (map[core.ItemID]struct{}, error) {
		return nil, storage.ErrStorageClosed
	}
	analyzer := mock.NewMockAnalyzer()
	dir := setupAudioDir(t, "a.wav")

	p, err := NewPipeline(hooked, analyzer)
	require.NoError(t, err)

	report, err := p.Run(context.Background(), parseTable(t, "filename,diagnosis", "a.wav,x"), dir)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	assert.Equal(t, 0, report.NewEntries)
	assert.Equal(t, 0, analyzer.CallCount())
}

func TestPipeline_ConcurrentDuplicateIsSkipped(t *testing.T) {
	col, _ := setupCollection(t)

	hooked := &hookedCollection{Collection: col}
	hooked.addFunc = func(ctx context.Context, record *core.StoreRecord) error {
		return storage.ErrDuplicateKey
	}
	dir := setupAudioDir(t, "a.wav")

	p, err := NewPipeline(hooked, mock.NewMockAnalyzer())
	require.NoError(t, err)

	report, err := p.Run(context.Background(), parseTable(t, "filename,diagnosis", "a.wav,x"), dir)
	require.NoError(t, err)
	assert.Equal(t, []core.SkipReason{core.SkipDuplicate}, reasons(report))
}

func TestPipeline_Cancellation(t *testing.T) {
	col, _ := setupCollection(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hooked := &hookedCollection{Collection: col}
	hooked.addFunc = func(addCtx context.Context, record *core.StoreRecord) error {
		err := col.Add(addCtx, record)
		cancel()
		return err
	}
	analyzer := mock.NewMockAnalyzer()
	dir := setupAudioDir(t, "a.wav", "b.wav")
	table := parseTable(t, "filename,diagnosis", "a.wav,x", "b.wav,x")

	p, err := NewPipeline(hooked, analyzer)
	require.NoError(t, err)

	report, err := p.Run(ctx, table, dir)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.NewEntries)
	assert.Equal(t, 1, report.TotalInStore)
	assert.Equal(t, 1, analyzer.CallCount())
}

func TestPipeline_RunSummary(t *testing.T) {
	col, backend := setupCollection(t)
	ctx := context.Background()

	runs := badger.NewRunRepository(backend)
	dir := setupAudioDir(t, "a.wav")
	table := parseTable(t, "filename,diagnosis", "a.wav,x", "gone.wav,x")

	p, err := NewPipeline(col, mock.NewMockAnalyzer(), WithRunRepository(runs))
	require.NoError(t, err)

	report, err := p.Run(ctx, table, dir)
	require.NoError(t, err)

	last, err := runs.LastRun(ctx, col.Name())
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, report.RunID, last.RunID)
	assert.Equal(t, 1, last.NewEntries)
	assert.Equal(t, 1, last.Skipped)
	assert.Equal(t, 1, last.TotalInStore)

	// A failing summary store does not fail the run.
	p, err = NewPipeline(col, mock.NewMockAnalyzer(), WithRunRepository(failingRuns{}))
	require.NoError(t, err)
	_, err = p.Run(ctx, table, dir)
	assert.NoError(t, err)
}

func TestPipeline_Progress(t *testing.T) {
	col, _ := setupCollection(t)

	var buf bytes.Buffer
	dir := setupAudioDir(t, "a.wav", "b.wav", "c.wav")
	table := parseTable(t, "filename,diagnosis", "a.wav,x", "b.wav,x", "c.wav,x")

	p, err := NewPipeline(col, mock.NewMockAnalyzer(), WithProgress(&buf, 2))
	require.NoError(t, err)
	_, err = p.Run(context.Background(), table, dir)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "Progress: 2/3")
	assert.Contains(t, buf.String(), "Progress: 3/3 (100.0%)")
}

func TestPipeline_WithPCMAnalyzer(t *testing.T) {
	col, _ := setupCollection(t)
	ctx := context.Background()

	dir := t.TempDir()
	require.NoError(t, pcm.WriteFile(filepath.Join(dir, "tone.wav"), pcm.Tone(16000, 150, 0.5, 0.5)))
	require.NoError(t, pcm.WriteFile(filepath.Join(dir, "silence.wav"), pcm.Silence(16000, 0.5)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corrupt.wav"), []byte("RIFF????"), 0644))

	analyzer, err := pcm.NewAnalyzer()
	require.NoError(t, err)
	p, err := NewPipeline(col, analyzer)
	require.NoError(t, err)

	table := parseTable(t, "filename,diagnosis", "tone.wav,healthy", "silence.wav,x", "corrupt.wav,x")
	report, err := p.Run(ctx, table, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, report.NewEntries)
	assert.Equal(t, []core.SkipReason{core.SkipExtractionFailed}, reasons(report))

	tone, err := col.GetRecord(ctx, "audio_tone")
	require.NoError(t, err)
	assert.InDelta(t, 150, tone.Embedding[2], 2)

	silence, err := col.GetRecord(ctx, "audio_silence")
	require.NoError(t, err)
	assert.Equal(t, core.Embedding{0, 0, 0, 0}, silence.Embedding)
	assert.Equal(t, "", silence.Metadata["mean_pitch"])

	// The query embedding of a stored tone finds it first.
	results, err := col.FindNearest(ctx, features.Project(&core.FeatureRecord{MeanPitch: core.DefinedMeasure(150)}), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, core.ItemID("audio_tone"), results[0].Record.ID)
}

func TestPipeline_ScenarioMissingFile(t *testing.T) {
	col, _ := setupCollection(t)
	ctx := context.Background()

	dir := setupAudioDir(t, "a.wav")
	table := parseTable(t, "filename,diagnosis", "a.wav,positive", "b.wav,negative")

	p, err := NewPipeline(col, mock.NewMockAnalyzer())
	require.NoError(t, err)

	report, err := p.Run(ctx, table, dir)
	require.NoError(t, err)

	assert.Equal(t, 1, report.NewEntries)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "b.wav", report.Skipped[0].Filename)
	assert.Equal(t, core.SkipMissingFile, report.Skipped[0].Reason)

	count, err := col.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	_, err = col.GetRecord(ctx, "audio_a")
	assert.NoError(t, err)
}

func TestPipeline_ScenarioPrepopulated(t *testing.T) {
	col, _ := setupCollection(t)
	ctx := context.Background()

	require.NoError(t, col.Add(ctx, &core.StoreRecord{
		ID:        "audio_a",
		Embedding: core.Embedding{0, 0, 0, 0},
		Metadata:  map[string]string{"filename": "a.wav"},
	}))

	analyzer := mock.NewMockAnalyzer()
	dir := setupAudioDir(t, "a.wav", "b.wav")
	table := parseTable(t, "filename,diagnosis", "a.wav,positive", "b.wav,negative")

	p, err := NewPipeline(col, analyzer)
	require.NoError(t, err)

	report, err := p.Run(ctx, table, dir)
	require.NoError(t, err)

	assert.Equal(t, 1, report.NewEntries)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "a.wav", report.Skipped[0].Filename)
	assert.Equal(t, core.SkipDuplicate, report.Skipped[0].Reason)
	assert.Equal(t, []string{"b.wav"}, analyzer.Calls())
	assert.Equal(t, 2, report.TotalInStore)
}

func TestPipeline_RepeatedFreeFormColumn(t *testing.T) {
	col, _ := setupCollection(t)
	ctx := context.Background()

	dir := setupAudioDir(t, "a.wav")
	table := parseTable(t, "filename,diagnosis,Notes,notes", "a.wav,positive,x,y")

	p, err := NewPipeline(col, mock.NewMockAnalyzer())
	require.NoError(t, err)

	report, err := p.Run(ctx, table, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, report.NewEntries)
	assert.Empty(t, report.Skipped)

	stored, err := col.GetRecord(ctx, "audio_a")
	require.NoError(t, err)
	assert.Equal(t, "y", stored.Metadata["notes"])
}
