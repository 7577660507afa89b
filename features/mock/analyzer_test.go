package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/voxbank/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockAnalyzer_Default(t *testing.T) {
	m := NewMockAnalyzer()
	ctx := context.Background()

	first, err := m.Analyze(ctx, "/audio/a.wav")
	require.NoError(t, err)
	second, err := m.Analyze(ctx, "/other/a.wav")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := m.Analyze(ctx, "/audio/b.wav")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	for _, measure := range first.Measures() {
		assert.True(t, measure.Defined)
	}
	assert.Equal(t, 3, m.CallCount())
	assert.Equal(t, []string{"a.wav", "a.wav", "b.wav"}, m.Calls())
}

func TestMockAnalyzer_Registered(t *testing.T) {
	record := &core.FeatureRecord{MeanPitch: core.DefinedMeasure(120)}
	boom := errors.New("boom")
	m := NewMockAnalyzer().WithRecord("a.wav", record).WithError("b.wav", boom)
	ctx := context.Background()

	got, err := m.Analyze(ctx, "/audio/a.wav")
	require.NoError(t, err)
	assert.Same(t, record, got)

	_, err = m.Analyze(ctx, "/audio/b.wav")
	assert.ErrorIs(t, err, boom)

	m.Reset()
	assert.Equal(t, 0, m.CallCount())
	got, err = m.Analyze(ctx, "/audio/b.wav")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestMockAnalyzer_Func(t *testing.T) {
	m := NewMockAnalyzer()
	m.AnalyzeFunc = func(ctx context.Context, path string) (*core.FeatureRecord, error) {
		return nil, nil
	}

	got, err := m.Analyze(context.Background(), "x.wav")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, m.CallCount())
}
