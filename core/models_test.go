package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityFor(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     ItemID
	}{
		{"simple wav", "sample1.wav", "audio_sample1"},
		{"no extension", "sample1", "audio_sample1"},
		{"multiple dots", "a.b.wav", "audio_a.b"},
		{"hidden file", ".hidden", "audio_.hidden"},
		{"double leading dot", "..hidden", "audio_..hidden"},
		{"trailing dot", "a.", "audio_a"},
		{"directory with dot", "dir.v1/a", "audio_dir.v1/a"},
		{"directory and extension", "dir/a.wav", "audio_dir/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IdentityFor(DefaultIDPrefix, tt.filename))
		})
	}
}

func TestIdentityFor_Deterministic(t *testing.T) {
	assert.Equal(t, IdentityFor(DefaultIDPrefix, "sample1.wav"), IdentityFor(DefaultIDPrefix, "sample1.wav"))
	assert.NotEqual(t, IdentityFor(DefaultIDPrefix, "sample1.wav"), IdentityFor(DefaultIDPrefix, "sample2.wav"))
}

func TestIdentityFor_SameStemCollides(t *testing.T) {
	// Only the last extension is dropped, so these intentionally collide.
	assert.Equal(t, IdentityFor("p_", "a.wav"), IdentityFor("p_", "a.mp3"))
}

func TestKeyFromID(t *testing.T) {
	k1 := KeyFromID("audio_a")
	k2 := KeyFromID("audio_a")
	k3 := KeyFromID("audio_b")

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}

func TestMeasure(t *testing.T) {
	assert.Equal(t, 1.5, DefinedMeasure(1.5).Or(0))
	assert.False(t, DefinedMeasure(math.NaN()).Defined)
	assert.False(t, DefinedMeasure(math.Inf(1)).Defined)
	assert.Equal(t, 0.0, Measure{}.Or(0))
	assert.Equal(t, 0.0, Measure{Value: math.NaN(), Defined: true}.Or(0))
}

func TestFeatureRecord_Measures(t *testing.T) {
	r := &FeatureRecord{
		JitterLocal: DefinedMeasure(0.01),
		MeanPitch:   DefinedMeasure(120),
	}
	m := r.Measures()

	assert.Len(t, m, EmbeddingDim)
	for _, field := range EmbeddingFields {
		assert.Contains(t, m, field)
	}
	assert.True(t, m[FieldJitterLocal].Defined)
	assert.False(t, m[FieldShimmerLocal].Defined)
}

func TestMetadataRow_Filename(t *testing.T) {
	row := &MetadataRow{Fields: map[string]string{ColumnFilename: "  a.wav "}}
	assert.Equal(t, "a.wav", row.Filename())
	assert.Equal(t, "", row.Get("missing"))
}
