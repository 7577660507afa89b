package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/voxbank/metadata"
)

func TestSpecimens(t *testing.T) {
	var all []specimen
	for s := range specimens(8, 2) {
		all = append(all, s)
	}

	require.Len(t, all, 10)
	assert.Equal(t, "voice_001.wav", all[0].filename)
	assert.Equal(t, "healthy", all[0].diagnosis)
	assert.Equal(t, "nodules", all[1].diagnosis)
	assert.NotNil(t, all[7].audio)
	assert.Nil(t, all[8].audio)
	assert.Nil(t, all[9].audio)

	// every seventh specimen is silent
	for _, v := range all[6].audio.Samples {
		require.Zero(t, v)
	}
}

func TestWriteDataset(t *testing.T) {
	dir := t.TempDir()

	rows, err := writeDataset(dir, specimens(3, 1))
	require.NoError(t, err)
	assert.Equal(t, 4, rows)

	table, err := metadata.Load(filepath.Join(dir, "metadata.csv"), nil)
	require.NoError(t, err)
	require.Equal(t, 4, table.Len())
	assert.Equal(t, []string{"filename", "diagnosis", "age"}, table.Columns)
	assert.Equal(t, "voice_002.wav", table.Rows[1].Filename())

	entries, err := os.ReadDir(filepath.Join(dir, "dataset_audios"))
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}
