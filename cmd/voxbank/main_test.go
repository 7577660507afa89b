package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/voxbank/features/pcm"
)

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not found", name)
	return nil
}

func findFlag[T cli.Flag](cmd *cli.Command, name string) T {
	var zero T
	for _, flag := range cmd.Flags {
		if f, ok := flag.(T); ok && flag.Names()[0] == name {
			return f
		}
	}
	return zero
}

// runApp runs the CLI with a fresh app and returns its standard output.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	err := app.Run(append([]string{"voxbank"}, args...))
	return stdout.String(), err
}

// setupDataset writes two tones and a metadata file referencing them plus
// one absent recording.
func setupDataset(t *testing.T) (metadataPath, audioDir string) {
	t.Helper()
	dir := t.TempDir()
	audioDir = filepath.Join(dir, "audio")
	require.NoError(t, os.Mkdir(audioDir, 0755))
	require.NoError(t, pcm.WriteFile(filepath.Join(audioDir, "p01.wav"), pcm.Tone(16000, 130, 0.5, 0.5)))
	require.NoError(t, pcm.WriteFile(filepath.Join(audioDir, "p02.wav"), pcm.Tone(16000, 240, 0.5, 0.5)))

	metadataPath = filepath.Join(dir, "metadata.csv")
	require.NoError(t, os.WriteFile(metadataPath, []byte(
		"Filename;Diagnosis\np01.wav;healthy\np02.wav;paralysis\np03.wav;healthy\n"), 0644))
	return metadataPath, audioDir
}

func TestCommandFlags(t *testing.T) {
	app := newApp()

	t.Run("commands are registered", func(t *testing.T) {
		for _, name := range []string{"ingest", "count", "similar", "status"} {
			assert.NotNil(t, findCommand(t, app, name))
		}
	})

	t.Run("report-interval has default value of 10", func(t *testing.T) {
		flag := findFlag[*cli.IntFlag](findCommand(t, app, "ingest"), "report-interval")
		require.NotNil(t, flag)
		assert.Equal(t, 10, flag.Value)
	})

	t.Run("path flags have no default value", func(t *testing.T) {
		cmd := findCommand(t, app, "ingest")
		for _, name := range []string{"metadata", "audio-dir", "db", "collection"} {
			flag := findFlag[*cli.StringFlag](cmd, name)
			require.NotNil(t, flag, name)
			assert.Empty(t, flag.Value, name)
			assert.False(t, flag.Required, name)
		}
	})

	t.Run("similar requires audio", func(t *testing.T) {
		flag := findFlag[*cli.StringFlag](findCommand(t, app, "similar"), "audio")
		require.NotNil(t, flag)
		assert.True(t, flag.Required)

		_, err := runApp(t, "similar", "--db", t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "audio")
	})

	t.Run("limit has default value of 5", func(t *testing.T) {
		flag := findFlag[*cli.IntFlag](findCommand(t, app, "similar"), "limit")
		require.NotNil(t, flag)
		assert.Equal(t, 5, flag.Value)
	})
}

func TestIngestCommand(t *testing.T) {
	metadataPath, audioDir := setupDataset(t)
	dbPath := filepath.Join(t.TempDir(), "db")

	out, err := runApp(t, "ingest",
		"--metadata", metadataPath,
		"--audio-dir", audioDir,
		"--db", dbPath,
		"--report-interval", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "New entries: 2")
	assert.Contains(t, out, "p03.wav: missing_file")
	assert.Contains(t, out, "Total in store: 2")

	t.Run("second run only skips", func(t *testing.T) {
		out, err := runApp(t, "ingest",
			"--metadata", metadataPath,
			"--audio-dir", audioDir,
			"--db", dbPath,
			"--report-interval", "0")
		require.NoError(t, err)
		assert.Contains(t, out, "New entries: 0")
		assert.Contains(t, out, "p01.wav: duplicate")
		assert.Contains(t, out, "Total in store: 2")
	})

	t.Run("count", func(t *testing.T) {
		out, err := runApp(t, "count", "--db", dbPath)
		require.NoError(t, err)
		assert.Equal(t, "2\n", out)
	})

	t.Run("status", func(t *testing.T) {
		out, err := runApp(t, "status", "--db", dbPath)
		require.NoError(t, err)
		assert.Contains(t, out, "Collection: audio_features_collection")
		assert.Contains(t, out, "Fields: jitter_local, shimmer_local, mean_pitch, mean_hnr")
		assert.Contains(t, out, "Records: 2")
		assert.Contains(t, out, "new entries 0, skipped 3, total 2")
	})

	t.Run("similar", func(t *testing.T) {
		out, err := runApp(t, "similar", "--db", dbPath,
			"--audio", filepath.Join(audioDir, "p02.wav"), "--limit", "1")
		require.NoError(t, err)
		assert.Contains(t, out, "Found 1 hits")
		assert.Contains(t, out, "0: audio_p02 paralysis")
	})

	t.Run("similar rejects non-positive limit", func(t *testing.T) {
		_, err := runApp(t, "similar", "--db", dbPath,
			"--audio", filepath.Join(audioDir, "p02.wav"), "--limit", "0")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "limit")
	})

	t.Run("other collection is empty", func(t *testing.T) {
		out, err := runApp(t, "status", "--db", dbPath, "--collection", "other")
		require.NoError(t, err)
		assert.Contains(t, out, "Records: 0")
		assert.Contains(t, out, "Last run: none")
	})
}

func TestIngestCommand_InvalidMetadata(t *testing.T) {
	dir := t.TempDir()
	metadataPath := filepath.Join(dir, "metadata.csv")
	require.NoError(t, os.WriteFile(metadataPath, []byte("filename,age\na.wav,40\n"), 0644))
	dbPath := filepath.Join(dir, "db")

	_, err := runApp(t, "ingest", "--metadata", metadataPath, "--audio-dir", dir, "--db", dbPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "diagnosis")
	assert.NoDirExists(t, dbPath)
}

func TestIngestCommand_MissingMetadata(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "db")

	_, err := runApp(t, "ingest",
		"--metadata", filepath.Join(dir, "absent.csv"),
		"--audio-dir", dir,
		"--db", dbPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoDirExists(t, dbPath)
}

func TestConfigFile(t *testing.T) {
	metadataPath, audioDir := setupDataset(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "voxbank.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(
		"metadata_file: "+metadataPath+"\n"+
			"audio_dir: "+audioDir+"\n"+
			"store_path: "+filepath.Join(dir, "db")+"\n"+
			"collection: clinic\n"+
			"id_prefix: rec_\n"+
			"report_interval: 0\n"), 0644))

	out, err := runApp(t, "--config", configPath, "ingest")
	require.NoError(t, err)
	assert.Contains(t, out, `collection "clinic"`)
	assert.Contains(t, out, "New entries: 2")

	t.Run("flags override file values", func(t *testing.T) {
		out, err := runApp(t, "-c", configPath, "count", "--collection", "elsewhere")
		require.NoError(t, err)
		assert.Equal(t, "0\n", out)
	})

	t.Run("id prefix from file", func(t *testing.T) {
		out, err := runApp(t, "-c", configPath, "similar", "--audio", filepath.Join(audioDir, "p01.wav"), "-n", "1")
		require.NoError(t, err)
		assert.Contains(t, out, "0: rec_p01 healthy")
	})

	t.Run("missing config file", func(t *testing.T) {
		_, err := runApp(t, "-c", filepath.Join(dir, "absent.yaml"), "count")
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("invalid collection", func(t *testing.T) {
		_, err := runApp(t, "-c", configPath, "count", "--collection", "a:b")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}

func TestSetupLogger(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		testCases := []string{"debug", "info", "warn", "error", "DEBUG", "Info"}

		for _, tc := range testCases {
			t.Run(tc, func(t *testing.T) {
				app := &cli.App{
					Name: "test",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:  "log-level",
							Value: "info",
						},
					},
					Before: setupLogger,
					Action: func(c *cli.Context) error {
						return nil
					},
				}

				err := app.Run([]string{"test", "--log-level", tc})
				require.NoError(t, err)
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		_, err := runApp(t, "--log-level", "invalid", "count")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("log-level flag has alias -l", func(t *testing.T) {
		app := newApp()
		app.Action = func(c *cli.Context) error {
			assert.Equal(t, "debug", c.String("log-level"))
			return nil
		}

		err := app.Run([]string{"voxbank", "-l", "debug"})
		require.NoError(t, err)
	})
}
