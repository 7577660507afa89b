// Command seeder writes a synthetic voice dataset: one WAV file per
// specimen plus a metadata table that voxbank ingest can read.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/poiesic/voxbank/config"
	"github.com/poiesic/voxbank/features/pcm"
)

const sampleRate = 16000

var diagnoses = []string{"healthy", "nodules", "paralysis", "laryngitis"}

var (
	outDir  = flag.String("out", ".", "directory receiving the metadata file and the audio directory")
	count   = flag.Int("n", 24, "number of specimens")
	missing = flag.Int("missing", 1, "extra metadata rows whose audio file is not written")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}

// specimen is one synthetic recording and its metadata.
type specimen struct {
	filename  string
	diagnosis string
	age       int
	audio     *pcm.Audio // nil when the file must not be written
}

// specimens returns an iterator over n deterministic recordings. Pitch
// rises with the index; breathier diagnoses get more noise, and every
// seventh specimen is silent.
func specimens(n, missing int) iter.Seq[specimen] {
	return func(yield func(specimen) bool) {
		for i := range n + missing {
			s := specimen{
				filename:  fmt.Sprintf("voice_%03d.wav", i+1),
				diagnosis: diagnoses[i%len(diagnoses)],
				age:       20 + (i*7)%55,
			}
			if i < n {
				s.audio = synthesize(i, i%len(diagnoses))
			}
			if !yield(s) {
				return
			}
		}
	}
}

func synthesize(i, severity int) *pcm.Audio {
	if i%7 == 6 {
		return pcm.Silence(sampleRate, 1)
	}
	pitch := 95 + float64(i%20)*12
	tone := pcm.Tone(sampleRate, pitch, 0.5, 1)
	noise := pcm.Noise(sampleRate, 0.02+0.04*float64(severity), 1, uint64(i+1))
	return pcm.Mix(tone, noise)
}

// writeDataset writes every specimen's audio under dir/dataset_audios and
// its row to dir/metadata.csv.
func writeDataset(dir string, source iter.Seq[specimen]) (int, error) {
	audioDir := filepath.Join(dir, config.DefaultAudioDir)
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		return 0, err
	}

	f, err := os.Create(filepath.Join(dir, config.DefaultMetadataFile))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"filename", "diagnosis", "age"}); err != nil {
		return 0, err
	}

	rows := 0
	for s := range source {
		if s.audio != nil {
			if err := pcm.WriteFile(filepath.Join(audioDir, s.filename), s.audio); err != nil {
				return rows, fmt.Errorf("write %s: %w", s.filename, err)
			}
		}
		if err := w.Write([]string{s.filename, s.diagnosis, strconv.Itoa(s.age)}); err != nil {
			return rows, err
		}
		rows++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return rows, err
	}
	return rows, f.Close()
}

func main() {
	flag.Parse()

	rows, err := writeDataset(*outDir, specimens(*count, *missing))
	if err != nil {
		panic(err)
	}
	slog.Info("dataset written", "dir", *outDir, "rows", rows, "missing", *missing)
}
