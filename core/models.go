package core

import (
	"encoding/binary"
	"math"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// Well-known metadata columns.
const (
	ColumnFilename  = "filename"
	ColumnDiagnosis = "diagnosis"
)

// Feature field names. The order of EmbeddingFields is the embedding layout
// and is persisted with every collection.
const (
	FieldJitterLocal  = "jitter_local"
	FieldShimmerLocal = "shimmer_local"
	FieldMeanPitch    = "mean_pitch"
	FieldMeanHNR      = "mean_hnr"
)

// EmbeddingFields lists feature names in embedding order.
var EmbeddingFields = []string{
	FieldJitterLocal,
	FieldShimmerLocal,
	FieldMeanPitch,
	FieldMeanHNR,
}

// EmbeddingDim is the fixed arity of every embedding.
const EmbeddingDim = 4

// DefaultIDPrefix is prepended to the extension-less filename to form an ItemID.
const DefaultIDPrefix = "audio_"

// ItemID identifies an ingested recording. It is derived from the filename only.
type ItemID string

// Key is the 64-bit storage key derived from an ItemID.
type Key uint64

// KeyFromID hashes an ItemID with BLAKE2b into a storage key.
// Identical IDs always produce identical keys.
func KeyFromID(id ItemID) Key {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(id))
	sum := h.Sum(nil)
	return Key(binary.LittleEndian.Uint64(sum))
}

// IdentityFor derives the ItemID for a filename: prefix followed by the
// filename with its last extension removed. Leading dots never start an
// extension, so ".hidden" keeps its name.
func IdentityFor(prefix, filename string) ItemID {
	return ItemID(prefix + stripExtension(filename))
}

func stripExtension(filename string) string {
	sep := strings.LastIndexAny(filename, `/\`)
	base := filename[sep+1:]
	dot := strings.LastIndexByte(base, '.')
	if dot <= 0 {
		return filename
	}
	// A base made only of leading dots plus a name has no extension.
	if strings.TrimLeft(base[:dot], ".") == "" {
		return filename
	}
	return filename[:sep+1+dot]
}

// Measure is a scalar that may be undefined, for example pitch on a
// recording with no voiced frames.
type Measure struct {
	Value   float64
	Defined bool
}

// DefinedMeasure returns a defined measure holding v. Non-finite values are
// reported as undefined.
func DefinedMeasure(v float64) Measure {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Measure{}
	}
	return Measure{Value: v, Defined: true}
}

// Or returns the value if defined, otherwise fallback.
func (m Measure) Or(fallback float64) float64 {
	if !m.Defined || math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return fallback
	}
	return m.Value
}

// FeatureRecord holds the acoustic measures extracted from one recording.
type FeatureRecord struct {
	JitterLocal  Measure // local pitch-period perturbation (ratio)
	ShimmerLocal Measure // local amplitude perturbation (ratio)
	MeanPitch    Measure // mean fundamental frequency (Hz)
	MeanHNR      Measure // mean harmonics-to-noise ratio (dB)
}

// Measures returns the record's measures keyed by field name.
func (r *FeatureRecord) Measures() map[string]Measure {
	return map[string]Measure{
		FieldJitterLocal:  r.JitterLocal,
		FieldShimmerLocal: r.ShimmerLocal,
		FieldMeanPitch:    r.MeanPitch,
		FieldMeanHNR:      r.MeanHNR,
	}
}

// Embedding is the ordered feature vector stored for similarity search.
type Embedding []float32

// MetadataRow is one normalized row of the metadata table.
type MetadataRow struct {
	Line      int               // 1-based line number in the source file
	Fields    map[string]string // normalized column name -> raw cell value
	Malformed string            // non-empty when the row cannot be ingested
}

// Get returns the value of a column, or "" if absent.
func (r *MetadataRow) Get(column string) string {
	return r.Fields[column]
}

// Filename returns the row's filename cell.
func (r *MetadataRow) Filename() string {
	return strings.TrimSpace(r.Fields[ColumnFilename])
}

// StoreRecord is the persisted unit of a collection.
type StoreRecord struct {
	ID         ItemID
	Embedding  Embedding
	Metadata   map[string]string
	Document   string
	InsertedAt time.Time
}

// SkipReason names why a row was not ingested.
type SkipReason string

const (
	// SkipDuplicate means the identity is already present in the store.
	SkipDuplicate SkipReason = "duplicate"
	// SkipMissingFile means the referenced audio file was not found.
	SkipMissingFile SkipReason = "missing_file"
	// SkipExtractionFailed means feature extraction failed for the file.
	SkipExtractionFailed SkipReason = "extraction_failed"
	// SkipMalformedRow means the metadata row itself is unusable.
	SkipMalformedRow SkipReason = "malformed_row"
)

// Skip records a row that was not ingested.
type Skip struct {
	Line     int
	Filename string
	Reason   SkipReason
	Cause    string
}

// CollectionSchema describes the vector layout of a collection.
type CollectionSchema struct {
	Name      string
	Fields    []string
	CreatedAt time.Time
}

// Dimension returns the embedding arity described by the schema.
func (s *CollectionSchema) Dimension() int {
	return len(s.Fields)
}

// RunSummary is the persisted outcome of one ingestion run.
type RunSummary struct {
	RunID        string
	Collection   string
	StartedAt    time.Time
	FinishedAt   time.Time
	NewEntries   int
	Skipped      int
	TotalInStore int
}

// SearchResult is a stored record matched by similarity search.
type SearchResult struct {
	Record   *StoreRecord
	Distance float32
}
