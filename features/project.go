package features

import (
	"math"
	"strconv"

	"github.com/poiesic/voxbank/core"
)

// Project maps a feature record to its embedding. Undefined and non-finite
// measures become 0.0, as does a nil record.
func Project(record *core.FeatureRecord) core.Embedding {
	embedding := make(core.Embedding, core.EmbeddingDim)
	if record == nil {
		return embedding
	}
	measures := record.Measures()
	for i, field := range core.EmbeddingFields {
		v := float32(measures[field].Or(0))
		// Finite float64 values beyond float32 range overflow to Inf.
		if math.IsInf(float64(v), 0) {
			v = 0
		}
		embedding[i] = v
	}
	return embedding
}

// Fields renders a feature record as metadata values. Undefined measures
// render as "".
func Fields(record *core.FeatureRecord) map[string]string {
	fields := make(map[string]string, core.EmbeddingDim)
	var measures map[string]core.Measure
	if record != nil {
		measures = record.Measures()
	}
	for _, field := range core.EmbeddingFields {
		m := measures[field]
		if !m.Defined || math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
			fields[field] = ""
			continue
		}
		fields[field] = strconv.FormatFloat(m.Value, 'g', -1, 64)
	}
	return fields
}
