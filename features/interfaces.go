package features

import (
	"context"

	"github.com/poiesic/voxbank/core"
)

// Analyzer measures the acoustic features of one audio file.
type Analyzer interface {
	// Analyze reads the file at path and returns its feature record.
	// Individual measures that cannot be computed are left undefined.
	// Returns an error if the file cannot be read or analyzed at all.
	Analyze(ctx context.Context, path string) (*core.FeatureRecord, error)
}
