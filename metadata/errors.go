package metadata

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation indicates the metadata table cannot be ingested at all.
	ErrValidation = errors.New("metadata validation failed")

	// ErrParse indicates the metadata file is not valid delimited text.
	ErrParse = errors.New("metadata parse failed")
)

// ValidationError describes why a metadata table was rejected.
type ValidationError struct {
	Missing   []string // required columns absent after normalization
	Duplicate []string // required columns that appear more than once after normalization
	Empty     bool     // no header row
}

func (e *ValidationError) Error() string {
	var parts []string
	if e.Empty {
		parts = append(parts, "no header row")
	}
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Duplicate) > 0 {
		parts = append(parts, fmt.Sprintf("duplicate columns: %s", strings.Join(e.Duplicate, ", ")))
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
