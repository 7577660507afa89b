package ingestion

import "errors"

var (
	// ErrCollectionRequired is returned when a collection is not provided.
	ErrCollectionRequired = errors.New("collection required")

	// ErrAnalyzerRequired is returned when an analyzer is not provided.
	ErrAnalyzerRequired = errors.New("analyzer required")

	// ErrTableRequired is returned when Run is called without a metadata table.
	ErrTableRequired = errors.New("metadata table required")

	// ErrInvalidDocumentTemplate is returned when a document template does
	// not contain exactly one %s verb.
	ErrInvalidDocumentTemplate = errors.New("document template must contain exactly one %s")
)
