// Package metadata loads and validates the delimited metadata table that
// drives an ingestion run.
//
// Validation happens once, over the whole header, before any row is
// processed: a table that lacks a required column is rejected with a
// *ValidationError and nothing is ingested. Row-level problems are only
// flagged on the row, so one bad line costs that line and nothing else.
package metadata
