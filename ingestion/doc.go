// Package ingestion provides pipeline orchestration for building a vector
// dataset from recordings and their metadata.
//
// The Pipeline walks a validated metadata table one row at a time:
//   - Resolving the row's identity from its filename
//   - Skipping identities already present in the collection
//   - Locating the audio file under the audio directory
//   - Extracting features and projecting them into an embedding
//   - Appending the record to the collection
//
// Every step yields an outcome: proceed, skip with a reason, or fatal.
// Skips are collected in the Report and the run continues. Only store
// failures and context cancellation stop a run early, and rows written
// before that point stay in the store.
//
// Runs are sequential and assume a single writer per collection. Re-running
// over the same inputs adds nothing and extracts nothing.
package ingestion
