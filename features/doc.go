// Package features turns recordings into acoustic feature records and
// projects those records into fixed-order embeddings.
//
// An Analyzer is the measuring capability. It is wrapped by an Adapter,
// which isolates every failure of the capability (errors, panics and
// missing results) behind a single ExtractionFailure so that one bad
// recording never stops an ingestion run.
//
//	analyzer, err := pcm.NewAnalyzer()
//	if err != nil {
//	    return err
//	}
//	adapter, err := features.NewAdapter(analyzer)
//	if err != nil {
//	    return err
//	}
//	rec, err := adapter.Extract(ctx, "/data/audio/a.wav")
//	if err != nil {
//	    var failure *features.ExtractionFailure
//	    if errors.As(err, &failure) {
//	        // skip the recording
//	    }
//	}
//	embedding := features.Project(rec)
//
// Project is pure and total: undefined or non-finite measures project to
// 0.0 and the result always has core.EmbeddingDim elements in the order of
// core.EmbeddingFields.
//
// The pcm subpackage provides the pure-Go analyzer used in production and
// the mock subpackage a deterministic analyzer for tests.
package features
