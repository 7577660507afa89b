// Package mock provides a test double for features.Analyzer.
//
// MockAnalyzer never touches the filesystem. It returns deterministic
// records derived from the file's base name unless a record or error has
// been registered for that name.
//
//	analyzer := mock.NewMockAnalyzer().
//	    WithRecord("a.wav", &core.FeatureRecord{MeanPitch: core.DefinedMeasure(120)}).
//	    WithError("broken.wav", errors.New("corrupt header"))
//
//	count := analyzer.CallCount()
package mock
