// Package pcm implements features.Analyzer in pure Go.
//
// Recordings are decoded from RIFF/WAVE, downmixed to mono and scanned on
// a fixed time grid. Each frame's period comes from the strongest
// normalized cross-correlation peak between the pitch floor and ceiling.
// Frames above the silence threshold whose correlation exceeds the voicing
// threshold are voiced; mean pitch and mean HNR average over them. Pulses
// are then marked one period apart inside each voiced run, and local
// jitter and shimmer are computed from consecutive pulse pairs.
package pcm
