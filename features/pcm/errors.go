package pcm

import "errors"

var (
	// ErrInvalidWAV indicates the input is not a well-formed WAVE stream.
	ErrInvalidWAV = errors.New("invalid wav stream")

	// ErrUnsupportedFormat indicates a WAVE encoding the decoder cannot read.
	ErrUnsupportedFormat = errors.New("unsupported wav encoding")

	// ErrTooShort indicates the recording is shorter than one analysis window.
	ErrTooShort = errors.New("recording too short to analyze")
)
