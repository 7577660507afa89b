package pcm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

const (
	maxChunkSize     = 256 * 1024 * 1024
	maxDataChunkSize = 1024 * 1024 * 1024
)

// WAVE format tags.
const (
	formatPCM        = 1
	formatIEEEFloat  = 3
	formatExtensible = 0xFFFE
)

// Audio is a decoded mono signal with samples in [-1, 1].
type Audio struct {
	SampleRate int
	Samples    []float64
}

// Duration returns the signal length in seconds.
func (a *Audio) Duration() float64 {
	if a.SampleRate <= 0 {
		return 0
	}
	return float64(len(a.Samples)) / float64(a.SampleRate)
}

type wavFormat struct {
	tag        uint16
	channels   int
	sampleRate int
	bitDepth   int
}

// Decode reads a RIFF/WAVE stream and downmixes it to mono.
// Supports integer PCM at 8, 16, 24 and 32 bits and IEEE float at 32 and
// 64 bits.
func Decode(r io.Reader) (*Audio, error) {
	if r == nil {
		return nil, errors.New("wav: reader nil")
	}

	header := make([]byte, 12)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: read header: %w", ErrInvalidWAV, err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: not a RIFF/WAVE stream", ErrInvalidWAV)
	}

	var (
		format    wavFormat
		fmtParsed bool
		data      []byte
	)

	for data == nil {
		chunkHeader := make([]byte, 8)
		if _, err := io.ReadFull(r, chunkHeader); err != nil {
			if !fmtParsed {
				return nil, fmt.Errorf("%w: fmt chunk missing", ErrInvalidWAV)
			}
			return nil, fmt.Errorf("%w: data chunk missing", ErrInvalidWAV)
		}
		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 || chunkSize > maxChunkSize {
				return nil, fmt.Errorf("%w: invalid fmt chunk", ErrInvalidWAV)
			}
			payload := make([]byte, chunkSize+chunkSize%2)
			if _, err := io.ReadFull(r, payload); err != nil {
				return nil, fmt.Errorf("%w: read fmt chunk: %w", ErrInvalidWAV, err)
			}
			parsed, err := parseFormat(payload[:chunkSize])
			if err != nil {
				return nil, err
			}
			format = parsed
			fmtParsed = true
		case "data":
			if !fmtParsed {
				return nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrInvalidWAV)
			}
			if chunkSize > maxDataChunkSize {
				return nil, fmt.Errorf("%w: data chunk too large (%d bytes)", ErrInvalidWAV, chunkSize)
			}
			// Writers that stream often leave a short or oversized length;
			// keep whatever is actually present.
			buf, err := io.ReadAll(io.LimitReader(r, int64(chunkSize)))
			if err != nil {
				return nil, fmt.Errorf("%w: read data chunk: %w", ErrInvalidWAV, err)
			}
			data = buf
		default:
			if chunkSize > maxChunkSize {
				return nil, fmt.Errorf("%w: chunk %s too large (%d bytes)", ErrInvalidWAV, strings.TrimSpace(chunkID), chunkSize)
			}
			skip := int64(chunkSize)
			if skip%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, fmt.Errorf("%w: skip chunk %s: %w", ErrInvalidWAV, strings.TrimSpace(chunkID), err)
			}
		}
	}

	samples, err := downmix(data, format)
	if err != nil {
		return nil, err
	}
	return &Audio{SampleRate: format.sampleRate, Samples: samples}, nil
}

func parseFormat(payload []byte) (wavFormat, error) {
	f := wavFormat{
		tag:        binary.LittleEndian.Uint16(payload[0:2]),
		channels:   int(binary.LittleEndian.Uint16(payload[2:4])),
		sampleRate: int(binary.LittleEndian.Uint32(payload[4:8])),
		bitDepth:   int(binary.LittleEndian.Uint16(payload[14:16])),
	}
	if f.tag == formatExtensible {
		if len(payload) < 26 {
			return f, fmt.Errorf("%w: truncated extensible fmt chunk", ErrInvalidWAV)
		}
		// The sub-format GUID starts with the plain format tag.
		f.tag = binary.LittleEndian.Uint16(payload[24:26])
	}
	if f.channels == 0 || f.sampleRate == 0 || f.bitDepth == 0 {
		return f, fmt.Errorf("%w: invalid format values", ErrInvalidWAV)
	}

	switch f.tag {
	case formatPCM:
		switch f.bitDepth {
		case 8, 16, 24, 32:
		default:
			return f, fmt.Errorf("%w: %d-bit PCM", ErrUnsupportedFormat, f.bitDepth)
		}
	case formatIEEEFloat:
		if f.bitDepth != 32 && f.bitDepth != 64 {
			return f, fmt.Errorf("%w: %d-bit float", ErrUnsupportedFormat, f.bitDepth)
		}
	default:
		return f, fmt.Errorf("%w: format tag %d", ErrUnsupportedFormat, f.tag)
	}
	return f, nil
}

func downmix(data []byte, f wavFormat) ([]float64, error) {
	width := f.bitDepth / 8
	block := width * f.channels
	frames := len(data) / block
	if frames == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrInvalidWAV)
	}

	samples := make([]float64, frames)
	for i := range frames {
		var sum float64
		for c := range f.channels {
			off := i*block + c*width
			sum += decodeSample(data[off:off+width], f.tag, f.bitDepth)
		}
		samples[i] = sum / float64(f.channels)
	}
	return samples, nil
}

func decodeSample(b []byte, tag uint16, bitDepth int) float64 {
	if tag == formatIEEEFloat {
		if bitDepth == 64 {
			return math.Float64frombits(binary.LittleEndian.Uint64(b))
		}
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	}
	switch bitDepth {
	case 8:
		return (float64(b[0]) - 128) / 128
	case 16:
		return float64(int16(binary.LittleEndian.Uint16(b))) / 32768
	case 24:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v |= ^0xFFFFFF
		}
		return float64(v) / 8388608
	default:
		return float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648
	}
}

// Encode writes samples as a mono 16-bit PCM WAVE stream. Samples outside
// [-1, 1] are clipped.
func Encode(w io.Writer, audio *Audio) error {
	if audio == nil || audio.SampleRate <= 0 {
		return errors.New("wav: invalid audio")
	}
	const (
		channels = 1
		bitDepth = 16
	)
	dataSize := len(audio.Samples) * bitDepth / 8

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataSize))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(header[20:22], formatPCM)
	binary.LittleEndian.PutUint16(header[22:24], channels)
	binary.LittleEndian.PutUint32(header[24:28], uint32(audio.SampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(audio.SampleRate*channels*bitDepth/8))
	binary.LittleEndian.PutUint16(header[32:34], channels*bitDepth/8)
	binary.LittleEndian.PutUint16(header[34:36], bitDepth)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataSize))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("wav: write header: %w", err)
	}

	data := make([]byte, dataSize)
	for i, s := range audio.Samples {
		s = max(-1, min(1, s))
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(math.Round(s*32767))))
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("wav: write data: %w", err)
	}
	return nil
}

// WriteFile encodes audio to a 16-bit PCM WAVE file at path.
func WriteFile(path string, audio *Audio) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, audio); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
