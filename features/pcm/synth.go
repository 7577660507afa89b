package pcm

import (
	"math"
	"math/rand/v2"
)

// Tone synthesizes a pure sine of the given frequency (Hz), peak amplitude
// and duration (s).
func Tone(sampleRate int, frequency, amplitude, seconds float64) *Audio {
	n := int(seconds * float64(sampleRate))
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amplitude * math.Sin(2*math.Pi*frequency*float64(i)/float64(sampleRate))
	}
	return &Audio{SampleRate: sampleRate, Samples: samples}
}

// Silence returns a zero signal of the given duration (s).
func Silence(sampleRate int, seconds float64) *Audio {
	return &Audio{SampleRate: sampleRate, Samples: make([]float64, int(seconds*float64(sampleRate)))}
}

// Noise returns uniform white noise in [-amplitude, amplitude]. The same
// seed always yields the same signal.
func Noise(sampleRate int, amplitude, seconds float64, seed uint64) *Audio {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	samples := make([]float64, int(seconds*float64(sampleRate)))
	for i := range samples {
		samples[i] = amplitude * (2*rng.Float64() - 1)
	}
	return &Audio{SampleRate: sampleRate, Samples: samples}
}

// Mix sums signals sample by sample. The result has the sample rate of the
// first signal and the length of the shortest.
func Mix(signals ...*Audio) *Audio {
	if len(signals) == 0 {
		return &Audio{}
	}
	n := len(signals[0].Samples)
	for _, s := range signals[1:] {
		n = min(n, len(s.Samples))
	}
	out := make([]float64, n)
	for _, s := range signals {
		for i := range out {
			out[i] += s.Samples[i]
		}
	}
	return &Audio{SampleRate: signals[0].SampleRate, Samples: out}
}
