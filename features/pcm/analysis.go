package pcm

import (
	"math"

	"github.com/poiesic/voxbank/features"
)

// Candidates within this fraction of the strongest correlation peak are
// treated as equally good; the shortest lag among them wins, which avoids
// picking a multiple of the true period.
const octaveTolerance = 0.97

// Correlations this close to 1 are clipped so HNR stays finite.
const maxCorrelation = 1 - 1e-9

// frame is one analysis window on the fixed time grid.
type frame struct {
	start  int     // first sample
	lag    float64 // best period in samples, 0 if none
	r      float64 // normalized correlation at lag
	peak   float64 // largest absolute sample in the window
	voiced bool
}

// pulse is one glottal pulse mark.
type pulse struct {
	time      float64 // seconds
	amplitude float64
	run       int // index of the voiced run the pulse belongs to
}

// grid holds the sample-domain sizes derived from Params.
type grid struct {
	step   int
	width  int
	minLag int
	maxLag int
}

func newGrid(p features.Params, sampleRate int) grid {
	sr := float64(sampleRate)
	g := grid{
		step:   max(1, int(math.Round(p.TimeStep*sr))),
		width:  max(2, int(math.Round(p.PeriodsPerWindow*sr/p.PitchFloor))),
		minLag: max(2, int(math.Floor(sr/p.PitchCeiling))),
		maxLag: int(math.Ceil(sr / p.PitchFloor)),
	}
	if g.maxLag <= g.minLag+1 {
		g.maxLag = g.minLag + 2
	}
	return g
}

// span is the number of samples a single frame reads.
func (g grid) span() int {
	return g.width + g.maxLag + 1
}

// analyzeFrames runs the correlation tracker over the whole signal.
func analyzeFrames(x []float64, g grid, p features.Params) []frame {
	var globalPeak float64
	for _, v := range x {
		globalPeak = max(globalPeak, math.Abs(v))
	}

	count := (len(x)-g.span())/g.step + 1
	frames := make([]frame, count)
	for k := range frames {
		f := &frames[k]
		f.start = k * g.step
		for _, v := range x[f.start : f.start+g.width] {
			f.peak = max(f.peak, math.Abs(v))
		}
		if f.peak == 0 || f.peak < p.SilenceThreshold*globalPeak {
			continue
		}
		f.lag, f.r = bestLag(x, f.start, g)
		f.voiced = f.lag > 0 && f.r > p.VoicingThreshold
	}
	return frames
}

// correlate returns the normalized cross-correlation between the window at
// start and the same window shifted by lag.
func correlate(x []float64, start, width, lag int) float64 {
	var xy, xx, yy float64
	for i := start; i < start+width; i++ {
		a, b := x[i], x[i+lag]
		xy += a * b
		xx += a * a
		yy += b * b
	}
	if xx == 0 || yy == 0 {
		return 0
	}
	return xy / math.Sqrt(xx*yy)
}

// bestLag finds the period of the window at start. Returns a zero lag when
// no correlation peak exists in the lag range.
func bestLag(x []float64, start int, g grid) (float64, float64) {
	rs := make([]float64, g.maxLag+2)
	for lag := g.minLag - 1; lag <= g.maxLag+1; lag++ {
		rs[lag] = correlate(x, start, g.width, lag)
	}

	var strongest float64
	for lag := g.minLag; lag <= g.maxLag; lag++ {
		if isPeak(rs, lag) {
			strongest = max(strongest, rs[lag])
		}
	}
	if strongest <= 0 {
		return 0, 0
	}

	for lag := g.minLag; lag <= g.maxLag; lag++ {
		if !isPeak(rs, lag) || rs[lag] < octaveTolerance*strongest {
			continue
		}
		delta, r := interpolate(rs[lag-1], rs[lag], rs[lag+1])
		return float64(lag) + delta, min(r, 1)
	}
	return 0, 0
}

func isPeak(rs []float64, i int) bool {
	return rs[i] > 0 && rs[i] >= rs[i-1] && rs[i] > rs[i+1]
}

// interpolate fits a parabola through three equally spaced points and
// returns the vertex offset from the middle point and its value.
func interpolate(a, b, c float64) (float64, float64) {
	denom := a - 2*b + c
	if denom >= 0 {
		return 0, b
	}
	delta := 0.5 * (a - c) / denom
	if math.Abs(delta) > 1 {
		return 0, b
	}
	return delta, b - 0.25*(a-c)*delta
}

// meanPitch averages F0 over voiced frames.
func meanPitch(frames []frame, sampleRate int) (float64, bool) {
	var sum float64
	var n int
	for _, f := range frames {
		if f.voiced {
			sum += float64(sampleRate) / f.lag
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// meanHNR averages 10*log10(r/(1-r)) over voiced frames.
func meanHNR(frames []frame) (float64, bool) {
	var sum float64
	var n int
	for _, f := range frames {
		if !f.voiced {
			continue
		}
		r := min(f.r, maxCorrelation)
		sum += 10 * math.Log10(r/(1-r))
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// markPulses places one pulse per period inside every run of voiced frames.
// Each pulse sits on the signal extremum nearest to one period after the
// previous pulse.
func markPulses(x []float64, frames []frame, g grid, sampleRate int) []pulse {
	var pulses []pulse
	run := 0
	for a := 0; a < len(frames); {
		if !frames[a].voiced {
			a++
			continue
		}
		b := a
		for b+1 < len(frames) && frames[b+1].voiced {
			b++
		}
		pulses = append(pulses, markRun(x, frames[a:b+1], g, sampleRate, run)...)
		run++
		a = b + 1
	}
	return pulses
}

func markRun(x []float64, run []frame, g grid, sampleRate int, id int) []pulse {
	begin := run[0].start
	end := min(len(x), run[len(run)-1].start+g.width+int(run[len(run)-1].lag))

	periodAt := func(pos float64) float64 {
		k := int((pos - float64(begin) - float64(g.width)/2) / float64(g.step))
		k = max(0, min(len(run)-1, k))
		return run[k].lag
	}

	// The first pulse is the largest excursion within one period; its sign
	// fixes the polarity for the rest of the run.
	first := begin
	for i := begin; i < min(end, begin+int(math.Ceil(run[0].lag))); i++ {
		if math.Abs(x[i]) > math.Abs(x[first]) {
			first = i
		}
	}
	polarity := 1.0
	if x[first] < 0 {
		polarity = -1
	}

	var pulses []pulse
	idx := first
	for {
		delta, amp := refinePeak(x, idx, polarity)
		pos := float64(idx) + delta
		pulses = append(pulses, pulse{
			time:      pos / float64(sampleRate),
			amplitude: math.Abs(amp),
			run:       id,
		})

		period := periodAt(pos)
		lo := int(math.Ceil(pos + 0.8*period))
		hi := int(math.Floor(pos + 1.2*period))
		// A search window cut by the end of the run would pick a slope
		// instead of the next peak.
		if hi >= end {
			break
		}
		idx = lo
		for i := lo; i <= hi; i++ {
			if polarity*x[i] > polarity*x[idx] {
				idx = i
			}
		}
	}
	return pulses
}

// refinePeak interpolates the extremum at i. Returns the sub-sample offset
// and the signed peak value.
func refinePeak(x []float64, i int, polarity float64) (float64, float64) {
	if i <= 0 || i >= len(x)-1 {
		return 0, x[i]
	}
	delta, v := interpolate(polarity*x[i-1], polarity*x[i], polarity*x[i+1])
	return delta, polarity * v
}

// jitterLocal is the mean absolute difference between consecutive periods
// divided by the mean period.
func jitterLocal(pulses []pulse, p features.Params) (float64, bool) {
	var diffSum, periodSum float64
	var diffs, periods int

	prev := 0.0
	for i := 1; i < len(pulses); i++ {
		if pulses[i].run != pulses[i-1].run {
			prev = 0
			continue
		}
		t := pulses[i].time - pulses[i-1].time
		if t < p.PeriodFloor || t > p.PeriodCeiling {
			prev = 0
			continue
		}
		periodSum += t
		periods++
		if prev > 0 && max(t, prev)/min(t, prev) <= p.MaxPeriodFactor {
			diffSum += math.Abs(t - prev)
			diffs++
		}
		prev = t
	}
	if diffs == 0 || periods < 2 {
		return 0, false
	}
	return (diffSum / float64(diffs)) / (periodSum / float64(periods)), true
}

// shimmerLocal is the mean absolute difference between consecutive pulse
// amplitudes divided by the mean amplitude.
func shimmerLocal(pulses []pulse, p features.Params) (float64, bool) {
	var diffSum, ampSum float64
	var pairs int

	for i := 1; i < len(pulses); i++ {
		a, b := pulses[i-1], pulses[i]
		if a.run != b.run {
			continue
		}
		t := b.time - a.time
		if t < p.PeriodFloor || t > p.PeriodCeiling {
			continue
		}
		if a.amplitude <= 0 || b.amplitude <= 0 {
			continue
		}
		if max(a.amplitude, b.amplitude)/min(a.amplitude, b.amplitude) > p.MaxAmplitudeFactor {
			continue
		}
		diffSum += math.Abs(b.amplitude - a.amplitude)
		ampSum += (a.amplitude + b.amplitude) / 2
		pairs++
	}
	if pairs == 0 || ampSum == 0 {
		return 0, false
	}
	return diffSum / ampSum, true
}
