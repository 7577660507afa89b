package features

import "fmt"

// Params holds the voice analysis parameters shared by analyzers.
type Params struct {
	TimeStep           float64 // analysis frame spacing (s)
	PitchFloor         float64 // lowest accepted F0 (Hz)
	PitchCeiling       float64 // highest accepted F0 (Hz)
	PeriodFloor        float64 // shortest period used for jitter/shimmer (s)
	PeriodCeiling      float64 // longest period used for jitter/shimmer (s)
	MaxPeriodFactor    float64 // largest ratio between consecutive periods
	MaxAmplitudeFactor float64 // largest ratio between consecutive amplitudes
	SilenceThreshold   float64 // frames quieter than this fraction of the peak are silent
	PeriodsPerWindow   float64 // harmonicity window length in pitch-floor periods
	VoicingThreshold   float64 // minimum correlation for a voiced frame
}

// DefaultParams returns the standard analysis parameters.
func DefaultParams() Params {
	return Params{
		TimeStep:           0.01,
		PitchFloor:         75,
		PitchCeiling:       600,
		PeriodFloor:        0.0001,
		PeriodCeiling:      0.02,
		MaxPeriodFactor:    1.3,
		MaxAmplitudeFactor: 1.6,
		SilenceThreshold:   0.1,
		PeriodsPerWindow:   1.0,
		VoicingThreshold:   0.45,
	}
}

// Validate checks that the parameters describe a usable analysis.
func (p Params) Validate() error {
	if p.TimeStep <= 0 {
		return fmt.Errorf("%w: time step must be positive, got %v", ErrInvalidParams, p.TimeStep)
	}
	if p.PitchFloor <= 0 || p.PitchCeiling <= p.PitchFloor {
		return fmt.Errorf("%w: pitch range [%v, %v]", ErrInvalidParams, p.PitchFloor, p.PitchCeiling)
	}
	if p.PeriodFloor <= 0 || p.PeriodCeiling <= p.PeriodFloor {
		return fmt.Errorf("%w: period range [%v, %v]", ErrInvalidParams, p.PeriodFloor, p.PeriodCeiling)
	}
	if p.MaxPeriodFactor < 1 {
		return fmt.Errorf("%w: max period factor must be at least 1, got %v", ErrInvalidParams, p.MaxPeriodFactor)
	}
	if p.MaxAmplitudeFactor < 1 {
		return fmt.Errorf("%w: max amplitude factor must be at least 1, got %v", ErrInvalidParams, p.MaxAmplitudeFactor)
	}
	if p.SilenceThreshold < 0 || p.SilenceThreshold >= 1 {
		return fmt.Errorf("%w: silence threshold must be in [0, 1), got %v", ErrInvalidParams, p.SilenceThreshold)
	}
	if p.PeriodsPerWindow <= 0 {
		return fmt.Errorf("%w: periods per window must be positive, got %v", ErrInvalidParams, p.PeriodsPerWindow)
	}
	if p.VoicingThreshold <= 0 || p.VoicingThreshold >= 1 {
		return fmt.Errorf("%w: voicing threshold must be in (0, 1), got %v", ErrInvalidParams, p.VoicingThreshold)
	}
	return nil
}
