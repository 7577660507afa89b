package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	assert.NoError(t, p.Validate())
	assert.Equal(t, 0.01, p.TimeStep)
	assert.Equal(t, 75.0, p.PitchFloor)
	assert.Equal(t, 600.0, p.PitchCeiling)
	assert.Equal(t, 1.3, p.MaxPeriodFactor)
	assert.Equal(t, 1.6, p.MaxAmplitudeFactor)
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(p *Params)
	}{
		{"zero time step", func(p *Params) { p.TimeStep = 0 }},
		{"inverted pitch range", func(p *Params) { p.PitchCeiling = 50 }},
		{"zero period floor", func(p *Params) { p.PeriodFloor = 0 }},
		{"period factor below one", func(p *Params) { p.MaxPeriodFactor = 0.9 }},
		{"amplitude factor below one", func(p *Params) { p.MaxAmplitudeFactor = 0.5 }},
		{"silence threshold of one", func(p *Params) { p.SilenceThreshold = 1 }},
		{"zero periods per window", func(p *Params) { p.PeriodsPerWindow = 0 }},
		{"voicing threshold of one", func(p *Params) { p.VoicingThreshold = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.modify(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidParams)
		})
	}
}
