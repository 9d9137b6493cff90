// Package residual anchors predicted log-F0 to the musical score: the model
// predicts a bounded deviation that is added to the score pitch in the
// natural log-frequency domain.
package residual

import (
	"fmt"
	"math"

	"github.com/maastricht-university/svs-acoustic/features"
)

// Params locates log-F0 in the input and output vectors and carries the
// statistics used to (de)normalize it.
type Params struct {
	InIndex          int     `yaml:"in_index" mapstructure:"in_index" json:"in_index"`
	InMin            float64 `yaml:"in_min" mapstructure:"in_min" json:"in_min"`
	InMax            float64 `yaml:"in_max" mapstructure:"in_max" json:"in_max"`
	OutIndex         int     `yaml:"out_index" mapstructure:"out_index" json:"out_index"`
	OutMean          float64 `yaml:"out_mean" mapstructure:"out_mean" json:"out_mean"`
	OutScale         float64 `yaml:"out_scale" mapstructure:"out_scale" json:"out_scale"`
	MaxResidualCents float64 `yaml:"max_residual_cents" mapstructure:"max_residual_cents" json:"max_residual_cents"`
}

// DefaultParams puts score log-F0 at input column 300 and predicted log-F0
// right after a 180-wide spectral stream.
func DefaultParams() Params {
	return Params{
		InIndex:          300,
		InMin:            5.3936276,
		InMax:            6.491111,
		OutIndex:         180,
		OutMean:          5.953093881972361,
		OutScale:         0.23435173188961034,
		MaxResidualCents: 600,
	}
}

// Adopt takes the input location and normalization statistics from shared
// while keeping p's own output index and residual limit. The output index is
// a property of the predictor's stream layout, the statistics are not.
func (p Params) Adopt(shared Params) Params {
	shared.OutIndex = p.OutIndex
	shared.MaxResidualCents = p.MaxResidualCents
	return shared
}

// MaxRatio is the residual limit in natural-log units.
func (p Params) MaxRatio() float64 {
	return p.MaxResidualCents * math.Ln2 / 1200
}

// Denormalize maps a min-max normalized score pitch back to log-F0.
func (p Params) Denormalize(v float64) float64 {
	return v*(p.InMax-p.InMin) + p.InMin
}

// Normalize maps log-F0 to the output's mean/scale normalization.
func (p Params) Normalize(lf0 float64) float64 {
	return (lf0 - p.OutMean) / p.OutScale
}

// Bound squashes a raw residual into (-maxRatio, maxRatio).
func Bound(raw, maxRatio float64) float64 {
	return maxRatio * math.Tanh(raw)
}

func (p Params) check(in *features.Batch, outDim int) error {
	if err := in.Validate(); err != nil {
		return err
	}
	if p.InIndex < 0 || p.InIndex >= in.D {
		return fmt.Errorf("input log-F0 index %d outside %d columns: %w", p.InIndex, in.D, features.ErrShape)
	}
	if p.OutIndex < 0 || p.OutIndex >= outDim {
		return fmt.Errorf("output log-F0 index %d outside %d columns: %w", p.OutIndex, outDim, features.ErrShape)
	}
	if p.OutScale == 0 {
		return fmt.Errorf("zero output log-F0 scale: %w", features.ErrShape)
	}
	return nil
}

// Correct replaces column OutIndex of raw with the score pitch plus the
// bounded residual read from that same column, renormalized. Every other
// column is copied unchanged. The bounded residual is returned as a
// batch × time × 1 array.
func Correct(in, raw *features.Batch, p Params) (corrected, bounded *features.Batch, err error) {
	if err := raw.Validate(); err != nil {
		return nil, nil, err
	}
	if err := p.check(in, raw.D); err != nil {
		return nil, nil, err
	}
	if in.B != raw.B || in.T != raw.T {
		return nil, nil, fmt.Errorf("input %dx%d, output %dx%d: %w", in.B, in.T, raw.B, raw.T, features.ErrShape)
	}

	corrected = raw.Clone()
	corrected.ZeroPadding()
	bounded = features.NewBatch(raw.B, raw.T, 1)
	bounded.Lengths = raw.Lengths
	maxRatio := p.MaxRatio()
	for b := 0; b < raw.B; b++ {
		for t := 0; t < raw.Valid(b); t++ {
			score := p.Denormalize(in.At(b, t, p.InIndex))
			r := Bound(raw.At(b, t, p.OutIndex), maxRatio)
			bounded.Set(b, t, 0, r)
			corrected.Set(b, t, p.OutIndex, p.Normalize(score+r))
		}
	}
	return corrected, bounded, nil
}

// CorrectMixture applies Correct to the means of every mixture component.
// The bounded residual is returned as batch × time × K.
func CorrectMixture(in *features.Batch, m *features.Mixture, p Params) (corrected *features.Mixture, bounded *features.Batch, err error) {
	if err := m.Validate(); err != nil {
		return nil, nil, err
	}
	if err := p.check(in, m.D); err != nil {
		return nil, nil, err
	}
	if in.B != m.B || in.T != m.T {
		return nil, nil, fmt.Errorf("input %dx%d, mixture %dx%d: %w", in.B, in.T, m.B, m.T, features.ErrShape)
	}

	corrected = m.Clone()
	corrected.ZeroPadding()
	bounded = features.NewBatch(m.B, m.T, m.K)
	bounded.Lengths = m.Lengths
	maxRatio := p.MaxRatio()
	for b := 0; b < m.B; b++ {
		for t := 0; t < m.Valid(b); t++ {
			score := p.Denormalize(in.At(b, t, p.InIndex))
			for k := 0; k < m.K; k++ {
				i := m.Param(b, t, k, p.OutIndex)
				r := Bound(m.Means[i], maxRatio)
				bounded.Set(b, t, k, r)
				corrected.Means[i] = p.Normalize(score + r)
			}
		}
	}
	return corrected, bounded, nil
}
