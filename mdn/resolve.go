// Package mdn collapses Gaussian mixture predictions to a single trajectory.
package mdn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/maastricht-university/svs-acoustic/features"
)

// MostProbable returns the index of the largest log weight. Ties go to the
// lowest component index.
func MostProbable(logWeights []float64) int {
	return floats.MaxIdx(logWeights)
}

// Resolve picks, for every valid (batch, time) position, the component with
// the highest weight and returns its variance (scale squared) and mean.
// Dim-wise mixtures are resolved independently per output dimension.
// Padded frames are left zero.
func Resolve(m *features.Mixture) (variance, mean *features.Batch, err error) {
	if err := m.Validate(); err != nil {
		return nil, nil, fmt.Errorf("resolve: %w", err)
	}
	variance = features.NewBatch(m.B, m.T, m.D)
	mean = features.NewBatch(m.B, m.T, m.D)
	if m.Lengths != nil {
		variance.Lengths = append([]int(nil), m.Lengths...)
		mean.Lengths = append([]int(nil), m.Lengths...)
	}

	w := make([]float64, m.K)
	for b := 0; b < m.B; b++ {
		for t := 0; t < m.Valid(b); t++ {
			if !m.DimWise {
				for k := range w {
					w[k] = m.LogWeights[m.Weight(b, t, k, 0)]
				}
				best := MostProbable(w)
				for d := 0; d < m.D; d++ {
					pick(m, variance, mean, b, t, best, d)
				}
				continue
			}
			for d := 0; d < m.D; d++ {
				for k := range w {
					w[k] = m.LogWeights[m.Weight(b, t, k, d)]
				}
				pick(m, variance, mean, b, t, MostProbable(w), d)
			}
		}
	}
	return variance, mean, nil
}

func pick(m *features.Mixture, variance, mean *features.Batch, b, t, k, d int) {
	i := m.Param(b, t, k, d)
	scale := math.Exp(m.LogScales[i])
	variance.Set(b, t, d, scale*scale)
	mean.Set(b, t, d, m.Means[i])
}
