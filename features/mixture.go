package features

import (
	"encoding/json"
	"fmt"
)

// Mixture is a batch × time grid of K-component diagonal Gaussian mixtures
// over D output dimensions.
//
// Means and LogScales are laid out [b][t][k][d]. LogWeights is [b][t][k] for a
// shared mixture and [b][t][k][d] when DimWise is set.
type Mixture struct {
	B, T, K, D int
	DimWise    bool
	LogWeights []float64
	LogScales  []float64
	Means      []float64
	Lengths    []int
}

func NewMixture(b, t, k, d int, dimWise bool) *Mixture {
	nw := b * t * k
	if dimWise {
		nw *= d
	}
	return &Mixture{
		B: b, T: t, K: k, D: d,
		DimWise:    dimWise,
		LogWeights: make([]float64, nw),
		LogScales:  make([]float64, b*t*k*d),
		Means:      make([]float64, b*t*k*d),
	}
}

func (m *Mixture) Valid(b int) int {
	if m.Lengths == nil {
		return m.T
	}
	return m.Lengths[b]
}

// Param returns the offset of (b, t, k, d) in Means and LogScales.
func (m *Mixture) Param(b, t, k, d int) int { return ((b*m.T+t)*m.K+k)*m.D + d }

// Weight returns the offset of the log weight for (b, t, k, d); d is ignored
// for shared mixtures.
func (m *Mixture) Weight(b, t, k, d int) int {
	if m.DimWise {
		return m.Param(b, t, k, d)
	}
	return (b*m.T+t)*m.K + k
}

// ZeroPadding clears every parameter of the frames past each element's valid
// length.
func (m *Mixture) ZeroPadding() {
	for b := 0; b < m.B; b++ {
		for t := m.Valid(b); t < m.T; t++ {
			clear(m.Means[m.Param(b, t, 0, 0):m.Param(b, t+1, 0, 0)])
			clear(m.LogScales[m.Param(b, t, 0, 0):m.Param(b, t+1, 0, 0)])
			clear(m.LogWeights[m.Weight(b, t, 0, 0):m.Weight(b, t+1, 0, 0)])
		}
	}
}

// PadTo returns m extended with zero frames to t steps.
func (m *Mixture) PadTo(t int) (*Mixture, error) {
	if t < m.T {
		return nil, fmt.Errorf("pad %d steps to %d: %w", m.T, t, ErrShape)
	}
	if t == m.T {
		return m, nil
	}
	if m.Lengths == nil {
		return nil, fmt.Errorf("pad %d steps to %d without lengths: %w", m.T, t, ErrShape)
	}
	out := NewMixture(m.B, t, m.K, m.D, m.DimWise)
	out.Lengths = append([]int(nil), m.Lengths...)
	for b := 0; b < m.B; b++ {
		p, q := m.Param(b, 0, 0, 0), m.Param(b, m.T, 0, 0)
		copy(out.Means[out.Param(b, 0, 0, 0):], m.Means[p:q])
		copy(out.LogScales[out.Param(b, 0, 0, 0):], m.LogScales[p:q])
		copy(out.LogWeights[out.Weight(b, 0, 0, 0):], m.LogWeights[m.Weight(b, 0, 0, 0):m.Weight(b, m.T, 0, 0)])
	}
	return out, nil
}

func (m *Mixture) Validate() error {
	if m == nil {
		return fmt.Errorf("nil mixture: %w", ErrShape)
	}
	if m.K < 1 {
		return fmt.Errorf("mixture with %d components: %w", m.K, ErrShape)
	}
	n := m.B * m.T * m.K * m.D
	nw := m.B * m.T * m.K
	if m.DimWise {
		nw = n
	}
	if len(m.Means) != n || len(m.LogScales) != n {
		return fmt.Errorf("mixture %dx%dx%dx%d holds %d means, %d scales: %w",
			m.B, m.T, m.K, m.D, len(m.Means), len(m.LogScales), ErrShape)
	}
	if len(m.LogWeights) != nw {
		return fmt.Errorf("mixture holds %d weights, want %d: %w", len(m.LogWeights), nw, ErrShape)
	}
	if m.Lengths != nil && len(m.Lengths) != m.B {
		return fmt.Errorf("%d lengths for batch of %d: %w", len(m.Lengths), m.B, ErrShape)
	}
	for _, l := range m.Lengths {
		if l < 0 || l > m.T {
			return fmt.Errorf("length %d outside [0, %d]: %w", l, m.T, ErrShape)
		}
	}
	return nil
}

func (m *Mixture) Clone() *Mixture {
	out := *m
	out.LogWeights = append([]float64(nil), m.LogWeights...)
	out.LogScales = append([]float64(nil), m.LogScales...)
	out.Means = append([]float64(nil), m.Means...)
	if m.Lengths != nil {
		out.Lengths = append([]int(nil), m.Lengths...)
	}
	return &out
}

type mixtureJSON struct {
	Components int       `json:"num_gaussians"`
	Dim        int       `json:"dim"`
	Batch      int       `json:"batch"`
	Frames     int       `json:"frames"`
	DimWise    bool      `json:"dim_wise"`
	LogPi      []float64 `json:"log_pi"`
	LogSigma   []float64 `json:"log_sigma"`
	Mu         []float64 `json:"mu"`
	Lengths    []int     `json:"lengths,omitempty"`
}

// MarshalJSON writes the flat arrays together with their shape so a remote
// inference service and this package agree on the layout.
func (m *Mixture) MarshalJSON() ([]byte, error) {
	return json.Marshal(mixtureJSON{
		Components: m.K, Dim: m.D, Batch: m.B, Frames: m.T, DimWise: m.DimWise,
		LogPi: m.LogWeights, LogSigma: m.LogScales, Mu: m.Means, Lengths: m.Lengths,
	})
}

func (m *Mixture) UnmarshalJSON(p []byte) error {
	var raw mixtureJSON
	if err := json.Unmarshal(p, &raw); err != nil {
		return err
	}
	out := Mixture{
		B: raw.Batch, T: raw.Frames, K: raw.Components, D: raw.Dim, DimWise: raw.DimWise,
		LogWeights: raw.LogPi, LogScales: raw.LogSigma, Means: raw.Mu, Lengths: raw.Lengths,
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*m = out
	return nil
}
