package predictor

import (
	"context"
	"errors"
	"fmt"

	"github.com/maastricht-university/svs-acoustic/features"
	"github.com/maastricht-university/svs-acoustic/mdn"
	"github.com/maastricht-university/svs-acoustic/residual"
	"github.com/maastricht-university/svs-acoustic/sar"
)

// Model is a Predictor built from a Network and optional post-processing.
type Model struct {
	net     Network
	outDim  int
	mixture bool
	dimWise bool
	bank    *sar.FilterBank
	pitch   *residual.Params
}

type Option func(*Model) error

// WithMixture marks the network as emitting Gaussian mixtures.
func WithMixture(dimWise bool) Option {
	return func(m *Model) error {
		m.mixture = true
		m.dimWise = dimWise
		return nil
	}
}

// WithShallowAR post-filters inferred trajectories through bank. The bank's
// layout must span the whole output.
func WithShallowAR(bank *sar.FilterBank) Option {
	return func(m *Model) error {
		if bank == nil {
			return errors.New("nil filter bank")
		}
		if err := bank.Layout().Check(m.outDim); err != nil {
			return fmt.Errorf("shallow AR: %w", err)
		}
		m.bank = bank
		return nil
	}
}

// WithResidualF0 treats column p.OutIndex of the network output as a log-F0
// residual relative to the score pitch.
func WithResidualF0(p residual.Params) Option {
	return func(m *Model) error {
		if p.OutIndex < 0 || p.OutIndex >= m.outDim {
			return fmt.Errorf("residual log-F0 index %d outside %d columns: %w", p.OutIndex, m.outDim, features.ErrShape)
		}
		m.pitch = &p
		return nil
	}
}

func New(net Network, outDim int, opts ...Option) (*Model, error) {
	if net == nil {
		return nil, errors.New("nil network")
	}
	if outDim <= 0 {
		return nil, fmt.Errorf("output dimension %d: %w", outDim, features.ErrShape)
	}
	m := &Model{net: net, outDim: outDim}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Model) PredictionType() Type {
	if m.mixture {
		return Probabilistic
	}
	return Deterministic
}

func (m *Model) OutDim() int { return m.outDim }

// ResidualF0 reports the model's own log-F0 parameters, if it corrects pitch.
func (m *Model) ResidualF0() (residual.Params, bool) {
	if m.pitch == nil {
		return residual.Params{}, false
	}
	return *m.pitch, true
}

// Forward runs the network and applies residual log-F0 correction. It
// returns the raw mixture for probabilistic models.
func (m *Model) Forward(ctx context.Context, req Request) (Output, error) {
	if err := req.Input.Validate(); err != nil {
		return Output{}, fmt.Errorf("input: %w", err)
	}
	out, err := m.net.Run(ctx, req.Input)
	if err != nil {
		return Output{}, err
	}
	if err := m.checkOutput(&out, req.Input); err != nil {
		return Output{}, err
	}
	if m.pitch == nil {
		return out, nil
	}

	p := *m.pitch
	if req.Pitch != nil {
		p = p.Adopt(*req.Pitch)
	}
	if m.mixture {
		out.Mixture, out.Residual, err = residual.CorrectMixture(req.Input, out.Mixture, p)
	} else {
		out.Trajectory, out.Residual, err = residual.Correct(req.Input, out.Trajectory, p)
	}
	if err != nil {
		return Output{}, fmt.Errorf("residual log-F0: %w", err)
	}
	return out, nil
}

// Infer runs Forward, resolves mixtures to their most probable component
// and applies the shallow-AR synthesis filter to the resulting trajectory.
func (m *Model) Infer(ctx context.Context, req Request) (Output, error) {
	out, err := m.Forward(ctx, req)
	if err != nil {
		return Output{}, err
	}
	if m.mixture {
		out.Variance, out.Trajectory, err = mdn.Resolve(out.Mixture)
		if err != nil {
			return Output{}, err
		}
		out.Mixture = nil
	}
	if m.bank != nil {
		if out.Trajectory, err = m.bank.Synthesize(out.Trajectory); err != nil {
			return Output{}, fmt.Errorf("shallow AR: %w", err)
		}
	}
	return out, nil
}

// PreprocessTarget maps a ground-truth trajectory to the filtered target a
// shallow-AR model is trained against. Models without a filter bank return
// the target unchanged.
func (m *Model) PreprocessTarget(y *features.Batch) (*features.Batch, error) {
	if m.bank == nil {
		return y, nil
	}
	return m.bank.AnalyzeAll(y)
}

func (m *Model) checkOutput(out *Output, in *features.Batch) error {
	if m.mixture {
		if out.Mixture == nil {
			return fmt.Errorf("probabilistic network returned no mixture: %w", features.ErrShape)
		}
		if err := out.Mixture.Validate(); err != nil {
			return err
		}
		if out.Mixture.D != m.outDim || out.Mixture.DimWise != m.dimWise {
			return fmt.Errorf("mixture of width %d (dim-wise %v), want %d (dim-wise %v): %w",
				out.Mixture.D, out.Mixture.DimWise, m.outDim, m.dimWise, features.ErrShape)
		}
		if out.Mixture.B != in.B || out.Mixture.T != in.T {
			return fmt.Errorf("mixture %dx%d for input %dx%d: %w", out.Mixture.B, out.Mixture.T, in.B, in.T, features.ErrShape)
		}
		if out.Mixture.Lengths == nil {
			out.Mixture.Lengths = in.Lengths
		}
		return nil
	}
	if out.Trajectory == nil {
		return fmt.Errorf("deterministic network returned no trajectory: %w", features.ErrShape)
	}
	if err := out.Trajectory.Validate(); err != nil {
		return err
	}
	if out.Trajectory.D != m.outDim {
		return fmt.Errorf("trajectory of width %d, want %d: %w", out.Trajectory.D, m.outDim, features.ErrShape)
	}
	if out.Trajectory.B != in.B || out.Trajectory.T != in.T {
		return fmt.Errorf("trajectory %dx%d for input %dx%d: %w", out.Trajectory.B, out.Trajectory.T, in.B, in.T, features.ErrShape)
	}
	if out.Trajectory.Lengths == nil {
		out.Trajectory.Lengths = in.Lengths
	}
	return nil
}
