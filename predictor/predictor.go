// Package predictor wraps sequence networks into acoustic predictors.
//
// A predictor is one Model whose capabilities are switched on by options:
// mixture output, shallow-AR post-filtering and residual log-F0 correction.
package predictor

import (
	"context"

	"github.com/maastricht-university/svs-acoustic/features"
	"github.com/maastricht-university/svs-acoustic/residual"
)

// Type tells whether Forward yields a trajectory or a mixture.
type Type int

const (
	Deterministic Type = iota
	Probabilistic
)

func (t Type) String() string {
	if t == Probabilistic {
		return "probabilistic"
	}
	return "deterministic"
}

// Output carries whichever representation a call produced.
type Output struct {
	Trajectory *features.Batch   // deterministic output, or the resolved mean after Infer
	Mixture    *features.Mixture // raw mixture from Forward of a probabilistic predictor
	Variance   *features.Batch   // resolved variance after Infer of a probabilistic predictor
	Residual   *features.Batch   // bounded log-F0 residual, when residual correction ran
}

// Request is the input of one predictor call. Pitch, when set, supplies the
// shared log-F0 location and normalization; a predictor keeps its own output
// index and residual limit.
type Request struct {
	Input *features.Batch
	Pitch *residual.Params
}

type Predictor interface {
	PredictionType() Type
	OutDim() int
	Forward(ctx context.Context, req Request) (Output, error)
	Infer(ctx context.Context, req Request) (Output, error)
}

// Network is the sequence encoder behind a predictor. Run returns either
// Output.Trajectory or Output.Mixture of width OutDim.
type Network interface {
	Run(ctx context.Context, in *features.Batch) (Output, error)
}

type NetworkFunc func(ctx context.Context, in *features.Batch) (Output, error)

func (f NetworkFunc) Run(ctx context.Context, in *features.Batch) (Output, error) { return f(ctx, in) }
