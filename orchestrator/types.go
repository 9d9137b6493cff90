package orchestrator

import (
	"github.com/maastricht-university/svs-acoustic/features"
	"github.com/maastricht-university/svs-acoustic/predictor"
	"github.com/maastricht-university/svs-acoustic/stream"
)

// Branch is one sub-predictor of the composer with the layout of its output.
type Branch struct {
	Name      string
	Predictor predictor.Predictor
	Layout    stream.Layout
}

// Result of one composition.
type Result struct {
	Features *features.Batch // flat acoustic features
	Variance *features.Batch // same layout; nil unless every branch reports variance
	// Bounded log-F0 residual from the pitch branch, nil if it does not
	// correct pitch.
	LF0Residual *features.Batch
	Layout      stream.Layout
}

// branchOutput is a branch's inferred output cut into its streams.
type branchOutput struct {
	streams  []*features.Batch
	variance []*features.Batch
	residual *features.Batch
}
