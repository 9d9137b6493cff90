package clients

import (
	"context"
	"fmt"

	"github.com/maastricht-university/svs-acoustic/features"
	"github.com/maastricht-university/svs-acoustic/predictor"
)

// Remote is a predictor.Network served by an inference service.
type Remote struct {
	h   *HTTP
	url string
}

func NewRemote(h *HTTP, url string) *Remote { return &Remote{h: h, url: url} }

func (r *Remote) Run(ctx context.Context, in *features.Batch) (predictor.Output, error) {
	resp, err := r.h.Predict(ctx, r.url, in)
	if err != nil {
		return predictor.Output{}, err
	}
	if resp.Output == nil && resp.Mixture == nil {
		return predictor.Output{}, fmt.Errorf("predict %s: empty response: %w", r.url, features.ErrShape)
	}
	out := predictor.Output{Trajectory: resp.Output, Mixture: resp.Mixture}
	// services may answer with the valid frames only
	if out.Trajectory != nil && out.Trajectory.T < in.T {
		if out.Trajectory, err = out.Trajectory.PadTo(in.T); err != nil {
			return predictor.Output{}, fmt.Errorf("predict %s: %w", r.url, err)
		}
	}
	if out.Mixture != nil && out.Mixture.T < in.T {
		if out.Mixture.Lengths == nil {
			out.Mixture.Lengths = in.Lengths
		}
		if out.Mixture, err = out.Mixture.PadTo(in.T); err != nil {
			return predictor.Output{}, fmt.Errorf("predict %s: %w", r.url, err)
		}
	}
	return out, nil
}

// Check compares what the service reports about itself with the local
// configuration.
func (r *Remote) Check(ctx context.Context, outDim int, probabilistic bool) error {
	info, err := r.h.Info(ctx, r.url)
	if err != nil {
		return err
	}
	if info.OutDim != outDim {
		return fmt.Errorf("%s serves %d dims, configured %d: %w", r.url, info.OutDim, outDim, features.ErrLayoutMismatch)
	}
	if info.Probabilistic != probabilistic {
		return fmt.Errorf("%s probabilistic=%v, configured %v", r.url, info.Probabilistic, probabilistic)
	}
	return nil
}
