package orchestrator

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/maastricht-university/svs-acoustic/features"
	"github.com/maastricht-university/svs-acoustic/predictor"
	"github.com/maastricht-university/svs-acoustic/residual"
	"github.com/maastricht-university/svs-acoustic/stream"
)

// Composer predicts energy, pitch and timbre with separate predictors and
// merges them into one acoustic feature vector.
type Composer struct {
	energy, pitch, timbre Branch
	params                residual.Params
	layout                stream.Layout
	log                   *logrus.Entry
}

// NewComposer checks every branch layout against its predictor. The energy
// branch needs at least one stream, pitch two to four
// (lf0, vuv[, vibrato[, vibrato flag]]) and timbre exactly two
// (spectral envelope, aperiodicity).
//
// params is the shared log-F0 normalization handed to the pitch predictor on
// every call.
func NewComposer(energy, pitch, timbre Branch, params residual.Params, log *logrus.Entry) (*Composer, error) {
	if energy.Name == "" {
		energy.Name = "energy"
	}
	if pitch.Name == "" {
		pitch.Name = "pitch"
	}
	if timbre.Name == "" {
		timbre.Name = "timbre"
	}
	if err := checkBranch(energy, 1, -1); err != nil {
		return nil, err
	}
	if err := checkBranch(pitch, 2, 4); err != nil {
		return nil, err
	}
	if err := checkBranch(timbre, 2, 2); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Composer{
		energy: energy,
		pitch:  pitch,
		timbre: timbre,
		params: params,
		layout: outputLayout(energy.Layout, pitch.Layout, timbre.Layout),
		log:    log.WithField("component", "composer"),
	}, nil
}

// Layout is the stream layout of the composed vector.
func (c *Composer) Layout() stream.Layout { return c.layout }

// Infer returns only the composed feature vector.
func (c *Composer) Infer(ctx context.Context, in *features.Batch) (*features.Batch, error) {
	res, err := c.Compose(ctx, in)
	if err != nil {
		return nil, err
	}
	return res.Features, nil
}

// Compose runs the three predictors concurrently and stitches their streams.
func (c *Composer) Compose(ctx context.Context, in *features.Batch) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	log := c.log.WithFields(logrus.Fields{"batch": in.B, "frames": in.T})

	// the pitch request is built before any predictor starts
	shared := c.params
	requests := [3]predictor.Request{
		{Input: in},
		{Input: in, Pitch: &shared},
		{Input: in},
	}
	branches := [3]Branch{c.energy, c.pitch, c.timbre}
	var outs [3]branchOutput

	g, gctx := errgroup.WithContext(ctx)
	for i := range branches {
		i := i
		g.Go(func() error {
			out, err := c.run(gctx, branches[i], requests[i])
			if err != nil {
				return err
			}
			outs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.WithError(err).Error("composition failed")
		return nil, err
	}
	energy, pitch, timbre := outs[0], outs[1], outs[2]

	feats, err := stitch(energy.streams, pitch.streams, timbre.streams, c.layout)
	if err != nil {
		return nil, err
	}
	res := &Result{Features: feats, LF0Residual: pitch.residual, Layout: c.layout}
	if energy.variance != nil && pitch.variance != nil && timbre.variance != nil {
		if res.Variance, err = stitch(energy.variance, pitch.variance, timbre.variance, c.layout); err != nil {
			return nil, err
		}
	}
	log.WithField("dim", feats.D).Debug("composed acoustic features")
	return res, nil
}

func (c *Composer) run(ctx context.Context, b Branch, req predictor.Request) (branchOutput, error) {
	log := c.log.WithField("stream", b.Name)
	out, err := b.Predictor.Infer(ctx, req)
	if err != nil {
		return branchOutput{}, fmt.Errorf("%s predictor: %w", b.Name, err)
	}
	if out.Trajectory == nil {
		return branchOutput{}, fmt.Errorf("%s predictor returned no trajectory: %w", b.Name, features.ErrShape)
	}
	if out.Trajectory.B != req.Input.B || out.Trajectory.T != req.Input.T {
		return branchOutput{}, fmt.Errorf("%s predictor returned %dx%d for input %dx%d: %w",
			b.Name, out.Trajectory.B, out.Trajectory.T, req.Input.B, req.Input.T, features.ErrShape)
	}
	streams, err := stream.Split(out.Trajectory, b.Layout)
	if err != nil {
		return branchOutput{}, fmt.Errorf("%s predictor: %w", b.Name, err)
	}
	res := branchOutput{streams: streams, residual: out.Residual}
	if out.Variance != nil {
		if res.variance, err = stream.Split(out.Variance, b.Layout); err != nil {
			return branchOutput{}, fmt.Errorf("%s variance: %w", b.Name, err)
		}
	}
	log.WithField("type", b.Predictor.PredictionType()).Debug("branch inferred")
	return res, nil
}
