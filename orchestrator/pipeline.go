package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/svs-acoustic/clients"
	cfg "github.com/maastricht-university/svs-acoustic/config"
	"github.com/maastricht-university/svs-acoustic/features"
	"github.com/maastricht-university/svs-acoustic/predictor"
	"github.com/maastricht-university/svs-acoustic/residual"
)

// Pipeline wires remote predictors into a Composer and persists its output.
type Pipeline struct {
	cfg      *cfg.Root
	composer *Composer
	remotes  map[string]*clients.Remote
	models   map[string]*predictor.Model
	log      *logrus.Entry
}

func NewPipeline(c *cfg.Root, log *logrus.Entry) (*Pipeline, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	p := &Pipeline{
		cfg:     c,
		remotes: map[string]*clients.Remote{},
		models:  map[string]*predictor.Model{},
		log:     log.WithField("component", "pipeline"),
	}
	branches := make(map[string]Branch, 3)
	for name, mc := range map[string]cfg.Model{
		"energy": c.Models.Energy,
		"pitch":  c.Models.Pitch,
		"timbre": c.Models.Timbre,
	} {
		b, err := p.branch(name, mc)
		if err != nil {
			return nil, err
		}
		branches[name] = b
	}
	composer, err := NewComposer(branches["energy"], branches["pitch"], branches["timbre"], c.Pitch, log)
	if err != nil {
		return nil, err
	}
	p.composer = composer
	return p, nil
}

func (p *Pipeline) branch(name string, mc cfg.Model) (Branch, error) {
	if mc.URL == "" {
		return Branch{}, fmt.Errorf("%s: no service url", name)
	}
	remote := clients.NewRemote(clients.NewHTTP(cfg.DurSeconds(mc.TimeoutSeconds)), mc.URL)

	var opts []predictor.Option
	if mc.Mixture {
		opts = append(opts, predictor.WithMixture(mc.DimWise))
	}
	if mc.ResidualF0 != nil {
		rp := residual.DefaultParams()
		rp.OutIndex = mc.ResidualF0.OutIndex
		if mc.ResidualF0.MaxResidualCents > 0 {
			rp.MaxResidualCents = mc.ResidualF0.MaxResidualCents
		}
		opts = append(opts, predictor.WithResidualF0(rp))
	}
	if mc.ShallowAR != "" {
		bank, err := cfg.LoadFilterBank(mc.ShallowAR, mc.Streams)
		if err != nil {
			return Branch{}, fmt.Errorf("%s: %w", name, err)
		}
		opts = append(opts, predictor.WithShallowAR(bank))
	}
	model, err := predictor.New(remote, mc.OutDim, opts...)
	if err != nil {
		return Branch{}, fmt.Errorf("%s: %w", name, err)
	}
	p.remotes[name] = remote
	p.models[name] = model
	log := p.log.WithFields(logrus.Fields{
		"stream":  name,
		"url":     mc.URL,
		"type":    model.PredictionType(),
		"streams": mc.Streams.Names(),
	})
	if rp, ok := model.ResidualF0(); ok {
		log = log.WithFields(logrus.Fields{"lf0_out_index": rp.OutIndex, "max_residual_cents": rp.MaxResidualCents})
	}
	log.Debug("predictor configured")
	return Branch{Name: name, Predictor: model, Layout: mc.Streams}, nil
}

func (p *Pipeline) Composer() *Composer { return p.composer }

// Check asks every service to describe itself and compares it with the
// configuration.
func (p *Pipeline) Check(ctx context.Context) error {
	for name, r := range p.remotes {
		m := p.models[name]
		if err := r.Check(ctx, m.OutDim(), m.PredictionType() == predictor.Probabilistic); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Run composes acoustic features for the batch stored at inputPath and
// writes a session bundle under paths.outputs.
func (p *Pipeline) Run(ctx context.Context, inputPath string) (*Session, error) {
	in, err := ReadBatch(inputPath)
	if err != nil {
		return nil, err
	}
	log := p.log.WithFields(logrus.Fields{"input": inputPath, "batch": in.B, "frames": in.T})
	log.Info("composing acoustic features")

	res, err := p.composer.Compose(ctx, in)
	if err != nil {
		return nil, err
	}
	s, err := persist(p.cfg.Paths.Outputs, inputPath, res)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"session": s.ID, "dim": res.Features.D}).Info("session written")
	return s, nil
}

// ReadBatch loads a batch written by WriteBatch.
func ReadBatch(path string) (*features.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var x features.Batch
	if err := json.NewDecoder(f).Decode(&x); err != nil {
		return nil, fmt.Errorf("%s decode: %w", path, err)
	}
	return &x, nil
}
