package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/maastricht-university/svs-acoustic/features"
	"github.com/maastricht-university/svs-acoustic/sar"
	"github.com/maastricht-university/svs-acoustic/stream"
)

// FilterSpec is one stream's learned analysis filter as saved after
// training. Weights has one row per stream dimension, oldest tap first.
type FilterSpec struct {
	Name    string      `yaml:"name"`
	Order   int         `yaml:"order"`
	Squash  *bool       `yaml:"squash"`
	Weights [][]float64 `yaml:"weights"`
}

type Checkpoint struct {
	Streams []FilterSpec `yaml:"streams"`
}

func ReadCheckpoint(path string) (*Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var ck Checkpoint
	if err := yaml.NewDecoder(f).Decode(&ck); err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", path, err)
	}
	return &ck, nil
}

// FilterBank binds the checkpoint's filters to layout by stream name.
// Squash defaults to true.
func (ck *Checkpoint) FilterBank(layout stream.Layout) (*sar.FilterBank, error) {
	byName := make(map[string]FilterSpec, len(ck.Streams))
	for _, s := range ck.Streams {
		byName[s.Name] = s
	}
	filters := make([]*sar.AnalysisFilter, len(layout))
	for i, s := range layout {
		spec, ok := byName[s.Name]
		if !ok {
			return nil, fmt.Errorf("no filter for stream %q: %w", s.Name, features.ErrLayoutMismatch)
		}
		squash := spec.Squash == nil || *spec.Squash
		f, err := sar.NewAnalysisFilter(s.Width, spec.Order, spec.Weights, squash)
		if err != nil {
			return nil, fmt.Errorf("stream %q: %w", s.Name, err)
		}
		filters[i] = f
	}
	return sar.NewFilterBank(layout, filters)
}

func LoadFilterBank(path string, layout stream.Layout) (*sar.FilterBank, error) {
	ck, err := ReadCheckpoint(path)
	if err != nil {
		return nil, err
	}
	return ck.FilterBank(layout)
}
