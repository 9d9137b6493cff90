package sar

import (
	"fmt"

	"github.com/maastricht-university/svs-acoustic/features"
	"github.com/maastricht-university/svs-acoustic/stream"
)

// FilterBank owns one AnalysisFilter per stream of a layout.
type FilterBank struct {
	layout  stream.Layout
	filters []*AnalysisFilter
}

func NewFilterBank(layout stream.Layout, filters []*AnalysisFilter) (*FilterBank, error) {
	if len(filters) != len(layout) {
		return nil, fmt.Errorf("%d filters for %d streams: %w", len(filters), len(layout), features.ErrLayoutMismatch)
	}
	for i, f := range filters {
		if f.width != layout[i].Width {
			return nil, fmt.Errorf("stream %q is %d wide, filter is %d: %w",
				layout[i].Name, layout[i].Width, f.width, features.ErrLayoutMismatch)
		}
	}
	return &FilterBank{
		layout:  append(stream.Layout(nil), layout...),
		filters: append([]*AnalysisFilter(nil), filters...),
	}, nil
}

func (fb *FilterBank) Layout() stream.Layout { return fb.layout }

func (fb *FilterBank) Filter(name string) (*AnalysisFilter, bool) {
	for i, s := range fb.layout {
		if s.Name == name {
			return fb.filters[i], true
		}
	}
	return nil, false
}

// Analyze filters one stream's trajectory with that stream's filter.
func (fb *FilterBank) Analyze(name string, y *features.Batch) (*features.Batch, error) {
	f, ok := fb.Filter(name)
	if !ok {
		return nil, fmt.Errorf("no filter for stream %q: %w", name, features.ErrLayoutMismatch)
	}
	return f.Analyze(y)
}

// AnalyzeAll filters every stream of a flat target and rejoins it.
func (fb *FilterBank) AnalyzeAll(y *features.Batch) (*features.Batch, error) {
	parts, err := stream.Split(y, fb.layout)
	if err != nil {
		return nil, err
	}
	for i, p := range parts {
		if parts[i], err = fb.filters[i].Analyze(p); err != nil {
			return nil, fmt.Errorf("stream %q: %w", fb.layout[i].Name, err)
		}
	}
	return stream.Join(parts, fb.layout)
}

// Synthesize runs every stream dimension of the flat raw output through its
// all-pole synthesis filter. Dimensions run concurrently; each one's time
// recursion stays sequential.
func (fb *FilterBank) Synthesize(raw *features.Batch) (*features.Batch, error) {
	if err := raw.Validate(); err != nil {
		return nil, err
	}
	if err := fb.layout.Check(raw.D); err != nil {
		return nil, fmt.Errorf("%w: %w", features.ErrShape, err)
	}
	out := features.NewBatch(raw.B, raw.T, raw.D)
	out.Lengths = raw.Lengths
	g := newGroup()
	off := 0
	for i, f := range fb.filters {
		f.synthesizeInto(g, raw, out, off)
		off += fb.layout[i].Width
	}
	return out, g.Wait()
}
