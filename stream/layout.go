// Package stream splits flat acoustic feature vectors into named sub-streams
// and joins them back.
package stream

import (
	"fmt"

	"github.com/maastricht-university/svs-acoustic/features"
)

// Stream is a named, fixed-width slice of a flat feature vector.
type Stream struct {
	Name  string `yaml:"name" mapstructure:"name" json:"name"`
	Width int    `yaml:"width" mapstructure:"width" json:"width"`
}

// Layout is the ordered decomposition of a flat vector. Order is significant.
type Layout []Stream

// Sizes builds an anonymous layout from widths alone.
func Sizes(widths ...int) Layout {
	l := make(Layout, len(widths))
	for i, w := range widths {
		l[i] = Stream{Name: fmt.Sprintf("stream%d", i), Width: w}
	}
	return l
}

func (l Layout) Widths() []int {
	w := make([]int, len(l))
	for i, s := range l {
		w[i] = s.Width
	}
	return w
}

// Dim is the flat vector width described by the layout.
func (l Layout) Dim() int {
	n := 0
	for _, s := range l {
		n += s.Width
	}
	return n
}

// Offset returns the first column of the named stream.
func (l Layout) Offset(name string) (int, bool) {
	off := 0
	for _, s := range l {
		if s.Name == name {
			return off, true
		}
		off += s.Width
	}
	return 0, false
}

func (l Layout) Names() []string {
	n := make([]string, len(l))
	for i, s := range l {
		n[i] = s.Name
	}
	return n
}

// Check reports ErrLayoutMismatch unless the widths sum to dim.
func (l Layout) Check(dim int) error {
	for _, s := range l {
		if s.Width < 0 {
			return fmt.Errorf("stream %q has width %d: %w", s.Name, s.Width, features.ErrLayoutMismatch)
		}
	}
	if got := l.Dim(); got != dim {
		return fmt.Errorf("streams %v sum to %d, vector has %d: %w", l.Widths(), got, dim, features.ErrLayoutMismatch)
	}
	return nil
}

// Split cuts x into one batch per stream, in layout order.
func Split(x *features.Batch, l Layout) ([]*features.Batch, error) {
	if err := x.Validate(); err != nil {
		return nil, err
	}
	if err := l.Check(x.D); err != nil {
		return nil, err
	}
	out := make([]*features.Batch, len(l))
	off := 0
	for i, s := range l {
		part, err := x.Columns(off, s.Width)
		if err != nil {
			return nil, err
		}
		out[i] = part
		off += s.Width
	}
	return out, nil
}

// Join concatenates parts in layout order. Each part must have exactly its
// stream's width.
func Join(parts []*features.Batch, l Layout) (*features.Batch, error) {
	if len(parts) != len(l) {
		return nil, fmt.Errorf("%d parts for %d streams: %w", len(parts), len(l), features.ErrLayoutMismatch)
	}
	for i, p := range parts {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("stream %q: %w", l[i].Name, err)
		}
		if p.D != l[i].Width {
			return nil, fmt.Errorf("stream %q is %d wide, layout says %d: %w", l[i].Name, p.D, l[i].Width, features.ErrLayoutMismatch)
		}
	}
	return features.Concat(parts...)
}
