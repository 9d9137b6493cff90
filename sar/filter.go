// Package sar implements the shallow autoregressive post-filter: a learned
// per-dimension FIR analysis filter applied to training targets, and its
// all-pole inverse applied to network output at inference time.
//
// Filters are assumed stable. Poles outside the unit circle are not detected
// and make Synthesize diverge.
package sar

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/maastricht-university/svs-acoustic/features"
)

// AnalysisFilter holds order+1 taps for each of width dimensions of a stream.
//
// Taps are kept in convolution order: taps[k] multiplies x[t-order+k], so the
// last tap weights the current sample. That tap is fixed to 1.
type AnalysisFilter struct {
	width, order int
	taps         [][]float64
}

// NewAnalysisFilter builds a filter from learned weights, one row of order+1
// values per dimension in convolution order. With squash set the weights go
// through tanh first, as they do during training.
func NewAnalysisFilter(width, order int, weights [][]float64, squash bool) (*AnalysisFilter, error) {
	if width < 0 || order < 0 {
		return nil, fmt.Errorf("filter width %d order %d: %w", width, order, features.ErrShape)
	}
	if len(weights) != width {
		return nil, fmt.Errorf("%d weight rows for width %d: %w", len(weights), width, features.ErrShape)
	}
	f := &AnalysisFilter{width: width, order: order, taps: make([][]float64, width)}
	for d, row := range weights {
		if len(row) != order+1 {
			return nil, fmt.Errorf("dim %d has %d taps, want %d: %w", d, len(row), order+1, features.ErrShape)
		}
		taps := append([]float64(nil), row...)
		if squash {
			for k := range taps {
				taps[k] = math.Tanh(taps[k])
			}
		}
		taps[order] = 1
		f.taps[d] = taps
	}
	return f, nil
}

// IdentityFilter passes every dimension through unchanged.
func IdentityFilter(width, order int) *AnalysisFilter {
	w := make([][]float64, width)
	for d := range w {
		w[d] = make([]float64, order+1)
	}
	f, _ := NewAnalysisFilter(width, order, w, false)
	return f
}

func (f *AnalysisFilter) Width() int { return f.width }
func (f *AnalysisFilter) Order() int { return f.order }

// Taps returns a copy of dimension d's effective coefficients.
func (f *AnalysisFilter) Taps(d int) []float64 {
	return append([]float64(nil), f.taps[d]...)
}

// Denominator is the feedback polynomial of the synthesis filter for
// dimension d: the taps reversed, so index 0 is the current-sample
// coefficient, which is always 1.
func (f *AnalysisFilter) Denominator(d int) []float64 {
	a := f.Taps(d)
	for i, j := 0, len(a)-1; i < j; i, j = i+1, j-1 {
		a[i], a[j] = a[j], a[i]
	}
	return a
}

// fir is the causal convolution y[t] = sum_k taps[k] x[t-order+k] with zero
// history before t=0.
func fir(taps, x, y []float64) {
	order := len(taps) - 1
	for t := range x {
		if t < order {
			y[t] = floats.Dot(taps[order-t:], x[:t+1])
			continue
		}
		y[t] = floats.Dot(taps, x[t-order:t+1])
	}
}

// allPole carries the previous order outputs of one dimension's recursion.
// past[j-1] holds y[t-j].
type allPole struct {
	a    []float64
	past []float64
}

func newAllPole(a []float64) *allPole {
	return &allPole{a: a, past: make([]float64, len(a)-1)}
}

func (s *allPole) step(x float64) float64 {
	y := x
	if len(s.past) > 0 {
		y -= floats.Dot(s.a[1:], s.past)
		copy(s.past[1:], s.past[:len(s.past)-1])
	}
	y /= s.a[0]
	if len(s.past) > 0 {
		s.past[0] = y
	}
	return y
}

// iir folds the all-pole recursion over x, starting from zero state.
func iir(a, x, y []float64) {
	s := newAllPole(a)
	for t, v := range x {
		y[t] = s.step(v)
	}
}

func (f *AnalysisFilter) check(x *features.Batch, off int) error {
	if err := x.Validate(); err != nil {
		return err
	}
	if off+f.width > x.D {
		return fmt.Errorf("filter of width %d at column %d exceeds %d: %w", f.width, off, x.D, features.ErrShape)
	}
	return nil
}

// schedule queues one job per dimension; each job filters every batch
// element's valid frames from in into out. Time runs sequentially inside a
// job.
func (f *AnalysisFilter) schedule(g *errgroup.Group, in, out *features.Batch, off int, run func(d int, x, y []float64)) {
	for d := 0; d < f.width; d++ {
		d := d
		g.Go(func() error {
			x := make([]float64, in.T)
			y := make([]float64, in.T)
			for b := 0; b < in.B; b++ {
				n := in.Valid(b)
				for t := 0; t < n; t++ {
					x[t] = in.At(b, t, off+d)
				}
				run(d, x[:n], y[:n])
				for t := 0; t < n; t++ {
					out.Set(b, t, off+d, y[t])
				}
			}
			return nil
		})
	}
}

func newGroup() *errgroup.Group {
	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	return g
}

// Analyze applies the FIR analysis filter along time to a stream of exactly
// the filter's width.
func (f *AnalysisFilter) Analyze(x *features.Batch) (*features.Batch, error) {
	if err := f.check(x, 0); err != nil {
		return nil, err
	}
	if x.D != f.width {
		return nil, fmt.Errorf("stream width %d, filter width %d: %w", x.D, f.width, features.ErrShape)
	}
	out := features.NewBatch(x.B, x.T, x.D)
	out.Lengths = x.Lengths
	g := newGroup()
	f.schedule(g, x, out, 0, func(d int, x, y []float64) { fir(f.taps[d], x, y) })
	return out, g.Wait()
}

// Synthesize inverts Analyze with the all-pole form of the same taps.
func (f *AnalysisFilter) Synthesize(x *features.Batch) (*features.Batch, error) {
	if err := f.check(x, 0); err != nil {
		return nil, err
	}
	if x.D != f.width {
		return nil, fmt.Errorf("stream width %d, filter width %d: %w", x.D, f.width, features.ErrShape)
	}
	out := features.NewBatch(x.B, x.T, x.D)
	out.Lengths = x.Lengths
	g := newGroup()
	f.synthesizeInto(g, x, out, 0)
	return out, g.Wait()
}

func (f *AnalysisFilter) synthesizeInto(g *errgroup.Group, in, out *features.Batch, off int) {
	dens := make([][]float64, f.width)
	for d := range dens {
		dens[d] = f.Denominator(d)
	}
	f.schedule(g, in, out, off, func(d int, x, y []float64) { iir(dens[d], x, y) })
}
