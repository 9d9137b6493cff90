// Package features holds the per-call containers that flow between predictors:
// padded frame batches and Gaussian mixture frames.
package features

import (
	"encoding/json"
	"fmt"
)

// Batch is a batch × time × dim block of frames stored row-major.
// Lengths, when set, gives the valid frame count of each element; frames past
// it are padding and are left zero by every operation in this module.
type Batch struct {
	B, T, D int
	Data    []float64
	Lengths []int
}

func NewBatch(b, t, d int) *Batch {
	return &Batch{B: b, T: t, D: d, Data: make([]float64, b*t*d)}
}

// FromFrames builds a single unpadded sequence from a list of frames.
func FromFrames(frames [][]float64) (*Batch, error) {
	return FromNested([][][]float64{frames}, nil)
}

// FromNested builds a batch from [batch][time][dim] slices. Shorter elements
// are zero-padded to the longest one; lengths defaults to their natural length.
func FromNested(nested [][][]float64, lengths []int) (*Batch, error) {
	t, d := 0, -1
	for _, seq := range nested {
		t = max(t, len(seq))
		for _, f := range seq {
			if d == -1 {
				d = len(f)
			} else if len(f) != d {
				return nil, fmt.Errorf("frame width %d, want %d: %w", len(f), d, ErrShape)
			}
		}
	}
	if d == -1 {
		d = 0
	}
	out := NewBatch(len(nested), t, d)
	natural := make([]int, len(nested))
	for b, seq := range nested {
		natural[b] = len(seq)
		for ti, f := range seq {
			copy(out.Frame(b, ti), f)
		}
	}
	if lengths == nil {
		lengths = natural
	}
	if err := out.SetLengths(lengths); err != nil {
		return nil, err
	}
	out.ZeroPadding()
	return out, nil
}

// ZeroPadding clears every frame past its element's valid length.
func (x *Batch) ZeroPadding() {
	for b := 0; b < x.B; b++ {
		for t := x.Valid(b); t < x.T; t++ {
			clear(x.Frame(b, t))
		}
	}
}

// PadTo returns x extended with zero frames to t steps. A batch that is
// already t steps long is returned as is.
func (x *Batch) PadTo(t int) (*Batch, error) {
	if t < x.T {
		return nil, fmt.Errorf("pad %d steps to %d: %w", x.T, t, ErrShape)
	}
	if t == x.T {
		return x, nil
	}
	if x.Lengths == nil {
		return nil, fmt.Errorf("pad %d steps to %d without lengths: %w", x.T, t, ErrShape)
	}
	out := NewBatch(x.B, t, x.D)
	out.Lengths = append([]int(nil), x.Lengths...)
	for b := 0; b < x.B; b++ {
		copy(out.Data[out.index(b, 0, 0):], x.Data[x.index(b, 0, 0):x.index(b, x.T, 0)])
	}
	return out, nil
}

// SetLengths attaches valid lengths. A nil slice marks every element as unpadded.
func (x *Batch) SetLengths(lengths []int) error {
	if lengths == nil {
		x.Lengths = nil
		return nil
	}
	if len(lengths) != x.B {
		return fmt.Errorf("%d lengths for batch of %d: %w", len(lengths), x.B, ErrShape)
	}
	for _, l := range lengths {
		if l < 0 || l > x.T {
			return fmt.Errorf("length %d outside [0, %d]: %w", l, x.T, ErrShape)
		}
	}
	x.Lengths = append([]int(nil), lengths...)
	return nil
}

// Valid returns the number of unpadded frames of element b.
func (x *Batch) Valid(b int) int {
	if x.Lengths == nil {
		return x.T
	}
	return x.Lengths[b]
}

func (x *Batch) index(b, t, d int) int { return (b*x.T+t)*x.D + d }

func (x *Batch) At(b, t, d int) float64 { return x.Data[x.index(b, t, d)] }

func (x *Batch) Set(b, t, d int, v float64) { x.Data[x.index(b, t, d)] = v }

// Frame returns the feature vector of (b, t). The slice aliases x.Data.
func (x *Batch) Frame(b, t int) []float64 {
	i := x.index(b, t, 0)
	return x.Data[i : i+x.D : i+x.D]
}

// Validate checks that Data and Lengths agree with the declared shape.
func (x *Batch) Validate() error {
	if x == nil {
		return fmt.Errorf("nil batch: %w", ErrShape)
	}
	if x.B < 0 || x.T < 0 || x.D < 0 || len(x.Data) != x.B*x.T*x.D {
		return fmt.Errorf("batch %dx%dx%d holds %d values: %w", x.B, x.T, x.D, len(x.Data), ErrShape)
	}
	if x.Lengths != nil && len(x.Lengths) != x.B {
		return fmt.Errorf("%d lengths for batch of %d: %w", len(x.Lengths), x.B, ErrShape)
	}
	for _, l := range x.Lengths {
		if l < 0 || l > x.T {
			return fmt.Errorf("length %d outside [0, %d]: %w", l, x.T, ErrShape)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (x *Batch) Clone() *Batch {
	out := &Batch{B: x.B, T: x.T, D: x.D, Data: append([]float64(nil), x.Data...)}
	if x.Lengths != nil {
		out.Lengths = append([]int(nil), x.Lengths...)
	}
	return out
}

// Columns copies the column range [off, off+width) of every valid frame.
func (x *Batch) Columns(off, width int) (*Batch, error) {
	if off < 0 || width < 0 || off+width > x.D {
		return nil, fmt.Errorf("columns [%d, %d) of %d: %w", off, off+width, x.D, ErrShape)
	}
	out := NewBatch(x.B, x.T, width)
	out.Lengths = x.Lengths
	for b := 0; b < x.B; b++ {
		for t := 0; t < x.Valid(b); t++ {
			copy(out.Frame(b, t), x.Frame(b, t)[off:off+width])
		}
	}
	return out, nil
}

// Concat joins batches along the feature axis. All parts must share batch
// size and time axis; lengths are taken from the first part that has them.
func Concat(parts ...*Batch) (*Batch, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("concat of zero parts: %w", ErrShape)
	}
	b, t, d := parts[0].B, parts[0].T, 0
	var lengths []int
	for i, p := range parts {
		if p.B != b || p.T != t {
			return nil, fmt.Errorf("part %d is %dx%d, want %dx%d: %w", i, p.B, p.T, b, t, ErrShape)
		}
		if lengths == nil {
			lengths = p.Lengths
		}
		d += p.D
	}
	out := NewBatch(b, t, d)
	out.Lengths = lengths
	for bi := 0; bi < b; bi++ {
		for ti := 0; ti < out.Valid(bi); ti++ {
			dst := out.Frame(bi, ti)
			off := 0
			for _, p := range parts {
				copy(dst[off:off+p.D], p.Frame(bi, ti))
				off += p.D
			}
		}
	}
	return out, nil
}

// Nested returns the valid frames of each element as [batch][time][dim].
func (x *Batch) Nested() [][][]float64 {
	out := make([][][]float64, x.B)
	for b := range out {
		out[b] = make([][]float64, x.Valid(b))
		for t := range out[b] {
			out[b][t] = append([]float64(nil), x.Frame(b, t)...)
		}
	}
	return out
}

// batchJSON carries only valid frames; Steps keeps the padded time axis.
type batchJSON struct {
	Frames  [][][]float64 `json:"frames"`
	Lengths []int         `json:"lengths,omitempty"`
	Steps   int           `json:"steps,omitempty"`
}

func (x *Batch) MarshalJSON() ([]byte, error) {
	return json.Marshal(batchJSON{Frames: x.Nested(), Lengths: x.Lengths, Steps: x.T})
}

func (x *Batch) UnmarshalJSON(p []byte) error {
	var raw batchJSON
	if err := json.Unmarshal(p, &raw); err != nil {
		return err
	}
	out, err := FromNested(raw.Frames, raw.Lengths)
	if err != nil {
		return err
	}
	if raw.Steps > out.T {
		if out, err = out.PadTo(raw.Steps); err != nil {
			return err
		}
	}
	*x = *out
	return nil
}
