package orchestrator

import (
	"fmt"

	"github.com/maastricht-university/svs-acoustic/features"
	"github.com/maastricht-university/svs-acoustic/stream"
)

// outputLayout is the final vector order:
// [energy+spectral, lf0, vuv, aperiodicity, (vibrato), (vibrato flag)].
func outputLayout(energy, pitch, timbre stream.Layout) stream.Layout {
	l := stream.Layout{
		{Name: timbre[0].Name, Width: energy[0].Width + timbre[0].Width},
		pitch[0],
		pitch[1],
		timbre[1],
	}
	return append(l, pitch[2:]...)
}

// stitch merges the energy level into the front of the spectral stream and
// orders every stream for outputLayout.
func stitch(energy, pitch, timbre []*features.Batch, layout stream.Layout) (*features.Batch, error) {
	spectral, err := features.Concat(energy[0], timbre[0])
	if err != nil {
		return nil, fmt.Errorf("merge energy into %s: %w", layout[0].Name, err)
	}
	parts := []*features.Batch{spectral, pitch[0], pitch[1], timbre[1]}
	parts = append(parts, pitch[2:]...)
	return stream.Join(parts, layout)
}

// checkBranch validates stream count and declared width. A negative
// maxStreams leaves the count unbounded.
func checkBranch(b Branch, minStreams, maxStreams int) error {
	if b.Predictor == nil {
		return fmt.Errorf("%s: no predictor", b.Name)
	}
	if n := len(b.Layout); n < minStreams || (maxStreams >= 0 && n > maxStreams) {
		if maxStreams < 0 {
			return fmt.Errorf("%s: %d streams, want at least %d: %w", b.Name, n, minStreams, features.ErrLayoutMismatch)
		}
		if minStreams == maxStreams {
			return fmt.Errorf("%s: %d streams, want %d: %w", b.Name, n, minStreams, features.ErrLayoutMismatch)
		}
		return fmt.Errorf("%s: %d streams, want %d to %d: %w", b.Name, n, minStreams, maxStreams, features.ErrLayoutMismatch)
	}
	if err := b.Layout.Check(b.Predictor.OutDim()); err != nil {
		return fmt.Errorf("%s: declared out_dim %d: %w", b.Name, b.Predictor.OutDim(), err)
	}
	return nil
}
