package stream

import (
	"errors"
	"testing"

	"github.com/maastricht-university/svs-acoustic/features"
)

func ramp(b, t, d int) *features.Batch {
	x := features.NewBatch(b, t, d)
	for i := range x.Data {
		x.Data[i] = float64(i)
	}
	return x
}

func TestSplitJoinRoundTrip(t *testing.T) {
	layouts := []Layout{
		Sizes(180, 3, 1, 15),
		Sizes(1, 1, 3),
		Sizes(5),
		Sizes(2, 0, 4),
	}
	for _, l := range layouts {
		x := ramp(2, 7, l.Dim())
		parts, err := Split(x, l)
		if err != nil {
			t.Fatalf("Split %v: %v", l.Widths(), err)
		}
		if len(parts) != len(l) {
			t.Fatalf("Split %v gave %d parts", l.Widths(), len(parts))
		}
		for i, p := range parts {
			if p.D != l[i].Width {
				t.Errorf("part %d width %d, want %d", i, p.D, l[i].Width)
			}
		}
		y, err := Join(parts, l)
		if err != nil {
			t.Fatalf("Join %v: %v", l.Widths(), err)
		}
		for i := range x.Data {
			if x.Data[i] != y.Data[i] {
				t.Fatalf("layout %v: value %d = %v, want %v", l.Widths(), i, y.Data[i], x.Data[i])
			}
		}

		again, err := Split(y, l)
		if err != nil {
			t.Fatal(err)
		}
		for i := range parts {
			for j := range parts[i].Data {
				if parts[i].Data[j] != again[i].Data[j] {
					t.Fatalf("split(join(parts)) differs in stream %d", i)
				}
			}
		}
	}
}

func TestSplitPreservesOrder(t *testing.T) {
	x, err := features.FromFrames([][]float64{{1, 2, 3, 4, 5, 6}})
	if err != nil {
		t.Fatal(err)
	}
	parts, err := Split(x, Layout{{"mgc", 3}, {"lf0", 1}, {"vuv", 1}, {"bap", 1}})
	if err != nil {
		t.Fatal(err)
	}
	want := [][]float64{{1, 2, 3}, {4}, {5}, {6}}
	for i, p := range parts {
		for j, v := range want[i] {
			if p.At(0, 0, j) != v {
				t.Errorf("stream %d col %d = %v, want %v", i, j, p.At(0, 0, j), v)
			}
		}
	}
}

func TestSplitLayoutMismatch(t *testing.T) {
	x := ramp(1, 4, 199)
	_, err := Split(x, Sizes(180, 3, 1, 16))
	if !errors.Is(err, features.ErrLayoutMismatch) {
		t.Errorf("expected ErrLayoutMismatch, got %v", err)
	}
}

func TestJoinRejectsWrongWidth(t *testing.T) {
	parts := []*features.Batch{ramp(1, 2, 2), ramp(1, 2, 2)}
	if _, err := Join(parts, Sizes(2, 3)); !errors.Is(err, features.ErrLayoutMismatch) {
		t.Errorf("expected ErrLayoutMismatch, got %v", err)
	}
	if _, err := Join(parts[:1], Sizes(2, 2)); !errors.Is(err, features.ErrLayoutMismatch) {
		t.Errorf("expected ErrLayoutMismatch for missing part, got %v", err)
	}
}

func TestSplitIgnoresPadding(t *testing.T) {
	x := ramp(2, 3, 2)
	if err := x.SetLengths([]int{3, 1}); err != nil {
		t.Fatal(err)
	}
	parts, err := Split(x, Sizes(1, 1))
	if err != nil {
		t.Fatal(err)
	}
	for ti := 1; ti < 3; ti++ {
		if v := parts[1].At(1, ti, 0); v != 0 {
			t.Errorf("padded frame %d carried %v", ti, v)
		}
	}
}

func TestOffset(t *testing.T) {
	l := Layout{{"mgc", 60}, {"lf0", 1}, {"vuv", 1}, {"bap", 5}}
	off, ok := l.Offset("vuv")
	if !ok || off != 61 {
		t.Errorf("Offset(vuv) = %d, %v", off, ok)
	}
	if _, ok := l.Offset("vib"); ok {
		t.Error("Offset found a missing stream")
	}
}
