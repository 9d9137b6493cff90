package residual

import (
	"errors"
	"math"
	"testing"

	"github.com/maastricht-university/svs-acoustic/features"
)

func testParams() Params {
	p := DefaultParams()
	p.InIndex = 1
	p.OutIndex = 2
	return p
}

func TestBoundSaturates(t *testing.T) {
	maxRatio := testParams().MaxRatio()
	if want := 600 * math.Ln2 / 1200; math.Abs(maxRatio-want) > 1e-15 {
		t.Fatalf("MaxRatio = %v, want %v", maxRatio, want)
	}
	if Bound(0, maxRatio) != 0 {
		t.Errorf("Bound(0) = %v", Bound(0, maxRatio))
	}
	for _, raw := range []float64{1, 10, 1e6, math.MaxFloat64, math.Inf(1)} {
		if v := Bound(raw, maxRatio); v > maxRatio || v <= 0 {
			t.Errorf("Bound(%v) = %v outside (0, %v]", raw, v, maxRatio)
		}
		if v := Bound(-raw, maxRatio); v < -maxRatio || v >= 0 {
			t.Errorf("Bound(%v) = %v outside [-%v, 0)", -raw, v, maxRatio)
		}
	}
	if Bound(math.Inf(1), maxRatio) != maxRatio || Bound(math.Inf(-1), maxRatio) != -maxRatio {
		t.Error("Bound does not saturate at infinity")
	}
}

func TestCorrectZeroResidual(t *testing.T) {
	p := testParams()
	in, _ := features.FromFrames([][]float64{{0, 0.5}, {0, 0}})
	raw, _ := features.FromFrames([][]float64{{7, 8, 0, 9}, {1, 2, 0, 3}})

	out, r, err := Correct(in, raw, p)
	if err != nil {
		t.Fatal(err)
	}
	want := (0.5*(p.InMax-p.InMin) + p.InMin - p.OutMean) / p.OutScale
	if got := out.At(0, 0, 2); math.Abs(got-want) > 1e-12 {
		t.Errorf("corrected lf0 = %v, want %v", got, want)
	}
	if got := out.At(0, 1, 2); math.Abs(got-p.Normalize(p.InMin)) > 1e-12 {
		t.Errorf("corrected lf0 at score 0 = %v", got)
	}
	if r.D != 1 || r.At(0, 0, 0) != 0 {
		t.Errorf("bounded residual %v", r.Data)
	}
	for _, c := range []int{0, 1, 3} {
		if out.At(0, 0, c) != raw.At(0, 0, c) {
			t.Errorf("column %d changed", c)
		}
	}
	if raw.At(0, 0, 2) != 0 {
		t.Error("Correct modified its input")
	}
}

func TestCorrectLargeResidual(t *testing.T) {
	p := testParams()
	in, _ := features.FromFrames([][]float64{{0, 0.5}})
	raw, _ := features.FromFrames([][]float64{{0, 0, 50, 0}})
	out, r, err := Correct(in, raw, p)
	if err != nil {
		t.Fatal(err)
	}
	// one octave up at most
	if got := r.At(0, 0, 0); math.Abs(got-p.MaxRatio()) > 1e-12 {
		t.Errorf("residual %v, want %v", got, p.MaxRatio())
	}
	lf0 := out.At(0, 0, 2)*p.OutScale + p.OutMean
	if score := p.Denormalize(0.5); lf0-score > p.MaxRatio()+1e-12 {
		t.Errorf("corrected pitch %v exceeds score %v by more than %v", lf0, score, p.MaxRatio())
	}
}

func TestCorrectMixture(t *testing.T) {
	p := testParams()
	in, _ := features.FromFrames([][]float64{{0, 0.25}})
	m := features.NewMixture(1, 1, 3, 4, false)
	for k := 0; k < 3; k++ {
		m.Means[m.Param(0, 0, k, 2)] = float64(k) - 1
		m.Means[m.Param(0, 0, k, 0)] = 42
	}
	out, r, err := CorrectMixture(in, m, p)
	if err != nil {
		t.Fatal(err)
	}
	if r.D != 3 {
		t.Fatalf("residual width %d, want 3", r.D)
	}
	score := p.Denormalize(0.25)
	for k := 0; k < 3; k++ {
		raw := float64(k) - 1
		want := p.Normalize(score + Bound(raw, p.MaxRatio()))
		if got := out.Means[out.Param(0, 0, k, 2)]; math.Abs(got-want) > 1e-12 {
			t.Errorf("component %d lf0 = %v, want %v", k, got, want)
		}
		if out.Means[out.Param(0, 0, k, 0)] != 42 {
			t.Errorf("component %d other column changed", k)
		}
	}
}

func TestCorrectZeroesPadding(t *testing.T) {
	p := testParams()
	in := features.NewBatch(2, 3, 2)
	raw := features.NewBatch(2, 3, 3)
	for i := range raw.Data {
		raw.Data[i] = 9
	}
	lengths := []int{2, 1}
	if err := in.SetLengths(lengths); err != nil {
		t.Fatal(err)
	}
	if err := raw.SetLengths(lengths); err != nil {
		t.Fatal(err)
	}
	out, _, err := Correct(in, raw, p)
	if err != nil {
		t.Fatal(err)
	}
	if out.At(0, 1, 0) != 9 {
		t.Errorf("valid frame changed: %v", out.At(0, 1, 0))
	}
	for _, bt := range [][2]int{{0, 2}, {1, 1}, {1, 2}} {
		for d := 0; d < out.D; d++ {
			if v := out.At(bt[0], bt[1], d); v != 0 {
				t.Errorf("padded (%d, %d, %d) = %v", bt[0], bt[1], d, v)
			}
		}
	}
	if raw.At(1, 2, 0) != 9 {
		t.Error("input modified")
	}

	m := features.NewMixture(2, 3, 2, 3, false)
	for i := range m.Means {
		m.Means[i], m.LogScales[i] = 9, 9
	}
	m.Lengths = lengths
	cm, _, err := CorrectMixture(in, m, p)
	if err != nil {
		t.Fatal(err)
	}
	for k := 0; k < 2; k++ {
		if v := cm.Means[cm.Param(1, 1, k, 0)]; v != 0 {
			t.Errorf("padded mean component %d = %v", k, v)
		}
		if v := cm.LogScales[cm.Param(0, 2, k, 1)]; v != 0 {
			t.Errorf("padded scale component %d = %v", k, v)
		}
	}
}

func TestAdoptKeepsOutIndex(t *testing.T) {
	local := Params{OutIndex: 0, MaxResidualCents: 300, OutMean: 1, OutScale: 1}
	shared := DefaultParams()
	got := local.Adopt(shared)
	if got.OutIndex != 0 || got.MaxResidualCents != 300 {
		t.Errorf("local fields overwritten: %+v", got)
	}
	if got.InIndex != shared.InIndex || got.OutMean != shared.OutMean || got.OutScale != shared.OutScale ||
		got.InMin != shared.InMin || got.InMax != shared.InMax {
		t.Errorf("shared fields not adopted: %+v", got)
	}
}

func TestCorrectShapeErrors(t *testing.T) {
	p := testParams()
	in, _ := features.FromFrames([][]float64{{0, 0.5}})
	narrow, _ := features.FromFrames([][]float64{{0, 0}})
	if _, _, err := Correct(in, narrow, p); !errors.Is(err, features.ErrShape) {
		t.Errorf("out index past width: %v", err)
	}
	long, _ := features.FromFrames([][]float64{{0, 0, 0}, {0, 0, 0}})
	if _, _, err := Correct(in, long, p); !errors.Is(err, features.ErrShape) {
		t.Errorf("time mismatch: %v", err)
	}
	p.InIndex = 5
	wide, _ := features.FromFrames([][]float64{{0, 0, 0}})
	if _, _, err := Correct(in, wide, p); !errors.Is(err, features.ErrShape) {
		t.Errorf("in index past width: %v", err)
	}
}
