package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/maastricht-university/svs-acoustic/features"
	"github.com/maastricht-university/svs-acoustic/predictor"
)

// doubling answers /predict with every input value times two and /info
// with a fixed description.
func doubling(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/predict", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		var req PredictReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out := req.Features.Clone()
		for i := range out.Data {
			out.Data[i] *= 2
		}
		_ = json.NewEncoder(w).Encode(PredictResp{Output: out})
	})
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(InfoResp{Name: "double", OutDim: 2})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteRun(t *testing.T) {
	srv := doubling(t)
	r := NewRemote(NewHTTP(5*time.Second), srv.URL)

	in, err := features.FromNested([][][]float64{{{1, 2}, {3, 4}}, {{5, 6}}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	out, err := r.Run(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if out.Trajectory == nil || out.Mixture != nil {
		t.Fatalf("unexpected output %+v", out)
	}
	if out.Trajectory.At(1, 0, 1) != 12 || out.Trajectory.Valid(1) != 1 {
		t.Errorf("trajectory %v lengths %v", out.Trajectory.Data, out.Trajectory.Lengths)
	}
}

func paddedInput(t *testing.T) *features.Batch {
	t.Helper()
	in := features.NewBatch(2, 4, 2)
	if err := in.SetLengths([]int{3, 2}); err != nil {
		t.Fatal(err)
	}
	for b := 0; b < in.B; b++ {
		for ti := 0; ti < in.Valid(b); ti++ {
			in.Set(b, ti, 0, float64(ti+1))
			in.Set(b, ti, 1, float64(10*(b+1)))
		}
	}
	return in
}

func TestRemoteInferPadded(t *testing.T) {
	srv := doubling(t)
	m, err := predictor.New(NewRemote(NewHTTP(0), srv.URL), 2)
	if err != nil {
		t.Fatal(err)
	}
	in := paddedInput(t)
	out, err := m.Infer(context.Background(), predictor.Request{Input: in})
	if err != nil {
		t.Fatal(err)
	}
	got := out.Trajectory
	if got.B != 2 || got.T != 4 || got.Valid(0) != 3 || got.Valid(1) != 2 {
		t.Fatalf("trajectory %dx%d lengths %v", got.B, got.T, got.Lengths)
	}
	if got.At(0, 2, 0) != 6 || got.At(1, 1, 1) != 40 {
		t.Errorf("trajectory %v", got.Data)
	}
	if got.At(0, 3, 0) != 0 || got.At(1, 2, 1) != 0 || got.At(1, 3, 0) != 0 {
		t.Errorf("padding not zero: %v", got.Data)
	}
}

func TestRemoteRepadsTrimmedOutput(t *testing.T) {
	// answers with the valid frames and lengths but no step count
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req PredictReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"output": map[string]any{"frames": req.Features.Nested(), "lengths": req.Features.Lengths},
		})
	}))
	t.Cleanup(srv.Close)

	in := paddedInput(t)
	out, err := NewRemote(NewHTTP(0), srv.URL).Run(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if out.Trajectory.T != 4 || out.Trajectory.At(0, 2, 0) != 3 || out.Trajectory.Valid(1) != 2 {
		t.Errorf("trajectory %dx%d %v lengths %v", out.Trajectory.B, out.Trajectory.T, out.Trajectory.Data, out.Trajectory.Lengths)
	}
}

func TestRemoteCheck(t *testing.T) {
	srv := doubling(t)
	r := NewRemote(NewHTTP(0), srv.URL)
	if err := r.Check(context.Background(), 2, false); err != nil {
		t.Errorf("Check: %v", err)
	}
	if err := r.Check(context.Background(), 3, false); !errors.Is(err, features.ErrLayoutMismatch) {
		t.Errorf("expected ErrLayoutMismatch, got %v", err)
	}
	if err := r.Check(context.Background(), 2, true); err == nil {
		t.Error("prediction type mismatch accepted")
	}
}

func TestPredictMixture(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := features.NewMixture(1, 1, 2, 1, false)
		m.Means[1] = 3
		_ = json.NewEncoder(w).Encode(PredictResp{Mixture: m})
	}))
	defer srv.Close()

	in, _ := features.FromFrames([][]float64{{0}})
	out, err := NewRemote(NewHTTP(0), srv.URL).Run(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if out.Mixture == nil || out.Mixture.K != 2 || out.Mixture.Means[1] != 3 {
		t.Errorf("mixture %+v", out.Mixture)
	}
}

func TestPredictErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	in, _ := features.FromFrames([][]float64{{0}})
	_, err := NewHTTP(0).Predict(context.Background(), srv.URL, in)
	if err == nil || !strings.Contains(err.Error(), "model not loaded") {
		t.Errorf("got %v", err)
	}
}

func TestRemoteEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{}"))
	}))
	defer srv.Close()

	in, _ := features.FromFrames([][]float64{{0}})
	if _, err := NewRemote(NewHTTP(0), srv.URL).Run(context.Background(), in); !errors.Is(err, features.ErrShape) {
		t.Errorf("expected ErrShape, got %v", err)
	}
}
