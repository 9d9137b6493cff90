package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/maastricht-university/svs-acoustic/features"
)

// --- Prediction (/predict) ---
type PredictReq struct {
	Features *features.Batch `json:"features"`
}

// PredictResp holds either a trajectory or a mixture.
type PredictResp struct {
	Output  *features.Batch   `json:"output,omitempty"`
	Mixture *features.Mixture `json:"mixture,omitempty"`
}

func (h *HTTP) Predict(ctx context.Context, url string, in *features.Batch) (*PredictResp, error) {
	b, err := json.Marshal(PredictReq{Features: in})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/predict", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("predict %s: %s", resp.Status, string(body))
	}

	var out PredictResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("predict decode: %w", err)
	}
	return &out, nil
}
