package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// --- Model description (/info) ---
type InfoResp struct {
	Name          string `json:"name"`
	OutDim        int    `json:"out_dim"`
	Probabilistic bool   `json:"probabilistic"`
	DimWise       bool   `json:"dim_wise"`
	Gaussians     int    `json:"num_gaussians,omitempty"`
}

func (h *HTTP) Info(ctx context.Context, url string) (*InfoResp, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/info", nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("info %s: %s", resp.Status, string(body))
	}

	var out InfoResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("info decode: %w", err)
	}
	return &out, nil
}
