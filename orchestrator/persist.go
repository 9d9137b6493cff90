package orchestrator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/maastricht-university/svs-acoustic/features"
	"github.com/maastricht-university/svs-acoustic/stream"
)

type PersistBundle struct {
	SessionID   string        `json:"session_id"`
	InputPath   string        `json:"input_path"`
	GeneratedAt time.Time     `json:"generated_at"`
	Layout      stream.Layout `json:"layout"`
	LF0Column   int           `json:"lf0_column"`
	Features    string        `json:"features"`
	Variance    string        `json:"variance,omitempty"`
	LF0Residual string        `json:"lf0_residual,omitempty"`
}

// Session locates the files written for one run.
type Session struct {
	ID       string
	Dir      string
	Manifest string
}

func mkSessionDir(outputsRoot string) (string, string, error) {
	ts := time.Now().Format("20060102-150405.000")
	sid := "session_" + ts
	dir := filepath.Join(outputsRoot, sid)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}
	return sid, dir, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteBatch stores x as {"frames": [...], "lengths": [...]}.
func WriteBatch(path string, x *features.Batch) error { return writeJSON(path, x) }

// WriteJSON stores v as indented JSON.
func WriteJSON(path string, v any) error { return writeJSON(path, v) }

func persist(outputsRoot, inputPath string, res *Result) (*Session, error) {
	sid, outDir, err := mkSessionDir(outputsRoot)
	if err != nil {
		return nil, err
	}

	bundle := PersistBundle{
		SessionID:   sid,
		InputPath:   inputPath,
		GeneratedAt: time.Now(),
		Layout:      res.Layout,
		Features:    "features.json",
	}
	bundle.LF0Column, _ = res.Layout.Offset("lf0")
	if err = writeJSON(filepath.Join(outDir, bundle.Features), res.Features); err != nil {
		return nil, err
	}
	if res.Variance != nil {
		bundle.Variance = "variance.json"
		if err = writeJSON(filepath.Join(outDir, bundle.Variance), res.Variance); err != nil {
			return nil, err
		}
	}
	if res.LF0Residual != nil {
		bundle.LF0Residual = "lf0_residual.json"
		if err = writeJSON(filepath.Join(outDir, bundle.LF0Residual), res.LF0Residual); err != nil {
			return nil, err
		}
	}

	manifest := filepath.Join(outDir, "manifest.json")
	if err = writeJSON(manifest, bundle); err != nil {
		return nil, err
	}
	return &Session{ID: sid, Dir: outDir, Manifest: manifest}, nil
}
