package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/oho/palette-refinery/internal/pipeline"
)

type startIngestRequest struct {
	Paths []string `json:"paths"`
}

type startIngestResponse struct {
	JobID  string   `json:"job_id"`
	Status string   `json:"status"`
	Paths  []string `json:"paths"`
}

// absDir resolves p to an absolute path naming an existing directory.
func absDir(p string) (string, error) {
	if p == "" {
		return "", errors.New("empty path")
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("not a valid directory: %s", p)
	}
	return abs, nil
}

// resolvePaths validates every requested root and drops duplicates.
func resolvePaths(paths []string) ([]string, error) {
	seen := make(map[string]bool, len(paths))
	var out []string
	for _, p := range paths {
		abs, err := absDir(p)
		if err != nil {
			return nil, err
		}
		if !seen[abs] {
			seen[abs] = true
			out = append(out, abs)
		}
	}
	return out, nil
}

// IngestRouter starts pipeline runs and reports their progress. A start
// request without paths scans the watched volumes.
func IngestRouter(orch *pipeline.Orchestrator) chi.Router {
	r := chi.NewRouter()

	r.Post("/start", func(w http.ResponseWriter, r *http.Request) {
		if orch.IsRunning() {
			http.Error(w, "Pipeline is already running", http.StatusConflict)
			return
		}

		var req startIngestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		paths, err := resolvePaths(req.Paths)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		jobID, err := orch.RunPipeline(paths)
		if err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}

		if paths == nil {
			paths = []string{}
		}
		writeJSON(w, http.StatusOK, startIngestResponse{JobID: jobID, Status: "started", Paths: paths})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, orch.GetStatus())
	})

	return r
}
