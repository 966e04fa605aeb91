package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oho/palette-refinery/internal/kmeans"
	"github.com/oho/palette-refinery/internal/palette"
	"github.com/oho/palette-refinery/internal/storage"
)

// Ceilings on client-supplied work for /cluster.
const (
	maxClusterIterations = 1000
	maxClusterRestarts   = 100
)

type clusterRequest struct {
	Samples       [][]float64 `json:"samples"`
	K             int         `json:"k"`
	Metric        string      `json:"metric"`
	Policy        string      `json:"policy"`
	MaxIterations int         `json:"max_iterations"`
	Seed          *uint64     `json:"seed"`
	Tolerance     float64     `json:"tolerance"`
	MaxRestarts   int         `json:"max_restarts"`
}

type clusterResponse struct {
	Centroids      [][]float64 `json:"centroids"`
	Assignment     []int       `json:"assignment"`
	Converged      bool        `json:"converged"`
	IterationsUsed int         `json:"iterations_used"`
	Restarts       int         `json:"restarts"`
	Inertia        float64     `json:"inertia"`
}

func (req clusterRequest) config() (kmeans.Config, error) {
	cfg := kmeans.DefaultConfig()
	cfg.K = req.K
	metric, err := kmeans.MetricByName(req.Metric)
	if err != nil {
		return cfg, err
	}
	cfg.Metric = metric
	policy, err := kmeans.ParsePolicy(req.Policy)
	if err != nil {
		return cfg, err
	}
	cfg.Policy = policy
	if req.MaxIterations != 0 {
		cfg.MaxIterations = min(req.MaxIterations, maxClusterIterations)
	}
	if req.MaxRestarts != 0 {
		cfg.MaxRestarts = min(req.MaxRestarts, maxClusterRestarts)
	}
	cfg.Tolerance = req.Tolerance
	cfg.Seed = req.Seed
	return cfg, nil
}

// clusterStatus maps engine errors to HTTP status codes. A request the
// engine rejects outright is a 400; a well-formed request whose clusters
// degenerate under the chosen policy is a 422.
func clusterStatus(err error) int {
	switch {
	case errors.Is(err, kmeans.ErrDegenerateCluster):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

// PalettesRouter serves stored palettes and runs ad-hoc clustering. opts
// supplies the defaults for POST /image; maxBody caps the request body of
// both POST routes.
func PalettesRouter(db *storage.Database, opts palette.Options, maxBody int64) chi.Router {
	r := chi.NewRouter()

	r.Get("/list", func(w http.ResponseWriter, r *http.Request) {
		palettes, err := db.ListPalettes(queryInt(r, "limit", 50))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if palettes == nil {
			palettes = []storage.PaletteRecord{}
		}
		writeJSON(w, http.StatusOK, palettes)
	})

	r.Post("/cluster", func(w http.ResponseWriter, r *http.Request) {
		var req clusterRequest
		body := http.MaxBytesReader(w, r.Body, maxBody)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			status := http.StatusBadRequest
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			http.Error(w, err.Error(), status)
			return
		}
		cfg, err := req.config()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		data := make([]kmeans.Point, len(req.Samples))
		for i, s := range req.Samples {
			data[i] = kmeans.Point(s)
		}
		res, err := kmeans.Run(r.Context(), data, cfg)
		if err != nil {
			http.Error(w, err.Error(), clusterStatus(err))
			return
		}

		resp := clusterResponse{
			Centroids:      make([][]float64, len(res.Centroids)),
			Assignment:     res.Assignment,
			Converged:      res.Converged,
			IterationsUsed: res.Iterations,
			Restarts:       res.Restarts,
			Inertia:        res.Inertia,
		}
		for i, c := range res.Centroids {
			resp.Centroids[i] = c
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Post("/image", func(w http.ResponseWriter, r *http.Request) {
		body := io.LimitReader(r.Body, maxBody+1)
		raw, err := io.ReadAll(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if int64(len(raw)) > maxBody {
			http.Error(w, "Image too large", http.StatusRequestEntityTooLarge)
			return
		}

		img, _, err := palette.Decode(bytes.NewReader(raw))
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
			return
		}

		o := opts
		o.Cluster.K = queryInt(r, "k", o.Cluster.K)
		if space := r.URL.Query().Get("space"); space != "" {
			cs, err := palette.ParseColorSpace(space)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			o.ColorSpace = cs
		}

		p, err := palette.Extract(r.Context(), img, o)
		if err != nil {
			status := clusterStatus(err)
			if errors.Is(err, palette.ErrNoSamples) {
				status = http.StatusUnprocessableEntity
			}
			http.Error(w, err.Error(), status)
			return
		}
		writeJSON(w, http.StatusOK, p)
	})

	r.Get("/{asset_id}", func(w http.ResponseWriter, r *http.Request) {
		assetID := chi.URLParam(r, "asset_id")
		p, err := db.GetPaletteForAsset(assetID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if p == nil {
			http.Error(w, "Palette not found for asset: "+assetID, http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, p)
	})

	return r
}
