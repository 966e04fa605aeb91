package api

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oho/palette-refinery/internal/storage"
)

type addVolumeRequest struct {
	Path  string  `json:"path"`
	Label *string `json:"label"`
}

type volumeResponse struct {
	ID         string  `json:"id"`
	Path       string  `json:"path"`
	Label      *string `json:"label"`
	AddedAt    string  `json:"added_at"`
	LastScanAt *string `json:"last_scan_at"`
}

func toVolumeResponse(v storage.WatchedVolume) volumeResponse {
	return volumeResponse{
		ID: v.ID, Path: v.Path, Label: v.Label,
		AddedAt: v.AddedAt, LastScanAt: v.LastScanAt,
	}
}

// VolumesRouter manages the directories scanned when an ingest run is started
// without explicit paths.
func VolumesRouter(db *storage.Database) chi.Router {
	r := chi.NewRouter()

	r.Post("/add", func(w http.ResponseWriter, r *http.Request) {
		var req addVolumeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		p, err := absDir(req.Path)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		vols, err := db.GetWatchedVolumes()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if slices.ContainsFunc(vols, func(v storage.WatchedVolume) bool { return v.Path == p }) {
			http.Error(w, "Volume already watched: "+p, http.StatusBadRequest)
			return
		}

		label := req.Label
		if label == nil {
			base := filepath.Base(p)
			label = &base
		}

		vol := storage.NewWatchedVolume(uuid.NewString(), p, label)
		if err := db.AddWatchedVolume(vol); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, toVolumeResponse(vol))
	})

	r.Get("/list", func(w http.ResponseWriter, r *http.Request) {
		vols, err := db.GetWatchedVolumes()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp := make([]volumeResponse, len(vols))
		for i, v := range vols {
			resp[i] = toVolumeResponse(v)
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Delete("/remove", func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		if path == "" {
			http.Error(w, "path parameter required", http.StatusBadRequest)
			return
		}
		p, _ := filepath.Abs(path)
		vols, err := db.GetWatchedVolumes()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if !slices.ContainsFunc(vols, func(v storage.WatchedVolume) bool { return v.Path == p }) {
			http.Error(w, "Volume not watched: "+p, http.StatusNotFound)
			return
		}
		if err := db.RemoveWatchedVolume(p); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "removed", "path": p})
	})

	return r
}
