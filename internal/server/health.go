package server

import (
	"encoding/json"
	"net/http"

	"github.com/oho/palette-refinery/internal/config"
	"github.com/oho/palette-refinery/internal/storage"
)

type HealthResponse struct {
	Status         string   `json:"status"`
	DB             string   `json:"db"`
	DBVersion      uint     `json:"db_version"`
	SwatchCount    int      `json:"swatch_count"`
	PaletteCount   int      `json:"palette_count"`
	DataDir        string   `json:"data_dir"`
	Port           int      `json:"port"`
	WatchedVolumes []string `json:"watched_volumes"`
	DefaultK       int      `json:"default_k"`
	ColorSpace     string   `json:"color_space"`
}

// HealthHandler returns a handler for GET /health.
func HealthHandler(cfg config.Config, db *storage.Database, ss *storage.SwatchStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:         "ok",
			DB:             "unavailable",
			DataDir:        cfg.DataDir,
			Port:           cfg.Port,
			WatchedVolumes: []string{},
			DefaultK:       cfg.Clustering.K,
			ColorSpace:     cfg.Sampling.ColorSpace,
		}
		if ss != nil {
			resp.SwatchCount = ss.Count()
		}

		if db != nil {
			if err := db.DB().PingContext(r.Context()); err == nil {
				resp.DB = "connected"
			} else {
				resp.Status = "degraded"
			}
			if v, _, err := db.MigrateVersion(); err == nil {
				resp.DBVersion = v
			}
			resp.PaletteCount, _ = db.CountPalettes()
			vols, _ := db.GetWatchedVolumes()
			for _, v := range vols {
				resp.WatchedVolumes = append(resp.WatchedVolumes, v.Path)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
