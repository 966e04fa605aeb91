package api

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/oho/palette-refinery/internal/storage"
)

type assetResponse struct {
	Asset   storage.ImageAsset     `json:"asset"`
	Exists  bool                   `json:"exists"`
	Palette *storage.PaletteRecord `json:"palette"`
}

func AssetsRouter(db *storage.Database) chi.Router {
	r := chi.NewRouter()

	r.Get("/all", func(w http.ResponseWriter, r *http.Request) {
		assets, err := db.GetAllAssets()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if assets == nil {
			assets = []storage.ImageAsset{}
		}
		writeJSON(w, http.StatusOK, assets)
	})

	r.Get("/{asset_id}", func(w http.ResponseWriter, r *http.Request) {
		assetID := chi.URLParam(r, "asset_id")
		asset, err := db.GetImageAsset(assetID)
		if err != nil || asset == nil {
			http.Error(w, "Asset not found: "+assetID, http.StatusNotFound)
			return
		}

		p, err := db.GetPaletteForAsset(asset.ID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		_, statErr := os.Stat(asset.Path)
		writeJSON(w, http.StatusOK, assetResponse{
			Asset:   *asset,
			Exists:  statErr == nil,
			Palette: p,
		})
	})

	return r
}
