package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oho/palette-refinery/internal/palette"
	"github.com/oho/palette-refinery/internal/storage"
)

type searchResultItem struct {
	storage.SwatchMatch
	AssetPath string `json:"asset_path"`
	Filename  string `json:"filename"`
}

// SearchRouter finds stored swatches closest to a query colour.
func SearchRouter(ss *storage.SwatchStore, db *storage.Database) chi.Router {
	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		hex := strings.TrimSpace(r.URL.Query().Get("hex"))
		if hex == "" {
			http.Error(w, "hex parameter required", http.StatusBadRequest)
			return
		}
		if !strings.HasPrefix(hex, "#") {
			hex = "#" + hex
		}
		lab, err := palette.LabOf(hex)
		if err != nil {
			http.Error(w, "Invalid colour: "+hex, http.StatusBadRequest)
			return
		}

		matches := ss.Search(lab, queryInt(r, "limit", 10))
		items := make([]searchResultItem, len(matches))
		assets := make(map[string]*storage.ImageAsset)
		for i, m := range matches {
			item := searchResultItem{SwatchMatch: m}
			asset, seen := assets[m.AssetID]
			if !seen {
				asset, _ = db.GetImageAsset(m.AssetID)
				assets[m.AssetID] = asset
			}
			if asset != nil {
				item.AssetPath = asset.Path
				item.Filename = asset.Filename
			}
			items[i] = item
		}
		writeJSON(w, http.StatusOK, items)
	})

	return r
}
