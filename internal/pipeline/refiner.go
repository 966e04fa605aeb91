package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"log/slog"

	"github.com/google/uuid"

	"github.com/oho/palette-refinery/internal/config"
	"github.com/oho/palette-refinery/internal/palette"
	"github.com/oho/palette-refinery/internal/storage"
)

// Refiner turns one image asset into a stored palette.
type Refiner struct {
	db         *storage.Database
	ss         *storage.SwatchStore
	opts       palette.Options
	configJSON string
}

func NewRefiner(db *storage.Database, ss *storage.SwatchStore, cfg config.Config) (*Refiner, error) {
	opts, err := cfg.PaletteOptions()
	if err != nil {
		return nil, err
	}
	settings, _ := json.Marshal(map[string]any{
		"version":    cfg.Pipeline.Version,
		"clustering": cfg.Clustering,
		"sampling":   cfg.Sampling,
	})
	return &Refiner{db: db, ss: ss, opts: opts, configJSON: string(settings)}, nil
}

// Options returns the extraction settings the refiner applies.
func (r *Refiner) Options() palette.Options {
	return r.opts
}

// RefineAsset decodes the asset, extracts its palette and replaces whatever
// was stored for it before. The asset ends up extracted or error; an
// extraction cut short by ctx leaves it pending for the next run.
func (r *Refiner) RefineAsset(ctx context.Context, asset storage.ImageAsset) (*palette.Palette, error) {
	p, err := r.refine(ctx, asset)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if uerr := r.db.UpdateAssetStatus(asset.ID, storage.StatusPending, nil); uerr != nil {
			slog.Error("Failed to reset asset", "file", asset.Filename, "error", uerr)
		}
		return nil, err
	}
	if err != nil {
		errMsg := err.Error()
		if uerr := r.db.UpdateAssetStatus(asset.ID, storage.StatusError, &errMsg); uerr != nil {
			slog.Error("Failed to record asset error", "file", asset.Filename, "error", uerr)
		}
		return nil, err
	}
	if err := r.db.UpdateAssetStatus(asset.ID, storage.StatusExtracted, nil); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Refiner) refine(ctx context.Context, asset storage.ImageAsset) (*palette.Palette, error) {
	img, format, err := palette.DecodeFile(asset.Path)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if err := r.db.UpdateAssetImageInfo(asset.ID, format, b.Dx(), b.Dy()); err != nil {
		return nil, err
	}

	p, err := palette.Extract(ctx, img, r.opts)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", asset.Filename, err)
	}

	rec := storage.PaletteRecord{
		ID:          uuid.New().String(),
		AssetID:     asset.ID,
		ColorSpace:  string(p.ColorSpace),
		K:           len(p.Swatches),
		Converged:   p.Converged,
		Iterations:  p.Iterations,
		Restarts:    p.Restarts,
		Inertia:     p.Inertia,
		SampleCount: p.SampleCount,
		ConfigJSON:  &r.configJSON,
		CreatedAt:   storage.NowISO(),
	}
	vectors := make([]storage.SwatchVector, 0, len(p.Swatches))
	for rank, s := range p.Swatches {
		rec.Swatches = append(rec.Swatches, storage.SwatchRecord{
			Rank:       rank,
			Hex:        s.Hex,
			R:          s.RGB[0],
			G:          s.RGB[1],
			B:          s.RGB[2],
			Components: s.Components,
			Count:      s.Count,
			Weight:     s.Weight,
		})
		vectors = append(vectors, storage.SwatchVector{
			ID:        fmt.Sprintf("%s:%d", rec.ID, rank),
			AssetID:   asset.ID,
			PaletteID: rec.ID,
			Hex:       s.Hex,
			Weight:    s.Weight,
			Lab:       labOf(p.ColorSpace, s),
		})
	}

	if err := r.db.SavePalette(rec); err != nil {
		return nil, fmt.Errorf("save palette: %w", err)
	}
	if err := r.ss.DeleteByAsset(asset.ID); err != nil {
		return nil, err
	}
	if err := r.ss.Add(vectors); err != nil {
		return nil, fmt.Errorf("index swatches: %w", err)
	}
	slog.Debug("Palette extracted", "file", asset.Filename, "swatches", len(p.Swatches),
		"iterations", p.Iterations, "converged", p.Converged)
	return p, nil
}

func labOf(cs palette.ColorSpace, s palette.Swatch) []float64 {
	if cs == palette.SpaceLab {
		return s.Components
	}
	return palette.SpaceLab.PointOf(color.NRGBA{R: s.RGB[0], G: s.RGB[1], B: s.RGB[2], A: 255})
}
