package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/oho/palette-refinery/internal/palette"
	"github.com/oho/palette-refinery/internal/storage"
)

func setupRefinerTest(t *testing.T) (*Refiner, *storage.Database, *storage.SwatchStore, string) {
	t.Helper()
	db := newTestDB(t)
	ss := storage.NewSwatchStore(db.DB())
	dir := t.TempDir()
	r, err := NewRefiner(db, ss, testConfig(dir))
	if err != nil {
		t.Fatalf("NewRefiner: %v", err)
	}
	return r, db, ss, dir
}

func addAsset(t *testing.T, db *storage.Database, id, path string) storage.ImageAsset {
	t.Helper()
	a := storage.NewImageAsset(id, path, filepath.Base(path))
	if err := db.UpsertImageAsset(a); err != nil {
		t.Fatal(err)
	}
	return a
}

func TestRefineAsset(t *testing.T) {
	r, db, ss, dir := setupRefinerTest(t)
	path := filepath.Join(dir, "flag.png")
	writePNG(t, path, 8, 4, 6, red, blue)
	asset := addAsset(t, db, "a1", path)

	p, err := r.RefineAsset(context.Background(), asset)
	if err != nil {
		t.Fatalf("RefineAsset: %v", err)
	}
	if len(p.Swatches) != 2 || p.Swatches[0].Hex != "#ff0000" {
		t.Fatalf("unexpected palette: %+v", p.Swatches)
	}

	got, _ := db.GetImageAsset("a1")
	if got.Status != storage.StatusExtracted {
		t.Errorf("expected extracted, got %s", got.Status)
	}
	if got.Width != 8 || got.Height != 4 || got.Format == nil || *got.Format != "png" {
		t.Errorf("image info not recorded: %+v", got)
	}

	rec, err := db.GetPaletteForAsset("a1")
	if err != nil || rec == nil {
		t.Fatalf("GetPaletteForAsset: %v %v", rec, err)
	}
	if len(rec.Swatches) != 2 || rec.Swatches[0].Count != 24 || rec.Swatches[1].Hex != "#0000ff" {
		t.Errorf("unexpected stored swatches: %+v", rec.Swatches)
	}
	if rec.K != 2 {
		t.Errorf("expected k=2, got %d", rec.K)
	}
	if rec.ConfigJSON == nil || *rec.ConfigJSON == "" {
		t.Error("expected config snapshot on palette")
	}

	if ss.Count() != 2 {
		t.Errorf("expected 2 indexed swatches, got %d", ss.Count())
	}
	lab, _ := palette.LabOf("#fe0101")
	matches := ss.Search(lab, 1)
	if len(matches) != 1 || matches[0].Hex != "#ff0000" || matches[0].AssetID != "a1" {
		t.Errorf("unexpected search result: %+v", matches)
	}

	// Refining again replaces rather than accumulates.
	if _, err := r.RefineAsset(context.Background(), asset); err != nil {
		t.Fatalf("second RefineAsset: %v", err)
	}
	if ss.Count() != 2 {
		t.Errorf("expected swatches replaced, got %d", ss.Count())
	}
	if n, _ := db.CountPalettes(); n != 1 {
		t.Errorf("expected 1 palette, got %d", n)
	}
}

func TestRefineAssetNonLabSpace(t *testing.T) {
	db := newTestDB(t)
	ss := storage.NewSwatchStore(db.DB())
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Sampling.ColorSpace = "rgb"
	r, err := NewRefiner(db, ss, cfg)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "flag.png")
	writePNG(t, path, 4, 4, 2, red, blue)

	if _, err := r.RefineAsset(context.Background(), addAsset(t, db, "a1", path)); err != nil {
		t.Fatalf("RefineAsset: %v", err)
	}
	target, _ := palette.LabOf("#ff0000")
	matches := ss.Search(target, 1)
	if len(matches) != 1 || matches[0].Hex != "#ff0000" || matches[0].Distance > 1e-3 {
		t.Errorf("expected swatch indexed in Lab, got %+v", matches)
	}
}

func TestRefineAssetErrors(t *testing.T) {
	r, db, ss, dir := setupRefinerTest(t)

	bad := filepath.Join(dir, "broken.png")
	os.WriteFile(bad, []byte("not a png"), 0644)
	if _, err := r.RefineAsset(context.Background(), addAsset(t, db, "bad", bad)); err == nil {
		t.Error("expected decode error")
	}
	got, _ := db.GetImageAsset("bad")
	if got.Status != storage.StatusError || got.ErrorMessage == nil {
		t.Errorf("expected error status with message, got %+v", got)
	}

	empty := filepath.Join(dir, "clear.png")
	writePNG(t, empty, 2, 2, 1, transparent, transparent)
	if _, err := r.RefineAsset(context.Background(), addAsset(t, db, "clear", empty)); err == nil {
		t.Error("expected no-samples error for fully transparent image")
	}
	if ss.Count() != 0 {
		t.Errorf("expected nothing indexed, got %d", ss.Count())
	}
}

func TestRefineAssetStoresEffectiveK(t *testing.T) {
	r, db, _, dir := setupRefinerTest(t)
	path := filepath.Join(dir, "solid.png")
	writePNG(t, path, 4, 4, 4, red, red)

	p, err := r.RefineAsset(context.Background(), addAsset(t, db, "solid", path))
	if err != nil {
		t.Fatalf("RefineAsset: %v", err)
	}
	if len(p.Swatches) != 1 {
		t.Fatalf("expected 1 swatch for a solid image, got %d", len(p.Swatches))
	}
	rec, _ := db.GetPaletteForAsset("solid")
	if rec == nil || rec.K != 1 {
		t.Errorf("expected stored k=1, got %+v", rec)
	}
}

func TestRefineAssetCancelledStaysPending(t *testing.T) {
	r, db, _, _ := setupRefinerTest(t)
	imgDir := t.TempDir()
	path := filepath.Join(imgDir, "flag.png")
	writePNG(t, path, 8, 4, 6, red, blue)

	scanner := NewScanner(db, testConfig(imgDir))
	if _, err := scanner.ScanDirectory(imgDir); err != nil {
		t.Fatal(err)
	}
	abs, _ := filepath.Abs(path)
	asset, err := db.GetImageAssetByPath(abs)
	if err != nil || asset == nil {
		t.Fatalf("asset not scanned: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.RefineAsset(ctx, *asset); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	got, _ := db.GetImageAsset(asset.ID)
	if got.Status != storage.StatusPending || got.ErrorMessage != nil {
		t.Errorf("expected pending without error, got %s %v", got.Status, got.ErrorMessage)
	}
	if rec, _ := db.GetPaletteForAsset(asset.ID); rec != nil {
		t.Error("expected no palette after cancellation")
	}

	stats, err := scanner.ScanDirectory(imgDir)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Unchanged != 1 {
		t.Errorf("expected unchanged=1 on rescan, got %+v", stats)
	}
	pending, _ := db.GetAssetsByStatus(storage.StatusPending, -1)
	if len(pending) != 1 || pending[0].ID != asset.ID {
		t.Fatalf("expected the asset queued again, got %d pending", len(pending))
	}

	if _, err := r.RefineAsset(context.Background(), pending[0]); err != nil {
		t.Fatalf("RefineAsset after rescan: %v", err)
	}
	got, _ = db.GetImageAsset(asset.ID)
	if got.Status != storage.StatusExtracted {
		t.Errorf("expected extracted, got %s", got.Status)
	}
}
