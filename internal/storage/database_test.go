package storage

import (
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := NewDatabase(dbPath)
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	if err := db.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrations(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := db.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion: %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("expected clean version 1, got %d dirty=%v", version, dirty)
	}

	// Running again is a no-op.
	if err := db.Initialize(); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}

	if err := db.MigrateDown(); err != nil {
		t.Fatalf("MigrateDown: %v", err)
	}
	var n int
	err = db.DB().QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='image_assets'").Scan(&n)
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if n != 0 {
		t.Error("expected image_assets to be dropped")
	}
}

func TestMemoryDatabase(t *testing.T) {
	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	defer db.Close()
	if err := db.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := db.UpsertImageAsset(NewImageAsset("m1", "/m.png", "m.png")); err != nil {
		t.Fatalf("UpsertImageAsset: %v", err)
	}
	got, err := db.GetImageAsset("m1")
	if err != nil || got == nil {
		t.Fatalf("GetImageAsset: %v %v", got, err)
	}
}

func TestImageAssetCRUD(t *testing.T) {
	db := newTestDB(t)

	a := NewImageAsset("abc123", "/tmp/test.png", "test.png")
	mime := "image/png"
	a.MimeType = &mime
	a.SizeBytes = 1024
	a.MtimeNs = 123456789

	if err := db.UpsertImageAsset(a); err != nil {
		t.Fatalf("UpsertImageAsset: %v", err)
	}

	got, err := db.GetImageAsset("abc123")
	if err != nil {
		t.Fatalf("GetImageAsset: %v", err)
	}
	if got == nil {
		t.Fatal("expected asset, got nil")
	}
	if got.Filename != "test.png" {
		t.Errorf("expected test.png, got %s", got.Filename)
	}
	if *got.MimeType != "image/png" {
		t.Errorf("expected image/png, got %s", *got.MimeType)
	}

	missing, err := db.GetImageAsset("nope")
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for missing asset, got %v, %v", missing, err)
	}

	// Get by path
	got2, err := db.GetImageAssetByPath("/tmp/test.png")
	if err != nil {
		t.Fatalf("GetImageAssetByPath: %v", err)
	}
	if got2 == nil || got2.ID != "abc123" {
		t.Error("GetImageAssetByPath failed")
	}

	if err := db.UpdateAssetImageInfo("abc123", "png", 640, 480); err != nil {
		t.Fatalf("UpdateAssetImageInfo: %v", err)
	}
	got3, _ := db.GetImageAsset("abc123")
	if got3.Width != 640 || got3.Height != 480 || got3.Format == nil || *got3.Format != "png" {
		t.Errorf("image info not stored: %+v", got3)
	}

	// Update status
	errMsg := "test error"
	if err := db.UpdateAssetStatus("abc123", StatusError, &errMsg); err != nil {
		t.Fatalf("UpdateAssetStatus: %v", err)
	}
	got4, _ := db.GetImageAsset("abc123")
	if got4.Status != StatusError {
		t.Errorf("expected error status, got %s", got4.Status)
	}

	counts, err := db.CountAssetsByStatus()
	if err != nil {
		t.Fatalf("CountAssetsByStatus: %v", err)
	}
	if counts["error"] != 1 {
		t.Errorf("expected 1 error, got %d", counts["error"])
	}

	assets, err := db.GetAssetsByStatus(StatusError, 100)
	if err != nil {
		t.Fatalf("GetAssetsByStatus: %v", err)
	}
	if len(assets) != 1 {
		t.Errorf("expected 1 asset, got %d", len(assets))
	}

	all, err := db.GetAllAssets()
	if err != nil {
		t.Fatalf("GetAllAssets: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 asset, got %d", len(all))
	}
}

func testPalette(id, assetID string) PaletteRecord {
	return PaletteRecord{
		ID:          id,
		AssetID:     assetID,
		ColorSpace:  "lab",
		K:           2,
		Converged:   true,
		Iterations:  3,
		Inertia:     0.25,
		SampleCount: 100,
		CreatedAt:   nowISO(),
		Swatches: []SwatchRecord{
			{Rank: 0, Hex: "#ff0000", R: 255, Components: []float64{0.53, 0.8, 0.67}, Count: 70, Weight: 0.7},
			{Rank: 1, Hex: "#0000ff", B: 255, Components: []float64{0.32, 0.79, -1.08}, Count: 30, Weight: 0.3},
		},
	}
}

func TestPaletteCRUD(t *testing.T) {
	db := newTestDB(t)
	if err := db.UpsertImageAsset(NewImageAsset("asset1", "/tmp/a.png", "a.png")); err != nil {
		t.Fatalf("UpsertImageAsset: %v", err)
	}

	if err := db.SavePalette(testPalette("p1", "asset1")); err != nil {
		t.Fatalf("SavePalette: %v", err)
	}

	got, err := db.GetPaletteForAsset("asset1")
	if err != nil {
		t.Fatalf("GetPaletteForAsset: %v", err)
	}
	if got == nil || got.ID != "p1" {
		t.Fatalf("expected palette p1, got %+v", got)
	}
	if !got.Converged || got.Iterations != 3 || got.K != 2 {
		t.Errorf("palette fields not round-tripped: %+v", got)
	}
	if len(got.Swatches) != 2 {
		t.Fatalf("expected 2 swatches, got %d", len(got.Swatches))
	}
	if got.Swatches[0].Hex != "#ff0000" || got.Swatches[0].R != 255 || got.Swatches[1].B != 255 {
		t.Errorf("unexpected swatches: %+v", got.Swatches)
	}
	if got.Swatches[1].Components[2] != -1.08 {
		t.Errorf("expected components to round-trip, got %v", got.Swatches[1].Components)
	}

	// Saving again replaces the earlier palette.
	if err := db.SavePalette(testPalette("p2", "asset1")); err != nil {
		t.Fatalf("SavePalette replace: %v", err)
	}
	n, err := db.CountPalettes()
	if err != nil {
		t.Fatalf("CountPalettes: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 palette after replace, got %d", n)
	}
	var swatches int
	db.DB().QueryRow("SELECT COUNT(*) FROM palette_swatches").Scan(&swatches)
	if swatches != 2 {
		t.Errorf("expected old swatches removed, got %d rows", swatches)
	}

	list, err := db.ListPalettes(10)
	if err != nil {
		t.Fatalf("ListPalettes: %v", err)
	}
	if len(list) != 1 || list[0].ID != "p2" || len(list[0].Swatches) != 2 {
		t.Errorf("unexpected list: %+v", list)
	}

	if err := db.DeletePalettesForAsset("asset1"); err != nil {
		t.Fatalf("DeletePalettesForAsset: %v", err)
	}
	gone, err := db.GetPaletteForAsset("asset1")
	if err != nil || gone != nil {
		t.Errorf("expected no palette after delete, got %v, %v", gone, err)
	}
}

func TestPaletteRequiresAsset(t *testing.T) {
	db := newTestDB(t)
	if err := db.SavePalette(testPalette("p1", "ghost")); err == nil {
		t.Error("expected foreign key violation for unknown asset")
	}
}

func TestPipelineJobCRUD(t *testing.T) {
	db := newTestDB(t)

	job := PipelineJob{
		ID:        "job1",
		JobType:   "full_ingest",
		Status:    JobRunning,
		CreatedAt: nowISO(),
		UpdatedAt: nowISO(),
	}
	if err := db.UpsertPipelineJob(job); err != nil {
		t.Fatalf("UpsertPipelineJob: %v", err)
	}

	jt := "full_ingest"
	got, err := db.GetLatestJob(&jt)
	if err != nil {
		t.Fatalf("GetLatestJob: %v", err)
	}
	if got == nil || got.ID != "job1" {
		t.Error("GetLatestJob failed")
	}

	progress := `{"stage":"scanning"}`
	if err := db.UpdateJobStatus("job1", JobCompleted, &progress); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}

	got2, _ := db.GetLatestJob(nil)
	if got2.Status != JobCompleted {
		t.Errorf("expected completed, got %s", got2.Status)
	}
}

func TestWatchedVolumeCRUD(t *testing.T) {
	db := newTestDB(t)

	label := "Photos"
	vol := NewWatchedVolume("vol1", "/tmp/photos", &label)
	if err := db.AddWatchedVolume(vol); err != nil {
		t.Fatalf("AddWatchedVolume: %v", err)
	}

	vols, err := db.GetWatchedVolumes()
	if err != nil {
		t.Fatalf("GetWatchedVolumes: %v", err)
	}
	if len(vols) != 1 {
		t.Errorf("expected 1 volume, got %d", len(vols))
	}
	if vols[0].Path != "/tmp/photos" {
		t.Errorf("expected /tmp/photos, got %s", vols[0].Path)
	}

	if err := db.UpdateVolumeScanTime("vol1"); err != nil {
		t.Fatalf("UpdateVolumeScanTime: %v", err)
	}
	vols, _ = db.GetWatchedVolumes()
	if vols[0].LastScanAt == nil {
		t.Error("expected last_scan_at to be set")
	}

	if err := db.RemoveWatchedVolume("/tmp/photos"); err != nil {
		t.Fatalf("RemoveWatchedVolume: %v", err)
	}
	vols2, _ := db.GetWatchedVolumes()
	if len(vols2) != 0 {
		t.Errorf("expected 0 volumes after remove, got %d", len(vols2))
	}
}
