package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Database provides thread-safe SQLite operations.
type Database struct {
	db *sql.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	// Connection-scoped pragmas go in the DSN so every pooled connection gets them.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %s: %w", pragma, err)
		}
	}
	return &Database{db: db}, nil
}

// Initialize brings the schema up to date.
func (d *Database) Initialize() error {
	return d.MigrateUp()
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) DB() *sql.DB {
	return d.db
}

// -- ImageAsset operations --

const assetColumns = `id, path, filename, mime_type, format, width, height, size_bytes, mtime_ns,
	content_hash, scan_version, status, error_message, created_at, updated_at`

func (d *Database) UpsertImageAsset(a ImageAsset) error {
	now := nowISO()
	_, err := d.db.Exec(`
		INSERT INTO image_assets (`+assetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path=excluded.path, filename=excluded.filename, mime_type=excluded.mime_type,
			format=excluded.format, width=excluded.width, height=excluded.height,
			size_bytes=excluded.size_bytes, mtime_ns=excluded.mtime_ns,
			content_hash=excluded.content_hash, scan_version=excluded.scan_version,
			status=excluded.status, error_message=excluded.error_message, updated_at=?`,
		a.ID, a.Path, a.Filename, a.MimeType, a.Format, a.Width, a.Height, a.SizeBytes, a.MtimeNs,
		a.ContentHash, a.ScanVersion, string(a.Status), a.ErrorMessage, a.CreatedAt, now, now,
	)
	return err
}

func (d *Database) GetImageAsset(assetID string) (*ImageAsset, error) {
	return scanImageAsset(d.db.QueryRow("SELECT "+assetColumns+" FROM image_assets WHERE id=?", assetID))
}

func (d *Database) GetImageAssetByPath(path string) (*ImageAsset, error) {
	return scanImageAsset(d.db.QueryRow("SELECT "+assetColumns+" FROM image_assets WHERE path=?", path))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImageAsset(row rowScanner) (*ImageAsset, error) {
	var a ImageAsset
	var status string
	err := row.Scan(
		&a.ID, &a.Path, &a.Filename, &a.MimeType, &a.Format, &a.Width, &a.Height, &a.SizeBytes,
		&a.MtimeNs, &a.ContentHash, &a.ScanVersion, &status, &a.ErrorMessage, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Status = AssetStatus(status)
	return &a, nil
}

func (d *Database) GetAssetsByStatus(status AssetStatus, limit int) ([]ImageAsset, error) {
	rows, err := d.db.Query("SELECT "+assetColumns+" FROM image_assets WHERE status=? LIMIT ?", string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanImageAssets(rows)
}

func (d *Database) GetAllAssets() ([]ImageAsset, error) {
	rows, err := d.db.Query("SELECT " + assetColumns + " FROM image_assets ORDER BY path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanImageAssets(rows)
}

func scanImageAssets(rows *sql.Rows) ([]ImageAsset, error) {
	var assets []ImageAsset
	for rows.Next() {
		a, err := scanImageAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}

func (d *Database) UpdateAssetStatus(assetID string, status AssetStatus, errMsg *string) error {
	now := nowISO()
	_, err := d.db.Exec(
		"UPDATE image_assets SET status=?, error_message=?, updated_at=? WHERE id=?",
		string(status), errMsg, now, assetID,
	)
	return err
}

// UpdateAssetImageInfo records what decoding learned about the file.
func (d *Database) UpdateAssetImageInfo(assetID, format string, width, height int) error {
	_, err := d.db.Exec(
		"UPDATE image_assets SET format=?, width=?, height=?, updated_at=? WHERE id=?",
		format, width, height, nowISO(), assetID,
	)
	return err
}

func (d *Database) CountAssetsByStatus() (map[string]int, error) {
	rows, err := d.db.Query("SELECT status, COUNT(*) as cnt FROM image_assets GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make(map[string]int)
	for rows.Next() {
		var status string
		var cnt int
		if err := rows.Scan(&status, &cnt); err != nil {
			return nil, err
		}
		result[status] = cnt
	}
	return result, rows.Err()
}

// -- Palette operations --

// SavePalette stores p and its swatches, replacing any earlier palette for
// the same asset.
func (d *Database) SavePalette(p PaletteRecord) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	if err := deletePalettes(tx, p.AssetID); err != nil {
		tx.Rollback()
		return err
	}
	_, err = tx.Exec(`
		INSERT INTO palettes (id, asset_id, color_space, k, converged, iterations, restarts,
			inertia, sample_count, config_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.AssetID, p.ColorSpace, p.K, p.Converged, p.Iterations, p.Restarts,
		p.Inertia, p.SampleCount, p.ConfigJSON, p.CreatedAt,
	)
	if err != nil {
		tx.Rollback()
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO palette_swatches (palette_id, rank, hex, r, g, b, components_json, count, weight)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, s := range p.Swatches {
		components, err := json.Marshal(s.Components)
		if err != nil {
			tx.Rollback()
			return err
		}
		_, err = stmt.Exec(p.ID, s.Rank, s.Hex, s.R, s.G, s.B, string(components), s.Count, s.Weight)
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func deletePalettes(tx *sql.Tx, assetID string) error {
	if _, err := tx.Exec(
		"DELETE FROM palette_swatches WHERE palette_id IN (SELECT id FROM palettes WHERE asset_id=?)",
		assetID,
	); err != nil {
		return err
	}
	_, err := tx.Exec("DELETE FROM palettes WHERE asset_id=?", assetID)
	return err
}

// DeletePalettesForAsset removes every stored palette of an asset.
func (d *Database) DeletePalettesForAsset(assetID string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	if err := deletePalettes(tx, assetID); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

const paletteColumns = `id, asset_id, color_space, k, converged, iterations, restarts,
	inertia, sample_count, config_json, created_at`

func scanPalette(row rowScanner) (*PaletteRecord, error) {
	var p PaletteRecord
	err := row.Scan(
		&p.ID, &p.AssetID, &p.ColorSpace, &p.K, &p.Converged, &p.Iterations, &p.Restarts,
		&p.Inertia, &p.SampleCount, &p.ConfigJSON, &p.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPaletteForAsset returns the asset's palette with swatches, or nil.
func (d *Database) GetPaletteForAsset(assetID string) (*PaletteRecord, error) {
	p, err := scanPalette(d.db.QueryRow(
		"SELECT "+paletteColumns+" FROM palettes WHERE asset_id=? ORDER BY created_at DESC LIMIT 1",
		assetID,
	))
	if err != nil || p == nil {
		return p, err
	}
	p.Swatches, err = d.getSwatches(p.ID)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListPalettes returns up to limit palettes, newest first, with swatches.
func (d *Database) ListPalettes(limit int) ([]PaletteRecord, error) {
	rows, err := d.db.Query(
		"SELECT "+paletteColumns+" FROM palettes ORDER BY created_at DESC, id LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	var palettes []PaletteRecord
	for rows.Next() {
		p, err := scanPalette(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		palettes = append(palettes, *p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range palettes {
		palettes[i].Swatches, err = d.getSwatches(palettes[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return palettes, nil
}

func (d *Database) getSwatches(paletteID string) ([]SwatchRecord, error) {
	rows, err := d.db.Query(`
		SELECT rank, hex, r, g, b, components_json, count, weight
		FROM palette_swatches WHERE palette_id=? ORDER BY rank`,
		paletteID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var swatches []SwatchRecord
	for rows.Next() {
		var s SwatchRecord
		var components string
		if err := rows.Scan(&s.Rank, &s.Hex, &s.R, &s.G, &s.B, &components, &s.Count, &s.Weight); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(components), &s.Components); err != nil {
			return nil, fmt.Errorf("swatch %d of palette %s: %w", s.Rank, paletteID, err)
		}
		swatches = append(swatches, s)
	}
	return swatches, rows.Err()
}

func (d *Database) CountPalettes() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM palettes").Scan(&n)
	return n, err
}

// -- PipelineJob operations --

func (d *Database) UpsertPipelineJob(job PipelineJob) error {
	now := nowISO()
	_, err := d.db.Exec(`
		INSERT INTO pipeline_jobs (id, job_type, status, progress_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status=excluded.status, progress_json=excluded.progress_json, updated_at=?`,
		job.ID, job.JobType, string(job.Status), job.ProgressJSON, job.CreatedAt, now, now,
	)
	return err
}

func (d *Database) GetLatestJob(jobType *string) (*PipelineJob, error) {
	var row *sql.Row
	if jobType != nil {
		row = d.db.QueryRow(
			"SELECT id, job_type, status, progress_json, created_at, updated_at FROM pipeline_jobs WHERE job_type=? ORDER BY created_at DESC LIMIT 1",
			*jobType,
		)
	} else {
		row = d.db.QueryRow("SELECT id, job_type, status, progress_json, created_at, updated_at FROM pipeline_jobs ORDER BY created_at DESC LIMIT 1")
	}
	var j PipelineJob
	var status string
	err := row.Scan(&j.ID, &j.JobType, &status, &j.ProgressJSON, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	j.Status = JobStatus(status)
	return &j, nil
}

func (d *Database) UpdateJobStatus(jobID string, status JobStatus, progress *string) error {
	now := nowISO()
	_, err := d.db.Exec(
		"UPDATE pipeline_jobs SET status=?, progress_json=?, updated_at=? WHERE id=?",
		string(status), progress, now, jobID,
	)
	return err
}

// -- WatchedVolume operations --

func (d *Database) AddWatchedVolume(vol WatchedVolume) error {
	_, err := d.db.Exec(`
		INSERT INTO watched_volumes (id, path, label, added_at, last_scan_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET label=excluded.label`,
		vol.ID, vol.Path, vol.Label, vol.AddedAt, vol.LastScanAt,
	)
	return err
}

func (d *Database) GetWatchedVolumes() ([]WatchedVolume, error) {
	rows, err := d.db.Query("SELECT id, path, label, added_at, last_scan_at FROM watched_volumes")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vols []WatchedVolume
	for rows.Next() {
		var v WatchedVolume
		if err := rows.Scan(&v.ID, &v.Path, &v.Label, &v.AddedAt, &v.LastScanAt); err != nil {
			return nil, err
		}
		vols = append(vols, v)
	}
	return vols, rows.Err()
}

func (d *Database) RemoveWatchedVolume(path string) error {
	_, err := d.db.Exec("DELETE FROM watched_volumes WHERE path=?", path)
	return err
}

func (d *Database) UpdateVolumeScanTime(volID string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := d.db.Exec("UPDATE watched_volumes SET last_scan_at=? WHERE id=?", now, volID)
	return err
}
