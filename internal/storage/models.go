package storage

import (
	"time"
)

// AssetStatus represents the processing state of an image asset.
type AssetStatus string

const (
	StatusPending   AssetStatus = "pending"
	StatusExtracted AssetStatus = "extracted"
	StatusError     AssetStatus = "error"
)

// JobStatus represents the state of a pipeline job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// NowISO is the exported version of nowISO for use by other packages.
func NowISO() string {
	return nowISO()
}

// ImageAsset represents a tracked image file.
type ImageAsset struct {
	ID           string      `json:"id"`
	Path         string      `json:"path"`
	Filename     string      `json:"filename"`
	MimeType     *string     `json:"mime_type,omitempty"`
	Format       *string     `json:"format,omitempty"`
	Width        int         `json:"width"`
	Height       int         `json:"height"`
	SizeBytes    int64       `json:"size_bytes"`
	MtimeNs      int64       `json:"mtime_ns"`
	ContentHash  *string     `json:"content_hash,omitempty"`
	ScanVersion  int         `json:"scan_version"`
	Status       AssetStatus `json:"status"`
	ErrorMessage *string     `json:"error_message,omitempty"`
	CreatedAt    string      `json:"created_at"`
	UpdatedAt    string      `json:"updated_at"`
}

func NewImageAsset(id, path, filename string) ImageAsset {
	now := nowISO()
	return ImageAsset{
		ID:          id,
		Path:        path,
		Filename:    filename,
		ScanVersion: 1,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// PaletteRecord is a stored extraction result for one asset.
type PaletteRecord struct {
	ID          string         `json:"id"`
	AssetID     string         `json:"asset_id"`
	ColorSpace  string         `json:"color_space"`
	K           int            `json:"k"`
	Converged   bool           `json:"converged"`
	Iterations  int            `json:"iterations"`
	Restarts    int            `json:"restarts"`
	Inertia     float64        `json:"inertia"`
	SampleCount int            `json:"sample_count"`
	ConfigJSON  *string        `json:"config_json,omitempty"`
	CreatedAt   string         `json:"created_at"`
	Swatches    []SwatchRecord `json:"swatches"`
}

// SwatchRecord is one colour of a stored palette. Rank 0 is the most
// populous swatch.
type SwatchRecord struct {
	Rank       int       `json:"rank"`
	Hex        string    `json:"hex"`
	R          uint8     `json:"r"`
	G          uint8     `json:"g"`
	B          uint8     `json:"b"`
	Components []float64 `json:"components"`
	Count      int       `json:"count"`
	Weight     float64   `json:"weight"`
}

// PipelineJob tracks a pipeline run.
type PipelineJob struct {
	ID           string    `json:"id"`
	JobType      string    `json:"job_type"`
	Status       JobStatus `json:"status"`
	ProgressJSON *string   `json:"progress_json,omitempty"`
	CreatedAt    string    `json:"created_at"`
	UpdatedAt    string    `json:"updated_at"`
}

// WatchedVolume represents a directory being monitored for ingestion.
type WatchedVolume struct {
	ID         string  `json:"id"`
	Path       string  `json:"path"`
	Label      *string `json:"label,omitempty"`
	AddedAt    string  `json:"added_at"`
	LastScanAt *string `json:"last_scan_at,omitempty"`
}

func NewWatchedVolume(id, path string, label *string) WatchedVolume {
	return WatchedVolume{
		ID:      id,
		Path:    path,
		Label:   label,
		AddedAt: nowISO(),
	}
}
