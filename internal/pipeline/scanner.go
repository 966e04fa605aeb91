package pipeline

import (
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/oho/palette-refinery/internal/config"
	"github.com/oho/palette-refinery/internal/palette"
	"github.com/oho/palette-refinery/internal/storage"
)

// ScanStats holds results from a directory scan.
type ScanStats struct {
	New       int `json:"new"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

func (s *ScanStats) Add(other ScanStats) {
	s.New += other.New
	s.Updated += other.Updated
	s.Unchanged += other.Unchanged
	s.Skipped += other.Skipped
	s.Errors += other.Errors
}

func (s ScanStats) ToMap() map[string]int {
	return map[string]int{
		"new":       s.New,
		"updated":   s.Updated,
		"unchanged": s.Unchanged,
		"skipped":   s.Skipped,
		"errors":    s.Errors,
	}
}

// ComputeAssetID generates a deterministic asset ID from path + mtime + size.
func ComputeAssetID(path string, mtimeNs int64, size int64) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%d", path, mtimeNs, size)))
	return fmt.Sprintf("%x", h)[:32]
}

// ComputeContentHash computes a streaming SHA-256 of a file's contents.
func ComputeContentHash(filepath string) (string, error) {
	f, err := os.Open(filepath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// GuessMimeType guesses the MIME type from a file extension.
func GuessMimeType(path string) *string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return nil
	}
	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		// Common image types missing from some system registries
		switch ext {
		case ".webp":
			mimeType = "image/webp"
		case ".bmp":
			mimeType = "image/bmp"
		case ".tif", ".tiff":
			mimeType = "image/tiff"
		default:
			return nil
		}
	}
	return &mimeType
}

// Scanner walks directories and maintains the image asset manifest.
type Scanner struct {
	db          *storage.Database
	maxFileSize int64
}

func NewScanner(db *storage.Database, cfg config.Config) *Scanner {
	return &Scanner{
		db:          db,
		maxFileSize: cfg.Pipeline.MaxFileSizeBytes,
	}
}

// ScanDirectory walks a directory tree and upserts ImageAssets.
func (s *Scanner) ScanDirectory(root string) (ScanStats, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return ScanStats{}, fmt.Errorf("not a directory: %s", root)
	}

	var stats ScanStats
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			stats.Errors++
			return nil
		}
		// Skip hidden directories
		if d.IsDir() && path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if !palette.IsImagePath(path) {
			stats.Skipped++
			return nil
		}
		if processErr := s.processFile(path, &stats); processErr != nil {
			slog.Error("Error processing file", "path", path, "error", processErr)
			stats.Errors++
		}
		return nil
	})
	return stats, err
}

func (s *Scanner) processFile(path string, stats *ScanStats) error {
	info, err := os.Stat(path)
	if err != nil {
		stats.Skipped++
		return nil
	}
	if info.Size() == 0 || (s.maxFileSize > 0 && info.Size() > s.maxFileSize) {
		stats.Skipped++
		return nil
	}

	absPath, _ := filepath.Abs(path)
	mtimeNs := info.ModTime().UnixNano()
	sizeBytes := info.Size()

	existing, err := s.db.GetImageAssetByPath(absPath)
	if err != nil {
		return err
	}
	if existing != nil && existing.MtimeNs == mtimeNs && existing.SizeBytes == sizeBytes {
		stats.Unchanged++
		return nil
	}

	hash, err := ComputeContentHash(absPath)
	if err != nil {
		return err
	}

	if existing != nil {
		asset := *existing
		asset.MtimeNs = mtimeNs
		asset.SizeBytes = sizeBytes
		if existing.ContentHash != nil && *existing.ContentHash == hash {
			// Touched but identical: remember the new mtime, keep the palette.
			stats.Unchanged++
			return s.db.UpsertImageAsset(asset)
		}
		asset.ContentHash = &hash
		asset.Status = storage.StatusPending
		asset.ErrorMessage = nil
		if err := s.db.UpsertImageAsset(asset); err != nil {
			return err
		}
		stats.Updated++
		slog.Info("Updated asset", "file", info.Name())
		return nil
	}

	asset := storage.NewImageAsset(ComputeAssetID(absPath, mtimeNs, sizeBytes), absPath, info.Name())
	asset.MimeType = GuessMimeType(absPath)
	asset.SizeBytes = sizeBytes
	asset.MtimeNs = mtimeNs
	asset.ContentHash = &hash
	if err := s.db.UpsertImageAsset(asset); err != nil {
		return err
	}
	stats.New++
	slog.Debug("New asset", "file", info.Name())
	return nil
}
