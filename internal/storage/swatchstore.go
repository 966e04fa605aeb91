package storage

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// SwatchVector is a palette colour indexed for similarity search. Lab holds
// CIE L*a*b* components.
type SwatchVector struct {
	ID        string    `json:"id"`
	AssetID   string    `json:"asset_id"`
	PaletteID string    `json:"palette_id"`
	Hex       string    `json:"hex"`
	Weight    float64   `json:"weight"`
	Lab       []float64 `json:"lab"`
}

// SwatchMatch is a SwatchVector with its ΔE76 distance from the query.
type SwatchMatch struct {
	SwatchVector
	Distance float64 `json:"distance"`
}

// SwatchStore persists swatch colours in SQLite and searches them from an
// in-memory copy.
type SwatchStore struct {
	db    *sql.DB
	mu    sync.RWMutex
	cache []SwatchVector
}

func NewSwatchStore(db *sql.DB) *SwatchStore {
	return &SwatchStore{db: db}
}

// LoadAll replaces the in-memory cache with the contents of swatch_vectors.
func (s *SwatchStore) LoadAll() error {
	rows, err := s.db.Query("SELECT id, asset_id, palette_id, hex, weight, vector FROM swatch_vectors ORDER BY id")
	if err != nil {
		return err
	}
	defer rows.Close()

	var cache []SwatchVector
	for rows.Next() {
		var v SwatchVector
		var blob []byte
		if err := rows.Scan(&v.ID, &v.AssetID, &v.PaletteID, &v.Hex, &v.Weight, &blob); err != nil {
			return err
		}
		v.Lab = blobToFloat64(blob)
		cache = append(cache, v)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.cache = cache
	s.mu.Unlock()
	return nil
}

// Add inserts vectors into SQLite and the cache.
func (s *SwatchStore) Add(vectors []SwatchVector) error {
	for _, v := range vectors {
		if len(v.Lab) != 3 {
			return fmt.Errorf("swatch %s: want 3 Lab components, got %d", v.ID, len(v.Lab))
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO swatch_vectors (id, asset_id, palette_id, hex, weight, vector)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, v := range vectors {
		if _, err := stmt.Exec(v.ID, v.AssetID, v.PaletteID, v.Hex, v.Weight, float64ToBlob(v.Lab)); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	replaced := make(map[string]bool, len(vectors))
	for _, v := range vectors {
		replaced[v.ID] = true
	}
	s.mu.Lock()
	kept := s.cache[:0]
	for _, v := range s.cache {
		if !replaced[v.ID] {
			kept = append(kept, v)
		}
	}
	s.cache = append(kept, vectors...)
	s.mu.Unlock()
	return nil
}

// Search returns up to limit swatches closest to lab, nearest first.
func (s *SwatchStore) Search(lab []float64, limit int) []SwatchMatch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]SwatchMatch, 0, len(s.cache))
	for _, v := range s.cache {
		if len(v.Lab) != len(lab) {
			continue
		}
		matches = append(matches, SwatchMatch{SwatchVector: v, Distance: floats.Distance(lab, v.Lab, 2)})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})

	if limit < len(matches) {
		matches = matches[:max(limit, 0)]
	}
	return matches
}

// DeleteByAsset removes all swatches for an asset.
func (s *SwatchStore) DeleteByAsset(assetID string) error {
	if _, err := s.db.Exec("DELETE FROM swatch_vectors WHERE asset_id=?", assetID); err != nil {
		return err
	}
	s.mu.Lock()
	filtered := s.cache[:0]
	for _, v := range s.cache {
		if v.AssetID != assetID {
			filtered = append(filtered, v)
		}
	}
	s.cache = filtered
	s.mu.Unlock()
	return nil
}

// Count returns the number of cached swatches.
func (s *SwatchStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

func float64ToBlob(v []float64) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func blobToFloat64(b []byte) []float64 {
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v
}
