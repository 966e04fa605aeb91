package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oho/palette-refinery/internal/storage"
)

func setupTestDB(t *testing.T) *storage.Database {
	t.Helper()
	db, err := storage.NewDatabase(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Initialize(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mkdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func volumesRouter(db *storage.Database) chi.Router {
	r := chi.NewRouter()
	r.Mount("/volumes", VolumesRouter(db))
	return r
}

func addVolume(r http.Handler, body any) *httptest.ResponseRecorder {
	return postJSON(r, "/volumes/add", body)
}

func listVolumes(t *testing.T, r http.Handler) []volumeResponse {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/volumes/list", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list volumes: expected 200, got %d", w.Code)
	}
	var vols []volumeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &vols); err != nil {
		t.Fatal(err)
	}
	return vols
}

func TestVolumesAddAssignsUUIDAndDefaultLabel(t *testing.T) {
	db := setupTestDB(t)
	r := volumesRouter(db)
	dir := filepath.Join(t.TempDir(), "holiday")
	mkdir(t, dir)

	w := addVolume(r, map[string]string{"path": dir})
	if w.Code != http.StatusOK {
		t.Fatalf("add volume: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var vol volumeResponse
	json.Unmarshal(w.Body.Bytes(), &vol)
	if _, err := uuid.Parse(vol.ID); err != nil {
		t.Errorf("expected uuid volume id, got %q", vol.ID)
	}
	if vol.Label == nil || *vol.Label != "holiday" {
		t.Errorf("expected label from directory name, got %v", vol.Label)
	}

	vols := listVolumes(t, r)
	if len(vols) != 1 || vols[0].ID != vol.ID || vols[0].Path != dir {
		t.Errorf("unexpected volumes: %+v", vols)
	}
}

func TestVolumesAddExplicitLabel(t *testing.T) {
	r := volumesRouter(setupTestDB(t))
	w := addVolume(r, map[string]string{"path": t.TempDir(), "label": "Scans"})

	var vol volumeResponse
	json.Unmarshal(w.Body.Bytes(), &vol)
	if vol.Label == nil || *vol.Label != "Scans" {
		t.Errorf("expected label Scans, got %v", vol.Label)
	}
}

func TestVolumesAddRejects(t *testing.T) {
	db := setupTestDB(t)
	r := volumesRouter(db)
	dir := t.TempDir()
	if w := addVolume(r, map[string]string{"path": dir}); w.Code != http.StatusOK {
		t.Fatalf("first add: expected 200, got %d", w.Code)
	}

	file := filepath.Join(t.TempDir(), "a.png")
	writeFile(t, file)

	tests := []struct {
		name string
		body any
	}{
		{"malformed json", "{"},
		{"missing path", map[string]string{}},
		{"nonexistent", map[string]string{"path": "/nonexistent/path"}},
		{"file not dir", map[string]string{"path": file}},
		{"duplicate", map[string]string{"path": dir}},
		{"duplicate relative spelling", map[string]string{"path": dir + "/."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := addVolume(r, tt.body); w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
	if vols := listVolumes(t, r); len(vols) != 1 {
		t.Errorf("expected 1 volume after rejected adds, got %d", len(vols))
	}
}

func TestVolumesRemove(t *testing.T) {
	db := setupTestDB(t)
	r := volumesRouter(db)
	dir := t.TempDir()
	addVolume(r, map[string]string{"path": dir})

	req := httptest.NewRequest("DELETE", "/volumes/remove?path="+url.QueryEscape(dir), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("remove volume: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "removed" || resp["path"] != dir {
		t.Errorf("unexpected remove response: %v", resp)
	}
	if vols := listVolumes(t, r); len(vols) != 0 {
		t.Errorf("expected 0 volumes after remove, got %d", len(vols))
	}
}

func TestVolumesRemoveErrors(t *testing.T) {
	r := volumesRouter(setupTestDB(t))

	tests := []struct {
		path string
		want int
	}{
		{"/volumes/remove", http.StatusBadRequest},
		{"/volumes/remove?path=", http.StatusBadRequest},
		{"/volumes/remove?path=" + url.QueryEscape(t.TempDir()), http.StatusNotFound},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("DELETE", tt.path, nil))
		if w.Code != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.want, w.Code)
		}
	}
}

func TestVolumesListEmpty(t *testing.T) {
	r := volumesRouter(setupTestDB(t))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/volumes/list", nil))
	if got := bytes.TrimSpace(w.Body.Bytes()); string(got) != "[]" {
		t.Errorf("expected empty JSON array, got %q", got)
	}
}
