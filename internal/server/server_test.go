package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/oho/palette-refinery/internal/config"
	"github.com/oho/palette-refinery/internal/storage"
)

func TestCORSMiddleware(t *testing.T) {
	handler := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Test regular request
	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS origin header missing")
	}
	if w.Header().Get("Access-Control-Allow-Methods") != "*" {
		t.Error("CORS methods header missing")
	}
	if w.Header().Get("Access-Control-Allow-Headers") != "*" {
		t.Error("CORS headers header missing")
	}
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestCORSPreflightOptions(t *testing.T) {
	called := false
	handler := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest("OPTIONS", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if called {
		t.Error("OPTIONS request should not reach inner handler")
	}
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for OPTIONS, got %d", w.Code)
	}
}

func TestNewRouter(t *testing.T) {
	r := NewRouter()
	if r == nil {
		t.Fatal("NewRouter returned nil")
	}

	// Add a test route and verify it works
	r.Get("/test", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "ok" {
		t.Errorf("expected 'ok', got %q", w.Body.String())
	}
}

func TestHealthHandler(t *testing.T) {
	db, err := storage.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := db.Initialize(); err != nil {
		t.Fatal(err)
	}
	vol := storage.NewWatchedVolume("vol-1", "/photos", nil)
	if err := db.AddWatchedVolume(vol); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	handler := HealthHandler(cfg, db, storage.NewSwatchStore(db.DB()))

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.DB != "connected" {
		t.Errorf("expected ok/connected, got %s/%s", resp.Status, resp.DB)
	}
	if resp.DBVersion != 1 {
		t.Errorf("expected schema version 1, got %d", resp.DBVersion)
	}
	if len(resp.WatchedVolumes) != 1 || resp.WatchedVolumes[0] != "/photos" {
		t.Errorf("unexpected volumes: %v", resp.WatchedVolumes)
	}
	if resp.DefaultK != cfg.Clustering.K {
		t.Errorf("expected default k %d, got %d", cfg.Clustering.K, resp.DefaultK)
	}
}

func TestHealthHandlerWithoutDB(t *testing.T) {
	handler := HealthHandler(config.DefaultConfig(), nil, nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	var resp HealthResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.DB != "unavailable" {
		t.Errorf("expected db unavailable, got %s", resp.DB)
	}
	if resp.WatchedVolumes == nil {
		t.Error("expected empty volume list, not null")
	}
}

func TestRouterCORSOnMountedRoutes(t *testing.T) {
	r := NewRouter()
	r.Get("/health", HealthHandler(config.DefaultConfig(), nil, nil))

	req := httptest.NewRequest("OPTIONS", "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS origin header missing")
	}
}
