package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/oho/palette-refinery/internal/api"
	"github.com/oho/palette-refinery/internal/config"
	"github.com/oho/palette-refinery/internal/pipeline"
	"github.com/oho/palette-refinery/internal/server"
	"github.com/oho/palette-refinery/internal/storage"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	slog.Info("Starting Palette Refinery daemon...")

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))
	slog.Info("Configuration loaded", "data_dir", cfg.DataDir, "port", cfg.Port,
		"k", cfg.Clustering.K, "color_space", cfg.Sampling.ColorSpace)

	db, err := storage.NewDatabase(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Initialize(); err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	version, _, _ := db.MigrateVersion()
	slog.Info("Database initialized", "path", cfg.DBPath, "schema_version", version)

	// Swatch index shares the SQLite database
	ss := storage.NewSwatchStore(db.DB())
	if err := ss.LoadAll(); err != nil {
		slog.Error("Failed to load swatches", "error", err)
		os.Exit(1)
	}
	slog.Info("Swatch index loaded", "count", ss.Count())

	orch, err := pipeline.NewOrchestrator(db, ss, cfg)
	if err != nil {
		slog.Error("Failed to create orchestrator", "error", err)
		os.Exit(1)
	}

	r := server.NewRouter()
	r.Get("/health", server.HealthHandler(cfg, db, ss))
	r.Mount("/volumes", api.VolumesRouter(db))
	r.Mount("/ingest", api.IngestRouter(orch))
	r.Mount("/palettes", api.PalettesRouter(db, orch.Refiner().Options(), cfg.Pipeline.MaxFileSizeBytes))
	r.Mount("/assets", api.AssetsRouter(db))
	r.Mount("/search", api.SearchRouter(ss, db))

	pidPath := filepath.Join(cfg.DataDir, "daemon.pid")
	if err := os.WriteFile(pidPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
		slog.Warn("Failed to write PID file", "path", pidPath, "error", err)
	}
	defer os.Remove(pidPath)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 60))
	fmt.Printf("  Palette Refinery Daemon\n")
	fmt.Printf("  http://%s\n", addr)
	fmt.Printf("  Data dir: %s\n", cfg.DataDir)
	fmt.Printf("  Palette: k=%d, %s, %s\n", cfg.Clustering.K, cfg.Sampling.ColorSpace, cfg.Clustering.EmptyPolicy)
	fmt.Printf("%s\n\n", strings.Repeat("=", 60))

	slog.Info("Daemon ready", "addr", addr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("Shutting down...")

	orch.Cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Warn("Shutdown incomplete", "error", err)
	}
	orch.Wait()

	slog.Info("Daemon stopped")
}
