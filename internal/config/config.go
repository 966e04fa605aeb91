package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/oho/palette-refinery/internal/kmeans"
	"github.com/oho/palette-refinery/internal/palette"
)

type ClusteringConfig struct {
	K             int     `json:"k"`
	MaxIterations int     `json:"max_iterations"`
	EmptyPolicy   string  `json:"empty_policy"`
	Metric        string  `json:"metric"`
	Tolerance     float64 `json:"tolerance"`
	MaxRestarts   int     `json:"max_restarts"`
	Seed          *uint64 `json:"seed,omitempty"`
	Workers       int     `json:"workers"`
}

type SamplingConfig struct {
	ColorSpace     string `json:"color_space"`
	MaxDimension   int    `json:"max_dimension"`
	AlphaThreshold uint8  `json:"alpha_threshold"`
	Step           int    `json:"step"`
}

type PipelineConfig struct {
	Version                  string `json:"version"`
	MaxConcurrentExtractions int    `json:"max_concurrent_extractions"`
	MaxFileSizeBytes         int64  `json:"max_file_size_bytes"`
	ScanBatchSize            int    `json:"scan_batch_size"`
}

type Config struct {
	DataDir    string           `json:"data_dir"`
	DBPath     string           `json:"db_path"`
	Host       string           `json:"host"`
	Port       int              `json:"port"`
	LogLevel   string           `json:"log_level"`
	Clustering ClusteringConfig `json:"clustering"`
	Sampling   SamplingConfig   `json:"sampling"`
	Pipeline   PipelineConfig   `json:"pipeline"`
}

func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".palette-refinery")
	return Config{
		DataDir:  dataDir,
		DBPath:   filepath.Join(dataDir, "palettes.db"),
		Host:     "127.0.0.1",
		Port:     8743,
		LogLevel: "info",
		Clustering: ClusteringConfig{
			K:             5,
			MaxIterations: 100,
			EmptyPolicy:   string(kmeans.PolicyReseedNearest),
			Metric:        "euclidean",
			MaxRestarts:   10,
			Workers:       1,
		},
		Sampling: SamplingConfig{
			ColorSpace:     string(palette.SpaceLab),
			MaxDimension:   256,
			AlphaThreshold: 128,
			Step:           1,
		},
		Pipeline: PipelineConfig{
			Version:                  "v1.0",
			MaxConcurrentExtractions: 4,
			MaxFileSizeBytes:         200 * 1024 * 1024,
			ScanBatchSize:            1000,
		},
	}
}

// LoadConfig starts from DefaultConfig, applies the JSON file named by
// PR_CONFIG if set, then PR_* environment overrides, and creates the data
// directory. Malformed numeric overrides are ignored.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("PR_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}

	if dataDir := os.Getenv("PR_DATA_DIR"); dataDir != "" {
		cfg.DataDir = dataDir
		cfg.DBPath = filepath.Join(dataDir, "palettes.db")
	}
	if host := os.Getenv("PR_HOST"); host != "" {
		cfg.Host = host
	}
	setInt(&cfg.Port, "PR_PORT")
	if level := os.Getenv("PR_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	setInt(&cfg.Clustering.K, "PR_K")
	setInt(&cfg.Clustering.MaxIterations, "PR_MAX_ITERATIONS")
	if policy := os.Getenv("PR_EMPTY_POLICY"); policy != "" {
		cfg.Clustering.EmptyPolicy = policy
	}
	if metric := os.Getenv("PR_METRIC"); metric != "" {
		cfg.Clustering.Metric = metric
	}
	if seed := os.Getenv("PR_SEED"); seed != "" {
		if s, err := strconv.ParseUint(seed, 10, 64); err == nil {
			cfg.Clustering.Seed = &s
		}
	}
	setInt(&cfg.Clustering.Workers, "PR_WORKERS")
	if cs := os.Getenv("PR_COLOR_SPACE"); cs != "" {
		cfg.Sampling.ColorSpace = cs
	}
	setInt(&cfg.Sampling.MaxDimension, "PR_MAX_DIMENSION")

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	cfg.EnsureDirs()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate checks the named choices and numeric ranges.
func (c *Config) Validate() error {
	if _, err := c.ClusterConfig(); err != nil {
		return err
	}
	if _, err := palette.ParseColorSpace(c.Sampling.ColorSpace); err != nil {
		return err
	}
	if c.Clustering.K < 1 {
		return fmt.Errorf("config: clustering.k must be >= 1, got %d", c.Clustering.K)
	}
	if c.Pipeline.MaxConcurrentExtractions < 1 {
		return fmt.Errorf("config: pipeline.max_concurrent_extractions must be >= 1, got %d", c.Pipeline.MaxConcurrentExtractions)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ClusterConfig converts the clustering section into engine settings.
func (c *Config) ClusterConfig() (kmeans.Config, error) {
	metric, err := kmeans.MetricByName(c.Clustering.Metric)
	if err != nil {
		return kmeans.Config{}, err
	}
	policy, err := kmeans.ParsePolicy(c.Clustering.EmptyPolicy)
	if err != nil {
		return kmeans.Config{}, err
	}
	return kmeans.Config{
		K:             c.Clustering.K,
		MaxIterations: c.Clustering.MaxIterations,
		Metric:        metric,
		Policy:        policy,
		Tolerance:     c.Clustering.Tolerance,
		MaxRestarts:   c.Clustering.MaxRestarts,
		Seed:          c.Clustering.Seed,
		Workers:       c.Clustering.Workers,
	}, nil
}

// PaletteOptions returns extraction settings for the pipeline.
func (c *Config) PaletteOptions() (palette.Options, error) {
	cluster, err := c.ClusterConfig()
	if err != nil {
		return palette.Options{}, err
	}
	cs, err := palette.ParseColorSpace(c.Sampling.ColorSpace)
	if err != nil {
		return palette.Options{}, err
	}
	return palette.Options{
		ColorSpace: cs,
		Sampling: palette.SampleOptions{
			MaxDimension:   c.Sampling.MaxDimension,
			AlphaThreshold: c.Sampling.AlphaThreshold,
			Step:           c.Sampling.Step,
		},
		Cluster: cluster,
	}, nil
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: unknown log level %q", s)
	}
}

func (c *Config) EnsureDirs() {
	os.MkdirAll(c.DataDir, 0o755)
}
