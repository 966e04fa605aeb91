package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/oho/palette-refinery/internal/config"
	"github.com/oho/palette-refinery/internal/storage"
)

const (
	jobTypeIngest  = "palette_ingest"
	activityLogCap = 200
)

// Orchestrator coordinates the ingestion pipeline: scan volumes, then
// extract a palette for every pending image.
type Orchestrator struct {
	db      *storage.Database
	ss      *storage.SwatchStore
	cfg     config.Config
	scanner *Scanner
	refiner *Refiner

	mu           sync.Mutex
	running      bool
	currentJobID *string
	liveProgress map[string]any
	cancel       context.CancelFunc
	done         chan struct{}

	logMu       sync.Mutex
	activityLog []map[string]any
}

func NewOrchestrator(db *storage.Database, ss *storage.SwatchStore, cfg config.Config) (*Orchestrator, error) {
	refiner, err := NewRefiner(db, ss, cfg)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		db:           db,
		ss:           ss,
		cfg:          cfg,
		scanner:      NewScanner(db, cfg),
		refiner:      refiner,
		liveProgress: make(map[string]any),
	}, nil
}

func (o *Orchestrator) IsRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Refiner exposes the single-asset extractor for on-demand refreshes.
func (o *Orchestrator) Refiner() *Refiner {
	return o.refiner
}

func (o *Orchestrator) emit(stage, action, detail string, counts map[string]int) {
	entry := map[string]any{
		"ts":     time.Now().UTC().Format("15:04:05"),
		"stage":  stage,
		"action": action,
		"detail": detail,
	}
	if counts != nil {
		entry["counts"] = counts
	}
	o.logMu.Lock()
	o.activityLog = append(o.activityLog, entry)
	if len(o.activityLog) > activityLogCap {
		o.activityLog = o.activityLog[len(o.activityLog)-activityLogCap:]
	}
	o.logMu.Unlock()
}

func (o *Orchestrator) setLive(key string, value map[string]any) {
	o.mu.Lock()
	o.liveProgress = map[string]any{key: value}
	o.mu.Unlock()
}

// RunPipeline starts the pipeline in a background goroutine and returns the
// job ID. With no paths it scans every watched volume.
func (o *Orchestrator) RunPipeline(volumePaths []string) (string, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return "", fmt.Errorf("pipeline already running")
	}
	jobID := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())
	o.running = true
	o.currentJobID = &jobID
	o.cancel = cancel
	o.done = make(chan struct{})
	o.liveProgress = make(map[string]any)
	o.mu.Unlock()

	now := storage.NowISO()
	progressJSON := fmt.Sprintf(`{"stage":"starting","started_at":"%s"}`, now)
	job := storage.PipelineJob{
		ID:           jobID,
		JobType:      jobTypeIngest,
		Status:       storage.JobRunning,
		ProgressJSON: &progressJSON,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := o.db.UpsertPipelineJob(job); err != nil {
		slog.Error("Failed to record job", "job_id", jobID, "error", err)
	}

	go o.runPipelineWorker(ctx, jobID, volumePaths)
	return jobID, nil
}

// Cancel stops a running pipeline. In-flight extractions finish their
// current k-means step first.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
}

// Wait blocks until the current run, if any, has finished.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (o *Orchestrator) runPipelineWorker(ctx context.Context, jobID string, volumePaths []string) {
	o.logMu.Lock()
	o.activityLog = nil
	o.logMu.Unlock()

	stages := map[string]any{}
	progress := map[string]any{"stage": "scanning", "stages": stages}

	defer func() {
		o.mu.Lock()
		o.running = false
		o.currentJobID = nil
		o.cancel()
		o.cancel = nil
		close(o.done)
		o.mu.Unlock()
	}()

	// Stage 1: Scan
	slog.Info("=== Stage 1: Scanning ===")
	o.updateProgress(jobID, progress)

	if len(volumePaths) == 0 {
		vols, err := o.db.GetWatchedVolumes()
		if err != nil {
			slog.Error("Failed to list volumes", "error", err)
		}
		for _, v := range vols {
			volumePaths = append(volumePaths, v.Path)
			if err := o.db.UpdateVolumeScanTime(v.ID); err != nil {
				slog.Warn("Failed to update scan time", "volume", v.Path, "error", err)
			}
		}
	}

	scanStats := ScanStats{}
	for i, path := range volumePaths {
		o.setLive("scan", map[string]any{"current_path": path, "done": i, "total": len(volumePaths)})
		stats, err := o.scanner.ScanDirectory(path)
		if err != nil {
			slog.Error("Scan error", "path", path, "error", err)
			scanStats.Errors++
			continue
		}
		scanStats.Add(stats)
		o.emit("scanning", "scanned", filepath.Base(path), scanStats.ToMap())
	}
	stages["scan"] = scanStats.ToMap()
	slog.Info("Scan complete", "stats", scanStats.ToMap())

	// Stage 2: Extract palettes
	slog.Info("=== Stage 2: Extracting palettes ===")
	progress["stage"] = "extracting"
	o.updateProgress(jobID, progress)

	limit := o.cfg.Pipeline.ScanBatchSize
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	pending, err := o.db.GetAssetsByStatus(storage.StatusPending, limit)
	if err != nil {
		o.fail(jobID, progress, err)
		return
	}

	var (
		countMu       sync.Mutex
		extractCount  int
		extractErrors int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(o.cfg.Pipeline.MaxConcurrentExtractions, 1))
	for _, asset := range pending {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, err := o.refiner.RefineAsset(gctx, asset)

			countMu.Lock()
			if err != nil {
				extractErrors++
			} else {
				extractCount++
			}
			done := extractCount + extractErrors
			countMu.Unlock()

			if err != nil {
				slog.Error("Extract error", "file", asset.Filename, "error", err)
				o.emit("extracting", "failed", asset.Filename, map[string]int{"done": done, "total": len(pending)})
			} else {
				o.emit("extracting", "extracted", asset.Filename, map[string]int{"done": done, "total": len(pending)})
			}
			o.setLive("extract", map[string]any{"current_file": asset.Filename, "done": done, "total": len(pending)})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		o.fail(jobID, progress, err)
		return
	}
	stages["extract"] = map[string]any{"processed": extractCount, "errors": extractErrors}
	slog.Info("Extract complete", "count", extractCount, "errors", extractErrors)

	// Done
	progress["stage"] = "completed"
	progress["completed_at"] = storage.NowISO()
	o.finish(jobID, storage.JobCompleted, progress)
	o.emit("completed", "done", "Pipeline finished", nil)
	slog.Info("=== Pipeline completed ===", "job_id", jobID)
}

func (o *Orchestrator) fail(jobID string, progress map[string]any, err error) {
	slog.Error("Pipeline failed", "job_id", jobID, "error", err)
	progress["stage"] = "failed"
	progress["error"] = err.Error()
	o.finish(jobID, storage.JobFailed, progress)
	o.emit("failed", "aborted", err.Error(), nil)
}

func (o *Orchestrator) finish(jobID string, status storage.JobStatus, progress map[string]any) {
	data, _ := json.Marshal(progress)
	s := string(data)
	if err := o.db.UpdateJobStatus(jobID, status, &s); err != nil {
		slog.Error("Failed to update job", "job_id", jobID, "error", err)
	}
	o.mu.Lock()
	o.liveProgress = make(map[string]any)
	o.mu.Unlock()
}

func (o *Orchestrator) updateProgress(jobID string, progress map[string]any) {
	data, _ := json.Marshal(progress)
	s := string(data)
	if err := o.db.UpdateJobStatus(jobID, storage.JobRunning, &s); err != nil {
		slog.Warn("Failed to update job progress", "job_id", jobID, "error", err)
	}
}

// GetStatus returns the current pipeline status.
func (o *Orchestrator) GetStatus() map[string]any {
	counts, _ := o.db.CountAssetsByStatus()
	total := 0
	for _, v := range counts {
		total += v
	}

	jobType := jobTypeIngest
	job, _ := o.db.GetLatestJob(&jobType)
	jobInfo := map[string]any{}
	if job != nil {
		var prog any
		if job.ProgressJSON != nil {
			json.Unmarshal([]byte(*job.ProgressJSON), &prog)
		}
		jobInfo = map[string]any{
			"job_id":   job.ID,
			"status":   string(job.Status),
			"progress": prog,
		}
	}

	o.logMu.Lock()
	n := min(len(o.activityLog), 50)
	recentLog := make([]map[string]any, n)
	copy(recentLog, o.activityLog[len(o.activityLog)-n:])
	o.logMu.Unlock()

	paletteCount, _ := o.db.CountPalettes()

	o.mu.Lock()
	running := o.running
	var currentJobID *string
	if o.currentJobID != nil {
		s := *o.currentJobID
		currentJobID = &s
	}
	live := map[string]any{}
	if running {
		for k, v := range o.liveProgress {
			live[k] = v
		}
	}
	o.mu.Unlock()

	return map[string]any{
		"running":        running,
		"current_job_id": currentJobID,
		"total_assets":   total,
		"status_counts":  counts,
		"latest_job":     jobInfo,
		"palette_count":  paletteCount,
		"swatch_count":   o.ss.Count(),
		"live":           live,
		"activity_log":   recentLog,
	}
}
