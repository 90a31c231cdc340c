package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

var (
	ErrJobNotFound = errors.New("export job not found")
	ErrJobFinished = errors.New("export job already finished")
)

// Runner polls the job store and executes pending exports one at a time.
type Runner struct {
	store        JobStore
	exporter     Exporter
	defaults     Settings
	logger       *slog.Logger
	pollInterval time.Duration
	running      atomic.Bool
	paused       atomic.Bool

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewRunner(store JobStore, exporter Exporter, defaults Settings, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		store:        store,
		exporter:     exporter,
		defaults:     defaults,
		logger:       logger,
		pollInterval: 2 * time.Second,
		cancels:      make(map[string]context.CancelFunc),
	}
}

func (r *Runner) SetPollInterval(d time.Duration) {
	if d > 0 {
		r.pollInterval = d
	}
}

// Submit queues an export of snapshot. The snapshot is stored with the job,
// so later edits never reach an export already requested.
func (r *Runner) Submit(ctx context.Context, projectID string, snapshot timeline.Record, settings Settings) (*Job, error) {
	settings = settings.WithDefaults(r.defaults)
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if err := CheckOutputDir(settings.OutputDir); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Status:    JobPending,
		Settings:  settings,
		Snapshot:  snapshot,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create export job: %w", err)
	}
	r.logger.Info("export queued", "job_id", job.ID, "project_id", projectID, "format", settings.Format)
	return job, nil
}

// Cancel stops a pending or running job.
func (r *Runner) Cancel(ctx context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if job.Status.Done() {
		return fmt.Errorf("%w: %s is %s", ErrJobFinished, jobID, job.Status)
	}

	if cancel, ok := r.cancels[jobID]; ok {
		cancel()
		r.logger.Info("export cancel requested", "job_id", jobID)
		return nil
	}
	r.logger.Info("pending export canceled", "job_id", jobID)
	return r.store.UpdateJobStatus(ctx, jobID, JobCanceled, "")
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}
	r.logger.Info("export runner started")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("export runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
			if r.paused.Load() {
				continue
			}
			for r.processNextJob(ctx) {
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("export runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("export runner resumed")
}

func (r *Runner) IsPaused() bool  { return r.paused.Load() }
func (r *Runner) IsRunning() bool { return r.running.Load() }

// processNextJob runs the oldest pending job and reports whether one was
// found.
func (r *Runner) processNextJob(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	jobs, err := r.store.ListPendingJobs(ctx)
	if err != nil {
		r.logger.Error("failed to list pending exports", "error", err)
		return false
	}
	if len(jobs) == 0 {
		return false
	}

	job, jobCtx, ok := r.claim(ctx, jobs[0].ID)
	if !ok {
		return false
	}
	defer r.release(job.ID)

	logger := r.logger.With("job_id", job.ID, "project_id", job.ProjectID)
	logger.Info("export started", "format", job.Settings.Format)
	started := time.Now()

	last := 0
	progress := func(percent int) {
		if percent <= last {
			return
		}
		last = percent
		if err := r.store.UpdateJobProgress(ctx, job.ID, percent); err != nil {
			logger.Error("failed to record export progress", "progress", percent, "error", err)
		}
	}

	artifact, err := r.exporter.Export(jobCtx, job.Snapshot, job.Settings, progress)
	switch {
	case err == nil:
		if err := r.store.CompleteJob(ctx, job.ID, artifact); err != nil {
			logger.Error("failed to record completed export", "error", err)
		}
		logger.Info("export completed", "path", artifact.Path, "size_bytes", artifact.SizeBytes, "elapsed", time.Since(started))
	case ctx.Err() != nil:
		r.setStatus(context.Background(), logger, job.ID, JobFailed, "interrupted by shutdown")
		logger.Warn("export interrupted by shutdown")
	case jobCtx.Err() != nil:
		r.setStatus(ctx, logger, job.ID, JobCanceled, "")
		logger.Info("export canceled")
	default:
		r.setStatus(ctx, logger, job.ID, JobFailed, err.Error())
		logger.Error("export failed", "error", err)
	}
	return true
}

func (r *Runner) setStatus(ctx context.Context, logger *slog.Logger, id string, status JobStatus, msg string) {
	if err := r.store.UpdateJobStatus(ctx, id, status, msg); err != nil {
		logger.Error("failed to record export status", "status", status, "error", err)
	}
}

// claim marks a job running under a cancelable context unless a concurrent
// Cancel got to it first.
func (r *Runner) claim(ctx context.Context, id string) (*Job, context.Context, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.store.GetJob(ctx, id)
	if err != nil || job == nil || job.Status != JobPending {
		return nil, nil, false
	}
	if err := r.store.UpdateJobStatus(ctx, id, JobRunning, ""); err != nil {
		r.logger.Error("failed to mark export running", "job_id", id, "error", err)
		return nil, nil, false
	}
	if err := r.store.UpdateJobProgress(ctx, id, 0); err != nil {
		r.logger.Error("failed to reset export progress", "job_id", id, "error", err)
	}

	jobCtx, cancel := context.WithCancel(ctx)
	r.cancels[id] = cancel
	return job, jobCtx, true
}

func (r *Runner) release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.cancels[id]; ok {
		cancel()
		delete(r.cancels, id)
	}
}
