package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/WatchBeam/clock"

	"printrelay/internal/blob"
	"printrelay/internal/db"
)

type JobStore interface {
	JobsOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*db.PrintJob, error)
	CountByPayloadRef(ctx context.Context, payloadRef string) (int, error)
	DeleteJob(ctx context.Context, id string) error
}

// Sweeper deletes jobs past the retention window in bounded batches and
// reclaims payload blobs no job references anymore. A batch that fills up
// reports more work remaining so the scheduler re-invokes it instead of
// looping unbounded in one pass.
type Sweeper struct {
	jobs          JobStore
	payloads      blob.Store
	retentionDays int
	batchSize     int
	interval      time.Duration
	clock         clock.Clock
	logger        *slog.Logger
	stopCh        chan struct{}
}

type Config struct {
	RetentionDays int
	BatchSize     int
	Interval      time.Duration
}

// continueDelay spaces out follow-up batches when a sweep could not finish
// in one invocation.
const continueDelay = 5 * time.Second

func NewSweeper(jobs JobStore, payloads blob.Store, cfg Config, clk clock.Clock, logger *slog.Logger) *Sweeper {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if clk == nil {
		clk = clock.C
	}
	return &Sweeper{
		jobs:          jobs,
		payloads:      payloads,
		retentionDays: cfg.RetentionDays,
		batchSize:     cfg.BatchSize,
		interval:      cfg.Interval,
		clock:         clk,
		logger:        logger,
		stopCh:        make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	go func() {
		delay := s.interval
		for {
			select {
			case <-s.stopCh:
				return
			case <-s.clock.After(delay):
			}

			more, err := s.RunBatch(context.Background())
			if err != nil {
				s.logger.Error("cleanup batch failed", "error", err)
			}
			if more {
				delay = continueDelay
			} else {
				delay = s.interval
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	close(s.stopCh)
}

// RunBatch deletes one batch of aged jobs, then removes each released
// payload only if no surviving job still references it. Individual blob
// failures are logged and skipped, never abort the batch. Returns whether a
// full batch was processed, meaning more aged jobs may remain.
func (s *Sweeper) RunBatch(ctx context.Context) (bool, error) {
	cutoff := s.clock.Now().UTC().AddDate(0, 0, -s.retentionDays)

	jobs, err := s.jobs.JobsOlderThan(ctx, cutoff, s.batchSize)
	if err != nil {
		return false, err
	}
	if len(jobs) == 0 {
		return false, nil
	}

	released := make(map[string]bool)
	deleted := 0
	for _, job := range jobs {
		if err := s.jobs.DeleteJob(ctx, job.ID); err != nil {
			s.logger.Error("failed to delete aged job", "job_id", job.ID, "error", err)
			continue
		}
		deleted++
		if job.PayloadRef != "" {
			released[job.PayloadRef] = true
		}
	}

	reclaimed := 0
	for ref := range released {
		count, err := s.jobs.CountByPayloadRef(ctx, ref)
		if err != nil {
			s.logger.Error("failed to count payload references", "payload_ref", ref, "error", err)
			continue
		}
		if count > 0 {
			continue
		}
		if err := s.payloads.Remove(ctx, ref); err != nil {
			s.logger.Error("failed to remove orphaned payload", "payload_ref", ref, "error", err)
			continue
		}
		reclaimed++
	}

	s.logger.Info("cleanup batch finished",
		"deleted_jobs", deleted, "reclaimed_payloads", reclaimed, "cutoff", cutoff)

	return len(jobs) == s.batchSize, nil
}
