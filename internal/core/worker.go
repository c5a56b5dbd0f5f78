package core

import (
	"context"
	"log/slog"
	"sync/atomic"

	"printrelay/internal/db"
)

type JobPipeline interface {
	Run(ctx context.Context, location string, dest Destination, options string) error
}

type Notifier interface {
	Subscribe(ctx context.Context, clientID string, fn func())
}

// EventSink receives terminal job outcomes; optional.
type EventSink interface {
	JobCompleted(jobID, clientID string)
	JobFailed(jobID, clientID, errMsg string)
}

// Worker processes jobs for one client identity, one at a time. The busy
// guard serializes execution: notify signals received while a drain is in
// flight are absorbed, and the drain loop re-checks the store before idling.
type Worker struct {
	clientID string
	broker   *Broker
	jobs     JobStore
	pipeline JobPipeline
	notifier Notifier
	events   EventSink
	logOnly  bool
	busy     atomic.Bool
	logger   *slog.Logger
}

func NewWorker(clientID string, broker *Broker, jobs JobStore, pipeline JobPipeline, notifier Notifier, logOnly bool, logger *slog.Logger) *Worker {
	return &Worker{
		clientID: clientID,
		broker:   broker,
		jobs:     jobs,
		pipeline: pipeline,
		notifier: notifier,
		logOnly:  logOnly,
		logger:   logger.With("client_id", clientID),
	}
}

func (w *Worker) SetEventSink(events EventSink) {
	w.events = events
}

// Run drains any backlog, then blocks serving notify signals until the
// context is cancelled. Job failures are recorded, never returned.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started, waiting for print jobs", "log_only", w.logOnly)

	w.notifier.Subscribe(ctx, w.clientID, func() {
		w.wake(ctx)
	})

	w.wake(ctx)

	<-ctx.Done()
	w.logger.Info("worker stopped")
}

func (w *Worker) wake(ctx context.Context) {
	if !w.busy.CompareAndSwap(false, true) {
		return
	}
	go func() {
		w.drain(ctx)
		w.busy.Store(false)

		// A submission can land between the last empty check and the guard
		// release; look once more so it is not stranded until the next signal.
		id, err := w.jobs.OldestPendingID(ctx, w.clientID)
		if err == nil && id != "" {
			w.wake(ctx)
		}
	}()
}

func (w *Worker) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		id, err := w.broker.OldestPendingForClaim(ctx, w.clientID)
		if err != nil {
			w.logger.Error("failed to read pending queue", "error", err)
			return
		}
		if id == "" {
			return
		}

		job, location, err := w.broker.Claim(ctx, id)
		if err != nil {
			if job != nil {
				// The claim won but the payload location could not be
				// resolved; the job is already processing, so record a
				// terminal failure and keep draining.
				w.fail(ctx, job, err.Error())
				continue
			}
			w.logger.Error("claim failed", "job_id", id, "error", err)
			return
		}
		if job == nil {
			// Another worker won the race; not an error.
			continue
		}

		w.process(ctx, job, location)
	}
}

func (w *Worker) process(ctx context.Context, job *db.PrintJob, location string) {
	logger := w.logger.With("job_id", job.ID, "printer_id", job.PrinterID)
	logger.Info("processing job")

	if w.logOnly {
		logger.Info("log-only mode, job not printed",
			"payload_url", location, "options", job.Options)
		w.complete(ctx, job)
		return
	}

	dest := Resolve(job.PrinterID)

	if err := w.pipeline.Run(ctx, location, dest, job.Options); err != nil {
		logger.Error("job failed", "destination", dest.Name, "error", err)
		w.fail(ctx, job, err.Error())
		return
	}

	logger.Info("job completed", "destination", dest.Name)
	w.complete(ctx, job)
}

func (w *Worker) complete(ctx context.Context, job *db.PrintJob) {
	if err := w.jobs.UpdateJobStatus(ctx, job.ID, string(JobStatusCompleted), ""); err != nil {
		w.logger.Error("failed to record job completion", "job_id", job.ID, "error", err)
		return
	}
	if w.events != nil {
		w.events.JobCompleted(job.ID, job.ClientID)
	}
}

func (w *Worker) fail(ctx context.Context, job *db.PrintJob, errMsg string) {
	if err := w.jobs.UpdateJobStatus(ctx, job.ID, string(JobStatusFailed), errMsg); err != nil {
		w.logger.Error("failed to record job failure", "job_id", job.ID, "error", err)
		return
	}
	if w.events != nil {
		w.events.JobFailed(job.ID, job.ClientID, errMsg)
	}
}

// Busy reports whether a drain is in flight. Exposed for the status surface.
func (w *Worker) Busy() bool {
	return w.busy.Load()
}
