package core

import (
	"context"
	"fmt"

	"printrelay/internal/blob"
	"printrelay/internal/db"
)

type JobStore interface {
	GetJob(ctx context.Context, id string) (*db.PrintJob, error)
	OldestPendingID(ctx context.Context, clientID string) (string, error)
	ClaimJob(ctx context.Context, id string) (*db.PrintJob, error)
	UpdateJobStatus(ctx context.Context, id, status, errMsg string) error
}

// Broker owns the claim operation: the atomic pending-to-processing
// transition plus resolution of the payload to a fetchable URL.
type Broker struct {
	jobs     JobStore
	payloads blob.Store
}

func NewBroker(jobs JobStore, payloads blob.Store) *Broker {
	return &Broker{jobs: jobs, payloads: payloads}
}

// Claim exclusively assigns a pending job to the caller. Under concurrent
// callers at most one gets a non-nil job back; the rest get (nil, "", nil)
// and should move on to the next candidate. A non-nil job together with a
// non-nil error means the claim won but the payload location could not be
// resolved; the job is already processing and the caller must record a
// terminal failure for it.
func (b *Broker) Claim(ctx context.Context, id string) (*db.PrintJob, string, error) {
	job, err := b.jobs.ClaimJob(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if job == nil {
		return nil, "", nil
	}

	location, err := b.payloads.SignedURL(ctx, job.PayloadRef)
	if err != nil {
		return job, "", fmt.Errorf("failed to resolve payload location: %w", err)
	}

	return job, location, nil
}

// OldestPendingForClaim names the next candidate for a client. The caller
// must tolerate the subsequent Claim returning nil (another worker won) and
// simply loop.
func (b *Broker) OldestPendingForClaim(ctx context.Context, clientID string) (string, error) {
	return b.jobs.OldestPendingID(ctx, clientID)
}
