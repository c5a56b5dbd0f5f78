package notify

import (
	"context"
	"time"
)

// Notifier tells a subscribed worker that the pending-job view for its
// client id may have changed. Signals are a hint, not a queue: the worker
// re-reads the store on every wakeup, so spurious or coalesced signals are
// harmless.
type Notifier interface {
	Subscribe(ctx context.Context, clientID string, fn func())
}

// Publisher is the ingress side of the contract.
type Publisher interface {
	JobCreated(ctx context.Context, clientID string) error
}

// PollNotifier is the degraded mode: a fixed-interval tick with the same
// external contract as the push channel.
type PollNotifier struct {
	Interval time.Duration
}

func (n *PollNotifier) Subscribe(ctx context.Context, clientID string, fn func()) {
	interval := n.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

// NoopPublisher is used when no push channel is configured; workers fall
// back to polling.
type NoopPublisher struct{}

func (NoopPublisher) JobCreated(ctx context.Context, clientID string) error {
	return nil
}
