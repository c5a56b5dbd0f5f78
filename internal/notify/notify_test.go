package notify

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollNotifierTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wakes atomic.Int32
	n := &PollNotifier{Interval: 10 * time.Millisecond}
	n.Subscribe(ctx, "client-1", func() {
		wakes.Add(1)
	})

	require.Eventually(t, func() bool {
		return wakes.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPollNotifierStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var wakes atomic.Int32
	n := &PollNotifier{Interval: 5 * time.Millisecond}
	n.Subscribe(ctx, "client-1", func() {
		wakes.Add(1)
	})

	require.Eventually(t, func() bool { return wakes.Load() >= 1 }, 2*time.Second, time.Millisecond)
	cancel()

	// One in-flight tick may still land after cancellation.
	time.Sleep(20 * time.Millisecond)
	settled := wakes.Load()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, wakes.Load(), settled+1)
}

func TestNoopPublisher(t *testing.T) {
	assert.NoError(t, NoopPublisher{}.JobCreated(context.Background(), "client-1"))
}
