package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"printrelay/internal/config"
)

type capture struct {
	mu        sync.Mutex
	bodies    [][]byte
	events    []string
	sigs      []string
	failFirst bool
	calls     int
}

func (c *capture) handler(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.failFirst && c.calls == 1 {
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	body, _ := io.ReadAll(r.Body)
	c.bodies = append(c.bodies, body)
	c.events = append(c.events, r.Header.Get("X-Webhook-Event"))
	c.sigs = append(c.sigs, r.Header.Get("X-Webhook-Signature"))
}

func (c *capture) delivered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bodies)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSender(t *testing.T, cfg config.WebhooksConfig) *Sender {
	t.Helper()
	s := NewSender(cfg, testLogger())
	s.retryDelay = 10 * time.Millisecond
	s.Start()
	t.Cleanup(s.Stop)
	return s
}

func TestSenderDeliversJobCompleted(t *testing.T) {
	cap := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(cap.handler))
	t.Cleanup(srv.Close)

	s := newTestSender(t, config.WebhooksConfig{URLs: []string{srv.URL}, Secret: "hunter2"})
	s.JobCompleted("job-1", "client-1")

	require.Eventually(t, func() bool { return cap.delivered() == 1 }, 2*time.Second, 10*time.Millisecond)

	cap.mu.Lock()
	defer cap.mu.Unlock()

	assert.Equal(t, "job_completed", cap.events[0])

	var payload Payload
	require.NoError(t, json.Unmarshal(cap.bodies[0], &payload))
	assert.Equal(t, "job-1", payload.Data.JobID)
	assert.Equal(t, "client-1", payload.Data.ClientID)
	assert.Equal(t, "completed", payload.Data.Status)

	mac := hmac.New(sha256.New, []byte("hunter2"))
	mac.Write(cap.bodies[0])
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), cap.sigs[0])
}

func TestSenderDeliversJobFailedWithMessage(t *testing.T) {
	cap := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(cap.handler))
	t.Cleanup(srv.Close)

	s := newTestSender(t, config.WebhooksConfig{URLs: []string{srv.URL}})
	s.JobFailed("job-2", "client-1", "out of paper")

	require.Eventually(t, func() bool { return cap.delivered() == 1 }, 2*time.Second, 10*time.Millisecond)

	cap.mu.Lock()
	defer cap.mu.Unlock()

	var payload Payload
	require.NoError(t, json.Unmarshal(cap.bodies[0], &payload))
	assert.Equal(t, "out of paper", payload.Data.ErrorMessage)
	assert.Empty(t, cap.sigs[0], "no signature without a secret")
}

func TestSenderRetriesServerErrors(t *testing.T) {
	cap := &capture{failFirst: true}
	srv := httptest.NewServer(http.HandlerFunc(cap.handler))
	t.Cleanup(srv.Close)

	s := newTestSender(t, config.WebhooksConfig{URLs: []string{srv.URL}})
	s.JobCompleted("job-3", "client-1")

	require.Eventually(t, func() bool { return cap.delivered() == 1 }, 2*time.Second, 10*time.Millisecond)

	cap.mu.Lock()
	defer cap.mu.Unlock()
	assert.Equal(t, 2, cap.calls)
}

func TestSenderDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	t.Cleanup(srv.Close)

	s := newTestSender(t, config.WebhooksConfig{URLs: []string{srv.URL}})
	s.JobCompleted("job-4", "client-1")

	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestSenderFansOutToAllEndpoints(t *testing.T) {
	a := &capture{}
	b := &capture{}
	srvA := httptest.NewServer(http.HandlerFunc(a.handler))
	srvB := httptest.NewServer(http.HandlerFunc(b.handler))
	t.Cleanup(srvA.Close)
	t.Cleanup(srvB.Close)

	s := newTestSender(t, config.WebhooksConfig{URLs: []string{srvA.URL, srvB.URL}})
	s.JobCompleted("job-5", "client-1")

	require.Eventually(t, func() bool {
		return a.delivered() == 1 && b.delivered() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSenderEnabled(t *testing.T) {
	assert.False(t, NewSender(config.WebhooksConfig{}, testLogger()).Enabled())
	assert.True(t, NewSender(config.WebhooksConfig{URLs: []string{"http://example.com"}}, testLogger()).Enabled())
}
