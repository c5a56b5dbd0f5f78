package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"printrelay/internal/config"
)

type Event string

const (
	EventJobCompleted Event = "job_completed"
	EventJobFailed    Event = "job_failed"
)

type Payload struct {
	Event     string       `json:"event"`
	Timestamp time.Time    `json:"timestamp"`
	Data      JobEventData `json:"data"`
}

type JobEventData struct {
	JobID        string `json:"job_id"`
	ClientID     string `json:"client_id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type task struct {
	url     string
	payload *Payload
	attempt int
}

// Sender delivers job lifecycle events to the configured endpoints. Delivery
// is fire-and-forget from the caller's perspective: tasks are queued to a
// small worker pool and retried with exponential delay; a full queue drops
// the event rather than stall job processing.
type Sender struct {
	urls       []string
	secret     string
	httpClient *http.Client
	retryCount int
	retryDelay time.Duration
	queue      chan *task
	stopCh     chan struct{}
	wg         sync.WaitGroup
	logger     *slog.Logger
}

const (
	defaultRetryCount  = 3
	defaultRetryDelay  = 5 * time.Second
	defaultWorkerCount = 3
	defaultQueueSize   = 100
)

func NewSender(cfg config.WebhooksConfig, logger *slog.Logger) *Sender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sender{
		urls:       cfg.URLs,
		secret:     cfg.Secret,
		httpClient: &http.Client{Timeout: timeout},
		retryCount: defaultRetryCount,
		retryDelay: defaultRetryDelay,
		queue:      make(chan *task, defaultQueueSize),
		stopCh:     make(chan struct{}),
		logger:     logger,
	}
}

// Enabled reports whether any endpoint is configured. Callers can skip
// wiring the sender entirely when it is false.
func (s *Sender) Enabled() bool {
	return len(s.urls) > 0
}

func (s *Sender) Start() {
	for i := 0; i < defaultWorkerCount; i++ {
		s.wg.Add(1)
		go s.worker()
	}
}

func (s *Sender) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// JobCompleted and JobFailed satisfy the worker's event sink.

func (s *Sender) JobCompleted(jobID, clientID string) {
	s.enqueue(EventJobCompleted, JobEventData{
		JobID:    jobID,
		ClientID: clientID,
		Status:   "completed",
	})
}

func (s *Sender) JobFailed(jobID, clientID, errMsg string) {
	s.enqueue(EventJobFailed, JobEventData{
		JobID:        jobID,
		ClientID:     clientID,
		Status:       "failed",
		ErrorMessage: errMsg,
	})
}

func (s *Sender) enqueue(event Event, data JobEventData) {
	payload := &Payload{
		Event:     string(event),
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	for _, url := range s.urls {
		select {
		case s.queue <- &task{url: url, payload: payload}:
		default:
			s.logger.Warn("webhook queue full, dropping event", "url", url, "event", event)
		}
	}
}

func (s *Sender) worker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case t := <-s.queue:
			if err := s.sendWithRetry(t); err != nil {
				s.logger.Error("webhook delivery failed",
					"url", t.url, "event", t.payload.Event, "attempts", t.attempt, "error", err)
			}
		}
	}
}

func (s *Sender) sendWithRetry(t *task) error {
	var lastErr error
	for t.attempt < s.retryCount {
		t.attempt++

		err := s.sendRequest(t.url, t.payload)
		if err == nil {
			return nil
		}
		lastErr = err

		if isClientError(err) {
			return err
		}

		if t.attempt < s.retryCount {
			backoff := s.retryDelay * time.Duration(1<<(t.attempt-1))
			select {
			case <-s.stopCh:
				return fmt.Errorf("shutdown requested")
			case <-time.After(backoff):
			}
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (s *Sender) sendRequest(url string, payload *Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", payload.Event)
	if s.secret != "" {
		req.Header.Set("X-Webhook-Signature", signPayload(body, s.secret))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &httpError{status: resp.StatusCode}
	}
	return nil
}

func signPayload(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

type httpError struct {
	status int
}

func (e *httpError) Error() string {
	return fmt.Sprintf("http error: %d", e.status)
}

// isClientError marks responses that will not improve on retry.
func isClientError(err error) bool {
	var he *httpError
	if errors.As(err, &he) {
		return he.status >= 400 && he.status < 500
	}
	return false
}
