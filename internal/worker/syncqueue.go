package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// PendingRequest is one queued mutation waiting for a sync trigger.
type PendingRequest struct {
	ID          string    `json:"id"`
	Method      string    `json:"method"`
	URL         string    `json:"url"`
	Body        []byte    `json:"body,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Attempts    int       `json:"attempts"`
	NextAttempt time.Time `json:"next_attempt"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// Queue stores pending requests between sync triggers.
type Queue interface {
	Enqueue(ctx context.Context, req PendingRequest) error
	// Due returns the requests whose next attempt is at or before now,
	// oldest first.
	Due(ctx context.Context, now time.Time) ([]PendingRequest, error)
	Update(ctx context.Context, req PendingRequest) error
	Delete(ctx context.Context, id string) error
}

// DeadLetterSink receives requests that exhausted their attempts.
type DeadLetterSink interface {
	DeadLetter(ctx context.Context, req PendingRequest, reason string) error
}

// Syncer replays the pending queue on each sync trigger: a success deletes
// the request, a transient failure reschedules it with bounded exponential
// backoff, and a request out of attempts or rejected with a permanent
// client error is dead-lettered.
type Syncer struct {
	queue       Queue
	client      *http.Client
	deadLetters DeadLetterSink
	logger      *slog.Logger

	// MaxAttempts bounds the retries before dead-lettering.
	MaxAttempts int
	// BaseDelay is the first retry delay; it doubles per attempt.
	BaseDelay time.Duration
	// MaxDelay caps the backoff.
	MaxDelay time.Duration

	now func() time.Time
}

// NewSyncer builds a Syncer with the default retry policy. deadLetters may
// be nil; exhausted requests are then only logged and dropped.
func NewSyncer(queue Queue, deadLetters DeadLetterSink, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		queue:       queue,
		client:      &http.Client{Timeout: 15 * time.Second},
		deadLetters: deadLetters,
		logger:      logger,
		MaxAttempts: 5,
		BaseDelay:   30 * time.Second,
		MaxDelay:    30 * time.Minute,
		now:         time.Now,
	}
}

// Enqueue queues a request for the next sync trigger.
func (s *Syncer) Enqueue(ctx context.Context, method, url string, body []byte, contentType string) (PendingRequest, error) {
	now := s.now()
	req := PendingRequest{
		ID:          uuid.New().String(),
		Method:      method,
		URL:         url,
		Body:        body,
		ContentType: contentType,
		NextAttempt: now,
		EnqueuedAt:  now,
	}
	if err := s.queue.Enqueue(ctx, req); err != nil {
		return PendingRequest{}, fmt.Errorf("enqueue request: %w", err)
	}
	return req, nil
}

// ReplayDue is one sync trigger: it replays every due request and returns
// how many succeeded and how many stay queued or were dead-lettered.
func (s *Syncer) ReplayDue(ctx context.Context) (succeeded, failed int, err error) {
	due, err := s.queue.Due(ctx, s.now())
	if err != nil {
		return 0, 0, fmt.Errorf("list due requests: %w", err)
	}

	for _, req := range due {
		replayErr := s.replay(ctx, req)
		if replayErr == nil {
			if err := s.queue.Delete(ctx, req.ID); err != nil {
				s.logger.Warn("[WORKER] deleting replayed request failed", "id", req.ID, "error", err)
			}
			succeeded++
			continue
		}
		failed++
		var perm *permanentError
		if errors.As(replayErr, &perm) {
			// No retry can fix a client error; record it for operators
			// instead of silently dropping the mutation.
			req.Attempts++
			s.discard(ctx, req, replayErr)
			continue
		}
		s.reschedule(ctx, req, replayErr)
	}
	return succeeded, failed, nil
}

// permanentError marks a replay response no retry can fix.
type permanentError struct {
	status int
}

func (e *permanentError) Error() string {
	return fmt.Sprintf("replay: status %d", e.status)
}

func (s *Syncer) replay(ctx context.Context, req PendingRequest) error {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return &permanentError{status: resp.StatusCode}
	default:
		return fmt.Errorf("replay: status %d", resp.StatusCode)
	}
}

// discard dead-letters a request and removes it from the queue. A sink
// failure keeps it queued rather than losing it.
func (s *Syncer) discard(ctx context.Context, req PendingRequest, cause error) {
	s.logger.Error("[WORKER] request not replayable, dead-lettering",
		"id", req.ID, "url", req.URL, "attempts", req.Attempts, "error", cause)
	if s.deadLetters != nil {
		if err := s.deadLetters.DeadLetter(ctx, req, cause.Error()); err != nil {
			s.logger.Error("[WORKER] dead-lettering failed", "id", req.ID, "error", err)
			return
		}
	}
	if err := s.queue.Delete(ctx, req.ID); err != nil {
		s.logger.Warn("[WORKER] deleting dead-lettered request failed", "id", req.ID, "error", err)
	}
}

func (s *Syncer) reschedule(ctx context.Context, req PendingRequest, cause error) {
	req.Attempts++
	if req.Attempts >= s.MaxAttempts {
		s.discard(ctx, req, cause)
		return
	}

	delay := s.BaseDelay << (req.Attempts - 1)
	if delay > s.MaxDelay || delay <= 0 {
		delay = s.MaxDelay
	}
	req.NextAttempt = s.now().Add(delay)
	if err := s.queue.Update(ctx, req); err != nil {
		s.logger.Warn("[WORKER] rescheduling request failed", "id", req.ID, "error", err)
	}
	s.logger.Info("[WORKER] replay failed, rescheduled",
		"id", req.ID, "attempt", req.Attempts, "next_in", delay, "error", cause)
}

// Run replays the queue on a fixed interval until ctx is done.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := s.ReplayDue(ctx); err != nil {
				s.logger.Error("[WORKER] sync trigger failed", "error", err)
			}
		}
	}
}

// MemoryQueue is an in-process Queue for tests and single-node runs.
type MemoryQueue struct {
	mu       sync.Mutex
	requests map[string]PendingRequest
}

// NewMemoryQueue constructs an empty MemoryQueue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{requests: make(map[string]PendingRequest)}
}

// Enqueue implements Queue.
func (q *MemoryQueue) Enqueue(_ context.Context, req PendingRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.requests[req.ID] = req
	return nil
}

// Due implements Queue.
func (q *MemoryQueue) Due(_ context.Context, now time.Time) ([]PendingRequest, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var due []PendingRequest
	for _, req := range q.requests {
		if !req.NextAttempt.After(now) {
			due = append(due, req)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].EnqueuedAt.Before(due[j].EnqueuedAt) })
	return due, nil
}

// Update implements Queue.
func (q *MemoryQueue) Update(_ context.Context, req PendingRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.requests[req.ID] = req
	return nil
}

// Delete implements Queue.
func (q *MemoryQueue) Delete(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.requests, id)
	return nil
}

// Len returns the number of queued requests.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}

// redisQueueKey is the hash holding the pending queue.
const redisQueueKey = "sw:syncqueue"

// RedisQueue shares the pending queue between gateway instances.
type RedisQueue struct {
	rdb *redis.Client
}

// NewRedisQueue wraps a redis client as a Queue.
func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb}
}

// Enqueue implements Queue.
func (q *RedisQueue) Enqueue(ctx context.Context, req PendingRequest) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode pending request: %w", err)
	}
	if err := q.rdb.HSet(ctx, redisQueueKey, req.ID, raw).Err(); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

// Due implements Queue.
func (q *RedisQueue) Due(ctx context.Context, now time.Time) ([]PendingRequest, error) {
	all, err := q.rdb.HGetAll(ctx, redisQueueKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	var due []PendingRequest
	for _, raw := range all {
		var req PendingRequest
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			continue
		}
		if !req.NextAttempt.After(now) {
			due = append(due, req)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].EnqueuedAt.Before(due[j].EnqueuedAt) })
	return due, nil
}

// Update implements Queue.
func (q *RedisQueue) Update(ctx context.Context, req PendingRequest) error {
	return q.Enqueue(ctx, req)
}

// Delete implements Queue.
func (q *RedisQueue) Delete(ctx context.Context, id string) error {
	if err := q.rdb.HDel(ctx, redisQueueKey, id).Err(); err != nil {
		return fmt.Errorf("delete queued request: %w", err)
	}
	return nil
}
