// Package repository implements all database queries for the discovery gateway.
// It uses pgx directly (no ORM) for transparency and performance.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"eventhub-gateway/internal/model"
	"eventhub-gateway/internal/worker"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// SubscriptionRepository keeps the local copy of push subscriptions so the
// upstream mirror can be replayed after a restart.
type SubscriptionRepository struct {
	db *pgxpool.Pool
}

// NewSubscriptionRepository constructs a SubscriptionRepository.
func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Save inserts or refreshes a subscription keyed by its endpoint.
func (r *SubscriptionRepository) Save(ctx context.Context, sub model.PushSubscription) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO push_subscriptions (id, endpoint, p256dh, auth, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (endpoint)
		 DO UPDATE SET p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth`,
		uuid.New().String(), sub.Endpoint, sub.Keys.P256dh, sub.Keys.Auth, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}

// Delete removes the subscription with the given endpoint.
func (r *SubscriptionRepository) Delete(ctx context.Context, endpoint string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM push_subscriptions WHERE endpoint = $1`,
		endpoint,
	)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

// GetByEndpoint returns a single subscription or ErrNotFound.
func (r *SubscriptionRepository) GetByEndpoint(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := r.db.QueryRow(ctx,
		`SELECT endpoint, p256dh, auth
		 FROM push_subscriptions WHERE endpoint = $1`,
		endpoint,
	).Scan(&sub.Endpoint, &sub.Keys.P256dh, &sub.Keys.Auth)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return &sub, nil
}

// List returns all stored subscriptions ordered by creation time descending.
func (r *SubscriptionRepository) List(ctx context.Context) ([]model.PushSubscription, error) {
	rows, err := r.db.Query(ctx,
		`SELECT endpoint, p256dh, auth
		 FROM push_subscriptions
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.PushSubscription
	for rows.Next() {
		var sub model.PushSubscription
		if err := rows.Scan(&sub.Endpoint, &sub.Keys.P256dh, &sub.Keys.Auth); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// DeadLetterRepository records sync-queue requests that exhausted their
// attempts, so operators can inspect what never reached the upstream.
type DeadLetterRepository struct {
	db *pgxpool.Pool
}

// NewDeadLetterRepository constructs a DeadLetterRepository.
func NewDeadLetterRepository(db *pgxpool.Pool) *DeadLetterRepository {
	return &DeadLetterRepository{db: db}
}

// DeadLetter stores the exhausted request together with its final failure.
func (r *DeadLetterRepository) DeadLetter(ctx context.Context, req worker.PendingRequest, reason string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sync_dead_letters (id, method, url, body, content_type, attempts, reason, enqueued_at, failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		req.ID, req.Method, req.URL, req.Body, req.ContentType, req.Attempts, reason, req.EnqueuedAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}
	return nil
}

// DeadLetterRecord is one permanently failed request.
type DeadLetterRecord struct {
	ID       string    `json:"id"`
	Method   string    `json:"method"`
	URL      string    `json:"url"`
	Attempts int       `json:"attempts"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}

// List returns dead letters newest-first.
func (r *DeadLetterRepository) List(ctx context.Context, limit int) ([]DeadLetterRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, method, url, attempts, reason, failed_at
		 FROM sync_dead_letters
		 ORDER BY failed_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var records []DeadLetterRecord
	for rows.Next() {
		var rec DeadLetterRecord
		if err := rows.Scan(&rec.ID, &rec.Method, &rec.URL, &rec.Attempts, &rec.Reason, &rec.FailedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
