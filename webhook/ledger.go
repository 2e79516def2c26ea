package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Ledger records which events have been handled. Claim is atomic: of two
// concurrent claims of one event id exactly one wins.
type Ledger interface {
	// Claim returns false when the event is already handled or in flight.
	Claim(ctx context.Context, eventID, eventType string) (bool, error)
	// Complete marks a claimed event as handled for good.
	Complete(ctx context.Context, eventID string) error
	// Release gives a claim back so a redelivery can retry it.
	Release(ctx context.Context, eventID string, cause error) error
}

// ErrLedgerUnavailable wraps backend failures.
var ErrLedgerUnavailable = errors.New("webhook ledger unavailable")

const (
	// DefaultClaimTTL bounds how long an in-flight claim blocks redelivery
	// after a crash.
	DefaultClaimTTL = 10 * time.Minute
	// DefaultRetention is how long handled event ids are remembered.
	DefaultRetention = 7 * 24 * time.Hour
)

/* ==== REDIS ==== */

// RedisLedger keeps one key per event: "processing" while claimed, "done"
// once handled.
type RedisLedger struct {
	client    redis.UniversalClient
	prefix    string
	claimTTL  time.Duration
	retention time.Duration
}

// NewRedisLedger creates a ledger under prefix. Zero durations take the
// package defaults.
func NewRedisLedger(client redis.UniversalClient, prefix string, claimTTL, retention time.Duration) *RedisLedger {
	if prefix == "" {
		prefix = "webhook"
	}
	if claimTTL <= 0 {
		claimTTL = DefaultClaimTTL
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisLedger{client: client, prefix: prefix, claimTTL: claimTTL, retention: retention}
}

func (l *RedisLedger) key(id string) string { return l.prefix + ":evt:" + id }

func (l *RedisLedger) Claim(ctx context.Context, eventID, _ string) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(eventID), "processing", l.claimTTL).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return ok, nil
}

func (l *RedisLedger) Complete(ctx context.Context, eventID string) error {
	if err := l.client.Set(ctx, l.key(eventID), "done", l.retention).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return nil
}

func (l *RedisLedger) Release(ctx context.Context, eventID string, _ error) error {
	if err := l.client.Del(ctx, l.key(eventID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return nil
}

/* ==== POSTGRES ==== */

// PostgresLedger keeps events in the webhook_events table created by
// credential.Migrate. Failed events stay in the table with their error and
// can be claimed again.
type PostgresLedger struct {
	db       *pgxpool.Pool
	claimTTL time.Duration
	now      func() time.Time
}

// NewPostgresLedger creates a ledger over db.
func NewPostgresLedger(db *pgxpool.Pool, claimTTL time.Duration) *PostgresLedger {
	if claimTTL <= 0 {
		claimTTL = DefaultClaimTTL
	}
	return &PostgresLedger{db: db, claimTTL: claimTTL, now: time.Now}
}

func (l *PostgresLedger) Claim(ctx context.Context, eventID, eventType string) (bool, error) {
	now := l.now().UTC()
	query := `
		INSERT INTO webhook_events (event_id, event_type, status, received_at)
		VALUES ($1, $2, 'processing', $3)
		ON CONFLICT (event_id) DO UPDATE
			SET status = 'processing', processing_error = NULL, received_at = EXCLUDED.received_at
			WHERE webhook_events.status = 'failed'
			   OR (webhook_events.status = 'processing' AND webhook_events.received_at < $4)
		RETURNING event_id`

	var id string
	err := l.db.QueryRow(ctx, query, eventID, eventType, now, now.Add(-l.claimTTL)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return true, nil
}

func (l *PostgresLedger) Complete(ctx context.Context, eventID string) error {
	_, err := l.db.Exec(ctx, `
		UPDATE webhook_events
		SET status = 'done', processed_at = $2, processing_error = NULL
		WHERE event_id = $1`, eventID, l.now().UTC())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return nil
}

func (l *PostgresLedger) Release(ctx context.Context, eventID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := l.db.Exec(ctx, `
		UPDATE webhook_events
		SET status = 'failed', processing_error = NULLIF($2, '')
		WHERE event_id = $1 AND status = 'processing'`, eventID, msg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return nil
}

// Prune deletes handled events processed before cutoff and returns how many
// rows went.
func (l *PostgresLedger) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := l.db.Exec(ctx, `DELETE FROM webhook_events WHERE status = 'done' AND processed_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return tag.RowsAffected(), nil
}
