package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgevents "github.com/floroz/bazaar/pkg/events"
)

const outboxColumns = `id, event_type, payload, status::text AS status, created_at, processed_at`

// PostgresOutboxRepository stores market events next to the snapshots that
// produced them and hands them to the relay
type PostgresOutboxRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresOutboxRepository creates a new PostgreSQL outbox repository
func NewPostgresOutboxRepository(pool *pgxpool.Pool) *PostgresOutboxRepository {
	return &PostgresOutboxRepository{pool: pool}
}

// SaveEvent writes event in the caller's transaction. A missing status is
// stored as pending.
func (r *PostgresOutboxRepository) SaveEvent(ctx context.Context, tx pgx.Tx, event *pkgevents.OutboxEvent) error {
	status := event.Status
	if status == "" {
		status = pkgevents.OutboxStatusPending
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox_events (id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4::outbox_status, $5)
	`, event.ID, event.EventType, event.Payload, string(status), event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert %s event: %w", event.EventType, err)
	}
	return nil
}

// GetPendingEvents locks the oldest pending events for the relay.
// SKIP LOCKED keeps concurrent relays from picking the same rows.
func (r *PostgresOutboxRepository) GetPendingEvents(ctx context.Context, tx pgx.Tx, limit int) ([]*pkgevents.OutboxEvent, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+outboxColumns+`
		FROM outbox_events
		WHERE status = 'pending'
		ORDER BY created_at ASC, id ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	events, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[pkgevents.OutboxEvent])
	if err != nil {
		return nil, fmt.Errorf("failed to read pending events: %w", err)
	}
	return events, nil
}

// UpdateEventStatus moves an event to status. Terminal statuses stamp processed_at.
func (r *PostgresOutboxRepository) UpdateEventStatus(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, status pkgevents.OutboxStatus) error {
	result, err := tx.Exec(ctx, `
		UPDATE outbox_events
		SET status = $1::outbox_status,
		    processed_at = CASE WHEN $1 IN ('published', 'failed') THEN NOW() ELSE NULL END
		WHERE id = $2
	`, string(status), eventID)
	if err != nil {
		return fmt.Errorf("failed to update event status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("outbox event %s not found", eventID)
	}
	return nil
}

// PendingByType counts unpublished events per event type
func (r *PostgresOutboxRepository) PendingByType(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT event_type, COUNT(*)
		FROM outbox_events
		WHERE status = 'pending'
		GROUP BY event_type
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			eventType string
			n         int
		)
		if err := rows.Scan(&eventType, &n); err != nil {
			return nil, fmt.Errorf("failed to scan pending count: %w", err)
		}
		counts[eventType] = n
	}
	return counts, rows.Err()
}
