package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is an append-only record of something that happened to an
// aggregate. The bus persists events before fanning them out so a crashed
// notifier can be replayed from the table.
type DomainEvent struct {
	ID          uuid.UUID
	Topic       string
	AggregateID string
	Payload     json.RawMessage
	OccurredAt  time.Time
}

// InsertEvent appends one domain event.
func (s *Store) InsertEvent(ctx context.Context, ev DomainEvent) (uuid.UUID, error) {
	if err := s.ready(); err != nil {
		return uuid.Nil, err
	}
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `INSERT INTO domain_events (topic, aggregate_id, payload)
VALUES ($1, $2, $3) RETURNING id`, ev.Topic, ev.AggregateID, ev.Payload).Scan(&id)
	return id, err
}

// ListEventsByAggregate returns an aggregate's history, oldest first.
func (s *Store) ListEventsByAggregate(ctx context.Context, aggregateID string, limit int32) ([]DomainEvent, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT id, topic, aggregate_id, payload, occurred_at
FROM domain_events WHERE aggregate_id = $1 ORDER BY occurred_at LIMIT $2`, aggregateID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DomainEvent
	for rows.Next() {
		var ev DomainEvent
		if err := rows.Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
