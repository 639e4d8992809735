package store

import (
	"context"

	"payment-service/internal/models"
)

// InsertEvent appends a PENDING event and returns its id
func (s *Store) InsertEvent(ctx context.Context, eventType string, payload []byte) (int64, error) {
	var id int64
	err := s.db.GetContext(ctx, &id,
		"INSERT INTO app_events (type, payload, status) VALUES ($1, $2, $3) RETURNING id",
		eventType, string(payload), models.EventStatusPending)
	return id, err
}

// FetchPendingEvents returns up to limit PENDING events, oldest first
func (s *Store) FetchPendingEvents(ctx context.Context, limit int) ([]models.AppEvent, error) {
	var events []models.AppEvent
	err := s.db.SelectContext(ctx, &events,
		`SELECT id, type, payload, status, error, created_at, updated_at, processed_at
		FROM app_events WHERE status = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2`,
		models.EventStatusPending, limit)
	return events, err
}

// ClaimEvent moves an event from PENDING to PROCESSING. It returns false when
// another worker claimed it first.
func (s *Store) ClaimEvent(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE app_events SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		models.EventStatusProcessing, id, models.EventStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CompleteEvent marks an event COMPLETED
func (s *Store) CompleteEvent(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE app_events SET status = $1, error = NULL, processed_at = NOW(), updated_at = NOW() WHERE id = $2",
		models.EventStatusCompleted, id)
	return err
}

// FailEvent marks an event FAILED with the reason
func (s *Store) FailEvent(ctx context.Context, id int64, reason string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE app_events SET status = $1, error = $2, processed_at = NOW(), updated_at = NOW() WHERE id = $3",
		models.EventStatusFailed, reason, id)
	return err
}
