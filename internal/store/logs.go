package store

import (
	"context"

	"payment-service/internal/models"
)

// InsertSystemLog appends a diagnostic record
func (s *Store) InsertSystemLog(ctx context.Context, entry *models.SystemLog) error {
	metadata := entry.Metadata
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO system_logs (level, component, message, metadata) VALUES ($1, $2, $3, $4)",
		entry.Level, entry.Component, entry.Message, string(metadata))
	return err
}
