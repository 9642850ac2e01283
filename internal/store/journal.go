package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// DispatchAttemptRecord holds data for inserting one handler invocation
// outcome into the dispatch journal.
type DispatchAttemptRecord struct {
	HandlerName string
	Payload     json.RawMessage
	Status      string // "success", "failed" or "skipped"
	DurationMs  int
	ErrorText   string
}

// RecordDispatchAttempt inserts a dispatch attempt into the journal.
func (s *PostgresStore) RecordDispatchAttempt(ctx context.Context, rec DispatchAttemptRecord) error {
	var errText *string
	if rec.ErrorText != "" {
		errText = &rec.ErrorText
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO dispatch_attempts (handler_name, payload, status, duration_ms, error_text)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.HandlerName, []byte(rec.Payload), rec.Status, rec.DurationMs, errText)
	if err != nil {
		return fmt.Errorf("inserting dispatch attempt: %w", err)
	}
	return nil
}
