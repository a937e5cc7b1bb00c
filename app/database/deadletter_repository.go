package database

import (
	"fmt"

	"github.com/google/uuid"
)

var _ DeadLetterRepository = (*DeadLetterRepositoryImpl)(nil)

// DeadLetterRepositoryImpl stores extraction jobs that exhausted their
// retries. Entries are append-only and consumed by manual operator review.
type DeadLetterRepositoryImpl struct {
	db *DB
}

func NewDeadLetterRepository(db *DB) *DeadLetterRepositoryImpl {
	return &DeadLetterRepositoryImpl{db: db}
}

func (r *DeadLetterRepositoryImpl) AddDeadLetter(entry DeadLetter) (string, error) {
	id := entry.ID
	if id == "" {
		id = uuid.NewString()
	}

	var sourceID any
	if entry.SourceID != "" {
		sourceID = entry.SourceID
	}

	_, err := r.db.Exec(`
		INSERT INTO dead_letters (id, source_id, source_locator, raw_text, attempts, last_error, enqueued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, sourceID, entry.SourceLocator, entry.RawText, entry.Attempts,
		entry.LastError, entry.EnqueuedAt.UTC())
	if err != nil {
		return "", fmt.Errorf("failed to add dead letter: %w", err)
	}

	return id, nil
}

func (r *DeadLetterRepositoryImpl) GetDeadLetterCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM dead_letters").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get dead letter count: %w", err)
	}
	return count, nil
}
