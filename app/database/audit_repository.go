package database

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Audit event types emitted by the pipeline.
const (
	AuditIndexed              = "indexed"
	AuditIndexingFailed       = "indexing_failed"
	AuditExtractionDeadLetter = "extraction_dead_lettered"
)

var _ AuditRepository = (*AuditRepositoryImpl)(nil)

type AuditRepositoryImpl struct {
	db *DB
}

func NewAuditRepository(db *DB) *AuditRepositoryImpl {
	return &AuditRepositoryImpl{db: db}
}

func (r *AuditRepositoryImpl) RecordEvent(eventType, resourceType, resourceID string, metadata map[string]string) (string, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to marshal audit metadata: %w", err)
	}

	id := uuid.NewString()
	_, err = r.db.Exec(`
		INSERT INTO audit_events (id, event_type, resource_type, resource_id, metadata)
		VALUES (?, ?, ?, ?, ?)
	`, id, eventType, resourceType, resourceID, string(metadataJSON))
	if err != nil {
		return "", fmt.Errorf("failed to record audit event: %w", err)
	}

	return id, nil
}

func (r *AuditRepositoryImpl) GetEventCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM audit_events").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get audit event count: %w", err)
	}
	return count, nil
}
