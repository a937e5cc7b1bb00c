package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ SourceRepository = (*SourceRepositoryImpl)(nil)

type SourceRepositoryImpl struct {
	db *DB
}

func NewSourceRepository(db *DB) *SourceRepositoryImpl {
	return &SourceRepositoryImpl{db: db}
}

func (r *SourceRepositoryImpl) GetSource(name string) (*Source, error) {
	var source Source
	var isActive int

	err := r.db.QueryRow(`
		SELECT id, name, type, identifier, is_active, last_processed_at, created_at, updated_at
		FROM sources
		WHERE name = ?
	`, name).Scan(&source.ID, &source.Name, &source.Type, &source.Identifier,
		&isActive, &source.LastProcessedAt, &source.CreatedAt, &source.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	source.IsActive = isActive != 0
	return &source, nil
}

func (r *SourceRepositoryImpl) GetActiveSources(sourceType string) ([]Source, error) {
	rows, err := r.db.Query(`
		SELECT id, name, type, identifier, is_active, last_processed_at, created_at, updated_at
		FROM sources
		WHERE type = ? AND is_active = 1
		ORDER BY name
	`, sourceType)
	if err != nil {
		return nil, fmt.Errorf("failed to get active sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var source Source
		var isActive int
		err := rows.Scan(&source.ID, &source.Name, &source.Type, &source.Identifier,
			&isActive, &source.LastProcessedAt, &source.CreatedAt, &source.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		source.IsActive = isActive != 0
		sources = append(sources, source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}

	return sources, nil
}

func (r *SourceRepositoryImpl) GetSourceCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM sources").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get source count: %w", err)
	}
	return count, nil
}

func (r *SourceRepositoryImpl) UpsertSource(name, sourceType, identifier string, isActive bool) (string, error) {
	existing, err := r.GetSource(name)
	if err != nil {
		return "", fmt.Errorf("failed to check existing source: %w", err)
	}

	active := 0
	if isActive {
		active = 1
	}

	if existing != nil {
		_, err = r.db.Exec(`
			UPDATE sources
			SET type = ?, identifier = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP
			WHERE name = ?
		`, sourceType, identifier, active, name)
		if err != nil {
			return "", fmt.Errorf("failed to update source: %w", err)
		}
		return existing.ID, nil
	}

	id := uuid.NewString()
	_, err = r.db.Exec(`
		INSERT INTO sources (id, name, type, identifier, is_active)
		VALUES (?, ?, ?, ?, ?)
	`, id, name, sourceType, identifier, active)
	if err != nil {
		return "", fmt.Errorf("failed to insert source: %w", err)
	}

	return id, nil
}

// UpdateWatermark advances the source's high-water mark. The guard keeps the
// watermark monotonic: a stale or concurrent sweep can never move it backward.
func (r *SourceRepositoryImpl) UpdateWatermark(sourceID string, timestamp time.Time) error {
	_, err := r.db.Exec(`
		UPDATE sources
		SET last_processed_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		  AND (last_processed_at IS NULL OR last_processed_at < ?)
	`, timestamp.UTC(), sourceID, timestamp.UTC())

	if err != nil {
		return fmt.Errorf("failed to update watermark: %w", err)
	}

	return nil
}
