package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

var _ CandidateRepository = (*CandidateRepositoryImpl)(nil)

type CandidateRepositoryImpl struct {
	db *DB
}

func NewCandidateRepository(db *DB) *CandidateRepositoryImpl {
	return &CandidateRepositoryImpl{db: db}
}

const candidateColumns = `id, title, description, company, location, compensation,
	requirements, deadline, contact_info, source_url, content_hash, status,
	is_aggregated, COALESCE(source_id, ''), source_locator, created_at, reviewed_at, reviewed_by`

func (r *CandidateRepositoryImpl) scanCandidate(row interface{ Scan(...any) error }) (*Candidate, error) {
	var c Candidate
	var isAggregated int

	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Company, &c.Location,
		&c.Compensation, &c.Requirements, &c.Deadline, &c.ContactInfo,
		&c.SourceURL, &c.ContentHash, &c.Status, &isAggregated,
		&c.SourceID, &c.SourceLocator, &c.CreatedAt, &c.ReviewedAt, &c.ReviewedBy)
	if err != nil {
		return nil, err
	}

	c.IsAggregated = isAggregated != 0
	return &c, nil
}

func (r *CandidateRepositoryImpl) GetCandidate(id string) (*Candidate, error) {
	row := r.db.QueryRow(`SELECT `+candidateColumns+` FROM candidates WHERE id = ?`, id)

	candidate, err := r.scanCandidate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}

	return candidate, nil
}

func (r *CandidateRepositoryImpl) GetPendingCandidates(limit int) ([]Candidate, error) {
	rows, err := r.db.Query(`
		SELECT `+candidateColumns+`
		FROM candidates
		WHERE status = ?
		ORDER BY created_at ASC
		LIMIT ?
	`, StatusPendingReview, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending candidates: %w", err)
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		candidate, err := r.scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate row: %w", err)
		}
		candidates = append(candidates, *candidate)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candidate rows: %w", err)
	}

	return candidates, nil
}

func (r *CandidateRepositoryImpl) GetStatusCounts() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM candidates GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to get status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count row: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status count rows: %w", err)
	}

	return counts, nil
}

func (r *CandidateRepositoryImpl) CheckDuplicate(contentHash string) (bool, *string, error) {
	var duplicateID string

	err := r.db.QueryRow(`SELECT id FROM candidates WHERE content_hash = ? LIMIT 1`, contentHash).Scan(&duplicateID)
	if err == sql.ErrNoRows {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("failed to check duplicate: %w", err)
	}

	return true, &duplicateID, nil
}

func (r *CandidateRepositoryImpl) HasSourceLocator(sourceLocator string) (bool, error) {
	var id string

	err := r.db.QueryRow(`SELECT id FROM candidates WHERE source_locator = ? LIMIT 1`, sourceLocator).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check source locator: %w", err)
	}

	return true, nil
}

// CreateCandidate inserts a new pending_review candidate. The unique index on
// content_hash plus ON CONFLICT DO NOTHING makes concurrent inserts of the
// same opportunity collapse into a single record.
func (r *CandidateRepositoryImpl) CreateCandidate(candidate Candidate) (string, bool, error) {
	id := candidate.ID
	if id == "" {
		id = uuid.NewString()
	}

	isAggregated := 0
	if candidate.IsAggregated {
		isAggregated = 1
	}

	var sourceID any
	if candidate.SourceID != "" {
		sourceID = candidate.SourceID
	}

	result, err := r.db.Exec(`
		INSERT INTO candidates (
			id, title, description, company, location, compensation,
			requirements, deadline, contact_info, source_url, content_hash,
			status, is_aggregated, source_id, source_locator
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (content_hash) DO NOTHING
	`, id, candidate.Title, candidate.Description, candidate.Company,
		candidate.Location, candidate.Compensation, candidate.Requirements,
		candidate.Deadline, candidate.ContactInfo, candidate.SourceURL,
		candidate.ContentHash, StatusPendingReview, isAggregated,
		sourceID, candidate.SourceLocator)
	if err != nil {
		return "", false, fmt.Errorf("failed to create candidate: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	if affected == 0 {
		return "", false, nil
	}

	return id, true, nil
}

func (r *CandidateRepositoryImpl) UpdateFields(id string, edits CandidateEdits) (bool, error) {
	fields := []struct {
		column string
		value  *string
	}{
		{"title", edits.Title},
		{"description", edits.Description},
		{"company", edits.Company},
		{"location", edits.Location},
		{"compensation", edits.Compensation},
		{"requirements", edits.Requirements},
		{"deadline", edits.Deadline},
		{"contact_info", edits.ContactInfo},
	}

	setClause := ""
	var args []any
	for _, field := range fields {
		if field.value == nil {
			continue
		}
		if setClause != "" {
			setClause += ", "
		}
		setClause += field.column + " = ?"
		args = append(args, *field.value)
	}

	if setClause == "" {
		return true, nil
	}

	args = append(args, id, StatusPendingReview)
	result, err := r.db.Exec(`
		UPDATE candidates SET `+setClause+`
		WHERE id = ? AND status = ?
	`, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update candidate fields: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected > 0, nil
}

// TransitionStatus moves a candidate forward in its lifecycle. The WHERE guard
// on the current status makes the transition atomic: when two reviewers act on
// the same candidate near-simultaneously, exactly one update reports success.
func (r *CandidateRepositoryImpl) TransitionStatus(id, fromStatus, toStatus, reviewer string) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE candidates
		SET status = ?, reviewed_at = CURRENT_TIMESTAMP, reviewed_by = ?
		WHERE id = ? AND status = ?
	`, toStatus, reviewer, id, fromStatus)
	if err != nil {
		return false, fmt.Errorf("failed to transition candidate status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected > 0, nil
}
