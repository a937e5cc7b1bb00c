package database

import (
	"time"
)

type SourceRepository interface {
	GetSource(name string) (*Source, error)
	GetActiveSources(sourceType string) ([]Source, error)
	GetSourceCount() (int, error)

	UpsertSource(name, sourceType, identifier string, isActive bool) (string, error)
	UpdateWatermark(sourceID string, timestamp time.Time) error
}

type CandidateRepository interface {
	GetCandidate(id string) (*Candidate, error)
	GetPendingCandidates(limit int) ([]Candidate, error)
	GetStatusCounts() (map[string]int, error)

	CheckDuplicate(contentHash string) (bool, *string, error)
	HasSourceLocator(sourceLocator string) (bool, error)

	// CreateCandidate inserts a new pending_review candidate. A concurrent
	// insert with the same content hash is reported as created=false, not
	// as an error.
	CreateCandidate(candidate Candidate) (id string, created bool, err error)

	// UpdateFields applies edits to a candidate while it is still in
	// pending_review. Returns false when the candidate is already terminal.
	UpdateFields(id string, edits CandidateEdits) (bool, error)

	// TransitionStatus performs the guarded forward-only status transition.
	// Returns false when the candidate was not in fromStatus, which
	// serializes concurrent reviewer actions on the same candidate.
	TransitionStatus(id, fromStatus, toStatus, reviewer string) (bool, error)
}

type DeadLetterRepository interface {
	AddDeadLetter(entry DeadLetter) (string, error)
	GetDeadLetterCount() (int, error)
}

type AuditRepository interface {
	RecordEvent(eventType, resourceType, resourceID string, metadata map[string]string) (string, error)
	GetEventCount() (int, error)
}
