package database

import (
	"time"
)

// Source types as configured in the source registry.
const (
	SourceTypeWeb      = "WEB"
	SourceTypeWhatsApp = "WHATSAPP"
	SourceTypeOther    = "OTHER"
)

// Candidate statuses. Transitions only move forward:
// pending_review -> published | rejected, both terminal.
const (
	StatusPendingReview = "pending_review"
	StatusPublished     = "published"
	StatusRejected      = "rejected"
)

type Source struct {
	ID              string
	Name            string // Configuration source identifier derived from filename
	Type            string
	Identifier      string // URL or chat-group id
	IsActive        bool
	LastProcessedAt *time.Time // Watermark for incremental pulls
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Candidate struct {
	ID            string
	Title         string
	Description   string
	Company       string
	Location      string
	Compensation  string
	Requirements  string
	Deadline      string
	ContactInfo   string
	SourceURL     string
	ContentHash   string
	Status        string
	IsAggregated  bool
	SourceID      string
	SourceLocator string
	CreatedAt     time.Time
	ReviewedAt    *time.Time
	ReviewedBy    string
}

// CandidateEdits carries the optional field edits applied on edit-and-approve.
// Nil pointers leave the stored value untouched.
type CandidateEdits struct {
	Title        *string
	Description  *string
	Company      *string
	Location     *string
	Compensation *string
	Requirements *string
	Deadline     *string
	ContactInfo  *string
}

type DeadLetter struct {
	ID            string
	SourceID      string
	SourceLocator string
	RawText       string
	Attempts      int
	LastError     string
	EnqueuedAt    time.Time
	FailedAt      time.Time
}

type AuditEvent struct {
	ID           string
	EventType    string
	ResourceType string
	ResourceID   string
	Metadata     map[string]string
	CreatedAt    time.Time
}
