package api

import (
	"time"

	"github.com/castradar/castradar/app/database"
	"github.com/castradar/castradar/app/review"
	"github.com/castradar/castradar/app/tasks"
)

type Handler struct {
	sourceRepo       database.SourceRepository
	candidateRepo    database.CandidateRepository
	deadLetterRepo   database.DeadLetterRepository
	auditRepo        database.AuditRepository
	reviewService    *review.Service
	scheduler        tasks.TaskSchedulerInterface
	webhookSecret    string
	webhookFreshness time.Duration
}

// editRequest is the optional approve body; any present field turns the
// action into edit-and-approve.
type editRequest struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	Company      *string `json:"company"`
	Location     *string `json:"location"`
	Compensation *string `json:"compensation"`
	Requirements *string `json:"requirements"`
	Deadline     *string `json:"deadline"`
	ContactInfo  *string `json:"contact_info"`
}

func (r editRequest) isEmpty() bool {
	return r.Title == nil && r.Description == nil && r.Company == nil &&
		r.Location == nil && r.Compensation == nil && r.Requirements == nil &&
		r.Deadline == nil && r.ContactInfo == nil
}

func (r editRequest) toEdits() database.CandidateEdits {
	return database.CandidateEdits{
		Title:        r.Title,
		Description:  r.Description,
		Company:      r.Company,
		Location:     r.Location,
		Compensation: r.Compensation,
		Requirements: r.Requirements,
		Deadline:     r.Deadline,
		ContactInfo:  r.ContactInfo,
	}
}
