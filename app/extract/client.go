package extract

import (
	"context"
	"errors"
)

// CandidateFields is the structured shape the extraction service must return
// for each opportunity found in the input text.
type CandidateFields struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Company      string `json:"company"`
	Location     string `json:"location"`
	Compensation string `json:"compensation"`
	Requirements string `json:"requirements"`
	Deadline     string `json:"deadline"`
	ContactInfo  string `json:"contact_info"`
}

type Outcome string

const (
	// OutcomeCandidates means the service extracted one or more opportunities.
	OutcomeCandidates Outcome = "candidates"
	// OutcomeRejected means the service decided the text is not a casting
	// opportunity. This is a correct negative, not an error: the job is
	// discarded, never retried and never dead-lettered.
	OutcomeRejected Outcome = "rejected"
)

type Result struct {
	Outcome    Outcome
	Candidates []CandidateFields
}

// ErrMalformedResponse marks a response that did not conform to the expected
// shape. The worker treats it as transient: a fresh completion usually
// produces valid output.
var ErrMalformedResponse = errors.New("malformed extraction response")

// Client is the contract with the extraction service: input text in, a tagged
// result or an error out. Every returned error is retryable from the worker's
// point of view.
type Client interface {
	Extract(ctx context.Context, text string) (*Result, error)
}
