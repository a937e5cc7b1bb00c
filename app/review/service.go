package review

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/castradar/castradar/app/database"
)

// Publisher pushes an approved candidate into the search index. Publish
// failures are the publisher's problem to record; they never propagate back
// to the reviewer action.
type Publisher interface {
	Publish(ctx context.Context, candidate database.Candidate) error
}

// Outcome reports what a reviewer action did. Actions on an already-terminal
// candidate are no-ops that surface the current status instead of an error.
type Outcome struct {
	Status       string
	Transitioned bool
	Indexed      bool // false after approval means "not yet searchable"
	IndexAttempt bool // whether a publish was triggered at all
}

// Service is the human-in-the-loop validation workflow. Candidates enter in
// pending_review and move forward exactly once, to published or rejected.
type Service struct {
	candidateRepo database.CandidateRepository
	publisher     Publisher
}

func NewService(candidateRepo database.CandidateRepository, publisher Publisher) *Service {
	return &Service{
		candidateRepo: candidateRepo,
		publisher:     publisher,
	}
}

func (s *Service) ListPending(limit int) ([]database.Candidate, error) {
	return s.candidateRepo.GetPendingCandidates(limit)
}

func (s *Service) GetCandidate(id string) (*database.Candidate, error) {
	return s.candidateRepo.GetCandidate(id)
}

// Approve transitions pending_review -> published and triggers the publish.
// The guarded update serializes concurrent approvals: only the reviewer whose
// update actually transitioned the row triggers the publisher, so the
// candidate is indexed at most once.
func (s *Service) Approve(ctx context.Context, id, reviewer string) (*Outcome, error) {
	return s.approve(ctx, id, reviewer, nil)
}

// EditAndApprove applies field edits to the still-pending candidate, then
// approves it. Edits on an already-terminal candidate are dropped along with
// the transition.
func (s *Service) EditAndApprove(ctx context.Context, id, reviewer string, edits database.CandidateEdits) (*Outcome, error) {
	return s.approve(ctx, id, reviewer, &edits)
}

func (s *Service) approve(ctx context.Context, id, reviewer string, edits *database.CandidateEdits) (*Outcome, error) {
	if edits != nil {
		edited, err := s.candidateRepo.UpdateFields(id, *edits)
		if err != nil {
			return nil, fmt.Errorf("failed to apply edits: %w", err)
		}
		if !edited {
			return s.terminalOutcome(id)
		}
	}

	transitioned, err := s.candidateRepo.TransitionStatus(id, database.StatusPendingReview, database.StatusPublished, reviewer)
	if err != nil {
		return nil, fmt.Errorf("failed to approve candidate: %w", err)
	}

	if !transitioned {
		return s.terminalOutcome(id)
	}

	outcome := &Outcome{
		Status:       database.StatusPublished,
		Transitioned: true,
		IndexAttempt: true,
	}

	candidate, err := s.candidateRepo.GetCandidate(id)
	if err != nil || candidate == nil {
		slog.Error("Failed to load candidate for publishing", "candidate_id", id, "error", err)
		return outcome, nil
	}

	// Indexing failure leaves the candidate published but not searchable;
	// the publisher records the degraded state, the reviewer is not blocked.
	if err := s.publisher.Publish(ctx, *candidate); err != nil {
		slog.Error("Publish failed, candidate not yet searchable", "candidate_id", id, "error", err)
		return outcome, nil
	}

	outcome.Indexed = true
	return outcome, nil
}

// Reject transitions pending_review -> rejected. No publish side effect.
func (s *Service) Reject(ctx context.Context, id, reviewer string) (*Outcome, error) {
	transitioned, err := s.candidateRepo.TransitionStatus(id, database.StatusPendingReview, database.StatusRejected, reviewer)
	if err != nil {
		return nil, fmt.Errorf("failed to reject candidate: %w", err)
	}

	if !transitioned {
		return s.terminalOutcome(id)
	}

	return &Outcome{Status: database.StatusRejected, Transitioned: true}, nil
}

// terminalOutcome reports the current status of a candidate whose transition
// did not happen because it is no longer pending.
func (s *Service) terminalOutcome(id string) (*Outcome, error) {
	candidate, err := s.candidateRepo.GetCandidate(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}
	if candidate == nil {
		return nil, ErrCandidateNotFound
	}

	return &Outcome{Status: candidate.Status, Transitioned: false}, nil
}
