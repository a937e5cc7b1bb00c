package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/castradar/castradar/app/database"
)

const (
	maxPublishAttempts = 3
	attemptTimeout     = 10 * time.Second
)

// Publisher pushes approved candidates into the search index and keeps an
// audit trail of every outcome. When all attempts fail, the candidate stays
// published in the primary store but is not yet discoverable; the degraded
// state is recorded for operator remediation instead of rolling back the
// reviewer's approval.
type Publisher struct {
	index       SearchIndex
	auditRepo   database.AuditRepository
	backoffBase time.Duration
}

func NewPublisher(index SearchIndex, auditRepo database.AuditRepository) *Publisher {
	return &Publisher{
		index:       index,
		auditRepo:   auditRepo,
		backoffBase: time.Second,
	}
}

func (p *Publisher) Publish(ctx context.Context, candidate database.Candidate) error {
	doc := documentFromCandidate(candidate)

	var lastErr error
	for attempt := 1; attempt <= maxPublishAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		lastErr = p.index.Upsert(attemptCtx, doc)
		cancel()

		if lastErr == nil {
			p.recordEvent(database.AuditIndexed, candidate, map[string]string{
				"source_id":      candidate.SourceID,
				"source_locator": candidate.SourceLocator,
			})

			slog.Info("Candidate indexed", "candidate_id", candidate.ID, "attempt", attempt)
			return nil
		}

		slog.Warn("Indexing attempt failed", "candidate_id", candidate.ID, "attempt", attempt, "max_attempts", maxPublishAttempts, "error", lastErr)

		if attempt == maxPublishAttempts {
			break
		}

		backoff := time.Duration(1<<uint(attempt)) * p.backoffBase
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
		case <-time.After(backoff):
		}
		if ctx.Err() != nil {
			break
		}
	}

	p.recordEvent(database.AuditIndexingFailed, candidate, map[string]string{
		"source_id":      candidate.SourceID,
		"source_locator": candidate.SourceLocator,
		"error":          lastErr.Error(),
	})

	return fmt.Errorf("failed to index candidate after %d attempts: %w", maxPublishAttempts, lastErr)
}

func (p *Publisher) recordEvent(eventType string, candidate database.Candidate, metadata map[string]string) {
	if _, err := p.auditRepo.RecordEvent(eventType, "candidate", candidate.ID, metadata); err != nil {
		slog.Error("Failed to record audit event", "event_type", eventType, "candidate_id", candidate.ID, "error", err)
	}
}
