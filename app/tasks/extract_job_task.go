package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/castradar/castradar/app/database"
	"github.com/castradar/castradar/app/extract"
	"github.com/castradar/castradar/app/pipeline"
)

// ExtractJob is the queued unit of work between an ingestor and the
// extraction worker: the raw text plus enough provenance to trace it back.
type ExtractJob struct {
	SourceID      string
	SourceLocator string
	RawText       string
	EnqueuedAt    time.Time
}

type ExtractJobTask struct {
	Task
	Job            ExtractJob
	extractor      extract.Client
	candidateRepo  database.CandidateRepository
	deadLetterRepo database.DeadLetterRepository
	auditRepo      database.AuditRepository
	limiter        *rate.Limiter
	timeout        time.Duration
}

func NewExtractJobTask(job ExtractJob, extractor extract.Client,
	candidateRepo database.CandidateRepository, deadLetterRepo database.DeadLetterRepository,
	auditRepo database.AuditRepository, limiter *rate.Limiter,
	timeout time.Duration, maxAttempts int) *ExtractJobTask {

	task := NewTask(TaskTypeExtractJob, job.SourceID)
	task.MaxRetries = maxAttempts

	return &ExtractJobTask{
		Task:           task,
		Job:            job,
		extractor:      extractor,
		candidateRepo:  candidateRepo,
		deadLetterRepo: deadLetterRepo,
		auditRepo:      auditRepo,
		limiter:        limiter,
		timeout:        timeout,
	}
}

func (t *ExtractJobTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Rate ceiling shared across all extraction workers
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}

	extractCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	result, err := t.extractor.Extract(extractCtx, t.Job.RawText)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	if result.Outcome == extract.OutcomeRejected {
		// Correct negative, not an error: discard without retry or dead letter
		slog.Debug("Extraction rejected text as non-opportunity",
			"source", t.Job.SourceID, "locator", t.Job.SourceLocator)
		return nil
	}

	createdCount := 0
	duplicateCount := 0

	for _, fields := range result.Candidates {
		contentHash := pipeline.ContentHash(fields.Title, fields.Description, fields.Company, fields.Location)

		isDuplicate, _, err := t.candidateRepo.CheckDuplicate(contentHash)
		if err != nil {
			return fmt.Errorf("failed to check for duplicates: %w", err)
		}
		if isDuplicate {
			duplicateCount++
			continue
		}

		candidate := database.Candidate{
			Title:         fields.Title,
			Description:   fields.Description,
			Company:       fields.Company,
			Location:      fields.Location,
			Compensation:  fields.Compensation,
			Requirements:  fields.Requirements,
			Deadline:      fields.Deadline,
			ContactInfo:   fields.ContactInfo,
			SourceURL:     t.Job.SourceLocator,
			ContentHash:   contentHash,
			IsAggregated:  true,
			SourceID:      t.Job.SourceID,
			SourceLocator: t.Job.SourceLocator,
		}

		_, created, err := t.candidateRepo.CreateCandidate(candidate)
		if err != nil {
			return fmt.Errorf("failed to create candidate: %w", err)
		}

		if created {
			createdCount++
		} else {
			// Lost the insert race to a concurrent worker
			duplicateCount++
		}
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"source", t.Job.SourceID,
		"locator", t.Job.SourceLocator,
		"duration", t.GetDuration(),
		"extracted", len(result.Candidates),
		"created", createdCount,
		"duplicates", duplicateCount)

	return nil
}

// DeadLetter preserves the exhausted job for manual operator triage. Called
// by the scheduler after the final retry; must not fail the worker, so
// storage errors are only logged.
func (t *ExtractJobTask) DeadLetter(lastErr error) {
	entry := database.DeadLetter{
		SourceID:      t.Job.SourceID,
		SourceLocator: t.Job.SourceLocator,
		RawText:       t.Job.RawText,
		Attempts:      t.GetRetryCount(),
		LastError:     lastErr.Error(),
		EnqueuedAt:    t.Job.EnqueuedAt,
	}

	id, err := t.deadLetterRepo.AddDeadLetter(entry)
	if err != nil {
		slog.Error("Failed to store dead letter", "source", t.Job.SourceID, "locator", t.Job.SourceLocator, "error", err)
		return
	}

	if _, err := t.auditRepo.RecordEvent(database.AuditExtractionDeadLetter, "dead_letter", id, map[string]string{
		"source_id":      t.Job.SourceID,
		"source_locator": t.Job.SourceLocator,
		"last_error":     lastErr.Error(),
	}); err != nil {
		slog.Error("Failed to record dead letter audit event", "dead_letter_id", id, "error", err)
	}

	slog.Warn("Extraction job dead-lettered",
		"dead_letter_id", id,
		"source", t.Job.SourceID,
		"locator", t.Job.SourceLocator,
		"attempts", t.GetRetryCount(),
		"last_error", lastErr)
}
