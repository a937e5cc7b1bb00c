package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/castradar/castradar/app/cfg"
	"github.com/castradar/castradar/app/database"
	"github.com/castradar/castradar/app/pipeline"
	"github.com/castradar/castradar/app/review"
	"github.com/castradar/castradar/app/tasks"
)

const pendingListLimit = 100

func NewHandler(sourceRepo database.SourceRepository, candidateRepo database.CandidateRepository,
	deadLetterRepo database.DeadLetterRepository, auditRepo database.AuditRepository,
	reviewService *review.Service, scheduler tasks.TaskSchedulerInterface,
	webhookSecret string, webhookFreshness time.Duration) *Handler {
	return &Handler{
		sourceRepo:       sourceRepo,
		candidateRepo:    candidateRepo,
		deadLetterRepo:   deadLetterRepo,
		auditRepo:        auditRepo,
		reviewService:    reviewService,
		scheduler:        scheduler,
		webhookSecret:    webhookSecret,
		webhookFreshness: webhookFreshness,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   cfg.Get().Version,
	}

	if sourceCount, err := h.sourceRepo.GetSourceCount(); err == nil {
		health["sources"] = sourceCount
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if counts, err := h.candidateRepo.GetStatusCounts(); err == nil {
		stats["candidates"] = counts
	}
	if deadLetterCount, err := h.deadLetterRepo.GetDeadLetterCount(); err == nil {
		stats["dead_letters"] = deadLetterCount
	}
	if auditCount, err := h.auditRepo.GetEventCount(); err == nil {
		stats["audit_events"] = auditCount
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIListPendingCandidates(c *gin.Context) {
	candidates, err := h.reviewService.ListPending(pendingListLimit)
	if err != nil {
		slog.Error("Database error", "operation", "list_pending", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list pending candidates"})
		return
	}

	response := make([]gin.H, 0, len(candidates))
	for _, candidate := range candidates {
		response = append(response, candidateJSON(candidate))
	}

	c.JSON(http.StatusOK, gin.H{"candidates": response, "count": len(response)})
}

func (h *Handler) APIApproveCandidate(c *gin.Context) {
	id := c.Param("id")
	reviewer := reviewerFrom(c)

	var edits editRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&edits); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid edit payload"})
			return
		}
	}

	var outcome *review.Outcome
	var err error
	if edits.isEmpty() {
		outcome, err = h.reviewService.Approve(c.Request.Context(), id, reviewer)
	} else {
		outcome, err = h.reviewService.EditAndApprove(c.Request.Context(), id, reviewer, edits.toEdits())
	}

	h.respondReviewOutcome(c, id, outcome, err)
}

func (h *Handler) APIRejectCandidate(c *gin.Context) {
	id := c.Param("id")
	reviewer := reviewerFrom(c)

	outcome, err := h.reviewService.Reject(c.Request.Context(), id, reviewer)
	h.respondReviewOutcome(c, id, outcome, err)
}

func (h *Handler) respondReviewOutcome(c *gin.Context, id string, outcome *review.Outcome, err error) {
	if errors.Is(err, review.ErrCandidateNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "candidate not found"})
		return
	}
	if err != nil {
		slog.Error("Reviewer action failed", "candidate_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reviewer action failed"})
		return
	}

	response := gin.H{
		"id":           id,
		"status":       outcome.Status,
		"transitioned": outcome.Transitioned,
	}
	if outcome.IndexAttempt {
		response["indexed"] = outcome.Indexed
		if !outcome.Indexed {
			response["warning"] = "published but not yet searchable"
		}
	}

	c.JSON(http.StatusOK, response)
}

// HandleWebhook receives signed push events for a WHATSAPP source. Every
// non-queued outcome is reported explicitly so integrations can observe what
// happened to their delivery instead of having it silently dropped.
func (h *Handler) HandleWebhook(c *gin.Context) {
	sourceName := c.Param("source")
	source, err := h.sourceRepo.GetSource(sourceName)
	if err != nil {
		slog.Error("Database error", "operation", "get_source", "source", sourceName, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve source"})
		return
	}
	if source == nil || !source.IsActive {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown or inactive source"})
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	payload, verdict := VerifyWebhook(body, c.GetHeader("X-Webhook-Signature"),
		h.webhookSecret, time.Now().UTC(), h.webhookFreshness)

	switch verdict {
	case WebhookBadSignature:
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	case WebhookMalformed:
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	case WebhookStale:
		c.JSON(http.StatusOK, gin.H{"status": "skipped:old_message"})
		return
	}

	// The message id doubles as the dedup key: replayed deliveries of an
	// already-processed message short-circuit here, and any that race past
	// this check are collapsed by the content-hash constraint downstream.
	seen, err := h.candidateRepo.HasSourceLocator(payload.MessageID)
	if err != nil {
		slog.Error("Database error", "operation", "check_locator", "locator", payload.MessageID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check for duplicates"})
		return
	}
	if seen {
		c.JSON(http.StatusOK, gin.H{"status": "skipped:duplicate"})
		return
	}

	event := pipeline.NewWebhookEvent(source.ID, payload.MessageID, payload.Text, payload.Timestamp.Time)
	if pipeline.Classify(event.Text) == pipeline.VerdictReject {
		c.JSON(http.StatusOK, gin.H{"status": "skipped:filtered"})
		return
	}

	job := tasks.ExtractJob{
		SourceID:      event.SourceID,
		SourceLocator: event.SourceLocator,
		RawText:       event.Text,
		EnqueuedAt:    time.Now().UTC(),
	}
	if err := h.scheduler.EnqueueExtraction(job); err != nil {
		slog.Error("Failed to enqueue webhook extraction job", "source", sourceName, "locator", payload.MessageID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "extraction queue unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "queued"})
}

func reviewerFrom(c *gin.Context) string {
	if reviewer := c.GetHeader("X-Reviewer"); reviewer != "" {
		return reviewer
	}
	return "api"
}

func candidateJSON(candidate database.Candidate) gin.H {
	return gin.H{
		"id":           candidate.ID,
		"title":        candidate.Title,
		"description":  candidate.Description,
		"company":      candidate.Company,
		"location":     candidate.Location,
		"compensation": candidate.Compensation,
		"requirements": candidate.Requirements,
		"deadline":     candidate.Deadline,
		"contact_info": candidate.ContactInfo,
		"source_url":   candidate.SourceURL,
		"status":       candidate.Status,
		"created_at":   candidate.CreatedAt.Format(time.RFC3339),
	}
}
