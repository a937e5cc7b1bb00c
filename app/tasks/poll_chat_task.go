package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/castradar/castradar/app/chat"
	"github.com/castradar/castradar/app/database"
	"github.com/castradar/castradar/app/pipeline"
)

// PollChatTask sweeps one active WHATSAPP source: fetch messages newer than
// the source's watermark, pre-filter each one, and enqueue survivors. The
// watermark only advances after the whole batch is queued, so a crash
// mid-sweep re-delivers messages instead of silently losing them; the
// content-hash dedup downstream absorbs the re-delivery.
type PollChatTask struct {
	Task
	Source     database.Source
	chatClient chat.Client
	sourceRepo database.SourceRepository
	scheduler  TaskSchedulerInterface
}

func NewPollChatTask(source database.Source, chatClient chat.Client,
	sourceRepo database.SourceRepository, scheduler TaskSchedulerInterface) *PollChatTask {
	return &PollChatTask{
		Task:       NewTask(TaskTypePollChat, source.Name),
		Source:     source,
		chatClient: chatClient,
		sourceRepo: sourceRepo,
		scheduler:  scheduler,
	}
}

func (t *PollChatTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	watermark := time.Time{}
	if t.Source.LastProcessedAt != nil {
		watermark = *t.Source.LastProcessedAt
	}

	messages, err := t.chatClient.GetMessagesSince(ctx, t.Source.Identifier, watermark)
	if err != nil {
		return fmt.Errorf("failed to fetch chat messages: %w", err)
	}

	if len(messages) == 0 {
		slog.Debug("No new chat messages", "source", t.Source.Name)
		return nil
	}

	var maxSentAt time.Time
	skippedCount := 0
	filteredCount := 0
	queuedCount := 0

	for _, message := range messages {
		if sentAt := message.SentAt(); sentAt.After(maxSentAt) {
			maxSentAt = sentAt
		}

		if !message.IsText() || message.FromMe {
			skippedCount++
			continue
		}

		event := pipeline.NewChatMessageEvent(t.Source.ID, message.ID, message.Body, message.SentAt())
		if pipeline.Classify(event.Text) == pipeline.VerdictReject {
			filteredCount++
			continue
		}

		job := ExtractJob{
			SourceID:      event.SourceID,
			SourceLocator: event.SourceLocator,
			RawText:       event.Text,
			EnqueuedAt:    time.Now().UTC(),
		}
		if err := t.scheduler.EnqueueExtraction(job); err != nil {
			// Watermark untouched: the whole batch is re-delivered next sweep
			return fmt.Errorf("failed to enqueue extraction job: %w", err)
		}
		queuedCount++
	}

	if !maxSentAt.IsZero() {
		if err := t.sourceRepo.UpdateWatermark(t.Source.ID, maxSentAt); err != nil {
			return fmt.Errorf("failed to advance watermark: %w", err)
		}
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"source", t.Source.Name,
		"duration", t.GetDuration(),
		"total", len(messages),
		"skipped", skippedCount,
		"filtered", filteredCount,
		"queued", queuedCount)

	return nil
}
