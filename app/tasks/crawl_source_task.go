package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/castradar/castradar/app/database"
	"github.com/castradar/castradar/app/fetch"
	"github.com/castradar/castradar/app/pipeline"
)

const fetchTimeout = 30 * time.Second

// CrawlSourceTask sweeps one active WEB source: fetch the page's main
// content and hand the whole text to the extraction queue. A scraped page is
// already curated content, so unlike a chat stream it skips the per-message
// pre-filter and relies on batch extraction to find every listing on it.
type CrawlSourceTask struct {
	Task
	Source    database.Source
	fetcher   *fetch.ContentFetcher
	scheduler TaskSchedulerInterface
}

func NewCrawlSourceTask(source database.Source, fetcher *fetch.ContentFetcher,
	scheduler TaskSchedulerInterface) *CrawlSourceTask {
	return &CrawlSourceTask{
		Task:      NewTask(TaskTypeCrawlSource, source.Name),
		Source:    source,
		fetcher:   fetcher,
		scheduler: scheduler,
	}
}

func (t *CrawlSourceTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	text, err := t.fetcher.Fetch(fetchCtx, t.Source.Identifier)
	if err != nil {
		return fmt.Errorf("failed to fetch source page: %w", err)
	}

	event := pipeline.NewPageEvent(t.Source.ID, t.Source.Identifier, text, time.Now().UTC())
	if event.Text == "" {
		slog.Debug("Fetched page has no text content", "source", t.Source.Name)
		return nil
	}

	job := ExtractJob{
		SourceID:      event.SourceID,
		SourceLocator: event.SourceLocator,
		RawText:       event.Text,
		EnqueuedAt:    time.Now().UTC(),
	}
	if err := t.scheduler.EnqueueExtraction(job); err != nil {
		return fmt.Errorf("failed to enqueue extraction job: %w", err)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"source", t.Source.Name,
		"duration", t.GetDuration(),
		"content_length", len(event.Text))

	return nil
}
