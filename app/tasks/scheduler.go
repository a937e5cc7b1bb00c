package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/castradar/castradar/app/cfg"
	"github.com/castradar/castradar/app/chat"
	"github.com/castradar/castradar/app/database"
	"github.com/castradar/castradar/app/extract"
	"github.com/castradar/castradar/app/fetch"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	sourceRepo        database.SourceRepository
	candidateRepo     database.CandidateRepository
	deadLetterRepo    database.DeadLetterRepository
	auditRepo         database.AuditRepository
	fetcher           *fetch.ContentFetcher
	chatClient        chat.Client
	extractor         extract.Client
	limiter           *rate.Limiter
	extractionTimeout time.Duration
	maxAttempts       int
	interval          time.Duration
	workerCount       int
	ctx               context.Context
	cancel            context.CancelFunc
	wg                sync.WaitGroup
	taskQueue         chan TaskInterface
}

func NewScheduler(sourceRepo database.SourceRepository, candidateRepo database.CandidateRepository,
	deadLetterRepo database.DeadLetterRepository, auditRepo database.AuditRepository,
	fetcher *fetch.ContentFetcher, chatClient chat.Client, extractor extract.Client) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		sourceRepo:        sourceRepo,
		candidateRepo:     candidateRepo,
		deadLetterRepo:    deadLetterRepo,
		auditRepo:         auditRepo,
		fetcher:           fetcher,
		chatClient:        chatClient,
		extractor:         extractor,
		limiter:           rate.NewLimiter(rate.Limit(cfg.ExtractionRateLimit), 1),
		extractionTimeout: time.Duration(cfg.ExtractionTimeout) * time.Second,
		maxAttempts:       cfg.ExtractionMaxAttempts,
		interval:          time.Duration(cfg.SchedulerInterval) * time.Second,
		workerCount:       cfg.WorkerCount,
		ctx:               ctx,
		cancel:            cancel,
		taskQueue:         make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueSweepTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueSweepTasks()
			}
		}
	}()

}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// EnqueueExtraction wraps a job into an extraction task with the scheduler's
// own dependencies and policy. Ingestors and the webhook receiver only need
// to know the job payload.
func (s *Scheduler) EnqueueExtraction(job ExtractJob) error {
	task := NewExtractJobTask(job, s.extractor, s.candidateRepo, s.deadLetterRepo,
		s.auditRepo, s.limiter, s.extractionTimeout, s.maxAttempts)
	return s.EnqueueTask(task)
}

// enqueueSweepTasks schedules one crawl or poll task per active source.
// Sources are independent units of work: each task carries its own source
// record, so no mutable cursor state is shared across them.
func (s *Scheduler) enqueueSweepTasks() {
	webSources, err := s.sourceRepo.GetActiveSources(database.SourceTypeWeb)
	if err != nil {
		slog.Error("Failed to list active web sources", "error", err)
	}
	for _, source := range webSources {
		crawlTask := NewCrawlSourceTask(source, s.fetcher, s)
		if err := s.EnqueueTask(crawlTask); err != nil {
			slog.Warn("Failed to enqueue CrawlSourceTask", "source", source.Name, "error", err)
		}
	}

	if s.chatClient == nil {
		return
	}

	chatSources, err := s.sourceRepo.GetActiveSources(database.SourceTypeWhatsApp)
	if err != nil {
		slog.Error("Failed to list active chat sources", "error", err)
	}
	for _, source := range chatSources {
		pollTask := NewPollChatTask(source, s.chatClient, s.sourceRepo, s)
		if err := s.EnqueueTask(pollTask); err != nil {
			slog.Warn("Failed to enqueue PollChatTask", "source", source.Name, "error", err)
		}
	}

	slog.Debug("Sweep tasks enqueued", "web", len(webSources), "chat", len(chatSources))
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	task.IncrementRetryCount()

	if task.CanRetry() {
		retryDelay := time.Duration(1<<uint(task.GetRetryCount())) * time.Second
		if retryDelay > 30*time.Second {
			retryDelay = 30 * time.Second
		}

		slog.Warn("Task retry scheduled", "type", string(task.GetType()), "source", task.GetSourceName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

		go func() {
			time.Sleep(retryDelay)
			select {
			case <-s.ctx.Done():
				slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
				return
			default:
				if retryErr := s.EnqueueTask(task); retryErr != nil {
					slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
				}
			}
		}()
		return
	}

	slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)

	if deadLetterer, ok := task.(DeadLetterer); ok {
		deadLetterer.DeadLetter(err)
	}
}
