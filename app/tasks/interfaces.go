package tasks

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application and the webhook receiver to hand work to the
// background worker pool.
// Example usage:
//
//	scheduler := NewScheduler(sourceRepo, candidateRepo, deadLetterRepo, auditRepo, fetcher, chatClient, extractor)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueExtraction(job)
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	EnqueueExtraction(job ExtractJob) error
}
