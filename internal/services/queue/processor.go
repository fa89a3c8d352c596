package queue

import (
	"context"
	"time"

	"github.com/phambaophuc/avatar-studio/internal/models"
	"go.uber.org/zap"
)

// processJob attempts the delete and decides what happens to the job next.
// Attempts is incremented on failure.
func (q *QueueService) processJob(ctx context.Context, job *models.CleanupJob) outcome {
	job.Status = models.StatusProcessing

	err := q.remover.DeleteFrom(ctx, job.Bucket, job.Key)
	if err == nil {
		job.Status = models.StatusCompleted
		job.Error = ""
		return outcomeDone
	}

	job.Attempts++
	job.Error = err.Error()

	if job.Attempts >= q.maxAttempts {
		job.Status = models.StatusFailed
		q.logger.Error("Cleanup job exhausted retries",
			zap.String("job_id", job.ID),
			zap.String("bucket", job.Bucket),
			zap.String("key", job.Key),
			zap.Int("attempts", job.Attempts),
			zap.Error(err))
		return outcomeDrop
	}

	job.Status = models.StatusPending
	q.logger.Warn("Cleanup job failed, will retry",
		zap.String("job_id", job.ID),
		zap.Int("attempts", job.Attempts),
		zap.Error(err))
	return outcomeRetry
}

// backoff waits before a retry is republished. It returns false if ctx ends
// first.
func (q *QueueService) backoff(ctx context.Context, attempts int) bool {
	if q.retryDelay <= 0 {
		return ctx.Err() == nil
	}
	delay := time.Duration(attempts) * q.retryDelay
	if delay > time.Minute {
		delay = time.Minute
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
