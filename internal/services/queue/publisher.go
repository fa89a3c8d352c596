package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phambaophuc/avatar-studio/internal/models"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

var (
	ErrInvalidJob    = errors.New("cleanup job needs a bucket and key")
	ErrChannelClosed = errors.New("queue channel is not open")
)

// PublishCleanup enqueues a request to delete an object that could not be
// removed inline.
func (q *QueueService) PublishCleanup(ctx context.Context, job *models.CleanupJob) error {
	if job.Bucket == "" || job.Key == "" {
		return ErrInvalidJob
	}
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	job.Status = models.StatusPending

	if err := q.publish(ctx, job); err != nil {
		return err
	}

	q.logger.Info("Cleanup job published to queue",
		zap.String("job_id", job.ID),
		zap.String("key", job.Key),
		zap.Int("attempts", job.Attempts))
	return nil
}

func (q *QueueService) publish(ctx context.Context, job *models.CleanupJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	jobBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	q.publishMu.Lock()
	defer q.publishMu.Unlock()

	if q.pub == nil {
		return ErrChannelClosed
	}
	err = q.pub.Publish(
		"",          // exchange
		q.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         jobBytes,
			DeliveryMode: amqp.Persistent,
			MessageId:    job.ID,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}
	return nil
}
