package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/phambaophuc/avatar-studio/internal/models"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

func (q *QueueService) StartWorker(ctx context.Context, workerID int) error {
	msgs, err := q.channel.Consume(
		q.queueName,                        // queue
		fmt.Sprintf("worker-%d", workerID), // consumer
		false,                              // auto-ack
		false,                              // exclusive
		false,                              // no-local
		false,                              // no-wait
		nil,                                // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	q.logger.Info("Worker started", zap.Int("worker_id", workerID))

	go func() {
		for {
			select {
			case <-ctx.Done():
				q.logger.Info("Worker stopping", zap.Int("worker_id", workerID))
				return
			case msg, ok := <-msgs:
				if !ok {
					q.logger.Warn("Message channel closed", zap.Int("worker_id", workerID))
					return
				}

				q.processMessage(ctx, msg, workerID)
			}
		}
	}()

	return nil
}

func (q *QueueService) processMessage(ctx context.Context, msg amqp.Delivery, workerID int) {
	var job models.CleanupJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		q.logger.Error("Failed to unmarshal job",
			zap.Error(err),
			zap.Int("worker_id", workerID))
		msg.Nack(false, false) // Don't requeue malformed messages
		return
	}

	q.logger.Info("Processing cleanup job",
		zap.String("job_id", job.ID),
		zap.String("key", job.Key),
		zap.Int("worker_id", workerID))

	switch q.processJob(ctx, &job) {
	case outcomeRetry:
		if !q.backoff(ctx, job.Attempts) {
			msg.Nack(false, true)
			return
		}
		if err := q.publish(ctx, &job); err != nil {
			q.logger.Error("Failed to republish job",
				zap.String("job_id", job.ID),
				zap.Error(err))
			msg.Nack(false, true)
			return
		}
	case outcomeDone:
		q.logger.Info("Cleanup job completed",
			zap.String("job_id", job.ID),
			zap.String("key", job.Key))
	}

	// Acknowledge the message
	if err := msg.Ack(false); err != nil {
		q.logger.Error("Failed to ack message",
			zap.String("job_id", job.ID),
			zap.Error(err))
	}
}
