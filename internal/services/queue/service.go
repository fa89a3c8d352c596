package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/phambaophuc/avatar-studio/internal/config"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const (
	defaultQueueName   = "avatar_cleanup"
	defaultMaxAttempts = 5
	defaultRetryDelay  = 2 * time.Second
)

// publisher is the part of *amqp.Channel used to enqueue jobs.
type publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// QueueService publishes and consumes orphaned-object cleanup jobs.
type QueueService struct {
	conn        *amqp.Connection
	channel     *amqp.Channel
	pub         publisher
	publishMu   sync.Mutex
	logger      *zap.Logger
	queueName   string
	remover     Remover
	maxAttempts int
	retryDelay  time.Duration
}

func NewQueueService(
	cfg config.RabbitMQConfig,
	remover Remover,
	logger *zap.Logger,
) (*QueueService, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	queueName := cfg.Queue
	if queueName == "" {
		queueName = defaultQueueName
	}

	// Declare queue
	_, err = channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	// One unacked delivery per consumer so a slow delete does not hoard jobs.
	if err := channel.Qos(1, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	return newQueueService(conn, channel, queueName, remover, cfg.MaxAttempts, logger), nil
}

func newQueueService(conn *amqp.Connection, channel *amqp.Channel, queueName string, remover Remover, maxAttempts int, logger *zap.Logger) *QueueService {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	q := &QueueService{
		conn:        conn,
		channel:     channel,
		logger:      logger,
		queueName:   queueName,
		remover:     remover,
		maxAttempts: maxAttempts,
		retryDelay:  defaultRetryDelay,
	}
	if channel != nil {
		q.pub = channel
	}
	return q
}

// Close closes the queue connection
func (q *QueueService) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		q.conn.Close()
	}
	return nil
}
