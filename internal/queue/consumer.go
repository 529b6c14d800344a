package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/felixgeelhaar/codedojo/internal/domain"
	"github.com/felixgeelhaar/codedojo/internal/runner"
)

// JobHandler executes the program carried by a job.
type JobHandler func(ctx context.Context, job *RunJob) (*domain.ExecutionResult, error)

// ExecutorHandler runs jobs on exec.
func ExecutorHandler(exec runner.Executor) JobHandler {
	return func(ctx context.Context, job *RunJob) (*domain.ExecutionResult, error) {
		return exec.Execute(ctx, job.Request)
	}
}

// Consumer consumes run jobs from the queue
type Consumer struct {
	conn       *Connection
	handler    JobHandler
	producer   *Producer
	workers    int
	prefetch   int
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Workers  int // Number of concurrent workers
	Prefetch int // Prefetch count per worker
	Logger   *slog.Logger
}

// DefaultConsumerConfig returns sensible defaults
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Workers:  3,
		Prefetch: 1,
	}
}

// NewConsumer creates a new queue consumer
func NewConsumer(conn *Connection, handler JobHandler, cfg ConsumerConfig) *Consumer {
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Consumer{
		conn:     conn,
		handler:  handler,
		producer: NewProducer(conn),
		workers:  cfg.Workers,
		prefetch: cfg.Prefetch,
		logger:   cfg.Logger,
	}
}

// Start begins consuming messages
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancelFunc = context.WithCancel(ctx)

	ch := c.conn.Channel()

	if err := ch.Qos(c.prefetch*c.workers, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		RunQueueName,
		"",    // consumer tag (auto-generated)
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("starting run queue consumer", "workers", c.workers, "prefetch", c.prefetch)

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i, msgs)
	}

	return nil
}

func (c *Consumer) worker(ctx context.Context, id int, msgs <-chan amqp.Delivery) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("worker stopping", "worker_id", id)
			return

		case msg, ok := <-msgs:
			if !ok {
				c.logger.Info("message channel closed", "worker_id", id)
				return
			}
			c.processMessage(ctx, id, msg)
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, workerID int, msg amqp.Delivery) {
	var job RunJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		c.logger.Error("failed to unmarshal job",
			"worker_id", workerID,
			"error", err,
		)
		_ = msg.Reject(false)
		return
	}

	result := c.runJob(ctx, &job)

	if result.Status == StatusCompleted {
		c.logger.Info("job completed",
			"worker_id", workerID,
			"job_id", job.ID,
			"language", job.Request.Language,
			"duration", result.Duration,
		)
	} else {
		c.logger.Warn("job failed",
			"worker_id", workerID,
			"job_id", job.ID,
			"status", result.Status,
			"error", result.Error,
		)
	}

	if err := c.producer.PublishResult(ctx, job.ReplyTo, result); err != nil {
		c.logger.Error("failed to publish result",
			"worker_id", workerID,
			"job_id", job.ID,
			"error", err,
		)
	}

	if err := msg.Ack(false); err != nil {
		c.logger.Error("failed to ack message",
			"worker_id", workerID,
			"job_id", job.ID,
			"error", err,
		)
	}
}

// runJob executes job and never fails; failures are carried in the result.
func (c *Consumer) runJob(ctx context.Context, job *RunJob) *RunResult {
	start := time.Now()
	jobCtx, cancel := context.WithTimeout(ctx, job.Timeout())
	defer cancel()

	out, err := c.handler(jobCtx, job)
	if err != nil && errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
		err = runner.ErrTimeout
	}

	result := resultFromOutcome(out, err)
	result.JobID = job.ID
	result.Duration = time.Since(start)
	result.CompletedAt = time.Now()
	return result
}

// resultFromOutcome encodes an execution outcome for the wire.
func resultFromOutcome(out *domain.ExecutionResult, err error) *RunResult {
	if err == nil {
		if out == nil {
			out = &domain.ExecutionResult{}
		}
		return &RunResult{Status: StatusCompleted, Result: out}
	}

	r := &RunResult{Status: StatusFailed, Error: err.Error()}
	var se *domain.ServiceError
	var upstream *runner.UpstreamError
	switch {
	case errors.Is(err, runner.ErrTimeout):
		r.Status = StatusTimeout
	case errors.Is(err, domain.ErrUnsupportedLanguage):
		r.ErrorKind = KindUnsupportedLanguage
	case errors.Is(err, runner.ErrCredentialsMissing):
		r.ErrorKind = KindCredentials
	case errors.As(err, &se):
		r.ErrorKind = KindService
		r.ErrorStatus = se.Status
		r.Error = se.Message
	case errors.As(err, &upstream):
		r.ErrorKind = KindUpstream
		r.ErrorStatus = upstream.Status
		r.Error = upstream.Body
	}
	return r
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()
	if c.logger != nil {
		c.logger.Info("consumer stopped")
	}
}

// ResultConsumer routes run results to the callers waiting for them.
type ResultConsumer struct {
	conn       *Connection
	queueName  string
	handlers   map[string]ResultHandler
	handlersMu sync.RWMutex
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// ResultHandler handles a run result for a specific job
type ResultHandler func(result *RunResult)

// NewResultConsumer creates a result consumer
func NewResultConsumer(conn *Connection) *ResultConsumer {
	logger := slog.Default()
	if conn != nil && conn.logger != nil {
		logger = conn.logger
	}
	return &ResultConsumer{
		conn:     conn,
		handlers: make(map[string]ResultHandler),
		logger:   logger,
	}
}

// Subscribe registers a handler for results of a specific job
func (rc *ResultConsumer) Subscribe(jobID string, handler ResultHandler) {
	rc.handlersMu.Lock()
	defer rc.handlersMu.Unlock()
	rc.handlers[jobID] = handler
}

// Unsubscribe removes a handler
func (rc *ResultConsumer) Unsubscribe(jobID string) {
	rc.handlersMu.Lock()
	defer rc.handlersMu.Unlock()
	delete(rc.handlers, jobID)
}

// QueueName returns the private reply queue, empty before Start.
func (rc *ResultConsumer) QueueName() string {
	return rc.queueName
}

// Start declares a private reply queue and begins consuming results.
func (rc *ResultConsumer) Start(ctx context.Context) error {
	name, err := rc.conn.DeclareReplyQueue()
	if err != nil {
		return err
	}
	rc.queueName = name

	ctx, rc.cancelFunc = context.WithCancel(ctx)

	msgs, err := rc.conn.Channel().Consume(
		name,
		"",    // consumer tag
		true,  // auto-ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start result consumer: %w", err)
	}

	rc.wg.Add(1)
	go rc.consume(ctx, msgs)

	return nil
}

func (rc *ResultConsumer) consume(ctx context.Context, msgs <-chan amqp.Delivery) {
	defer rc.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			rc.dispatch(msg.Body)
		}
	}
}

func (rc *ResultConsumer) dispatch(body []byte) {
	var result RunResult
	if err := json.Unmarshal(body, &result); err != nil {
		rc.logger.Error("failed to unmarshal result", "error", err)
		return
	}

	rc.handlersMu.RLock()
	handler, ok := rc.handlers[result.JobID.String()]
	rc.handlersMu.RUnlock()

	if ok {
		handler(&result)
		return
	}
	rc.logger.Debug("dropping result with no waiter", "job_id", result.JobID)
}

// Stop stops the result consumer
func (rc *ResultConsumer) Stop() {
	if rc.cancelFunc != nil {
		rc.cancelFunc()
	}
	rc.wg.Wait()
}
