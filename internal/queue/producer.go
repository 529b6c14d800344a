package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/codedojo/internal/domain"
)

// Producer publishes run jobs and results
type Producer struct {
	conn   *Connection
	logger *slog.Logger
}

// NewProducer creates a new queue producer
func NewProducer(conn *Connection) *Producer {
	logger := slog.Default()
	if conn != nil && conn.logger != nil {
		logger = conn.logger
	}
	return &Producer{conn: conn, logger: logger}
}

// PublishRunJob publishes a code execution job to the queue
func (p *Producer) PublishRunJob(ctx context.Context, job *RunJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	if err := p.conn.PublishJSON(ctx, RunQueueName, job); err != nil {
		return fmt.Errorf("failed to publish run job: %w", err)
	}

	p.logger.Debug("published run job",
		"job_id", job.ID,
		"language", job.Request.Language,
		"problem", job.Request.ProblemSlug,
	)
	return nil
}

// PublishResult publishes a run result to queueName, or to the shared
// results queue when queueName is empty.
func (p *Producer) PublishResult(ctx context.Context, queueName string, result *RunResult) error {
	if result.CompletedAt.IsZero() {
		result.CompletedAt = time.Now()
	}
	if queueName == "" {
		queueName = ResultQueueName
	}

	if err := p.conn.PublishJSON(ctx, queueName, result); err != nil {
		return fmt.Errorf("failed to publish run result: %w", err)
	}

	p.logger.Debug("published run result",
		"job_id", result.JobID,
		"status", result.Status,
		"duration", result.Duration,
	)
	return nil
}

// NewRunJob creates a job for req.
func NewRunJob(userID uuid.UUID, req domain.ExecutionRequest, timeout time.Duration) *RunJob {
	return &RunJob{
		ID:             uuid.New(),
		UserID:         userID,
		Request:        req,
		TimeoutSeconds: int(timeout / time.Second),
		CreatedAt:      time.Now(),
	}
}
