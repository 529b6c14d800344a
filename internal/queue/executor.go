package queue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/codedojo/internal/domain"
	"github.com/felixgeelhaar/codedojo/internal/runner"
)

// ErrNotStarted is returned when the result consumer has no reply queue yet.
var ErrNotStarted = errors.New("result consumer not started")

// Executor hands programs to remote workers over RabbitMQ and waits for the
// answer. It satisfies runner.Executor.
type Executor struct {
	producer *Producer
	results  *ResultConsumer
	timeout  time.Duration
}

// NewExecutor creates a queue-backed executor. results must be started.
func NewExecutor(producer *Producer, results *ResultConsumer, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{producer: producer, results: results, timeout: timeout}
}

// Execute publishes a job and blocks until its result arrives or ctx ends.
func (e *Executor) Execute(ctx context.Context, req domain.ExecutionRequest) (*domain.ExecutionResult, error) {
	replyTo := e.results.QueueName()
	if replyTo == "" {
		return nil, ErrNotStarted
	}

	job := NewRunJob(uuid.Nil, req, e.timeout)
	job.ReplyTo = replyTo

	done := make(chan *RunResult, 1)
	e.results.Subscribe(job.ID.String(), func(r *RunResult) {
		select {
		case done <- r:
		default:
		}
	})
	defer e.results.Unsubscribe(job.ID.String())

	if err := e.producer.PublishRunJob(ctx, job); err != nil {
		return nil, err
	}

	select {
	case r := <-done:
		return outcomeFromResult(r)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// outcomeFromResult rebuilds the outcome encoded by resultFromOutcome.
func outcomeFromResult(r *RunResult) (*domain.ExecutionResult, error) {
	switch r.Status {
	case StatusCompleted:
		if r.Result == nil {
			return &domain.ExecutionResult{}, nil
		}
		return r.Result, nil
	case StatusTimeout:
		return nil, runner.ErrTimeout
	}

	switch r.ErrorKind {
	case KindUnsupportedLanguage:
		return nil, fmt.Errorf("%w%s", domain.ErrUnsupportedLanguage,
			strings.TrimPrefix(r.Error, domain.ErrUnsupportedLanguage.Error()))
	case KindCredentials:
		return nil, runner.ErrCredentialsMissing
	case KindService:
		return nil, domain.NewServiceError(r.ErrorStatus, r.Error)
	case KindUpstream:
		return nil, &runner.UpstreamError{Status: r.ErrorStatus, Body: r.Error}
	}
	return nil, &runner.UpstreamError{Status: http.StatusBadGateway, Body: r.Error}
}
