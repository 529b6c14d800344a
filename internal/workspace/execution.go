package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/felixgeelhaar/codedojo/internal/domain"
)

// ExecutionStatus is the state of the run panel.
type ExecutionStatus string

const (
	ExecutionIdle    ExecutionStatus = "idle"
	ExecutionRunning ExecutionStatus = "running"
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailure ExecutionStatus = "failure"
)

// ExecutionState is a snapshot of the execution session.
type ExecutionState struct {
	Status ExecutionStatus
	Result *domain.ExecutionResult
	Error  string
	Seq    uint64
}

// settled is the closed channel handed out for calls that are not in flight.
var settled = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// ExecutionSession runs code against the executor. Every dispatch is tagged
// with a sequence number and only the latest one may update the state, so a
// slow earlier run can never overwrite a newer result.
type ExecutionSession struct {
	executor Executor
	logger   *slog.Logger
	onChange func()

	mu      sync.Mutex
	seq     uint64
	state   ExecutionState
	running map[uint64]chan struct{}
}

// NewExecutionSession creates an idle session. onChange, when set, is called
// after an asynchronous result has been applied.
func NewExecutionSession(executor Executor, logger *slog.Logger, onChange func()) *ExecutionSession {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecutionSession{
		executor: executor,
		logger:   logger,
		onChange: onChange,
		state:    ExecutionState{Status: ExecutionIdle},
		running:  make(map[uint64]chan struct{}),
	}
}

// Submit moves to Running and dispatches req in the background. An
// unsupported language fails immediately without a dispatch. It returns the
// sequence number assigned to the attempt.
func (s *ExecutionSession) Submit(ctx context.Context, req domain.ExecutionRequest) uint64 {
	s.mu.Lock()
	s.seq++
	seq := s.seq

	if !req.Language.IsValid() {
		s.state = ExecutionState{
			Status: ExecutionFailure,
			Error:  fmt.Sprintf("%s: %s", domain.ErrUnsupportedLanguage, req.Language),
			Seq:    seq,
		}
		s.mu.Unlock()
		return seq
	}

	s.state = ExecutionState{Status: ExecutionRunning, Seq: seq}
	done := make(chan struct{})
	s.running[seq] = done
	s.mu.Unlock()

	go func() {
		defer s.finish(seq, done)
		result, err := s.executor.Execute(ctx, req)
		if s.apply(seq, req, result, err) && s.onChange != nil {
			s.onChange()
		}
	}()
	return seq
}

func (s *ExecutionSession) apply(seq uint64, req domain.ExecutionRequest, result *domain.ExecutionResult, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.seq {
		s.logger.Debug("discarding stale execution result", "seq", seq, "latest", s.seq)
		return false
	}

	next := ExecutionState{Seq: seq}
	switch {
	case err != nil:
		next.Status = ExecutionFailure
		var se *domain.ServiceError
		if errors.As(err, &se) {
			next.Error = se.Message
		} else {
			next.Error = TransportErrorMessage
			s.logger.Warn("execution service unreachable",
				"problem", req.ProblemSlug, "language", req.Language, "error", err)
		}
	case result == nil:
		next.Status = ExecutionFailure
		next.Error = EmptyResultMessage
	default:
		r := *result
		next.Status = ExecutionSuccess
		next.Result = &r
	}
	s.state = next
	return true
}

// Reset returns to Idle and invalidates any in-flight run.
func (s *ExecutionSession) Reset() {
	s.mu.Lock()
	s.seq++
	s.state = ExecutionState{Status: ExecutionIdle, Seq: s.seq}
	s.mu.Unlock()
}

// State returns the current state.
func (s *ExecutionSession) State() ExecutionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *ExecutionSession) finish(seq uint64, done chan struct{}) {
	s.mu.Lock()
	delete(s.running, seq)
	close(done)
	s.mu.Unlock()
}

// Done returns a channel that is closed once the run tagged seq has
// returned. Runs that were never dispatched, or have already returned, get a
// closed channel.
func (s *ExecutionSession) Done(seq uint64) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if done, ok := s.running[seq]; ok {
		return done
	}
	return settled
}

// Wait blocks until no run is in flight. It is safe to call while other
// goroutines keep submitting.
func (s *ExecutionSession) Wait() {
	for {
		s.mu.Lock()
		var done chan struct{}
		for _, ch := range s.running {
			done = ch
			break
		}
		s.mu.Unlock()
		if done == nil {
			return
		}
		<-done
	}
}
