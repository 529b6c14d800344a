package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/felixgeelhaar/codedojo/internal/domain"
)

// MentorStatus is a stage of the mentor dialogue.
type MentorStatus string

const (
	MentorClosed  MentorStatus = "closed"
	MentorAsking  MentorStatus = "asking"
	MentorTyping  MentorStatus = "typing"
	MentorLoading MentorStatus = "loading"
	MentorResult  MentorStatus = "result"
)

// MentorState is a snapshot of the dialogue.
type MentorState struct {
	Status MentorStatus
	// UserPrompt is the draft being typed.
	UserPrompt string
	// LastPrompt is the question sent with the latest request.
	LastPrompt string
	Suggestion string
	Offline    bool
	// Detail holds a service-reported reason when Offline is set.
	Detail string
	Seq    uint64
}

// MentorDialogue is the state machine
//
//	closed -> asking -> (typing | loading) -> result -> asking | closed
//
// Transitions not listed return ErrInvalidTransition and change nothing.
type MentorDialogue struct {
	hinter   Hinter
	logger   *slog.Logger
	onChange func()

	mu      sync.Mutex
	seq     uint64
	state   MentorState
	running map[uint64]chan struct{}
}

// NewMentorDialogue creates a closed dialogue.
func NewMentorDialogue(hinter Hinter, logger *slog.Logger, onChange func()) *MentorDialogue {
	if logger == nil {
		logger = slog.Default()
	}
	return &MentorDialogue{
		hinter:   hinter,
		logger:   logger,
		onChange: onChange,
		state:    MentorState{Status: MentorClosed},
		running:  make(map[uint64]chan struct{}),
	}
}

func (d *MentorDialogue) invalid(action string) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, d.state.Status)
}

// Open moves Closed or Result to Asking.
func (d *MentorDialogue) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state.Status {
	case MentorClosed, MentorResult:
		d.state = MentorState{Status: MentorAsking, Seq: d.state.Seq}
		return nil
	default:
		return d.invalid("open")
	}
}

// WantsCustomPrompt moves Asking to Typing.
func (d *MentorDialogue) WantsCustomPrompt() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state.Status != MentorAsking {
		return d.invalid("custom prompt")
	}
	d.state.Status = MentorTyping
	return nil
}

// SetPrompt updates the draft while typing.
func (d *MentorDialogue) SetPrompt(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state.Status != MentorTyping {
		return d.invalid("set prompt")
	}
	d.state.UserPrompt = text
	return nil
}

// Back moves Typing to Asking, keeping the draft.
func (d *MentorDialogue) Back() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state.Status != MentorTyping {
		return d.invalid("back")
	}
	d.state.Status = MentorAsking
	return nil
}

// CanSend reports whether SendPrompt would dispatch.
func (d *MentorDialogue) CanSend() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return canSend(d.state)
}

func canSend(s MentorState) bool {
	return s.Status == MentorTyping && strings.TrimSpace(s.UserPrompt) != ""
}

// DeclineCustomPrompt dispatches req without a custom question.
func (d *MentorDialogue) DeclineCustomPrompt(ctx context.Context, req domain.HintRequest) error {
	d.mu.Lock()
	if d.state.Status != MentorAsking {
		err := d.invalid("decline")
		d.mu.Unlock()
		return err
	}
	req.CustomPrompt = ""
	d.dispatchLocked(ctx, req)
	d.mu.Unlock()
	return nil
}

// SendPrompt dispatches req with the trimmed draft as the custom question.
func (d *MentorDialogue) SendPrompt(ctx context.Context, req domain.HintRequest) error {
	d.mu.Lock()
	if d.state.Status != MentorTyping {
		err := d.invalid("send")
		d.mu.Unlock()
		return err
	}
	prompt := strings.TrimSpace(d.state.UserPrompt)
	if prompt == "" {
		d.mu.Unlock()
		return ErrEmptyPrompt
	}
	req.CustomPrompt = prompt
	d.dispatchLocked(ctx, req)
	d.mu.Unlock()
	return nil
}

func (d *MentorDialogue) dispatchLocked(ctx context.Context, req domain.HintRequest) {
	d.seq++
	seq := d.seq
	d.state = MentorState{
		Status:     MentorLoading,
		UserPrompt: d.state.UserPrompt,
		LastPrompt: req.CustomPrompt,
		Seq:        seq,
	}
	done := make(chan struct{})
	d.running[seq] = done

	go func() {
		defer d.finish(seq, done)
		hint, err := d.hinter.Hint(ctx, req)
		if d.apply(seq, hint, err) && d.onChange != nil {
			d.onChange()
		}
	}()
}

func (d *MentorDialogue) apply(seq uint64, hint *domain.Hint, err error) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if seq != d.seq || d.state.Status != MentorLoading {
		d.logger.Debug("discarding stale hint", "seq", seq, "latest", d.seq)
		return false
	}

	next := MentorState{Status: MentorResult, LastPrompt: d.state.LastPrompt, Seq: seq}
	switch {
	case err != nil:
		next.Suggestion = OfflineMessage
		next.Offline = true
		var se *domain.ServiceError
		if errors.As(err, &se) {
			next.Detail = se.Message
		}
		d.logger.Warn("mentor request failed", "error", err)
	case hint == nil:
		next.Suggestion = OfflineMessage
		next.Offline = true
	default:
		next.Suggestion = hint.Suggestion
	}
	d.state = next
	return true
}

// AskAnother moves Result to Asking with a cleared prompt.
func (d *MentorDialogue) AskAnother() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state.Status != MentorResult {
		return d.invalid("ask another")
	}
	d.state = MentorState{Status: MentorAsking, Seq: d.state.Seq}
	return nil
}

// Close hides the dialogue from any stage. A pending request is discarded.
func (d *MentorDialogue) Close() error {
	d.Reset()
	return nil
}

// Reset clears every field and invalidates any in-flight request.
func (d *MentorDialogue) Reset() {
	d.mu.Lock()
	d.seq++
	d.state = MentorState{Status: MentorClosed, Seq: d.seq}
	d.mu.Unlock()
}

// State returns the current state.
func (d *MentorDialogue) State() MentorState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *MentorDialogue) finish(seq uint64, done chan struct{}) {
	d.mu.Lock()
	delete(d.running, seq)
	close(done)
	d.mu.Unlock()
}

// Pending returns a channel that is closed once the latest request has
// returned, or an already closed channel when nothing is in flight.
func (d *MentorDialogue) Pending() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	if done, ok := d.running[d.seq]; ok {
		return done
	}
	return settled
}

// Wait blocks until no request is in flight.
func (d *MentorDialogue) Wait() {
	for {
		d.mu.Lock()
		var done chan struct{}
		for _, ch := range d.running {
			done = ch
			break
		}
		d.mu.Unlock()
		if done == nil {
			return
		}
		<-done
	}
}
