// Package workspace implements the session controller behind the problem
// workspace: per-language code, pane layout, code execution and the AI
// mentor dialogue. It performs no rendering; callers draw from View.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/felixgeelhaar/codedojo/internal/domain"
	"github.com/felixgeelhaar/codedojo/internal/layout"
)

// Options configures a Workspace.
type Options struct {
	Executor     Executor
	Hinter       Hinter
	Authorizer   Authorizer   // nil means always authorized
	AuthPrompter AuthPrompter // nil means prompts are dropped
	Layout       layout.Config
	// DefaultLanguage is preferred when the first problem loads.
	DefaultLanguage domain.LanguageID
	Logger          *slog.Logger
	// OnChange receives a fresh View after every transition. It may be
	// called from background goroutines.
	OnChange func(View)
}

// Workspace owns one session: the loaded problem, its code cache, the layout
// and the two remote-call state machines.
type Workspace struct {
	authorizer Authorizer
	prompter   AuthPrompter
	logger     *slog.Logger
	onChange   func(View)
	layoutCfg  layout.Config

	ctx    context.Context
	cancel context.CancelFunc

	execution *ExecutionSession
	mentor    *MentorDialogue

	mu         sync.Mutex
	closed     bool
	problem    *domain.Problem
	code       *CodeCache
	layout     layout.State
	drag       *layout.DragHandle
	dragTarget layout.Target
}

// New creates a workspace with no problem loaded.
func New(opts Options) (*Workspace, error) {
	if opts.Executor == nil || opts.Hinter == nil {
		return nil, ErrMissingCollaborator
	}
	if opts.Layout == (layout.Config{}) {
		opts.Layout = layout.DefaultConfig()
	}
	if err := opts.Layout.Validate(); err != nil {
		return nil, fmt.Errorf("layout config: %w", err)
	}
	if opts.Authorizer == nil {
		opts.Authorizer = AlwaysAuthorized
	}
	if opts.AuthPrompter == nil {
		opts.AuthPrompter = noopPrompter{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = domain.DefaultLanguage
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Workspace{
		authorizer: opts.Authorizer,
		prompter:   opts.AuthPrompter,
		logger:     opts.Logger,
		onChange:   opts.OnChange,
		layoutCfg:  opts.Layout,
		ctx:        ctx,
		cancel:     cancel,
		code:       NewCodeCache(opts.DefaultLanguage),
		layout:     layout.NewState(opts.Layout),
	}
	w.execution = NewExecutionSession(opts.Executor, opts.Logger, w.notify)
	w.mentor = NewMentorDialogue(opts.Hinter, opts.Logger, w.notify)
	return w, nil
}

func (w *Workspace) notify() {
	if w.onChange == nil {
		return
	}
	w.onChange(w.View())
}

// gate checks authorization and prompts once when it fails. Callers hold w.mu.
func (w *Workspace) gate() error {
	if w.closed {
		return ErrClosed
	}
	if !w.authorizer.Authorized() {
		w.prompter.RequestAuthentication()
		return ErrAuthRequired
	}
	return nil
}

// LoadProblem makes p the active problem. When the slug differs from the
// current one the code cache is re-seeded and execution and mentor reset.
// Delivering the same slug again changes nothing. Layout is never touched.
func (w *Workspace) LoadProblem(p *domain.Problem) error {
	if p == nil {
		return fmt.Errorf("load problem: %w", domain.ErrInvalidInput)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("load problem: %w", err)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if w.problem != nil && w.problem.Slug == p.Slug {
		w.mu.Unlock()
		return nil
	}
	w.problem = p
	w.code.Reseed(p)
	w.execution.Reset()
	w.mentor.Reset()
	w.mu.Unlock()

	w.logger.Debug("problem loaded", "slug", p.Slug, "language", w.ActiveLanguage())
	w.notify()
	return nil
}

// OpenProblem fetches slug from src and loads it. Nothing is applied when
// the fetch fails.
func (w *Workspace) OpenProblem(ctx context.Context, src ProblemSource, slug string) error {
	p, err := src.GetProblem(ctx, slug)
	if err != nil {
		return fmt.Errorf("open problem %s: %w", slug, err)
	}
	if p == nil {
		return fmt.Errorf("open problem %s: %w", slug, domain.ErrProblemNotFound)
	}
	return w.LoadProblem(p)
}

// Problem returns the loaded problem or nil.
func (w *Workspace) Problem() *domain.Problem {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.problem
}

// ActiveLanguage returns the active language.
func (w *Workspace) ActiveLanguage() domain.LanguageID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.code.Active()
}

// SelectLanguage switches the editor language. Edits made in other languages
// are kept.
func (w *Workspace) SelectLanguage(lang domain.LanguageID) error {
	w.mu.Lock()
	if err := w.gate(); err != nil {
		w.mu.Unlock()
		return err
	}
	if w.problem == nil {
		w.mu.Unlock()
		return ErrNoProblem
	}
	if err := w.code.Select(lang); err != nil {
		w.mu.Unlock()
		return fmt.Errorf("select %s: %w", lang, err)
	}
	w.mu.Unlock()
	w.notify()
	return nil
}

// EditCode replaces the source of the active language. nil is stored as "".
func (w *Workspace) EditCode(text *string) error {
	w.mu.Lock()
	if err := w.gate(); err != nil {
		w.mu.Unlock()
		return err
	}
	if w.problem == nil {
		w.mu.Unlock()
		return ErrNoProblem
	}
	w.code.Edit(text)
	w.mu.Unlock()
	w.notify()
	return nil
}

// Submit runs the active code. The request is snapshotted here, so later
// edits do not affect the payload already sent. Results arrive through
// OnChange and View.
func (w *Workspace) Submit() error {
	_, err := w.SubmitAsync()
	return err
}

// SubmitAsync is Submit returning a channel that is closed once this run's
// outcome has been applied or discarded. An authorized Submit with no problem
// loaded reports ErrNoProblem without prompting, since there is nothing to
// run yet.
func (w *Workspace) SubmitAsync() (<-chan struct{}, error) {
	w.mu.Lock()
	if err := w.gate(); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if w.problem == nil {
		w.mu.Unlock()
		return nil, ErrNoProblem
	}
	req := domain.ExecutionRequest{
		SourceCode:  w.code.Code(),
		Language:    w.code.Active(),
		ProblemSlug: w.problem.Slug,
	}
	seq := w.execution.Submit(w.ctx, req)
	done := w.execution.Done(seq)
	w.mu.Unlock()

	w.logger.Debug("run submitted", "slug", req.ProblemSlug, "language", req.Language, "seq", seq)
	w.notify()
	return done, nil
}

// OpenMentor shows the mentor dialogue.
func (w *Workspace) OpenMentor() error {
	w.mu.Lock()
	if err := w.gate(); err != nil {
		w.mu.Unlock()
		return err
	}
	if w.problem == nil {
		w.mu.Unlock()
		return ErrNoProblem
	}
	err := w.mentor.Open()
	w.mu.Unlock()
	return w.changed(err)
}

// MentorWantsCustomPrompt switches the dialogue to typing a question.
func (w *Workspace) MentorWantsCustomPrompt() error {
	return w.changed(w.mentor.WantsCustomPrompt())
}

// MentorSetPrompt updates the typed question.
func (w *Workspace) MentorSetPrompt(text string) error {
	return w.changed(w.mentor.SetPrompt(text))
}

// MentorBack returns from typing to the question choice.
func (w *Workspace) MentorBack() error {
	return w.changed(w.mentor.Back())
}

// MentorDecline asks for a hint without a custom question.
func (w *Workspace) MentorDecline() error {
	_, err := w.MentorDeclineAsync()
	return err
}

// MentorDeclineAsync is MentorDecline returning a channel that is closed once
// the hint request has returned.
func (w *Workspace) MentorDeclineAsync() (<-chan struct{}, error) {
	w.mu.Lock()
	req, err := w.hintRequestLocked()
	if err == nil {
		err = w.mentor.DeclineCustomPrompt(w.ctx, req)
	}
	done := w.mentor.Pending()
	w.mu.Unlock()
	if err = w.changed(err); err != nil {
		return nil, err
	}
	return done, nil
}

// MentorSend asks for a hint with the typed question.
func (w *Workspace) MentorSend() error {
	_, err := w.MentorSendAsync()
	return err
}

// MentorSendAsync is MentorSend returning a channel that is closed once the
// hint request has returned.
func (w *Workspace) MentorSendAsync() (<-chan struct{}, error) {
	w.mu.Lock()
	req, err := w.hintRequestLocked()
	if err == nil {
		err = w.mentor.SendPrompt(w.ctx, req)
	}
	done := w.mentor.Pending()
	w.mu.Unlock()
	if err = w.changed(err); err != nil {
		return nil, err
	}
	return done, nil
}

// MentorAskAnother restarts the dialogue after a result.
func (w *Workspace) MentorAskAnother() error {
	return w.changed(w.mentor.AskAnother())
}

// CloseMentor hides the dialogue.
func (w *Workspace) CloseMentor() error {
	return w.changed(w.mentor.Close())
}

func (w *Workspace) hintRequestLocked() (domain.HintRequest, error) {
	if w.closed {
		return domain.HintRequest{}, ErrClosed
	}
	if w.problem == nil {
		return domain.HintRequest{}, ErrNoProblem
	}
	examples := make([]domain.Example, len(w.problem.Examples))
	copy(examples, w.problem.Examples)
	return domain.HintRequest{
		ProblemTitle:       w.problem.Title,
		ProblemDescription: w.problem.Description,
		Examples:           examples,
		SourceCode:         w.code.Code(),
		Language:           w.code.Active(),
	}, nil
}

func (w *Workspace) changed(err error) error {
	if err != nil {
		return err
	}
	w.notify()
	return nil
}

// BeginDrag starts resizing target. A drag already in progress is dropped.
func (w *Workspace) BeginDrag(target layout.Target, rect layout.Rect, start layout.Point) {
	w.mu.Lock()
	w.drag = layout.BeginDrag(target.Axis(), rect, w.layout.Get(target), w.layoutCfg.Bounds(target), start)
	w.dragTarget = target
	w.mu.Unlock()
	w.notify()
}

// DragMove feeds a pointer position to the active drag. Moves the handle
// cannot compute (zero-width container) leave the layout as it is.
func (w *Workspace) DragMove(p layout.Point) (float64, error) {
	w.mu.Lock()
	if !w.drag.Active() {
		w.mu.Unlock()
		return 0, ErrDragNotActive
	}
	v, ok := w.drag.Move(p)
	if ok {
		w.layout.Set(w.layoutCfg, w.dragTarget, v)
	}
	w.mu.Unlock()
	if ok {
		w.notify()
	}
	return v, nil
}

// EndDrag releases the active drag.
func (w *Workspace) EndDrag() error {
	w.mu.Lock()
	if !w.drag.Active() {
		w.mu.Unlock()
		return ErrDragNotActive
	}
	w.drag.Release()
	w.drag = nil
	w.dragTarget = ""
	w.mu.Unlock()
	w.notify()
	return nil
}

// SetSplit sets a split value directly, clamped to its bounds.
func (w *Workspace) SetSplit(target layout.Target, v float64) float64 {
	w.mu.Lock()
	w.layout.Set(w.layoutCfg, target, v)
	got := w.layout.Get(target)
	w.mu.Unlock()
	w.notify()
	return got
}

// ToggleTerminal collapses or expands the terminal panel.
func (w *Workspace) ToggleTerminal() bool {
	w.mu.Lock()
	w.layout.TerminalCollapsed = !w.layout.TerminalCollapsed
	collapsed := w.layout.TerminalCollapsed
	w.mu.Unlock()
	w.notify()
	return collapsed
}

// View derives the current projection.
func (w *Workspace) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()

	v := View{
		ActiveLanguage: w.code.Active(),
		Layout:         w.layout,
		Execution:      newExecutionView(w.execution.State()),
		Mentor:         newMentorView(w.mentor.State()),
	}
	if w.drag.Active() {
		v.Dragging = w.dragTarget
	}
	if w.problem == nil {
		return v
	}

	p := w.problem
	v.Problem = &ProblemView{
		Slug:        p.Slug,
		Title:       p.Title,
		Difficulty:  p.Difficulty,
		Description: p.Description,
		Examples:    p.Examples,
	}
	v.Languages = w.code.Languages()
	v.Code = w.code.Code()
	starter := w.code.Starter(v.ActiveLanguage)
	v.Modified = v.Code != starter
	v.Changes, v.DiffTruncated = lineChanges(starter, v.Code)
	return v
}

// ExecutionState returns the execution state machine's snapshot.
func (w *Workspace) ExecutionState() ExecutionState {
	return w.execution.State()
}

// MentorState returns the mentor state machine's snapshot.
func (w *Workspace) MentorState() MentorState {
	return w.mentor.State()
}

// Wait blocks until every in-flight run and hint request has returned.
func (w *Workspace) Wait() {
	w.execution.Wait()
	w.mentor.Wait()
}

// Close cancels in-flight calls and discards the session.
func (w *Workspace) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.execution.Reset()
	w.mentor.Reset()
	w.mu.Unlock()
	w.cancel()
}
