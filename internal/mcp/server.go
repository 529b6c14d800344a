// Package mcp exposes a workspace session to MCP clients: an editor or agent
// opens a problem, edits and runs code, and talks to the AI mentor through
// tools.
package mcp

import (
	"context"
	"errors"
	"fmt"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"

	"github.com/felixgeelhaar/codedojo/internal/domain"
	"github.com/felixgeelhaar/codedojo/internal/layout"
	"github.com/felixgeelhaar/codedojo/internal/workspace"
)

// Catalog finds problems.
type Catalog interface {
	workspace.ProblemSource
	ListProblems(ctx context.Context, topic, query string) ([]domain.ProblemSummary, error)
}

// Server wraps the MCP server around one workspace session.
type Server struct {
	mcpServer *server.Server
	ws        *workspace.Workspace
	catalog   Catalog
}

// Config contains configuration for the MCP server
type Config struct {
	Workspace *workspace.Workspace
	Catalog   Catalog
	Version   string
}

// LoginHint is returned with every refused protected action.
const LoginHint = "log in first with `codedojo login`"

// NewServer creates a new MCP server for the workspace
func NewServer(cfg Config) *Server {
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	s := &Server{
		ws:      cfg.Workspace,
		catalog: cfg.Catalog,
	}

	s.mcpServer = server.New(server.Info{
		Name:    "codedojo",
		Version: cfg.Version,
	}, server.WithInstructions(`
codedojo is a coding-practice workspace. One session holds one problem at a
time with starter code per language; edits are kept per language until a
different problem is opened.

Typical flow:
- list_problems, then open_problem with a slug
- select_language, edit_code, run
- mentor_open, then mentor_decline for a general hint or mentor_custom with a
  question followed by mentor_send
- workspace_state at any time to see the code, output and mentor panel

Running code and asking the mentor require a login.
`))

	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.mcpServer.Tool("list_problems").
		Description("List problems, optionally filtered by topic or a title/slug query.").
		Handler(s.handleListProblems)

	s.mcpServer.Tool("open_problem").
		Description("Open a problem by slug. Reopening the current problem keeps your edits.").
		Handler(s.handleOpenProblem)

	s.mcpServer.Tool("select_language").
		Description("Switch the editor language. Edits in other languages are kept.").
		Handler(s.handleSelectLanguage)

	s.mcpServer.Tool("edit_code").
		Description("Replace the code of the active language.").
		Handler(s.handleEditCode)

	s.mcpServer.Tool("run").
		Description("Run the active code and report output, CPU time and memory.").
		Handler(s.handleRun)

	s.mcpServer.Tool("mentor_open").
		Description("Open the AI mentor dialogue.").
		Handler(s.handleMentorOpen)

	s.mcpServer.Tool("mentor_decline").
		Description("Ask the mentor for a general hint without a question.").
		Handler(s.handleMentorDecline)

	s.mcpServer.Tool("mentor_custom").
		Description("Choose to ask the mentor a specific question, optionally typing it.").
		Handler(s.handleMentorCustom)

	s.mcpServer.Tool("mentor_back").
		Description("Go back from typing a question to the choice.").
		Handler(s.handleMentorBack)

	s.mcpServer.Tool("mentor_send").
		Description("Send the typed question to the mentor.").
		Handler(s.handleMentorSend)

	s.mcpServer.Tool("mentor_ask_another").
		Description("Start over after the mentor answered.").
		Handler(s.handleMentorAskAnother)

	s.mcpServer.Tool("mentor_close").
		Description("Close the mentor dialogue.").
		Handler(s.handleMentorClose)

	s.mcpServer.Tool("resize").
		Description("Set a pane split: outer and inner are percentages, terminal is a height.").
		Handler(s.handleResize)

	s.mcpServer.Tool("toggle_terminal").
		Description("Collapse or expand the terminal panel.").
		Handler(s.handleToggleTerminal)

	s.mcpServer.Tool("workspace_state").
		Description("Show the current workspace: problem, code, output and mentor panel.").
		Handler(s.handleState)
}

// Input/Output types for tools

type ListProblemsInput struct {
	Topic string `json:"topic,omitempty" jsonschema:"description=Only problems with this topic"`
	Query string `json:"query,omitempty" jsonschema:"description=Case-insensitive match on title or slug"`
}

type ListProblemsOutput struct {
	Problems []domain.ProblemSummary `json:"problems"`
}

type OpenProblemInput struct {
	Slug string `json:"slug" jsonschema:"description=Problem slug from list_problems"`
}

type SelectLanguageInput struct {
	Language string `json:"language" jsonschema:"description=Language ID,enum=javascript,enum=python3,enum=java,enum=cpp"`
}

type EditCodeInput struct {
	// Code is a pointer so an explicit null clears the editor.
	Code *string `json:"code" jsonschema:"description=Full source for the active language"`
}

type WaitInput struct {
	Wait *bool `json:"wait,omitempty" jsonschema:"description=Wait for the result before returning (default: true)"`
}

type MentorCustomInput struct {
	Prompt string `json:"prompt,omitempty" jsonschema:"description=The question for the mentor"`
}

type MentorSendInput struct {
	Prompt string `json:"prompt,omitempty" jsonschema:"description=Replaces the typed question before sending"`
	Wait   *bool  `json:"wait,omitempty" jsonschema:"description=Wait for the answer before returning (default: true)"`
}

type ResizeInput struct {
	Target string  `json:"target" jsonschema:"description=Split to change,enum=outer,enum=inner,enum=terminal"`
	Value  float64 `json:"value" jsonschema:"description=New value; clamped to the split's bounds"`
}

type ResizeOutput struct {
	Target string  `json:"target"`
	Value  float64 `json:"value"`
}

type ToggleTerminalOutput struct {
	Collapsed bool `json:"collapsed"`
}

type StateInput struct{}

// StateOutput is returned by every tool that changes the session.
type StateOutput struct {
	Message string         `json:"message,omitempty"`
	View    workspace.View `json:"view"`
}

// Tool handlers

func (s *Server) state(msg string) StateOutput {
	return StateOutput{Message: msg, View: s.ws.View()}
}

// toolError turns workspace refusals into messages a model can act on.
func toolError(err error) error {
	switch {
	case errors.Is(err, workspace.ErrAuthRequired):
		return fmt.Errorf("%w: %s", err, LoginHint)
	case errors.Is(err, workspace.ErrNoProblem):
		return fmt.Errorf("%w: call open_problem first", err)
	case errors.Is(err, workspace.ErrInvalidTransition):
		return fmt.Errorf("%w: check mentor status with workspace_state", err)
	}
	return err
}

func waitFor(w *bool) bool {
	return w == nil || *w
}

func (s *Server) handleListProblems(ctx context.Context, input ListProblemsInput) (ListProblemsOutput, error) {
	list, err := s.catalog.ListProblems(ctx, input.Topic, input.Query)
	if err != nil {
		return ListProblemsOutput{}, fmt.Errorf("list problems: %w", err)
	}
	return ListProblemsOutput{Problems: list}, nil
}

func (s *Server) handleOpenProblem(ctx context.Context, input OpenProblemInput) (StateOutput, error) {
	if input.Slug == "" {
		return StateOutput{}, fmt.Errorf("slug is required")
	}
	if err := s.ws.OpenProblem(ctx, s.catalog, input.Slug); err != nil {
		return StateOutput{}, toolError(err)
	}
	return s.state(fmt.Sprintf("Opened %s in %s.", input.Slug, s.ws.ActiveLanguage())), nil
}

func (s *Server) handleSelectLanguage(ctx context.Context, input SelectLanguageInput) (StateOutput, error) {
	if err := s.ws.SelectLanguage(domain.LanguageID(input.Language)); err != nil {
		return StateOutput{}, toolError(err)
	}
	return s.state(""), nil
}

func (s *Server) handleEditCode(ctx context.Context, input EditCodeInput) (StateOutput, error) {
	if err := s.ws.EditCode(input.Code); err != nil {
		return StateOutput{}, toolError(err)
	}
	return s.state(""), nil
}

func (s *Server) handleRun(ctx context.Context, input WaitInput) (StateOutput, error) {
	done, err := s.ws.SubmitAsync()
	if err != nil {
		return StateOutput{}, toolError(err)
	}
	if !waitFor(input.Wait) {
		return s.state("Run started."), nil
	}
	if err := wait(ctx, done); err != nil {
		return StateOutput{}, err
	}
	return s.state(""), nil
}

// wait blocks until done is closed or ctx ends.
func wait(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handleMentorOpen(ctx context.Context, input StateInput) (StateOutput, error) {
	if err := s.ws.OpenMentor(); err != nil {
		return StateOutput{}, toolError(err)
	}
	return s.state("Ask a specific question (mentor_custom) or get a general hint (mentor_decline)?"), nil
}

func (s *Server) handleMentorDecline(ctx context.Context, input WaitInput) (StateOutput, error) {
	done, err := s.ws.MentorDeclineAsync()
	if err != nil {
		return StateOutput{}, toolError(err)
	}
	if waitFor(input.Wait) {
		if err := wait(ctx, done); err != nil {
			return StateOutput{}, err
		}
	}
	return s.state(""), nil
}

func (s *Server) handleMentorCustom(ctx context.Context, input MentorCustomInput) (StateOutput, error) {
	if err := s.ws.MentorWantsCustomPrompt(); err != nil {
		return StateOutput{}, toolError(err)
	}
	if input.Prompt != "" {
		if err := s.ws.MentorSetPrompt(input.Prompt); err != nil {
			return StateOutput{}, toolError(err)
		}
	}
	return s.state(""), nil
}

func (s *Server) handleMentorBack(ctx context.Context, input StateInput) (StateOutput, error) {
	if err := s.ws.MentorBack(); err != nil {
		return StateOutput{}, toolError(err)
	}
	return s.state(""), nil
}

func (s *Server) handleMentorSend(ctx context.Context, input MentorSendInput) (StateOutput, error) {
	if input.Prompt != "" {
		if err := s.ws.MentorSetPrompt(input.Prompt); err != nil {
			return StateOutput{}, toolError(err)
		}
	}
	done, err := s.ws.MentorSendAsync()
	if err != nil {
		return StateOutput{}, toolError(err)
	}
	if waitFor(input.Wait) {
		if err := wait(ctx, done); err != nil {
			return StateOutput{}, err
		}
	}
	return s.state(""), nil
}

func (s *Server) handleMentorAskAnother(ctx context.Context, input StateInput) (StateOutput, error) {
	if err := s.ws.MentorAskAnother(); err != nil {
		return StateOutput{}, toolError(err)
	}
	return s.state(""), nil
}

func (s *Server) handleMentorClose(ctx context.Context, input StateInput) (StateOutput, error) {
	if err := s.ws.CloseMentor(); err != nil {
		return StateOutput{}, toolError(err)
	}
	return s.state(""), nil
}

func (s *Server) handleResize(ctx context.Context, input ResizeInput) (ResizeOutput, error) {
	target, err := layout.ParseTarget(input.Target)
	if err != nil {
		return ResizeOutput{}, err
	}
	return ResizeOutput{Target: string(target), Value: s.ws.SetSplit(target, input.Value)}, nil
}

func (s *Server) handleToggleTerminal(ctx context.Context, input StateInput) (ToggleTerminalOutput, error) {
	return ToggleTerminalOutput{Collapsed: s.ws.ToggleTerminal()}, nil
}

func (s *Server) handleState(ctx context.Context, input StateInput) (StateOutput, error) {
	return s.state(""), nil
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
