package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/felixgeelhaar/codedojo/internal/domain"
	"github.com/felixgeelhaar/codedojo/internal/problem"
	"github.com/felixgeelhaar/codedojo/internal/storage"
	"github.com/felixgeelhaar/codedojo/internal/workspace"
)

func cmdProblems(args []string) error {
	fs := flag.NewFlagSet("problems", flag.ContinueOnError)
	topic := fs.String("topic", "", "only problems with this topic")
	query := fs.String("q", "", "match title or slug")
	if err := fs.Parse(args); err != nil {
		return err
	}

	app, err := loadApp()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	problems, err := app.client.ListProblems(ctx, *topic, *query)
	if err != nil {
		return serverError(err)
	}
	if len(problems) == 0 {
		fmt.Println("No problems match.")
		return nil
	}

	for _, p := range problems {
		fmt.Printf("  %-28s %-7s %s\n", p.Slug, p.Difficulty, p.Title)
		if len(p.Topics) > 0 {
			fmt.Printf("  %-28s %-7s topics: %s\n", "", "", strings.Join(p.Topics, ", "))
		}
	}
	fmt.Println("\nUse 'codedojo show <slug>' for details")
	return nil
}

func cmdShow(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("problem slug required (e.g., codedojo show two-sum)")
	}
	app, err := loadApp()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	p, err := app.client.GetProblem(ctx, args[0])
	if errors.Is(err, domain.ErrProblemNotFound) {
		return fmt.Errorf("no problem with slug %q", args[0])
	}
	if err != nil {
		return serverError(err)
	}

	fmt.Printf("%s (%s)\n\n", p.Title, p.Difficulty)
	fmt.Println(p.Description)
	for _, ex := range p.Examples {
		fmt.Printf("\nExample %d:\n%s\n", ex.Ordinal, ex.Text)
	}

	langs := make([]string, 0, len(p.CodeSnippets))
	for _, l := range p.CodeSnippets.Languages() {
		langs = append(langs, string(l))
	}
	fmt.Printf("\nLanguages: %s\n", strings.Join(langs, ", "))
	return nil
}

// loadSolution opens slug in a fresh workspace and puts the file's contents
// in the editor for lang.
func loadSolution(ctx context.Context, app *app, slug, lang, file string) (*workspace.Workspace, error) {
	langID, err := domain.ParseLanguage(lang)
	if err != nil {
		return nil, err
	}
	src, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read solution: %w", err)
	}

	ws, err := app.newWorkspace(os.Stderr, nil)
	if err != nil {
		return nil, err
	}
	if err := ws.OpenProblem(ctx, app.client, slug); err != nil {
		ws.Close()
		if errors.Is(err, domain.ErrProblemNotFound) {
			return nil, fmt.Errorf("no problem with slug %q", slug)
		}
		return nil, serverError(err)
	}
	if err := ws.SelectLanguage(langID); err != nil {
		ws.Close()
		return nil, fmt.Errorf("%s: %w", langID, err)
	}
	code := string(src)
	if err := ws.EditCode(&code); err != nil {
		ws.Close()
		return nil, err
	}
	return ws, nil
}

func cmdRun(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: codedojo run <slug> <lang> <file>")
	}
	app, err := loadApp()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ws, err := loadSolution(ctx, app, args[0], args[1], args[2])
	if err != nil {
		return err
	}
	defer ws.Close()

	if err := ws.Submit(); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "Running...")
	ws.Wait()

	st := ws.ExecutionState()
	if st.Status == workspace.ExecutionFailure {
		return errors.New(st.Error)
	}
	fmt.Println(st.Result.Output)
	fmt.Printf("\nCPU %.3fs | Memory %.0f KB\n", st.Result.CPUTimeSeconds, st.Result.MemoryKb)
	return nil
}

func cmdHint(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: codedojo hint <slug> <lang> <file> [question]")
	}
	app, err := loadApp()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ws, err := loadSolution(ctx, app, args[0], args[1], args[2])
	if err != nil {
		return err
	}
	defer ws.Close()

	if err := ws.OpenMentor(); err != nil {
		return err
	}
	question := strings.TrimSpace(strings.Join(args[3:], " "))
	if question == "" {
		err = ws.MentorDecline()
	} else {
		if err := ws.MentorWantsCustomPrompt(); err != nil {
			return err
		}
		if err := ws.MentorSetPrompt(question); err != nil {
			return err
		}
		err = ws.MentorSend()
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "Asking the mentor...")
	ws.Wait()

	st := ws.MentorState()
	if st.Offline {
		if st.Detail != "" {
			return fmt.Errorf("%s (%s)", workspace.OfflineMessage, st.Detail)
		}
		return errors.New(workspace.OfflineMessage)
	}
	fmt.Println(st.Suggestion)
	return nil
}

// cmdSeed loads problem files straight into the configured database.
func cmdSeed(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("problem directory required (e.g., codedojo seed ./problems)")
	}
	app, err := loadApp()
	if err != nil {
		return err
	}
	ctx := context.Background()

	stores, err := storage.Open(ctx, app.cfg, app.dir, app.logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer stores.Close()

	n, err := problem.NewService(stores.Problems, app.logger).Seed(ctx, problem.NewLoader(args[0]))
	if err != nil {
		return err
	}
	fmt.Printf("✓ Seeded %d problems into %s\n", n, stores.Driver)
	return nil
}

// serverError explains transport failures the way the workspace does.
func serverError(err error) error {
	var se *domain.ServiceError
	if errors.As(err, &se) {
		return err
	}
	return fmt.Errorf("%s (%w)", workspace.TransportErrorMessage, err)
}
