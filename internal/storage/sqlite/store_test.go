package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/codedojo/internal/domain"
)

func testProblem(slug string, difficulty domain.Difficulty) *domain.Problem {
	return &domain.Problem{
		Slug:        slug,
		Title:       "Title " + slug,
		Difficulty:  difficulty,
		Description: "Solve " + slug,
		Topics:      []string{"array", "hash-table"},
		Examples:    []domain.Example{{Ordinal: 1, Text: "in: 1 out: 2"}},
		CodeSnippets: domain.Snippets{
			{Language: domain.LanguagePython3, Code: "print(1)"},
			{Language: domain.LanguageJavaScript, Code: "console.log(1)"},
		},
	}
}

func testUser(name string) *domain.User {
	now := time.Now()
	return &domain.User{
		ID:           uuid.New(),
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestProblemStore_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewProblemStore(openTestDB(t))

	p := testProblem("two-sum", domain.DifficultyEasy)
	if err := store.UpsertProblem(ctx, p); err != nil {
		t.Fatalf("UpsertProblem() error = %v", err)
	}
	if p.ID == 0 {
		t.Fatal("UpsertProblem() did not set ID")
	}

	got, err := store.GetProblem(ctx, "two-sum")
	if err != nil {
		t.Fatalf("GetProblem() error = %v", err)
	}
	if got.Title != p.Title || got.Difficulty != domain.DifficultyEasy {
		t.Errorf("GetProblem() = %+v", got)
	}
	langs := got.CodeSnippets.Languages()
	if len(langs) != 2 || langs[0] != domain.LanguagePython3 || langs[1] != domain.LanguageJavaScript {
		t.Errorf("snippet order = %v; want [python3 javascript]", langs)
	}
	if len(got.Examples) != 1 || got.Examples[0].Ordinal != 1 {
		t.Errorf("Examples = %+v", got.Examples)
	}

	id := p.ID
	p.Title = "Two Sum"
	if err := store.UpsertProblem(ctx, p); err != nil {
		t.Fatalf("second UpsertProblem() error = %v", err)
	}
	if p.ID != id {
		t.Errorf("ID changed on update: %d -> %d", id, p.ID)
	}
	got, _ = store.GetProblem(ctx, "two-sum")
	if got.Title != "Two Sum" {
		t.Errorf("Title = %q; want Two Sum", got.Title)
	}
}

func TestProblemStore_GetMissing(t *testing.T) {
	store := NewProblemStore(openTestDB(t))
	_, err := store.GetProblem(context.Background(), "nope")
	if !errors.Is(err, domain.ErrProblemNotFound) {
		t.Errorf("GetProblem() error = %v; want ErrProblemNotFound", err)
	}
}

func TestProblemStore_List(t *testing.T) {
	ctx := context.Background()
	store := NewProblemStore(openTestDB(t))

	for _, slug := range []string{"b", "a"} {
		if err := store.UpsertProblem(ctx, testProblem(slug, domain.DifficultyMedium)); err != nil {
			t.Fatal(err)
		}
	}
	list, err := store.ListProblems(ctx)
	if err != nil {
		t.Fatalf("ListProblems() error = %v", err)
	}
	if len(list) != 2 || list[0].Slug != "b" || list[1].Slug != "a" {
		t.Errorf("ListProblems() = %+v; want insertion order", list)
	}
	if len(list[0].Topics) != 2 {
		t.Errorf("Topics = %v", list[0].Topics)
	}
}

func TestUserStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(openTestDB(t))

	u := testUser("alice")
	if err := store.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	byEmail, err := store.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if byEmail.ID != u.ID {
		t.Errorf("ID = %v; want %v", byEmail.ID, u.ID)
	}

	byID, err := store.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if byID.Username != "alice" {
		t.Errorf("Username = %q", byID.Username)
	}

	if _, err := store.GetUserByID(ctx, uuid.New()); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("GetUserByID(unknown) error = %v; want ErrUserNotFound", err)
	}
}

func TestUserStore_Duplicate(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(openTestDB(t))

	if err := store.CreateUser(ctx, testUser("bob")); err != nil {
		t.Fatal(err)
	}

	dupEmail := testUser("bobby")
	dupEmail.Email = "bob@example.com"
	if err := store.CreateUser(ctx, dupEmail); !errors.Is(err, domain.ErrUserAlreadyExists) {
		t.Errorf("duplicate email error = %v; want ErrUserAlreadyExists", err)
	}

	dupName := testUser("BOB")
	dupName.Email = "other@example.com"
	if err := store.CreateUser(ctx, dupName); !errors.Is(err, domain.ErrUserAlreadyExists) {
		t.Errorf("duplicate username error = %v; want ErrUserAlreadyExists", err)
	}
}

func TestUserStore_Sessions(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(openTestDB(t))

	u := testUser("carol")
	if err := store.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	live := &domain.Session{ID: uuid.New(), UserID: u.ID, Token: "live", ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	expired := &domain.Session{ID: uuid.New(), UserID: u.ID, Token: "old", ExpiresAt: now.Add(-time.Hour), CreatedAt: now}
	for _, s := range []*domain.Session{live, expired} {
		if err := store.CreateSession(ctx, s); err != nil {
			t.Fatalf("CreateSession() error = %v", err)
		}
	}

	got, err := store.GetSessionByToken(ctx, "live")
	if err != nil {
		t.Fatalf("GetSessionByToken() error = %v", err)
	}
	if got.UserID != u.ID || got.IsExpired() {
		t.Errorf("session = %+v", got)
	}

	n, err := store.DeleteExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("DeleteExpiredSessions() error = %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteExpiredSessions() = %d; want 1", n)
	}
	if _, err := store.GetSessionByToken(ctx, "old"); !errors.Is(err, domain.ErrAuthSessionNotFound) {
		t.Errorf("expired session error = %v; want ErrAuthSessionNotFound", err)
	}

	if err := store.DeleteSession(ctx, live.ID); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	if _, err := store.GetSessionByToken(ctx, "live"); !errors.Is(err, domain.ErrAuthSessionNotFound) {
		t.Errorf("deleted session error = %v", err)
	}
}

func TestSubmissionStore_RankAndSolved(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	problems := NewProblemStore(db)
	users := NewUserStore(db)
	subs := NewSubmissionStore(db)

	if err := problems.UpsertProblem(ctx, testProblem("easy-one", domain.DifficultyEasy)); err != nil {
		t.Fatal(err)
	}
	if err := problems.UpsertProblem(ctx, testProblem("hard-one", domain.DifficultyHard)); err != nil {
		t.Fatal(err)
	}
	u := testUser("dave")
	if err := users.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}

	base := time.Now().Add(-time.Hour)
	submit := func(slug string, status domain.SubmissionStatus, at time.Time) {
		t.Helper()
		sub := &domain.Submission{
			ID:          uuid.New(),
			UserID:      u.ID,
			ProblemSlug: slug,
			Language:    domain.LanguagePython3,
			SourceCode:  "print(1)",
			Status:      status,
			CreatedAt:   at,
		}
		if err := subs.CreateSubmission(ctx, sub); err != nil {
			t.Fatalf("CreateSubmission(%s) error = %v", slug, err)
		}
	}

	submit("easy-one", domain.SubmissionFailed, base)
	submit("easy-one", domain.SubmissionAccepted, base.Add(time.Minute))
	submit("easy-one", domain.SubmissionAccepted, base.Add(2*time.Minute))
	submit("hard-one", domain.SubmissionAccepted, base.Add(3*time.Minute))

	got, err := users.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if want := domain.DifficultyEasy.Points() + domain.DifficultyHard.Points(); got.RankScore != want {
		t.Errorf("RankScore = %d; want %d", got.RankScore, want)
	}

	solved, err := subs.SolvedProblems(ctx, u.ID)
	if err != nil {
		t.Fatalf("SolvedProblems() error = %v", err)
	}
	if len(solved) != 2 {
		t.Fatalf("SolvedProblems() len = %d; want 2", len(solved))
	}
	if solved[0].ProblemSlug != "hard-one" || solved[1].ProblemSlug != "easy-one" {
		t.Errorf("SolvedProblems() order = %v, %v", solved[0].ProblemSlug, solved[1].ProblemSlug)
	}

	history, err := subs.ListSubmissions(ctx, u.ID, "easy-one", 0)
	if err != nil {
		t.Fatalf("ListSubmissions() error = %v", err)
	}
	if len(history) != 3 || history[0].Status != domain.SubmissionAccepted {
		t.Errorf("ListSubmissions() = %d entries", len(history))
	}
}

func TestSubmissionStore_SolvedEmpty(t *testing.T) {
	subs := NewSubmissionStore(openTestDB(t))
	solved, err := subs.SolvedProblems(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("SolvedProblems() error = %v", err)
	}
	if solved == nil || len(solved) != 0 {
		t.Errorf("SolvedProblems() = %v; want empty slice", solved)
	}
}
