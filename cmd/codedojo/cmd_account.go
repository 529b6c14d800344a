package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/felixgeelhaar/codedojo/internal/client"
)

func cmdRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	username := fs.String("username", "", "account name")
	email := fs.String("email", "", "email address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	app, err := loadApp()
	if err != nil {
		return err
	}

	in := bufio.NewReader(os.Stdin)
	if *username == "" {
		*username = prompt(in, "Username: ")
	}
	if *email == "" {
		*email = prompt(in, "Email: ")
	}
	password, err := promptPassword(in, "Password: ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword(in, "Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	acct, err := app.client.Register(ctx, *username, *email, password)
	if err != nil {
		return err
	}
	if _, err := app.client.Login(ctx, *email, password); err != nil {
		return fmt.Errorf("registered %s but login failed: %w", acct.Username, err)
	}
	fmt.Printf("✓ Registered and logged in as %s\n", acct.Username)
	return nil
}

func cmdLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "email address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	app, err := loadApp()
	if err != nil {
		return err
	}

	in := bufio.NewReader(os.Stdin)
	if *email == "" {
		*email = prompt(in, "Email: ")
	}
	password, err := promptPassword(in, "Password: ")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	acct, err := app.client.Login(ctx, *email, password)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Logged in as %s\n", acct.Username)
	return nil
}

func cmdLogout() error {
	app, err := loadApp()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = app.client.Logout(ctx)
	switch {
	case errors.Is(err, client.ErrNotLoggedIn):
		fmt.Println("Not logged in")
		return nil
	case err != nil:
		// the saved token is gone either way
		fmt.Printf("Logged out locally (server said: %v)\n", err)
		return nil
	}
	fmt.Println("✓ Logged out")
	return nil
}

func cmdProfile() error {
	app, err := loadApp()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	profile, err := app.client.Profile(ctx)
	if errors.Is(err, client.ErrNotLoggedIn) {
		return fmt.Errorf("not logged in (run 'codedojo login' first)")
	}
	if err != nil {
		return err
	}

	fmt.Printf("User:   %s <%s>\n", profile.Username, profile.Email)
	fmt.Printf("Rank:   %d\n", profile.RankScore)
	fmt.Printf("Solved: %d\n", len(profile.Solved))
	for _, s := range profile.Solved {
		fmt.Printf("  %-28s %-12s %s\n", s.ProblemSlug, s.Language, s.SolvedAt.Local().Format("2006-01-02"))
	}
	return nil
}

func prompt(in *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}

// promptPassword reads without echo from a terminal, or a plain line when
// stdin is piped.
func promptPassword(in *bufio.Reader, label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(in, label), nil
	}
	fmt.Print(label)
	b, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}
