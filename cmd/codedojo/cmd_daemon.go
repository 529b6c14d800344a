package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/felixgeelhaar/codedojo/internal/config"
)

// cmdStart starts the server in the background
func cmdStart() error {
	app, err := loadApp()
	if err != nil {
		return err
	}
	if app.isRunning() {
		fmt.Println("✓ Server is already running")
		return nil
	}

	daemonPath, err := findDaemonBinary()
	if err != nil {
		return fmt.Errorf("find server binary: %w", err)
	}

	cmd := exec.Command(daemonPath)
	cmd.Dir = app.dir
	cmd.Stdout = nil
	cmd.Stderr = nil

	// Detach from parent process (platform-specific)
	configureDaemonProcess(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	fmt.Print("Starting server...")
	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if app.isRunning() {
			fmt.Println(" ✓")
			fmt.Printf("Server running at %s\n", app.client.ServerURL())
			return nil
		}
		fmt.Print(".")
	}

	fmt.Println(" ✗")
	return fmt.Errorf("server failed to start (check logs with 'codedojo logs')")
}

// cmdStop stops the server started by cmdStart
func cmdStop() error {
	app, err := loadApp()
	if err != nil {
		return err
	}
	if !app.isRunning() {
		fmt.Println("Server is not running")
		return nil
	}

	data, err := os.ReadFile(filepath.Join(app.dir, pidFile))
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("parse PID: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process: %w", err)
	}

	fmt.Print("Stopping server...")
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send signal: %w", err)
	}

	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !app.isRunning() {
			fmt.Println(" ✓")
			return nil
		}
		fmt.Print(".")
	}

	fmt.Println(" ✗")
	return fmt.Errorf("server did not stop gracefully")
}

// cmdStatus shows server status
func cmdStatus() error {
	app, err := loadApp()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	version, err := app.client.Health(ctx)
	if err != nil {
		fmt.Println("Status:  stopped")
		fmt.Printf("Address: %s\n", app.client.ServerURL())
		return nil
	}

	login := "anonymous"
	if app.client.Authorized() {
		if acct, err := app.client.Me(ctx); err == nil {
			login = acct.Username
		}
	}

	fmt.Println("Status:  running")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Address: %s\n", app.client.ServerURL())
	fmt.Printf("Runner:  %s\n", app.cfg.Runner.Backend)
	fmt.Printf("Store:   %s\n", app.cfg.Store.Driver)
	fmt.Printf("User:    %s\n", login)
	return nil
}

// cmdLogs prints the tail of the server log
func cmdLogs() error {
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	logPath := filepath.Join(dir, "logs", "codedojod.log")

	file, err := os.Open(logPath)
	if os.IsNotExist(err) {
		fmt.Println("No log file found. Start the server first.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	return tail(file, os.Stdout, 4096)
}

// tail copies the complete lines within the last n bytes of f to w.
func tail(f *os.File, w io.Writer, n int64) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	offset := info.Size() - n
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return err
	}

	reader := bufio.NewReader(f)
	// Skip partial first line if we seeked
	if offset > 0 {
		_, _ = reader.ReadString('\n')
	}
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		fmt.Fprintln(w, scanner.Text())
	}
	return scanner.Err()
}

// isRunning checks the server's health endpoint
func (a *app) isRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := a.client.Health(ctx)
	return err == nil
}

// findDaemonBinary locates the codedojod binary
func findDaemonBinary() (string, error) {
	if path, err := exec.LookPath("codedojod"); err == nil {
		return path, nil
	}

	// Check relative to this binary
	if self, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(self), "codedojod")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	for _, path := range []string{"/usr/local/bin/codedojod", "./codedojod"} {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("codedojod binary not found (build with 'go build ./cmd/codedojod')")
}
