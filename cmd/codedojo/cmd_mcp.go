package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/felixgeelhaar/codedojo/internal/mcp"
)

// cmdMCP serves one workspace session to an MCP client, over stdio by default
func cmdMCP(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	httpAddr := fs.String("http", "", "serve over HTTP on this address instead of stdio")
	if err := fs.Parse(args); err != nil {
		return err
	}

	app, err := loadApp()
	if err != nil {
		return err
	}

	// stdout carries the protocol; login prompts go to stderr
	ws, err := app.newWorkspace(os.Stderr, nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	srv := mcpserver.NewServer(mcpserver.Config{
		Workspace: ws,
		Catalog:   app.client,
		Version:   Version,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *httpAddr != "" {
		fmt.Fprintf(os.Stderr, "MCP server listening on %s\n", *httpAddr)
		return srv.ServeHTTP(ctx, *httpAddr)
	}
	return srv.ServeStdio(ctx)
}
