package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Stderr, os.Args[1:])
	stop()

	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Message != "" {
				fmt.Fprintln(os.Stderr, exitErr.Message)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run dispatches to a subcommand.
func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return &ExitError{Code: 2}
	}

	switch args[0] {
	case "run":
		return runCommand(ctx, stdout, stderr, args[1:])
	case "serve":
		return serveCommand(ctx, stdout, stderr, args[1:])
	case "nodes":
		return nodesCommand(stdout, args[1:])
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		return &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q\n%s", args[0], usage)}
	}
}

const usage = `
nodeflow - run visual node-graph flows.

Usage:
  nodeflow run [options] GRAPH_FILE   execute a graph (.json, .hcl or .flow)
  nodeflow serve [options]            serve the HTTP run API
  nodeflow nodes [-json]              list the built-in node types

Run "nodeflow <command> -h" for the options of a command.
`
