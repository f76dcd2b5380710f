// Package main is the entry point for the Vigia alert dashboard
// backend.
package main

import (
	"context"
	"fmt"
	"os"

	"vigia/bootstrap"
	"vigia/cmd"
)

// run initializes and starts the server.
func run() error {
	ctx := context.Background()

	app, err := bootstrap.NewApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	if err := app.Start(ctx); err != nil {
		app.Shutdown()
		return fmt.Errorf("failed to start application: %w", err)
	}

	app.WaitForShutdown()
	app.Shutdown()

	return nil
}

func main() {
	// "vigia query ..." runs the CLI against the local database; any
	// other invocation starts the server.
	if len(os.Args) > 1 && os.Args[1] == "query" {
		os.Args = append([]string{os.Args[0]}, os.Args[2:]...)

		queryCmd := cmd.NewQueryCmd()
		if err := queryCmd.Execute(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
