// Package main is the entry point for the crossbackup CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/hyunjaekim/crossbackup/cmd/crossbackup/commands"
	"github.com/hyunjaekim/crossbackup/internal/errors"
)

func main() {
	// An operator interrupt cancels the run through the context; the job
	// layer still deletes the active snapshot and removes partial
	// uploads on its way out.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := commands.Execute(ctx)
	stop()
	if err == nil {
		os.Exit(errors.ExitSuccess)
	}

	color.New(color.FgRed).Fprint(os.Stderr, "error: ")
	fmt.Fprintln(os.Stderr, err)

	var exit *errors.ExitError
	if errors.As(err, &exit) {
		if exit.Suggestion != "" {
			fmt.Fprintln(os.Stderr, exit.Suggestion)
		}
		os.Exit(exit.Code)
	}
	os.Exit(errors.ExitUser)
}
