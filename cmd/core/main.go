// Command core is the single binary that exposes every §6 subcommand
// (serve, worker, sweeper, migrate, compose) over one shared bootstrap,
// grounded on tvarr's cmd/<name>/cmd package layout: one file per
// subcommand, each registering itself on rootCmd from its own init().
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes per §6: 0 success, 1 generic failure, 2 config error, 3
// required external dependency unreachable.
const (
	exitOK             = 0
	exitFailure        = 1
	exitConfigError    = 2
	exitDependencyDown = 3
)

var rootCmd = &cobra.Command{
	Use:   "core",
	Short: "Stage Graph Executor pipeline: serve, worker, sweeper, migrate, compose",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a command's returned error to the §6 exit code
// contract. bootstrap errors already carry a *exitError from loadConfig
// or dependency checks; anything else is the generic failure code.
func exitCodeFor(err error) int {
	var ee *exitError
	if e, ok := err.(*exitError); ok {
		ee = e
	}
	if ee != nil {
		fmt.Fprintln(os.Stderr, "Error:", ee.cause)
		return ee.code
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return exitFailure
}

// exitError tags an error with the §6 exit code it should produce,
// letting bootstrap failures (bad config, unreachable ffmpeg) surface a
// code distinct from a generic runtime failure.
type exitError struct {
	code  int
	cause error
}

func (e *exitError) Error() string { return e.cause.Error() }
func (e *exitError) Unwrap() error { return e.cause }

func newExitError(code int, cause error) *exitError {
	return &exitError{code: code, cause: cause}
}
