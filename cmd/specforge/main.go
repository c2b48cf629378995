// Package main is the entry point for the specforge CLI.
package main

import (
	"errors"
	"os"

	"github.com/specforge/specforge/internal/cli"
	"github.com/specforge/specforge/pkg/version"
)

func main() {
	os.Exit(run())
}

// run executes the root command and maps errors to process exit codes.
// Cobra prints the error before Execute returns, so run only decides the
// code.
func run() int {
	rootCmd := cli.NewRootCmd(version.GetVersion())
	if err := rootCmd.Execute(); err != nil {
		return extractExitCode(err)
	}
	return 0
}

// extractExitCode returns the exit code carried by a cli.ExitError, or 1
// for any other error.
func extractExitCode(err error) int {
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode
	}
	return 1
}
