package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/specforge/specforge/internal/logging"
)

// ExitError carries a process exit code through the cobra error path. main
// unwraps it with errors.As and exits with the embedded code; the Reason is
// what cobra prints as the error message.
type ExitError struct {
	ExitCode int
	Reason   string
}

func (e *ExitError) Error() string {
	return e.Reason
}

const (
	// exitCodeInvalidDocument is returned when a surface document fails
	// schema, semantic, or specVersion validation.
	exitCodeInvalidDocument = 2

	// exitCodePartialFailure is returned when a run finishes but one or
	// more batches failed after retries.
	exitCodePartialFailure = 3

	// exitCodeCancelled is returned when the user aborts a run from the
	// progress view (128+SIGINT, the shell convention).
	exitCodeCancelled = 130
)

// NewRootCmd creates the root Cobra command for the specforge CLI.
// It wires up logging, tracing, and the generate, spec, creds, and config
// subcommands.
func NewRootCmd(ver string) *cobra.Command {
	return NewRootCmdWithEnv(ver, os.LookupEnv)
}

// NewRootCmdWithEnv creates the root command with an explicit env lookup
// for testability. The environment decides whether progress rendering
// defaults to the plain surface instead of the interactive view.
func NewRootCmdWithEnv(ver string, lookupEnv func(string) (string, bool)) *cobra.Command {
	var logResult *logging.LogPathResult

	plainDefault := DetectPlainMode(lookupEnv)

	cmd := &cobra.Command{
		Use:     "specforge",
		Short:   "SpecForge artifact generation CLI",
		Long:    "SpecForge: generate executable test-case artifacts from API surface documents",
		Version: ver,
		Example: rootCmdExample,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			result := setupLogging(cmd)
			logResult = &result
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return cleanupLogging(logResult)
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().String("project-dir", "",
		"project directory containing .specforge (default: walk up from the working directory)")
	cmd.AddCommand(NewGenerateCmd(plainDefault), newSpecCmd(), newCredsCmd(), newConfigCmd())

	return cmd
}

// DetectPlainMode reports whether progress rendering should default to the
// plain line-oriented surface. SPECFORGE_NO_TUI forces it explicitly; the
// CI variable convention covers hosted runners, whose pseudo-terminals
// would otherwise start the interactive view.
func DetectPlainMode(lookupEnv func(string) (string, bool)) bool {
	if v, ok := lookupEnv("SPECFORGE_NO_TUI"); ok && v != "" {
		return true
	}
	if v, ok := lookupEnv("CI"); ok && v != "" {
		return true
	}
	return false
}

const rootCmdExample = `  # Generate artifacts from a surface document
  specforge generate api.yaml

  # Stream artifacts into a compressed bundle
  specforge generate api.yaml --stream --output-mode bundle --compress

  # Validate a document without generating
  specforge spec validate api.yaml

  # Store a credential and export an env file for a test runner
  specforge creds set petstore
  specforge creds export --out creds.env`

// newSpecCmd creates the spec command group with document subcommands.
func newSpecCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "spec", Short: "Surface document commands"}
	cmd.AddCommand(NewSpecValidateCmd())
	return cmd
}

// newCredsCmd creates the creds command group for the sealed credential
// store.
func newCredsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "creds", Short: "Credential store commands"}
	cmd.AddCommand(NewCredsSetCmd(), NewCredsListCmd(), NewCredsRemoveCmd(), NewCredsExportCmd())
	return cmd
}

// newConfigCmd creates the config command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration commands"}
	cmd.AddCommand(NewConfigInitCmd())
	return cmd
}
