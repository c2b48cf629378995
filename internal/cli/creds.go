package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/specforge/specforge/internal/credstore"
)

// passphraseEnv names the environment variable holding the store
// passphrase for non-interactive use (CI, test runners).
const passphraseEnv = "SPECFORGE_PASSPHRASE"

// credsSetParams holds the parameters for the creds set command execution.
type credsSetParams struct {
	value string
}

// NewCredsSetCmd creates the "creds set" subcommand for storing a named
// credential in the sealed store.
func NewCredsSetCmd() *cobra.Command {
	var params credsSetParams

	cmd := &cobra.Command{
		Use:     "set <name>",
		Short:   "Store a named credential in the sealed store",
		Example: credsSetExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeCredsSet(cmd, params, args[0])
		},
	}

	cmd.Flags().StringVar(&params.value, "value", "", "credential value (prompted when omitted)")

	return cmd
}

const credsSetExample = `  # Prompt for the value without echo
  specforge creds set petstore

  # Non-interactive (passphrase from SPECFORGE_PASSPHRASE)
  specforge creds set petstore --value tok-123`

func executeCredsSet(cmd *cobra.Command, params credsSetParams, name string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}

	stdin := bufio.NewReader(cmd.InOrStdin())
	passphrase, err := resolvePassphrase(cmd, stdin)
	if err != nil {
		return err
	}

	value := params.value
	if value == "" {
		if value, err = readSecret(cmd, stdin, "Value"); err != nil {
			return err
		}
	}

	if err := store.Set(cmd.Context(), passphrase, name, value); err != nil {
		return fmt.Errorf("storing credential: %w", err)
	}
	cmd.Printf("Stored credential %q in %s\n", name, store.Path())
	return nil
}

// NewCredsListCmd creates the "creds list" subcommand. It prints names,
// env keys, and update times; values never leave the store unencrypted
// except through export.
func NewCredsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored credential names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeCredsList(cmd)
		},
	}
}

func executeCredsList(cmd *cobra.Command) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}

	passphrase, err := resolvePassphrase(cmd, bufio.NewReader(cmd.InOrStdin()))
	if err != nil {
		return err
	}

	creds, err := store.List(cmd.Context(), passphrase)
	if err != nil {
		return fmt.Errorf("listing credentials: %w", err)
	}
	if len(creds) == 0 {
		cmd.Println("No credentials stored.")
		return nil
	}
	for _, cred := range creds {
		cmd.Printf("%-24s %-36s updated %s\n",
			cred.Name, credstore.EnvKey(cred.Name), cred.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

// NewCredsRemoveCmd creates the "creds rm" subcommand.
func NewCredsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Remove a credential from the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeCredsRemove(cmd, args[0])
		},
	}
}

func executeCredsRemove(cmd *cobra.Command, name string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}

	passphrase, err := resolvePassphrase(cmd, bufio.NewReader(cmd.InOrStdin()))
	if err != nil {
		return err
	}

	if err := store.Remove(cmd.Context(), passphrase, name); err != nil {
		return fmt.Errorf("removing credential: %w", err)
	}
	cmd.Printf("Removed credential %q\n", name)
	return nil
}

// credsExportParams holds the parameters for the creds export command
// execution.
type credsExportParams struct {
	outPath string
}

// NewCredsExportCmd creates the "creds export" subcommand, which resolves
// the store into KEY=value lines for a test runner's environment.
func NewCredsExportCmd() *cobra.Command {
	var params credsExportParams

	cmd := &cobra.Command{
		Use:     "export",
		Short:   "Export credentials as an env file for a test runner",
		Example: credsExportExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeCredsExport(cmd, params)
		},
	}

	cmd.Flags().StringVar(&params.outPath, "out", "", "env file path (default: stdout)")

	return cmd
}

const credsExportExample = `  # Print KEY=value lines to stdout
  specforge creds export

  # Write an env file the artifacts can be run against
  specforge creds export --out creds.env`

func executeCredsExport(cmd *cobra.Command, params credsExportParams) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}

	passphrase, err := resolvePassphrase(cmd, bufio.NewReader(cmd.InOrStdin()))
	if err != nil {
		return err
	}

	if params.outPath == "" {
		if err := store.Export(cmd.Context(), passphrase, cmd.OutOrStdout()); err != nil {
			return fmt.Errorf("exporting credentials: %w", err)
		}
		return nil
	}

	f, err := os.OpenFile(params.outPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600) //nolint:gosec // G304: env file path is operator-chosen
	if err != nil {
		return fmt.Errorf("creating env file: %w", err)
	}
	if err := store.Export(cmd.Context(), passphrase, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("exporting credentials: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing env file: %w", err)
	}
	cmd.Printf("Wrote credential environment to %s\n", params.outPath)
	return nil
}

// openStore returns the credential store at the configured path.
func openStore(cmd *cobra.Command) (*credstore.Store, error) {
	path, err := configFromCommand(cmd).CredentialsPath()
	if err != nil {
		return nil, err
	}
	return credstore.New(path), nil
}

// resolvePassphrase returns the store passphrase from SPECFORGE_PASSPHRASE
// or, failing that, prompts for it.
func resolvePassphrase(cmd *cobra.Command, stdin *bufio.Reader) (string, error) {
	if pass := os.Getenv(passphraseEnv); pass != "" {
		return pass, nil
	}
	return readSecret(cmd, stdin, "Passphrase")
}

// readSecret reads a secret without echo when stdin is a terminal, and
// falls back to a plain line read for piped input. Non-terminal callers
// must share one stdin reader across prompts so buffered lines are not
// lost between reads.
func readSecret(cmd *cobra.Command, stdin *bufio.Reader, label string) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", label)
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", strings.ToLower(label), err)
		}
		return string(raw), nil
	}

	line, err := stdin.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading %s: %w", strings.ToLower(label), err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("%s cannot be empty", strings.ToLower(label))
	}
	return line, nil
}
