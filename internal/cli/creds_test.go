package cli

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specforge/specforge/internal/credstore"
)

// runCredsCmd executes one CLI invocation against a fixed config home so a
// test can run a command sequence over the same store file.
func runCredsCmd(t *testing.T, home, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("SPECFORGE_HOME", home)
	t.Setenv("SPECFORGE_PROJECT_DIR", "")
	t.Setenv("SPECFORGE_LOG_LEVEL", "")
	t.Setenv("SPECFORGE_LOG_FORMAT", "")

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCmd("0.0.1-test")
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestCredsCommands(t *testing.T) {
	t.Run("set list export round trip", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv(passphraseEnv, "roundtrip-pw")

		_, _, err := runCredsCmd(t, home, "", "creds", "set", "petstore", "--value", "tok-123")
		require.NoError(t, err)
		_, _, err = runCredsCmd(t, home, "", "creds", "set", "admin-key", "--value", "s3cret")
		require.NoError(t, err)

		out, _, err := runCredsCmd(t, home, "", "creds", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "petstore")
		assert.Contains(t, out, "SPECFORGE_CRED_PETSTORE")
		assert.Contains(t, out, "admin-key")

		out, _, err = runCredsCmd(t, home, "", "creds", "export")
		require.NoError(t, err)
		assert.Equal(t, "SPECFORGE_CRED_ADMIN_KEY=s3cret\nSPECFORGE_CRED_PETSTORE=tok-123\n", out)
	})

	t.Run("rm drops the credential", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv(passphraseEnv, "rm-pw")

		_, _, err := runCredsCmd(t, home, "", "creds", "set", "petstore", "--value", "tok-123")
		require.NoError(t, err)
		_, _, err = runCredsCmd(t, home, "", "creds", "rm", "petstore")
		require.NoError(t, err)

		out, _, err := runCredsCmd(t, home, "", "creds", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "No credentials stored.")
	})

	t.Run("rm of a missing credential errors", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv(passphraseEnv, "rm-pw")

		_, _, err := runCredsCmd(t, home, "", "creds", "rm", "ghost")
		require.Error(t, err)
		assert.ErrorIs(t, err, credstore.ErrNotFound)
	})

	t.Run("value is read from stdin when the flag is omitted", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv(passphraseEnv, "stdin-pw")

		_, _, err := runCredsCmd(t, home, "tok-from-stdin\n", "creds", "set", "petstore")
		require.NoError(t, err)

		out, _, err := runCredsCmd(t, home, "", "creds", "export")
		require.NoError(t, err)
		assert.Contains(t, out, "SPECFORGE_CRED_PETSTORE=tok-from-stdin")
	})

	t.Run("passphrase falls back to stdin when the env is unset", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv(passphraseEnv, "")

		_, _, err := runCredsCmd(t, home, "line-pw\nline-value\n", "creds", "set", "petstore")
		require.NoError(t, err)

		t.Setenv(passphraseEnv, "line-pw")
		out, _, err := runCredsCmd(t, home, "", "creds", "export")
		require.NoError(t, err)
		assert.Contains(t, out, "SPECFORGE_CRED_PETSTORE=line-value")
	})

	t.Run("wrong passphrase cannot unlock the store", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv(passphraseEnv, "right-pw")

		_, _, err := runCredsCmd(t, home, "", "creds", "set", "petstore", "--value", "tok-123")
		require.NoError(t, err)

		t.Setenv(passphraseEnv, "wrong-pw")
		_, _, err = runCredsCmd(t, home, "", "creds", "list")
		require.Error(t, err)
		assert.ErrorIs(t, err, credstore.ErrWrongPassphrase)
	})

	t.Run("export writes a restricted env file", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv(passphraseEnv, "file-pw")

		_, _, err := runCredsCmd(t, home, "", "creds", "set", "petstore", "--value", "tok-123")
		require.NoError(t, err)

		envPath := filepath.Join(t.TempDir(), "creds.env")
		out, _, err := runCredsCmd(t, home, "", "creds", "export", "--out", envPath)
		require.NoError(t, err)
		assert.Contains(t, out, envPath)

		data, err := os.ReadFile(envPath)
		require.NoError(t, err)
		assert.Equal(t, "SPECFORGE_CRED_PETSTORE=tok-123\n", string(data))

		if runtime.GOOS != "windows" {
			info, err := os.Stat(envPath)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
		}
	})
}

func TestReadSecret(t *testing.T) {
	t.Run("empty piped input errors", func(t *testing.T) {
		cmd, _, _ := newTestRootCmd(t)
		cmd.SetIn(strings.NewReader("\n"))

		_, err := readSecret(cmd, bufio.NewReader(cmd.InOrStdin()), "Value")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "value cannot be empty")
	})

	t.Run("trims the line ending", func(t *testing.T) {
		cmd, _, _ := newTestRootCmd(t)
		cmd.SetIn(strings.NewReader("secret\r\n"))

		got, err := readSecret(cmd, bufio.NewReader(cmd.InOrStdin()), "Value")
		require.NoError(t, err)
		assert.Equal(t, "secret", got)
	})

	t.Run("last line without a newline still reads", func(t *testing.T) {
		cmd, _, _ := newTestRootCmd(t)
		cmd.SetIn(strings.NewReader("secret"))

		got, err := readSecret(cmd, bufio.NewReader(cmd.InOrStdin()), "Value")
		require.NoError(t, err)
		assert.Equal(t, "secret", got)
	})
}
