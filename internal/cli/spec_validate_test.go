package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecValidateCommand(t *testing.T) {
	t.Run("accepts a valid document", func(t *testing.T) {
		docPath := writeTestDocument(t, testDocument)

		cmd, out, _ := newTestRootCmd(t, "spec", "validate", docPath)
		require.NoError(t, cmd.Execute())

		assert.Contains(t, out.String(), "is valid")
		assert.Contains(t, out.String(), "Pet Store API")
		assert.Contains(t, out.String(), "3 operations")
	})

	t.Run("lists issues for an invalid document", func(t *testing.T) {
		docPath := writeTestDocument(t, `specVersion: 1.0.0
title: Broken API
operations:
  - id: listPets
    method: GET
    path: pets
`)

		cmd, _, errOut := newTestRootCmd(t, "spec", "validate", docPath)
		err := cmd.Execute()
		require.Error(t, err)

		var exitErr *ExitError
		require.True(t, errors.As(err, &exitErr))
		assert.Equal(t, exitCodeInvalidDocument, exitErr.ExitCode)
		assert.Contains(t, errOut.String(), "operations.0.path")
	})

	t.Run("rejects an unsupported spec version", func(t *testing.T) {
		docPath := writeTestDocument(t, `specVersion: 9.0.0
title: Future API
operations:
  - id: listPets
    method: GET
    path: /pets
`)

		cmd, _, _ := newTestRootCmd(t, "spec", "validate", docPath)
		err := cmd.Execute()
		require.Error(t, err)

		var exitErr *ExitError
		require.True(t, errors.As(err, &exitErr))
		assert.Equal(t, exitCodeInvalidDocument, exitErr.ExitCode)
		assert.Contains(t, err.Error(), "unsupported spec version")
	})

	t.Run("unknown extension is a plain error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "api.toml")
		require.NoError(t, os.WriteFile(path, []byte("title = 'x'"), 0o600))

		cmd, _, _ := newTestRootCmd(t, "spec", "validate", path)
		err := cmd.Execute()
		require.Error(t, err)

		var exitErr *ExitError
		assert.False(t, errors.As(err, &exitErr))
		assert.Contains(t, err.Error(), "unsupported document format")
	})
}
