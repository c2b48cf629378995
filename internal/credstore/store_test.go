package credstore

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testWorkFactor keeps scrypt rounds cheap so sealing round-trips stay fast.
const testWorkFactor = 10

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "credentials.age"))
	s.workFactor = testWorkFactor
	return s
}

func TestStore_SetAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "hunter2", "petstore", "tok-123"))

	cred, err := s.Get(ctx, "hunter2", "petstore")
	require.NoError(t, err)
	assert.Equal(t, "petstore", cred.Name)
	assert.Equal(t, "tok-123", cred.Value)
	assert.False(t, cred.UpdatedAt.IsZero())
}

func TestStore_SetReplacesExisting(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "hunter2", "petstore", "old"))
	require.NoError(t, s.Set(ctx, "hunter2", "petstore", "new"))

	cred, err := s.Get(ctx, "hunter2", "petstore")
	require.NoError(t, err)
	assert.Equal(t, "new", cred.Value)

	creds, err := s.List(ctx, "hunter2")
	require.NoError(t, err)
	assert.Len(t, creds, 1)
}

func TestStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "credentials.age")

	first := New(path)
	first.workFactor = testWorkFactor
	require.NoError(t, first.Set(ctx, "hunter2", "admin", "s3cret"))

	second := New(path)
	second.workFactor = testWorkFactor
	cred, err := second.Get(ctx, "hunter2", "admin")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cred.Value)
}

func TestStore_GetMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "hunter2", "petstore", "tok-123"))

	_, err := s.Get(ctx, "hunter2", "billing")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "billing")
}

func TestStore_ListEmptyWhenFileAbsent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	creds, err := s.List(ctx, "hunter2")
	require.NoError(t, err)
	assert.Empty(t, creds)

	_, statErr := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(statErr), "read-only operations must not create the store file")
}

func TestStore_ListSortedByName(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "hunter2", "zeta", "3"))
	require.NoError(t, s.Set(ctx, "hunter2", "alpha", "1"))
	require.NoError(t, s.Set(ctx, "hunter2", "mid", "2"))

	creds, err := s.List(ctx, "hunter2")
	require.NoError(t, err)
	require.Len(t, creds, 3)
	assert.Equal(t, "alpha", creds[0].Name)
	assert.Equal(t, "mid", creds[1].Name)
	assert.Equal(t, "zeta", creds[2].Name)
}

func TestStore_Remove(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "hunter2", "petstore", "tok-123"))
	require.NoError(t, s.Set(ctx, "hunter2", "admin", "s3cret"))

	require.NoError(t, s.Remove(ctx, "hunter2", "petstore"))

	_, err := s.Get(ctx, "hunter2", "petstore")
	require.ErrorIs(t, err, ErrNotFound)

	creds, err := s.List(ctx, "hunter2")
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "admin", creds[0].Name)
}

func TestStore_RemoveMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "hunter2", "petstore", "tok-123"))
	require.ErrorIs(t, s.Remove(ctx, "hunter2", "billing"), ErrNotFound)
}

func TestStore_WrongPassphrase(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "hunter2", "petstore", "tok-123"))

	_, err := s.Get(ctx, "wrong", "petstore")
	require.ErrorIs(t, err, ErrWrongPassphrase)
}

func TestStore_GarbageFile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, os.WriteFile(s.Path(), []byte("not an age file"), 0o600))

	_, err := s.List(ctx, "hunter2")
	require.ErrorIs(t, err, ErrWrongPassphrase)
}

func TestStore_SaveLeavesNoTempFile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "hunter2", "petstore", "tok-123"))

	_, err := os.Stat(s.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestStore_Export(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "hunter2", "petstore", "tok-123"))
	require.NoError(t, s.Set(ctx, "hunter2", "admin-key", "s3cret"))

	var buf bytes.Buffer
	require.NoError(t, s.Export(ctx, "hunter2", &buf))

	want := "SPECFORGE_CRED_ADMIN_KEY=s3cret\nSPECFORGE_CRED_PETSTORE=tok-123\n"
	assert.Equal(t, want, buf.String())
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		name     string
		credName string
		want     string
	}{
		{name: "Plain", credName: "petstore", want: "SPECFORGE_CRED_PETSTORE"},
		{name: "Dashes", credName: "admin-key", want: "SPECFORGE_CRED_ADMIN_KEY"},
		{name: "Dots", credName: "billing.v2", want: "SPECFORGE_CRED_BILLING_V2"},
		{name: "AlreadyUpper", credName: "TOKEN_1", want: "SPECFORGE_CRED_TOKEN_1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EnvKey(tc.credName))
		})
	}
}
