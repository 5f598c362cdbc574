package filestore_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/customs-console/sessions"
	"github.com/jrsteele09/customs-console/sessions/filestore"
	"github.com/jrsteele09/customs-console/users"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x5a}, 32)
}

func TestStore_SetGetDelete(t *testing.T) {
	for _, tc := range []struct {
		name string
		key  []byte
	}{
		{name: "plain", key: nil},
		{name: "encrypted", key: testKey()},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "session.json")
			s, err := filestore.New(path, tc.key)
			require.NoError(t, err)

			_, ok, err := s.Get(sessions.KeyAccessToken)
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, s.Set(sessions.KeyAccessToken, "tok-123"))
			require.NoError(t, s.Set(sessions.KeyIsAdmin, "true"))

			v, ok, err := s.Get(sessions.KeyAccessToken)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "tok-123", v)

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			require.Equal(t, tc.key == nil, bytes.Contains(raw, []byte("tok-123")))

			require.NoError(t, s.Delete(sessions.Keys...))
			_, err = os.Stat(path)
			require.True(t, os.IsNotExist(err))

			require.NoError(t, s.Delete(sessions.Keys...))
		})
	}
}

func TestStore_WrongKeyReadsAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s, err := filestore.New(path, testKey())
	require.NoError(t, err)
	require.NoError(t, s.Set(sessions.KeyAccessToken, "tok"))

	other, err := filestore.New(path, bytes.Repeat([]byte{0x01}, 32))
	require.NoError(t, err)
	_, ok, err := other.Get(sessions.KeyAccessToken)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoFileExists(t, path)
}

func TestStore_CorruptFileIsRemoved(t *testing.T) {
	for name, key := range map[string][]byte{"plain": nil, "encrypted": testKey()} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "session.json")
			require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

			s, err := filestore.New(path, key)
			require.NoError(t, err)
			_, ok, err := s.Get(sessions.KeyAccessToken)
			require.NoError(t, err)
			require.False(t, ok)
			require.NoFileExists(t, path)

			require.NoError(t, s.Set(sessions.KeyAccessToken, "tok"))
			got, ok, err := s.Get(sessions.KeyAccessToken)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "tok", got)
		})
	}
}

func TestStore_InvalidKey(t *testing.T) {
	_, err := filestore.New(filepath.Join(t.TempDir(), "s.json"), []byte("short"))
	require.Error(t, err)
	_, err = filestore.New("", nil)
	require.Error(t, err)
}

func TestStore_BacksSessionState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s, err := filestore.New(path, testKey())
	require.NoError(t, err)

	state, err := sessions.NewState(s)
	require.NoError(t, err)
	require.NoError(t, state.SetAuth("tok", &users.User{ID: 1, Email: "op@example.com"}, true))

	reopened, err := filestore.New(path, testKey())
	require.NoError(t, err)
	restored, err := sessions.NewState(reopened)
	require.NoError(t, err)
	require.NoError(t, restored.LoadFromStorage())

	snap := restored.Snapshot()
	require.True(t, snap.IsAuthenticated)
	require.True(t, snap.IsAdmin)
	require.Equal(t, "op@example.com", snap.User.Email)

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))
	corrupt, err := sessions.NewState(reopened)
	require.NoError(t, err)
	require.NoError(t, corrupt.LoadFromStorage())
	require.False(t, corrupt.IsAuthenticated())
}
