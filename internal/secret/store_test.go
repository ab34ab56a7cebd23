package secret

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, username string) *Store {
	t.Helper()
	dir := t.TempDir()
	return &Store{
		Path:        filepath.Join(dir, "smtp.cred"),
		KeyPath:     filepath.Join(dir, "keys", "secret.key"),
		currentUser: func() (string, error) { return username, nil },
	}
}

func TestSaveAndLoad(t *testing.T) {
	s := newTestStore(t, "svc-onboard")
	creds := Credentials{Username: "relay@acme.example", Password: "p@ss word"}

	require.NoError(t, s.Save(creds))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, creds, got)

	for _, p := range []string{s.Path, s.KeyPath} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), p)
	}

	raw, err := os.ReadFile(s.Path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "p@ss word")
}

func TestLoadMissing(t *testing.T) {
	s := newTestStore(t, "svc-onboard")

	_, err := s.Load()
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLoadByAnotherUserFails(t *testing.T) {
	s := newTestStore(t, "svc-onboard")
	require.NoError(t, s.Save(Credentials{Username: "relay", Password: "secret"}))

	s.currentUser = func() (string, error) { return "mallory", nil }
	_, err := s.Load()
	assert.True(t, errors.Is(err, ErrDecrypt))
}

func TestLoadWithoutKeyFileFails(t *testing.T) {
	s := newTestStore(t, "svc-onboard")
	require.NoError(t, s.Save(Credentials{Username: "relay", Password: "secret"}))
	require.NoError(t, os.Remove(s.KeyPath))

	_, err := s.Load()
	assert.True(t, errors.Is(err, ErrDecrypt))
}

func TestLoadTamperedFile(t *testing.T) {
	s := newTestStore(t, "svc-onboard")
	require.NoError(t, s.Save(Credentials{Username: "relay", Password: "secret"}))

	raw, err := os.ReadFile(s.Path)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	env.Box[len(env.Box)-1] ^= 0xff
	raw, err = json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path, raw, 0o600))

	_, err = s.Load()
	assert.True(t, errors.Is(err, ErrDecrypt))
}

func TestLoadMalformedFile(t *testing.T) {
	s := newTestStore(t, "svc-onboard")
	require.NoError(t, os.WriteFile(s.Path, []byte("not json"), 0o600))

	_, err := s.Load()
	assert.True(t, errors.Is(err, ErrDecrypt))
}

func TestSaveReusesKeyFile(t *testing.T) {
	s := newTestStore(t, "svc-onboard")
	require.NoError(t, s.Save(Credentials{Username: "a", Password: "1"}))
	key1, err := os.ReadFile(s.KeyPath)
	require.NoError(t, err)

	require.NoError(t, s.Save(Credentials{Username: "b", Password: "2"}))
	key2, err := os.ReadFile(s.KeyPath)
	require.NoError(t, err)
	assert.Equal(t, key1, key2)

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "b", got.Username)
}
