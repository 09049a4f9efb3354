package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "davsync.yaml")
	yaml := `
webdav_url: "http://example.com/webdav"
username: "user"
password: "pass"
roots:
  - local: "` + filepath.Join(dir, "photos") + `"
    remote: "phone/photos"
  - local: "` + filepath.Join(dir, "docs") + `"
    remote: "phone/docs"
timeout: 5s
max_concurrency: 2
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://example.com/webdav", cfg.WebDAVURL)
	assert.Equal(t, "user", cfg.Username)
	assert.Equal(t, "pass", cfg.Password)
	assert.Len(t, cfg.Roots, 2)
	assert.Equal(t, "phone/photos", cfg.Roots[0].Remote)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 2, cfg.MaxConcurrency)
	assert.Equal(t, path, cfg.Path)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFromString(`
webdav_url: "http://example.com/webdav"
roots:
  - local: "/data/photos"
    remote: "photos"
`)
	require.NoError(t, err)

	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultMaxConcurrency, cfg.MaxConcurrency)
	assert.Equal(t, DefaultStorePath, cfg.StorePath)
	assert.False(t, cfg.VerifyRemote)
}

func TestLoadMissingWebdavURL(t *testing.T) {
	_, err := LoadFromString(`
roots:
  - local: "/data/photos"
    remote: "photos"
`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigInvalid)
	assert.Contains(t, err.Error(), "webdav_url")
}

func TestLoadEmptyRoots(t *testing.T) {
	_, err := LoadFromString(`
webdav_url: "http://example.com/webdav"
roots: []
`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigInvalid)
	assert.Contains(t, err.Error(), "roots")
}

func TestLoadOverlappingLocalRoots(t *testing.T) {
	_, err := LoadFromString(`
webdav_url: "http://example.com/webdav"
roots:
  - local: "/data"
    remote: "a"
  - local: "/data/photos"
    remote: "b"
`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigInvalid)
	assert.Contains(t, err.Error(), "overlap")
}

func TestLoadDuplicateRemoteBase(t *testing.T) {
	_, err := LoadFromString(`
webdav_url: "http://example.com/webdav"
roots:
  - local: "/data/a"
    remote: "same"
  - local: "/data/b"
    remote: "same/"
`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "davsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roots: [::bad"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestEnvPasswordOverride(t *testing.T) {
	t.Setenv("DAVSYNC_PASSWORD", "secret-from-env")

	dir := t.TempDir()
	path := filepath.Join(dir, "davsync.yaml")
	yaml := `
webdav_url: "http://example.com/webdav"
username: "user"
roots:
  - local: "/data/photos"
    remote: "photos"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-from-env", cfg.Password)
}

func TestEnvOverridesBeyondCredentials(t *testing.T) {
	t.Setenv("DAVSYNC_MAX_CONCURRENCY", "8")
	t.Setenv("DAVSYNC_TIMEOUT", "90s")
	t.Setenv("DAVSYNC_VERIFY_REMOTE", "true")

	dir := t.TempDir()
	path := filepath.Join(dir, "davsync.yaml")
	yaml := `
webdav_url: "http://example.com/webdav"
roots:
  - local: "/data/photos"
    remote: "photos"
max_concurrency: 2
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.MaxConcurrency)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.True(t, cfg.VerifyRemote)
}

func TestSyncRootID(t *testing.T) {
	r := SyncRoot{Local: "/data", Remote: "/phone/photos/"}
	assert.Equal(t, "phone/photos", r.ID())
}
