package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev/bravebird/pagecheck/pkg/session"
)

func TestLoad_Defaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "rod", cfg.Browser.Backend)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 5*time.Second, cfg.Verify.Timeout)
	assert.Equal(t, "react-todos", cfg.Todo.StorageKey)
	assert.Equal(t, "localhost:7233", cfg.Temporal.Host)
	assert.Equal(t, "8080", cfg.API.Port)
	assert.Equal(t, "/tmp/screenshots", cfg.Screenshots.Dir)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagecheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
browser:
  backend: memory
verify:
  timeout: 2s
memory:
  render_lag: 10ms
api:
  port: "9000"
`), 0o644))

	t.Setenv("PORT", "9100")
	t.Setenv("PAGECHECK_TEMPORAL_TASK_QUEUE", "checks")
	t.Setenv("TEMPORAL_HOST", "temporal:7233")
	t.Setenv("SCREENSHOT_DIR", "/var/lib/pagecheck/shots")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Verify.Timeout)
	assert.Equal(t, "9100", cfg.API.Port)
	assert.Equal(t, "checks", cfg.Temporal.TaskQueue)
	assert.Equal(t, "temporal:7233", cfg.Temporal.Host)
	assert.Equal(t, "/var/lib/pagecheck/shots", cfg.Screenshots.Dir)

	sc := cfg.SessionConfig()
	assert.Equal(t, session.BackendMemory, sc.Backend)
	assert.Equal(t, 10*time.Millisecond, sc.RenderLag)
	assert.Len(t, cfg.VerifyOptions(), 2)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("browser:\n  backend: lynx\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "browser.backend")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading config")
}
