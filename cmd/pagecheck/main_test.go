package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev/bravebird/pagecheck/pkg/models"
)

const fastConfig = `
browser:
  backend: memory
memory:
  render_lag: 5ms
  persist_lag: 15ms
verify:
  timeout: 2s
  interval: 2ms
  max_interval: 10ms
log:
  level: error
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfg := filepath.Join(t.TempDir(), "pagecheck.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(fastConfig), 0o644))

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfg}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRun_ShippedScenarios(t *testing.T) {
	out, err := execute(t, "run", "../../scenarios")
	require.NoError(t, err, out)
	assert.Contains(t, out, "PASS new-todo")
	assert.Contains(t, out, "0 failed")
}

func TestRun_JSONAndFailure(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`
name: never_there
timeout: 20ms
steps:
  - op: goto
  - op: expect_titles
    titles: [ghost]
`), 0o644))

	out, err := execute(t, "--format", "json", "run", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 scenarios failed")

	var results []models.ScenarioResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, models.StatusFailed, results[0].Status)
	assert.Equal(t, models.StatusFailed, results[0].Steps[1].Status)
}

func TestRun_RejectsBadBackend(t *testing.T) {
	_, err := execute(t, "run", "--backend", "lynx", "../../scenarios")
	assert.ErrorContains(t, err, "unknown backend")
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate", "../../scenarios/new_todo.yaml", "../../pkg/scenario/testdata/bad_steps.yaml")
	require.Error(t, err)
	assert.Contains(t, out, "ok   ../../scenarios/new_todo.yaml")
	assert.Contains(t, out, "FAIL ../../pkg/scenario/testdata/bad_steps.yaml")
	assert.Contains(t, out, `unknown op "teleport"`)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "ops")
	assert.ErrorContains(t, err, `invalid format "xml"`)
}

func TestOps(t *testing.T) {
	out, err := execute(t, "ops")
	require.NoError(t, err)
	assert.Contains(t, out, "expect_persisted_count\n")
}
