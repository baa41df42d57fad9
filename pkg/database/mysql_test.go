package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev/bravebird/pagecheck/pkg/models"
)

// openTestDB connects to PAGECHECK_TEST_MYSQL_DSN or skips
func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("PAGECHECK_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("PAGECHECK_TEST_MYSQL_DSN not set")
	}
	db, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	run := &models.ScenarioRun{
		ID:       uuid.New().String(),
		Scenario: "new_todo",
		Backend:  "memory",
		Status:   models.StatusPending,
	}
	require.NoError(t, db.CreateRun(ctx, run))

	run.TemporalWorkflowID = "pagecheck-" + run.ID
	run.Status = models.StatusRunning
	run.StartedAt = &now
	require.NoError(t, db.CreateRun(ctx, run))

	got, err := db.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.StatusRunning, got.Status)
	assert.Equal(t, run.TemporalWorkflowID, got.TemporalWorkflowID)
	assert.Nil(t, got.CompletedAt)

	steps := []models.StepResult{
		{Index: 0, Op: "goto", Status: models.StatusSuccess, Duration: 12},
		{Index: 1, Op: "expect_titles", Status: models.StatusFailed, ErrorMessage: "timed out"},
	}
	require.NoError(t, db.SaveStepResults(ctx, run.ID, steps))
	require.NoError(t, db.SaveStepResults(ctx, run.ID, steps))
	require.NoError(t, db.UpdateRunStatus(ctx, run.ID, models.StatusFailed, "step 1 (expect_titles): timed out"))

	got, err = db.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.NotNil(t, got.CompletedAt)

	results, err := db.GetStepResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "expect_titles", results[1].Op)
	assert.Equal(t, "timed out", results[1].ErrorMessage)

	runs, err := db.ListRuns(ctx, "new_todo", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, runs)
}

func TestGetRun_Missing(t *testing.T) {
	db := openTestDB(t)
	got, err := db.GetRun(context.Background(), uuid.New().String())
	require.NoError(t, err)
	assert.Nil(t, got)
}
