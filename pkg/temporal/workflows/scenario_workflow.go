package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"dev/bravebird/pagecheck/pkg/models"
	"dev/bravebird/pagecheck/pkg/scenario"
	"dev/bravebird/pagecheck/pkg/verify"
)

// ProgressQuery returns the ScenarioResult built so far
const ProgressQuery = "getProgress"

const (
	sessionBudget = 2 * time.Minute
	minStepBudget = time.Minute
)

// ScenarioWorkflow opens a session, runs each step as its own activity and
// closes the session. Steps are never retried: a failed action may already
// have changed the page. The first failure skips the remaining steps.
func ScenarioWorkflow(ctx workflow.Context, input models.ScenarioInput) (models.ScenarioResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting scenario workflow", "runID", input.RunID, "scenario", input.Scenario)

	result := models.ScenarioResult{
		RunID:    input.RunID,
		Scenario: input.Scenario,
		Status:   models.StatusRunning,
	}

	// Register query handler for real-time progress
	err := workflow.SetQueryHandler(ctx, ProgressQuery, func() (models.ScenarioResult, error) {
		return result, nil
	})
	if err != nil {
		logger.Error("Failed to register query handler", "error", err)
	}

	startTime := workflow.Now(ctx)
	finish := func() {
		result.TotalDuration = workflow.Now(ctx).Sub(startTime).Milliseconds()
		record(ctx, result)
		logger.Info("Scenario workflow completed", "status", result.Status, "duration", result.TotalDuration)
	}

	sc, err := scenario.Parse(input.Source)
	if err != nil {
		result.Status = models.StatusFailed
		result.ErrorMessage = err.Error()
		finish()
		return result, nil
	}
	result.Scenario = sc.Name
	result.Steps = make([]models.StepResult, len(sc.Steps))
	for i, s := range sc.Steps {
		result.Steps[i] = models.StepResult{RunID: input.RunID, Index: i, Op: s.Op, Status: models.StatusPending}
	}

	sessionCtx := workflow.WithActivityOptions(ctx, activityOptions(sessionBudget))
	var sess SessionInfo
	err = workflow.ExecuteActivity(sessionCtx, "OpenSessionActivity", SessionInput{
		RunID:      input.RunID,
		Scenario:   sc.Name,
		URL:        sc.URL,
		StorageKey: sc.StorageKey,
		Timeout:    sc.Timeout,
	}).Get(ctx, &sess)
	if err != nil {
		result.Status = models.StatusFailed
		result.ErrorMessage = "Failed to open session: " + err.Error()
		skipFrom(&result, 0)
		finish()
		return result, nil
	}

	defer func() {
		// the workflow context may already be canceled
		closeCtx, _ := workflow.NewDisconnectedContext(sessionCtx)
		if err := workflow.ExecuteActivity(closeCtx, "CloseSessionActivity", sess.SessionID).Get(closeCtx, nil); err != nil {
			logger.Warn("Failed to close session", "sessionID", sess.SessionID, "error", err)
		}
	}()

	for i, s := range sc.Steps {
		logger.Info("Running step", "index", i, "op", s.Op)
		result.Steps[i].Status = models.StatusRunning

		stepCtx := workflow.WithActivityOptions(ctx, activityOptions(stepBudget(s.Timeout, sc.Timeout)))
		var sr models.StepResult
		err := workflow.ExecuteActivity(stepCtx, "RunStepActivity", StepInput{
			SessionID: sess.SessionID,
			Index:     i,
			Step:      s,
		}).Get(ctx, &sr)

		if err != nil {
			status := models.StatusFailed
			if temporal.IsCanceledError(err) || ctx.Err() != nil {
				status = models.StatusCanceled
			}
			sr = models.StepResult{Index: i, Op: s.Op, Status: status, ErrorMessage: err.Error()}
		}
		sr.RunID = input.RunID
		result.Steps[i] = sr

		if sr.Status == models.StatusSuccess {
			continue
		}

		result.Status = sr.Status
		result.ErrorMessage = fmt.Sprintf("step %d (%s): %s", i, s.Op, sr.ErrorMessage)
		if sr.Status == models.StatusFailed {
			result.Steps[i].ScreenshotPath = capture(sessionCtx, sess.SessionID, fmt.Sprintf("%s_%d_failure.png", input.RunID, i))
		}
		skipFrom(&result, i+1)
		break
	}

	if result.Status == models.StatusRunning {
		result.Status = models.StatusSuccess
	}
	if result.Status == models.StatusCanceled {
		disconnected, _ := workflow.NewDisconnectedContext(ctx)
		result.TotalDuration = workflow.Now(ctx).Sub(startTime).Milliseconds()
		record(disconnected, result)
		return result, temporal.NewCanceledError()
	}
	finish()
	return result, nil
}

// SessionInput is the input for OpenSessionActivity
type SessionInput struct {
	RunID      string        `json:"run_id"`
	Scenario   string        `json:"scenario"`
	URL        string        `json:"url,omitempty"`
	StorageKey string        `json:"storage_key,omitempty"`
	Timeout    time.Duration `json:"timeout,omitempty"`
}

// SessionInfo identifies an open session on the worker
type SessionInfo struct {
	SessionID string `json:"session_id"`
	Backend   string `json:"backend"`
}

// StepInput is the input for RunStepActivity
type StepInput struct {
	SessionID string        `json:"session_id"`
	Index     int           `json:"index"`
	Step      scenario.Step `json:"step"`
}

// ScreenshotInput is the input for CaptureFailureActivity
type ScreenshotInput struct {
	SessionID string `json:"session_id"`
	Filename  string `json:"filename"`
}

// RecordInput is the input for RecordResultActivity
type RecordInput struct {
	Result models.ScenarioResult `json:"result"`
}

func activityOptions(budget time.Duration) workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: budget,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
}

// stepBudget leaves room for a step that performs several actions and
// checks, each polling up to the check timeout.
func stepBudget(timeouts ...time.Duration) time.Duration {
	t := verify.DefaultTimeout
	for _, d := range timeouts {
		if d > 0 {
			t = d
			break
		}
	}
	if b := 3*t + 30*time.Second; b > minStepBudget {
		return b
	}
	return minStepBudget
}

func skipFrom(result *models.ScenarioResult, from int) {
	for j := from; j < len(result.Steps); j++ {
		result.Steps[j].Status = models.StatusSkipped
	}
}

func capture(ctx workflow.Context, sessionID, filename string) string {
	var path string
	err := workflow.ExecuteActivity(ctx, "CaptureFailureActivity", ScreenshotInput{
		SessionID: sessionID,
		Filename:  filename,
	}).Get(ctx, &path)
	if err != nil {
		workflow.GetLogger(ctx).Warn("Failed to capture screenshot", "error", err)
	}
	return path
}

func record(ctx workflow.Context, result models.ScenarioResult) {
	ctx = workflow.WithActivityOptions(ctx, activityOptions(30*time.Second))
	if err := workflow.ExecuteActivity(ctx, "RecordResultActivity", RecordInput{Result: result}).Get(ctx, nil); err != nil {
		workflow.GetLogger(ctx).Warn("Failed to record result", "runID", result.RunID, "error", err)
	}
}
