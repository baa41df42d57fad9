package activities

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"dev/bravebird/pagecheck/pkg/models"
	"dev/bravebird/pagecheck/pkg/pages"
	"dev/bravebird/pagecheck/pkg/scenario"
	"dev/bravebird/pagecheck/pkg/session"
	"dev/bravebird/pagecheck/pkg/temporal/workflows"
	"dev/bravebird/pagecheck/pkg/verify"
)

// RunStore persists run outcomes. *database.DB implements it.
type RunStore interface {
	UpdateRunStatus(ctx context.Context, id string, status models.RunStatus, errorMsg string) error
	SaveStepResults(ctx context.Context, runID string, results []models.StepResult) error
}

type screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// Activities holds activity implementations. Sessions live in this worker
// process, so every activity of one scenario must run on the same worker.
type Activities struct {
	Pool          *session.Pool
	Store         RunStore
	ScreenshotDir string
	VerifyOptions []verify.Option
	Logger        *zap.Logger

	// TodoURL and StorageKey fill in what a scenario leaves unset
	TodoURL    string
	StorageKey string

	pages map[string]*pages.TodoPage
	mu    sync.RWMutex
}

// NewActivities creates new activities. store may be nil.
func NewActivities(pool *session.Pool, store RunStore, screenshotDir string, logger *zap.Logger, opts ...verify.Option) *Activities {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Activities{
		Pool:          pool,
		Store:         store,
		ScreenshotDir: screenshotDir,
		VerifyOptions: opts,
		Logger:        logger,
		pages:         make(map[string]*pages.TodoPage),
	}
}

// OpenSessionActivity opens a session and builds the page the steps drive
func (a *Activities) OpenSessionActivity(ctx context.Context, input workflows.SessionInput) (workflows.SessionInfo, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Opening session", "runID", input.RunID, "scenario", input.Scenario)

	s, err := a.Pool.Open(ctx)
	if err != nil {
		return workflows.SessionInfo{}, fmt.Errorf("failed to open session: %w", err)
	}

	sc := &scenario.Scenario{
		Name:       input.Scenario,
		URL:        input.URL,
		StorageKey: input.StorageKey,
		Timeout:    input.Timeout,
	}
	if sc.URL == "" {
		sc.URL = a.TodoURL
	}
	if sc.StorageKey == "" {
		sc.StorageKey = a.StorageKey
	}
	page := scenario.NewPage(s.Handle, sc, a.Logger.With(zap.String("run", input.RunID)), a.VerifyOptions...)

	a.mu.Lock()
	a.pages[s.ID] = page
	a.mu.Unlock()

	logger.Info("Session opened", "sessionID", s.ID)
	return workflows.SessionInfo{SessionID: s.ID, Backend: string(s.Backend)}, nil
}

// RunStepActivity runs one step. A failing check is reported in the result,
// not as an activity error; only cancellation and a lost session are errors.
func (a *Activities) RunStepActivity(ctx context.Context, input workflows.StepInput) (models.StepResult, error) {
	logger := activity.GetLogger(ctx)

	a.mu.RLock()
	page, ok := a.pages[input.SessionID]
	a.mu.RUnlock()
	if !ok {
		return models.StepResult{}, fmt.Errorf("%w: %s", session.ErrNotFound, input.SessionID)
	}

	start := time.Now()
	err := scenario.RunStep(ctx, page, input.Step)
	result := models.StepResult{
		Index:    input.Index,
		Op:       input.Step.Op,
		Status:   models.StatusSuccess,
		Duration: time.Since(start).Milliseconds(),
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return result, err
		}
		result.Status = models.StatusFailed
		result.ErrorMessage = err.Error()
		logger.Warn("Step failed", "index", input.Index, "op", input.Step.Op, "error", err)
		return result, nil
	}

	logger.Info("Step passed", "index", input.Index, "op", input.Step.Op, "duration", result.Duration)
	return result, nil
}

// CaptureFailureActivity saves a screenshot of the session's page. Backends
// that cannot capture return an empty path.
func (a *Activities) CaptureFailureActivity(ctx context.Context, input workflows.ScreenshotInput) (string, error) {
	logger := activity.GetLogger(ctx)

	s, err := a.Pool.Get(input.SessionID)
	if err != nil {
		return "", err
	}
	shooter, ok := s.Handle.(screenshotter)
	if !ok || a.ScreenshotDir == "" {
		return "", nil
	}

	if err := os.MkdirAll(a.ScreenshotDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create screenshot dir: %w", err)
	}
	data, err := shooter.Screenshot(ctx)
	if err != nil {
		return "", err
	}
	path := filepath.Join(a.ScreenshotDir, filepath.Base(input.Filename))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save screenshot: %w", err)
	}

	logger.Info("Screenshot saved", "path", path)
	return path, nil
}

// CloseSessionActivity closes a session
func (a *Activities) CloseSessionActivity(ctx context.Context, sessionID string) error {
	logger := activity.GetLogger(ctx)
	logger.Info("Closing session", "sessionID", sessionID)

	a.mu.Lock()
	delete(a.pages, sessionID)
	a.mu.Unlock()

	if err := a.Pool.Close(sessionID); err != nil && !errors.Is(err, session.ErrNotFound) {
		return err
	}
	return nil
}

// RecordResultActivity stores the final result when a store is configured
func (a *Activities) RecordResultActivity(ctx context.Context, input workflows.RecordInput) error {
	if a.Store == nil || input.Result.RunID == "" {
		return nil
	}
	if len(input.Result.Steps) > 0 {
		if err := a.Store.SaveStepResults(ctx, input.Result.RunID, input.Result.Steps); err != nil {
			return fmt.Errorf("failed to save step results: %w", err)
		}
	}
	return a.Store.UpdateRunStatus(ctx, input.Result.RunID, input.Result.Status, input.Result.ErrorMessage)
}
