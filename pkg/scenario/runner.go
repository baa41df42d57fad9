package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dev/bravebird/pagecheck/pkg/document"
	"dev/bravebird/pagecheck/pkg/models"
	"dev/bravebird/pagecheck/pkg/pages"
	"dev/bravebird/pagecheck/pkg/verify"
)

// NewPage builds the TodoPage a scenario runs against
func NewPage(doc document.Handle, sc *Scenario, logger *zap.Logger, opts ...verify.Option) *pages.TodoPage {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sc.Timeout > 0 {
		opts = append(opts, verify.WithTimeout(sc.Timeout))
	}
	return pages.NewTodoPage(doc, sc.URL, sc.StorageKey,
		pages.WithLogger(logger.With(zap.String("scenario", sc.Name))),
		pages.WithVerifyOptions(opts...))
}

// RunStep executes a single step against p
func RunStep(ctx context.Context, p *pages.TodoPage, s Step) error {
	spec, ok := registry[s.Op]
	if !ok {
		return fmt.Errorf("unknown op %q", s.Op)
	}
	if s.Timeout > 0 {
		p = p.With(verify.WithTimeout(s.Timeout))
	}
	return spec.run(ctx, p, s)
}

// Run executes the steps strictly in order. The first failing step ends the
// run; the steps after it are reported as skipped. The returned error is the
// first failure, nil when every step passed.
func Run(ctx context.Context, p *pages.TodoPage, sc *Scenario, logger *zap.Logger) (models.ScenarioResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("scenario", sc.Name))

	result := models.ScenarioResult{
		Scenario: sc.Name,
		Status:   models.StatusSuccess,
		Steps:    make([]models.StepResult, len(sc.Steps)),
	}
	start := time.Now()

	var runErr error
	for i, s := range sc.Steps {
		sr := models.StepResult{Index: i, Op: s.Op, Status: models.StatusSkipped}
		if runErr != nil {
			result.Steps[i] = sr
			continue
		}

		stepStart := time.Now()
		err := RunStep(ctx, p, s)
		sr.Duration = time.Since(stepStart).Milliseconds()

		if err != nil {
			sr.Status = models.StatusFailed
			sr.ErrorMessage = err.Error()
			runErr = fmt.Errorf("step %d (%s): %w", i, s.Op, err)
			result.Status = models.StatusFailed
			if errors.Is(err, context.Canceled) {
				result.Status = models.StatusCanceled
			}
			result.ErrorMessage = runErr.Error()
			logger.Warn("step failed", zap.Int("step", i), zap.String("op", s.Op), zap.Error(err))
		} else {
			sr.Status = models.StatusSuccess
			logger.Debug("step passed", zap.Int("step", i), zap.String("op", s.Op), zap.Int64("duration_ms", sr.Duration))
		}
		result.Steps[i] = sr
	}

	result.TotalDuration = time.Since(start).Milliseconds()
	logger.Info("scenario finished",
		zap.String("status", string(result.Status)),
		zap.Int64("duration_ms", result.TotalDuration))
	return result, runErr
}
