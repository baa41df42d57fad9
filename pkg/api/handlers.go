package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"dev/bravebird/pagecheck/pkg/models"
	"dev/bravebird/pagecheck/pkg/scenario"
	"dev/bravebird/pagecheck/pkg/temporal/workflows"
)

// Store is the run persistence the handlers need. *database.DB implements it.
type Store interface {
	CreateRun(ctx context.Context, run *models.ScenarioRun) error
	GetRun(ctx context.Context, id string) (*models.ScenarioRun, error)
	ListRuns(ctx context.Context, scenario string, limit int) ([]models.ScenarioRun, error)
	UpdateRunStatus(ctx context.Context, id string, status models.RunStatus, errorMsg string) error
	GetStepResults(ctx context.Context, runID string) ([]models.StepResult, error)
}

// Options configures the handlers
type Options struct {
	TaskQueue     string
	Backend       string
	PollInterval  time.Duration
	ScreenshotDir string
	Logger        *zap.Logger
}

// Handlers contains API handlers
type Handlers struct {
	db             Store
	temporalClient client.Client
	scenarios      map[string]*scenario.Scenario
	opts           Options
	logger         *zap.Logger
	upgrader       websocket.Upgrader
}

// NewHandlers creates new API handlers. db may be nil, in which case run
// endpoints answer 503.
func NewHandlers(db Store, temporalClient client.Client, scenarios map[string]*scenario.Scenario, opts Options) *Handlers {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.ScreenshotDir == "" {
		opts.ScreenshotDir = "/tmp/screenshots"
	}
	return &Handlers{
		db:             db,
		temporalClient: temporalClient,
		scenarios:      scenarios,
		opts:           opts,
		logger:         opts.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router wires every route behind CORS
func (h *Handlers) Router() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	apiRouter := router.PathPrefix("/api").Subrouter()

	// Scenarios
	apiRouter.HandleFunc("/scenarios", h.ListScenarios).Methods("GET")
	apiRouter.HandleFunc("/scenarios/{name}/run", h.RunScenario).Methods("POST")

	// Runs
	apiRouter.HandleFunc("/runs", h.ListRuns).Methods("GET")
	apiRouter.HandleFunc("/runs/{id}", h.GetRun).Methods("GET")
	apiRouter.HandleFunc("/runs/{id}/cancel", h.CancelRun).Methods("POST")

	// WebSocket for real-time updates
	apiRouter.HandleFunc("/runs/{id}/stream", h.StreamRunUpdates).Methods("GET")

	// Failure screenshots
	apiRouter.HandleFunc("/screenshots/{filename}", h.ServeScreenshot).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(router)
}

// WorkflowID is the Temporal workflow id used for a run
func WorkflowID(runID string) string {
	return "pagecheck-" + runID
}

// ==================== Scenario Handlers ====================

type scenarioSummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Steps       int    `json:"steps"`
}

// ListScenarios lists the loaded scenarios by name
func (h *Handlers) ListScenarios(w http.ResponseWriter, r *http.Request) {
	out := make([]scenarioSummary, 0, len(h.scenarios))
	for _, sc := range h.scenarios {
		out = append(out, scenarioSummary{Name: sc.Name, Description: sc.Description, Steps: len(sc.Steps)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	respondJSON(w, http.StatusOK, out)
}

// RunScenario records a run and starts its workflow
func (h *Handlers) RunScenario(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := mux.Vars(r)["name"]

	sc, ok := h.scenarios[name]
	if !ok {
		http.Error(w, "Scenario not found", http.StatusNotFound)
		return
	}
	if h.db == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	runID := uuid.New().String()
	run := &models.ScenarioRun{
		ID:       runID,
		Scenario: sc.Name,
		Backend:  h.opts.Backend,
		Status:   models.StatusPending,
	}
	if err := h.db.CreateRun(ctx, run); err != nil {
		http.Error(w, "Failed to create run: "+err.Error(), http.StatusInternalServerError)
		return
	}

	input := models.ScenarioInput{
		RunID:    runID,
		Scenario: sc.Name,
		Source:   sc.Source,
		Backend:  h.opts.Backend,
	}
	workflowOptions := client.StartWorkflowOptions{
		ID:        WorkflowID(runID),
		TaskQueue: h.opts.TaskQueue,
	}

	we, err := h.temporalClient.ExecuteWorkflow(ctx, workflowOptions, workflows.ScenarioWorkflow, input)
	if err != nil {
		h.db.UpdateRunStatus(ctx, runID, models.StatusFailed, err.Error())
		http.Error(w, "Failed to start workflow: "+err.Error(), http.StatusInternalServerError)
		return
	}

	now := time.Now()
	run.TemporalWorkflowID = we.GetID()
	run.TemporalRunID = we.GetRunID()
	run.Status = models.StatusRunning
	run.StartedAt = &now
	if err := h.db.CreateRun(ctx, run); err != nil {
		h.logger.Warn("failed to record workflow ids", zap.String("run", runID), zap.Error(err))
	}

	h.logger.Info("scenario started", zap.String("scenario", sc.Name), zap.String("run", runID))
	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"run_id":               runID,
		"temporal_workflow_id": we.GetID(),
		"temporal_run_id":      we.GetRunID(),
		"status":               models.StatusRunning,
	})
}

// ==================== Run Handlers ====================

// ListRuns lists recent runs, optionally for one scenario
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.db.ListRuns(r.Context(), r.URL.Query().Get("scenario"), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, runs)
}

// GetRun retrieves a run with its step results
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	if h.db == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	run, err := h.db.GetRun(ctx, id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	steps, err := h.db.GetStepResults(ctx, id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	run.Steps = steps
	respondJSON(w, http.StatusOK, run)
}

// CancelRun cancels a running workflow
func (h *Handlers) CancelRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	if h.db == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	run, err := h.db.GetRun(ctx, id)
	if err != nil || run == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if run.Status.Terminal() {
		http.Error(w, "Run already finished", http.StatusConflict)
		return
	}

	if run.TemporalWorkflowID != "" {
		if err := h.temporalClient.CancelWorkflow(ctx, run.TemporalWorkflowID, run.TemporalRunID); err != nil {
			http.Error(w, "Failed to cancel workflow: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	if err := h.db.UpdateRunStatus(ctx, id, models.StatusCanceled, "Cancelled by user"); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(models.StatusCanceled)})
}

// StreamRunUpdates streams run progress via WebSocket until the run ends
func (h *Handlers) StreamRunUpdates(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// A hijacked connection does not cancel r.Context when the client goes
	// away; only a failed read tells us.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.opts.PollInterval)
	defer ticker.Stop()

	lastStatus := models.RunStatus("")
	lastDone := -1

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, steps, ok := h.progress(ctx, runID)
			if !ok {
				continue
			}

			done := 0
			for _, s := range steps {
				if s.Status != models.StatusPending && s.Status != models.StatusRunning {
					done++
				}
			}
			if status == lastStatus && done == lastDone {
				continue
			}

			msg := models.WSMessage{
				Type: "run_update",
				Payload: map[string]interface{}{
					"run_id": runID,
					"status": status,
					"steps":  steps,
				},
			}
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("stream closed", zap.String("run", runID), zap.Error(err))
				return
			}
			lastStatus, lastDone = status, done

			if status.Terminal() {
				return
			}
		}
	}
}

// progress asks the workflow first and falls back to the store
func (h *Handlers) progress(ctx context.Context, runID string) (models.RunStatus, []models.StepResult, bool) {
	if h.temporalClient != nil {
		resp, err := h.temporalClient.QueryWorkflow(ctx, WorkflowID(runID), "", workflows.ProgressQuery)
		if err == nil {
			var result models.ScenarioResult
			if resp.Get(&result) == nil && result.Status != "" {
				return result.Status, result.Steps, true
			}
		}
	}

	if h.db == nil {
		return "", nil, false
	}
	run, err := h.db.GetRun(ctx, runID)
	if err != nil || run == nil {
		return "", nil, false
	}
	steps, _ := h.db.GetStepResults(ctx, runID)
	return run.Status, steps, true
}

// ServeScreenshot serves a failure screenshot file
func (h *Handlers) ServeScreenshot(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]

	// Only files directly inside the screenshots directory
	filePath := filepath.Join(h.opts.ScreenshotDir, filepath.Base(filename))

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.Error(w, "Screenshot not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, filePath)
}

// ==================== Helpers ====================

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
