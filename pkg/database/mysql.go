package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dev/bravebird/pagecheck/pkg/models"

	_ "github.com/go-sql-driver/mysql"
)

// DB represents the database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection
func New(dsn string) (*DB, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS scenario_runs (
		id                   VARCHAR(36)  NOT NULL PRIMARY KEY,
		scenario             VARCHAR(255) NOT NULL,
		backend              VARCHAR(32)  NOT NULL DEFAULT '',
		temporal_workflow_id VARCHAR(255) NOT NULL DEFAULT '',
		temporal_run_id      VARCHAR(255) NOT NULL DEFAULT '',
		status               VARCHAR(32)  NOT NULL,
		started_at           DATETIME     NULL,
		completed_at         DATETIME     NULL,
		error_message        TEXT         NULL,
		created_at           DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_scenario_runs_scenario (scenario),
		INDEX idx_scenario_runs_created (created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS step_results (
		run_id          VARCHAR(36)  NOT NULL,
		step_index      INT          NOT NULL,
		op              VARCHAR(64)  NOT NULL,
		status          VARCHAR(32)  NOT NULL,
		error_message   TEXT         NULL,
		duration_ms     BIGINT       NOT NULL DEFAULT 0,
		screenshot_path VARCHAR(512) NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, step_index),
		CONSTRAINT fk_step_results_run FOREIGN KEY (run_id) REFERENCES scenario_runs (id) ON DELETE CASCADE
	)`,
}

// Migrate creates the tables when they do not exist
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}

// ==================== Scenario Runs ====================

const runColumns = `id, scenario, backend, temporal_workflow_id, temporal_run_id, status,
		       started_at, completed_at, error_message`

// CreateRun inserts a run, or updates its Temporal ids and status when it
// already exists
func (db *DB) CreateRun(ctx context.Context, run *models.ScenarioRun) error {
	query := `
		INSERT INTO scenario_runs (id, scenario, backend, temporal_workflow_id, temporal_run_id, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			temporal_workflow_id = VALUES(temporal_workflow_id),
			temporal_run_id = VALUES(temporal_run_id),
			status = VALUES(status),
			started_at = VALUES(started_at)
	`

	_, err := db.conn.ExecContext(ctx, query,
		run.ID,
		run.Scenario,
		run.Backend,
		run.TemporalWorkflowID,
		run.TemporalRunID,
		run.Status,
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*models.ScenarioRun, error) {
	var (
		run    models.ScenarioRun
		errMsg sql.NullString
	)
	err := row.Scan(
		&run.ID,
		&run.Scenario,
		&run.Backend,
		&run.TemporalWorkflowID,
		&run.TemporalRunID,
		&run.Status,
		&run.StartedAt,
		&run.CompletedAt,
		&errMsg,
	)
	if err != nil {
		return nil, err
	}
	run.ErrorMessage = errMsg.String
	return &run, nil
}

// GetRun retrieves a run by ID. It returns nil, nil when the run does not
// exist.
func (db *DB) GetRun(ctx context.Context, id string) (*models.ScenarioRun, error) {
	query := `SELECT ` + runColumns + ` FROM scenario_runs WHERE id = ?`

	run, err := scanRun(db.conn.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves the most recent runs, newest first. An empty scenario
// lists runs of every scenario.
func (db *DB) ListRuns(ctx context.Context, scenario string, limit int) ([]models.ScenarioRun, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + runColumns + ` FROM scenario_runs
		WHERE (? = '' OR scenario = ?)
		ORDER BY created_at DESC
		LIMIT ?`

	rows, err := db.conn.QueryContext(ctx, query, scenario, scenario, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []models.ScenarioRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// UpdateRunStatus updates the status of a run. Terminal statuses stamp
// completed_at.
func (db *DB) UpdateRunStatus(ctx context.Context, id string, status models.RunStatus, errorMsg string) error {
	query := `
		UPDATE scenario_runs
		SET status = ?, error_message = ?,
		    completed_at = CASE WHEN ? IN ('success', 'failed', 'canceled') THEN NOW() ELSE completed_at END
		WHERE id = ?
	`

	_, err := db.conn.ExecContext(ctx, query, status, errorMsg, status, id)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// ==================== Step Results ====================

// SaveStepResults replaces the step results of a run
func (db *DB) SaveStepResults(ctx context.Context, runID string, results []models.StepResult) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM step_results WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to clear step results: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO step_results (run_id, step_index, op, status, error_message, duration_ms, screenshot_path)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		_, err := stmt.ExecContext(ctx,
			runID,
			r.Index,
			r.Op,
			r.Status,
			r.ErrorMessage,
			r.Duration,
			r.ScreenshotPath,
		)
		if err != nil {
			return fmt.Errorf("failed to insert step %d: %w", r.Index, err)
		}
	}

	return tx.Commit()
}

// GetStepResults retrieves the step results of a run in step order
func (db *DB) GetStepResults(ctx context.Context, runID string) ([]models.StepResult, error) {
	query := `
		SELECT run_id, step_index, op, status, error_message, duration_ms, screenshot_path
		FROM step_results
		WHERE run_id = ?
		ORDER BY step_index
	`

	rows, err := db.conn.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}
	defer rows.Close()

	results := []models.StepResult{}
	for rows.Next() {
		var (
			result models.StepResult
			errMsg sql.NullString
		)
		err := rows.Scan(
			&result.RunID,
			&result.Index,
			&result.Op,
			&result.Status,
			&errMsg,
			&result.Duration,
			&result.ScreenshotPath,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		result.ErrorMessage = errMsg.String
		results = append(results, result)
	}
	return results, rows.Err()
}
