package models

import (
	"fmt"
	"strings"
	"time"
)

// ==================== Query Types ====================

// QueryKind selects how a Query matches elements
type QueryKind string

const (
	QueryRole        QueryKind = "role"        // ARIA role, optionally with accessible name
	QueryLabel       QueryKind = "label"       // Associated <label> or aria-label
	QueryPlaceholder QueryKind = "placeholder" // placeholder attribute
	QueryText        QueryKind = "text"        // Text content
	QueryTestID      QueryKind = "testid"      // data-testid attribute
	QueryCSS         QueryKind = "css"         // Raw CSS selector
	// QueryFilter does not descend: it keeps those matches of the previous
	// step whose text contains HasText.
	QueryFilter QueryKind = "filter"
)

// Query describes one lookup step. It carries no reference to a live page.
type Query struct {
	Kind  QueryKind `json:"kind" yaml:"kind"`
	Value string    `json:"value" yaml:"value"`
	// Name is the accessible name for role queries.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// Exact switches name/text matching from case-insensitive substring
	// to exact, case-sensitive equality.
	Exact bool `json:"exact,omitempty" yaml:"exact,omitempty"`
	// HasText keeps only matches whose text content contains this string.
	HasText string `json:"has_text,omitempty" yaml:"has_text,omitempty"`
}

// String renders the query the way it would be written in a test
func (q Query) String() string {
	var sb strings.Builder
	switch q.Kind {
	case QueryRole:
		fmt.Fprintf(&sb, "role=%s", q.Value)
		if q.Name != "" {
			fmt.Fprintf(&sb, "[name=%q", q.Name)
			if q.Exact {
				sb.WriteString("s")
			}
			sb.WriteString("]")
		}
	case QueryCSS:
		sb.WriteString(q.Value)
	case QueryFilter:
		fmt.Fprintf(&sb, "has-text=%q", q.HasText)
		return sb.String()
	default:
		fmt.Fprintf(&sb, "%s=%q", q.Kind, q.Value)
		if q.Exact {
			sb.WriteString("s")
		}
	}
	if q.HasText != "" {
		fmt.Fprintf(&sb, " >> has-text=%q", q.HasText)
	}
	return sb.String()
}

// Step is one query in a Path, optionally narrowed to a single match
type Step struct {
	Query Query `json:"query"`
	// Nth narrows the step to one element; negative counts from the end.
	Nth *int `json:"nth,omitempty"`
}

// Path is an ordered chain of steps. Each step is evaluated inside every
// match of the previous one.
type Path []Step

// String renders the chain joined with " >> "
func (p Path) String() string {
	parts := make([]string, 0, len(p))
	for _, s := range p {
		part := s.Query.String()
		if s.Nth != nil {
			part += fmt.Sprintf(" >> nth=%d", *s.Nth)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " >> ")
}

// With returns a copy of the path with step appended. The receiver is never
// modified so paths can be shared between locators.
func (p Path) With(s Step) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, s)
}

// WithNth returns a copy of the path whose last step is narrowed to index i
func (p Path) WithNth(i int) Path {
	out := make(Path, len(p))
	copy(out, p)
	if len(out) == 0 {
		return out
	}
	idx := i
	out[len(out)-1].Nth = &idx
	return out
}

// ==================== Action Types ====================

// ActionType represents the type of element action
type ActionType string

const (
	ActionFill     ActionType = "fill"     // Replace input value
	ActionClick    ActionType = "click"    // Single click
	ActionDblClick ActionType = "dblclick" // Double click
	ActionCheck    ActionType = "check"    // Ensure checkbox is checked
	ActionUncheck  ActionType = "uncheck"  // Ensure checkbox is unchecked
	ActionPress    ActionType = "press"    // Keyboard key on focused element
	ActionDispatch ActionType = "dispatch" // Dispatch a DOM event by name
	ActionFocus    ActionType = "focus"    // Element focus
	ActionHover    ActionType = "hover"    // Mouse hover
)

// Action is a single primitive performed against one element
type Action struct {
	Type  ActionType `json:"type"`
	Value string     `json:"value,omitempty"`
}

func (a Action) String() string {
	if a.Value == "" {
		return string(a.Type)
	}
	return fmt.Sprintf("%s(%q)", a.Type, a.Value)
}

// ElementState is a point-in-time read of one rendered element
type ElementState struct {
	Tag        string            `json:"tag"`
	Text       string            `json:"text"`
	Class      string            `json:"class"`
	Value      string            `json:"value"`
	Visible    bool              `json:"visible"`
	Checked    bool              `json:"checked"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Classes splits the class attribute into its tokens
func (s ElementState) Classes() []string {
	return strings.Fields(s.Class)
}

// ==================== Scenario Run Types ====================

// RunStatus represents the status of a scenario run or step
type RunStatus string

const (
	StatusPending  RunStatus = "pending"
	StatusRunning  RunStatus = "running"
	StatusSuccess  RunStatus = "success"
	StatusFailed   RunStatus = "failed"
	StatusSkipped  RunStatus = "skipped"
	StatusCanceled RunStatus = "canceled"
)

// Terminal reports whether no further transitions are expected
func (s RunStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCanceled
}

// ScenarioRun represents a single execution of a scenario
type ScenarioRun struct {
	ID                 string     `json:"id" db:"id"`
	Scenario           string     `json:"scenario" db:"scenario"`
	Backend            string     `json:"backend" db:"backend"`
	TemporalWorkflowID string     `json:"temporal_workflow_id" db:"temporal_workflow_id"`
	TemporalRunID      string     `json:"temporal_run_id" db:"temporal_run_id"`
	Status             RunStatus  `json:"status" db:"status"`
	StartedAt          *time.Time `json:"started_at" db:"started_at"`
	CompletedAt        *time.Time `json:"completed_at" db:"completed_at"`
	ErrorMessage       string     `json:"error_message,omitempty" db:"error_message"`

	// Computed fields
	Steps []StepResult `json:"steps,omitempty"`
}

// StepResult represents the outcome of one scenario step
type StepResult struct {
	RunID        string    `json:"run_id,omitempty" db:"run_id"`
	Index        int       `json:"index" db:"step_index"`
	Op           string    `json:"op" db:"op"`
	Status       RunStatus `json:"status" db:"status"`
	ErrorMessage string    `json:"error_message,omitempty" db:"error_message"`
	Duration     int64     `json:"duration_ms" db:"duration_ms"`

	// ScreenshotPath is set for a failed step when the backend can capture
	// the page.
	ScreenshotPath string `json:"screenshot_path,omitempty" db:"screenshot_path"`
}

// ScenarioInput is the input for executing a scenario in a workflow
type ScenarioInput struct {
	RunID    string `json:"run_id"`
	Scenario string `json:"scenario"`
	// Source is the raw YAML of the scenario.
	Source  []byte `json:"source"`
	Backend string `json:"backend"`
}

// ScenarioResult is the outcome of a scenario execution
type ScenarioResult struct {
	RunID         string       `json:"run_id"`
	Scenario      string       `json:"scenario"`
	Status        RunStatus    `json:"status"`
	Steps         []StepResult `json:"steps"`
	TotalDuration int64        `json:"total_duration_ms"`
	ErrorMessage  string       `json:"error_message,omitempty"`
}

// Passed reports whether every step succeeded
func (r ScenarioResult) Passed() bool {
	return r.Status == StatusSuccess
}

// ==================== WebSocket Message Types ====================

// WSMessage represents a WebSocket message for real-time updates
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
