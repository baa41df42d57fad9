// Package snapshot parses the persisted todo list the application keeps in
// local storage.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"dev/bravebird/pagecheck/pkg/document"
	"dev/bravebird/pagecheck/pkg/models"
)

// DefaultKey is the storage key the TodoMVC React app writes to
const DefaultKey = "react-todos"

// Todo is one persisted record. Apps disagree on the id type (uuid strings,
// Date.now() numbers), so it is kept undecoded.
type Todo struct {
	ID        json.RawMessage `json:"id,omitempty"`
	Title     string          `json:"title"`
	Completed bool            `json:"completed"`
}

// Parse decodes a raw snapshot. Any decoding failure wraps
// models.ErrMalformedSnapshot.
func Parse(raw []byte) ([]Todo, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty value", models.ErrMalformedSnapshot)
	}
	var todos []Todo
	if err := json.Unmarshal(raw, &todos); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedSnapshot, err)
	}
	if todos == nil {
		return nil, fmt.Errorf("%w: not a list", models.ErrMalformedSnapshot)
	}
	return todos, nil
}

// Encode serializes todos the way the application stores them
func Encode(todos []Todo) []byte {
	if todos == nil {
		todos = []Todo{}
	}
	b, _ := json.Marshal(todos)
	return b
}

// Read fetches and parses the snapshot stored under key. A missing key is
// reported as malformed: the application may simply not have saved yet.
func Read(ctx context.Context, doc document.Handle, key string) ([]Todo, error) {
	raw, ok, err := doc.ReadPersisted(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: key %q absent", models.ErrMalformedSnapshot, key)
	}
	return Parse(raw)
}

// Titles returns the titles in stored order
func Titles(todos []Todo) []string {
	out := make([]string, len(todos))
	for i, t := range todos {
		out[i] = t.Title
	}
	return out
}

// CompletedCount counts the completed records
func CompletedCount(todos []Todo) int {
	n := 0
	for _, t := range todos {
		if t.Completed {
			n++
		}
	}
	return n
}

// ContainsTitle reports whether some record has exactly this title
func ContainsTitle(todos []Todo, title string) bool {
	for _, t := range todos {
		if t.Title == title {
			return true
		}
	}
	return false
}
