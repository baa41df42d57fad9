// Package filter models the todo list's view filter and how it interacts
// with browser history.
package filter

import (
	"fmt"
	"strings"

	"dev/bravebird/pagecheck/pkg/snapshot"
)

// Filter is the active view partition of the list
type Filter int

const (
	All Filter = iota
	Active
	Completed
)

// Filters lists every filter in link order
var Filters = []Filter{All, Active, Completed}

func (f Filter) String() string {
	switch f {
	case All:
		return "All"
	case Active:
		return "Active"
	case Completed:
		return "Completed"
	}
	return fmt.Sprintf("Filter(%d)", int(f))
}

// Parse accepts a filter name in any case
func Parse(s string) (Filter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all", "":
		return All, nil
	case "active":
		return Active, nil
	case "completed":
		return Completed, nil
	}
	return All, fmt.Errorf("unknown filter %q", s)
}

// Route is the hash route the filter's link points to
func (f Filter) Route() string {
	switch f {
	case Active:
		return "#/active"
	case Completed:
		return "#/completed"
	}
	return "#/"
}

// FromRoute maps a URL fragment back to a filter. Unknown routes show All.
func FromRoute(route string) Filter {
	switch strings.TrimSuffix(strings.TrimPrefix(route, "#"), "/") {
	case "/active":
		return Active
	case "/completed":
		return Completed
	}
	return All
}

// Match is the filter's predicate
func (f Filter) Match(t snapshot.Todo) bool {
	switch f {
	case Active:
		return !t.Completed
	case Completed:
		return t.Completed
	}
	return true
}

// Apply keeps the records matching f, in order
func (f Filter) Apply(todos []snapshot.Todo) []snapshot.Todo {
	out := make([]snapshot.Todo, 0, len(todos))
	for _, t := range todos {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// Partition splits todos into the Active and Completed subsets
func Partition(todos []snapshot.Todo) (active, completed []snapshot.Todo) {
	return Active.Apply(todos), Completed.Apply(todos)
}
