package verify

import (
	"context"
	"fmt"

	"dev/bravebird/pagecheck/pkg/document"
	"dev/bravebird/pagecheck/pkg/snapshot"
)

// PersistedMatches builds a check that reads and parses the snapshot under
// key on every poll. An absent or malformed snapshot is "not yet true".
func PersistedMatches(doc document.Handle, key, description, expected string, fn func([]snapshot.Todo) (bool, string)) Check {
	return Check{
		Description: description,
		Expected:    expected,
		Sample: func(ctx context.Context) (bool, string, error) {
			todos, err := snapshot.Read(ctx, doc, key)
			if err != nil {
				return false, "", err
			}
			ok, actual := fn(todos)
			return ok, actual, nil
		},
	}
}

// PersistedCount holds once the snapshot has exactly n records
func PersistedCount(doc document.Handle, key string, n int) Check {
	return PersistedMatches(doc, key, fmt.Sprintf("persisted %q count", key), fmt.Sprint(n),
		func(todos []snapshot.Todo) (bool, string) {
			return len(todos) == n, fmt.Sprint(len(todos))
		})
}

// PersistedCompletedCount holds once exactly n records are completed
func PersistedCompletedCount(doc document.Handle, key string, n int) Check {
	return PersistedMatches(doc, key, fmt.Sprintf("persisted %q completed count", key), fmt.Sprint(n),
		func(todos []snapshot.Todo) (bool, string) {
			c := snapshot.CompletedCount(todos)
			return c == n, fmt.Sprint(c)
		})
}

// PersistedContainsTitle holds once some record's title equals title
func PersistedContainsTitle(doc document.Handle, key, title string) Check {
	return PersistedMatches(doc, key, fmt.Sprintf("persisted %q titles", key), fmt.Sprintf("contains %q", title),
		func(todos []snapshot.Todo) (bool, string) {
			return snapshot.ContainsTitle(todos, title), fmt.Sprintf("%q", snapshot.Titles(todos))
		})
}
