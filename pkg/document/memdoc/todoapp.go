package memdoc

import (
	"encoding/json"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"dev/bravebird/pagecheck/pkg/filter"
	"dev/bravebird/pagecheck/pkg/models"
	"dev/bravebird/pagecheck/pkg/snapshot"
)

// TodoOption configures a TodoApp
type TodoOption func(*TodoApp)

// WithRenderLag delays every state change by d before it shows in the DOM
func WithRenderLag(d time.Duration) TodoOption {
	return func(a *TodoApp) { a.renderLag = d }
}

// WithPersistLag delays every save to storage by d
func WithPersistLag(d time.Duration) TodoOption {
	return func(a *TodoApp) { a.persistLag = d }
}

// WithTornReads makes the first n storage reads after each save return a
// truncated value, as if caught mid-write.
func WithTornReads(n int) TodoOption {
	return func(a *TodoApp) { a.tornReads = n }
}

// WithStorageKey changes the storage key (default snapshot.DefaultKey)
func WithStorageKey(key string) TodoOption {
	return func(a *TodoApp) { a.key = key }
}

type version struct {
	at      time.Time
	initial bool
	todos   []snapshot.Todo
}

type write struct {
	at   time.Time
	data []byte
}

// TodoApp simulates the TodoMVC React application. The rendered list and
// the stored list are two projections of the same state that catch up on
// independent schedules.
type TodoApp struct {
	renderLag  time.Duration
	persistLag time.Duration
	tornReads  int
	key        string

	versions []version
	writes   []write
	tornLeft int
	nextID   int

	draft     string
	editing   int
	editDraft string
}

var _ App = (*TodoApp)(nil)

// NewTodoApp returns an app with an empty list and nothing stored
func NewTodoApp(opts ...TodoOption) *TodoApp {
	a := &TodoApp{key: snapshot.DefaultKey, editing: -1}
	for _, opt := range opts {
		opt(a)
	}
	a.versions = []version{{initial: true}}
	return a
}

func (a *TodoApp) Title() string { return "React • TodoMVC" }

// Load restarts the app from whatever storage holds at now. Saves that have
// not landed yet are lost, as they would be on a real reload.
func (a *TodoApp) Load(now time.Time) {
	kept := a.writes[:0]
	for _, w := range a.writes {
		if !w.at.After(now) {
			kept = append(kept, w)
		}
	}
	a.writes = kept

	var todos []snapshot.Todo
	if len(a.writes) > 0 {
		if parsed, err := snapshot.Parse(a.writes[len(a.writes)-1].data); err == nil {
			todos = parsed
		}
	}
	a.versions = []version{{at: now, initial: true, todos: todos}}
	a.tornLeft = 0
	a.draft = ""
	a.editing = -1
	a.editDraft = ""
}

// Persisted returns the newest save that has landed by now
func (a *TodoApp) Persisted(now time.Time, key string) ([]byte, bool) {
	if key != a.key {
		return nil, false
	}
	for i := len(a.writes) - 1; i >= 0; i-- {
		w := a.writes[i]
		if w.at.After(now) {
			continue
		}
		if a.tornLeft > 0 {
			a.tornLeft--
			return w.data[:len(w.data)/2], true
		}
		return w.data, true
	}
	return nil, false
}

func (a *TodoApp) logical() []snapshot.Todo {
	return a.versions[len(a.versions)-1].todos
}

func (a *TodoApp) rendered(now time.Time) []snapshot.Todo {
	for i := len(a.versions) - 1; i >= 0; i-- {
		v := a.versions[i]
		if v.initial || !now.Before(v.at.Add(a.renderLag)) {
			return v.todos
		}
	}
	return nil
}

func (a *TodoApp) commit(now time.Time, todos []snapshot.Todo) {
	a.versions = append(a.versions, version{at: now, todos: todos})
	a.writes = append(a.writes, write{at: now.Add(a.persistLag), data: snapshot.Encode(todos)})
	a.tornLeft = a.tornReads
}

// update applies fn to a copy of the logical list and commits the result
func (a *TodoApp) update(now time.Time, fn func([]snapshot.Todo) []snapshot.Todo) {
	cur := a.logical()
	next := make([]snapshot.Todo, len(cur))
	copy(next, cur)
	a.commit(now, fn(next))
}

func (a *TodoApp) Act(now time.Time, t Target, act models.Action) (string, error) {
	todos := a.logical()
	inRange := t.Index >= 0 && t.Index < len(todos)

	switch {
	case t.HasClass("new-todo"):
		switch {
		case act.Type == models.ActionFill:
			a.draft = act.Value
		case act.Type == models.ActionPress && act.Value == "Enter":
			title := strings.TrimSpace(a.draft)
			if title == "" {
				return "", nil
			}
			a.nextID++
			id := json.RawMessage(strconv.Itoa(a.nextID))
			a.update(now, func(ts []snapshot.Todo) []snapshot.Todo {
				return append(ts, snapshot.Todo{ID: id, Title: title})
			})
			a.draft = ""
		}

	case t.HasClass("edit"):
		switch {
		case act.Type == models.ActionFill:
			a.editDraft = act.Value
		case act.Type == models.ActionPress && act.Value == "Enter":
			a.finishEdit(now)
		case act.Type == models.ActionPress && act.Value == "Escape":
			a.editing = -1
		case act.Type == models.ActionDispatch && act.Value == "blur":
			a.finishEdit(now)
		}

	case t.HasClass("toggle-all") && act.Type == models.ActionClick:
		all := len(todos) > 0 && snapshot.CompletedCount(todos) == len(todos)
		a.update(now, func(ts []snapshot.Todo) []snapshot.Todo {
			for i := range ts {
				ts[i].Completed = !all
			}
			return ts
		})

	case t.HasClass("toggle") && act.Type == models.ActionClick && inRange:
		a.update(now, func(ts []snapshot.Todo) []snapshot.Todo {
			ts[t.Index].Completed = !ts[t.Index].Completed
			return ts
		})

	case t.HasClass("destroy") && act.Type == models.ActionClick && inRange:
		a.update(now, func(ts []snapshot.Todo) []snapshot.Todo {
			return append(ts[:t.Index], ts[t.Index+1:]...)
		})

	case t.HasClass("clear-completed") && act.Type == models.ActionClick:
		a.update(now, func(ts []snapshot.Todo) []snapshot.Todo {
			return filter.Active.Apply(ts)
		})

	case act.Type == models.ActionDblClick && inRange:
		a.editing = t.Index
		a.editDraft = todos[t.Index].Title
	}
	return "", nil
}

// finishEdit saves the trimmed edit; an empty edit removes the item
func (a *TodoApp) finishEdit(now time.Time) {
	idx := a.editing
	a.editing = -1
	if idx < 0 || idx >= len(a.logical()) {
		return
	}
	title := strings.TrimSpace(a.editDraft)
	a.update(now, func(ts []snapshot.Todo) []snapshot.Todo {
		if title == "" {
			return append(ts[:idx], ts[idx+1:]...)
		}
		ts[idx].Title = title
		return ts
	})
}

func (a *TodoApp) Render(now time.Time, route string) string {
	todos := a.rendered(now)
	current := filter.FromRoute(route)

	var sb strings.Builder
	sb.WriteString(`<section class="todoapp"><header class="header"><h1>todos</h1>`)
	fmt.Fprintf(&sb, `<input class="new-todo" placeholder="What needs to be done?" value="%s">`, html.EscapeString(a.draft))
	sb.WriteString(`</header>`)

	if len(todos) > 0 {
		done := snapshot.CompletedCount(todos)
		sb.WriteString(`<section class="main">`)
		sb.WriteString(`<input id="toggle-all" class="toggle-all" type="checkbox"`)
		if done == len(todos) {
			sb.WriteString(` checked`)
		}
		sb.WriteString(`><label for="toggle-all">Mark all as complete</label><ul class="todo-list">`)

		for i, t := range todos {
			if !current.Match(t) {
				continue
			}
			var classes []string
			if t.Completed {
				classes = append(classes, "completed")
			}
			editing := i == a.editing
			if editing {
				classes = append(classes, "editing")
			}
			fmt.Fprintf(&sb, `<li data-testid="todo-item" data-index="%d" class="%s">`, i, strings.Join(classes, " "))
			if editing {
				sb.WriteString(`<div class="view" hidden>`)
			} else {
				sb.WriteString(`<div class="view">`)
			}
			sb.WriteString(`<input class="toggle" type="checkbox"`)
			if t.Completed {
				sb.WriteString(` checked`)
			}
			fmt.Fprintf(&sb, `><label data-testid="todo-title">%s</label><button class="destroy"></button></div>`, html.EscapeString(t.Title))
			if editing {
				fmt.Fprintf(&sb, `<input class="edit" aria-label="Edit" value="%s">`, html.EscapeString(a.editDraft))
			}
			sb.WriteString(`</li>`)
		}
		sb.WriteString(`</ul></section>`)

		left := len(todos) - done
		unit := "items"
		if left == 1 {
			unit = "item"
		}
		fmt.Fprintf(&sb, `<footer class="footer"><span class="todo-count" data-testid="todo-count"><strong>%d</strong> %s left</span><ul class="filters">`, left, unit)
		for _, f := range filter.Filters {
			class := ""
			if f == current {
				class = ` class="selected"`
			}
			fmt.Fprintf(&sb, `<li><a href="%s"%s>%s</a></li>`, f.Route(), class, f)
		}
		sb.WriteString(`</ul>`)
		if done > 0 {
			sb.WriteString(`<button class="clear-completed">Clear completed</button>`)
		}
		sb.WriteString(`</footer>`)
	}
	sb.WriteString(`</section>`)
	return sb.String()
}
