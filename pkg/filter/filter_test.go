package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"dev/bravebird/pagecheck/pkg/snapshot"
)

func TestRoutes(t *testing.T) {
	for _, f := range Filters {
		assert.Equal(t, f, FromRoute(f.Route()), f.String())
	}
	assert.Equal(t, All, FromRoute(""))
	assert.Equal(t, All, FromRoute("#/unknown"))
	assert.Equal(t, Active, FromRoute("#/active/"))
}

func TestParse(t *testing.T) {
	f, err := Parse("Completed")
	require.NoError(t, err)
	assert.Equal(t, Completed, f)

	_, err = Parse("done")
	assert.Error(t, err)
}

func todosGen() *rapid.Generator[[]snapshot.Todo] {
	return rapid.SliceOf(rapid.Custom(func(t *rapid.T) snapshot.Todo {
		return snapshot.Todo{
			Title:     rapid.StringMatching(`[a-z ]{1,12}`).Draw(t, "title"),
			Completed: rapid.Bool().Draw(t, "completed"),
		}
	}))
}

func TestPartition_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		todos := todosGen().Draw(t, "todos")
		active, completed := Partition(todos)

		if len(active)+len(completed) != len(todos) {
			t.Fatalf("partition sizes %d+%d != %d", len(active), len(completed), len(todos))
		}
		for _, a := range active {
			if a.Completed {
				t.Fatalf("completed record %q in Active", a.Title)
			}
		}
		for _, c := range completed {
			if !c.Completed {
				t.Fatalf("active record %q in Completed", c.Title)
			}
		}
		all := All.Apply(todos)
		if len(all) != len(todos) {
			t.Fatalf("All dropped records")
		}
	})
}

func TestMachine_HistorySymmetry(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f1 := rapid.SampledFrom(Filters).Draw(t, "f1")
		f2 := rapid.SampledFrom(Filters).Filter(func(f Filter) bool { return f != f1 }).Draw(t, "f2")
		f3 := rapid.SampledFrom(Filters).Filter(func(f Filter) bool { return f != f2 }).Draw(t, "f3")

		m := NewMachine(f1)
		m.Navigate(f2)
		m.Navigate(f3)

		back, ok := m.Back()
		if !ok || back != f2 {
			t.Fatalf("first back: got %v, want %v", back, f2)
		}
		back, ok = m.Back()
		if !ok || back != f1 {
			t.Fatalf("second back: got %v, want %v", back, f1)
		}
		if m.Depth() != 0 {
			t.Fatalf("depth %d after unwinding", m.Depth())
		}
	})
}

func TestMachine_SameRouteReplaces(t *testing.T) {
	m := NewMachine(All)
	assert.True(t, m.Navigate(Completed))
	assert.False(t, m.Navigate(Completed))
	assert.Equal(t, 1, m.Depth())

	f, ok := m.Back()
	assert.True(t, ok)
	assert.Equal(t, All, f)

	_, ok = m.Back()
	assert.False(t, ok)
}

func TestMachine_Reset(t *testing.T) {
	m := NewMachine(All)
	m.Navigate(Active)
	m.Navigate(Completed)
	m.Reset(Active)
	assert.Equal(t, Active, m.Current())
	assert.Equal(t, 0, m.Depth())
}
