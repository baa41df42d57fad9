package filter

// Machine tracks the current filter and the history entries behind it.
// It mirrors what the page does, so tests can predict which set should be
// rendered after a sequence of clicks and back navigations.
type Machine struct {
	current Filter
	history []Filter
}

// NewMachine starts at the given filter with an empty history
func NewMachine(start Filter) *Machine {
	return &Machine{current: start}
}

// Current returns the active filter
func (m *Machine) Current() Filter {
	return m.current
}

// Depth is the number of entries Back can pop
func (m *Machine) Depth() int {
	return len(m.history)
}

// Navigate activates f. Choosing the filter already shown replaces the
// history entry instead of pushing one. Reports whether an entry was pushed.
func (m *Machine) Navigate(f Filter) bool {
	if f == m.current {
		return false
	}
	m.history = append(m.history, m.current)
	m.current = f
	return true
}

// Back restores the previous filter. It reports false when there is nothing
// to go back to.
func (m *Machine) Back() (Filter, bool) {
	if len(m.history) == 0 {
		return m.current, false
	}
	last := len(m.history) - 1
	m.current = m.history[last]
	m.history = m.history[:last]
	return m.current, true
}

// Reset clears the history and starts over at f
func (m *Machine) Reset(f Filter) {
	m.current = f
	m.history = m.history[:0]
}
