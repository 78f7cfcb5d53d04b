// Package lifecycle holds the state-transition tables for every stateful entity.
// Services ask a table for the next state before writing and then make the store
// update conditional on the state they read.
package lifecycle

import (
	"errors"
	"fmt"
	"sort"
)

var ErrTransitionNotAllowed = errors.New("state transition not allowed")

type (
	State string
	Event string
)

type Table struct {
	name        string
	transitions map[State]map[Event]State
}

func NewTable(name string) *Table {
	return &Table{name: name, transitions: make(map[State]map[Event]State)}
}

// Allow registers event on every listed source state.
func (t *Table) Allow(event Event, to State, from ...State) *Table {
	for _, state := range from {
		if t.transitions[state] == nil {
			t.transitions[state] = make(map[Event]State)
		}
		t.transitions[state][event] = to
	}
	return t
}

func (t *Table) Next(from State, event Event) (State, error) {
	if to, ok := t.transitions[from][event]; ok {
		return to, nil
	}
	return "", fmt.Errorf("%s: %s on %q: %w", t.name, event, from, ErrTransitionNotAllowed)
}

// Apply is Next for callers holding plain status strings.
func (t *Table) Apply(from string, event Event) (string, error) {
	to, err := t.Next(State(from), event)
	return string(to), err
}

func (t *Table) Can(from State, event Event) bool {
	_, ok := t.transitions[from][event]
	return ok
}

// Sources lists every state from which event is legal.
func (t *Table) Sources(event Event) []State {
	var states []State
	for from, events := range t.transitions {
		if _, ok := events[event]; ok {
			states = append(states, from)
		}
	}
	sort.Slice(states, func(i, j int) bool { return states[i] < states[j] })
	return states
}
