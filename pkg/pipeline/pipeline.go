package pipeline

import (
	"errors"
	"fmt"
)

// ErrNextCalledTwice is returned when a stage invokes next more than once in
// a single execution.
var ErrNextCalledTwice = errors.New("pipeline: next called more than once")

// Next continues the chain. It returns the error produced by the downstream
// stages or the terminal handler.
type Next func() error

// Handler is the terminal step of a pipeline.
type Handler[C any] func(c C) error

// Stage is one named unit of the chain.
type Stage[C any] struct {
	// Name identifies the stage in logs and introspection.
	Name string

	// Run executes the stage. It must call next to continue the chain.
	Run func(c C, next Next) error
}

// Engine executes a fixed stage list around a terminal handler.
type Engine[C any] struct {
	stages   []Stage[C]
	terminal Handler[C]
}

// New creates an engine. Stages run in the order given, wrapped around the
// terminal handler.
func New[C any](terminal Handler[C], stages ...Stage[C]) *Engine[C] {
	if terminal == nil {
		panic("pipeline: terminal handler is nil")
	}
	for i, s := range stages {
		if s.Run == nil {
			panic(fmt.Sprintf("pipeline: stage %d (%q) has no Run func", i, s.Name))
		}
	}

	owned := make([]Stage[C], len(stages))
	copy(owned, stages)

	return &Engine[C]{
		stages:   owned,
		terminal: terminal,
	}
}

// Execute runs the chain for one execution value.
func (e *Engine[C]) Execute(c C) error {
	return e.dispatch(c, 0)
}

// Names returns the stage names in execution order.
func (e *Engine[C]) Names() []string {
	names := make([]string, len(e.stages))
	for i, s := range e.stages {
		names[i] = s.Name
	}
	return names
}

// Len returns the number of stages, not counting the terminal handler.
func (e *Engine[C]) Len() int {
	return len(e.stages)
}

func (e *Engine[C]) dispatch(c C, i int) error {
	if i == len(e.stages) {
		return e.terminal(c)
	}

	called := false
	next := func() error {
		if called {
			return fmt.Errorf("stage %q: %w", e.stages[i].Name, ErrNextCalledTwice)
		}
		called = true
		return e.dispatch(c, i+1)
	}

	return e.stages[i].Run(c, next)
}
