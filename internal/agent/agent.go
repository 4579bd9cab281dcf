// Package agent defines the phase-driven state machine every autumn agent follows.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyluth/autumn/internal/llm"
	"github.com/dyluth/autumn/pkg/blackboard"
)

// State is the phase an agent is in.
type State string

const (
	StateDiscovery   State = "discovery"
	StateWorking     State = "working"
	StateUnitTesting State = "unit_testing"
	StateFinished    State = "finished"
)

// ErrInvalidTransition is returned when an agent asks for a state change its
// current state does not allow.
var ErrInvalidTransition = errors.New("invalid state transition")

// ErrStalled is returned by Drive when a phase returns without changing state.
var ErrStalled = errors.New("phase did not advance agent state")

var transitions = map[State][]State{
	StateDiscovery:   {StateWorking, StateUnitTesting, StateFinished},
	StateWorking:     {StateUnitTesting, StateFinished},
	StateUnitTesting: {StateFinished, StateWorking},
	StateFinished:    nil,
}

// CanTransition reports whether from → to is allowed.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Attributes is the identity, state and memory of one agent. Objective and
// position are fixed at construction.
type Attributes struct {
	objective string
	position  string
	state     State
	memory    []llm.Message
	history   []State
}

// NewAttributes creates attributes in the Discovery state with empty memory.
func NewAttributes(objective, position string) *Attributes {
	return &Attributes{
		objective: objective,
		position:  position,
		state:     StateDiscovery,
		history:   []State{StateDiscovery},
	}
}

func (a *Attributes) Objective() string { return a.objective }
func (a *Attributes) Position() string  { return a.position }
func (a *Attributes) State() State      { return a.state }

// Memory returns a copy of every message exchanged so far, oldest first.
func (a *Attributes) Memory() []llm.Message {
	return append([]llm.Message(nil), a.memory...)
}

// Remember appends to memory. Memory is never pruned. Implements llm.Caller.
func (a *Attributes) Remember(msgs ...llm.Message) {
	a.memory = append(a.memory, msgs...)
}

// History returns every state visited, starting with Discovery.
func (a *Attributes) History() []State {
	return append([]State(nil), a.history...)
}

// Transition moves the agent to next, or returns ErrInvalidTransition.
func (a *Attributes) Transition(next State) error {
	if !CanTransition(a.state, next) {
		return fmt.Errorf("%w: %s -> %s (%s)", ErrInvalidTransition, a.state, next, a.position)
	}
	a.state = next
	a.history = append(a.history, next)
	return nil
}

// Agent is one role in the pipeline.
type Agent interface {
	Attributes() *Attributes
	// RunPhase performs the work of the current state against spec and
	// transitions to the next state.
	RunPhase(ctx context.Context, spec *blackboard.ProjectSpec) error
}

// Drive runs a's phases until it reaches Finished. A phase that errors, or that
// returns without changing state, stops the loop.
func Drive(ctx context.Context, a Agent, spec *blackboard.ProjectSpec) error {
	attrs := a.Attributes()
	for attrs.State() != StateFinished {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s interrupted in %s: %w", attrs.Position(), attrs.State(), err)
		}

		before := attrs.State()
		switch before {
		case StateDiscovery, StateWorking, StateUnitTesting:
			if err := a.RunPhase(ctx, spec); err != nil {
				return err
			}
		default:
			// Unknown states cannot be recovered from.
			attrs.state = StateFinished
			attrs.history = append(attrs.history, StateFinished)
			continue
		}

		if attrs.State() == before {
			return fmt.Errorf("%w: %s stayed in %s", ErrStalled, attrs.Position(), before)
		}
	}
	return nil
}
