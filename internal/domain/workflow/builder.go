package workflow

import (
	"context"
	"fmt"
	"sort"
)

// GuardFunc is a function that evaluates whether a transition should be allowed
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder builds a configured state machine
type StateMachineBuilder interface {
	// Configure returns a state configuration for the given state
	Configure(state State) StateConfiguration

	// Final marks states that accept no triggers at all
	Final(states ...State) StateMachineBuilder

	// Build creates a new state machine instance with the given initial state.
	// It panics if the state is unknown; use BuildFrom for persisted values.
	Build(initialState State) StateMachine

	// BuildFrom is like Build but reports an unknown initial state as ErrInvalidState
	BuildFrom(initialState State) (StateMachine, error)
}

// StateConfiguration configures transitions for a specific state
type StateConfiguration interface {
	// Permit allows a trigger to transition to the target state
	Permit(trigger Trigger, toState State) StateConfiguration

	// PermitIf allows a trigger to transition to the target state if the guard condition passes
	PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration
}

type transition struct {
	toState State
	guard   GuardFunc
}

type stateConfig struct {
	fromState   State
	transitions map[Trigger][]transition
}

type stateMachineBuilder struct {
	states         StateSet
	final          StateSet
	configurations map[State]*stateConfig
}

type stateMachine struct {
	currentState   State
	final          StateSet
	configurations map[State]*stateConfig
}

// NewBuilder creates a builder for a machine whose states are exactly the given ones
func NewBuilder(states ...State) StateMachineBuilder {
	return &stateMachineBuilder{
		states:         NewStateSet(states...),
		final:          StateSet{},
		configurations: make(map[State]*stateConfig),
	}
}

// Configure returns a state configuration for the given state
func (b *stateMachineBuilder) Configure(state State) StateConfiguration {
	if !b.states.Contains(state) {
		panic(fmt.Sprintf("invalid state: %s", state))
	}
	if b.final.Contains(state) {
		panic(fmt.Sprintf("cannot configure final state: %s", state))
	}

	config, exists := b.configurations[state]
	if !exists {
		config = &stateConfig{
			fromState:   state,
			transitions: make(map[Trigger][]transition),
		}
		b.configurations[state] = config
	}

	return &configurator{builder: b, config: config}
}

// Final marks states that accept no triggers at all
func (b *stateMachineBuilder) Final(states ...State) StateMachineBuilder {
	for _, s := range states {
		if !b.states.Contains(s) {
			panic(fmt.Sprintf("invalid final state: %s", s))
		}
		b.final[s] = true
	}
	return b
}

// Build creates a new state machine instance with the given initial state
func (b *stateMachineBuilder) Build(initialState State) StateMachine {
	m, err := b.BuildFrom(initialState)
	if err != nil {
		panic(err.Error())
	}
	return m
}

// BuildFrom creates a new state machine or returns ErrInvalidState
func (b *stateMachineBuilder) BuildFrom(initialState State) (StateMachine, error) {
	if !b.states.Contains(initialState) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, initialState)
	}

	// Copy so later Configure calls do not leak into machines already built
	configsCopy := make(map[State]*stateConfig, len(b.configurations))
	for state, config := range b.configurations {
		transitionsCopy := make(map[Trigger][]transition, len(config.transitions))
		for trigger, transitions := range config.transitions {
			transitionsCopy[trigger] = append([]transition{}, transitions...)
		}
		configsCopy[state] = &stateConfig{
			fromState:   state,
			transitions: transitionsCopy,
		}
	}
	finalCopy := make(StateSet, len(b.final))
	for s := range b.final {
		finalCopy[s] = true
	}

	return &stateMachine{
		currentState:   initialState,
		final:          finalCopy,
		configurations: configsCopy,
	}, nil
}

type configurator struct {
	builder *stateMachineBuilder
	config  *stateConfig
}

// Permit allows a trigger to transition to the target state
func (c *configurator) Permit(trigger Trigger, toState State) StateConfiguration {
	return c.PermitIf(trigger, toState, nil)
}

// PermitIf allows a trigger to transition to the target state if the guard condition passes
func (c *configurator) PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration {
	if !c.builder.states.Contains(toState) {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}

	c.config.transitions[trigger] = append(c.config.transitions[trigger], transition{
		toState: toState,
		guard:   guard,
	})

	return c
}

// State returns the current state
func (m *stateMachine) State() State {
	return m.currentState
}

// IsTerminal reports whether the current state was marked final
func (m *stateMachine) IsTerminal() bool {
	return m.final.Contains(m.currentState)
}

// CanFire returns true if the trigger is permitted in the current state.
// Guards are not evaluated.
func (m *stateMachine) CanFire(trigger Trigger) bool {
	config, exists := m.configurations[m.currentState]
	if !exists {
		return false
	}
	return len(config.transitions[trigger]) > 0
}

// Fire attempts to execute the trigger, transitioning to the new state if allowed
func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	if m.IsTerminal() {
		return fmt.Errorf("%w: cannot fire trigger %s from %s", ErrTerminalState, trigger, m.currentState)
	}

	config, exists := m.configurations[m.currentState]
	if !exists {
		return fmt.Errorf("%w: cannot fire trigger %s from state %s (no configuration)", ErrInvalidTransition, trigger, m.currentState)
	}

	transitions := config.transitions[trigger]
	if len(transitions) == 0 {
		return fmt.Errorf("%w: cannot fire trigger %s from state %s", ErrInvalidTransition, trigger, m.currentState)
	}

	for _, t := range transitions {
		if t.guard == nil || t.guard(ctx) {
			m.currentState = t.toState
			return nil
		}
	}

	return fmt.Errorf("%w: trigger %s from state %s", ErrGuardFailed, trigger, m.currentState)
}

// PermittedTriggers returns all triggers that can be fired in the current state, sorted
func (m *stateMachine) PermittedTriggers() []Trigger {
	config, exists := m.configurations[m.currentState]
	if !exists {
		return []Trigger{}
	}

	triggers := make([]Trigger, 0, len(config.transitions))
	for trigger := range config.transitions {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })

	return triggers
}
