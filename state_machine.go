package stockroom

import (
	"sort"
	"sync"
	"time"
)

// AuthState is the authentication state published by the Manager.
type AuthState string

const (
	AuthStateUnknown         AuthState = "unknown"
	AuthStateRestoring       AuthState = "restoring"
	AuthStateAuthenticating  AuthState = "authenticating"
	AuthStateAuthenticated   AuthState = "authenticated"
	AuthStateUnauthenticated AuthState = "unauthenticated"
)

// IsSettled reports whether no flow is in progress
func (s AuthState) IsSettled() bool {
	return s == AuthStateAuthenticated || s == AuthStateUnauthenticated
}

func (s AuthState) String() string {
	return string(s)
}

// StateChange describes a committed transition.
type StateChange struct {
	From       AuthState
	To         AuthState
	Reason     string
	OccurredAt time.Time
}

// Changed reports whether the transition moved to a different state
func (c StateChange) Changed() bool {
	return c.From != c.To
}

// StateListener is notified after a transition is committed.
type StateListener func(change StateChange)

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*AuthStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *AuthStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithInitialState overrides the starting state, AuthStateUnknown by default.
func WithInitialState(state AuthState) StateMachineOption {
	return func(sm *AuthStateMachine) {
		if state != "" {
			sm.state = state
		}
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.reason = reason
	}
}

// WithForceTransition bypasses validation rules (use sparingly).
func WithForceTransition() TransitionOption {
	return func(opts *transitionOptions) {
		opts.force = true
	}
}

type transitionOptions struct {
	reason string
	force  bool
}

// AuthStateMachine centralizes the auth transition graph and notifies
// listeners of every committed change.
type AuthStateMachine struct {
	mu          sync.Mutex
	state       AuthState
	transitions map[AuthState]map[AuthState]struct{}
	now         func() time.Time
	listeners   map[int]StateListener
	nextID      int
}

// NewAuthStateMachine returns a machine in the unknown (loading) state.
func NewAuthStateMachine(opts ...StateMachineOption) *AuthStateMachine {
	sm := &AuthStateMachine{
		state: AuthStateUnknown,
		transitions: map[AuthState]map[AuthState]struct{}{
			AuthStateUnknown: {
				AuthStateRestoring:       {},
				AuthStateAuthenticating:  {},
				AuthStateAuthenticated:   {},
				AuthStateUnauthenticated: {},
			},
			AuthStateRestoring: {
				AuthStateAuthenticated:   {},
				AuthStateUnauthenticated: {},
			},
			AuthStateUnauthenticated: {
				AuthStateRestoring:      {},
				AuthStateAuthenticating: {},
			},
			AuthStateAuthenticating: {
				AuthStateAuthenticated:   {},
				AuthStateUnauthenticated: {},
			},
			AuthStateAuthenticated: {
				AuthStateRestoring:       {},
				AuthStateAuthenticating:  {},
				AuthStateUnauthenticated: {},
			},
		},
		now:       time.Now,
		listeners: map[int]StateListener{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

// Current returns the committed state.
func (sm *AuthStateMachine) Current() AuthState {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.state
}

// CanTransition reports whether from -> to is part of the graph.
func (sm *AuthStateMachine) CanTransition(from, to AuthState) bool {
	if allowed, ok := sm.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

// Transition moves to target. Moving to the current state is a no-op that is
// not published.
func (sm *AuthStateMachine) Transition(target AuthState, opts ...TransitionOption) (StateChange, error) {
	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	sm.mu.Lock()
	from := sm.state
	change := StateChange{
		From:       from,
		To:         target,
		Reason:     options.reason,
		OccurredAt: sm.now(),
	}

	if target == "" {
		sm.mu.Unlock()
		return change, withMetadata(ErrInvalidStateTransition, nil, map[string]any{
			"reason": "target state is empty",
		})
	}

	if from == target {
		sm.mu.Unlock()
		return change, nil
	}

	if !options.force && !sm.CanTransition(from, target) {
		sm.mu.Unlock()
		return change, withMetadata(ErrInvalidStateTransition, nil, map[string]any{
			"from": from,
			"to":   target,
		})
	}

	sm.state = target
	listeners := sm.listenersLocked()
	sm.mu.Unlock()

	for _, listener := range listeners {
		listener(change)
	}

	return change, nil
}

// Subscribe registers a listener and returns a function removing it.
func (sm *AuthStateMachine) Subscribe(listener StateListener) func() {
	if listener == nil {
		return func() {}
	}

	sm.mu.Lock()
	id := sm.nextID
	sm.nextID++
	sm.listeners[id] = listener
	sm.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sm.mu.Lock()
			delete(sm.listeners, id)
			sm.mu.Unlock()
		})
	}
}

func (sm *AuthStateMachine) listenersLocked() []StateListener {
	if len(sm.listeners) == 0 {
		return nil
	}

	ids := make([]int, 0, len(sm.listeners))
	for id := range sm.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]StateListener, 0, len(ids))
	for _, id := range ids {
		out = append(out, sm.listeners[id])
	}
	return out
}
