package domain

import (
	"fmt"
	"sort"
)

// TokenStatus is the lifecycle state of a queue token
type TokenStatus string

const (
	// StatusWaiting is the state of a freshly issued token
	StatusWaiting TokenStatus = "waiting"
	// StatusConfirmed means the patient is physically at the clinic
	StatusConfirmed TokenStatus = "confirmed"
	// StatusInConsultancy means the patient is with the doctor
	StatusInConsultancy TokenStatus = "in_consultancy"
	// StatusCompleted is set once the consultation ends
	StatusCompleted TokenStatus = "completed"
	// StatusCancelled is set by the patient or staff
	StatusCancelled TokenStatus = "cancelled"
	// StatusSkipped means the patient missed their turn
	StatusSkipped TokenStatus = "skipped"
)

// AllStatuses lists every token status in display order
var AllStatuses = []TokenStatus{
	StatusWaiting, StatusConfirmed, StatusInConsultancy,
	StatusCompleted, StatusCancelled, StatusSkipped,
}

// ActiveStatuses are the states of a token that still occupies the queue
var ActiveStatuses = []TokenStatus{StatusWaiting, StatusConfirmed, StatusInConsultancy, StatusSkipped}

// ParseTokenStatus validates a raw status value
func ParseTokenStatus(s string) (TokenStatus, error) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown token status %q", s)
}

// IsActive reports whether the token still counts against the patient's daily booking
func (s TokenStatus) IsActive() bool {
	return s != StatusCompleted && s != StatusCancelled
}

// TokenStateMachine enforces valid status changes for queue tokens.
// Invalid transitions return an error (fail-fast approach).
type TokenStateMachine struct {
	transitions map[stateTransitionKey]struct{}
}

type stateTransitionKey struct {
	from TokenStatus
	to   TokenStatus
}

// NewTokenStateMachine creates the state machine with the queue lifecycle rules.
// State diagram:
//
//	[waiting] ──arrive──► [confirmed] ──call──► [in_consultancy]
//	    │  ▲                  │                       │
//	    │  └─── skipped ◄─────┴───────────────────────┤
//	    ▼                                             ▼
//	[cancelled]                                 [completed]
//
//	Every non-terminal state may move to completed, skipped or cancelled.
//	A skipped patient can be confirmed or called again.
func NewTokenStateMachine() *TokenStateMachine {
	sm := &TokenStateMachine{
		transitions: make(map[stateTransitionKey]struct{}),
	}

	sm.addTransitions(StatusWaiting, StatusConfirmed, StatusInConsultancy, StatusCompleted, StatusSkipped, StatusCancelled)
	sm.addTransitions(StatusConfirmed, StatusInConsultancy, StatusCompleted, StatusSkipped, StatusCancelled)
	sm.addTransitions(StatusInConsultancy, StatusCompleted, StatusSkipped, StatusCancelled)
	sm.addTransitions(StatusSkipped, StatusConfirmed, StatusInConsultancy, StatusCompleted, StatusCancelled)

	return sm
}

func (sm *TokenStateMachine) addTransitions(from TokenStatus, to ...TokenStatus) {
	for _, target := range to {
		sm.transitions[stateTransitionKey{from: from, to: target}] = struct{}{}
	}
}

// Transition validates moving from current to next.
// Returns the new status or the unchanged current status and an error.
func (sm *TokenStateMachine) Transition(current, next TokenStatus) (TokenStatus, error) {
	if !sm.CanTransition(current, next) {
		return current, fmt.Errorf("invalid status transition: cannot move token from %s to %s", current, next)
	}
	return next, nil
}

// CanTransition checks if a transition is valid without performing it
func (sm *TokenStateMachine) CanTransition(current, next TokenStatus) bool {
	_, ok := sm.transitions[stateTransitionKey{from: current, to: next}]
	return ok
}

// ValidTransitions returns the reachable statuses from the given one, sorted by name
func (sm *TokenStateMachine) ValidTransitions(state TokenStatus) []TokenStatus {
	var result []TokenStatus
	for key := range sm.transitions {
		if key.from == state {
			result = append(result, key.to)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// IsTerminal returns true if no further transitions are possible
func (sm *TokenStateMachine) IsTerminal(state TokenStatus) bool {
	return state == StatusCompleted || state == StatusCancelled
}
