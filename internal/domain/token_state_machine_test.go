package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenStateMachine_Transitions(t *testing.T) {
	sm := NewTokenStateMachine()

	tests := []struct {
		name        string
		from        TokenStatus
		to          TokenStatus
		shouldError bool
	}{
		{"waiting -> confirmed", StatusWaiting, StatusConfirmed, false},
		{"waiting -> in_consultancy", StatusWaiting, StatusInConsultancy, false},
		{"waiting -> cancelled", StatusWaiting, StatusCancelled, false},
		{"confirmed -> in_consultancy", StatusConfirmed, StatusInConsultancy, false},
		{"confirmed -> skipped", StatusConfirmed, StatusSkipped, false},
		{"in_consultancy -> completed", StatusInConsultancy, StatusCompleted, false},
		{"skipped -> confirmed", StatusSkipped, StatusConfirmed, false},
		{"skipped -> in_consultancy", StatusSkipped, StatusInConsultancy, false},

		{"confirmed -> waiting (invalid)", StatusConfirmed, StatusWaiting, true},
		{"in_consultancy -> confirmed (invalid)", StatusInConsultancy, StatusConfirmed, true},
		{"completed -> waiting (terminal)", StatusCompleted, StatusWaiting, true},
		{"cancelled -> confirmed (terminal)", StatusCancelled, StatusConfirmed, true},
		{"waiting -> waiting (no-op)", StatusWaiting, StatusWaiting, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := sm.Transition(tc.from, tc.to)
			if tc.shouldError {
				assert.Error(t, err)
				assert.Equal(t, tc.from, got, "status should not change on invalid transition")
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.to, got)
			}
		})
	}
}

func TestTokenStateMachine_ValidTransitions(t *testing.T) {
	sm := NewTokenStateMachine()

	assert.Len(t, sm.ValidTransitions(StatusWaiting), 5)
	assert.Len(t, sm.ValidTransitions(StatusConfirmed), 4)
	assert.Equal(t, []TokenStatus{StatusCancelled, StatusCompleted, StatusSkipped}, sm.ValidTransitions(StatusInConsultancy))
	assert.Empty(t, sm.ValidTransitions(StatusCompleted))
	assert.Empty(t, sm.ValidTransitions(StatusCancelled))
}

func TestTokenStateMachine_TerminalStatesHaveNoExits(t *testing.T) {
	sm := NewTokenStateMachine()

	for _, st := range AllStatuses {
		if sm.IsTerminal(st) {
			assert.Empty(t, sm.ValidTransitions(st), st)
			assert.False(t, st.IsActive(), st)
		} else {
			assert.NotEmpty(t, sm.ValidTransitions(st), st)
			assert.True(t, st.IsActive(), st)
		}
	}
}

func TestParseTokenStatus(t *testing.T) {
	st, err := ParseTokenStatus("in_consultancy")
	require.NoError(t, err)
	assert.Equal(t, StatusInConsultancy, st)

	_, err = ParseTokenStatus("done")
	assert.Error(t, err)

	_, err = ParseTokenStatus("")
	assert.Error(t, err)
}
