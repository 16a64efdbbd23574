package services

import (
	"CareChain/config"
	"CareChain/models"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewGraph(t *testing.T) {
	g, err := GraphFor(config.WorkflowReview)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, g.Initial())

	legal := []struct {
		action Action
		from   models.AppointmentStatus
		to     models.AppointmentStatus
	}{
		{ActionApprove, models.StatusPending, models.StatusApproved},
		{ActionReject, models.StatusPending, models.StatusRejected},
		{ActionCancel, models.StatusPending, models.StatusCancelled},
		{ActionComplete, models.StatusApproved, models.StatusCompleted},
	}
	for _, tc := range legal {
		got, err := g.Next(tc.action, tc.from)
		require.NoError(t, err, "%s from %s", tc.action, tc.from)
		assert.Equal(t, tc.to, got)
	}

	_, err = g.Next(ActionComplete, models.StatusPending)
	assert.True(t, IsKind(err, KindInvalidTransition))
	_, err = g.Next(ActionCancel, models.StatusApproved)
	assert.True(t, IsKind(err, KindInvalidTransition))
}

func TestSchedulingGraph(t *testing.T) {
	g, err := GraphFor(config.WorkflowScheduling)
	require.NoError(t, err)
	assert.Equal(t, models.StatusScheduled, g.Initial())

	got, err := g.Next(ActionComplete, models.StatusScheduled)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got)

	got, err = g.Next(ActionApprove, models.StatusScheduled)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got)

	got, err = g.Next(ActionCancel, models.StatusScheduled)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got)

	_, err = g.Next(ActionReject, models.StatusScheduled)
	assert.True(t, IsKind(err, KindInvalidTransition))
}

func TestTerminalStatusesHaveNoExit(t *testing.T) {
	terminal := []models.AppointmentStatus{models.StatusCancelled, models.StatusRejected, models.StatusCompleted}
	actions := []Action{ActionApprove, ActionReject, ActionCancel, ActionComplete}

	for _, mode := range []string{config.WorkflowReview, config.WorkflowScheduling} {
		g, err := GraphFor(mode)
		require.NoError(t, err)
		for _, status := range terminal {
			assert.True(t, g.IsTerminal(status), "%s/%s", mode, status)
			for _, action := range actions {
				_, err := g.Next(action, status)
				require.Error(t, err)
				var e *Error
				require.ErrorAs(t, err, &e)
				assert.Equal(t, KindInvalidTransition, e.Kind)
				assert.Equal(t, status, e.Details["current_status"])
			}
		}
		assert.False(t, g.IsTerminal(g.Initial()))
	}
}

func TestGraphFor_UnknownMode(t *testing.T) {
	_, err := GraphFor("freeform")
	assert.Error(t, err)
}
