package services

import (
	"CareChain/config"
	"CareChain/models"
	"fmt"
)

// Action is a transition request against an appointment.
type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionCancel   Action = "cancel"
	ActionComplete Action = "complete"
)

type transition struct {
	from []models.AppointmentStatus
	to   models.AppointmentStatus
}

// StateGraph lists the legal transitions of one workflow mode.
type StateGraph struct {
	mode        string
	initial     models.AppointmentStatus
	transitions map[Action]transition
}

var reviewGraph = StateGraph{
	mode:    config.WorkflowReview,
	initial: models.StatusPending,
	transitions: map[Action]transition{
		ActionApprove:  {from: []models.AppointmentStatus{models.StatusPending}, to: models.StatusApproved},
		ActionReject:   {from: []models.AppointmentStatus{models.StatusPending}, to: models.StatusRejected},
		ActionCancel:   {from: []models.AppointmentStatus{models.StatusPending}, to: models.StatusCancelled},
		ActionComplete: {from: []models.AppointmentStatus{models.StatusApproved}, to: models.StatusCompleted},
	},
}

// In scheduling mode there is no review step: approving a scheduled visit
// closes it and reject does not exist.
var schedulingGraph = StateGraph{
	mode:    config.WorkflowScheduling,
	initial: models.StatusScheduled,
	transitions: map[Action]transition{
		ActionApprove:  {from: []models.AppointmentStatus{models.StatusScheduled}, to: models.StatusCompleted},
		ActionCancel:   {from: []models.AppointmentStatus{models.StatusScheduled}, to: models.StatusCancelled},
		ActionComplete: {from: []models.AppointmentStatus{models.StatusScheduled}, to: models.StatusCompleted},
	},
}

// GraphFor returns the state graph of a workflow mode.
func GraphFor(mode string) (StateGraph, error) {
	switch mode {
	case config.WorkflowReview, "":
		return reviewGraph, nil
	case config.WorkflowScheduling:
		return schedulingGraph, nil
	}
	return StateGraph{}, fmt.Errorf("unknown workflow mode %q", mode)
}

func (g StateGraph) Mode() string {
	return g.mode
}

func (g StateGraph) Initial() models.AppointmentStatus {
	return g.initial
}

// Next returns the target of action from status. It returns an
// InvalidTransition error when the move is not in the graph.
func (g StateGraph) Next(action Action, from models.AppointmentStatus) (models.AppointmentStatus, error) {
	t, ok := g.transitions[action]
	if ok {
		for _, status := range t.from {
			if status == from {
				return t.to, nil
			}
		}
	}
	return "", invalidTransition(string(action), from)
}

// IsTerminal reports whether no action leaves status.
func (g StateGraph) IsTerminal(status models.AppointmentStatus) bool {
	for _, t := range g.transitions {
		for _, from := range t.from {
			if from == status {
				return false
			}
		}
	}
	return true
}
