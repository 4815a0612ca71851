package workflows

import (
	"errors"
	"fmt"
	"slices"
)

var ErrTransitionNotAllowed = errors.New("transition not allowed")

// Wizard stages, in order.
const (
	StageBusiness    = "step_1"
	StageGoals       = "step_2"
	StageInteraction = "step_3"
	StageReview      = "step_4"
	StageCompleted   = "completed"
)

var wizardStages = []string{StageBusiness, StageGoals, StageInteraction, StageReview}

// StateMachine enforces stage transitions
type StateMachine struct {
	allowedTransitions map[string][]string
}

// NewStateMachine creates a state machine over an explicit transition table
func NewStateMachine(transitions map[string][]string) *StateMachine {
	return &StateMachine{allowedTransitions: transitions}
}

// NewWizardStateMachine creates the onboarding wizard table. Any wizard step
// may move to any other step; whether a jump is reachable is decided by the
// caller's completion guard. Only the review step can finish, and the
// finished stage is terminal.
func NewWizardStateMachine() *StateMachine {
	transitions := make(map[string][]string, len(wizardStages)+1)
	for _, from := range wizardStages {
		for _, to := range wizardStages {
			if to != from {
				transitions[from] = append(transitions[from], to)
			}
		}
	}
	transitions[StageReview] = append(transitions[StageReview], StageCompleted)
	transitions[StageCompleted] = []string{}
	return NewStateMachine(transitions)
}

// StageForStep returns the stage of a 1-based wizard step.
func StageForStep(step int) (string, bool) {
	if step < 1 || step > len(wizardStages) {
		return "", false
	}
	return wizardStages[step-1], true
}

// CanTransition checks if a stage transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	return slices.Contains(allowed, to)
}

// Transition returns an error wrapping ErrTransitionNotAllowed when from cannot move to to.
func (sm *StateMachine) Transition(from, to string) error {
	if !sm.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, from, to)
	}
	return nil
}

// GetAllowedTransitions returns the allowed next stages for a given stage
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return allowed
}

// IsTerminal reports whether no transition leaves the stage.
func (sm *StateMachine) IsTerminal(stage string) bool {
	allowed, exists := sm.allowedTransitions[stage]
	return exists && len(allowed) == 0
}
