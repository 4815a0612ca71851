package wizard

import (
	"maps"
	"slices"

	"ai-receptionist/user-portal/user-portal-backend/internal/onboarding"
	"ai-receptionist/user-portal/user-portal-backend/pkg/workflows"
)

// State is the wizard session owned by a Controller. Values returned by
// Controller.Snapshot are copies and safe to keep.
type State struct {
	Stage            string
	CurrentStep      int
	CompletedSteps   map[int]bool
	StepSubmitted    map[int]bool
	CurrentStepValid bool

	Business    onboarding.BusinessInformation
	Goals       onboarding.AssistantGoals
	Interaction onboarding.AssistantInformation

	// TargetSection is "" when no cross-step navigation hint is pending.
	TargetSection string

	Completing bool
	LastError  string
}

func newState() State {
	return State{
		Stage:          workflows.StageBusiness,
		CurrentStep:    onboarding.StepBusiness,
		CompletedSteps: map[int]bool{},
		StepSubmitted:  map[int]bool{},
	}
}

// IsCompleted reports whether step was advanced past in this session.
func (s State) IsCompleted(step int) bool {
	return s.CompletedSteps[step]
}

// Completed lists completed steps in ascending order.
func (s State) Completed() []int {
	steps := slices.Collect(maps.Keys(s.CompletedSteps))
	slices.Sort(steps)
	return steps
}

func (s State) clone() State {
	out := s
	out.CompletedSteps = maps.Clone(s.CompletedSteps)
	out.StepSubmitted = maps.Clone(s.StepSubmitted)
	out.Business = cloneBusiness(s.Business)
	out.Goals = cloneGoals(s.Goals)
	out.Interaction = cloneInteraction(s.Interaction)
	return out
}

// payload returns a detached copy of the payload owned by step, or nil for
// the review step.
func (s State) payload(step int) any {
	switch step {
	case onboarding.StepBusiness:
		return cloneBusiness(s.Business)
	case onboarding.StepGoals:
		return cloneGoals(s.Goals)
	case onboarding.StepInteraction:
		return cloneInteraction(s.Interaction)
	}
	return nil
}

func (s State) completePayload() onboarding.CompletePayload {
	return onboarding.CompletePayload{
		BusinessInformation:  cloneBusiness(s.Business),
		AssistantGoals:       cloneGoals(s.Goals),
		AssistantInformation: cloneInteraction(s.Interaction),
	}
}

func cloneBusiness(b onboarding.BusinessInformation) onboarding.BusinessInformation {
	if b.BusinessHours != nil {
		hours := make(onboarding.BusinessHours, len(b.BusinessHours))
		for day, ranges := range b.BusinessHours {
			hours[day] = slices.Clone(ranges)
		}
		b.BusinessHours = hours
	}
	return b
}

func cloneGoals(g onboarding.AssistantGoals) onboarding.AssistantGoals {
	g.Tasks = slices.Clone(g.Tasks)
	g.Goals = slices.Clone(g.Goals)
	return g
}

func cloneInteraction(i onboarding.AssistantInformation) onboarding.AssistantInformation {
	i.SupportLanguages = slices.Clone(i.SupportLanguages)
	i.InformationToCollect = slices.Clone(i.InformationToCollect)
	i.KeyQuestions = slices.Clone(i.KeyQuestions)
	i.KnowledgeBase = slices.Clone(i.KnowledgeBase)
	i.FAQs = slices.Clone(i.FAQs)
	i.Keywords = slices.Clone(i.Keywords)
	i.CustomerQuestions = slices.Clone(i.CustomerQuestions)
	return i
}
