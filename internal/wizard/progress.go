package wizard

import (
	"ai-receptionist/user-portal/user-portal-backend/internal/onboarding"
	"ai-receptionist/user-portal/user-portal-backend/pkg/workflows"
)

// StepProgress represents one step of the onboarding wizard
type StepProgress struct {
	Number      int    `json:"number"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
	Submitted   bool   `json:"submitted"`
	Current     bool   `json:"current"`
}

// Progress represents the overall onboarding progress
type Progress struct {
	CurrentStep     int            `json:"current_step"`
	TotalSteps      int            `json:"total_steps"`
	PercentComplete float64        `json:"percent_complete"`
	Steps           []StepProgress `json:"steps"`
}

var stepInfo = [onboarding.TotalSteps]struct{ name, description string }{
	{"Business information", "Company details, timezone and opening hours"},
	{"Assistant goals", "What the receptionist should achieve on calls"},
	{"Assistant behaviour", "Greeting, languages, information to collect and FAQs"},
	{"Review", "Confirm everything and submit for approval"},
}

func progressOf(s State) Progress {
	p := Progress{
		CurrentStep: s.CurrentStep,
		TotalSteps:  onboarding.TotalSteps,
		Steps:       make([]StepProgress, 0, onboarding.TotalSteps),
	}
	finished := s.Stage == workflows.StageCompleted

	done := 0
	for i, info := range stepInfo {
		n := i + 1
		completed := finished || s.CompletedSteps[n]
		if completed {
			done++
		}
		p.Steps = append(p.Steps, StepProgress{
			Number:      n,
			Name:        info.name,
			Description: info.description,
			Completed:   completed,
			Submitted:   s.StepSubmitted[n],
			Current:     !finished && n == s.CurrentStep,
		})
	}
	p.PercentComplete = float64(done) / float64(onboarding.TotalSteps) * 100
	return p
}
