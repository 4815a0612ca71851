package wizard

import (
	"ai-receptionist/user-portal/user-portal-backend/internal/onboarding"
)

// Redirect names an external destination the caller should navigate to
// instead of showing the wizard.
type Redirect string

const (
	RedirectNone            Redirect = ""
	RedirectMainApp         Redirect = "main_app"
	RedirectPendingApproval Redirect = "pending_approval"
)

// Destinations resolves redirects to URLs.
type Destinations struct {
	MainApp         string
	PendingApproval string
}

func (d Destinations) URL(r Redirect) string {
	switch r {
	case RedirectMainApp:
		return d.MainApp
	case RedirectPendingApproval:
		return d.PendingApproval
	}
	return ""
}

// Entry describes how a session began.
type Entry struct {
	Step     int
	Status   onboarding.Status
	Resumed  bool
	Redirect Redirect
}

// resumePlan decides where a session starts from the fetched record. A nil
// snapshot means there is no record.
type resumePlan struct {
	entry   Entry
	hydrate bool
	unknown bool
}

func planResume(snap *onboarding.Snapshot) resumePlan {
	if snap == nil {
		return resumePlan{entry: Entry{Step: onboarding.StepBusiness}}
	}

	status := snap.StatusOnboarding
	if !status.Known() {
		// Unrecognised markers start at step 1 but keep whatever was saved.
		return resumePlan{
			entry:   Entry{Step: onboarding.StepBusiness, Status: status, Resumed: true},
			hydrate: true,
			unknown: true,
		}
	}

	switch status {
	case onboarding.StatusCompleted:
		redirect := RedirectPendingApproval
		if snap.ApprovalStatus == onboarding.ApprovalApproved {
			redirect = RedirectMainApp
		}
		return resumePlan{entry: Entry{Status: status, Redirect: redirect}}
	case onboarding.StatusStep2:
		return resumePlan{entry: Entry{Step: onboarding.StepGoals, Status: status, Resumed: true}, hydrate: true}
	case onboarding.StatusStep3:
		return resumePlan{entry: Entry{Step: onboarding.StepInteraction, Status: status, Resumed: true}, hydrate: true}
	default:
		return resumePlan{entry: Entry{Step: onboarding.StepBusiness, Status: status}}
	}
}

// hydrate copies the saved sections into s. Record metadata is not part of
// the editable payload.
func (s *State) hydrate(snap *onboarding.Snapshot) {
	s.Business = cloneBusiness(snap.BusinessInformation)
	if snap.AssistantGoals != nil {
		s.Goals = cloneGoals(*snap.AssistantGoals)
		s.Goals.StatusOnboarding = ""
	}
	if snap.AssistantInformation != nil {
		s.Interaction = cloneInteraction(*snap.AssistantInformation)
		s.Interaction.StatusOnboarding = ""
	}
}
