package onboarding

import (
	"time"

	"github.com/google/uuid"
)

// Wizard step numbers. Steps 1-3 own a payload; step 4 is the review page.
const (
	StepBusiness    = 1
	StepGoals       = 2
	StepInteraction = 3
	StepReview      = 4

	TotalSteps = 4
)

// Status is the backend-reported marker of how far an onboarding record has progressed.
type Status string

const (
	StatusPending   Status = "pending_onboarding"
	StatusStep2     Status = "step_2"
	StatusStep3     Status = "step_3"
	StatusCompleted Status = "completed"
)

// rank orders the markers; unknown values rank with pending.
func (s Status) rank() int {
	switch s {
	case StatusStep2:
		return 1
	case StatusStep3:
		return 2
	case StatusCompleted:
		return 3
	default:
		return 0
	}
}

// Known reports whether s is one of the markers this client understands.
func (s Status) Known() bool {
	switch s {
	case StatusPending, StatusStep2, StatusStep3, StatusCompleted:
		return true
	}
	return false
}

// Max returns the further-progressed of s and other.
func (s Status) Max(other Status) Status {
	if other.rank() > s.rank() {
		return other
	}
	return s
}

// ApprovalStatus is the review outcome of a completed onboarding.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Decided reports whether review has finished.
func (a ApprovalStatus) Decided() bool {
	return a == ApprovalApproved || a == ApprovalRejected
}

// Weekdays lists the keys accepted in BusinessHours, in display order.
var Weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// TimeRange is one opening window in HH:MM local time.
type TimeRange struct {
	Start string `json:"start" yaml:"start" validate:"required,clock"`
	End   string `json:"end" yaml:"end" validate:"required,clock"`
}

// BusinessHours maps a lowercase weekday to its opening windows. A day with
// no windows is closed.
type BusinessHours map[string][]TimeRange

// OpenDays returns the weekdays that have at least one window.
func (h BusinessHours) OpenDays() []string {
	var days []string
	for _, day := range Weekdays {
		if len(h[day]) > 0 {
			days = append(days, day)
		}
	}
	return days
}

// BusinessInformation is the step 1 payload.
type BusinessInformation struct {
	Name          string        `json:"name" yaml:"name" validate:"required"`
	Industry      string        `json:"industry" yaml:"industry" validate:"required"`
	Description   string        `json:"description" yaml:"description" validate:"required"`
	WebsiteURL    string        `json:"website_url,omitempty" yaml:"website_url" validate:"omitempty,url"`
	Timezone      string        `json:"timezone" yaml:"timezone" validate:"required,timezone"`
	PhoneNumber   string        `json:"phone_number,omitempty" yaml:"phone_number"`
	BusinessHours BusinessHours `json:"business_hours" yaml:"business_hours" validate:"dive,keys,oneof=monday tuesday wednesday thursday friday saturday sunday,endkeys,dive"`
}

// AssistantGoals is the step 2 payload.
type AssistantGoals struct {
	Tasks            []string `json:"tasks,omitempty" yaml:"tasks" validate:"omitempty,dive,required"`
	Goals            []string `json:"goals" yaml:"goals" validate:"required,min=1,dive,required"`
	StatusOnboarding Status   `json:"status_onboarding,omitempty" yaml:"-"`
}

// FAQ is a question/answer pair fed to the assistant's knowledge base.
type FAQ struct {
	Question string `json:"question" yaml:"question" validate:"required"`
	Answer   string `json:"answer" yaml:"answer" validate:"required"`
}

// AssistantInformation is the step 3 payload.
type AssistantInformation struct {
	FirstMessage         string   `json:"first_message" yaml:"first_message" validate:"required"`
	CommunicationStyle   string   `json:"communication_style" yaml:"communication_style" validate:"required"`
	SupportLanguages     []string `json:"support_languages" yaml:"support_languages" validate:"required,min=1,dive,required"`
	InformationToCollect []string `json:"information_to_collect" yaml:"information_to_collect" validate:"required,min=1,dive,required"`
	KeyQuestions         []string `json:"key_questions,omitempty" yaml:"key_questions" validate:"omitempty,dive,required"`
	KnowledgeBase        []string `json:"knowledge_base,omitempty" yaml:"knowledge_base" validate:"omitempty,dive,required"`
	FAQs                 []FAQ    `json:"faqs,omitempty" yaml:"faqs" validate:"omitempty,dive"`
	Keywords             []string `json:"keywords,omitempty" yaml:"keywords" validate:"omitempty,dive,required"`
	CustomerQuestions    []string `json:"customer_questions,omitempty" yaml:"customer_questions" validate:"omitempty,dive,required"`
	StatusOnboarding     Status   `json:"status_onboarding,omitempty" yaml:"-"`
}

// Snapshot is the "existing onboarding" view returned to the client. Business
// fields are flattened into the top level of the object.
type Snapshot struct {
	StatusOnboarding Status         `json:"status_onboarding"`
	ApprovalStatus   ApprovalStatus `json:"approval_status,omitempty"`
	BusinessInformation
	AssistantGoals       *AssistantGoals       `json:"assistant_goals,omitempty"`
	AssistantInformation *AssistantInformation `json:"assistant_information,omitempty"`
}

// SaveRequest is the body of POST onboarding. Incremental saves carry exactly
// one section with CompleteOnboarding false; completion carries all three.
type SaveRequest struct {
	BusinessInformation  *BusinessInformation  `json:"business_information,omitempty"`
	AssistantGoals       *AssistantGoals       `json:"assistant_goals,omitempty"`
	AssistantInformation *AssistantInformation `json:"assistant_information,omitempty"`
	CompleteOnboarding   bool                  `json:"complete_onboarding"`
}

// CompletePayload is the final submission of all three steps.
type CompletePayload struct {
	BusinessInformation  BusinessInformation
	AssistantGoals       AssistantGoals
	AssistantInformation AssistantInformation
}

// Request converts the payload into its POST body.
func (p CompletePayload) Request() SaveRequest {
	return SaveRequest{
		BusinessInformation:  &p.BusinessInformation,
		AssistantGoals:       &p.AssistantGoals,
		AssistantInformation: &p.AssistantInformation,
		CompleteOnboarding:   true,
	}
}

// Record is the persisted onboarding state of one tenant user.
type Record struct {
	ID             uuid.UUID
	UserID         string
	Status         Status
	ApprovalStatus *ApprovalStatus
	Business       *BusinessInformation
	Goals          *AssistantGoals
	Interaction    *AssistantInformation
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Snapshot renders the record in the shape the client reads.
func (r *Record) Snapshot() *Snapshot {
	snap := &Snapshot{StatusOnboarding: r.Status}
	if r.ApprovalStatus != nil {
		snap.ApprovalStatus = *r.ApprovalStatus
	}
	if r.Business != nil {
		snap.BusinessInformation = *r.Business
	}
	if r.Goals != nil {
		goals := *r.Goals
		goals.StatusOnboarding = r.Status
		snap.AssistantGoals = &goals
	}
	if r.Interaction != nil {
		info := *r.Interaction
		info.StatusOnboarding = r.Status
		snap.AssistantInformation = &info
	}
	return snap
}
