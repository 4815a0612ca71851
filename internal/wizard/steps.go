package wizard

import (
	"errors"
	"maps"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"ai-receptionist/user-portal/user-portal-backend/internal/onboarding"
)

// StepValidator is the capability a step registers with the controller. Validate
// must be cheap and idempotent and must not change the step's payload.
type StepValidator interface {
	Validate() bool
}

// PayloadSource gives validators read-only access to the payloads they check.
type PayloadSource interface {
	Business() onboarding.BusinessInformation
	Goals() onboarding.AssistantGoals
	Interaction() onboarding.AssistantInformation
}

const (
	msgPhoneFormat       = "Phone number must be in international format, e.g. +14155550123"
	msgDuplicateLanguage = "Supported languages must not repeat"
)

var (
	localChecks    = validator.New()
	phoneSeparator = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
)

// highlights is the inline error state a step exposes after validating.
type highlights struct {
	mu     sync.Mutex
	fields map[string]string
	first  string
}

func (h *highlights) record(issues []onboarding.Issue) bool {
	result := &onboarding.SchemaValidationError{Issues: issues}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fields = result.Fields()
	h.first = ""
	if len(issues) > 0 {
		h.first = result.First()
	}
	return len(issues) == 0
}

// Highlights maps failing fields to their messages from the last Validate call.
func (h *highlights) Highlights() map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return maps.Clone(h.fields)
}

// FirstError is the message to show next to the disabled Continue control.
func (h *highlights) FirstError() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.first
}

// BusinessStep validates step 1.
type BusinessStep struct {
	highlights
	source PayloadSource
}

func NewBusinessStep(source PayloadSource) *BusinessStep {
	return &BusinessStep{source: source}
}

func (s *BusinessStep) Validate() bool {
	info := s.source.Business()
	issues := schemaIssues(onboarding.ValidateBusiness(info))
	if info.PhoneNumber != "" && !isPhoneNumber(info.PhoneNumber) {
		issues = append(issues, onboarding.Issue{Field: "phone_number", Message: msgPhoneFormat})
	}
	return s.record(issues)
}

// GoalsStep validates step 2.
type GoalsStep struct {
	highlights
	source PayloadSource
}

func NewGoalsStep(source PayloadSource) *GoalsStep {
	return &GoalsStep{source: source}
}

func (s *GoalsStep) Validate() bool {
	return s.record(schemaIssues(onboarding.ValidateGoals(s.source.Goals())))
}

// InteractionStep validates step 3.
type InteractionStep struct {
	highlights
	source PayloadSource
}

func NewInteractionStep(source PayloadSource) *InteractionStep {
	return &InteractionStep{source: source}
}

func (s *InteractionStep) Validate() bool {
	info := s.source.Interaction()
	issues := schemaIssues(onboarding.ValidateInteraction(info))
	if hasDuplicate(info.SupportLanguages) {
		issues = append(issues, onboarding.Issue{Field: "support_languages", Message: msgDuplicateLanguage})
	}
	return s.record(issues)
}

// isPhoneNumber accepts E.164 numbers written with common separators.
func isPhoneNumber(raw string) bool {
	return localChecks.Var(phoneSeparator.Replace(raw), "e164") == nil
}

func hasDuplicate(values []string) bool {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		key := strings.ToLower(strings.TrimSpace(v))
		if _, ok := seen[key]; ok {
			return true
		}
		seen[key] = struct{}{}
	}
	return false
}

func schemaIssues(err error) []onboarding.Issue {
	if err == nil {
		return nil
	}
	var schemaErr *onboarding.SchemaValidationError
	if errors.As(err, &schemaErr) {
		return schemaErr.Issues
	}
	return []onboarding.Issue{{Message: err.Error()}}
}

// firstMessage returns the user-facing text of a validation or gateway error.
func firstMessage(err error) string {
	var schemaErr *onboarding.SchemaValidationError
	if errors.As(err, &schemaErr) {
		return schemaErr.First()
	}
	return err.Error()
}
