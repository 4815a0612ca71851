package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ai-receptionist/user-portal/user-portal-backend/internal/onboarding"
)

// staticSource serves fixed payloads to validators.
type staticSource struct {
	business    onboarding.BusinessInformation
	goals       onboarding.AssistantGoals
	interaction onboarding.AssistantInformation
}

func (s *staticSource) Business() onboarding.BusinessInformation { return s.business }
func (s *staticSource) Goals() onboarding.AssistantGoals { return s.goals }
func (s *staticSource) Interaction() onboarding.AssistantInformation { return s.interaction }

func TestBusinessStep(t *testing.T) {
	src := &staticSource{business: acmeBusiness()}
	step := NewBusinessStep(src)

	assert.True(t, step.Validate())
	assert.Empty(t, step.Highlights())
	assert.Empty(t, step.FirstError())

	src.business.PhoneNumber = "+1 (415) 555-0123"
	assert.True(t, step.Validate())

	src.business.PhoneNumber = "555-0123"
	assert.False(t, step.Validate())
	assert.Equal(t, msgPhoneFormat, step.Highlights()["phone_number"])

	src.business.Name = ""
	assert.False(t, step.Validate())
	assert.Equal(t, "Business name is required", step.FirstError())
	assert.Len(t, step.Highlights(), 2)

	// Validating never touches the payload.
	assert.Equal(t, "555-0123", src.business.PhoneNumber)
}

func TestGoalsStep(t *testing.T) {
	src := &staticSource{}
	step := NewGoalsStep(src)

	assert.False(t, step.Validate())
	assert.Equal(t, "At least one goal is required", step.FirstError())

	src.goals = acmeGoals()
	assert.True(t, step.Validate())
	assert.Empty(t, step.FirstError())
}

func TestInteractionStep(t *testing.T) {
	src := &staticSource{interaction: acmeInteraction()}
	step := NewInteractionStep(src)
	assert.True(t, step.Validate())

	src.interaction.SupportLanguages = []string{"en", "EN "}
	assert.False(t, step.Validate())
	assert.Equal(t, msgDuplicateLanguage, step.FirstError())

	src.interaction = acmeInteraction()
	src.interaction.FirstMessage = ""
	assert.False(t, step.Validate())
	assert.Equal(t, "First message is required", step.FirstError())
	assert.Contains(t, step.Highlights(), "first_message")
}
