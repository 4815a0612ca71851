package onboarding

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrPayloadMismatch is returned when a step schema is handed another step's payload.
var ErrPayloadMismatch = errors.New("payload does not belong to this step")

// Issue is one failing field of a step payload.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// SchemaValidationError carries the field-level failures of one step payload.
// Only the first message is meant to be shown to the user.
type SchemaValidationError struct {
	Step   int     `json:"step,omitempty"`
	Issues []Issue `json:"errors"`
}

func (e *SchemaValidationError) Error() string {
	return e.First()
}

// First returns the first failing message.
func (e *SchemaValidationError) First() string {
	if len(e.Issues) == 0 {
		return "validation failed"
	}
	return e.Issues[0].Message
}

// Messages returns every failing message in field order.
func (e *SchemaValidationError) Messages() []string {
	out := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		out[i] = issue.Message
	}
	return out
}

// Fields maps each failing field path to its message, for inline highlighting.
func (e *SchemaValidationError) Fields() map[string]string {
	out := make(map[string]string, len(e.Issues))
	for _, issue := range e.Issues {
		if _, seen := out[issue.Field]; !seen {
			out[issue.Field] = issue.Message
		}
	}
	return out
}

var messages = map[string]string{
	"name.required":                      "Business name is required",
	"industry.required":                  "Industry is required",
	"description.required":               "Business description is required",
	"website_url.url":                    "Website must be a valid URL",
	"timezone.required":                  "Timezone is required",
	"timezone.timezone":                  "Timezone is invalid",
	"business_hours[].oneof":             "Business hours contain an unknown weekday",
	"business_hours.open_day":            "At least one weekday must be open",
	"business_hours[][].start.required":  "Opening hours need a start time",
	"business_hours[][].end.required":    "Opening hours need an end time",
	"business_hours[][].start.clock":     "Opening hours must use HH:MM",
	"business_hours[][].end.clock":       "Opening hours must use HH:MM",
	"business_hours[][].end.after_start": "Opening hours must end after they start",

	"goals.required":   "At least one goal is required",
	"goals.min":        "At least one goal is required",
	"goals[].required": "Goals cannot be blank",
	"tasks[].required": "Tasks cannot be blank",

	"first_message.required":            "First message is required",
	"communication_style.required":      "Communication style is required",
	"support_languages.required":        "At least one supported language is required",
	"support_languages.min":             "At least one supported language is required",
	"support_languages[].required":      "Supported languages cannot be blank",
	"information_to_collect.required":   "At least one information field to collect is required",
	"information_to_collect.min":        "At least one information field to collect is required",
	"information_to_collect[].required": "Information fields cannot be blank",
	"key_questions[].required":          "Key questions cannot be blank",
	"knowledge_base[].required":         "Knowledge base entries cannot be blank",
	"faqs[].question.required":          "Every FAQ needs a question",
	"faqs[].answer.required":            "Every FAQ needs an answer",
	"keywords[].required":               "Keywords cannot be blank",
	"customer_questions[].required":     "Customer questions cannot be blank",
}

var indexPattern = regexp.MustCompile(`\[[^\]]*\]`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("clock", isClock); err != nil {
		panic(err)
	}
	v.RegisterStructValidation(businessHoursRule, BusinessInformation{})
	v.RegisterStructValidation(timeRangeRule, TimeRange{})
	return v
}

func isClock(fl validator.FieldLevel) bool {
	_, err := time.Parse("15:04", fl.Field().String())
	return err == nil
}

func businessHoursRule(sl validator.StructLevel) {
	info := sl.Current().Interface().(BusinessInformation)
	if len(info.BusinessHours.OpenDays()) == 0 {
		sl.ReportError(info.BusinessHours, "business_hours", "BusinessHours", "open_day", "")
	}
}

func timeRangeRule(sl validator.StructLevel) {
	r := sl.Current().Interface().(TimeRange)
	start, errStart := time.Parse("15:04", r.Start)
	end, errEnd := time.Parse("15:04", r.End)
	if errStart != nil || errEnd != nil {
		return
	}
	if !start.Before(end) {
		sl.ReportError(r.End, "end", "End", "after_start", "")
	}
}

// ValidateBusiness checks the step 1 payload.
func ValidateBusiness(info BusinessInformation) error {
	return run(StepBusiness, info)
}

// ValidateGoals checks the step 2 payload.
func ValidateGoals(goals AssistantGoals) error {
	return run(StepGoals, goals)
}

// ValidateInteraction checks the step 3 payload.
func ValidateInteraction(info AssistantInformation) error {
	return run(StepInteraction, info)
}

// ValidateStep dispatches to the schema of step. The payload may be a value or a
// pointer; nil pointers fail as an empty payload would.
func ValidateStep(step int, payload any) error {
	switch step {
	case StepBusiness:
		switch p := payload.(type) {
		case BusinessInformation:
			return ValidateBusiness(p)
		case *BusinessInformation:
			return ValidateBusiness(deref(p))
		}
	case StepGoals:
		switch p := payload.(type) {
		case AssistantGoals:
			return ValidateGoals(p)
		case *AssistantGoals:
			return ValidateGoals(deref(p))
		}
	case StepInteraction:
		switch p := payload.(type) {
		case AssistantInformation:
			return ValidateInteraction(p)
		case *AssistantInformation:
			return ValidateInteraction(deref(p))
		}
	default:
		return fmt.Errorf("step %d has no schema", step)
	}
	return fmt.Errorf("step %d: %w (got %T)", step, ErrPayloadMismatch, payload)
}

// Navigable is the light check behind the Continue control.
func Navigable(step int, payload any) bool {
	return ValidateStep(step, payload) == nil
}

// ValidateComplete checks all three payloads in step order and returns the
// first failing step's error.
func ValidateComplete(p CompletePayload) error {
	if err := ValidateBusiness(p.BusinessInformation); err != nil {
		return err
	}
	if err := ValidateGoals(p.AssistantGoals); err != nil {
		return err
	}
	return ValidateInteraction(p.AssistantInformation)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func run(step int, payload any) error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate step %d: %w", step, err)
	}

	out := &SchemaValidationError{Step: step}
	for _, fe := range fieldErrs {
		path := fieldPath(fe.Namespace())
		out.Issues = append(out.Issues, Issue{Field: path, Message: messageFor(path, fe.Tag())})
	}
	return out
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func messageFor(path, tag string) string {
	key := indexPattern.ReplaceAllString(path, "[]") + "." + tag
	if msg, ok := messages[key]; ok {
		return msg
	}
	return fmt.Sprintf("%s is invalid", strings.ReplaceAll(indexPattern.ReplaceAllString(path, ""), "_", " "))
}
