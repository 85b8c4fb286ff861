package interaction

import (
	"strings"

	"github.com/spec-kit/community-bot/internal/domain"
	apperrors "github.com/spec-kit/community-bot/pkg/util"
)

// MaxAnswerLength caps a single intake answer.
const MaxAnswerLength = 1024

// IntakeAnswers orders submitted values by the form's fields. Blank optional
// fields are skipped; a blank required field is a validation error.
func IntakeAnswers(form domain.IntakeForm, values map[string]string) ([]domain.FormAnswer, error) {
	answers := make([]domain.FormAnswer, 0, len(form.Fields))
	var missing []string
	for _, field := range form.Fields {
		value := strings.TrimSpace(values[field.ID])
		if value == "" {
			if field.Required {
				missing = append(missing, field.Label)
			}
			continue
		}
		if runes := []rune(value); len(runes) > MaxAnswerLength {
			value = string(runes[:MaxAnswerLength])
		}
		answers = append(answers, domain.FormAnswer{Label: field.Label, Answer: value})
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError("please fill in: "+strings.Join(missing, ", "), map[string]any{"missing": missing})
	}
	return answers, nil
}
