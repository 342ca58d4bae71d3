package validator

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/SAP-F-2025/exam-session-service/internal/errors"
	"github.com/SAP-F-2025/exam-session-service/internal/models"
)

// QuestionValidator checks that delivered questions can be rendered and
// answered. Only structural defects fail a set; content that still has a
// safe fallback comes back as warnings.
type QuestionValidator struct{}

func NewQuestionValidator() *QuestionValidator {
	return &QuestionValidator{}
}

// ValidateSet splits the problems of a set into errors, which make it
// unusable, and warnings about single questions that degrade to an
// unanswerable but harmless rendering.
func (v *QuestionValidator) ValidateSet(set *models.QuestionSet) (errs, warnings apperrors.ValidationErrors) {
	if set.Duration < 0 {
		errs = append(errs, apperrors.ValidationError{Field: "duration", Message: "must be at least 0", Value: set.Duration, Rule: "gte"})
	}

	known := make(map[int]bool, len(set.Questions))
	for i, q := range set.Questions {
		field := fmt.Sprintf("questions[%d]", i)
		if known[q.ID] {
			errs = append(errs, apperrors.ValidationError{Field: field + ".id", Message: "must be unique", Value: q.ID, Rule: "unique"})
		}
		known[q.ID] = true

		if !q.Type.Valid() {
			errs = append(errs, apperrors.ValidationError{Field: field + ".type", Message: fmt.Sprintf("unsupported question type: %s", q.Type), Value: q.Type, Rule: "question_type"})
			continue
		}
		if err := v.ValidateContent(q); err != nil {
			warnings = append(warnings, apperrors.ValidationError{Field: field, Message: err.Error(), Value: q.ID, Rule: string(q.Type)})
		}
	}

	for i, saved := range set.SavedAnswers {
		if !known[saved.ID] {
			warnings = append(warnings, apperrors.ValidationError{
				Field:   fmt.Sprintf("saved_answers[%d].id", i),
				Message: "does not match any question",
				Value:   saved.ID,
				Rule:    "exists",
			})
		}
	}
	return errs, warnings
}

// ValidateContent validates question content based on question type
func (v *QuestionValidator) ValidateContent(q models.QuestionData) error {
	switch q.Type {
	case models.TypeMSA, models.TypeMMA:
		return v.validateChoiceContent(q)
	case models.TypeTOF:
		return v.validateTrueFalseContent(q)
	case models.TypeSAQ:
		return nil
	case models.TypeFIB:
		return v.validateFillBlankContent(q)
	case models.TypeMTF:
		return v.validateMatchingContent(q)
	case models.TypeORD:
		return v.validateOrderingContent(q)
	case models.TypeEMQ:
		return v.validateExtendedMatchingContent(q)
	default:
		return fmt.Errorf("unsupported question type: %s", q.Type)
	}
}

func (v *QuestionValidator) validateChoiceContent(q models.QuestionData) error {
	if len(q.Options) < 2 {
		return fmt.Errorf("must have at least 2 options")
	}
	return nil
}

func (v *QuestionValidator) validateTrueFalseContent(q models.QuestionData) error {
	if len(q.Options) > 2 {
		return fmt.Errorf("cannot have more than 2 options")
	}
	return nil
}

func (v *QuestionValidator) validateFillBlankContent(q models.QuestionData) error {
	if len(q.Options) == 0 {
		return nil
	}
	if n, err := strconv.Atoi(strings.TrimSpace(q.Options[0])); err == nil && n > 50 {
		return fmt.Errorf("cannot have more than 50 blanks")
	}
	return nil
}

func (v *QuestionValidator) validateMatchingContent(q models.QuestionData) error {
	if len(q.Options) < 2 {
		return fmt.Errorf("must have at least 1 term and 1 definition")
	}
	return nil
}

func (v *QuestionValidator) validateOrderingContent(q models.QuestionData) error {
	if len(q.Options) < 2 {
		return fmt.Errorf("must have at least 2 items to order")
	}
	return nil
}

func (v *QuestionValidator) validateExtendedMatchingContent(q models.QuestionData) error {
	if len(q.Prompt) < 2 {
		return fmt.Errorf("must have a stem and at least 1 sub-question")
	}
	if len(q.Options) == 0 {
		return fmt.Errorf("must have at least 1 option")
	}
	return nil
}
