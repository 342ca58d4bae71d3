package validator

import (
	"fmt"
	"reflect"
	"strings"

	apperrors "github.com/SAP-F-2025/exam-session-service/internal/errors"
	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/SAP-F-2025/exam-session-service/internal/session"
	"github.com/go-playground/validator/v10"
)

// Validator combines struct tag validation with question content rules
type Validator struct {
	structValidator   *validator.Validate
	questionValidator *QuestionValidator
}

func New() *Validator {
	structValidator := validator.New()

	// Register all custom validators once
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator:   structValidator,
		questionValidator: NewQuestionValidator(),
	}
}

// ValidateStruct validates struct tags only
func (v *Validator) ValidateStruct(s interface{}) error {
	if err := v.structValidator.Struct(s); err != nil {
		if errs := apperrors.ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// Validate performs struct validation and, for question sets, the
// structural rules. Per-question content problems are left to
// ContentWarnings.
func (v *Validator) Validate(s interface{}) error {
	if err := v.ValidateStruct(s); err != nil {
		return err
	}

	if set, ok := s.(*models.QuestionSet); ok {
		if errs, _ := v.questionValidator.ValidateSet(set); len(errs) > 0 {
			return errs
		}
	}
	return nil
}

// ContentWarnings lists per-question problems that Validate tolerates.
func (v *Validator) ContentWarnings(set *models.QuestionSet) []error {
	_, warnings := v.questionValidator.ValidateSet(set)
	out := make([]error, 0, len(warnings))
	for i := range warnings {
		out = append(out, &warnings[i])
	}
	return out
}

func (v *Validator) Question() *QuestionValidator {
	return v.questionValidator
}

// registerCustomValidators registers all custom validation functions
func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_type", validateQuestionType)
	validate.RegisterValidation("session_variant", validateSessionVariant)

	// Custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateQuestionType(fl validator.FieldLevel) bool {
	return models.QuestionType(fl.Field().String()).Valid()
}

func validateSessionVariant(fl validator.FieldLevel) bool {
	return session.Variant(fl.Field().String()).Valid()
}
