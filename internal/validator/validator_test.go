package validator

import (
	"testing"

	apperrors "github.com/SAP-F-2025/exam-session-service/internal/errors"
	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type startRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Variant   string `json:"variant" validate:"required,session_variant"`
}

func TestValidator_CustomRules(t *testing.T) {
	v := New()

	assert.NoError(t, v.ValidateStruct(startRequest{SessionID: "s-1", Variant: "practice"}))

	err := v.ValidateStruct(startRequest{Variant: "quiz"})
	require.Error(t, err)
	var errs apperrors.ValidationErrors
	require.ErrorAs(t, err, &errs)
	require.Len(t, errs, 2)
	assert.Equal(t, "session_id", errs[0].Field)
	assert.Equal(t, "variant", errs[1].Field)
	assert.Equal(t, "session_variant", errs[1].Rule)
}

func TestValidator_QuestionSet(t *testing.T) {
	v := New()

	valid := &models.QuestionSet{
		Duration: 10,
		Questions: []models.QuestionData{
			{ID: 1, Type: models.TypeMSA, Options: []string{"a", "b"}},
			{ID: 2, Type: models.TypeEMQ, Prompt: models.Prompt{"stem", "one"}, Options: []string{"x"}},
			{ID: 3, Type: models.TypeFIB, Options: []string{"2"}},
		},
	}
	assert.NoError(t, v.Validate(valid))

	invalid := &models.QuestionSet{
		Questions: []models.QuestionData{
			{ID: 1, Type: "ESSAY"},
		},
	}
	err := v.Validate(invalid)
	var errs apperrors.ValidationErrors
	require.ErrorAs(t, err, &errs)
	assert.Equal(t, "question_type", errs[0].Rule)
}

func TestQuestionValidator_Content(t *testing.T) {
	qv := NewQuestionValidator()

	set := &models.QuestionSet{
		Questions: []models.QuestionData{
			{ID: 1, Type: models.TypeORD, Options: []string{"only"}},
			{ID: 1, Type: models.TypeEMQ, Prompt: models.Prompt{"stem"}, Options: []string{"x"}},
			{ID: 2, Type: models.TypeTOF, Options: []string{"True", "False", "Maybe"}},
			{ID: 3, Type: models.TypeSAQ},
		},
		SavedAnswers: []models.SavedAnswer{{ID: 9, Type: models.TypeSAQ}},
	}

	errs, warnings := qv.ValidateSet(set)
	assert.Equal(t, []string{"questions[1].id"}, fieldsOf(errs))
	assert.Equal(t, []string{
		"questions[0]",
		"questions[1]",
		"questions[2]",
		"saved_answers[0].id",
	}, fieldsOf(warnings))
}

func TestValidator_MalformedQuestionIsOnlyAWarning(t *testing.T) {
	v := New()

	set := &models.QuestionSet{
		Duration: 5,
		Questions: []models.QuestionData{
			{ID: 1, Type: models.TypeSAQ, Prompt: models.Prompt{"Name a prime"}},
			{ID: 2, Type: models.TypeMSA, Prompt: models.Prompt{"Pick one"}},
		},
	}
	assert.NoError(t, v.Validate(set))

	warnings := v.ContentWarnings(set)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Error(), "questions[1]")

	set.Questions = append(set.Questions, models.QuestionData{ID: 2, Type: models.TypeSAQ})
	var errs apperrors.ValidationErrors
	require.ErrorAs(t, v.Validate(set), &errs)
	assert.Equal(t, "unique", errs[0].Rule)
}

func fieldsOf(errs apperrors.ValidationErrors) []string {
	fields := make([]string, 0, len(errs))
	for _, e := range errs {
		fields = append(fields, e.Field)
	}
	return fields
}
