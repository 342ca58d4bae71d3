package errors

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("session_id", "is required", "")

	assert.Equal(t, "session_id", err.Field)
	assert.Equal(t, "is required", err.Message)
	assert.Equal(t, "validation error on field 'session_id': is required", err.Error())
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	assert.Equal(t, "validation failed", errs.Error())

	errs = append(errs, *NewValidationError("variant", "must be a valid session variant (exam, practice)", "quiz"))
	assert.Equal(t, "validation failed: variant must be a valid session variant (exam, practice)", errs.Error())

	errs = append(errs, *NewValidationErrorWithRule("sub_index", "must be at least 0", "gte", -1))
	assert.Equal(t, "validation failed: 2 field errors", errs.Error())
	assert.Equal(t, "gte", errs[1].Rule)
}

func TestToValidationErrors(t *testing.T) {
	type request struct {
		SessionID string `validate:"required"`
		Index     int    `validate:"gte=0"`
	}

	err := validator.New().Struct(request{Index: -1})
	require.Error(t, err)

	errs := ToValidationErrors(err)
	require.Len(t, errs, 2)
	assert.Equal(t, "SessionID", errs[0].Field)
	assert.Equal(t, "is required", errs[0].Message)
	assert.Equal(t, "must be at least 0", errs[1].Message)
	assert.Equal(t, -1, errs[1].Value)

	assert.Empty(t, ToValidationErrors(assert.AnError))
}
