package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ruleInput struct {
	CategoryID string `json:"category_id" validate:"required"`
	TypeID     string `json:"type_id,omitempty"`
}

type rulesInput struct {
	Rules []ruleInput `json:"rules" validate:"required,min=1,dive"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, ValidateStruct(rulesInput{Rules: []ruleInput{{CategoryID: "messaging"}}}))
	})

	t.Run("fields reported by json name", func(t *testing.T) {
		err := ValidateStruct(rulesInput{Rules: []ruleInput{{TypeID: "message_sent"}}})
		require.Error(t, err)
		assert.True(t, IsValidationError(err))

		fields := GetValidationFields(err)
		assert.Equal(t, "rules[0].category_id is required", fields["rules[0].category_id"])
	})

	t.Run("empty list", func(t *testing.T) {
		err := ValidateStruct(rulesInput{Rules: []ruleInput{}})
		require.Error(t, err)
		assert.Contains(t, GetValidationFields(err), "rules")
	})
}

func TestValidationHelpers_NonValidationError(t *testing.T) {
	err := errors.New("boom")
	assert.False(t, IsValidationError(err))
	assert.Nil(t, GetValidationFields(err))
	assert.Equal(t, "Validation failed", (&ValidationError{Message: "Validation failed"}).Error())
}
