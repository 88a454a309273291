package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Quantity int    `json:"quantity" validate:"min=1"`
	Method   string `json:"method" validate:"omitempty,oneof=standard express"`
}

func TestValidateStructCollectsFieldErrors(t *testing.T) {
	err := ValidateStruct(sampleRequest{Email: "nope", Quantity: 0, Method: "teleport"})

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	require.Len(t, vErr.Errors, 3)

	fields := map[string]string{}
	for _, fe := range vErr.Errors {
		fields[fe.Field] = fe.Message
	}
	assert.Equal(t, "must be a valid email address", fields["email"])
	assert.Equal(t, "must be at least 1", fields["quantity"])
	assert.Equal(t, "must be one of [standard express]", fields["method"])
}

func TestValidateStructAcceptsValidInput(t *testing.T) {
	assert.NoError(t, ValidateStruct(sampleRequest{Email: "a@b.co", Quantity: 2}))
}
