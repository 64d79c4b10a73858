package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Name   string `validate:"required"`
	Rating int    `validate:"gte=1,lte=5"`
	Email  string `validate:"omitempty,email"`
	Status string `validate:"omitempty,oneof=pending approved flagged"`
}

func TestValidate_Valid(t *testing.T) {
	err := Validate(sampleRequest{Name: "Alice", Rating: 5})
	assert.NoError(t, err)
}

func TestValidate_FieldMessages(t *testing.T) {
	err := Validate(sampleRequest{Rating: 9, Email: "nope", Status: "rejected"})
	require.Error(t, err)

	var valErr *ValidationError
	require.True(t, errors.As(err, &valErr))

	fields := valErr.Fields()
	assert.Equal(t, "is required", fields["Name"])
	assert.Equal(t, "must be less than or equal to 5", fields["Rating"])
	assert.Equal(t, "must be a valid email address", fields["Email"])
	assert.Contains(t, fields["Status"], "must be one of")
	assert.Contains(t, err.Error(), "field 'Name'")
}
