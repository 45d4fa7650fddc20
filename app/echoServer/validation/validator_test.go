package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Quantity int64  `json:"quantity" validate:"required,gt=0"`
	Email    string `json:"email,omitempty" validate:"required,email"`
}

func TestFields(t *testing.T) {
	err := New().Validate(sample{Quantity: -1, Email: "nope"})
	require.Error(t, err)
	require.Equal(t, map[string]string{"quantity": "gt 0", "email": "email"}, Fields(err))

	require.NoError(t, New().Validate(sample{Quantity: 2, Email: "a@example.com"}))
	require.Equal(t, map[string]string{"body": "invalid"}, Fields(errors.New("x")))
}
