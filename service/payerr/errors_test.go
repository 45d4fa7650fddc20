package payerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeThroughWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("verify intent: %w", Gateway(MsgNotCompleted, cause))

	require.Equal(t, ErrGateway, Code(err))
	require.Equal(t, MsgNotCompleted, Message(err))
	require.ErrorIs(t, err, cause)
	require.Equal(t, ErrCode(""), Code(cause))
}

func TestFields(t *testing.T) {
	f := Fields{}
	require.NoError(t, f.Err())

	f.Add("quantity", "must be greater than 0")
	f.Add("quantity", "ignored")
	f.Add("email", "required")
	err := f.Err()
	require.Equal(t, ErrValidation, Code(err))
	require.Equal(t, map[string]string{"quantity": "must be greater than 0", "email": "required"}, FieldErrors(err))
	require.Equal(t, "VALIDATION: validation error [email: required] [quantity: must be greater than 0]", err.Error())
}
