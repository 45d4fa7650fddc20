package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequesterRef(t *testing.T) {
	for _, r := range []Requester{UserRequester(12), GuestRequester(3)} {
		got, err := ParseRef(r.Ref())
		require.NoError(t, err)
		require.Equal(t, r, got)
	}
	require.Equal(t, "u:12", UserRequester(12).Ref())

	for _, bad := range []string{"", "u", "x:1", "g:0", "u:-4", "u:abc"} {
		_, err := ParseRef(bad)
		require.ErrorIs(t, err, ErrBadRef, bad)
	}
}

func TestIntentStatusTransitions(t *testing.T) {
	require.True(t, IntentPending.CanTransition(IntentCompleted))
	require.True(t, IntentPending.CanTransition(IntentFailed))
	require.True(t, IntentCompleted.CanTransition(IntentCreditedToWallet))
	require.False(t, IntentPending.CanTransition(IntentCreditedToWallet))
	require.False(t, IntentFailed.CanTransition(IntentCompleted))
	require.False(t, IntentCreditedToWallet.CanTransition(IntentPending))
	require.True(t, IntentFailed.Terminal())
	require.False(t, IntentCompleted.Terminal())
}
