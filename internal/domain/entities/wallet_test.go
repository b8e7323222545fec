package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWalletActionOperatorVerb(t *testing.T) {
	assert.Equal(t, "withdraw", WalletActionDebit.OperatorVerb())
	assert.Equal(t, "deposit", WalletActionCredit.OperatorVerb())
	assert.Equal(t, "", WalletAction("bogus").OperatorVerb())
}

func TestWalletActionFromOperatorVerb(t *testing.T) {
	cases := []struct {
		verb string
		want WalletAction
		ok   bool
	}{
		{"withdraw", WalletActionDebit, true},
		{"deposit", WalletActionCredit, true},
		{"transfer", "", false},
	}
	for _, c := range cases {
		t.Run(c.verb, func(t *testing.T) {
			got, ok := WalletActionFromOperatorVerb(c.verb)
			assert.Equal(t, c.ok, ok)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestWalletActionValid(t *testing.T) {
	assert.True(t, WalletActionDebit.Valid())
	assert.True(t, WalletActionCredit.Valid())
	assert.False(t, WalletAction("refund").Valid())
}

func TestCurrencyAllowlist(t *testing.T) {
	allow := NewCurrencyAllowlist([]string{"usd", " EUR ", "Gbp"})
	for _, c := range []string{"USD", "usd", "EUR", "GBP", "gbp"} {
		assert.True(t, allow.IsSupported(c), "expected %q to be supported", c)
	}
	assert.False(t, allow.IsSupported("JPY"))
}

func TestIsBlockedPlayer(t *testing.T) {
	assert.True(t, IsBlockedPlayer("player-1_bad"))
	assert.False(t, IsBlockedPlayer("player-1"))
}

func TestComputeOptimisticBalanceCents(t *testing.T) {
	assert.Equal(t, int64(-500), ComputeOptimisticBalanceCents(WalletActionDebit, 500))
	assert.Equal(t, int64(500), ComputeOptimisticBalanceCents(WalletActionCredit, 500))
}
