package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusRejected, true},
		{StatusApproved, StatusRejected, false},
		{StatusRejected, StatusApproved, false},
		{StatusApproved, StatusPending, false},
		{StatusPending, StatusPending, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
	assert.True(t, StatusApproved.Terminal())
	assert.False(t, StatusPending.Terminal())
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod(" pix ")
	require.NoError(t, err)
	assert.Equal(t, MethodPix, m)
	assert.Equal(t, StatusPending, m.InitialStatus())
	assert.Equal(t, StatusApproved, MethodCash.InitialStatus())

	_, err = ParseMethod("BOLETO")
	assert.ErrorIs(t, err, ErrUnknownMethod)
	assert.False(t, Method("").Valid())
}

func TestGatewayStatusTarget(t *testing.T) {
	tests := []struct {
		raw    string
		target Status
		final  bool
	}{
		{"approved", StatusApproved, true},
		{"rejected", StatusRejected, true},
		{"cancelled", StatusRejected, true},
		{"refunded", StatusRejected, true},
		{"charged_back", StatusRejected, true},
		{"in_process", "", false},
		{"pending", "", false},
	}
	for _, tt := range tests {
		g, err := ParseGatewayStatus(tt.raw)
		require.NoError(t, err, tt.raw)
		target, final := g.Target()
		assert.Equal(t, tt.final, final, tt.raw)
		assert.Equal(t, tt.target, target, tt.raw)
	}

	_, err := ParseGatewayStatus("exploded")
	assert.ErrorIs(t, err, ErrUnknownGatewayStatus)
}

func TestPayoutOutcomeFlow(t *testing.T) {
	assert.True(t, CanAdvancePayout(PayoutNone, PayoutPending))
	assert.True(t, CanAdvancePayout(PayoutPending, PayoutLedgerFallback))
	assert.False(t, CanAdvancePayout(PayoutNone, PayoutLedgerCredit))
	assert.False(t, CanAdvancePayout(PayoutLedgerCredit, PayoutPending))
	assert.True(t, PayoutLedgerFallback.Credited())
	assert.False(t, PayoutExternal.Credited())
	assert.True(t, (&Payout{Status: "REJECTED"}).Failed())
	assert.False(t, (&Payout{Status: "approved"}).Failed())
}
