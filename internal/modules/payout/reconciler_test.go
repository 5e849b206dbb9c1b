// README: Reconciler tests for outcomes that settlement does not drive directly.
package payout_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vanbora/internal/modules/payment"
	"vanbora/internal/modules/reservation"
	"vanbora/internal/testutil"
)

func TestReconcile_OnlyActsOnPendingClaims(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStack(t)
	d := s.Driver(t, "driver")
	p := s.Passenger(t, "alice")
	tr := s.Trip(t, d, testutil.TripOpts{Cancelable: true, Price: 1000})
	b, err := s.Reservations.Create(ctx, reservation.CreateCommand{UserID: p, TripID: tr.ID, Method: payment.MethodCash})
	require.NoError(t, err)

	// Cash never claims a payout, so there is nothing to reconcile.
	outcome, err := s.Payouts.Reconcile(ctx, b.Reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.PayoutNone, outcome)
	assert.Equal(t, int64(0), s.Balance(t, d))

	_, err = s.DB.Reservations().UpdatePayout(ctx, b.Reservation.ID, payment.PayoutNone, reservation.PayoutUpdate{Outcome: payment.PayoutPending})
	require.NoError(t, err)

	outcome, err = s.Payouts.Reconcile(ctx, b.Reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.PayoutLedgerCredit, outcome)

	outcome, err = s.Payouts.Reconcile(ctx, b.Reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.PayoutLedgerCredit, outcome)
	assert.Equal(t, int64(1000), s.Balance(t, d), "second reconcile must not credit")
}

func TestReconcile_UnknownReservation(t *testing.T) {
	s := testutil.NewStack(t)
	_, err := s.Payouts.Reconcile(context.Background(), "missing")
	assert.ErrorIs(t, err, reservation.ErrNotFound)
}
