// README: Reservation lifecycle tests over the in-memory store.
package reservation_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vanbora/internal/modules/payment"
	"vanbora/internal/modules/reservation"
	"vanbora/internal/testutil"
	"vanbora/internal/types"
)

func book(t *testing.T, s *testutil.Stack, userID, tripID types.ID, m payment.Method) *reservation.Booking {
	t.Helper()
	b, err := s.Reservations.Create(context.Background(), reservation.CreateCommand{
		UserID: userID, TripID: tripID, Method: m, PayerEmail: string(userID) + "@example.com",
	})
	require.NoError(t, err)
	return b
}

// assertSeatsConsistent checks available == capacity - confirmed reservations.
func assertSeatsConsistent(t *testing.T, s *testutil.Stack, tripID types.ID) {
	t.Helper()
	ctx := context.Background()
	tr, err := s.Trips.Get(ctx, tripID)
	require.NoError(t, err)
	confirmed, err := s.Repo.ListByTrip(ctx, tripID, reservation.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, tr.Capacity-len(confirmed), tr.AvailableSeats, "seat counter drifted on trip %s", tripID)
}

func TestCreate_CashIsApprovedImmediately(t *testing.T) {
	s := testutil.NewStack(t)
	d := s.Driver(t, "driver")
	p := s.Passenger(t, "alice")
	tr := s.Trip(t, d, testutil.TripOpts{Capacity: 2})

	b := book(t, s, p, tr.ID, payment.MethodCash)

	assert.Equal(t, reservation.StatusConfirmed, b.Reservation.Status)
	assert.Equal(t, payment.StatusApproved, b.Reservation.PaymentStatus)
	assert.Equal(t, tr.Price, b.Reservation.Price)
	assert.Nil(t, b.Charge)
	assert.Empty(t, s.Gateway.Charges(), "cash must not reach the gateway")
	assert.Equal(t, 1, s.Available(t, tr.ID))
	assertSeatsConsistent(t, s, tr.ID)
}

func TestCreate_PixOpensGatewayPayment(t *testing.T) {
	s := testutil.NewStack(t)
	d := s.Driver(t, "driver")
	p := s.Passenger(t, "alice")
	tr := s.Trip(t, d, testutil.TripOpts{Price: 2000})

	b := book(t, s, p, tr.ID, payment.MethodPix)

	assert.Equal(t, payment.StatusPending, b.Reservation.PaymentStatus)
	require.NotNil(t, b.Charge)
	assert.NotEmpty(t, b.Charge.QRCode)
	assert.Equal(t, b.Charge.ExternalID, b.Reservation.PaymentID)

	charges := s.Gateway.Charges()
	require.Len(t, charges, 1)
	assert.Equal(t, int64(2000), charges[0].Amount.Amount)
	assert.Equal(t, b.Reservation.ID, charges[0].Reference)

	stored := s.Reservation(t, b.Reservation.ID)
	assert.Equal(t, b.Charge.ExternalID, stored.PaymentID)
	assert.Equal(t, 3, s.Available(t, tr.ID), "pending payment still holds the seat")
}

func TestCreate_Rejections(t *testing.T) {
	s := testutil.NewStack(t)
	d := s.Driver(t, "driver")
	alice := s.Passenger(t, "alice")
	bob := s.Passenger(t, "bob")
	full := s.Trip(t, d, testutil.TripOpts{Capacity: 1})
	book(t, s, alice, full.ID, payment.MethodCash)
	soon := s.Trip(t, d, testutil.TripOpts{Departs: time.Hour})

	cases := []struct {
		name string
		cmd  reservation.CreateCommand
		want error
	}{
		{"trip full", reservation.CreateCommand{UserID: bob, TripID: full.ID, Method: payment.MethodCash}, reservation.ErrTripFull},
		{"duplicate", reservation.CreateCommand{UserID: alice, TripID: full.ID, Method: payment.MethodCash}, reservation.ErrDuplicateReservation},
		{"unknown trip", reservation.CreateCommand{UserID: bob, TripID: "nope", Method: payment.MethodCash}, reservation.ErrTripNotFound},
		{"unknown method", reservation.CreateCommand{UserID: bob, TripID: soon.ID, Method: "BITCOIN"}, payment.ErrUnknownMethod},
		{"missing user", reservation.CreateCommand{TripID: soon.ID, Method: payment.MethodCash}, reservation.ErrBadRequest},
		{"no profile", reservation.CreateCommand{UserID: "ghost", TripID: soon.ID, Method: payment.MethodCash}, reservation.ErrUnknownUser},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Reservations.Create(context.Background(), tc.cmd)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Equal(t, 0, s.Available(t, full.ID))
	assert.Equal(t, 4, s.Available(t, soon.ID), "failed creates must not hold seats")

	s.Clock.Advance(2 * time.Hour)
	_, err := s.Reservations.Create(context.Background(), reservation.CreateCommand{UserID: bob, TripID: soon.ID, Method: payment.MethodCash})
	assert.ErrorIs(t, err, reservation.ErrTripDeparted)
}

func TestCreate_GatewayFailureReleasesSeat(t *testing.T) {
	s := testutil.NewStack(t)
	d := s.Driver(t, "driver")
	p := s.Passenger(t, "alice")
	tr := s.Trip(t, d, testutil.TripOpts{Capacity: 1})
	s.Gateway.ChargeErr = errors.New("connection refused")

	_, err := s.Reservations.Create(context.Background(), reservation.CreateCommand{UserID: p, TripID: tr.ID, Method: payment.MethodCreditCard})
	require.ErrorIs(t, err, reservation.ErrGatewayUnavailable)
	assert.Equal(t, types.KindUnavailable, types.KindOf(err))

	assert.Equal(t, 1, s.Available(t, tr.ID))
	rs, err := s.Reservations.ListByUser(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, reservation.StatusCancelled, rs[0].Status)
	assert.Equal(t, payment.StatusRejected, rs[0].PaymentStatus)
	assertSeatsConsistent(t, s, tr.ID)

	// The passenger can try again once the provider is back.
	s.Gateway.ChargeErr = nil
	b := book(t, s, p, tr.ID, payment.MethodCreditCard)
	assert.NotEmpty(t, b.Charge.TicketURL)
}

func TestCreate_ConcurrentNeverOversells(t *testing.T) {
	s := testutil.NewStack(t)
	d := s.Driver(t, "driver")
	const capacity, passengers = 3, 12
	tr := s.Trip(t, d, testutil.TripOpts{Capacity: capacity})
	ids := make([]types.ID, passengers)
	for i := range ids {
		ids[i] = s.Passenger(t, fmt.Sprintf("p%02d", i))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		full    int
		unknown []error
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id types.ID) {
			defer wg.Done()
			_, err := s.Reservations.Create(context.Background(), reservation.CreateCommand{UserID: id, TripID: tr.ID, Method: payment.MethodPix})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, reservation.ErrTripFull), errors.Is(err, reservation.ErrNoSeatsAvailable):
				full++
			default:
				unknown = append(unknown, err)
			}
		}(id)
	}
	wg.Wait()

	assert.Empty(t, unknown)
	assert.Equal(t, capacity, ok)
	assert.Equal(t, passengers-capacity, full)
	assert.Equal(t, 0, s.Available(t, tr.ID))
	assertSeatsConsistent(t, s, tr.ID)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStack(t)
	d := s.Driver(t, "driver")
	alice := s.Passenger(t, "alice")
	bob := s.Passenger(t, "bob")
	tr := s.Trip(t, d, testutil.TripOpts{Capacity: 2, Cancelable: true})
	b := book(t, s, alice, tr.ID, payment.MethodCash)

	_, err := s.Reservations.Cancel(ctx, reservation.CancelCommand{ReservationID: b.Reservation.ID, UserID: bob})
	assert.ErrorIs(t, err, reservation.ErrForbidden)
	_, err = s.Reservations.Cancel(ctx, reservation.CancelCommand{ReservationID: "missing", UserID: alice})
	assert.ErrorIs(t, err, reservation.ErrNotFound)

	r, err := s.Reservations.Cancel(ctx, reservation.CancelCommand{ReservationID: b.Reservation.ID, UserID: alice})
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusCancelled, r.Status)
	assert.Equal(t, 2, s.Available(t, tr.ID))

	_, err = s.Reservations.Cancel(ctx, reservation.CancelCommand{ReservationID: b.Reservation.ID, UserID: alice})
	assert.ErrorIs(t, err, reservation.ErrAlreadyCancelled)
	assert.Equal(t, 2, s.Available(t, tr.ID), "second cancel must not release again")
	assertSeatsConsistent(t, s, tr.ID)
}

func TestCancel_NotCancelableTrip(t *testing.T) {
	s := testutil.NewStack(t)
	d := s.Driver(t, "driver")
	p := s.Passenger(t, "alice")
	tr := s.Trip(t, d, testutil.TripOpts{Cancelable: false})
	b := book(t, s, p, tr.ID, payment.MethodCash)

	_, err := s.Reservations.Cancel(context.Background(), reservation.CancelCommand{ReservationID: b.Reservation.ID, UserID: p})
	assert.ErrorIs(t, err, reservation.ErrTripNotCancelable)
	assert.Equal(t, 3, s.Available(t, tr.ID))
}

func TestCancel_DeadlineReasonsAreDistinct(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStack(t)
	d := s.Driver(t, "driver")
	p := s.Passenger(t, "alice")
	tr := s.Trip(t, d, testutil.TripOpts{Cancelable: true, Departs: 3 * time.Hour})
	b := book(t, s, p, tr.ID, payment.MethodCash)
	cmd := reservation.CancelCommand{ReservationID: b.Reservation.ID, UserID: p}

	s.Clock.Set(tr.DepartureAt.Add(-time.Hour))
	_, err := s.Reservations.Cancel(ctx, cmd)
	assert.ErrorIs(t, err, reservation.ErrCancellationWindowExpired)

	s.Clock.Set(tr.DepartureAt.Add(time.Minute))
	_, err = s.Reservations.Cancel(ctx, cmd)
	assert.ErrorIs(t, err, reservation.ErrTripAlreadyStarted)
	assert.NotEqual(t, types.CodeOf(reservation.ErrCancellationWindowExpired), types.CodeOf(err))

	assert.Equal(t, 3, s.Available(t, tr.ID))
}

func TestEdit_MovesOneSeatAndKeepsPrice(t *testing.T) {
	s := testutil.NewStack(t)
	d := s.Driver(t, "driver")
	p := s.Passenger(t, "alice")
	from := s.Trip(t, d, testutil.TripOpts{Capacity: 2, Price: 3000})
	to := s.Trip(t, d, testutil.TripOpts{Capacity: 2, Price: 5000, Departs: 72 * time.Hour})
	b := book(t, s, p, from.ID, payment.MethodCash)

	r, err := s.Reservations.Edit(context.Background(), reservation.EditCommand{ReservationID: b.Reservation.ID, UserID: p, NewTripID: to.ID})
	require.NoError(t, err)

	assert.Equal(t, to.ID, r.TripID)
	assert.Equal(t, int64(3000), s.Reservation(t, r.ID).Price.Amount)
	assert.Equal(t, 2, s.Available(t, from.ID))
	assert.Equal(t, 1, s.Available(t, to.ID))
	assertSeatsConsistent(t, s, from.ID)
	assertSeatsConsistent(t, s, to.ID)
}

func TestEdit_Rejections(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStack(t)
	d := s.Driver(t, "driver")
	other := s.Driver(t, "other")
	alice := s.Passenger(t, "alice")
	bob := s.Passenger(t, "bob")

	from := s.Trip(t, d, testutil.TripOpts{Capacity: 2})
	fullTrip := s.Trip(t, d, testutil.TripOpts{Capacity: 1})
	book(t, s, bob, fullTrip.ID, payment.MethodCash)
	foreign := s.Trip(t, other, testutil.TripOpts{})
	soon := s.Trip(t, d, testutil.TripOpts{Departs: time.Hour})
	dupTarget := s.Trip(t, d, testutil.TripOpts{})
	book(t, s, alice, dupTarget.ID, payment.MethodCash)

	b := book(t, s, alice, from.ID, payment.MethodCash)
	edit := func(userID, tripID types.ID) error {
		_, err := s.Reservations.Edit(ctx, reservation.EditCommand{ReservationID: b.Reservation.ID, UserID: userID, NewTripID: tripID})
		return err
	}

	assert.ErrorIs(t, edit(bob, dupTarget.ID), reservation.ErrForbidden)
	assert.ErrorIs(t, edit(alice, from.ID), reservation.ErrSameTrip)
	assert.ErrorIs(t, edit(alice, foreign.ID), reservation.ErrDriverMismatch)
	assert.ErrorIs(t, edit(alice, fullTrip.ID), reservation.ErrNoSeatsAvailable)
	assert.ErrorIs(t, edit(alice, soon.ID), reservation.ErrEditWindowExpired)
	assert.ErrorIs(t, edit(alice, dupTarget.ID), reservation.ErrDuplicateReservation)
	assert.ErrorIs(t, edit(alice, "missing"), reservation.ErrTripNotFound)

	for _, id := range []types.ID{from.ID, fullTrip.ID, foreign.ID, soon.ID, dupTarget.ID} {
		assertSeatsConsistent(t, s, id)
	}
	assert.Equal(t, 1, s.Available(t, from.ID))

	_, err := s.Reservations.Cancel(ctx, reservation.CancelCommand{ReservationID: b.Reservation.ID, UserID: alice})
	assert.ErrorIs(t, err, reservation.ErrTripNotCancelable)
}

func TestEdit_CancelledReservation(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStack(t)
	d := s.Driver(t, "driver")
	p := s.Passenger(t, "alice")
	from := s.Trip(t, d, testutil.TripOpts{Cancelable: true})
	to := s.Trip(t, d, testutil.TripOpts{})
	b := book(t, s, p, from.ID, payment.MethodCash)
	_, err := s.Reservations.Cancel(ctx, reservation.CancelCommand{ReservationID: b.Reservation.ID, UserID: p})
	require.NoError(t, err)

	_, err = s.Reservations.Edit(ctx, reservation.EditCommand{ReservationID: b.Reservation.ID, UserID: p, NewTripID: to.ID})
	assert.ErrorIs(t, err, reservation.ErrNotConfirmed)
}

func TestEdit_OriginTripDeadlines(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStack(t)
	d := s.Driver(t, "driver")
	p := s.Passenger(t, "alice")
	from := s.Trip(t, d, testutil.TripOpts{Departs: 3 * time.Hour})
	to := s.Trip(t, d, testutil.TripOpts{Departs: 96 * time.Hour})
	b := book(t, s, p, from.ID, payment.MethodCash)
	cmd := reservation.EditCommand{ReservationID: b.Reservation.ID, UserID: p, NewTripID: to.ID}

	s.Clock.Set(from.DepartureAt.Add(-30 * time.Minute))
	_, err := s.Reservations.Edit(ctx, cmd)
	assert.ErrorIs(t, err, reservation.ErrEditWindowExpired)

	s.Clock.Set(from.DepartureAt)
	_, err = s.Reservations.Edit(ctx, cmd)
	assert.ErrorIs(t, err, reservation.ErrEditTripAlreadyStarted)
}

func TestEdit_ConcurrentSwapsKeepCountsExact(t *testing.T) {
	s := testutil.NewStack(t)
	d := s.Driver(t, "driver")
	a := s.Trip(t, d, testutil.TripOpts{Capacity: 4})
	b := s.Trip(t, d, testutil.TripOpts{Capacity: 4, Departs: 72 * time.Hour})

	var cmds []reservation.EditCommand
	for i := 0; i < 3; i++ {
		pa := s.Passenger(t, fmt.Sprintf("a%d", i))
		pb := s.Passenger(t, fmt.Sprintf("b%d", i))
		ra := book(t, s, pa, a.ID, payment.MethodCash)
		rb := book(t, s, pb, b.ID, payment.MethodCash)
		cmds = append(cmds,
			reservation.EditCommand{ReservationID: ra.Reservation.ID, UserID: pa, NewTripID: b.ID},
			reservation.EditCommand{ReservationID: rb.Reservation.ID, UserID: pb, NewTripID: a.ID})
	}

	var wg sync.WaitGroup
	for _, cmd := range cmds {
		wg.Add(1)
		go func(cmd reservation.EditCommand) {
			defer wg.Done()
			_, _ = s.Reservations.Edit(context.Background(), cmd)
		}(cmd)
	}
	wg.Wait()

	assertSeatsConsistent(t, s, a.ID)
	assertSeatsConsistent(t, s, b.ID)
	assert.Equal(t, 2, s.Available(t, a.ID)+s.Available(t, b.ID))
}

func TestReads_OwnershipAndPassengerList(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStack(t)
	d := s.Driver(t, "driver")
	alice := s.Passenger(t, "alice")
	bob := s.Passenger(t, "bob")
	tr := s.Trip(t, d, testutil.TripOpts{})
	b := book(t, s, alice, tr.ID, payment.MethodCash)

	got, err := s.Reservations.Get(ctx, b.Reservation.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, tr.ID, got.TripID)
	_, err = s.Reservations.Get(ctx, b.Reservation.ID, bob)
	assert.ErrorIs(t, err, reservation.ErrForbidden)

	list, err := s.Reservations.ListPassengers(ctx, tr.ID, d)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, alice, list[0].UserID)
	_, err = s.Reservations.ListPassengers(ctx, tr.ID, alice)
	assert.Equal(t, types.KindForbidden, types.KindOf(err))
}

func TestRevoke_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStack(t)
	d := s.Driver(t, "driver")
	p := s.Passenger(t, "alice")
	tr := s.Trip(t, d, testutil.TripOpts{Capacity: 1})
	b := book(t, s, p, tr.ID, payment.MethodPix)

	revoked, err := s.Reservations.Revoke(ctx, b.Reservation.ID)
	require.NoError(t, err)
	assert.True(t, revoked)
	revoked, err = s.Reservations.Revoke(ctx, b.Reservation.ID)
	require.NoError(t, err)
	assert.False(t, revoked)
	assert.Equal(t, 1, s.Available(t, tr.ID))
}
