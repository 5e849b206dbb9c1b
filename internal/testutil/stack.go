// README: Test fixtures; the full service graph over the in-memory store, plus seeding helpers.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"vanbora/internal/memstore"
	"vanbora/internal/modules/deadline"
	"vanbora/internal/modules/inventory"
	"vanbora/internal/modules/payout"
	"vanbora/internal/modules/reservation"
	"vanbora/internal/modules/settlement"
	"vanbora/internal/modules/trip"
	"vanbora/internal/modules/user"
	"vanbora/internal/modules/webhook"
	"vanbora/internal/types"
)

// Clock is a settable time source shared by every service in a Stack.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type Stack struct {
	// DB is nil for Postgres-backed stacks; use Repo there.
	DB      *memstore.DB
	Repo    reservation.Repository
	Gateway *FakeGateway
	Clock   *Clock
	Locker  *webhook.LocalLocker

	Users        *user.Service
	Trips        *trip.Service
	Seats        *inventory.Manager
	Reservations *reservation.Service
	Payouts      *payout.Reconciler
	Settlement   *settlement.Service
	Ingress      *webhook.Ingress
}

// Backend is the storage a Stack runs on.
type Backend struct {
	Tx interface {
		InTx(ctx context.Context, fn func(ctx context.Context) error) error
	}
	Users        user.Repository
	Trips        trip.Repository
	Seats        inventory.Repository
	Reservations reservation.Repository
}

// NewStack wires every service against a fresh in-memory store. The clock
// starts at the current wall time so poller age cut-offs behave.
func NewStack(t testing.TB) *Stack {
	t.Helper()
	db := memstore.New()
	s := newStackOn(Backend{
		Tx:           db,
		Users:        db.Users(),
		Trips:        db.Trips(),
		Seats:        db.Seats(),
		Reservations: db.Reservations(),
	})
	s.DB = db
	return s
}

func newStackOn(b Backend) *Stack {
	log := DiscardLogger()
	gw := &FakeGateway{}
	clock := NewClock(time.Now().UTC().Truncate(time.Second))
	locker := webhook.NewLocalLocker()

	seats := inventory.NewManager(b.Seats, log)
	users := user.NewService(b.Users, log)
	trips := trip.NewService(b.Trips, seats, users, b.Tx, log).WithClock(clock.Now)
	policy := deadline.NewPolicy(deadline.DefaultWindow)
	policy.Now = clock.Now
	reservations := reservation.NewService(reservation.Deps{
		Repo:     b.Reservations,
		Trips:    trips,
		Seats:    seats,
		Payments: gw,
		Tx:       b.Tx,
		Policy:   policy,
		Logger:   log,
	})
	payouts := payout.NewReconciler(b.Reservations, trips, b.Users, gw, b.Tx, log)
	settler := settlement.NewService(b.Reservations, reservations, payouts, b.Tx, log)
	ingress := webhook.NewIngress(b.Reservations, gw, settler, locker, time.Minute, log)

	return &Stack{
		Repo:         b.Reservations,
		Gateway:      gw,
		Clock:        clock,
		Locker:       locker,
		Users:        users,
		Trips:        trips,
		Seats:        seats,
		Reservations: reservations,
		Payouts:      payouts,
		Settlement:   settler,
		Ingress:      ingress,
	}
}

// Driver registers a driver profile with a payout key.
func (s *Stack) Driver(t testing.TB, id string) types.ID {
	t.Helper()
	u, err := s.Users.Register(context.Background(), user.RegisterCommand{
		UserID:   types.ID(id),
		Username: id,
		Email:    id + "@example.com",
		IsDriver: true,
		PixKey:   id + "@pix",
	})
	if err != nil {
		t.Fatalf("register driver %s: %v", id, err)
	}
	return u.ID
}

// Passenger registers a passenger profile.
func (s *Stack) Passenger(t testing.TB, id string) types.ID {
	t.Helper()
	u, err := s.Users.Register(context.Background(), user.RegisterCommand{
		UserID:   types.ID(id),
		Username: id,
		Email:    id + "@example.com",
	})
	if err != nil {
		t.Fatalf("register passenger %s: %v", id, err)
	}
	return u.ID
}

type TripOpts struct {
	Capacity   int
	Departs    time.Duration
	Price      int64
	Cancelable bool
}

// Trip publishes a trip departing opts.Departs after the stack clock.
// Zero values default to four seats, 48h out, 45.00 BRL.
func (s *Stack) Trip(t testing.TB, driver types.ID, opts TripOpts) *trip.Trip {
	t.Helper()
	if opts.Capacity == 0 {
		opts.Capacity = 4
	}
	if opts.Departs == 0 {
		opts.Departs = 48 * time.Hour
	}
	if opts.Price == 0 {
		opts.Price = 4500
	}
	tr, err := s.Trips.Publish(context.Background(), trip.PublishCommand{
		DriverID:    driver,
		Origin:      "Sao Paulo",
		Destination: "Campinas",
		DepartureAt: s.Clock.Now().Add(opts.Departs),
		Capacity:    opts.Capacity,
		Price:       types.Cents(opts.Price),
		Cancelable:  opts.Cancelable,
	})
	if err != nil {
		t.Fatalf("publish trip: %v", err)
	}
	return tr
}

// Available reads the live seat counter.
func (s *Stack) Available(t testing.TB, tripID types.ID) int {
	t.Helper()
	c, err := s.Seats.Counts(context.Background(), tripID)
	if err != nil {
		t.Fatalf("counts %s: %v", tripID, err)
	}
	return c.Available
}

// Balance reads a driver's credited balance in cents.
func (s *Stack) Balance(t testing.TB, id types.ID) int64 {
	t.Helper()
	u, err := s.Users.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get user %s: %v", id, err)
	}
	return u.Balance.Amount
}

// Reservation reads a reservation without ownership checks.
func (s *Stack) Reservation(t testing.TB, id types.ID) *reservation.Reservation {
	t.Helper()
	r, err := s.Repo.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get reservation %s: %v", id, err)
	}
	return r
}
