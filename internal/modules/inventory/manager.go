// README: Seat inventory manager; reserve/release/resize on a trip's available-seat counter.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"vanbora/internal/types"
)

var (
	ErrNoSeatsAvailable      = types.NewError(types.KindConflict, "no_seats_available", "no seats available on this trip")
	ErrTripNotFound          = types.NewError(types.KindNotFound, "trip_not_found", "trip not found")
	ErrCapacityBelowReserved = types.NewError(types.KindRejected, "capacity_below_reserved", "capacity cannot drop below seats already reserved")
	ErrInvalidCapacity       = types.NewError(types.KindValidation, "invalid_capacity", "capacity must be positive")
	// ErrSeatOverflow means a release found the trip already at capacity.
	ErrSeatOverflow = types.NewError(types.KindIntegrity, "seat_overflow", "seat release would exceed trip capacity")
	// ErrTripMissing means a seat was released against a trip that no longer exists.
	ErrTripMissing = types.NewError(types.KindIntegrity, "trip_missing", "reserved trip is missing")
)

// Counts is a snapshot of a trip's counters.
type Counts struct {
	Available int
	Capacity  int
}

func (c Counts) Held() int {
	return c.Capacity - c.Available
}

// Repository performs the conditional updates. Each method is one atomic
// statement; ok=false means the guard did not hold (or the trip is absent).
type Repository interface {
	DecrementSeat(ctx context.Context, tripID types.ID) (bool, error)
	IncrementSeat(ctx context.Context, tripID types.ID) (bool, error)
	ResizeCapacity(ctx context.Context, tripID types.ID, capacity int) (bool, error)
	Counts(ctx context.Context, tripID types.ID) (Counts, error)
}

type Manager struct {
	repo Repository
	log  *slog.Logger
}

func NewManager(repo Repository, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{repo: repo, log: log.With("component", "inventory")}
}

// Reserve takes one seat. It never drives available_seats below zero.
func (m *Manager) Reserve(ctx context.Context, tripID types.ID) error {
	ok, err := m.repo.DecrementSeat(ctx, tripID)
	if err != nil {
		return fmt.Errorf("reserve seat: %w", err)
	}
	if ok {
		return nil
	}
	if _, err := m.repo.Counts(ctx, tripID); err != nil {
		return err
	}
	return ErrNoSeatsAvailable
}

// Release returns one seat. A release on a full or missing trip is an
// integrity failure and is reported, never clamped silently.
func (m *Manager) Release(ctx context.Context, tripID types.ID) error {
	ok, err := m.repo.IncrementSeat(ctx, tripID)
	if err != nil {
		return fmt.Errorf("release seat: %w", err)
	}
	if ok {
		return nil
	}
	c, err := m.repo.Counts(ctx, tripID)
	if errors.Is(err, ErrTripNotFound) {
		m.log.ErrorContext(ctx, "seat release on missing trip", "trip_id", tripID)
		return fmt.Errorf("%w: trip %s", ErrTripMissing, tripID)
	}
	if err != nil {
		return err
	}
	m.log.ErrorContext(ctx, "seat release would overflow capacity",
		"trip_id", tripID, "available", c.Available, "capacity", c.Capacity)
	return fmt.Errorf("%w: trip %s at %d/%d", ErrSeatOverflow, tripID, c.Available, c.Capacity)
}

// Resize changes capacity and shifts available seats by the same delta, so
// seats already held stay held.
func (m *Manager) Resize(ctx context.Context, tripID types.ID, capacity int) error {
	if capacity <= 0 {
		return ErrInvalidCapacity
	}
	ok, err := m.repo.ResizeCapacity(ctx, tripID, capacity)
	if err != nil {
		return fmt.Errorf("resize trip: %w", err)
	}
	if ok {
		return nil
	}
	c, err := m.repo.Counts(ctx, tripID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %d seats held", ErrCapacityBelowReserved, c.Held())
}

func (m *Manager) Counts(ctx context.Context, tripID types.ID) (Counts, error) {
	return m.repo.Counts(ctx, tripID)
}
