// README: Trip service; drivers publish, edit and delete departures, everyone can browse.
package trip

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vanbora/internal/modules/inventory"
	"vanbora/internal/modules/user"
	"vanbora/internal/types"
)

var (
	ErrNotFound        = inventory.ErrTripNotFound
	ErrForbidden       = types.NewError(types.KindForbidden, "trip_forbidden", "only the trip's driver can change it")
	ErrNotDriver       = types.NewError(types.KindForbidden, "not_a_driver", "only drivers can publish trips")
	ErrInvalidTrip     = types.NewError(types.KindValidation, "invalid_trip", "invalid trip")
	ErrDepartureInPast = types.NewError(types.KindValidation, "departure_in_past", "departure must be in the future")
)

type Repository interface {
	Create(ctx context.Context, t *Trip) error
	Get(ctx context.Context, id types.ID) (*Trip, error)
	List(ctx context.Context, f Filter) ([]*Trip, error)
	UpdateDetails(ctx context.Context, t *Trip) error
	Delete(ctx context.Context, id types.ID) error
}

type Seats interface {
	Resize(ctx context.Context, tripID types.ID, capacity int) error
}

type Users interface {
	Get(ctx context.Context, id types.ID) (*user.User, error)
}

type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	repo  Repository
	seats Seats
	users Users
	tx    TxRunner
	now   func() time.Time
	log   *slog.Logger
}

func NewService(repo Repository, seats Seats, users Users, tx TxRunner, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, seats: seats, users: users, tx: tx, now: time.Now, log: log.With("component", "trip")}
}

// WithClock overrides the service clock; tests use it to pin "now".
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type PublishCommand struct {
	DriverID    types.ID
	Origin      string
	Destination string
	DepartureAt time.Time
	Capacity    int
	Price       types.Money
	Cancelable  bool
}

type UpdateCommand struct {
	TripID      types.ID
	DriverID    types.ID
	Origin      *string
	Destination *string
	DepartureAt *time.Time
	Capacity    *int
	Price       *types.Money
	Cancelable  *bool
}

func (s *Service) Publish(ctx context.Context, cmd PublishCommand) (*Trip, error) {
	driver, err := s.users.Get(ctx, cmd.DriverID)
	if err != nil {
		return nil, err
	}
	if !driver.IsDriver {
		return nil, ErrNotDriver
	}

	now := s.now().UTC()
	t := &Trip{
		ID:             types.NewID(),
		DriverID:       cmd.DriverID,
		Origin:         strings.TrimSpace(cmd.Origin),
		Destination:    strings.TrimSpace(cmd.Destination),
		DepartureAt:    cmd.DepartureAt.UTC(),
		Capacity:       cmd.Capacity,
		AvailableSeats: cmd.Capacity,
		Price:          cmd.Price,
		Cancelable:     cmd.Cancelable,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if t.Price.Currency == "" {
		t.Price.Currency = types.DefaultCurrency
	}
	if err := s.validate(t, true); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "trip published", "trip_id", t.ID, "driver_id", t.DriverID, "capacity", t.Capacity)
	return t, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Trip, error) {
	return s.repo.Get(ctx, id)
}

// List returns upcoming trips unless the filter sets its own lower bound.
func (s *Service) List(ctx context.Context, f Filter) ([]*Trip, error) {
	if f.DepartsAfter.IsZero() {
		f.DepartsAfter = s.now()
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	return s.repo.List(ctx, f)
}

// Update edits a trip owned by cmd.DriverID. Price edits never touch existing
// reservations, which keep their snapshot.
func (s *Service) Update(ctx context.Context, cmd UpdateCommand) (*Trip, error) {
	var out *Trip
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		t, err := s.repo.Get(ctx, cmd.TripID)
		if err != nil {
			return err
		}
		if t.DriverID != cmd.DriverID {
			return ErrForbidden
		}
		if cmd.Origin != nil {
			t.Origin = strings.TrimSpace(*cmd.Origin)
		}
		if cmd.Destination != nil {
			t.Destination = strings.TrimSpace(*cmd.Destination)
		}
		if cmd.DepartureAt != nil {
			t.DepartureAt = cmd.DepartureAt.UTC()
		}
		if cmd.Price != nil {
			t.Price = *cmd.Price
		}
		if cmd.Cancelable != nil {
			t.Cancelable = *cmd.Cancelable
		}
		// A departed trip can still have its details corrected; only a new
		// departure time has to lie in the future.
		if err := s.validate(t, cmd.DepartureAt != nil); err != nil {
			return err
		}
		t.UpdatedAt = s.now().UTC()
		if err := s.repo.UpdateDetails(ctx, t); err != nil {
			return err
		}
		if cmd.Capacity != nil && *cmd.Capacity != t.Capacity {
			if err := s.seats.Resize(ctx, t.ID, *cmd.Capacity); err != nil {
				return err
			}
		}
		out, err = s.repo.Get(ctx, t.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "trip updated", "trip_id", out.ID)
	return out, nil
}

// Delete removes a trip and, with it, every reservation on it.
func (s *Service) Delete(ctx context.Context, tripID, driverID types.ID) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		t, err := s.repo.Get(ctx, tripID)
		if err != nil {
			return err
		}
		if t.DriverID != driverID {
			return ErrForbidden
		}
		if err := s.repo.Delete(ctx, tripID); err != nil {
			return err
		}
		s.log.InfoContext(ctx, "trip deleted", "trip_id", tripID, "held_seats", t.Held())
		return nil
	})
}

func (s *Service) validate(t *Trip, futureDeparture bool) error {
	switch {
	case t.Origin == "":
		return fmt.Errorf("%w: origin is required", ErrInvalidTrip)
	case t.Destination == "":
		return fmt.Errorf("%w: destination is required", ErrInvalidTrip)
	case t.Capacity <= 0:
		return inventory.ErrInvalidCapacity
	case t.Price.Amount < 0:
		return types.ErrInvalidAmount
	case futureDeparture && !t.DepartureAt.After(s.now()):
		return ErrDepartureInPast
	}
	return nil
}
