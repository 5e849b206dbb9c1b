// README: Reservation state machine; create, cancel and edit keep seats, status and payment consistent.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vanbora/internal/modules/deadline"
	"vanbora/internal/modules/inventory"
	"vanbora/internal/modules/payment"
	"vanbora/internal/modules/trip"
	"vanbora/internal/types"
)

// PayoutUpdate is written together with a payout outcome transition.
type PayoutUpdate struct {
	Outcome      payment.PayoutOutcome
	PayoutID     string
	PayoutStatus string
}

// Repository persists reservations. Update* methods are conditional on the
// current value and report whether the row changed. GetForUpdate locks the
// row until the surrounding transaction ends.
type Repository interface {
	Insert(ctx context.Context, r *Reservation) error
	Get(ctx context.Context, id types.ID) (*Reservation, error)
	GetForUpdate(ctx context.Context, id types.ID) (*Reservation, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*Reservation, error)
	HasConfirmed(ctx context.Context, userID, tripID types.ID) (bool, error)
	ListByUser(ctx context.Context, userID types.ID) ([]*Reservation, error)
	ListByTrip(ctx context.Context, tripID types.ID, status Status) ([]*Reservation, error)
	ListUnsettled(ctx context.Context, createdBefore time.Time, after Cursor, limit int) ([]*Reservation, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status) (bool, error)
	MoveTrip(ctx context.Context, id, from, to types.ID) (bool, error)
	SetPaymentID(ctx context.Context, id types.ID, paymentID string) (bool, error)
	UpdatePaymentStatus(ctx context.Context, id types.ID, from, to payment.Status) (bool, error)
	UpdatePayout(ctx context.Context, id types.ID, from payment.PayoutOutcome, to PayoutUpdate) (bool, error)
}

type Trips interface {
	Get(ctx context.Context, id types.ID) (*trip.Trip, error)
}

type Seats interface {
	Reserve(ctx context.Context, tripID types.ID) error
	Release(ctx context.Context, tripID types.ID) error
}

type PaymentCreator interface {
	CreatePayment(ctx context.Context, req payment.ChargeRequest) (*payment.Charge, error)
}

type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Deps struct {
	Repo     Repository
	Trips    Trips
	Seats    Seats
	Payments PaymentCreator
	Tx       TxRunner
	Policy   deadline.Policy
	Logger   *slog.Logger
}

type Service struct {
	repo     Repository
	trips    Trips
	seats    Seats
	payments PaymentCreator
	tx       TxRunner
	policy   deadline.Policy
	log      *slog.Logger
}

func NewService(d Deps) *Service {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	if d.Policy.Now == nil {
		d.Policy.Now = time.Now
	}
	return &Service{
		repo:     d.Repo,
		trips:    d.Trips,
		seats:    d.Seats,
		payments: d.Payments,
		tx:       d.Tx,
		policy:   d.Policy,
		log:      log.With("component", "reservation"),
	}
}

type CreateCommand struct {
	UserID     types.ID
	TripID     types.ID
	Method     payment.Method
	PayerEmail string
}

type CancelCommand struct {
	ReservationID types.ID
	UserID        types.ID
}

type EditCommand struct {
	ReservationID types.ID
	UserID        types.ID
	NewTripID     types.ID
}

// Booking is the result of Create. Charge is nil for cash.
type Booking struct {
	Reservation *Reservation
	Charge      *payment.Charge
}

// Create books a seat. For non-cash methods it opens a gateway payment after
// the seat is committed; if that fails the reservation is cancelled and the
// seat returned before the error is reported.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Booking, error) {
	if cmd.UserID == "" || cmd.TripID == "" {
		return nil, ErrBadRequest
	}
	if !cmd.Method.Valid() {
		return nil, payment.ErrUnknownMethod
	}

	var r *Reservation
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		t, err := s.trips.Get(ctx, cmd.TripID)
		if err != nil {
			return err
		}
		if s.policy.Check(t.DepartureAt) == deadline.Started {
			return ErrTripDeparted
		}
		if t.AvailableSeats <= 0 {
			return ErrTripFull
		}
		dup, err := s.repo.HasConfirmed(ctx, cmd.UserID, t.ID)
		if err != nil {
			return err
		}
		if dup {
			return ErrDuplicateReservation
		}
		if err := s.seats.Reserve(ctx, t.ID); err != nil {
			if errors.Is(err, inventory.ErrNoSeatsAvailable) {
				return ErrTripFull
			}
			return err
		}
		r = newReservation(cmd.UserID, t, cmd.Method, s.policy.Now().UTC())
		return s.repo.Insert(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	log := s.log.With("reservation_id", r.ID, "trip_id", r.TripID, "method", r.PaymentMethod)
	if r.PaymentMethod.Settled() {
		log.InfoContext(ctx, "reservation confirmed")
		return &Booking{Reservation: r}, nil
	}

	charge, err := s.payments.CreatePayment(ctx, payment.ChargeRequest{
		Amount:      r.Price,
		Method:      r.PaymentMethod,
		PayerEmail:  cmd.PayerEmail,
		PayerRef:    r.UserID,
		Description: fmt.Sprintf("Seat on trip %s", r.TripID),
		Reference:   r.ID,
		Metadata: map[string]string{
			"reservation_id": string(r.ID),
			"trip_id":        string(r.TripID),
		},
	})
	if err == nil && (charge == nil || charge.ExternalID == "") {
		err = errors.New("gateway returned no payment id")
	}
	if err != nil {
		s.abandon(ctx, r, err)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	ok, err := s.repo.SetPaymentID(ctx, r.ID, charge.ExternalID)
	if err == nil && !ok {
		err = fmt.Errorf("reservation %s already carries a payment id", r.ID)
	}
	if err != nil {
		s.abandon(ctx, r, err)
		return nil, fmt.Errorf("store payment id: %w", err)
	}
	r.PaymentID = charge.ExternalID
	log.InfoContext(ctx, "reservation awaiting payment", "payment_id", r.PaymentID)
	return &Booking{Reservation: r, Charge: charge}, nil
}

// Cancel is the passenger-initiated cancellation. Status change and seat
// release commit together.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Reservation, error) {
	var out *Reservation
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		r, err := s.lockOwned(ctx, cmd.ReservationID, cmd.UserID)
		if err != nil {
			return err
		}
		if r.Status == StatusCancelled {
			return ErrAlreadyCancelled
		}
		t, err := s.tripOf(ctx, r)
		if err != nil {
			return err
		}
		if !t.Cancelable {
			return ErrTripNotCancelable
		}
		switch s.policy.Check(t.DepartureAt) {
		case deadline.Started:
			return ErrTripAlreadyStarted
		case deadline.WindowExpired:
			return ErrCancellationWindowExpired
		}
		if err := s.revoke(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "reservation cancelled", "reservation_id", out.ID, "trip_id", out.TripID)
	return out, nil
}

// Edit moves a confirmed reservation to another departure of the same driver.
// The price snapshot is kept. Seat release, trip move and seat reserve commit
// as one transaction.
func (s *Service) Edit(ctx context.Context, cmd EditCommand) (*Reservation, error) {
	var (
		out     *Reservation
		oldTrip types.ID
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		r, err := s.lockOwned(ctx, cmd.ReservationID, cmd.UserID)
		if err != nil {
			return err
		}
		if r.Status != StatusConfirmed {
			return ErrNotConfirmed
		}
		from, err := s.tripOf(ctx, r)
		if err != nil {
			return err
		}
		if err := s.checkEditable(from); err != nil {
			return err
		}

		to, err := s.trips.Get(ctx, cmd.NewTripID)
		if err != nil {
			return err
		}
		if to.ID == from.ID {
			return ErrSameTrip
		}
		if to.DriverID != from.DriverID {
			return ErrDriverMismatch
		}
		if to.AvailableSeats <= 0 {
			return ErrNoSeatsAvailable
		}
		if err := s.checkEditable(to); err != nil {
			return fmt.Errorf("new trip: %w", err)
		}
		dup, err := s.repo.HasConfirmed(ctx, r.UserID, to.ID)
		if err != nil {
			return err
		}
		if dup {
			return ErrDuplicateReservation
		}

		if err := s.moveSeat(ctx, from.ID, to.ID); err != nil {
			return err
		}
		ok, err := s.repo.MoveTrip(ctx, r.ID, from.ID, to.ID)
		if err != nil {
			return err
		}
		if !ok {
			return types.ErrRetryable
		}
		oldTrip = from.ID
		r.TripID = to.ID
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "reservation moved", "reservation_id", out.ID, "from_trip", oldTrip, "to_trip", out.TripID)
	return out, nil
}

// Revoke cancels a confirmed reservation for a system reason (payment
// rejected) and returns its seat. It skips ownership and deadline rules and
// joins the caller's transaction when ctx carries one. revoked is false when
// the reservation was already cancelled.
func (s *Service) Revoke(ctx context.Context, id types.ID) (revoked bool, err error) {
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		r, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if r.Status != StatusConfirmed {
			return nil
		}
		if err := s.revoke(ctx, r); err != nil {
			return err
		}
		revoked = true
		return nil
	})
	return revoked, err
}

// Get returns a reservation owned by userID.
func (s *Service) Get(ctx context.Context, id, userID types.ID) (*Reservation, error) {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.UserID != userID {
		return nil, ErrForbidden
	}
	return r, nil
}

func (s *Service) ListByUser(ctx context.Context, userID types.ID) ([]*Reservation, error) {
	return s.repo.ListByUser(ctx, userID)
}

// ListPassengers returns the confirmed reservations on a trip to its driver.
func (s *Service) ListPassengers(ctx context.Context, tripID, driverID types.ID) ([]*Reservation, error) {
	t, err := s.trips.Get(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if t.DriverID != driverID {
		return nil, trip.ErrForbidden
	}
	return s.repo.ListByTrip(ctx, tripID, StatusConfirmed)
}

func (s *Service) lockOwned(ctx context.Context, id, userID types.ID) (*Reservation, error) {
	r, err := s.repo.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.UserID != userID {
		return nil, ErrForbidden
	}
	return r, nil
}

// tripOf loads the trip a stored reservation points at. A missing trip is an
// integrity failure, not a user error.
func (s *Service) tripOf(ctx context.Context, r *Reservation) (*trip.Trip, error) {
	t, err := s.trips.Get(ctx, r.TripID)
	if errors.Is(err, trip.ErrNotFound) {
		s.log.ErrorContext(ctx, "reservation references missing trip", "reservation_id", r.ID, "trip_id", r.TripID)
		return nil, fmt.Errorf("%w: reservation %s, trip %s", ErrTripMissing, r.ID, r.TripID)
	}
	return t, err
}

func (s *Service) checkEditable(t *trip.Trip) error {
	switch s.policy.Check(t.DepartureAt) {
	case deadline.Started:
		return ErrEditTripAlreadyStarted
	case deadline.WindowExpired:
		return ErrEditWindowExpired
	}
	return nil
}

// moveSeat touches the two trip rows in id order so concurrent edits in
// opposite directions cannot deadlock.
func (s *Service) moveSeat(ctx context.Context, from, to types.ID) error {
	if from < to {
		if err := s.seats.Release(ctx, from); err != nil {
			return err
		}
		return s.seats.Reserve(ctx, to)
	}
	if err := s.seats.Reserve(ctx, to); err != nil {
		return err
	}
	return s.seats.Release(ctx, from)
}

// revoke must run inside a transaction holding r's row lock.
func (s *Service) revoke(ctx context.Context, r *Reservation) error {
	if !CanTransition(r.Status, StatusCancelled) {
		return ErrAlreadyCancelled
	}
	ok, err := s.repo.UpdateStatus(ctx, r.ID, r.Status, StatusCancelled)
	if err != nil {
		return err
	}
	if !ok {
		return types.ErrRetryable
	}
	if err := s.seats.Release(ctx, r.TripID); err != nil {
		return err
	}
	r.Status = StatusCancelled
	return nil
}

// abandon compensates a create whose payment could not be opened: payment
// goes to REJECTED, the reservation to CANCELLED and the seat back to the trip.
func (s *Service) abandon(ctx context.Context, r *Reservation, cause error) {
	ctx = context.WithoutCancel(ctx)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		cur, err := s.repo.GetForUpdate(ctx, r.ID)
		if err != nil {
			return err
		}
		if _, err := s.repo.UpdatePaymentStatus(ctx, r.ID, payment.StatusPending, payment.StatusRejected); err != nil {
			return err
		}
		if cur.Status != StatusConfirmed {
			return nil
		}
		return s.revoke(ctx, cur)
	})
	if err != nil {
		s.log.ErrorContext(ctx, "compensation failed, seat still held",
			"reservation_id", r.ID, "trip_id", r.TripID, "cause", cause, "error", err)
		return
	}
	s.log.WarnContext(ctx, "reservation abandoned after payment setup failure",
		"reservation_id", r.ID, "trip_id", r.TripID, "error", cause)
}
