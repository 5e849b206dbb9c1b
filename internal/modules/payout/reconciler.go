// README: Payout/ledger reconciler; pays drivers for approved reservations exactly once.
package payout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"vanbora/internal/modules/payment"
	"vanbora/internal/modules/reservation"
	"vanbora/internal/modules/trip"
	"vanbora/internal/modules/user"
	"vanbora/internal/types"
)

type Reservations interface {
	Get(ctx context.Context, id types.ID) (*reservation.Reservation, error)
	UpdatePayout(ctx context.Context, id types.ID, from payment.PayoutOutcome, to reservation.PayoutUpdate) (bool, error)
}

type Trips interface {
	Get(ctx context.Context, id types.ID) (*trip.Trip, error)
}

// Ledger holds driver balances. CreditBalance is only ever called from here.
type Ledger interface {
	Get(ctx context.Context, id types.ID) (*user.User, error)
	CreditBalance(ctx context.Context, id types.ID, amount types.Money) error
}

type Payouts interface {
	CreatePayout(ctx context.Context, req payment.PayoutRequest) (*payment.Payout, error)
}

type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Reconciler struct {
	reservations Reservations
	trips        Trips
	ledger       Ledger
	payouts      Payouts
	tx           TxRunner
	log          *slog.Logger
}

func NewReconciler(reservations Reservations, trips Trips, ledger Ledger, payouts Payouts, tx TxRunner, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		reservations: reservations,
		trips:        trips,
		ledger:       ledger,
		payouts:      payouts,
		tx:           tx,
		log:          log.With("component", "payout"),
	}
}

// Reconcile finishes a claimed payout (outcome PENDING). Cancelable trips
// credit the driver's balance. Other trips get an external payout, and any
// payout failure falls back to a balance credit. Calls on a reservation that
// is not PENDING return its recorded outcome unchanged.
func (r *Reconciler) Reconcile(ctx context.Context, id types.ID) (payment.PayoutOutcome, error) {
	res, err := r.reservations.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if res.PayoutOutcome != payment.PayoutPending {
		return res.PayoutOutcome, nil
	}
	t, err := r.trips.Get(ctx, res.TripID)
	if errors.Is(err, trip.ErrNotFound) {
		return "", fmt.Errorf("%w: reservation %s, trip %s", reservation.ErrTripMissing, res.ID, res.TripID)
	}
	if err != nil {
		return "", err
	}
	log := r.log.With("reservation_id", res.ID, "trip_id", t.ID, "driver_id", t.DriverID, "amount", res.Price.String())

	if t.Cancelable {
		return r.credit(ctx, res, t.DriverID, reservation.PayoutUpdate{Outcome: payment.PayoutLedgerCredit}, log)
	}

	driver, err := r.ledger.Get(ctx, t.DriverID)
	if err != nil {
		return "", err
	}
	p, err := r.sendPayout(ctx, res, driver)
	if err != nil {
		log.WarnContext(ctx, "external payout failed, crediting balance", "error", err)
		fallback := reservation.PayoutUpdate{Outcome: payment.PayoutLedgerFallback}
		if p != nil {
			fallback.PayoutID, fallback.PayoutStatus = p.ID, p.Status
		}
		return r.credit(ctx, res, t.DriverID, fallback, log)
	}

	ok, err := r.reservations.UpdatePayout(ctx, res.ID, payment.PayoutPending, reservation.PayoutUpdate{
		Outcome:      payment.PayoutExternal,
		PayoutID:     p.ID,
		PayoutStatus: p.Status,
	})
	if err != nil {
		return "", fmt.Errorf("record payout %s: %w", p.ID, err)
	}
	if !ok {
		return r.current(ctx, res.ID)
	}
	log.InfoContext(ctx, "external payout sent", "payout_id", p.ID, "payout_status", p.Status)
	return payment.PayoutExternal, nil
}

func (r *Reconciler) sendPayout(ctx context.Context, res *reservation.Reservation, driver *user.User) (*payment.Payout, error) {
	if driver.PixKey == "" {
		return nil, errors.New("driver has no pix key")
	}
	p, err := r.payouts.CreatePayout(ctx, payment.PayoutRequest{
		Amount:         res.Price,
		DestinationKey: driver.PixKey,
		Reference:      res.ID,
	})
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.New("gateway returned no payout")
	}
	if p.Failed() {
		return p, fmt.Errorf("payout %s ended %s", p.ID, p.Status)
	}
	return p, nil
}

// credit records the outcome and moves the money in one transaction. The
// conditional outcome update makes a second credit for the same reservation
// impossible.
func (r *Reconciler) credit(ctx context.Context, res *reservation.Reservation, driverID types.ID, upd reservation.PayoutUpdate, log *slog.Logger) (payment.PayoutOutcome, error) {
	var credited bool
	err := r.tx.InTx(ctx, func(ctx context.Context) error {
		ok, err := r.reservations.UpdatePayout(ctx, res.ID, payment.PayoutPending, upd)
		if err != nil || !ok {
			return err
		}
		if err := r.ledger.CreditBalance(ctx, driverID, res.Price); err != nil {
			return err
		}
		credited = true
		return nil
	})
	if err != nil {
		return "", err
	}
	if !credited {
		return r.current(ctx, res.ID)
	}
	log.InfoContext(ctx, "driver balance credited", "outcome", upd.Outcome)
	return upd.Outcome, nil
}

func (r *Reconciler) current(ctx context.Context, id types.ID) (payment.PayoutOutcome, error) {
	res, err := r.reservations.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return res.PayoutOutcome, nil
}
