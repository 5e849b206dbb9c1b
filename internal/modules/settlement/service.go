// README: Applies authoritative gateway outcomes to a reservation's payment status.
package settlement

import (
	"context"
	"log/slog"

	"vanbora/internal/modules/payment"
	"vanbora/internal/modules/reservation"
	"vanbora/internal/types"
)

type Reservations interface {
	GetForUpdate(ctx context.Context, id types.ID) (*reservation.Reservation, error)
	UpdatePaymentStatus(ctx context.Context, id types.ID, from, to payment.Status) (bool, error)
	UpdatePayout(ctx context.Context, id types.ID, from payment.PayoutOutcome, to reservation.PayoutUpdate) (bool, error)
}

// Revoker cancels a reservation and frees its seat; the reservation service implements it.
type Revoker interface {
	Revoke(ctx context.Context, id types.ID) (bool, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, id types.ID) (payment.PayoutOutcome, error)
}

type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	repo    Reservations
	revoker Revoker
	payouts Reconciler
	tx      TxRunner
	log     *slog.Logger
}

func NewService(repo Reservations, revoker Revoker, payouts Reconciler, tx TxRunner, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, revoker: revoker, payouts: payouts, tx: tx, log: log.With("component", "settlement")}
}

// Result describes what one Apply call did.
type Result struct {
	ReservationID types.ID
	From          payment.Status
	To            payment.Status
	// Applied is true only for the call that moved the payment out of PENDING.
	Applied bool
	// Revoked is true when a rejection cancelled the reservation and freed its seat.
	Revoked bool
	Payout  payment.PayoutOutcome
}

// Apply moves the reservation's payment to the status the gateway reports.
// Only the first observation of a terminal status mutates anything; replays
// and conflicting late events are no-ops. An approval claims the payout in the
// same transaction, and the reconciler runs after commit.
func (s *Service) Apply(ctx context.Context, id types.ID, status payment.GatewayStatus) (*Result, error) {
	target, final := status.Target()
	res := &Result{ReservationID: id}
	var reconcile bool

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		r, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		res.From, res.To, res.Payout = r.PaymentStatus, r.PaymentStatus, r.PayoutOutcome
		if !final {
			return nil
		}
		if r.PaymentStatus == target {
			// Replay. Resume a payout that was claimed but never finished.
			reconcile = target == payment.StatusApproved && r.PayoutOutcome == payment.PayoutPending
			return nil
		}
		if !payment.CanTransition(r.PaymentStatus, target) {
			s.log.WarnContext(ctx, "ignoring gateway status for settled payment",
				"reservation_id", id, "payment_status", r.PaymentStatus, "gateway_status", status)
			return nil
		}

		ok, err := s.repo.UpdatePaymentStatus(ctx, id, r.PaymentStatus, target)
		if err != nil {
			return err
		}
		if !ok {
			return types.ErrRetryable
		}
		res.To, res.Applied = target, true

		switch target {
		case payment.StatusRejected:
			revoked, err := s.revoker.Revoke(ctx, id)
			if err != nil {
				return err
			}
			res.Revoked = revoked
		case payment.StatusApproved:
			next := payment.PayoutPending
			if r.Status != reservation.StatusConfirmed {
				// Paid after the passenger cancelled; there is no ride to pay the driver for.
				next = payment.PayoutSkipped
			}
			ok, err := s.repo.UpdatePayout(ctx, id, payment.PayoutNone, reservation.PayoutUpdate{Outcome: next})
			if err != nil {
				return err
			}
			if ok {
				res.Payout = next
				reconcile = next == payment.PayoutPending
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Applied {
		s.log.InfoContext(ctx, "payment settled",
			"reservation_id", id, "from", res.From, "to", res.To, "revoked", res.Revoked, "payout", res.Payout)
	}
	if res.Payout == payment.PayoutSkipped && res.Applied {
		s.log.WarnContext(ctx, "payment approved on cancelled reservation, refund needed", "reservation_id", id)
	}
	if !reconcile {
		return res, nil
	}
	outcome, err := s.payouts.Reconcile(ctx, id)
	if err != nil {
		return res, err
	}
	res.Payout = outcome
	return res, nil
}
