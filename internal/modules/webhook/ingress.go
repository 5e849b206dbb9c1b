// README: Webhook ingress; resolves a gateway payment id to a reservation and settles it idempotently.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vanbora/internal/modules/payment"
	"vanbora/internal/modules/reservation"
	"vanbora/internal/modules/settlement"
	"vanbora/internal/types"
)

var (
	ErrBusy     = types.NewError(types.KindConflict, "settlement_in_progress", "another delivery for this payment is being processed")
	ErrUpstream = types.NewError(types.KindUnavailable, "payment_status_unavailable", "could not query payment status")
)

type Lookup interface {
	GetByPaymentID(ctx context.Context, paymentID string) (*reservation.Reservation, error)
}

type StatusSource interface {
	GetPaymentStatus(ctx context.Context, externalID string) (payment.GatewayStatus, error)
}

type Settler interface {
	Apply(ctx context.Context, id types.ID, status payment.GatewayStatus) (*settlement.Result, error)
}

type Outcome string

const (
	// OutcomeIgnored: no local reservation carries this payment id.
	OutcomeIgnored Outcome = "ignored"
	// OutcomePending: the gateway still reports the payment as pending.
	OutcomePending Outcome = "pending"
	// OutcomeApplied: this delivery moved the payment to a terminal status.
	OutcomeApplied Outcome = "applied"
	// OutcomeDuplicate: the status was already applied; nothing changed.
	OutcomeDuplicate Outcome = "duplicate"
)

type Result struct {
	Outcome       Outcome
	ReservationID types.ID
	PaymentStatus payment.Status
	Payout        payment.PayoutOutcome
}

type Ingress struct {
	lookup  Lookup
	status  StatusSource
	settler Settler
	locker  Locker
	lockTTL time.Duration
	log     *slog.Logger
}

func NewIngress(lookup Lookup, status StatusSource, settler Settler, locker Locker, lockTTL time.Duration, log *slog.Logger) *Ingress {
	if log == nil {
		log = slog.Default()
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &Ingress{
		lookup:  lookup,
		status:  status,
		settler: settler,
		locker:  locker,
		lockTTL: lockTTL,
		log:     log.With("component", "webhook"),
	}
}

// Handle processes one delivery. Unknown payment ids are acknowledged
// (OutcomeIgnored, nil error). Lookup and gateway failures are returned so the
// provider redelivers.
func (i *Ingress) Handle(ctx context.Context, paymentID string) (*Result, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return &Result{Outcome: OutcomeIgnored}, nil
	}
	r, err := i.lookup.GetByPaymentID(ctx, paymentID)
	if errors.Is(err, reservation.ErrNotFound) {
		i.log.InfoContext(ctx, "webhook for unknown payment ignored", "payment_id", paymentID)
		return &Result{Outcome: OutcomeIgnored}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup payment %s: %w", paymentID, err)
	}
	return i.Settle(ctx, r.ID, paymentID)
}

// Settle re-queries the gateway and applies the result under the
// reservation's lock. The poller calls it directly.
func (i *Ingress) Settle(ctx context.Context, id types.ID, paymentID string) (*Result, error) {
	unlock, err := i.locker.Lock(ctx, lockKey(id), i.lockTTL)
	if err != nil {
		return nil, err
	}
	defer unlock()

	gs, err := i.status.GetPaymentStatus(ctx, paymentID)
	if err != nil {
		i.log.WarnContext(ctx, "payment status query failed", "reservation_id", id, "payment_id", paymentID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	sr, err := i.settler.Apply(ctx, id, gs)
	if err != nil {
		return nil, err
	}

	out := &Result{ReservationID: id, PaymentStatus: sr.To, Payout: sr.Payout}
	switch _, final := gs.Target(); {
	case !final:
		out.Outcome = OutcomePending
	case sr.Applied:
		out.Outcome = OutcomeApplied
	default:
		out.Outcome = OutcomeDuplicate
	}
	i.log.InfoContext(ctx, "webhook processed",
		"reservation_id", id, "payment_id", paymentID, "gateway_status", gs, "outcome", out.Outcome)
	return out, nil
}

func lockKey(id types.ID) string {
	return "vanbora:settlement:" + string(id)
}
