// README: Payment method, payment status and payout outcome variants with their transition tables.
package payment

import (
	"strings"

	"vanbora/internal/types"
)

type Method string

const (
	MethodCash       Method = "CASH"
	MethodPix        Method = "PIX"
	MethodCreditCard Method = "CREDIT_CARD"
)

var ErrUnknownMethod = types.NewError(types.KindValidation, "unknown_payment_method", "payment method must be CASH, PIX or CREDIT_CARD")

func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToUpper(strings.TrimSpace(s))); m {
	case MethodCash, MethodPix, MethodCreditCard:
		return m, nil
	}
	return "", ErrUnknownMethod
}

func (m Method) Valid() bool {
	_, err := ParseMethod(string(m))
	return err == nil
}

// Settled reports whether the method is paid in hand and needs no gateway.
func (m Method) Settled() bool {
	return m == MethodCash
}

// InitialStatus is APPROVED for cash and PENDING for everything settled by the gateway.
func (m Method) InitialStatus() Status {
	if m.Settled() {
		return StatusApproved
	}
	return StatusPending
}

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// AllowedTransitions lists the payment flow. APPROVED and REJECTED are terminal.
var AllowedTransitions = map[Status][]Status{
	StatusPending: {StatusApproved, StatusRejected},
}

func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return len(AllowedTransitions[s]) == 0
}

// GatewayStatus is the authoritative status reported by the payment provider.
type GatewayStatus string

const (
	GatewayPending   GatewayStatus = "pending"
	GatewayApproved  GatewayStatus = "approved"
	GatewayRejected  GatewayStatus = "rejected"
	GatewayCancelled GatewayStatus = "cancelled"
	GatewayRefunded  GatewayStatus = "refunded"
)

var ErrUnknownGatewayStatus = types.NewError(types.KindUnavailable, "unknown_gateway_status", "payment provider returned an unknown status")

// ParseGatewayStatus folds the provider's intermediate states into the five we act on.
func ParseGatewayStatus(s string) (GatewayStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "in_process", "authorized", "in_mediation":
		return GatewayPending, nil
	case "approved":
		return GatewayApproved, nil
	case "rejected":
		return GatewayRejected, nil
	case "cancelled", "canceled":
		return GatewayCancelled, nil
	case "refunded", "charged_back":
		return GatewayRefunded, nil
	}
	return "", ErrUnknownGatewayStatus
}

// Target maps a gateway status onto the local payment status it settles to.
// ok is false while the provider still reports the payment as pending.
func (g GatewayStatus) Target() (Status, bool) {
	switch g {
	case GatewayApproved:
		return StatusApproved, true
	case GatewayRejected, GatewayCancelled, GatewayRefunded:
		return StatusRejected, true
	}
	return "", false
}

// PayoutOutcome records how a driver was paid for an approved reservation.
type PayoutOutcome string

const (
	PayoutNone           PayoutOutcome = "NONE"
	PayoutPending        PayoutOutcome = "PENDING"
	PayoutLedgerCredit   PayoutOutcome = "LEDGER_CREDIT"
	PayoutExternal       PayoutOutcome = "EXTERNAL_PAYOUT"
	PayoutLedgerFallback PayoutOutcome = "LEDGER_FALLBACK"
	PayoutSkipped        PayoutOutcome = "SKIPPED"
)

var payoutTransitions = map[PayoutOutcome][]PayoutOutcome{
	PayoutNone:    {PayoutPending, PayoutSkipped},
	PayoutPending: {PayoutLedgerCredit, PayoutExternal, PayoutLedgerFallback},
}

func CanAdvancePayout(from, to PayoutOutcome) bool {
	for _, s := range payoutTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Credited reports whether the outcome moved money into the driver's balance.
func (o PayoutOutcome) Credited() bool {
	return o == PayoutLedgerCredit || o == PayoutLedgerFallback
}
