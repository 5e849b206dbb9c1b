// README: Boundary types for the external payment gateway (charges and payouts).
package payment

import (
	"context"
	"strings"

	"vanbora/internal/types"
)

type ChargeRequest struct {
	Amount      types.Money
	Method      Method
	PayerEmail  string
	PayerRef    types.ID
	Description string
	// Reference is the reservation id; the client also sends it as the idempotency key.
	Reference types.ID
	Metadata  map[string]string
}

// Charge is what the gateway returns for a new payment. The presentation
// fields are handed to the passenger so they can pay.
type Charge struct {
	ExternalID   string
	Status       GatewayStatus
	QRCode       string
	QRCodeBase64 string
	TicketURL    string
}

type PayoutRequest struct {
	Amount         types.Money
	DestinationKey string
	Reference      types.ID
}

type Payout struct {
	ID     string
	Status string
}

// Failed reports a payout the provider accepted but refused to execute.
func (p *Payout) Failed() bool {
	switch strings.ToLower(p.Status) {
	case "rejected", "failed", "cancelled", "canceled", "error":
		return true
	}
	return false
}

type Gateway interface {
	CreatePayment(ctx context.Context, req ChargeRequest) (*Charge, error)
	GetPaymentStatus(ctx context.Context, externalID string) (GatewayStatus, error)
	CreatePayout(ctx context.Context, req PayoutRequest) (*Payout, error)
}
