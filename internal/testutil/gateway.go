// README: In-process payment gateway double with scripted charge, status and payout behaviour.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"vanbora/internal/modules/payment"
)

// FakeGateway implements payment.Gateway. Zero value is usable; every
// payment starts pending until SetStatus says otherwise.
type FakeGateway struct {
	mu sync.Mutex

	ChargeErr    error
	StatusErr    error
	PayoutErr    error
	PayoutStatus string

	seq      int
	statuses map[string]payment.GatewayStatus
	charges  []payment.ChargeRequest
	payouts  []payment.PayoutRequest
	queries  int
}

func (g *FakeGateway) CreatePayment(_ context.Context, req payment.ChargeRequest) (*payment.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges = append(g.charges, req)
	if g.ChargeErr != nil {
		return nil, g.ChargeErr
	}
	g.seq++
	id := fmt.Sprintf("pay-%d", g.seq)
	if g.statuses == nil {
		g.statuses = make(map[string]payment.GatewayStatus)
	}
	g.statuses[id] = payment.GatewayPending
	ch := &payment.Charge{ExternalID: id, Status: payment.GatewayPending}
	if req.Method == payment.MethodPix {
		ch.QRCode = "00020126-" + id
		ch.QRCodeBase64 = "cXI="
	} else {
		ch.TicketURL = "https://pay.example.test/" + id
	}
	return ch, nil
}

func (g *FakeGateway) GetPaymentStatus(_ context.Context, externalID string) (payment.GatewayStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queries++
	if g.StatusErr != nil {
		return "", g.StatusErr
	}
	s, ok := g.statuses[externalID]
	if !ok {
		return "", fmt.Errorf("payment %s not found", externalID)
	}
	return s, nil
}

func (g *FakeGateway) CreatePayout(_ context.Context, req payment.PayoutRequest) (*payment.Payout, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payouts = append(g.payouts, req)
	if g.PayoutErr != nil {
		return nil, g.PayoutErr
	}
	status := g.PayoutStatus
	if status == "" {
		status = "approved"
	}
	return &payment.Payout{ID: fmt.Sprintf("po-%d", len(g.payouts)), Status: status}, nil
}

// SetStatus scripts what the provider reports for a payment from now on.
func (g *FakeGateway) SetStatus(externalID string, s payment.GatewayStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statuses == nil {
		g.statuses = make(map[string]payment.GatewayStatus)
	}
	g.statuses[externalID] = s
}

func (g *FakeGateway) Charges() []payment.ChargeRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]payment.ChargeRequest(nil), g.charges...)
}

func (g *FakeGateway) Payouts() []payment.PayoutRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]payment.PayoutRequest(nil), g.payouts...)
}

func (g *FakeGateway) StatusQueries() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queries
}
