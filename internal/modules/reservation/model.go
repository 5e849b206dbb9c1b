// README: Reservation aggregate, lifecycle status and transition table.
package reservation

import (
	"time"

	"vanbora/internal/modules/payment"
	"vanbora/internal/modules/trip"
	"vanbora/internal/types"
)

type Status string

const (
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

// AllowedTransitions is the reservation lifecycle. CANCELLED is terminal.
var AllowedTransitions = map[Status][]Status{
	StatusConfirmed: {StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Cursor is a keyset position in (created_at, id) order. The zero value starts
// from the oldest row.
type Cursor struct {
	CreatedAt time.Time
	ID        types.ID
}

func (c Cursor) IsZero() bool {
	return c.ID == "" && c.CreatedAt.IsZero()
}

// After reports whether r sorts strictly after the cursor.
func (c Cursor) After(r *Reservation) bool {
	if c.IsZero() {
		return true
	}
	if r.CreatedAt.Equal(c.CreatedAt) {
		return r.ID > c.ID
	}
	return r.CreatedAt.After(c.CreatedAt)
}

type Reservation struct {
	ID            types.ID
	UserID        types.ID
	TripID        types.ID
	Status        Status
	PaymentMethod payment.Method
	PaymentStatus payment.Status
	PaymentID     string
	// Price is the trip price when the seat was booked. It never changes.
	Price         types.Money
	PayoutOutcome payment.PayoutOutcome
	PayoutID      string
	PayoutStatus  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// newReservation snapshots the trip price and derives the initial payment status from method.
func newReservation(userID types.ID, t *trip.Trip, method payment.Method, now time.Time) *Reservation {
	return &Reservation{
		ID:            types.NewID(),
		UserID:        userID,
		TripID:        t.ID,
		Status:        StatusConfirmed,
		PaymentMethod: method,
		PaymentStatus: method.InitialStatus(),
		Price:         t.Price,
		PayoutOutcome: payment.PayoutNone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// HoldsSeat reports whether the reservation counts against its trip's inventory.
func (r *Reservation) HoldsSeat() bool {
	return r.Status == StatusConfirmed
}
