// README: JSON views of domain objects.
package handlers

import (
	"time"

	"vanbora/internal/modules/payment"
	"vanbora/internal/modules/reservation"
	"vanbora/internal/modules/trip"
	"vanbora/internal/modules/user"
	"vanbora/internal/types"
)

type moneyView struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func newMoneyView(m types.Money) moneyView {
	return moneyView{Amount: m.String(), Currency: m.Currency}
}

type tripView struct {
	ID             types.ID  `json:"id"`
	DriverID       types.ID  `json:"driver_id"`
	Origin         string    `json:"origin"`
	Destination    string    `json:"destination"`
	DepartureAt    time.Time `json:"departure_at"`
	Capacity       int       `json:"capacity"`
	AvailableSeats int       `json:"available_seats"`
	Price          moneyView `json:"price"`
	Cancelable     bool      `json:"cancelable"`
}

func newTripView(t *trip.Trip) tripView {
	return tripView{
		ID:             t.ID,
		DriverID:       t.DriverID,
		Origin:         t.Origin,
		Destination:    t.Destination,
		DepartureAt:    t.DepartureAt,
		Capacity:       t.Capacity,
		AvailableSeats: t.AvailableSeats,
		Price:          newMoneyView(t.Price),
		Cancelable:     t.Cancelable,
	}
}

type reservationView struct {
	ID            types.ID              `json:"id"`
	UserID        types.ID              `json:"user_id"`
	TripID        types.ID              `json:"trip_id"`
	Status        reservation.Status    `json:"status"`
	PaymentMethod payment.Method        `json:"payment_method"`
	PaymentStatus payment.Status        `json:"payment_status"`
	PaymentID     string                `json:"payment_id,omitempty"`
	Price         moneyView             `json:"price"`
	PayoutOutcome payment.PayoutOutcome `json:"payout_outcome,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

func newReservationView(r *reservation.Reservation) reservationView {
	v := reservationView{
		ID:            r.ID,
		UserID:        r.UserID,
		TripID:        r.TripID,
		Status:        r.Status,
		PaymentMethod: r.PaymentMethod,
		PaymentStatus: r.PaymentStatus,
		PaymentID:     r.PaymentID,
		Price:         newMoneyView(r.Price),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.PayoutOutcome != payment.PayoutNone {
		v.PayoutOutcome = r.PayoutOutcome
	}
	return v
}

func newReservationViews(rs []*reservation.Reservation) []reservationView {
	out := make([]reservationView, 0, len(rs))
	for _, r := range rs {
		out = append(out, newReservationView(r))
	}
	return out
}

// chargeView is the payment artifact a passenger needs to pay (PIX QR or card ticket).
type chargeView struct {
	PaymentID    string `json:"payment_id"`
	Status       string `json:"status"`
	QRCode       string `json:"qr_code,omitempty"`
	QRCodeBase64 string `json:"qr_code_base64,omitempty"`
	TicketURL    string `json:"ticket_url,omitempty"`
}

type userView struct {
	ID       types.ID   `json:"id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	IsDriver bool       `json:"is_driver"`
	PixKey   string     `json:"pix_key,omitempty"`
	Balance  *moneyView `json:"balance,omitempty"`
}

func newUserView(u *user.User) userView {
	v := userView{ID: u.ID, Username: u.Username, Email: u.Email, IsDriver: u.IsDriver, PixKey: u.PixKey}
	if u.IsDriver {
		b := newMoneyView(u.Balance)
		v.Balance = &b
	}
	return v
}
