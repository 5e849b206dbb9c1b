// README: Reservation handlers for book/list/get/cancel/edit.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vanbora/internal/http/middleware"
	"vanbora/internal/modules/payment"
	"vanbora/internal/modules/reservation"
	"vanbora/internal/types"
)

type ReservationHandler struct {
	reservations *reservation.Service
}

func NewReservationHandler(svc *reservation.Service) *ReservationHandler {
	return &ReservationHandler{reservations: svc}
}

type createReservationReq struct {
	PaymentMethod string `json:"payment_method" binding:"required"`
}

// Create handles POST /api/trips/:id/reservations.
func (h *ReservationHandler) Create(c *gin.Context) {
	tripID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req createReservationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "payment_method is required")
		return
	}
	method, err := payment.ParseMethod(req.PaymentMethod)
	if err != nil {
		writeError(c, err)
		return
	}
	booking, err := h.reservations.Create(c.Request.Context(), reservation.CreateCommand{
		UserID:     types.ID(middleware.CallerUID(c)),
		TripID:     tripID,
		Method:     method,
		PayerEmail: middleware.CallerEmail(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	resp := gin.H{"reservation": newReservationView(booking.Reservation)}
	if ch := booking.Charge; ch != nil {
		resp["payment"] = chargeView{
			PaymentID:    ch.ExternalID,
			Status:       string(ch.Status),
			QRCode:       ch.QRCode,
			QRCodeBase64: ch.QRCodeBase64,
			TicketURL:    ch.TicketURL,
		}
	}
	writeJSON(c, http.StatusCreated, resp)
}

func (h *ReservationHandler) List(c *gin.Context) {
	rs, err := h.reservations.ListByUser(c.Request.Context(), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"reservations": newReservationViews(rs)})
}

func (h *ReservationHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	r, err := h.reservations.Get(c.Request.Context(), id, types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newReservationView(r))
}

func (h *ReservationHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	r, err := h.reservations.Cancel(c.Request.Context(), reservation.CancelCommand{
		ReservationID: id,
		UserID:        types.ID(middleware.CallerUID(c)),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newReservationView(r))
}

type editReservationReq struct {
	NewTripID string `json:"new_trip_id" binding:"required"`
}

func (h *ReservationHandler) Edit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req editReservationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "new_trip_id is required")
		return
	}
	newTrip, ok := types.ParseID(req.NewTripID)
	if !ok {
		writeError(c, errBadID)
		return
	}
	r, err := h.reservations.Edit(c.Request.Context(), reservation.EditCommand{
		ReservationID: id,
		UserID:        types.ID(middleware.CallerUID(c)),
		NewTripID:     newTrip,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newReservationView(r))
}

// Passengers lists confirmed reservations on the caller's own trip.
func (h *ReservationHandler) Passengers(c *gin.Context) {
	tripID, ok := pathID(c, "id")
	if !ok {
		return
	}
	rs, err := h.reservations.ListPassengers(c.Request.Context(), tripID, types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"passengers": newReservationViews(rs)})
}
