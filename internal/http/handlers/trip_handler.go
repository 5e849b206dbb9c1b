// README: Trip handlers; search is public, publishing and edits are driver-only.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"vanbora/internal/http/middleware"
	"vanbora/internal/modules/trip"
	"vanbora/internal/types"
)

type TripHandler struct {
	trips    *trip.Service
	loc      *time.Location
	currency string
}

// NewTripHandler interprets date/time pairs in loc and prices in currency.
func NewTripHandler(svc *trip.Service, loc *time.Location, currency string) *TripHandler {
	if loc == nil {
		loc = time.UTC
	}
	if currency == "" {
		currency = types.DefaultCurrency
	}
	return &TripHandler{trips: svc, loc: loc, currency: currency}
}

type tripReq struct {
	Origin      *string `json:"origin"`
	Destination *string `json:"destination"`
	// Either DepartureAt (RFC 3339) or Date+Time in the service time zone.
	DepartureAt *time.Time `json:"departure_at"`
	Date        string     `json:"date"`
	Time        string     `json:"time"`
	Capacity    *int       `json:"capacity"`
	Price       *string    `json:"price"`
	Cancelable  *bool      `json:"cancelable"`
}

func (h *TripHandler) departure(req tripReq) (*time.Time, error) {
	if req.DepartureAt != nil {
		return req.DepartureAt, nil
	}
	if req.Date == "" && req.Time == "" {
		return nil, nil
	}
	at, err := trip.Departure(req.Date, req.Time, h.loc)
	if err != nil {
		return nil, trip.ErrInvalidTrip
	}
	return &at, nil
}

func (h *TripHandler) price(req tripReq) (*types.Money, error) {
	if req.Price == nil {
		return nil, nil
	}
	m, err := types.ParseMoney(*req.Price, h.currency)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (h *TripHandler) Publish(c *gin.Context) {
	var req tripReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	at, err := h.departure(req)
	if err != nil {
		writeError(c, err)
		return
	}
	price, err := h.price(req)
	if err != nil {
		writeError(c, err)
		return
	}
	if req.Origin == nil || req.Destination == nil || at == nil || req.Capacity == nil || price == nil {
		badRequest(c, "origin, destination, departure, capacity and price are required")
		return
	}
	t, err := h.trips.Publish(c.Request.Context(), trip.PublishCommand{
		DriverID:    types.ID(middleware.CallerUID(c)),
		Origin:      *req.Origin,
		Destination: *req.Destination,
		DepartureAt: *at,
		Capacity:    *req.Capacity,
		Price:       *price,
		Cancelable:  req.Cancelable != nil && *req.Cancelable,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, newTripView(t))
}

func (h *TripHandler) List(c *gin.Context) {
	f := trip.Filter{
		Origin:      c.Query("origin"),
		Destination: c.Query("destination"),
	}
	if driver := c.Query("driver_id"); driver != "" {
		id, ok := types.ParseID(driver)
		if !ok {
			writeError(c, errBadID)
			return
		}
		f.DriverID = id
	}
	if date := c.Query("date"); date != "" {
		day, err := time.ParseInLocation("2006-01-02", date, h.loc)
		if err != nil {
			badRequest(c, "date must be YYYY-MM-DD")
			return
		}
		f.DepartsAfter = day
	}
	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		f.Limit = n
	}
	ts, err := h.trips.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]tripView, 0, len(ts))
	for _, t := range ts {
		out = append(out, newTripView(t))
	}
	writeJSON(c, http.StatusOK, gin.H{"trips": out})
}

func (h *TripHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	t, err := h.trips.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newTripView(t))
}

func (h *TripHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req tripReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	at, err := h.departure(req)
	if err != nil {
		writeError(c, err)
		return
	}
	price, err := h.price(req)
	if err != nil {
		writeError(c, err)
		return
	}
	t, err := h.trips.Update(c.Request.Context(), trip.UpdateCommand{
		TripID:      id,
		DriverID:    types.ID(middleware.CallerUID(c)),
		Origin:      req.Origin,
		Destination: req.Destination,
		DepartureAt: at,
		Capacity:    req.Capacity,
		Price:       price,
		Cancelable:  req.Cancelable,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newTripView(t))
}

func (h *TripHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.trips.Delete(c.Request.Context(), id, types.ID(middleware.CallerUID(c))); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
