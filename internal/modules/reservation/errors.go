package reservation

import (
	"vanbora/internal/modules/inventory"
	"vanbora/internal/modules/trip"
	"vanbora/internal/types"
)

var (
	ErrBadRequest           = types.NewError(types.KindValidation, "bad_request", "user and trip are required")
	ErrTripNotFound         = trip.ErrNotFound
	ErrTripFull             = types.NewError(types.KindConflict, "trip_full", "trip is full")
	ErrDuplicateReservation = types.NewError(types.KindConflict, "duplicate_reservation", "you already hold a reservation on this trip")
	ErrNotFound             = types.NewError(types.KindNotFound, "reservation_not_found", "reservation not found")
	ErrForbidden            = types.NewError(types.KindForbidden, "reservation_forbidden", "reservation belongs to another user")
	ErrAlreadyCancelled     = types.NewError(types.KindConflict, "already_cancelled", "reservation is already cancelled")
	ErrNotConfirmed         = types.NewError(types.KindConflict, "not_confirmed", "only confirmed reservations can be edited")
	ErrTripNotCancelable    = types.NewError(types.KindRejected, "trip_not_cancelable", "this trip does not allow cancellation")

	ErrTripAlreadyStarted        = types.NewError(types.KindRejected, "trip_already_started", "cannot cancel: the trip has already started")
	ErrCancellationWindowExpired = types.NewError(types.KindRejected, "cancellation_window_expired", "cannot cancel: the cancellation window has expired")
	ErrEditTripAlreadyStarted    = types.NewError(types.KindRejected, "trip_already_started", "cannot edit: the trip has already started")
	ErrEditWindowExpired         = types.NewError(types.KindRejected, "edit_window_expired", "cannot edit: the alteration window has expired")

	ErrSameTrip         = types.NewError(types.KindRejected, "same_trip", "new trip is the current trip")
	ErrDriverMismatch   = types.NewError(types.KindRejected, "driver_mismatch", "reservations can only move between trips of the same driver")
	ErrNoSeatsAvailable = inventory.ErrNoSeatsAvailable

	ErrGatewayUnavailable = types.NewError(types.KindUnavailable, "payment_gateway_unavailable", "payment provider unavailable, try again")
	// ErrTripMissing means a stored reservation points at a trip that does not exist.
	ErrTripMissing = inventory.ErrTripMissing
)

var (
	ErrTripDeparted = types.NewError(types.KindRejected, "trip_departed", "the trip has already departed")
	ErrUnknownUser  = types.NewError(types.KindValidation, "profile_required", "register a profile before reserving")
)
