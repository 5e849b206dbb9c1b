// README: Trip aggregate published by drivers.
package trip

import (
	"strings"
	"time"

	"vanbora/internal/types"
)

type Trip struct {
	ID             types.ID
	DriverID       types.ID
	Origin         string
	Destination    string
	DepartureAt    time.Time
	Capacity       int
	AvailableSeats int
	Price          types.Money
	Cancelable     bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Held is the number of seats taken by confirmed reservations.
func (t *Trip) Held() int {
	return t.Capacity - t.AvailableSeats
}

type Filter struct {
	Origin      string
	Destination string
	DriverID    types.ID
	// DepartsAfter hides trips that have already left; zero means no bound.
	DepartsAfter time.Time
	Limit        int
}

var clockLayouts = []string{"15:04", "15:04:05"}

// Departure combines a calendar date and a wall-clock time into one instant in loc.
func Departure(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	var lastErr error
	for _, layout := range clockLayouts {
		t, err := time.ParseInLocation("2006-01-02 "+layout, date+" "+clock, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
