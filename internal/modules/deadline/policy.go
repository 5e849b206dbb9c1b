// README: Alteration-window policy for cancel and edit; pure functions of departure time and now.
package deadline

import "time"

// DefaultWindow is how long before departure cancel and edit close.
const DefaultWindow = 2 * time.Hour

// HasStarted reports whether now is at or after departure.
func HasStarted(now, departure time.Time) bool {
	return !now.Before(departure)
}

// IsPastDeadline reports whether now is strictly after departure minus window.
func IsPastDeadline(now, departure time.Time, window time.Duration) bool {
	return now.After(departure.Add(-window))
}

// Verdict is the result of checking a departure against the policy.
type Verdict int

const (
	Open Verdict = iota
	Started
	WindowExpired
)

func (v Verdict) String() string {
	switch v {
	case Started:
		return "started"
	case WindowExpired:
		return "window_expired"
	default:
		return "open"
	}
}

type Policy struct {
	Window time.Duration
	Now    func() time.Time
}

func NewPolicy(window time.Duration) Policy {
	if window <= 0 {
		window = DefaultWindow
	}
	return Policy{Window: window, Now: time.Now}
}

// Check classifies departure. Started wins over WindowExpired so callers can
// report the two cases with different messages.
func (p Policy) Check(departure time.Time) Verdict {
	now := p.now()
	if HasStarted(now, departure) {
		return Started
	}
	if IsPastDeadline(now, departure, p.window()) {
		return WindowExpired
	}
	return Open
}

func (p Policy) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

func (p Policy) window() time.Duration {
	if p.Window <= 0 {
		return DefaultWindow
	}
	return p.Window
}
