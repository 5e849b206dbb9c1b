package deadline

import (
	"testing"
	"time"
)

func TestCheck(t *testing.T) {
	departure := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want Verdict
	}{
		{"well before window", departure.Add(-5 * time.Hour), Open},
		{"exactly at window edge", departure.Add(-2 * time.Hour), Open},
		{"one second inside window", departure.Add(-2*time.Hour + time.Second), WindowExpired},
		{"one hour before departure", departure.Add(-time.Hour), WindowExpired},
		{"at departure", departure, Started},
		{"one minute after departure", departure.Add(time.Minute), Started},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := tt.now
			p := Policy{Window: 2 * time.Hour, Now: func() time.Time { return now }}
			if got := p.Check(departure); got != tt.want {
				t.Fatalf("Check() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCheckAcrossTimezones(t *testing.T) {
	sp, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	departure := time.Date(2026, 3, 10, 8, 0, 0, 0, sp)
	now := time.Date(2026, 3, 10, 10, 30, 0, 0, time.UTC)

	p := Policy{Window: 2 * time.Hour, Now: func() time.Time { return now }}
	if got := p.Check(departure); got != WindowExpired {
		t.Fatalf("Check() = %s, want %s", got, WindowExpired)
	}
}

func TestNewPolicyDefaultsWindow(t *testing.T) {
	if p := NewPolicy(0); p.Window != DefaultWindow {
		t.Fatalf("window = %s, want %s", p.Window, DefaultWindow)
	}
	if !HasStarted(time.Unix(100, 0), time.Unix(100, 0)) {
		t.Fatal("HasStarted must be true at the exact instant")
	}
	if IsPastDeadline(time.Unix(0, 0), time.Unix(7200, 0), 2*time.Hour) {
		t.Fatal("IsPastDeadline must be false at the exact window edge")
	}
}
