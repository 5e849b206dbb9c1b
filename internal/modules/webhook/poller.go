// README: Periodic resync of unsettled payments; recovers webhook deliveries that never arrived.
package webhook

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"vanbora/internal/modules/reservation"
)

type Unsettled interface {
	ListUnsettled(ctx context.Context, createdBefore time.Time, after reservation.Cursor, limit int) ([]*reservation.Reservation, error)
}

type PollerConfig struct {
	Interval time.Duration
	MinAge   time.Duration
	Batch    int
}

// Poller never expires a payment on its own. A reservation the gateway still
// reports as pending stays pending, so each sweep resumes after the last row
// it visited and wraps around once the backlog is exhausted.
type Poller struct {
	ingress *Ingress
	source  Unsettled
	cfg     PollerConfig
	now     func() time.Time
	log     *slog.Logger

	mu     sync.Mutex
	cursor reservation.Cursor
}

func NewPoller(ingress *Ingress, source Unsettled, cfg PollerConfig, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.MinAge <= 0 {
		cfg.MinAge = 5 * time.Minute
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 100
	}
	return &Poller{ingress: ingress, source: source, cfg: cfg, now: time.Now, log: log.With("component", "payment_poller")}
}

func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := p.Sweep(ctx); err != nil && ctx.Err() == nil {
				p.log.ErrorContext(ctx, "payment resync failed", "error", err)
			}
		}
	}
}

// Sweep settles one batch and returns how many reservations changed state.
func (p *Poller) Sweep(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pending, err := p.source.ListUnsettled(ctx, p.now().Add(-p.cfg.MinAge), p.cursor, p.cfg.Batch)
	if err != nil {
		return 0, err
	}
	if len(pending) < p.cfg.Batch {
		p.cursor = reservation.Cursor{}
	} else {
		last := pending[len(pending)-1]
		p.cursor = reservation.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	changed := 0
	for _, r := range pending {
		if r.PaymentID == "" {
			continue
		}
		res, err := p.ingress.Settle(ctx, r.ID, r.PaymentID)
		switch {
		case errors.Is(err, ErrBusy):
			continue
		case err != nil:
			p.log.WarnContext(ctx, "resync failed", "reservation_id", r.ID, "payment_id", r.PaymentID, "error", err)
			continue
		case res.Outcome == OutcomeApplied:
			changed++
		}
	}
	if changed > 0 {
		p.log.InfoContext(ctx, "payment resync", "scanned", len(pending), "settled", changed)
	}
	return changed, nil
}
