// README: Storage backends; the same services run on Postgres or the in-memory store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vanbora/internal/config"
	"vanbora/internal/infra"
	"vanbora/internal/memstore"
	"vanbora/internal/modules/inventory"
	"vanbora/internal/modules/reservation"
	"vanbora/internal/modules/trip"
	"vanbora/internal/modules/user"
)

type txRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type backend struct {
	tx           txRunner
	users        user.Repository
	trips        trip.Repository
	seats        inventory.Repository
	reservations reservation.Repository
	ping         func(ctx context.Context) error
	close        func()
}

func openBackend(ctx context.Context, cfg config.Config, log *slog.Logger) (*backend, error) {
	switch cfg.Store.Kind {
	case config.StoreMemory:
		log.Warn("using in-memory store; data is lost on restart")
		db := memstore.New()
		return &backend{
			tx:           db,
			users:        db.Users(),
			trips:        db.Trips(),
			seats:        db.Seats(),
			reservations: db.Reservations(),
			ping:         func(context.Context) error { return nil },
			close:        func() {},
		}, nil
	case config.StorePostgres:
		db, err := infra.NewDB(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.Store.AutoMigrate {
			if err := infra.Migrate(ctx, db); err != nil {
				db.Close()
				return nil, err
			}
			log.Info("migrations applied")
		}
		return &backend{
			tx:           db,
			users:        user.NewStore(db),
			trips:        trip.NewStore(db),
			seats:        inventory.NewStore(db),
			reservations: reservation.NewStore(db),
			ping:         func(ctx context.Context) error { return db.Pool().Ping(ctx) },
			close:        db.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store.Kind)
}

// healthCheck bounds each readiness probe to two seconds.
func healthCheck(probes ...func(ctx context.Context) error) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for _, p := range probes {
			if err := p(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}
