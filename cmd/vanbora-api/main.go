// README: Entry point; loads config, wires services, runs the HTTP server and the payment resync poller.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"vanbora/internal/config"
	"vanbora/internal/gateway"
	httptransport "vanbora/internal/http"
	"vanbora/internal/infra"
	"vanbora/internal/modules/deadline"
	"vanbora/internal/modules/inventory"
	"vanbora/internal/modules/payout"
	"vanbora/internal/modules/reservation"
	"vanbora/internal/modules/settlement"
	"vanbora/internal/modules/trip"
	"vanbora/internal/modules/user"
	"vanbora/internal/modules/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("vanbora-api stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		return errors.New("VANBORA_FIREBASE_PROJECT_ID is required")
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		return err
	}

	store, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.close()
	probes := []func(context.Context) error{store.ping}

	var locker webhook.Locker = webhook.NewLocalLocker()
	if cfg.Redis.Addr != "" {
		rdb, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		locker = webhook.NewRedisLocker(rdb)
		probes = append(probes, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	} else {
		log.Warn("VANBORA_REDIS_ADDR not set; webhook locks are process-local")
	}

	gw := gateway.NewClient(gateway.Config{
		BaseURL:         cfg.Gateway.BaseURL,
		AccessToken:     cfg.Gateway.AccessToken,
		NotificationURL: cfg.Gateway.NotificationURL,
		Timeout:         cfg.Gateway.Timeout,
	})

	seats := inventory.NewManager(store.seats, log)
	userSvc := user.NewService(store.users, log)
	tripSvc := trip.NewService(store.trips, seats, userSvc, store.tx, log)
	reservationSvc := reservation.NewService(reservation.Deps{
		Repo:     store.reservations,
		Trips:    tripSvc,
		Seats:    seats,
		Payments: gw,
		Tx:       store.tx,
		Policy:   deadline.NewPolicy(cfg.Booking.Window),
		Logger:   log,
	})
	reconciler := payout.NewReconciler(store.reservations, tripSvc, store.users, gw, store.tx, log)
	settler := settlement.NewService(store.reservations, reservationSvc, reconciler, store.tx, log)
	ingress := webhook.NewIngress(store.reservations, gw, settler, locker, cfg.Webhook.LockTTL, log)
	poller := webhook.NewPoller(ingress, store.reservations, webhook.PollerConfig{
		Interval: cfg.Resync.Interval,
		MinAge:   cfg.Resync.MinAge,
		Batch:    cfg.Resync.Batch,
	}, log)

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Reservations:     reservationSvc,
		Trips:            tripSvc,
		Users:            userSvc,
		Webhooks:         ingress,
		Verifier:         verifier,
		Logger:           log,
		Location:         cfg.Booking.Location,
		Currency:         cfg.Booking.Currency,
		WebhookSecret:    cfg.Webhook.Secret,
		WebhookRateLimit: cfg.Webhook.RateLimit,
		WebhookBurst:     cfg.Webhook.Burst,
		Health:           healthCheck(probes...),
	})
	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Routes()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.HTTP.Addr, "store", cfg.Store.Kind)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return poller.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
