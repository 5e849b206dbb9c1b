// README: Postgres-backed stack for race tests; skipped unless VANBORA_TEST_DSN is set.
package testutil

import (
	"context"
	"os"
	"testing"

	"vanbora/internal/infra"
	"vanbora/internal/modules/inventory"
	"vanbora/internal/modules/reservation"
	"vanbora/internal/modules/trip"
	"vanbora/internal/modules/user"
)

const EnvTestDSN = "VANBORA_TEST_DSN"

// NewPostgresStack applies the migrations to the database named by
// VANBORA_TEST_DSN, empties every table and wires the stack on the pgx stores.
func NewPostgresStack(t testing.TB) *Stack {
	t.Helper()
	dsn := os.Getenv(EnvTestDSN)
	if dsn == "" {
		t.Skip(EnvTestDSN + " not set")
	}
	ctx := context.Background()
	db, err := infra.NewDB(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(db.Close)
	if err := infra.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := db.Pool().Exec(ctx, "TRUNCATE reservations, trips, users"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return newStackOn(Backend{
		Tx:           db,
		Users:        user.NewStore(db),
		Trips:        trip.NewStore(db),
		Seats:        inventory.NewStore(db),
		Reservations: reservation.NewStore(db),
	})
}
