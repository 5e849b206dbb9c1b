// README: Postgres-backed seat counters; every mutation is a single guarded UPDATE.
package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"vanbora/internal/infra"
	"vanbora/internal/types"
)

type Store struct {
	db *infra.DB
}

func NewStore(db *infra.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DecrementSeat(ctx context.Context, tripID types.ID) (bool, error) {
	tag, err := s.db.Conn(ctx).Exec(ctx, `
		UPDATE trips SET available_seats = available_seats - 1, updated_at = now()
		WHERE id = $1 AND available_seats > 0`, string(tripID))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) IncrementSeat(ctx context.Context, tripID types.ID) (bool, error) {
	tag, err := s.db.Conn(ctx).Exec(ctx, `
		UPDATE trips SET available_seats = available_seats + 1, updated_at = now()
		WHERE id = $1 AND available_seats < capacity`, string(tripID))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ResizeCapacity relies on SET reading pre-update values for both columns.
func (s *Store) ResizeCapacity(ctx context.Context, tripID types.ID, capacity int) (bool, error) {
	tag, err := s.db.Conn(ctx).Exec(ctx, `
		UPDATE trips
		SET available_seats = available_seats + ($2 - capacity),
		    capacity = $2,
		    updated_at = now()
		WHERE id = $1 AND capacity - available_seats <= $2`, string(tripID), capacity)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Counts(ctx context.Context, tripID types.ID) (Counts, error) {
	var c Counts
	err := s.db.Conn(ctx).QueryRow(ctx,
		`SELECT available_seats, capacity FROM trips WHERE id = $1`, string(tripID),
	).Scan(&c.Available, &c.Capacity)
	if errors.Is(err, pgx.ErrNoRows) {
		return Counts{}, ErrTripNotFound
	}
	return c, err
}
