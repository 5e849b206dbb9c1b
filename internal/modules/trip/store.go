// README: Trip store backed by PostgreSQL. Seat counters are written only by the inventory store.
package trip

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"vanbora/internal/infra"
	"vanbora/internal/types"
)

const tripColumns = `id, driver_id, origin, destination, departure_at, capacity, available_seats,
	price_cents, currency, cancelable, created_at, updated_at`

type Store struct {
	db *infra.DB
}

func NewStore(db *infra.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, t *Trip) error {
	_, err := s.db.Conn(ctx).Exec(ctx, `
		INSERT INTO trips (`+tripColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		string(t.ID), string(t.DriverID), t.Origin, t.Destination, t.DepartureAt,
		t.Capacity, t.AvailableSeats, t.Price.Amount, t.Price.Currency, t.Cancelable,
		t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Trip, error) {
	row := s.db.Conn(ctx).QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, string(id))
	t, err := scanTrip(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (s *Store) List(ctx context.Context, f Filter) ([]*Trip, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Origin != "" {
		add("origin ILIKE $%d", "%"+f.Origin+"%")
	}
	if f.Destination != "" {
		add("destination ILIKE $%d", "%"+f.Destination+"%")
	}
	if f.DriverID != "" {
		add("driver_id = $%d", string(f.DriverID))
	}
	if !f.DepartsAfter.IsZero() {
		add("departure_at > $%d", f.DepartsAfter)
	}
	q := `SELECT ` + tripColumns + ` FROM trips`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY departure_at, id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateDetails writes the driver-editable fields. Capacity goes through inventory.
func (s *Store) UpdateDetails(ctx context.Context, t *Trip) error {
	tag, err := s.db.Conn(ctx).Exec(ctx, `
		UPDATE trips
		SET origin = $2, destination = $3, departure_at = $4, price_cents = $5, cancelable = $6, updated_at = $7
		WHERE id = $1`,
		string(t.ID), t.Origin, t.Destination, t.DepartureAt, t.Price.Amount, t.Cancelable, t.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the trip; reservations go with it through ON DELETE CASCADE.
func (s *Store) Delete(ctx context.Context, id types.ID) error {
	tag, err := s.db.Conn(ctx).Exec(ctx, `DELETE FROM trips WHERE id = $1`, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTrip(row pgx.Row) (*Trip, error) {
	var t Trip
	err := row.Scan(
		&t.ID, &t.DriverID, &t.Origin, &t.Destination, &t.DepartureAt, &t.Capacity, &t.AvailableSeats,
		&t.Price.Amount, &t.Price.Currency, &t.Cancelable, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
