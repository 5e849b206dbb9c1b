// README: Reservation store backed by PostgreSQL; status and payment writes are conditional updates.
package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"vanbora/internal/infra"
	"vanbora/internal/modules/payment"
	"vanbora/internal/types"
)

const reservationColumns = `id, user_id, trip_id, status, payment_method, payment_status,
	COALESCE(payment_id, ''), price_cents, currency, payout_outcome,
	COALESCE(payout_id, ''), COALESCE(payout_status, ''), created_at, updated_at`

const codeForeignKeyViolation = "23503"

type Store struct {
	db *infra.DB
}

func NewStore(db *infra.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Insert(ctx context.Context, r *Reservation) error {
	_, err := s.db.Conn(ctx).Exec(ctx, `
		INSERT INTO reservations (
			id, user_id, trip_id, status, payment_method, payment_status, payment_id,
			price_cents, currency, payout_outcome, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		string(r.ID), string(r.UserID), string(r.TripID), string(r.Status),
		string(r.PaymentMethod), string(r.PaymentStatus), nullIfEmpty(r.PaymentID),
		r.Price.Amount, r.Price.Currency, string(r.PayoutOutcome), r.CreatedAt, r.UpdatedAt,
	)
	if infra.IsUniqueViolation(err) {
		return ErrDuplicateReservation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation && pgErr.ConstraintName == "reservations_user_id_fkey" {
		return ErrUnknownUser
	}
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Reservation, error) {
	return s.getOne(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, string(id))
}

func (s *Store) GetForUpdate(ctx context.Context, id types.ID) (*Reservation, error) {
	return s.getOne(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1 FOR UPDATE`, string(id))
}

func (s *Store) GetByPaymentID(ctx context.Context, paymentID string) (*Reservation, error) {
	return s.getOne(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE payment_id = $1`, paymentID)
}

func (s *Store) HasConfirmed(ctx context.Context, userID, tripID types.ID) (bool, error) {
	var exists bool
	err := s.db.Conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reservations WHERE user_id = $1 AND trip_id = $2 AND status = 'CONFIRMED'
		)`, string(userID), string(tripID),
	).Scan(&exists)
	return exists, err
}

func (s *Store) ListByUser(ctx context.Context, userID types.ID) ([]*Reservation, error) {
	return s.list(ctx, `SELECT `+reservationColumns+` FROM reservations
		WHERE user_id = $1 ORDER BY created_at DESC, id`, string(userID))
}

func (s *Store) ListByTrip(ctx context.Context, tripID types.ID, status Status) ([]*Reservation, error) {
	return s.list(ctx, `SELECT `+reservationColumns+` FROM reservations
		WHERE trip_id = $1 AND status = $2 ORDER BY created_at, id`, string(tripID), string(status))
}

// ListUnsettled returns reservations whose payment or payout has not reached
// a final state and that are older than createdBefore, in (created_at, id)
// order starting after the cursor.
func (s *Store) ListUnsettled(ctx context.Context, createdBefore time.Time, after Cursor, limit int) ([]*Reservation, error) {
	const base = `SELECT ` + reservationColumns + ` FROM reservations
		WHERE ((payment_status = 'PENDING' AND payment_id IS NOT NULL) OR payout_outcome = 'PENDING')
		  AND created_at < $1`
	if after.IsZero() {
		return s.list(ctx, base+` ORDER BY created_at, id LIMIT $2`, createdBefore, limit)
	}
	return s.list(ctx, base+` AND (created_at, id) > ($3, $4) ORDER BY created_at, id LIMIT $2`,
		createdBefore, limit, after.CreatedAt, string(after.ID))
}

func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status) (bool, error) {
	return s.exec(ctx, `
		UPDATE reservations SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`, string(id), string(from), string(to))
}

func (s *Store) MoveTrip(ctx context.Context, id, from, to types.ID) (bool, error) {
	ok, err := s.exec(ctx, `
		UPDATE reservations SET trip_id = $3, updated_at = now()
		WHERE id = $1 AND trip_id = $2 AND status = 'CONFIRMED'`, string(id), string(from), string(to))
	if infra.IsUniqueViolation(err) {
		return false, ErrDuplicateReservation
	}
	return ok, err
}

func (s *Store) SetPaymentID(ctx context.Context, id types.ID, paymentID string) (bool, error) {
	return s.exec(ctx, `
		UPDATE reservations SET payment_id = $2, updated_at = now()
		WHERE id = $1 AND payment_id IS NULL`, string(id), paymentID)
}

func (s *Store) UpdatePaymentStatus(ctx context.Context, id types.ID, from, to payment.Status) (bool, error) {
	return s.exec(ctx, `
		UPDATE reservations SET payment_status = $3, updated_at = now()
		WHERE id = $1 AND payment_status = $2`, string(id), string(from), string(to))
}

func (s *Store) UpdatePayout(ctx context.Context, id types.ID, from payment.PayoutOutcome, to PayoutUpdate) (bool, error) {
	return s.exec(ctx, `
		UPDATE reservations
		SET payout_outcome = $3, payout_id = $4, payout_status = $5, updated_at = now()
		WHERE id = $1 AND payout_outcome = $2`,
		string(id), string(from), string(to.Outcome), nullIfEmpty(to.PayoutID), nullIfEmpty(to.PayoutStatus))
}

func (s *Store) exec(ctx context.Context, sql string, args ...any) (bool, error) {
	tag, err := s.db.Conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) getOne(ctx context.Context, sql string, args ...any) (*Reservation, error) {
	r, err := scanReservation(s.db.Conn(ctx).QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func (s *Store) list(ctx context.Context, sql string, args ...any) ([]*Reservation, error) {
	rows, err := s.db.Conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanReservation(row pgx.Row) (*Reservation, error) {
	var r Reservation
	err := row.Scan(
		&r.ID, &r.UserID, &r.TripID, &r.Status, &r.PaymentMethod, &r.PaymentStatus,
		&r.PaymentID, &r.Price.Amount, &r.Price.Currency, &r.PayoutOutcome,
		&r.PayoutID, &r.PayoutStatus, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
