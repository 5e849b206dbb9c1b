// README: User store backed by PostgreSQL.
package user

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

func (s *Store) Create(ctx context.Context, u *User) error {
	_, err := s.db.Conn(ctx).Exec(ctx, `
		INSERT INTO users (id, username, email, is_driver, pix_key, balance_cents, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(u.ID), u.Username, u.Email, u.IsDriver, u.PixKey, u.Balance.Amount, u.Balance.Currency, u.CreatedAt,
	)
	if infra.IsUniqueViolation(err) {
		return ErrAlreadyRegistered
	}
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*User, error) {
	var u User
	err := s.db.Conn(ctx).QueryRow(ctx, `
		SELECT id, username, email, is_driver, pix_key, balance_cents, currency, created_at
		FROM users WHERE id = $1`, string(id),
	).Scan(&u.ID, &u.Username, &u.Email, &u.IsDriver, &u.PixKey, &u.Balance.Amount, &u.Balance.Currency, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreditBalance adds amount to the user's balance in one statement.
func (s *Store) CreditBalance(ctx context.Context, id types.ID, amount types.Money) error {
	if amount.Amount < 0 {
		return ErrNegativeCredit
	}
	tag, err := s.db.Conn(ctx).Exec(ctx,
		`UPDATE users SET balance_cents = balance_cents + $2 WHERE id = $1`, string(id), amount.Amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
