// README: User service; profile registration and lookup.
package user

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"vanbora/internal/types"
)

var (
	ErrNotFound          = types.NewError(types.KindNotFound, "user_not_found", "user profile not found")
	ErrAlreadyRegistered = types.NewError(types.KindConflict, "already_registered", "profile already registered")
	ErrInvalidProfile    = types.NewError(types.KindValidation, "invalid_profile", "invalid profile")
	ErrPixKeyRequired    = types.NewError(types.KindValidation, "pix_key_required", "drivers must provide a pix key")
	ErrNegativeCredit    = types.NewError(types.KindIntegrity, "negative_credit", "balance credit must not be negative")
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id types.ID) (*User, error)
	CreditBalance(ctx context.Context, id types.ID, amount types.Money) error
}

type Service struct {
	repo Repository
	log  *slog.Logger
}

func NewService(repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log.With("component", "user")}
}

type RegisterCommand struct {
	UserID   types.ID
	Username string
	Email    string
	IsDriver bool
	PixKey   string
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*User, error) {
	u := &User{
		ID:        cmd.UserID,
		Username:  strings.TrimSpace(cmd.Username),
		Email:     strings.ToLower(strings.TrimSpace(cmd.Email)),
		IsDriver:  cmd.IsDriver,
		PixKey:    strings.TrimSpace(cmd.PixKey),
		Balance:   types.Cents(0),
		CreatedAt: time.Now().UTC(),
	}
	if u.ID == "" || u.Username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidProfile)
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return nil, fmt.Errorf("%w: email is invalid", ErrInvalidProfile)
	}
	if u.IsDriver && u.PixKey == "" {
		return nil, ErrPixKeyRequired
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "user registered", "user_id", u.ID, "driver", u.IsDriver)
	return u, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*User, error) {
	return s.repo.Get(ctx, id)
}
