// README: User profile; drivers carry a payout key and an earnings balance.
package user

import (
	"time"

	"vanbora/internal/types"
)

type User struct {
	ID       types.ID
	Username string
	Email    string
	IsDriver bool
	// PixKey is the payout destination for drivers.
	PixKey string
	// Balance is written only by the payout reconciler.
	Balance   types.Money
	CreatedAt time.Time
}
