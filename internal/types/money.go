// README: Fixed-point money value object (integer cents) shared across modules.
package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultCurrency is the only currency the service settles in.
const DefaultCurrency = "BRL"

// Money is an amount in minor units (cents) with two implied decimals.
type Money struct {
	Amount   int64
	Currency string
}

var ErrInvalidAmount = NewError(KindValidation, "invalid_amount", "amount must be a decimal with at most two fraction digits")

func Cents(amount int64) Money {
	return Money{Amount: amount, Currency: DefaultCurrency}
}

// ParseMoney parses "20", "20.5" or "20.50" into cents. Negative values and
// more than two fraction digits are rejected.
func ParseMoney(s, currency string) (Money, error) {
	s = strings.TrimSpace(s)
	if currency == "" {
		currency = DefaultCurrency
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	if !digitsOnly(whole) || (hasFrac && (!digitsOnly(frac) || len(frac) > 2)) {
		return Money{}, ErrInvalidAmount
	}
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w > math.MaxInt64/100-1 {
		return Money{}, ErrInvalidAmount
	}
	f, _ := strconv.ParseInt(frac, 10, 64)
	return Money{Amount: w*100 + f, Currency: currency}, nil
}

func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func (m Money) String() string {
	a := m.Amount
	sign := ""
	if a < 0 {
		sign = "-"
		a = -a
	}
	return fmt.Sprintf("%s%d.%02d", sign, a/100, a%100)
}

func (m Money) Add(o Money) Money {
	cur := m.Currency
	if cur == "" {
		cur = o.Currency
	}
	return Money{Amount: m.Amount + o.Amount, Currency: cur}
}

func (m Money) IsZero() bool {
	return m.Amount == 0
}
