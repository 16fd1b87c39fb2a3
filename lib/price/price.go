// Package price provides the conversion rate from the chain's native currency to the display currency campaigns are
// denominated in.
package price

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// DefaultRate is the number of display currency units (INR) credited per native unit (ETH).
var DefaultRate = decimal.NewFromInt(250000) //nolint:gochecknoglobals,gomnd // fixed demo rate

// ErrBadRate is returned when a rate is not a positive number.
var ErrBadRate = errors.New("conversion rate must be a positive number")

// Source returns the current conversion rate.
type Source interface {
	Rate(ctx context.Context) (decimal.Decimal, error)
}

// Fixed is a Source that always returns the same rate.
type Fixed decimal.Decimal

// Rate implements Source.
func (f Fixed) Rate(context.Context) (decimal.Decimal, error) {
	return decimal.Decimal(f), nil
}

// Parse returns a Fixed source for the rate in s, or the default rate when s is empty.
func Parse(s string) (Fixed, error) {
	if s == "" {
		return Fixed(DefaultRate), nil
	}

	r, err := decimal.NewFromString(s)
	if err != nil {
		return Fixed{}, errors.Join(ErrBadRate, err)
	}

	if !r.IsPositive() {
		return Fixed{}, ErrBadRate
	}

	return Fixed(r), nil
}

// Convert returns amount expressed in the display currency at the rate given by src.
func Convert(ctx context.Context, src Source, amount decimal.Decimal) (decimal.Decimal, error) {
	rate, err := src.Rate(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	return amount.Mul(rate), nil
}
