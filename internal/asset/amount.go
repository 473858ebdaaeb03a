package asset

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrNilToken       = errors.New("asset: nil token")
	ErrNilRaw         = errors.New("asset: nil raw value")
	ErrNegativeAmount = errors.New("asset: negative amount")
)

// Amount is an immutable quantity of a token in its smallest unit.
type Amount struct {
	raw   *big.Int
	token *Token
}

// NewAmount creates an Amount from a raw on-chain value.
func NewAmount(token *Token, raw *big.Int) (Amount, error) {
	if token == nil {
		return Amount{}, ErrNilToken
	}
	if raw == nil {
		return Amount{}, ErrNilRaw
	}
	if raw.Sign() < 0 {
		return Amount{}, ErrNegativeAmount
	}
	return Amount{raw: new(big.Int).Set(raw), token: token}, nil
}

// Raw returns a copy of the raw value.
func (a Amount) Raw() *big.Int {
	if a.raw == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(a.raw)
}

// Token returns the token this amount is denominated in.
func (a Amount) Token() *Token {
	return a.token
}

// IsZero returns true if the amount is zero.
func (a Amount) IsZero() bool {
	return a.raw == nil || a.raw.Sign() == 0
}

// ToDecimal returns raw / 10^decimals exactly.
func (a Amount) ToDecimal() decimal.Decimal {
	if a.raw == nil || a.token == nil {
		return decimal.Zero
	}
	return Normalize(a.raw, a.token.Decimals())
}

// Normalize divides raw by 10^decimals without rounding.
func Normalize(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

// String returns a human-readable representation (e.g., "1.5 DAI").
func (a Amount) String() string {
	if a.token == nil {
		return "0 ???"
	}
	return fmt.Sprintf("%s %s", a.ToDecimal().String(), a.token.String())
}
