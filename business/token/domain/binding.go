// Package domain contains the core domain types for the token context.
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/ledger-bridge/internal/asset"
)

// DefaultDecimals applies when a contract answers decimals() with no data.
const DefaultDecimals uint8 = 18

// MinCodeSize is the smallest deployed bytecode treated as a contract.
// Anything shorter is "no code".
const MinCodeSize = 5

// Binding is the token contract the bridge is bound to. It is trusted only
// while Generation matches the connection it was validated against.
type Binding struct {
	Address    common.Address
	Symbol     string
	Decimals   uint8
	Generation uint64
	BoundAt    time.Time
}

// Token returns the binding as asset metadata.
func (b Binding) Token() *asset.Token {
	return asset.NewToken(b.Address, b.Symbol, b.Decimals)
}

// Label is the symbol, or the address when the contract has none.
func (b Binding) Label() string {
	return b.Token().String()
}
