// Package asset models fungible token quantities. Raw values stay in
// big.Int smallest units; decimal.Decimal appears only at the boundary.
package asset

import (
	"github.com/ethereum/go-ethereum/common"
)

// Token is the metadata of an ERC-20 contract. Identity is the address,
// the symbol is display only.
type Token struct {
	address  common.Address
	symbol   string
	decimals uint8
}

// NewToken creates token metadata. An empty symbol is allowed since
// symbol() is optional in ERC-20.
func NewToken(address common.Address, symbol string, decimals uint8) *Token {
	return &Token{
		address:  address,
		symbol:   symbol,
		decimals: decimals,
	}
}

// Address returns the contract address.
func (t *Token) Address() common.Address {
	return t.address
}

// Symbol returns the ticker symbol.
func (t *Token) Symbol() string {
	return t.symbol
}

// Decimals returns the number of decimal places.
func (t *Token) Decimals() uint8 {
	return t.decimals
}

// String returns the symbol, or the address when the token has none.
func (t *Token) String() string {
	if t.symbol == "" {
		return t.address.Hex()
	}
	return t.symbol
}
