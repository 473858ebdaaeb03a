// Package app contains the token context's services: contract binding,
// the Transfer pipeline and balance queries.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	ledgerapp "github.com/fd1az/ledger-bridge/business/ledger/app"
	"github.com/fd1az/ledger-bridge/business/token/domain"
)

// Connection is the part of the ledger connection manager the token context
// depends on.
type Connection interface {
	RequireConnected(ctx context.Context) (ledgerapp.Session, error)
	Generation() uint64
	NetworkID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// TokenContract encodes ERC-20 calls and decodes Transfer logs.
type TokenContract interface {
	Symbol(ctx context.Context, caller ethereum.ContractCaller, token common.Address) (string, error)
	Decimals(ctx context.Context, caller ethereum.ContractCaller, token common.Address) (uint8, error)
	BalanceOf(ctx context.Context, caller ethereum.ContractCaller, token, holder common.Address, block *big.Int) (*big.Int, error)
	TransferQuery(token common.Address) ethereum.FilterQuery
	ParseTransfer(log types.Log) (domain.RawTransfer, error)
}

// TransferPublisher receives normalized Transfer events.
type TransferPublisher interface {
	Publish(ctx context.Context, ev domain.TransferEvent) int
}

var _ Connection = (*ledgerapp.ConnectionManager)(nil)
