// Package app contains the connection manager and the ports it drives.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/ledger-bridge/business/ledger/domain"
)

// Node is a live connection to a ledger node. Every method except Close and
// SubscribeFilterLogs's subscription lifetime is bounded by the node's call
// deadline.
type Node interface {
	// Listening is the liveness check (net_listening).
	Listening(ctx context.Context) (bool, error)
	NetworkID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	CodeAt(ctx context.Context, contract common.Address, block *big.Int) ([]byte, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, block *big.Int) ([]byte, error)
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
	// Accounts returns the accounts the node exposes (eth_accounts).
	Accounts(ctx context.Context) ([]common.Address, error)
	// PersonalSign asks the node to sign msg with an unlocked account.
	PersonalSign(ctx context.Context, msg []byte, account common.Address) ([]byte, error)
	Close()
}

// Dialer opens a Node for a streaming endpoint.
type Dialer func(ctx context.Context, endpoint string) (Node, error)

// Session pins a node to the SetProvider call that produced it.
type Session struct {
	Node       Node
	Endpoint   domain.Endpoint
	Generation uint64
}
