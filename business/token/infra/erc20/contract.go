// Package erc20 encodes and decodes the ERC-20 calls and events the bridge uses.
package erc20

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/ledger-bridge/business/token/domain"
)

// ABI covers the subset of ERC-20 the bridge calls.
const ABI = `[
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"value","type":"uint256"}],"name":"Transfer","type":"event"}
]`

// bytes32 symbol() as deployed by a few early tokens (MKR, SAI).
const legacySymbolABI = `[{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"bytes32"}],"type":"function"}]`

// TransferTopic is keccak256("Transfer(address,address,uint256)").
var TransferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// ErrNoData is returned when a view call succeeds with empty output, which
// is how a contract without the function but with a fallback answers.
var ErrNoData = errors.New("erc20: empty return data")

var (
	parsedABI    = mustParse(ABI)
	parsedLegacy = mustParse(legacySymbolABI)
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("erc20: parse abi: %v", err))
	}
	return parsed
}

// Contract implements the token context's contract port.
type Contract struct{}

// New creates the ERC-20 codec.
func New() *Contract {
	return &Contract{}
}

// ParsedABI exposes the parsed ABI, e.g. for packing fake node responses.
func ParsedABI() abi.ABI {
	return parsedABI
}

func (c *Contract) call(ctx context.Context, caller ethereum.ContractCaller, token common.Address, block *big.Int, method string, args ...any) ([]byte, error) {
	data, err := parsedABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, block)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

// Symbol reads symbol(), accepting both string and bytes32 encodings.
func (c *Contract) Symbol(ctx context.Context, caller ethereum.ContractCaller, token common.Address) (string, error) {
	out, err := c.call(ctx, caller, token, nil, "symbol")
	if err != nil {
		return "", err
	}

	if values, err := parsedABI.Unpack("symbol", out); err == nil {
		return values[0].(string), nil
	}

	values, err := parsedLegacy.Unpack("symbol", out)
	if err != nil {
		return "", fmt.Errorf("unpack symbol: %w", err)
	}
	raw := values[0].([32]byte)
	return strings.TrimRight(string(raw[:]), "\x00"), nil
}

// Decimals reads decimals().
func (c *Contract) Decimals(ctx context.Context, caller ethereum.ContractCaller, token common.Address) (uint8, error) {
	out, err := c.call(ctx, caller, token, nil, "decimals")
	if err != nil {
		return 0, err
	}

	values, err := parsedABI.Unpack("decimals", out)
	if err != nil {
		return 0, fmt.Errorf("unpack decimals: %w", err)
	}
	return values[0].(uint8), nil
}

// BalanceOf reads balanceOf(holder) at block (nil = latest).
func (c *Contract) BalanceOf(ctx context.Context, caller ethereum.ContractCaller, token, holder common.Address, block *big.Int) (*big.Int, error) {
	out, err := c.call(ctx, caller, token, block, "balanceOf", holder)
	if err != nil {
		return nil, err
	}

	values, err := parsedABI.Unpack("balanceOf", out)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	return values[0].(*big.Int), nil
}

// TransferQuery filters Transfer logs of token from the latest block on.
func (c *Contract) TransferQuery(token common.Address) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		Addresses: []common.Address{token},
		Topics:    [][]common.Hash{{TransferTopic}},
	}
}

// ParseTransfer decodes a Transfer log. ERC-721 transfers share the topic
// but index the third argument, so they fail the topic count check.
func (c *Contract) ParseTransfer(log types.Log) (domain.RawTransfer, error) {
	if len(log.Topics) != 3 {
		return domain.RawTransfer{}, fmt.Errorf("erc20: transfer log has %d topics, want 3", len(log.Topics))
	}
	if log.Topics[0] != TransferTopic {
		return domain.RawTransfer{}, fmt.Errorf("erc20: unexpected event topic %s", log.Topics[0].Hex())
	}

	values, err := parsedABI.Unpack("Transfer", log.Data)
	if err != nil {
		return domain.RawTransfer{}, fmt.Errorf("erc20: unpack transfer: %w", err)
	}
	value, ok := values[0].(*big.Int)
	if !ok {
		return domain.RawTransfer{}, fmt.Errorf("erc20: transfer value has type %T", values[0])
	}

	return domain.RawTransfer{
		From:  common.BytesToAddress(log.Topics[1].Bytes()),
		To:    common.BytesToAddress(log.Topics[2].Bytes()),
		Value: value,
	}, nil
}
