package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// RawTransfer is a decoded Transfer log before normalization.
type RawTransfer struct {
	From  common.Address
	To    common.Address
	Value *big.Int
}

// TransferEvent is a normalized Transfer notification.
type TransferEvent struct {
	BlockHeight uint64          `json:"blockHeight"`
	From        common.Address  `json:"from"`
	To          common.Address  `json:"to"`
	Contract    common.Address  `json:"contract"`
	Symbol      string          `json:"symbol"`
	Amount      decimal.Decimal `json:"amount"`
	TxHash      common.Hash     `json:"txHash"`
	LogIndex    uint            `json:"logIndex"`
}
