package erc20

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	token  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	holder = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

// callerFunc adapts a function to ethereum.ContractCaller.
type callerFunc func(msg ethereum.CallMsg, block *big.Int) ([]byte, error)

func (f callerFunc) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	return f(msg, block)
}

func outputs(t *testing.T, method string, values ...any) []byte {
	t.Helper()
	out, err := parsedABI.Methods[method].Outputs.Pack(values...)
	if err != nil {
		t.Fatalf("pack %s: %v", method, err)
	}
	return out
}

func TestTransferTopic(t *testing.T) {
	if got := crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)")); got != TransferTopic {
		t.Fatalf("topic = %s", got.Hex())
	}
	if parsedABI.Events["Transfer"].ID != TransferTopic {
		t.Fatal("abi event id mismatch")
	}
}

func TestViewCalls(t *testing.T) {
	c := New()
	ctx := context.Background()
	balance, _ := new(big.Int).SetString("1500000000000000000", 10)

	caller := callerFunc(func(msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
		if *msg.To != token {
			t.Fatalf("call to %s", msg.To.Hex())
		}
		method, err := parsedABI.MethodById(msg.Data[:4])
		if err != nil {
			return nil, err
		}
		switch method.Name {
		case "symbol":
			return outputs(t, "symbol", "DAI"), nil
		case "decimals":
			return outputs(t, "decimals", uint8(18)), nil
		case "balanceOf":
			args, err := method.Inputs.Unpack(msg.Data[4:])
			if err != nil || args[0].(common.Address) != holder {
				t.Fatalf("balanceOf args = %v, %v", args, err)
			}
			if block == nil || block.Int64() != 99 {
				t.Fatalf("block = %v", block)
			}
			return outputs(t, "balanceOf", balance), nil
		}
		return nil, errors.New("unexpected method")
	})

	symbol, err := c.Symbol(ctx, caller, token)
	if err != nil || symbol != "DAI" {
		t.Fatalf("Symbol = %q, %v", symbol, err)
	}

	decimals, err := c.Decimals(ctx, caller, token)
	if err != nil || decimals != 18 {
		t.Fatalf("Decimals = %d, %v", decimals, err)
	}

	got, err := c.BalanceOf(ctx, caller, token, holder, big.NewInt(99))
	if err != nil || got.Cmp(balance) != 0 {
		t.Fatalf("BalanceOf = %v, %v", got, err)
	}
}

func TestSymbol_Bytes32(t *testing.T) {
	var raw [32]byte
	copy(raw[:], "MKR")
	legacy, err := parsedLegacy.Methods["symbol"].Outputs.Pack(raw)
	if err != nil {
		t.Fatal(err)
	}

	caller := callerFunc(func(ethereum.CallMsg, *big.Int) ([]byte, error) { return legacy, nil })
	symbol, err := New().Symbol(context.Background(), caller, token)
	if err != nil || symbol != "MKR" {
		t.Fatalf("Symbol = %q, %v", symbol, err)
	}
}

func TestCall_EmptyOutput(t *testing.T) {
	caller := callerFunc(func(ethereum.CallMsg, *big.Int) ([]byte, error) { return nil, nil })
	if _, err := New().Decimals(context.Background(), caller, token); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestParseTransfer(t *testing.T) {
	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	data, err := parsedABI.Events["Transfer"].Inputs.NonIndexed().Pack(big.NewInt(42))
	if err != nil {
		t.Fatal(err)
	}

	valid := types.Log{
		Address: token,
		Topics:  []common.Hash{TransferTopic, common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes())},
		Data:    data,
	}

	tests := []struct {
		name    string
		mutate  func(l *types.Log)
		wantErr bool
	}{
		{name: "valid", mutate: func(*types.Log) {}},
		{name: "erc721 style", mutate: func(l *types.Log) {
			l.Topics = append(l.Topics, common.BigToHash(big.NewInt(7)))
			l.Data = nil
		}, wantErr: true},
		{name: "missing topics", mutate: func(l *types.Log) { l.Topics = l.Topics[:1] }, wantErr: true},
		{name: "other event", mutate: func(l *types.Log) {
			l.Topics = []common.Hash{{0x01}, l.Topics[1], l.Topics[2]}
		}, wantErr: true},
		{name: "truncated data", mutate: func(l *types.Log) { l.Data = l.Data[:10] }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := valid
			l.Topics = append([]common.Hash(nil), valid.Topics...)
			tt.mutate(&l)

			got, err := New().ParseTransfer(l)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.From != from || got.To != to || got.Value.Int64() != 42 {
				t.Errorf("got %+v", got)
			}
		})
	}
}

func TestTransferQuery(t *testing.T) {
	q := New().TransferQuery(token)
	if q.FromBlock != nil || q.ToBlock != nil {
		t.Error("query must start at the latest block")
	}
	if len(q.Addresses) != 1 || q.Addresses[0] != token {
		t.Errorf("addresses = %v", q.Addresses)
	}
	if len(q.Topics) != 1 || q.Topics[0][0] != TransferTopic {
		t.Errorf("topics = %v", q.Topics)
	}
}
