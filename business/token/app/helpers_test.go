package app_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	ledgerapp "github.com/fd1az/ledger-bridge/business/ledger/app"
	"github.com/fd1az/ledger-bridge/business/ledger/ledgertest"
	"github.com/fd1az/ledger-bridge/business/token/app"
	"github.com/fd1az/ledger-bridge/business/token/domain"
	"github.com/fd1az/ledger-bridge/business/token/infra/erc20"
	"github.com/fd1az/ledger-bridge/internal/logger"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

var _ logger.LoggerInterface = (*mockLogger)(nil)

var (
	daiAddr  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	usdcAddr = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	nobody   = common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	alice    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob      = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

// fakeToken is an ERC-20 served by a ledgertest.Node.
type fakeToken struct {
	symbol   string
	decimals uint8
	balances map[common.Address]*big.Int
	// lastBlock records the block of the last balanceOf call.
	lastBlock *big.Int
}

// serveTokens deploys tokens on node and answers their view calls.
func serveTokens(node *ledgertest.Node, tokens map[common.Address]*fakeToken) {
	parsed := erc20.ParsedABI()

	node.Set(func(n *ledgertest.Node) {
		for addr := range tokens {
			n.Code[addr] = []byte{0x60, 0x80, 0x60, 0x40, 0x52, 0x34}
		}
		n.Call = func(msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
			tok, ok := tokens[*msg.To]
			if !ok {
				return nil, nil
			}
			method, err := parsed.MethodById(msg.Data[:4])
			if err != nil {
				return nil, err
			}
			switch method.Name {
			case "symbol":
				return method.Outputs.Pack(tok.symbol)
			case "decimals":
				return method.Outputs.Pack(tok.decimals)
			case "balanceOf":
				args, err := method.Inputs.Unpack(msg.Data[4:])
				if err != nil {
					return nil, err
				}
				tok.lastBlock = block
				balance, ok := tok.balances[args[0].(common.Address)]
				if !ok {
					balance = new(big.Int)
				}
				return method.Outputs.Pack(balance)
			}
			return nil, errors.New("execution reverted")
		}
	})
}

type env struct {
	nodes       map[string]*ledgertest.Node
	mgr         *ledgerapp.ConnectionManager
	broadcaster *app.Broadcaster
	pipeline    *app.TransferPipeline
	binder      *app.Binder
	balances    *app.BalanceService
}

// newEnv wires the token services over a manager connected to ws://node.
// Every endpoint in nodes can be switched to with SetProvider.
func newEnv(t *testing.T, nodes map[string]*ledgertest.Node) *env {
	t.Helper()

	dial := ledgertest.Dialer(func(endpoint string) (*ledgertest.Node, error) {
		n, ok := nodes[endpoint]
		if !ok {
			return nil, errors.New("connection refused")
		}
		return n, nil
	})
	log := &mockLogger{}
	mgr := ledgerapp.NewConnectionManager(dial, ledgerapp.ManagerConfig{NetworkIDTTL: time.Minute}, log)

	contract := erc20.New()
	broadcaster := app.NewBroadcaster()
	pipeline := app.NewTransferPipeline(contract, broadcaster, 16, log)
	binder := app.NewBinder(mgr, contract, pipeline, log)

	e := &env{
		nodes:       nodes,
		mgr:         mgr,
		broadcaster: broadcaster,
		pipeline:    pipeline,
		binder:      binder,
		balances:    app.NewBalanceService(mgr, contract, binder),
	}
	t.Cleanup(func() {
		pipeline.Stop()
		mgr.Close()
		broadcaster.Close()
	})

	if _, ok := nodes["ws://node"]; ok {
		if err := mgr.SetProvider(context.Background(), "ws://node"); err != nil {
			t.Fatalf("SetProvider: %v", err)
		}
	}
	return e
}

// newTokenEnv serves a single token at daiAddr.
func newTokenEnv(t *testing.T, tok *fakeToken) (*env, *ledgertest.Node) {
	t.Helper()
	node := ledgertest.NewNode()
	serveTokens(node, map[common.Address]*fakeToken{daiAddr: tok})
	return newEnv(t, map[string]*ledgertest.Node{"ws://node": node}), node
}

func transferLog(t *testing.T, contract, from, to common.Address, value *big.Int, block uint64) types.Log {
	t.Helper()
	data, err := erc20.ParsedABI().Events["Transfer"].Inputs.NonIndexed().Pack(value)
	if err != nil {
		t.Fatal(err)
	}
	return types.Log{
		Address: contract,
		Topics: []common.Hash{
			erc20.TransferTopic,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block)),
	}
}

func receive(t *testing.T, ch <-chan domain.TransferEvent) domain.TransferEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("listener channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transfer event")
	}
	return domain.TransferEvent{}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
