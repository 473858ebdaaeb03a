package ethereum

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/fd1az/ledger-bridge/internal/apperror"
	"github.com/fd1az/ledger-bridge/internal/config"
)

type mockLogger struct{}

func (mockLogger) Debug(context.Context, string, ...any)       {}
func (mockLogger) Info(context.Context, string, ...any)        {}
func (mockLogger) Warn(context.Context, string, ...any)        {}
func (mockLogger) Error(context.Context, string, ...any)       {}
func (mockLogger) Debugc(context.Context, int, string, ...any) {}
func (mockLogger) Infoc(context.Context, int, string, ...any)  {}
func (mockLogger) Warnc(context.Context, int, string, ...any)  {}
func (mockLogger) Errorc(context.Context, int, string, ...any) {}

var (
	testAccount  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	testContract = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

type netService struct{}

func (netService) Listening() bool { return true }
func (netService) Version() string { return "1337" }

type ethService struct {
	callDelay time.Duration
}

func (ethService) BlockNumber() hexutil.Uint64 { return 1234 }

func (ethService) Accounts() []common.Address { return []common.Address{testAccount} }

func (ethService) GetCode(addr common.Address, block string) hexutil.Bytes {
	if addr == testContract {
		return hexutil.Bytes{0x60, 0x80, 0x60, 0x40, 0x52, 0x34}
	}
	return hexutil.Bytes{}
}

func (s ethService) Call(ctx context.Context, args map[string]any, block string) (hexutil.Bytes, error) {
	select {
	case <-time.After(s.callDelay):
		return hexutil.Bytes{0x01}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type personalService struct{}

func (personalService) Sign(data hexutil.Bytes, addr common.Address, password string) (hexutil.Bytes, error) {
	if addr != testAccount {
		return nil, errors.New("unknown account")
	}
	sig := make([]byte, 65)
	copy(sig, data)
	sig[64] = 27
	return sig, nil
}

func newTestNode(t *testing.T, eth ethService, cfg config.EthereumConfig) *Node {
	t.Helper()

	srv := rpc.NewServer()
	for name, svc := range map[string]any{"net": netService{}, "eth": eth, "personal": personalService{}} {
		if err := srv.RegisterName(name, svc); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	httpSrv := httptest.NewServer(srv.WebsocketHandler([]string{"*"}))
	t.Cleanup(func() {
		httpSrv.Close()
		srv.Stop()
	})

	dial := NewDialer(cfg, mockLogger{})
	node, err := dial(context.Background(), "ws"+strings.TrimPrefix(httpSrv.URL, "http"))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(node.Close)
	return node.(*Node)
}

func testConfig() config.EthereumConfig {
	cfg := config.Default().Ethereum
	cfg.RequestsPerMinute = 0
	return cfg
}

func TestNode_UnaryCalls(t *testing.T) {
	node := newTestNode(t, ethService{}, testConfig())
	ctx := context.Background()

	listening, err := node.Listening(ctx)
	if err != nil || !listening {
		t.Fatalf("Listening = %v, %v", listening, err)
	}

	id, err := node.NetworkID(ctx)
	if err != nil || id.Int64() != 1337 {
		t.Fatalf("NetworkID = %v, %v", id, err)
	}

	height, err := node.BlockNumber(ctx)
	if err != nil || height != 1234 {
		t.Fatalf("BlockNumber = %d, %v", height, err)
	}

	code, err := node.CodeAt(ctx, testContract, nil)
	if err != nil || len(code) != 6 {
		t.Fatalf("CodeAt = %x, %v", code, err)
	}

	accounts, err := node.Accounts(ctx)
	if err != nil || len(accounts) != 1 || accounts[0] != testAccount {
		t.Fatalf("Accounts = %v, %v", accounts, err)
	}

	sig, err := node.PersonalSign(ctx, []byte("hi"), testAccount)
	if err != nil || len(sig) != 65 || sig[64] != 27 {
		t.Fatalf("PersonalSign = %x, %v", sig, err)
	}
}

func TestNode_RemoteErrorIsWrapped(t *testing.T) {
	node := newTestNode(t, ethService{}, testConfig())

	_, err := node.PersonalSign(context.Background(), []byte("hi"), common.Address{})
	if apperror.GetCode(err) != apperror.CodeEthereumRPCError {
		t.Fatalf("expected ETHEREUM_RPC_ERROR, got %v", err)
	}
	if !strings.Contains(err.Error(), "unknown account") {
		t.Errorf("cause missing: %v", err)
	}
}

func TestNode_CallDeadline(t *testing.T) {
	cfg := testConfig()
	cfg.CallTimeout = 50 * time.Millisecond
	node := newTestNode(t, ethService{callDelay: time.Second}, cfg)

	_, err := node.CallContract(context.Background(), ethereum.CallMsg{To: &testContract}, nil)
	if apperror.GetCode(err) != apperror.CodeServiceTimeout {
		t.Fatalf("expected SERVICE_TIMEOUT, got %v", err)
	}
}

func TestNode_BreakerOpensAfterFailures(t *testing.T) {
	cfg := testConfig()
	cfg.CallTimeout = 20 * time.Millisecond
	cfg.BreakerFailures = 2
	cfg.BreakerTimeout = time.Minute
	node := newTestNode(t, ethService{callDelay: time.Second}, cfg)

	msg := ethereum.CallMsg{To: &testContract}
	for i := 0; i < 2; i++ {
		node.CallContract(context.Background(), msg, nil)
	}

	_, err := node.CallContract(context.Background(), msg, nil)
	if apperror.GetCode(err) != apperror.CodeCircuitOpen {
		t.Fatalf("expected CIRCUIT_OPEN, got %v", err)
	}
	if apperror.GetClass(err) != apperror.ClassConnectivity {
		t.Errorf("class = %s", apperror.GetClass(err))
	}
}

func TestNode_RemoteErrorsDoNotTripBreaker(t *testing.T) {
	cfg := testConfig()
	cfg.BreakerFailures = 2
	cfg.BreakerTimeout = time.Minute
	node := newTestNode(t, ethService{}, cfg)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := node.PersonalSign(ctx, []byte("hi"), common.Address{})
		if apperror.GetCode(err) != apperror.CodeEthereumRPCError {
			t.Fatalf("attempt %d: expected ETHEREUM_RPC_ERROR, got %v", i, err)
		}
	}

	listening, err := node.Listening(ctx)
	if err != nil || !listening {
		t.Fatalf("Listening = %v, %v", listening, err)
	}

	height, err := node.BlockNumber(ctx)
	if err != nil || height != 1234 {
		t.Fatalf("BlockNumber = %d, %v", height, err)
	}
}

func TestNode_ListeningBypassesOpenBreaker(t *testing.T) {
	cfg := testConfig()
	cfg.CallTimeout = 20 * time.Millisecond
	cfg.BreakerFailures = 1
	cfg.BreakerTimeout = time.Minute
	node := newTestNode(t, ethService{callDelay: time.Second}, cfg)
	ctx := context.Background()

	node.CallContract(ctx, ethereum.CallMsg{To: &testContract}, nil)
	if _, err := node.BlockNumber(ctx); apperror.GetCode(err) != apperror.CodeCircuitOpen {
		t.Fatalf("expected CIRCUIT_OPEN, got %v", err)
	}

	listening, err := node.Listening(ctx)
	if err != nil || !listening {
		t.Fatalf("Listening = %v, %v", listening, err)
	}
}

func TestDial_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.DialTimeout = 200 * time.Millisecond

	_, err := NewDialer(cfg, mockLogger{})(context.Background(), "ws://127.0.0.1:1")
	if err == nil {
		t.Fatal("expected dial error")
	}
}
