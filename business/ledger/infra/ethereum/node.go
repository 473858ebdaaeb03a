// Package ethereum provides the go-ethereum adapter for the ledger node port.
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/ledger-bridge/business/ledger/app"
	"github.com/fd1az/ledger-bridge/business/ledger/domain"
	"github.com/fd1az/ledger-bridge/internal/apperror"
	"github.com/fd1az/ledger-bridge/internal/circuitbreaker"
	"github.com/fd1az/ledger-bridge/internal/config"
	"github.com/fd1az/ledger-bridge/internal/logger"
	"github.com/fd1az/ledger-bridge/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/ledger-bridge/business/ledger/infra/ethereum"
	meterName  = "github.com/fd1az/ledger-bridge/business/ledger/infra/ethereum"
)

// nodeMetrics holds OTEL metric instruments.
type nodeMetrics struct {
	calls   metric.Int64Counter
	errors  metric.Int64Counter
	latency metric.Float64Histogram
}

// Node implements app.Node over a websocket rpc.Client.
type Node struct {
	endpoint string // redacted, for spans and logs
	timeout  time.Duration
	logger   logger.LoggerInterface

	rpc    *rpc.Client
	client *ethclient.Client

	limiter *ratelimit.Limiter
	cb      *circuitbreaker.CircuitBreaker[any]

	tracer  trace.Tracer
	metrics *nodeMetrics
}

var _ app.Node = (*Node)(nil)

// NewDialer returns an app.Dialer that opens Nodes with cfg's limits. The
// rate limiter is shared by every node the dialer opens; each node gets its
// own breaker.
func NewDialer(cfg config.EthereumConfig, log logger.LoggerInterface) app.Dialer {
	limiter := ratelimit.New(cfg.RequestsPerMinute)

	return func(ctx context.Context, endpoint string) (app.Node, error) {
		return Dial(ctx, endpoint, cfg, limiter, log)
	}
}

// Dial connects to a streaming endpoint.
func Dial(ctx context.Context, endpoint string, cfg config.EthereumConfig, limiter *ratelimit.Limiter, log logger.LoggerInterface) (*Node, error) {
	redacted := domain.ParseEndpoint(endpoint).Redacted()
	tracer := otel.Tracer(tracerName)

	ctx, span := tracer.Start(ctx, "eth.dial",
		trace.WithAttributes(attribute.String("endpoint", redacted)),
	)
	defer span.End()

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	rc, err := rpc.DialContext(dialCtx, endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return nil, fmt.Errorf("dial %s: %w", redacted, err)
	}

	n := &Node{
		endpoint: redacted,
		timeout:  cfg.CallTimeout,
		logger:   log,
		rpc:      rc,
		client:   ethclient.NewClient(rc),
		limiter:  limiter,
		tracer:   tracer,
	}

	if err := n.initMetrics(); err != nil {
		rc.Close()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	cbCfg := circuitbreaker.DefaultConfig("eth-node")
	cbCfg.FailureThreshold = cfg.BreakerFailures
	cbCfg.Timeout = cfg.BreakerTimeout
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "endpoint", redacted, "from", from.String(), "to", to.String())
	}
	cbCfg.IsSuccessful = answered
	n.cb = circuitbreaker.New[any](cbCfg)

	span.SetStatus(codes.Ok, "connected")
	return n, nil
}

func (n *Node) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	n.metrics = &nodeMetrics{}

	n.metrics.calls, err = meter.Int64Counter(
		"eth_node_calls_total",
		metric.WithDescription("Total ledger node calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return err
	}

	n.metrics.errors, err = meter.Int64Counter(
		"eth_node_errors_total",
		metric.WithDescription("Total failed ledger node calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	n.metrics.latency, err = meter.Float64Histogram(
		"eth_node_call_latency_ms",
		metric.WithDescription("Ledger node call latency"),
		metric.WithUnit("ms"),
	)
	return err
}

// answered reports whether err is a JSON-RPC error returned by a reachable
// node, such as a revert or a rejected personal_sign.
func answered(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return true
	}
	var dataErr rpc.DataError
	return errors.As(err, &dataErr)
}

// call runs fn under the rate limit, the breaker, the call deadline and a span.
func call[T any](ctx context.Context, n *Node, op string, fn func(context.Context) (T, error)) (T, error) {
	return invoke(ctx, n, op, n.cb.Execute, fn)
}

// direct is call without the breaker, for checks that must always reach the node.
func direct[T any](ctx context.Context, n *Node, op string, fn func(context.Context) (T, error)) (T, error) {
	return invoke(ctx, n, op, func(f func() (any, error)) (any, error) { return f() }, fn)
}

func invoke[T any](ctx context.Context, n *Node, op string, guard func(func() (any, error)) (any, error), fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attrs := metric.WithAttributes(attribute.String("op", op))

	ctx, span := n.tracer.Start(ctx, "eth."+op,
		trace.WithAttributes(attribute.String("endpoint", n.endpoint)),
	)
	defer span.End()

	n.metrics.calls.Add(ctx, 1, attrs)

	if err := n.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		n.metrics.errors.Add(ctx, 1, attrs)
		return zero, apperror.New(apperror.CodeRateLimitExceeded,
			apperror.WithCause(err),
			apperror.WithContextf("%s on %s", op, n.endpoint))
	}

	callCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	start := time.Now()
	v, err := guard(func() (any, error) {
		return fn(callCtx)
	})
	n.metrics.latency.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" failed")
		n.metrics.errors.Add(ctx, 1, attrs)
		return zero, n.classify(op, err)
	}

	span.SetStatus(codes.Ok, "")
	res, _ := v.(T)
	return res, nil
}

func (n *Node) classify(op string, err error) error {
	if apperror.IsAppError(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.New(apperror.CodeServiceTimeout,
			apperror.WithCause(err),
			apperror.WithContextf("%s on %s after %s", op, n.endpoint, n.timeout))
	}
	return apperror.New(apperror.CodeEthereumRPCError,
		apperror.WithCause(err),
		apperror.WithContextf("%s on %s", op, n.endpoint))
}

// Listening implements app.Node. It bypasses the breaker so every
// connectivity check contacts the peer.
func (n *Node) Listening(ctx context.Context) (bool, error) {
	return direct(ctx, n, "net_listening", func(ctx context.Context) (bool, error) {
		var listening bool
		err := n.rpc.CallContext(ctx, &listening, "net_listening")
		return listening, err
	})
}

// NetworkID implements app.Node.
func (n *Node) NetworkID(ctx context.Context) (*big.Int, error) {
	return call(ctx, n, "net_version", n.client.NetworkID)
}

// BlockNumber implements app.Node.
func (n *Node) BlockNumber(ctx context.Context) (uint64, error) {
	return call(ctx, n, "eth_blockNumber", n.client.BlockNumber)
}

// CodeAt implements app.Node.
func (n *Node) CodeAt(ctx context.Context, contract common.Address, block *big.Int) ([]byte, error) {
	return call(ctx, n, "eth_getCode", func(ctx context.Context) ([]byte, error) {
		return n.client.CodeAt(ctx, contract, block)
	})
}

// CallContract implements app.Node.
func (n *Node) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	return call(ctx, n, "eth_call", func(ctx context.Context) ([]byte, error) {
		return n.client.CallContract(ctx, msg, block)
	})
}

// SubscribeFilterLogs implements app.Node. The deadline bounds only the
// subscribe request; the subscription lives until Unsubscribe or a feed error.
func (n *Node) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return call(ctx, n, "eth_subscribe", func(ctx context.Context) (ethereum.Subscription, error) {
		return n.client.SubscribeFilterLogs(ctx, q, ch)
	})
}

// Accounts implements app.Node.
func (n *Node) Accounts(ctx context.Context) ([]common.Address, error) {
	return call(ctx, n, "eth_accounts", func(ctx context.Context) ([]common.Address, error) {
		var accounts []common.Address
		err := n.rpc.CallContext(ctx, &accounts, "eth_accounts")
		return accounts, err
	})
}

// PersonalSign implements app.Node. The account must be unlocked on the
// node; the password is always empty.
func (n *Node) PersonalSign(ctx context.Context, msg []byte, account common.Address) ([]byte, error) {
	return call(ctx, n, "personal_sign", func(ctx context.Context) ([]byte, error) {
		var sig hexutil.Bytes
		err := n.rpc.CallContext(ctx, &sig, "personal_sign", hexutil.Bytes(msg), account, "")
		return sig, err
	})
}

// Close implements app.Node.
func (n *Node) Close() {
	n.rpc.Close()
}
