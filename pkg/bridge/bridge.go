// Package bridge is the public entry point: it wires the ledger, token and
// vote contexts and exposes their operations behind one handle.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fd1az/ledger-bridge/business/ledger"
	ledgerapp "github.com/fd1az/ledger-bridge/business/ledger/app"
	ledgerDI "github.com/fd1az/ledger-bridge/business/ledger/di"
	ledgerdomain "github.com/fd1az/ledger-bridge/business/ledger/domain"
	"github.com/fd1az/ledger-bridge/business/token"
	tokenapp "github.com/fd1az/ledger-bridge/business/token/app"
	tokenDI "github.com/fd1az/ledger-bridge/business/token/di"
	tokendomain "github.com/fd1az/ledger-bridge/business/token/domain"
	"github.com/fd1az/ledger-bridge/business/vote"
	voteapp "github.com/fd1az/ledger-bridge/business/vote/app"
	voteDI "github.com/fd1az/ledger-bridge/business/vote/di"
	"github.com/fd1az/ledger-bridge/internal/apm"
	"github.com/fd1az/ledger-bridge/internal/config"
	"github.com/fd1az/ledger-bridge/internal/logger"
	"github.com/fd1az/ledger-bridge/internal/monolith"
)

// ErrClosed is returned by Ready after Close.
var ErrClosed = errors.New("bridge: closed")

type runtime interface {
	monolith.Monolith
	RegisterModules(modules ...monolith.Module) error
	StartModules(ctx context.Context, modules ...monolith.Module) error
	Close() error
}

type options struct {
	dialer ledgerapp.Dialer
}

// Option configures a Bridge.
type Option func(*options)

// WithDialer replaces the go-ethereum node dialer.
func WithDialer(d ledgerapp.Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// Bridge is a client-side bridge to one ERC-20 contract on one ledger.
type Bridge struct {
	cfg    *config.Config
	log    logger.LoggerInterface
	mono   runtime
	tracer apm.Tracer

	conn        *ledgerapp.ConnectionManager
	binder      *tokenapp.Binder
	balances    *tokenapp.BalanceService
	pipeline    *tokenapp.TransferPipeline
	broadcaster *tokenapp.Broadcaster
	votes       *voteapp.Service

	ready   chan struct{}
	initErr error
	cancel  context.CancelFunc
	closed  chan struct{}
	once    sync.Once
}

// New builds the bridge and starts initialization in the background:
// connect, load accounts, bind the configured contract. Initialization
// failures are logged and never fatal; Ready reports completion.
func New(cfg *config.Config, log logger.LoggerInterface, opts ...Option) (*Bridge, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if log == nil {
		return nil, errors.New("bridge: logger is required")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	services := map[string]any{}
	if o.dialer != nil {
		services[ledgerDI.DialerOverride] = o.dialer
	}
	mono := monolith.New(cfg, log, services)

	modules := []monolith.Module{
		&ledger.Module{}, // first: connection manager
		&token.Module{},  // binds against the connection
		&vote.Module{},   // signs through the connection's accounts
	}
	if err := mono.RegisterModules(modules...); err != nil {
		return nil, fmt.Errorf("failed to register modules: %w", err)
	}

	sr := mono.Services()
	b := &Bridge{
		cfg:         cfg,
		log:         log,
		mono:        mono,
		tracer:      apm.NewTracer("github.com/fd1az/ledger-bridge/pkg/bridge"),
		conn:        ledgerDI.GetConnectionManager(sr),
		binder:      tokenDI.GetBinder(sr),
		balances:    tokenDI.GetBalanceService(sr),
		pipeline:    tokenDI.GetPipeline(sr),
		broadcaster: tokenDI.GetBroadcaster(sr),
		votes:       voteDI.GetService(sr),
		ready:       make(chan struct{}),
		closed:      make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	go b.start(ctx, modules)

	return b, nil
}

func (b *Bridge) start(ctx context.Context, modules []monolith.Module) {
	defer close(b.ready)

	ctx, span := b.tracer.StartSpanFromContext(ctx, "bridge.init")
	defer span.End()

	if err := b.mono.StartModules(ctx, modules...); err != nil {
		b.initErr = fmt.Errorf("failed to start modules: %w", err)
		span.NoticeError(err)
		b.log.Error(ctx, "bridge initialization failed", "error", err)
		return
	}

	status := b.conn.Status()
	span.SetAttributes(
		attribute.String("state", string(status.State)),
		attribute.Int64("generation", int64(status.Generation)))
	b.log.Info(ctx, "bridge initialized", "state", status.State, "endpoint", status.Endpoint)
}

// Ready blocks until initialization has finished, successfully or not.
func (b *Bridge) Ready(ctx context.Context) error {
	select {
	case <-b.ready:
		select {
		case <-b.closed:
			return ErrClosed
		default:
		}
		return b.initErr
	case <-b.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetProvider swaps the ledger endpoint. On success the bound contract is
// revalidated against the new connection.
func (b *Bridge) SetProvider(ctx context.Context, endpoint string) error {
	if err := b.conn.SetProvider(ctx, endpoint); err != nil {
		return err
	}
	if err := b.binder.Revalidate(ctx); err != nil {
		b.log.Warn(ctx, "contract revalidation after provider swap failed", "error", err)
	}
	return nil
}

// IsConnected checks the node.
func (b *Bridge) IsConnected(ctx context.Context) (bool, error) {
	return b.conn.IsConnected(ctx)
}

// RefreshAccounts reloads the node's exposed accounts.
func (b *Bridge) RefreshAccounts(ctx context.Context) {
	b.conn.RefreshAccounts(ctx)
}

// Accounts returns the node's exposed accounts.
func (b *Bridge) Accounts() []common.Address {
	return b.conn.Accounts()
}

// State returns a connection snapshot.
func (b *Bridge) State() ledgerdomain.Status {
	return b.conn.Status()
}

// SetContractAddress binds the token contract.
func (b *Bridge) SetContractAddress(ctx context.Context, address string) (tokendomain.Binding, error) {
	return b.binder.SetContractAddress(ctx, address)
}

// CheckIfContractExists fails unless address holds deployed code.
func (b *Bridge) CheckIfContractExists(ctx context.Context, address string) error {
	return b.binder.CheckIfContractExists(ctx, address)
}

// Binding returns the current contract binding.
func (b *Bridge) Binding() (tokendomain.Binding, error) {
	return b.binder.Binding()
}

// GetBlockNumber returns the latest block height.
func (b *Bridge) GetBlockNumber(ctx context.Context) (uint64, error) {
	return b.balances.GetBlockNumber(ctx)
}

// GetTokenBalance waits for initialization, then returns the normalized
// token balance of address at block (nil for latest).
func (b *Bridge) GetTokenBalance(ctx context.Context, address string, block *uint64) (decimal.Decimal, error) {
	if err := b.Ready(ctx); err != nil {
		return decimal.Zero, err
	}
	return b.balances.GetTokenBalance(ctx, address, block)
}

// SubscribeTransfers registers a Transfer listener. Events are dropped for
// this listener while its buffer is full.
func (b *Bridge) SubscribeTransfers(buffer int) (<-chan tokendomain.TransferEvent, func()) {
	if buffer < 1 {
		buffer = b.cfg.Token.ListenerBuffer
	}
	return b.broadcaster.Subscribe(buffer)
}

// TransferStats returns the pipeline counters and the listener drop count.
func (b *Bridge) TransferStats() (tokenapp.PipelineStats, uint64) {
	return b.pipeline.Stats(), b.broadcaster.Dropped()
}

// MessageString returns the canonical vote encoding.
func (b *Bridge) MessageString(proposalID, choiceID, nonce uint64) string {
	return b.votes.MessageString(proposalID, choiceID, nonce)
}

// SignVote signs a vote with privateKey, or with the node's first account
// when privateKey is empty.
func (b *Bridge) SignVote(ctx context.Context, proposalID, choiceID, nonce uint64, privateKey string) (string, error) {
	return b.votes.SignVote(ctx, proposalID, choiceID, nonce, privateKey)
}

// VerifyVote reports whether signature was produced by expected.
func (b *Bridge) VerifyVote(proposalID, choiceID, nonce uint64, signature, expected string) bool {
	return b.votes.VerifyVote(proposalID, choiceID, nonce, signature, expected)
}

// RecoverAddressFromMessage returns the signer of message.
func (b *Bridge) RecoverAddressFromMessage(message, signature string) (common.Address, error) {
	return b.votes.RecoverAddressFromMessage(message, signature)
}

// Healthy reports whether the bridge is initialized, connected and, when a
// contract is bound, streaming its transfers.
func (b *Bridge) Healthy(ctx context.Context) (bool, string) {
	for _, check := range []func(context.Context) (bool, string){
		b.checkReady, b.checkConnection, b.checkSubscription,
	} {
		if ok, msg := check(ctx); !ok {
			return false, msg
		}
	}
	return true, ""
}

// HealthChecks returns the individual checks behind Healthy, by name.
func (b *Bridge) HealthChecks() map[string]func(context.Context) (bool, string) {
	return map[string]func(context.Context) (bool, string){
		"bridge":       b.checkReady,
		"ledger":       b.checkConnection,
		"subscription": b.checkSubscription,
	}
}

func (b *Bridge) checkReady(context.Context) (bool, string) {
	select {
	case <-b.ready:
		if b.initErr != nil {
			return false, b.initErr.Error()
		}
		return true, "initialized"
	default:
		return false, "initializing"
	}
}

func (b *Bridge) checkConnection(ctx context.Context) (bool, string) {
	ok, err := b.conn.IsConnected(ctx)
	if err != nil {
		return false, err.Error()
	}
	if !ok {
		return false, "node is not listening"
	}
	return true, b.conn.Endpoint().Redacted()
}

func (b *Bridge) checkSubscription(context.Context) (bool, string) {
	if _, ok := b.binder.Requested(); !ok {
		return true, "no contract bound"
	}
	if ok, reason := b.pipeline.Health(); !ok {
		return false, reason
	}
	binding, _ := b.pipeline.Binding()
	return true, "streaming " + binding.Label()
}

// Close stops initialization, the Transfer pipeline and the node
// connection. It is safe to call more than once.
func (b *Bridge) Close() error {
	var err error
	b.once.Do(func() {
		close(b.closed)
		b.cancel()
		<-b.ready
		err = b.mono.Close()
	})
	return err
}
