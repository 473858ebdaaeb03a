package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	ledgerapp "github.com/fd1az/ledger-bridge/business/ledger/app"
	"github.com/fd1az/ledger-bridge/business/token/domain"
	"github.com/fd1az/ledger-bridge/business/token/infra/erc20"
	"github.com/fd1az/ledger-bridge/internal/apperror"
	"github.com/fd1az/ledger-bridge/internal/logger"
)

const tracerName = "github.com/fd1az/ledger-bridge/business/token/app"

// Installer starts the Transfer run loop for a binding.
type Installer interface {
	Install(ctx context.Context, session ledgerapp.Session, binding domain.Binding) error
}

// Binder validates and holds the token contract binding.
//
// Rebinding is atomic: a candidate is validated, read and subscribed before
// it replaces the published binding, so a failed bind leaves the previous
// binding and its subscription in place. Binds are serialized.
type Binder struct {
	conn     Connection
	contract TokenContract
	pipeline Installer
	log      logger.LoggerInterface
	tracer   trace.Tracer

	bindMu sync.Mutex

	mu        sync.RWMutex
	binding   *domain.Binding
	requested common.Address
	lastErr   error
}

// NewBinder creates an unbound binder.
func NewBinder(conn Connection, contract TokenContract, pipeline Installer, log logger.LoggerInterface) *Binder {
	return &Binder{
		conn:     conn,
		contract: contract,
		pipeline: pipeline,
		log:      log,
		tracer:   otel.Tracer(tracerName),
	}
}

// SetContractAddress validates address, reads the token metadata, installs
// the Transfer subscription and publishes the binding.
func (b *Binder) SetContractAddress(ctx context.Context, address string) (domain.Binding, error) {
	ctx, span := b.tracer.Start(ctx, "token.SetContractAddress",
		trace.WithAttributes(attribute.String("contract", address)))
	defer span.End()

	binding, err := b.bind(ctx, address)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		b.mu.Lock()
		b.lastErr = err
		b.mu.Unlock()

		b.log.Warn(ctx, "contract binding failed", "address", address, "error", err)
		return domain.Binding{}, err
	}
	return binding, nil
}

func (b *Binder) bind(ctx context.Context, address string) (domain.Binding, error) {
	addr, err := parseAddress(address)
	if err != nil {
		return domain.Binding{}, err
	}

	b.bindMu.Lock()
	defer b.bindMu.Unlock()

	// A failed rebind keeps the published binding as the requested contract.
	b.mu.Lock()
	if b.binding == nil {
		b.requested = addr
	}
	b.mu.Unlock()

	session, err := b.checkExists(ctx, addr)
	if err != nil {
		return domain.Binding{}, err
	}

	symbol, err := b.contract.Symbol(ctx, session.Node, addr)
	switch {
	case errors.Is(err, erc20.ErrNoData):
		b.log.Warn(ctx, "contract has no symbol()", "address", addr.Hex())
		symbol = ""
	case err != nil:
		return domain.Binding{}, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContextf("symbol() on %s", addr.Hex()))
	}

	decimals, err := b.contract.Decimals(ctx, session.Node, addr)
	switch {
	case errors.Is(err, erc20.ErrNoData):
		b.log.Warn(ctx, "contract has no decimals(), assuming default",
			"address", addr.Hex(), "decimals", domain.DefaultDecimals)
		decimals = domain.DefaultDecimals
	case err != nil:
		return domain.Binding{}, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContextf("decimals() on %s", addr.Hex()))
	}

	candidate := domain.Binding{
		Address:    addr,
		Symbol:     symbol,
		Decimals:   decimals,
		Generation: session.Generation,
		BoundAt:    time.Now(),
	}

	if err := b.pipeline.Install(ctx, session, candidate); err != nil {
		return domain.Binding{}, err
	}

	b.mu.Lock()
	b.binding = &candidate
	b.requested = addr
	b.lastErr = nil
	b.mu.Unlock()

	b.log.Info(ctx, "token contract bound",
		"address", addr.Hex(),
		"symbol", symbol,
		"decimals", decimals,
		"generation", session.Generation)
	return candidate, nil
}

// CheckIfContractExists fails unless address holds deployed code on the
// connected ledger.
func (b *Binder) CheckIfContractExists(ctx context.Context, address string) error {
	addr, err := parseAddress(address)
	if err != nil {
		return err
	}
	_, err = b.checkExists(ctx, addr)
	return err
}

func (b *Binder) checkExists(ctx context.Context, addr common.Address) (ledgerapp.Session, error) {
	session, err := b.conn.RequireConnected(ctx)
	if err != nil {
		return ledgerapp.Session{}, err
	}

	code, err := session.Node.CodeAt(ctx, addr, nil)
	if err != nil {
		return ledgerapp.Session{}, apperror.Wrap(err, apperror.CodeEthereumRPCError,
			"eth_getCode for "+addr.Hex())
	}

	if len(code) < domain.MinCodeSize {
		network := "unknown"
		if id, err := b.conn.NetworkID(ctx); err == nil {
			network = id.String()
		}
		return ledgerapp.Session{}, apperror.New(apperror.CodeContractNotFound,
			apperror.WithContextf("no contract at %s on network %s", addr.Hex(), network))
	}
	return session, nil
}

// Binding returns the published binding. It fails with CONTRACT_NOT_BOUND
// before the first successful bind and BINDING_STALE once the connection it
// was validated against has been replaced.
func (b *Binder) Binding() (domain.Binding, error) {
	b.mu.RLock()
	binding, lastErr := b.binding, b.lastErr
	b.mu.RUnlock()

	if binding == nil {
		opts := []apperror.Option{}
		if lastErr != nil {
			opts = append(opts, apperror.WithCause(lastErr))
		}
		return domain.Binding{}, apperror.New(apperror.CodeContractNotBound, opts...)
	}

	if gen := b.conn.Generation(); gen != binding.Generation {
		return *binding, apperror.New(apperror.CodeBindingStale,
			apperror.WithContextf("%s bound at generation %d, connection is at %d",
				binding.Address.Hex(), binding.Generation, gen))
	}
	return *binding, nil
}

// Requested returns the bound contract, or the last address tried before
// any bind succeeded.
func (b *Binder) Requested() (common.Address, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.requested, b.requested != (common.Address{})
}

// Revalidate re-binds against the current connection: the published
// binding when there is one, otherwise the last requested address. It is a
// no-op when nothing was requested.
func (b *Binder) Revalidate(ctx context.Context) error {
	b.mu.RLock()
	addr := b.requested
	if b.binding != nil {
		addr = b.binding.Address
	}
	b.mu.RUnlock()

	if addr == (common.Address{}) {
		return nil
	}
	_, err := b.SetContractAddress(ctx, addr.Hex())
	return err
}

func parseAddress(address string) (common.Address, error) {
	if !common.IsHexAddress(address) {
		return common.Address{}, apperror.Validation(apperror.CodeInvalidAddress, address)
	}
	return common.HexToAddress(address), nil
}
