package app

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/ledger-bridge/internal/apperror"
	"github.com/fd1az/ledger-bridge/internal/asset"
)

// BalanceService answers block height and token balance queries.
type BalanceService struct {
	conn     Connection
	contract TokenContract
	bindings *Binder
	tracer   trace.Tracer
}

// NewBalanceService creates the query service.
func NewBalanceService(conn Connection, contract TokenContract, bindings *Binder) *BalanceService {
	return &BalanceService{
		conn:     conn,
		contract: contract,
		bindings: bindings,
		tracer:   otel.Tracer(tracerName),
	}
}

// GetBlockNumber returns the latest block height.
func (s *BalanceService) GetBlockNumber(ctx context.Context) (uint64, error) {
	height, err := s.conn.BlockNumber(ctx)
	if err != nil {
		return 0, blockNumberError(err)
	}
	return height, nil
}

func blockNumberError(err error) error {
	if apperror.GetClass(err) == apperror.ClassConnectivity {
		return err
	}
	return apperror.New(apperror.CodeBlockNumberFailed, apperror.WithCause(err))
}

// GetTokenBalance returns the bound token balance of address at block (nil
// for latest), normalized by the token's decimals.
func (s *BalanceService) GetTokenBalance(ctx context.Context, address string, block *uint64) (decimal.Decimal, error) {
	at := "latest"
	if block != nil {
		at = fmt.Sprintf("%d", *block)
	}

	ctx, span := s.tracer.Start(ctx, "token.GetTokenBalance",
		trace.WithAttributes(
			attribute.String("holder", address),
			attribute.String("block", at)))
	defer span.End()

	balance, err := s.tokenBalance(ctx, address, block, at)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return decimal.Zero, err
	}
	return balance, nil
}

func (s *BalanceService) tokenBalance(ctx context.Context, address string, block *uint64, at string) (decimal.Decimal, error) {
	describe := func(contract string) string {
		return fmt.Sprintf("Error getting tokenBalance for address %s at block: %s for contract at address: %s",
			address, at, contract)
	}

	holder, err := parseAddress(address)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.CodeInvalidAddress, apperror.WithContext(describe(s.contractLabel())))
	}

	session, err := s.conn.RequireConnected(ctx)
	if err != nil {
		return decimal.Zero, s.annotate(err, describe(s.contractLabel()))
	}

	binding, err := s.bindings.Binding()
	if err != nil {
		return decimal.Zero, s.annotate(err, describe(s.contractLabel()))
	}
	if binding.Generation != session.Generation {
		return decimal.Zero, apperror.New(apperror.CodeBindingStale,
			apperror.WithContext(describe(binding.Address.Hex())))
	}

	var number *big.Int
	if block != nil {
		number = new(big.Int).SetUint64(*block)
	}

	raw, err := s.contract.BalanceOf(ctx, session.Node, binding.Address, holder, number)
	if err != nil {
		if apperror.GetClass(err) == apperror.ClassConnectivity {
			return decimal.Zero, s.annotate(err, describe(binding.Address.Hex()))
		}
		return decimal.Zero, apperror.New(apperror.CodeBalanceQueryFailed,
			apperror.WithCause(err),
			apperror.WithContext(describe(binding.Address.Hex())))
	}

	amount, err := asset.NewAmount(binding.Token(), raw)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.CodeBalanceQueryFailed,
			apperror.WithCause(err),
			apperror.WithContext(describe(binding.Address.Hex())))
	}
	return amount.ToDecimal(), nil
}

// annotate keeps connectivity and binding codes and adds the query context.
func (s *BalanceService) annotate(err error, detail string) error {
	code := apperror.GetCode(err)
	if code == apperror.CodeUnknownError {
		code = apperror.CodeBalanceQueryFailed
	}
	return apperror.New(code, apperror.WithCause(err), apperror.WithContext(detail))
}

func (s *BalanceService) contractLabel() string {
	if addr, ok := s.bindings.Requested(); ok {
		return addr.Hex()
	}
	return "none"
}
