// Package token implements the token contract bounded context.
package token

import (
	"context"

	ledgerDI "github.com/fd1az/ledger-bridge/business/ledger/di"
	"github.com/fd1az/ledger-bridge/business/token/app"
	tokenDI "github.com/fd1az/ledger-bridge/business/token/di"
	"github.com/fd1az/ledger-bridge/business/token/infra/erc20"
	"github.com/fd1az/ledger-bridge/internal/config"
	"github.com/fd1az/ledger-bridge/internal/di"
	"github.com/fd1az/ledger-bridge/internal/logger"
	"github.com/fd1az/ledger-bridge/internal/monolith"
)

// Module implements the token bounded context.
type Module struct{}

// RegisterServices registers all token services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// ERC-20 codec (private)
	di.RegisterToken(c, tokenDI.Contract, func(sr di.ServiceRegistry) app.TokenContract {
		return erc20.New()
	})

	// Broadcaster (public)
	di.RegisterToken(c, tokenDI.Broadcaster, func(sr di.ServiceRegistry) *app.Broadcaster {
		return app.NewBroadcaster()
	})

	// TransferPipeline (public)
	di.RegisterToken(c, tokenDI.Pipeline, func(sr di.ServiceRegistry) *app.TransferPipeline {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewTransferPipeline(
			tokenDI.GetContract(sr),
			tokenDI.GetBroadcaster(sr),
			cfg.Token.ListenerBuffer,
			log,
		)
	})

	// Binder (public)
	di.RegisterToken(c, tokenDI.Binder, func(sr di.ServiceRegistry) *app.Binder {
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewBinder(
			ledgerDI.GetConnectionManager(sr),
			tokenDI.GetContract(sr),
			tokenDI.GetPipeline(sr),
			log,
		)
	})

	// BalanceService (public)
	di.RegisterToken(c, tokenDI.BalanceService, func(sr di.ServiceRegistry) *app.BalanceService {
		return app.NewBalanceService(
			ledgerDI.GetConnectionManager(sr),
			tokenDI.GetContract(sr),
			tokenDI.GetBinder(sr),
		)
	})

	return nil
}

// Startup binds the configured contract. Failures are logged; the binding
// can be set later through SetContractAddress.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	sr := mono.Services()

	pipeline := tokenDI.GetPipeline(sr)
	broadcaster := tokenDI.GetBroadcaster(sr)
	mono.OnClose(broadcaster.Close)
	mono.OnClose(pipeline.Stop)

	address := mono.Config().Token.ContractAddress
	if address == "" {
		log.Info(ctx, "token module started, no contract configured")
		return nil
	}

	binding, err := tokenDI.GetBinder(sr).SetContractAddress(ctx, address)
	if err != nil {
		log.Warn(ctx, "token contract not bound", "address", address, "error", err)
		return nil
	}

	log.Info(ctx, "token module started", "token", binding.Label(), "decimals", binding.Decimals)
	return nil
}
