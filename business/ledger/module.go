// Package ledger implements the ledger connection bounded context.
package ledger

import (
	"context"

	"github.com/fd1az/ledger-bridge/business/ledger/app"
	ledgerDI "github.com/fd1az/ledger-bridge/business/ledger/di"
	"github.com/fd1az/ledger-bridge/business/ledger/infra/ethereum"
	"github.com/fd1az/ledger-bridge/internal/config"
	"github.com/fd1az/ledger-bridge/internal/di"
	"github.com/fd1az/ledger-bridge/internal/logger"
	"github.com/fd1az/ledger-bridge/internal/monolith"
)

// Module implements the ledger bounded context.
type Module struct{}

// RegisterServices registers all ledger services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Dialer (private): an injected override wins over go-ethereum
	di.RegisterToken(c, ledgerDI.Dialer, func(sr di.ServiceRegistry) app.Dialer {
		if sr.Has(ledgerDI.DialerOverride) {
			return sr.Get(ledgerDI.DialerOverride).(app.Dialer)
		}
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		return ethereum.NewDialer(cfg.Ethereum, log)
	})

	// ConnectionManager (public)
	di.RegisterToken(c, ledgerDI.ConnectionManager, func(sr di.ServiceRegistry) *app.ConnectionManager {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewConnectionManager(ledgerDI.GetDialer(sr), app.ManagerConfig{
			NetworkIDTTL: cfg.Ethereum.NetworkIDTTL,
		}, log)
	})

	return nil
}

// Startup connects to the configured endpoint. A failed connection is
// logged, never fatal: the bridge stays usable in degraded mode.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	mgr := ledgerDI.GetConnectionManager(mono.Services())
	mono.OnClose(mgr.Close)

	endpoint := mono.Config().Ethereum.WebSocketURL
	if err := mgr.SetProvider(ctx, endpoint); err != nil {
		log.Warn(ctx, "ledger provider unavailable", "error", err)
	}

	log.Info(ctx, "ledger module started", "state", mgr.State())
	return nil
}
