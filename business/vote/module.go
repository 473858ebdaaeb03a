// Package vote implements vote message signing and verification.
package vote

import (
	"context"

	ledgerDI "github.com/fd1az/ledger-bridge/business/ledger/di"
	"github.com/fd1az/ledger-bridge/business/vote/app"
	voteDI "github.com/fd1az/ledger-bridge/business/vote/di"
	"github.com/fd1az/ledger-bridge/internal/di"
	"github.com/fd1az/ledger-bridge/internal/logger"
	"github.com/fd1az/ledger-bridge/internal/monolith"
)

// Module implements the vote bounded context.
type Module struct{}

// RegisterServices registers the vote service. Provider signing goes
// through the ledger connection manager.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, voteDI.Service, func(sr di.ServiceRegistry) *app.Service {
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewService(ledgerDI.GetConnectionManager(sr), log)
	})
	return nil
}

// Startup resolves the service so wiring errors surface during init.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	voteDI.GetService(mono.Services())
	mono.Logger().Info(ctx, "vote module started")
	return nil
}
