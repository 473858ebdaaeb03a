// Package di contains dependency injection tokens for the token context.
package di

import (
	"github.com/fd1az/ledger-bridge/business/token/app"
	"github.com/fd1az/ledger-bridge/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Binder         = di.NewToken[*app.Binder]("token.Binder")
	BalanceService = di.NewToken[*app.BalanceService]("token.BalanceService")
	Broadcaster    = di.NewToken[*app.Broadcaster]("token.Broadcaster")
	Pipeline       = di.NewToken[*app.TransferPipeline]("token.TransferPipeline")
)

// Private dependency tokens - internal to token module
var (
	Contract = di.NewToken[app.TokenContract]("token:contract")
)

// Helper functions for type-safe access
func GetBinder(c di.ServiceRegistry) *app.Binder {
	return di.GetToken(c, Binder)
}

func GetBalanceService(c di.ServiceRegistry) *app.BalanceService {
	return di.GetToken(c, BalanceService)
}

func GetBroadcaster(c di.ServiceRegistry) *app.Broadcaster {
	return di.GetToken(c, Broadcaster)
}

func GetPipeline(c di.ServiceRegistry) *app.TransferPipeline {
	return di.GetToken(c, Pipeline)
}

func GetContract(c di.ServiceRegistry) app.TokenContract {
	return di.GetToken(c, Contract)
}
