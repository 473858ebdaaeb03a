// Package di contains dependency injection tokens for the ledger context.
package di

import (
	"github.com/fd1az/ledger-bridge/business/ledger/app"
	"github.com/fd1az/ledger-bridge/internal/di"
)

// Public service tokens - exposed to other modules
var (
	ConnectionManager = di.NewToken[*app.ConnectionManager]("ledger.ConnectionManager")
)

// Private dependency tokens - internal to ledger module
var (
	Dialer = di.NewToken[app.Dialer]("ledger:dialer")
)

// DialerOverride is the global service name checked before the default
// go-ethereum dialer is built.
const DialerOverride = "dialer"

// Helper functions for type-safe access
func GetConnectionManager(c di.ServiceRegistry) *app.ConnectionManager {
	return di.GetToken(c, ConnectionManager)
}

func GetDialer(c di.ServiceRegistry) app.Dialer {
	return di.GetToken(c, Dialer)
}
