// Package di contains dependency injection tokens for the vote context.
package di

import (
	"github.com/fd1az/ledger-bridge/business/vote/app"
	"github.com/fd1az/ledger-bridge/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Service = di.NewToken[*app.Service]("vote.Service")
)

// Helper functions for type-safe access
func GetService(c di.ServiceRegistry) *app.Service {
	return di.GetToken(c, Service)
}
