package ui

import (
	ledgerdomain "github.com/fd1az/ledger-bridge/business/ledger/domain"
	tokendomain "github.com/fd1az/ledger-bridge/business/token/domain"
	"github.com/fd1az/ledger-bridge/pkg/ui/components"
)

// Message types for TUI updates

// ConnectionMsg carries a connection snapshot.
type ConnectionMsg struct {
	Status ledgerdomain.Status
}

// BindingMsg carries the current binding, or why there is none.
type BindingMsg struct {
	Binding tokendomain.Binding
	Err     error
}

// BlockMsg is sent when the block height is polled.
type BlockMsg struct {
	Number uint64
}

// TransferMsg is sent for every Transfer event.
type TransferMsg struct {
	Event tokendomain.TransferEvent
}

// StatsMsg carries pipeline counters.
type StatsMsg struct {
	Stats components.Stats
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step   string // "config", "ledger", "token"
	Status string // "connecting", "connected", "failed", "done"
}
