package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// ConnectionStatus is the ledger connection as shown in the panel.
type ConnectionStatus struct {
	State      string
	Endpoint   string
	Generation uint64
	Accounts   int
	LastCheck  time.Time
	Block      uint64
}

// BindingStatus is the bound contract as shown in the panel.
type BindingStatus struct {
	Address  string
	Symbol   string
	Decimals uint8
	Error    string
}

// StatusComponent renders connection and binding status.
type StatusComponent struct {
	conn    ConnectionStatus
	binding BindingStatus
}

// NewStatusComponent creates a new status component.
func NewStatusComponent() *StatusComponent {
	return &StatusComponent{conn: ConnectionStatus{State: "disconnected"}}
}

// UpdateConnection replaces the connection status.
func (s *StatusComponent) UpdateConnection(status ConnectionStatus) {
	block := s.conn.Block
	s.conn = status
	if status.Block == 0 {
		s.conn.Block = block
	}
}

// UpdateBlock records the latest block height.
func (s *StatusComponent) UpdateBlock(height uint64) {
	s.conn.Block = height
}

// UpdateBinding replaces the binding status.
func (s *StatusComponent) UpdateBinding(status BindingStatus) {
	s.binding = status
}

// Connected reports whether the last known state is connected.
func (s *StatusComponent) Connected() bool {
	return s.conn.State == "connected"
}

// View renders the status component.
func (s *StatusComponent) View() string {
	label := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	ok := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	warn := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true)
	bad := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	var sb strings.Builder
	sb.WriteString(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")).Render("LEDGER"))
	sb.WriteString("\n\n")

	state := bad.Render("○ " + s.conn.State)
	switch s.conn.State {
	case "connected":
		state = ok.Render("● connected")
	case "connecting":
		state = warn.Render("◐ connecting")
	}

	endpoint := s.conn.Endpoint
	if endpoint == "" {
		endpoint = "none (degraded mode)"
	}

	fmt.Fprintf(&sb, "├─ %s %s\n", label.Render("State:   "), state)
	fmt.Fprintf(&sb, "├─ %s %s\n", label.Render("Endpoint:"), endpoint)
	fmt.Fprintf(&sb, "├─ %s #%d\n", label.Render("Block:   "), s.conn.Block)
	fmt.Fprintf(&sb, "├─ %s %d (generation %d)\n", label.Render("Accounts:"), s.conn.Accounts, s.conn.Generation)
	if !s.conn.LastCheck.IsZero() {
		fmt.Fprintf(&sb, "└─ %s %s ago\n", label.Render("Checked: "), time.Since(s.conn.LastCheck).Round(time.Second))
	}

	sb.WriteString("\n")
	sb.WriteString(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")).Render("TOKEN"))
	sb.WriteString("\n\n")

	switch {
	case s.binding.Error != "":
		fmt.Fprintf(&sb, "└─ %s\n", bad.Render(s.binding.Error))
	case s.binding.Address == "":
		fmt.Fprintf(&sb, "└─ %s\n", label.Render("no contract bound"))
	default:
		symbol := s.binding.Symbol
		if symbol == "" {
			symbol = "(no symbol)"
		}
		fmt.Fprintf(&sb, "├─ %s %s\n", label.Render("Symbol:  "), ok.Render(symbol))
		fmt.Fprintf(&sb, "├─ %s %s\n", label.Render("Contract:"), s.binding.Address)
		fmt.Fprintf(&sb, "└─ %s %d\n", label.Render("Decimals:"), s.binding.Decimals)
	}

	return sb.String()
}
