// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// TransferRow is one Transfer notification in the feed.
type TransferRow struct {
	Time        string
	BlockHeight uint64
	From        string
	To          string
	Amount      decimal.Decimal
	Symbol      string
	// Large marks transfers at or above the feed's highlight threshold.
	Large bool
}

// TransfersComponent renders the live transfer feed, newest first.
type TransfersComponent struct {
	rows    []TransferRow
	maxRows int
	offset  int
	visible int
}

// NewTransfersComponent creates a feed keeping at most maxRows rows.
func NewTransfersComponent(maxRows int) *TransfersComponent {
	return &TransfersComponent{
		rows:    make([]TransferRow, 0, maxRows),
		maxRows: maxRows,
		visible: 12,
	}
}

// Add prepends a row.
func (t *TransfersComponent) Add(row TransferRow) {
	t.rows = append([]TransferRow{row}, t.rows...)
	if len(t.rows) > t.maxRows {
		t.rows = t.rows[:t.maxRows]
	}
	if t.offset > 0 {
		t.offset++ // keep the viewed rows in place
	}
	t.clampOffset()
}

// Len returns the number of rows held.
func (t *TransfersComponent) Len() int {
	return len(t.rows)
}

// Clear removes all rows.
func (t *TransfersComponent) Clear() {
	t.rows = t.rows[:0]
	t.offset = 0
}

// ScrollUp moves the window towards newer rows.
func (t *TransfersComponent) ScrollUp() {
	if t.offset > 0 {
		t.offset--
	}
}

// ScrollDown moves the window towards older rows.
func (t *TransfersComponent) ScrollDown() {
	t.offset++
	t.clampOffset()
}

func (t *TransfersComponent) clampOffset() {
	last := len(t.rows) - t.visible
	if last < 0 {
		last = 0
	}
	if t.offset > last {
		t.offset = last
	}
}

// View renders the feed.
func (t *TransfersComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	largeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true)

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("TRANSFERS (%d)", len(t.rows))))
	sb.WriteString("\n\n")

	if len(t.rows) == 0 {
		sb.WriteString(mutedStyle.Render("  Waiting for Transfer events..."))
		return sb.String()
	}

	end := t.offset + t.visible
	if end > len(t.rows) {
		end = len(t.rows)
	}
	for _, row := range t.rows[t.offset:end] {
		line := fmt.Sprintf("%s  #%-9d %s → %s  %s %s",
			row.Time, row.BlockHeight, short(row.From), short(row.To), row.Amount.String(), row.Symbol)
		if row.Large {
			sb.WriteString(largeStyle.Render(line))
		} else {
			sb.WriteString(line)
		}
		sb.WriteString("\n")
	}
	if len(t.rows) > t.visible {
		sb.WriteString(mutedStyle.Render(fmt.Sprintf("  %d-%d of %d", t.offset+1, end, len(t.rows))))
	}
	return sb.String()
}

// short abbreviates a 0x address to 0x1234…abcd.
func short(addr string) string {
	if len(addr) < 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}
