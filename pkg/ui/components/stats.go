package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Stats holds pipeline counters for display.
type Stats struct {
	Transfers uint64
	Reorged   uint64
	Malformed uint64
	Dropped   uint64
	Errors    int
}

// StatsComponent renders statistics.
type StatsComponent struct {
	stats Stats
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Update updates the statistics.
func (s *StatsComponent) Update(stats Stats) {
	s.stats = stats
}

// View renders the stats component.
func (s *StatsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true)

	value := func(n uint64, warn bool) string {
		if warn && n > 0 {
			return warnStyle.Render(fmt.Sprintf("%d", n))
		}
		return valueStyle.Render(fmt.Sprintf("%d", n))
	}

	return style.Render("STATS") + "\n" +
		fmt.Sprintf("Transfers: %s  │  Reorged: %s  │  Malformed: %s  │  Dropped: %s  │  Errors: %s",
			value(s.stats.Transfers, false),
			value(s.stats.Reorged, true),
			value(s.stats.Malformed, true),
			value(s.stats.Dropped, true),
			value(uint64(s.stats.Errors), true),
		)
}
