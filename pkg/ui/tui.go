package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/fd1az/ledger-bridge/pkg/ui/components"
)

// StartupStep represents a step in the startup process.
type StartupStep struct {
	Name   string
	Status string // "pending", "connecting", "connected", "failed", "done"
}

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"   // Initial welcome screen
	PhaseStartup   Phase = "startup"   // Loading/connecting
	PhaseDashboard Phase = "dashboard" // Main dashboard
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

var stepOrder = []string{"config", "ledger", "token"}

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	// Components
	status    *components.StatusComponent
	transfers *components.TransfersComponent
	stats     *components.StatsComponent
	keys      KeyMap
	help      help.Model

	// Phase state
	phase        Phase
	welcomeStart time.Time

	// State
	quitting   bool
	paused     bool // transfers are counted but not listed
	width      int
	height     int
	lastUpdate time.Time
	errors     []ErrorEntry // last 3
	large      decimal.Decimal

	// Startup state
	startupSteps map[string]*StartupStep
	startupTime  time.Time
}

// New creates a new TUI model.
func New() Model {
	now := time.Now()
	return Model{
		status:       components.NewStatusComponent(),
		transfers:    components.NewTransfersComponent(200),
		stats:        components.NewStatsComponent(),
		keys:         DefaultKeyMap(),
		help:         help.New(),
		phase:        PhaseWelcome,
		welcomeStart: now,
		errors:       make([]ErrorEntry, 0, 3),
		startupSteps: map[string]*StartupStep{
			"config": {Name: "Loading configuration", Status: "pending"},
			"ledger": {Name: "Connecting to ledger node", Status: "pending"},
			"token":  {Name: "Binding token contract", Status: "pending"},
		},
		startupTime: now,
	}
}

// WithLargeTransfer highlights transfers of at least amount tokens.
func (m Model) WithLargeTransfer(amount decimal.Decimal) Model {
	m.large = amount
	return m
}

// Phase returns the current phase.
func (m Model) Phase() Phase {
	return m.phase
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd returns a command that sends a tick every 100ms for smooth animations.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

func (m *Model) leaveWelcome() {
	m.phase = PhaseStartup
	m.startupTime = time.Now()
	// Trigger callback directly (don't use Send() from within Update)
	if OnStartModules != nil {
		go OnStartModules()
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		// During welcome phase, any other key skips to startup
		if m.phase == PhaseWelcome {
			m.leaveWelcome()
			return m, tickCmd()
		}
		switch {
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Clear):
			m.transfers.Clear()
		case key.Matches(msg, m.keys.Errors):
			m.errors = m.errors[:0]
		case key.Matches(msg, m.keys.Up):
			m.transfers.ScrollUp()
		case key.Matches(msg, m.keys.Down):
			m.transfers.ScrollDown()
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case TickMsg:
		if m.phase == PhaseWelcome && time.Since(m.welcomeStart) >= WelcomeDuration {
			m.leaveWelcome()
		}
		return m, tickCmd()

	case ConnectionMsg:
		s := msg.Status
		m.status.UpdateConnection(components.ConnectionStatus{
			State:      string(s.State),
			Endpoint:   s.Endpoint,
			Generation: s.Generation,
			Accounts:   s.Accounts,
			LastCheck:  s.LastCheck,
		})
		m.setStep("config", "done")
		switch s.State {
		case "connected":
			m.setStep("ledger", "connected")
		case "connecting":
			m.setStep("ledger", "connecting")
		}
		m.lastUpdate = time.Now()

	case BindingMsg:
		if msg.Err != nil {
			m.status.UpdateBinding(components.BindingStatus{Error: msg.Err.Error()})
		} else {
			m.status.UpdateBinding(components.BindingStatus{
				Address:  msg.Binding.Address.Hex(),
				Symbol:   msg.Binding.Symbol,
				Decimals: msg.Binding.Decimals,
			})
			m.setStep("token", "done")
		}
		m.lastUpdate = time.Now()

	case BlockMsg:
		m.status.UpdateBlock(msg.Number)
		m.lastUpdate = time.Now()

	case TransferMsg:
		ev := msg.Event
		if !m.paused {
			m.transfers.Add(components.TransferRow{
				Time:        time.Now().Format("15:04:05"),
				BlockHeight: ev.BlockHeight,
				From:        ev.From.Hex(),
				To:          ev.To.Hex(),
				Amount:      ev.Amount,
				Symbol:      ev.Symbol,
				Large:       m.large.IsPositive() && ev.Amount.GreaterThanOrEqual(m.large),
			})
		}
		if ev.BlockHeight > 0 {
			m.status.UpdateBlock(ev.BlockHeight)
		}
		m.lastUpdate = time.Now()

	case StatsMsg:
		stats := msg.Stats
		stats.Errors = len(m.errors)
		m.stats.Update(stats)

	case ErrorMsg:
		m.errors = append(m.errors, ErrorEntry{
			Message:   msg.Error.Error(),
			Timestamp: time.Now(),
		})
		if len(m.errors) > 3 {
			m.errors = m.errors[len(m.errors)-3:]
		}

	case StartupMsg:
		m.setStep(msg.Step, msg.Status)
	}

	if m.phase == PhaseStartup && m.startupComplete() {
		m.phase = PhaseDashboard
	}
	return m, nil
}

func (m *Model) setStep(name, status string) {
	if step, ok := m.startupSteps[name]; ok {
		step.Status = status
	}
}

// startupComplete reports whether no step is still pending or connecting.
func (m Model) startupComplete() bool {
	for _, step := range m.startupSteps {
		if step.Status == "pending" || step.Status == "connecting" {
			return false
		}
	}
	return true
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	switch m.phase {
	case PhaseWelcome:
		return m.renderWelcomeScreen()
	case PhaseStartup:
		return m.renderStartupScreen()
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(" ⛓ Ledger Bridge "))
	b.WriteString("\n\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	leftCol := m.status.View()
	rightCol := m.transfers.View()

	// Side by side if enough width
	if m.width > 100 {
		left := BoxStyle.Width(m.width/3 - 2).Render(leftCol)
		right := BoxStyle.Width(m.width*2/3 - 2).Render(rightCol)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	} else {
		width := m.width - 4
		if width < 20 {
			width = 20
		}
		b.WriteString(BoxStyle.Width(width).Render(leftCol))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Width(width).Render(rightCol))
	}
	b.WriteString("\n\n")
	b.WriteString(m.stats.View())
	b.WriteString("\n\n")

	if len(m.errors) > 0 {
		b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(ColorDanger).Render("ERRORS"))
		b.WriteString(MutedValue.Render(" (e: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(ErrorValue.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(MutedValue.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.paused {
		b.WriteString(PausedStyle.Render("⏸ PAUSED"))
		b.WriteString(" • ")
	}
	b.WriteString(HelpStyle.Render(m.help.View(m.keys)))

	return b.String()
}

// renderWelcomeScreen renders the animated welcome screen.
func (m Model) renderWelcomeScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	greenStyle := lipgloss.NewStyle().Foreground(ColorSecondary)

	elapsed := time.Since(m.welcomeStart)
	dots := strings.Repeat(".", int(elapsed.Milliseconds()/300)%4)

	var sb strings.Builder
	sb.WriteString("\n\n\n\n")

	logo := `
   ██╗     ███████╗██████╗  ██████╗ ███████╗██████╗
   ██║     ██╔════╝██╔══██╗██╔════╝ ██╔════╝██╔══██╗
   ██║     █████╗  ██║  ██║██║  ███╗█████╗  ██████╔╝
   ██║     ██╔══╝  ██║  ██║██║   ██║██╔══╝  ██╔══██╗
   ███████╗███████╗██████╔╝╚██████╔╝███████╗██║  ██║
   ╚══════╝╚══════╝╚═════╝  ╚═════╝ ╚══════╝╚═╝  ╚═╝
`
	sb.WriteString(titleStyle.Render(logo))
	sb.WriteString("\n")
	sb.WriteString(MutedValue.Render("                    B R I D G E"))
	sb.WriteString("\n\n\n")
	sb.WriteString(greenStyle.Render(fmt.Sprintf("                  Initializing%s", dots)))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("            Press any key to skip, or wait..."))
	sb.WriteString("\n")

	return sb.String()
}

// renderStartupScreen renders the loading/startup screen.
func (m Model) renderStartupScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).MarginBottom(1)
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))

	var sb strings.Builder
	sb.WriteString("\n\n")
	sb.WriteString(titleStyle.Render("  ⛓ Ledger Bridge"))
	sb.WriteString("\n\n")
	sb.WriteString(headerStyle.Render("  Starting up..."))
	sb.WriteString("\n\n")

	for _, name := range stepOrder {
		step, ok := m.startupSteps[name]
		if !ok {
			continue
		}

		var icon, statusText string
		var style lipgloss.Style

		switch step.Status {
		case "connected", "done":
			icon, statusText, style = "✓", "Ready", StatusConnected
		case "connecting":
			spinners := []string{"◐", "◓", "◑", "◒"}
			idx := int(time.Since(m.startupTime).Milliseconds()/200) % len(spinners)
			icon, statusText, style = spinners[idx], "Connecting...", StatusConnecting
		case "failed":
			icon, statusText, style = "✗", "Failed", StatusDisconnected
		default:
			icon, statusText, style = "○", "Pending", MutedValue
		}

		sb.WriteString(fmt.Sprintf("  %s %s %s\n",
			style.Render(icon),
			MutedValue.Render(step.Name),
			style.Render(statusText),
		))
	}

	sb.WriteString("\n")
	elapsed := time.Since(m.startupTime).Round(time.Second)
	sb.WriteString(MutedValue.Render(fmt.Sprintf("  Elapsed: %s", elapsed)))
	sb.WriteString("\n")

	return sb.String()
}

func (m Model) renderStatusBar() string {
	var parts []string

	if m.status.Connected() {
		parts = append(parts, StatusConnected.Render("● ledger"))
	} else {
		parts = append(parts, StatusDisconnected.Render("○ ledger (disconnected)"))
	}

	parts = append(parts, fmt.Sprintf("Transfers: %d", m.transfers.Len()))

	if !m.lastUpdate.IsZero() {
		ago := time.Since(m.lastUpdate).Round(time.Second)
		indicator := ""
		if ago < 2*time.Second {
			indicator = "▪"
		}
		parts = append(parts, MutedValue.Render(fmt.Sprintf("Updated: %s ago %s", ago, indicator)))
	}

	return strings.Join(parts, "  │  ")
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// OnStartModules is called when the welcome screen completes and modules should start.
// This is set by main.go to signal when to begin loading modules.
var OnStartModules func()

// Send sends a message to the running program.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
	if _, ok := msg.(StartModulesMsg); ok && OnStartModules != nil {
		OnStartModules()
	}
}
