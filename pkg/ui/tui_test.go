package ui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	ledgerdomain "github.com/fd1az/ledger-bridge/business/ledger/domain"
	tokendomain "github.com/fd1az/ledger-bridge/business/token/domain"
)

func update(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestModel_StartupToDashboard(t *testing.T) {
	m := update(t, New(),
		tea.WindowSizeMsg{Width: 200, Height: 50},
		tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")},
	)
	if m.Phase() != PhaseStartup {
		t.Fatalf("phase = %s", m.Phase())
	}

	m = update(t, m, ConnectionMsg{Status: ledgerdomain.Status{State: ledgerdomain.StateConnected, Endpoint: "ws://node"}})
	if m.Phase() != PhaseStartup {
		t.Fatal("dashboard shown before the token step finished")
	}

	m = update(t, m, BindingMsg{Binding: tokendomain.Binding{
		Address:  common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"),
		Symbol:   "DAI",
		Decimals: 18,
	}})
	if m.Phase() != PhaseDashboard {
		t.Fatalf("phase = %s", m.Phase())
	}

	view := m.View()
	for _, want := range []string{"connected", "DAI", "ws://node"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModel_TransferFeed(t *testing.T) {
	m := New().WithLargeTransfer(decimal.NewFromInt(1000))
	m = update(t, m,
		tea.WindowSizeMsg{Width: 200, Height: 50},
		tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")},
		StartupMsg{Step: "config", Status: "done"},
		StartupMsg{Step: "ledger", Status: "failed"},
		StartupMsg{Step: "token", Status: "failed"},
	)

	ev := tokendomain.TransferEvent{
		BlockHeight: 42,
		From:        common.HexToAddress("0x1111111111111111111111111111111111111111"),
		To:          common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Amount:      decimal.RequireFromString("12.5"),
		Symbol:      "DAI",
	}
	m = update(t, m, TransferMsg{Event: ev})
	if m.transfers.Len() != 1 {
		t.Fatalf("rows = %d", m.transfers.Len())
	}
	if !strings.Contains(m.View(), "12.5 DAI") {
		t.Error("transfer missing from view")
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")}, TransferMsg{Event: ev})
	if m.transfers.Len() != 1 {
		t.Error("paused feed should not list new transfers")
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	if m.transfers.Len() != 0 {
		t.Error("clear did not empty the feed")
	}
}

func TestModel_ErrorsKeepLastThree(t *testing.T) {
	m := New()
	for i := 0; i < 5; i++ {
		m = update(t, m, ErrorMsg{Error: errors.New("boom")})
	}
	if len(m.errors) != 3 {
		t.Fatalf("errors = %d", len(m.errors))
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")}, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("e")})
	if len(m.errors) != 0 {
		t.Errorf("errors after clear = %d", len(m.errors))
	}
}

func TestModel_Quit(t *testing.T) {
	next, cmd := New().Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil || !next.(Model).quitting {
		t.Fatal("ctrl+c should quit")
	}
}
