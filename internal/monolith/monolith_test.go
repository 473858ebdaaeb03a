package monolith

import (
	"context"
	"errors"
	"testing"

	"github.com/fd1az/ledger-bridge/internal/config"
	"github.com/fd1az/ledger-bridge/internal/di"
)

type mockLogger struct{}

func (mockLogger) Debug(context.Context, string, ...any)       {}
func (mockLogger) Info(context.Context, string, ...any)        {}
func (mockLogger) Warn(context.Context, string, ...any)        {}
func (mockLogger) Error(context.Context, string, ...any)       {}
func (mockLogger) Debugc(context.Context, int, string, ...any) {}
func (mockLogger) Infoc(context.Context, int, string, ...any)  {}
func (mockLogger) Warnc(context.Context, int, string, ...any)  {}
func (mockLogger) Errorc(context.Context, int, string, ...any) {}

type recordingModule struct {
	name  string
	order *[]string
	err   error
}

func (m recordingModule) RegisterServices(c di.Container) error {
	c.Register(m.name, m.name)
	return nil
}

func (m recordingModule) Startup(_ context.Context, mono Monolith) error {
	*m.order = append(*m.order, m.name)
	mono.OnClose(func() { *m.order = append(*m.order, "close:"+m.name) })
	return m.err
}

func TestMonolith_Lifecycle(t *testing.T) {
	var order []string
	a := New(config.Default(), mockLogger{}, map[string]any{"extra": 7})

	mods := []Module{
		recordingModule{name: "ledger", order: &order},
		recordingModule{name: "token", order: &order},
	}
	if err := a.RegisterModules(mods...); err != nil {
		t.Fatal(err)
	}
	if err := a.StartModules(context.Background(), mods...); err != nil {
		t.Fatal(err)
	}

	if a.Services().Get("extra") != 7 || !a.Services().Has("token") {
		t.Fatal("services not registered")
	}
	if a.Services().Get("config").(*config.Config) != a.Config() {
		t.Fatal("config not registered")
	}

	a.Close()
	a.Close()

	want := []string{"ledger", "token", "close:token", "close:ledger"}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestMonolith_StartupErrorStops(t *testing.T) {
	var order []string
	a := New(config.Default(), mockLogger{}, nil)
	boom := errors.New("boom")

	err := a.StartModules(context.Background(),
		recordingModule{name: "a", order: &order, err: boom},
		recordingModule{name: "b", order: &order},
	)
	if !errors.Is(err, boom) || len(order) != 1 {
		t.Fatalf("err = %v, order = %v", err, order)
	}
}
