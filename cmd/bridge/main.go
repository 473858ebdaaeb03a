// Package main is the entry point for the ledger bridge.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	tokendomain "github.com/fd1az/ledger-bridge/business/token/domain"
	"github.com/fd1az/ledger-bridge/internal/apm"
	"github.com/fd1az/ledger-bridge/internal/config"
	"github.com/fd1az/ledger-bridge/internal/health"
	"github.com/fd1az/ledger-bridge/internal/logger"
	"github.com/fd1az/ledger-bridge/internal/metrics"
	"github.com/fd1az/ledger-bridge/internal/wsconn"
	"github.com/fd1az/ledger-bridge/pkg/bridge"
	"github.com/fd1az/ledger-bridge/pkg/ui"
	"github.com/fd1az/ledger-bridge/pkg/ui/components"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

const (
	pollInterval    = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Run in CLI mode with logs (no TUI)")
	highlight := flag.String("highlight", "0", "Highlight transfers of at least this many tokens in the TUI")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ledger-bridge %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	large, err := decimal.NewFromString(*highlight)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid -highlight %q: %v\n", *highlight, err)
		os.Exit(2)
	}

	// TUI is the default, CLI is for debugging
	tuiMode := !*cliMode

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if !tuiMode {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		}
		cancel()
	}()

	if err := run(ctx, *configPath, tuiMode, large); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, tuiMode bool, large decimal.Decimal) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.App.TUIMode = tuiMode

	// In TUI mode logs would corrupt the screen
	out := io.Writer(os.Stderr)
	if tuiMode {
		out = io.Discard
	}
	log := logger.New(out, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, apm.TraceID)
	log.Info(ctx, "starting ledger bridge",
		"version", version,
		"environment", cfg.App.Environment,
	)

	traceProvider, err := apm.NewTraceProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := traceProvider.Stop(); err != nil {
			log.Warn(ctx, "trace provider shutdown failed", "error", err)
		}
	}()

	if cfg.Telemetry.Enabled {
		meterProvider, err := metrics.NewMetricProvider(ctx, metrics.FromTelemetry(cfg.Telemetry)...)
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
		defer shutdown(log, "meter provider", meterProvider.Shutdown)

		if cfg.Telemetry.PrometheusPort > 0 {
			metricsServer := metrics.NewServer(cfg.Telemetry.PrometheusPort, log)
			metricsServer.Start(ctx)
			defer shutdown(log, "metrics server", metricsServer.Stop)
		}
	}

	b, err := bridge.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create bridge: %w", err)
	}
	defer b.Close()

	if cfg.Health.Port > 0 {
		healthServer := health.NewServer(cfg.Health.Port, version, log)
		for name, check := range b.HealthChecks() {
			healthServer.RegisterCheck(name, check)
		}
		healthServer.Start(ctx)
		log.Info(ctx, "health server started", "port", cfg.Health.Port)
		defer shutdown(log, "health server", healthServer.Stop)
	}

	if cfg.Notify.Enabled {
		stop := serveNotifications(ctx, cfg.Notify, b, log)
		defer stop()
	}

	if tuiMode {
		return runTUI(ctx, b, large)
	}
	return runCLI(ctx, b, log)
}

func shutdown(log logger.LoggerInterface, name string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		log.Warn(ctx, "shutdown failed", "component", name, "error", err)
	}
}

// serveNotifications pushes every Transfer event to websocket clients.
func serveNotifications(ctx context.Context, cfg config.NotifyConfig, b *bridge.Bridge, log logger.LoggerInterface) func() {
	hubCfg := wsconn.DefaultConfig()
	hubCfg.QueueSize = cfg.ClientQueue
	hub := wsconn.NewHub(hubCfg, log)

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, hub)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           otelhttp.NewHandler(mux, "notify"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "notification server failed", "addr", srv.Addr, "error", err)
		}
	}()
	log.Info(ctx, "notification hub listening", "addr", cfg.ListenAddr, "path", cfg.Path)

	events, unsubscribe := b.SubscribeTransfers(0)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			if err := hub.Broadcast(ctx, ev); err != nil {
				log.Warn(ctx, "transfer broadcast failed", "error", err)
			}
		}
	}()

	return func() {
		unsubscribe()
		<-done
		hub.Close()
		shutdown(log, "notification server", srv.Shutdown)
	}
}

func runCLI(ctx context.Context, b *bridge.Bridge, log logger.LoggerInterface) error {
	if err := b.Ready(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	status := b.State()
	log.Info(ctx, "bridge ready",
		"state", status.State,
		"endpoint", status.Endpoint,
		"accounts", status.Accounts,
	)
	if binding, err := b.Binding(); err != nil {
		log.Warn(ctx, "no token contract bound", "error", err)
	} else {
		log.Info(ctx, "token contract bound",
			"contract", binding.Address.Hex(),
			"symbol", binding.Symbol,
			"decimals", binding.Decimals,
		)
	}

	events, unsubscribe := b.SubscribeTransfers(0)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			log.Info(ctx, "shutting down")
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			logTransfer(ctx, b, log, ev)
		}
	}
}

// logTransfer logs a Transfer with both parties' balances as of its block.
func logTransfer(ctx context.Context, b *bridge.Bridge, log logger.LoggerInterface, ev tokendomain.TransferEvent) {
	block := ev.BlockHeight
	args := []any{
		"block", block,
		"from", ev.From.Hex(),
		"to", ev.To.Hex(),
		"amount", ev.Amount.String(),
		"symbol", ev.Symbol,
		"tx", ev.TxHash.Hex(),
	}
	parties := []struct{ key, addr string }{
		{"from_balance", ev.From.Hex()},
		{"to_balance", ev.To.Hex()},
	}
	for _, party := range parties {
		balance, err := b.GetTokenBalance(ctx, party.addr, &block)
		if err != nil {
			log.Warn(ctx, "balance lookup failed", "address", party.addr, "block", block, "error", err)
			continue
		}
		args = append(args, party.key, balance.String())
	}
	log.Info(ctx, "transfer", args...)
}

func runTUI(ctx context.Context, b *bridge.Bridge, large decimal.Decimal) error {
	// Signalled once the welcome screen is done
	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	p := tea.NewProgram(ui.New().WithLargeTransfer(large), tea.WithAltScreen(), tea.WithContext(ctx))
	ui.Program = p

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-startSignal:
		case <-ctx.Done():
			return
		}
		feedTUI(ctx, b)
	}()

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// feedTUI reports startup progress, then streams transfers and polls
// status until ctx ends.
func feedTUI(ctx context.Context, b *bridge.Bridge) {
	ui.Send(ui.StartupMsg{Step: "config", Status: "done"})
	ui.Send(ui.StartupMsg{Step: "ledger", Status: "connecting"})

	if err := b.Ready(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			ui.Send(ui.ErrorMsg{Error: err})
		}
		ui.Send(ui.StartupMsg{Step: "ledger", Status: "failed"})
		ui.Send(ui.StartupMsg{Step: "token", Status: "failed"})
		return
	}

	if connected, _ := b.IsConnected(ctx); connected {
		ui.Send(ui.StartupMsg{Step: "ledger", Status: "connected"})
	} else {
		ui.Send(ui.StartupMsg{Step: "ledger", Status: "failed"})
	}
	if _, err := b.Binding(); err != nil {
		ui.Send(ui.ErrorMsg{Error: err})
		ui.Send(ui.StartupMsg{Step: "token", Status: "failed"})
	}

	events, unsubscribe := b.SubscribeTransfers(0)
	defer unsubscribe()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	poll(ctx, b)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			ui.Send(ui.TransferMsg{Event: ev})
		case <-ticker.C:
			poll(ctx, b)
		}
	}
}

func poll(ctx context.Context, b *bridge.Bridge) {
	ui.Send(ui.ConnectionMsg{Status: b.State()})

	binding, err := b.Binding()
	ui.Send(ui.BindingMsg{Binding: binding, Err: err})

	if height, err := b.GetBlockNumber(ctx); err == nil {
		ui.Send(ui.BlockMsg{Number: height})
	}

	stats, dropped := b.TransferStats()
	ui.Send(ui.StatsMsg{Stats: components.Stats{
		Transfers: stats.Published,
		Reorged:   stats.Reorged,
		Malformed: stats.Malformed,
		Dropped:   dropped,
	}})
}
