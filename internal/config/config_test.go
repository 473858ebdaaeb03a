package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
app:
  log_level: debug
ethereum:
  websocket_url: wss://node.example:8546
  call_timeout: 3s
token:
  contract_address: "0x6B175474E89094C44Da98b954EedeAC495271d0F"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BRIDGE_ETH_RPM", "120")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.App.LogLevel)
	}
	if cfg.Ethereum.WebSocketURL != "wss://node.example:8546" {
		t.Errorf("ws url = %q", cfg.Ethereum.WebSocketURL)
	}
	if cfg.Ethereum.CallTimeout != 3*time.Second {
		t.Errorf("call timeout = %s", cfg.Ethereum.CallTimeout)
	}
	if cfg.Ethereum.RequestsPerMinute != 120 {
		t.Errorf("rpm = %d", cfg.Ethereum.RequestsPerMinute)
	}
	if cfg.Token.ListenerBuffer != 64 {
		t.Errorf("listener buffer default = %d", cfg.Token.ListenerBuffer)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{
			name:    "bad contract address",
			mutate:  func(c *Config) { c.Token.ContractAddress = "0x1234" },
			wantErr: true,
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.App.LogLevel = "trace" },
			wantErr: true,
		},
		{
			name:    "zero call timeout",
			mutate:  func(c *Config) { c.Ethereum.CallTimeout = 0 },
			wantErr: true,
		},
		{
			name: "telemetry without endpoint",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Exporter = "otlp"
			},
			wantErr: true,
		},
		{
			name: "console telemetry needs no endpoint",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Exporter = "console"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
