package metrics

import (
	"strings"

	"github.com/fd1az/ledger-bridge/internal/config"
)

type Provider string

const (
	PrometheusProvider Provider = "prometheus"
	OtelCollector      Provider = "customOtelCollector"
)

type Config struct {
	ServiceName string
	Provider    []ProviderCfg
}

type ProviderCfg struct {
	Provider Provider
	Endpoint string
	Headers  map[string]string
	Insecure bool
}

type OptionFn func(config Config) Config

func WithProviderConfig(provider ProviderCfg) OptionFn {
	return func(config Config) Config {
		config.Provider = append(config.Provider, provider)

		return config
	}
}

func WithServiceName(serviceName string) OptionFn {
	return func(config Config) Config {
		config.ServiceName = serviceName

		return config
	}
}

// FromTelemetry derives metric options from the telemetry config: the
// Prometheus reader whenever a port is set, the OTLP collector when
// tracing ships over grpc.
func FromTelemetry(cfg config.TelemetryConfig) []OptionFn {
	opts := []OptionFn{WithServiceName(cfg.ServiceName)}

	if cfg.PrometheusPort > 0 {
		opts = append(opts, WithProviderConfig(ProviderCfg{Provider: PrometheusProvider}))
	}

	if cfg.Enabled && cfg.Exporter == "otlp" && cfg.OTLPEndpoint != "" {
		opts = append(opts, WithProviderConfig(ProviderCfg{
			Provider: OtelCollector,
			Endpoint: cfg.OTLPEndpoint,
			Headers:  headers(cfg.OTLPHeaders),
			Insecure: strings.HasPrefix(cfg.OTLPEndpoint, "http://"),
		}))
	}

	return opts
}

func headers(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		if k, v, ok := strings.Cut(strings.TrimSpace(pair), "="); ok && k != "" {
			out[k] = v
		}
	}
	return out
}
