// Package domain contains the core domain types for the ledger connection context.
package domain

import (
	"net/url"
	"strings"
	"time"
)

// ConnectionState represents the state of the ledger node connection.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
)

// Gauge returns the numeric value exported to the connection state gauge.
func (s ConnectionState) Gauge() int64 {
	switch s {
	case StateConnecting:
		return 1
	case StateConnected:
		return 2
	default:
		return 0
	}
}

// Endpoint describes a node endpoint as given by the caller.
type Endpoint struct {
	URL       string
	Streaming bool // ws:// or wss://, the only transports that carry subscriptions
}

// ParseEndpoint classifies a raw endpoint string. Any value is accepted;
// non-streaming values simply yield Streaming == false.
func ParseEndpoint(raw string) Endpoint {
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)
	return Endpoint{
		URL:       raw,
		Streaming: strings.HasPrefix(lower, "ws://") || strings.HasPrefix(lower, "wss://"),
	}
}

// Redacted returns scheme and host only. Hosted node URLs often carry API
// keys in the path or userinfo.
func (e Endpoint) Redacted() string {
	if e.URL == "" {
		return ""
	}
	u, err := url.Parse(e.URL)
	if err != nil || u.Host == "" {
		return "<invalid endpoint>"
	}
	return u.Scheme + "://" + u.Host
}

// Status is a point-in-time view of the connection for monitors.
type Status struct {
	State      ConnectionState
	Endpoint   string // redacted
	Generation uint64
	Accounts   int
	LastCheck  time.Time
}
