package app

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/ledger-bridge/business/ledger/domain"
	"github.com/fd1az/ledger-bridge/internal/apperror"
	"github.com/fd1az/ledger-bridge/internal/cache"
	"github.com/fd1az/ledger-bridge/internal/logger"
)

const meterName = "github.com/fd1az/ledger-bridge/business/ledger/app"

// ManagerConfig tunes the connection manager.
type ManagerConfig struct {
	NetworkIDTTL time.Duration
}

// ConnectionManager owns the active node and the connection state. It is the
// only writer of ConnectionState.
//
// Concurrent SetProvider calls are not queued: the call that started last
// owns the slot, and a dial that completes after a newer call started is
// closed and reported as superseded.
type ConnectionManager struct {
	dial       Dialer
	log        logger.LoggerInterface
	networkIDs *cache.Cache[uint64, *big.Int]
	networkTTL time.Duration

	mu         sync.RWMutex
	state      domain.ConnectionState
	endpoint   domain.Endpoint
	node       Node
	generation uint64
	accounts   []common.Address
	lastCheck  time.Time

	stateGauge metric.Int64Gauge
	swaps      metric.Int64Counter
}

// NewConnectionManager creates a manager in the disconnected state.
func NewConnectionManager(dial Dialer, cfg ManagerConfig, log logger.LoggerInterface) *ConnectionManager {
	meter := otel.Meter(meterName)
	gauge, _ := meter.Int64Gauge("ledger_connection_state",
		metric.WithDescription("Ledger connection state (0=disconnected, 1=connecting, 2=connected)"))
	swaps, _ := meter.Int64Counter("ledger_provider_swaps_total",
		metric.WithDescription("SetProvider calls"))

	return &ConnectionManager{
		dial:       dial,
		log:        log,
		networkIDs: cache.New[uint64, *big.Int](cfg.NetworkIDTTL),
		networkTTL: cfg.NetworkIDTTL,
		state:      domain.StateDisconnected,
		stateGauge: gauge,
		swaps:      swaps,
	}
}

// SetProvider replaces the active transport. Non-streaming endpoints leave
// the manager provider-less (degraded mode) and return NO_PROVIDER. Success
// is reported only after a live check.
func (m *ConnectionManager) SetProvider(ctx context.Context, raw string) error {
	ep := domain.ParseEndpoint(raw)
	m.swaps.Add(ctx, 1)

	m.mu.Lock()
	m.generation++
	gen := m.generation
	old := m.node
	m.node = nil
	m.endpoint = ep
	m.accounts = nil
	if ep.Streaming {
		m.setStateLocked(ctx, domain.StateConnecting)
	} else {
		m.setStateLocked(ctx, domain.StateDisconnected)
	}
	m.mu.Unlock()

	if old != nil {
		old.Close()
	}

	if !ep.Streaming {
		m.log.Warn(ctx, "endpoint is not streaming-capable, running without provider",
			"endpoint", ep.Redacted())
		return apperror.New(apperror.CodeNoProvider,
			apperror.WithContextf("endpoint %q is not a ws:// or wss:// url", ep.Redacted()))
	}

	node, err := m.dial(ctx, ep.URL)
	if err != nil {
		m.finishFailed(ctx, gen)
		return apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContextf("dial %s", ep.Redacted()))
	}

	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		node.Close()
		return apperror.New(apperror.CodeInvalidState,
			apperror.WithContextf("provider %s superseded by a newer SetProvider call", ep.Redacted()))
	}
	m.node = node
	m.mu.Unlock()

	listening, err := m.checkListening(ctx, gen, node)
	if err != nil {
		return apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContextf("net_listening on %s", ep.Redacted()))
	}
	if !listening {
		return apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithContextf("node at %s is not listening", ep.Redacted()))
	}

	m.log.Info(ctx, "ledger provider connected", "endpoint", ep.Redacted(), "generation", gen)
	m.RefreshAccounts(ctx)
	return nil
}

func (m *ConnectionManager) finishFailed(ctx context.Context, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation == gen {
		m.setStateLocked(ctx, domain.StateDisconnected)
	}
}

// checkListening runs net_listening and records the outcome if gen is still current.
func (m *ConnectionManager) checkListening(ctx context.Context, gen uint64, node Node) (bool, error) {
	listening, err := node.Listening(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation == gen {
		m.lastCheck = time.Now()
		if err == nil && listening {
			m.setStateLocked(ctx, domain.StateConnected)
		} else {
			m.setStateLocked(ctx, domain.StateDisconnected)
		}
	}
	return listening, err
}

// IsConnected actively checks the node. A node that answers "not listening"
// yields (false, nil); a transport failure yields (false, err).
func (m *ConnectionManager) IsConnected(ctx context.Context) (bool, error) {
	m.mu.RLock()
	node, gen, ep := m.node, m.generation, m.endpoint
	m.mu.RUnlock()

	if node == nil {
		return false, m.noProvider(ep)
	}

	listening, err := m.checkListening(ctx, gen, node)
	if err != nil {
		return false, apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContextf("net_listening on %s", ep.Redacted()))
	}
	return listening, nil
}

// RequireConnected checks the node and converts "not listening" into a
// connectivity error.
func (m *ConnectionManager) RequireConnected(ctx context.Context) (Session, error) {
	s, err := m.Session()
	if err != nil {
		return Session{}, err
	}
	ok, err := m.IsConnected(ctx)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithContextf("node at %s is not listening", s.Endpoint.Redacted()))
	}
	return s, nil
}

// RefreshAccounts reloads the node's exposed accounts. It fails open: errors
// and empty answers are logged and the previous list is kept.
func (m *ConnectionManager) RefreshAccounts(ctx context.Context) {
	m.mu.RLock()
	node, gen := m.node, m.generation
	m.mu.RUnlock()

	if node == nil {
		m.log.Debug(ctx, "refresh accounts skipped, no provider")
		return
	}

	accounts, err := node.Accounts(ctx)
	if err != nil {
		m.log.Warn(ctx, "refresh accounts failed", "error", err)
		return
	}
	if len(accounts) == 0 {
		m.log.Warn(ctx, "provider exposes no accounts")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		return
	}
	m.accounts = append([]common.Address(nil), accounts...)
	m.log.Debug(ctx, "accounts refreshed", "count", len(accounts), "first", accounts[0].Hex())
}

// Accounts returns a copy of the last known provider accounts.
func (m *ConnectionManager) Accounts() []common.Address {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]common.Address(nil), m.accounts...)
}

// Session returns the current node with its generation.
func (m *ConnectionManager) Session() (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.node == nil {
		return Session{}, m.noProvider(m.endpoint)
	}
	return Session{Node: m.node, Endpoint: m.endpoint, Generation: m.generation}, nil
}

// Generation returns the current provider generation.
func (m *ConnectionManager) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}

// State returns the last recorded connection state.
func (m *ConnectionManager) State() domain.ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Endpoint returns the active endpoint descriptor.
func (m *ConnectionManager) Endpoint() domain.Endpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.endpoint
}

// Status returns a snapshot for monitors and health checks.
func (m *ConnectionManager) Status() domain.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return domain.Status{
		State:      m.state,
		Endpoint:   m.endpoint.Redacted(),
		Generation: m.generation,
		Accounts:   len(m.accounts),
		LastCheck:  m.lastCheck,
	}
}

// BlockNumber returns the node's current block height.
func (m *ConnectionManager) BlockNumber(ctx context.Context) (uint64, error) {
	s, err := m.Session()
	if err != nil {
		return 0, err
	}
	return s.Node.BlockNumber(ctx)
}

// NetworkID returns the node's network id, cached per provider generation.
func (m *ConnectionManager) NetworkID(ctx context.Context) (*big.Int, error) {
	s, err := m.Session()
	if err != nil {
		return nil, err
	}
	if id, ok := m.networkIDs.Get(ctx, s.Generation); ok {
		return new(big.Int).Set(id), nil
	}

	id, err := s.Node.NetworkID(ctx)
	if err != nil {
		return nil, err
	}
	m.networkIDs.Set(ctx, s.Generation, id, m.networkTTL)
	return new(big.Int).Set(id), nil
}

// PersonalSign signs msg with the node's first exposed account.
func (m *ConnectionManager) PersonalSign(ctx context.Context, msg []byte) ([]byte, common.Address, error) {
	s, err := m.Session()
	if err != nil {
		return nil, common.Address{}, err
	}

	accounts := m.Accounts()
	if len(accounts) == 0 {
		m.RefreshAccounts(ctx)
		accounts = m.Accounts()
	}
	if len(accounts) == 0 {
		return nil, common.Address{}, apperror.New(apperror.CodeNoSigningAccount,
			apperror.WithContextf("provider %s exposes no accounts", s.Endpoint.Redacted()))
	}

	sig, err := s.Node.PersonalSign(ctx, msg, accounts[0])
	if err != nil {
		return nil, accounts[0], err
	}
	return sig, accounts[0], nil
}

// Close releases the active node and leaves the manager disconnected.
func (m *ConnectionManager) Close() {
	m.mu.Lock()
	node := m.node
	m.node = nil
	m.generation++
	m.setStateLocked(context.Background(), domain.StateDisconnected)
	m.mu.Unlock()

	if node != nil {
		node.Close()
	}
	m.networkIDs.Purge()
}

func (m *ConnectionManager) noProvider(ep domain.Endpoint) error {
	if ep.URL == "" {
		return apperror.New(apperror.CodeNoProvider, apperror.WithContext("no endpoint configured"))
	}
	if !ep.Streaming {
		return apperror.New(apperror.CodeNoProvider,
			apperror.WithContextf("endpoint %q is not streaming-capable", ep.Redacted()))
	}
	return apperror.New(apperror.CodeEthereumConnectionFailed,
		apperror.WithContextf("no live node for %s", ep.Redacted()))
}

func (m *ConnectionManager) setStateLocked(ctx context.Context, s domain.ConnectionState) {
	m.state = s
	m.stateGauge.Record(ctx, s.Gauge())
}
