package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"arbiflow/internal/application/ports"
	"arbiflow/internal/domain/models"
)

// minimum delay between connect attempts when a venue keeps refusing us
const reconnectDelay = 5 * time.Second

// connectorState tracks one registered connector and its ingestion counters
type connectorState struct {
	conn ports.ExchangeConnector

	// polls skipped because the rate budget was exhausted
	deferred atomic.Int64
}

// ConnectorStatus is a point-in-time view of one connector for reporting
type ConnectorStatus struct {
	Exchange           string  `json:"exchange"`
	Connected          bool    `json:"connected"`
	RateLimitRemaining int     `json:"rate_limit_remaining"`
	LatencyMs          float64 `json:"latency_ms"`
	DeferredPolls      int64   `json:"deferred_polls"`
}

// Manager owns a set of exchange connectors and drives their ingestion.
// Start spawns one goroutine per connector; each cycle polls the connector's
// subscribed symbols, replaces cache entries and fans copies out to the
// registered callbacks. Stop cancels all loops and blocks until they join,
// so shutdown is bounded by one poll interval plus any in-flight request.
type Manager struct {
	logger       *slog.Logger
	cache        *Cache
	pollInterval time.Duration

	mu         sync.Mutex
	connectors map[string]*connectorState
	cancel     context.CancelFunc
	running    bool
	wg         sync.WaitGroup

	cbMu    sync.RWMutex
	onTick  []ports.TickerCallback
	onOrder []ports.OrderCallback
	onError []ports.ErrorCallback
}

// NewManager creates a manager writing into the given cache
func NewManager(cache *Cache, pollInterval time.Duration, logger *slog.Logger) *Manager {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Manager{
		logger:       logger,
		cache:        cache,
		pollInterval: pollInterval,
		connectors:   make(map[string]*connectorState),
	}
}

// Register adds a connector to the manager. The manager owns the connector's
// lifecycle from this point; registering while running is rejected.
func (m *Manager) Register(conn ports.ExchangeConnector) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("cannot register %s while the manager is running", conn.Name())
	}
	if _, exists := m.connectors[conn.Name()]; exists {
		return fmt.Errorf("connector %s already registered", conn.Name())
	}

	// Route connector-pushed updates (streaming fast path, order events)
	// through the same cache and fan-out as polled data.
	conn.OnTickerUpdate(func(tick models.TickSnapshot) {
		m.cache.SetTick(tick)
		m.emitTick(tick)
	})
	conn.OnOrderUpdate(m.emitOrder)
	conn.OnError(m.emitError)

	m.connectors[conn.Name()] = &connectorState{conn: conn}
	return nil
}

// Connector returns a registered connector by exchange name
func (m *Manager) Connector(exchange string) (ports.ExchangeConnector, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.connectors[exchange]
	if !ok {
		return nil, false
	}
	return state.conn, true
}

// Cache returns the cache the manager writes into
func (m *Manager) Cache() *Cache {
	return m.cache
}

// OnTickerUpdate registers a subscriber for tick snapshots. Subscribers run
// on the ingestion goroutines and must hand off any blocking work.
func (m *Manager) OnTickerUpdate(cb ports.TickerCallback) {
	m.cbMu.Lock()
	m.onTick = append(m.onTick, cb)
	m.cbMu.Unlock()
}

// OnOrderUpdate registers a subscriber for order state transitions
func (m *Manager) OnOrderUpdate(cb ports.OrderCallback) {
	m.cbMu.Lock()
	m.onOrder = append(m.onOrder, cb)
	m.cbMu.Unlock()
}

// OnError registers a subscriber for recoverable ingestion failures
func (m *Manager) OnError(cb ports.ErrorCallback) {
	m.cbMu.Lock()
	m.onError = append(m.onError, cb)
	m.cbMu.Unlock()
}

// Start begins ingestion for every registered connector. Calling Start on a
// running manager is a no-op.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	for _, state := range m.connectors {
		m.wg.Add(1)
		go m.ingest(runCtx, state)
	}

	m.logger.Info("Market data manager started", "connectors", len(m.connectors), "poll_interval", m.pollInterval)
	return nil
}

// Stop signals every ingestion loop and blocks until all of them have
// joined, then disconnects the connectors. Start may be called again
// afterwards and produces an identical running state.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.cancel()
	m.mu.Unlock()

	m.wg.Wait()

	// running stays true until the loops have joined, so a Start racing
	// this Stop is a no-op instead of adding loops the cancel missed.
	m.mu.Lock()
	m.running = false
	for _, state := range m.connectors {
		if err := state.conn.Disconnect(); err != nil {
			m.logger.Warn("Disconnect failed", "exchange", state.conn.Name(), "error", err)
		}
	}
	m.mu.Unlock()

	m.logger.Info("Market data manager stopped")
}

// Status returns a snapshot of every connector's ingestion state
func (m *Manager) Status() []ConnectorStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ConnectorStatus, 0, len(m.connectors))
	for _, state := range m.connectors {
		out = append(out, ConnectorStatus{
			Exchange:           state.conn.Name(),
			Connected:          state.conn.IsConnected(),
			RateLimitRemaining: state.conn.RateLimitRemaining(),
			LatencyMs:          state.conn.LatencyMs(),
			DeferredPolls:      state.deferred.Load(),
		})
	}
	return out
}

// ingest is the per-connector ingestion loop
func (m *Manager) ingest(ctx context.Context, state *connectorState) {
	defer m.wg.Done()

	name := state.conn.Name()
	m.logger.Debug("Ingestion loop started", "exchange", name)
	defer m.logger.Debug("Ingestion loop stopped", "exchange", name)

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !state.conn.IsConnected() {
				if err := state.conn.Connect(ctx); err != nil {
					m.emitError(name, fmt.Sprintf("connect failed: %v", err))
					// Never busy-loop against a dead venue.
					select {
					case <-ctx.Done():
						return
					case <-time.After(reconnectDelay):
					}
					continue
				}
			}
			m.pollOnce(ctx, state)
		}
	}
}

// pollOnce performs one ingestion cycle over the connector's poll set
func (m *Manager) pollOnce(ctx context.Context, state *connectorState) {
	for _, symbol := range state.conn.Subscriptions() {
		if ctx.Err() != nil {
			return
		}

		if state.conn.RateLimitRemaining() == 0 {
			// Budget exhausted: defer the rest of this cycle, don't block.
			state.deferred.Add(1)
			m.logger.Debug("Poll deferred, rate budget exhausted", "exchange", state.conn.Name())
			return
		}

		tick, err := state.conn.FetchTick(ctx, symbol)
		if err != nil {
			m.emitError(state.conn.Name()+":"+symbol, err.Error())
			continue
		}

		m.cache.SetTick(tick)

		// Book depth arrives connector-locally (streamed or synthesized);
		// mirror it here so cache readers see it next to the tick.
		if book, ok := state.conn.LatestBook(symbol); ok {
			m.cache.SetBook(book)
		}

		m.emitTick(tick)
	}
}

func (m *Manager) emitTick(tick models.TickSnapshot) {
	m.cbMu.RLock()
	subs := m.onTick
	m.cbMu.RUnlock()

	for _, cb := range subs {
		cb(tick)
	}
}

func (m *Manager) emitOrder(order models.OrderRecord) {
	m.cbMu.RLock()
	subs := m.onOrder
	m.cbMu.RUnlock()

	for _, cb := range subs {
		cb(order)
	}
}

func (m *Manager) emitError(scope, message string) {
	m.logger.Warn("Ingestion error", "scope", scope, "message", message)

	m.cbMu.RLock()
	subs := m.onError
	m.cbMu.RUnlock()

	for _, cb := range subs {
		cb(scope, message)
	}
}
