package gate

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"arbiflow/internal/application/ports"
	"arbiflow/internal/concurrency"
	"arbiflow/internal/domain/models"
	"arbiflow/internal/ratelimit"
)

const (
	tickersEndpoint       = "/v5/market/tickers"
	orderBookEndpoint     = "/v5/market/orderbook"
	placeOrderEndpoint    = "/v5/order/create"
	cancelOrderEndpoint   = "/v5/order/cancel"
	cancelAllEndpoint     = "/v5/order/cancel-all"
	orderRealtimeEndpoint = "/v5/order/realtime"
	walletBalanceEndpoint = "/v5/account/wallet-balance"

	spotCategory = "spot"
	recvWindow   = "5000"
)

// Config holds the connection parameters of a gate venue
type Config struct {
	APIKey         string
	APISecret      string
	RESTURL        string
	WSURL          string
	UseTestnet     bool
	TestnetRESTURL string
	TestnetWSURL   string

	RateLimit        int
	RateLimitWindow  time.Duration
	StreamBufferSize int
}

// Connector implements the exchange contract over a signed REST API with an
// optional websocket stream. Streamed frames go through a single-producer/
// single-consumer ring buffer: the socket reader never blocks on parsing, and
// a full buffer drops the frame rather than stalling the read loop.
type Connector struct {
	name       string
	cfg        Config
	logger     *slog.Logger
	limiter    *ratelimit.Limiter
	httpClient *http.Client
	restURL    string
	wsURL      string

	mu        sync.Mutex
	connected bool
	subs      map[string]struct{}
	bookSubs  map[string]int
	tradeSubs map[string]struct{}
	ticks     map[string]models.TickSnapshot
	books     map[string]models.OrderBookSnapshot
	latencyMs float64
	dropped   int64

	ring       *concurrency.RingBuffer[[]byte]
	frameReady chan struct{}
	wsConn     *websocket.Conn
	streamStop context.CancelFunc
	streamWG   sync.WaitGroup

	cbMu    sync.RWMutex
	onTick  ports.TickerCallback
	onOrder ports.OrderCallback
	onError ports.ErrorCallback
}

// New creates a gate connector. Construction fails outright when the stream
// buffer cannot be sized; everything else degrades at runtime.
func New(name string, cfg Config, logger *slog.Logger) (*Connector, error) {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 120
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}
	if cfg.StreamBufferSize <= 0 {
		cfg.StreamBufferSize = 4096
	}

	ring, err := concurrency.NewRingBuffer[[]byte](cfg.StreamBufferSize)
	if err != nil {
		return nil, fmt.Errorf("stream buffer: %w", err)
	}

	restURL := cfg.RESTURL
	wsURL := cfg.WSURL
	if cfg.UseTestnet {
		restURL = cfg.TestnetRESTURL
		wsURL = cfg.TestnetWSURL
	}

	return &Connector{
		name:    name,
		cfg:     cfg,
		logger:  logger,
		limiter: ratelimit.New(cfg.RateLimit, cfg.RateLimitWindow),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		restURL:    restURL,
		wsURL:      wsURL,
		subs:       make(map[string]struct{}),
		bookSubs:   make(map[string]int),
		tradeSubs:  make(map[string]struct{}),
		ticks:      make(map[string]models.TickSnapshot),
		books:      make(map[string]models.OrderBookSnapshot),
		ring:       ring,
		frameReady: make(chan struct{}, 1),
	}, nil
}

// Name returns the exchange identifier
func (c *Connector) Name() string {
	return c.name
}

// Connect establishes the REST session and, when a stream URL is configured,
// the websocket fast path. Idempotent.
func (c *Connector) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if c.wsURL != "" {
		if err := c.openStream(ctx); err != nil {
			return fmt.Errorf("websocket connect to %s: %w", c.name, err)
		}
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	c.logger.Info("Connected", "exchange", c.name, "stream", c.wsURL != "")
	return nil
}

// Disconnect tears the session down. Best-effort: always succeeds locally.
func (c *Connector) Disconnect() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.connected = false
	stop := c.streamStop
	conn := c.wsConn
	c.streamStop = nil
	c.wsConn = nil
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	if conn != nil {
		conn.Close()
	}
	c.streamWG.Wait()
	return nil
}

// IsConnected returns connection status
func (c *Connector) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// SubscribeTickers adds symbols to the poll set and, when streaming, to the
// websocket subscription.
func (c *Connector) SubscribeTickers(symbols ...string) error {
	c.mu.Lock()
	for _, symbol := range symbols {
		c.subs[symbol] = struct{}{}
	}
	conn := c.wsConn
	c.mu.Unlock()

	if conn != nil {
		args := make([]string, 0, len(symbols))
		for _, symbol := range symbols {
			args = append(args, "tickers."+symbol)
		}
		return c.sendSubscribe(conn, args)
	}
	return nil
}

// SubscribeOrderBook registers book depth interest for a symbol
func (c *Connector) SubscribeOrderBook(symbol string, depth int) error {
	if depth < 1 {
		return fmt.Errorf("book depth must be at least 1, got %d", depth)
	}
	c.mu.Lock()
	c.bookSubs[symbol] = depth
	conn := c.wsConn
	c.mu.Unlock()

	if conn != nil {
		return c.sendSubscribe(conn, []string{fmt.Sprintf("orderbook.%d.%s", depth, symbol)})
	}
	return nil
}

// SubscribeTrades registers trade stream interest for a symbol
func (c *Connector) SubscribeTrades(symbol string) error {
	c.mu.Lock()
	c.tradeSubs[symbol] = struct{}{}
	conn := c.wsConn
	c.mu.Unlock()

	if conn != nil {
		return c.sendSubscribe(conn, []string{"publicTrade." + symbol})
	}
	return nil
}

// Subscriptions returns the current ticker poll set
func (c *Connector) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.subs))
	for symbol := range c.subs {
		out = append(out, symbol)
	}
	return out
}

// LatestTick returns the cached snapshot without a network call
func (c *Connector) LatestTick(symbol string) models.TickSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks[symbol]
}

// LatestBook returns the cached book snapshot
func (c *Connector) LatestBook(symbol string) (models.OrderBookSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	book, ok := c.books[symbol]
	return book, ok
}

// RateLimitRemaining returns the advisory budget left in the current window
func (c *Connector) RateLimitRemaining() int {
	return c.limiter.Remaining()
}

// LatencyMs returns the smoothed request round-trip estimate
func (c *Connector) LatencyMs() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latencyMs
}

// OnTickerUpdate registers the ticker-update callback
func (c *Connector) OnTickerUpdate(cb ports.TickerCallback) {
	c.cbMu.Lock()
	c.onTick = cb
	c.cbMu.Unlock()
}

// OnOrderUpdate registers the order-update callback
func (c *Connector) OnOrderUpdate(cb ports.OrderCallback) {
	c.cbMu.Lock()
	c.onOrder = cb
	c.cbMu.Unlock()
}

// OnError registers the error callback
func (c *Connector) OnError(cb ports.ErrorCallback) {
	c.cbMu.Lock()
	c.onError = cb
	c.cbMu.Unlock()
}

func (c *Connector) emitTick(tick models.TickSnapshot) {
	c.cbMu.RLock()
	cb := c.onTick
	c.cbMu.RUnlock()
	if cb != nil {
		cb(tick)
	}
}

func (c *Connector) emitOrder(order models.OrderRecord) {
	c.cbMu.RLock()
	cb := c.onOrder
	c.cbMu.RUnlock()
	if cb != nil {
		cb(order)
	}
}

func (c *Connector) emitError(scope, message string) {
	c.cbMu.RLock()
	cb := c.onError
	c.cbMu.RUnlock()
	if cb != nil {
		cb(scope, message)
	}
}

// observeLatency folds a sample into the EWMA estimate. Caller holds mu.
func (c *Connector) observeLatency(sampleMs float64) {
	if c.latencyMs == 0 {
		c.latencyMs = sampleMs
		return
	}
	c.latencyMs = 0.8*c.latencyMs + 0.2*sampleMs
}

// sign produces the request signature: HMAC-SHA256 over
// timestamp + api key + recv window + payload.
func (c *Connector) sign(timestamp, payload string) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	mac.Write([]byte(timestamp + c.cfg.APIKey + recvWindow + payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// signedRequest issues an authenticated REST call and returns the body
func (c *Connector) signedRequest(ctx context.Context, method, endpoint, query string, body []byte) ([]byte, error) {
	url := c.restURL + endpoint
	payload := query
	if method == http.MethodGet {
		if query != "" {
			url += "?" + query
		}
	} else {
		payload = string(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.cfg.APIKey)
	req.Header.Set("X-API-TIMESTAMP", timestamp)
	req.Header.Set("X-API-RECV-WINDOW", recvWindow)
	req.Header.Set("X-API-SIGN", c.sign(timestamp, payload))

	return c.do(req)
}

// publicRequest issues an unauthenticated REST call and returns the body
func (c *Connector) publicRequest(ctx context.Context, endpoint, query string) ([]byte, error) {
	url := c.restURL + endpoint
	if query != "" {
		url += "?" + query
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Connector) do(req *http.Request) ([]byte, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	c.mu.Lock()
	c.observeLatency(float64(time.Since(start).Microseconds()) / 1000)
	c.mu.Unlock()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", req.URL.Path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned HTTP %d: %s", req.URL.Path, resp.StatusCode, truncate(body))
	}
	return body, nil
}

func truncate(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

// parseFloat tolerates the string-encoded numbers venue APIs use
func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func newClientOrderID() string {
	return uuid.New().String()
}
