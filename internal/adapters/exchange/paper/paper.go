package paper

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"arbiflow/internal/application/ports"
	"arbiflow/internal/domain/models"
	"arbiflow/internal/ratelimit"
)

// Config holds the simulated venue parameters
type Config struct {
	// BasePrices seeds the random walk per symbol
	BasePrices map[string]float64

	// SpreadBps is the synthetic bid/ask spread in basis points
	SpreadBps float64

	// FeeRate is the taker commission charged in the quote asset
	FeeRate float64

	// InitialBalances funds the simulated account
	InitialBalances map[string]float64

	// Advisory request budget
	RateLimit       int
	RateLimitWindow time.Duration
}

// Connector is a complete in-memory implementation of the exchange contract.
// Ticks follow a random walk around per-symbol base prices; limit orders rest
// until the walk crosses their price, market orders fill against the current
// top of book. It backs tests and paper trading.
type Connector struct {
	name    string
	cfg     Config
	logger  *slog.Logger
	limiter *ratelimit.Limiter

	mu        sync.Mutex
	connected bool
	rng       *rand.Rand
	subs      map[string]struct{}
	bookSubs  map[string]int
	tradeSubs map[string]struct{}
	prices    map[string]float64
	ticks     map[string]models.TickSnapshot
	books     map[string]models.OrderBookSnapshot
	orders    map[string]models.OrderRecord
	balances  map[string]models.Balance
	latencyMs float64

	cbMu    sync.RWMutex
	onTick  ports.TickerCallback
	onOrder ports.OrderCallback
	onError ports.ErrorCallback
}

// New creates a paper trading connector
func New(name string, cfg Config, logger *slog.Logger) *Connector {
	if cfg.SpreadBps <= 0 {
		cfg.SpreadBps = 5
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 600
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}

	prices := make(map[string]float64, len(cfg.BasePrices))
	for symbol, price := range cfg.BasePrices {
		prices[symbol] = price
	}

	balances := make(map[string]models.Balance, len(cfg.InitialBalances))
	for asset, amount := range cfg.InitialBalances {
		balances[asset] = models.NewBalance(asset, amount, 0)
	}

	return &Connector{
		name:      name,
		cfg:       cfg,
		logger:    logger,
		limiter:   ratelimit.New(cfg.RateLimit, cfg.RateLimitWindow),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		subs:      make(map[string]struct{}),
		bookSubs:  make(map[string]int),
		tradeSubs: make(map[string]struct{}),
		prices:    prices,
		ticks:     make(map[string]models.TickSnapshot),
		books:     make(map[string]models.OrderBookSnapshot),
		orders:    make(map[string]models.OrderRecord),
		balances:  balances,
	}
}

// Name returns the exchange identifier
func (c *Connector) Name() string {
	return c.name
}

// Connect marks the venue connected. Idempotent.
func (c *Connector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	return nil
}

// Disconnect marks the venue disconnected. Always succeeds.
func (c *Connector) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

// IsConnected returns connection status
func (c *Connector) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// SubscribeTickers adds symbols to the poll set
func (c *Connector) SubscribeTickers(symbols ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, symbol := range symbols {
		c.subs[symbol] = struct{}{}
		if _, ok := c.prices[symbol]; !ok {
			c.prices[symbol] = 100.0
		}
	}
	return nil
}

// SubscribeOrderBook registers book depth generation for a symbol
func (c *Connector) SubscribeOrderBook(symbol string, depth int) error {
	if depth < 1 {
		return fmt.Errorf("book depth must be at least 1, got %d", depth)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bookSubs[symbol] = depth
	return nil
}

// SubscribeTrades registers trade interest for a symbol
func (c *Connector) SubscribeTrades(symbol string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tradeSubs[symbol] = struct{}{}
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

// LatestTick returns the cached snapshot without touching the walk
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

// FetchTick advances the random walk one step and returns the new snapshot.
// Resting limit orders that the new prices cross are filled before returning.
func (c *Connector) FetchTick(ctx context.Context, symbol string) (models.TickSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.TickSnapshot{}, err
	}
	if !c.limiter.TryAcquire() {
		return models.TickSnapshot{}, fmt.Errorf("rate budget exhausted on %s", c.name)
	}

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return models.TickSnapshot{}, fmt.Errorf("%s not connected", c.name)
	}

	base, ok := c.prices[symbol]
	if !ok {
		c.mu.Unlock()
		return models.TickSnapshot{}, fmt.Errorf("unknown symbol %s", symbol)
	}

	// Random walk: ±0.2% per step.
	step := (c.rng.Float64() - 0.5) * 0.004
	last := base * (1 + step)
	c.prices[symbol] = last

	spread := last * c.cfg.SpreadBps / 10000
	now := time.Now()
	tick := models.TickSnapshot{
		Symbol:     symbol,
		Exchange:   c.name,
		Last:       last,
		Bid:        last - spread/2,
		Ask:        last + spread/2,
		BidQty:     1 + c.rng.Float64()*9,
		AskQty:     1 + c.rng.Float64()*9,
		Volume24h:  1000 + c.rng.Float64()*9000,
		High24h:    last * 1.02,
		Low24h:     last * 0.98,
		Change24h:  step * 100,
		EventTime:  now,
		ReceivedAt: now,
	}
	c.ticks[symbol] = tick

	if depth, ok := c.bookSubs[symbol]; ok {
		c.books[symbol] = c.synthesizeBook(tick, depth)
	}

	// A request to a local simulator still reports a latency sample so the
	// instrumentation surface behaves like the real thing.
	c.observeLatency(0.5 + c.rng.Float64()*2)

	fills := c.matchRestingOrders(symbol, tick, now)
	c.mu.Unlock()

	for _, order := range fills {
		c.emitOrder(order)
	}
	return tick, nil
}

// PlaceLimitOrder places a limit order against the simulated book
func (c *Connector) PlaceLimitOrder(ctx context.Context, symbol string, side models.OrderSide, qty, price float64) (string, error) {
	if qty <= 0 || price <= 0 {
		return "", c.rejection(symbol, fmt.Errorf("quantity and price must be positive"))
	}

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return "", c.rejection(symbol, fmt.Errorf("%s not connected", c.name))
	}

	now := time.Now()
	order := models.NewOrderRecord(newOrderID(), uuid.New().String(), symbol, c.name, side, models.TypeLimit, qty, price, now)

	if err := c.lockFunds(order); err != nil {
		c.mu.Unlock()
		return "", c.rejection(symbol, err)
	}
	c.orders[order.OrderID] = order

	// Fill immediately when the limit already crosses the market.
	var filled *models.OrderRecord
	if tick, ok := c.ticks[symbol]; ok && crosses(order, tick) {
		c.settleFill(&order, qty, now)
		c.orders[order.OrderID] = order
		filled = &order
	}
	c.mu.Unlock()

	c.emitOrder(c.orderByID(order.OrderID))
	if filled != nil {
		c.logger.Debug("Paper limit order filled on entry", "exchange", c.name, "order_id", order.OrderID)
	}
	return order.OrderID, nil
}

// PlaceMarketOrder fills immediately at the current top of book
func (c *Connector) PlaceMarketOrder(ctx context.Context, symbol string, side models.OrderSide, qty float64) (string, error) {
	if qty <= 0 {
		return "", c.rejection(symbol, fmt.Errorf("quantity must be positive"))
	}

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return "", c.rejection(symbol, fmt.Errorf("%s not connected", c.name))
	}

	tick, ok := c.ticks[symbol]
	if !ok {
		c.mu.Unlock()
		return "", c.rejection(symbol, fmt.Errorf("no market data for %s yet", symbol))
	}

	price := tick.Ask
	if side == models.SideSell {
		price = tick.Bid
	}

	now := time.Now()
	order := models.NewOrderRecord(newOrderID(), uuid.New().String(), symbol, c.name, side, models.TypeMarket, qty, price, now)

	if err := c.lockFunds(order); err != nil {
		c.mu.Unlock()
		return "", c.rejection(symbol, err)
	}
	c.settleFill(&order, qty, now)
	c.orders[order.OrderID] = order
	c.mu.Unlock()

	c.emitOrder(order)
	return order.OrderID, nil
}

// CancelOrder cancels an open order. Cancelling a terminal or unknown order
// is a no-op.
func (c *Connector) CancelOrder(ctx context.Context, symbol, orderID string) error {
	c.mu.Lock()
	order, ok := c.orders[orderID]
	if !ok || order.Status.IsTerminal() {
		c.mu.Unlock()
		return nil
	}

	c.releaseFunds(order)
	order.Cancel(time.Now())
	c.orders[orderID] = order
	c.mu.Unlock()

	c.emitOrder(order)
	return nil
}

// CancelAllOrders cancels every open order, optionally scoped to a symbol
func (c *Connector) CancelAllOrders(ctx context.Context, symbol string) error {
	c.mu.Lock()
	now := time.Now()
	var canceled []models.OrderRecord
	for id, order := range c.orders {
		if order.Status.IsTerminal() {
			continue
		}
		if symbol != "" && order.Symbol != symbol {
			continue
		}
		c.releaseFunds(order)
		order.Cancel(now)
		c.orders[id] = order
		canceled = append(canceled, order)
	}
	c.mu.Unlock()

	for _, order := range canceled {
		c.emitOrder(order)
	}
	return nil
}

// OpenOrders returns non-terminal orders, optionally scoped to a symbol
func (c *Connector) OpenOrders(ctx context.Context, symbol string) ([]models.OrderRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []models.OrderRecord
	for _, order := range c.orders {
		if order.Status.IsTerminal() {
			continue
		}
		if symbol != "" && order.Symbol != symbol {
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

// OrderStatus returns the last known state of an order
func (c *Connector) OrderStatus(ctx context.Context, symbol, orderID string) (models.OrderRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	order, ok := c.orders[orderID]
	if !ok {
		return models.OrderRecord{}, fmt.Errorf("unknown order %s on %s", orderID, c.name)
	}
	return order, nil
}

// AccountBalances returns all asset balances
func (c *Connector) AccountBalances(ctx context.Context) ([]models.Balance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.Balance, 0, len(c.balances))
	for _, balance := range c.balances {
		out = append(out, balance)
	}
	return out, nil
}

// AssetBalance returns the balance of one asset
func (c *Connector) AssetBalance(ctx context.Context, asset string) (models.Balance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if balance, ok := c.balances[asset]; ok {
		return balance, nil
	}
	return models.NewBalance(asset, 0, 0), nil
}

// AvailableBalance returns the free amount of one asset
func (c *Connector) AvailableBalance(ctx context.Context, asset string) (float64, error) {
	balance, err := c.AssetBalance(ctx, asset)
	if err != nil {
		return 0, err
	}
	return balance.Free, nil
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

// synthesizeBook builds depth levels around the tick. Caller holds mu.
func (c *Connector) synthesizeBook(tick models.TickSnapshot, depth int) models.OrderBookSnapshot {
	book := models.OrderBookSnapshot{
		Symbol:     tick.Symbol,
		Exchange:   c.name,
		Bids:       make([]models.BookLevel, 0, depth),
		Asks:       make([]models.BookLevel, 0, depth),
		EventTime:  tick.EventTime,
		ReceivedAt: tick.ReceivedAt,
	}

	tickSize := tick.Last / 10000
	for i := 0; i < depth; i++ {
		book.Bids = append(book.Bids, models.BookLevel{
			Price:    tick.Bid - float64(i)*tickSize,
			Quantity: tick.BidQty * (1 + float64(i)*0.5),
		})
		book.Asks = append(book.Asks, models.BookLevel{
			Price:    tick.Ask + float64(i)*tickSize,
			Quantity: tick.AskQty * (1 + float64(i)*0.5),
		})
	}
	return book
}

// matchRestingOrders fills limit orders the new tick crosses. Caller holds
// mu; the filled records are returned for callback dispatch outside the lock.
func (c *Connector) matchRestingOrders(symbol string, tick models.TickSnapshot, now time.Time) []models.OrderRecord {
	var fills []models.OrderRecord
	for id, order := range c.orders {
		if order.Symbol != symbol || order.Status.IsTerminal() || order.Type != models.TypeLimit {
			continue
		}
		if !crosses(order, tick) {
			continue
		}
		c.settleFill(&order, order.RemainingQty, now)
		c.orders[id] = order
		fills = append(fills, order)
	}
	return fills
}

// crosses reports whether the market reached the limit price
func crosses(order models.OrderRecord, tick models.TickSnapshot) bool {
	if order.Side == models.SideBuy {
		return tick.Ask <= order.Price
	}
	return tick.Bid >= order.Price
}

// lockFunds reserves the funds an order needs. Caller holds mu.
func (c *Connector) lockFunds(order models.OrderRecord) error {
	asset, amount := c.fundsFor(order)
	balance := c.balances[asset]
	if balance.Asset == "" {
		balance = models.NewBalance(asset, 0, 0)
	}
	if balance.Free < amount {
		return fmt.Errorf("insufficient %s balance: need %v, have %v", asset, amount, balance.Free)
	}
	c.balances[asset] = balance.Lock(amount)
	return nil
}

// releaseFunds returns the reserved funds of an open order. Caller holds mu.
func (c *Connector) releaseFunds(order models.OrderRecord) {
	asset, amount := c.fundsFor(order)
	remaining := amount * order.RemainingQty / order.Quantity
	c.balances[asset] = c.balances[asset].Release(remaining)
}

// settleFill executes qty against the order and moves the balances. Caller
// holds mu.
func (c *Connector) settleFill(order *models.OrderRecord, qty float64, now time.Time) {
	base, quote := splitSymbol(order.Symbol)
	notional := qty * order.Price
	commission := notional * c.cfg.FeeRate

	if order.Side == models.SideBuy {
		quoteBal := c.balances[quote]
		c.balances[quote] = models.NewBalance(quote, quoteBal.Free-commission, quoteBal.Locked-notional)
		baseBal := c.balances[base]
		c.balances[base] = models.NewBalance(base, baseBal.Free+qty, baseBal.Locked)
	} else {
		baseBal := c.balances[base]
		c.balances[base] = models.NewBalance(base, baseBal.Free, baseBal.Locked-qty)
		quoteBal := c.balances[quote]
		c.balances[quote] = models.NewBalance(quote, quoteBal.Free+notional-commission, quoteBal.Locked)
	}

	order.Commission += commission
	order.CommissionAsset = quote
	if err := order.ApplyFill(qty, now); err != nil {
		c.logger.Error("Paper fill accounting failed", "exchange", c.name, "order_id", order.OrderID, "error", err)
	}
}

// fundsFor returns the asset and amount an order reserves. Caller holds mu.
func (c *Connector) fundsFor(order models.OrderRecord) (string, float64) {
	base, quote := splitSymbol(order.Symbol)
	if order.Side == models.SideBuy {
		return quote, order.Quantity * order.Price
	}
	return base, order.Quantity
}

// rejection reports a failed order operation through the error callback and
// returns the error for the caller.
func (c *Connector) rejection(symbol string, err error) error {
	c.emitError(c.name+":"+symbol, err.Error())
	return err
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

// orderByID returns a copy of the order under the lock
func (c *Connector) orderByID(id string) models.OrderRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orders[id]
}

// newOrderID generates a venue order id
func newOrderID() string {
	return "P-" + uuid.New().String()[:8]
}

// splitSymbol separates a trading pair into base and quote assets
func splitSymbol(symbol string) (string, string) {
	for _, quote := range []string{"USDT", "USDC", "USD", "BTC", "ETH"} {
		if strings.HasSuffix(symbol, quote) && len(symbol) > len(quote) {
			return strings.TrimSuffix(symbol, quote), quote
		}
	}
	if len(symbol) > 3 {
		return symbol[:len(symbol)-3], symbol[len(symbol)-3:]
	}
	return symbol, ""
}
