package ports

import (
	"context"
	"errors"

	"arbiflow/internal/domain/models"
)

// ErrUnsupported is returned by connectors for capabilities the venue does
// not offer. Connectors must fail fast with it rather than returning silent
// defaults.
var ErrUnsupported = errors.New("operation not supported by this connector")

// TickerCallback receives a copy of every new tick snapshot.
// Callbacks run on the ingestion goroutine and must not block.
type TickerCallback func(tick models.TickSnapshot)

// OrderCallback receives a copy of every order state transition.
// Callbacks run on the ingestion goroutine and must not block.
type OrderCallback func(order models.OrderRecord)

// ErrorCallback receives recoverable failures with the endpoint or symbol
// they relate to. Callbacks run on the ingestion goroutine and must not block.
type ErrorCallback func(scope, message string)

// ExchangeConnector defines the capability surface of a single venue.
// One concrete implementation exists per exchange; there is no shared base
// state beyond this contract.
type ExchangeConnector interface {
	// Name returns the exchange identifier
	Name() string

	// Connect establishes the transport session. Idempotent: connecting
	// while already connected is a no-op.
	Connect(ctx context.Context) error

	// Disconnect tears down the session. Best-effort: always succeeds
	// locally even if the remote end is unreachable.
	Disconnect() error

	// IsConnected returns connection status without blocking
	IsConnected() bool

	// SubscribeTickers registers symbols in the poll set. Returns
	// immediately for polling-based connectors.
	SubscribeTickers(symbols ...string) error

	// SubscribeOrderBook registers interest in book depth for a symbol
	SubscribeOrderBook(symbol string, depth int) error

	// SubscribeTrades registers interest in the trade stream for a symbol
	SubscribeTrades(symbol string) error

	// Subscriptions returns the current ticker poll set
	Subscriptions() []string

	// LatestTick returns the most recent cached snapshot, or a zero
	// snapshot if none exists yet. Never blocks on the network.
	LatestTick(symbol string) models.TickSnapshot

	// LatestBook returns the most recent cached book depth, or false if
	// none exists yet. Never blocks on the network.
	LatestBook(symbol string) (models.OrderBookSnapshot, bool)

	// FetchTick performs one blocking market-data request for a symbol.
	// The ingestion loop drives this; other callers should prefer
	// LatestTick.
	FetchTick(ctx context.Context, symbol string) (models.TickSnapshot, error)

	// PlaceLimitOrder places a limit order. Blocking network call; returns
	// an empty id and an error on transport failure or venue rejection.
	PlaceLimitOrder(ctx context.Context, symbol string, side models.OrderSide, qty, price float64) (string, error)

	// PlaceMarketOrder places a market order. Blocking network call.
	PlaceMarketOrder(ctx context.Context, symbol string, side models.OrderSide, qty float64) (string, error)

	// CancelOrder cancels an order. Idempotent: cancelling an order that
	// is already terminal is not an error.
	CancelOrder(ctx context.Context, symbol, orderID string) error

	// CancelAllOrders cancels all open orders, optionally scoped to a
	// symbol (empty string cancels everything).
	CancelAllOrders(ctx context.Context, symbol string) error

	// OpenOrders returns open orders, optionally scoped to a symbol
	OpenOrders(ctx context.Context, symbol string) ([]models.OrderRecord, error)

	// OrderStatus returns the last known state of an order, no older than
	// one poll interval.
	OrderStatus(ctx context.Context, symbol, orderID string) (models.OrderRecord, error)

	// AccountBalances returns all asset balances
	AccountBalances(ctx context.Context) ([]models.Balance, error)

	// AssetBalance returns the balance of a single asset
	AssetBalance(ctx context.Context, asset string) (models.Balance, error)

	// AvailableBalance returns the free amount of a single asset
	AvailableBalance(ctx context.Context, asset string) (float64, error)

	// RateLimitRemaining returns the advisory request budget left in the
	// current window. Non-blocking.
	RateLimitRemaining() int

	// LatencyMs returns a smoothed request round-trip estimate in
	// milliseconds. Non-blocking.
	LatencyMs() float64

	// OnTickerUpdate registers the ticker-update callback
	OnTickerUpdate(cb TickerCallback)

	// OnOrderUpdate registers the order-update callback
	OnOrderUpdate(cb OrderCallback)

	// OnError registers the error callback
	OnError(cb ErrorCallback)
}
