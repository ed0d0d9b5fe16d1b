package usecases

import (
	"context"
	"fmt"
	"log/slog"

	"arbiflow/internal/domain/models"
	"arbiflow/internal/marketdata"
)

// OrderGatewayUseCase exposes order placement and cancellation primitives to
// strategy layers. Position sizing and risk limits live with the caller; this
// layer only routes to the right venue and reports results.
type OrderGatewayUseCase struct {
	manager *marketdata.Manager
	logger  *slog.Logger
}

// NewOrderGatewayUseCase creates a new OrderGatewayUseCase
func NewOrderGatewayUseCase(manager *marketdata.Manager, logger *slog.Logger) *OrderGatewayUseCase {
	return &OrderGatewayUseCase{
		manager: manager,
		logger:  logger,
	}
}

// PlaceLimitOrder places a limit order on the named exchange
func (uc *OrderGatewayUseCase) PlaceLimitOrder(ctx context.Context, exchange, symbol string, side models.OrderSide, qty, price float64) (string, error) {
	conn, ok := uc.manager.Connector(exchange)
	if !ok {
		return "", fmt.Errorf("%w %s", ErrUnknownExchange, exchange)
	}
	return conn.PlaceLimitOrder(ctx, symbol, side, qty, price)
}

// PlaceMarketOrder places a market order on the named exchange
func (uc *OrderGatewayUseCase) PlaceMarketOrder(ctx context.Context, exchange, symbol string, side models.OrderSide, qty float64) (string, error) {
	conn, ok := uc.manager.Connector(exchange)
	if !ok {
		return "", fmt.Errorf("%w %s", ErrUnknownExchange, exchange)
	}
	return conn.PlaceMarketOrder(ctx, symbol, side, qty)
}

// CancelOrder cancels an order on the named exchange
func (uc *OrderGatewayUseCase) CancelOrder(ctx context.Context, exchange, symbol, orderID string) error {
	conn, ok := uc.manager.Connector(exchange)
	if !ok {
		return fmt.Errorf("%w %s", ErrUnknownExchange, exchange)
	}
	return conn.CancelOrder(ctx, symbol, orderID)
}

// CancelAllOrders cancels all open orders on the named exchange, optionally
// scoped to a symbol.
func (uc *OrderGatewayUseCase) CancelAllOrders(ctx context.Context, exchange, symbol string) error {
	conn, ok := uc.manager.Connector(exchange)
	if !ok {
		return fmt.Errorf("%w %s", ErrUnknownExchange, exchange)
	}
	return conn.CancelAllOrders(ctx, symbol)
}

// OrderStatus returns the last known state of an order
func (uc *OrderGatewayUseCase) OrderStatus(ctx context.Context, exchange, symbol, orderID string) (models.OrderRecord, error) {
	conn, ok := uc.manager.Connector(exchange)
	if !ok {
		return models.OrderRecord{}, fmt.Errorf("%w %s", ErrUnknownExchange, exchange)
	}
	return conn.OrderStatus(ctx, symbol, orderID)
}
