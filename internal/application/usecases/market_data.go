package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"arbiflow/internal/application/ports"
	"arbiflow/internal/domain/models"
	"arbiflow/internal/marketdata"
)

// ErrUnknownExchange reports a request routed to an exchange no registered
// connector serves.
var ErrUnknownExchange = errors.New("unknown exchange")

// MarketDataUseCase serves the snapshot query surface consumed by dashboards.
// All reads come from cached state; nothing here blocks on an exchange.
type MarketDataUseCase struct {
	manager *marketdata.Manager
	mirror  ports.TickMirror
	logger  *slog.Logger
}

// NewMarketDataUseCase creates a new MarketDataUseCase. mirror may be nil
// when no external mirror is configured.
func NewMarketDataUseCase(manager *marketdata.Manager, mirror ports.TickMirror, logger *slog.Logger) *MarketDataUseCase {
	return &MarketDataUseCase{
		manager: manager,
		mirror:  mirror,
		logger:  logger,
	}
}

// GetLatestTick returns the latest snapshot for an (exchange, symbol) key.
// The in-memory cache is authoritative; the mirror covers ticks ingested by
// another instance.
func (uc *MarketDataUseCase) GetLatestTick(ctx context.Context, exchange, symbol string) (*models.TickSnapshot, error) {
	if tick, ok := uc.manager.Cache().Tick(exchange, symbol); ok {
		return &tick, nil
	}

	if uc.mirror != nil {
		return uc.mirror.GetLatestTick(ctx, exchange, symbol)
	}
	return nil, nil
}

// GetFreshestTick returns the most recently received snapshot for a symbol
// across all exchanges.
func (uc *MarketDataUseCase) GetFreshestTick(ctx context.Context, symbol string) (*models.TickSnapshot, error) {
	ticks := uc.manager.Cache().TicksBySymbol(symbol)

	var latest *models.TickSnapshot
	for _, tick := range ticks {
		t := tick
		if latest == nil || t.ReceivedAt.After(latest.ReceivedAt) {
			latest = &t
		}
	}
	if latest != nil {
		return latest, nil
	}

	if uc.mirror != nil {
		mirrored, err := uc.mirror.GetLatestTicks(ctx, symbol)
		if err != nil {
			return nil, err
		}
		for _, tick := range mirrored {
			t := tick
			if latest == nil || t.ReceivedAt.After(latest.ReceivedAt) {
				latest = &t
			}
		}
	}
	return latest, nil
}

// GetBook returns the latest book snapshot for an (exchange, symbol) key
func (uc *MarketDataUseCase) GetBook(exchange, symbol string) (*models.OrderBookSnapshot, error) {
	if book, ok := uc.manager.Cache().Book(exchange, symbol); ok {
		return &book, nil
	}
	return nil, nil
}

// GetOpenOrders returns open orders on one exchange, optionally per symbol.
// This is a blocking read-through to the venue.
func (uc *MarketDataUseCase) GetOpenOrders(ctx context.Context, exchange, symbol string) ([]models.OrderRecord, error) {
	conn, ok := uc.manager.Connector(exchange)
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnknownExchange, exchange)
	}
	return conn.OpenOrders(ctx, symbol)
}

// GetBalances returns the account balances on one exchange
func (uc *MarketDataUseCase) GetBalances(ctx context.Context, exchange string) ([]models.Balance, error) {
	conn, ok := uc.manager.Connector(exchange)
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnknownExchange, exchange)
	}
	return conn.AccountBalances(ctx)
}

// Status returns the per-connector ingestion status
func (uc *MarketDataUseCase) Status() []marketdata.ConnectorStatus {
	return uc.manager.Status()
}
