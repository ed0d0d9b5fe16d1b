package ports

import (
	"context"

	"arbiflow/internal/domain/models"
)

// TickMirror defines the interface for the external latest-tick mirror that
// out-of-process dashboards read. The in-memory cache stays authoritative;
// the mirror is written asynchronously and entries expire on their own.
type TickMirror interface {
	// SetLatestTick mirrors the latest snapshot for an (exchange, symbol) key
	SetLatestTick(ctx context.Context, tick models.TickSnapshot) error

	// GetLatestTick reads a mirrored snapshot, returning nil when absent
	GetLatestTick(ctx context.Context, exchange, symbol string) (*models.TickSnapshot, error)

	// GetLatestTicks reads mirrored snapshots for a symbol across all exchanges
	GetLatestTicks(ctx context.Context, symbol string) ([]models.TickSnapshot, error)

	// Close closes the mirror connection
	Close() error
}
