package ports

import (
	"context"
	"time"

	"arbiflow/internal/domain/models"
)

// OrderJournal defines the interface for persisting order state transitions.
// Every order update reported by a connector is appended; the journal is the
// audit trail of the order gateway, not a market-data store.
type OrderJournal interface {
	// AppendOrderUpdate appends one order state transition
	AppendOrderUpdate(ctx context.Context, order models.OrderRecord) error

	// OrderHistory returns the recorded transitions of one order, oldest first
	OrderHistory(ctx context.Context, exchange, orderID string) ([]models.OrderRecord, error)

	// RecentOrders returns the latest recorded state of orders updated since the cutoff
	RecentOrders(ctx context.Context, exchange string, since time.Time) ([]models.OrderRecord, error)

	// Close closes the storage connection
	Close() error
}
