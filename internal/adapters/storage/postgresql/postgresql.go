package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"arbiflow/internal/application/ports"
	"arbiflow/internal/config"
	"arbiflow/internal/domain/models"
)

// Adapter implements the OrderJournal interface for PostgreSQL.
// Expected schema:
//
//	CREATE TABLE order_updates (
//	    id               BIGSERIAL PRIMARY KEY,
//	    order_id         TEXT NOT NULL,
//	    client_order_id  TEXT,
//	    symbol           TEXT NOT NULL,
//	    exchange         TEXT NOT NULL,
//	    side             TEXT NOT NULL,
//	    order_type       TEXT NOT NULL,
//	    status           TEXT NOT NULL,
//	    quantity         DOUBLE PRECISION NOT NULL,
//	    price            DOUBLE PRECISION NOT NULL,
//	    filled_qty       DOUBLE PRECISION NOT NULL,
//	    remaining_qty    DOUBLE PRECISION NOT NULL,
//	    commission       DOUBLE PRECISION NOT NULL,
//	    commission_asset TEXT,
//	    created_at       TIMESTAMPTZ NOT NULL,
//	    updated_at       TIMESTAMPTZ NOT NULL
//	);
type Adapter struct {
	db *sql.DB
}

// New creates a new PostgreSQL adapter
func New(cfg config.DatabaseConfig) (ports.OrderJournal, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Adapter{
		db: db,
	}, nil
}

// AppendOrderUpdate appends one order state transition
func (a *Adapter) AppendOrderUpdate(ctx context.Context, order models.OrderRecord) error {
	query := `INSERT INTO order_updates (order_id, client_order_id, symbol, exchange, side, order_type,
			  status, quantity, price, filled_qty, remaining_qty, commission, commission_asset, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := a.db.ExecContext(ctx, query,
		order.OrderID, order.ClientOrderID, order.Symbol, order.Exchange,
		string(order.Side), string(order.Type), string(order.Status),
		order.Quantity, order.Price, order.FilledQty, order.RemainingQty,
		order.Commission, order.CommissionAsset, order.CreatedAt, order.UpdatedAt)
	return err
}

// OrderHistory returns the recorded transitions of one order, oldest first
func (a *Adapter) OrderHistory(ctx context.Context, exchange, orderID string) ([]models.OrderRecord, error) {
	query := `SELECT order_id, client_order_id, symbol, exchange, side, order_type, status,
			  quantity, price, filled_qty, remaining_qty, commission, commission_asset, created_at, updated_at
			  FROM order_updates
			  WHERE exchange = $1 AND order_id = $2
			  ORDER BY updated_at ASC, id ASC`

	rows, err := a.db.QueryContext(ctx, query, exchange, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOrders(rows)
}

// RecentOrders returns the latest recorded state of orders updated since the cutoff
func (a *Adapter) RecentOrders(ctx context.Context, exchange string, since time.Time) ([]models.OrderRecord, error) {
	query := `SELECT DISTINCT ON (order_id) order_id, client_order_id, symbol, exchange, side, order_type, status,
			  quantity, price, filled_qty, remaining_qty, commission, commission_asset, created_at, updated_at
			  FROM order_updates
			  WHERE exchange = $1 AND updated_at >= $2
			  ORDER BY order_id, updated_at DESC, id DESC`

	rows, err := a.db.QueryContext(ctx, query, exchange, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOrders(rows)
}

func scanOrders(rows *sql.Rows) ([]models.OrderRecord, error) {
	var orders []models.OrderRecord
	for rows.Next() {
		var order models.OrderRecord
		var side, typ, status string
		err := rows.Scan(&order.OrderID, &order.ClientOrderID, &order.Symbol, &order.Exchange,
			&side, &typ, &status, &order.Quantity, &order.Price, &order.FilledQty,
			&order.RemainingQty, &order.Commission, &order.CommissionAsset,
			&order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return nil, err
		}
		order.Side = models.OrderSide(side)
		order.Type = models.OrderType(typ)
		order.Status = models.OrderStatus(status)
		orders = append(orders, order)
	}

	return orders, rows.Err()
}

// Close closes the storage connection
func (a *Adapter) Close() error {
	return a.db.Close()
}
