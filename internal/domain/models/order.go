package models

import (
	"fmt"
	"time"
)

// OrderSide represents the direction of an order
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderType represents the execution type of an order
type OrderType string

const (
	TypeLimit  OrderType = "LIMIT"
	TypeMarket OrderType = "MARKET"
)

// OrderStatus represents the lifecycle state of an order
type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusRejected        OrderStatus = "REJECTED"
)

// IsTerminal reports whether no further transitions are possible
func (s OrderStatus) IsTerminal() bool {
	return s == StatusFilled || s == StatusCanceled || s == StatusRejected
}

// OrderRecord represents the last broker-reported state of an order.
// While the order is live, FilledQty + RemainingQty always equals Quantity.
// On cancellation or rejection RemainingQty freezes at its last value.
type OrderRecord struct {
	OrderID         string      `json:"order_id"`
	ClientOrderID   string      `json:"client_order_id,omitempty"`
	Symbol          string      `json:"symbol"`
	Exchange        string      `json:"exchange"`
	Side            OrderSide   `json:"side"`
	Type            OrderType   `json:"type"`
	Status          OrderStatus `json:"status"`
	Quantity        float64     `json:"quantity"`
	Price           float64     `json:"price"`
	FilledQty       float64     `json:"filled_qty"`
	RemainingQty    float64     `json:"remaining_qty"`
	Commission      float64     `json:"commission"`
	CommissionAsset string      `json:"commission_asset,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// NewOrderRecord creates an order in the NEW state with the fill accounting
// initialised so that FilledQty + RemainingQty == Quantity.
func NewOrderRecord(orderID, clientOrderID, symbol, exchange string, side OrderSide, typ OrderType, qty, price float64, now time.Time) OrderRecord {
	return OrderRecord{
		OrderID:       orderID,
		ClientOrderID: clientOrderID,
		Symbol:        symbol,
		Exchange:      exchange,
		Side:          side,
		Type:          typ,
		Status:        StatusNew,
		Quantity:      qty,
		Price:         price,
		FilledQty:     0,
		RemainingQty:  qty,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// ApplyFill records an execution against the order, keeping the fill
// accounting invariant and moving the status forward.
func (o *OrderRecord) ApplyFill(qty float64, now time.Time) error {
	if o.Status.IsTerminal() {
		return fmt.Errorf("order %s is %s, cannot fill", o.OrderID, o.Status)
	}
	if qty <= 0 {
		return fmt.Errorf("fill quantity must be positive, got %v", qty)
	}
	if qty > o.RemainingQty {
		return fmt.Errorf("fill %v exceeds remaining %v on order %s", qty, o.RemainingQty, o.OrderID)
	}

	o.FilledQty += qty
	o.RemainingQty = o.Quantity - o.FilledQty
	if o.RemainingQty == 0 {
		o.Status = StatusFilled
	} else {
		o.Status = StatusPartiallyFilled
	}
	o.UpdatedAt = now
	return nil
}

// Cancel marks the order canceled. Remaining quantity freezes at the last
// broker-reported value. Cancelling a terminal order is a no-op.
func (o *OrderRecord) Cancel(now time.Time) {
	if o.Status.IsTerminal() {
		return
	}
	o.Status = StatusCanceled
	o.UpdatedAt = now
}

// Reject marks the order rejected
func (o *OrderRecord) Reject(now time.Time) {
	if o.Status.IsTerminal() {
		return
	}
	o.Status = StatusRejected
	o.UpdatedAt = now
}
