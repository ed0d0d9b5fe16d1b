package models

import (
	"testing"
	"time"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestNewOrderRecordAccounting(t *testing.T) {
	order := NewOrderRecord("1", "c1", "BTCUSDT", "bybit", SideBuy, TypeLimit, 2.0, 50000, testTime)

	if order.Status != StatusNew {
		t.Errorf("Status = %s, want NEW", order.Status)
	}
	if order.FilledQty+order.RemainingQty != order.Quantity {
		t.Errorf("Accounting broken: filled %v + remaining %v != quantity %v",
			order.FilledQty, order.RemainingQty, order.Quantity)
	}
}

func TestOrderFillLifecycle(t *testing.T) {
	order := NewOrderRecord("1", "", "BTCUSDT", "bybit", SideBuy, TypeLimit, 2.0, 50000, testTime)

	if err := order.ApplyFill(0.5, testTime); err != nil {
		t.Fatalf("ApplyFill: %v", err)
	}
	if order.Status != StatusPartiallyFilled {
		t.Errorf("Status after partial fill = %s, want PARTIALLY_FILLED", order.Status)
	}
	if order.FilledQty+order.RemainingQty != order.Quantity {
		t.Errorf("Accounting broken after partial fill: %v + %v != %v",
			order.FilledQty, order.RemainingQty, order.Quantity)
	}

	if err := order.ApplyFill(1.5, testTime); err != nil {
		t.Fatalf("ApplyFill: %v", err)
	}
	if order.Status != StatusFilled {
		t.Errorf("Status after full fill = %s, want FILLED", order.Status)
	}
	if order.RemainingQty != 0 {
		t.Errorf("RemainingQty = %v, want 0", order.RemainingQty)
	}
}

func TestOrderFillValidation(t *testing.T) {
	order := NewOrderRecord("1", "", "BTCUSDT", "bybit", SideBuy, TypeLimit, 1.0, 50000, testTime)

	if err := order.ApplyFill(0, testTime); err == nil {
		t.Error("Zero fill should be rejected")
	}
	if err := order.ApplyFill(-1, testTime); err == nil {
		t.Error("Negative fill should be rejected")
	}
	if err := order.ApplyFill(1.5, testTime); err == nil {
		t.Error("Overfill should be rejected")
	}

	order.Cancel(testTime)
	if err := order.ApplyFill(0.5, testTime); err == nil {
		t.Error("Fill on canceled order should be rejected")
	}
}

func TestOrderCancelFreezesRemaining(t *testing.T) {
	order := NewOrderRecord("1", "", "BTCUSDT", "bybit", SideSell, TypeLimit, 2.0, 50000, testTime)
	order.ApplyFill(0.5, testTime)
	order.Cancel(testTime)

	if order.Status != StatusCanceled {
		t.Errorf("Status = %s, want CANCELED", order.Status)
	}
	if order.RemainingQty != 1.5 {
		t.Errorf("RemainingQty = %v, want frozen 1.5", order.RemainingQty)
	}
}

func TestOrderTerminalTransitionsAreNoOps(t *testing.T) {
	order := NewOrderRecord("1", "", "BTCUSDT", "bybit", SideBuy, TypeLimit, 1.0, 50000, testTime)
	order.ApplyFill(1.0, testTime)

	order.Cancel(testTime)
	if order.Status != StatusFilled {
		t.Errorf("Cancel on filled order changed status to %s", order.Status)
	}

	order.Reject(testTime)
	if order.Status != StatusFilled {
		t.Errorf("Reject on filled order changed status to %s", order.Status)
	}
}

func TestOrderStatusIsTerminal(t *testing.T) {
	terminal := []OrderStatus{StatusFilled, StatusCanceled, StatusRejected}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []OrderStatus{StatusNew, StatusPartiallyFilled} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
