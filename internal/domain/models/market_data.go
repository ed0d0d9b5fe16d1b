package models

import "time"

// TickSnapshot represents the latest known state of a symbol on one exchange.
// A snapshot is immutable once constructed; every poll or stream update
// produces a new value that replaces the previous one for the same
// (exchange, symbol) key. Crossed books (bid above ask) are possible on the
// source feeds and are stored as reported.
type TickSnapshot struct {
	Symbol     string    `json:"symbol"`
	Exchange   string    `json:"exchange"`
	Last       float64   `json:"last"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
	BidQty     float64   `json:"bid_qty"`
	AskQty     float64   `json:"ask_qty"`
	Volume24h  float64   `json:"volume_24h"`
	High24h    float64   `json:"high_24h"`
	Low24h     float64   `json:"low_24h"`
	Change24h  float64   `json:"change_24h"`
	EventTime  time.Time `json:"event_time"`
	ReceivedAt time.Time `json:"received_at"`
}

// IsZero reports whether the snapshot carries no data yet
func (t TickSnapshot) IsZero() bool {
	return t.Symbol == "" && t.Last == 0 && t.Bid == 0 && t.Ask == 0
}

// Age returns how long ago the snapshot was received
func (t TickSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(t.ReceivedAt)
}

// BookLevel represents a single price level of an order book
type BookLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// OrderBookSnapshot represents order book depth for a symbol on one exchange.
// Bids are sorted highest to lowest, asks lowest to highest.
type OrderBookSnapshot struct {
	Symbol     string      `json:"symbol"`
	Exchange   string      `json:"exchange"`
	Bids       []BookLevel `json:"bids"`
	Asks       []BookLevel `json:"asks"`
	EventTime  time.Time   `json:"event_time"`
	ReceivedAt time.Time   `json:"received_at"`
}

// BestBid returns the top-of-book bid level, or false when the book is empty
func (b OrderBookSnapshot) BestBid() (BookLevel, bool) {
	if len(b.Bids) == 0 {
		return BookLevel{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the top-of-book ask level, or false when the book is empty
func (b OrderBookSnapshot) BestAsk() (BookLevel, bool) {
	if len(b.Asks) == 0 {
		return BookLevel{}, false
	}
	return b.Asks[0], true
}
