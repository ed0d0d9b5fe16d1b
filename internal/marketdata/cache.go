package marketdata

import (
	"sync"

	"arbiflow/internal/domain/models"
)

type cacheKey struct {
	exchange string
	symbol   string
}

// Cache holds the latest tick and book snapshot per (exchange, symbol) key.
// One ingestion path writes per exchange; any number of goroutines read.
// Every read returns a copy, never a reference into the cache, so a consumer
// can hold a snapshot while the next replacement lands.
type Cache struct {
	mu    sync.RWMutex
	ticks map[cacheKey]models.TickSnapshot
	books map[cacheKey]models.OrderBookSnapshot
}

// NewCache creates an empty market data cache
func NewCache() *Cache {
	return &Cache{
		ticks: make(map[cacheKey]models.TickSnapshot),
		books: make(map[cacheKey]models.OrderBookSnapshot),
	}
}

// SetTick atomically replaces the snapshot for the tick's (exchange, symbol) key
func (c *Cache) SetTick(tick models.TickSnapshot) {
	key := cacheKey{exchange: tick.Exchange, symbol: tick.Symbol}

	c.mu.Lock()
	c.ticks[key] = tick
	c.mu.Unlock()
}

// Tick returns the latest snapshot for an (exchange, symbol) key
func (c *Cache) Tick(exchange, symbol string) (models.TickSnapshot, bool) {
	c.mu.RLock()
	tick, ok := c.ticks[cacheKey{exchange: exchange, symbol: symbol}]
	c.mu.RUnlock()
	return tick, ok
}

// TicksBySymbol returns the latest snapshot per exchange for one symbol
func (c *Cache) TicksBySymbol(symbol string) map[string]models.TickSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]models.TickSnapshot)
	for key, tick := range c.ticks {
		if key.symbol == symbol {
			out[key.exchange] = tick
		}
	}
	return out
}

// Symbols returns every symbol present in the cache on any exchange
func (c *Cache) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]struct{})
	var symbols []string
	for key := range c.ticks {
		if _, ok := seen[key.symbol]; !ok {
			seen[key.symbol] = struct{}{}
			symbols = append(symbols, key.symbol)
		}
	}
	return symbols
}

// SetBook atomically replaces the book snapshot for the book's (exchange, symbol) key
func (c *Cache) SetBook(book models.OrderBookSnapshot) {
	key := cacheKey{exchange: book.Exchange, symbol: book.Symbol}

	c.mu.Lock()
	c.books[key] = cloneBook(book)
	c.mu.Unlock()
}

// Book returns a copy of the latest book snapshot for an (exchange, symbol) key
func (c *Cache) Book(exchange, symbol string) (models.OrderBookSnapshot, bool) {
	c.mu.RLock()
	book, ok := c.books[cacheKey{exchange: exchange, symbol: symbol}]
	c.mu.RUnlock()
	if !ok {
		return models.OrderBookSnapshot{}, false
	}
	return cloneBook(book), true
}

// cloneBook copies the level slices so callers never share backing arrays
// with the cache.
func cloneBook(book models.OrderBookSnapshot) models.OrderBookSnapshot {
	out := book
	out.Bids = make([]models.BookLevel, len(book.Bids))
	copy(out.Bids, book.Bids)
	out.Asks = make([]models.BookLevel, len(book.Asks))
	copy(out.Asks, book.Asks)
	return out
}
