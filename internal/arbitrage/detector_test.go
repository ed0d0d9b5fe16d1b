package arbitrage

import (
	"log/slog"
	"math"
	"testing"
	"time"

	"arbiflow/internal/domain/models"
	"arbiflow/internal/marketdata"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestDetector(cache *marketdata.Cache, cfg Config) *Detector {
	d := NewDetector(cache, cfg, nil, slog.Default())
	d.now = func() time.Time { return testTime }
	return d
}

func seedTick(cache *marketdata.Cache, exchange, symbol string, bid, ask, bidQty, askQty float64) {
	cache.SetTick(models.TickSnapshot{
		Symbol:     symbol,
		Exchange:   exchange,
		Last:       (bid + ask) / 2,
		Bid:        bid,
		Ask:        ask,
		BidQty:     bidQty,
		AskQty:     askQty,
		EventTime:  testTime,
		ReceivedAt: testTime,
	})
}

func TestScanFindsCrossVenueEdge(t *testing.T) {
	cache := marketdata.NewCache()
	// Venue a: bid 99.90, ask 100.00. Venue b: bid 100.15, ask 100.20.
	// Buying a's ask and selling b's bid yields 15 bps.
	seedTick(cache, "a", "BTCUSDT", 99.90, 100.00, 5, 5)
	seedTick(cache, "b", "BTCUSDT", 100.15, 100.20, 3, 3)

	d := newTestDetector(cache, Config{MinProfitBps: 10})
	opps := d.Scan("")

	if len(opps) != 1 {
		t.Fatalf("Scan() found %d opportunities, want 1: %+v", len(opps), opps)
	}

	opp := opps[0]
	if opp.BuyExchange != "a" || opp.SellExchange != "b" {
		t.Errorf("Direction = buy %s sell %s, want buy a sell b", opp.BuyExchange, opp.SellExchange)
	}
	if math.Abs(opp.ProfitBps-15.0) > 1e-9 {
		t.Errorf("ProfitBps = %v, want 15.0", opp.ProfitBps)
	}
	if opp.BuyPrice != 100.00 || opp.SellPrice != 100.15 {
		t.Errorf("Prices = buy %v sell %v, want 100.00 and 100.15", opp.BuyPrice, opp.SellPrice)
	}
	if !opp.Executable {
		t.Error("Opportunity with depth on both sides should be executable")
	}
	if opp.MaxQuantity != 3 {
		t.Errorf("MaxQuantity = %v, want min of top-of-book sizes 3", opp.MaxQuantity)
	}
}

func TestScanHonorsThreshold(t *testing.T) {
	cache := marketdata.NewCache()
	seedTick(cache, "a", "BTCUSDT", 99.90, 100.00, 5, 5)
	seedTick(cache, "b", "BTCUSDT", 100.15, 100.20, 3, 3)

	// 15 bps edge discarded when the floor is 20.
	d := newTestDetector(cache, Config{MinProfitBps: 20})
	if opps := d.Scan(""); len(opps) != 0 {
		t.Errorf("Scan() with 20 bps floor found %d opportunities, want 0", len(opps))
	}
}

func TestScanComparesExecutablePricesNotLast(t *testing.T) {
	cache := marketdata.NewCache()
	// Last prices differ wildly but bid/ask leave no executable edge.
	cache.SetTick(models.TickSnapshot{
		Symbol: "BTCUSDT", Exchange: "a", Last: 90,
		Bid: 99.99, Ask: 100.01, BidQty: 1, AskQty: 1,
		EventTime: testTime, ReceivedAt: testTime,
	})
	cache.SetTick(models.TickSnapshot{
		Symbol: "BTCUSDT", Exchange: "b", Last: 110,
		Bid: 99.98, Ask: 100.02, BidQty: 1, AskQty: 1,
		EventTime: testTime, ReceivedAt: testTime,
	})

	d := newTestDetector(cache, Config{MinProfitBps: 10})
	if opps := d.Scan(""); len(opps) != 0 {
		t.Errorf("Scan() found %d opportunities on last-price divergence, want 0", len(opps))
	}
}

func TestScanMissingDepthHalvesConfidence(t *testing.T) {
	cache := marketdata.NewCache()
	seedTick(cache, "a", "BTCUSDT", 99.90, 100.00, 5, 0)
	seedTick(cache, "b", "BTCUSDT", 100.15, 100.20, 3, 3)

	d := newTestDetector(cache, Config{MinProfitBps: 10})
	opps := d.Scan("")
	if len(opps) != 1 {
		t.Fatalf("Scan() found %d opportunities, want 1", len(opps))
	}

	opp := opps[0]
	if opp.Executable {
		t.Error("Opportunity without ask depth should not be executable")
	}
	if opp.MaxQuantity != 0 {
		t.Errorf("MaxQuantity = %v, want 0 without depth", opp.MaxQuantity)
	}
	// Fresh ticks give freshness 1; missing size halves it.
	if math.Abs(opp.Confidence-0.5) > 1e-9 {
		t.Errorf("Confidence = %v, want 0.5", opp.Confidence)
	}
}

func TestScanPrefersBookDepthOverTickQuantities(t *testing.T) {
	cache := marketdata.NewCache()
	seedTick(cache, "a", "BTCUSDT", 99.90, 100.00, 5, 5)
	seedTick(cache, "b", "BTCUSDT", 100.15, 100.20, 3, 3)

	cache.SetBook(models.OrderBookSnapshot{
		Symbol:   "BTCUSDT",
		Exchange: "a",
		Bids:     []models.BookLevel{{Price: 99.90, Quantity: 10}},
		Asks:     []models.BookLevel{{Price: 100.00, Quantity: 1.5}},
	})

	d := newTestDetector(cache, Config{MinProfitBps: 10})
	opps := d.Scan("")
	if len(opps) != 1 {
		t.Fatalf("Scan() found %d opportunities, want 1", len(opps))
	}
	if opps[0].MaxQuantity != 1.5 {
		t.Errorf("MaxQuantity = %v, want book ask depth 1.5", opps[0].MaxQuantity)
	}
}

func TestScanStaleTickReducesConfidence(t *testing.T) {
	cache := marketdata.NewCache()
	seedTick(cache, "a", "BTCUSDT", 99.90, 100.00, 5, 5)

	// One leg is 4s old with a 5s ceiling: freshness 0.2 bounds the pair.
	stale := models.TickSnapshot{
		Symbol: "BTCUSDT", Exchange: "b", Last: 100.17,
		Bid: 100.15, Ask: 100.20, BidQty: 3, AskQty: 3,
		EventTime:  testTime.Add(-4 * time.Second),
		ReceivedAt: testTime.Add(-4 * time.Second),
	}
	cache.SetTick(stale)

	d := newTestDetector(cache, Config{MinProfitBps: 10, MaxTickAge: 5 * time.Second})
	opps := d.Scan("")
	if len(opps) != 1 {
		t.Fatalf("Scan() found %d opportunities, want 1", len(opps))
	}
	if math.Abs(opps[0].Confidence-0.2) > 1e-9 {
		t.Errorf("Confidence = %v, want 0.2", opps[0].Confidence)
	}
}

func TestScanOrdering(t *testing.T) {
	cache := marketdata.NewCache()
	// Edge on ETHUSDT is wider than the one on BTCUSDT.
	seedTick(cache, "a", "BTCUSDT", 99.90, 100.00, 5, 5)
	seedTick(cache, "b", "BTCUSDT", 100.15, 100.20, 3, 3)
	seedTick(cache, "a", "ETHUSDT", 199.00, 200.00, 5, 5)
	seedTick(cache, "b", "ETHUSDT", 201.00, 202.00, 3, 3)

	d := newTestDetector(cache, Config{MinProfitBps: 10})
	opps := d.Scan("")
	if len(opps) != 2 {
		t.Fatalf("Scan() found %d opportunities, want 2", len(opps))
	}
	if opps[0].Symbol != "ETHUSDT" {
		t.Errorf("First opportunity = %s, want the wider ETHUSDT edge first", opps[0].Symbol)
	}
	if opps[0].ProfitBps < opps[1].ProfitBps {
		t.Error("Opportunities not sorted by descending profit")
	}
}

func TestScanSymbolFilter(t *testing.T) {
	cache := marketdata.NewCache()
	seedTick(cache, "a", "BTCUSDT", 99.90, 100.00, 5, 5)
	seedTick(cache, "b", "BTCUSDT", 100.15, 100.20, 3, 3)
	seedTick(cache, "a", "ETHUSDT", 199.00, 200.00, 5, 5)
	seedTick(cache, "b", "ETHUSDT", 201.00, 202.00, 3, 3)

	d := newTestDetector(cache, Config{MinProfitBps: 10})
	opps := d.Scan("BTCUSDT")
	if len(opps) != 1 {
		t.Fatalf("Scan(BTCUSDT) found %d opportunities, want 1", len(opps))
	}
	if opps[0].Symbol != "BTCUSDT" {
		t.Errorf("Filtered scan returned %s", opps[0].Symbol)
	}
}

func TestScanSingleVenueFindsNothing(t *testing.T) {
	cache := marketdata.NewCache()
	seedTick(cache, "a", "BTCUSDT", 99.90, 100.00, 5, 5)

	d := newTestDetector(cache, Config{MinProfitBps: 10})
	if opps := d.Scan(""); len(opps) != 0 {
		t.Errorf("Scan() with one venue found %d opportunities, want 0", len(opps))
	}
}

func TestRiskTiers(t *testing.T) {
	cache := marketdata.NewCache()
	d := newTestDetector(cache, Config{})

	if got := d.riskTier(25, 0.9, 10); got != models.RiskLow {
		t.Errorf("Wide fresh low-latency edge = %s, want LOW", got)
	}
	if got := d.riskTier(15, 0.5, 100); got != models.RiskMedium {
		t.Errorf("Moderate edge = %s, want MEDIUM", got)
	}
	if got := d.riskTier(15, 0.9, 300); got != models.RiskHigh {
		t.Errorf("High latency edge = %s, want HIGH", got)
	}
	if got := d.riskTier(25, 0.1, 10); got != models.RiskHigh {
		t.Errorf("Low confidence edge = %s, want HIGH", got)
	}
}
