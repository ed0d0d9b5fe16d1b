package arbitrage

import (
	"log/slog"
	"sort"
	"time"

	"arbiflow/internal/domain/models"
	"arbiflow/internal/marketdata"
)

// Config holds detection thresholds
type Config struct {
	// MinProfitBps discards edges thinner than this many basis points
	MinProfitBps float64

	// MaxTickAge is the age at which a snapshot contributes zero confidence
	MaxTickAge time.Duration

	// Risk tier thresholds
	LowRiskLatencyMs  float64
	HighRiskLatencyMs float64
	LowRiskConfidence float64
}

// DefaultConfig returns the detection thresholds used when none are configured
func DefaultConfig() Config {
	return Config{
		MinProfitBps:      10,
		MaxTickAge:        5 * time.Second,
		LowRiskLatencyMs:  50,
		HighRiskLatencyMs: 250,
		LowRiskConfidence: 0.7,
	}
}

// latencyFunc reports the smoothed request latency of an exchange in
// milliseconds; unknown exchanges report zero.
type latencyFunc func(exchange string) float64

// Detector scans the aggregated multi-exchange cache for cross-venue price
// edges. Each pass is a full recompute over the current cache contents; no
// state is carried between passes.
type Detector struct {
	cache   *marketdata.Cache
	cfg     Config
	latency latencyFunc
	logger  *slog.Logger
	now     func() time.Time
}

// NewDetector creates a detector over the given cache. latency may be nil
// when no instrumentation is available.
func NewDetector(cache *marketdata.Cache, cfg Config, latency latencyFunc, logger *slog.Logger) *Detector {
	if cfg.MinProfitBps == 0 {
		cfg.MinProfitBps = DefaultConfig().MinProfitBps
	}
	if cfg.MaxTickAge == 0 {
		cfg.MaxTickAge = DefaultConfig().MaxTickAge
	}
	if cfg.HighRiskLatencyMs == 0 {
		def := DefaultConfig()
		cfg.LowRiskLatencyMs = def.LowRiskLatencyMs
		cfg.HighRiskLatencyMs = def.HighRiskLatencyMs
		cfg.LowRiskConfidence = def.LowRiskConfidence
	}
	if latency == nil {
		latency = func(string) float64 { return 0 }
	}
	return &Detector{
		cache:   cache,
		cfg:     cfg,
		latency: latency,
		logger:  logger,
		now:     time.Now,
	}
}

// Scan recomputes the opportunity list from the current cache contents,
// ordered by descending profit, then descending confidence, then pair id.
// An empty filter scans every cached symbol.
func (d *Detector) Scan(filter string) []models.ArbitrageOpportunity {
	now := d.now()
	var out []models.ArbitrageOpportunity

	for _, symbol := range d.cache.Symbols() {
		if filter != "" && symbol != filter {
			continue
		}
		ticks := d.cache.TicksBySymbol(symbol)
		if len(ticks) < 2 {
			continue
		}

		for buyExchange, buyTick := range ticks {
			for sellExchange, sellTick := range ticks {
				if buyExchange == sellExchange {
					continue
				}
				if opp, ok := d.evaluate(symbol, buyTick, sellTick, now); ok {
					out = append(out, opp)
				}
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ProfitBps != out[j].ProfitBps {
			return out[i].ProfitBps > out[j].ProfitBps
		}
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].PairID() < out[j].PairID()
	})

	if len(out) > 0 {
		d.logger.Debug("Arbitrage scan complete", "opportunities", len(out), "best_profit_bps", out[0].ProfitBps)
	}
	return out
}

// evaluate prices one ordered venue pair. Executable cost is buying at the
// ask and selling at the bid; last prices are never compared.
func (d *Detector) evaluate(symbol string, buy, sell models.TickSnapshot, now time.Time) (models.ArbitrageOpportunity, bool) {
	if buy.Ask <= 0 || sell.Bid <= 0 {
		return models.ArbitrageOpportunity{}, false
	}

	profitBps := (sell.Bid - buy.Ask) / buy.Ask * 10000
	if profitBps < d.cfg.MinProfitBps {
		return models.ArbitrageOpportunity{}, false
	}

	// Thinner side's top-of-book bounds the executable size. No depth on
	// either side means we cannot execute, not that we guess a volume.
	maxQty := d.maxQuantity(buy, sell)
	executable := maxQty > 0

	confidence := d.confidence(buy, sell, executable, now)
	latencyMs := maxFloat(d.latency(buy.Exchange), d.latency(sell.Exchange))

	opp := models.ArbitrageOpportunity{
		Symbol:       symbol,
		BuyExchange:  buy.Exchange,
		SellExchange: sell.Exchange,
		BuyPrice:     buy.Ask,
		SellPrice:    sell.Bid,
		ProfitBps:    profitBps,
		MaxQuantity:  maxQty,
		Confidence:   confidence,
		LatencyMs:    latencyMs,
		Executable:   executable,
		Risk:         d.riskTier(profitBps, confidence, latencyMs),
		DetectedAt:   now,
	}
	return opp, true
}

// maxQuantity prefers subscribed book depth and falls back to the tick's
// top-of-book quantities.
func (d *Detector) maxQuantity(buy, sell models.TickSnapshot) float64 {
	askQty := buy.AskQty
	if book, ok := d.cache.Book(buy.Exchange, buy.Symbol); ok {
		if level, ok := book.BestAsk(); ok {
			askQty = level.Quantity
		}
	}

	bidQty := sell.BidQty
	if book, ok := d.cache.Book(sell.Exchange, sell.Symbol); ok {
		if level, ok := book.BestBid(); ok {
			bidQty = level.Quantity
		}
	}

	if askQty <= 0 || bidQty <= 0 {
		return 0
	}
	return minFloat(askQty, bidQty)
}

// confidence combines data freshness on both legs with depth certainty
func (d *Detector) confidence(buy, sell models.TickSnapshot, executable bool, now time.Time) float64 {
	freshness := minFloat(d.freshness(buy, now), d.freshness(sell, now))
	if !executable {
		// Edge without a known size: report it, but at half confidence.
		return freshness * 0.5
	}
	return freshness
}

// freshness maps snapshot age linearly from 1 (now) to 0 (MaxTickAge or older)
func (d *Detector) freshness(tick models.TickSnapshot, now time.Time) float64 {
	age := tick.Age(now)
	if age <= 0 {
		return 1
	}
	if age >= d.cfg.MaxTickAge {
		return 0
	}
	return 1 - float64(age)/float64(d.cfg.MaxTickAge)
}

func (d *Detector) riskTier(profitBps, confidence, latencyMs float64) models.RiskTier {
	if latencyMs > d.cfg.HighRiskLatencyMs || confidence < 0.3 {
		return models.RiskHigh
	}
	if latencyMs <= d.cfg.LowRiskLatencyMs && confidence >= d.cfg.LowRiskConfidence && profitBps >= 2*d.cfg.MinProfitBps {
		return models.RiskLow
	}
	return models.RiskMedium
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
