package models

import "time"

// RiskTier classifies an opportunity by execution risk
type RiskTier string

const (
	RiskLow    RiskTier = "LOW"
	RiskMedium RiskTier = "MEDIUM"
	RiskHigh   RiskTier = "HIGH"
)

// ArbitrageOpportunity represents a cross-exchange price edge: buy at the ask
// on one venue, sell at the bid on another.
type ArbitrageOpportunity struct {
	Symbol       string    `json:"symbol"`
	BuyExchange  string    `json:"buy_exchange"`
	SellExchange string    `json:"sell_exchange"`
	BuyPrice     float64   `json:"buy_price"`
	SellPrice    float64   `json:"sell_price"`
	ProfitBps    float64   `json:"profit_bps"`
	MaxQuantity  float64   `json:"max_quantity"`
	Confidence   float64   `json:"confidence"`
	LatencyMs    float64   `json:"latency_ms"`
	Executable   bool      `json:"executable"`
	Risk         RiskTier  `json:"risk"`
	DetectedAt   time.Time `json:"detected_at"`
}

// PairID returns a stable identifier for the venue pair, used as the final
// ordering tie-breaker.
func (o ArbitrageOpportunity) PairID() string {
	return o.BuyExchange + "->" + o.SellExchange
}
