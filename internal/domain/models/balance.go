package models

// Balance represents the holdings of a single asset.
// Total is always recomputed from Free + Locked, never stored independently.
type Balance struct {
	Asset  string  `json:"asset"`
	Free   float64 `json:"free"`
	Locked float64 `json:"locked"`
	Total  float64 `json:"total"`
}

// NewBalance creates a balance with the total derived from its parts
func NewBalance(asset string, free, locked float64) Balance {
	return Balance{
		Asset:  asset,
		Free:   free,
		Locked: locked,
		Total:  free + locked,
	}
}

// Lock moves amount from free to locked, recomputing the total
func (b Balance) Lock(amount float64) Balance {
	return NewBalance(b.Asset, b.Free-amount, b.Locked+amount)
}

// Release moves amount from locked back to free, recomputing the total
func (b Balance) Release(amount float64) Balance {
	return NewBalance(b.Asset, b.Free+amount, b.Locked-amount)
}
