package filter

import (
	"zonaprop-watcher/models"
)

// Rejection reasons, reported as written to the Review table. Evaluate
// returns the first one that applies.
const (
	ReasonMissingNeighborhood = "missing neighborhood"
	ReasonRooms               = "rooms missing or below minimum"
	ReasonPrice               = "price missing or above maximum"
	ReasonMissingFee          = "missing fee"
	ReasonFeeAboveMax         = "fee above maximum"
)

// Policy decides whether an extracted listing is accepted. The maxima
// are inclusive.
type Policy struct {
	MaxPriceUSD int
	MaxFeeARS   int
	MinRooms    int
}

// NewPolicy creates a Policy with the given limits.
func NewPolicy(maxPriceUSD, maxFeeARS, minRooms int) *Policy {
	return &Policy{
		MaxPriceUSD: maxPriceUSD,
		MaxFeeARS:   maxFeeARS,
		MinRooms:    minRooms,
	}
}

// Evaluate applies the rule chain in fixed order and returns the first
// violated rule's reason. A listing with unknown fee data is rejected
// rather than assumed cheap; it lands in the Review table.
func (p *Policy) Evaluate(l models.Listing) (bool, string) {
	if l.Neighborhood == "" {
		return false, ReasonMissingNeighborhood
	}
	if l.Rooms == nil || *l.Rooms < p.MinRooms {
		return false, ReasonRooms
	}
	if l.PriceUSD == nil || *l.PriceUSD > p.MaxPriceUSD {
		return false, ReasonPrice
	}
	if l.FeesARS == nil {
		return false, ReasonMissingFee
	}
	if *l.FeesARS > p.MaxFeeARS {
		return false, ReasonFeeAboveMax
	}
	return true, "OK"
}
