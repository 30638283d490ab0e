// Package billing converts token usage into cost in whole cents.
package billing

import (
	"errors"
	"fmt"
	"math"

	"github.com/avnova/sqyros/internal/routing"
)

// ErrInvalidRate indicates a negative or non-finite per-1k rate.
var ErrInvalidRate = errors.New("billing: invalid rate")

// costPrecision is the grid totals are snapped to before rounding up, so float
// noise on an exact cent amount (e.g. 10000 tokens at 0.3 cents/1k) is dropped
// while any real fraction of a cent still rounds up.
const costPrecision = 1e9

// Rate is a per-tier price in fractional cents per thousand tokens.
type Rate struct {
	InputCostPerThousandTokens  float64 `yaml:"input-per-1k" json:"input_per_1k"`
	OutputCostPerThousandTokens float64 `yaml:"output-per-1k" json:"output_per_1k"`
}

// Validate checks that both prices are finite and non-negative.
func (r Rate) Validate() error {
	for _, v := range []float64{r.InputCostPerThousandTokens, r.OutputCostPerThousandTokens} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidRate, v)
		}
	}
	return nil
}

// RateTable holds one rate per tier.
type RateTable struct {
	Fast     Rate `yaml:"fast" json:"fast"`
	Advanced Rate `yaml:"advanced" json:"advanced"`
}

// DefaultRates returns the provider list prices in cents per 1k tokens.
func DefaultRates() RateTable {
	return RateTable{
		Fast:     Rate{InputCostPerThousandTokens: 0.3, OutputCostPerThousandTokens: 1.5},
		Advanced: Rate{InputCostPerThousandTokens: 1.5, OutputCostPerThousandTokens: 7.5},
	}
}

// Validate checks every tier's rate.
func (t RateTable) Validate() error {
	if errFast := t.Fast.Validate(); errFast != nil {
		return fmt.Errorf("fast tier: %w", errFast)
	}
	if errAdvanced := t.Advanced.Validate(); errAdvanced != nil {
		return fmt.Errorf("advanced tier: %w", errAdvanced)
	}
	return nil
}

// For returns the rate for a tier. Unknown tiers are billed at the fast rate.
func (t RateTable) For(tier routing.Tier) Rate {
	switch tier {
	case routing.TierAdvanced:
		return t.Advanced
	case routing.TierFast:
		return t.Fast
	default:
		return t.Fast
	}
}

// EstimateCostCents returns the cost of a call rounded up to a whole cent.
// Negative token counts are treated as zero.
func (t RateTable) EstimateCostCents(tier routing.Tier, inputTokens, outputTokens int64) int64 {
	if inputTokens < 0 {
		inputTokens = 0
	}
	if outputTokens < 0 {
		outputTokens = 0
	}
	rate := t.For(tier)
	total := float64(inputTokens)/1000*rate.InputCostPerThousandTokens +
		float64(outputTokens)/1000*rate.OutputCostPerThousandTokens
	if total <= 0 {
		return 0
	}
	return int64(math.Ceil(math.Round(total*costPrecision) / costPrecision))
}

// EstimateCostCents prices a call with DefaultRates.
func EstimateCostCents(tier routing.Tier, inputTokens, outputTokens int64) int64 {
	return DefaultRates().EstimateCostCents(tier, inputTokens, outputTokens)
}
