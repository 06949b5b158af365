// Copyright (C) 2025, Velodata Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package catalog

import (
	"math/rand/v2"

	"github.com/velodata/funnelgen/pkg/config"
)

// AssignTier maps a draw r ∈ [0,1) to a business tier by walking the tiers
// in fixed order and accumulating their population ratios (inverse-CDF
// sampling). Draws past the cumulative total land on the first tier.
func AssignTier(r float64) config.Tier {
	cumulative := 0.0
	for _, tier := range config.TierOrder {
		cumulative += config.Tiers[tier].Ratio
		if r < cumulative {
			return tier
		}
	}
	return config.TierOrder[0]
}

// DrawTier assigns a tier using the supplied RNG.
func DrawTier(rng *rand.Rand) config.Tier {
	return AssignTier(rng.Float64())
}

// DrawMargin draws a profit margin for a tier: uniform within the tier's
// range, lifted by the category bonus and clamped to the global ceiling.
func DrawMargin(rng *rand.Rand, tier config.Tier, categoryType string) float64 {
	r := config.ProfitMarginRange(tier, categoryType)
	return uniform(rng, r)
}

func uniform(rng *rand.Rand, r config.Range) float64 {
	return r.Lo + rng.Float64()*(r.Hi-r.Lo)
}
