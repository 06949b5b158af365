// Copyright (C) 2025, Velodata Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import "strings"

// Tier is one of the five business-value segments a product belongs to.
// Tier drives traffic weight, conversion rate and margin range.
type Tier string

const (
	TierBestseller Tier = "畅销品"
	TierMargin     Tier = "利润品"
	TierNewPromo   Tier = "主推新品"
	TierSlowMover  Tier = "滞销品"
	TierLossLeader Tier = "引流品"
)

// Range is a closed numeric interval [Lo, Hi].
type Range struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// TierConfig describes the business behaviour of one product tier.
type TierConfig struct {
	Ratio          float64 // population share of the catalog
	ProfitMargin   Range
	TrafficWeight  float64 // impression multiplier vs. a neutral product
	ConversionRate Range
}

// TierOrder is the fixed walk order for inverse-CDF tier assignment.
// The cumulative ratios sum to 1.0.
var TierOrder = []Tier{TierBestseller, TierMargin, TierNewPromo, TierSlowMover, TierLossLeader}

// Tiers is the production tier model.
var Tiers = map[Tier]TierConfig{
	TierBestseller: {Ratio: 0.30, ProfitMargin: Range{0.28, 0.33}, TrafficWeight: 3.0, ConversionRate: Range{0.03, 0.08}},
	TierMargin:     {Ratio: 0.20, ProfitMargin: Range{0.40, 0.50}, TrafficWeight: 0.5, ConversionRate: Range{0.01, 0.03}},
	TierNewPromo:   {Ratio: 0.15, ProfitMargin: Range{0.28, 0.35}, TrafficWeight: 1.5, ConversionRate: Range{0.02, 0.05}},
	TierSlowMover:  {Ratio: 0.20, ProfitMargin: Range{0.25, 0.40}, TrafficWeight: 0.3, ConversionRate: Range{0.005, 0.015}},
	TierLossLeader: {Ratio: 0.15, ProfitMargin: Range{0.20, 0.25}, TrafficWeight: 4.0, ConversionRate: Range{0.04, 0.10}},
}

// CategoryProfitBonus is the margin uplift per category type.
var CategoryProfitBonus = map[string]float64{
	"整车-品牌":   0.00,
	"整车-白牌":   0.05,
	"骑行装备-品牌": 0.10,
	"骑行装备-白牌": 0.15,
}

// MaxProfitMargin is the global margin ceiling after bonuses.
const MaxProfitMargin = 0.65

// Per-unit shipping fees by category family.
const (
	ShippingFeeBike      = 30.0
	ShippingFeeAccessory = 3.0
)

// Operating fee rates applied to sales when deriving net profit.
var FeeRates = map[string]float64{
	"after_sale": 0.02,
	"platform":   0.05,
	"management": 0.10,
}

// TrafficWeight returns the impression multiplier for a tier.
// Unknown tiers count as neutral.
func TrafficWeight(t Tier) float64 {
	if cfg, ok := Tiers[t]; ok {
		return cfg.TrafficWeight
	}
	return 1.0
}

// ConversionRange returns the CVR range for a tier, with a mid-market
// fallback for unknown tiers.
func ConversionRange(t Tier) Range {
	if cfg, ok := Tiers[t]; ok {
		return cfg.ConversionRate
	}
	return Range{0.02, 0.05}
}

// ProfitMarginRange returns the margin range for a tier including the
// category bonus, clamped to MaxProfitMargin.
func ProfitMarginRange(t Tier, categoryType string) Range {
	cfg, ok := Tiers[t]
	if !ok {
		cfg = Tiers[TierBestseller]
	}
	bonus := CategoryProfitBonus[categoryType]
	return Range{
		Lo: min(MaxProfitMargin, cfg.ProfitMargin.Lo+bonus),
		Hi: min(MaxProfitMargin, cfg.ProfitMargin.Hi+bonus),
	}
}

// IsBikeCategory reports whether a level-1 category is a whole-bike family.
func IsBikeCategory(categoryL1 string) bool {
	return strings.HasPrefix(categoryL1, "整车")
}

// ShippingFee returns the per-unit shipping fee for a level-1 category.
func ShippingFee(categoryL1 string) float64 {
	if IsBikeCategory(categoryL1) {
		return ShippingFeeBike
	}
	return ShippingFeeAccessory
}
