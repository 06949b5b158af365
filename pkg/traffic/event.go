// Copyright (C) 2025, Velodata Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package traffic

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/velodata/funnelgen/pkg/config"
)

// Traffic types.
const (
	TypeNatural = "自然"
	TypePaid    = "付费"
)

// Event is one day's traffic for a product on one channel. Created by the
// distributor, never mutated, consumed read-only by the conversion engine.
// Every event is self-identifying (date/store/product/channel keys), so
// merging worker outputs is plain concatenation.
type Event struct {
	TrafficID     string
	Date          time.Time
	StoreID       string
	Platform      string
	SKUID         string
	ProductID     string
	CategoryL1    string
	CategoryL2    string
	Tier          config.Tier
	TrafficType   string
	Channel       string
	Impressions   int
	Clicks        int
	CTR           float64 // percent, rounded to 2 decimals
	PromotionCost decimal.Decimal
	CPC           decimal.Decimal
}

// IsPaid reports whether the event came from paid promotion.
func (e Event) IsPaid() bool {
	return e.TrafficType == TypePaid
}
