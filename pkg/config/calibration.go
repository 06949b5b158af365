// Copyright (C) 2025, Velodata Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Calibration holds the tuned constants of the funnel simulation.
// The defaults target a promotion-cost-to-sales ratio near 6.5%; they are
// calibration knobs, not business truth, and can be overridden from JSON.
type Calibration struct {
	// Paid-traffic emission probability per (product, day).
	PaidProbPromoted float64 `json:"paid_prob_promoted"` // promoted-new and loss-leader tiers
	PaidProbDefault  float64 `json:"paid_prob_default"`

	// Natural traffic.
	NaturalImpressionsBike Range `json:"natural_impressions_bike"`
	NaturalImpressionsPart Range `json:"natural_impressions_part"`
	NaturalCTR             Range `json:"natural_ctr"`

	// Paid traffic.
	PaidImpressionsBike Range   `json:"paid_impressions_bike"`
	PaidImpressionsPart Range   `json:"paid_impressions_part"`
	PaidCTR             Range   `json:"paid_ctr"`
	CPCBike             Range   `json:"cpc_bike"`
	CPCPart             Range   `json:"cpc_part"`
	MinPaidBudget       float64 `json:"min_paid_budget"` // floor spend per paid placement

	// Order materialization.
	StatusCompleted float64 `json:"status_completed"`
	StatusCancelled float64 `json:"status_cancelled"`
	StatusRefunded  float64 `json:"status_refunded"`
	PayAlipay       float64 `json:"pay_alipay"`
	PayWeChat       float64 `json:"pay_wechat"`
	PayBankCard     float64 `json:"pay_bankcard"`
	MaxQuantity     int     `json:"max_quantity"`
}

// DefaultCalibration returns the production calibration.
func DefaultCalibration() Calibration {
	return Calibration{
		PaidProbPromoted: 0.05,
		PaidProbDefault:  0.02,

		NaturalImpressionsBike: Range{100, 500},
		NaturalImpressionsPart: Range{50, 200},
		NaturalCTR:             Range{0.05, 0.15},

		PaidImpressionsBike: Range{80, 180},
		PaidImpressionsPart: Range{40, 90},
		PaidCTR:             Range{0.02, 0.04},
		CPCBike:             Range{0.45, 0.75},
		CPCPart:             Range{0.28, 0.52},
		MinPaidBudget:       12,

		StatusCompleted: 0.92,
		StatusCancelled: 0.06,
		StatusRefunded:  0.02,
		PayAlipay:       0.50,
		PayWeChat:       0.40,
		PayBankCard:     0.10,
		MaxQuantity:     3,
	}
}

// LoadCalibration reads a JSON calibration file over the defaults.
// Fields absent from the file keep their default values.
func LoadCalibration(path string) (Calibration, error) {
	cal := DefaultCalibration()
	data, err := os.ReadFile(path)
	if err != nil {
		return cal, fmt.Errorf("read calibration: %w", err)
	}
	if err := json.Unmarshal(data, &cal); err != nil {
		return cal, fmt.Errorf("parse calibration: %w", err)
	}
	if err := cal.Validate(); err != nil {
		return cal, err
	}
	return cal, nil
}

// Validate rejects calibrations that cannot produce a coherent funnel.
func (c Calibration) Validate() error {
	if c.PaidProbPromoted < 0 || c.PaidProbPromoted > 1 {
		return fmt.Errorf("paid_prob_promoted out of [0,1]: %v", c.PaidProbPromoted)
	}
	if c.PaidProbDefault < 0 || c.PaidProbDefault > 1 {
		return fmt.Errorf("paid_prob_default out of [0,1]: %v", c.PaidProbDefault)
	}
	for name, r := range map[string]Range{
		"natural_impressions_bike": c.NaturalImpressionsBike,
		"natural_impressions_part": c.NaturalImpressionsPart,
		"natural_ctr":              c.NaturalCTR,
		"paid_impressions_bike":    c.PaidImpressionsBike,
		"paid_impressions_part":    c.PaidImpressionsPart,
		"paid_ctr":                 c.PaidCTR,
		"cpc_bike":                 c.CPCBike,
		"cpc_part":                 c.CPCPart,
	} {
		if r.Lo < 0 || r.Hi < r.Lo {
			return fmt.Errorf("%s is not a valid range: [%v, %v]", name, r.Lo, r.Hi)
		}
	}
	statusTotal := c.StatusCompleted + c.StatusCancelled + c.StatusRefunded
	if statusTotal <= 0 {
		return fmt.Errorf("order status weights sum to %v", statusTotal)
	}
	if c.MaxQuantity < 1 {
		return fmt.Errorf("max_quantity must be >= 1, got %d", c.MaxQuantity)
	}
	return nil
}
