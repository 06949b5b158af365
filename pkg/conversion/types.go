// Copyright (C) 2025, Velodata Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package conversion

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses.
const (
	StatusCompleted = "已完成"
	StatusCancelled = "已取消"
	StatusRefunded  = "退款"
)

// Payment methods.
const (
	PayAlipay   = "支付宝"
	PayWeChat   = "微信"
	PayBankCard = "银行卡"
)

// Traffic-source labels stamped onto orders.
const (
	SourcePaid      = "付费推广"
	SourceSearch    = "搜索"
	SourceRecommend = "推荐"
	SourceDirect    = "直接访问"
)

// Order is a purchase materialized from traffic. Immutable once created.
type Order struct {
	OrderID        string
	UserID         string
	StoreID        string
	Platform       string
	OrderTime      time.Time
	Status         string
	PaymentMethod  string
	TrafficSource  string
	TotalAmount    decimal.Decimal // merchandise total
	DiscountAmount decimal.Decimal
	ShippingFee    decimal.Decimal
	FinalAmount    decimal.Decimal // TotalAmount for completed orders, zero otherwise
	TotalCost      decimal.Decimal // cost for completed orders, zero otherwise
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OrderDetail is one line of an order. Belongs to exactly one Order via
// OrderID.
type OrderDetail struct {
	DetailID  string
	OrderID   string
	SKUID     string
	ProductID string
	Quantity  int
	Price     decimal.Decimal
	Amount    decimal.Decimal // Price × Quantity
}

// SkipReason classifies conversions that were dropped instead of becoming
// orders. Dropping is acceptable for synthetic data but must be counted.
type SkipReason string

const (
	SkipMissingProduct SkipReason = "missing_product"
	SkipZeroWeight     SkipReason = "zero_weight"
)

// SkipStats counts dropped conversions by reason.
type SkipStats struct {
	MissingProduct int64
	ZeroWeight     int64
}

// Total is the number of dropped conversions.
func (s SkipStats) Total() int64 {
	return s.MissingProduct + s.ZeroWeight
}

func (s *SkipStats) add(other SkipStats) {
	s.MissingProduct += other.MissingProduct
	s.ZeroWeight += other.ZeroWeight
}

// Result is the merged output of a conversion run.
type Result struct {
	Orders  []Order
	Details []OrderDetail
	Skips   SkipStats
}
