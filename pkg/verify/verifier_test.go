// Copyright (C) 2025, Velodata Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package verify

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/velodata/funnelgen/pkg/conversion"
	"github.com/velodata/funnelgen/pkg/log"
	"github.com/velodata/funnelgen/pkg/pipeline"
	"github.com/velodata/funnelgen/pkg/traffic"
)

func testOutput() *pipeline.Output {
	return &pipeline.Output{
		Orders: []conversion.Order{
			{
				OrderID: "O00000001", Status: conversion.StatusCompleted,
				FinalAmount: decimal.NewFromFloat(1000), TotalCost: decimal.NewFromFloat(600),
				ShippingFee: decimal.NewFromFloat(30),
			},
			{
				OrderID: "O00000002", Status: conversion.StatusCompleted,
				FinalAmount: decimal.NewFromFloat(500), TotalCost: decimal.NewFromFloat(300),
				ShippingFee: decimal.NewFromFloat(3),
			},
			{
				// Cancelled orders carry no revenue and must not count.
				OrderID: "O00000003", Status: conversion.StatusCancelled,
				FinalAmount: decimal.Zero, TotalCost: decimal.Zero,
				ShippingFee: decimal.NewFromFloat(30),
			},
		},
		Details: []conversion.OrderDetail{
			{DetailID: "OD00000001", OrderID: "O00000001", Quantity: 2},
			{DetailID: "OD00000002", OrderID: "O00000002", Quantity: 1},
			{DetailID: "OD00000003", OrderID: "O00000003", Quantity: 3},
		},
		Traffic: []traffic.Event{
			{TrafficID: "T00000001", TrafficType: traffic.TypePaid, PromotionCost: decimal.NewFromFloat(50)},
			{TrafficID: "T00000002", TrafficType: traffic.TypePaid, PromotionCost: decimal.NewFromFloat(25)},
			{TrafficID: "T00000003", TrafficType: traffic.TypeNatural, PromotionCost: decimal.Zero},
		},
	}
}

func TestSourceMetrics(t *testing.T) {
	require := require.New(t)

	m := SourceMetrics(testOutput())
	require.Equal("SOURCE", m.Layer)
	require.Equal(2.0, m.OrderCount)
	require.Equal(1500.0, m.Sales)
	require.Equal(900.0, m.Cost)
	require.Equal(33.0, m.Shipping)
	require.Equal(75.0, m.Promotion)
	require.Equal(3.0, m.Quantity, "quantity covers completed orders only")
}

func TestVerifyWithoutDatabase(t *testing.T) {
	require := require.New(t)

	v := New(nil, log.NoOp())
	report, err := v.Verify(context.Background(), testOutput())
	require.NoError(err)
	require.True(report.Pass)
	require.Len(report.Layers, 1)
	require.Empty(report.Comparisons)
	require.Len(report.Financials, 1)
}

func TestFinancialDerivation(t *testing.T) {
	require := require.New(t)

	f := financial(Metrics{Layer: "SOURCE", Sales: 1500, Cost: 900, Shipping: 33, Promotion: 75})

	require.Equal(567.0, f.GrossProfit) // 1500 - 900 - 33
	require.InDelta(37.8, f.GrossRate, 1e-9)
	require.InDelta(5.0, f.PromotionRate, 1e-9)

	// Net deducts promotion plus 2% after-sale, 5% platform, 10% management.
	require.InDelta(567.0-75-30-75-150, f.NetProfit, 1e-9)
}

func TestFinancialZeroSales(t *testing.T) {
	require := require.New(t)

	f := financial(Metrics{Layer: "SOURCE"})
	require.Equal(0.0, f.GrossRate)
	require.Equal(0.0, f.NetRate)
}

func TestReportWriteText(t *testing.T) {
	require := require.New(t)

	v := New(nil, log.NoOp())
	report, err := v.Verify(context.Background(), testOutput())
	require.NoError(err)

	var sb strings.Builder
	require.NoError(report.WriteText(&sb))

	text := sb.String()
	require.Contains(text, "数据一致性对比表")
	require.Contains(text, "SOURCE")
	require.Contains(text, "验证通过")
}
