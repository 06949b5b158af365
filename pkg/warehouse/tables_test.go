// Copyright (C) 2025, Velodata Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package warehouse

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/velodata/funnelgen/pkg/catalog"
	"github.com/velodata/funnelgen/pkg/config"
	"github.com/velodata/funnelgen/pkg/conversion"
	"github.com/velodata/funnelgen/pkg/pipeline"
	"github.com/velodata/funnelgen/pkg/traffic"
)

func testOutput() *pipeline.Output {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return &pipeline.Output{
		RunID: "test-run",
		Stores: []catalog.Store{{
			StoreID: "S0001", Name: "【京东】品牌旗舰店1号", StoreType: "品牌",
			Platform: "京东", OpenedAt: day.AddDate(-1, 0, 0),
		}},
		Users: []catalog.User{{
			UserID: "U00000001", Name: "用户1", Gender: "女", Age: 30,
			City: "上海", RegisteredAt: day.AddDate(0, -6, 0),
		}},
		Products: []catalog.Product{{
			SKUID: "SK00000001", ProductID: "P00000001", SPUCode: "品牌-品牌公路车-01",
			SpecCode: "品牌-品牌公路车-01-铝架-21速-26寸-黑色", StoreID: "S0001",
			Platform: "京东", Name: "品牌公路车", Spec: "铝架/21速/26寸/黑色",
			CategoryL1: "整车-品牌", CategoryL2: "品牌公路车", Tier: config.TierBestseller,
			Price: decimal.NewFromFloat(1888.00), Cost: decimal.NewFromFloat(1300.50),
			Stock: 120, CreatedAt: day.AddDate(-1, 0, 0),
		}},
		Traffic: []traffic.Event{
			{
				TrafficID: "T00000001", Date: day, StoreID: "S0001", Platform: "京东",
				SKUID: "SK00000001", ProductID: "P00000001", CategoryL1: "整车-品牌",
				CategoryL2: "品牌公路车", Tier: config.TierBestseller,
				TrafficType: traffic.TypeNatural, Channel: "搜索",
				Impressions: 400, Clicks: 32, CTR: 8.0,
				PromotionCost: decimal.Zero, CPC: decimal.Zero,
			},
			{
				TrafficID: "T00000002", Date: day, StoreID: "S0001", Platform: "京东",
				SKUID: "SK00000001", ProductID: "P00000001", CategoryL1: "整车-品牌",
				CategoryL2: "品牌公路车", Tier: config.TierBestseller,
				TrafficType: traffic.TypePaid, Channel: "京东快车",
				Impressions: 150, Clicks: 5, CTR: 3.33,
				PromotionCost: decimal.NewFromFloat(12.00), CPC: decimal.NewFromFloat(0.60),
			},
		},
		Orders: []conversion.Order{{
			OrderID: "O00000001", UserID: "U00000001", StoreID: "S0001", Platform: "京东",
			OrderTime: day.Add(10 * time.Hour), Status: conversion.StatusCompleted,
			PaymentMethod: conversion.PayAlipay, TrafficSource: conversion.SourceSearch,
			TotalAmount: decimal.NewFromFloat(1888.00), DiscountAmount: decimal.Zero,
			ShippingFee: decimal.NewFromFloat(30.00), FinalAmount: decimal.NewFromFloat(1888.00),
			TotalCost: decimal.NewFromFloat(1300.50), CreatedAt: day.Add(10 * time.Hour),
			UpdatedAt: day.Add(34 * time.Hour),
		}},
		Details: []conversion.OrderDetail{{
			DetailID: "OD00000001", OrderID: "O00000001", SKUID: "SK00000001",
			ProductID: "P00000001", Quantity: 1,
			Price: decimal.NewFromFloat(1888.00), Amount: decimal.NewFromFloat(1888.00),
		}},
	}
}

func TestTablesShapes(t *testing.T) {
	require := require.New(t)

	tables := Tables(testOutput(), 1)
	require.Len(tables, 9)

	byName := make(map[string]Table, len(tables))
	for _, tab := range tables {
		byName[tab.Name] = tab

		require.Len(tab.Columns, len(tab.Header), "%s header/column mismatch", tab.Name)
		require.NotEmpty(tab.DDL)
		for _, row := range tab.Rows {
			require.Len(row, len(tab.Header), "%s row width", tab.Name)
		}
	}

	require.Len(byName["ods_stores"].Rows, 1)
	require.Len(byName["ods_products"].Rows, 1)
	require.Len(byName["ods_users"].Rows, 1)
	require.Len(byName["ods_orders"].Rows, 1)
	require.Len(byName["ods_order_details"].Rows, 1)
	require.Len(byName["ods_inventory"].Rows, 1)
}

func TestPromotionTableHoldsPaidTrafficOnly(t *testing.T) {
	require := require.New(t)

	tables := Tables(testOutput(), 1)
	var promo, organic Table
	for _, tab := range tables {
		switch tab.Name {
		case "ods_promotion":
			promo = tab
		case "ods_product_traffic":
			organic = tab
		}
	}

	require.Len(promo.Rows, 1)
	require.Equal("PM00000001", promo.Rows[0][0])
	require.Equal("12.00", promo.Rows[0][8]) // cost column

	require.Len(organic.Rows, 1)
	require.Equal("SK00000001", organic.Rows[0][3])
}

func TestStoreTrafficAggregates(t *testing.T) {
	require := require.New(t)

	tables := Tables(testOutput(), 1)
	for _, tab := range tables {
		if tab.Name != "ods_traffic" {
			continue
		}
		require.Len(tab.Rows, 1) // one store-day
		row := tab.Rows[0]
		require.Equal("2025-06-01", row[0])
		require.Equal("S0001", row[1])
		// 37 total clicks → 29 visitors at the fixed 0.8 ratio.
		require.Equal("29", row[3])
		return
	}
	t.Fatal("ods_traffic table missing")
}

func TestTablesAreDeterministicPerSeed(t *testing.T) {
	require := require.New(t)

	a := Tables(testOutput(), 7)
	b := Tables(testOutput(), 7)
	require.Equal(a, b)
}
