// Copyright (C) 2025, Velodata Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package conversion

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/velodata/funnelgen/pkg/catalog"
	"github.com/velodata/funnelgen/pkg/config"
	"github.com/velodata/funnelgen/pkg/log"
	"github.com/velodata/funnelgen/pkg/traffic"
)

func testCatalog(stores, productsPerStore int) ([]catalog.Product, map[string]catalog.Product) {
	var products []catalog.Product
	sku := 1
	for s := 1; s <= stores; s++ {
		for p := 0; p < productsPerStore; p++ {
			products = append(products, catalog.Product{
				SKUID:      fmt.Sprintf("SK%08d", sku),
				ProductID:  fmt.Sprintf("P%08d", sku),
				StoreID:    fmt.Sprintf("S%04d", s),
				Platform:   "天猫",
				CategoryL1: "整车-品牌",
				Tier:       config.TierBestseller,
				Price:      decimal.NewFromInt(1200),
				Cost:       decimal.NewFromInt(800),
			})
			sku++
		}
	}
	return products, catalog.Index(products)
}

func testUsers(n int) []catalog.User {
	users := make([]catalog.User, 0, n)
	for i := 1; i <= n; i++ {
		users = append(users, catalog.User{UserID: fmt.Sprintf("U%08d", i)})
	}
	return users
}

// testEvents emits one natural event per product per day with a fixed
// click count.
func testEvents(products []catalog.Product, days []time.Time, clicks int) []traffic.Event {
	var events []traffic.Event
	id := 1
	for _, day := range days {
		for _, p := range products {
			events = append(events, traffic.Event{
				TrafficID:   fmt.Sprintf("T%08d", id),
				Date:        day,
				StoreID:     p.StoreID,
				Platform:    p.Platform,
				SKUID:       p.SKUID,
				ProductID:   p.ProductID,
				CategoryL1:  p.CategoryL1,
				Tier:        p.Tier,
				TrafficType: traffic.TypeNatural,
				Channel:     "搜索",
				Impressions: clicks * 10,
				Clicks:      clicks,
			})
			id++
		}
	}
	return events
}

func testDays(n int) []time.Time {
	days := make([]time.Time, 0, n)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		days = append(days, base.AddDate(0, 0, i))
	}
	return days
}

// twoGroupCatalog lists one product in each of two stores so the engine
// sees exactly two allocation groups per day.
func twoGroupCatalog(platformA, platformB string, tierA, tierB config.Tier) ([]catalog.Product, map[string]catalog.Product) {
	products := []catalog.Product{
		{
			SKUID: "SK00000001", ProductID: "P00000001", StoreID: "S0001",
			Platform: platformA, CategoryL1: "整车-品牌", Tier: tierA,
			Price: decimal.NewFromInt(1200), Cost: decimal.NewFromInt(800),
		},
		{
			SKUID: "SK00000002", ProductID: "P00000002", StoreID: "S0002",
			Platform: platformB, CategoryL1: "整车-品牌", Tier: tierB,
			Price: decimal.NewFromInt(1200), Cost: decimal.NewFromInt(800),
		},
	}
	return products, catalog.Index(products)
}

func ordersBySKU(details []OrderDetail) map[string]int {
	counts := make(map[string]int)
	for _, d := range details {
		counts[d.SKUID]++
	}
	return counts
}

func TestGenerateOrdersHitsTarget(t *testing.T) {
	require := require.New(t)

	// 2 stores × 3 products over 7 days with a target of 50.
	products, index := testCatalog(2, 3)
	days := testDays(7)
	events := testEvents(products, days, 40)

	engine := NewEngine(config.DefaultCalibration(), 2, 1, log.NoOp())
	res, err := engine.GenerateOrders(context.Background(), events, index, testUsers(30), 50, false)
	require.NoError(err)

	// Per-day quota is target/days; the total may undershoot by at most
	// one day's rounding but never overshoots the quota × days.
	require.GreaterOrEqual(len(res.Orders), 44)
	require.LessOrEqual(len(res.Orders), 56)
	require.Equal(int64(0), res.Skips.Total())
	require.Len(res.Details, len(res.Orders))
}

func TestClickTotalsSurviveHandoff(t *testing.T) {
	require := require.New(t)

	products, _ := testCatalog(2, 3)
	tiers := []config.Tier{config.TierBestseller, config.TierLossLeader, config.TierSlowMover}
	for i := range products {
		products[i].Tier = tiers[i%len(tiers)]
	}
	index := catalog.Index(products)
	days := testDays(7)

	dist := traffic.NewDistributor(config.DefaultCalibration(), 2, 11, log.NoOp())
	events, err := dist.Distribute(context.Background(), products, days, 1500, false)
	require.NoError(err)
	require.NotEmpty(events)

	want := make(map[string]int)
	for _, ev := range events {
		want[ev.SKUID+"_"+ev.StoreID] += ev.Clicks
	}

	// The engine's daily aggregation must conserve every group's clicks.
	engine := NewEngine(config.DefaultCalibration(), 1, 11, log.NoOp())
	rng := rand.New(rand.NewPCG(11, 0x1000))
	got := make(map[string]int)
	for _, evs := range groupByDay(events) {
		groups, _ := engine.buildGroups(evs, rng)
		for _, grp := range groups {
			got[grp.SKUID+"_"+grp.StoreID] += grp.Clicks
		}
	}
	for key, clicks := range want {
		require.Equal(clicks, got[key], "clicks for %s", key)
	}
	for key := range got {
		require.Contains(want, key)
	}

	// The same feed converts within the per-day quota bounds.
	res, err := engine.GenerateOrders(context.Background(), events, index, testUsers(30), 50, false)
	require.NoError(err)
	require.GreaterOrEqual(len(res.Orders), 44)
	require.LessOrEqual(len(res.Orders), 56)
}

func TestTierConversionDrivesOrderShare(t *testing.T) {
	require := require.New(t)

	// Identical clicks on the same platform: only the tier conversion
	// range separates the two groups.
	products, index := twoGroupCatalog("天猫", "天猫", config.TierLossLeader, config.TierSlowMover)
	days := testDays(200)
	events := testEvents(products, days, 100)

	engine := NewEngine(config.DefaultCalibration(), 1, 6, log.NoOp())
	res, err := engine.GenerateOrders(context.Background(), events, index, testUsers(50), 4000, false)
	require.NoError(err)
	require.Equal(4000, len(res.Orders))

	counts := ordersBySKU(res.Details)
	require.Greater(counts["SK00000001"], 3*counts["SK00000002"],
		"loss-leader tier must take the larger order share on equal clicks")
}

func TestPlatformConversionDrivesOrderShare(t *testing.T) {
	require := require.New(t)

	// Same tier, equal clicks: 拼多多 converts at 0.08 against 小红书's
	// 0.045, so it must win the larger allocation share.
	products, index := twoGroupCatalog("拼多多", "小红书", config.TierBestseller, config.TierBestseller)
	days := testDays(200)
	events := testEvents(products, days, 100)

	engine := NewEngine(config.DefaultCalibration(), 1, 12, log.NoOp())
	res, err := engine.GenerateOrders(context.Background(), events, index, testUsers(50), 4000, false)
	require.NoError(err)
	require.Equal(4000, len(res.Orders))

	counts := ordersBySKU(res.Details)
	require.Greater(float64(counts["SK00000001"]), 1.3*float64(counts["SK00000002"]))
}

func TestGenerateOrdersDailyQuotaIsExact(t *testing.T) {
	require := require.New(t)

	products, index := testCatalog(2, 5)
	days := testDays(10)
	events := testEvents(products, days, 50)

	const target = 200 // 20 per day, divides evenly
	engine := NewEngine(config.DefaultCalibration(), 1, 3, log.NoOp())
	res, err := engine.GenerateOrders(context.Background(), events, index, testUsers(20), target, false)
	require.NoError(err)
	require.Equal(target, len(res.Orders))

	perDay := make(map[string]int)
	for _, o := range res.Orders {
		perDay[o.OrderTime.Format("2006-01-02")]++
	}
	require.Len(perDay, 10)
	for day, n := range perDay {
		require.Equal(20, n, "day %s quota", day)
	}
}

func TestReferentialIntegrity(t *testing.T) {
	require := require.New(t)

	products, index := testCatalog(3, 4)
	days := testDays(7)
	events := testEvents(products, days, 30)

	userSet := testUsers(25)
	users := make(map[string]bool, len(userSet))
	for _, u := range userSet {
		users[u.UserID] = true
	}

	engine := NewEngine(config.DefaultCalibration(), 1, 5, log.NoOp())
	res, err := engine.GenerateOrders(context.Background(), events, index, userSet, 70, false)
	require.NoError(err)
	require.NotEmpty(res.Orders)

	orders := make(map[string]Order, len(res.Orders))
	for _, o := range res.Orders {
		require.True(users[o.UserID], "order %s references unknown user %s", o.OrderID, o.UserID)
		orders[o.OrderID] = o
	}

	require.Len(res.Details, len(res.Orders))
	for _, d := range res.Details {
		o, ok := orders[d.OrderID]
		require.True(ok, "detail %s references unknown order %s", d.DetailID, d.OrderID)

		p, ok := index[d.SKUID+"_"+o.StoreID]
		require.True(ok, "detail %s references unknown product %s", d.DetailID, d.SKUID)
		require.Equal(p.ProductID, d.ProductID)
		require.True(d.Amount.Equal(d.Price.Mul(decimal.NewFromInt(int64(d.Quantity)))))
	}
}

func TestOrderAmounts(t *testing.T) {
	require := require.New(t)

	products, index := testCatalog(1, 2)
	days := testDays(5)
	events := testEvents(products, days, 30)

	engine := NewEngine(config.DefaultCalibration(), 1, 9, log.NoOp())
	res, err := engine.GenerateOrders(context.Background(), events, index, testUsers(10), 100, false)
	require.NoError(err)
	require.NotEmpty(res.Orders)

	sawCompleted := false
	for _, o := range res.Orders {
		switch o.Status {
		case StatusCompleted:
			sawCompleted = true
			require.True(o.FinalAmount.Equal(o.TotalAmount))
			require.True(o.TotalCost.IsPositive())
		case StatusCancelled, StatusRefunded:
			require.True(o.FinalAmount.IsZero(), "non-completed order %s must not count revenue", o.OrderID)
			require.True(o.TotalCost.IsZero())
		default:
			t.Fatalf("unexpected status %q", o.Status)
		}
		require.False(o.UpdatedAt.Before(o.CreatedAt))
	}
	require.True(sawCompleted)
}

func TestMissingProductIsCountedNotFatal(t *testing.T) {
	require := require.New(t)

	products, index := testCatalog(1, 2)
	days := testDays(3)
	events := testEvents(products, days, 30)

	// Traffic for a product that was never listed.
	ghost := catalog.Product{SKUID: "SK99999999", ProductID: "P99999999", StoreID: "S0001", Platform: "天猫", Tier: config.TierBestseller}
	events = append(events, testEvents([]catalog.Product{ghost}, days, 500)...)

	engine := NewEngine(config.DefaultCalibration(), 1, 2, log.NoOp())
	res, err := engine.GenerateOrders(context.Background(), events, index, testUsers(10), 60, false)
	require.NoError(err)
	require.Positive(res.Skips.MissingProduct)
	require.NotEmpty(res.Orders)
	require.Less(len(res.Orders), 60)
}

func TestZeroClickTrafficIsSkipped(t *testing.T) {
	require := require.New(t)

	products, index := testCatalog(1, 3)
	days := testDays(2)
	events := testEvents(products, days, 0) // impressions but no clicks

	engine := NewEngine(config.DefaultCalibration(), 1, 4, log.NoOp())
	res, err := engine.GenerateOrders(context.Background(), events, index, testUsers(5), 40, false)
	require.NoError(err)
	require.Empty(res.Orders)
	require.Equal(int64(6), res.Skips.ZeroWeight) // 3 groups × 2 days
}

func TestParallelOrderIDsAreUnique(t *testing.T) {
	require := require.New(t)

	products, index := testCatalog(2, 5)
	days := testDays(40)
	events := testEvents(products, days, 60)

	// 5000 orders/day over 40 days forces multiple worker batches.
	engine := NewEngine(config.DefaultCalibration(), 4, 8, log.NoOp())
	res, err := engine.GenerateOrders(context.Background(), events, index, testUsers(100), 200_000, true)
	require.NoError(err)
	require.Equal(200_000, len(res.Orders))

	orderIDs := make(map[string]bool, len(res.Orders))
	for _, o := range res.Orders {
		require.False(orderIDs[o.OrderID], "order ID %s issued twice", o.OrderID)
		orderIDs[o.OrderID] = true
	}

	detailIDs := make(map[string]bool, len(res.Details))
	for _, d := range res.Details {
		require.False(detailIDs[d.DetailID], "detail ID %s issued twice", d.DetailID)
		detailIDs[d.DetailID] = true
	}
}

func TestAllocateQuotaConservesTotal(t *testing.T) {
	require := require.New(t)

	rng := rand.New(rand.NewPCG(1, 1))
	for trial := 0; trial < 100; trial++ {
		n := 1 + rng.IntN(20)
		groups := make([]*conversionGroup, 0, n)
		for i := 0; i < n; i++ {
			groups = append(groups, &conversionGroup{Weight: rng.Float64()*10 + 0.01})
		}

		quota := 1 + rng.IntN(500)
		allocateQuota(groups, quota, rng)

		total := 0
		for _, g := range groups {
			total += g.Allocated
		}
		require.Equal(quota, total)
	}
}

func TestGenerateOrdersEmptyInputs(t *testing.T) {
	require := require.New(t)

	engine := NewEngine(config.DefaultCalibration(), 1, 1, log.NoOp())

	res, err := engine.GenerateOrders(context.Background(), nil, nil, nil, 100, false)
	require.NoError(err)
	require.Empty(res.Orders)

	products, index := testCatalog(1, 1)
	events := testEvents(products, testDays(2), 10)
	res, err = engine.GenerateOrders(context.Background(), events, index, testUsers(3), 0, false)
	require.NoError(err)
	require.Empty(res.Orders)
}
