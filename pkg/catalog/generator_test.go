// Copyright (C) 2025, Velodata Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/velodata/funnelgen/pkg/log"
)

func TestStoresRoundRobinPlatforms(t *testing.T) {
	require := require.New(t)

	gen := NewGenerator(1, log.NoOp())
	stores := gen.Stores(4)
	require.Len(stores, 4)

	require.Equal("S0001", stores[0].StoreID)
	require.Equal("京东", stores[0].Platform)
	require.Equal("天猫", stores[1].Platform)
	require.Equal("抖音", stores[2].Platform)
	require.Equal("快手", stores[3].Platform)

	// Brand and white-label shops alternate.
	require.Equal("品牌", stores[0].StoreType)
	require.Equal("白牌", stores[1].StoreType)
	require.Equal("品牌", stores[2].StoreType)
	require.Equal("白牌", stores[3].StoreType)
}

func TestUsersRegistrationWindow(t *testing.T) {
	require := require.New(t)

	const span = 90
	gen := NewGenerator(1, log.NoOp())
	users := gen.Users(200, span)
	require.Len(users, 200)

	now := time.Now()
	earliest := now.AddDate(0, 0, -(span + 180 + 1))
	latest := now.AddDate(0, 0, -span/4+1)

	for _, u := range users {
		require.True(u.RegisteredAt.After(earliest), "user %s registered too early", u.UserID)
		require.True(u.RegisteredAt.Before(latest), "user %s registered too late", u.UserID)
		require.GreaterOrEqual(u.Age, 18)
		require.LessOrEqual(u.Age, 65)
		require.NotEmpty(u.City)
	}
	require.Equal("U00000001", users[0].UserID)
}

func TestProductsExpandSPULibrary(t *testing.T) {
	require := require.New(t)

	gen := NewGenerator(1, log.NoOp())
	stores := gen.Stores(2) // one brand, one white-label
	products := gen.Products(stores)
	require.NotEmpty(products)

	// Brand library: 3 bike subcats × 5 + 10 gear subcats × 2 = 35 SPUs.
	// White library: 5 bike subcats × 8 + 10 gear subcats × 3 = 70 SPUs.
	// Bikes carry 3 SKUs each, gear carries 3 sizes each.
	brandSKUs := 0
	whiteSKUs := 0
	for _, p := range products {
		switch p.StoreID {
		case stores[0].StoreID:
			brandSKUs++
		case stores[1].StoreID:
			whiteSKUs++
		}
	}
	require.Equal(35*3, brandSKUs)
	require.Equal(70*3, whiteSKUs)

	seen := make(map[string]bool)
	for _, p := range products {
		require.False(seen[p.SKUID], "duplicate SKU ID %s", p.SKUID)
		seen[p.SKUID] = true

		require.True(p.Cost.LessThan(p.Price), "cost must undercut price for %s", p.SKUID)
		require.True(p.Cost.IsPositive())
		require.GreaterOrEqual(p.Stock, 50)
		require.LessOrEqual(p.Stock, 300)
		require.NotEmpty(p.Tier)
	}
}

func TestGeneratorIsDeterministic(t *testing.T) {
	require := require.New(t)

	a := NewGenerator(42, log.NoOp())
	b := NewGenerator(42, log.NoOp())

	storesA := a.Stores(4)
	storesB := b.Stores(4)
	require.Equal(storesA, storesB)

	productsA := a.Products(storesA)
	productsB := b.Products(storesB)
	require.Equal(productsA, productsB)
}

func TestIndexKeysBySKUAndStore(t *testing.T) {
	require := require.New(t)

	gen := NewGenerator(1, log.NoOp())
	stores := gen.Stores(2)
	products := gen.Products(stores)

	idx := Index(products)
	require.Len(idx, len(products))

	p := products[0]
	got, ok := idx[p.SKUID+"_"+p.StoreID]
	require.True(ok)
	require.Equal(p, got)
}
