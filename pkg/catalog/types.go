// Copyright (C) 2025, Velodata Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/velodata/funnelgen/pkg/config"
)

// Product is a concrete sellable SKU listed by one store. Immutable once
// generated; traffic and order records reference it by SKUID/ProductID.
type Product struct {
	SKUID      string
	ProductID  string
	SPUCode    string
	SpecCode   string
	StoreID    string
	Platform   string
	Name       string
	Spec       string
	CategoryL1 string
	CategoryL2 string
	Tier       config.Tier
	Price      decimal.Decimal
	Cost       decimal.Decimal
	Stock      int
	CreatedAt  time.Time
}

// Key is the composite lookup key used by the conversion engine.
func (p Product) Key() string {
	return p.SKUID + "_" + p.StoreID
}

// Store is a storefront on one platform.
type Store struct {
	StoreID   string
	Name      string
	StoreType string // 品牌 or 白牌
	Platform  string
	OpenedAt  time.Time
}

// User is a buyer referenced by orders.
type User struct {
	UserID       string
	Name         string
	Gender       string
	Age          int
	City         string
	RegisteredAt time.Time
}

// Index builds the (sku, store) → product lookup used during conversion.
func Index(products []Product) map[string]Product {
	idx := make(map[string]Product, len(products))
	for _, p := range products {
		idx[p.Key()] = p
	}
	return idx
}
