// Copyright (C) 2025, Velodata Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package catalog

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/velodata/funnelgen/pkg/config"
	"github.com/velodata/funnelgen/pkg/log"
)

// Category tables for the cycling vertical.
var (
	brandBikeSubcats = []string{"品牌公路车", "品牌山地车", "品牌折叠车"}
	whiteBikeSubcats = []string{"白牌公路车", "白牌山地车", "白牌折叠车", "白牌通勤车", "白牌儿童车"}
	gearSubcats      = []string{"头盔", "手套", "骑行服", "骑行裤", "骑行鞋", "眼镜", "水壶", "车灯", "车锁", "码表"}

	brandBikePrice = config.Range{Lo: 800, Hi: 3000}
	whiteBikePrice = config.Range{Lo: 200, Hi: 800}
	gearPrice      = config.Range{Lo: 30, Hi: 300}
)

// SKU attribute options.
var (
	bikeFrames = []string{"铁架", "铝架", "钢架"}
	bikeSpeeds = []string{"7速", "21速", "24速", "27速"}
	bikeSizes  = []string{"24寸", "26寸", "27寸", "29寸"}
	colors     = []string{"黑色", "白色", "红色", "蓝色", "绿色"}
	equipSizes = []string{"S码", "M码", "L码"}
)

var cities = []string{
	"北京", "上海", "广州", "深圳", "杭州", "成都", "重庆", "武汉", "西安", "南京",
	"天津", "苏州", "郑州", "长沙", "东莞", "沈阳", "青岛", "合肥", "佛山", "无锡",
	"宁波", "昆明", "大连", "厦门", "福州", "哈尔滨", "济南", "温州", "石家庄", "南宁",
}

// spuSpec is one sellable variant of an SPU template.
type spuSpec struct {
	Code        string
	Name        string
	PriceFactor float64
}

// spu is a company-internal product template shared across stores.
type spu struct {
	Code       string
	Name       string
	CategoryL1 string
	CategoryL2 string
	BasePrice  float64
	CostRate   float64
	Tier       config.Tier
	Specs      []spuSpec
}

// Generator fabricates stores, users and the SKU catalog. It owns its RNG
// so catalog fabrication is reproducible from a single seed.
type Generator struct {
	rng *rand.Rand
	log log.Logger
}

// NewGenerator creates a catalog generator seeded from the run seed.
func NewGenerator(seed uint64, logger log.Logger) *Generator {
	return &Generator{
		rng: rand.New(rand.NewPCG(seed, 0x636174616c6f67)), // "catalog"
		log: logger,
	}
}

// Stores fabricates storeCount storefronts spread round-robin over the
// supported platforms, alternating brand and white-label shops.
func (g *Generator) Stores(storeCount int) []Store {
	platforms := []string{"京东", "天猫", "抖音", "快手", "微信", "小红书", "拼多多"}

	stores := make([]Store, 0, storeCount)
	for i := 0; i < storeCount; i++ {
		platform := platforms[i%len(platforms)]

		var name string
		if i%2 == 0 {
			name = fmt.Sprintf("品牌旗舰店%d号", i/2+1)
		} else {
			name = fmt.Sprintf("白牌特卖店%d号", i/2+1)
		}

		stores = append(stores, Store{
			StoreID:   fmt.Sprintf("S%04d", i+1),
			Name:      fmt.Sprintf("【%s】%s", platform, name),
			StoreType: storeTypeOf(name),
			Platform:  platform,
			OpenedAt:  g.dateBetween(-3*365, -365),
		})
	}

	g.log.Info("generated stores", zap.Int("count", len(stores)))
	return stores
}

// storeTypeOf classifies a store as brand or white-label by its name.
func storeTypeOf(name string) string {
	for _, kw := range []string{"品牌", "旗舰", "官方", "直营"} {
		if strings.Contains(name, kw) {
			return "品牌"
		}
	}
	return "白牌"
}

// Users fabricates the buyer population. Registration dates land before the
// traffic window so every order has a plausible account age.
func (g *Generator) Users(numUsers, timeSpanDays int) []User {
	earliest := -(timeSpanDays + 180)
	latest := -max(1, timeSpanDays/4)

	users := make([]User, 0, numUsers)
	for i := 1; i <= numUsers; i++ {
		gender := "男"
		if g.rng.IntN(2) == 1 {
			gender = "女"
		}
		users = append(users, User{
			UserID:       fmt.Sprintf("U%08d", i),
			Name:         fmt.Sprintf("用户%d", i),
			Gender:       gender,
			Age:          18 + g.rng.IntN(48),
			City:         cities[g.rng.IntN(len(cities))],
			RegisteredAt: g.dateBetween(earliest, latest),
		})
	}

	g.log.Info("generated users", zap.Int("count", len(users)))
	return users
}

// Products lists the full SPU library into every store of the matching type
// and expands each SPU into its SKUs with globally unique platform IDs.
func (g *Generator) Products(stores []Store) []Product {
	library := g.buildSPULibrary()
	g.log.Info("built SPU library",
		zap.Int("brand", len(library["品牌"])),
		zap.Int("white", len(library["白牌"])))

	var products []Product
	productID := 1
	skuID := 1

	for _, store := range stores {
		for _, s := range library[store.StoreType] {
			platformProductID := fmt.Sprintf("P%08d", productID)
			productID++

			for _, spec := range s.Specs {
				price := decimal.NewFromFloat(s.BasePrice * spec.PriceFactor).Round(2)
				cost := price.Mul(decimal.NewFromFloat(s.CostRate)).Round(2)

				products = append(products, Product{
					SKUID:      fmt.Sprintf("SK%08d", skuID),
					ProductID:  platformProductID,
					SPUCode:    s.Code,
					SpecCode:   spec.Code,
					StoreID:    store.StoreID,
					Platform:   store.Platform,
					Name:       s.Name,
					Spec:       spec.Name,
					CategoryL1: s.CategoryL1,
					CategoryL2: s.CategoryL2,
					Tier:       s.Tier,
					Price:      price,
					Cost:       cost,
					Stock:      50 + g.rng.IntN(251),
					CreatedAt:  store.OpenedAt,
				})
				skuID++
			}
		}
	}

	g.log.Info("generated catalog", zap.Int("skus", len(products)))
	return products
}

// buildSPULibrary creates the brand and white-label SPU pools.
func (g *Generator) buildSPULibrary() map[string][]spu {
	library := map[string][]spu{"品牌": {}, "白牌": {}}

	for _, sub := range brandBikeSubcats {
		for i := 1; i <= 5; i++ {
			library["品牌"] = append(library["品牌"],
				g.createSPU("品牌", sub, i, "整车-品牌", brandBikePrice, true))
		}
	}
	for _, sub := range gearSubcats {
		for i := 1; i <= 2; i++ {
			library["品牌"] = append(library["品牌"],
				g.createSPU("品牌", sub, i, "骑行装备", gearPrice, false))
		}
	}
	for _, sub := range whiteBikeSubcats {
		for i := 1; i <= 8; i++ {
			library["白牌"] = append(library["白牌"],
				g.createSPU("白牌", sub, i, "整车-白牌", whiteBikePrice, true))
		}
	}
	for _, sub := range gearSubcats {
		for i := 1; i <= 3; i++ {
			library["白牌"] = append(library["白牌"],
				g.createSPU("白牌", sub, i, "骑行装备", gearPrice, false))
		}
	}

	return library
}

func (g *Generator) createSPU(brandType, subCat string, index int, categoryL1 string, priceRange config.Range, isBike bool) spu {
	tier := DrawTier(g.rng)

	categoryType := categoryL1
	if categoryL1 == "骑行装备" {
		categoryType = "骑行装备-" + brandType
	}
	margin := DrawMargin(g.rng, tier, categoryType)

	s := spu{
		Code:       fmt.Sprintf("%s-%s-%02d", brandType, subCat, index),
		Name:       subCat,
		CategoryL1: categoryL1,
		CategoryL2: subCat,
		BasePrice:  roundTo2(uniform(g.rng, priceRange)),
		CostRate:   1 - margin,
		Tier:       tier,
	}
	if isBike {
		s.Specs = g.bikeSpecs(s.Code)
	} else {
		s.Specs = g.equipSpecs(s.Code)
	}
	return s
}

// bikeSpecs fixes frame/speed/size per SPU and varies color across 3 SKUs.
func (g *Generator) bikeSpecs(spuCode string) []spuSpec {
	frame := bikeFrames[g.rng.IntN(len(bikeFrames))]
	speed := bikeSpeeds[g.rng.IntN(len(bikeSpeeds))]
	size := bikeSizes[g.rng.IntN(len(bikeSizes))]

	factor := 1.0
	switch frame {
	case "钢架":
		factor = 1.1
	case "铝架":
		factor = 1.2
	}

	picked := g.sampleColors(3)
	specs := make([]spuSpec, 0, len(picked))
	for _, color := range picked {
		specs = append(specs, spuSpec{
			Code:        fmt.Sprintf("%s-%s-%s-%s-%s", spuCode, frame, speed, size, color),
			Name:        fmt.Sprintf("%s/%s/%s/%s", frame, speed, size, color),
			PriceFactor: factor,
		})
	}
	return specs
}

// equipSpecs fixes the color per SPU and varies size.
func (g *Generator) equipSpecs(spuCode string) []spuSpec {
	color := colors[g.rng.IntN(len(colors))]

	specs := make([]spuSpec, 0, len(equipSizes))
	for _, size := range equipSizes {
		specs = append(specs, spuSpec{
			Code:        fmt.Sprintf("%s-%s-%s", spuCode, size, color),
			Name:        fmt.Sprintf("%s/%s", size, color),
			PriceFactor: 1.0,
		})
	}
	return specs
}

func (g *Generator) sampleColors(n int) []string {
	shuffled := make([]string, len(colors))
	copy(shuffled, colors)
	g.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:n]
}

func (g *Generator) dateBetween(minDays, maxDays int) time.Time {
	span := maxDays - minDays
	offset := minDays + g.rng.IntN(span+1)
	return time.Now().AddDate(0, 0, offset).Truncate(24 * time.Hour)
}

func roundTo2(v float64) float64 {
	d, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return d
}
