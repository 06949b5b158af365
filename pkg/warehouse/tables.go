// Copyright (C) 2025, Velodata Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package warehouse

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"time"

	"github.com/velodata/funnelgen/pkg/pipeline"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "2006-01-02 15:04:05"
)

// Table is one warehouse table in both of its shapes: the CSV file the
// generator writes (Header, in the source-system column names) and the
// MySQL table the loader creates (Columns + DDL). Rows are shared, so
// file and database always agree.
type Table struct {
	Name    string   // table name, also the CSV base name
	Header  []string // CSV header row
	Columns []string // database column names, aligned with Header
	DDL     string   // CREATE TABLE body (columns only)
	Rows    [][]string
}

// CSVName is the file name the table is exported under.
func (t Table) CSVName() string {
	return t.Name + ".csv"
}

// Tables flattens a pipeline output into the nine ODS-layer tables.
// Derived columns that the funnel itself does not produce (favorites,
// add-to-cart, store session metrics) are sampled here from a stream
// keyed off the run seed, so repeated exports of the same output match.
func Tables(out *pipeline.Output, seed uint64) []Table {
	rng := rand.New(rand.NewPCG(seed, 0x77617265686f7573))
	return []Table{
		storesTable(out),
		productsTable(out),
		usersTable(out),
		ordersTable(out),
		orderDetailsTable(out),
		promotionTable(out),
		productTrafficTable(out, rng),
		storeTrafficTable(out, rng),
		inventoryTable(out),
	}
}

func storesTable(out *pipeline.Output) Table {
	rows := make([][]string, 0, len(out.Stores))
	for _, s := range out.Stores {
		rows = append(rows, []string{
			s.StoreID, s.Name, s.StoreType, s.Platform,
			s.OpenedAt.Format(dateLayout),
		})
	}
	return Table{
		Name:    "ods_stores",
		Header:  []string{"店铺ID", "店铺名称", "店铺类型", "平台", "开店日期"},
		Columns: []string{"store_id", "store_name", "store_type", "platform", "open_date"},
		DDL: `store_id VARCHAR(16) NOT NULL,
store_name VARCHAR(128) NOT NULL,
store_type VARCHAR(16) NOT NULL,
platform VARCHAR(32) NOT NULL,
open_date DATE NOT NULL,
PRIMARY KEY (store_id)`,
		Rows: rows,
	}
}

func productsTable(out *pipeline.Output) Table {
	rows := make([][]string, 0, len(out.Products))
	for _, p := range out.Products {
		rows = append(rows, []string{
			p.SKUID, p.ProductID, p.SPUCode, p.SpecCode,
			p.StoreID, p.Platform, p.Name, p.Spec,
			p.CategoryL1, p.CategoryL2, string(p.Tier),
			p.Price.StringFixed(2), p.Cost.StringFixed(2),
			strconv.Itoa(p.Stock), p.CreatedAt.Format(dateLayout),
		})
	}
	return Table{
		Name: "ods_products",
		Header: []string{
			"SKU_ID", "商品ID", "产品编码", "规格编码", "店铺ID", "平台",
			"商品名称", "规格", "一级类目", "二级类目", "商品分层",
			"售价", "成本", "库存", "创建时间",
		},
		Columns: []string{
			"sku_id", "product_id", "spu_code", "spec_code", "store_id", "platform",
			"product_name", "spec", "category_l1", "category_l2", "tier",
			"price", "cost", "stock", "create_time",
		},
		DDL: `sku_id VARCHAR(16) NOT NULL,
product_id VARCHAR(16) NOT NULL,
spu_code VARCHAR(64) NOT NULL,
spec_code VARCHAR(64) NOT NULL,
store_id VARCHAR(16) NOT NULL,
platform VARCHAR(32) NOT NULL,
product_name VARCHAR(128) NOT NULL,
spec VARCHAR(128) NOT NULL,
category_l1 VARCHAR(32) NOT NULL,
category_l2 VARCHAR(32) NOT NULL,
tier VARCHAR(16) NOT NULL,
price DECIMAL(12,2) NOT NULL,
cost DECIMAL(12,2) NOT NULL,
stock INT NOT NULL,
create_time DATE NOT NULL,
PRIMARY KEY (sku_id, store_id)`,
		Rows: rows,
	}
}

func usersTable(out *pipeline.Output) Table {
	rows := make([][]string, 0, len(out.Users))
	for _, u := range out.Users {
		rows = append(rows, []string{
			u.UserID, u.Name, u.Gender, strconv.Itoa(u.Age), u.City,
			u.RegisteredAt.Format(dateLayout),
		})
	}
	return Table{
		Name:    "ods_users",
		Header:  []string{"用户ID", "用户名", "性别", "年龄", "城市", "注册日期"},
		Columns: []string{"user_id", "user_name", "gender", "age", "city", "register_date"},
		DDL: `user_id VARCHAR(16) NOT NULL,
user_name VARCHAR(64) NOT NULL,
gender VARCHAR(8) NOT NULL,
age INT NOT NULL,
city VARCHAR(32) NOT NULL,
register_date DATE NOT NULL,
PRIMARY KEY (user_id)`,
		Rows: rows,
	}
}

func ordersTable(out *pipeline.Output) Table {
	rows := make([][]string, 0, len(out.Orders))
	for _, o := range out.Orders {
		rows = append(rows, []string{
			o.OrderID, o.UserID, o.StoreID, o.Platform,
			o.OrderTime.Format(timeLayout), o.Status,
			o.TotalAmount.StringFixed(2), o.DiscountAmount.StringFixed(2),
			o.ShippingFee.StringFixed(2), o.FinalAmount.StringFixed(2),
			o.TotalCost.StringFixed(2), o.PaymentMethod, o.TrafficSource,
			o.CreatedAt.Format(timeLayout), o.UpdatedAt.Format(timeLayout),
		})
	}
	return Table{
		Name: "ods_orders",
		Header: []string{
			"订单ID", "用户ID", "店铺ID", "平台", "下单时间", "订单状态",
			"商品总额", "优惠金额", "运费", "实付金额", "成本总额",
			"支付方式", "流量来源", "创建时间", "更新时间",
		},
		Columns: []string{
			"order_id", "user_id", "store_id", "platform", "order_time", "order_status",
			"total_amount", "discount_amount", "shipping_fee", "final_amount", "total_cost",
			"payment_method", "traffic_source", "create_time", "update_time",
		},
		DDL: `order_id VARCHAR(16) NOT NULL,
user_id VARCHAR(16) NOT NULL,
store_id VARCHAR(16) NOT NULL,
platform VARCHAR(32) NOT NULL,
order_time DATETIME NOT NULL,
order_status VARCHAR(16) NOT NULL,
total_amount DECIMAL(12,2) NOT NULL,
discount_amount DECIMAL(12,2) NOT NULL,
shipping_fee DECIMAL(12,2) NOT NULL,
final_amount DECIMAL(12,2) NOT NULL,
total_cost DECIMAL(12,2) NOT NULL,
payment_method VARCHAR(16) NOT NULL,
traffic_source VARCHAR(16) NOT NULL,
create_time DATETIME NOT NULL,
update_time DATETIME NOT NULL,
PRIMARY KEY (order_id)`,
		Rows: rows,
	}
}

func orderDetailsTable(out *pipeline.Output) Table {
	rows := make([][]string, 0, len(out.Details))
	for _, d := range out.Details {
		rows = append(rows, []string{
			d.DetailID, d.OrderID, d.SKUID, d.ProductID,
			strconv.Itoa(d.Quantity), d.Price.StringFixed(2), d.Amount.StringFixed(2),
		})
	}
	return Table{
		Name:    "ods_order_details",
		Header:  []string{"订单明细ID", "订单ID", "SKU_ID", "商品ID", "数量", "单价", "金额"},
		Columns: []string{"order_detail_id", "order_id", "sku_id", "product_id", "quantity", "price", "amount"},
		DDL: `order_detail_id VARCHAR(16) NOT NULL,
order_id VARCHAR(16) NOT NULL,
sku_id VARCHAR(16) NOT NULL,
product_id VARCHAR(16) NOT NULL,
quantity INT NOT NULL,
price DECIMAL(12,2) NOT NULL,
amount DECIMAL(12,2) NOT NULL,
PRIMARY KEY (order_detail_id)`,
		Rows: rows,
	}
}

// promotionTable is the paid slice of the traffic stream. Promotion IDs
// are assigned at export time, in stream order.
func promotionTable(out *pipeline.Output) Table {
	var rows [][]string
	seq := 1
	for _, e := range out.Traffic {
		if !e.IsPaid() {
			continue
		}
		rows = append(rows, []string{
			fmt.Sprintf("PM%08d", seq),
			e.Date.Format(dateLayout), e.StoreID, e.Platform, e.ProductID,
			e.CategoryL1, e.CategoryL2, e.Channel,
			e.PromotionCost.StringFixed(2),
			strconv.Itoa(e.Impressions), strconv.Itoa(e.Clicks),
			formatPercent(e.CTR),
		})
		seq++
	}
	cols := []string{
		"promotion_id", "date", "store_id", "platform", "product_id",
		"category_l1", "category_l2", "channel", "cost",
		"impressions", "clicks", "ctr",
	}
	return Table{
		Name:    "ods_promotion",
		Header:  cols,
		Columns: cols,
		DDL: `promotion_id VARCHAR(16) NOT NULL,
date DATE NOT NULL,
store_id VARCHAR(16) NOT NULL,
platform VARCHAR(32) NOT NULL,
product_id VARCHAR(16) NOT NULL,
category_l1 VARCHAR(32) NOT NULL,
category_l2 VARCHAR(32) NOT NULL,
channel VARCHAR(32) NOT NULL,
cost DECIMAL(12,2) NOT NULL,
impressions INT NOT NULL,
clicks INT NOT NULL,
ctr DECIMAL(8,2) NOT NULL,
PRIMARY KEY (promotion_id)`,
		Rows: rows,
	}
}

// productTrafficTable is the organic slice of the traffic stream, with
// browse-depth columns (favorites, add-to-cart) sampled as fixed
// fractions of clicks.
func productTrafficTable(out *pipeline.Output, rng *rand.Rand) Table {
	var rows [][]string
	for _, e := range out.Traffic {
		if e.IsPaid() {
			continue
		}
		favorites := int(float64(e.Clicks) * uniform(rng, 0.1, 0.3))
		addToCart := int(float64(e.Clicks) * uniform(rng, 0.2, 0.5))
		rows = append(rows, []string{
			e.Date.Format(dateLayout), e.StoreID, e.Platform, e.SKUID, e.ProductID,
			e.CategoryL1, e.CategoryL2, e.Channel,
			strconv.Itoa(e.Impressions), strconv.Itoa(e.Clicks),
			strconv.Itoa(favorites), strconv.Itoa(addToCart),
		})
	}
	cols := []string{
		"date", "store_id", "platform", "sku_id", "product_id",
		"category_l1", "category_l2", "channel", "impressions", "clicks",
		"favorites", "add_to_cart",
	}
	return Table{
		Name:    "ods_product_traffic",
		Header:  cols,
		Columns: cols,
		DDL: `date DATE NOT NULL,
store_id VARCHAR(16) NOT NULL,
platform VARCHAR(32) NOT NULL,
sku_id VARCHAR(16) NOT NULL,
product_id VARCHAR(16) NOT NULL,
category_l1 VARCHAR(32) NOT NULL,
category_l2 VARCHAR(32) NOT NULL,
channel VARCHAR(32) NOT NULL,
impressions INT NOT NULL,
clicks INT NOT NULL,
favorites INT NOT NULL,
add_to_cart INT NOT NULL`,
		Rows: rows,
	}
}

type storeDayKey struct {
	date     string
	storeID  string
	platform string
}

type storeDayAgg struct {
	impressions int
	clicks      int
}

// storeTrafficTable rolls the full traffic stream up to store-day
// sessions. Visitor and page-view counts are deterministic fractions of
// clicks; stay time and bounce rate are sampled.
func storeTrafficTable(out *pipeline.Output, rng *rand.Rand) Table {
	agg := make(map[storeDayKey]*storeDayAgg)
	for _, e := range out.Traffic {
		k := storeDayKey{e.Date.Format(dateLayout), e.StoreID, e.Platform}
		a := agg[k]
		if a == nil {
			a = &storeDayAgg{}
			agg[k] = a
		}
		a.impressions += e.Impressions
		a.clicks += e.Clicks
	}

	keys := make([]storeDayKey, 0, len(agg))
	for k := range agg {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.date != b.date {
			return a.date < b.date
		}
		if a.storeID != b.storeID {
			return a.storeID < b.storeID
		}
		return a.platform < b.platform
	})

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		a := agg[k]
		visitors := int(float64(a.clicks) * 0.8)
		rows = append(rows, []string{
			k.date, k.storeID, k.platform,
			strconv.Itoa(visitors),
			strconv.Itoa(int(float64(a.clicks) * 1.5)),
			strconv.Itoa(int(float64(visitors) * 0.4)),
			strconv.Itoa(int(float64(visitors) * 0.3)),
			strconv.Itoa(int(float64(visitors) * 0.2)),
			strconv.Itoa(int(float64(visitors) * 0.1)),
			formatPercent(uniform(rng, 60, 300)),
			formatPercent(uniform(rng, 30, 70)),
		})
	}
	cols := []string{
		"date", "store_id", "platform", "visitors", "page_views",
		"search_traffic", "recommend_traffic", "direct_traffic", "other_traffic",
		"avg_stay_time", "bounce_rate",
	}
	return Table{
		Name:    "ods_traffic",
		Header:  cols,
		Columns: cols,
		DDL: `date DATE NOT NULL,
store_id VARCHAR(16) NOT NULL,
platform VARCHAR(32) NOT NULL,
visitors INT NOT NULL,
page_views INT NOT NULL,
search_traffic INT NOT NULL,
recommend_traffic INT NOT NULL,
direct_traffic INT NOT NULL,
other_traffic INT NOT NULL,
avg_stay_time DECIMAL(8,2) NOT NULL,
bounce_rate DECIMAL(8,2) NOT NULL`,
		Rows: rows,
	}
}

// inventoryTable records one stock-in movement per SKU, dated at the
// earliest user registration so every later order postdates it.
func inventoryTable(out *pipeline.Output) Table {
	opening := time.Now()
	for _, u := range out.Users {
		if u.RegisteredAt.Before(opening) {
			opening = u.RegisteredAt
		}
	}
	openingDate := opening.Format(dateLayout)

	rows := make([][]string, 0, len(out.Products))
	for i, p := range out.Products {
		rows = append(rows, []string{
			fmt.Sprintf("INV%08d", i+1),
			openingDate, p.SKUID, p.StoreID,
			"入库", strconv.Itoa(p.Stock), strconv.Itoa(p.Stock), "初始库存",
		})
	}
	cols := []string{
		"inventory_id", "date", "product_id", "store_id",
		"change_type", "change_quantity", "stock_quantity", "remark",
	}
	return Table{
		Name:    "ods_inventory",
		Header:  cols,
		Columns: cols,
		DDL: `inventory_id VARCHAR(16) NOT NULL,
date DATE NOT NULL,
product_id VARCHAR(16) NOT NULL,
store_id VARCHAR(16) NOT NULL,
change_type VARCHAR(16) NOT NULL,
change_quantity INT NOT NULL,
stock_quantity INT NOT NULL,
remark VARCHAR(64) NOT NULL,
PRIMARY KEY (inventory_id)`,
		Rows: rows,
	}
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
