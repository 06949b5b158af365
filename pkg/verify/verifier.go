// Copyright (C) 2025, Velodata Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package verify

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/velodata/funnelgen/pkg/config"
	"github.com/velodata/funnelgen/pkg/conversion"
	"github.com/velodata/funnelgen/pkg/log"
	"github.com/velodata/funnelgen/pkg/pipeline"
)

// DefaultTolerance is the absolute difference below which two layer
// values count as equal. One unit absorbs decimal-vs-float rounding in
// downstream aggregations.
const DefaultTolerance = 1.0

// Metric names, matching the report vocabulary of the BI side.
const (
	MetricOrderCount = "订单数"
	MetricSales      = "销售额"
	MetricCost       = "成本"
	MetricShipping   = "运费"
	MetricPromotion  = "推广费"
	MetricQuantity   = "销量"
)

// Metrics is one layer's aggregate view of the funnel output. Sales,
// cost and shipping cover completed orders only.
type Metrics struct {
	Layer      string
	OrderCount float64
	Sales      float64
	Cost       float64
	Shipping   float64
	Promotion  float64
	Quantity   float64
}

func (m Metrics) get(metric string) float64 {
	switch metric {
	case MetricOrderCount:
		return m.OrderCount
	case MetricSales:
		return m.Sales
	case MetricCost:
		return m.Cost
	case MetricShipping:
		return m.Shipping
	case MetricPromotion:
		return m.Promotion
	case MetricQuantity:
		return m.Quantity
	}
	return 0
}

// Financial derives the profit view of a layer using the fixed
// operating fee rates.
type Financial struct {
	Layer         string
	GrossProfit   float64
	GrossRate     float64 // percent of sales
	Promotion     float64
	PromotionRate float64 // percent of sales
	NetProfit     float64
	NetRate       float64 // percent of sales
}

// Comparison is one adjacent-layer metric check.
type Comparison struct {
	From, To string
	Metric   string
	A, B     float64
	Diff     float64
	Pass     bool
}

// Report is the full result of a verification run.
type Report struct {
	Layers      []Metrics
	Financials  []Financial
	Comparisons []Comparison
	Pass        bool
}

// Verifier checks that every warehouse layer agrees with the generated
// source data. Layers beyond ODS are built by external BI jobs, so any
// of them may be absent; absent layers are skipped, not failed.
type Verifier struct {
	db        *sql.DB
	tolerance float64
	log       log.Logger
}

// New creates a verifier over db. db may be nil, in which case only the
// in-memory source layer is reported.
func New(db *sql.DB, logger log.Logger) *Verifier {
	return &Verifier{db: db, tolerance: DefaultTolerance, log: logger}
}

// SourceMetrics aggregates the in-memory pipeline output.
func SourceMetrics(out *pipeline.Output) Metrics {
	m := Metrics{Layer: "SOURCE"}
	for _, o := range out.Orders {
		if o.Status != conversion.StatusCompleted {
			continue
		}
		m.OrderCount++
		m.Sales += o.FinalAmount.InexactFloat64()
		m.Cost += o.TotalCost.InexactFloat64()
		m.Shipping += o.ShippingFee.InexactFloat64()
	}
	completed := make(map[string]bool, int(m.OrderCount))
	for _, o := range out.Orders {
		if o.Status == conversion.StatusCompleted {
			completed[o.OrderID] = true
		}
	}
	for _, d := range out.Details {
		if completed[d.OrderID] {
			m.Quantity += float64(d.Quantity)
		}
	}
	for _, e := range out.Traffic {
		if e.IsPaid() {
			m.Promotion += e.PromotionCost.InexactFloat64()
		}
	}
	return m
}

// Verify collects every available layer and compares neighbours. The
// returned report is valid even when Pass is false.
func (v *Verifier) Verify(ctx context.Context, out *pipeline.Output) (*Report, error) {
	report := &Report{Pass: true}
	report.Layers = append(report.Layers, SourceMetrics(out))

	if v.db != nil {
		for _, collect := range []func(context.Context) (*Metrics, error){
			v.odsMetrics, v.dwdMetrics, v.dwsMetrics, v.adsMetrics,
		} {
			m, err := collect(ctx)
			if err != nil {
				return nil, err
			}
			if m == nil {
				continue
			}
			report.Layers = append(report.Layers, *m)
		}
	}

	for _, m := range report.Layers {
		report.Financials = append(report.Financials, financial(m))
	}

	for i := 1; i < len(report.Layers); i++ {
		a, b := report.Layers[i-1], report.Layers[i]
		for _, metric := range compareMetrics(a, b) {
			c := Comparison{
				From: a.Layer, To: b.Layer, Metric: metric,
				A: a.get(metric), B: b.get(metric),
			}
			c.Diff = c.A - c.B
			if c.Diff < 0 {
				c.Diff = -c.Diff
			}
			c.Pass = c.Diff < v.tolerance
			if !c.Pass {
				report.Pass = false
				v.log.Warn("layer mismatch",
					zap.String("from", c.From),
					zap.String("to", c.To),
					zap.String("metric", c.Metric),
					zap.Float64("diff", c.Diff))
			}
			report.Comparisons = append(report.Comparisons, c)
		}
	}
	return report, nil
}

// compareMetrics picks the metrics both layers actually carry. The
// source layer is compared on counts and money only; aggregate layers
// that drop shipping or cost are not checked on them.
func compareMetrics(a, b Metrics) []string {
	if a.Layer == "SOURCE" {
		return []string{MetricOrderCount, MetricSales, MetricPromotion}
	}
	metrics := []string{MetricOrderCount, MetricSales, MetricPromotion, MetricQuantity}
	return metrics
}

func financial(m Metrics) Financial {
	f := Financial{Layer: m.Layer, Promotion: m.Promotion}
	f.GrossProfit = m.Sales - m.Cost - m.Shipping
	afterSale := m.Sales * config.FeeRates["after_sale"]
	platform := m.Sales * config.FeeRates["platform"]
	management := m.Sales * config.FeeRates["management"]
	f.NetProfit = f.GrossProfit - m.Promotion - afterSale - platform - management
	if m.Sales > 0 {
		f.GrossRate = f.GrossProfit / m.Sales * 100
		f.PromotionRate = m.Promotion / m.Sales * 100
		f.NetRate = f.NetProfit / m.Sales * 100
	}
	return f
}

// tableExists reports whether a table is present in the current schema.
func (v *Verifier) tableExists(ctx context.Context, name string) (bool, error) {
	var found string
	err := v.db.QueryRowContext(ctx, "SHOW TABLES LIKE ?", name).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return true, nil
}

func (v *Verifier) odsMetrics(ctx context.Context) (*Metrics, error) {
	ok, err := v.tableExists(ctx, "ods_orders")
	if err != nil || !ok {
		return nil, err
	}

	m := &Metrics{Layer: "ODS"}
	row := v.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(final_amount), 0),
		       COALESCE(SUM(total_cost), 0),
		       COALESCE(SUM(shipping_fee), 0)
		FROM ods_orders WHERE order_status = '已完成'`)
	if err := row.Scan(&m.OrderCount, &m.Sales, &m.Cost, &m.Shipping); err != nil {
		return nil, fmt.Errorf("ods orders: %w", err)
	}

	row = v.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(od.quantity), 0)
		FROM ods_order_details od
		INNER JOIN ods_orders o ON od.order_id = o.order_id
		WHERE o.order_status = '已完成'`)
	if err := row.Scan(&m.Quantity); err != nil {
		return nil, fmt.Errorf("ods quantity: %w", err)
	}

	row = v.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(cost), 0) FROM ods_promotion`)
	if err := row.Scan(&m.Promotion); err != nil {
		return nil, fmt.Errorf("ods promotion: %w", err)
	}
	return m, nil
}

func (v *Verifier) dwdMetrics(ctx context.Context) (*Metrics, error) {
	ok, err := v.tableExists(ctx, "fact_order")
	if err != nil || !ok {
		return nil, err
	}

	m := &Metrics{Layer: "DWD"}
	row := v.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(final_amount), 0),
		       COALESCE(SUM(total_cost), 0),
		       COALESCE(SUM(shipping_fee), 0)
		FROM fact_order WHERE order_status = '已完成'`)
	if err := row.Scan(&m.OrderCount, &m.Sales, &m.Cost, &m.Shipping); err != nil {
		return nil, fmt.Errorf("dwd orders: %w", err)
	}

	row = v.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM fact_order_detail`)
	if err := row.Scan(&m.Quantity); err != nil {
		return nil, fmt.Errorf("dwd quantity: %w", err)
	}

	row = v.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(cost), 0) FROM fact_promotion`)
	if err := row.Scan(&m.Promotion); err != nil {
		return nil, fmt.Errorf("dwd promotion: %w", err)
	}
	return m, nil
}

func (v *Verifier) dwsMetrics(ctx context.Context) (*Metrics, error) {
	ok, err := v.tableExists(ctx, "dws_sales_daily")
	if err != nil || !ok {
		return nil, err
	}

	m := &Metrics{Layer: "DWS"}
	row := v.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(order_count), 0),
		       COALESCE(SUM(sales_amount), 0),
		       COALESCE(SUM(cost_amount), 0)
		FROM dws_sales_daily`)
	if err := row.Scan(&m.OrderCount, &m.Sales, &m.Cost); err != nil {
		return nil, fmt.Errorf("dws sales: %w", err)
	}

	row = v.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(sales_quantity), 0) FROM dws_product_daily`)
	if err := row.Scan(&m.Quantity); err != nil {
		return nil, fmt.Errorf("dws quantity: %w", err)
	}

	row = v.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(cost), 0) FROM dws_promotion_daily`)
	if err := row.Scan(&m.Promotion); err != nil {
		return nil, fmt.Errorf("dws promotion: %w", err)
	}
	return m, nil
}

func (v *Verifier) adsMetrics(ctx context.Context) (*Metrics, error) {
	ok, err := v.tableExists(ctx, "ads_daily_report")
	if err != nil || !ok {
		return nil, err
	}

	m := &Metrics{Layer: "ADS"}
	row := v.db.QueryRowContext(ctx, "SELECT COALESCE(SUM(`销售额`), 0), COALESCE(SUM(`推广费`), 0), COALESCE(SUM(`订单数`), 0), COALESCE(SUM(`销量`), 0) FROM ads_daily_report")
	if err := row.Scan(&m.Sales, &m.Promotion, &m.OrderCount, &m.Quantity); err != nil {
		return nil, fmt.Errorf("ads report: %w", err)
	}
	return m, nil
}
