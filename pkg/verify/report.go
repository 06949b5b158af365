// Copyright (C) 2025, Velodata Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package verify

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteText renders the report as aligned terminal tables.
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "数据一致性对比表")
	fmt.Fprint(tw, "指标")
	for _, m := range r.Layers {
		fmt.Fprintf(tw, "\t%s", m.Layer)
	}
	fmt.Fprintln(tw)
	for _, metric := range []string{
		MetricOrderCount, MetricSales, MetricCost,
		MetricShipping, MetricPromotion, MetricQuantity,
	} {
		fmt.Fprint(tw, metric)
		for _, m := range r.Layers {
			fmt.Fprintf(tw, "\t%.2f", m.get(metric))
		}
		fmt.Fprintln(tw)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "财务指标对比表")
	fmt.Fprintln(tw, "数据层\t毛利\t毛利率\t推广费\t推广费率\t净利润\t净利率")
	for _, f := range r.Financials {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f%%\t%.2f\t%.2f%%\t%.2f\t%.2f%%\n",
			f.Layer, f.GrossProfit, f.GrossRate,
			f.Promotion, f.PromotionRate, f.NetProfit, f.NetRate)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "一致性检查结果")
	for _, c := range r.Comparisons {
		status := "PASS"
		if !c.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(tw, "%s vs %s\t%s\t%s\t差异 %.2f\n", c.From, c.To, c.Metric, status, c.Diff)
	}
	if r.Pass {
		fmt.Fprintln(tw, "验证通过: 所有数据层一致")
	} else {
		fmt.Fprintln(tw, "验证失败: 存在不一致的数据层")
	}
	return tw.Flush()
}
