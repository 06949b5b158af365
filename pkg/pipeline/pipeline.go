// Copyright (C) 2025, Velodata Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/velodata/funnelgen/pkg/catalog"
	"github.com/velodata/funnelgen/pkg/config"
	"github.com/velodata/funnelgen/pkg/conversion"
	"github.com/velodata/funnelgen/pkg/log"
	"github.com/velodata/funnelgen/pkg/metric"
	"github.com/velodata/funnelgen/pkg/progress"
	"github.com/velodata/funnelgen/pkg/scale"
	"github.com/velodata/funnelgen/pkg/traffic"
)

// Options configure one generation run.
type Options struct {
	ScaleName        string
	StoreCount       int
	TimeSpanDays     int
	NumUsers         int
	TargetOrderCount int // 0 derives the target from the scale summary
	Workers          int // 0 uses all CPUs
	Seed             uint64
	Parallel         bool
	Calibration      config.Calibration
}

// Output is the full in-memory dataset of a run, handed to the
// persistence layer as-is.
type Output struct {
	RunID    string
	Summary  scale.Summary
	Stores   []catalog.Store
	Users    []catalog.User
	Products []catalog.Product
	Traffic  []traffic.Event
	Orders   []conversion.Order
	Details  []conversion.OrderDetail
	Skips    conversion.SkipStats
	Elapsed  time.Duration
}

// Pipeline runs the catalog → traffic → conversion funnel end to end.
type Pipeline struct {
	opts    Options
	log     log.Logger
	metrics *metric.Metrics
	hub     *progress.Hub // optional
}

// New creates a pipeline. metrics is required; hub may be nil when no
// live progress feed is wanted.
func New(opts Options, logger log.Logger, metrics *metric.Metrics, hub *progress.Hub) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.NumUsers < 1 {
		opts.NumUsers = 3000
	}
	return &Pipeline{opts: opts, log: logger, metrics: metrics, hub: hub}
}

// Run executes the full funnel. Any stage error aborts the run; there is
// no partial-success mode.
func (p *Pipeline) Run(ctx context.Context) (*Output, error) {
	runID := uuid.NewString()
	start := time.Now()
	p.metrics.RunsStarted.Inc()

	summary := scale.Summarize(p.opts.ScaleName, p.opts.StoreCount, p.opts.TimeSpanDays)
	p.log.Info("run starting",
		zap.String("run_id", runID),
		zap.String("scale", summary.ScaleName),
		zap.Int("stores", summary.StoreCount),
		zap.Int("days", summary.TimeSpanDays),
		zap.Int("estimated_orders", summary.EstimatedOrders),
		zap.Uint64("seed", p.opts.Seed))

	out := &Output{RunID: runID, Summary: summary}

	// Catalog fabrication.
	stageStart := time.Now()
	gen := catalog.NewGenerator(p.opts.Seed, p.log)
	out.Stores = gen.Stores(p.opts.StoreCount)
	out.Users = gen.Users(p.opts.NumUsers, p.opts.TimeSpanDays)
	out.Products = gen.Products(out.Stores)
	p.metrics.StageDuration.WithLabelValues("catalog").Observe(time.Since(stageStart).Seconds())

	// Traffic distribution.
	stageStart = time.Now()
	days := traffic.Days(p.opts.TimeSpanDays)
	distributor := traffic.NewDistributor(p.opts.Calibration, p.opts.Workers, p.opts.Seed, p.log)
	distributor.OnBatch = func(bp traffic.BatchProgress) {
		p.metrics.TrafficBatches.Inc()
		p.publish(runID, "traffic", bp.Completed, bp.Total, bp.Records, bp.Elapsed)
	}

	events, err := distributor.Distribute(ctx, out.Products, days, summary.DailyPerStore, p.opts.Parallel)
	if err != nil {
		p.metrics.RunsFailed.Inc()
		return nil, fmt.Errorf("traffic distribution: %w", err)
	}
	out.Traffic = events
	p.metrics.TrafficEvents.Add(float64(len(events)))
	p.metrics.StageDuration.WithLabelValues("traffic").Observe(time.Since(stageStart).Seconds())

	// Conversion.
	stageStart = time.Now()
	target := p.opts.TargetOrderCount
	if target <= 0 {
		target = summary.EstimatedOrders
	}

	engine := conversion.NewEngine(p.opts.Calibration, p.opts.Workers, p.opts.Seed, p.log)
	engine.OnBatch = func(bp conversion.BatchProgress) {
		p.metrics.ConversionBatches.Inc()
		p.publish(runID, "conversion", bp.Completed, bp.Total, bp.Orders, bp.Elapsed)
	}

	result, err := engine.GenerateOrders(ctx, events, catalog.Index(out.Products), out.Users, target, p.opts.Parallel)
	if err != nil {
		p.metrics.RunsFailed.Inc()
		return nil, fmt.Errorf("order generation: %w", err)
	}
	out.Orders = result.Orders
	out.Details = result.Details
	out.Skips = result.Skips

	p.metrics.OrdersGenerated.Add(float64(len(result.Orders)))
	p.metrics.DetailsGenerated.Add(float64(len(result.Details)))
	p.metrics.SkippedConversions.WithLabelValues(string(conversion.SkipMissingProduct)).
		Add(float64(result.Skips.MissingProduct))
	p.metrics.SkippedConversions.WithLabelValues(string(conversion.SkipZeroWeight)).
		Add(float64(result.Skips.ZeroWeight))
	p.metrics.StageDuration.WithLabelValues("conversion").Observe(time.Since(stageStart).Seconds())

	out.Elapsed = time.Since(start)
	p.metrics.RunsCompleted.Inc()
	p.log.Info("run complete",
		zap.String("run_id", runID),
		zap.Int("traffic_events", len(out.Traffic)),
		zap.Int("orders", len(out.Orders)),
		zap.Int64("skipped", out.Skips.Total()),
		zap.Duration("elapsed", out.Elapsed))

	return out, nil
}

func (p *Pipeline) publish(runID, stage string, completed, total, records int, elapsed time.Duration) {
	perSec := 0.0
	if elapsed > 0 {
		perSec = float64(records) / elapsed.Seconds()
	}
	p.log.Info("batch complete",
		zap.String("stage", stage),
		zap.Int("completed", completed),
		zap.Int("total", total),
		zap.Int("records", records),
		zap.Float64("per_second", perSec))

	if p.hub != nil {
		p.hub.Publish(progress.Update{
			RunID:     runID,
			Stage:     stage,
			Completed: completed,
			Total:     total,
			Records:   records,
			PerSecond: perSec,
		})
	}
}
