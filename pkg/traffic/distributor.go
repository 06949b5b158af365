// Copyright (C) 2025, Velodata Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package traffic

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/velodata/funnelgen/pkg/catalog"
	"github.com/velodata/funnelgen/pkg/config"
	"github.com/velodata/funnelgen/pkg/idspace"
	"github.com/velodata/funnelgen/pkg/log"
)

// maxEventsPerProductDay bounds the records one (product, day) pair can
// emit: up to 2 natural channels plus 1 paid placement. ID reservations
// are sized from this bound.
const maxEventsPerProductDay = 3

// parallelThreshold is the catalog size below which the distributor stays
// single-threaded regardless of the parallel flag.
const parallelThreshold = 100

// BatchProgress reports one completed worker batch.
type BatchProgress struct {
	Completed int
	Total     int
	Records   int           // cumulative records so far
	Elapsed   time.Duration
}

// Distributor spreads simulated impressions and clicks across the catalog
// by product tier.
type Distributor struct {
	cal     config.Calibration
	workers int
	seed    uint64
	log     log.Logger

	// OnBatch, when set, is invoked after every completed batch.
	OnBatch func(BatchProgress)
}

// NewDistributor creates a traffic distributor. workers bounds the pool
// size for parallel runs; seed derives every worker's RNG.
func NewDistributor(cal config.Calibration, workers int, seed uint64, logger log.Logger) *Distributor {
	if workers < 1 {
		workers = 1
	}
	return &Distributor{cal: cal, workers: workers, seed: seed, log: logger}
}

// Distribute generates natural and paid traffic for every (product, day)
// pair. Worker batches are contiguous slices of the catalog; their outputs
// are concatenated in batch order. A worker error aborts the whole run.
func (d *Distributor) Distribute(ctx context.Context, products []catalog.Product, days []time.Time, trafficBase int, parallel bool) ([]Event, error) {
	if len(products) == 0 || len(days) == 0 {
		return nil, nil
	}

	batchSize := idspace.ProductBatchSize(len(products), d.workers)
	spans := idspace.Partition(len(products), batchSize)

	if !parallel || len(products) < parallelThreshold {
		spans = []idspace.Span{{Start: 0, End: len(products)}}
	}

	// Pre-reserve a traffic-ID block per batch so workers never collide.
	plan := idspace.NewPlan(1)
	blocks := make([]idspace.Block, len(spans))
	for i, span := range spans {
		n := int64(span.End-span.Start)*int64(len(days))*maxEventsPerProductDay + idspace.SafetyMargin
		blocks[i] = plan.Reserve(n)
	}

	d.log.Info("distributing traffic",
		zap.Int("products", len(products)),
		zap.Int("days", len(days)),
		zap.Int("batches", len(spans)),
		zap.Int("workers", d.workers))

	start := time.Now()
	results := make([][]Event, len(spans))

	var (
		mu        sync.Mutex
		completed int
		total     int
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for i, span := range spans {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			rng := rand.New(rand.NewPCG(d.seed, uint64(i)+1))
			events, err := d.distributeBatch(products[span.Start:span.End], days, trafficBase, blocks[i].Cursor(), rng)
			if err != nil {
				return err
			}
			results[i] = events

			mu.Lock()
			completed++
			total += len(events)
			progress := BatchProgress{
				Completed: completed,
				Total:     len(spans),
				Records:   total,
				Elapsed:   time.Since(start),
			}
			mu.Unlock()

			if d.OnBatch != nil {
				d.OnBatch(progress)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge is concatenation: event order across batches is irrelevant.
	all := make([]Event, 0, total)
	for _, events := range results {
		all = append(all, events...)
	}

	d.log.Info("traffic distribution complete",
		zap.Int("records", len(all)),
		zap.Duration("elapsed", time.Since(start)))

	return all, nil
}

// distributeBatch is the pure per-worker function: a contiguous product
// slice, the full day list, and a private ID cursor and RNG.
func (d *Distributor) distributeBatch(products []catalog.Product, days []time.Time, trafficBase int, ids *idspace.Cursor, rng *rand.Rand) ([]Event, error) {
	events := make([]Event, 0, len(products)*len(days))

	for _, product := range products {
		weight := config.TrafficWeight(product.Tier)

		for _, day := range days {
			natural, err := d.naturalTraffic(product, day, weight, trafficBase, ids, rng)
			if err != nil {
				return nil, err
			}
			events = append(events, natural...)

			if rng.Float64() < d.paidProbability(product.Tier) {
				paid, err := d.paidTraffic(product, day, weight, trafficBase, ids, rng)
				if err != nil {
					return nil, err
				}
				events = append(events, paid)
			}
		}
	}

	return events, nil
}

// paidProbability is the per-day chance of a paid placement. Promoted-new
// and loss-leader tiers advertise more often.
func (d *Distributor) paidProbability(tier config.Tier) float64 {
	if tier == config.TierNewPromo || tier == config.TierLossLeader {
		return d.cal.PaidProbPromoted
	}
	return d.cal.PaidProbDefault
}

// naturalTraffic emits organic impressions split across 1–2 channels.
func (d *Distributor) naturalTraffic(p catalog.Product, day time.Time, weight float64, trafficBase int, ids *idspace.Cursor, rng *rand.Rand) ([]Event, error) {
	baseFactor := float64(trafficBase) / 1000

	imprRange := d.cal.NaturalImpressionsPart
	if config.IsBikeCategory(p.CategoryL1) {
		imprRange = d.cal.NaturalImpressionsBike
	}
	baseImpressions := int(uniform(rng, imprRange) * weight * baseFactor)

	numChannels := 1 + rng.IntN(2)
	channels := sampleStrings(rng, config.NaturalChannels, numChannels)

	events := make([]Event, 0, numChannels)
	for _, channel := range channels {
		impressions := baseImpressions / numChannels
		ctr := uniform(rng, d.cal.NaturalCTR)
		clicks := int(float64(impressions) * ctr)

		id, err := ids.Next()
		if err != nil {
			return nil, err
		}

		events = append(events, Event{
			TrafficID:     idspace.FormatTrafficID(id),
			Date:          day,
			StoreID:       p.StoreID,
			Platform:      p.Platform,
			SKUID:         p.SKUID,
			ProductID:     p.ProductID,
			CategoryL1:    p.CategoryL1,
			CategoryL2:    p.CategoryL2,
			Tier:          p.Tier,
			TrafficType:   TypeNatural,
			Channel:       channel,
			Impressions:   impressions,
			Clicks:        clicks,
			CTR:           roundPercent(ctr),
			PromotionCost: decimal.Zero,
			CPC:           decimal.Zero,
		})
	}

	return events, nil
}

// paidTraffic emits a single paid placement on a platform channel. CPC and
// impression ranges are category-tuned toward the target promotion ratio.
func (d *Distributor) paidTraffic(p catalog.Product, day time.Time, weight float64, trafficBase int, ids *idspace.Cursor, rng *rand.Rand) (Event, error) {
	baseFactor := float64(trafficBase) / 1000

	channels := config.PaidChannelsFor(p.Platform)
	channel := channels[rng.IntN(len(channels))]

	imprRange := d.cal.PaidImpressionsPart
	cpcRange := d.cal.CPCPart
	if config.IsBikeCategory(p.CategoryL1) {
		imprRange = d.cal.PaidImpressionsBike
		cpcRange = d.cal.CPCBike
	}

	impressions := int(uniform(rng, imprRange) * weight * baseFactor)
	ctr := uniform(rng, d.cal.PaidCTR)
	clicks := int(float64(impressions) * ctr)
	cpc := uniform(rng, cpcRange)

	cost := decimal.NewFromFloat(float64(clicks) * cpc).Round(2)
	minBudget := decimal.NewFromFloat(d.cal.MinPaidBudget)
	if cost.LessThan(minBudget) {
		cost = minBudget
	}

	id, err := ids.Next()
	if err != nil {
		return Event{}, err
	}

	return Event{
		TrafficID:     idspace.FormatTrafficID(id),
		Date:          day,
		StoreID:       p.StoreID,
		Platform:      p.Platform,
		SKUID:         p.SKUID,
		ProductID:     p.ProductID,
		CategoryL1:    p.CategoryL1,
		CategoryL2:    p.CategoryL2,
		Tier:          p.Tier,
		TrafficType:   TypePaid,
		Channel:       channel,
		Impressions:   impressions,
		Clicks:        clicks,
		CTR:           roundPercent(ctr),
		PromotionCost: cost,
		CPC:           decimal.NewFromFloat(cpc).Round(2),
	}, nil
}

// Days returns the trailing day window ending today, oldest first.
func Days(span int) []time.Time {
	days := make([]time.Time, 0, span)
	today := time.Now().Truncate(24 * time.Hour)
	for i := span - 1; i >= 0; i-- {
		days = append(days, today.AddDate(0, 0, -i))
	}
	return days
}

func uniform(rng *rand.Rand, r config.Range) float64 {
	return r.Lo + rng.Float64()*(r.Hi-r.Lo)
}

func roundPercent(rate float64) float64 {
	return float64(int(rate*100*100+0.5)) / 100
}

func sampleStrings(rng *rand.Rand, src []string, n int) []string {
	shuffled := make([]string, len(src))
	copy(shuffled, src)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:n]
}
