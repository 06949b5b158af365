// Copyright (C) 2025, Velodata Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package conversion

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/velodata/funnelgen/pkg/catalog"
	"github.com/velodata/funnelgen/pkg/config"
	"github.com/velodata/funnelgen/pkg/idspace"
	"github.com/velodata/funnelgen/pkg/log"
	"github.com/velodata/funnelgen/pkg/traffic"
)

// parallelDayThreshold keeps short spans single-threaded; splitting a few
// days across workers costs more than it saves.
const parallelDayThreshold = 30

// basePlatformCVR anchors the platform conversion factor: a platform at
// this rate leaves the tier conversion ranges unscaled.
const basePlatformCVR = 0.05

// BatchProgress reports one completed conversion batch.
type BatchProgress struct {
	Completed int
	Total     int
	Orders    int // cumulative orders so far
	Elapsed   time.Duration
}

// Engine converts traffic into orders, allocating each day's quota across
// products in proportion to clicks × conversion rate.
type Engine struct {
	cal     config.Calibration
	workers int
	seed    uint64
	log     log.Logger

	// OnBatch, when set, is invoked after every completed batch.
	OnBatch func(BatchProgress)
}

// NewEngine creates a conversion engine.
func NewEngine(cal config.Calibration, workers int, seed uint64, logger log.Logger) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{cal: cal, workers: workers, seed: seed, log: logger}
}

// conversionGroup is one day's aggregated traffic for a (sku, store) pair
// together with its allocation weight.
type conversionGroup struct {
	SKUID         string
	ProductID     string
	StoreID       string
	Platform      string
	Tier          config.Tier
	Clicks        int
	TrafficSource string
	Weight        float64
	Allocated     int
}

// GenerateOrders materializes orders and order details from traffic.
// targetOrderCount is spread evenly over the days present in the traffic;
// each day's quota is conserved exactly (post-remainder) unless product
// references are missing, which is counted in SkipStats.
func (e *Engine) GenerateOrders(
	ctx context.Context,
	events []traffic.Event,
	products map[string]catalog.Product,
	users []catalog.User,
	targetOrderCount int,
	parallel bool,
) (Result, error) {
	if len(events) == 0 || targetOrderCount <= 0 {
		return Result{}, nil
	}

	byDay := groupByDay(events)
	days := sortedDays(byDay)
	totalDays := len(days)
	ordersPerDay := max(1, targetOrderCount/totalDays)

	batchDays := idspace.DayBatchSize(totalDays, ordersPerDay, e.workers)
	spans := idspace.Partition(totalDays, batchDays)

	if !parallel || totalDays < parallelDayThreshold {
		spans = []idspace.Span{{Start: 0, End: totalDays}}
	}

	// Pre-reserve order and detail ID blocks per batch. One detail row per
	// order bounds the detail reservation.
	orderPlan := idspace.NewPlan(1)
	detailPlan := idspace.NewPlan(1)
	orderBlocks := make([]idspace.Block, len(spans))
	detailBlocks := make([]idspace.Block, len(spans))
	for i, span := range spans {
		n := int64(span.End-span.Start)*int64(ordersPerDay) + idspace.SafetyMargin
		orderBlocks[i] = orderPlan.Reserve(n)
		detailBlocks[i] = detailPlan.Reserve(n)
	}

	e.log.Info("generating orders",
		zap.Int("days", totalDays),
		zap.Int("orders_per_day", ordersPerDay),
		zap.Int("batches", len(spans)),
		zap.Int("workers", e.workers))

	start := time.Now()
	results := make([]Result, len(spans))

	var (
		mu          sync.Mutex
		completed   int
		totalOrders int
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, span := range spans {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			rng := rand.New(rand.NewPCG(e.seed, uint64(i)+0x1000))
			res, err := e.generateBatch(
				days[span.Start:span.End], byDay, products, users,
				ordersPerDay, orderBlocks[i].Cursor(), detailBlocks[i].Cursor(), rng,
			)
			if err != nil {
				return err
			}
			results[i] = res

			mu.Lock()
			completed++
			totalOrders += len(res.Orders)
			progress := BatchProgress{
				Completed: completed,
				Total:     len(spans),
				Orders:    totalOrders,
				Elapsed:   time.Since(start),
			}
			mu.Unlock()

			if e.OnBatch != nil {
				e.OnBatch(progress)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	merged := Result{
		Orders:  make([]Order, 0, totalOrders),
		Details: make([]OrderDetail, 0, totalOrders),
	}
	for _, res := range results {
		merged.Orders = append(merged.Orders, res.Orders...)
		merged.Details = append(merged.Details, res.Details...)
		merged.Skips.add(res.Skips)
	}

	e.log.Info("order generation complete",
		zap.Int("orders", len(merged.Orders)),
		zap.Int64("skipped", merged.Skips.Total()),
		zap.Duration("elapsed", time.Since(start)))

	return merged, nil
}

// generateBatch is the pure per-worker function over a contiguous day
// range with private ID cursors and RNG.
func (e *Engine) generateBatch(
	days []time.Time,
	byDay map[time.Time][]traffic.Event,
	products map[string]catalog.Product,
	users []catalog.User,
	ordersPerDay int,
	orderIDs, detailIDs *idspace.Cursor,
	rng *rand.Rand,
) (Result, error) {
	var res Result

	for _, day := range days {
		groups, skips := e.buildGroups(byDay[day], rng)
		res.Skips.add(skips)
		if len(groups) == 0 {
			continue
		}

		allocateQuota(groups, ordersPerDay, rng)

		generated := 0
	groupLoop:
		for _, grp := range groups {
			for n := 0; n < grp.Allocated; n++ {
				// Hard cap: remainder redistribution may overshoot.
				if generated >= ordersPerDay {
					break groupLoop
				}

				order, detail, skip, err := e.createOrder(grp, day, products, users, orderIDs, detailIDs, rng)
				if err != nil {
					return Result{}, err
				}
				if skip != "" {
					res.Skips.MissingProduct++
					continue
				}

				res.Orders = append(res.Orders, order)
				res.Details = append(res.Details, detail)
				generated++
			}
		}
	}

	return res, nil
}

// buildGroups aggregates one day's traffic by (sku, store) and computes
// each group's conversion weight. Zero-weight groups are counted and
// dropped.
func (e *Engine) buildGroups(events []traffic.Event, rng *rand.Rand) ([]*conversionGroup, SkipStats) {
	var skips SkipStats

	byKey := make(map[string]*conversionGroup)
	anyPaid := make(map[string]bool)
	order := make([]string, 0)

	for _, ev := range events {
		key := ev.SKUID + "_" + ev.StoreID
		grp, ok := byKey[key]
		if !ok {
			grp = &conversionGroup{
				SKUID:     ev.SKUID,
				ProductID: ev.ProductID,
				StoreID:   ev.StoreID,
				Platform:  ev.Platform,
				Tier:      ev.Tier,
			}
			byKey[key] = grp
			order = append(order, key)
		}
		grp.Clicks += ev.Clicks
		if ev.IsPaid() {
			anyPaid[key] = true
		}
	}

	// Deterministic iteration per RNG stream: walk groups in first-seen
	// order, not map order.
	groups := make([]*conversionGroup, 0, len(byKey))
	for _, key := range order {
		grp := byKey[key]

		cvr := uniform(rng, config.ConversionRange(grp.Tier))
		cvr *= config.PlatformFeatureFor(grp.Platform).ConversionRate / basePlatformCVR
		grp.Weight = float64(grp.Clicks) * cvr
		if grp.Weight <= 0 {
			skips.ZeroWeight++
			continue
		}

		if anyPaid[key] {
			grp.TrafficSource = SourcePaid
		} else {
			grp.TrafficSource = naturalSources[rng.IntN(len(naturalSources))]
		}
		groups = append(groups, grp)
	}

	return groups, skips
}

var naturalSources = []string{SourceSearch, SourceRecommend, SourceDirect}

// allocateQuota distributes ordersPerDay across groups proportionally to
// weight (floor division), then hands the remainder out one unit at a time
// to uniformly random groups. Post-remainder, Σ Allocated == ordersPerDay.
func allocateQuota(groups []*conversionGroup, ordersPerDay int, rng *rand.Rand) {
	totalWeight := 0.0
	for _, grp := range groups {
		totalWeight += grp.Weight
	}
	if totalWeight <= 0 {
		return
	}

	allocated := 0
	for _, grp := range groups {
		grp.Allocated = int(float64(ordersPerDay) * grp.Weight / totalWeight)
		allocated += grp.Allocated
	}

	for shortage := ordersPerDay - allocated; shortage > 0; shortage-- {
		groups[rng.IntN(len(groups))].Allocated++
	}
}

// createOrder materializes a single order with one detail line. A missing
// product reference returns a skip reason instead of an error.
func (e *Engine) createOrder(
	grp *conversionGroup,
	day time.Time,
	products map[string]catalog.Product,
	users []catalog.User,
	orderIDs, detailIDs *idspace.Cursor,
	rng *rand.Rand,
) (Order, OrderDetail, SkipReason, error) {
	product, ok := products[grp.SKUID+"_"+grp.StoreID]
	if !ok {
		return Order{}, OrderDetail{}, SkipMissingProduct, nil
	}

	oid, err := orderIDs.Next()
	if err != nil {
		return Order{}, OrderDetail{}, "", err
	}
	did, err := detailIDs.Next()
	if err != nil {
		return Order{}, OrderDetail{}, "", err
	}

	user := users[rng.IntN(len(users))]
	status := weightedChoice(rng,
		[]string{StatusCompleted, StatusCancelled, StatusRefunded},
		[]float64{e.cal.StatusCompleted, e.cal.StatusCancelled, e.cal.StatusRefunded})
	payment := weightedChoice(rng,
		[]string{PayAlipay, PayWeChat, PayBankCard},
		[]float64{e.cal.PayAlipay, e.cal.PayWeChat, e.cal.PayBankCard})

	orderTime := day.Add(time.Duration(rng.IntN(24))*time.Hour + time.Duration(rng.IntN(60))*time.Minute)

	quantity := 1 + rng.IntN(e.cal.MaxQuantity)
	qty := decimal.NewFromInt(int64(quantity))
	amount := product.Price.Mul(qty).Round(2)
	costAmount := product.Cost.Mul(qty).Round(2)
	shipping := decimal.NewFromFloat(config.ShippingFee(product.CategoryL1)).Mul(qty)

	finalAmount := decimal.Zero
	totalCost := decimal.Zero
	if status == StatusCompleted {
		finalAmount = amount
		totalCost = costAmount
	}

	orderID := idspace.FormatOrderID(oid)
	order := Order{
		OrderID:        orderID,
		UserID:         user.UserID,
		StoreID:        grp.StoreID,
		Platform:       grp.Platform,
		OrderTime:      orderTime,
		Status:         status,
		PaymentMethod:  payment,
		TrafficSource:  grp.TrafficSource,
		TotalAmount:    amount,
		DiscountAmount: decimal.Zero,
		ShippingFee:    shipping,
		FinalAmount:    finalAmount,
		TotalCost:      totalCost,
		CreatedAt:      orderTime,
		UpdatedAt:      orderTime.AddDate(0, 0, rng.IntN(8)),
	}

	detail := OrderDetail{
		DetailID:  idspace.FormatDetailID(did),
		OrderID:   orderID,
		SKUID:     product.SKUID,
		ProductID: product.ProductID,
		Quantity:  quantity,
		Price:     product.Price,
		Amount:    amount,
	}

	return order, detail, "", nil
}

func groupByDay(events []traffic.Event) map[time.Time][]traffic.Event {
	byDay := make(map[time.Time][]traffic.Event)
	for _, ev := range events {
		byDay[ev.Date] = append(byDay[ev.Date], ev)
	}
	return byDay
}

func sortedDays(byDay map[time.Time][]traffic.Event) []time.Time {
	days := make([]time.Time, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

func uniform(rng *rand.Rand, r config.Range) float64 {
	return r.Lo + rng.Float64()*(r.Hi-r.Lo)
}

func weightedChoice(rng *rand.Rand, options []string, weights []float64) string {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	r := rng.Float64() * total
	for i, w := range weights {
		r -= w
		if r < 0 {
			return options[i]
		}
	}
	return options[len(options)-1]
}
