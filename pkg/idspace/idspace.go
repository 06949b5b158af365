// Copyright (C) 2025, Velodata Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package idspace

import (
	"errors"
	"fmt"
)

// ErrRangeExhausted is returned when a worker consumes past its reserved
// ID block. Overlap between batches is a silent correctness hazard, so
// exhaustion is a hard error rather than a wrap-around.
var ErrRangeExhausted = errors.New("id block exhausted: batch consumed past its reservation")

// SafetyMargin pads every reservation against per-batch record-count
// variance from remainder redistribution.
const SafetyMargin = 100

// Block is a pre-reserved half-open ID interval [Start, End).
// Blocks from one Plan never overlap, which is what lets batches run in
// parallel without coordination.
type Block struct {
	Start int64
	End   int64
}

// Cursor returns a sequential consumer over the block.
func (b Block) Cursor() *Cursor {
	return &Cursor{start: b.Start, next: b.Start, end: b.End}
}

// Len is the number of IDs in the block.
func (b Block) Len() int64 {
	return b.End - b.Start
}

// Cursor hands out IDs from a block in order and refuses to leave it.
type Cursor struct {
	start int64
	next  int64
	end   int64
}

// Next returns the next reserved ID. Once the block is exhausted every
// call fails with ErrRangeExhausted.
func (c *Cursor) Next() (int64, error) {
	if c.next >= c.end {
		return 0, fmt.Errorf("%w (end %d)", ErrRangeExhausted, c.end)
	}
	id := c.next
	c.next++
	return id, nil
}

// Used is how many IDs the cursor has handed out.
func (c *Cursor) Used() int64 {
	return c.next - c.start
}

// Plan pre-reserves non-overlapping ID blocks for a sequence of batches.
// The caller sizes each reservation before dispatch; workers never chain
// off each other's cursors at runtime.
type Plan struct {
	next int64
}

// NewPlan starts reserving at the given first ID (usually 1).
func NewPlan(start int64) *Plan {
	return &Plan{next: start}
}

// Reserve carves the next n-ID block out of the plan.
func (p *Plan) Reserve(n int64) Block {
	b := Block{Start: p.next, End: p.next + n}
	p.next += n
	return b
}

// NextStart is the first ID a future reservation would receive.
func (p *Plan) NextStart() int64 {
	return p.next
}

// Span is a half-open index interval of work items assigned to one batch.
type Span struct {
	Start int
	End   int
}

// Partition splits total work items into contiguous spans of batchSize,
// with the final span absorbing the remainder.
func Partition(total, batchSize int) []Span {
	if total <= 0 || batchSize <= 0 {
		return nil
	}
	spans := make([]Span, 0, (total+batchSize-1)/batchSize)
	for start := 0; start < total; start += batchSize {
		end := min(start+batchSize, total)
		spans = append(spans, Span{Start: start, End: end})
	}
	return spans
}

// ProductBatchSize sizes traffic batches: each worker gets a contiguous
// slice of the catalog, never fewer than 10 products.
func ProductBatchSize(numProducts, workers int) int {
	if workers < 1 {
		workers = 1
	}
	return max(10, numProducts/workers)
}

// OrderBatchBounds clamp how much order volume a single conversion worker
// may own.
const (
	MinOrdersPerBatch = 5_000
	MaxOrdersPerBatch = 50_000
)

// DayBatchSize sizes conversion batches in days so each worker carries
// between MinOrdersPerBatch and MaxOrdersPerBatch orders.
func DayBatchSize(totalDays, ordersPerDay, workers int) int {
	if totalDays <= 0 || ordersPerDay <= 0 {
		return totalDays
	}
	if workers < 1 {
		workers = 1
	}

	idealOrders := totalDays * ordersPerDay / workers
	targetOrders := max(MinOrdersPerBatch, min(MaxOrdersPerBatch, idealOrders))

	days := targetOrders / ordersPerDay
	if days < 1 {
		days = 1
	}
	return min(days, totalDays)
}

// ID formatting used across the generated dataset.
func FormatOrderID(n int64) string   { return fmt.Sprintf("O%08d", n) }
func FormatDetailID(n int64) string  { return fmt.Sprintf("OD%08d", n) }
func FormatTrafficID(n int64) string { return fmt.Sprintf("T%08d", n) }
