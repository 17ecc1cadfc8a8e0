package event

import (
	"sync"
)

// The all-market ticker stream delivers one large batch per second. Batches
// are pooled to reduce GC pressure in the hotpath.
//
// Usage:
//
//	b := AcquireTickerBatch()
//	b.Updates = append(b.Updates, ...)
//	// ... apply batch ...
//	ReleaseTickerBatch(b)  // Return to pool after processing
var tickerBatchPool = sync.Pool{
	New: func() interface{} {
		return &TickerBatch{}
	},
}

// AcquireTickerBatch gets a TickerBatch from the pool.
// The returned batch has an empty Updates slice.
func AcquireTickerBatch() *TickerBatch {
	return tickerBatchPool.Get().(*TickerBatch)
}

// ReleaseTickerBatch returns a TickerBatch to the pool.
// The Updates slice is truncated but its capacity is kept.
func ReleaseTickerBatch(b *TickerBatch) {
	if b == nil {
		return
	}
	b.Updates = b.Updates[:0]

	tickerBatchPool.Put(b)
}

// Warmup pre-allocates batches to reduce GC pressure at startup.
func Warmup() {
	const batchSize = 64

	batches := make([]*TickerBatch, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		batches = append(batches, AcquireTickerBatch())
	}
	for _, b := range batches {
		ReleaseTickerBatch(b)
	}
}
