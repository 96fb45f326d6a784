package engine

import (
	"runtime"
	"sync"
)

// Below this many rows per partition the goroutine overhead outweighs the scan.
const defaultMinPartitionRows = 8192

// Option tunes how an operation splits its input across workers.
type Option func(*options)

type options struct {
	workers    int
	minPerPart int
}

// WithWorkers caps the number of partitions scanned concurrently. n <= 0 means runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithMinPartitionRows sets the smallest row range worth handing to its own worker.
func WithMinPartitionRows(n int) Option {
	return func(o *options) { o.minPerPart = n }
}

func buildOptions(opts []Option) options {
	o := options{minPerPart: defaultMinPartitionRows}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers <= 0 {
		o.workers = runtime.NumCPU()
	}
	if o.minPerPart <= 0 {
		o.minPerPart = 1
	}
	return o
}

// span is a half-open row range [lo, hi).
type span struct{ lo, hi int }

// spans cuts n rows into contiguous chunks, one per worker. The last chunk
// absorbs the remainder.
func (o options) spans(n int) []span {
	numWorkers := o.workers
	if byRows := (n + o.minPerPart - 1) / o.minPerPart; byRows < numWorkers {
		numWorkers = byRows
	}
	if numWorkers < 1 {
		numWorkers = 1
	}
	chunkSize := n / numWorkers
	out := make([]span, numWorkers)
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if i == numWorkers-1 {
			end = n
		}
		out[i] = span{lo: start, hi: end}
	}
	return out
}

// parallel runs fn once per span and waits. A single span runs inline.
func parallel(spans []span, fn func(part int, s span)) {
	if len(spans) == 1 {
		fn(0, spans[0])
		return
	}
	var wg sync.WaitGroup
	for i, s := range spans {
		wg.Add(1)
		go func(part int, s span) {
			defer wg.Done()
			fn(part, s)
		}(i, s)
	}
	wg.Wait()
}
