package dynamo

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the worker count used when a caller passes workers <= 0.
func DefaultWorkers() int {
	return runtime.GOMAXPROCS(0)
}

// ParallelFor splits [0, n) into contiguous partitions and runs fn on each,
// with at most workers partitions in flight. Partitions never share data through
// fn's arguments. The first error returned by any partition is returned.
func ParallelFor(n, workers, minChunk int, fn func(start, end int) error) error {
	if n <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	if minChunk < 1 {
		minChunk = 1
	}
	if n <= minChunk || workers <= 1 {
		return fn(0, n)
	}

	parts := workers
	if n/minChunk < parts {
		parts = n / minChunk
	}
	if parts < 1 {
		parts = 1
	}

	chunkSize := (n + parts - 1) / parts

	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}
		s, e := start, end
		g.Go(func() error {
			return fn(s, e)
		})
	}
	return g.Wait()
}
