// Package native implements the parallel CPU kernel set. Convolutions are
// lowered to the blocked GEMM in internal/tensor; the remaining spatial
// kernels fan out over slabs of independent work.
package native

import (
	"runtime"
	"sync"
)

// Backend executes the network kernels on the CPU. It reuses an internal
// scratch buffer between calls and is therefore not safe for concurrent use.
type Backend struct {
	workers int
	scratch []float32
}

// New returns a kernel set sized to the machine.
func New() *Backend {
	w := runtime.GOMAXPROCS(0)
	if w < 1 {
		w = 1
	}
	return &Backend{workers: w}
}

func (b *Backend) Name() string { return "native" }

// scratchFor returns a reusable buffer with at least n elements. Contents
// are unspecified.
func (b *Backend) scratchFor(n int) []float32 {
	if cap(b.scratch) < n {
		b.scratch = make([]float32, n)
	}
	return b.scratch[:n]
}

// parallelFor splits [0,n) into contiguous chunks and runs fn on each from
// its own goroutine, blocking until all complete.
func parallelFor(n, workers int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		fn(0, n)
		return
	}
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}
