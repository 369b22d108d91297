// Package testutil holds small shared helpers for tests.
package testutil

import "sync"

// RunConcurrent starts fn n times at once, released by a shared gate so the
// goroutines actually contend, and returns the per-call errors in order.
func RunConcurrent(n int, fn func(i int) error) []error {
	errs := make([]error, n)
	gate := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-gate
			errs[i] = fn(i)
		}(i)
	}
	close(gate)
	wg.Wait()
	return errs
}
