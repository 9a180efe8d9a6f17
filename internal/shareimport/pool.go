package shareimport

// pool is a small bounded worker pool: at most size goroutines run
// submitted tasks concurrently, the rest queue. This is the "bounded
// worker pool (size is config)" of spec §4.3, implemented as a
// semaphore-gated goroutine-per-task launcher rather than a fixed set of
// long-lived workers, so an idle pool costs nothing between refreshes.
type pool struct {
	tokens chan struct{}
}

func newPool(size int) *pool {
	if size < 1 {
		size = 1
	}
	return &pool{tokens: make(chan struct{}, size)}
}

func (p *pool) submit(task func()) {
	p.tokens <- struct{}{}
	go func() {
		defer func() { <-p.tokens }()
		defer func() {
			// A share refresh task must never unwind a worker goroutine
			// on panic (spec §7: "No panic-class error is allowed to
			// unwind past a worker task boundary").
			_ = recover()
		}()
		task()
	}()
}
