package download

import (
	"context"
	"sync"
	"time"
)

// idlePoll is how long the producer waits before re-checking the queue
// when a full cycle dispatched nothing, so an empty queue doesn't spin.
const idlePoll = 2 * time.Second

// Scheduler is the single producer of spec §4.5: it walks the queue
// depth-first, handing each inactive, has-sources file to a bounded
// worker pool, skipping files already visited this pass. A full cycle
// or a structural change (via the queue's onChanged hook) restarts the
// traversal.
type Scheduler struct {
	queue   *Queue
	workers int
	do      func(ctx context.Context, f *File)

	mu      sync.Mutex
	restart chan struct{}
}

// NewScheduler creates a Scheduler with workers concurrent slots. do is
// invoked once per dispatched file; it is responsible for resolving
// sources and calling FetchFile, and for calling queue.MarkNoSources on
// ErrNoSource.
func NewScheduler(queue *Queue, workers int, do func(ctx context.Context, f *File)) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	s := &Scheduler{queue: queue, workers: workers, do: do, restart: make(chan struct{}, 1)}
	prev := queue.onChanged
	queue.onChanged = func() {
		if prev != nil {
			prev()
		}
		s.signalRestart()
	}
	return s
}

func (s *Scheduler) signalRestart() {
	select {
	case s.restart <- struct{}{}:
	default:
	}
}

// Run drives the producer loop until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup

	for {
		visited := make(map[*File]bool)
		cycleFiles := s.collectCycle(visited)

		if len(cycleFiles) == 0 {
			select {
			case <-ctx.Done():
				wg.Wait()
				return
			case <-s.restart:
			case <-time.After(idlePoll):
			}
			continue
		}

		for _, f := range cycleFiles {
			select {
			case <-ctx.Done():
				wg.Wait()
				return
			case <-s.restart:
				wg.Wait()
				goto nextCycle
			case sem <- struct{}{}:
			}

			f := f
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				s.do(ctx, f)
			}()
		}

	nextCycle:
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		default:
		}
	}
}

// collectCycle gathers every file eligible for dispatch this pass:
// not active, not marked no-sources, and not already visited (spec
// §4.5 "skipping: active files, files whose dispatch id is marked
// no-sources, and files already visited this iteration").
func (s *Scheduler) collectCycle(visited map[*File]bool) []*File {
	var out []*File
	s.queue.root.walk(func(f *File) {
		if visited[f] || f.Active() || f.NoSources() {
			return
		}
		visited[f] = true
		out = append(out, f)
	})
	return out
}
