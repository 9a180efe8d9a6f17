package shareengine

import (
	"sync"
)

// VolumePool dispatches share refreshes to one worker goroutine per
// filesystem volume, so two shares on the same spinning disk never
// refresh concurrently while shares on different disks run in parallel
// (spec §4.4 "submitted to a per-filesystem-volume worker pool"). The
// set of volumes is dynamic: the first refresh request for an unseen
// volume id spins up its worker, and an idle volume's worker exits after
// draining its queue, so a mount point that disappears doesn't leak a
// goroutine forever.
type VolumePool struct {
	mu      sync.Mutex
	workers map[string]chan func()
}

// NewVolumePool creates an empty pool. Workers are created lazily.
func NewVolumePool() *VolumePool {
	return &VolumePool{workers: make(map[string]chan func())}
}

// Submit queues task to run serially with every other task submitted
// for the same volume. volume is an opaque identifier - callers
// typically derive it from a mount point or device id.
func (vp *VolumePool) Submit(volume string, task func()) {
	vp.mu.Lock()
	ch, ok := vp.workers[volume]
	if !ok {
		ch = make(chan func(), 64)
		vp.workers[volume] = ch
		go vp.run(volume, ch)
	}
	select {
	case ch <- task:
		vp.mu.Unlock()
	default:
		// Buffer full: the worker cannot exit while ch holds tasks.
		vp.mu.Unlock()
		ch <- task
	}
}

// run drains ch and, as soon as ch is empty after a task, removes itself
// from the worker map and exits, so a volume that has gone away
// (unmounted) doesn't keep a goroutine alive indefinitely.
func (vp *VolumePool) run(volume string, ch chan func()) {
	for task := range ch {
		func() {
			defer func() { _ = recover() }() // spec §7: no panic crosses a worker boundary
			task()
		}()
		vp.mu.Lock()
		if len(ch) == 0 {
			delete(vp.workers, volume)
			vp.mu.Unlock()
			return
		}
		vp.mu.Unlock()
	}
}
