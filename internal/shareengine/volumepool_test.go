package shareengine

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVolumePoolSerializesPerVolume(t *testing.T) {
	vp := NewVolumePool()
	var running int32
	var sawOverlap bool
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		vp.Submit("disk-a", func() {
			defer wg.Done()
			if atomic.AddInt32(&running, 1) > 1 {
				mu.Lock()
				sawOverlap = true
				mu.Unlock()
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
		})
	}
	wg.Wait()
	assert.False(t, sawOverlap, "tasks on the same volume must never run concurrently")
}

func TestVolumePoolRunsDifferentVolumesInParallel(t *testing.T) {
	vp := NewVolumePool()
	var wg sync.WaitGroup
	started := make(chan struct{}, 2)

	wg.Add(2)
	vp.Submit("disk-a", func() {
		defer wg.Done()
		started <- struct{}{}
		time.Sleep(20 * time.Millisecond)
	})
	vp.Submit("disk-b", func() {
		defer wg.Done()
		started <- struct{}{}
		time.Sleep(20 * time.Millisecond)
	})

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first task never started")
	}
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("second volume's task was blocked by the first volume's worker")
	}
	wg.Wait()
}

func TestVolumePoolReapsIdleWorker(t *testing.T) {
	vp := NewVolumePool()
	done := make(chan struct{})
	vp.Submit("disk-a", func() { close(done) })
	<-done

	time.Sleep(10 * time.Millisecond)
	vp.mu.Lock()
	_, exists := vp.workers["disk-a"]
	vp.mu.Unlock()
	assert.False(t, exists, "idle volume worker should be reaped after draining its queue")
}
