// Package asynchook moves hook delivery off the serializing goroutine.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    UnknownHandleEvery: 10, // sample: ~every 10th unknown handle
//	})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	realm, _ := remoteval.NewRealm(remoteval.RealmOptions{Hooks: hooks})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/remoteval"
	"github.com/unkn0wn-root/remoteval/remote"
)

// Hooks queues every event for a worker pool. A full queue drops the event;
// Dropped reports how many were lost.
type Hooks struct {
	inner   remoteval.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
}

var _ remoteval.Hooks = (*Hooks)(nil)

func New(inner remoteval.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains the queue and stops the workers. Events sent afterwards are
// dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	defer func() {
		// send on closed queue
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) HandleMinted(realm, handle string) {
	h.try(func() { h.inner.HandleMinted(realm, handle) })
}
func (h *Hooks) HandleReleased(realm, handle, reason string) {
	h.try(func() { h.inner.HandleReleased(realm, handle, reason) })
}
func (h *Hooks) UnknownHandle(realm, handle string) {
	h.try(func() { h.inner.UnknownHandle(realm, handle) })
}
func (h *Hooks) LeaseRejected(realm, handle string) {
	h.try(func() { h.inner.LeaseRejected(realm, handle) })
}
func (h *Hooks) LeaseError(realm, op string, err error) {
	h.try(func() { h.inner.LeaseError(realm, op, err) })
}
func (h *Hooks) DepthTruncated(realm string, t remote.Type) {
	h.try(func() { h.inner.DepthTruncated(realm, t) })
}
