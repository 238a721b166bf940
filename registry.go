package remoteval

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/remoteval/host"
	"github.com/unkn0wn-root/remoteval/internal/util"
)

const (
	releaseDisown       = "disown"
	releaseIdle         = "idle"
	releaseLeaseExpired = "lease_expired"
	releaseLeaseCorrupt = "lease_corrupt"
	releaseRealmClosed  = "realm_closed"
)

type entry struct {
	ref      host.Ref
	lastUsed atomic.Int64 // unix nanos
}

// registryConfig is the resolved subset of RealmOptions the registry needs.
type registryConfig struct {
	realm         string
	navigableID   string
	idleTTL       time.Duration
	sweepInterval time.Duration
	leases        *leaseStore
	log           Logger
	hooks         Hooks
}

// HandleRegistry binds handles to live heap values for one realm and keeps
// the realm's sharedId namespace for nodes.
//
// Handles are random UUIDs, so a handle minted by one realm never resolves
// in another. SharedIds take the form "<navigableID>_element_<n>" and live
// as long as the registry; releasing handles does not touch them.
type HandleRegistry struct {
	realm     string
	navigable string

	mu       sync.RWMutex
	byHandle map[string]*entry
	byRef    map[host.Ref]string
	closed   bool

	nodeMu     sync.Mutex
	sharedIDs  map[*host.Node]string
	nodesByID  map[string]*host.Node
	nextShared uint64

	idleTTL time.Duration
	leases  *leaseStore
	log     Logger
	hooks   Hooks
	now     func() time.Time

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newRegistry(cfg registryConfig) *HandleRegistry {
	r := &HandleRegistry{
		realm:     cfg.realm,
		navigable: cfg.navigableID,
		byHandle:  make(map[string]*entry),
		byRef:     make(map[host.Ref]string),
		sharedIDs: make(map[*host.Node]string),
		nodesByID: make(map[string]*host.Node),
		idleTTL:   cfg.idleTTL,
		leases:    cfg.leases,
		log:       cfg.log,
		hooks:     cfg.hooks,
		now:       time.Now,
	}
	if r.leases != nil {
		r.leases.now = func() time.Time { return r.now() }
	}
	if cfg.idleTTL > 0 && cfg.sweepInterval > 0 {
		r.ticker = time.NewTicker(cfg.sweepInterval)
		r.stopCh = make(chan struct{})
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for {
				select {
				case <-r.ticker.C:
					r.Sweep()
				case <-r.stopCh:
					return
				}
			}
		}()
	}
	return r
}

// MintOrReuse returns ref's handle, registering ref under a fresh one if it
// has none. Identity is reference identity.
func (r *HandleRegistry) MintOrReuse(ref host.Ref) (string, error) {
	if ref == nil {
		return "", fmt.Errorf("%w: nil reference", ErrUnserializableValue)
	}
	if h, ok := r.reuse(ref); ok {
		return h, nil
	}

	h := uuid.NewString()
	if r.leases != nil {
		ok, err := r.leases.grant(h)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", ErrLeaseRejected
		}
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.revokeLease(h)
		return "", ErrRealmClosed
	}
	// Lost a race with a concurrent mint of the same ref.
	if existing, ok := r.byRef[ref]; ok {
		r.byHandle[existing].lastUsed.Store(r.now().UnixNano())
		r.mu.Unlock()
		r.revokeLease(h)
		return existing, nil
	}
	e := &entry{ref: ref}
	e.lastUsed.Store(r.now().UnixNano())
	r.byHandle[h] = e
	r.byRef[ref] = h
	r.mu.Unlock()

	r.hooks.HandleMinted(r.realm, h)
	r.log.Debug("handle minted", Fields{"realm": r.realm, "handle": util.ShortHash(h), "kind": ref.Kind().String()})
	return h, nil
}

func (r *HandleRegistry) reuse(ref host.Ref) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byRef[ref]
	if !ok {
		return "", false
	}
	r.byHandle[h].lastUsed.Store(r.now().UnixNano())
	return h, true
}

// HandleOf reports the handle ref is registered under, without minting.
func (r *HandleRegistry) HandleOf(ref host.Ref) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byRef[ref]
	return h, ok
}

// Resolve returns the value bound to handle, or ErrUnknownHandle. With a
// lease store configured, a handle whose lease is gone is released first.
func (r *HandleRegistry) Resolve(handle string) (host.Ref, error) {
	r.mu.RLock()
	e, ok := r.byHandle[handle]
	r.mu.RUnlock()
	if !ok {
		r.hooks.UnknownHandle(r.realm, handle)
		return nil, ErrUnknownHandle
	}

	if r.leases != nil {
		state, err := r.leases.check(handle)
		if err != nil {
			return nil, err
		}
		switch state {
		case leaseMissing:
			r.release(handle, releaseLeaseExpired)
			r.hooks.UnknownHandle(r.realm, handle)
			return nil, ErrUnknownHandle
		case leaseCorrupt:
			r.release(handle, releaseLeaseCorrupt)
			r.hooks.UnknownHandle(r.realm, handle)
			return nil, ErrUnknownHandle
		}
	}

	e.lastUsed.Store(r.now().UnixNano())
	return e.ref, nil
}

// Owns reports whether handle is bound in this registry. It does not
// consult the lease store.
func (r *HandleRegistry) Owns(handle string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byHandle[handle]
	return ok
}

// Release removes the binding. It reports whether handle was registered.
func (r *HandleRegistry) Release(handle string) bool {
	return r.release(handle, releaseDisown)
}

func (r *HandleRegistry) release(handle, reason string) bool {
	r.mu.Lock()
	e, ok := r.byHandle[handle]
	if ok {
		delete(r.byHandle, handle)
		delete(r.byRef, e.ref)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}

	r.revokeLease(handle)
	r.hooks.HandleReleased(r.realm, handle, reason)
	r.log.Debug("handle released", Fields{"realm": r.realm, "handle": util.ShortHash(handle), "reason": reason})
	return true
}

// ReleaseAll drops every handle and returns how many there were.
func (r *HandleRegistry) ReleaseAll() int {
	return r.releaseAll(releaseDisown)
}

func (r *HandleRegistry) releaseAll(reason string) int {
	r.mu.Lock()
	handles := make([]string, 0, len(r.byHandle))
	for h := range r.byHandle {
		handles = append(handles, h)
	}
	r.byHandle = make(map[string]*entry)
	r.byRef = make(map[host.Ref]string)
	r.mu.Unlock()

	purged := reason == releaseRealmClosed && r.leases != nil && r.leases.revokeRealm()
	for _, h := range handles {
		if !purged {
			r.revokeLease(h)
		}
		r.hooks.HandleReleased(r.realm, h, reason)
	}
	if len(handles) > 0 {
		r.log.Debug("handles released", Fields{"realm": r.realm, "count": len(handles), "reason": reason})
	}
	return len(handles)
}

// Sweep releases handles that were neither resolved nor re-minted within
// the idle TTL. It is a no-op without one.
func (r *HandleRegistry) Sweep() int {
	if r.idleTTL <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idleTTL).UnixNano()

	r.mu.Lock()
	var idle []string
	for h, e := range r.byHandle {
		if e.lastUsed.Load() < cutoff {
			idle = append(idle, h)
			delete(r.byHandle, h)
			delete(r.byRef, e.ref)
		}
	}
	r.mu.Unlock()

	for _, h := range idle {
		r.revokeLease(h)
		r.hooks.HandleReleased(r.realm, h, releaseIdle)
	}
	if len(idle) > 0 {
		r.log.Debug("idle handles swept", Fields{"realm": r.realm, "count": len(idle)})
	}
	return len(idle)
}

// Len is the number of live handles.
func (r *HandleRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byHandle)
}

// NodeIdentity returns n's sharedId, assigning the next one on first sight.
func (r *HandleRegistry) NodeIdentity(n *host.Node) string {
	r.nodeMu.Lock()
	defer r.nodeMu.Unlock()
	if id, ok := r.sharedIDs[n]; ok {
		return id
	}
	r.nextShared++
	id := fmt.Sprintf("%s_element_%d", r.navigable, r.nextShared)
	r.sharedIDs[n] = id
	r.nodesByID[id] = n
	return id
}

// ResolveSharedID returns the node a sharedId was assigned to.
func (r *HandleRegistry) ResolveSharedID(id string) (*host.Node, bool) {
	r.nodeMu.Lock()
	defer r.nodeMu.Unlock()
	n, ok := r.nodesByID[id]
	return n, ok
}

// Close stops the sweeper and releases every handle. Minting afterwards
// fails with ErrRealmClosed. The lease provider itself is left open; it may
// be shared between realms.
func (r *HandleRegistry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if r.stopCh != nil {
		close(r.stopCh)
		r.ticker.Stop()
		r.wg.Wait()
	}
	r.releaseAll(releaseRealmClosed)
	return nil
}

func (r *HandleRegistry) revokeLease(h string) {
	if r.leases != nil {
		r.leases.revoke(h)
	}
}
