package remoteval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/remoteval/host"
	"github.com/unkn0wn-root/remoteval/internal/util"
	"github.com/unkn0wn-root/remoteval/internal/wire"
)

// ==============================
// Identity and lifetime
// ==============================

func TestMintOrReuseIsIdentityBased(t *testing.T) {
	r := newTestRealm(t, nil)
	reg := r.Registry()

	a, b := host.NewObject(), host.NewObject()
	h1, err := reg.MintOrReuse(a)
	if err != nil {
		t.Fatalf("MintOrReuse: %v", err)
	}
	h2, _ := reg.MintOrReuse(a)
	h3, _ := reg.MintOrReuse(b)

	if h1 != h2 {
		t.Fatalf("same ref got different handles: %q vs %q", h1, h2)
	}
	if h1 == h3 {
		t.Fatalf("structurally equal but distinct refs shared handle %q", h1)
	}
	if reg.Len() != 2 {
		t.Fatalf("Len = %d, want 2", reg.Len())
	}
	if got, ok := reg.HandleOf(a); !ok || got != h1 {
		t.Fatalf("HandleOf = %q,%v", got, ok)
	}
}

func TestResolveAndRelease(t *testing.T) {
	r := newTestRealm(t, nil)
	reg := r.Registry()

	arr := host.NewArray(host.Number(1))
	h, _ := reg.MintOrReuse(arr)

	got, err := reg.Resolve(h)
	if err != nil || got != host.Ref(arr) {
		t.Fatalf("Resolve = %v, %v", got, err)
	}
	if !reg.Release(h) {
		t.Fatalf("Release reported unknown handle")
	}
	if reg.Release(h) {
		t.Fatalf("second Release should report false")
	}
	if _, err := reg.Resolve(h); !errors.Is(err, ErrUnknownHandle) {
		t.Fatalf("Resolve after release: %v", err)
	}

	// A released ref gets a fresh handle.
	h2, _ := reg.MintOrReuse(arr)
	if h2 == h {
		t.Fatalf("re-mint reused released handle")
	}
}

func TestHandlesDoNotCrossRealms(t *testing.T) {
	r1 := newTestRealm(t, nil)
	r2 := newTestRealm(t, func(o *RealmOptions) { o.ID = "realm-2" })

	obj := host.NewObject()
	h, _ := r1.Registry().MintOrReuse(obj)
	if _, err := r2.Registry().Resolve(h); !errors.Is(err, ErrUnknownHandle) {
		t.Fatalf("foreign realm resolved handle: %v", err)
	}
	// The same object registered in another realm is a separate binding.
	h2, _ := r2.Registry().MintOrReuse(obj)
	if h2 == h {
		t.Fatalf("realms share handle %q", h)
	}
}

func TestReleaseAllAndClose(t *testing.T) {
	hooks := newRecordingHooks()
	r := newTestRealm(t, func(o *RealmOptions) { o.Hooks = hooks })
	reg := r.Registry()

	for i := 0; i < 3; i++ {
		if _, err := reg.MintOrReuse(host.NewObject()); err != nil {
			t.Fatalf("MintOrReuse: %v", err)
		}
	}
	if n := reg.ReleaseAll(); n != 3 {
		t.Fatalf("ReleaseAll = %d, want 3", n)
	}
	if _, err := reg.MintOrReuse(host.NewObject()); err != nil {
		t.Fatalf("MintOrReuse: %v", err)
	}
	if err := r.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("Len after Close = %d", reg.Len())
	}
	if _, err := reg.MintOrReuse(host.NewObject()); !errors.Is(err, ErrRealmClosed) {
		t.Fatalf("mint after close: %v", err)
	}
	if hooks.released[releaseDisown] != 3 || hooks.released[releaseRealmClosed] != 1 {
		t.Fatalf("released hooks = %v", hooks.released)
	}
	if hooks.minted != 4 {
		t.Fatalf("minted hooks = %d, want 4", hooks.minted)
	}
}

func TestConcurrentMintSameRef(t *testing.T) {
	r := newTestRealm(t, nil)
	reg := r.Registry()
	obj := host.NewObject()

	const n = 32
	handles := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := reg.MintOrReuse(obj)
			if err != nil {
				t.Errorf("MintOrReuse: %v", err)
				return
			}
			handles[i] = h
			if _, err := reg.Resolve(h); err != nil {
				t.Errorf("Resolve: %v", err)
			}
		}(i)
	}
	wg.Wait()
	for _, h := range handles {
		if h != handles[0] {
			t.Fatalf("concurrent mints diverged: %q vs %q", h, handles[0])
		}
	}
	if reg.Len() != 1 {
		t.Fatalf("Len = %d, want 1", reg.Len())
	}
}

// ==============================
// Node identity
// ==============================

func TestNodeIdentityFormatAndStability(t *testing.T) {
	r := newTestRealm(t, nil)
	reg := r.Registry()

	a, b := host.NewElement("div"), host.NewElement("div")
	idA := reg.NodeIdentity(a)
	if idA != "nav_element_1" {
		t.Fatalf("sharedId = %q", idA)
	}
	if reg.NodeIdentity(a) != idA {
		t.Fatalf("sharedId not stable")
	}
	if idB := reg.NodeIdentity(b); idB == idA || !strings.Contains(idB, "_element_") {
		t.Fatalf("second node sharedId = %q", idB)
	}
	if n, ok := reg.ResolveSharedID(idA); !ok || n != a {
		t.Fatalf("ResolveSharedID = %v,%v", n, ok)
	}

	// Handles and sharedIds are independent namespaces.
	h, _ := reg.MintOrReuse(a)
	reg.Release(h)
	if reg.NodeIdentity(a) != idA {
		t.Fatalf("releasing the handle changed the sharedId")
	}
}

// ==============================
// Idle policy
// ==============================

func TestSweepReleasesIdleHandles(t *testing.T) {
	hooks := newRecordingHooks()
	r := newTestRealm(t, func(o *RealmOptions) {
		o.IdleTTL = time.Minute
		o.SweepInterval = time.Hour // swept by hand below
		o.Hooks = hooks
	})
	reg := r.Registry()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	reg.now = clock.Now

	idle, busy := host.NewObject(), host.NewObject()
	hIdle, _ := reg.MintOrReuse(idle)
	hBusy, _ := reg.MintOrReuse(busy)

	clock.Advance(45 * time.Second)
	if _, err := reg.Resolve(hBusy); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	clock.Advance(30 * time.Second)

	if n := reg.Sweep(); n != 1 {
		t.Fatalf("Sweep = %d, want 1", n)
	}
	if _, err := reg.Resolve(hIdle); !errors.Is(err, ErrUnknownHandle) {
		t.Fatalf("idle handle still resolves: %v", err)
	}
	if _, err := reg.Resolve(hBusy); err != nil {
		t.Fatalf("busy handle swept: %v", err)
	}
	if hooks.released[releaseIdle] != 1 {
		t.Fatalf("idle release hooks = %v", hooks.released)
	}
}

func TestSweepWithoutIdleTTLIsNoop(t *testing.T) {
	r := newTestRealm(t, nil)
	r.Registry().MintOrReuse(host.NewObject())
	if n := r.Registry().Sweep(); n != 0 {
		t.Fatalf("Sweep = %d, want 0", n)
	}
}

// ==============================
// Lease policy
// ==============================

func TestLeaseGrantedAndRevoked(t *testing.T) {
	mp := newMemProvider()
	r := newTestRealm(t, func(o *RealmOptions) { o.Leases = mp })
	reg := r.Registry()

	h, err := reg.MintOrReuse(host.NewObject())
	if err != nil {
		t.Fatalf("MintOrReuse: %v", err)
	}
	b, ok, _ := mp.Get(context.Background(), util.LeaseKey("realm-1", h))
	if !ok {
		t.Fatalf("lease not written")
	}
	rec, err := wire.DecodeLease(b)
	if err != nil || rec.Realm != "realm-1" || rec.Handle != h {
		t.Fatalf("lease record = %+v, %v", rec, err)
	}

	if _, err := reg.Resolve(h); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	reg.Release(h)
	if mp.len() != 0 {
		t.Fatalf("lease not revoked on release")
	}
}

func TestExpiredLeaseInvalidatesHandle(t *testing.T) {
	mp := newMemProvider()
	hooks := newRecordingHooks()
	r := newTestRealm(t, func(o *RealmOptions) {
		o.Leases = mp
		o.Hooks = hooks
	})
	reg := r.Registry()

	h, _ := reg.MintOrReuse(host.NewObject())
	_ = mp.Del(context.Background(), util.LeaseKey("realm-1", h)) // expiry

	if _, err := reg.Resolve(h); !errors.Is(err, ErrUnknownHandle) {
		t.Fatalf("Resolve with expired lease: %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("expired handle still registered")
	}
	if hooks.released[releaseLeaseExpired] != 1 {
		t.Fatalf("release hooks = %v", hooks.released)
	}
}

func TestCorruptLeaseSelfHeals(t *testing.T) {
	mp := newMemProvider()
	r := newTestRealm(t, func(o *RealmOptions) { o.Leases = mp })
	reg := r.Registry()
	ctx := context.Background()

	h, _ := reg.MintOrReuse(host.NewObject())
	key := util.LeaseKey("realm-1", h)

	// A well-formed record for a different handle is still foreign.
	foreign := wire.EncodeLease(wire.Lease{Realm: "realm-1", Handle: "other", Granted: time.Now()})
	_, _ = mp.Set(ctx, key, foreign, 1, 0)

	if _, err := reg.Resolve(h); !errors.Is(err, ErrUnknownHandle) {
		t.Fatalf("Resolve with foreign lease: %v", err)
	}
	if _, ok, _ := mp.Get(ctx, key); ok {
		t.Fatalf("corrupt lease not deleted")
	}

	h2, _ := reg.MintOrReuse(host.NewObject())
	_, _ = mp.Set(ctx, util.LeaseKey("realm-1", h2), []byte("garbage"), 1, 0)
	if _, err := reg.Resolve(h2); !errors.Is(err, ErrUnknownHandle) {
		t.Fatalf("Resolve with garbage lease: %v", err)
	}
}

func TestRejectedLeaseFailsMint(t *testing.T) {
	mp := newMemProvider()
	mp.reject = true
	hooks := newRecordingHooks()
	r := newTestRealm(t, func(o *RealmOptions) {
		o.Leases = mp
		o.Hooks = hooks
	})

	if _, err := r.Registry().MintOrReuse(host.NewObject()); !errors.Is(err, ErrLeaseRejected) {
		t.Fatalf("expected ErrLeaseRejected, got %v", err)
	}
	if r.Registry().Len() != 0 || hooks.rejected != 1 {
		t.Fatalf("Len=%d rejected=%d", r.Registry().Len(), hooks.rejected)
	}
}

func TestLeaseStoreErrorSurfaces(t *testing.T) {
	mp := newMemProvider()
	r := newTestRealm(t, func(o *RealmOptions) { o.Leases = mp })
	reg := r.Registry()

	h, _ := reg.MintOrReuse(host.NewObject())
	boom := errors.New("store down")
	mp.getErr = boom

	if _, err := reg.Resolve(h); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
	// A store outage is not an expiry; the binding survives.
	mp.getErr = nil
	if _, err := reg.Resolve(h); err != nil {
		t.Fatalf("Resolve after outage: %v", err)
	}
}

// prefixProvider deletes by prefix and counts single-key deletes.
type prefixProvider struct {
	*memProvider
	dels     int
	prefixes []string
}

func (p *prefixProvider) Del(ctx context.Context, key string) error {
	p.mu.Lock()
	p.dels++
	p.mu.Unlock()
	return p.memProvider.Del(ctx, key)
}

func (p *prefixProvider) DelPrefix(_ context.Context, prefix string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prefixes = append(p.prefixes, prefix)
	n := 0
	for k := range p.m {
		if strings.HasPrefix(k, prefix) {
			delete(p.m, k)
			n++
		}
	}
	return n, nil
}

func TestCloseRevokesRealmLeasesByPrefix(t *testing.T) {
	ctx := context.Background()
	pp := &prefixProvider{memProvider: newMemProvider()}
	// Left behind by an earlier process with the same realm id.
	pp.Set(ctx, util.LeaseKey("realm-1", "stale"), []byte("x"), 1, 0)
	pp.Set(ctx, util.LeaseKey("realm-10", "other"), []byte("x"), 1, 0)

	r := newTestRealm(t, func(o *RealmOptions) { o.Leases = pp })
	for i := 0; i < 3; i++ {
		if _, err := r.Registry().MintOrReuse(host.NewObject()); err != nil {
			t.Fatalf("MintOrReuse: %v", err)
		}
	}
	if err := r.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if len(pp.prefixes) != 1 || pp.prefixes[0] != "lease:realm-1:" {
		t.Fatalf("prefixes = %v", pp.prefixes)
	}
	if pp.dels != 0 {
		t.Fatalf("per-handle deletes = %d, want 0", pp.dels)
	}
	if _, ok, _ := pp.Get(ctx, util.LeaseKey("realm-10", "other")); !ok || pp.len() != 1 {
		t.Fatalf("purge reached another realm; left %d keys", pp.len())
	}
}

func TestReleaseAllRevokesPerHandle(t *testing.T) {
	pp := &prefixProvider{memProvider: newMemProvider()}
	r := newTestRealm(t, func(o *RealmOptions) { o.Leases = pp })
	r.Registry().MintOrReuse(host.NewObject())
	r.Registry().MintOrReuse(host.NewObject())

	if n := r.Registry().ReleaseAll(); n != 2 {
		t.Fatalf("ReleaseAll = %d", n)
	}
	if pp.dels != 2 || len(pp.prefixes) != 0 || pp.len() != 0 {
		t.Fatalf("dels = %d, prefixes = %v, left = %d", pp.dels, pp.prefixes, pp.len())
	}
}
