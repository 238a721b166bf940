package remoteval

import (
	"context"
	"sync"
	"testing"
	"time"

	pr "github.com/unkn0wn-root/remoteval/provider"
	"github.com/unkn0wn-root/remoteval/remote"
)

type memEntry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type memProvider struct {
	mu     sync.Mutex
	m      map[string]memEntry
	reject bool // refuse every Set
	getErr error
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string]memEntry)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.getErr != nil {
		return nil, false, p.getErr
	}
	e, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(p.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reject {
		return false, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.m[key] = memEntry{v: append([]byte(nil), value...), exp: exp}
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.m, key)
	return nil
}

func (p *memProvider) Close(_ context.Context) error { return nil }

func (p *memProvider) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}

type recordingHooks struct {
	NopHooks
	mu        sync.Mutex
	minted    int
	released  map[string]int // by reason
	unknown   int
	rejected  int
	truncated int
}

func newRecordingHooks() *recordingHooks {
	return &recordingHooks{released: make(map[string]int)}
}

func (h *recordingHooks) HandleMinted(string, string) {
	h.mu.Lock()
	h.minted++
	h.mu.Unlock()
}

func (h *recordingHooks) HandleReleased(_, _, reason string) {
	h.mu.Lock()
	h.released[reason]++
	h.mu.Unlock()
}

func (h *recordingHooks) UnknownHandle(string, string) {
	h.mu.Lock()
	h.unknown++
	h.mu.Unlock()
}

func (h *recordingHooks) LeaseRejected(string, string) {
	h.mu.Lock()
	h.rejected++
	h.mu.Unlock()
}

func (h *recordingHooks) DepthTruncated(string, remote.Type) {
	h.mu.Lock()
	h.truncated++
	h.mu.Unlock()
}

func newTestRealm(t *testing.T, optsOpt func(*RealmOptions)) *Realm {
	t.Helper()
	opts := RealmOptions{
		ID:                "realm-1",
		BrowsingContextID: "ctx-1",
		NavigableID:       "nav",
	}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	r, err := NewRealm(opts)
	if err != nil {
		t.Fatalf("NewRealm: %v", err)
	}
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	return r
}

func mustJSON(t *testing.T, rv remote.RemoteValue) string {
	t.Helper()
	b, err := rv.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	return string(b)
}

func mustParse(t *testing.T, s string) remote.RemoteValue {
	t.Helper()
	var rv remote.RemoteValue
	if err := rv.UnmarshalJSON([]byte(s)); err != nil {
		t.Fatalf("UnmarshalJSON(%s): %v", s, err)
	}
	return rv
}

// fakeClock drives the registry's idle bookkeeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
