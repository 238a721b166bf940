package remoteval

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/unkn0wn-root/remoteval/host"
)

// RealmFilter selects realms. Zero fields match anything; Sandbox is a
// pointer so that the default (empty) sandbox can be asked for explicitly.
type RealmFilter struct {
	ID                string
	BrowsingContextID string
	NavigableID       string
	Sandbox           *string
	Type              string
}

func (f RealmFilter) match(r *Realm) bool {
	switch {
	case f.ID != "" && f.ID != r.id:
		return false
	case f.BrowsingContextID != "" && f.BrowsingContextID != r.browsingContextID:
		return false
	case f.NavigableID != "" && f.NavigableID != r.navigableID:
		return false
	case f.Sandbox != nil && *f.Sandbox != r.sandbox:
		return false
	case f.Type != "" && f.Type != r.typ:
		return false
	}
	return true
}

// RealmStorage indexes the live realms of a bridge. Realms are returned in
// the order they were added.
type RealmStorage struct {
	mu     sync.RWMutex
	realms map[string]*Realm
	order  []string
}

func NewRealmStorage() *RealmStorage {
	return &RealmStorage{realms: make(map[string]*Realm)}
}

// Add registers r. Realm ids are unique.
func (s *RealmStorage) Add(r *Realm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.realms[r.id]; dup {
		return fmt.Errorf("remoteval: realm %q already registered", r.id)
	}
	s.realms[r.id] = r
	s.order = append(s.order, r.id)
	return nil
}

// Get returns the realm with id or ErrNoRealm.
func (s *RealmStorage) Get(id string) (*Realm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.realms[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoRealm, id)
	}
	return r, nil
}

// Find returns every realm matching f.
func (s *RealmStorage) Find(f RealmFilter) []*Realm {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Realm
	for _, id := range s.order {
		if r := s.realms[id]; f.match(r) {
			out = append(out, r)
		}
	}
	return out
}

// GetOne returns the single realm matching f. No match, or more than one,
// is ErrNoRealm.
func (s *RealmStorage) GetOne(f RealmFilter) (*Realm, error) {
	found := s.Find(f)
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return nil, fmt.Errorf("%w: no realm matches %+v", ErrNoRealm, f)
	}
	return nil, fmt.Errorf("%w: %d realms match %+v", ErrNoRealm, len(found), f)
}

// Delete removes and closes every realm matching f, returning how many.
func (s *RealmStorage) Delete(ctx context.Context, f RealmFilter) (int, error) {
	s.mu.Lock()
	var removed []*Realm
	kept := s.order[:0]
	for _, id := range s.order {
		r := s.realms[id]
		if f.match(r) {
			removed = append(removed, r)
			delete(s.realms, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	s.mu.Unlock()

	var errs []error
	for _, r := range removed {
		if err := r.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return len(removed), errors.Join(errs...)
}

// ResolveHandle finds the realm holding handle and resolves it there.
func (s *RealmStorage) ResolveHandle(handle string) (*Realm, host.Ref, error) {
	for _, r := range s.Find(RealmFilter{}) {
		if !r.reg.Owns(handle) {
			continue
		}
		ref, err := r.reg.Resolve(handle)
		if err != nil {
			return nil, nil, err
		}
		return r, ref, nil
	}
	return nil, nil, ErrUnknownHandle
}

// Len is the number of stored realms.
func (s *RealmStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.realms)
}
