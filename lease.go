package remoteval

import (
	"context"
	"errors"
	"time"

	"github.com/unkn0wn-root/remoteval/internal/util"
	"github.com/unkn0wn-root/remoteval/internal/wire"
	pr "github.com/unkn0wn-root/remoteval/provider"
)

type leaseState uint8

const (
	leaseAlive leaseState = iota
	leaseMissing
	leaseCorrupt
)

// leaseStore writes one record per live handle into a provider. Every call
// is bounded by timeout; the registry never holds its lock across one.
type leaseStore struct {
	p       pr.Provider
	realm   string
	ttl     time.Duration
	timeout time.Duration
	log     Logger
	hooks   Hooks
	now     func() time.Time
}

func (l *leaseStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), l.timeout)
}

func (l *leaseStore) record(handle string) []byte {
	return wire.EncodeLease(wire.Lease{Realm: l.realm, Handle: handle, Granted: l.now()})
}

// grant writes a fresh lease. ok=false means the store refused the write.
func (l *leaseStore) grant(handle string) (bool, error) {
	ctx, cancel := l.ctx()
	defer cancel()

	ok, err := l.p.Set(ctx, util.LeaseKey(l.realm, handle), l.record(handle), 1, l.ttl)
	if err != nil {
		l.hooks.LeaseError(l.realm, "grant", err)
		l.log.Warn("lease grant failed", Fields{"realm": l.realm, "handle": util.ShortHash(handle), "err": err})
		return false, err
	}
	if !ok {
		l.hooks.LeaseRejected(l.realm, handle)
		l.log.Warn("lease rejected", Fields{"realm": l.realm, "handle": util.ShortHash(handle)})
		return false, nil
	}
	return true, nil
}

// check reports whether handle's lease is alive and extends it when it is.
// A record that does not decode, or that names another binding, is deleted.
func (l *leaseStore) check(handle string) (leaseState, error) {
	ctx, cancel := l.ctx()
	defer cancel()

	key := util.LeaseKey(l.realm, handle)
	b, ok, err := l.p.Get(ctx, key)
	if err != nil {
		l.hooks.LeaseError(l.realm, "check", err)
		l.log.Warn("lease check failed", Fields{"realm": l.realm, "handle": util.ShortHash(handle), "err": err})
		return leaseMissing, err
	}
	if !ok {
		return leaseMissing, nil
	}

	rec, err := wire.DecodeLease(b)
	if err == nil && (rec.Realm != l.realm || rec.Handle != handle) {
		err = wire.ErrCorrupt
	}
	if err != nil {
		if errors.Is(err, wire.ErrCorrupt) {
			_ = l.p.Del(ctx, key) // self-heal
		}
		l.log.Warn("lease record corrupt", Fields{"realm": l.realm, "handle": util.ShortHash(handle)})
		return leaseCorrupt, nil
	}

	// Refresh; a failed refresh leaves the current lease in place.
	if ok, err := l.p.Set(ctx, key, l.record(handle), 1, l.ttl); err != nil || !ok {
		l.log.Debug("lease refresh skipped", Fields{"realm": l.realm, "handle": util.ShortHash(handle), "err": err})
	}
	return leaseAlive, nil
}

// revoke is best-effort.
func (l *leaseStore) revoke(handle string) {
	ctx, cancel := l.ctx()
	defer cancel()

	if err := l.p.Del(ctx, util.LeaseKey(l.realm, handle)); err != nil {
		l.hooks.LeaseError(l.realm, "revoke", err)
		l.log.Warn("lease revoke failed", Fields{"realm": l.realm, "handle": util.ShortHash(handle), "err": err})
	}
}

// revokeRealm drops every lease of the realm when the provider can delete by
// prefix. It reports whether it did; callers fall back to revoke per handle.
func (l *leaseStore) revokeRealm() bool {
	pd, ok := l.p.(pr.PrefixDeleter)
	if !ok {
		return false
	}
	ctx, cancel := l.ctx()
	defer cancel()

	n, err := pd.DelPrefix(ctx, util.RealmLeasePrefix(l.realm))
	if err != nil {
		l.hooks.LeaseError(l.realm, "revoke_realm", err)
		l.log.Warn("realm lease purge failed", Fields{"realm": l.realm, "err": err})
		return false
	}
	l.log.Debug("realm leases purged", Fields{"realm": l.realm, "count": n})
	return true
}
