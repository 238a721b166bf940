package remoteval

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/remoteval/host"
	"github.com/unkn0wn-root/remoteval/remote"
)

// Realm is one evaluation context: it owns a handle registry and the
// serializer and deserializer bound to it. Realms never share handles or
// sharedIds.
type Realm struct {
	id                string
	browsingContextID string
	navigableID       string
	sandbox           string
	origin            string
	typ               string

	defaultDepth int

	reg *HandleRegistry
	ser *Serializer
	des *Deserializer
	log Logger
}

// RealmInfo is the protocol's description of a realm.
type RealmInfo struct {
	Realm   string `json:"realm"`
	Origin  string `json:"origin"`
	Type    string `json:"type"`
	Context string `json:"context,omitempty"`
	Sandbox string `json:"sandbox,omitempty"`
}

func newRealm(opts RealmOptions) (*Realm, error) {
	if opts.DefaultDepth < 0 {
		return nil, errors.New("remoteval: DefaultDepth must be >= 0")
	}
	if opts.MaxNodeChildren < 0 {
		return nil, errors.New("remoteval: MaxNodeChildren must be >= 0")
	}
	if opts.IdleTTL < 0 || opts.SweepInterval < 0 || opts.LeaseTTL < 0 || opts.LeaseTimeout < 0 {
		return nil, errors.New("remoteval: durations must be >= 0")
	}

	var log Logger = NopLogger{}
	if opts.Logger != nil {
		log = opts.Logger
	}
	var hooks Hooks = NopHooks{}
	if opts.Hooks != nil {
		hooks = opts.Hooks
	}

	r := &Realm{
		id:                coalesce(opts.ID, uuid.NewString()),
		browsingContextID: opts.BrowsingContextID,
		navigableID:       coalesce(opts.NavigableID, defaultNavigableID),
		sandbox:           opts.Sandbox,
		origin:            opts.Origin,
		typ:               coalesce(opts.Type, defaultRealmType),
		defaultDepth:      coalesce(opts.DefaultDepth, DefaultDepth),
		log:               log,
	}

	cfg := registryConfig{
		realm:       r.id,
		navigableID: r.navigableID,
		idleTTL:     opts.IdleTTL,
		log:         log,
		hooks:       hooks,
	}
	if opts.IdleTTL > 0 {
		cfg.sweepInterval = coalesce(opts.SweepInterval, opts.IdleTTL/2)
	}
	if opts.Leases != nil {
		cfg.leases = &leaseStore{
			p:       opts.Leases,
			realm:   r.id,
			ttl:     coalesce(opts.LeaseTTL, defaultLeaseTTL),
			timeout: coalesce(opts.LeaseTimeout, defaultLeaseTimeout),
			log:     log,
			hooks:   hooks,
		}
	}

	r.reg = newRegistry(cfg)
	r.ser = &Serializer{reg: r.reg, maxNodeChildren: opts.MaxNodeChildren, hooks: hooks}
	r.des = &Deserializer{reg: r.reg}

	log.Debug("realm created", Fields{
		"realm":   r.id,
		"context": r.browsingContextID,
		"sandbox": r.sandbox,
		"leases":  opts.Leases != nil,
		"idleTTL": opts.IdleTTL.String(),
	})
	return r, nil
}

func (r *Realm) ID() string                  { return r.id }
func (r *Realm) BrowsingContextID() string   { return r.browsingContextID }
func (r *Realm) NavigableID() string         { return r.navigableID }
func (r *Realm) Sandbox() string             { return r.sandbox }
func (r *Realm) Origin() string              { return r.origin }
func (r *Realm) Type() string                { return r.typ }
func (r *Realm) DefaultDepth() int           { return r.defaultDepth }
func (r *Realm) Registry() *HandleRegistry   { return r.reg }
func (r *Realm) Serializer() *Serializer     { return r.ser }
func (r *Realm) Deserializer() *Deserializer { return r.des }

// Info describes the realm for realm-created events and getRealms.
func (r *Realm) Info() RealmInfo {
	return RealmInfo{
		Realm:   r.id,
		Origin:  r.origin,
		Type:    r.typ,
		Context: r.browsingContextID,
		Sandbox: r.sandbox,
	}
}

// Serialize converts v with an explicit depth.
func (r *Realm) Serialize(v host.Value, ownership Ownership, maxDepth int) (remote.RemoteValue, error) {
	return r.ser.Serialize(v, ownership, maxDepth)
}

// SerializeDefault converts v at the realm's default depth.
func (r *Realm) SerializeDefault(v host.Value, ownership Ownership) (remote.RemoteValue, error) {
	return r.ser.Serialize(v, ownership, r.defaultDepth)
}

func (r *Realm) Deserialize(rv remote.RemoteValue) (host.Value, error) {
	return r.des.Deserialize(rv)
}

func (r *Realm) DeserializeArgs(args []remote.RemoteValue) ([]host.Value, error) {
	return r.des.DeserializeArgs(args)
}

// Disown releases the given handles. Unknown handles are ignored, matching
// script.disown. It returns how many were released.
func (r *Realm) Disown(handles ...string) int {
	n := 0
	for _, h := range handles {
		if r.reg.Release(h) {
			n++
		}
	}
	return n
}

// Close releases every handle and stops background sweeping.
func (r *Realm) Close(_ context.Context) error {
	if err := r.reg.Close(); err != nil {
		return fmt.Errorf("close realm %s: %w", r.id, err)
	}
	r.log.Debug("realm closed", Fields{"realm": r.id})
	return nil
}
