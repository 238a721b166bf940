package main

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/remoteval/provider"
	bcp "github.com/unkn0wn-root/remoteval/provider/bigcache"
	rp "github.com/unkn0wn-root/remoteval/provider/redis"
	rcp "github.com/unkn0wn-root/remoteval/provider/ristretto"
)

// newLeases opens the configured lease store. "none" returns nil: handles
// then live until disowned or the realm closes.
func newLeases(cfg LeaseConfig) (pr.Provider, error) {
	switch cfg.Store {
	case "", "none":
		return nil, nil
	case "ristretto":
		return rcp.New(rcp.DefaultConfig(cfg.Max))
	case "bigcache":
		return bcp.New(bcp.Config{LifeWindow: cfg.TTL, MaxEntriesInWindow: int(cfg.Max)})
	case "redis":
		return rp.New(rp.Config{
			Client:      goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr}),
			Prefix:      cfg.RedisPrefix,
			CloseClient: true,
		})
	}
	return nil, fmt.Errorf("unknown lease store %q", cfg.Store)
}
