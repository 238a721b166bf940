// Package redis keeps handle leases in Redis so that several bridge processes
// serving the same realms agree on which handles are alive.
package redis

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/remoteval/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

// scanCount is the COUNT hint for each SCAN page.
const scanCount = 256

type Redis struct {
	rdb         goredis.UniversalClient
	prefix      string
	closeClient bool
}

var (
	_ pr.Provider      = (*Redis)(nil)
	_ pr.PrefixDeleter = (*Redis)(nil)
)

type Config struct {
	Client goredis.UniversalClient

	// Prefix namespaces every key, so bridges for different deployments can
	// share one Redis. It is prepended to the lease keys the realm builds.
	Prefix string

	CloseClient bool // set true only if this provider exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, prefix: cfg.Prefix, closeClient: cfg.CloseClient}, nil
}

func (p *Redis) key(k string) string { return p.prefix + k }

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, p.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Set writes the lease with a server-side expiry. A zero TTL stores the
// lease without expiry.
func (p *Redis) Set(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	if err := p.rdb.Set(ctx, p.key(key), value, ttl).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Redis) Del(ctx context.Context, key string) error {
	return p.rdb.Del(ctx, p.key(key)).Err()
}

// DelPrefix removes every key under prefix with SCAN and UNLINK. On a
// cluster each master is scanned in turn. Keys written while the scan runs
// may survive it.
func (p *Redis) DelPrefix(ctx context.Context, prefix string) (int, error) {
	match := MatchPattern(p.key(prefix))
	if c, ok := p.rdb.(*goredis.ClusterClient); ok {
		var total atomic.Int64
		err := c.ForEachMaster(ctx, func(ctx context.Context, node *goredis.Client) error {
			n, err := scanUnlink(ctx, node, match)
			total.Add(int64(n))
			return err
		})
		return int(total.Load()), err
	}
	return scanUnlink(ctx, p.rdb, match)
}

// scanUnlink unlinks one key per command in a pipeline; cluster nodes
// reject multi-key commands that span hash slots.
func scanUnlink(ctx context.Context, c goredis.Cmdable, match string) (int, error) {
	var (
		cursor uint64
		n      int
	)
	for {
		keys, next, err := c.Scan(ctx, cursor, match, scanCount).Result()
		if err != nil {
			return n, err
		}
		if len(keys) > 0 {
			pipe := c.Pipeline()
			for _, k := range keys {
				pipe.Unlink(ctx, k)
			}
			if _, err := pipe.Exec(ctx); err != nil {
				return n, err
			}
			n += len(keys)
		}
		if next == 0 {
			return n, nil
		}
		cursor = next
	}
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// MatchPattern is the SCAN MATCH pattern for every key starting with prefix.
func MatchPattern(prefix string) string {
	return globEscaper.Replace(prefix) + "*"
}

// Close releases the underlying redis client only when this provider owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
