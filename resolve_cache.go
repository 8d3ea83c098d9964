package ernode

import (
	"context"
	"net"

	lru "github.com/hashicorp/golang-lru"
)

// resolveCache memoizes hostname→address-list DNS lookups so repeated
// dials to the same node don't pay a resolver round trip every time
// (spec §4.7 "Resolution": "host is resolved to an endpoint list").
type resolveCache struct {
	cache *lru.Cache
}

func newResolveCache(size int) *resolveCache {
	if size <= 0 {
		size = 128
	}
	c, err := lru.New(size)
	if err != nil {
		// lru.New only fails on a non-positive size, already guarded above.
		panic(err)
	}
	return &resolveCache{cache: c}
}

// resolve returns the cached address list for host, populating the cache
// on a miss via net.DefaultResolver.
func (r *resolveCache) resolve(ctx context.Context, host string) ([]net.IPAddr, error) {
	if v, ok := r.cache.Get(host); ok {
		return v.([]net.IPAddr), nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	r.cache.Add(host, addrs)
	return addrs, nil
}

// invalidate drops host's cached entry, used after a failed connect so
// the next dial re-resolves instead of retrying a stale address.
func (r *resolveCache) invalidate(host string) {
	r.cache.Remove(host)
}
