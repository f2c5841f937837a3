package clf

import "github.com/VictoriaMetrics/fastcache"

// identityCacheBytes sizes the off-heap cache backing every ShadowSet. The
// workload is small fixed-size keys with a single byte value, so a modest
// cache covers a large number of distinct (shadow bucket, identity) pairs.
const identityCacheBytes = 4 * 1024 * 1024

// identityCache remembers recent shadow-membership answers so a hot,
// continuously-churned identity doesn't re-scan a coarse shadow bucket on
// every ledger.
type identityCache struct {
	c *fastcache.Cache
}

func newIdentityCache() *identityCache {
	return &identityCache{c: fastcache.New(identityCacheBytes)}
}

func identityCacheKey(shadowHash [32]byte, id LedgerKey) []byte {
	buf := make([]byte, 32+keyEncodingLength(id))
	copy(buf, shadowHash[:])
	id.Encode(buf[32:])
	return buf
}

func (ic *identityCache) get(shadowHash [32]byte, id LedgerKey) (present bool, found bool) {
	key := identityCacheKey(shadowHash, id)
	v, found := ic.c.HasGet(nil, key)
	if !found {
		return false, false
	}
	return len(v) == 1 && v[0] == 1, true
}

func (ic *identityCache) set(shadowHash [32]byte, id LedgerKey, present bool) {
	key := identityCacheKey(shadowHash, id)
	v := byte(0)
	if present {
		v = 1
	}
	ic.c.Set(key, []byte{v})
}
