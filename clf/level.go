package clf

import lru "github.com/hashicorp/golang-lru"

// recentShadowAnswers bounds the LRU of final membership answers that each
// ShadowSet keeps for the single merge it serves.
const recentShadowAnswers = 4096

// sharedIdentityCache is the identityCache every ShadowSet consults. Its
// answers are keyed by shadow bucket content hash, so they carry over from
// one merge to the next while a coarse shadow bucket stays unchanged.
var sharedIdentityCache = newIdentityCache()

// ShadowSet wraps the (possibly several) coarser buckets that mask entries
// during a merge. It layers three checks from cheapest to most expensive:
// an LRU of recent final answers, a roaring bitmap pre-filter per bucket,
// then an exact scan. A long run with a few continuously-churned
// identities does at most one exact scan per identity per bucket instead
// of one per ledger.
type ShadowSet struct {
	buckets []*Bucket
	indices []*shadowIndex
	cache   *identityCache
	recent  *lru.Cache
}

// NewShadowSet builds the per-bucket roaring indices once; callers reuse
// the returned set for every entry emitted during a single merge.
func NewShadowSet(buckets []*Bucket) (*ShadowSet, error) {
	if len(buckets) == 0 {
		return &ShadowSet{}, nil
	}
	indices := make([]*shadowIndex, len(buckets))
	for i, b := range buckets {
		idx, err := buildShadowIndex(b)
		if err != nil {
			return nil, err
		}
		indices[i] = idx
	}
	recent, err := lru.New(recentShadowAnswers)
	if err != nil {
		return nil, err
	}
	return &ShadowSet{buckets: buckets, indices: indices, cache: sharedIdentityCache, recent: recent}, nil
}

// Contains reports whether id appears in any bucket of the shadow set.
func (s *ShadowSet) Contains(id LedgerKey) (bool, error) {
	if s == nil || len(s.buckets) == 0 {
		return false, nil
	}
	lruKey := string(encodeKey(id))
	if v, ok := s.recent.Get(lruKey); ok {
		return v.(bool), nil
	}
	for i, b := range s.buckets {
		if !s.indices[i].mayContain(id) {
			continue
		}
		hash := b.Hash()
		if present, found := s.cache.get(hash, id); found {
			if present {
				s.recent.Add(lruKey, true)
				return true, nil
			}
			continue
		}
		present, err := b.ContainsIdentity(id)
		if err != nil {
			return false, err
		}
		s.cache.set(hash, id, present)
		if present {
			s.recent.Add(lruKey, true)
			return true, nil
		}
	}
	s.recent.Add(lruKey, false)
	return false, nil
}

func encodeKey(id LedgerKey) []byte {
	buf := make([]byte, keyEncodingLength(id))
	id.Encode(buf)
	return buf
}

// Level holds a (curr, snap) bucket pair. curr accumulates additions at
// this level since the last snapshot; snap is the most recently frozen
// output waiting to be consumed by the next level.
type Level struct {
	Curr *Bucket
	Snap *Bucket
}

// NewLevel returns a Level with both buckets set to the canonical empty
// Bucket.
func NewLevel() *Level {
	return &Level{Curr: EmptyBucket(), Snap: EmptyBucket()}
}

// Prepare merges incoming into curr using the merge engine.
func (l *Level) Prepare(dir string, incoming *Bucket) error {
	merged, err := Merge(dir, l.Curr, incoming, nil, false)
	if err != nil {
		return err
	}
	l.Curr = merged
	return nil
}

// snapshot moves curr into snap and resets curr to empty.
func (l *Level) snapshot() {
	l.Snap = l.Curr
	l.Curr = EmptyBucket()
}

// commit installs the output of a spill-up merge as this level's curr. The
// merge either completed fully or errored before reaching here, so a level
// is never left holding a partial bucket.
func (l *Level) commit(merged *Bucket) {
	l.Curr = merged
}

// LevelView is the read-only projection of a Level exposed through
// BucketList.GetLevel.
type LevelView struct {
	Curr *Bucket
	Snap *Bucket
}

// GetCurr and GetSnap mirror the accessor style of the ingestion API
// alongside the plain Curr/Snap fields Go callers reach for directly.
func (v LevelView) GetCurr() *Bucket { return v.Curr }
func (v LevelView) GetSnap() *Bucket { return v.Snap }
