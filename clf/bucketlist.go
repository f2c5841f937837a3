package clf

import (
	"context"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/ledgerwatch/turbo-clf/common"
	"github.com/ledgerwatch/turbo-clf/log"
)

// DefaultNumLevels is the level count used when the caller doesn't choose.
const DefaultNumLevels = 11

// BucketList is the fixed-height stack of levels summarizing cumulative
// ledger state: the ingestion entry point, the per-level rotation/merge
// schedule, and the top-level hash.
type BucketList struct {
	mu     sync.RWMutex
	master *CLFMaster
	levels []*Level
	hash   common.Hash256
}

// NewBucketList creates a BucketList with numLevels levels, every one
// starting at the canonical empty bucket. numLevels <= 0 falls back to
// DefaultNumLevels.
func NewBucketList(master *CLFMaster, numLevels int) *BucketList {
	if numLevels <= 0 {
		numLevels = DefaultNumLevels
	}
	levels := make([]*Level, numLevels)
	for i := range levels {
		levels[i] = NewLevel()
	}
	bl := &BucketList{master: master, levels: levels}
	bl.recomputeHash()
	return bl
}

// NumLevels returns the fixed level count N.
func (bl *BucketList) NumLevels() int {
	bl.mu.RLock()
	defer bl.mu.RUnlock()
	return len(bl.levels)
}

// GetLevel returns a read-only snapshot of level j's (curr, snap) pointers.
// Because Buckets are immutable and only ever replaced wholesale, a reader
// holding this view never observes a torn level.
func (bl *BucketList) GetLevel(j int) LevelView {
	bl.mu.RLock()
	defer bl.mu.RUnlock()
	l := bl.levels[j]
	return LevelView{Curr: l.Curr, Snap: l.Snap}
}

// Hash returns the current top-level hash.
func (bl *BucketList) Hash() common.Hash256 {
	bl.mu.RLock()
	defer bl.mu.RUnlock()
	return bl.hash
}

// recomputeHash hashes each level's (curr.hash, snap.hash) concatenated in
// level order. Caller must hold bl.mu.
func (bl *BucketList) recomputeHash() {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}
	for _, l := range bl.levels {
		ch := l.Curr.Hash()
		sh := l.Snap.Hash()
		h.Write(ch[:])
		h.Write(sh[:])
	}
	copy(bl.hash[:], h.Sum(nil))
}

// AddBatch ingests ledger ledgerSeq's (live, dead) mutation batch: builds
// a fresh bucket, merges it into level 0, runs every level's scheduled
// snapshot/spill-up step, and recomputes the top-level hash.
func (bl *BucketList) AddBatch(ctx context.Context, ledgerSeq uint64, live []LedgerEntry, dead []LedgerKey) error {
	bl.mu.Lock()
	defer bl.mu.Unlock()

	dir := bl.master.TmpDir()
	incoming, err := Fresh(dir, live, dead)
	if err != nil {
		return err
	}

	n := len(bl.levels)
	if err := bl.levels[0].Prepare(dir, incoming); err != nil {
		return err
	}

	for j := 0; j < n; j++ {
		half := HalfPeriod(j)
		full := FullPeriod(j)

		if ledgerSeq%half == 0 && ledgerSeq%full != 0 {
			bl.levels[j].snapshot()
		}

		if ledgerSeq%full == 0 && j+1 < n {
			shadows := bl.shadowBucketsAbove(j)
			dropDead := j+1 == n-1
			target := bl.levels[j+1]
			snap := bl.levels[j].Snap
			merged, err := bl.master.SubmitMerge(ctx, func() (*Bucket, error) {
				return Merge(dir, target.Curr, snap, shadows, dropDead)
			})
			if err != nil {
				return err
			}
			target.commit(merged)
			bl.levels[j].Snap = EmptyBucket()
		}
	}

	bl.recomputeHash()
	log.Debug("addBatch applied", "ledger", ledgerSeq, "hash", bl.hash.Hex())
	return nil
}

// shadowBucketsAbove collects every bucket holding writes newer than
// snap(j): curr and snap of every level shallower than j, plus level j's
// own curr. A merge spilling snap(j) into level j+1 masks against these,
// so an identity still being rewritten near the top of the list never
// drags stale copies into deeper levels.
func (bl *BucketList) shadowBucketsAbove(j int) []*Bucket {
	var shadows []*Bucket
	for k := 0; k < j; k++ {
		shadows = append(shadows, bl.levels[k].Curr, bl.levels[k].Snap)
	}
	shadows = append(shadows, bl.levels[j].Curr)
	return shadows
}
