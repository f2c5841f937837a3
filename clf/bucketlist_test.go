package clf

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomBatch(r *rand.Rand, liveN, deadN int, seed int) ([]LedgerEntry, []LedgerKey) {
	live := make([]LedgerEntry, liveN)
	for i := range live {
		live[i] = LedgerEntry{
			Key:     AccountKey(acctID(seed*1000 + i)),
			Balance: r.Uint64(),
		}
	}
	dead := make([]LedgerKey, deadN)
	for i := range dead {
		dead[i] = AccountKey(acctID(seed*1000 + 500 + i))
	}
	return live, dead
}

func newTestBucketList(t *testing.T, numLevels int) (*BucketList, *CLFMaster) {
	t.Helper()
	master, err := NewCLFMaster(2)
	require.NoError(t, err)
	t.Cleanup(func() { master.Close() })
	return NewBucketList(master, numLevels), master
}

func TestBucketListSizeBound(t *testing.T) {
	bl, _ := newTestBucketList(t, 8)
	ctx := context.Background()
	r := rand.New(rand.NewSource(1))

	for i := uint64(1); i < 130; i++ {
		live, dead := randomBatch(r, 8, 5, int(i))
		require.NoError(t, bl.AddBatch(ctx, i, live, dead))

		for j := 0; j < bl.NumLevels(); j++ {
			lv := bl.GetLevel(j)
			bound := int(HalfPeriod(j) * 100)
			require.LessOrEqual(t, lv.Curr.Len(), bound, "level %d curr at ledger %d", j, i)
			require.LessOrEqual(t, lv.Snap.Len(), bound, "level %d snap at ledger %d", j, i)
		}
	}
}

func TestBucketListShadowing(t *testing.T) {
	bl, _ := newTestBucketList(t, 6)
	ctx := context.Background()
	r := rand.New(rand.NewSource(2))

	alice := AccountKey(acctID(16_000_001))
	bob := AccountKey(acctID(16_000_002))
	var aliceBalance, bobBalance uint64

	for i := uint64(1); i < 1200; i++ {
		live, dead := randomBatch(r, 5, 5, int(i))
		aliceBalance++
		bobBalance++
		live = append(live, LedgerEntry{Key: alice, Balance: aliceBalance}, LedgerEntry{Key: bob, Balance: bobBalance})

		require.NoError(t, bl.AddBatch(ctx, i, live, dead))

		lv0 := bl.GetLevel(0)
		hasAlice0, err := containsEither(lv0, alice)
		require.NoError(t, err)
		hasBob0, err := containsEither(lv0, bob)
		require.NoError(t, err)
		require.True(t, hasAlice0)
		require.True(t, hasBob0)

		for j := 1; j < bl.NumLevels(); j++ {
			lv := bl.GetLevel(j)
			hasAlice, err := containsEither(lv, alice)
			require.NoError(t, err)
			hasBob, err := containsEither(lv, bob)
			require.NoError(t, err)
			require.False(t, hasAlice, "alice leaked into level %d at ledger %d", j, i)
			require.False(t, hasBob, "bob leaked into level %d at ledger %d", j, i)
		}
	}
}

func containsEither(lv LevelView, id LedgerKey) (bool, error) {
	ok, err := lv.Curr.ContainsIdentity(id)
	if err != nil || ok {
		return ok, err
	}
	return lv.Snap.ContainsIdentity(id)
}

func TestBucketListHashIsDeterministic(t *testing.T) {
	ctx := context.Background()
	bl1, _ := newTestBucketList(t, 5)
	bl2, _ := newTestBucketList(t, 5)

	for i := uint64(1); i < 40; i++ {
		r1 := rand.New(rand.NewSource(int64(i)))
		r2 := rand.New(rand.NewSource(int64(i)))
		live1, dead1 := randomBatch(r1, 4, 2, int(i))
		live2, dead2 := randomBatch(r2, 4, 2, int(i))
		require.NoError(t, bl1.AddBatch(ctx, i, live1, dead1))
		require.NoError(t, bl2.AddBatch(ctx, i, live2, dead2))
	}
	require.Equal(t, bl1.Hash(), bl2.Hash())
}
