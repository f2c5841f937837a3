package clf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeIdempotentAnnihilation(t *testing.T) {
	dir := mustTmpDir(t)
	id := acctID(1)
	b1, err := Fresh(dir, []LedgerEntry{{Key: AccountKey(id), Balance: 1}}, nil)
	require.NoError(t, err)
	b2, err := Fresh(dir, nil, []LedgerKey{AccountKey(id)})
	require.NoError(t, err)
	merged, err := Merge(dir, b1, b2, nil, false)
	require.NoError(t, err)
	entries := bucketEntries(t, merged)
	require.Len(t, entries, 1)
	require.Equal(t, Dead, entries[0].Tag)
}

func TestMergeOverwrite(t *testing.T) {
	dir := mustTmpDir(t)
	id := acctID(1)
	e1 := LedgerEntry{Key: AccountKey(id), Balance: 1}
	e2 := LedgerEntry{Key: AccountKey(id), Balance: 2}
	b1, err := Fresh(dir, []LedgerEntry{e1}, nil)
	require.NoError(t, err)
	b2, err := Fresh(dir, []LedgerEntry{e2}, nil)
	require.NoError(t, err)
	merged, err := Merge(dir, b1, b2, nil, false)
	require.NoError(t, err)
	entries := bucketEntries(t, merged)
	require.Len(t, entries, 1)
	require.Equal(t, Live, entries[0].Tag)
	require.Equal(t, e2.Balance, entries[0].Data.Balance)
}

func TestMergeOverwriteAcrossBuckets(t *testing.T) {
	dir := mustTmpDir(t)
	live := make([]LedgerEntry, 100)
	for i := range live {
		live[i] = LedgerEntry{Key: AccountKey(acctID(i)), Balance: uint64(i)}
	}
	b1, err := Fresh(dir, live, nil)
	require.NoError(t, err)

	shuffled := make([]LedgerEntry, len(live))
	copy(shuffled, live)
	for i := range shuffled {
		j := (i*37 + 5) % len(shuffled)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	for i := 0; i < 50; i++ {
		shuffled[i] = LedgerEntry{Key: AccountKey(acctID(1000 + i)), Balance: uint64(i)}
	}
	b2, err := Fresh(dir, shuffled, nil)
	require.NoError(t, err)

	merged, err := Merge(dir, b1, b2, nil, false)
	require.NoError(t, err)
	require.Equal(t, 150, merged.Len())
}

func TestMergeAssociativity(t *testing.T) {
	dir := mustTmpDir(t)
	mk := func(seed int) *Bucket {
		live := make([]LedgerEntry, 20)
		for i := range live {
			live[i] = LedgerEntry{Key: AccountKey(acctID(i)), Balance: uint64(seed*100 + i)}
		}
		b, err := Fresh(dir, live, nil)
		require.NoError(t, err)
		return b
	}
	a := mk(1)
	b := mk(2)
	c := mk(3)

	left, err := Merge(dir, a, b, nil, false)
	require.NoError(t, err)
	left, err = Merge(dir, left, c, nil, false)
	require.NoError(t, err)

	bc, err := Merge(dir, b, c, nil, false)
	require.NoError(t, err)
	right, err := Merge(dir, a, bc, nil, false)
	require.NoError(t, err)

	require.Equal(t, left.Hash(), right.Hash())
}

func TestMergeDropsDeadAtTerminalLevel(t *testing.T) {
	dir := mustTmpDir(t)
	id := acctID(5)
	b1, err := Fresh(dir, []LedgerEntry{{Key: AccountKey(id), Balance: 1}}, nil)
	require.NoError(t, err)
	b2, err := Fresh(dir, nil, []LedgerKey{AccountKey(id)})
	require.NoError(t, err)
	merged, err := Merge(dir, b1, b2, nil, true)
	require.NoError(t, err)
	require.Equal(t, 0, merged.Len())
}

func TestMergeShadowing(t *testing.T) {
	dir := mustTmpDir(t)
	id := acctID(6)
	shadow, err := Fresh(dir, []LedgerEntry{{Key: AccountKey(id), Balance: 9}}, nil)
	require.NoError(t, err)

	older, err := Fresh(dir, nil, nil)
	require.NoError(t, err)
	newer, err := Fresh(dir, []LedgerEntry{{Key: AccountKey(id), Balance: 10}, {Key: AccountKey(acctID(7)), Balance: 1}}, nil)
	require.NoError(t, err)

	merged, err := Merge(dir, older, newer, []*Bucket{shadow}, false)
	require.NoError(t, err)
	entries := bucketEntries(t, merged)
	require.Len(t, entries, 1)
	require.True(t, Identity(entries[0]).Equal(AccountKey(acctID(7))))
}
