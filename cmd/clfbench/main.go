// clfbench drives AddBatch over synthetic ledgers, reporting ingest rate
// and the final top-level hash.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"math/rand"
	"os"
	"time"

	"github.com/ledgerwatch/turbo-clf/clf"
	"github.com/ledgerwatch/turbo-clf/log"
)

func main() {
	ledgers := flag.Uint64("ledgers", 10000, "number of synthetic ledgers to ingest")
	batch := flag.Int("batch", 100, "live entries per ledger")
	deadN := flag.Int("dead", 10, "dead keys per ledger")
	levels := flag.Int("levels", clf.DefaultNumLevels, "bucket list height")
	workers := flag.Int("workers", clf.DefaultWorkers, "background merge workers")
	seed := flag.Int64("seed", 1, "rng seed")
	flag.Parse()

	master, err := clf.NewCLFMaster(*workers)
	if err != nil {
		log.Error("master init failed", "err", err)
		os.Exit(1)
	}
	defer master.Close()

	bl := clf.NewBucketList(master, *levels)
	ctx := context.Background()
	r := rand.New(rand.NewSource(*seed))

	start := time.Now()
	lastReport := start
	for i := uint64(1); i <= *ledgers; i++ {
		live, dead := syntheticBatch(r, *batch, *deadN)
		if err := bl.AddBatch(ctx, i, live, dead); err != nil {
			log.Error("addBatch failed", "ledger", i, "err", err)
			os.Exit(1)
		}
		if time.Since(lastReport) > 5*time.Second {
			lastReport = time.Now()
			log.Info("ingesting", "ledger", i, "rate",
				float64(i)/time.Since(start).Seconds(), "hash", bl.Hash().Hex()[:16])
		}
	}

	log.Info("done", "ledgers", *ledgers, "elapsed", time.Since(start),
		"hash", bl.Hash().Hex())
}

func syntheticBatch(r *rand.Rand, liveN, deadN int) ([]clf.LedgerEntry, []clf.LedgerKey) {
	live := make([]clf.LedgerEntry, liveN)
	for i := range live {
		live[i] = clf.LedgerEntry{
			Key:     clf.AccountKey(randomAccount(r)),
			Balance: r.Uint64(),
		}
	}
	dead := make([]clf.LedgerKey, deadN)
	for i := range dead {
		dead[i] = clf.AccountKey(randomAccount(r))
	}
	return live, dead
}

func randomAccount(r *rand.Rand) clf.AccountID {
	var id clf.AccountID
	// Cluster identities so later ledgers overwrite earlier ones, which is
	// what makes merges and shadowing do real work.
	binary.BigEndian.PutUint64(id[:8], uint64(r.Intn(1<<20)))
	return id
}
