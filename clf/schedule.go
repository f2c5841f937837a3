package clf

// HalfPeriod returns the ledger-index cadence at which level j snapshots:
// 2^(2j), so periods grow geometrically. It does not cap how many batches a
// level holds: under AddBatch's schedule, level j's snap can hold up to
// FullPeriod(j) ledgers' batches.
func HalfPeriod(level int) uint64 {
	return uint64(1) << uint(2*level)
}

// FullPeriod is the full period of level j: twice its half-period.
func FullPeriod(level int) uint64 {
	return 2 * HalfPeriod(level)
}
