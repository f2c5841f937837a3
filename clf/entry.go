package clf

// LedgerEntry carries the full record for a ledger object. Every variant
// shares the same struct; fields that don't apply to a given Key.Kind are
// left zero.
type LedgerEntry struct {
	Key LedgerKey

	// Account fields.
	Balance    uint64
	AccountSeq uint64

	// TrustLine fields.
	Limit        uint64
	TrustBalance uint64

	// Offer fields.
	PriceN uint32
	PriceD uint32
	Amount uint64
}

// KeyOf projects an entry down to its identifying key.
func KeyOf(e LedgerEntry) LedgerKey { return e.Key }

// EntryTag discriminates a CLFEntry between a full record (LIVE) and a
// tombstone (DEAD).
type EntryTag uint8

const (
	// Dead sorts before Live; Cmp's tag tie-break relies on this.
	Dead EntryTag = iota
	Live
)

func (t EntryTag) String() string {
	if t == Live {
		return "LIVE"
	}
	return "DEAD"
}

// CLFEntry is the uniform wire and merge representation of a state
// mutation: either a LIVE entry (full record) or a DEAD entry (key-only
// tombstone). For a DEAD entry only Data.Key is meaningful.
type CLFEntry struct {
	Tag  EntryTag
	Data LedgerEntry
}

func LiveEntry(e LedgerEntry) CLFEntry { return CLFEntry{Tag: Live, Data: e} }
func DeadEntry(k LedgerKey) CLFEntry   { return CLFEntry{Tag: Dead, Data: LedgerEntry{Key: k}} }

// Identity returns the entry's key whether the variant is live or dead.
func Identity(e CLFEntry) LedgerKey { return e.Data.Key }

// Cmp is the total order on identity, tie-broken by tag. The tag
// tie-break only exists to assert sortedness; merge winners are always
// picked by input priority, never by tag.
func Cmp(a, b CLFEntry) int {
	if c := Identity(a).Compare(Identity(b)); c != 0 {
		return c
	}
	if a.Tag != b.Tag {
		if a.Tag < b.Tag {
			return -1
		}
		return 1
	}
	return 0
}
