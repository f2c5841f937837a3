package clf

import (
	"bytes"
	"strings"
)

// EntryKind tags which ledger object variant a LedgerKey/LedgerEntry
// identifies: Account, TrustLine or Offer.
type EntryKind uint8

const (
	KindAccount EntryKind = iota
	KindTrustLine
	KindOffer
)

func (k EntryKind) String() string {
	switch k {
	case KindAccount:
		return "Account"
	case KindTrustLine:
		return "TrustLine"
	case KindOffer:
		return "Offer"
	default:
		return "Unknown"
	}
}

// AccountID is the 32-byte identity of an account, sized like a public key
// hash. It is the leading field of every LedgerKey variant.
type AccountID [32]byte

// LedgerKey uniquely identifies a ledger object. Each EntryKind only
// populates the fields it needs: Account uses only AccountID; TrustLine
// adds Currency; Offer adds Sequence. A flat struct rather than an
// interface hierarchy keeps keys comparable and copyable by value.
type LedgerKey struct {
	Kind      EntryKind
	AccountID AccountID
	Currency  string
	Sequence  uint64
}

// Compare implements the total order over identities: (kind tag, variant
// fields), lexicographic.
func (a LedgerKey) Compare(b LedgerKey) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	if c := bytes.Compare(a.AccountID[:], b.AccountID[:]); c != 0 {
		return c
	}
	if c := strings.Compare(a.Currency, b.Currency); c != 0 {
		return c
	}
	if a.Sequence != b.Sequence {
		if a.Sequence < b.Sequence {
			return -1
		}
		return 1
	}
	return 0
}

func (a LedgerKey) Equal(b LedgerKey) bool { return a.Compare(b) == 0 }

func AccountKey(id AccountID) LedgerKey {
	return LedgerKey{Kind: KindAccount, AccountID: id}
}

func TrustLineKey(id AccountID, currency string) LedgerKey {
	return LedgerKey{Kind: KindTrustLine, AccountID: id, Currency: currency}
}

func OfferKey(id AccountID, sequence uint64) LedgerKey {
	return LedgerKey{Kind: KindOffer, AccountID: id, Sequence: sequence}
}
