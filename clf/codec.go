package clf

import (
	"encoding/binary"
	"fmt"
)

// keyEncodingLength returns the number of bytes LedgerKey.Encode writes:
// kind(1) + accountID(32) + currency length(1) + currency bytes + sequence(8).
func keyEncodingLength(k LedgerKey) int {
	return 1 + len(k.AccountID) + 1 + len(k.Currency) + 8
}

// Encode writes k's canonical, deterministic encoding into buf, which must
// be at least keyEncodingLength(k) bytes. It returns the number of bytes
// written.
func (k LedgerKey) Encode(buf []byte) int {
	i := 0
	buf[i] = byte(k.Kind)
	i++
	i += copy(buf[i:], k.AccountID[:])
	buf[i] = byte(len(k.Currency))
	i++
	i += copy(buf[i:], k.Currency)
	binary.BigEndian.PutUint64(buf[i:], k.Sequence)
	i += 8
	return i
}

// DecodeLedgerKey parses a LedgerKey from the front of buf and returns the
// key along with the number of bytes consumed.
func DecodeLedgerKey(buf []byte) (LedgerKey, int, error) {
	if len(buf) < 1+32+1+8 {
		return LedgerKey{}, 0, &Error{Kind: CorruptBucket, Msg: "truncated ledger key"}
	}
	var k LedgerKey
	i := 0
	k.Kind = EntryKind(buf[i])
	i++
	copy(k.AccountID[:], buf[i:i+32])
	i += 32
	curLen := int(buf[i])
	i++
	if len(buf) < i+curLen+8 {
		return LedgerKey{}, 0, &Error{Kind: CorruptBucket, Msg: "truncated ledger key currency"}
	}
	if curLen > 0 {
		k.Currency = string(buf[i : i+curLen])
		i += curLen
	}
	k.Sequence = binary.BigEndian.Uint64(buf[i:])
	i += 8
	return k, i, nil
}

// EncodingLength returns the exact number of bytes Encode will write for e.
func EncodingLength(e CLFEntry) int {
	n := 1 + keyEncodingLength(e.Data.Key)
	if e.Tag == Live {
		n += 8 + 8 + 8 + 8 + 4 + 4 + 8
	}
	return n
}

// Encode writes e's canonical encoding into buf (which must be at least
// EncodingLength(e) bytes) and returns the number of bytes written.
// Identical logical content always yields byte-identical output, which is
// what lets the bucket content hash be order-independent of anything but
// the final, deduplicated entry set.
func Encode(e CLFEntry, buf []byte) int {
	i := 0
	buf[i] = byte(e.Tag)
	i++
	i += e.Data.Key.Encode(buf[i:])
	if e.Tag == Live {
		d := e.Data
		binary.BigEndian.PutUint64(buf[i:], d.Balance)
		i += 8
		binary.BigEndian.PutUint64(buf[i:], d.AccountSeq)
		i += 8
		binary.BigEndian.PutUint64(buf[i:], d.Limit)
		i += 8
		binary.BigEndian.PutUint64(buf[i:], d.TrustBalance)
		i += 8
		binary.BigEndian.PutUint32(buf[i:], d.PriceN)
		i += 4
		binary.BigEndian.PutUint32(buf[i:], d.PriceD)
		i += 4
		binary.BigEndian.PutUint64(buf[i:], d.Amount)
		i += 8
	}
	return i
}

// Decode parses a CLFEntry from the front of buf and returns the entry
// along with the number of bytes consumed.
func Decode(buf []byte) (CLFEntry, int, error) {
	if len(buf) < 1 {
		return CLFEntry{}, 0, &Error{Kind: CorruptBucket, Msg: "empty entry"}
	}
	tag := EntryTag(buf[0])
	if tag != Live && tag != Dead {
		return CLFEntry{}, 0, &Error{Kind: CorruptBucket, Msg: fmt.Sprintf("unknown entry tag %d", buf[0])}
	}
	i := 1
	key, n, err := DecodeLedgerKey(buf[i:])
	if err != nil {
		return CLFEntry{}, 0, err
	}
	i += n
	e := CLFEntry{Tag: tag, Data: LedgerEntry{Key: key}}
	if tag == Live {
		need := i + 8 + 8 + 8 + 8 + 4 + 4 + 8
		if len(buf) < need {
			return CLFEntry{}, 0, &Error{Kind: CorruptBucket, Msg: "truncated live entry body"}
		}
		e.Data.Balance = binary.BigEndian.Uint64(buf[i:])
		i += 8
		e.Data.AccountSeq = binary.BigEndian.Uint64(buf[i:])
		i += 8
		e.Data.Limit = binary.BigEndian.Uint64(buf[i:])
		i += 8
		e.Data.TrustBalance = binary.BigEndian.Uint64(buf[i:])
		i += 8
		e.Data.PriceN = binary.BigEndian.Uint32(buf[i:])
		i += 4
		e.Data.PriceD = binary.BigEndian.Uint32(buf[i:])
		i += 4
		e.Data.Amount = binary.BigEndian.Uint64(buf[i:])
		i += 8
	}
	return e, i, nil
}
