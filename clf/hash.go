package clf

import (
	"golang.org/x/crypto/blake2b"

	"github.com/ledgerwatch/turbo-clf/common"
)

// HashEntries computes the 256-bit content hash of an already sorted,
// deduplicated entry sequence: blake2b-256 over the concatenated canonical
// encodings, in entry order.
func HashEntries(entries []CLFEntry) common.Hash256 {
	h, err := blake2b.New256(nil)
	if err != nil {
		// New256 only errors for a non-empty MAC key, which we never pass.
		panic(err)
	}
	var buf []byte
	for _, e := range entries {
		n := EncodingLength(e)
		if cap(buf) < n {
			buf = make([]byte, n)
		}
		buf = buf[:n]
		Encode(e, buf)
		h.Write(buf)
	}
	var out common.Hash256
	copy(out[:], h.Sum(nil))
	return out
}

// EmptyBucketHash is the well-known content hash of a Bucket with zero
// entries, the starting value for every Level's curr/snap.
var EmptyBucketHash = HashEntries(nil)
