package clf

import (
	"hash/fnv"

	"github.com/RoaringBitmap/roaring"
)

// shadowIndex is a compact roaring-bitmap pre-filter over a 32-bit
// projection of a shadow bucket's identities. A negative answer from the
// bitmap is exact (the identity is absent); a positive answer only means
// "maybe", so callers must still confirm with an exact scan.
type shadowIndex struct {
	bm *roaring.Bitmap
}

func projectIdentity(id LedgerKey) uint32 {
	h := fnv.New32a()
	buf := make([]byte, keyEncodingLength(id))
	id.Encode(buf)
	h.Write(buf)
	return h.Sum32()
}

func buildShadowIndex(b *Bucket) (*shadowIndex, error) {
	bm := roaring.NewBitmap()
	it, err := b.Entries()
	if err != nil {
		return nil, err
	}
	defer it.Close()
	for {
		e, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		bm.Add(projectIdentity(Identity(e)))
	}
	return &shadowIndex{bm: bm}, nil
}

func (si *shadowIndex) mayContain(id LedgerKey) bool {
	return si.bm.Contains(projectIdentity(id))
}
