package clf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/c2h5oh/datasize"
	mmap "github.com/edsrzf/mmap-go"

	"github.com/ledgerwatch/turbo-clf/common"
	"github.com/ledgerwatch/turbo-clf/common/debug"
	"github.com/ledgerwatch/turbo-clf/common/dbutils"
	"github.com/ledgerwatch/turbo-clf/log"
)

// spillThreshold is the serialized-size cutoff above which a bucket
// spills its entries to a file instead of keeping them resident.
var spillThreshold = 1 * datasize.MB

// SetSpillThreshold overrides the in-memory/spill cutoff; test fixtures use
// it to force small buckets to spill without constructing huge inputs.
func SetSpillThreshold(v datasize.ByteSize) { spillThreshold = v }

// Bucket is an immutable, sorted, duplicate-free sequence of CLFEntries.
// It is either memory-resident or backed by a spilled file; the choice is
// made once, at construction, and never revisited.
type Bucket struct {
	dir     string
	entries []CLFEntry // nil when spilled
	hash    common.Hash256
	count   int
	spilled bool
	path    string
}

// EmptyBucket returns the canonical, in-memory, zero-entry Bucket that
// every fresh Level starts with.
func EmptyBucket() *Bucket {
	return &Bucket{entries: nil, hash: EmptyBucketHash, count: 0}
}

// Hash returns the Bucket's precomputed 256-bit content hash.
func (b *Bucket) Hash() common.Hash256 { return b.hash }

// Len reports the number of entries in the bucket.
func (b *Bucket) Len() int { return b.count }

// IsSpilled reports whether the bucket is backed by a temporary file.
func (b *Bucket) IsSpilled() bool { return b.spilled }

// Filename returns the bucket's backing file path. It is only meaningful
// when IsSpilled returns true.
func (b *Bucket) Filename() string { return b.path }

// Fresh builds a Bucket from unordered, possibly-overlapping live and dead
// batches. Within a batch, DEAD wins over LIVE for a shared identity, and
// among multiple LIVEs for the same identity the last-supplied one wins
// (stable by input index).
func Fresh(dir string, live []LedgerEntry, dead []LedgerKey) (*Bucket, error) {
	byIdentity := make(map[LedgerKey]CLFEntry, len(live)+len(dead))
	for _, e := range live {
		byIdentity[e.Key] = LiveEntry(e)
	}
	for _, k := range dead {
		byIdentity[k] = DeadEntry(k)
	}
	entries := make([]CLFEntry, 0, len(byIdentity))
	for _, e := range byIdentity {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return Identity(entries[i]).Compare(Identity(entries[j])) < 0
	})
	return finalize(dir, entries)
}

// finalize takes an already sorted, deduplicated entry sequence, computes
// its hash, and decides whether the resulting Bucket is memory-resident or
// spilled. It is the single point where that one-way decision is made,
// shared by Fresh and Merge.
func finalize(dir string, entries []CLFEntry) (*Bucket, error) {
	if err := assertSorted(entries); err != nil {
		return nil, err
	}
	h := HashEntries(entries)
	if len(entries) == 0 {
		return &Bucket{hash: h, count: 0}, nil
	}

	size := uint64(dbutils.HeaderSize)
	for _, e := range entries {
		size += 4 + uint64(EncodingLength(e))
	}

	b := &Bucket{dir: dir, hash: h, count: len(entries)}
	if datasize.ByteSize(size) <= spillThreshold && !debug.ForceSpillMode() {
		b.entries = entries
		return b, nil
	}
	if err := b.spillToFile(entries); err != nil {
		return nil, err
	}
	return b, nil
}

func assertSorted(entries []CLFEntry) error {
	for i := 1; i < len(entries); i++ {
		if Identity(entries[i-1]).Compare(Identity(entries[i])) >= 0 {
			return &Error{Kind: InvariantViolation, Msg: fmt.Sprintf("entries not strictly sorted at index %d", i)}
		}
	}
	return nil
}

func (b *Bucket) spillToFile(entries []CLFEntry) error {
	name := dbutils.BucketFileName(b.hash.Hex())
	path := filepath.Join(b.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if os.IsExist(err) {
		// Same content hash already spilled by a prior bucket; reuse it.
		b.path = path
		b.spilled = true
		return nil
	}
	if err != nil {
		return wrapIoError("create bucket file", err)
	}
	ok := false
	defer func() {
		f.Close()
		if !ok {
			os.Remove(path)
		}
	}()

	w := bufio.NewWriter(f)
	var header [dbutils.HeaderSize]byte
	copy(header[:4], dbutils.BucketMagic[:])
	header[4] = dbutils.BucketFormatVersion
	binary.BigEndian.PutUint64(header[5:], uint64(len(entries)))
	if _, err := w.Write(header[:]); err != nil {
		return wrapIoError("write bucket header", err)
	}

	var lenBuf [4]byte
	var buf []byte
	for _, e := range entries {
		n := EncodingLength(e)
		if cap(buf) < n {
			buf = make([]byte, n)
		}
		buf = buf[:n]
		Encode(e, buf)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(n))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return wrapIoError("write entry length", err)
		}
		if _, err := w.Write(buf); err != nil {
			return wrapIoError("write entry", err)
		}
	}
	if err := w.Flush(); err != nil {
		return wrapIoError("flush bucket file", err)
	}
	if err := f.Sync(); err != nil {
		log.Warn("bucket file fsync failed", "path", path, "err", err)
	}
	b.path = path
	b.spilled = true
	ok = true
	return nil
}

// Iterator is a lazy, forward-only, finite, restartable sequence over a
// Bucket's entries.
type Iterator interface {
	// Next advances and returns the next entry. ok is false once the
	// iterator is exhausted.
	Next() (entry CLFEntry, ok bool, err error)
	Close() error
}

// Entries returns a fresh Iterator over the bucket starting from the
// beginning, regardless of how many iterators have been taken before:
// iterating a spilled bucket rewinds its file.
func (b *Bucket) Entries() (Iterator, error) {
	if !b.spilled {
		return &sliceIterator{entries: b.entries}, nil
	}
	return newMmapIterator(b.path)
}

// ContainsIdentity reports whether id is present in the bucket, regardless
// of entry tag. It scans, relying on callers (ShadowSet) to pre-filter
// with a cheaper index when probing many buckets many times.
func (b *Bucket) ContainsIdentity(id LedgerKey) (bool, error) {
	it, err := b.Entries()
	if err != nil {
		return false, err
	}
	defer it.Close()
	for {
		e, ok, err := it.Next()
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		c := Identity(e).Compare(id)
		if c == 0 {
			return true, nil
		}
		if c > 0 {
			// Entries are sorted; once we've passed id it cannot appear.
			return false, nil
		}
	}
}

// ContainsCLFIdentity reports whether an entry sharing e's identity is
// present, regardless of either side's tag.
func (b *Bucket) ContainsCLFIdentity(e CLFEntry) (bool, error) {
	return b.ContainsIdentity(Identity(e))
}

type sliceIterator struct {
	entries []CLFEntry
	i       int
}

func (s *sliceIterator) Next() (CLFEntry, bool, error) {
	if s.i >= len(s.entries) {
		return CLFEntry{}, false, nil
	}
	e := s.entries[s.i]
	s.i++
	return e, true, nil
}

func (s *sliceIterator) Close() error { return nil }

type mmapIterator struct {
	f      *os.File
	m      mmap.MMap
	pos    int
	remain int
}

func newMmapIterator(path string) (*mmapIterator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapIoError("open bucket file", err)
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, wrapIoError("mmap bucket file", err)
	}
	if len(m) < dbutils.HeaderSize {
		m.Unmap()
		f.Close()
		return nil, &Error{Kind: CorruptBucket, Msg: "bucket file shorter than header"}
	}
	if string(m[:4]) != string(dbutils.BucketMagic[:]) {
		m.Unmap()
		f.Close()
		return nil, &Error{Kind: CorruptBucket, Msg: "bad bucket file magic"}
	}
	if m[4] != dbutils.BucketFormatVersion {
		m.Unmap()
		f.Close()
		return nil, &Error{Kind: CorruptBucket, Msg: fmt.Sprintf("unsupported bucket format version %d", m[4])}
	}
	count := binary.BigEndian.Uint64(m[5:dbutils.HeaderSize])
	return &mmapIterator{f: f, m: m, pos: dbutils.HeaderSize, remain: int(count)}, nil
}

func (it *mmapIterator) Next() (CLFEntry, bool, error) {
	if it.remain == 0 {
		return CLFEntry{}, false, nil
	}
	if it.pos+4 > len(it.m) {
		return CLFEntry{}, false, &Error{Kind: IoError, Msg: "truncated entry length prefix"}
	}
	n := int(binary.BigEndian.Uint32(it.m[it.pos:]))
	it.pos += 4
	if it.pos+n > len(it.m) {
		return CLFEntry{}, false, &Error{Kind: IoError, Msg: "truncated entry body"}
	}
	e, _, err := Decode(it.m[it.pos : it.pos+n])
	if err != nil {
		return CLFEntry{}, false, err
	}
	it.pos += n
	it.remain--
	return e, true, nil
}

func (it *mmapIterator) Close() error {
	err := it.m.Unmap()
	if cerr := it.f.Close(); err == nil {
		err = cerr
	}
	return err
}
