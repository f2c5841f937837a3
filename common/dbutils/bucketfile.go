// Package dbutils names the on-disk layout constants for spilled CLF
// buckets: the file magic/version header and naming convention.
package dbutils

import "fmt"

// BucketMagic identifies a turbo-clf spilled bucket file. It is the first
// four bytes of every bucket-*.xdr file.
var BucketMagic = [4]byte{'T', 'C', 'L', 'F'}

// BucketFormatVersion is the current on-disk encoding version written into
// a spilled bucket file's header. Bumping it requires a migration (see
// package migrate) for any bucket file written by an older version that
// must still be read.
const BucketFormatVersion byte = 1

// HeaderSize is the fixed-size header preceding the entry stream in a
// spilled bucket file: magic (4) + version (1) + entry count (8, big
// endian uint64).
const HeaderSize = len(BucketMagic) + 1 + 8

// BucketFileName returns the canonical file name for a spilled bucket
// with the given content hash: "bucket-<hex hash>.xdr".
func BucketFileName(hexHash string) string {
	return fmt.Sprintf("bucket-%s.xdr", hexHash)
}
