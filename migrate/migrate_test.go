package migrate

import (
	"encoding/binary"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerwatch/turbo-clf/common/dbutils"
)

func writeBucketFile(t *testing.T, dir string, version byte, records [][]byte) string {
	t.Helper()
	path := filepath.Join(dir, dbutils.BucketFileName("deadbeef"))
	var buf []byte
	var header [dbutils.HeaderSize]byte
	copy(header[:4], dbutils.BucketMagic[:])
	header[4] = version
	binary.BigEndian.PutUint64(header[5:], uint64(len(records)))
	buf = append(buf, header[:]...)
	var lenBuf [4]byte
	for _, r := range records {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(r)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, r...)
	}
	require.NoError(t, ioutil.WriteFile(path, buf, 0o644))
	return path
}

func TestApplyCurrentVersionIsNoop(t *testing.T) {
	dir, err := ioutil.TempDir("", "migrate-test-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	path := writeBucketFile(t, dir, dbutils.BucketFormatVersion, [][]byte{{1, 2, 3}})
	before, err := ioutil.ReadFile(path)
	require.NoError(t, err)

	m := &Migrator{}
	require.NoError(t, m.Apply(dir))

	after, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestApplyRunsRegisteredChain(t *testing.T) {
	dir, err := ioutil.TempDir("", "migrate-test-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	writeBucketFile(t, dir, 0, [][]byte{{0xAA}, {0xBB}})

	m := &Migrator{Migrations: []Migration{{
		Name:        "prefix_every_record",
		FromVersion: 0,
		ToVersion:   dbutils.BucketFormatVersion,
		Up: func(records [][]byte) ([][]byte, error) {
			out := make([][]byte, len(records))
			for i, r := range records {
				out[i] = append([]byte{0xFF}, r...)
			}
			return out, nil
		},
	}}}
	require.NoError(t, m.Apply(dir))

	version, records, err := readFramedEntries(filepath.Join(dir, dbutils.BucketFileName("deadbeef")))
	require.NoError(t, err)
	require.Equal(t, dbutils.BucketFormatVersion, version)
	require.Equal(t, [][]byte{{0xFF, 0xAA}, {0xFF, 0xBB}}, records)
}

func TestApplyFailsWithoutBridgingStep(t *testing.T) {
	dir, err := ioutil.TempDir("", "migrate-test-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	writeBucketFile(t, dir, 0, nil)
	m := &Migrator{}
	require.Error(t, m.Apply(dir))
}
