// Package migrate rewrites spilled bucket files created by an older
// BucketFormatVersion into the current one: a small ordered list of named,
// idempotent steps applied to whatever is found on disk, with
// already-applied steps skipped rather than re-run.
//
// The on-disk file header carries its own version byte
// (common/dbutils.BucketFormatVersion), so "already applied" is simply
// "the file's header version is already current". No separate applied-set
// needs to be persisted.
package migrate

import (
	"encoding/binary"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledgerwatch/turbo-clf/common/dbutils"
	"github.com/ledgerwatch/turbo-clf/log"
)

// Migration upgrades every bucket file written with FromVersion into one
// with ToVersion. Up receives the file's entry records in file order, each
// the raw entry bytes with its length prefix stripped, and returns the
// replacement records in the same form; the header and length prefixes
// are written anew when the file is saved.
type Migration struct {
	Name        string
	FromVersion byte
	ToVersion   byte
	Up          func(entries [][]byte) ([][]byte, error)
}

// migrations is the ordered list applied to a bucket file whose version is
// behind dbutils.BucketFormatVersion, oldest first. Empty today: the
// on-disk format has only ever shipped as version 1. A future bump to
// BucketFormatVersion registers its upgrade step here; Apply already knows
// how to walk a chain of them.
var migrations []Migration

// NewMigrator returns a Migrator running the package's registered steps.
func NewMigrator() *Migrator {
	return &Migrator{Migrations: migrations}
}

// Migrator applies a chain of Migrations to every bucket file in a
// directory.
type Migrator struct {
	Migrations []Migration
}

// Apply walks dir for bucket-*.xdr files and brings each one up to
// dbutils.BucketFormatVersion, applying whatever chain of registered
// Migrations bridges its on-disk version to the current one. Files
// already at the current version are left untouched, so re-running Apply
// against an already-migrated directory is a no-op.
func (m *Migrator) Apply(dir string) error {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read bucket dir: %w", err)
	}

	for _, fi := range entries {
		if fi.IsDir() || !strings.HasPrefix(fi.Name(), "bucket-") {
			continue
		}
		path := filepath.Join(dir, fi.Name())
		if err := m.applyFile(path); err != nil {
			return fmt.Errorf("migrate %s: %w", fi.Name(), err)
		}
	}
	return nil
}

func (m *Migrator) applyFile(path string) error {
	version, records, err := readFramedEntries(path)
	if err != nil {
		return err
	}
	if version == dbutils.BucketFormatVersion {
		return nil
	}

	for version != dbutils.BucketFormatVersion {
		step := m.findStep(version)
		if step == nil {
			return fmt.Errorf("no migration registered from version %d to %d", version, dbutils.BucketFormatVersion)
		}
		log.Info("applying bucket migration", "name", step.Name, "path", path)
		records, err = step.Up(records)
		if err != nil {
			return fmt.Errorf("migration %s: %w", step.Name, err)
		}
		version = step.ToVersion
		log.Info("applied bucket migration", "name", step.Name, "path", path)
	}

	return writeFramedEntries(path, version, records)
}

func (m *Migrator) findStep(from byte) *Migration {
	for i := range m.Migrations {
		if m.Migrations[i].FromVersion == from {
			return &m.Migrations[i]
		}
	}
	return nil
}

func readFramedEntries(path string) (byte, [][]byte, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return 0, nil, fmt.Errorf("read bucket file: %w", err)
	}
	if len(data) < dbutils.HeaderSize {
		return 0, nil, fmt.Errorf("bucket file %s shorter than header", path)
	}
	if string(data[:4]) != string(dbutils.BucketMagic[:]) {
		return 0, nil, fmt.Errorf("bucket file %s has bad magic", path)
	}
	version := data[4]
	count := binary.BigEndian.Uint64(data[5:dbutils.HeaderSize])

	records := make([][]byte, 0, count)
	pos := dbutils.HeaderSize
	for i := uint64(0); i < count; i++ {
		if pos+4 > len(data) {
			return 0, nil, fmt.Errorf("bucket file %s truncated entry length prefix", path)
		}
		n := int(binary.BigEndian.Uint32(data[pos:]))
		pos += 4
		if pos+n > len(data) {
			return 0, nil, fmt.Errorf("bucket file %s truncated entry body", path)
		}
		records = append(records, data[pos:pos+n])
		pos += n
	}
	return version, records, nil
}

func writeFramedEntries(path string, version byte, records [][]byte) error {
	tmp := path + ".migrating"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create migration temp file: %w", err)
	}
	ok := false
	defer func() {
		f.Close()
		if !ok {
			os.Remove(tmp)
		}
	}()

	var header [dbutils.HeaderSize]byte
	copy(header[:4], dbutils.BucketMagic[:])
	header[4] = version
	binary.BigEndian.PutUint64(header[5:], uint64(len(records)))
	if _, err := f.Write(header[:]); err != nil {
		return fmt.Errorf("write migrated header: %w", err)
	}

	var lenBuf [4]byte
	for _, r := range records {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(r)))
		if _, err := f.Write(lenBuf[:]); err != nil {
			return fmt.Errorf("write migrated entry length: %w", err)
		}
		if _, err := f.Write(r); err != nil {
			return fmt.Errorf("write migrated entry: %w", err)
		}
	}
	if err := f.Sync(); err != nil {
		log.Warn("migrated bucket file fsync failed", "path", tmp, "err", err)
	}
	ok = true
	f.Close()
	return os.Rename(tmp, path)
}
