// Package txhistory is the bulk appender for the txhistory SQL table:
// callers add rows as ledgers close, and Commit flushes the buffer in
// multi-row inserts of at most maxRowsPerInsert rows each, all inside one
// transaction; a larger buffer takes more than one INSERT statement.
package txhistory

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/ledgerwatch/turbo-clf/log"
)

// Row is one transaction-history record.
type Row struct {
	TxID      string
	LedgerSeq uint32
	TxIndex   int
	TxBody    string
	TxResult  string
	TxMeta    string
}

// Writer buffers Rows and flushes them in parameterized multi-row inserts
// (see Commit). Values are bound as placeholders, never concatenated into the
// statement text.
type Writer struct {
	rows []Row
}

// NewWriter returns a Writer with capacity preallocated for a busy ledger.
func NewWriter() *Writer {
	return &Writer{rows: make([]Row, 0, 1024)}
}

// Add buffers one row. Nothing touches the database until Commit.
func (w *Writer) Add(r Row) {
	w.rows = append(w.rows, r)
}

// Len reports the number of buffered, unflushed rows.
func (w *Writer) Len() int { return len(w.rows) }

// maxRowsPerInsert keeps each statement under SQLite's default bound of
// 999 bound variables (6 placeholders per row).
const maxRowsPerInsert = 166

// Commit flushes every buffered row to the txhistory table in multi-row
// inserts, wrapped in one transaction. An empty buffer is a no-op. The
// buffer is cleared only after a successful flush, so a failed Commit can
// be retried.
func (w *Writer) Commit(db *sql.DB) error {
	if len(w.rows) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin txhistory flush: %w", err)
	}
	for start := 0; start < len(w.rows); start += maxRowsPerInsert {
		end := start + maxRowsPerInsert
		if end > len(w.rows) {
			end = len(w.rows)
		}
		if err := insertRows(tx, w.rows[start:end]); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit txhistory flush: %w", err)
	}
	log.Debug("txhistory flushed", "rows", len(w.rows))
	w.rows = w.rows[:0]
	return nil
}

func insertRows(tx *sql.Tx, rows []Row) error {
	var sb strings.Builder
	sb.WriteString("INSERT INTO txhistory (txid, ledgerseq, txindex, txbody, txresult, txmeta) VALUES ")
	args := make([]interface{}, 0, len(rows)*6)
	for i, r := range rows {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?)")
		args = append(args, r.TxID, r.LedgerSeq, r.TxIndex, r.TxBody, r.TxResult, r.TxMeta)
	}
	if _, err := tx.Exec(sb.String(), args...); err != nil {
		return fmt.Errorf("flush txhistory: %w", err)
	}
	return nil
}
