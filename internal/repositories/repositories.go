// package repositories provides persistence layer implementations for the catalog.
//
// Repositories accept a [DBTX] so the same code runs against a plain connection or inside
// a transaction opened with [shared.WithTx].
package repositories

import (
	"database/sql"
	"fmt"
)

// DBTX is the subset of *sql.DB and *sql.Tx the repositories need.
type DBTX interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// NextSequence returns the next sequence number for table, counting soft-deleted rows so a
// sequence is never handed out twice.
//
// Sequence numbers provide insertion ordering independent of UUIDs and creation timestamps.
// Call it inside the transaction that performs the insert.
func NextSequence(db DBTX, table string) (int64, error) {
	var sequence int64
	err := db.QueryRow(fmt.Sprintf("SELECT COALESCE(MAX(sequence), 0) + 1 FROM %s", table)).Scan(&sequence)
	if err != nil {
		return 0, fmt.Errorf("failed to get sequence value: %w", err)
	}
	return sequence, nil
}

// MaxSequence returns the highest sequence assigned in table, or 0 for an empty table.
func MaxSequence(db DBTX, table string) (int64, error) {
	next, err := NextSequence(db, table)
	if err != nil {
		return 0, err
	}
	return next - 1, nil
}
