package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/blue-creative/db-rb/internal/models"
	"github.com/blue-creative/db-rb/internal/shared"
)

const auditColumns = `id, sequence, track_id, field, old_value, new_value, changed_at, changed_by`

// AuditRepository persists the append-only field history.
// Entries are never updated or deleted, including those of deleted tracks.
type AuditRepository struct {
	db DBTX
}

// NewAuditRepository creates a new AuditRepository with the given database connection or transaction
func NewAuditRepository(db DBTX) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append inserts entry. A missing ID or sequence is generated.
func (r *AuditRepository) Append(entry *models.AuditLogEntry) error {
	if entry.ID == "" {
		entry.ID = shared.GenerateID()
	}
	if entry.Sequence == 0 {
		sequence, err := NextSequence(r.db, "audit_log")
		if err != nil {
			return fmt.Errorf("failed to generate sequence: %w", err)
		}
		entry.Sequence = sequence
	}

	query := `INSERT INTO audit_log (` + auditColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.Exec(query,
		entry.ID,
		entry.Sequence,
		entry.TrackID,
		entry.Field,
		entry.OldValue,
		entry.NewValue,
		entry.Timestamp,
		entry.User,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// Get retrieves one entry by ID
func (r *AuditRepository) Get(id string) (*models.AuditLogEntry, error) {
	row := r.db.QueryRow(`SELECT `+auditColumns+` FROM audit_log WHERE id = ?`, id)
	e, err := scanAudit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrAuditEntryNotFound, id)
	}
	return e, err
}

// List returns the entries for trackID in write order, or every entry when trackID is "".
func (r *AuditRepository) List(trackID string) ([]models.AuditLogEntry, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_log`
	args := []any{}
	if trackID != "" {
		query += " WHERE track_id = ?"
		args = append(args, trackID)
	}
	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	entries := []models.AuditLogEntry{}
	for rows.Next() {
		e, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

func scanAudit(s scanner) (*models.AuditLogEntry, error) {
	var e models.AuditLogEntry
	err := s.Scan(&e.ID, &e.Sequence, &e.TrackID, &e.Field, &e.OldValue, &e.NewValue, &e.Timestamp, &e.User)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit entry: %w", err)
	}
	e.Timestamp = e.Timestamp.UTC()
	return &e, nil
}
