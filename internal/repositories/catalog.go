package repositories

import (
	"database/sql"
	"fmt"

	"github.com/blue-creative/db-rb/internal/catalog"
	"github.com/blue-creative/db-rb/internal/shared"
)

var _ catalog.Backend = (*CatalogBackend)(nil)

// CatalogBackend persists a [catalog.Store] in SQLite.
// Each [catalog.Change] is written in a single transaction.
type CatalogBackend struct {
	db *sql.DB
}

// NewCatalogBackend creates a backend over a migrated database.
func NewCatalogBackend(db *sql.DB) *CatalogBackend {
	return &CatalogBackend{db: db}
}

// Load reads live tracks, deleted ids, the full audit log and the last assigned track sequence.
func (b *CatalogBackend) Load() (*catalog.State, error) {
	tracks, err := NewTrackRepository(b.db).List(nil)
	if err != nil {
		return nil, err
	}

	deleted, err := NewTrackRepository(b.db).DeletedIDs()
	if err != nil {
		return nil, err
	}

	audit, err := NewAuditRepository(b.db).List("")
	if err != nil {
		return nil, err
	}

	last, err := MaxSequence(b.db, "tracks")
	if err != nil {
		return nil, err
	}

	return &catalog.State{Tracks: tracks, Deleted: deleted, Audit: audit, LastSequence: last}, nil
}

// Commit applies c atomically.
func (b *CatalogBackend) Commit(c catalog.Change) error {
	return shared.WithTx(b.db, func(tx *sql.Tx) error {
		tracks := NewTrackRepository(tx)

		switch {
		case c.DeletedID != "":
			if err := tracks.Delete(c.DeletedID); err != nil {
				return err
			}
		case c.Track == nil:
			return fmt.Errorf("%w: change has no track", shared.ErrInvalidInput)
		case c.Inserted:
			t := c.Track.Clone()
			if err := tracks.Create(t); err != nil {
				return err
			}
		default:
			if err := tracks.Update(c.Track); err != nil {
				return err
			}
		}

		audit := NewAuditRepository(tx)
		for _, e := range c.Audit {
			if err := audit.Append(&e); err != nil {
				return err
			}
		}
		return nil
	})
}
