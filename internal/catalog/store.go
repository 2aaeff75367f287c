// package catalog implements the authoritative track store and its audit trail
package catalog

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/blue-creative/db-rb/internal/models"
	"github.com/blue-creative/db-rb/internal/shared"
	"github.com/charmbracelet/log"
)

// DefaultUser attributes edits when no user is configured.
const DefaultUser = "system"

// Change is one atomic unit handed to a [Backend]: an inserted or updated track with
// its audit entries, or a deletion.
type Change struct {
	Track     *models.Track
	Inserted  bool
	Audit     []models.AuditLogEntry
	DeletedID string
}

// State is what a [Backend] holds when the store opens.
type State struct {
	Tracks       []*models.Track
	Deleted      []string // ids of deleted tracks, never reused
	Audit        []models.AuditLogEntry
	LastSequence int64 // highest track sequence ever assigned, deleted tracks included
}

// Backend persists catalog changes. Commit must apply a Change entirely or not at all.
type Backend interface {
	Load() (*State, error)
	Commit(c Change) error
}

// Option configures a Store.
type Option func(*Store)

// WithBackend persists every change through b.
func WithBackend(b Backend) Option { return func(s *Store) { s.backend = b } }

// WithClock overrides the time source used for audit timestamps and dateAdded.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithUser sets the user that edits are attributed to by default.
func WithUser(user string) Option { return func(s *Store) { s.user = user } }

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(s *Store) { s.logger = l } }

// Store is the single owner of catalog state. Every mutation holds the store mutex for its
// whole duration, is applied to a copy, committed to the backend, and only then made visible.
type Store struct {
	mu       sync.Mutex
	tracks   map[string]*models.Track
	deleted  map[string]struct{}
	audit    []models.AuditLogEntry
	seq      int64
	auditSeq int64

	backend Backend
	now     func() time.Time
	user    string
	logger  *log.Logger
}

// New opens a store, loading existing state from the backend when one is configured.
// Without a backend the store is purely in memory.
func New(opts ...Option) (*Store, error) {
	s := &Store{
		tracks:  make(map[string]*models.Track),
		deleted: make(map[string]struct{}),
		now:     time.Now,
		user:    DefaultUser,
		logger:  shared.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.backend == nil {
		return s, nil
	}

	state, err := s.backend.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	for _, t := range state.Tracks {
		s.tracks[t.ID] = t
		s.seq = max(s.seq, t.Sequence)
	}
	for _, id := range state.Deleted {
		s.deleted[id] = struct{}{}
	}
	s.audit = state.Audit
	for _, e := range state.Audit {
		s.auditSeq = max(s.auditSeq, e.Sequence)
	}
	s.seq = max(s.seq, state.LastSequence)

	s.logger.Debug("catalog loaded", "tracks", len(s.tracks), "deleted", len(s.deleted), "audit_entries", len(s.audit))
	return s, nil
}

// Len returns the number of live tracks.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tracks)
}

// Get returns a copy of the track with id.
func (s *Store) Get(id string) (*models.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tracks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}
	return t.Clone(), nil
}

// Snapshot returns copies of all live tracks in insertion order.
func (s *Store) Snapshot() []*models.Track {
	return s.Query(nil)
}

// Query returns copies of the live tracks satisfying pred, in insertion order.
// A nil predicate matches everything. The store is never mutated.
func (s *Store) Query(pred func(*models.Track) bool) []*models.Track {
	s.mu.Lock()
	out := make([]*models.Track, 0, len(s.tracks))
	for _, t := range s.tracks {
		if pred == nil || pred(t) {
			out = append(out, t.Clone())
		}
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b *models.Track) int {
		switch {
		case a.Sequence < b.Sequence:
			return -1
		case a.Sequence > b.Sequence:
			return 1
		}
		return 0
	})
	return out
}

// AuditLog returns the entries for trackID in the order they were written, or every entry when trackID is "".
// Entries of deleted tracks are still returned.
func (s *Store) AuditLog(trackID string) []models.AuditLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.AuditLogEntry, 0)
	for _, e := range s.audit {
		if trackID == "" || e.TrackID == trackID {
			out = append(out, e)
		}
	}
	return out
}

// UpdateField sets one field of a track, attributed to the store's default user.
func (s *Store) UpdateField(id, field, value string) error {
	_, err := s.UpdateFieldAs(s.user, id, field, value)
	return err
}

// UpdateFieldAs sets one field of a track and writes one audit entry capturing the old value.
//
// It fails with [shared.ErrTrackNotFound] when id is absent and [shared.ErrValidation] for an
// unknown field or an invalid value, leaving the track and audit log unchanged. Setting a field
// to its current value is a no-op: nothing is written and the returned entry is nil.
func (s *Store) UpdateFieldAs(user, id, field, value string) (*models.AuditLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(user, id, field, value)
}

func (s *Store) updateLocked(user, id, field, value string) (*models.AuditLogEntry, error) {
	current, ok := s.tracks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}
	canonical, ok := models.CanonicalField(field)
	if !ok || !models.IsTrackField(canonical) {
		return nil, fmt.Errorf("%w: %q is not an editable field", shared.ErrValidation, field)
	}

	next := current.Clone()
	if err := next.Set(canonical, value); err != nil {
		return nil, err
	}

	oldValue, newValue := current.Get(canonical), next.Get(canonical)
	if oldValue == newValue {
		return nil, nil
	}

	entry := s.newAuditEntry(user, id, canonical, oldValue, newValue, s.auditSeq+1)
	if err := s.commit(Change{Track: next, Audit: []models.AuditLogEntry{entry}}); err != nil {
		return nil, err
	}
	s.tracks[id] = next
	s.audit = append(s.audit, entry)
	s.auditSeq = entry.Sequence

	s.logger.Debug("field updated", "track", id, "field", canonical, "old", oldValue, "new", newValue, "user", user)
	return &entry, nil
}

// DeleteTrack removes a track. Its id is never reused and its audit history is kept.
func (s *Store) DeleteTrack(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tracks[id]; !ok {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}
	if err := s.commit(Change{DeletedID: id}); err != nil {
		return err
	}
	delete(s.tracks, id)
	s.deleted[id] = struct{}{}

	s.logger.Info("track deleted", "track", id)
	return nil
}

// Revert undoes the change recorded by auditID by writing the entry's old value back as a new,
// attributed edit. History is never rewritten.
func (s *Store) Revert(user, auditID string) (*models.AuditLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.audit, func(e models.AuditLogEntry) bool { return e.ID == auditID })
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrAuditEntryNotFound, auditID)
	}
	e := s.audit[idx]
	return s.updateLocked(user, e.TrackID, e.Field, e.OldValue)
}

func (s *Store) newAuditEntry(user, trackID, field, oldValue, newValue string, seq int64) models.AuditLogEntry {
	if user == "" {
		user = s.user
	}
	return models.AuditLogEntry{
		ID:        shared.GenerateID(),
		TrackID:   trackID,
		Field:     field,
		OldValue:  oldValue,
		NewValue:  newValue,
		Timestamp: s.now().UTC(),
		User:      user,
		Sequence:  seq,
	}
}

// newID returns an id never used by a live or deleted track.
func (s *Store) newID() string {
	for {
		id := shared.GenerateID()
		_, live := s.tracks[id]
		_, dead := s.deleted[id]
		if !live && !dead {
			return id
		}
	}
}

func (s *Store) commit(c Change) error {
	if s.backend == nil {
		return nil
	}
	if err := s.backend.Commit(c); err != nil {
		return fmt.Errorf("failed to persist catalog change: %w", err)
	}
	return nil
}
