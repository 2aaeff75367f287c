package catalog

import (
	"fmt"

	"github.com/blue-creative/db-rb/internal/models"
	"github.com/blue-creative/db-rb/internal/shared"
)

// ApplyMergePlan applies plan under policy, attributing edits to the store's default user.
func (s *Store) ApplyMergePlan(plan *models.MergePlan, policy models.ResolutionPolicy) *models.ApplyResult {
	return s.ApplyMergePlanAs(s.user, plan, policy)
}

// ApplyMergePlanAs applies plan item by item while holding the store lock.
//
// Each item is atomic. A new item inserts one track and writes no audit entry. An accepted
// conflict updates the matched track and writes exactly one audit entry per changed field.
// Duplicates change nothing. A conflict with an earlier item of the same batch merges into the
// track inserted for that item, which an earlier chunk may have inserted (see
// [models.MergePlan.BindInserted]). Manual conflicts are returned in Pending with their diffs, and
// items that fail validation or persistence are returned in Rejected, in both cases with the
// catalog unchanged for that item.
func (s *Store) ApplyMergePlanAs(user string, plan *models.MergePlan, policy models.ResolutionPolicy) *models.ApplyResult {
	result := models.NewApplyResult()
	if plan == nil {
		return result
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range plan.Items {
		switch item.Status {
		case models.StatusNew:
			id, err := s.insertLocked(item.Record)
			if err != nil {
				result.Rejected = append(result.Rejected, reject(item, err))
				continue
			}
			result.Inserted = append(result.Inserted, id)
			result.InsertedAt[item.Index] = id
		case models.StatusDuplicate:
			result.Unchanged++
		case models.StatusConflict:
			if item.MatchID == "" && item.DuplicateOf != nil {
				item.MatchID = result.InsertedAt[*item.DuplicateOf]
			}
			if item.MatchID == "" {
				result.Rejected = append(result.Rejected, reject(item, fmt.Errorf("%w: no track to merge into", shared.ErrTrackNotFound)))
				continue
			}
			s.resolveLocked(user, item, policy.For(item.Index), result)
		default:
			result.Rejected = append(result.Rejected, reject(item, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, item.Status)))
		}
	}

	s.logger.Info("merge plan applied",
		"items", len(plan.Items),
		"inserted", len(result.Inserted),
		"updated", len(result.Updated),
		"unchanged", result.Unchanged,
		"kept", result.Kept,
		"pending", len(result.Pending),
		"rejected", len(result.Rejected))
	return result
}

func (s *Store) insertLocked(rec *models.RawTrackRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("%w: item has no record", shared.ErrValidation)
	}
	t, err := models.NewTrackFromRecord(rec)
	if err != nil {
		return "", err
	}

	t.ID = s.newID()
	t.Sequence = s.seq + 1
	if t.DateAdded.IsZero() {
		t.DateAdded = s.now().UTC()
	}
	if err := s.commit(Change{Track: t, Inserted: true}); err != nil {
		return "", err
	}
	s.tracks[t.ID] = t
	s.seq = t.Sequence
	return t.ID, nil
}

func (s *Store) resolveLocked(user string, item models.MergePlanItem, res models.Resolution, result *models.ApplyResult) {
	switch res {
	case models.ResolveKeepExisting:
		result.Kept++
		return
	case models.ResolveAcceptIncoming:
	default:
		result.Pending = append(result.Pending, models.ConflictRequiresResolutionError{
			Index:   item.Index,
			TrackID: item.MatchID,
			Record:  recordLabel(item),
			Diffs:   item.Diffs,
		})
		return
	}

	current, ok := s.tracks[item.MatchID]
	if !ok {
		result.Rejected = append(result.Rejected, reject(item, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, item.MatchID)))
		return
	}

	next := current.Clone()
	for _, d := range item.Diffs {
		if err := next.Set(d.Field, d.New); err != nil {
			result.Rejected = append(result.Rejected, reject(item, fmt.Errorf("field %s: %w", d.Field, err)))
			return
		}
	}

	// the plan may predate later edits, so audit against the current values
	var entries []models.AuditLogEntry
	for _, d := range item.Diffs {
		oldValue, newValue := current.Get(d.Field), next.Get(d.Field)
		if oldValue == newValue {
			continue
		}
		seq := s.auditSeq + int64(len(entries)) + 1
		entries = append(entries, s.newAuditEntry(user, current.ID, d.Field, oldValue, newValue, seq))
	}
	if len(entries) == 0 {
		result.Unchanged++
		return
	}

	if err := s.commit(Change{Track: next, Audit: entries}); err != nil {
		result.Rejected = append(result.Rejected, reject(item, err))
		return
	}
	s.tracks[current.ID] = next
	s.audit = append(s.audit, entries...)
	s.auditSeq = entries[len(entries)-1].Sequence

	result.Updated = append(result.Updated, current.ID)
	result.AuditEntries = append(result.AuditEntries, entries...)
}

func reject(item models.MergePlanItem, err error) models.RejectedItem {
	return models.RejectedItem{Index: item.Index, Record: recordLabel(item), Reason: err.Error()}
}

func recordLabel(item models.MergePlanItem) string {
	if item.Record == nil {
		return fmt.Sprintf("item %d", item.Index)
	}
	return item.Record.Label()
}
