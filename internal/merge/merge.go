// package merge classifies incoming records against a catalog snapshot
package merge

import (
	"github.com/blue-creative/db-rb/internal/identity"
	"github.com/blue-creative/db-rb/internal/models"
	"github.com/blue-creative/db-rb/internal/shared"
	"github.com/charmbracelet/log"
)

// Planner builds merge plans. It never mutates the snapshot it is given.
type Planner struct {
	resolver *identity.Resolver
	logger   *log.Logger
}

// NewPlanner creates a Planner. A nil logger discards output.
func NewPlanner(resolver *identity.Resolver, logger *log.Logger) *Planner {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Planner{resolver: resolver, logger: logger}
}

// Plan classifies each record as new, duplicate or conflict.
//
// The catalog index is built once per call. A record matching a catalog track is a
// duplicate when no populated field differs and a conflict otherwise. When several
// tracks match, the best ranked one is used (see [identity.Index.Match]).
//
// A record with no catalog match whose fingerprint repeats an earlier new record of the same
// batch points at that item through DuplicateOf, so one batch never inserts the same track
// twice. It is a duplicate when it adds nothing to the track the earlier record creates and a
// conflict, without MatchID, when it differs. The catalog resolves such a conflict against the
// track inserted for the earlier item.
func (p *Planner) Plan(records []*models.RawTrackRecord, snapshot []*models.Track) *models.MergePlan {
	ix := p.resolver.NewIndex(snapshot)
	firstNew := make(map[identity.Fingerprint]int)
	pending := make(map[int]*models.Track)
	plan := &models.MergePlan{Items: make([]models.MergePlanItem, 0, len(records))}

	for i, rec := range records {
		item := models.MergePlanItem{Index: i, Record: rec}
		signals := identity.SignalsOf(rec)

		if best, ok := ix.Best(signals); ok {
			item.MatchID = best.Track.ID
			item.Score = best.Score
			item.Diffs = Diff(best.Track, rec)
			if len(item.Diffs) == 0 {
				item.Status = models.StatusDuplicate
			} else {
				item.Status = models.StatusConflict
			}
		} else {
			fp := p.resolver.Fingerprint(signals)
			if j, seen := firstNew[fp]; seen {
				item.DuplicateOf = &j
				item.Diffs = Diff(pending[j], rec)
				if len(item.Diffs) == 0 {
					item.Status = models.StatusDuplicate
				} else {
					item.Status = models.StatusConflict
				}
			} else {
				item.Status = models.StatusNew
				// an invalid record is rejected at apply, so it cannot absorb later repeats
				if t, err := models.NewTrackFromRecord(rec); err == nil {
					firstNew[fp] = i
					pending[i] = t
				}
			}
		}
		plan.Items = append(plan.Items, item)
	}

	counts := plan.Counts()
	p.logger.Debug("merge plan built",
		"records", len(records),
		"catalog", ix.Len(),
		"new", counts[models.StatusNew],
		"duplicate", counts[models.StatusDuplicate],
		"conflict", counts[models.StatusConflict])
	return plan
}

// Diff lists every Track field populated on rec whose canonical value differs from t.
// Absent fields never differ. dateAdded only differs when t has none, since it is immutable once set.
func Diff(t *models.Track, rec *models.RawTrackRecord) []models.FieldDiff {
	var diffs []models.FieldDiff
	for _, f := range models.TrackFields {
		if !rec.Has(f) {
			continue
		}
		proposed, err := models.CanonicalValue(f, rec.Get(f))
		if err != nil {
			// kept raw so apply can reject it with the validation error
			proposed = rec.Get(f)
		}
		if proposed == "" {
			continue
		}

		current := t.Get(f)
		if f == models.FieldDateAdded && current != "" {
			continue
		}
		if proposed != current {
			diffs = append(diffs, models.FieldDiff{Field: f, Old: current, New: proposed})
		}
	}
	return diffs
}
