package models

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/blue-creative/db-rb/internal/shared"
)

// MergeStatus classifies an incoming record against the catalog.
type MergeStatus string

const (
	StatusNew       MergeStatus = "new"       // no catalog match
	StatusDuplicate MergeStatus = "duplicate" // matched, nothing to change
	StatusConflict  MergeStatus = "conflict"  // matched, at least one populated field differs
)

// FieldDiff is an old vs proposed value for one field.
type FieldDiff struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// MergePlanItem is the classification of one incoming record.
type MergePlanItem struct {
	Index       int             `json:"index"`
	Record      *RawTrackRecord `json:"record"`
	Status      MergeStatus     `json:"status"`
	MatchID     string          `json:"matchId,omitempty"`
	Score       float64         `json:"score,omitempty"`
	Diffs       []FieldDiff     `json:"diffs,omitempty"`
	DuplicateOf *int            `json:"duplicateOf,omitempty"` // earlier item in the same batch
}

// BindInserted returns p with each in-batch conflict pointed at the track inserted for its
// earlier item. p is returned unchanged when nothing needs binding.
func (p *MergePlan) BindInserted(inserted map[int]string) *MergePlan {
	out := p
	for i, it := range p.Items {
		if it.MatchID != "" || it.DuplicateOf == nil || it.Status != StatusConflict {
			continue
		}
		id, ok := inserted[*it.DuplicateOf]
		if !ok {
			continue
		}
		if out == p {
			out = &MergePlan{Items: slices.Clone(p.Items)}
		}
		out.Items[i].MatchID = id
	}
	return out
}

// Reindex renumbers a plan built from a subset of a batch, where at[i] is the batch position of
// the plan's record i. Indexes outside at are left as they are.
func (p *MergePlan) Reindex(at []int) *MergePlan {
	pos := func(i int) int {
		if i >= 0 && i < len(at) {
			return at[i]
		}
		return i
	}
	for i := range p.Items {
		p.Items[i].Index = pos(p.Items[i].Index)
		if d := p.Items[i].DuplicateOf; d != nil {
			j := pos(*d)
			p.Items[i].DuplicateOf = &j
		}
	}
	return p
}

// MergePlan is a classified, not-yet-applied ingestion batch.
type MergePlan struct {
	Items []MergePlanItem `json:"items"`
}

// Counts tallies items per status.
func (p *MergePlan) Counts() map[MergeStatus]int {
	counts := map[MergeStatus]int{StatusNew: 0, StatusDuplicate: 0, StatusConflict: 0}
	for _, it := range p.Items {
		counts[it.Status]++
	}
	return counts
}

// Chunks splits the plan into consecutive sub-plans of at most size items.
// Item indexes are kept so policy overrides still apply.
func (p *MergePlan) Chunks(size int) []*MergePlan {
	if size <= 0 || len(p.Items) <= size {
		return []*MergePlan{p}
	}
	var chunks []*MergePlan
	for start := 0; start < len(p.Items); start += size {
		end := min(start+size, len(p.Items))
		chunks = append(chunks, &MergePlan{Items: p.Items[start:end]})
	}
	return chunks
}

// Resolution decides what happens to a conflict item.
type Resolution string

const (
	ResolveAcceptIncoming Resolution = "accept"
	ResolveKeepExisting   Resolution = "keep"
	ResolveManual         Resolution = "manual"
)

// ParseResolution accepts accept/keep/manual and their long forms.
func ParseResolution(s string) (Resolution, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "accept", "accept-incoming", "incoming":
		return ResolveAcceptIncoming, nil
	case "keep", "keep-existing", "existing":
		return ResolveKeepExisting, nil
	case "", "manual":
		return ResolveManual, nil
	}
	return "", fmt.Errorf("%w: resolution %q (want accept, keep or manual)", shared.ErrInvalidArgument, s)
}

// ResolutionPolicy carries a default resolution plus per-item overrides keyed by item index.
type ResolutionPolicy struct {
	Default   Resolution         `json:"default"`
	Overrides map[int]Resolution `json:"overrides,omitempty"`
}

// For returns the resolution for the item at index. An unset policy resolves to manual.
func (p ResolutionPolicy) For(index int) Resolution {
	if r, ok := p.Overrides[index]; ok && r != "" {
		return r
	}
	if p.Default == "" {
		return ResolveManual
	}
	return p.Default
}

// ConflictRequiresResolutionError is a conflict item returned unapplied under manual resolution.
// It is reported as data on [ApplyResult], never returned as a failure.
type ConflictRequiresResolutionError struct {
	Index   int         `json:"index"`
	TrackID string      `json:"trackId"`
	Record  string      `json:"record"`
	Diffs   []FieldDiff `json:"diffs"`
}

func (e *ConflictRequiresResolutionError) Error() string {
	fields := make([]string, len(e.Diffs))
	for i, d := range e.Diffs {
		fields[i] = d.Field
	}
	return fmt.Sprintf("%s: item %d (%s) differs from track %s in %s",
		shared.ErrConflictRequiresResolution, e.Index, e.Record, e.TrackID, strings.Join(fields, ", "))
}

func (e *ConflictRequiresResolutionError) Unwrap() error {
	return shared.ErrConflictRequiresResolution
}

// RejectedItem is a plan item that could not be applied. The catalog is unchanged for it.
type RejectedItem struct {
	Index  int    `json:"index"`
	Record string `json:"record"`
	Reason string `json:"reason"`
}

// ApplyResult reports the outcome of applying a plan.
type ApplyResult struct {
	Inserted     []string                          `json:"inserted"`
	InsertedAt   map[int]string                    `json:"insertedAt"` // plan item index to new track id
	Updated      []string                          `json:"updated"`
	Unchanged    int                               `json:"unchanged"`
	Kept         int                               `json:"kept"`
	Pending      []ConflictRequiresResolutionError `json:"pending"`
	Rejected     []RejectedItem                    `json:"rejected"`
	AuditEntries []AuditLogEntry                   `json:"auditEntries"`
}

// NewApplyResult returns an empty result whose lists encode as [] rather than null.
func NewApplyResult() *ApplyResult {
	return &ApplyResult{
		Inserted:     []string{},
		InsertedAt:   map[int]string{},
		Updated:      []string{},
		Pending:      []ConflictRequiresResolutionError{},
		Rejected:     []RejectedItem{},
		AuditEntries: []AuditLogEntry{},
	}
}

// Merge folds another result into r, used to combine chunked applies.
func (r *ApplyResult) Merge(o *ApplyResult) {
	if o == nil {
		return
	}
	r.Inserted = append(r.Inserted, o.Inserted...)
	if r.InsertedAt == nil {
		r.InsertedAt = map[int]string{}
	}
	maps.Copy(r.InsertedAt, o.InsertedAt)
	r.Updated = append(r.Updated, o.Updated...)
	r.Unchanged += o.Unchanged
	r.Kept += o.Kept
	r.Pending = append(r.Pending, o.Pending...)
	r.Rejected = append(r.Rejected, o.Rejected...)
	r.AuditEntries = append(r.AuditEntries, o.AuditEntries...)
}

// Summary is a one-line human readable description.
func (r *ApplyResult) Summary() string {
	return fmt.Sprintf("%d inserted, %d updated, %d unchanged, %d kept, %d pending, %d rejected",
		len(r.Inserted), len(r.Updated), r.Unchanged, r.Kept, len(r.Pending), len(r.Rejected))
}
