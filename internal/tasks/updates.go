package tasks

import (
	"fmt"

	"github.com/blue-creative/db-rb/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or HTTP layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	ParseFiles Phase = iota
	PlanMerge
	ApplyChunk
	CompareEntries
	WriteExports
)

func (p Phase) String() string {
	switch p {
	case ParseFiles:
		return "parse_files"
	case PlanMerge:
		return "plan_merge"
	case ApplyChunk:
		return "apply_chunk"
	case CompareEntries:
		return "compare_entries"
	case WriteExports:
		return "write_exports"
	default:
		return ""
	}
}

func parsedDocumentUpdate(step, total int, name string, records, warnings int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ParseFiles,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d records, %d warnings)", step, total, name, records, warnings),
	}
}

func failedDocumentUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ParseFiles,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}

func planUpdate(plan *models.MergePlan) ProgressUpdate {
	counts := plan.Counts()
	return ProgressUpdate{
		Phase: PlanMerge,
		Step:  1,
		Total: 1,
		Message: fmt.Sprintf("Planned %d records: %d new, %d duplicate, %d conflict",
			len(plan.Items), counts[models.StatusNew], counts[models.StatusDuplicate], counts[models.StatusConflict]),
		Data: plan,
	}
}

func applyChunkUpdate(step, total int, chunk *models.ApplyResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ApplyChunk,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Applied chunk: %s", step, total, chunk.Summary()),
		Data:    chunk,
	}
}

func compareUpdate(total int, counts map[models.ComparisonStatus]int) ProgressUpdate {
	return ProgressUpdate{
		Phase: CompareEntries,
		Step:  1,
		Total: 1,
		Message: fmt.Sprintf("Compared %d entries: %d found, %d duplicate, %d missing",
			total, counts[models.ComparisonFound], counts[models.ComparisonDuplicate], counts[models.ComparisonMissing]),
	}
}

func exportCompletedUpdate(step, total int, format, path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteExports,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s → %s", step, total, format, path),
	}
}

func exportFailedUpdate(step, total int, format string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteExports,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, format, err),
	}
}
