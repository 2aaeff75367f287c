// package compare classifies an external playlist against the local catalog
package compare

import (
	"context"

	"github.com/blue-creative/db-rb/internal/identity"
	"github.com/blue-creative/db-rb/internal/models"
	"github.com/blue-creative/db-rb/internal/shared"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds concurrent matching when no worker count is configured.
const DefaultWorkers = 4

// Engine compares external entries with a catalog snapshot using the same index as ingestion.
type Engine struct {
	resolver *identity.Resolver
	workers  int
	logger   *log.Logger
}

// NewEngine creates an Engine. Non-positive workers fall back to [DefaultWorkers] and a nil logger discards output.
func NewEngine(resolver *identity.Resolver, workers int, logger *log.Logger) *Engine {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Engine{resolver: resolver, workers: workers, logger: logger}
}

// Compare classifies every entry: missing with no local match, found with exactly one and
// duplicate when several catalog tracks match. Results keep the order of entries.
//
// The index is built once and only read while entries are matched concurrently. Compare returns
// early with the context's error when ctx is cancelled.
func (e *Engine) Compare(ctx context.Context, entries []*models.RawTrackRecord, snapshot []*models.Track) ([]models.ComparisonResult, error) {
	ix := e.resolver.NewIndex(snapshot)
	results := make([]models.ComparisonResult, len(entries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, entry := range entries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = classify(ix, entry)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	counts := models.ComparisonCounts(results)
	e.logger.Debug("comparison finished",
		"entries", len(entries),
		"catalog", ix.Len(),
		"found", counts[models.ComparisonFound],
		"duplicate", counts[models.ComparisonDuplicate],
		"missing", counts[models.ComparisonMissing])
	return results, nil
}

func classify(ix *identity.Index, entry *models.RawTrackRecord) models.ComparisonResult {
	result := models.ComparisonResult{Entry: entry, Status: models.ComparisonMissing}
	if entry == nil {
		return result
	}
	result.ExternalRef = entry.Get(models.FieldExternalRef)

	matches := ix.Match(identity.SignalsOf(entry))
	result.LocalMatches = len(matches)
	for _, m := range matches {
		result.MatchIDs = append(result.MatchIDs, m.Track.ID)
	}

	switch {
	case len(matches) == 1:
		result.Status = models.ComparisonFound
	case len(matches) > 1:
		result.Status = models.ComparisonDuplicate
	}
	return result
}
