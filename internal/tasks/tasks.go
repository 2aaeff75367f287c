// package tasks implements the library operations exposed to the CLI and HTTP collaborators.
//
// The core abstraction is LibraryEngine, which wires the parsers, merge planner, catalog store and
// comparison engine together. Long-running operations emit progress updates via channels for
// non-blocking status reporting.
package tasks

import (
	"context"
	"fmt"

	"github.com/blue-creative/db-rb/internal/catalog"
	"github.com/blue-creative/db-rb/internal/compare"
	"github.com/blue-creative/db-rb/internal/identity"
	"github.com/blue-creative/db-rb/internal/merge"
	"github.com/blue-creative/db-rb/internal/models"
	"github.com/blue-creative/db-rb/internal/parsers"
	"github.com/blue-creative/db-rb/internal/services"
	"github.com/blue-creative/db-rb/internal/shared"
	"github.com/charmbracelet/log"
)

// Defaults used when [Options] leaves a value unset.
const (
	DefaultChunkSize = 500
	DefaultWorkers   = 4
)

// Options configures a LibraryEngine.
type Options struct {
	ChunkSize int         // Plan items applied per atomic chunk
	Workers   int         // Concurrent document parsers and comparison workers
	User      string      // Default attribution for edits
	Logger    *log.Logger // Defaults to a discarding logger
}

// OptionsFrom derives engine options from the application configuration.
func OptionsFrom(cfg *shared.Config, logger *log.Logger) Options {
	return Options{
		ChunkSize: cfg.Ingest.ChunkSize,
		Workers:   cfg.Ingest.Workers,
		User:      cfg.Audit.User,
		Logger:    logger,
	}
}

// Document is one uploaded file.
type Document struct {
	Name string
	Data []byte
}

// LibraryEngine is the single entry point to the catalog.
//
// It owns no state of its own beyond configuration: mutations go through the [catalog.Store],
// which serializes them. A LibraryEngine is safe for concurrent use.
type LibraryEngine struct {
	store    *catalog.Store
	resolver *identity.Resolver
	planner  *merge.Planner
	compare  *compare.Engine
	opts     Options
	logger   *log.Logger
}

// NewLibraryEngine creates a LibraryEngine over store, matching with resolver.
func NewLibraryEngine(store *catalog.Store, resolver *identity.Resolver, opts Options) *LibraryEngine {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.User == "" {
		opts.User = catalog.DefaultUser
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}

	logger := shared.WithLogger(opts.Logger, "component", "engine")
	return &LibraryEngine{
		store:    store,
		resolver: resolver,
		planner:  merge.NewPlanner(resolver, shared.WithLogger(opts.Logger, "component", "merge")),
		compare:  compare.NewEngine(resolver, opts.Workers, shared.WithLogger(opts.Logger, "component", "compare")),
		opts:     opts,
		logger:   logger,
	}
}

// WithUser returns a copy of e that attributes edits to user. An empty user keeps the default.
func (e *LibraryEngine) WithUser(user string) *LibraryEngine {
	if user == "" {
		return e
	}
	c := *e
	c.opts.User = user
	return &c
}

// User returns the user edits are attributed to.
func (e *LibraryEngine) User() string {
	return e.opts.User
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *LibraryEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// ParseDocument parses one uploaded file, choosing the parser from its extension.
func (e *LibraryEngine) ParseDocument(data []byte, filename string) (*parsers.Result, error) {
	res, err := parsers.ParseDocument(data, filename)
	if err != nil {
		e.logger.Warn("document rejected", "file", filename, "error", err)
		return nil, err
	}
	e.logger.Debug("document parsed", "file", filename, "format", res.Format, "records", len(res.Records), "warnings", len(res.Warnings))
	return res, nil
}

// Ingest classifies records against the current catalog. Nothing is applied.
func (e *LibraryEngine) Ingest(records []*models.RawTrackRecord) *models.MergePlan {
	return e.planner.Plan(records, e.store.Snapshot())
}

// ApplyMergePlan applies plan in one pass under policy.
func (e *LibraryEngine) ApplyMergePlan(plan *models.MergePlan, policy models.ResolutionPolicy) *models.ApplyResult {
	return e.store.ApplyMergePlanAs(e.opts.User, plan, policy)
}

// ListTracks returns the live tracks whose displayed fields contain filter, case-insensitively.
// An empty filter lists everything.
func (e *LibraryEngine) ListTracks(filter string) []*models.Track {
	if filter == "" {
		return e.store.Snapshot()
	}
	return e.store.Query(func(t *models.Track) bool { return t.Matches(filter) })
}

// GetTrack returns one track.
func (e *LibraryEngine) GetTrack(id string) (*models.Track, error) {
	return e.store.Get(id)
}

// UpdateTrackField edits one field and returns the audit entry written, or nil when the value
// was already current.
func (e *LibraryEngine) UpdateTrackField(id, field, value string) (*models.AuditLogEntry, error) {
	entry, err := e.store.UpdateFieldAs(e.opts.User, id, field, value)
	if err != nil {
		e.logger.Debug("field update rejected", "track", id, "field", field, "error", err)
		return nil, err
	}
	return entry, nil
}

// GetAuditLog returns the history of trackID, or of the whole catalog when trackID is "".
func (e *LibraryEngine) GetAuditLog(trackID string) []models.AuditLogEntry {
	return e.store.AuditLog(trackID)
}

// DeleteTrack removes a track while keeping its history.
func (e *LibraryEngine) DeleteTrack(id string) error {
	return e.store.DeleteTrack(id)
}

// RevertEdit restores the old value recorded by auditID as a new attributed edit.
func (e *LibraryEngine) RevertEdit(auditID string) (*models.AuditLogEntry, error) {
	return e.store.Revert(e.opts.User, auditID)
}

// Compare classifies an external playlist against the current catalog.
func (e *LibraryEngine) Compare(ctx context.Context, entries []*models.RawTrackRecord, progress chan<- ProgressUpdate) ([]models.ComparisonResult, error) {
	results, err := e.compare.Compare(ctx, entries, e.store.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("comparison aborted: %w", err)
	}
	e.sendProgress(progress, compareUpdate(len(results), models.ComparisonCounts(results)))
	return results, nil
}

// SourceComparison is the outcome of comparing a playlist read from a [services.PlaylistSource].
type SourceComparison struct {
	Source   string                          `json:"source"`
	Playlist string                          `json:"playlist"`
	Results  []models.ComparisonResult       `json:"results"`
	Counts   map[models.ComparisonStatus]int `json:"counts"`
	Warnings []parsers.Warning               `json:"warnings"`
}

// CompareSource reads playlistID from src and classifies its entries against the current catalog.
func (e *LibraryEngine) CompareSource(ctx context.Context, src services.PlaylistSource, playlistID string, progress chan<- ProgressUpdate) (*SourceComparison, error) {
	listing, err := src.Entries(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to read playlist %s from %s: %w", playlistID, src.Name(), err)
	}
	e.logger.Debug("playlist fetched", "source", src.Name(), "playlist", playlistID, "entries", len(listing.Records))

	results, err := e.Compare(ctx, listing.Records, progress)
	if err != nil {
		return nil, err
	}
	return &SourceComparison{
		Source:   src.Name(),
		Playlist: playlistID,
		Results:  results,
		Counts:   models.ComparisonCounts(results),
		Warnings: listing.Warnings,
	}, nil
}
