package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/blue-creative/db-rb/internal/models"
	"github.com/blue-creative/db-rb/internal/parsers"
	"github.com/blue-creative/db-rb/internal/shared"
	"github.com/blue-creative/db-rb/internal/tasks"
	"github.com/charmbracelet/log"
)

// DefaultMaxUpload bounds request bodies when no limit is configured.
const DefaultMaxUpload int64 = 32 << 20

// API exposes a [tasks.LibraryEngine] over JSON.
type API struct {
	engine    *tasks.LibraryEngine
	maxUpload int64
	logger    *log.Logger
}

// NewAPI creates an API. Non-positive maxUpload uses [DefaultMaxUpload].
func NewAPI(engine *tasks.LibraryEngine, maxUpload int64, logger *log.Logger) *API {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &API{engine: engine, maxUpload: maxUpload, logger: shared.WithLogger(logger, "component", "api")}
}

// Register adds every endpoint to router.
func (a *API) Register(router Router) {
	router.HandleFunc(http.MethodPost, "/api/documents", a.parseDocument)
	router.HandleFunc(http.MethodPost, "/api/ingest", a.ingest)
	router.HandleFunc(http.MethodPost, "/api/apply", a.apply)
	router.HandleFunc(http.MethodGet, "/api/tracks", a.listTracks)
	router.HandleFunc(http.MethodGet, "/api/tracks/{id}", a.getTrack)
	router.HandleFunc(http.MethodPatch, "/api/tracks/{id}", a.updateTrack)
	router.HandleFunc(http.MethodDelete, "/api/tracks/{id}", a.deleteTrack)
	router.HandleFunc(http.MethodGet, "/api/audit", a.auditLog)
	router.HandleFunc(http.MethodPost, "/api/audit/{id}/revert", a.revert)
	router.HandleFunc(http.MethodPost, "/api/compare", a.compare)
}

// engineFor attributes the request's edits to its X-User, if any.
func (a *API) engineFor(r *http.Request) *tasks.LibraryEngine {
	return a.engine.WithUser(UserFrom(r.Context()))
}

// IngestRequest is the body of POST /api/ingest.
type IngestRequest struct {
	Records []*models.RawTrackRecord `json:"records"`
}

// PlanResponse is a merge plan with per-status counts. Records that failed validation are left
// out of the plan and listed in Rejected; plan indexes are positions in the request.
type PlanResponse struct {
	Plan     *models.MergePlan          `json:"plan"`
	Counts   map[models.MergeStatus]int `json:"counts"`
	Rejected []models.RejectedItem      `json:"rejected"`
}

// ApplyRequest is the body of POST /api/apply.
type ApplyRequest struct {
	Plan   *models.MergePlan       `json:"plan"`
	Policy models.ResolutionPolicy `json:"policy"`
}

// UpdateRequest is the body of PATCH /api/tracks/{id}.
type UpdateRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// UpdateResponse carries the edited track and the audit entry written. Entry is null when the
// value was already current.
type UpdateResponse struct {
	Track *models.Track         `json:"track"`
	Entry *models.AuditLogEntry `json:"entry"`
}

// CompareResponse is the outcome of POST /api/compare.
type CompareResponse struct {
	Results  []models.ComparisonResult       `json:"results"`
	Counts   map[models.ComparisonStatus]int `json:"counts"`
	Warnings []parsers.Warning               `json:"warnings"`
}

// readDocument reads a raw request body named by the filename query parameter.
func (a *API) readDocument(w http.ResponseWriter, r *http.Request) (*parsers.Result, error) {
	filename := strings.TrimSpace(r.URL.Query().Get("filename"))
	if filename == "" {
		return nil, fmt.Errorf("%w: filename", shared.ErrMissingArgument)
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.maxUpload))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return a.engine.ParseDocument(data, filename)
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, a.maxUpload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return nil
}

func (a *API) parseDocument(w http.ResponseWriter, r *http.Request) {
	res, err := a.readDocument(w, r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	var (
		records  []*models.RawTrackRecord
		at       []int
		rejected = []models.RejectedItem{}
	)
	for i, rec := range req.Records {
		if rec == nil {
			a.fail(w, r, fmt.Errorf("%w: record %d is null", shared.ErrInvalidInput, i))
			return
		}
		clean := models.NewRecord(rec.Source, rec.Line)
		clean.LowConfidence = rec.LowConfidence
		for k, v := range rec.Fields {
			clean.Set(k, v)
		}
		if err := clean.Normalize(); err != nil {
			rejected = append(rejected, models.RejectedItem{Index: i, Record: clean.Label(), Reason: err.Error()})
			continue
		}
		records = append(records, clean)
		at = append(at, i)
	}
	if len(rejected) > 0 {
		a.logger.Warn("records rejected", "count", len(rejected), "of", len(req.Records))
	}

	plan := a.engine.Ingest(records).Reindex(at)
	writeJSON(w, http.StatusOK, PlanResponse{Plan: plan, Counts: plan.Counts(), Rejected: rejected})
}

func (a *API) apply(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if req.Plan == nil {
		a.fail(w, r, fmt.Errorf("%w: plan", shared.ErrMissingArgument))
		return
	}
	policy, err := normalizePolicy(req.Policy)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	result := a.engineFor(r).ApplyMergePlan(req.Plan, policy)
	writeJSON(w, http.StatusOK, result)
}

// normalizePolicy validates every resolution, accepting the long forms.
func normalizePolicy(p models.ResolutionPolicy) (models.ResolutionPolicy, error) {
	def, err := models.ParseResolution(string(p.Default))
	if err != nil {
		return p, err
	}
	out := models.ResolutionPolicy{Default: def, Overrides: make(map[int]models.Resolution, len(p.Overrides))}
	for idx, res := range p.Overrides {
		parsed, err := models.ParseResolution(string(res))
		if err != nil {
			return p, fmt.Errorf("override for item %d: %w", idx, err)
		}
		out.Overrides[idx] = parsed
	}
	return out, nil
}

func (a *API) listTracks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.ListTracks(r.URL.Query().Get("q")))
}

func (a *API) getTrack(w http.ResponseWriter, r *http.Request) {
	track, err := a.engine.GetTrack(r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, track)
}

func (a *API) updateTrack(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.Field) == "" {
		a.fail(w, r, fmt.Errorf("%w: field", shared.ErrMissingArgument))
		return
	}

	id := r.PathValue("id")
	entry, err := a.engineFor(r).UpdateTrackField(id, req.Field, req.Value)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	track, err := a.engine.GetTrack(id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UpdateResponse{Track: track, Entry: entry})
}

func (a *API) deleteTrack(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.DeleteTrack(r.PathValue("id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) auditLog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.GetAuditLog(r.URL.Query().Get("track_id")))
}

func (a *API) revert(w http.ResponseWriter, r *http.Request) {
	entry, err := a.engineFor(r).RevertEdit(r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	resp := UpdateResponse{Entry: entry}
	if entry != nil {
		resp.Track, _ = a.engine.GetTrack(entry.TrackID)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) compare(w http.ResponseWriter, r *http.Request) {
	doc, err := a.readDocument(w, r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	results, err := a.engine.Compare(r.Context(), doc.Records, nil)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CompareResponse{
		Results:  results,
		Counts:   models.ComparisonCounts(results),
		Warnings: doc.Warnings,
	})
}
