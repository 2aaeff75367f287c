package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/blue-creative/db-rb/internal/catalog"
	"github.com/blue-creative/db-rb/internal/identity"
	"github.com/blue-creative/db-rb/internal/models"
	"github.com/blue-creative/db-rb/internal/parsers"
	"github.com/blue-creative/db-rb/internal/shared"
	"github.com/blue-creative/db-rb/internal/tasks"
	th "github.com/blue-creative/db-rb/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const playlist = "#EXTM3U\n#EXTINF:300,DJ Test - Deep House Anthem\n/music/anthem.mp3\n"

func newServer(t *testing.T, cfg shared.ServerConfig) http.Handler {
	t.Helper()
	store, err := catalog.New(catalog.WithClock(th.FixedClock))
	require.NoError(t, err)
	engine := tasks.NewLibraryEngine(store, identity.NewResolver(identity.DefaultConfig()), tasks.Options{})
	return New(cfg, engine, nil).Handler()
}

func do(t *testing.T, h http.Handler, method, target string, body io.Reader, user string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doJSON(t *testing.T, h http.Handler, method, target string, v any, user string) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return do(t, h, method, target, bytes.NewReader(data), user)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestAPIWorkflow(t *testing.T) {
	h := newServer(t, shared.ServerConfig{})

	rec := do(t, h, http.MethodPost, "/api/documents?filename=set.m3u", strings.NewReader(playlist), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	doc := decode[parsers.Result](t, rec)
	require.Len(t, doc.Records, 1)
	assert.Equal(t, "Deep House Anthem", doc.Records[0].Get(models.FieldTitle))

	rec = doJSON(t, h, http.MethodPost, "/api/ingest", IngestRequest{Records: doc.Records}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	plan := decode[PlanResponse](t, rec)
	assert.Equal(t, 1, plan.Counts[models.StatusNew])

	rec = doJSON(t, h, http.MethodPost, "/api/apply", ApplyRequest{
		Plan:   plan.Plan,
		Policy: models.ResolutionPolicy{Default: "accept-incoming"},
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	applied := decode[models.ApplyResult](t, rec)
	require.Len(t, applied.Inserted, 1)
	id := applied.Inserted[0]

	t.Run("list and get", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/tracks?q=ANTHEM", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		tracks := decode[[]models.Track](t, rec)
		require.Len(t, tracks, 1)
		assert.Equal(t, id, tracks[0].ID)
		assert.Equal(t, 300, tracks[0].Duration)

		rec = do(t, h, http.MethodGet, "/api/tracks?q=nothing", nil, "")
		assert.Empty(t, decode[[]models.Track](t, rec))

		rec = do(t, h, http.MethodGet, "/api/tracks/"+id, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "DJ Test", decode[models.Track](t, rec).Artist)
	})

	t.Run("edit is attributed to X-User", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPatch, "/api/tracks/"+id, UpdateRequest{Field: "Genre", Value: "Techno"}, "alice")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[UpdateResponse](t, rec)
		require.NotNil(t, resp.Entry)
		assert.Equal(t, "alice", resp.Entry.User)
		assert.Equal(t, models.FieldGenre, resp.Entry.Field)
		assert.Equal(t, "", resp.Entry.OldValue)
		assert.Equal(t, "Techno", resp.Track.Genre)

		rec = doJSON(t, h, http.MethodPatch, "/api/tracks/"+id, UpdateRequest{Field: "genre", Value: "Techno"}, "alice")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, decode[UpdateResponse](t, rec).Entry)
	})

	t.Run("audit and revert", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/audit?track_id="+id, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		entries := decode[[]models.AuditLogEntry](t, rec)
		require.Len(t, entries, 1)

		rec = do(t, h, http.MethodPost, "/api/audit/"+entries[0].ID+"/revert", nil, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[UpdateResponse](t, rec)
		require.NotNil(t, resp.Entry)
		assert.Equal(t, catalog.DefaultUser, resp.Entry.User)
		assert.Equal(t, "Techno", resp.Entry.OldValue)
		assert.Equal(t, "", resp.Track.Genre)

		rec = do(t, h, http.MethodGet, "/api/audit", nil, "")
		assert.Len(t, decode[[]models.AuditLogEntry](t, rec), 2)
	})

	t.Run("compare", func(t *testing.T) {
		list := playlist + "#EXTINF:200,Nobody - Unknown Song\n/music/unknown.mp3\n"
		rec := do(t, h, http.MethodPost, "/api/compare?filename=external.m3u8", strings.NewReader(list), "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[CompareResponse](t, rec)
		require.Len(t, resp.Results, 2)
		assert.Equal(t, models.ComparisonFound, resp.Results[0].Status)
		assert.Equal(t, []string{id}, resp.Results[0].MatchIDs)
		assert.Equal(t, models.ComparisonMissing, resp.Results[1].Status)
		assert.Equal(t, 1, resp.Counts[models.ComparisonMissing])
	})

	t.Run("delete", func(t *testing.T) {
		rec := do(t, h, http.MethodDelete, "/api/tracks/"+id, nil, "")
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = do(t, h, http.MethodGet, "/api/tracks/"+id, nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = do(t, h, http.MethodDelete, "/api/tracks/"+id, nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = do(t, h, http.MethodDelete, "/api/tracks/"+id+"/delete", nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = do(t, h, http.MethodGet, "/api/audit?track_id="+id, nil, "")
		assert.Len(t, decode[[]models.AuditLogEntry](t, rec), 2)
	})
}

func TestAPIErrors(t *testing.T) {
	h := newServer(t, shared.ServerConfig{MaxUpload: 64})

	tests := []struct {
		name   string
		method string
		target string
		body   io.Reader
		status int
	}{
		{"unsupported format", http.MethodPost, "/api/documents?filename=set.pdf", strings.NewReader("x"), http.StatusUnsupportedMediaType},
		{"malformed document", http.MethodPost, "/api/documents?filename=set.json", strings.NewReader(`[{"title":`), http.StatusUnprocessableEntity},
		{"missing filename", http.MethodPost, "/api/documents", strings.NewReader(playlist), http.StatusBadRequest},
		{"unreadable body", http.MethodPost, "/api/documents?filename=set.m3u", &th.FReader{}, http.StatusInternalServerError},
		{"upload too large", http.MethodPost, "/api/documents?filename=set.m3u", strings.NewReader(strings.Repeat(playlist, 4)), http.StatusRequestEntityTooLarge},
		{"unknown track", http.MethodPatch, "/api/tracks/missing", strings.NewReader(`{"field":"genre","value":"x"}`), http.StatusNotFound},
		{"missing field", http.MethodPatch, "/api/tracks/missing", strings.NewReader(`{"value":"x"}`), http.StatusBadRequest},
		{"unknown json key", http.MethodPost, "/api/ingest", strings.NewReader(`{"rows":[]}`), http.StatusBadRequest},
		{"null record", http.MethodPost, "/api/ingest", strings.NewReader(`{"records":[null]}`), http.StatusBadRequest},
		{"missing plan", http.MethodPost, "/api/apply", strings.NewReader(`{}`), http.StatusBadRequest},
		{"bad policy", http.MethodPost, "/api/apply", strings.NewReader(`{"plan":{"items":[]},"policy":{"default":"maybe"}}`), http.StatusBadRequest},
		{"unknown audit entry", http.MethodPost, "/api/audit/missing/revert", nil, http.StatusNotFound},
		{"wrong method", http.MethodPut, "/api/tracks", nil, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.target, tt.body, "")
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusMethodNotAllowed {
				assert.NotEmpty(t, decode[errorBody](t, rec).Error)
			}
		})
	}

	t.Run("invalid records are rejected without failing the batch", func(t *testing.T) {
		h := newServer(t, shared.ServerConfig{})
		rec := doJSON(t, h, http.MethodPost, "/api/ingest", IngestRequest{Records: []*models.RawTrackRecord{
			th.Record(map[string]string{"title": "Strobe", "artist": "deadmau5"}),
			th.Record(map[string]string{"title": "Bad", "artist": "X", "rating": "9"}),
			th.Record(map[string]string{"title": "Strobe", "artist": "deadmau5"}),
		}}, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[PlanResponse](t, rec)

		require.Len(t, resp.Rejected, 1)
		assert.Equal(t, 1, resp.Rejected[0].Index)
		assert.Contains(t, resp.Rejected[0].Record, "X - Bad")
		assert.Contains(t, resp.Rejected[0].Reason, "rating")

		require.Len(t, resp.Plan.Items, 2)
		assert.Equal(t, 0, resp.Plan.Items[0].Index)
		assert.Equal(t, models.StatusNew, resp.Plan.Items[0].Status)
		assert.Equal(t, 2, resp.Plan.Items[1].Index)
		assert.Equal(t, models.StatusDuplicate, resp.Plan.Items[1].Status)
		require.NotNil(t, resp.Plan.Items[1].DuplicateOf)
		assert.Equal(t, 0, *resp.Plan.Items[1].DuplicateOf)
		assert.Equal(t, 1, resp.Counts[models.StatusNew])

		rec = doJSON(t, h, http.MethodPost, "/api/apply", ApplyRequest{Plan: resp.Plan}, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Len(t, decode[models.ApplyResult](t, rec).Inserted, 1)
	})

	t.Run("invalid edit leaves track unchanged", func(t *testing.T) {
		h := newServer(t, shared.ServerConfig{})
		rec := doJSON(t, h, http.MethodPost, "/api/ingest", IngestRequest{Records: []*models.RawTrackRecord{
			th.Record(map[string]string{"title": "Strobe", "artist": "deadmau5"}),
		}}, "")
		require.Equal(t, http.StatusOK, rec.Code)
		plan := decode[PlanResponse](t, rec)

		rec = doJSON(t, h, http.MethodPost, "/api/apply", ApplyRequest{Plan: plan.Plan}, "")
		require.Equal(t, http.StatusOK, rec.Code)
		id := decode[models.ApplyResult](t, rec).Inserted[0]

		rec = doJSON(t, h, http.MethodPatch, "/api/tracks/"+id, UpdateRequest{Field: "rating", Value: "9"}, "")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		rec = do(t, h, http.MethodGet, "/api/audit?track_id="+id, nil, "")
		assert.Empty(t, decode[[]models.AuditLogEntry](t, rec))
	})
}

func TestRateLimiter(t *testing.T) {
	h := newServer(t, shared.ServerConfig{RateLimit: 1, Burst: 2})

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/tracks", nil, "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/tracks", nil, "").Code)

	rec := do(t, h, http.MethodGet, "/api/tracks", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{shared.ErrTrackNotFound, http.StatusNotFound},
		{shared.ErrAuditEntryNotFound, http.StatusNotFound},
		{shared.ErrUnsupportedFormat, http.StatusUnsupportedMediaType},
		{shared.ErrValidation, http.StatusUnprocessableEntity},
		{shared.ErrMalformedDocument, http.StatusUnprocessableEntity},
		{shared.ErrMissingArgument, http.StatusBadRequest},
		{shared.ErrCatalogLocked, http.StatusConflict},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, StatusFor(tt.err))
		})
	}
}

func TestMiddleware(t *testing.T) {
	t.Run("attribution", func(t *testing.T) {
		var got string
		h := Attribution()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = UserFrom(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(UserHeader, "  bob ")
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, "bob", got)

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, "", got)
	})

	t.Run("recoverer", func(t *testing.T) {
		h := Recoverer(shared.DiscardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("request logger records status", func(t *testing.T) {
		var buf bytes.Buffer
		h := RequestLogger(shared.NewLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
		req := httptest.NewRequest(http.MethodGet, "/api/tracks", nil)
		req.Header.Set(UserHeader, "carol")
		h.ServeHTTP(httptest.NewRecorder(), req)

		assert.Contains(t, buf.String(), "/api/tracks")
		assert.Contains(t, buf.String(), "418")
		assert.Contains(t, buf.String(), "carol")
	})

	t.Run("router applies middleware in order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}
		r := NewBasicRouter()
		r.Use(mw("first"), mw("second"))
		r.HandleFunc(http.MethodGet, "/ping", func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		})
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, []string{"first", "second", "handler"}, order)
	})
}
