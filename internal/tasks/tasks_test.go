package tasks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blue-creative/db-rb/internal/catalog"
	"github.com/blue-creative/db-rb/internal/identity"
	"github.com/blue-creative/db-rb/internal/models"
	"github.com/blue-creative/db-rb/internal/parsers"
	"github.com/blue-creative/db-rb/internal/repositories"
	"github.com/blue-creative/db-rb/internal/shared"
	th "github.com/blue-creative/db-rb/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const library = "Title\tArtist\tBPM\tRating\tTime\n" +
	"Deep House Anthem\tDJ Test\t124\t4\t6:01\n" +
	"Strobe\tdeadmau5\t128\t5\t10:37\n" +
	"Ghosts n Stuff\tdeadmau5\t128\t\t5:14\n"

func newEngine(t *testing.T, opts Options, storeOpts ...catalog.Option) *LibraryEngine {
	t.Helper()
	store, err := catalog.New(append([]catalog.Option{catalog.WithClock(th.FixedClock)}, storeOpts...)...)
	require.NoError(t, err)
	return NewLibraryEngine(store, identity.NewResolver(identity.DefaultConfig()), opts)
}

var accept = models.ResolutionPolicy{Default: models.ResolveAcceptIncoming}

func TestParseDocuments(t *testing.T) {
	e := newEngine(t, Options{Workers: 2})
	docs := []Document{
		{Name: "library.txt", Data: []byte(library)},
		{Name: "broken.json", Data: []byte(`[{"title": "x"`)},
		{Name: "notes.docx", Data: []byte("?")},
		{Name: "set.m3u", Data: []byte("#EXTM3U\n#EXTINF:361,DJ Test - Deep House Anthem\n/music/anthem.mp3\n")},
	}

	progress := make(chan ProgressUpdate, 10)
	batch, err := e.ParseDocuments(context.Background(), docs, progress)
	require.NoError(t, err)

	require.Len(t, batch.Results, 2)
	assert.Equal(t, "library.txt", batch.Results[0].Source)
	assert.Equal(t, "set.m3u", batch.Results[1].Source)
	assert.Len(t, batch.Records(), 4)
	assert.Empty(t, batch.Warnings())

	require.Len(t, batch.Failures, 2)
	assert.Equal(t, "broken.json", batch.Failures[0].Name)
	assert.ErrorIs(t, batch.Failures[0].Err(), shared.ErrMalformedDocument)
	assert.ErrorIs(t, batch.Failures[1].Err(), shared.ErrUnsupportedFormat)

	assert.Len(t, progress, 4)
	update := <-progress
	assert.Equal(t, ParseFiles, update.Phase)
	assert.Equal(t, 4, update.Total)

	t.Run("cancelled context aborts the batch", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := e.ParseDocuments(ctx, docs, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestBulkIngest(t *testing.T) {
	t.Run("persists through the sqlite backend and is idempotent", func(t *testing.T) {
		db := th.OpenTestDB(t)
		e := newEngine(t, Options{ChunkSize: 2, User: "importer"}, catalog.WithBackend(repositories.NewCatalogBackend(db)))
		docs := []Document{{Name: "library.txt", Data: []byte(library)}}

		report, err := e.BulkIngest(context.Background(), docs, accept, nil)
		require.NoError(t, err)
		assert.Len(t, report.Result.Inserted, 3)
		assert.Equal(t, 3, report.Plan.Counts()[models.StatusNew])

		again, err := e.BulkIngest(context.Background(), docs, accept, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, again.Plan.Counts()[models.StatusDuplicate])
		assert.Equal(t, 3, again.Result.Unchanged)
		assert.Empty(t, e.GetAuditLog(""))

		persisted, err := repositories.NewTrackRepository(db).List(nil)
		require.NoError(t, err)
		assert.Len(t, persisted, 3)
	})

	t.Run("conflicts follow the policy", func(t *testing.T) {
		e := newEngine(t, Options{User: "importer"})
		_, err := e.BulkIngest(context.Background(), []Document{{Name: "library.txt", Data: []byte(library)}}, accept, nil)
		require.NoError(t, err)

		update := []Document{{Name: "update.txt", Data: []byte("Title,Artist,Rating\nStrobe,deadmau5,3\n")}}
		report, err := e.BulkIngest(context.Background(), update, models.ResolutionPolicy{Default: models.ResolveManual}, nil)
		require.NoError(t, err)
		require.Len(t, report.Result.Pending, 1)
		assert.Equal(t, []models.FieldDiff{{Field: models.FieldRating, Old: "5", New: "3"}}, report.Result.Pending[0].Diffs)

		report, err = e.BulkIngest(context.Background(), update, accept, nil)
		require.NoError(t, err)
		require.Len(t, report.Result.AuditEntries, 1)
		assert.Equal(t, "importer", report.Result.AuditEntries[0].User)
	})
}

func TestApplyChunked(t *testing.T) {
	records := make([]*models.RawTrackRecord, 5)
	for i := range records {
		records[i] = th.Record(map[string]string{"title": fmt.Sprintf("Track %c", 'A'+i), "artist": "Various"})
	}

	t.Run("reports one update per chunk", func(t *testing.T) {
		e := newEngine(t, Options{ChunkSize: 2})
		progress := make(chan ProgressUpdate, 10)

		res, err := e.ApplyChunked(context.Background(), e.Ingest(records), accept, progress)
		require.NoError(t, err)
		assert.Len(t, res.Inserted, 5)

		require.Len(t, progress, 3)
		last := ProgressUpdate{}
		for range 3 {
			last = <-progress
			assert.Equal(t, ApplyChunk, last.Phase)
		}
		assert.Equal(t, 3, last.Step)
		assert.Equal(t, 3, last.Total)
	})

	t.Run("cancellation stops at a chunk boundary", func(t *testing.T) {
		e := newEngine(t, Options{ChunkSize: 2})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res, err := e.ApplyChunked(ctx, e.Ingest(records), accept, nil)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, res.Inserted)
		assert.Empty(t, e.ListTracks(""))
	})

	t.Run("repeats across chunks merge into the first insert", func(t *testing.T) {
		batch := []*models.RawTrackRecord{
			th.Record(map[string]string{"title": "Strobe", "artist": "deadmau5", "genre": "House"}),
			th.Record(map[string]string{"title": "Strobe", "artist": "deadmau5", "genre": "Progressive"}),
		}

		e := newEngine(t, Options{ChunkSize: 1})
		plan := e.Ingest(batch)
		assert.Equal(t, models.StatusNew, plan.Items[0].Status)
		assert.Equal(t, models.StatusConflict, plan.Items[1].Status)

		res, err := e.ApplyChunked(context.Background(), plan, models.ResolutionPolicy{}, nil)
		require.NoError(t, err)
		require.Len(t, res.Inserted, 1)
		require.Len(t, res.Pending, 1)
		assert.Equal(t, res.Inserted[0], res.Pending[0].TrackID)
		assert.Equal(t, []models.FieldDiff{{Field: models.FieldGenre, Old: "House", New: "Progressive"}}, res.Pending[0].Diffs)
		assert.Equal(t, "House", e.ListTracks("")[0].Genre)

		e = newEngine(t, Options{ChunkSize: 1})
		res, err = e.ApplyChunked(context.Background(), e.Ingest(batch), accept, nil)
		require.NoError(t, err)
		require.Len(t, res.Inserted, 1)
		assert.Equal(t, res.Inserted, res.Updated)
		require.Len(t, res.AuditEntries, 1)
		assert.Equal(t, "Progressive", res.AuditEntries[0].NewValue)

		tracks := e.ListTracks("")
		require.Len(t, tracks, 1)
		assert.Equal(t, "Progressive", tracks[0].Genre)
	})

	t.Run("repeats that complete each other re-ingest as duplicates", func(t *testing.T) {
		batch := []*models.RawTrackRecord{
			th.Record(map[string]string{"title": "Strobe", "artist": "deadmau5", "genre": "Progressive"}),
			th.Record(map[string]string{"title": "Strobe", "artist": "deadmau5", "bpm": "128"}),
			th.Record(map[string]string{"title": "Strobe", "artist": "deadmau5"}),
		}

		e := newEngine(t, Options{ChunkSize: 2})
		res, err := e.ApplyChunked(context.Background(), e.Ingest(batch), accept, nil)
		require.NoError(t, err)
		assert.Len(t, res.Inserted, 1)
		assert.Len(t, res.Updated, 1)
		assert.Equal(t, 1, res.Unchanged)

		again := e.Ingest(batch)
		for _, item := range again.Items {
			assert.Equal(t, models.StatusDuplicate, item.Status, "item %d", item.Index)
		}
	})

	t.Run("nil plan", func(t *testing.T) {
		res, err := newEngine(t, Options{}).ApplyChunked(context.Background(), nil, accept, nil)
		require.NoError(t, err)
		assert.Equal(t, "0 inserted, 0 updated, 0 unchanged, 0 kept, 0 pending, 0 rejected", res.Summary())
	})
}

func TestEditing(t *testing.T) {
	e := newEngine(t, Options{User: "admin"})
	res := e.ApplyMergePlan(e.Ingest([]*models.RawTrackRecord{
		th.Record(map[string]string{"title": "Deep House Anthem", "artist": "DJ Test", "rating": "4", "genre": "House"}),
		th.Record(map[string]string{"title": "Strobe", "artist": "deadmau5", "comments": "festival closer"}),
	}), accept)
	require.Len(t, res.Inserted, 2)
	id := res.Inserted[0]

	t.Run("ListTracks filters across displayed fields", func(t *testing.T) {
		assert.Len(t, e.ListTracks(""), 2)
		assert.Len(t, e.ListTracks("HOUSE"), 1)
		assert.Len(t, e.ListTracks("closer"), 1)
		assert.Empty(t, e.ListTracks("techno"))
	})

	t.Run("UpdateTrackField is attributed", func(t *testing.T) {
		entry, err := e.WithUser("alice").UpdateTrackField(id, "rating", "5")
		require.NoError(t, err)
		assert.Equal(t, "alice", entry.User)
		assert.Equal(t, "4", entry.OldValue)

		entry, err = e.UpdateTrackField(id, "genre", "Deep House")
		require.NoError(t, err)
		assert.Equal(t, "admin", entry.User)
		assert.Equal(t, "admin", e.WithUser("").User())
	})

	t.Run("rating 7 fails validation and changes nothing", func(t *testing.T) {
		before := len(e.GetAuditLog(id))
		_, err := e.UpdateTrackField(id, "rating", "7")
		assert.ErrorIs(t, err, shared.ErrValidation)
		assert.Len(t, e.GetAuditLog(id), before)

		tr, err := e.GetTrack(id)
		require.NoError(t, err)
		assert.Equal(t, 5, tr.Stars())
	})

	t.Run("RevertEdit and DeleteTrack", func(t *testing.T) {
		log := e.GetAuditLog(id)
		require.NotEmpty(t, log)

		back, err := e.RevertEdit(log[len(log)-1].ID)
		require.NoError(t, err)
		assert.Equal(t, "House", back.NewValue)

		require.NoError(t, e.DeleteTrack(id))
		_, err = e.GetTrack(id)
		assert.True(t, errors.Is(err, shared.ErrTrackNotFound))
		assert.NotEmpty(t, e.GetAuditLog(id))
	})
}

func TestCompare(t *testing.T) {
	e := newEngine(t, Options{})
	e.ApplyMergePlan(&models.MergePlan{Items: []models.MergePlanItem{
		{Index: 0, Status: models.StatusNew, Record: th.Record(map[string]string{"title": "Strobe", "artist": "deadmau5"})},
		{Index: 1, Status: models.StatusNew, Record: th.Record(map[string]string{"title": "Strobe", "artist": "deadmau5"})},
		{Index: 2, Status: models.StatusNew, Record: th.Record(map[string]string{"title": "Deep House Anthem", "artist": "DJ Test"})},
	}}, accept)

	progress := make(chan ProgressUpdate, 1)
	results, err := e.Compare(context.Background(), []*models.RawTrackRecord{
		th.Record(map[string]string{"title": "Strobe", "artist": "deadmau5"}),
		th.Record(map[string]string{"title": "Deep House Anthem", "artist": "DJ Test"}),
		th.Record(map[string]string{"title": "Unknown", "artist": "Nobody"}),
	}, progress)
	require.NoError(t, err)

	assert.Equal(t, models.ComparisonDuplicate, results[0].Status)
	assert.Equal(t, 2, results[0].LocalMatches)
	assert.Equal(t, models.ComparisonFound, results[1].Status)
	assert.Equal(t, models.ComparisonMissing, results[2].Status)

	update := <-progress
	assert.Equal(t, CompareEntries, update.Phase)
	assert.Contains(t, update.Message, "1 found, 1 duplicate, 1 missing")
}

type fakeSource struct {
	listing *parsers.Result
	err     error
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Entries(ctx context.Context, playlistID string) (*parsers.Result, error) {
	return f.listing, f.err
}

func TestCompareSource(t *testing.T) {
	e := newEngine(t, Options{})
	e.ApplyMergePlan(&models.MergePlan{Items: []models.MergePlanItem{
		{Index: 0, Status: models.StatusNew, Record: th.Record(map[string]string{"title": "Strobe", "artist": "deadmau5"})},
	}}, accept)

	t.Run("classifies the fetched entries", func(t *testing.T) {
		src := &fakeSource{listing: &parsers.Result{
			Records: []*models.RawTrackRecord{
				th.Record(map[string]string{"title": "Strobe", "artist": "deadmau5", "externalRef": "spotify:track:1"}),
				th.Record(map[string]string{"title": "Unknown", "artist": "Nobody"}),
			},
			Warnings: []parsers.Warning{{Line: 3, Entry: "entry 3", Reason: "entry is not an object"}},
		}}

		cmp, err := e.CompareSource(context.Background(), src, "pl1", nil)
		require.NoError(t, err)
		assert.Equal(t, "fake", cmp.Source)
		assert.Equal(t, "pl1", cmp.Playlist)
		require.Len(t, cmp.Results, 2)
		assert.Equal(t, "spotify:track:1", cmp.Results[0].ExternalRef)
		assert.Equal(t, 1, cmp.Counts[models.ComparisonFound])
		assert.Equal(t, 1, cmp.Counts[models.ComparisonMissing])
		assert.Len(t, cmp.Warnings, 1)
	})

	t.Run("source errors are wrapped", func(t *testing.T) {
		_, err := e.CompareSource(context.Background(), &fakeSource{err: shared.ErrPlaylistNotFound}, "gone", nil)
		assert.ErrorIs(t, err, shared.ErrPlaylistNotFound)
		assert.Contains(t, err.Error(), "gone")
	})
}

func TestExportTracks(t *testing.T) {
	e := newEngine(t, Options{Workers: 3})
	e.ApplyMergePlan(e.Ingest([]*models.RawTrackRecord{
		th.Record(map[string]string{"title": "Deep House Anthem", "artist": "DJ Test", "location": "/music/anthem.mp3"}),
		th.Record(map[string]string{"title": "Strobe", "artist": "deadmau5"}),
	}), accept)

	t.Run("writes every format and a manifest", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "out")
		progress := make(chan ProgressUpdate, 10)

		res, err := e.ExportTracks(context.Background(), ExportOpts{OutputDir: dir, Name: "library"}, progress)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Tracks)
		assert.Equal(t, 5, res.Successful)
		assert.Zero(t, res.Failed)
		assert.Len(t, progress, 5)

		th.AssertFileExists(t, filepath.Join(dir, "library.csv"))
		th.AssertFileExists(t, filepath.Join(dir, "library.m3u8"))
		th.AssertFileExists(t, filepath.Join(dir, "library.md"))
		th.AssertFileExists(t, filepath.Join(dir, "library.txt"))
		th.AssertFileExists(t, filepath.Join(dir, "library.json"))

		manifest := th.MustReadFile(t, res.ManifestPath)
		assert.Contains(t, manifest, `"successful": 5`)
	})

	t.Run("filter narrows the export", func(t *testing.T) {
		dir := t.TempDir()
		res, err := e.ExportTracks(context.Background(), ExportOpts{OutputDir: dir, Formats: []string{"txt"}, Filter: "strobe"}, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Tracks)

		content := th.MustReadFile(t, filepath.Join(dir, "tracks.txt"))
		assert.True(t, strings.Contains(content, "deadmau5 - Strobe"))
		assert.False(t, strings.Contains(content, "Anthem"))
	})

	t.Run("unknown format fails before writing", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "never")
		_, err := e.ExportTracks(context.Background(), ExportOpts{OutputDir: dir, Formats: []string{"xlsx"}}, nil)
		assert.ErrorIs(t, err, shared.ErrUnsupportedFormat)
	})
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{ParseFiles, "parse_files"},
		{PlanMerge, "plan_merge"},
		{ApplyChunk, "apply_chunk"},
		{CompareEntries, "compare_entries"},
		{WriteExports, "write_exports"},
		{Phase(99), ""},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.phase.String())
		})
	}
}
