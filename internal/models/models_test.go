package models

import (
	"errors"
	"testing"
	"time"

	"github.com/blue-creative/db-rb/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalField(t *testing.T) {
	tc := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "title", want: FieldTitle, ok: true},
		{in: "  MyTag ", want: FieldMyTag, ok: true},
		{in: "TIME", want: FieldDuration, ok: true},
		{in: "externalRef", want: FieldExternalRef, ok: true},
		{in: "bitrate", ok: false},
	}

	for _, tt := range tc {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := CanonicalField(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalValue(t *testing.T) {
	tc := []struct {
		name    string
		field   string
		raw     string
		want    string
		invalid bool
	}{
		{name: "trims text", field: FieldTitle, raw: "  Deep House Anthem ", want: "Deep House Anthem"},
		{name: "bpm integer", field: FieldBPM, raw: "128.00", want: "128"},
		{name: "bpm fraction", field: FieldBPM, raw: "127.5", want: "127.5"},
		{name: "bpm garbage", field: FieldBPM, raw: "fast", invalid: true},
		{name: "duration clock", field: FieldDuration, raw: "5:23", want: "323"},
		{name: "duration hours", field: FieldDuration, raw: "1:02:03", want: "3723"},
		{name: "duration seconds", field: FieldDuration, raw: "323.4", want: "323"},
		{name: "duration bad clock", field: FieldDuration, raw: "5:75", invalid: true},
		{name: "rating in range", field: FieldRating, raw: "4", want: "4"},
		{name: "rating zero is kept", field: FieldRating, raw: "0", want: "0"},
		{name: "rating too high", field: FieldRating, raw: "7", invalid: true},
		{name: "rating negative", field: FieldRating, raw: "-1", invalid: true},
		{name: "play count negative", field: FieldPlayCount, raw: "-3", invalid: true},
		{name: "date RFC3339", field: FieldDateAdded, raw: "2023-04-01T10:00:00Z", want: "2023-04-01"},
		{name: "date garbage", field: FieldDateAdded, raw: "yesterday", invalid: true},
		{name: "file type", field: FieldFileType, raw: ".mp3", want: "MP3"},
		{name: "empty", field: FieldYear, raw: " ", want: ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalValue(tt.field, tt.raw)
			if tt.invalid {
				assert.ErrorIs(t, err, shared.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTrack(t *testing.T) {
	t.Run("set and get round trip through canonical values", func(t *testing.T) {
		tr := &Track{}
		require.NoError(t, tr.Set("Title", "Deep House Anthem"))
		require.NoError(t, tr.Set("time", "6:01"))
		require.NoError(t, tr.Set(FieldRating, "4"))
		require.NoError(t, tr.Set(FieldBPM, "124.0"))

		assert.Equal(t, "Deep House Anthem", tr.Get(FieldTitle))
		assert.Equal(t, 361, tr.Duration)
		assert.Equal(t, "4", tr.Get(FieldRating))
		assert.Equal(t, "124", tr.Get(FieldBPM))
		assert.Equal(t, "", tr.Get(FieldYear))
	})

	t.Run("rejects out of range rating without mutating", func(t *testing.T) {
		tr := &Track{Rating: RatingOf(4)}
		err := tr.Set(FieldRating, "7")
		assert.ErrorIs(t, err, shared.ErrValidation)
		assert.Equal(t, 4, tr.Stars())
	})

	t.Run("rating zero is a value and empty clears it", func(t *testing.T) {
		tr := &Track{Rating: RatingOf(4)}
		require.NoError(t, tr.Set(FieldRating, "0"))
		require.NotNil(t, tr.Rating)
		assert.Equal(t, "0", tr.Get(FieldRating))

		require.NoError(t, tr.Set(FieldRating, ""))
		assert.Nil(t, tr.Rating)
		assert.Equal(t, "", tr.Get(FieldRating))
	})

	t.Run("clone does not share the rating", func(t *testing.T) {
		tr := &Track{Rating: RatingOf(4)}
		c := tr.Clone()
		require.NoError(t, c.Set(FieldRating, "1"))
		assert.Equal(t, 4, tr.Stars())
		assert.Equal(t, 1, c.Stars())
	})

	t.Run("rejects id and unknown fields", func(t *testing.T) {
		tr := &Track{ID: "a"}
		assert.ErrorIs(t, tr.Set(FieldID, "b"), shared.ErrValidation)
		assert.ErrorIs(t, tr.Set("bitrate", "320"), shared.ErrValidation)
		assert.Equal(t, "a", tr.ID)
	})

	t.Run("dateAdded is immutable once set", func(t *testing.T) {
		tr := &Track{}
		require.NoError(t, tr.Set(FieldDateAdded, "2020-01-02"))
		assert.NoError(t, tr.Set(FieldDateAdded, "2020-01-02"))
		assert.ErrorIs(t, tr.Set(FieldDateAdded, "2021-01-01"), shared.ErrValidation)
		assert.Equal(t, time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), tr.DateAdded)
	})

	t.Run("matches any displayed field case-insensitively", func(t *testing.T) {
		tr := &Track{Title: "Strobe", Artist: "deadmau5", Genre: "Progressive House", Rating: RatingOf(5)}
		assert.True(t, tr.Matches("STROBE"))
		assert.True(t, tr.Matches("progressive"))
		assert.True(t, tr.Matches(""))
		assert.False(t, tr.Matches("techno"))
	})
}

func TestNewTrackFromRecord(t *testing.T) {
	r := NewRecord("lib.txt", 3)
	r.Set("title", "Strobe")
	r.Set("ARTIST", "deadmau5")
	r.Set("time", "10:37")
	r.Set("externalRef", "spotify:track:1")

	tr, err := NewTrackFromRecord(r)
	require.NoError(t, err)
	assert.Equal(t, "Strobe", tr.Title)
	assert.Equal(t, 637, tr.Duration)
	assert.Empty(t, tr.ID)

	r.Set(FieldRating, "9")
	_, err = NewTrackFromRecord(r)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestRawTrackRecord(t *testing.T) {
	t.Run("normalize drops zero values and reports the field", func(t *testing.T) {
		r := NewRecord("a.json", 1)
		r.Set(FieldTitle, "x")
		r.Set(FieldPlayCount, "0")
		r.Set(FieldBPM, "120.00")
		require.NoError(t, r.Normalize())
		assert.False(t, r.Has(FieldPlayCount))
		assert.Equal(t, "120", r.Get(FieldBPM))

		r.Set(FieldRating, "0")
		require.NoError(t, r.Normalize())
		assert.Equal(t, "0", r.Get(FieldRating))

		r.Set(FieldRating, "6")
		err := r.Normalize()
		assert.ErrorIs(t, err, shared.ErrValidation)
		assert.Contains(t, err.Error(), "rating")
	})

	t.Run("label falls back to file name", func(t *testing.T) {
		r := NewRecord("set.m3u", 4)
		r.Set(FieldFileName, "track01.mp3")
		assert.Equal(t, "track01.mp3 (set.m3u:4)", r.Label())
		assert.True(t, !r.Empty())
	})
}

func TestMergePlan(t *testing.T) {
	plan := &MergePlan{}
	for i := range 5 {
		status := StatusNew
		if i%2 == 1 {
			status = StatusDuplicate
		}
		plan.Items = append(plan.Items, MergePlanItem{Index: i, Status: status})
	}

	counts := plan.Counts()
	assert.Equal(t, 3, counts[StatusNew])
	assert.Equal(t, 2, counts[StatusDuplicate])
	assert.Equal(t, 0, counts[StatusConflict])

	chunks := plan.Chunks(2)
	require.Len(t, chunks, 3)
	assert.Equal(t, 4, chunks[2].Items[0].Index)
	assert.Len(t, plan.Chunks(0), 1)
}

func TestResolutionPolicy(t *testing.T) {
	assert.Equal(t, ResolveManual, ResolutionPolicy{}.For(0))

	p := ResolutionPolicy{Default: ResolveKeepExisting, Overrides: map[int]Resolution{2: ResolveAcceptIncoming}}
	assert.Equal(t, ResolveKeepExisting, p.For(1))
	assert.Equal(t, ResolveAcceptIncoming, p.For(2))

	r, err := ParseResolution("accept-incoming")
	require.NoError(t, err)
	assert.Equal(t, ResolveAcceptIncoming, r)

	_, err = ParseResolution("merge")
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestConflictRequiresResolutionError(t *testing.T) {
	err := &ConflictRequiresResolutionError{
		Index: 1, TrackID: "t1", Record: "A - B",
		Diffs: []FieldDiff{{Field: FieldRating, Old: "4", New: "5"}},
	}
	assert.True(t, errors.Is(err, shared.ErrConflictRequiresResolution))
	assert.Contains(t, err.Error(), "rating")
}

func TestBindInserted(t *testing.T) {
	first := 0
	plan := &MergePlan{Items: []MergePlanItem{
		{Index: 0, Status: StatusNew},
		{Index: 1, Status: StatusConflict, DuplicateOf: &first},
		{Index: 2, Status: StatusDuplicate, DuplicateOf: &first},
		{Index: 3, Status: StatusConflict, MatchID: "t9"},
	}}

	t.Run("conflicts with an inserted item are bound to its track", func(t *testing.T) {
		bound := plan.BindInserted(map[int]string{0: "t1"})

		assert.Equal(t, "t1", bound.Items[1].MatchID)
		assert.Empty(t, bound.Items[2].MatchID)
		assert.Equal(t, "t9", bound.Items[3].MatchID)
		assert.Empty(t, plan.Items[1].MatchID, "the original plan is not modified")
	})

	t.Run("nothing to bind returns the plan itself", func(t *testing.T) {
		assert.Same(t, plan, plan.BindInserted(map[int]string{5: "t5"}))
		assert.Same(t, plan, plan.BindInserted(nil))
	})
}

func TestReindex(t *testing.T) {
	first := 0
	plan := &MergePlan{Items: []MergePlanItem{
		{Index: 0, Status: StatusNew},
		{Index: 1, Status: StatusDuplicate, DuplicateOf: &first},
	}}

	plan.Reindex([]int{2, 5})

	assert.Equal(t, 2, plan.Items[0].Index)
	assert.Equal(t, 5, plan.Items[1].Index)
	require.NotNil(t, plan.Items[1].DuplicateOf)
	assert.Equal(t, 2, *plan.Items[1].DuplicateOf)
	assert.Equal(t, 0, first)
}

func TestApplyResultMerge(t *testing.T) {
	a := &ApplyResult{Inserted: []string{"1"}, Unchanged: 1}
	a.Merge(&ApplyResult{Inserted: []string{"2"}, InsertedAt: map[int]string{4: "2"}, Updated: []string{"3"}, Kept: 2})
	a.Merge(nil)

	assert.Equal(t, []string{"1", "2"}, a.Inserted)
	assert.Equal(t, map[int]string{4: "2"}, a.InsertedAt)
	assert.Equal(t, 2, a.Kept)
	assert.Equal(t, "2 inserted, 1 updated, 1 unchanged, 2 kept, 0 pending, 0 rejected", a.Summary())
}
