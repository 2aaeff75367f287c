package identity

import (
	"fmt"
	"testing"
	"time"

	"github.com/blue-creative/db-rb/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tc := []struct {
		in   string
		want string
	}{
		{in: "  Deep   House\tAnthem ", want: "deep house anthem"},
		{in: "Beyoncé", want: "beyonce"},
		{in: "Don't Stop (Original Mix)", want: "dont stop original mix"},
		{in: "AC/DC", want: "ac dc"},
		{in: "STRASSE", want: "strasse"},
		{in: "!!!", want: ""},
	}

	for _, tt := range tc {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"deep", "house", "anthem"}, Tokens("Deep House a anthem DEEP"))
	assert.Empty(t, Tokens("a b c"))
}

func TestFingerprint(t *testing.T) {
	r := NewResolver(DefaultConfig())

	t.Run("deterministic", func(t *testing.T) {
		s := Signals{Title: "Strobe", Artist: "deadmau5", Duration: 637}
		assert.Equal(t, r.Fingerprint(s), r.Fingerprint(s))
		assert.Equal(t, Fingerprint("strobe|deadmau5|319"), r.Fingerprint(s))
	})

	t.Run("invariant under case and whitespace", func(t *testing.T) {
		a := Signals{Title: "Deep House Anthem", Artist: "DJ Test", Duration: 300}
		b := Signals{Title: "  deep HOUSE   anthem", Artist: "dj  test ", Duration: 300}
		assert.Equal(t, r.Fingerprint(a), r.Fingerprint(b))
	})

	t.Run("duration bucketed to nearest two seconds", func(t *testing.T) {
		base := Signals{Title: "x", Artist: "y"}
		at := func(d int) Fingerprint {
			s := base
			s.Duration = d
			return r.Fingerprint(s)
		}
		assert.Equal(t, at(323), at(324))
		assert.NotEqual(t, at(323), at(330))
		assert.Equal(t, Fingerprint("x|y|"), at(0))
	})

	t.Run("title falls back to file name", func(t *testing.T) {
		s := Signals{FileName: `C:\Music\Strobe.mp3`}
		assert.Equal(t, Fingerprint("strobe||"), r.Fingerprint(s))
	})
}

func TestSimilarity(t *testing.T) {
	r := NewResolver(DefaultConfig())

	t.Run("exact fingerprint scores one", func(t *testing.T) {
		a := Signals{Title: "Strobe", Artist: "deadmau5", Duration: 637}
		assert.Equal(t, 1.0, r.Similarity(a, a))
	})

	t.Run("near duplicate clears threshold", func(t *testing.T) {
		a := Signals{Title: "Deep House Anthem", Artist: "DJ Test", Duration: 300}
		b := Signals{Title: "Deep House Anthems", Artist: "DJ Test", Duration: 420}
		score := r.Similarity(a, b)
		assert.Less(t, score, 1.0)
		assert.GreaterOrEqual(t, score, r.Threshold())
	})

	t.Run("different tracks stay below threshold", func(t *testing.T) {
		a := Signals{Title: "Strobe", Artist: "deadmau5"}
		b := Signals{Title: "Ghosts n Stuff", Artist: "deadmau5"}
		assert.Less(t, r.Similarity(a, b), r.Threshold())
	})

	t.Run("missing artist uses title alone", func(t *testing.T) {
		a := Signals{Title: "Strobe", Artist: "deadmau5", Duration: 600}
		b := Signals{Title: "Strobe", Duration: 637}
		assert.Equal(t, 1.0, r.Similarity(a, b))
	})

	t.Run("low confidence records are weighted down", func(t *testing.T) {
		a := Signals{Title: "Strobe", Artist: "deadmau5", Duration: 600}
		b := Signals{Title: "Strobe", Artist: "deadmau5", LowConfidence: true}
		assert.InDelta(t, 0.9, r.Similarity(a, b), 1e-9)
	})

	t.Run("empty titles never match", func(t *testing.T) {
		assert.Equal(t, 0.0, r.fallback(Signals{Artist: "x"}, Signals{Artist: "x", Duration: 10}))
	})
}

func track(seq int64, title, artist string, duration int, added time.Time) *models.Track {
	return &models.Track{
		ID:        fmt.Sprintf("t%d", seq),
		Title:     title,
		Artist:    artist,
		Duration:  duration,
		DateAdded: added,
		Sequence:  seq,
	}
}

func TestIndexMatch(t *testing.T) {
	r := NewResolver(DefaultConfig())
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

	t.Run("exact matches win over similar ones", func(t *testing.T) {
		ix := r.NewIndex([]*models.Track{
			track(1, "Deep House Anthems", "DJ Test", 300, day(1)),
			track(2, "Deep House Anthem", "DJ Test", 300, day(2)),
		})
		m := ix.Match(Signals{Title: "deep house anthem", Artist: "dj test", Duration: 300})
		require.Len(t, m, 1)
		assert.Equal(t, "t2", m[0].Track.ID)
		assert.True(t, m[0].Exact)
	})

	t.Run("similarity fallback over shared tokens", func(t *testing.T) {
		ix := r.NewIndex([]*models.Track{
			track(1, "Deep House Anthems", "DJ Test", 300, day(1)),
			track(2, "Strobe", "deadmau5", 637, day(1)),
		})
		best, ok := ix.Best(Signals{Title: "Deep House Anthem", Artist: "DJ Test", Duration: 420})
		require.True(t, ok)
		assert.Equal(t, "t1", best.Track.ID)
		assert.False(t, best.Exact)

		_, ok = ix.Best(Signals{Title: "Unknown", Artist: "Nobody"})
		assert.False(t, ok)
	})

	t.Run("ties prefer earliest dateAdded then sequence", func(t *testing.T) {
		ix := r.NewIndex([]*models.Track{
			track(1, "Strobe", "deadmau5", 637, day(5)),
			track(2, "Strobe", "deadmau5", 637, day(3)),
			track(3, "Strobe", "deadmau5", 637, day(3)),
		})
		m := ix.Match(Signals{Title: "Strobe", Artist: "deadmau5", Duration: 637})
		require.Len(t, m, 3)
		assert.Equal(t, []string{"t2", "t3", "t1"}, []string{m[0].Track.ID, m[1].Track.ID, m[2].Track.ID})
	})

	t.Run("common tokens are skipped when rarer ones exist", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MaxTokenPostings = 2
		r := NewResolver(cfg)

		var tracks []*models.Track
		for i := range 5 {
			tracks = append(tracks, track(int64(i+1), fmt.Sprintf("Anthem %c", 'a'+i), "Various", 0, day(1)))
		}
		tracks = append(tracks, track(10, "Stroboscope", "Various", 0, day(1)))
		ix := r.NewIndex(tracks)

		assert.Len(t, ix.candidates(Signals{Title: "Stroboscope", Artist: "Various"}), 1)
		assert.Len(t, ix.candidates(Signals{Title: "Anthem", Artist: "Various"}), 5)
		assert.Equal(t, 6, ix.Len())
	})
}
