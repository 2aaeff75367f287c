package identity

import (
	"slices"
	"strings"

	"github.com/blue-creative/db-rb/internal/models"
)

// Candidate is a catalog track matching a query.
type Candidate struct {
	Track *models.Track
	Score float64
	Exact bool
}

type entry struct {
	track   *models.Track
	signals Signals
}

// Index is a read-only fingerprint and token index over a catalog snapshot.
// Build it once per batch. Match is safe for concurrent use.
type Index struct {
	resolver      *Resolver
	entries       []entry
	byFingerprint map[Fingerprint][]int
	byToken       map[string][]int
}

// NewIndex indexes tracks. The slice is not retained but the tracks are, so callers pass a snapshot.
func (r *Resolver) NewIndex(tracks []*models.Track) *Index {
	ix := &Index{
		resolver:      r,
		entries:       make([]entry, 0, len(tracks)),
		byFingerprint: make(map[Fingerprint][]int, len(tracks)),
		byToken:       make(map[string][]int),
	}
	for _, t := range tracks {
		ix.add(t)
	}
	return ix
}

func (ix *Index) add(t *models.Track) {
	i := len(ix.entries)
	s := SignalsOfTrack(t)
	ix.entries = append(ix.entries, entry{track: t, signals: s})

	fp := ix.resolver.Fingerprint(s)
	ix.byFingerprint[fp] = append(ix.byFingerprint[fp], i)
	for _, tok := range signalTokens(s) {
		ix.byToken[tok] = append(ix.byToken[tok], i)
	}
}

// Len returns the number of indexed tracks.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Match returns the tracks matching s. Exact fingerprint matches win outright. Otherwise
// tracks sharing a normalized token with s are scored and those at or above the threshold
// returned. Results are ordered by score desc, dateAdded asc, then catalog sequence.
func (ix *Index) Match(s Signals) []Candidate {
	if exact := ix.byFingerprint[ix.resolver.Fingerprint(s)]; len(exact) > 0 {
		out := make([]Candidate, len(exact))
		for n, i := range exact {
			out[n] = Candidate{Track: ix.entries[i].track, Score: 1.0, Exact: true}
		}
		sortCandidates(out)
		return out
	}

	var out []Candidate
	threshold := ix.resolver.Threshold()
	for _, i := range ix.candidates(s) {
		score := ix.resolver.fallback(s, ix.entries[i].signals)
		if score >= threshold {
			out = append(out, Candidate{Track: ix.entries[i].track, Score: score})
		}
	}
	sortCandidates(out)
	return out
}

// Best returns the top ranked match.
func (ix *Index) Best(s Signals) (Candidate, bool) {
	m := ix.Match(s)
	if len(m) == 0 {
		return Candidate{}, false
	}
	return m[0], true
}

// candidates collects entries sharing a token with s. Postings longer than MaxTokenPostings
// are skipped as too common, unless every token of s is that common, in which case the
// shortest posting list is used.
func (ix *Index) candidates(s Signals) []int {
	limit := ix.resolver.cfg.MaxTokenPostings
	seen := map[int]struct{}{}
	var out []int
	var shortest []int

	for _, tok := range signalTokens(s) {
		postings := ix.byToken[tok]
		if len(postings) == 0 {
			continue
		}
		if len(postings) > limit {
			if shortest == nil || len(postings) < len(shortest) {
				shortest = postings
			}
			continue
		}
		for _, i := range postings {
			if _, ok := seen[i]; !ok {
				seen[i] = struct{}{}
				out = append(out, i)
			}
		}
	}
	if len(out) == 0 && shortest != nil {
		out = append(out, shortest...)
	}
	return out
}

func signalTokens(s Signals) []string {
	title := s.Title
	if strings.TrimSpace(title) == "" {
		title = titleFromFileName(s.FileName)
	}
	return Tokens(title + " " + s.Artist)
}

func sortCandidates(c []Candidate) {
	slices.SortStableFunc(c, func(a, b Candidate) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		if cmp := a.Track.DateAdded.Compare(b.Track.DateAdded); cmp != 0 {
			return cmp
		}
		switch {
		case a.Track.Sequence < b.Track.Sequence:
			return -1
		case a.Track.Sequence > b.Track.Sequence:
			return 1
		}
		return 0
	})
}
