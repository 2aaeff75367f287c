package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/blue-creative/db-rb/internal/shared"
)

// Track is a canonical catalog entry.
//
// The zero value of a numeric field means "absent", except Rating where nil is absent and 0 means
// unrated. Sequence is the insertion order assigned by the
// catalog and only used for deterministic tie-breaks.
type Track struct {
	ID        string    `json:"id"`
	FileType  string    `json:"fileType,omitempty"`
	Key       string    `json:"key,omitempty"`
	BPM       float64   `json:"bpm,omitempty"`
	Duration  int       `json:"duration,omitempty"`
	PlayCount int       `json:"playCount,omitempty"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	Genre     string    `json:"genre,omitempty"`
	Remixer   string    `json:"remixer,omitempty"`
	Rating    *int      `json:"rating,omitempty"`
	MixName   string    `json:"mixName,omitempty"`
	MyTag     string    `json:"myTag,omitempty"`
	Comments  string    `json:"comments,omitempty"`
	Composer  string    `json:"composer,omitempty"`
	Lyricist  string    `json:"lyricist,omitempty"`
	Year      int       `json:"year,omitempty"`
	DateAdded time.Time `json:"dateAdded"`
	FileName  string    `json:"fileName,omitempty"`
	Location  string    `json:"location,omitempty"`
	Sequence  int64     `json:"-"`
}

// Get returns the canonical textual value of field, "" when absent or unknown.
func (t *Track) Get(field string) string {
	switch field {
	case FieldID:
		return t.ID
	case FieldFileType:
		return t.FileType
	case FieldKey:
		return t.Key
	case FieldBPM:
		return formatFloat(t.BPM)
	case FieldDuration:
		return formatInt(t.Duration)
	case FieldPlayCount:
		return formatInt(t.PlayCount)
	case FieldTitle:
		return t.Title
	case FieldArtist:
		return t.Artist
	case FieldGenre:
		return t.Genre
	case FieldRemixer:
		return t.Remixer
	case FieldRating:
		if t.Rating == nil {
			return ""
		}
		return strconv.Itoa(*t.Rating)
	case FieldMixName:
		return t.MixName
	case FieldMyTag:
		return t.MyTag
	case FieldComments:
		return t.Comments
	case FieldComposer:
		return t.Composer
	case FieldLyricist:
		return t.Lyricist
	case FieldYear:
		return formatInt(t.Year)
	case FieldDateAdded:
		if t.DateAdded.IsZero() {
			return ""
		}
		return t.DateAdded.Format(DateLayout)
	case FieldFileName:
		return t.FileName
	case FieldLocation:
		return t.Location
	}
	return ""
}

// Set validates and assigns a value. The id is never settable and dateAdded cannot change once set.
func (t *Track) Set(field, value string) error {
	canonical, ok := CanonicalField(field)
	if !ok || canonical == FieldExternalRef {
		return fmt.Errorf("%w: unknown field %q", shared.ErrValidation, field)
	}
	if canonical == FieldID {
		return fmt.Errorf("%w: id is assigned by the catalog", shared.ErrValidation)
	}

	v, err := CanonicalValue(canonical, value)
	if err != nil {
		return err
	}

	switch canonical {
	case FieldFileType:
		t.FileType = v
	case FieldKey:
		t.Key = v
	case FieldBPM:
		t.BPM, _ = strconv.ParseFloat(orZero(v), 64)
	case FieldDuration:
		t.Duration, _ = strconv.Atoi(orZero(v))
	case FieldPlayCount:
		t.PlayCount, _ = strconv.Atoi(orZero(v))
	case FieldTitle:
		t.Title = v
	case FieldArtist:
		t.Artist = v
	case FieldGenre:
		t.Genre = v
	case FieldRemixer:
		t.Remixer = v
	case FieldRating:
		t.Rating = nil
		if v != "" {
			n, _ := strconv.Atoi(v)
			t.Rating = &n
		}
	case FieldMixName:
		t.MixName = v
	case FieldMyTag:
		t.MyTag = v
	case FieldComments:
		t.Comments = v
	case FieldComposer:
		t.Composer = v
	case FieldLyricist:
		t.Lyricist = v
	case FieldYear:
		t.Year, _ = strconv.Atoi(orZero(v))
	case FieldDateAdded:
		if !t.DateAdded.IsZero() {
			if v == t.Get(FieldDateAdded) {
				return nil
			}
			return fmt.Errorf("%w: dateAdded is immutable once set", shared.ErrValidation)
		}
		if v != "" {
			t.DateAdded, _ = time.Parse(DateLayout, v)
		}
	case FieldFileName:
		t.FileName = v
	case FieldLocation:
		t.Location = v
	}
	return nil
}

// Matches reports whether term occurs, case-insensitively, in any displayed field.
// An empty term matches every track.
func (t *Track) Matches(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, f := range TrackFields {
		if strings.Contains(strings.ToLower(t.Get(f)), term) {
			return true
		}
	}
	return false
}

// Clone returns a copy safe to mutate.
func (t *Track) Clone() *Track {
	c := *t
	if t.Rating != nil {
		c.Rating = RatingOf(*t.Rating)
	}
	return &c
}

// Stars is the rating for display, 0 when unset.
func (t *Track) Stars() int {
	if t.Rating == nil {
		return 0
	}
	return *t.Rating
}

// RatingOf returns a rating value for [Track.Rating].
func RatingOf(n int) *int {
	return &n
}

// Label identifies the track in messages.
func (t *Track) Label() string {
	return label(t.Artist, t.Title)
}

// NewTrackFromRecord builds a track from every Track field present on the record.
// The id, sequence and default dateAdded are left to the catalog.
func NewTrackFromRecord(r *RawTrackRecord) (*Track, error) {
	t := &Track{}
	for _, f := range TrackFields {
		v, ok := r.Fields[f]
		if !ok {
			continue
		}
		if err := t.Set(f, v); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func orZero(v string) string {
	if v == "" {
		return "0"
	}
	return v
}

func label(artist, title string) string {
	switch {
	case artist != "" && title != "":
		return artist + " - " + title
	case title != "":
		return title
	case artist != "":
		return artist
	}
	return "(untitled)"
}
