package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/blue-creative/db-rb/internal/shared"
)

// Track field names.
const (
	FieldID        = "id"
	FieldFileType  = "fileType"
	FieldKey       = "key"
	FieldBPM       = "bpm"
	FieldDuration  = "duration"
	FieldPlayCount = "playCount"
	FieldTitle     = "title"
	FieldArtist    = "artist"
	FieldGenre     = "genre"
	FieldRemixer   = "remixer"
	FieldRating    = "rating"
	FieldMixName   = "mixName"
	FieldMyTag     = "myTag"
	FieldComments  = "comments"
	FieldComposer  = "composer"
	FieldLyricist  = "lyricist"
	FieldYear      = "year"
	FieldDateAdded = "dateAdded"
	FieldFileName  = "fileName"
	FieldLocation  = "location"
)

// FieldExternalRef carries a streaming-service URI or URL on a record. It is not a Track field.
const FieldExternalRef = "externalRef"

// MaxRating is the highest allowed star rating.
const MaxRating = 5

// DateLayout is the canonical textual form of dateAdded.
const DateLayout = "2006-01-02"

// TrackFields lists the editable Track fields in display order.
var TrackFields = []string{
	FieldFileType, FieldKey, FieldBPM, FieldDuration, FieldPlayCount,
	FieldTitle, FieldArtist, FieldGenre, FieldRemixer, FieldRating,
	FieldMixName, FieldMyTag, FieldComments, FieldComposer, FieldLyricist,
	FieldYear, FieldDateAdded, FieldFileName, FieldLocation,
}

var fieldLookup = func() map[string]string {
	m := map[string]string{
		"time":        FieldDuration,
		"externalref": FieldExternalRef,
		"id":          FieldID,
	}
	for _, f := range TrackFields {
		m[strings.ToLower(f)] = f
	}
	return m
}()

// CanonicalField resolves a field name case-insensitively, accepting "time" for duration.
func CanonicalField(name string) (string, bool) {
	f, ok := fieldLookup[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// IsTrackField reports whether field is an editable Track field.
func IsTrackField(field string) bool {
	f, ok := CanonicalField(field)
	return ok && f != FieldID && f != FieldExternalRef
}

// CanonicalValue validates raw for field and returns its canonical textual form.
//
// Empty and zero values canonicalize to "", except a rating of 0 which is kept. Errors wrap
// [shared.ErrValidation].
func CanonicalValue(field, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	switch field {
	case FieldBPM:
		v, err := parseBPM(raw)
		if err != nil {
			return "", err
		}
		return formatFloat(v), nil
	case FieldDuration:
		v, err := ParseDuration(raw)
		if err != nil {
			return "", err
		}
		return formatInt(v), nil
	case FieldPlayCount:
		v, err := parseCount(field, raw)
		if err != nil {
			return "", err
		}
		return formatInt(v), nil
	case FieldYear:
		v, err := parseYear(raw)
		if err != nil {
			return "", err
		}
		return formatInt(v), nil
	case FieldRating:
		v, err := ParseRating(raw)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(v), nil
	case FieldDateAdded:
		t, err := ParseDate(raw)
		if err != nil {
			return "", err
		}
		return t.Format(DateLayout), nil
	case FieldFileType:
		return strings.ToUpper(strings.TrimPrefix(raw, ".")), nil
	default:
		return raw, nil
	}
}

// ParseRating parses a 0-5 star rating.
func ParseRating(raw string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: rating %q is not a number", shared.ErrValidation, raw)
	}
	if v < 0 || v > MaxRating {
		return 0, fmt.Errorf("%w: rating %d outside 0-%d", shared.ErrValidation, v, MaxRating)
	}
	return v, nil
}

// ParseDuration parses seconds ("323", "323.4") or clock notation ("5:23", "1:02:03").
func ParseDuration(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}

	if strings.Contains(raw, ":") {
		parts := strings.Split(raw, ":")
		if len(parts) > 3 {
			return 0, fmt.Errorf("%w: duration %q", shared.ErrValidation, raw)
		}
		total := 0
		for i, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil || n < 0 || (i > 0 && n > 59) {
				return 0, fmt.Errorf("%w: duration %q", shared.ErrValidation, raw)
			}
			total = total*60 + n
		}
		return total, nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("%w: duration %q", shared.ErrValidation, raw)
	}
	return int(math.Round(v)), nil
}

// ParseDate accepts the date layouts seen in library exports.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{DateLayout, time.RFC3339, "2006-01-02 15:04:05", "2006/01/02", "01/02/2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: date %q", shared.ErrValidation, raw)
}

func parseBPM(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v < 0 || v > 999 || math.IsNaN(v) {
		return 0, fmt.Errorf("%w: bpm %q", shared.ErrValidation, raw)
	}
	return v, nil
}

func parseCount(field, raw string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s %q", shared.ErrValidation, field, raw)
	}
	return v, nil
}

func parseYear(raw string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v < 0 || v > 9999 {
		return 0, fmt.Errorf("%w: year %q", shared.ErrValidation, raw)
	}
	return v, nil
}

func formatInt(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

func formatFloat(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
