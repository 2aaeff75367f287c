package parsers

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/blue-creative/db-rb/internal/models"
	"github.com/blue-creative/db-rb/internal/shared"
)

// Format is a recognized document format.
type Format string

const (
	FormatXML  Format = "xml"
	FormatText Format = "txt" // delimited text
	FormatJSON Format = "json"
	FormatM3U  Format = "m3u"
	FormatM3U8 Format = "m3u8"
)

// Formats lists the recognized formats.
var Formats = []Format{FormatXML, FormatText, FormatJSON, FormatM3U, FormatM3U8}

// Warning describes an entry that was skipped. Line is the 1-based source line, or the
// entry number for formats without meaningful lines.
type Warning struct {
	Source string `json:"source,omitempty"`
	Line   int    `json:"line"`
	Entry  string `json:"entry"`
	Reason string `json:"reason"`
}

func (w Warning) String() string {
	if w.Source != "" {
		return fmt.Sprintf("%s:%d: %s: %s", w.Source, w.Line, w.Entry, w.Reason)
	}
	return fmt.Sprintf("line %d: %s: %s", w.Line, w.Entry, w.Reason)
}

// Result is the output of parsing one document.
type Result struct {
	Format   Format                   `json:"format"`
	Source   string                   `json:"source"`
	Records  []*models.RawTrackRecord `json:"records"`
	Warnings []Warning                `json:"warnings"`
}

type parseFunc func(p *parser, data []byte) error

var registry = map[Format]parseFunc{
	FormatXML:  parseXML,
	FormatText: parseDelimited,
	FormatJSON: parseJSON,
	FormatM3U:  parseM3U,
	FormatM3U8: parseM3U,
}

// ParseFormat resolves a declared format or file extension ("xml", ".M3U8").
func ParseFormat(declared string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(declared), ".")))
	if _, ok := registry[f]; !ok {
		return "", fmt.Errorf("%w: %q (supported: xml, txt, json, m3u, m3u8)", shared.ErrUnsupportedFormat, declared)
	}
	return f, nil
}

// DetectFormat derives the format from a file name's extension.
func DetectFormat(filename string) (Format, error) {
	ext := filepath.Ext(filename)
	if ext == "" {
		return "", fmt.Errorf("%w: %q has no extension", shared.ErrUnsupportedFormat, filename)
	}
	return ParseFormat(ext)
}

// ParseDocument parses data using the format implied by filename.
func ParseDocument(data []byte, filename string) (*Result, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}
	return Parse(data, format, filepath.Base(filename))
}

// Parse converts a document into raw track records.
//
// It fails with [shared.ErrUnsupportedFormat] for unknown formats and with
// [shared.ErrMalformedDocument] when the document cannot be structurally parsed.
// Individual bad entries are skipped and reported in Result.Warnings.
func Parse(data []byte, format Format, source string) (*Result, error) {
	fn, ok := registry[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", shared.ErrUnsupportedFormat, format)
	}

	p := &parser{result: &Result{Format: format, Source: source, Records: []*models.RawTrackRecord{}, Warnings: []Warning{}}}
	if err := fn(p, data); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrMalformedDocument, source, err)
	}
	return p.result, nil
}

// parser accumulates records and warnings for one document.
type parser struct {
	result *Result
}

func (p *parser) record(line int) *models.RawTrackRecord {
	return models.NewRecord(p.result.Source, line)
}

func (p *parser) warn(line int, entry, reason string) {
	p.result.Warnings = append(p.result.Warnings, Warning{Source: p.result.Source, Line: line, Entry: entry, Reason: reason})
}

// emit validates r and either keeps it or records a warning.
func (p *parser) emit(r *models.RawTrackRecord) {
	if r.Has(models.FieldLocation) && !r.Has(models.FieldFileName) {
		r.Set(models.FieldFileName, baseName(r.Get(models.FieldLocation)))
	}
	if err := r.Normalize(); err != nil {
		p.warn(r.Line, r.Name(), err.Error())
		return
	}
	if r.Empty() {
		p.warn(r.Line, r.Name(), "entry has no title, artist, file name or reference")
		return
	}
	p.result.Records = append(p.result.Records, r)
}

var aliases = map[string]string{
	"title": models.FieldTitle, "name": models.FieldTitle, "track": models.FieldTitle,
	"tracktitle": models.FieldTitle, "trackname": models.FieldTitle, "song": models.FieldTitle,
	"artist": models.FieldArtist, "artists": models.FieldArtist, "artistname": models.FieldArtist,
	"performer": models.FieldArtist,
	"genre":     models.FieldGenre,
	"bpm":       models.FieldBPM, "tempo": models.FieldBPM, "averagebpm": models.FieldBPM,
	"key": models.FieldKey, "musicalkey": models.FieldKey, "tonality": models.FieldKey, "initialkey": models.FieldKey,
	"duration": models.FieldDuration, "time": models.FieldDuration, "length": models.FieldDuration,
	"totaltime": models.FieldDuration, "seconds": models.FieldDuration,
	"playcount": models.FieldPlayCount, "plays": models.FieldPlayCount,
	"rating": models.FieldRating, "stars": models.FieldRating,
	"remixer": models.FieldRemixer,
	"mixname": models.FieldMixName, "mix": models.FieldMixName, "version": models.FieldMixName,
	"mytag": models.FieldMyTag, "tags": models.FieldMyTag,
	"comments": models.FieldComments, "comment": models.FieldComments,
	"composer": models.FieldComposer,
	"lyricist": models.FieldLyricist,
	"year":     models.FieldYear, "releaseyear": models.FieldYear,
	"dateadded": models.FieldDateAdded, "added": models.FieldDateAdded, "addedat": models.FieldDateAdded,
	"filename": models.FieldFileName, "file": models.FieldFileName,
	"location": models.FieldLocation, "path": models.FieldLocation, "filepath": models.FieldLocation,
	"filetype": models.FieldFileType, "kind": models.FieldFileType, "format": models.FieldFileType,
	"externalref": models.FieldExternalRef, "uri": models.FieldExternalRef, "url": models.FieldExternalRef,
	"spotifyuri": models.FieldExternalRef, "spotifytrackuri": models.FieldExternalRef, "link": models.FieldExternalRef,
}

// aliasKey folds a header or key so "Track Title", "track_title" and "trackTitle" compare equal.
func aliasKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if r == ' ' || r == '_' || r == '-' || r == '.' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// fieldFor maps a header or key to a field. "duration_ms" style keys report ms=true.
func fieldFor(name string) (field string, ms bool, ok bool) {
	k := aliasKey(name)
	if k == "durationms" || k == "lengthms" {
		return models.FieldDuration, true, true
	}
	field, ok = aliases[k]
	return field, false, ok
}

// setValue stores a value, converting star ratings and millisecond durations.
func setValue(r *models.RawTrackRecord, field string, ms bool, value string) {
	value = strings.TrimSpace(value)
	switch {
	case field == models.FieldRating:
		value = starRating(value)
	case ms && value != "":
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			value = strconv.Itoa(int(v/1000 + 0.5))
		}
	}
	r.Set(field, value)
}

// starRating converts "***", "★★★☆☆" to a count. Other values are returned unchanged.
func starRating(v string) string {
	if v == "" {
		return v
	}
	n := 0
	for _, r := range v {
		switch r {
		case '*', '★':
			n++
		case '☆', ' ':
		default:
			return v
		}
	}
	return strconv.Itoa(n)
}

func baseName(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}
