package models

import (
	"fmt"
	"maps"
	"strings"
)

// RawTrackRecord is the sparse output of a parser. Keys are canonical field names.
type RawTrackRecord struct {
	Fields        map[string]string `json:"fields"`
	Source        string            `json:"source,omitempty"`
	Line          int               `json:"line,omitempty"`
	LowConfidence bool              `json:"lowConfidence,omitempty"`
}

// NewRecord returns an empty record attributed to source and line.
func NewRecord(source string, line int) *RawTrackRecord {
	return &RawTrackRecord{Fields: map[string]string{}, Source: source, Line: line}
}

// Get returns the value of field or "".
func (r *RawTrackRecord) Get(field string) string {
	return r.Fields[field]
}

// Has reports whether field is populated.
func (r *RawTrackRecord) Has(field string) bool {
	return strings.TrimSpace(r.Fields[field]) != ""
}

// Set stores a trimmed value under the canonical name of field. Unknown fields and empty values are ignored.
func (r *RawTrackRecord) Set(field, value string) {
	f, ok := CanonicalField(field)
	if !ok || f == FieldID {
		return
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if r.Fields == nil {
		r.Fields = map[string]string{}
	}
	r.Fields[f] = value
}

// Normalize canonicalizes every value in place and drops values that canonicalize to "".
// The first invalid value aborts with an error naming the field.
func (r *RawTrackRecord) Normalize() error {
	for f, v := range r.Fields {
		if f == FieldExternalRef {
			continue
		}
		c, err := CanonicalValue(f, v)
		if err != nil {
			return fmt.Errorf("field %s: %w", f, err)
		}
		if c == "" {
			delete(r.Fields, f)
			continue
		}
		r.Fields[f] = c
	}
	return nil
}

// Empty reports whether the record carries nothing that identifies a track.
func (r *RawTrackRecord) Empty() bool {
	return !r.Has(FieldTitle) && !r.Has(FieldArtist) && !r.Has(FieldFileName) && !r.Has(FieldExternalRef)
}

// Clone returns a deep copy.
func (r *RawTrackRecord) Clone() *RawTrackRecord {
	c := *r
	c.Fields = maps.Clone(r.Fields)
	return &c
}

// Name is "Artist - Title", falling back to the file name.
func (r *RawTrackRecord) Name() string {
	l := label(r.Get(FieldArtist), r.Get(FieldTitle))
	if l == "(untitled)" && r.Has(FieldFileName) {
		l = r.Get(FieldFileName)
	}
	return l
}

// Label is Name plus the source position, used in rejections.
func (r *RawTrackRecord) Label() string {
	l := r.Name()
	if r.Source != "" && r.Line > 0 {
		return fmt.Sprintf("%s (%s:%d)", l, r.Source, r.Line)
	}
	return l
}
