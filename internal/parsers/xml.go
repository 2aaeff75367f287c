package parsers

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/blue-creative/db-rb/internal/models"
)

// rekordboxRatingStep is the 0-255 attribute value of one star.
const rekordboxRatingStep = 51

// parseXML streams the document token by token. Two shapes are read:
//
//   - Rekordbox library exports: DJ_PLAYLISTS/COLLECTION/TRACK with attributes
//   - generic documents: any <track> element whose attributes or child elements are named after fields
//
// TRACK elements below PLAYLISTS are playlist references and are ignored.
func parseXML(p *parser, data []byte) error {
	data, err := decodeBOM(data)
	if err != nil {
		return err
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charsetReader

	var stack []string
	rekordbox, root := false, false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			name := el.Name.Local
			if len(stack) == 0 {
				root = true
				rekordbox = name == "DJ_PLAYLISTS"
			}

			if !strings.EqualFold(name, "track") {
				stack = append(stack, name)
				continue
			}

			line, _ := dec.InputPos()
			switch {
			case inside(stack, "PLAYLISTS"):
				if err := dec.Skip(); err != nil {
					return err
				}
			case rekordbox:
				r := p.record(line)
				readRekordboxTrack(r, el.Attr)
				if err := dec.Skip(); err != nil {
					return err
				}
				p.emit(r)
			default:
				r := p.record(line)
				if err := readGenericTrack(dec, r, el); err != nil {
					return err
				}
				p.emit(r)
			}
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if !root {
		return errors.New("no root element")
	}
	if len(stack) != 0 {
		return errors.New("unexpected end of document")
	}
	return nil
}

func inside(stack []string, name string) bool {
	for _, s := range stack {
		if s == name {
			return true
		}
	}
	return false
}

func readRekordboxTrack(r *models.RawTrackRecord, attrs []xml.Attr) {
	for _, a := range attrs {
		v := strings.TrimSpace(a.Value)
		switch a.Name.Local {
		case "Rating":
			if n, err := strconv.Atoi(v); err == nil && n > models.MaxRating {
				v = strconv.Itoa((n + rekordboxRatingStep/2) / rekordboxRatingStep)
			}
			r.Set(models.FieldRating, v)
		case "Kind":
			r.Set(models.FieldFileType, strings.TrimSuffix(v, " File"))
		case "Location":
			loc := fileURIPath(v)
			r.Set(models.FieldLocation, loc)
			r.Set(models.FieldFileName, baseName(loc))
		default:
			if field, ms, ok := fieldFor(a.Name.Local); ok {
				setValue(r, field, ms, v)
			}
		}
	}
}

// readGenericTrack reads attributes and simple child elements of a <track>. It consumes
// tokens through the matching end element.
func readGenericTrack(dec *xml.Decoder, r *models.RawTrackRecord, start xml.StartElement) error {
	for _, a := range start.Attr {
		if field, ms, ok := fieldFor(a.Name.Local); ok {
			setValue(r, field, ms, a.Value)
		}
	}

	depth := 0
	var child string
	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				child = el.Name.Local
				text.Reset()
			}
		case xml.CharData:
			if depth == 1 {
				text.Write(el)
			}
		case xml.EndElement:
			if depth == 0 {
				return nil
			}
			if depth == 1 {
				if field, ms, ok := fieldFor(child); ok {
					setValue(r, field, ms, text.String())
				}
			}
			depth--
		}
	}
}

// fileURIPath turns "file://localhost/C:/Music/a%20b.mp3" into "C:/Music/a b.mp3".
// Plain paths are returned unchanged.
func fileURIPath(v string) string {
	if !strings.HasPrefix(strings.ToLower(v), "file:") {
		return v
	}
	u, err := url.Parse(v)
	if err != nil {
		return v
	}
	p := u.Path
	if len(p) > 2 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return p
}
