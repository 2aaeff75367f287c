package parsers

import (
	"bufio"
	"bytes"
	"path"
	"strings"

	"github.com/blue-creative/db-rb/internal/models"
)

type extinf struct {
	line     int
	duration string
	artist   string
	title    string
}

// parseM3U reads plain and extended playlists. Title and artist come from the #EXTINF
// line when present. Bare entries fall back to the file name, split on its first "-",
// and are marked low confidence.
func parseM3U(p *parser, data []byte) error {
	data, err := decodeText(data)
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var pending *extinf
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#EXTINF:"):
			if pending != nil {
				p.emit(pending.record(p, ""))
			}
			pending = parseExtinf(lineNo, strings.TrimPrefix(line, "#EXTINF:"))
		case strings.HasPrefix(line, "#EXTART:") && pending != nil:
			pending.artist = strings.TrimSpace(strings.TrimPrefix(line, "#EXTART:"))
		case strings.HasPrefix(line, "#"):
			continue
		case pending != nil:
			p.emit(pending.record(p, line))
			pending = nil
		default:
			p.emit(bareEntry(p, lineNo, line))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if pending != nil {
		p.emit(pending.record(p, ""))
	}
	return nil
}

// parseExtinf splits "<secs>[ key="value" ...],Artist - Title".
func parseExtinf(line int, s string) *extinf {
	info := &extinf{line: line}
	head, display, found := cutOutsideQuotes(s, ',')
	if !found {
		head, display = s, ""
	}
	if fields := strings.Fields(head); len(fields) > 0 {
		info.duration = fields[0]
		if strings.HasPrefix(info.duration, "-") {
			info.duration = ""
		}
	}
	info.artist, info.title = split(display, " - ", " – ")
	return info
}

func (e *extinf) record(p *parser, entry string) *models.RawTrackRecord {
	r := p.record(e.line)
	r.Set(models.FieldTitle, e.title)
	r.Set(models.FieldArtist, e.artist)
	r.Set(models.FieldDuration, e.duration)
	setEntry(r, entry)
	if !r.Has(models.FieldTitle) && r.Has(models.FieldFileName) {
		artist, title := splitArtistTitle(stripExt(r.Get(models.FieldFileName)))
		r.Set(models.FieldTitle, title)
		if !r.Has(models.FieldArtist) {
			r.Set(models.FieldArtist, artist)
		}
		r.LowConfidence = true
	}
	return r
}

func bareEntry(p *parser, line int, entry string) *models.RawTrackRecord {
	r := p.record(line)
	setEntry(r, entry)
	GuessFromFileName(r, r.Get(models.FieldFileName))
	return r
}

// GuessFromFileName fills title and artist from a file name such as "Artist - Title.mp3"
// and marks r low confidence.
func GuessFromFileName(r *models.RawTrackRecord, name string) {
	artist, title := splitArtistTitle(stripExt(name))
	r.Set(models.FieldTitle, title)
	r.Set(models.FieldArtist, artist)
	r.LowConfidence = true
}

// setEntry records the path or URL of a playlist entry.
func setEntry(r *models.RawTrackRecord, entry string) {
	if entry == "" {
		return
	}
	lower := strings.ToLower(entry)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"), strings.HasPrefix(lower, "spotify:"):
		r.Set(models.FieldExternalRef, entry)
		if !strings.HasPrefix(lower, "spotify:") {
			r.Set(models.FieldFileName, path.Base(strings.SplitN(entry, "?", 2)[0]))
		}
	default:
		loc := fileURIPath(entry)
		r.Set(models.FieldLocation, loc)
		r.Set(models.FieldFileName, baseName(loc))
	}
}

// splitArtistTitle is the file name heuristic: "Artist - Title" split on the first
// separator, falling back to a bare "-".
func splitArtistTitle(s string) (artist, title string) {
	return split(s, " - ", " – ", "-")
}

// split cuts s on the first separator that leaves both sides non-empty. Without one
// the whole string is the title.
func split(s string, seps ...string) (artist, title string) {
	s = strings.TrimSpace(s)
	for _, sep := range seps {
		if a, t, ok := strings.Cut(s, sep); ok && strings.TrimSpace(a) != "" && strings.TrimSpace(t) != "" {
			return strings.TrimSpace(a), strings.TrimSpace(t)
		}
	}
	return "", s
}

func stripExt(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}

func cutOutsideQuotes(s string, sep byte) (before, after string, found bool) {
	quoted := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			quoted = !quoted
		case sep:
			if !quoted {
				return s[:i], s[i+1:], true
			}
		}
	}
	return s, "", false
}
