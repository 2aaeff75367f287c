// package formatter exports catalog tracks to various formats (CSV, M3U, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blue-creative/db-rb/internal/models"
	"github.com/blue-creative/db-rb/internal/shared"
)

// Export formats
const (
	FormatCSV      = "csv"
	FormatM3U      = "m3u"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
	FormatJSON     = "json"
)

// Formats lists every supported export format.
var Formats = []string{FormatCSV, FormatM3U, FormatMarkdown, FormatText, FormatJSON}

var extensions = map[string]string{
	FormatCSV:      ".csv",
	FormatM3U:      ".m3u8",
	FormatMarkdown: ".md",
	FormatText:     ".txt",
	FormatJSON:     ".json",
}

// Extension returns the file extension written for format, including the dot.
func Extension(format string) (string, error) {
	ext, ok := extensions[strings.ToLower(format)]
	if !ok {
		return "", fmt.Errorf("%w: %q", shared.ErrUnsupportedFormat, format)
	}
	return ext, nil
}

// Export renders tracks in format.
func Export(tracks []*models.Track, format, title string) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return ExportToCSV(tracks)
	case FormatM3U:
		return ExportToM3U(tracks)
	case FormatMarkdown:
		return ExportToMarkdown(tracks, title)
	case FormatText:
		return ExportToText(tracks, title)
	case FormatJSON:
		return shared.MarshalJSON(tracks, true)
	default:
		return nil, fmt.Errorf("%w: %q", shared.ErrUnsupportedFormat, format)
	}
}

// ExportToCSV converts tracks to CSV with an id column followed by every track field.
//
// The header uses canonical field names, so the output can be ingested again as a delimited document.
func ExportToCSV(tracks []*models.Track) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := append([]string{models.FieldID}, models.TrackFields...)
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range tracks {
		record := make([]string, len(headers))
		for i, field := range headers {
			record[i] = track.Get(field)
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToM3U converts tracks to an extended M3U playlist.
// Tracks without a location fall back to their file name, and are skipped when they have neither.
func ExportToM3U(tracks []*models.Track) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("#EXTM3U\n")
	for _, track := range tracks {
		path := track.Location
		if path == "" {
			path = track.FileName
		}
		if path == "" {
			continue
		}

		duration := track.Duration
		if duration == 0 {
			duration = -1
		}
		fmt.Fprintf(&buf, "#EXTINF:%d,%s\n%s\n", duration, track.Label(), path)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts tracks to a Markdown list with key, BPM and duration
func ExportToMarkdown(tracks []*models.Track, title string) ([]byte, error) {
	var buf bytes.Buffer

	if title == "" {
		title = "Tracks"
	}
	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(tracks))

	buf.WriteString("| # | Artist | Title | Key | BPM | Time | Rating |\n")
	buf.WriteString("|---|---|---|---|---|---|---|\n")
	for i, track := range tracks {
		fmt.Fprintf(&buf, "| %d | %s | %s | %s | %s | %s | %s |\n",
			i+1,
			escapeCell(track.Artist),
			escapeCell(track.Title),
			escapeCell(track.Key),
			track.Get(models.FieldBPM),
			shared.FormatDuration(track.Duration),
			strings.Repeat("★", track.Stars()),
		)
	}

	return buf.Bytes(), nil
}

// ExportToText converts tracks to plain text format
func ExportToText(tracks []*models.Track, title string) ([]byte, error) {
	var buf bytes.Buffer

	if title != "" {
		fmt.Fprintf(&buf, "Library: %s\n", title)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(tracks))

	for i, track := range tracks {
		fmt.Fprintf(&buf, "%d. %s", i+1, track.Label())
		if track.Duration > 0 {
			fmt.Fprintf(&buf, " [%s]", shared.FormatDuration(track.Duration))
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// WriteExport renders tracks in format and writes them to path.
//
// Defaults to tracks{ext} in the working directory. Parent directories are created.
func WriteExport(tracks []*models.Track, format, path, title string) (string, error) {
	ext, err := Extension(format)
	if err != nil {
		return "", err
	}
	if path == "" {
		path = "tracks" + ext
	}

	data, err := Export(tracks, format, title)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", format, err)
	}

	return path, nil
}

// WriteManifest writes v as indented JSON to path.
func WriteManifest(v any, path string) error {
	data, err := shared.MarshalJSON(v, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
