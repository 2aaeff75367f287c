// package scanner reads embedded tag metadata from audio files into raw track records
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/blue-creative/db-rb/internal/models"
	"github.com/blue-creative/db-rb/internal/parsers"
	"github.com/blue-creative/db-rb/internal/shared"
	"github.com/charmbracelet/log"
	"github.com/dhowden/tag"
	"golang.org/x/sync/errgroup"
)

// FormatTags identifies results produced from file tags rather than a document.
const FormatTags parsers.Format = "tags"

// Extensions lists the audio file types whose tags are read.
var Extensions = []string{".mp3", ".flac", ".m4a", ".mp4", ".ogg", ".opus", ".dsf"}

// raw tag keys carrying key and tempo, per container
var (
	bpmKeys = []string{"TBPM", "TBP", "bpm", "BPM", "tmpo"}
	keyKeys = []string{"TKEY", "TKE", "initialkey", "INITIALKEY", "key", "KEY"}
	mixKeys = []string{"TIT3", "TT3", "subtitle", "SUBTITLE", "version", "VERSION"}
	remKeys = []string{"TPE4", "TP4", "remixer", "REMIXER", "mixartist", "MIXARTIST"}
	lyrKeys = []string{"TEXT", "TXT", "lyricist", "LYRICIST"}
)

// Scanner walks directories for audio files. Files are read concurrently and never modified.
type Scanner struct {
	workers int
	logger  *log.Logger
}

// New creates a Scanner. Non-positive workers default to 4 and a nil logger discards output.
func New(workers int, logger *log.Logger) *Scanner {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Scanner{workers: workers, logger: logger}
}

// Scan reads the tags of every audio file below root, in lexical path order.
//
// A file whose tags cannot be read still yields a low-confidence record guessed from its name,
// together with a warning. Line numbers are the file's position in the scan.
func (s *Scanner) Scan(ctx context.Context, root string) (*parsers.Result, error) {
	files, err := s.collect(root)
	if err != nil {
		return nil, err
	}

	records := make([]*models.RawTrackRecord, len(files))
	warnings := make([]*parsers.Warning, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			records[i], warnings[i] = readFile(root, path, i+1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan aborted: %w", err)
	}

	result := &parsers.Result{Format: FormatTags, Source: root, Records: []*models.RawTrackRecord{}, Warnings: []parsers.Warning{}}
	for i := range files {
		if warnings[i] != nil {
			result.Warnings = append(result.Warnings, *warnings[i])
		}
		if records[i] != nil {
			result.Records = append(result.Records, records[i])
		}
	}

	s.logger.Info("scan finished", "root", root, "files", len(files), "records", len(result.Records), "warnings", len(result.Warnings))
	return result, nil
}

func (s *Scanner) collect(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", shared.ErrInvalidInput, root)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && slices.Contains(Extensions, strings.ToLower(filepath.Ext(path))) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return files, nil
}

func readFile(root, path string, line int) (*models.RawTrackRecord, *parsers.Warning) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	r := models.NewRecord(root, line)
	r.Set(models.FieldLocation, path)
	r.Set(models.FieldFileName, filepath.Base(path))
	r.Set(models.FieldFileType, strings.TrimPrefix(filepath.Ext(path), "."))

	var warning *parsers.Warning
	if err := readTags(r, path); err != nil {
		parsers.GuessFromFileName(r, filepath.Base(path))
		warning = &parsers.Warning{Source: root, Line: line, Entry: rel, Reason: fmt.Sprintf("no readable tags, guessed from file name: %v", err)}
	}

	if err := r.Normalize(); err != nil {
		return nil, &parsers.Warning{Source: root, Line: line, Entry: rel, Reason: err.Error()}
	}
	return r, warning
}

func readTags(r *models.RawTrackRecord, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return err
	}

	r.Set(models.FieldTitle, m.Title())
	r.Set(models.FieldArtist, m.Artist())
	r.Set(models.FieldGenre, m.Genre())
	r.Set(models.FieldComposer, m.Composer())
	r.Set(models.FieldComments, m.Comment())
	if m.Year() > 0 {
		r.Set(models.FieldYear, strconv.Itoa(m.Year()))
	}
	if ft := m.FileType(); ft != tag.UnknownFileType {
		r.Set(models.FieldFileType, string(ft))
	}

	raw := m.Raw()
	r.Set(models.FieldBPM, rawValue(raw, bpmKeys))
	r.Set(models.FieldKey, rawValue(raw, keyKeys))
	r.Set(models.FieldMixName, rawValue(raw, mixKeys))
	r.Set(models.FieldRemixer, rawValue(raw, remKeys))
	r.Set(models.FieldLyricist, rawValue(raw, lyrKeys))

	if !r.Has(models.FieldTitle) {
		return fmt.Errorf("%w: tags have no title", shared.ErrValidation)
	}
	return nil
}

// rawValue returns the first textual value found under keys.
func rawValue(raw map[string]any, keys []string) string {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case string:
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		case int:
			if v > 0 {
				return strconv.Itoa(v)
			}
		}
	}
	return ""
}
