package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blue-creative/db-rb/internal/formatter"
	"github.com/blue-creative/db-rb/internal/models"
)

// ExportOpts contains configuration for exporting the catalog.
type ExportOpts struct {
	Formats    []string // Export formats: csv, m3u, markdown, txt, json (default: all)
	OutputDir  string   // Base output directory (default: dbrb_export_{epoch})
	Filter     string   // Free-text filter applied before exporting
	Name       string   // Base file name and document title (default: tracks)
	NumWorkers int      // Concurrent writers (default: Options.Workers)
}

// ExportFileResult is the outcome of writing one format.
type ExportFileResult struct {
	Format  string `json:"format"`
	Path    string `json:"path,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ExportResult summarizes an export run.
type ExportResult struct {
	Tracks          int                `json:"tracks"`
	OutputDirectory string             `json:"output_directory"`
	Files           []ExportFileResult `json:"files"`
	Successful      int                `json:"successful"`
	Failed          int                `json:"failed"`
	ManifestPath    string             `json:"manifest_path,omitempty"`
	CompletedAt     time.Time          `json:"completed_at"`
}

// ExportTracks writes the filtered catalog in several formats concurrently and records a
// manifest summarizing the files written.
//
// The track list is snapshotted once, so every format sees the same tracks. A format that fails
// to write is reported in the result without stopping the others.
func (e *LibraryEngine) ExportTracks(ctx context.Context, opts ExportOpts, progress chan<- ProgressUpdate) (*ExportResult, error) {
	if len(opts.Formats) == 0 {
		opts.Formats = formatter.Formats
	}
	for _, f := range opts.Formats {
		if _, err := formatter.Extension(f); err != nil {
			return nil, err
		}
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("dbrb_export_%d", time.Now().Unix())
	}
	if opts.Name == "" {
		opts.Name = "tracks"
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = e.opts.Workers
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	tracks := e.ListTracks(opts.Filter)
	result := &ExportResult{
		Tracks:          len(tracks),
		OutputDirectory: opts.OutputDir,
		Files:           make([]ExportFileResult, 0, len(opts.Formats)),
	}

	jobs := make(chan string, len(opts.Formats))
	results := make(chan ExportFileResult, len(opts.Formats))

	var wg sync.WaitGroup
	for range min(opts.NumWorkers, len(opts.Formats)) {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, tracks, opts)
	}

	for _, f := range opts.Formats {
		jobs <- f
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Files = append(result.Files, res)

		if res.Success {
			result.Successful++
			e.sendProgress(progress, exportCompletedUpdate(completed, len(opts.Formats), res.Format, res.Path))
		} else {
			result.Failed++
			e.sendProgress(progress, exportFailedUpdate(completed, len(opts.Formats), res.Format, fmt.Errorf("%s", res.Error)))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("export cancelled: %w", err)
	}

	result.CompletedAt = time.Now().UTC()
	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteManifest(result, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	e.logger.Info("catalog exported", "tracks", result.Tracks, "files", result.Successful, "failed", result.Failed, "dir", opts.OutputDir)
	return result, nil
}

// exportWorker writes the formats it receives from jobs until jobs is closed or ctx is done.
func (e *LibraryEngine) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan string,
	results chan<- ExportFileResult,
	tracks []*models.Track,
	opts ExportOpts,
) {
	defer wg.Done()

	for format := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		results <- exportFormat(tracks, format, opts)
	}
}

func exportFormat(tracks []*models.Track, format string, opts ExportOpts) ExportFileResult {
	result := ExportFileResult{Format: format}

	ext, err := formatter.Extension(format)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	path := filepath.Join(opts.OutputDir, opts.Name+ext)
	written, err := formatter.WriteExport(tracks, format, path, opts.Name)
	if err != nil {
		result.Error = fmt.Sprintf("%s export failed: %v", format, err)
		return result
	}
	result.Path = written
	result.Success = true
	return result
}
