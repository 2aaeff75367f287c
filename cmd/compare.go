package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/blue-creative/db-rb/internal/models"
	"github.com/blue-creative/db-rb/internal/services"
	"github.com/blue-creative/db-rb/internal/shared"
	"github.com/blue-creative/db-rb/internal/tasks"
	"github.com/blue-creative/db-rb/internal/ui"
	"github.com/urfave/cli/v3"
)

// Compare classifies an external playlist, read from FILE or from the configured playlist
// source, against the catalog.
func (r *Runner) Compare(ctx context.Context, cmd *cli.Command) error {
	only := models.ComparisonStatus(strings.ToLower(cmd.String("only")))
	switch only {
	case "", models.ComparisonFound, models.ComparisonDuplicate, models.ComparisonMissing:
	default:
		return fmt.Errorf("%w: --only %q (want found, duplicate or missing)", shared.ErrInvalidFlag, only)
	}

	path, playlist := cmd.Args().First(), cmd.String("playlist")
	if (path == "") == (playlist == "") {
		return fmt.Errorf("%w: give either FILE or --playlist", shared.ErrMissingArgument)
	}

	engine, release, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer release()

	asJSON := cmd.Bool("json")
	progress, wait := r.progressFor(asJSON)
	var cmp *tasks.SourceComparison
	if playlist != "" {
		cmp, err = r.compareSource(ctx, cmd, engine, playlist, progress)
	} else {
		cmp, err = compareFile(ctx, engine, path, progress)
	}
	wait()
	if err != nil {
		return err
	}

	if only != "" {
		kept := cmp.Results[:0]
		for _, res := range cmp.Results {
			if res.Status == only {
				kept = append(kept, res)
			}
		}
		cmp.Results = kept
	}

	if asJSON {
		return r.writeJSON(cmp, cmd.Bool("pretty"))
	}

	r.writeWarnings(cmp.Warnings)
	rows := make([][]string, 0, len(cmp.Results))
	for _, res := range cmp.Results {
		ids := make([]string, len(res.MatchIDs))
		for i, id := range res.MatchIDs {
			ids[i] = shortID(id)
		}
		rows = append(rows, []string{
			strconv.Itoa(res.Entry.Line),
			res.Entry.Name(),
			ui.Styles.Status(string(res.Status)),
			strconv.Itoa(res.LocalMatches),
			strings.Join(ids, " "),
			res.ExternalRef,
		})
	}
	r.writePlainln("%s", ui.Styles.Title("Comparison of "+cmp.Playlist))
	r.writeTable([]string{"#", "Entry", "Status", "Local", "Tracks", "Reference"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight})
	r.writePlain("%d found, %d duplicate, %d missing\n",
		cmp.Counts[models.ComparisonFound], cmp.Counts[models.ComparisonDuplicate], cmp.Counts[models.ComparisonMissing])
	return nil
}

func compareFile(ctx context.Context, engine *tasks.LibraryEngine, path string, progress chan<- tasks.ProgressUpdate) (*tasks.SourceComparison, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc, err := engine.ParseDocument(data, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	results, err := engine.Compare(ctx, doc.Records, progress)
	if err != nil {
		return nil, err
	}
	return &tasks.SourceComparison{
		Source:   "file",
		Playlist: filepath.Base(path),
		Results:  results,
		Counts:   models.ComparisonCounts(results),
		Warnings: doc.Warnings,
	}, nil
}

func (r *Runner) compareSource(ctx context.Context, cmd *cli.Command, engine *tasks.LibraryEngine, playlist string, progress chan<- tasks.ProgressUpdate) (*tasks.SourceComparison, error) {
	config, err := r.loadConfig()
	if err != nil {
		return nil, err
	}
	cfg := config.Source
	if u := cmd.String("source-url"); u != "" {
		cfg.BaseURL = u
	}
	return engine.CompareSource(ctx, services.FromConfig(cfg, r.getenv), playlist, progress)
}
