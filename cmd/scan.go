package main

import (
	"context"
	"fmt"

	"github.com/blue-creative/db-rb/internal/models"
	"github.com/blue-creative/db-rb/internal/scanner"
	"github.com/blue-creative/db-rb/internal/shared"
	"github.com/blue-creative/db-rb/internal/ui"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// Scan reads tags below DIR and previews, or with --apply merges, the scanned tracks.
func (r *Runner) Scan(ctx context.Context, cmd *cli.Command) error {
	root := cmd.Args().First()
	if root == "" {
		return fmt.Errorf("%w: DIR", shared.ErrMissingArgument)
	}
	policy, err := parsePolicy(cmd)
	if err != nil {
		return err
	}
	config, err := r.loadConfig()
	if err != nil {
		return err
	}

	engine, release, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer release()

	scanned, err := scanner.New(config.Ingest.Workers, shared.WithLogger(r.logger, "component", "scanner")).Scan(ctx, root)
	if err != nil {
		return err
	}
	plan := engine.Ingest(scanned.Records)

	asJSON := cmd.Bool("json")
	if !cmd.Bool("apply") {
		if asJSON {
			return r.writeJSON(map[string]any{"scan": scanned, "plan": plan, "counts": plan.Counts()}, cmd.Bool("pretty"))
		}
		r.writeWarnings(scanned.Warnings)
		r.writePlainln("%s", ui.Styles.Title(fmt.Sprintf("Scanned %s files under %s", humanize.Comma(int64(len(scanned.Records))), root)))
		r.writePlanTable(plan)
		counts := plan.Counts()
		r.writePlain("%d new, %d duplicate, %d conflict. %s\n",
			counts[models.StatusNew], counts[models.StatusDuplicate], counts[models.StatusConflict],
			ui.Styles.Help("Re-run with --apply to merge."))
		return nil
	}

	progress, wait := r.progressFor(asJSON)
	result, err := engine.ApplyChunked(ctx, plan, policy, progress)
	wait()
	if err != nil {
		return err
	}
	if asJSON {
		return r.writeJSON(map[string]any{"scan": scanned, "plan": plan, "result": result}, cmd.Bool("pretty"))
	}
	r.writeWarnings(scanned.Warnings)
	r.writeApplyResult(result)
	return nil
}
