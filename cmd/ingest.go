package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/blue-creative/db-rb/internal/models"
	"github.com/blue-creative/db-rb/internal/parsers"
	"github.com/blue-creative/db-rb/internal/shared"
	"github.com/blue-creative/db-rb/internal/tasks"
	"github.com/blue-creative/db-rb/internal/ui"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// IngestPreview parses files and prints the merge plan without applying it.
func (r *Runner) IngestPreview(ctx context.Context, cmd *cli.Command) error {
	docs, err := readDocuments(cmd.Args().Slice())
	if err != nil {
		return err
	}

	engine, release, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer release()

	asJSON := cmd.Bool("json")
	progress, wait := r.progressFor(asJSON)
	batch, err := engine.ParseDocuments(ctx, docs, progress)
	wait()
	if err != nil {
		return err
	}
	plan := engine.Ingest(batch.Records())

	if asJSON {
		return r.writeJSON(map[string]any{
			"parse":  batch,
			"plan":   plan,
			"counts": plan.Counts(),
		}, cmd.Bool("pretty"))
	}

	r.writeFailures(batch.Failures)
	r.writeWarnings(batch.Warnings())
	r.writePlainln("%s", ui.Styles.Title("Merge plan"))
	r.writePlanTable(plan)

	counts := plan.Counts()
	r.writePlain("%s new, %s duplicate, %s conflict. Nothing was applied.\n",
		humanize.Comma(int64(counts[models.StatusNew])),
		humanize.Comma(int64(counts[models.StatusDuplicate])),
		humanize.Comma(int64(counts[models.StatusConflict])))
	return nil
}

// IngestApply parses files and merges them into the catalog under the chosen policy.
func (r *Runner) IngestApply(ctx context.Context, cmd *cli.Command) error {
	policy, err := parsePolicy(cmd)
	if err != nil {
		return err
	}
	docs, err := readDocuments(cmd.Args().Slice())
	if err != nil {
		return err
	}

	engine, release, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer release()

	asJSON := cmd.Bool("json")
	progress, wait := r.progressFor(asJSON)
	report, err := engine.BulkIngest(ctx, docs, policy, progress)
	wait()
	if err != nil {
		return err
	}

	if asJSON {
		return r.writeJSON(report, cmd.Bool("pretty"))
	}

	r.writeFailures(report.Parse.Failures)
	r.writeWarnings(report.Parse.Warnings())
	r.writeApplyResult(report.Result)
	return nil
}

// readDocuments loads every file named on the command line.
func readDocuments(paths []string) ([]tasks.Document, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: at least one FILE", shared.ErrMissingArgument)
	}

	docs := make([]tasks.Document, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		docs = append(docs, tasks.Document{Name: filepath.Base(p), Data: data})
	}
	return docs, nil
}

// parsePolicy reads --policy and the repeatable --resolve INDEX=RESOLUTION overrides.
func parsePolicy(cmd *cli.Command) (models.ResolutionPolicy, error) {
	def, err := models.ParseResolution(cmd.String("policy"))
	if err != nil {
		return models.ResolutionPolicy{}, fmt.Errorf("%w: --policy: %v", shared.ErrInvalidFlag, err)
	}

	policy := models.ResolutionPolicy{Default: def}
	for _, raw := range cmd.StringSlice("resolve") {
		idx, res, ok := strings.Cut(raw, "=")
		if !ok {
			return policy, fmt.Errorf("%w: --resolve %q (want INDEX=accept|keep|manual)", shared.ErrInvalidFlag, raw)
		}
		n, err := strconv.Atoi(strings.TrimSpace(idx))
		if err != nil || n < 0 {
			return policy, fmt.Errorf("%w: --resolve %q: index must be a non-negative integer", shared.ErrInvalidFlag, raw)
		}
		parsed, err := models.ParseResolution(res)
		if err != nil {
			return policy, fmt.Errorf("%w: --resolve %q: %v", shared.ErrInvalidFlag, raw, err)
		}
		if policy.Overrides == nil {
			policy.Overrides = map[int]models.Resolution{}
		}
		policy.Overrides[n] = parsed
	}
	return policy, nil
}

// progressFor returns a progress channel printing updates, or nil when output is JSON.
func (r *Runner) progressFor(quiet bool) (chan<- tasks.ProgressUpdate, func()) {
	if quiet {
		return nil, func() {}
	}
	return r.progress(r.printProgress)
}

func (r *Runner) printProgress(u tasks.ProgressUpdate) {
	switch u.Phase {
	case tasks.ParseFiles:
		r.writePlain("📥 %s\n", u.Message)
	case tasks.PlanMerge:
		r.writePlain("🔍 %s\n", u.Message)
	case tasks.ApplyChunk:
		r.writePlain("📝 %s\n", u.Message)
	case tasks.CompareEntries:
		r.writePlain("🔍 %s\n", u.Message)
	case tasks.WriteExports:
		r.writePlain("💾 %s\n", u.Message)
	}
}

func (r *Runner) writeFailures(failures []tasks.DocumentFailure) {
	for _, f := range failures {
		r.writePlain("%s %s: %s\n", ui.Styles.Err("✗"), f.Name, f.Error)
	}
}

func (r *Runner) writeWarnings(warnings []parsers.Warning) {
	if len(warnings) == 0 {
		return
	}
	r.writePlainln("%s", ui.Styles.Warn(fmt.Sprintf("⚠ %d entries skipped", len(warnings))))
	for _, w := range warnings {
		r.writePlain("  %s\n", w)
	}
}

func (r *Runner) writePlanTable(plan *models.MergePlan) {
	rows := make([][]string, 0, len(plan.Items))
	for _, it := range plan.Items {
		match := shortID(it.MatchID)
		if it.DuplicateOf != nil {
			match = fmt.Sprintf("item %d", *it.DuplicateOf)
		}
		rows = append(rows, []string{
			strconv.Itoa(it.Index),
			ui.Styles.Status(string(it.Status)),
			it.Record.Name(),
			fmt.Sprintf("%s:%d", it.Record.Source, it.Record.Line),
			match,
			formatDiffs(it.Diffs),
		})
	}
	r.writeTable([]string{"#", "Status", "Record", "Source", "Match", "Changes"}, rows, []columnAlignment{alignRight})
}

func (r *Runner) writeApplyResult(res *models.ApplyResult) {
	r.writePlainHeader("Ingest Complete!")
	r.writePlain("Inserted:  %s\n", humanize.Comma(int64(len(res.Inserted))))
	r.writePlain("Updated:   %s\n", humanize.Comma(int64(len(res.Updated))))
	r.writePlain("Unchanged: %s\n", humanize.Comma(int64(res.Unchanged)))
	r.writePlain("Kept:      %s\n", humanize.Comma(int64(res.Kept)))

	if len(res.Pending) > 0 {
		r.writePlainln("%s", ui.Styles.Err(fmt.Sprintf("%d conflicts need a resolution", len(res.Pending))))
		rows := make([][]string, 0, len(res.Pending))
		for _, p := range res.Pending {
			rows = append(rows, []string{strconv.Itoa(p.Index), p.Record, shortID(p.TrackID), formatDiffs(p.Diffs)})
		}
		r.writeTable([]string{"#", "Record", "Track", "Changes"}, rows, []columnAlignment{alignRight})
		r.writePlain("%s\n", ui.Styles.Help("Re-run with --policy accept|keep or --resolve INDEX=accept|keep"))
	}

	if len(res.Rejected) > 0 {
		r.writePlainln("%s", ui.Styles.Err(fmt.Sprintf("%d items rejected", len(res.Rejected))))
		for _, rej := range res.Rejected {
			r.writePlain("  %d. %s: %s\n", rej.Index, rej.Record, rej.Reason)
		}
	}
}

func formatDiffs(diffs []models.FieldDiff) string {
	parts := make([]string, len(diffs))
	for i, d := range diffs {
		parts[i] = fmt.Sprintf("%s: %q → %q", d.Field, d.Old, d.New)
	}
	return strings.Join(parts, "\n")
}
