package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blue-creative/db-rb/internal/models"
	"github.com/blue-creative/db-rb/internal/shared"
	"github.com/blue-creative/db-rb/internal/tasks"
	"github.com/blue-creative/db-rb/internal/ui"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// TracksList prints the catalog, optionally filtered.
func (r *Runner) TracksList(ctx context.Context, cmd *cli.Command) error {
	engine, release, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer release()

	filter := strings.Join(cmd.Args().Slice(), " ")
	tracks := engine.ListTracks(filter)
	if cmd.Bool("json") {
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}

	rows := make([][]string, 0, len(tracks))
	for _, t := range tracks {
		rows = append(rows, []string{
			shortID(t.ID),
			t.Artist,
			t.Title,
			t.Get(models.FieldKey),
			t.Get(models.FieldBPM),
			shared.FormatDuration(t.Duration),
			strings.Repeat("★", t.Stars()),
		})
	}
	r.writeTable([]string{"ID", "Artist", "Title", "Key", "BPM", "Time", "Rating"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight})
	r.writePlain("%s tracks\n", humanize.Comma(int64(len(tracks))))
	return nil
}

// TracksShow prints every field of one track.
func (r *Runner) TracksShow(ctx context.Context, cmd *cli.Command) error {
	engine, release, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer release()

	id, err := resolveTrackID(engine, cmd.Args().First())
	if err != nil {
		return err
	}
	track, err := engine.GetTrack(id)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(track, cmd.Bool("pretty"))
	}

	rows := [][]string{{models.FieldID, track.ID}}
	for _, f := range models.TrackFields {
		rows = append(rows, []string{f, track.Get(f)})
	}
	r.writePlain("%s\n", ui.Styles.Title(track.Label()))
	r.writeTable([]string{"Field", "Value"}, rows, nil)
	return nil
}

// TracksEdit sets one field and prints the audit entry written.
func (r *Runner) TracksEdit(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args()
	if args.Len() != 3 {
		return fmt.Errorf("%w: want ID FIELD VALUE, got %d arguments", shared.ErrMissingArgument, args.Len())
	}

	engine, release, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer release()

	id, err := resolveTrackID(engine, args.Get(0))
	if err != nil {
		return err
	}
	entry, err := engine.WithUser(cmd.String("user")).UpdateTrackField(id, args.Get(1), args.Get(2))
	if err != nil {
		return err
	}
	if entry == nil {
		r.writePlain("%s %s already has that value, nothing changed\n", ui.Styles.Warn("="), args.Get(1))
		return nil
	}
	r.writePlain("%s %s: %q → %q (by %s, audit %s)\n",
		ui.Styles.OK("✓"), entry.Field, entry.OldValue, entry.NewValue, entry.User, shortID(entry.ID))
	return nil
}

// TracksAudit prints attributed edit history, newest last.
func (r *Runner) TracksAudit(ctx context.Context, cmd *cli.Command) error {
	engine, release, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer release()

	var trackID string
	if arg := cmd.Args().First(); arg != "" {
		if trackID, err = resolveTrackID(engine, arg); err != nil {
			// history outlives deleted tracks, so an unknown id is matched verbatim
			trackID = arg
		}
	}

	entries := engine.GetAuditLog(trackID)
	if cmd.Bool("json") {
		return r.writeJSON(entries, cmd.Bool("pretty"))
	}

	now := r.now()
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			shortID(e.ID),
			humanize.RelTime(e.Timestamp, now, "ago", "from now"),
			e.User,
			shortID(e.TrackID),
			e.Field,
			e.OldValue,
			e.NewValue,
		})
	}
	r.writeTable([]string{"Entry", "When", "User", "Track", "Field", "Old", "New"}, rows, nil)
	r.writePlain("%s entries\n", humanize.Comma(int64(len(entries))))
	return nil
}

// TracksRevert restores the old value of an audit entry as a new edit.
func (r *Runner) TracksRevert(ctx context.Context, cmd *cli.Command) error {
	engine, release, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer release()

	auditID, err := resolveAuditID(engine, cmd.Args().First())
	if err != nil {
		return err
	}
	entry, err := engine.WithUser(cmd.String("user")).RevertEdit(auditID)
	if err != nil {
		return err
	}
	if entry == nil {
		r.writePlain("%s field already holds the recorded value, nothing changed\n", ui.Styles.Warn("="))
		return nil
	}
	r.writePlain("%s %s: %q → %q (by %s, audit %s)\n",
		ui.Styles.Warn("↺"), entry.Field, entry.OldValue, entry.NewValue, entry.User, shortID(entry.ID))
	return nil
}

// TracksDelete removes a track, keeping its history.
func (r *Runner) TracksDelete(ctx context.Context, cmd *cli.Command) error {
	engine, release, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer release()

	id, err := resolveTrackID(engine, cmd.Args().First())
	if err != nil {
		return err
	}
	if err := engine.DeleteTrack(id); err != nil {
		return err
	}
	r.writePlain("%s Deleted %s\n", ui.Styles.OK("✓"), id)
	return nil
}

// TracksExport writes the catalog in one or more formats with a manifest.
func (r *Runner) TracksExport(ctx context.Context, cmd *cli.Command) error {
	engine, release, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer release()

	progress, wait := r.progressFor(false)
	result, err := engine.ExportTracks(ctx, tasks.ExportOpts{
		Formats:   cmd.StringSlice("format"),
		OutputDir: cmd.String("output"),
		Filter:    cmd.String("filter"),
		Name:      cmd.String("name"),
	}, progress)
	wait()
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(result.Files))
	for _, f := range result.Files {
		size, status := "", ui.Styles.OK("ok")
		if info, err := os.Stat(f.Path); err == nil && f.Success {
			size = humanize.Bytes(uint64(info.Size()))
		}
		if !f.Success {
			status = ui.Styles.Err(f.Error)
		}
		rows = append(rows, []string{f.Format, f.Path, size, status})
	}
	r.writePlainln("%s", ui.Styles.Title(fmt.Sprintf("Exported %s tracks to %s", humanize.Comma(int64(result.Tracks)), result.OutputDirectory)))
	r.writeTable([]string{"Format", "File", "Size", "Status"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight})
	r.writePlain("Manifest: %s\n", result.ManifestPath)
	return nil
}

// resolveTrackID accepts a full id or a unique prefix of a live track's id.
func resolveTrackID(engine *tasks.LibraryEngine, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", fmt.Errorf("%w: track ID", shared.ErrMissingArgument)
	}
	if _, err := engine.GetTrack(arg); err == nil {
		return arg, nil
	}

	var ids []string
	for _, t := range engine.ListTracks("") {
		if strings.HasPrefix(t.ID, arg) {
			ids = append(ids, t.ID)
		}
	}
	return uniquePrefix(arg, ids, shared.ErrTrackNotFound)
}

// resolveAuditID accepts a full id or a unique prefix of an audit entry id.
func resolveAuditID(engine *tasks.LibraryEngine, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", fmt.Errorf("%w: audit entry ID", shared.ErrMissingArgument)
	}

	var ids []string
	for _, e := range engine.GetAuditLog("") {
		if e.ID == arg {
			return arg, nil
		}
		if strings.HasPrefix(e.ID, arg) {
			ids = append(ids, e.ID)
		}
	}
	return uniquePrefix(arg, ids, shared.ErrAuditEntryNotFound)
}

func uniquePrefix(arg string, ids []string, notFound error) (string, error) {
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", notFound, arg)
	case 1:
		return ids[0], nil
	}
	return "", fmt.Errorf("%w: %q matches %d ids", shared.ErrInvalidArgument, arg, len(ids))
}
