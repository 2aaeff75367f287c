package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/blue-creative/db-rb/internal/models"
	"github.com/blue-creative/db-rb/internal/shared"
)

const trackColumns = `id, sequence, file_type, musical_key, bpm, duration, play_count, title, artist, genre, remixer,
	rating, mix_name, my_tag, comments, composer, lyricist, year, date_added, file_name, location`

var _ models.Repository[*models.Track] = (*TrackRepository)(nil)

// TrackRepository implements models.Repository[*models.Track] for catalog tracks.
//
// Deletes are soft. Deleted rows keep their id and sequence and are excluded from queries.
type TrackRepository struct {
	db  DBTX
	now func() time.Time
}

// NewTrackRepository creates a new TrackRepository with the given database connection or transaction
func NewTrackRepository(db DBTX) *TrackRepository {
	return &TrackRepository{db: db, now: time.Now}
}

// Create inserts a new [models.Track].
// A missing ID or sequence is generated.
func (r *TrackRepository) Create(track *models.Track) error {
	if track.ID == "" {
		track.ID = shared.GenerateID()
	}
	if track.Sequence == 0 {
		sequence, err := NextSequence(r.db, "tracks")
		if err != nil {
			return fmt.Errorf("failed to generate sequence: %w", err)
		}
		track.Sequence = sequence
	}

	query := `
		INSERT INTO tracks (` + trackColumns + `, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := r.now()
	args := append([]any{track.ID, track.Sequence}, trackValues(track)...)
	args = append(args, now, now)

	if _, err := r.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}
	return nil
}

// Get retrieves a track by ID, excluding soft-deleted tracks
func (r *TrackRepository) Get(id string) (*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, id))
}

// Update overwrites every column of an existing track
func (r *TrackRepository) Update(track *models.Track) error {
	query := `
		UPDATE tracks
		SET file_type = ?, musical_key = ?, bpm = ?, duration = ?, play_count = ?, title = ?, artist = ?,
			genre = ?, remixer = ?, rating = ?, mix_name = ?, my_tag = ?, comments = ?, composer = ?,
			lyricist = ?, year = ?, date_added = ?, file_name = ?, location = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	args := append(trackValues(track), r.now(), track.ID)
	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}
	return expectOneRow(result, track.ID)
}

// Delete soft-deletes a track by ID
func (r *TrackRepository) Delete(id string) error {
	query := `
		UPDATE tracks
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, r.now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}
	return expectOneRow(result, id)
}

// List retrieves live tracks matching criteria in sequence order.
//
// Supported criteria: "artist" and "genre" (exact, case-insensitive) and "q" (substring of
// title, artist, genre, remixer, mixName, comments or fileName).
func (r *TrackRepository) List(criteria map[string]any) ([]*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE deleted_at IS NULL`
	args := []any{}

	if artist, ok := criteria["artist"].(string); ok && artist != "" {
		query += " AND artist = ? COLLATE NOCASE"
		args = append(args, artist)
	}

	if genre, ok := criteria["genre"].(string); ok && genre != "" {
		query += " AND genre = ? COLLATE NOCASE"
		args = append(args, genre)
	}

	if q, ok := criteria["q"].(string); ok && q != "" {
		query += ` AND (title LIKE ? OR artist LIKE ? OR genre LIKE ? OR remixer LIKE ?
			OR mix_name LIKE ? OR comments LIKE ? OR file_name LIKE ?)`
		like := "%" + q + "%"
		args = append(args, like, like, like, like, like, like, like)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	tracks := []*models.Track{}
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

// DeletedIDs returns the ids of soft-deleted tracks.
func (r *TrackRepository) DeletedIDs() ([]string, error) {
	rows, err := r.db.Query(`SELECT id FROM tracks WHERE deleted_at IS NOT NULL ORDER BY sequence ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query deleted tracks: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan track id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}

// scanOne scans a single [sql.Row] into a [models.Track]
func (r *TrackRepository) scanOne(row *sql.Row) (*models.Track, error) {
	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrTrackNotFound
	}
	return track, err
}

type scanner interface {
	Scan(dest ...any) error
}

// scanTrack scans either a [sql.Row] or the current row of [sql.Rows]
func scanTrack(s scanner) (*models.Track, error) {
	var (
		t         models.Track
		rating    sql.NullInt64
		dateAdded sql.NullTime
	)

	err := s.Scan(&t.ID, &t.Sequence, &t.FileType, &t.Key, &t.BPM, &t.Duration, &t.PlayCount, &t.Title, &t.Artist,
		&t.Genre, &t.Remixer, &rating, &t.MixName, &t.MyTag, &t.Comments, &t.Composer, &t.Lyricist, &t.Year,
		&dateAdded, &t.FileName, &t.Location)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	if rating.Valid {
		t.Rating = models.RatingOf(int(rating.Int64))
	}
	if dateAdded.Valid {
		t.DateAdded = dateAdded.Time.UTC()
	}
	return &t, nil
}

// trackValues lists the editable columns in the order used by Create and Update
func trackValues(t *models.Track) []any {
	dateAdded := sql.NullTime{Time: t.DateAdded, Valid: !t.DateAdded.IsZero()}
	rating := sql.NullInt64{Int64: int64(t.Stars()), Valid: t.Rating != nil}
	return []any{
		t.FileType, t.Key, t.BPM, t.Duration, t.PlayCount, t.Title, t.Artist, t.Genre, t.Remixer, rating,
		t.MixName, t.MyTag, t.Comments, t.Composer, t.Lyricist, t.Year, dateAdded, t.FileName, t.Location,
	}
}

func expectOneRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}
	return nil
}
