package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/spindle/internal/models"
	"github.com/desertthunder/spindle/internal/shared"
)

// TrackRepository persists catalog tracks keyed by resource URI.
type TrackRepository struct {
	q DBTX
}

// NewTrackRepository creates a new TrackRepository over the given query surface.
func NewTrackRepository(q DBTX) *TrackRepository {
	return &TrackRepository{q: q}
}

const trackColumns = "uri, title, artists, album, duration_ms, added_at, is_local, surrogate_key"

// Create inserts a new track. Re-inserting an existing URI refreshes its
// mutable fields instead of failing, keeping plan re-execution idempotent.
func (r *TrackRepository) Create(ctx context.Context, track models.Track) error {
	query := `
		INSERT INTO tracks (uri, title, artists, album, duration_ms, added_at, is_local, surrogate_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uri) DO UPDATE SET
			title = excluded.title,
			artists = excluded.artists,
			album = excluded.album,
			duration_ms = excluded.duration_ms,
			updated_at = excluded.updated_at
	`

	now := time.Now()
	_, err := r.q.ExecContext(ctx, query,
		track.URI,
		track.Title,
		track.Artists,
		track.Album,
		nullableInt(track.DurationMS),
		nullableTime(track.AddedAt),
		track.IsLocal,
		nullableString(track.SurrogateKey),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}
	return nil
}

// Update modifies the mutable fields of an existing track.
// Updating a row that already carries the new values is a no-op, not an error.
func (r *TrackRepository) Update(ctx context.Context, track models.Track) error {
	query := `
		UPDATE tracks
		SET title = ?, artists = ?, album = ?, duration_ms = ?, updated_at = ?
		WHERE uri = ?
	`

	result, err := r.q.ExecContext(ctx, query,
		track.Title,
		track.Artists,
		track.Album,
		nullableInt(track.DurationMS),
		time.Now(),
		track.URI,
	)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: track %s", shared.ErrNotFound, track.URI)
	}
	return nil
}

// Delete removes a track. Membership edges and file mappings cascade.
// Deleting an already-absent row is a no-op so plan re-execution stays idempotent.
func (r *TrackRepository) Delete(ctx context.Context, uri string) error {
	if _, err := r.q.ExecContext(ctx, "DELETE FROM tracks WHERE uri = ?", uri); err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}
	return nil
}

// Get retrieves a track by URI.
func (r *TrackRepository) Get(ctx context.Context, uri string) (models.Track, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+trackColumns+" FROM tracks WHERE uri = ?", uri)
	track, err := scanTrack(row.Scan)
	if err == sql.ErrNoRows {
		return models.Track{}, fmt.Errorf("%w: track %s", shared.ErrNotFound, uri)
	}
	if err != nil {
		return models.Track{}, fmt.Errorf("failed to scan track: %w", err)
	}
	return track, nil
}

// All retrieves every track ordered by URI.
func (r *TrackRepository) All(ctx context.Context) ([]models.Track, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT "+trackColumns+" FROM tracks ORDER BY uri")
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []models.Track
	for rows.Next() {
		track, err := scanTrack(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

// ByURIs retrieves the given tracks in one query. Absent URIs are simply
// missing from the result map.
func (r *TrackRepository) ByURIs(ctx context.Context, uris []string) (map[string]models.Track, error) {
	result := make(map[string]models.Track, len(uris))
	if len(uris) == 0 {
		return result, nil
	}

	// SQLite caps bound parameters, so chunk large URI sets.
	const chunkSize = 500
	for start := 0; start < len(uris); start += chunkSize {
		end := min(start+chunkSize, len(uris))
		chunk := uris[start:end]

		query := "SELECT " + trackColumns + " FROM tracks WHERE uri IN (" + placeholders(len(chunk)) + ")"
		rows, err := r.q.QueryContext(ctx, query, toAnySlice(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("failed to query tracks: %w", err)
		}

		for rows.Next() {
			track, err := scanTrack(rows.Scan)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan track: %w", err)
			}
			result[track.URI] = track
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("row iteration error: %w", err)
		}
		rows.Close()
	}

	return result, nil
}

func scanTrack(scan func(...any) error) (models.Track, error) {
	var (
		track      models.Track
		durationMS sql.NullInt64
		addedAt    sql.NullTime
		surrogate  sql.NullString
	)

	err := scan(&track.URI, &track.Title, &track.Artists, &track.Album, &durationMS, &addedAt, &track.IsLocal, &surrogate)
	if err != nil {
		return models.Track{}, err
	}

	if durationMS.Valid {
		track.DurationMS = int(durationMS.Int64)
	}
	if addedAt.Valid {
		t := addedAt.Time
		track.AddedAt = &t
	}
	if surrogate.Valid {
		track.SurrogateKey = surrogate.String
	}
	return track, nil
}

func nullableInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
