package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/spindle/internal/models"
	"github.com/desertthunder/spindle/internal/shared"
)

// PlaylistRepository persists playlists keyed by remote playlist ID.
type PlaylistRepository struct {
	q DBTX
}

// NewPlaylistRepository creates a new PlaylistRepository over the given query surface.
func NewPlaylistRepository(q DBTX) *PlaylistRepository {
	return &PlaylistRepository{q: q}
}

const playlistColumns = "id, name, master_sync_token, associations_token"

// Create inserts a new playlist. An existing row with the same ID is left
// untouched so plan re-execution stays idempotent.
func (r *PlaylistRepository) Create(ctx context.Context, playlist models.Playlist) error {
	query := `
		INSERT INTO playlists (id, name, master_sync_token, associations_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`

	now := time.Now()
	_, err := r.q.ExecContext(ctx, query,
		playlist.ID,
		playlist.Name,
		playlist.MasterSyncToken,
		playlist.AssociationsToken,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}
	return nil
}

// Rename updates a playlist's display name.
func (r *PlaylistRepository) Rename(ctx context.Context, id, name string) error {
	result, err := r.q.ExecContext(ctx,
		"UPDATE playlists SET name = ?, updated_at = ? WHERE id = ?", name, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to rename playlist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: playlist %s", shared.ErrNotFound, id)
	}
	return nil
}

// SetMasterSyncToken records the remote version observed during the last
// reference-playlist sync.
func (r *PlaylistRepository) SetMasterSyncToken(ctx context.Context, id, token string) error {
	if _, err := r.q.ExecContext(ctx,
		"UPDATE playlists SET master_sync_token = ?, updated_at = ? WHERE id = ?", token, time.Now(), id); err != nil {
		return fmt.Errorf("failed to update master sync token: %w", err)
	}
	return nil
}

// SetAssociationsToken records the remote version observed during the last
// membership sync.
func (r *PlaylistRepository) SetAssociationsToken(ctx context.Context, id, token string) error {
	if _, err := r.q.ExecContext(ctx,
		"UPDATE playlists SET associations_token = ?, updated_at = ? WHERE id = ?", token, time.Now(), id); err != nil {
		return fmt.Errorf("failed to update associations token: %w", err)
	}
	return nil
}

// ClearTokens resets both version tokens on every playlist, forcing the next
// sync to re-read all remote state.
func (r *PlaylistRepository) ClearTokens(ctx context.Context) error {
	if _, err := r.q.ExecContext(ctx,
		"UPDATE playlists SET master_sync_token = '', associations_token = '', updated_at = ?", time.Now()); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	return nil
}

// Delete removes a playlist row. The caller is responsible for removing
// membership edges first (see [AssociationRepository.DeleteAllForPlaylist]).
func (r *PlaylistRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.q.ExecContext(ctx, "DELETE FROM playlists WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	return nil
}

// Get retrieves a playlist by ID.
func (r *PlaylistRepository) Get(ctx context.Context, id string) (models.Playlist, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+playlistColumns+" FROM playlists WHERE id = ?", id)

	var playlist models.Playlist
	err := row.Scan(&playlist.ID, &playlist.Name, &playlist.MasterSyncToken, &playlist.AssociationsToken)
	if err == sql.ErrNoRows {
		return models.Playlist{}, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return models.Playlist{}, fmt.Errorf("failed to scan playlist: %w", err)
	}
	return playlist, nil
}

// All retrieves every playlist ordered by name.
func (r *PlaylistRepository) All(ctx context.Context) ([]models.Playlist, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT "+playlistColumns+" FROM playlists ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []models.Playlist
	for rows.Next() {
		var playlist models.Playlist
		if err := rows.Scan(&playlist.ID, &playlist.Name, &playlist.MasterSyncToken, &playlist.AssociationsToken); err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		playlists = append(playlists, playlist)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return playlists, nil
}

// ByIDs retrieves the given playlists in one query.
func (r *PlaylistRepository) ByIDs(ctx context.Context, ids []string) (map[string]models.Playlist, error) {
	result := make(map[string]models.Playlist, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := "SELECT " + playlistColumns + " FROM playlists WHERE id IN (" + placeholders(len(ids)) + ")"
	rows, err := r.q.QueryContext(ctx, query, toAnySlice(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var playlist models.Playlist
		if err := rows.Scan(&playlist.ID, &playlist.Name, &playlist.MasterSyncToken, &playlist.AssociationsToken); err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		result[playlist.ID] = playlist
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return result, nil
}
