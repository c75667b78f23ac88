package repositories

import (
	"context"
	"fmt"
)

// AssociationRepository persists the (playlist, track) membership set.
//
// Membership is a set, not a bag: duplicate edges are silently ignored on
// insert and absent edges are silently ignored on delete, which keeps plan
// re-execution idempotent.
type AssociationRepository struct {
	q DBTX
}

// NewAssociationRepository creates a new AssociationRepository over the given query surface.
func NewAssociationRepository(q DBTX) *AssociationRepository {
	return &AssociationRepository{q: q}
}

// Add inserts a membership edge.
func (r *AssociationRepository) Add(ctx context.Context, playlistID, trackURI string) error {
	query := "INSERT OR IGNORE INTO track_playlists (playlist_id, track_uri) VALUES (?, ?)"
	if _, err := r.q.ExecContext(ctx, query, playlistID, trackURI); err != nil {
		return fmt.Errorf("failed to insert membership: %w", err)
	}
	return nil
}

// Remove deletes a membership edge.
func (r *AssociationRepository) Remove(ctx context.Context, playlistID, trackURI string) error {
	query := "DELETE FROM track_playlists WHERE playlist_id = ? AND track_uri = ?"
	if _, err := r.q.ExecContext(ctx, query, playlistID, trackURI); err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	return nil
}

// DeleteAllForPlaylist removes every edge of one playlist.
func (r *AssociationRepository) DeleteAllForPlaylist(ctx context.Context, playlistID string) error {
	if _, err := r.q.ExecContext(ctx, "DELETE FROM track_playlists WHERE playlist_id = ?", playlistID); err != nil {
		return fmt.Errorf("failed to delete playlist memberships: %w", err)
	}
	return nil
}

// DeleteAllForTrack removes every edge of one track.
func (r *AssociationRepository) DeleteAllForTrack(ctx context.Context, trackURI string) error {
	if _, err := r.q.ExecContext(ctx, "DELETE FROM track_playlists WHERE track_uri = ?", trackURI); err != nil {
		return fmt.Errorf("failed to delete track memberships: %w", err)
	}
	return nil
}

// URIsForPlaylist lists the track URIs of one playlist.
func (r *AssociationRepository) URIsForPlaylist(ctx context.Context, playlistID string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT track_uri FROM track_playlists WHERE playlist_id = ? ORDER BY track_uri", playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer rows.Close()

	var uris []string
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		uris = append(uris, uri)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return uris, nil
}

// PlaylistIDsForTrack lists the playlists one track belongs to.
func (r *AssociationRepository) PlaylistIDsForTrack(ctx context.Context, trackURI string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT playlist_id FROM track_playlists WHERE track_uri = ? ORDER BY playlist_id", trackURI)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}

// AllMappings loads the entire membership relation in one query, keyed by
// playlist ID. Used by the duplicate engine and exporter to avoid N+1 reads.
func (r *AssociationRepository) AllMappings(ctx context.Context) (map[string][]string, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT playlist_id, track_uri FROM track_playlists ORDER BY playlist_id, track_uri")
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]string)
	for rows.Next() {
		var playlistID, uri string
		if err := rows.Scan(&playlistID, &uri); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		result[playlistID] = append(result[playlistID], uri)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return result, nil
}

// URIsBatch loads memberships for the given playlists in one query.
func (r *AssociationRepository) URIsBatch(ctx context.Context, playlistIDs []string) (map[string][]string, error) {
	result := make(map[string][]string, len(playlistIDs))
	if len(playlistIDs) == 0 {
		return result, nil
	}

	query := "SELECT playlist_id, track_uri FROM track_playlists WHERE playlist_id IN (" +
		placeholders(len(playlistIDs)) + ") ORDER BY playlist_id, track_uri"
	rows, err := r.q.QueryContext(ctx, query, toAnySlice(playlistIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var playlistID, uri string
		if err := rows.Scan(&playlistID, &uri); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		result[playlistID] = append(result[playlistID], uri)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return result, nil
}
