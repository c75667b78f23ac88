package tasks

import (
	"context"
	"time"

	"github.com/desertthunder/spindle/internal/models"
	"github.com/desertthunder/spindle/internal/repositories"
)

// TrackAnalyze diffs the reference playlist's remote items against the track
// table. Service-local items are identified by a derived surrogate URI.
// The remote snapshot token observed here travels with the plan so execution
// can record exactly what was synced.
func (e *Engine) TrackAnalyze(ctx context.Context, progress chan<- ProgressUpdate) (*models.TrackPlan, error) {
	master, err := e.library.GetPlaylist(ctx, e.masterID)
	if err != nil {
		return nil, err
	}

	e.sendProgress(progress, fetchTracksUpdate(1, 2, master.Name))

	items, err := e.library.ListPlaylistItems(ctx, e.masterID)
	if err != nil {
		return nil, err
	}

	stored, err := repositories.NewTrackRepository(e.db).All(ctx)
	if err != nil {
		return nil, err
	}

	// An empty reference playlist against a populated store looks like a
	// remote outage, not a deletion request. Refuse the mass delete and
	// leave the snapshot token unadvanced so the next run re-checks.
	if len(items) == 0 && len(stored) > 0 {
		e.logger.Warn("reference playlist returned no items, skipping sync", "stored", len(stored))
		return &models.TrackPlan{Unchanged: len(stored)}, nil
	}

	e.sendProgress(progress, compareUpdate(2, 2, "tracks"))

	incoming := make(map[string]models.Track, len(items))
	for _, item := range items {
		track := remoteToTrack(item)
		incoming[track.URI] = track
	}

	storedByURI := make(map[string]models.Track, len(stored))
	for _, track := range stored {
		storedByURI[track.URI] = track
	}

	plan := &models.TrackPlan{MasterSnapshotID: master.SnapshotID}
	for uri, track := range incoming {
		existing, ok := storedByURI[uri]
		if !ok {
			plan.ToAdd = append(plan.ToAdd, trackItem(track, nil))
			continue
		}

		var changes []string
		if existing.Title != track.Title {
			changes = append(changes, "title")
		}
		if existing.Artists != track.Artists {
			changes = append(changes, "artists")
		}
		if existing.Album != track.Album {
			changes = append(changes, "album")
		}

		if len(changes) == 0 {
			plan.Unchanged++
			continue
		}

		item := trackItem(track, changes)
		item.OldTitle = existing.Title
		item.OldArtist = existing.Artists
		item.OldAlbum = existing.Album
		plan.ToUpdate = append(plan.ToUpdate, item)
	}

	for uri, track := range storedByURI {
		if _, ok := incoming[uri]; !ok {
			plan.ToDelete = append(plan.ToDelete, trackItem(track, nil))
		}
	}

	e.logger.Debug("track analysis complete",
		"to_add", len(plan.ToAdd), "to_update", len(plan.ToUpdate),
		"to_delete", len(plan.ToDelete), "unchanged", plan.Unchanged)
	return plan, nil
}

// TrackExecute applies a track plan in one transaction and records the
// observed snapshot as the reference playlist's master_sync_token.
// Deleting a track cascades to its membership edges and file mappings.
func (e *Engine) TrackExecute(ctx context.Context, plan *models.TrackPlan) (models.Stats, error) {
	err := repositories.WithUnitOfWork(ctx, e.db, func(u *repositories.UnitOfWork) error {
		tracks := u.Tracks()

		for _, item := range plan.ToAdd {
			if err := tracks.Create(ctx, item.Track); err != nil {
				return err
			}
		}

		for _, item := range plan.ToUpdate {
			if err := tracks.Update(ctx, item.Track); err != nil {
				return err
			}
		}

		for _, item := range plan.ToDelete {
			if err := tracks.Delete(ctx, item.ID); err != nil {
				return err
			}
		}

		if plan.MasterSnapshotID != "" {
			return u.Playlists().SetMasterSyncToken(ctx, e.masterID, plan.MasterSnapshotID)
		}
		return nil
	})
	if err != nil {
		return models.Stats{}, err
	}

	stats := plan.Stats()
	e.logger.Info("track sync applied",
		"added", stats.Added, "updated", stats.Updated, "deleted", stats.Deleted)
	return stats, nil
}

func trackItem(track models.Track, changes []string) models.TrackItem {
	item := models.TrackItem{
		ID:      track.URI,
		Artists: track.Artists,
		Title:   track.Title,
		Album:   track.Album,
		IsLocal: track.IsLocal,
		Changes: changes,
		Track:   track,
	}
	if track.AddedAt != nil {
		item.AddedAt = track.AddedAt.Format(time.RFC3339)
	}
	return item
}
