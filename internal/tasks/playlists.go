package tasks

import (
	"context"
	"strings"

	"github.com/desertthunder/spindle/internal/models"
	"github.com/desertthunder/spindle/internal/repositories"
)

// PlaylistAnalyze diffs the filtered remote playlist listing against the
// stored playlists by (id, trimmed name). The reference playlist is never
// scheduled for deletion. No writes occur.
func (e *Engine) PlaylistAnalyze(ctx context.Context, progress chan<- ProgressUpdate) (*models.PlaylistPlan, error) {
	e.sendProgress(progress, fetchPlaylistsUpdate(1, 2))

	remote, err := e.library.ListUserPlaylists(ctx, e.filter)
	if err != nil {
		return nil, err
	}

	stored, err := repositories.NewPlaylistRepository(e.db).All(ctx)
	if err != nil {
		return nil, err
	}

	e.sendProgress(progress, compareUpdate(2, 2, "playlists"))

	remoteByID := make(map[string]models.Playlist, len(remote))
	for _, p := range remote {
		remoteByID[p.ID] = models.Playlist{ID: p.ID, Name: strings.TrimSpace(p.Name)}
	}

	storedByID := make(map[string]models.Playlist, len(stored))
	for _, p := range stored {
		storedByID[p.ID] = p
	}

	plan := &models.PlaylistPlan{}
	for _, p := range remote {
		name := strings.TrimSpace(p.Name)
		existing, ok := storedByID[p.ID]
		switch {
		case !ok:
			plan.ToAdd = append(plan.ToAdd, models.PlaylistItem{ID: p.ID, Name: name, SnapshotID: p.SnapshotID})
		case strings.TrimSpace(existing.Name) != name:
			plan.ToUpdate = append(plan.ToUpdate, models.PlaylistItem{
				ID:      p.ID,
				Name:    name,
				OldName: existing.Name,
			})
		default:
			plan.Unchanged++
		}
	}

	for _, p := range stored {
		if _, ok := remoteByID[p.ID]; !ok && p.ID != e.masterID {
			plan.ToDelete = append(plan.ToDelete, models.PlaylistItem{ID: p.ID, Name: p.Name})
		}
	}

	e.logger.Debug("playlist analysis complete",
		"to_add", len(plan.ToAdd), "to_update", len(plan.ToUpdate),
		"to_delete", len(plan.ToDelete), "unchanged", plan.Unchanged)
	return plan, nil
}

// PlaylistExecute applies a playlist plan in one transaction. Membership
// edges are removed before their playlist row. Version tokens are left
// untouched; the track and membership syncs own them.
func (e *Engine) PlaylistExecute(ctx context.Context, plan *models.PlaylistPlan) (models.Stats, error) {
	err := repositories.WithUnitOfWork(ctx, e.db, func(u *repositories.UnitOfWork) error {
		playlists := u.Playlists()
		associations := u.Associations()

		for _, item := range plan.ToAdd {
			if err := playlists.Create(ctx, models.Playlist{ID: item.ID, Name: item.Name}); err != nil {
				return err
			}
		}

		for _, item := range plan.ToUpdate {
			if err := playlists.Rename(ctx, item.ID, item.Name); err != nil {
				return err
			}
		}

		for _, item := range plan.ToDelete {
			if err := associations.DeleteAllForPlaylist(ctx, item.ID); err != nil {
				return err
			}
			if err := playlists.Delete(ctx, item.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Stats{}, err
	}

	stats := plan.Stats()
	e.logger.Info("playlist sync applied",
		"added", stats.Added, "updated", stats.Updated, "deleted", stats.Deleted)
	return stats, nil
}
