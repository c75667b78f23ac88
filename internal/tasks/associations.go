package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/desertthunder/spindle/internal/models"
	"github.com/desertthunder/spindle/internal/repositories"
	"github.com/desertthunder/spindle/internal/shared"
	"golang.org/x/time/rate"
)

const (
	membershipWorkers   = 5
	membershipRateLimit = 5.0
)

// membershipFetch is one playlist's freshly fetched remote membership.
type membershipFetch struct {
	playlistID string
	uris       []string
	err        error
}

// AssociationAnalyze computes membership changes for playlists whose remote
// snapshot differs from the stored associations_token.
//
// Clean playlists are trusted as stored; dirty playlists are re-fetched
// concurrently. When no playlist is dirty the plan is empty and no remote
// item fetches happen at all. A dirty playlist that disappeared remotely is
// skipped with a warning rather than aborting the analysis.
func (e *Engine) AssociationAnalyze(ctx context.Context, progress chan<- ProgressUpdate) (*models.AssociationPlan, error) {
	remote, err := e.library.ListUserPlaylists(ctx, e.filter)
	if err != nil {
		return nil, err
	}

	playlistRepo := repositories.NewPlaylistRepository(e.db)
	stored, err := playlistRepo.All(ctx)
	if err != nil {
		return nil, err
	}

	storedByID := make(map[string]models.Playlist, len(stored))
	for _, p := range stored {
		storedByID[p.ID] = p
	}

	// Dirty set: known playlists whose remote snapshot moved.
	dirtyTokens := make(map[string]string)
	for _, rp := range remote {
		if rp.ID == e.masterID {
			continue
		}
		sp, ok := storedByID[rp.ID]
		if !ok {
			continue
		}
		if sp.AssociationsToken != rp.SnapshotID {
			dirtyTokens[rp.ID] = rp.SnapshotID
		}
	}

	plan := &models.AssociationPlan{DirtyTokens: dirtyTokens}
	if len(dirtyTokens) == 0 {
		e.logger.Debug("no dirty playlists, membership sync is a no-op")
		return plan, nil
	}

	tracks, err := repositories.NewTrackRepository(e.db).All(ctx)
	if err != nil {
		return nil, err
	}

	trackByURI := make(map[string]models.Track, len(tracks))
	for _, t := range tracks {
		trackByURI[t.URI] = t
	}

	fetched, err := e.fetchMemberships(ctx, progress, dirtyTokens)
	if err != nil {
		return nil, err
	}

	associationRepo := repositories.NewAssociationRepository(e.db)
	storedEdges, err := associationRepo.AllMappings(ctx)
	if err != nil {
		return nil, err
	}

	e.sendProgress(progress, compareUpdate(1, 1, "memberships"))

	// desired(t): stored memberships for clean playlists, fetched sets for
	// dirty ones. Only catalog tracks participate.
	desired := make(map[string]map[string]bool, len(trackByURI))
	for uri := range trackByURI {
		desired[uri] = make(map[string]bool)
	}

	for playlistID, uris := range storedEdges {
		if playlistID == e.masterID {
			continue
		}
		if _, dirty := dirtyTokens[playlistID]; dirty {
			continue
		}
		for _, uri := range uris {
			if _, ok := desired[uri]; ok {
				desired[uri][playlistID] = true
			}
		}
	}

	for playlistID, uris := range fetched {
		for _, uri := range uris {
			if _, ok := desired[uri]; ok {
				desired[uri][playlistID] = true
			}
		}
	}

	current := make(map[string]map[string]bool, len(trackByURI))
	for playlistID, uris := range storedEdges {
		if playlistID == e.masterID {
			continue
		}
		for _, uri := range uris {
			if _, ok := trackByURI[uri]; !ok {
				continue
			}
			if current[uri] == nil {
				current[uri] = make(map[string]bool)
			}
			current[uri][playlistID] = true
		}
	}

	for uri, want := range desired {
		have := current[uri]

		var addTo, removeFrom []string
		for playlistID := range want {
			if !have[playlistID] {
				addTo = append(addTo, playlistID)
			}
		}
		for playlistID := range have {
			if !want[playlistID] {
				removeFrom = append(removeFrom, playlistID)
			}
		}

		if len(addTo) == 0 && len(removeFrom) == 0 {
			plan.Unchanged++
			continue
		}

		track := trackByURI[uri]
		plan.Items = append(plan.Items, models.AssociationItem{
			TrackID:    uri,
			TrackInfo:  fmt.Sprintf("%s - %s", track.Artists, track.Title),
			AddTo:      addTo,
			RemoveFrom: removeFrom,
		})
	}

	stats := plan.Stats()
	e.logger.Debug("membership analysis complete",
		"dirty_playlists", len(dirtyTokens), "edges_to_add", stats.Added, "edges_to_remove", stats.Deleted)
	return plan, nil
}

// fetchMemberships retrieves dirty playlists' item URIs with a bounded
// worker pool and rate limiting. A playlist that vanished remotely is dropped
// from the result and from the dirty set so its token does not advance.
func (e *Engine) fetchMemberships(ctx context.Context, progress chan<- ProgressUpdate, dirtyTokens map[string]string) (map[string][]string, error) {
	ids := make([]string, 0, len(dirtyTokens))
	for id := range dirtyTokens {
		ids = append(ids, id)
	}

	limiter := rate.NewLimiter(rate.Limit(membershipRateLimit), 1)
	jobs := make(chan string, len(ids))
	results := make(chan membershipFetch, len(ids))

	workers := min(membershipWorkers, len(ids))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for playlistID := range jobs {
				if err := limiter.Wait(ctx); err != nil {
					results <- membershipFetch{playlistID: playlistID, err: err}
					continue
				}
				uris, err := e.library.ListPlaylistItemURIs(ctx, playlistID)
				results <- membershipFetch{playlistID: playlistID, uris: uris, err: err}
			}
		}()
	}

	for _, id := range ids {
		jobs <- id
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	fetched := make(map[string][]string, len(ids))
	step := 0
	var firstErr error
	for res := range results {
		step++
		e.sendProgress(progress, fetchMembershipsUpdate(step, len(ids), res.playlistID))

		switch {
		case res.err == nil:
			fetched[res.playlistID] = res.uris
		case errors.Is(res.err, shared.ErrNotFound):
			e.logger.Warn("playlist disappeared remotely, skipping", "playlist_id", res.playlistID)
			delete(dirtyTokens, res.playlistID)
		default:
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to fetch memberships of %s: %w", res.playlistID, res.err)
			}
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return fetched, nil
}

// AssociationExecute applies membership edge changes in one transaction,
// then advances each dirty playlist's associations_token to the snapshot
// observed during analysis.
func (e *Engine) AssociationExecute(ctx context.Context, plan *models.AssociationPlan) (models.Stats, error) {
	err := repositories.WithUnitOfWork(ctx, e.db, func(u *repositories.UnitOfWork) error {
		associations := u.Associations()
		playlists := u.Playlists()

		for _, item := range plan.Items {
			for _, playlistID := range item.AddTo {
				if err := associations.Add(ctx, playlistID, item.TrackID); err != nil {
					return err
				}
			}
			for _, playlistID := range item.RemoveFrom {
				if err := associations.Remove(ctx, playlistID, item.TrackID); err != nil {
					return err
				}
			}
		}

		for playlistID, token := range plan.DirtyTokens {
			if err := playlists.SetAssociationsToken(ctx, playlistID, token); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Stats{}, err
	}

	stats := plan.Stats()
	e.logger.Info("membership sync applied", "edges_added", stats.Added, "edges_removed", stats.Deleted)
	return stats, nil
}
