package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/desertthunder/spindle/internal/models"
	"github.com/desertthunder/spindle/internal/orchestrator"
	"github.com/desertthunder/spindle/internal/services"
	"github.com/desertthunder/spindle/internal/shared"
	"github.com/desertthunder/spindle/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SyncPlaylists syncs the playlist roster.
func (r *Runner) SyncPlaylists(ctx context.Context, cmd *cli.Command) error {
	return r.runSyncAction(ctx, cmd, orchestrator.ActionPlaylists)
}

// SyncTracks syncs the track universe from the reference playlist.
func (r *Runner) SyncTracks(ctx context.Context, cmd *cli.Command) error {
	return r.runSyncAction(ctx, cmd, orchestrator.ActionTracks)
}

// SyncAssociations syncs playlist memberships.
func (r *Runner) SyncAssociations(ctx context.Context, cmd *cli.Command) error {
	return r.runSyncAction(ctx, cmd, orchestrator.ActionAssociations)
}

// SyncClear drops every stored sync token.
func (r *Runner) SyncClear(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	orc, err := r.buildOrchestrator(cmd)
	if err != nil {
		return err
	}

	resp := orc.Handle(ctx, orchestrator.SyncRequest{Action: orchestrator.ActionClear})
	if !resp.Success {
		return fmt.Errorf("%s", resp.Message)
	}

	return r.writePlain("✓ %s\n", resp.Message)
}

// SyncAll walks the staged pipeline, confirming each stage that has changes.
func (r *Runner) SyncAll(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)
	if err := r.config.ValidateLibrary(); err != nil {
		return err
	}

	orc, err := r.buildOrchestrator(cmd)
	if err != nil {
		return err
	}

	settings := playlistSettings(cmd)
	force := cmd.Bool("force")

	resp := orc.Handle(ctx, orchestrator.SyncRequest{Action: orchestrator.ActionAll, PlaylistSettings: settings})
	if !resp.Success {
		return fmt.Errorf("%s", resp.Message)
	}

	for resp.NextStage != "" && resp.NextStage != orchestrator.StageComplete {
		stage := resp.NextStage
		resp, err = r.runStage(ctx, cmd, orc, orchestrator.SyncRequest{
			Action:           orchestrator.ActionAll,
			Stage:            stage,
			ForceRefresh:     force,
			PlaylistSettings: settings,
		})
		if err != nil {
			return err
		}
		// Only the first stage should invalidate the tokens.
		force = false
	}

	return r.writePlainln("✓ Sync pipeline complete")
}

// runSyncAction runs a single-engine sync: analyze, confirm, execute.
func (r *Runner) runSyncAction(ctx context.Context, cmd *cli.Command, action string) error {
	r.reloadConfig(cmd)
	if err := r.config.ValidateLibrary(); err != nil {
		return err
	}

	orc, err := r.buildOrchestrator(cmd)
	if err != nil {
		return err
	}

	_, err = r.runStage(ctx, cmd, orc, orchestrator.SyncRequest{
		Action:           action,
		ForceRefresh:     cmd.Bool("force"),
		PlaylistSettings: playlistSettings(cmd),
	})
	return err
}

// runStage performs the analyze-confirm-execute round trip for one request.
func (r *Runner) runStage(ctx context.Context, cmd *cli.Command, orc *orchestrator.Orchestrator, req orchestrator.SyncRequest) (orchestrator.SyncResponse, error) {
	useJSON := cmd.Bool("json")

	analysis := orc.Handle(ctx, req)
	if !analysis.Success {
		return analysis, errors.New(analysis.Message)
	}

	if useJSON {
		if err := r.writeJSON(analysis, true); err != nil {
			return analysis, err
		}
	} else {
		r.writePlain("%s\n", analysis.Message)
	}

	if !analysis.NeedsConfirmation {
		return analysis, nil
	}

	if !useJSON {
		r.printStats(analysis.Stats)
	}

	if !cmd.Bool("yes") && !r.confirm("Apply these changes?") {
		return analysis, fmt.Errorf("%w: sync aborted", shared.ErrCancelled)
	}

	plan, err := json.Marshal(analysis.Details)
	if err != nil {
		return analysis, fmt.Errorf("failed to encode plan: %w", err)
	}

	req.Confirmed = true
	req.ForceRefresh = false
	req.PrecomputedChanges = plan

	result := orc.Handle(ctx, req)
	if !result.Success {
		return result, errors.New(result.Message)
	}

	if useJSON {
		return result, r.writeJSON(result, true)
	}

	r.writePlain("✓ %s", result.Message)
	r.printStats(result.Stats)
	return result, nil
}

// buildOrchestrator wires the orchestrator over the runner's database and
// remote library.
func (r *Runner) buildOrchestrator(cmd *cli.Command) (*orchestrator.Orchestrator, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}

	library, err := r.remoteLibrary()
	if err != nil {
		return nil, err
	}

	masterID := r.config.Library.MasterPlaylistID
	factory := func(filter services.FilterConfig) tasks.Syncer {
		return tasks.NewEngine(db, library, masterID, filter, r.logger)
	}

	// One drain goroutine per runner; Close ends it.
	if r.progress == nil {
		r.progress = make(chan tasks.ProgressUpdate, 16)
		go func(updates <-chan tasks.ProgressUpdate) {
			for update := range updates {
				r.logger.Info(update.Message, "phase", update.Phase.String(), "step", update.Step, "total", update.Total)
			}
		}(r.progress)
	}

	return orchestrator.New(db, factory, r.logger, orchestrator.WithProgress(r.progress)), nil
}

func (r *Runner) printStats(stats models.Stats) {
	r.writePlain("  Added: %d  Updated: %d  Deleted: %d  Unchanged: %d\n",
		stats.Added, stats.Updated, stats.Deleted, stats.Unchanged)
}

// playlistSettings collects the exclusion flags into request settings.
func playlistSettings(cmd *cli.Command) *orchestrator.PlaylistSettings {
	keywords := cmd.StringSlice("exclude-keyword")
	ids := cmd.StringSlice("exclude-playlist")
	descriptions := cmd.StringSlice("exclude-description")

	if len(keywords) == 0 && len(ids) == 0 && len(descriptions) == 0 {
		return nil
	}

	return &orchestrator.PlaylistSettings{
		ExcludedKeywords:     keywords,
		ExcludedPlaylistIDs:  ids,
		ExcludeByDescription: descriptions,
	}
}
