// package orchestrator maps sync action requests onto the analyze/execute
// engines and folds every outcome into a stable response envelope.
//
// The orchestrator is stateless between requests: the confirmation protocol
// threads the analysis plan through the client, which posts it back as
// precomputed_changes_from_analysis for the execute phase of the same stage.
package orchestrator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spindle/internal/models"
	"github.com/desertthunder/spindle/internal/repositories"
	"github.com/desertthunder/spindle/internal/services"
	"github.com/desertthunder/spindle/internal/shared"
	"github.com/desertthunder/spindle/internal/tasks"
)

// Sync actions accepted by [Orchestrator.Handle].
const (
	ActionPlaylists    = "playlists"
	ActionTracks       = "tracks"
	ActionAssociations = "associations"
	ActionAll          = "all"
	ActionClear        = "clear"
)

// Pipeline stages for the "all" action.
const (
	StageStart        = "start"
	StagePlaylists    = "playlists"
	StageTracks       = "tracks"
	StageAssociations = "associations"
	StageComplete     = "complete"
)

// Response stages.
const (
	StageAnalysis     = "analysis"
	StageSyncComplete = "sync_complete"
)

// PlaylistSettings carries per-request playlist exclusions.
type PlaylistSettings struct {
	ExcludedKeywords     []string `json:"excludedKeywords"`
	ExcludedPlaylistIDs  []string `json:"excludedPlaylistIds"`
	ExcludeByDescription []string `json:"excludeByDescription"`
}

// FilterConfig converts the request settings into the service-level filter.
func (s *PlaylistSettings) FilterConfig() services.FilterConfig {
	if s == nil {
		return services.FilterConfig{}
	}
	return services.FilterConfig{
		ExcludedKeywords:     s.ExcludedKeywords,
		ExcludedPlaylistIDs:  s.ExcludedPlaylistIDs,
		ExcludeByDescription: s.ExcludeByDescription,
	}
}

// SyncRequest is the JSON body of one sync action invocation.
type SyncRequest struct {
	Action             string            `json:"action"`
	ForceRefresh       bool              `json:"force_refresh"`
	Confirmed          bool              `json:"confirmed"`
	Stage              string            `json:"stage,omitempty"`
	PrecomputedChanges json.RawMessage   `json:"precomputed_changes_from_analysis,omitempty"`
	PlaylistSettings   *PlaylistSettings `json:"playlistSettings,omitempty"`
}

// SyncResponse is the envelope returned for both phases of every action.
type SyncResponse struct {
	Success           bool         `json:"success"`
	Action            string       `json:"action"`
	Stage             string       `json:"stage,omitempty"`
	Message           string       `json:"message"`
	Stats             models.Stats `json:"stats"`
	Details           any          `json:"details,omitempty"`
	NeedsConfirmation bool         `json:"needs_confirmation"`
	NextStage         string       `json:"next_stage,omitempty"`
}

// SyncerFactory builds a sync engine for one request's filter settings.
type SyncerFactory func(filter services.FilterConfig) tasks.Syncer

// Orchestrator dispatches sync requests to the engines.
type Orchestrator struct {
	db       *sql.DB
	newSync  SyncerFactory
	progress chan<- tasks.ProgressUpdate
	logger   *log.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProgress forwards analysis progress updates to ch. Sends never block;
// a full channel drops updates.
func WithProgress(ch chan<- tasks.ProgressUpdate) Option {
	return func(o *Orchestrator) { o.progress = ch }
}

// New creates an Orchestrator over the catalog database. newSync is invoked
// per request with the request's playlist filter.
func New(db *sql.DB, newSync SyncerFactory, logger *log.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	o := &Orchestrator{db: db, newSync: newSync, logger: logger}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handle runs one sync request end to end. Failures are folded into the
// response envelope; Handle itself never returns an error.
func (o *Orchestrator) Handle(ctx context.Context, req SyncRequest) SyncResponse {
	switch req.Action {
	case ActionClear:
		return o.handleClear(ctx)
	case ActionPlaylists, ActionTracks, ActionAssociations:
		return o.handleStage(ctx, req, req.Action, "")
	case ActionAll:
		return o.handleAll(ctx, req)
	default:
		return failure(req.Action, "", fmt.Errorf("%w: unknown action %q", shared.ErrInvalidRequest, req.Action))
	}
}

// handleClear drops every stored sync token so the next sync re-fetches all
// remote state.
func (o *Orchestrator) handleClear(ctx context.Context) SyncResponse {
	if err := repositories.NewPlaylistRepository(o.db).ClearTokens(ctx); err != nil {
		return failure(ActionClear, "", err)
	}
	return SyncResponse{
		Success: true,
		Action:  ActionClear,
		Stage:   StageComplete,
		Message: "sync tokens cleared",
	}
}

// handleAll drives the staged pipeline. Each stage behaves like its single
// action but the response carries the stage that should run next.
func (o *Orchestrator) handleAll(ctx context.Context, req SyncRequest) SyncResponse {
	switch req.Stage {
	case "", StageStart:
		return SyncResponse{
			Success:   true,
			Action:    ActionAll,
			Stage:     StageStart,
			Message:   "sync pipeline ready",
			NextStage: StagePlaylists,
		}
	case StagePlaylists:
		return o.handleStage(ctx, req, ActionAll, StageTracks)
	case StageTracks:
		return o.handleStage(ctx, req, ActionAll, StageAssociations)
	case StageAssociations:
		return o.handleStage(ctx, req, ActionAll, StageComplete)
	case StageComplete:
		return SyncResponse{
			Success: true,
			Action:  ActionAll,
			Stage:   StageComplete,
			Message: "sync pipeline complete",
		}
	default:
		return failure(ActionAll, req.Stage, fmt.Errorf("%w: unknown stage %q", shared.ErrInvalidRequest, req.Stage))
	}
}

// handleStage runs one engine's analyze or execute phase. For the "all"
// action the request stage selects the engine; single actions select by
// action name.
func (o *Orchestrator) handleStage(ctx context.Context, req SyncRequest, action, nextStage string) SyncResponse {
	stage := req.Action
	if action == ActionAll {
		stage = req.Stage
	}

	if req.ForceRefresh {
		if err := repositories.NewPlaylistRepository(o.db).ClearTokens(ctx); err != nil {
			return failure(action, stage, err)
		}
	}

	syncer := o.newSync(req.PlaylistSettings.FilterConfig())

	if !req.Confirmed {
		plan, stats, err := o.analyze(ctx, syncer, stage)
		if err != nil {
			return failure(action, stage, err)
		}
		return SyncResponse{
			Success:           true,
			Action:            action,
			Stage:             StageAnalysis,
			Message:           analysisMessage(stage, stats),
			Stats:             stats,
			Details:           plan,
			NeedsConfirmation: stats.HasChanges(),
			NextStage:         nextStage,
		}
	}

	stats, err := o.executeConfirmed(ctx, syncer, action, stage, req.PrecomputedChanges)
	if err != nil {
		return failure(action, stage, err)
	}
	return SyncResponse{
		Success:   true,
		Action:    action,
		Stage:     StageSyncComplete,
		Message:   fmt.Sprintf("%s sync complete", stage),
		Stats:     stats,
		NextStage: nextStage,
	}
}

// executeConfirmed applies a confirmed plan, recording the run in history.
// A request without a precomputed plan analyzes and executes in one pass.
func (o *Orchestrator) executeConfirmed(ctx context.Context, syncer tasks.Syncer, action, stage string, raw json.RawMessage) (models.Stats, error) {
	runs := repositories.NewRunRepository(o.db)
	run, err := runs.Create(ctx, action, stage)
	if err != nil {
		return models.Stats{}, err
	}

	stats, err := o.execute(ctx, syncer, stage, raw)
	if err != nil {
		if completeErr := runs.Complete(ctx, run.ID, repositories.RunStatusFailed, stats, err.Error()); completeErr != nil {
			o.logger.Error("failed to record sync run", "run", run.ID, "error", completeErr)
		}
		return stats, err
	}

	if err := runs.Complete(ctx, run.ID, repositories.RunStatusCompleted, stats, ""); err != nil {
		o.logger.Error("failed to record sync run", "run", run.ID, "error", err)
	}
	return stats, nil
}

// analyze dispatches to the engine for one stage.
func (o *Orchestrator) analyze(ctx context.Context, syncer tasks.Syncer, stage string) (any, models.Stats, error) {
	switch stage {
	case StagePlaylists:
		plan, err := syncer.PlaylistAnalyze(ctx, o.progress)
		if err != nil {
			return nil, models.Stats{}, err
		}
		return plan, plan.Stats(), nil
	case StageTracks:
		plan, err := syncer.TrackAnalyze(ctx, o.progress)
		if err != nil {
			return nil, models.Stats{}, err
		}
		return plan, plan.Stats(), nil
	case StageAssociations:
		plan, err := syncer.AssociationAnalyze(ctx, o.progress)
		if err != nil {
			return nil, models.Stats{}, err
		}
		return plan, plan.Stats(), nil
	default:
		return nil, models.Stats{}, fmt.Errorf("%w: unknown stage %q", shared.ErrInvalidRequest, stage)
	}
}

// execute applies the precomputed plan for one stage, analyzing first when
// the request carried none.
func (o *Orchestrator) execute(ctx context.Context, syncer tasks.Syncer, stage string, raw json.RawMessage) (models.Stats, error) {
	switch stage {
	case StagePlaylists:
		plan := &models.PlaylistPlan{}
		if err := decodePlan(raw, plan); err != nil {
			return models.Stats{}, err
		}
		if raw == nil {
			var err error
			if plan, err = syncer.PlaylistAnalyze(ctx, o.progress); err != nil {
				return models.Stats{}, err
			}
		}
		return syncer.PlaylistExecute(ctx, plan)
	case StageTracks:
		plan := &models.TrackPlan{}
		if err := decodePlan(raw, plan); err != nil {
			return models.Stats{}, err
		}
		if raw == nil {
			var err error
			if plan, err = syncer.TrackAnalyze(ctx, o.progress); err != nil {
				return models.Stats{}, err
			}
		}
		return syncer.TrackExecute(ctx, plan)
	case StageAssociations:
		plan := &models.AssociationPlan{}
		if err := decodePlan(raw, plan); err != nil {
			return models.Stats{}, err
		}
		if raw == nil {
			var err error
			if plan, err = syncer.AssociationAnalyze(ctx, o.progress); err != nil {
				return models.Stats{}, err
			}
		}
		return syncer.AssociationExecute(ctx, plan)
	default:
		return models.Stats{}, fmt.Errorf("%w: unknown stage %q", shared.ErrInvalidRequest, stage)
	}
}

// decodePlan parses a precomputed plan into dst. A nil payload is valid and
// leaves dst empty; malformed JSON is an invalid request.
func decodePlan(raw json.RawMessage, dst any) error {
	if raw == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: malformed precomputed plan: %v", shared.ErrInvalidRequest, err)
	}
	return nil
}

func analysisMessage(stage string, stats models.Stats) string {
	if !stats.HasChanges() {
		return fmt.Sprintf("%s are up to date", stage)
	}
	return fmt.Sprintf("%s analysis found %d to add, %d to update, %d to delete",
		stage, stats.Added, stats.Updated, stats.Deleted)
}

// failure folds an error into the response envelope with a stable,
// human-readable message. Internal paths and wrapped detail stay out of the
// message for remote failures.
func failure(action, stage string, err error) SyncResponse {
	return SyncResponse{
		Success: false,
		Action:  action,
		Stage:   stage,
		Message: errorMessage(err),
	}
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, shared.ErrAuthFailed):
		return "authentication with the remote service failed"
	case errors.Is(err, shared.ErrRateLimited):
		return "remote service rate limit exceeded, try again later"
	case errors.Is(err, shared.ErrRemoteUnavailable):
		return "remote service unavailable"
	case errors.Is(err, shared.ErrTimeout):
		return "operation timed out"
	case errors.Is(err, shared.ErrCancelled):
		return "operation cancelled"
	case errors.Is(err, shared.ErrInvalidRequest):
		return err.Error()
	case errors.Is(err, shared.ErrNotFound):
		return err.Error()
	case errors.Is(err, shared.ErrConflict):
		return err.Error()
	default:
		return fmt.Sprintf("sync failed: %v", err)
	}
}
