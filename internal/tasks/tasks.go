// package tasks implements the playlist, track, and membership sync engines.
//
// Each sync is split into an analyze step, which reads remote and stored
// state and produces a plan without writing anything, and an execute step,
// which applies a plan inside one unit-of-work. Executing the same plan
// twice is a per-row no-op.
package tasks

import (
	"context"
	"database/sql"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spindle/internal/models"
	"github.com/desertthunder/spindle/internal/services"
	"github.com/desertthunder/spindle/internal/shared"
)

// Syncer is the analyze/execute surface the orchestrator drives.
type Syncer interface {
	// PlaylistAnalyze diffs remote playlists against the store.
	PlaylistAnalyze(ctx context.Context, progress chan<- ProgressUpdate) (*models.PlaylistPlan, error)

	// PlaylistExecute applies a playlist plan in one transaction.
	PlaylistExecute(ctx context.Context, plan *models.PlaylistPlan) (models.Stats, error)

	// TrackAnalyze diffs the reference playlist's items against the track table.
	TrackAnalyze(ctx context.Context, progress chan<- ProgressUpdate) (*models.TrackPlan, error)

	// TrackExecute applies a track plan in one transaction.
	TrackExecute(ctx context.Context, plan *models.TrackPlan) (models.Stats, error)

	// AssociationAnalyze diffs memberships for playlists whose remote version changed.
	AssociationAnalyze(ctx context.Context, progress chan<- ProgressUpdate) (*models.AssociationPlan, error)

	// AssociationExecute applies a membership plan in one transaction.
	AssociationExecute(ctx context.Context, plan *models.AssociationPlan) (models.Stats, error)
}

// Engine implements Syncer over a catalog database and a remote library.
type Engine struct {
	db       *sql.DB
	library  services.Library
	masterID string
	filter   services.FilterConfig
	logger   *log.Logger
}

// NewEngine creates a sync engine. masterID names the reference playlist that
// defines the track universe.
func NewEngine(db *sql.DB, library services.Library, masterID string, filter services.FilterConfig, logger *log.Logger) *Engine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Engine{
		db:       db,
		library:  library,
		masterID: masterID,
		filter:   filter,
		logger:   logger,
	}
}

// sendProgress sends a progress update without blocking; a full or nil
// channel drops the update.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// remoteToTrack converts a remote playlist item into a catalog track,
// deriving a surrogate identity for service-local entries.
func remoteToTrack(item services.RemoteTrack) models.Track {
	track := models.Track{
		URI:        item.URI,
		Title:      item.Title,
		Artists:    strings.Join(item.Artists, ", "),
		Album:      item.Album,
		DurationMS: item.DurationMS,
		IsLocal:    item.IsLocal,
	}

	if !item.AddedAt.IsZero() {
		t := item.AddedAt
		track.AddedAt = &t
	}

	if item.IsLocal {
		primaryArtist := ""
		if len(item.Artists) > 0 {
			primaryArtist = item.Artists[0]
		}
		track.URI = models.LocalTrackURI(primaryArtist, item.Album, item.Title, item.DurationMS/1000)
		track.SurrogateKey = models.LocalSurrogateKey(primaryArtist, item.Title)
	}
	return track
}
