// package binder proposes and persists bindings between local audio files
// and catalog tracks.
//
// Analysis walks a directory, skips files that already carry an active
// mapping, and scores the rest against the catalog with the fuzzy matcher.
// Execution validates each intended binding and writes the survivors in one
// unit-of-work.
package binder

import (
	"context"
	"database/sql"
	"errors"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spindle/internal/matcher"
	"github.com/desertthunder/spindle/internal/models"
	"github.com/desertthunder/spindle/internal/repositories"
	"github.com/desertthunder/spindle/internal/shared"
)

const (
	// DefaultThreshold is the confidence above which a match is accepted
	// without user review.
	DefaultThreshold = 0.75

	// candidateFloor is the minimum score for a track to appear as a
	// selectable candidate at all.
	candidateFloor = 0.4

	maxCandidates = 10
)

// Binding statuses reported by Execute.
const (
	StatusBound        = "bound"
	StatusAlreadyBound = "already_bound"
	StatusConflict     = "mapping_conflict"
	StatusFileMissing  = "file_missing"
	StatusTrackMissing = "track_missing"
)

// Candidate is one scored option for a file.
type Candidate struct {
	Track  models.Track `json:"track"`
	Score  float64      `json:"score"`
	Reason string       `json:"reason"`
}

// AutoMatch is a binding proposal confident enough to apply without review.
type AutoMatch struct {
	FilePath string       `json:"file_path"`
	Track    models.Track `json:"track"`
	Score    float64      `json:"score"`
	Reason   string       `json:"reason"`
}

// SelectionNeeded is a file whose best candidate fell below the threshold.
type SelectionNeeded struct {
	FilePath   string      `json:"file_path"`
	Candidates []Candidate `json:"candidates"`
}

// AnalysisResult summarizes one binding analysis pass.
type AnalysisResult struct {
	TotalFiles     int               `json:"total_files"`
	AlreadyBound   int               `json:"already_bound"`
	AutoMatches    []AutoMatch       `json:"auto_matches"`
	NeedsSelection []SelectionNeeded `json:"needs_selection"`
	Unmatched      int               `json:"unmatched"`
}

// BindingOutcome is the per-file result of execution.
type BindingOutcome struct {
	FilePath string `json:"file_path"`
	TrackURI string `json:"track_uri"`
	Status   string `json:"status"`
}

// ExecuteResult summarizes one binding execution pass.
type ExecuteResult struct {
	Bound     int              `json:"bound"`
	Skipped   int              `json:"skipped"`
	Resolved  int              `json:"resolved_duplicates"`
	Outcomes  []BindingOutcome `json:"outcomes"`
}

// Binder runs binding analysis and execution against the catalog.
type Binder struct {
	db     *sql.DB
	logger *log.Logger
}

// New creates a Binder.
func New(db *sql.DB, logger *log.Logger) *Binder {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Binder{db: db, logger: logger}
}

// Analyze walks root and classifies every unbound audio file. Files whose
// tags carry an embedded catalog URI bind at full confidence; the rest are
// scored by the matcher and split at threshold.
func (b *Binder) Analyze(ctx context.Context, root string, threshold float64) (*AnalysisResult, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	tracks, err := repositories.NewTrackRepository(b.db).All(ctx)
	if err != nil {
		return nil, err
	}
	mappings, err := repositories.NewMappingRepository(b.db).AllActive(ctx)
	if err != nil {
		return nil, err
	}

	boundPaths := make(map[string]bool, len(mappings))
	for _, m := range mappings {
		boundPaths[m.FilePath] = true
	}

	trackByURI := make(map[string]models.Track, len(tracks))
	for _, t := range tracks {
		trackByURI[t.URI] = t
	}

	files, err := ScanAudioFiles(root)
	if err != nil {
		return nil, err
	}

	m := matcher.New(tracks, mappings)
	result := &AnalysisResult{TotalFiles: len(files)}

	for _, path := range files {
		if boundPaths[path] {
			result.AlreadyBound++
			continue
		}

		if uri := EmbeddedTrackID(path); uri != "" {
			if track, ok := trackByURI[uri]; ok {
				result.AutoMatches = append(result.AutoMatches, AutoMatch{
					FilePath: path,
					Track:    track,
					Score:    1.0,
					Reason:   "embedded track id",
				})
				continue
			}
			b.logger.Warn("embedded track id does not resolve", "path", path, "uri", uri)
		}

		matches := m.FindMatches(path, candidateFloor, maxCandidates, "", FileDuration(path))
		if len(matches) == 0 {
			result.Unmatched++
			result.NeedsSelection = append(result.NeedsSelection, SelectionNeeded{FilePath: path})
			continue
		}

		if matches[0].Score >= threshold {
			result.AutoMatches = append(result.AutoMatches, AutoMatch{
				FilePath: path,
				Track:    matches[0].Track,
				Score:    matches[0].Score,
				Reason:   matches[0].Reason,
			})
			continue
		}

		candidates := make([]Candidate, 0, len(matches))
		for _, match := range matches {
			candidates = append(candidates, Candidate{Track: match.Track, Score: match.Score, Reason: match.Reason})
		}
		result.NeedsSelection = append(result.NeedsSelection, SelectionNeeded{FilePath: path, Candidates: candidates})
	}

	b.logger.Info("binding analysis complete",
		"files", result.TotalFiles, "already_bound", result.AlreadyBound,
		"auto_matches", len(result.AutoMatches), "needs_selection", len(result.NeedsSelection))
	return result, nil
}

// Execute applies auto-matches plus user selections (file path → chosen URI).
// Each binding is validated before writing: the file must still exist, the
// URI must resolve, a same-URI rebind is a no-op, and a different-URI rebind
// is skipped as a conflict. Resolutions (URI → kept file path) settle any
// URIs left with multiple active bindings.
func (b *Binder) Execute(ctx context.Context, autoMatches []AutoMatch, selections map[string]string, resolutions map[string]string) (*ExecuteResult, error) {
	type intended struct {
		path string
		uri  string
	}

	var bindings []intended
	for _, am := range autoMatches {
		bindings = append(bindings, intended{path: am.FilePath, uri: am.Track.URI})
	}
	for path, uri := range selections {
		bindings = append(bindings, intended{path: path, uri: uri})
	}

	result := &ExecuteResult{}
	err := repositories.WithUnitOfWork(ctx, b.db, func(u *repositories.UnitOfWork) error {
		tracks := repositories.NewTrackRepository(u.Tx())
		mappingRepo := repositories.NewMappingRepository(u.Tx())

		for _, binding := range bindings {
			outcome := BindingOutcome{FilePath: binding.path, TrackURI: binding.uri}

			if _, err := os.Stat(binding.path); err != nil {
				outcome.Status = StatusFileMissing
				result.Skipped++
				result.Outcomes = append(result.Outcomes, outcome)
				continue
			}

			if _, err := tracks.Get(ctx, binding.uri); err != nil {
				if !errors.Is(err, shared.ErrNotFound) {
					return err
				}
				outcome.Status = StatusTrackMissing
				result.Skipped++
				result.Outcomes = append(result.Outcomes, outcome)
				continue
			}

			existing, err := mappingRepo.ActiveByPath(ctx, binding.path)
			switch {
			case err == nil && existing.TrackURI == binding.uri:
				outcome.Status = StatusAlreadyBound
				result.Outcomes = append(result.Outcomes, outcome)
				continue
			case err == nil:
				outcome.Status = StatusConflict
				result.Skipped++
				result.Outcomes = append(result.Outcomes, outcome)
				b.logger.Warn("mapping conflict", "path", binding.path,
					"bound_to", existing.TrackURI, "requested", binding.uri)
				continue
			case !errors.Is(err, shared.ErrNotFound):
				return err
			}

			hash, size, modified, err := fingerprintFile(binding.path)
			if err != nil {
				return err
			}

			mapping := models.FileMapping{
				FilePath:     binding.path,
				TrackURI:     binding.uri,
				FileHash:     hash,
				FileSize:     size,
				LastModified: &modified,
			}
			if _, err := mappingRepo.Create(ctx, mapping); err != nil {
				return err
			}
			outcome.Status = StatusBound
			result.Bound++
			result.Outcomes = append(result.Outcomes, outcome)
		}

		if len(resolutions) == 0 {
			return nil
		}

		duplicates, err := mappingRepo.DuplicateURIs(ctx)
		if err != nil {
			return err
		}
		for uri, keepPath := range resolutions {
			for _, m := range duplicates[uri] {
				if m.FilePath == keepPath {
					continue
				}
				if err := mappingRepo.Deactivate(ctx, m.ID); err != nil {
					return err
				}
				result.Resolved++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.logger.Info("binding execution complete",
		"bound", result.Bound, "skipped", result.Skipped, "resolved", result.Resolved)
	return result, nil
}

// ExistingDuplicateMappings lists URIs currently bound to more than one file.
func (b *Binder) ExistingDuplicateMappings(ctx context.Context) (map[string][]models.FileMapping, error) {
	return repositories.NewMappingRepository(b.db).DuplicateURIs(ctx)
}

// ResolveExistingDuplicateMappings keeps the chosen file per URI and
// soft-deletes the rest. resolutions maps URI to the file path to keep.
func (b *Binder) ResolveExistingDuplicateMappings(ctx context.Context, resolutions map[string]string) (int, error) {
	resolved := 0
	err := repositories.WithUnitOfWork(ctx, b.db, func(u *repositories.UnitOfWork) error {
		mappingRepo := u.Mappings()
		duplicates, err := mappingRepo.DuplicateURIs(ctx)
		if err != nil {
			return err
		}

		for uri, keepPath := range resolutions {
			for _, m := range duplicates[uri] {
				if m.FilePath == keepPath {
					continue
				}
				if err := mappingRepo.Deactivate(ctx, m.ID); err != nil {
					return err
				}
				resolved++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return resolved, nil
}

// CleanupStaleMappings soft-deletes active mappings whose file no longer
// exists on disk and returns the number removed.
func (b *Binder) CleanupStaleMappings(ctx context.Context) (int, error) {
	removed := 0
	err := repositories.WithUnitOfWork(ctx, b.db, func(u *repositories.UnitOfWork) error {
		mappingRepo := u.Mappings()
		mappings, err := mappingRepo.AllActive(ctx)
		if err != nil {
			return err
		}

		for _, m := range mappings {
			if _, err := os.Stat(m.FilePath); err == nil {
				continue
			}
			if err := mappingRepo.Deactivate(ctx, m.ID); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		b.logger.Info("stale mappings removed", "count", removed)
	}
	return removed, nil
}
