// package exporter regenerates playlist files from the catalog.
//
// Playlists are written as extended m3u files under an output directory
// whose folder layout is governed by a structure file (see [Structure]).
package exporter

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spindle/internal/models"
	"github.com/desertthunder/spindle/internal/repositories"
	"github.com/desertthunder/spindle/internal/shared"
)

const playlistExt = ".m3u"

// SanitizeName strips the characters that are unsafe in file names while
// preserving spaces.
func SanitizeName(name string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return -1
		}
		return r
	}, name))
}

// RegenerateResult reports one playlist regeneration.
type RegenerateResult struct {
	PlaylistID    string `json:"playlist_id"`
	PlaylistName  string `json:"playlist_name"`
	Path          string `json:"path"`
	TracksFound   int    `json:"tracks_found"`
	TracksWritten int    `json:"tracks_written"`
	Bytes         int64  `json:"bytes"`
}

// BatchResult accumulates a multi-playlist regeneration.
type BatchResult struct {
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Results   []RegenerateResult `json:"results"`
	Errors    map[string]string  `json:"errors,omitempty"`
}

// ReorganizeResult reports a layout reorganization.
type ReorganizeResult struct {
	Moved      int    `json:"moved"`
	Written    int    `json:"written"`
	Deleted    int    `json:"deleted"`
	BackupPath string `json:"backup_path,omitempty"`
}

// OrphanResult reports playlist files with no catalog counterpart.
type OrphanResult struct {
	Orphans []string `json:"orphans"`
	Deleted int      `json:"deleted"`
	DryRun  bool     `json:"dry_run"`
}

// Exporter writes playlist files from catalog state.
type Exporter struct {
	db     *sql.DB
	logger *log.Logger
}

// New creates an Exporter.
func New(db *sql.DB, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Exporter{db: db, logger: logger}
}

// exportData is the preloaded catalog state shared across a batch.
type exportData struct {
	playlists  map[string]models.Playlist
	membership map[string][]string
	tracks     map[string]models.Track
	pathByURI  map[string]string
}

// loadExportData batches every query a regeneration needs: playlists,
// memberships, referenced track metadata, and the URI to file index.
func (e *Exporter) loadExportData(ctx context.Context, playlistIDs []string) (*exportData, error) {
	playlists, err := repositories.NewPlaylistRepository(e.db).ByIDs(ctx, playlistIDs)
	if err != nil {
		return nil, err
	}

	membership, err := repositories.NewAssociationRepository(e.db).URIsBatch(ctx, playlistIDs)
	if err != nil {
		return nil, err
	}

	uriSet := make(map[string]bool)
	for _, uris := range membership {
		for _, uri := range uris {
			uriSet[uri] = true
		}
	}
	uris := make([]string, 0, len(uriSet))
	for uri := range uriSet {
		uris = append(uris, uri)
	}

	tracks, err := repositories.NewTrackRepository(e.db).ByURIs(ctx, uris)
	if err != nil {
		return nil, err
	}

	mappings, err := repositories.NewMappingRepository(e.db).AllActive(ctx)
	if err != nil {
		return nil, err
	}
	pathByURI := make(map[string]string, len(mappings))
	for _, m := range mappings {
		pathByURI[m.TrackURI] = m.FilePath
	}

	return &exportData{
		playlists:  playlists,
		membership: membership,
		tracks:     tracks,
		pathByURI:  pathByURI,
	}, nil
}

// RegeneratePlaylist rewrites one playlist file under outputDir, honoring
// the structure file's placement.
func (e *Exporter) RegeneratePlaylist(ctx context.Context, playlistID, outputDir string) (*RegenerateResult, error) {
	data, err := e.loadExportData(ctx, []string{playlistID})
	if err != nil {
		return nil, err
	}

	playlist, ok := data.playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, playlistID)
	}

	structure, err := LoadStructure(outputDir)
	if err != nil {
		return nil, err
	}
	return e.regenerateOne(playlist, data, outputDir, structure)
}

// RegenerateAll rewrites the given playlists, sharing one preload. A nil or
// empty ID list selects every catalog playlist.
func (e *Exporter) RegenerateAll(ctx context.Context, playlistIDs []string, outputDir string) (*BatchResult, error) {
	if len(playlistIDs) == 0 {
		playlists, err := repositories.NewPlaylistRepository(e.db).All(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range playlists {
			playlistIDs = append(playlistIDs, p.ID)
		}
	}

	data, err := e.loadExportData(ctx, playlistIDs)
	if err != nil {
		return nil, err
	}

	structure, err := LoadStructure(outputDir)
	if err != nil {
		return nil, err
	}

	batch := &BatchResult{Errors: make(map[string]string)}
	for _, id := range playlistIDs {
		playlist, ok := data.playlists[id]
		if !ok {
			batch.Failed++
			batch.Errors[id] = "playlist not found"
			continue
		}

		result, err := e.regenerateOne(playlist, data, outputDir, structure)
		if err != nil {
			batch.Failed++
			batch.Errors[id] = err.Error()
			continue
		}
		batch.Succeeded++
		batch.Results = append(batch.Results, *result)
	}
	return batch, nil
}

// regenerateOne writes one playlist file and removes stale same-name copies.
//
// Placement: the structure file wins; otherwise an existing file with the
// same stem (case-insensitive) keeps its directory; otherwise root.
func (e *Exporter) regenerateOne(playlist models.Playlist, data *exportData, outputDir string, structure *Structure) (*RegenerateResult, error) {
	name := SanitizeName(playlist.Name)
	if name == "" {
		name = playlist.ID
	}

	targetDir := outputDir
	if folder, ok := structure.LocationOf(name); ok {
		targetDir = filepath.Join(outputDir, folder)
	} else if existing := findPlaylistFile(outputDir, name); existing != "" {
		targetDir = filepath.Dir(existing)
	}

	uris := data.membership[playlist.ID]
	result := &RegenerateResult{PlaylistID: playlist.ID, PlaylistName: playlist.Name, TracksFound: len(uris)}

	var entries []Entry
	for _, uri := range uris {
		path, ok := data.pathByURI[uri]
		if !ok {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}

		track := data.tracks[uri]
		entries = append(entries, Entry{
			Path:        path,
			DurationSec: track.DurationMS / 1000,
			Artists:     track.Artists,
			Title:       track.Title,
		})
	}

	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", targetDir, err)
	}

	target := filepath.Join(targetDir, name+playlistExt)
	if err := WriteM3U(target, entries, true); err != nil {
		return nil, err
	}

	// One file per playlist name: drop stale copies elsewhere in the tree.
	for _, stale := range findPlaylistFiles(outputDir, name) {
		if stale != target {
			os.Remove(stale)
		}
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", target, err)
	}

	result.Path = target
	result.TracksWritten = len(entries)
	result.Bytes = info.Size()
	e.logger.Debug("playlist regenerated", "playlist", playlist.Name, "path", target, "tracks", len(entries))
	return result, nil
}

// Reorganize moves playlist files into the desired layout and persists it.
// When backup is set, the current tree is copied aside first.
func (e *Exporter) Reorganize(ctx context.Context, outputDir string, desired *Structure, backup bool) (*ReorganizeResult, error) {
	result := &ReorganizeResult{}

	if backup {
		backupPath := fmt.Sprintf("%s_backup_%s", strings.TrimRight(outputDir, "/"), time.Now().Format("20060102_150405"))
		if err := copyTree(outputDir, backupPath); err != nil {
			return nil, fmt.Errorf("failed to back up playlists: %w", err)
		}
		result.BackupPath = backupPath
	}

	// Parents before children.
	folders := make([]string, 0, len(desired.Folders))
	for folder := range desired.Folders {
		folders = append(folders, folder)
	}
	for _, folder := range folders {
		if err := os.MkdirAll(filepath.Join(outputDir, folder), 0755); err != nil {
			return nil, fmt.Errorf("failed to create folder %s: %w", folder, err)
		}
	}

	placements := make(map[string]string) // name -> relative folder
	for _, name := range desired.RootPlaylists {
		placements[name] = ""
	}
	for folder, entry := range desired.Folders {
		for _, name := range entry.Playlists {
			placements[name] = folder
		}
	}

	catalogByName, err := e.playlistsBySanitizedName(ctx)
	if err != nil {
		return nil, err
	}

	for name, folder := range placements {
		expected := filepath.Join(outputDir, folder, name+playlistExt)
		current := findPlaylistFile(outputDir, name)

		switch {
		case current == expected:
			// Already in place.
		case current != "":
			if err := os.Rename(current, expected); err != nil {
				return nil, fmt.Errorf("failed to move %s: %w", current, err)
			}
			result.Moved++
		default:
			playlist, ok := catalogByName[strings.ToLower(name)]
			if !ok {
				e.logger.Warn("structure names a playlist missing from the catalog", "name", name)
				continue
			}
			data, err := e.loadExportData(ctx, []string{playlist.ID})
			if err != nil {
				return nil, err
			}
			if _, err := e.regenerateOne(playlist, data, outputDir, desired); err != nil {
				return nil, err
			}
			result.Written++
		}
	}

	// Files whose stem the desired structure never mentions are removed.
	mentioned := desired.Names()
	for _, path := range allPlaylistFiles(outputDir) {
		stem := strings.TrimSuffix(filepath.Base(path), playlistExt)
		if !mentioned[stem] {
			if err := os.Remove(path); err != nil {
				return nil, fmt.Errorf("failed to remove %s: %w", path, err)
			}
			result.Deleted++
		}
	}

	if err := desired.Save(outputDir); err != nil {
		return nil, err
	}

	e.logger.Info("playlist layout reorganized",
		"moved", result.Moved, "written", result.Written, "deleted", result.Deleted)
	return result, nil
}

// CleanupOrphans finds playlist files whose stem matches no catalog playlist.
// dryRun reports; otherwise orphans are deleted and pruned from the
// structure file.
func (e *Exporter) CleanupOrphans(ctx context.Context, outputDir string, dryRun bool) (*OrphanResult, error) {
	catalogByName, err := e.playlistsBySanitizedName(ctx)
	if err != nil {
		return nil, err
	}

	result := &OrphanResult{DryRun: dryRun}
	for _, path := range allPlaylistFiles(outputDir) {
		stem := strings.TrimSuffix(filepath.Base(path), playlistExt)
		if _, ok := catalogByName[strings.ToLower(stem)]; !ok {
			result.Orphans = append(result.Orphans, path)
		}
	}

	if dryRun || len(result.Orphans) == 0 {
		return result, nil
	}

	structure, err := LoadStructure(outputDir)
	if err != nil {
		return nil, err
	}

	for _, path := range result.Orphans {
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("failed to remove %s: %w", path, err)
		}
		structure.Remove(strings.TrimSuffix(filepath.Base(path), playlistExt))
		result.Deleted++
	}

	if err := structure.Save(outputDir); err != nil {
		return nil, err
	}

	e.logger.Info("orphaned playlist files removed", "count", result.Deleted)
	return result, nil
}

func (e *Exporter) playlistsBySanitizedName(ctx context.Context) (map[string]models.Playlist, error) {
	playlists, err := repositories.NewPlaylistRepository(e.db).All(ctx)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]models.Playlist, len(playlists))
	for _, p := range playlists {
		byName[strings.ToLower(SanitizeName(p.Name))] = p
	}
	return byName, nil
}

// findPlaylistFile returns the first file under dir whose stem matches name
// case-insensitively, or "".
func findPlaylistFile(dir, name string) string {
	matches := findPlaylistFiles(dir, name)
	if len(matches) == 0 {
		return ""
	}
	return matches[0]
}

// findPlaylistFiles returns every file under dir whose stem matches name
// case-insensitively.
func findPlaylistFiles(dir, name string) []string {
	var matches []string
	target := strings.ToLower(name)
	for _, path := range allPlaylistFiles(dir) {
		stem := strings.TrimSuffix(filepath.Base(path), playlistExt)
		if strings.ToLower(stem) == target {
			matches = append(matches, path)
		}
	}
	return matches
}

// allPlaylistFiles lists every playlist file under dir recursively.
func allPlaylistFiles(dir string) []string {
	var files []string
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), playlistExt) {
			files = append(files, path)
		}
		return nil
	})
	return files
}

// copyTree copies src recursively to dst.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()

		out, err := os.Create(target)
		if err != nil {
			return err
		}
		defer out.Close()

		_, err = io.Copy(out, in)
		return err
	})
}
