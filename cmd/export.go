package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spindle/internal/exporter"
	"github.com/desertthunder/spindle/internal/formatter"
	"github.com/desertthunder/spindle/internal/repositories"
	"github.com/desertthunder/spindle/internal/shared"
	"github.com/urfave/cli/v3"
)

// ExportPlaylist regenerates one playlist file.
func (r *Runner) ExportPlaylist(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	dir, err := r.exportDir(cmd)
	if err != nil {
		return err
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	result, err := exporter.New(db, r.logger).RegeneratePlaylist(ctx, cmd.String("id"), dir)
	if err != nil {
		return err
	}

	return r.writePlain("✓ %s: %d of %d tracks written to %s\n",
		result.PlaylistName, result.TracksWritten, result.TracksFound, result.Path)
}

// ExportAll regenerates every playlist file.
func (r *Runner) ExportAll(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	dir, err := r.exportDir(cmd)
	if err != nil {
		return err
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	playlists, err := repositories.NewPlaylistRepository(db).All(ctx)
	if err != nil {
		return err
	}

	// The reference playlist mirrors the whole catalog; it gets no file.
	ids := make([]string, 0, len(playlists))
	for _, p := range playlists {
		if p.ID == r.config.Library.MasterPlaylistID {
			continue
		}
		ids = append(ids, p.ID)
	}
	if len(ids) == 0 {
		return r.writePlain("No playlists to export\n")
	}

	result, err := exporter.New(db, r.logger).RegenerateAll(ctx, ids, dir)
	if err != nil {
		return err
	}

	r.writePlain("✓ Regenerated %d playlists in %s\n", result.Succeeded, dir)
	for id, msg := range result.Errors {
		r.writePlain("  ✗ %s: %s\n", id, msg)
	}

	return nil
}

// ExportReorganize moves playlist files to match the stored folder structure.
func (r *Runner) ExportReorganize(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	dir, err := r.exportDir(cmd)
	if err != nil {
		return err
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	structure, err := exporter.LoadStructure(dir)
	if err != nil {
		return err
	}

	result, err := exporter.New(db, r.logger).Reorganize(ctx, dir, structure, !cmd.Bool("no-backup"))
	if err != nil {
		return err
	}

	r.writePlain("✓ Moved %d files, deleted %d\n", result.Moved, result.Deleted)
	if result.BackupPath != "" {
		r.writePlain("  Backup: %s\n", result.BackupPath)
	}

	return nil
}

// ExportOrphans removes playlist files with no catalog counterpart.
func (r *Runner) ExportOrphans(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	dir, err := r.exportDir(cmd)
	if err != nil {
		return err
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	result, err := exporter.New(db, r.logger).CleanupOrphans(ctx, dir, cmd.Bool("dry-run"))
	if err != nil {
		return err
	}

	if len(result.Orphans) == 0 {
		return r.writePlain("No orphaned playlist files\n")
	}

	for _, orphan := range result.Orphans {
		r.writePlain("  %s\n", orphan)
	}

	if result.DryRun {
		return r.writePlain("Would delete %d orphaned files\n", len(result.Orphans))
	}
	return r.writePlain("✓ Deleted %d orphaned files\n", result.Deleted)
}

// ExportCSV writes the whole track catalog to a CSV file.
func (r *Runner) ExportCSV(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	db, err := r.database()
	if err != nil {
		return err
	}

	tracks, err := repositories.NewTrackRepository(db).All(ctx)
	if err != nil {
		return err
	}

	output := cmd.String("output")
	if err := formatter.WriteTracksCSV(tracks, output); err != nil {
		return err
	}

	return r.writePlain("✓ Exported %d tracks to %s\n", len(tracks), output)
}

// exportDir resolves the output directory from the flag or the config.
func (r *Runner) exportDir(cmd *cli.Command) (string, error) {
	dir := cmd.String("dir")
	if dir == "" {
		dir = r.config.Library.PlaylistsDir
	}
	if dir == "" {
		return "", fmt.Errorf("%w: no directory given and library.playlists_dir is unset", shared.ErrInvalidConfig)
	}
	return dir, nil
}
