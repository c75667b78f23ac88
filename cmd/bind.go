package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/desertthunder/spindle/internal/binder"
	"github.com/desertthunder/spindle/internal/shared"
	"github.com/desertthunder/spindle/internal/ui"
	"github.com/urfave/cli/v3"
)

// BindAnalyze scans a directory and reports how each unbound file would match.
func (r *Runner) BindAnalyze(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	root, err := r.scanRoot(cmd)
	if err != nil {
		return err
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	result, err := binder.New(db, r.logger).Analyze(ctx, root, cmd.Float("threshold"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}

	r.writePlainHeader("Binding Analysis")
	r.writePlain("Files scanned: %d\n", result.TotalFiles)
	r.writePlain("Already bound: %d\n", result.AlreadyBound)
	r.writePlain("Auto matches: %d\n", len(result.AutoMatches))
	r.writePlain("Need review: %d\n", len(result.NeedsSelection))
	r.writePlain("Unmatched: %d\n", result.Unmatched)

	for _, match := range result.AutoMatches {
		r.writePlain("\n  %s\n    → %s - %s (%.0f%%)\n",
			filepath.Base(match.FilePath), match.Track.Artists, match.Track.Title, match.Score*100)
	}

	return nil
}

// BindRun analyzes, optionally opens the match picker for low-confidence
// files, and persists the resulting bindings.
func (r *Runner) BindRun(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	root, err := r.scanRoot(cmd)
	if err != nil {
		return err
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	b := binder.New(db, r.logger)
	result, err := b.Analyze(ctx, root, cmd.Float("threshold"))
	if err != nil {
		return err
	}

	if len(result.AutoMatches) == 0 && len(result.NeedsSelection) == 0 {
		return r.writePlain("Nothing to bind: %d files scanned, %d already bound\n",
			result.TotalFiles, result.AlreadyBound)
	}

	selections := map[string]string{}
	if cmd.Bool("interactive") && len(result.NeedsSelection) > 0 {
		if selections, err = ui.Run(result.NeedsSelection); err != nil {
			return err
		}
	}

	r.writePlain("Auto matches: %d, manual selections: %d\n", len(result.AutoMatches), len(selections))
	if !cmd.Bool("yes") && !r.confirm("Apply these bindings?") {
		return fmt.Errorf("%w: binding aborted", shared.ErrCancelled)
	}

	outcome, err := b.Execute(ctx, result.AutoMatches, selections, nil)
	if err != nil {
		return err
	}

	r.writePlain("✓ Bound %d files, skipped %d\n", outcome.Bound, outcome.Skipped)
	for _, o := range outcome.Outcomes {
		if o.Status != binder.StatusBound {
			r.writePlain("  %s: %s\n", filepath.Base(o.FilePath), o.Status)
		}
	}

	return nil
}

// BindCleanup deactivates mappings whose files have disappeared.
func (r *Runner) BindCleanup(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	db, err := r.database()
	if err != nil {
		return err
	}

	removed, err := binder.New(db, r.logger).CleanupStaleMappings(ctx)
	if err != nil {
		return err
	}

	return r.writePlain("✓ Deactivated %d stale mappings\n", removed)
}

// BindDuplicates lists tracks bound to multiple files and optionally resolves
// them down to one mapping each.
func (r *Runner) BindDuplicates(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	db, err := r.database()
	if err != nil {
		return err
	}

	b := binder.New(db, r.logger)

	resolutions, err := parseResolutions(cmd.StringSlice("keep"))
	if err != nil {
		return err
	}

	if len(resolutions) > 0 {
		resolved, err := b.ResolveExistingDuplicateMappings(ctx, resolutions)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Resolved %d duplicate mappings\n", resolved)
	}

	duplicates, err := b.ExistingDuplicateMappings(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(duplicates, true)
	}

	if len(duplicates) == 0 {
		return r.writePlain("No duplicate mappings found\n")
	}

	for uri, mappings := range duplicates {
		r.writePlain("%s\n", uri)
		for _, m := range mappings {
			r.writePlain("  %s\n", m.FilePath)
		}
	}

	return nil
}

// scanRoot resolves the directory to scan from the flag or the config.
func (r *Runner) scanRoot(cmd *cli.Command) (string, error) {
	root := cmd.String("dir")
	if root == "" {
		root = r.config.Library.MasterTracksDir
	}
	if root == "" {
		return "", fmt.Errorf("%w: no directory given and library.master_tracks_dir is unset", shared.ErrInvalidConfig)
	}
	return root, nil
}

// parseResolutions splits track_uri=file_path pairs.
func parseResolutions(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	resolutions := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		uri, path, found := strings.Cut(pair, "=")
		if !found || uri == "" || path == "" {
			return nil, fmt.Errorf("%w: --keep must be track_uri=file_path, got %q", shared.ErrInvalidRequest, pair)
		}
		resolutions[uri] = path
	}
	return resolutions, nil
}
