package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/spindle/internal/dedupe"
	"github.com/desertthunder/spindle/internal/formatter"
	"github.com/desertthunder/spindle/internal/shared"
	"github.com/urfave/cli/v3"
)

// DupesDetect reports confirmed duplicate groups without modifying anything.
func (r *Runner) DupesDetect(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	db, err := r.database()
	if err != nil {
		return err
	}

	result, err := dedupe.New(db, r.logger).Detect(ctx)
	if err != nil {
		return err
	}

	if output := cmd.String("output"); output != "" {
		if err := os.WriteFile(output, formatter.DuplicatesToMarkdown(result), 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		return r.writePlain("✓ Report written to %s\n", output)
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}

	if len(result.Groups) == 0 {
		return r.writePlain("No duplicates found\n")
	}

	return r.writePlain("%s", formatter.DuplicatesToMarkdown(result))
}

// DupesCleanup merges memberships into each group's primary and removes the
// duplicate rows.
func (r *Runner) DupesCleanup(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	db, err := r.database()
	if err != nil {
		return err
	}

	engine := dedupe.New(db, r.logger)
	dryRun := cmd.Bool("dry-run")

	if !dryRun && !cmd.Bool("yes") {
		preview, err := engine.Detect(ctx)
		if err != nil {
			return err
		}
		if len(preview.Groups) == 0 {
			return r.writePlain("No duplicates found\n")
		}
		r.writePlain("Found %d duplicate groups\n", len(preview.Groups))
		if !r.confirm("Remove duplicates and merge memberships?") {
			return fmt.Errorf("%w: cleanup aborted", shared.ErrCancelled)
		}
	}

	result, err := engine.Cleanup(ctx, dryRun)
	if err != nil {
		return err
	}

	if dryRun {
		return r.writePlain("Would remove %d tracks across %d groups (%d memberships to merge)\n",
			result.TracksRemoved, len(result.Groups), result.EdgesMerged)
	}

	return r.writePlain("✓ Removed %d tracks, merged %d memberships\n", result.TracksRemoved, result.EdgesMerged)
}
