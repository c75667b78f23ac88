// package formatter renders catalog data for CLI output and file export
// (CSV, Markdown, plain text).
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/desertthunder/spindle/internal/dedupe"
	"github.com/desertthunder/spindle/internal/models"
)

// FormatDuration renders milliseconds as m:ss.
func FormatDuration(ms int) string {
	totalSec := ms / 1000
	return fmt.Sprintf("%d:%02d", totalSec/60, totalSec%60)
}

// TracksToCSV converts tracks to CSV with columns: URI, Title, Artists, Album, Duration, Local
func TracksToCSV(tracks []models.Track) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"URI", "Title", "Artists", "Album", "Duration", "Local"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range tracks {
		record := []string{
			track.URI,
			track.Title,
			track.Artists,
			track.Album,
			FormatDuration(track.DurationMS),
			strconv.FormatBool(track.IsLocal),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteTracksCSV writes the catalog CSV export to path.
func WriteTracksCSV(tracks []models.Track, path string) error {
	data, err := TracksToCSV(tracks)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write CSV file: %w", err)
	}
	return nil
}

// DuplicatesToMarkdown renders a duplicate detection result as a Markdown report.
func DuplicatesToMarkdown(result *dedupe.Result) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Duplicate Tracks\n\n")
	buf.WriteString(fmt.Sprintf("**Groups**: %d\n\n", len(result.Groups)))

	for i, group := range result.Groups {
		buf.WriteString(fmt.Sprintf("## Group %d\n\n", i+1))
		buf.WriteString(fmt.Sprintf("**Keep**: %s - %s [%s]\n\n",
			group.Primary.Artists, group.Primary.Title, FormatDuration(group.Primary.DurationMS)))

		buf.WriteString("**Remove**:\n\n")
		for _, dup := range group.Duplicates {
			buf.WriteString(fmt.Sprintf("- %s - %s [%s] (%s)\n",
				dup.Artists, dup.Title, FormatDuration(dup.DurationMS), dup.URI))
		}
		if len(group.PlaylistsToMerge) > 0 {
			buf.WriteString(fmt.Sprintf("\n**Memberships to merge**: %d\n", len(group.PlaylistsToMerge)))
		}
		buf.WriteString("\n")
	}

	return buf.Bytes()
}

// RunsToText renders sync run history as aligned plain text, newest first.
func RunsToText(runs []models.SyncRun) []byte {
	var buf bytes.Buffer

	if len(runs) == 0 {
		buf.WriteString("No sync runs recorded.\n")
		return buf.Bytes()
	}

	for _, run := range runs {
		line := fmt.Sprintf("%s  %-12s %-12s %-9s +%d ~%d -%d =%d",
			run.StartedAt.Format("2006-01-02 15:04:05"),
			run.Action,
			run.Stage,
			run.Status,
			run.Stats.Added,
			run.Stats.Updated,
			run.Stats.Deleted,
			run.Stats.Unchanged,
		)
		buf.WriteString(line)
		if run.ErrorMessage != "" {
			buf.WriteString("  " + run.ErrorMessage)
		}
		buf.WriteByte('\n')
	}

	return buf.Bytes()
}
