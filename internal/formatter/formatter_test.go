package formatter

import (
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/spindle/internal/dedupe"
	"github.com/desertthunder/spindle/internal/models"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms   int
		want string
	}{
		{0, "0:00"},
		{61000, "1:01"},
		{637000, "10:37"},
		{3599000, "59:59"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.ms); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestTracksToCSV(t *testing.T) {
	tracks := []models.Track{
		{URI: "spotify:track:a", Title: "Strobe", Artists: "deadmau5", Album: "For Lack of a Better Name", DurationMS: 637000},
		{URI: "spotify:local:x", Title: "Bootleg, Vol. 1", Artists: "Unknown", IsLocal: true},
	}

	data, err := TracksToCSV(tracks)
	if err != nil {
		t.Fatalf("failed to generate CSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "URI,Title,Artists,Album,Duration,Local" {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "10:37") {
		t.Errorf("expected formatted duration, got %s", lines[1])
	}
	// The comma in the title forces quoting.
	if !strings.Contains(lines[2], `"Bootleg, Vol. 1"`) {
		t.Errorf("expected quoted title, got %s", lines[2])
	}
	if !strings.HasSuffix(lines[2], "true") {
		t.Errorf("expected local flag, got %s", lines[2])
	}
}

func TestDuplicatesToMarkdown(t *testing.T) {
	result := &dedupe.Result{
		Groups: []dedupe.Group{
			{
				Primary: models.Track{URI: "spotify:track:ext", Title: "Song (Extended Mix)", Artists: "Artist", DurationMS: 405000},
				Duplicates: []models.Track{
					{URI: "spotify:track:radio", Title: "Song (Radio Edit)", Artists: "Artist", DurationMS: 190000},
				},
				PlaylistsToMerge: []string{"pl-radio"},
			},
		},
	}

	md := string(DuplicatesToMarkdown(result))

	if !strings.Contains(md, "**Groups**: 1") {
		t.Errorf("expected group count, got:\n%s", md)
	}
	if !strings.Contains(md, "**Keep**: Artist - Song (Extended Mix) [6:45]") {
		t.Errorf("expected primary line, got:\n%s", md)
	}
	if !strings.Contains(md, "- Artist - Song (Radio Edit) [3:10] (spotify:track:radio)") {
		t.Errorf("expected duplicate line, got:\n%s", md)
	}
	if !strings.Contains(md, "**Memberships to merge**: 1") {
		t.Errorf("expected merge count, got:\n%s", md)
	}
}

func TestRunsToText(t *testing.T) {
	t.Run("Empty History", func(t *testing.T) {
		out := string(RunsToText(nil))
		if !strings.Contains(out, "No sync runs") {
			t.Errorf("unexpected output: %s", out)
		}
	})

	t.Run("Formats Runs", func(t *testing.T) {
		started := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)
		runs := []models.SyncRun{
			{
				Action:    "playlists",
				Stage:     "playlists",
				Status:    "completed",
				Stats:     models.Stats{Added: 2, Updated: 1, Unchanged: 10},
				StartedAt: started,
			},
			{
				Action:       "tracks",
				Stage:        "tracks",
				Status:       "failed",
				ErrorMessage: "remote service unavailable",
				StartedAt:    started,
			},
		}

		out := string(RunsToText(runs))
		if !strings.Contains(out, "2026-08-20 09:30:00") {
			t.Errorf("expected timestamp, got:\n%s", out)
		}
		if !strings.Contains(out, "+2 ~1 -0 =10") {
			t.Errorf("expected stats summary, got:\n%s", out)
		}
		if !strings.Contains(out, "remote service unavailable") {
			t.Errorf("expected error message, got:\n%s", out)
		}
	})
}
