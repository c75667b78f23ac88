package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/spindle/internal/models"
	"github.com/desertthunder/spindle/internal/repositories"
	tu "github.com/desertthunder/spindle/internal/testing"
)

func TestExportAllCommand(t *testing.T) {
	app, output, db := newSyncApp(t, &tu.MockLibrary{}, "")
	ctx := context.Background()
	outDir := t.TempDir()
	musicDir := t.TempDir()

	playlists := repositories.NewPlaylistRepository(db)
	if err := playlists.Create(ctx, models.Playlist{ID: "master", Name: "MASTER"}); err != nil {
		t.Fatalf("failed to seed master: %v", err)
	}
	if err := playlists.Create(ctx, models.Playlist{ID: "pl-1", Name: "Chill"}); err != nil {
		t.Fatalf("failed to seed playlist: %v", err)
	}

	if err := repositories.NewTrackRepository(db).Create(ctx, models.Track{
		URI: "spotify:track:a", Title: "Strobe", Artists: "deadmau5", DurationMS: 637000,
	}); err != nil {
		t.Fatalf("failed to seed track: %v", err)
	}
	if err := repositories.NewAssociationRepository(db).Add(ctx, "pl-1", "spotify:track:a"); err != nil {
		t.Fatalf("failed to seed membership: %v", err)
	}

	audio := filepath.Join(musicDir, "Strobe.mp3")
	if err := os.WriteFile(audio, []byte("audio"), 0644); err != nil {
		t.Fatalf("failed to write audio file: %v", err)
	}
	if _, err := repositories.NewMappingRepository(db).Create(ctx, models.FileMapping{
		FilePath: audio,
		TrackURI: "spotify:track:a",
	}); err != nil {
		t.Fatalf("failed to seed mapping: %v", err)
	}

	if err := app.Run(ctx, []string{"spindle", "export", "all", "--dir", outDir}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !strings.Contains(output.String(), "Regenerated 1 playlists") {
		t.Errorf("expected one playlist regenerated, got %q", output.String())
	}
	if _, err := os.Stat(filepath.Join(outDir, "Chill.m3u")); err != nil {
		t.Errorf("expected Chill.m3u written: %v", err)
	}
	// The reference playlist never gets a file of its own.
	if _, err := os.Stat(filepath.Join(outDir, "MASTER.m3u")); !os.IsNotExist(err) {
		t.Error("expected no file for the reference playlist")
	}
}
