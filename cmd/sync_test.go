package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/desertthunder/spindle/internal/models"
	"github.com/desertthunder/spindle/internal/repositories"
	"github.com/desertthunder/spindle/internal/services"
	"github.com/desertthunder/spindle/internal/shared"
	tu "github.com/desertthunder/spindle/internal/testing"
	"github.com/urfave/cli/v3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func testConfig() *shared.Config {
	config := shared.DefaultConfig()
	config.Library.MasterTracksDir = "/music"
	config.Library.PlaylistsDir = "/playlists"
	config.Library.MasterPlaylistID = "master"
	return config
}

func newSyncApp(t *testing.T, library *tu.MockLibrary, input string) (*cli.Command, *bytes.Buffer, *sql.DB) {
	t.Helper()
	db := setupTestDB(t)
	output := &bytes.Buffer{}

	runner := NewRunner(RunnerOpts{
		Config:  testConfig(),
		DB:      db,
		Library: library,
		Output:  output,
		Input:   strings.NewReader(input),
	})

	app := &cli.Command{
		Name:     "spindle",
		Commands: runner.register(),
	}
	return app, output, db
}

func TestSyncCommand(t *testing.T) {
	t.Run("Playlists Apply With Yes Flag", func(t *testing.T) {
		library := &tu.MockLibrary{
			Playlists: []services.RemotePlaylist{
				{ID: "pl-1", Name: "Chill", SnapshotID: "snap-1"},
			},
		}
		app, output, db := newSyncApp(t, library, "")

		err := app.Run(context.Background(), []string{"spindle", "sync", "playlists", "--yes"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if !strings.Contains(output.String(), "playlists sync complete") {
			t.Errorf("expected completion message, got %q", output.String())
		}

		stored, err := repositories.NewPlaylistRepository(db).Get(context.Background(), "pl-1")
		if err != nil {
			t.Fatalf("expected playlist to be persisted: %v", err)
		}
		if stored.Name != "Chill" {
			t.Errorf("expected name Chill, got %s", stored.Name)
		}
	})

	t.Run("Declined Confirmation Cancels", func(t *testing.T) {
		library := &tu.MockLibrary{
			Playlists: []services.RemotePlaylist{
				{ID: "pl-1", Name: "Chill", SnapshotID: "snap-1"},
			},
		}
		app, _, db := newSyncApp(t, library, "n\n")

		err := app.Run(context.Background(), []string{"spindle", "sync", "playlists"})
		if !errors.Is(err, shared.ErrCancelled) {
			t.Fatalf("expected ErrCancelled, got %v", err)
		}

		if _, err := repositories.NewPlaylistRepository(db).Get(context.Background(), "pl-1"); err == nil {
			t.Error("expected no playlist to be persisted after declining")
		}
	})

	t.Run("No Changes Skips Confirmation", func(t *testing.T) {
		library := &tu.MockLibrary{}
		app, output, _ := newSyncApp(t, library, "")

		err := app.Run(context.Background(), []string{"spindle", "sync", "playlists"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "up to date") {
			t.Errorf("expected up-to-date message, got %q", output.String())
		}
	})

	t.Run("Clear Drops Tokens", func(t *testing.T) {
		library := &tu.MockLibrary{}
		app, output, db := newSyncApp(t, library, "")

		playlists := repositories.NewPlaylistRepository(db)
		ctx := context.Background()
		if err := playlists.Create(ctx, models.Playlist{ID: "pl-1", Name: "Chill"}); err != nil {
			t.Fatalf("failed to seed playlist: %v", err)
		}
		if err := playlists.SetMasterSyncToken(ctx, "pl-1", "snap-1"); err != nil {
			t.Fatalf("failed to seed token: %v", err)
		}

		if err := app.Run(ctx, []string{"spindle", "sync", "clear"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "sync tokens cleared") {
			t.Errorf("expected clear message, got %q", output.String())
		}

		stored, err := playlists.Get(ctx, "pl-1")
		if err != nil {
			t.Fatalf("failed to reload playlist: %v", err)
		}
		if stored.MasterSyncToken != "" {
			t.Errorf("expected cleared token, got %q", stored.MasterSyncToken)
		}
	})

	t.Run("Full Pipeline Runs To Completion", func(t *testing.T) {
		library := &tu.MockLibrary{
			Playlists: []services.RemotePlaylist{
				{ID: "master", Name: "MAIN", SnapshotID: "snap-m"},
			},
			Items: map[string][]services.RemoteTrack{
				"master": {
					{URI: "spotify:track:a", Title: "Strobe", Artists: []string{"deadmau5"}, Album: "For Lack of a Better Name", DurationMS: 637000},
				},
			},
		}
		app, output, db := newSyncApp(t, library, "")

		err := app.Run(context.Background(), []string{"spindle", "sync", "all", "--yes"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "Sync pipeline complete") {
			t.Errorf("expected pipeline completion, got %q", output.String())
		}

		track, err := repositories.NewTrackRepository(db).Get(context.Background(), "spotify:track:a")
		if err != nil {
			t.Fatalf("expected track to be persisted: %v", err)
		}
		if track.Title != "Strobe" {
			t.Errorf("expected title Strobe, got %s", track.Title)
		}
	})
}
