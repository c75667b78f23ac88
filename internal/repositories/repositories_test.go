package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/desertthunder/spindle/internal/models"
	"github.com/desertthunder/spindle/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func TestPlaylistRepository(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	repo := NewPlaylistRepository(db)

	t.Run("Create And Get", func(t *testing.T) {
		if err := repo.Create(ctx, models.Playlist{ID: "p1", Name: "Morning"}); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		playlist, err := repo.Get(ctx, "p1")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if playlist.Name != "Morning" {
			t.Errorf("unexpected playlist: %+v", playlist)
		}
	})

	t.Run("Create Is Idempotent", func(t *testing.T) {
		if err := repo.Create(ctx, models.Playlist{ID: "p1", Name: "Other Name"}); err != nil {
			t.Fatalf("re-create failed: %v", err)
		}

		playlist, err := repo.Get(ctx, "p1")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if playlist.Name != "Morning" {
			t.Errorf("re-create must not overwrite, got %+v", playlist)
		}
	})

	t.Run("Rename", func(t *testing.T) {
		if err := repo.Rename(ctx, "p1", "Evening"); err != nil {
			t.Fatalf("rename failed: %v", err)
		}

		playlist, _ := repo.Get(ctx, "p1")
		if playlist.Name != "Evening" {
			t.Errorf("expected rename applied, got %s", playlist.Name)
		}

		if err := repo.Rename(ctx, "missing", "X"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Tokens", func(t *testing.T) {
		if err := repo.SetMasterSyncToken(ctx, "p1", "snap-1"); err != nil {
			t.Fatalf("set master token failed: %v", err)
		}
		if err := repo.SetAssociationsToken(ctx, "p1", "snap-2"); err != nil {
			t.Fatalf("set associations token failed: %v", err)
		}

		playlist, _ := repo.Get(ctx, "p1")
		if playlist.MasterSyncToken != "snap-1" || playlist.AssociationsToken != "snap-2" {
			t.Errorf("unexpected tokens: %+v", playlist)
		}

		if err := repo.ClearTokens(ctx); err != nil {
			t.Fatalf("clear failed: %v", err)
		}
		playlist, _ = repo.Get(ctx, "p1")
		if playlist.MasterSyncToken != "" || playlist.AssociationsToken != "" {
			t.Errorf("expected tokens cleared, got %+v", playlist)
		}
	})

	t.Run("ByIDs", func(t *testing.T) {
		if err := repo.Create(ctx, models.Playlist{ID: "p2", Name: "Second"}); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		result, err := repo.ByIDs(ctx, []string{"p1", "p2", "missing"})
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if len(result) != 2 {
			t.Errorf("expected 2 playlists, got %d", len(result))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := repo.Delete(ctx, "p2"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if _, err := repo.Get(ctx, "p2"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		// Deleting an absent row is a no-op.
		if err := repo.Delete(ctx, "p2"); err != nil {
			t.Errorf("repeated delete failed: %v", err)
		}
	})
}

func TestTrackRepository(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	repo := NewTrackRepository(db)

	added := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Create And Get", func(t *testing.T) {
		track := models.Track{
			URI:        "spotify:track:a",
			Title:      "Strobe",
			Artists:    "deadmau5",
			Album:      "For Lack of a Better Name",
			DurationMS: 637000,
			AddedAt:    &added,
		}
		if err := repo.Create(ctx, track); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		got, err := repo.Get(ctx, "spotify:track:a")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.Title != "Strobe" || got.DurationMS != 637000 {
			t.Errorf("unexpected track: %+v", got)
		}
		if got.AddedAt == nil || !got.AddedAt.Equal(added) {
			t.Errorf("unexpected added_at: %v", got.AddedAt)
		}
	})

	t.Run("Create Upserts On Conflict", func(t *testing.T) {
		if err := repo.Create(ctx, models.Track{
			URI: "spotify:track:a", Title: "Strobe (Club Edit)", Artists: "deadmau5", DurationMS: 400000,
		}); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}

		got, _ := repo.Get(ctx, "spotify:track:a")
		if got.Title != "Strobe (Club Edit)" || got.DurationMS != 400000 {
			t.Errorf("expected refreshed fields, got %+v", got)
		}
	})

	t.Run("Update", func(t *testing.T) {
		if err := repo.Update(ctx, models.Track{URI: "spotify:track:a", Title: "Strobe", Artists: "deadmau5"}); err != nil {
			t.Fatalf("update failed: %v", err)
		}
		if err := repo.Update(ctx, models.Track{URI: "spotify:track:missing", Title: "X"}); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Local Track Fields", func(t *testing.T) {
		track := models.Track{
			URI:          models.LocalTrackURI("Unknown", "", "Bootleg", 180),
			Title:        "Bootleg",
			Artists:      "Unknown",
			IsLocal:      true,
			SurrogateKey: models.LocalSurrogateKey("Unknown", "Bootleg"),
		}
		if err := repo.Create(ctx, track); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		got, err := repo.Get(ctx, track.URI)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if !got.IsLocal || got.SurrogateKey != track.SurrogateKey {
			t.Errorf("unexpected local track: %+v", got)
		}
	})

	t.Run("ByURIs Chunks Large Sets", func(t *testing.T) {
		uris := make([]string, 0, 600)
		for i := 0; i < 600; i++ {
			uri := fmt.Sprintf("spotify:track:bulk%03d", i)
			if err := repo.Create(ctx, models.Track{URI: uri, Title: "Bulk", Artists: "A"}); err != nil {
				t.Fatalf("create failed: %v", err)
			}
			uris = append(uris, uri)
		}

		result, err := repo.ByURIs(ctx, uris)
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if len(result) != 600 {
			t.Errorf("expected 600 tracks, got %d", len(result))
		}
	})
}

func TestAssociationRepository(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	playlists := NewPlaylistRepository(db)
	tracks := NewTrackRepository(db)
	assoc := NewAssociationRepository(db)

	for _, id := range []string{"p1", "p2"} {
		if err := playlists.Create(ctx, models.Playlist{ID: id, Name: id}); err != nil {
			t.Fatalf("failed to seed playlist: %v", err)
		}
	}
	for _, uri := range []string{"spotify:track:a", "spotify:track:b"} {
		if err := tracks.Create(ctx, models.Track{URI: uri, Title: uri, Artists: "X"}); err != nil {
			t.Fatalf("failed to seed track: %v", err)
		}
	}

	t.Run("Add Is Set Semantics", func(t *testing.T) {
		if err := assoc.Add(ctx, "p1", "spotify:track:a"); err != nil {
			t.Fatalf("add failed: %v", err)
		}
		if err := assoc.Add(ctx, "p1", "spotify:track:a"); err != nil {
			t.Fatalf("duplicate add failed: %v", err)
		}

		uris, err := assoc.URIsForPlaylist(ctx, "p1")
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if len(uris) != 1 {
			t.Errorf("expected set semantics, got %v", uris)
		}
	})

	t.Run("Remove Absent Edge Is No-Op", func(t *testing.T) {
		if err := assoc.Remove(ctx, "p1", "spotify:track:b"); err != nil {
			t.Errorf("remove failed: %v", err)
		}
	})

	t.Run("Batch Queries", func(t *testing.T) {
		if err := assoc.Add(ctx, "p2", "spotify:track:a"); err != nil {
			t.Fatalf("add failed: %v", err)
		}
		if err := assoc.Add(ctx, "p2", "spotify:track:b"); err != nil {
			t.Fatalf("add failed: %v", err)
		}

		all, err := assoc.AllMappings(ctx)
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if len(all["p2"]) != 2 || len(all["p1"]) != 1 {
			t.Errorf("unexpected mappings: %v", all)
		}

		batch, err := assoc.URIsBatch(ctx, []string{"p2"})
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if len(batch) != 1 || len(batch["p2"]) != 2 {
			t.Errorf("unexpected batch: %v", batch)
		}

		ids, err := assoc.PlaylistIDsForTrack(ctx, "spotify:track:a")
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if len(ids) != 2 {
			t.Errorf("expected track in both playlists, got %v", ids)
		}
	})

	t.Run("Track Delete Cascades Edges", func(t *testing.T) {
		if err := tracks.Delete(ctx, "spotify:track:b"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}

		uris, err := assoc.URIsForPlaylist(ctx, "p2")
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		for _, uri := range uris {
			if uri == "spotify:track:b" {
				t.Error("expected cascade to remove edge")
			}
		}
	})

	t.Run("DeleteAllForTrack", func(t *testing.T) {
		if err := assoc.DeleteAllForTrack(ctx, "spotify:track:a"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		ids, _ := assoc.PlaylistIDsForTrack(ctx, "spotify:track:a")
		if len(ids) != 0 {
			t.Errorf("expected no memberships, got %v", ids)
		}
	})
}

func TestMappingRepository(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	tracks := NewTrackRepository(db)
	repo := NewMappingRepository(db)

	for _, uri := range []string{"spotify:track:a", "spotify:track:b"} {
		if err := tracks.Create(ctx, models.Track{URI: uri, Title: uri, Artists: "X"}); err != nil {
			t.Fatalf("failed to seed track: %v", err)
		}
	}

	t.Run("Create And ActiveByPath", func(t *testing.T) {
		modified := time.Now().Truncate(time.Second)
		id, err := repo.Create(ctx, models.FileMapping{
			FilePath:     "/music/a.mp3",
			TrackURI:     "spotify:track:a",
			FileHash:     "abc123",
			FileSize:     1024,
			LastModified: &modified,
		})
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if id == 0 {
			t.Error("expected generated id")
		}

		m, err := repo.ActiveByPath(ctx, "/music/a.mp3")
		if err != nil {
			t.Fatalf("lookup failed: %v", err)
		}
		if m.TrackURI != "spotify:track:a" || m.FileHash != "abc123" || m.FileSize != 1024 {
			t.Errorf("unexpected mapping: %+v", m)
		}
		if !m.Active {
			t.Error("expected active mapping")
		}
	})

	t.Run("One Active Mapping Per Path", func(t *testing.T) {
		// The partial unique index only constrains active rows.
		if _, err := repo.Create(ctx, models.FileMapping{FilePath: "/music/a.mp3", TrackURI: "spotify:track:b"}); err == nil {
			t.Error("expected second active mapping for same path to fail")
		}

		if err := repo.DeactivateByPath(ctx, "/music/a.mp3"); err != nil {
			t.Fatalf("deactivate failed: %v", err)
		}
		if _, err := repo.Create(ctx, models.FileMapping{FilePath: "/music/a.mp3", TrackURI: "spotify:track:b"}); err != nil {
			t.Errorf("rebind after deactivation failed: %v", err)
		}
	})

	t.Run("DuplicateURIs", func(t *testing.T) {
		if _, err := repo.Create(ctx, models.FileMapping{FilePath: "/music/b-copy.mp3", TrackURI: "spotify:track:b"}); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		dupes, err := repo.DuplicateURIs(ctx)
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if len(dupes) != 1 || len(dupes["spotify:track:b"]) != 2 {
			t.Errorf("unexpected duplicates: %v", dupes)
		}
	})

	t.Run("AllActive Excludes Deactivated", func(t *testing.T) {
		mappings, err := repo.AllActive(ctx)
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		for _, m := range mappings {
			if !m.Active {
				t.Errorf("inactive mapping in result: %+v", m)
			}
		}

		if len(mappings) > 0 {
			if err := repo.Deactivate(ctx, mappings[0].ID); err != nil {
				t.Fatalf("deactivate failed: %v", err)
			}
			after, _ := repo.AllActive(ctx)
			if len(after) != len(mappings)-1 {
				t.Errorf("expected one fewer active mapping, got %d", len(after))
			}
		}
	})
}

func TestRunRepository(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	repo := NewRunRepository(db)

	t.Run("Create And Complete", func(t *testing.T) {
		run, err := repo.Create(ctx, "tracks", "tracks")
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if run.Status != RunStatusStarted {
			t.Errorf("unexpected status: %s", run.Status)
		}

		stats := models.Stats{Added: 5, Deleted: 1, Unchanged: 20}
		if err := repo.Complete(ctx, run.ID, RunStatusCompleted, stats, ""); err != nil {
			t.Fatalf("complete failed: %v", err)
		}

		runs, err := repo.Recent(ctx, 5)
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if len(runs) != 1 || runs[0].Stats.Added != 5 || runs[0].CompletedAt == nil {
			t.Errorf("unexpected run: %+v", runs)
		}
	})

	t.Run("Complete Missing Run", func(t *testing.T) {
		err := repo.Complete(ctx, "missing", RunStatusFailed, models.Stats{}, "boom")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestUnitOfWork(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	t.Run("Commit Persists", func(t *testing.T) {
		err := WithUnitOfWork(ctx, db, func(u *UnitOfWork) error {
			return u.Playlists().Create(ctx, models.Playlist{ID: "p1", Name: "One"})
		})
		if err != nil {
			t.Fatalf("unit of work failed: %v", err)
		}

		if _, err := NewPlaylistRepository(db).Get(ctx, "p1"); err != nil {
			t.Errorf("expected committed row: %v", err)
		}
	})

	t.Run("Error Rolls Back", func(t *testing.T) {
		sentinel := errors.New("abort")
		err := WithUnitOfWork(ctx, db, func(u *UnitOfWork) error {
			if err := u.Playlists().Create(ctx, models.Playlist{ID: "p2", Name: "Two"}); err != nil {
				return err
			}
			return sentinel
		})
		if !errors.Is(err, sentinel) {
			t.Fatalf("expected sentinel error, got %v", err)
		}

		if _, err := NewPlaylistRepository(db).Get(ctx, "p2"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected rollback, got %v", err)
		}
	})

	t.Run("Repositories Share The Transaction", func(t *testing.T) {
		err := WithUnitOfWork(ctx, db, func(u *UnitOfWork) error {
			if err := u.Tracks().Create(ctx, models.Track{URI: "spotify:track:x", Title: "X", Artists: "A"}); err != nil {
				return err
			}
			return u.Associations().Add(ctx, "p1", "spotify:track:x")
		})
		if err != nil {
			t.Fatalf("unit of work failed: %v", err)
		}

		uris, err := NewAssociationRepository(db).URIsForPlaylist(ctx, "p1")
		if err != nil || len(uris) != 1 {
			t.Errorf("expected committed edge, got %v, %v", uris, err)
		}
	})
}
