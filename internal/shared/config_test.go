package shared

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path == "" {
			t.Error("expected default database path")
		}
		if config.Server.Port == 0 {
			t.Error("expected default server port")
		}
		if config.Credentials.Spotify.RedirectURI == "" {
			t.Error("expected default redirect URI")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		t.Run("missing file", func(t *testing.T) {
			if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
				t.Error("expected error for missing file")
			}
		})

		t.Run("round trip through SaveConfig", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")

			config := DefaultConfig()
			config.Library.MasterPlaylistID = "master-1"
			config.Library.MasterTracksDir = "/music"
			config.Credentials.Spotify.ClientID = "id"

			if err := SaveConfig(path, config); err != nil {
				t.Fatalf("failed to save config: %v", err)
			}

			loaded, err := LoadConfig(path)
			if err != nil {
				t.Fatalf("failed to load config: %v", err)
			}
			if loaded.Library.MasterPlaylistID != "master-1" {
				t.Errorf("expected master playlist to survive, got %q", loaded.Library.MasterPlaylistID)
			}
			if loaded.Library.MasterTracksDir != "/music" {
				t.Errorf("expected tracks dir to survive, got %q", loaded.Library.MasterTracksDir)
			}
			if loaded.Credentials.Spotify.ClientID != "id" {
				t.Errorf("expected client id to survive, got %q", loaded.Credentials.Spotify.ClientID)
			}
		})

		t.Run("environment overrides", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := CreateConfigFile(path); err != nil {
				t.Fatalf("failed to create config: %v", err)
			}

			t.Setenv("MASTER_PLAYLIST_ID", "env-master")
			t.Setenv("DB_NAME", "env.db")

			config, err := LoadConfig(path)
			if err != nil {
				t.Fatalf("failed to load config: %v", err)
			}
			if config.Library.MasterPlaylistID != "env-master" {
				t.Errorf("expected env override, got %q", config.Library.MasterPlaylistID)
			}
			if config.Database.Path != "env.db" {
				t.Errorf("expected env override, got %q", config.Database.Path)
			}
		})
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := CreateConfigFile(path); err == nil {
			t.Error("expected error when file already exists")
		}
	})

	t.Run("ValidateLibrary", func(t *testing.T) {
		t.Run("complete settings pass", func(t *testing.T) {
			config := DefaultConfig()
			config.Library.MasterTracksDir = "/music"
			config.Library.PlaylistsDir = "/playlists"
			config.Library.MasterPlaylistID = "master"

			if err := config.ValidateLibrary(); err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})

		t.Run("missing settings are named", func(t *testing.T) {
			config := DefaultConfig()
			config.Library.MasterTracksDir = ""
			config.Library.PlaylistsDir = "/playlists"
			config.Library.MasterPlaylistID = "master"

			err := config.ValidateLibrary()
			if err == nil {
				t.Fatal("expected error for missing tracks dir")
			}
			if !strings.Contains(err.Error(), "library.master_tracks_dir") {
				t.Errorf("expected missing key in error, got %v", err)
			}
		})
	})

	t.Run("SpotifyConfig tokens", func(t *testing.T) {
		t.Run("Token is nil when unset", func(t *testing.T) {
			creds := SpotifyConfig{}
			if creds.Token() != nil {
				t.Error("expected nil token")
			}
		})

		t.Run("Update then Token round trips", func(t *testing.T) {
			creds := SpotifyConfig{RefreshToken: "old_refresh"}
			expiry := time.Now().Add(time.Hour).Truncate(time.Second)

			err := creds.Update(&oauth2.Token{
				AccessToken: "access",
				Expiry:      expiry,
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			token := creds.Token()
			if token == nil {
				t.Fatal("expected a token")
			}
			if token.AccessToken != "access" {
				t.Errorf("expected access token, got %q", token.AccessToken)
			}
			// A response without a refresh token keeps the old one.
			if token.RefreshToken != "old_refresh" {
				t.Errorf("expected retained refresh token, got %q", token.RefreshToken)
			}
			if !token.Expiry.Equal(expiry) {
				t.Errorf("expected expiry %v, got %v", expiry, token.Expiry)
			}
		})

		t.Run("Update rejects nil", func(t *testing.T) {
			creds := SpotifyConfig{}
			if err := creds.Update(nil); err == nil {
				t.Error("expected error for nil token")
			}
		})
	})
}
