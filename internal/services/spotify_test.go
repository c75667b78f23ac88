package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/spindle/internal/shared"
)

// newTestService returns a SpotifyService pointed at the given test server.
func newTestService(t *testing.T, serverURL string) *SpotifyService {
	t.Helper()

	credentials := map[string]string{
		"client_id":     "test_client_id",
		"client_secret": "test_client_secret",
	}

	srv, err := NewSpotifyService(credentials)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	if err := srv.Authenticate(context.Background(), map[string]string{"access_token": "test_token"}); err != nil {
		t.Fatalf("failed to authenticate: %v", err)
	}

	srv.baseURL = serverURL
	srv.httpClient = http.DefaultClient
	return srv
}

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			credentials := map[string]string{
				"client_id":     "test_client_id",
				"client_secret": "test_client_secret",
				"redirect_uri":  "http://localhost:9090/callback",
			}

			srv, err := NewSpotifyService(credentials)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if srv == nil {
				t.Fatal("expected service to be created")
			}

			if srv.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", srv.Name())
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			credentials := map[string]string{
				"client_secret": "test_client_secret",
			}

			_, err := NewSpotifyService(credentials)
			if !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig for missing client_id, got %v", err)
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			credentials := map[string]string{
				"client_id": "test_client_id",
			}

			_, err := NewSpotifyService(credentials)
			if !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig for missing client_secret, got %v", err)
			}
		})

		t.Run("Default Redirect URI", func(t *testing.T) {
			credentials := map[string]string{
				"client_id":     "test_client_id",
				"client_secret": "test_client_secret",
			}

			srv, err := NewSpotifyService(credentials)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if srv.config.RedirectURL != "http://localhost:8080/callback" {
				t.Errorf("expected default redirect URI, got %s", srv.config.RedirectURL)
			}
		})
	})

	t.Run("GetAuthURL", func(t *testing.T) {
		credentials := map[string]string{
			"client_id":     "test_client_id",
			"client_secret": "test_client_secret",
		}

		srv, err := NewSpotifyService(credentials)
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		authURL := srv.GetAuthURL("test_state")
		if !strings.Contains(authURL, "accounts.spotify.com") {
			t.Error("auth URL should contain Spotify domain")
		}
		if !strings.Contains(authURL, "test_client_id") {
			t.Error("auth URL should contain client_id")
		}
		if !strings.Contains(authURL, "test_state") {
			t.Error("auth URL should contain state")
		}
	})

	t.Run("Authenticate", func(t *testing.T) {
		credentials := map[string]string{
			"client_id":     "test_client_id",
			"client_secret": "test_client_secret",
		}

		srv, err := NewSpotifyService(credentials)
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		t.Run("With Access Token", func(t *testing.T) {
			err := srv.Authenticate(context.Background(), map[string]string{"access_token": "test_access_token"})
			if err != nil {
				t.Errorf("expected no error with access token, got %v", err)
			}

			if srv.token == nil || srv.token.AccessToken != "test_access_token" {
				t.Error("expected token to be set")
			}
		})

		t.Run("Missing Credentials", func(t *testing.T) {
			err := srv.Authenticate(context.Background(), map[string]string{})
			if !errors.Is(err, shared.ErrAuthFailed) {
				t.Errorf("expected ErrAuthFailed, got %v", err)
			}
		})
	})

	t.Run("Unauthenticated Request", func(t *testing.T) {
		credentials := map[string]string{
			"client_id":     "test_client_id",
			"client_secret": "test_client_secret",
		}

		srv, err := NewSpotifyService(credentials)
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		_, err = srv.ListUserPlaylists(context.Background(), FilterConfig{})
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed before Authenticate, got %v", err)
		}
	})

	t.Run("Library Interface", func(t *testing.T) {
		credentials := map[string]string{
			"client_id":     "test_client_id",
			"client_secret": "test_client_secret",
		}

		srv, err := NewSpotifyService(credentials)
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		var _ Library = srv
	})
}

func TestSpotifyListUserPlaylists(t *testing.T) {
	t.Run("Paginates And Filters", func(t *testing.T) {
		var serverURL string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/me/playlists" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}

			offset := r.URL.Query().Get("offset")
			w.Header().Set("Content-Type", "application/json")

			if offset == "0" {
				next := serverURL + "/me/playlists?limit=50&offset=50"
				json.NewEncoder(w).Encode(SpotifyPaginatedPlaylists{
					Items: []SpotifySimplePlaylist{
						{ID: "pl1", Name: "Deep House", SnapshotID: "snap1"},
						{ID: "pl2", Name: "Daily Mix 1", SnapshotID: "snap2"},
					},
					Total: 3,
					Next:  &next,
				})
				return
			}

			json.NewEncoder(w).Encode(SpotifyPaginatedPlaylists{
				Items: []SpotifySimplePlaylist{
					{ID: "pl3", Name: "Techno", Description: "archived set", SnapshotID: "snap3"},
				},
				Total: 3,
			})
		}))
		defer server.Close()
		serverURL = server.URL

		srv := newTestService(t, server.URL)
		filter := FilterConfig{
			ExcludedKeywords:     []string{"daily mix"},
			ExcludeByDescription: []string{"archived"},
		}

		playlists, err := srv.ListUserPlaylists(context.Background(), filter)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(playlists) != 1 {
			t.Fatalf("expected 1 playlist after filtering, got %d", len(playlists))
		}
		if playlists[0].ID != "pl1" {
			t.Errorf("expected pl1 to survive filtering, got %s", playlists[0].ID)
		}
		if playlists[0].SnapshotID != "snap1" {
			t.Errorf("expected snapshot token to be carried, got %s", playlists[0].SnapshotID)
		}
	})

	t.Run("Excludes By ID", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(SpotifyPaginatedPlaylists{
				Items: []SpotifySimplePlaylist{
					{ID: "keep", Name: "Keep"},
					{ID: "skip", Name: "Skip"},
				},
				Total: 2,
			})
		}))
		defer server.Close()

		srv := newTestService(t, server.URL)
		playlists, err := srv.ListUserPlaylists(context.Background(), FilterConfig{ExcludedPlaylistIDs: []string{"skip"}})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(playlists) != 1 || playlists[0].ID != "keep" {
			t.Errorf("expected only 'keep' playlist, got %+v", playlists)
		}
	})
}

func TestSpotifyListPlaylistItems(t *testing.T) {
	t.Run("Paginates And Skips Empty URIs", func(t *testing.T) {
		var serverURL string
		requests := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			if r.URL.Path != "/playlists/pl1/tracks" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}

			w.Header().Set("Content-Type", "application/json")
			if r.URL.Query().Get("offset") == "0" {
				next := serverURL + "/playlists/pl1/tracks?limit=100&offset=100"
				json.NewEncoder(w).Encode(SpotifyPaginatedItems{
					Items: []SpotifyPlaylistItem{
						{
							AddedAt: "2024-03-01T12:00:00Z",
							Track: SpotifyTrack{
								Name:       "Strobe",
								Artists:    []SpotifyArtist{{Name: "deadmau5"}},
								Album:      SpotifyAlbum{Name: "For Lack of a Better Name"},
								DurationMS: 637000,
								URI:        "spotify:track:abc",
							},
						},
						{Track: SpotifyTrack{Name: "unplayable"}},
					},
					Total: 3,
					Next:  &next,
				})
				return
			}

			json.NewEncoder(w).Encode(SpotifyPaginatedItems{
				Items: []SpotifyPlaylistItem{
					{
						IsLocal: true,
						Track: SpotifyTrack{
							Name:    "Bootleg Edit",
							Artists: []SpotifyArtist{{Name: "Unknown"}},
							URI:     "spotify:local:Unknown::Bootleg+Edit:180",
						},
					},
				},
				Total: 3,
			})
		}))
		defer server.Close()
		serverURL = server.URL

		srv := newTestService(t, server.URL)
		tracks, err := srv.ListPlaylistItems(context.Background(), "pl1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if requests != 2 {
			t.Errorf("expected 2 page requests, got %d", requests)
		}
		if len(tracks) != 2 {
			t.Fatalf("expected 2 tracks (empty URI dropped), got %d", len(tracks))
		}

		first := tracks[0]
		if first.URI != "spotify:track:abc" || first.Title != "Strobe" {
			t.Errorf("unexpected first track: %+v", first)
		}
		if len(first.Artists) != 1 || first.Artists[0] != "deadmau5" {
			t.Errorf("expected artist names to be flattened, got %v", first.Artists)
		}
		if first.AddedAt.IsZero() {
			t.Error("expected added_at to be parsed")
		}
		if !tracks[1].IsLocal {
			t.Error("expected local flag to be carried from the item")
		}
	})

	t.Run("URIs Only", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(SpotifyPaginatedItems{
				Items: []SpotifyPlaylistItem{
					{Track: SpotifyTrack{Name: "A", URI: "spotify:track:a"}},
					{Track: SpotifyTrack{Name: "B", URI: "spotify:track:b"}},
				},
				Total: 2,
			})
		}))
		defer server.Close()

		srv := newTestService(t, server.URL)
		uris, err := srv.ListPlaylistItemURIs(context.Background(), "pl1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(uris) != 2 || uris[0] != "spotify:track:a" || uris[1] != "spotify:track:b" {
			t.Errorf("unexpected uris: %v", uris)
		}
	})
}

func TestSpotifyCreatePlaylist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/me":
			json.NewEncoder(w).Encode(SpotifyUser{ID: "user1", DisplayName: "Test User"})
		case "/users/user1/playlists":
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}

			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			if body["name"] != "New List" {
				t.Errorf("expected playlist name in body, got %v", body["name"])
			}

			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(SpotifySimplePlaylist{ID: "created1", Name: "New List"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	srv := newTestService(t, server.URL)
	id, err := srv.CreatePlaylist(context.Background(), "New List", "desc", false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if id != "created1" {
		t.Errorf("expected created playlist id 'created1', got %s", id)
	}

	// User ID is cached after the first lookup.
	if srv.userID != "user1" {
		t.Errorf("expected user id to be cached, got %q", srv.userID)
	}
}

func TestSpotifyAddRemoveItems(t *testing.T) {
	t.Run("Splits Batches Of 100", func(t *testing.T) {
		var batchSizes []int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				URIs []string `json:"uris"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			batchSizes = append(batchSizes, len(body.URIs))

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"snapshot_id": "snap"})
		}))
		defer server.Close()

		uris := make([]string, 250)
		for i := range uris {
			uris[i] = fmt.Sprintf("spotify:track:%03d", i)
		}

		srv := newTestService(t, server.URL)
		if err := srv.AddItems(context.Background(), "pl1", uris); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(batchSizes) != 3 {
			t.Fatalf("expected 3 batches, got %d", len(batchSizes))
		}
		if batchSizes[0] != 100 || batchSizes[1] != 100 || batchSizes[2] != 50 {
			t.Errorf("unexpected batch sizes: %v", batchSizes)
		}
	})

	t.Run("Remove Uses Track Objects", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				t.Errorf("expected DELETE, got %s", r.Method)
			}

			var body struct {
				Tracks []map[string]string `json:"tracks"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			if len(body.Tracks) != 2 || body.Tracks[0]["uri"] != "spotify:track:a" {
				t.Errorf("unexpected delete body: %+v", body.Tracks)
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"snapshot_id": "snap"})
		}))
		defer server.Close()

		srv := newTestService(t, server.URL)
		err := srv.RemoveItems(context.Background(), "pl1", []string{"spotify:track:a", "spotify:track:b"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("No URIs Is A No-op", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("expected no request for empty uri list")
		}))
		defer server.Close()

		srv := newTestService(t, server.URL)
		if err := srv.AddItems(context.Background(), "pl1", nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})
}

func TestSpotifyErrorClassification(t *testing.T) {
	t.Run("Retries Server Errors", func(t *testing.T) {
		attempts := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			if attempts < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(SpotifySimplePlaylist{ID: "pl1", Name: "List", SnapshotID: "snap"})
		}))
		defer server.Close()

		srv := newTestService(t, server.URL)
		playlist, err := srv.GetPlaylist(context.Background(), "pl1")
		if err != nil {
			t.Fatalf("expected retries to recover, got %v", err)
		}

		if attempts != 3 {
			t.Errorf("expected 3 attempts, got %d", attempts)
		}
		if playlist.SnapshotID != "snap" {
			t.Errorf("unexpected playlist: %+v", playlist)
		}
	})

	t.Run("Exhausted Retries Surface ErrRemoteUnavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		srv := newTestService(t, server.URL)
		_, err := srv.GetPlaylist(context.Background(), "pl1")
		if !errors.Is(err, shared.ErrRemoteUnavailable) {
			t.Errorf("expected ErrRemoteUnavailable, got %v", err)
		}
	})

	t.Run("Rate Limit Honors Retry-After", func(t *testing.T) {
		attempts := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			if attempts == 1 {
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(SpotifySimplePlaylist{ID: "pl1", Name: "List", SnapshotID: "snap"})
		}))
		defer server.Close()

		srv := newTestService(t, server.URL)
		start := time.Now()
		_, err := srv.GetPlaylist(context.Background(), "pl1")
		if err != nil {
			t.Fatalf("expected recovery after rate limit, got %v", err)
		}

		if elapsed := time.Since(start); elapsed < time.Second {
			t.Errorf("expected to wait for Retry-After, waited %v", elapsed)
		}
		if attempts != 2 {
			t.Errorf("expected 2 attempts, got %d", attempts)
		}
	})

	t.Run("Auth Failure Is Not Retried", func(t *testing.T) {
		attempts := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		srv := newTestService(t, server.URL)
		_, err := srv.GetPlaylist(context.Background(), "pl1")
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
		if attempts != 1 {
			t.Errorf("expected single attempt for 401, got %d", attempts)
		}
	})

	t.Run("Not Found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		srv := newTestService(t, server.URL)
		_, err := srv.GetPlaylist(context.Background(), "missing")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Cancelled Context", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		srv := newTestService(t, server.URL)
		_, err := srv.GetPlaylist(ctx, "pl1")
		if !errors.Is(err, shared.ErrCancelled) {
			t.Errorf("expected ErrCancelled, got %v", err)
		}
	})
}

func TestFilterConfig(t *testing.T) {
	tests := []struct {
		name     string
		filter   FilterConfig
		playlist RemotePlaylist
		want     bool
	}{
		{
			name:     "no rules",
			filter:   FilterConfig{},
			playlist: RemotePlaylist{ID: "pl1", Name: "Anything"},
			want:     false,
		},
		{
			name:     "keyword substring match is case insensitive",
			filter:   FilterConfig{ExcludedKeywords: []string{"Daily Mix"}},
			playlist: RemotePlaylist{ID: "pl1", Name: "my daily mix 3"},
			want:     true,
		},
		{
			name:     "id match",
			filter:   FilterConfig{ExcludedPlaylistIDs: []string{"pl2"}},
			playlist: RemotePlaylist{ID: "pl2", Name: "Keep"},
			want:     true,
		},
		{
			name:     "description whole word match",
			filter:   FilterConfig{ExcludeByDescription: []string{"archive"}},
			playlist: RemotePlaylist{ID: "pl1", Name: "List", Description: "old Archive of sets"},
			want:     true,
		},
		{
			name:     "description partial word does not match",
			filter:   FilterConfig{ExcludeByDescription: []string{"archive"}},
			playlist: RemotePlaylist{ID: "pl1", Name: "List", Description: "archived sets"},
			want:     false,
		},
		{
			name:     "empty rule entries are ignored",
			filter:   FilterConfig{ExcludedKeywords: []string{""}, ExcludedPlaylistIDs: []string{""}},
			playlist: RemotePlaylist{ID: "", Name: "List"},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Excludes(tt.playlist); got != tt.want {
				t.Errorf("Excludes() = %v, want %v", got, tt.want)
			}
		})
	}
}
