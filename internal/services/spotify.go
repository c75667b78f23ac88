// Spotify API implementation of [Library]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/desertthunder/spindle/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// addRemoveBatchSize caps URIs per add/remove call; larger requests are split.
	addRemoveBatchSize = 100

	maxAttempts    = 4
	initialBackoff = 250 * time.Millisecond
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	IsLocal    bool            `json:"is_local"`
	URI        string          `json:"uri"`
}

// SpotifyPlaylistItem represents a track within a playlist context.
type SpotifyPlaylistItem struct {
	AddedAt string       `json:"added_at"`
	IsLocal bool         `json:"is_local"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifyPaginatedItems represents a paginated response of playlist items.
type SpotifyPaginatedItems struct {
	Items []SpotifyPlaylistItem `json:"items"`
	Total int                   `json:"total"`
	Next  *string               `json:"next"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SnapshotID  string `json:"snapshot_id"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items []SpotifySimplePlaylist `json:"items"`
	Total int                     `json:"total"`
	Next  *string                 `json:"next"`
}

// SpotifyService implements the Library interface for Spotify API interactions.
//
// Uses [oauth2] for authentication. Transient failures (network errors, 5xx)
// are retried with exponential backoff; 429 responses honor Retry-After until
// the attempt budget runs out, after which [shared.ErrRateLimited] surfaces.
type SpotifyService struct {
	config     *oauth2.Config
	token      *oauth2.Token
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	userID     string
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrInvalidConfig)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrInvalidConfig)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://localhost:8080/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"playlist-read-private",
			"playlist-read-collaborative",
			"playlist-modify-private",
			"playlist-modify-public",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:     config,
		httpClient: http.DefaultClient,
		limiter:    rate.NewLimiter(rate.Limit(10), 10),
		baseURL:    spotifyBaseURL,
	}, nil
}

// Authenticate performs OAuth2 authentication with Spotify. Expects either an "access_token" or "auth_code" in credentials.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		s.token = &oauth2.Token{AccessToken: accessToken}
		s.httpClient = s.config.Client(ctx, s.token)
		return nil
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.config.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
		}
		s.token = token
		s.httpClient = s.config.Client(ctx, s.token)
		return nil
	}

	return fmt.Errorf("%w: missing access_token or auth_code", shared.ErrAuthFailed)
}

// SetToken installs a previously obtained OAuth2 token.
func (s *SpotifyService) SetToken(ctx context.Context, token *oauth2.Token) {
	s.token = token
	s.httpClient = s.config.Client(ctx, token)
}

// OAuthConfig exposes the OAuth2 config for the auth flow.
func (s *SpotifyService) OAuthConfig() *oauth2.Config {
	return s.config
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// doRequest performs an authenticated HTTP request to the Spotify API with
// retry, backoff, and rate-limit handling.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	if s.token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrAuthFailed)
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	apiURL := s.baseURL + endpoint
	backoff := initialBackoff

	for attempt := 1; ; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return wrapContextErr(err)
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, apiURL, reqBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+s.token.AccessToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return wrapContextErr(ctxErr)
			}
			if attempt >= maxAttempts {
				return fmt.Errorf("%w: %v", shared.ErrRemoteUnavailable, err)
			}
			if err := sleepCtx(ctx, backoff); err != nil {
				return err
			}
			backoff *= 2
			continue
		}

		retry, err := s.handleResponse(resp, result)
		if err == nil {
			return nil
		}
		if !retry || attempt >= maxAttempts {
			return err
		}

		delay := backoff
		if errors.Is(err, shared.ErrRateLimited) {
			if hint := retryAfter(resp); hint > 0 {
				delay = hint
			}
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return err
		}
		backoff *= 2
	}
}

// handleResponse decodes a response or classifies its failure.
// The second return reports whether the failure is retriable.
func (s *SpotifyService) handleResponse(resp *http.Response, result any) (bool, error) {
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if result != nil {
			if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
				return false, fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return true, fmt.Errorf("%w: retry after %s", shared.ErrRateLimited, retryAfter(resp))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return false, fmt.Errorf("%w: status %d", shared.ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return false, fmt.Errorf("%w: status %d", shared.ErrNotFound, resp.StatusCode)
	case resp.StatusCode >= 500:
		return true, fmt.Errorf("%w: status %d", shared.ErrRemoteUnavailable, resp.StatusCode)
	default:
		return false, fmt.Errorf("%w: spotify API error: status %d", shared.ErrUnexpected, resp.StatusCode)
	}
}

// retryAfter reads the Retry-After hint from a 429 response.
func retryAfter(resp *http.Response) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return wrapContextErr(ctx.Err())
	case <-timer.C:
		return nil
	}
}

func wrapContextErr(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", shared.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", shared.ErrCancelled, err)
	default:
		return err
	}
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Library interface implementation

// ListUserPlaylists retrieves the current user's playlists, omitting any that
// match the filter exclusions.
func (s *SpotifyService) ListUserPlaylists(ctx context.Context, filter FilterConfig) ([]RemotePlaylist, error) {
	var playlists []RemotePlaylist
	limit := 50
	offset := 0

	for {
		endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", limit, offset)

		var page SpotifyPaginatedPlaylists
		if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		for _, sp := range page.Items {
			playlist := RemotePlaylist{
				ID:          sp.ID,
				Name:        sp.Name,
				Description: sp.Description,
				SnapshotID:  sp.SnapshotID,
			}
			if filter.Excludes(playlist) {
				continue
			}
			playlists = append(playlists, playlist)
		}

		if page.Next == nil {
			break
		}
		offset += limit
	}

	return playlists, nil
}

// GetPlaylist retrieves a playlist by ID, including its snapshot token.
func (s *SpotifyService) GetPlaylist(ctx context.Context, playlistID string) (*RemotePlaylist, error) {
	endpoint := fmt.Sprintf("/playlists/%s?fields=id,name,description,snapshot_id", playlistID)

	var sp SpotifySimplePlaylist
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &sp); err != nil {
		return nil, err
	}

	return &RemotePlaylist{
		ID:          sp.ID,
		Name:        sp.Name,
		Description: sp.Description,
		SnapshotID:  sp.SnapshotID,
	}, nil
}

// ListPlaylistItems retrieves the full item records of a playlist.
func (s *SpotifyService) ListPlaylistItems(ctx context.Context, playlistID string) ([]RemoteTrack, error) {
	var tracks []RemoteTrack
	limit := 100
	offset := 0

	for {
		endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", playlistID, limit, offset)

		var page SpotifyPaginatedItems
		if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if item.Track.URI == "" {
				continue
			}

			track := RemoteTrack{
				URI:        item.Track.URI,
				Title:      item.Track.Name,
				Album:      item.Track.Album.Name,
				DurationMS: item.Track.DurationMS,
				IsLocal:    item.IsLocal || item.Track.IsLocal,
			}
			for _, artist := range item.Track.Artists {
				track.Artists = append(track.Artists, artist.Name)
			}
			if addedAt, err := time.Parse(time.RFC3339, item.AddedAt); err == nil {
				track.AddedAt = addedAt
			}
			tracks = append(tracks, track)
		}

		if page.Next == nil {
			break
		}
		offset += limit
	}

	return tracks, nil
}

// ListPlaylistItemURIs retrieves only the item URIs of a playlist.
func (s *SpotifyService) ListPlaylistItemURIs(ctx context.Context, playlistID string) ([]string, error) {
	items, err := s.ListPlaylistItems(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	uris := make([]string, 0, len(items))
	for _, item := range items {
		uris = append(uris, item.URI)
	}
	return uris, nil
}

// CreatePlaylist creates a playlist for the current user and returns its ID.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name, description string, public bool) (string, error) {
	if s.userID == "" {
		user, err := s.UserProfile(ctx)
		if err != nil {
			return "", err
		}
		s.userID = user.ID
	}

	body := map[string]any{
		"name":        name,
		"description": description,
		"public":      public,
	}

	var created SpotifySimplePlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", s.userID)
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// AddItems appends URIs to a playlist in batches of at most 100.
func (s *SpotifyService) AddItems(ctx context.Context, playlistID string, uris []string) error {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", playlistID)

	for _, batch := range splitBatches(uris, addRemoveBatchSize) {
		body := map[string]any{"uris": batch}
		if err := s.doRequest(ctx, http.MethodPost, endpoint, body, nil); err != nil {
			return err
		}
	}
	return nil
}

// RemoveItems removes URIs from a playlist in batches of at most 100.
func (s *SpotifyService) RemoveItems(ctx context.Context, playlistID string, uris []string) error {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", playlistID)

	for _, batch := range splitBatches(uris, addRemoveBatchSize) {
		tracks := make([]map[string]string, 0, len(batch))
		for _, uri := range batch {
			tracks = append(tracks, map[string]string{"uri": uri})
		}
		body := map[string]any{"tracks": tracks}
		if err := s.doRequest(ctx, http.MethodDelete, endpoint, body, nil); err != nil {
			return err
		}
	}
	return nil
}

// splitBatches splits uris into chunks of at most size.
func splitBatches(uris []string, size int) [][]string {
	if len(uris) == 0 {
		return nil
	}

	var batches [][]string
	for start := 0; start < len(uris); start += size {
		end := min(start+size, len(uris))
		batches = append(batches, uris[start:end])
	}
	return batches
}
