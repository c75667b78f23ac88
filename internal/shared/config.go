package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file
// with optional environment variable overrides.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Library     LibraryConfig     `toml:"library"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and the tokens obtained
// during authorization.
type SpotifyConfig struct {
	ClientID     string    `toml:"client_id"`
	ClientSecret string    `toml:"client_secret"`
	RedirectURI  string    `toml:"redirect_uri"`
	AccessToken  string    `toml:"access_token,omitempty"`
	RefreshToken string    `toml:"refresh_token,omitempty"`
	TokenExpiry  time.Time `toml:"token_expiry,omitempty"`
}

// Map converts the credentials into the form [services.NewSpotifyService] expects.
func (s *SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
	}
}

// Token rebuilds the stored OAuth2 token, or nil when none is stored.
func (s *SpotifyConfig) Token() *oauth2.Token {
	if s.AccessToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		Expiry:       s.TokenExpiry,
	}
}

// Update stores a freshly obtained OAuth2 token on the config.
func (s *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("token cannot be nil")
	}
	s.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		s.RefreshToken = token.RefreshToken
	}
	s.TokenExpiry = token.Expiry
	return nil
}

// LibraryConfig describes the local music library and the reference playlists.
type LibraryConfig struct {
	MasterTracksDir         string `toml:"master_tracks_dir"`          // Root directory of local audio files
	MasterTracksDirExternal string `toml:"master_tracks_dir_external"` // Mirror of the library on an external volume
	PlaylistsDir            string `toml:"playlists_dir"`              // Output directory for exported playlist files
	MasterPlaylistID        string `toml:"master_playlist_id"`         // The reference playlist whose members are the track universe
	UnsortedPlaylistID      string `toml:"unsorted_playlist_id"`       // Landing playlist for tracks not yet filed anywhere
	DiscogsToken            string `toml:"discogs_token"`              // Optional, unused by the sync core
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path           string `toml:"path"`
	MaxOpenConns   int    `toml:"max_open_conns"`
	MaxIdleConns   int    `toml:"max_idle_conns"`
	AcquireTimeout int    `toml:"acquire_timeout"` // Seconds to wait for a pooled connection
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host             string `toml:"host"`
	Port             int    `toml:"port"`
	ConnectionString string `toml:"connection_string"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path,
// then applies environment variable overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyEnv()
	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded
// example config, with environment variable overrides applied.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.applyEnv()
	return &config
}

// SaveConfig writes the configuration back to path. The file may hold
// credentials, so it is written with owner-only permissions.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnv overlays recognized environment variables onto the config.
// Unknown environment keys are ignored.
func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"MASTER_TRACKS_DIR":          &c.Library.MasterTracksDir,
		"MASTER_TRACKS_DIR_EXTERNAL": &c.Library.MasterTracksDirExternal,
		"PLAYLISTS_DIR":              &c.Library.PlaylistsDir,
		"MASTER_PLAYLIST_ID":         &c.Library.MasterPlaylistID,
		"UNSORTED_PLAYLIST_ID":       &c.Library.UnsortedPlaylistID,
		"DISCOGS_TOKEN":              &c.Library.DiscogsToken,
		"SERVER_CONNECTION_STRING":   &c.Server.ConnectionString,
		"DB_NAME":                    &c.Database.Path,
		"SPOTIFY_CLIENT_ID":          &c.Credentials.Spotify.ClientID,
		"SPOTIFY_CLIENT_SECRET":      &c.Credentials.Spotify.ClientSecret,
		"SPOTIFY_REDIRECT_URI":       &c.Credentials.Spotify.RedirectURI,
	}

	for key, target := range overrides {
		if value, ok := os.LookupEnv(key); ok && value != "" {
			*target = value
		}
	}
}

// ValidateLibrary checks that the required library settings are present.
func (c *Config) ValidateLibrary() error {
	var missing []string
	required := map[string]string{
		"library.master_tracks_dir":  c.Library.MasterTracksDir,
		"library.playlists_dir":      c.Library.PlaylistsDir,
		"library.master_playlist_id": c.Library.MasterPlaylistID,
	}

	for key, value := range required {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}
	return nil
}
