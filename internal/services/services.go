// package services defines interface Library for the remote streaming catalog
//
// The sync engine consumes domain records, never raw API payloads.
package services

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// Library is the contract the sync core needs from the streaming service.
type Library interface {
	// Name returns the name of the service (e.g., "Spotify")
	Name() string

	// ListUserPlaylists retrieves the user's playlists after filter exclusions.
	ListUserPlaylists(ctx context.Context, filter FilterConfig) ([]RemotePlaylist, error)

	// GetPlaylist retrieves one playlist, including its current snapshot token.
	GetPlaylist(ctx context.Context, playlistID string) (*RemotePlaylist, error)

	// ListPlaylistItems retrieves the full item records of a playlist.
	ListPlaylistItems(ctx context.Context, playlistID string) ([]RemoteTrack, error)

	// ListPlaylistItemURIs retrieves only the item URIs of a playlist.
	ListPlaylistItemURIs(ctx context.Context, playlistID string) ([]string, error)

	// CreatePlaylist creates a playlist for the current user and returns its ID.
	CreatePlaylist(ctx context.Context, name, description string, public bool) (string, error)

	// AddItems appends URIs to a playlist, splitting into batches of at most 100.
	AddItems(ctx context.Context, playlistID string, uris []string) error

	// RemoveItems removes URIs from a playlist, splitting into batches of at most 100.
	RemoveItems(ctx context.Context, playlistID string, uris []string) error
}

// RemotePlaylist is a playlist as reported by the remote catalog.
type RemotePlaylist struct {
	ID          string
	Name        string
	Description string
	SnapshotID  string
}

// RemoteTrack is one playlist item as reported by the remote catalog.
type RemoteTrack struct {
	URI        string
	Title      string
	Artists    []string
	Album      string
	DurationMS int
	AddedAt    time.Time
	IsLocal    bool
}

// FilterConfig enumerates playlist exclusions applied to ListUserPlaylists.
type FilterConfig struct {
	ExcludedKeywords     []string // Forbidden name substrings, case-insensitive
	ExcludedPlaylistIDs  []string // Forbidden playlist IDs
	ExcludeByDescription []string // Description terms, whole-word, case-insensitive
}

// Excludes reports whether the playlist matches any exclusion rule.
func (f FilterConfig) Excludes(p RemotePlaylist) bool {
	name := strings.ToLower(p.Name)
	for _, keyword := range f.ExcludedKeywords {
		if keyword != "" && strings.Contains(name, strings.ToLower(keyword)) {
			return true
		}
	}

	for _, id := range f.ExcludedPlaylistIDs {
		if id != "" && id == p.ID {
			return true
		}
	}

	for _, term := range f.ExcludeByDescription {
		if term == "" {
			continue
		}
		pattern := `(?i)\b` + regexp.QuoteMeta(term) + `\b`
		if matched, err := regexp.MatchString(pattern, p.Description); err == nil && matched {
			return true
		}
	}

	return false
}
