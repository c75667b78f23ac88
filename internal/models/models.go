// package models defines the data model for the library synchronization service
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// TrackURIPrefix prefixes catalog track URIs; LocalURIPrefix prefixes
// URIs derived for user-local files that have no catalog identity.
const (
	TrackURIPrefix = "spotify:track:"
	LocalURIPrefix = "spotify:local:"
)

// Track is a catalog entry identified by its resource URI.
//
// Catalog tracks use spotify:track:<id>; user-local entries use a derived
// spotify:local:<artist>:<album>:<title>:<seconds> URI plus a deterministic
// surrogate key for backward-compatible identification.
type Track struct {
	URI          string     `json:"id"`
	Title        string     `json:"title"`
	Artists      string     `json:"artists"` // Comma-joined display string
	Album        string     `json:"album"`
	DurationMS   int        `json:"duration_ms,omitempty"` // Zero when unknown (local entries)
	AddedAt      *time.Time `json:"added_at,omitempty"`    // When added to the reference playlist
	IsLocal      bool       `json:"is_local"`
	SurrogateKey string     `json:"surrogate_key,omitempty"`
}

// ArtistList splits the comma-joined artist string back into individual names.
func (t Track) ArtistList() []string {
	if strings.TrimSpace(t.Artists) == "" {
		return nil
	}
	parts := strings.Split(t.Artists, ",")
	artists := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			artists = append(artists, p)
		}
	}
	return artists
}

// IsCatalog reports whether the track has a real catalog identity.
func (t Track) IsCatalog() bool {
	return strings.HasPrefix(t.URI, TrackURIPrefix)
}

// LocalTrackURI derives the resource URI for a user-local entry.
func LocalTrackURI(artist, album, title string, durationSec int) string {
	return fmt.Sprintf("%s%s:%s:%s:%d", LocalURIPrefix, artist, album, title, durationSec)
}

// LocalSurrogateKey derives the deterministic surrogate key for a local entry
// from its normalized artist and title.
func LocalSurrogateKey(artist, title string) string {
	normalized := strings.ToLower(strings.TrimSpace(artist)) + "|" + strings.ToLower(strings.TrimSpace(title))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}

// Playlist is a stored playlist row. ID is the remote playlist ID.
//
// MasterSyncToken holds the remote version observed during the last
// reference-playlist sync; AssociationsToken holds the version observed
// during the last membership sync. Both are opaque.
type Playlist struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	MasterSyncToken   string `json:"master_sync_token,omitempty"`
	AssociationsToken string `json:"associations_token,omitempty"`
}

// FileMapping binds a filesystem path to a track URI.
type FileMapping struct {
	ID           int64      `json:"id"`
	FilePath     string     `json:"file_path"`
	TrackURI     string     `json:"track_uri"`
	FileHash     string     `json:"file_hash"`
	FileSize     int64      `json:"file_size"`
	LastModified *time.Time `json:"last_modified,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	Active       bool       `json:"active"`
}

// SyncRun records one executed sync action for history reporting.
type SyncRun struct {
	ID           string     `json:"id"`
	Action       string     `json:"action"`
	Stage        string     `json:"stage"`
	Status       string     `json:"status"`
	Stats        Stats      `json:"stats"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}
