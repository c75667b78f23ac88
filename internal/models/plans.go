package models

// Stats summarizes an analysis or execution result.
type Stats struct {
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Deleted   int `json:"deleted"`
	Unchanged int `json:"unchanged"`
}

// Total returns the number of rows the stats cover.
func (s Stats) Total() int {
	return s.Added + s.Updated + s.Deleted + s.Unchanged
}

// HasChanges reports whether executing the plan would write anything.
func (s Stats) HasChanges() bool {
	return s.Added > 0 || s.Updated > 0 || s.Deleted > 0
}

// PlaylistItem is one playlist entry in a playlist sync plan.
type PlaylistItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	OldName    string `json:"old_name,omitempty"`
	SnapshotID string `json:"snapshot_id,omitempty"`
}

// PlaylistPlan is the output of playlist sync analysis and the input to its
// execution. Re-executing the same plan is a per-row no-op.
type PlaylistPlan struct {
	ToAdd     []PlaylistItem `json:"items_to_add"`
	ToUpdate  []PlaylistItem `json:"items_to_update"`
	ToDelete  []PlaylistItem `json:"items_to_delete"`
	Unchanged int            `json:"unchanged"`
}

// Stats derives envelope stats from the plan.
func (p *PlaylistPlan) Stats() Stats {
	return Stats{Added: len(p.ToAdd), Updated: len(p.ToUpdate), Deleted: len(p.ToDelete), Unchanged: p.Unchanged}
}

// TrackItem is one track entry in a track sync plan.
type TrackItem struct {
	ID        string   `json:"id"` // Resource URI
	Artists   string   `json:"artists"`
	Title     string   `json:"title"`
	Album     string   `json:"album"`
	IsLocal   bool     `json:"is_local"`
	AddedAt   string   `json:"added_at,omitempty"`
	OldTitle  string   `json:"old_title,omitempty"`
	OldArtist string   `json:"old_artists,omitempty"`
	OldAlbum  string   `json:"old_album,omitempty"`
	Changes   []string `json:"changes,omitempty"`
	Track     Track    `json:"-"` // Full record for execution
}

// TrackPlan is the output of track sync analysis.
//
// MasterSnapshotID is the reference playlist's remote version observed at
// the start of analysis; execution writes it back as master_sync_token.
type TrackPlan struct {
	ToAdd            []TrackItem `json:"items_to_add"`
	ToUpdate         []TrackItem `json:"items_to_update"`
	ToDelete         []TrackItem `json:"items_to_delete"`
	Unchanged        int         `json:"unchanged"`
	MasterSnapshotID string      `json:"master_snapshot_id,omitempty"`
}

// Stats derives envelope stats from the plan.
func (p *TrackPlan) Stats() Stats {
	return Stats{Added: len(p.ToAdd), Updated: len(p.ToUpdate), Deleted: len(p.ToDelete), Unchanged: p.Unchanged}
}

// AssociationItem describes membership changes for one track.
type AssociationItem struct {
	TrackID    string   `json:"track_id"` // Resource URI
	TrackInfo  string   `json:"track_info"`
	AddTo      []string `json:"add_to"`
	RemoveFrom []string `json:"remove_from"`
}

// AssociationPlan is the output of association sync analysis.
//
// DirtyTokens maps each dirty playlist ID to the freshly observed remote
// snapshot; execution advances associations_token per playlist on success.
type AssociationPlan struct {
	Items       []AssociationItem `json:"items"`
	DirtyTokens map[string]string `json:"dirty_tokens"`
	Unchanged   int               `json:"unchanged"`
}

// Stats derives envelope stats from the plan. Added and Deleted count
// membership edges, Unchanged counts untouched tracks.
func (p *AssociationPlan) Stats() Stats {
	var s Stats
	for _, item := range p.Items {
		s.Added += len(item.AddTo)
		s.Deleted += len(item.RemoveFrom)
	}
	s.Unchanged = p.Unchanged
	return s
}
