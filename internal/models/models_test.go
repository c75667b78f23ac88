package models

import "testing"

func TestTrack(t *testing.T) {
	t.Run("ArtistList", func(t *testing.T) {
		tests := []struct {
			name    string
			artists string
			want    []string
		}{
			{"single artist", "deadmau5", []string{"deadmau5"}},
			{"multiple artists", "Kaskade, deadmau5", []string{"Kaskade", "deadmau5"}},
			{"whitespace trimmed", "  A ,  B  ", []string{"A", "B"}},
			{"empty string", "", nil},
			{"only separators", " , ", nil},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got := Track{Artists: tt.artists}.ArtistList()
				if len(got) != len(tt.want) {
					t.Fatalf("expected %v, got %v", tt.want, got)
				}
				for i := range got {
					if got[i] != tt.want[i] {
						t.Errorf("expected %v, got %v", tt.want, got)
					}
				}
			})
		}
	})

	t.Run("IsCatalog", func(t *testing.T) {
		if !(Track{URI: "spotify:track:abc"}).IsCatalog() {
			t.Error("expected catalog track")
		}
		if (Track{URI: "spotify:local:a:b:c:1"}).IsCatalog() {
			t.Error("expected local entry to not be catalog")
		}
	})

	t.Run("LocalTrackURI", func(t *testing.T) {
		uri := LocalTrackURI("Artist", "Album", "Title", 240)
		if uri != "spotify:local:Artist:Album:Title:240" {
			t.Errorf("unexpected uri: %s", uri)
		}
	})

	t.Run("LocalSurrogateKey", func(t *testing.T) {
		key := LocalSurrogateKey("Artist", "Title")
		if len(key) != 16 {
			t.Errorf("expected 16-char key, got %d", len(key))
		}

		// Deterministic and case-insensitive.
		if key != LocalSurrogateKey("  artist ", "TITLE") {
			t.Error("expected normalization-stable key")
		}
		if key == LocalSurrogateKey("Other", "Title") {
			t.Error("expected distinct artists to produce distinct keys")
		}
	})
}

func TestPlans(t *testing.T) {
	t.Run("Stats", func(t *testing.T) {
		stats := Stats{Added: 2, Updated: 1, Deleted: 0, Unchanged: 10}
		if stats.Total() != 13 {
			t.Errorf("expected total 13, got %d", stats.Total())
		}
		if !stats.HasChanges() {
			t.Error("expected changes")
		}
		if (Stats{Unchanged: 5}).HasChanges() {
			t.Error("expected no changes when only unchanged")
		}
	})

	t.Run("PlaylistPlan Stats", func(t *testing.T) {
		plan := PlaylistPlan{
			ToAdd:     []PlaylistItem{{ID: "a"}},
			ToUpdate:  []PlaylistItem{{ID: "b"}, {ID: "c"}},
			Unchanged: 4,
		}
		stats := plan.Stats()
		if stats.Added != 1 || stats.Updated != 2 || stats.Deleted != 0 || stats.Unchanged != 4 {
			t.Errorf("unexpected stats: %+v", stats)
		}
	})

	t.Run("AssociationPlan Stats counts edges", func(t *testing.T) {
		plan := AssociationPlan{
			Items: []AssociationItem{
				{TrackID: "t1", AddTo: []string{"p1", "p2"}, RemoveFrom: []string{"p3"}},
				{TrackID: "t2", AddTo: []string{"p1"}},
			},
			Unchanged: 7,
		}
		stats := plan.Stats()
		if stats.Added != 3 {
			t.Errorf("expected 3 added edges, got %d", stats.Added)
		}
		if stats.Deleted != 1 {
			t.Errorf("expected 1 removed edge, got %d", stats.Deleted)
		}
		if stats.Unchanged != 7 {
			t.Errorf("expected 7 unchanged, got %d", stats.Unchanged)
		}
	})
}
