// package dedupe detects and removes duplicate catalog tracks.
//
// Detection is two-stage: a coarse fingerprint buckets likely duplicates,
// then pairwise similarity verification builds equivalence groups. One track
// per group is elected primary; the rest are removed after their playlist
// memberships are merged into the primary.
package dedupe

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spindle/internal/matcher"
	"github.com/desertthunder/spindle/internal/models"
	"github.com/desertthunder/spindle/internal/repositories"
	"github.com/desertthunder/spindle/internal/shared"
)

// verifyThreshold is the pairwise similarity both title and artists must
// reach for two bucketed tracks to be confirmed duplicates.
const verifyThreshold = 0.95

var (
	bracketedRe = regexp.MustCompile(`[(\[][^)\]]*[)\]]`)

	// versionMarkers are edition tags that do not distinguish recordings.
	versionMarkers = []string{"explicit", "clean", "radio edit", "album version", "remastered", "remaster"}
)

// Group is one set of confirmed duplicates.
type Group struct {
	Primary          models.Track   `json:"primary"`
	Duplicates       []models.Track `json:"duplicates"`
	PlaylistsToMerge []string       `json:"playlists_to_merge"`
}

// Result summarizes a detection or cleanup pass.
type Result struct {
	Groups          []Group `json:"groups"`
	TracksRemoved   int     `json:"tracks_removed"`
	EdgesMerged     int     `json:"edges_merged"`
	DryRun          bool    `json:"dry_run"`
}

// Engine runs duplicate detection and cleanup against the catalog.
type Engine struct {
	db     *sql.DB
	logger *log.Logger
}

// New creates a duplicate engine.
func New(db *sql.DB, logger *log.Logger) *Engine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Engine{db: db, logger: logger}
}

// fingerprint computes the coarse bucket key for a track.
func fingerprint(track models.Track) string {
	title := strings.ToLower(track.Title)
	title = bracketedRe.ReplaceAllString(title, " ")
	for _, marker := range versionMarkers {
		title = strings.ReplaceAll(title, marker, " ")
	}
	title = strings.Join(strings.Fields(title), " ")

	artists := sortedArtists(track.Artists)

	sum := sha256.Sum256([]byte(title + "|" + artists))
	return hex.EncodeToString(sum[:])[:8]
}

// sortedArtists lowercases, splits, sorts, and rejoins an artist string so
// listing order does not affect comparison.
func sortedArtists(artists string) string {
	parts := strings.Split(strings.ToLower(artists), ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

// lightTitle strips bracketed content and collapses whitespace without
// touching version markers; used for pairwise verification.
func lightTitle(title string) string {
	title = strings.ToLower(title)
	title = bracketedRe.ReplaceAllString(title, " ")
	return strings.Join(strings.Fields(title), " ")
}

// confirmedDuplicates reports whether two tracks are the same recording.
func confirmedDuplicates(a, b models.Track) bool {
	if matcher.EditRatio(lightTitle(a.Title), lightTitle(b.Title)) < verifyThreshold {
		return false
	}
	return matcher.EditRatio(sortedArtists(a.Artists), sortedArtists(b.Artists)) >= verifyThreshold
}

// Detect finds duplicate groups without writing anything.
func (e *Engine) Detect(ctx context.Context) (*Result, error) {
	tracks, err := repositories.NewTrackRepository(e.db).All(ctx)
	if err != nil {
		return nil, err
	}
	memberships, err := repositories.NewAssociationRepository(e.db).AllMappings(ctx)
	if err != nil {
		return nil, err
	}

	playlistsByTrack := make(map[string][]string)
	for playlistID, uris := range memberships {
		for _, uri := range uris {
			playlistsByTrack[uri] = append(playlistsByTrack[uri], playlistID)
		}
	}

	buckets := make(map[string][]models.Track)
	for _, track := range tracks {
		if track.Title == "" || track.Artists == "" {
			continue
		}
		key := fingerprint(track)
		buckets[key] = append(buckets[key], track)
	}

	var keys []string
	for key, bucket := range buckets {
		if len(bucket) >= 2 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	result := &Result{DryRun: true}
	for _, key := range keys {
		for _, members := range equivalenceGroups(buckets[key]) {
			if len(members) < 2 {
				continue
			}
			result.Groups = append(result.Groups, buildGroup(members, playlistsByTrack))
		}
	}

	e.logger.Debug("duplicate detection complete", "groups", len(result.Groups))
	return result, nil
}

// equivalenceGroups partitions a bucket by pairwise verification, unioning
// transitively connected tracks.
func equivalenceGroups(bucket []models.Track) [][]models.Track {
	parent := make([]int, len(bucket))
	for i := range parent {
		parent[i] = i
	}

	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}

	for i := 0; i < len(bucket); i++ {
		for j := i + 1; j < len(bucket); j++ {
			if confirmedDuplicates(bucket[i], bucket[j]) {
				parent[find(i)] = find(j)
			}
		}
	}

	grouped := make(map[int][]models.Track)
	for i, track := range bucket {
		root := find(i)
		grouped[root] = append(grouped[root], track)
	}

	var groups [][]models.Track
	for _, members := range grouped {
		groups = append(groups, members)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0].URI < groups[j][0].URI })
	return groups
}

// buildGroup elects the primary and collects the memberships to merge.
//
// Election order: longest duration, then catalog over local, then tracks
// carrying a surrogate key, then longest album name.
func buildGroup(members []models.Track, playlistsByTrack map[string][]string) Group {
	sorted := make([]models.Track, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.DurationMS != b.DurationMS {
			return a.DurationMS > b.DurationMS
		}
		if a.IsLocal != b.IsLocal {
			return !a.IsLocal
		}
		if (a.SurrogateKey != "") != (b.SurrogateKey != "") {
			return a.SurrogateKey != ""
		}
		return len(a.Album) > len(b.Album)
	})

	group := Group{Primary: sorted[0], Duplicates: sorted[1:]}

	primaryPlaylists := make(map[string]bool)
	for _, id := range playlistsByTrack[group.Primary.URI] {
		primaryPlaylists[id] = true
	}

	mergeSet := make(map[string]bool)
	for _, dup := range group.Duplicates {
		for _, id := range playlistsByTrack[dup.URI] {
			if !primaryPlaylists[id] {
				mergeSet[id] = true
			}
		}
	}
	for id := range mergeSet {
		group.PlaylistsToMerge = append(group.PlaylistsToMerge, id)
	}
	sort.Strings(group.PlaylistsToMerge)
	return group
}

// Cleanup removes duplicates. Each group is processed in its own
// transaction: the primary inherits the merged memberships, then every
// duplicate's edges and row are removed. dryRun returns the detection result
// without writes.
func (e *Engine) Cleanup(ctx context.Context, dryRun bool) (*Result, error) {
	result, err := e.Detect(ctx)
	if err != nil {
		return nil, err
	}
	if dryRun {
		return result, nil
	}
	result.DryRun = false

	for _, group := range result.Groups {
		err := repositories.WithUnitOfWork(ctx, e.db, func(u *repositories.UnitOfWork) error {
			associations := u.Associations()
			tracks := u.Tracks()

			for _, playlistID := range group.PlaylistsToMerge {
				if err := associations.Add(ctx, playlistID, group.Primary.URI); err != nil {
					return err
				}
				result.EdgesMerged++
			}

			for _, dup := range group.Duplicates {
				if err := associations.DeleteAllForTrack(ctx, dup.URI); err != nil {
					return err
				}
				if err := tracks.Delete(ctx, dup.URI); err != nil {
					return err
				}
				result.TracksRemoved++
			}
			return nil
		})
		if err != nil {
			return result, fmt.Errorf("failed to clean duplicate group for %s: %w", group.Primary.URI, err)
		}
	}

	e.logger.Info("duplicate cleanup complete",
		"groups", len(result.Groups), "removed", result.TracksRemoved, "merged_edges", result.EdgesMerged)
	return result, nil
}
