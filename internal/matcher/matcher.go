// package matcher scores local audio filenames against catalog tracks.
//
// A [Matcher] is built once over a snapshot of the catalog and its active
// file bindings, then queried repeatedly. Construction pre-normalizes every
// track so per-query work stays proportional to the admitted candidate set.
package matcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/desertthunder/spindle/internal/models"
)

// Match is one scored candidate for a filename query.
type Match struct {
	Track  models.Track
	Score  float64
	Reason string
}

// PreprocessedTrack carries the normalized signals of one catalog track.
type PreprocessedTrack struct {
	Track          models.Track
	NormArtists    string
	NormTitle      string
	ArtistWords    map[string]bool
	BaseTitle      string
	RemixInfo      string
	MappingPenalty float64
}

// Matcher indexes catalog tracks for fuzzy filename matching.
type Matcher struct {
	tracks []PreprocessedTrack
}

// Option configures a Matcher during construction.
type Option func(*builder)

type builder struct {
	statFunc func(string) bool
}

// WithStatFunc overrides the file-existence check used for mapping penalties.
func WithStatFunc(fn func(string) bool) Option {
	return func(b *builder) { b.statFunc = fn }
}

// New builds a Matcher over the given tracks and their active file mappings.
//
// A track bound to a still-existing file is penalized at 0.3 so that a new
// file will not silently steal its binding; a stale binding (file gone) is
// penalized at 0.8; unbound tracks carry no penalty.
func New(tracks []models.Track, mappings []models.FileMapping, opts ...Option) *Matcher {
	b := builder{statFunc: fileExists}
	for _, opt := range opts {
		opt(&b)
	}

	mappedPaths := make(map[string][]string)
	for _, m := range mappings {
		if m.Active {
			mappedPaths[m.TrackURI] = append(mappedPaths[m.TrackURI], m.FilePath)
		}
	}

	m := &Matcher{tracks: make([]PreprocessedTrack, 0, len(tracks))}
	for _, track := range tracks {
		normArtists := Normalize(track.Artists)
		base, remix := SplitRemix(Normalize(track.Title))

		penalty := 1.0
		if paths, ok := mappedPaths[track.URI]; ok {
			penalty = 0.8
			for _, path := range paths {
				if b.statFunc(path) {
					penalty = 0.3
					break
				}
			}
		}

		m.tracks = append(m.tracks, PreprocessedTrack{
			Track:          track,
			NormArtists:    normArtists,
			NormTitle:      Normalize(track.Title),
			ArtistWords:    artistWordSet(track.Artists),
			BaseTitle:      base,
			RemixInfo:      remix,
			MappingPenalty: penalty,
		})
	}
	return m
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// EditRatio returns the normalized edit similarity of two strings in [0, 1].
func EditRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(longest)
}

// FindMatches scores every admitted candidate for the filename and returns
// matches at or above threshold, best first, capped at maxMatches.
// fileDurationMS of 0 means the file duration is unknown.
func (m *Matcher) FindMatches(filename string, threshold float64, maxMatches int, excludeURI string, fileDurationMS int) []Match {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	rawArtist, rawTitle := SplitFilename(stem)

	queryArtist := Normalize(rawArtist)
	queryBase, queryRemix := SplitRemix(Normalize(rawTitle))
	queryWords := artistWordSet(rawArtist)

	var matches []Match
	for i := range m.tracks {
		candidate := &m.tracks[i]
		if candidate.Track.URI == excludeURI {
			continue
		}
		if queryArtist != "" && !wordsIntersect(queryWords, candidate.ArtistWords) {
			continue
		}

		score, reason := m.score(candidate, queryArtist, queryBase, queryRemix, fileDurationMS)
		if score >= threshold {
			matches = append(matches, Match{Track: candidate.Track, Score: score, Reason: reason})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if maxMatches > 0 && len(matches) > maxMatches {
		matches = matches[:maxMatches]
	}
	return matches
}

// FindBestMatch returns the top match at or above threshold, or nil.
func (m *Matcher) FindBestMatch(filename string, threshold float64, excludeURI string, fileDurationMS int) *Match {
	matches := m.FindMatches(filename, threshold, 1, excludeURI, fileDurationMS)
	if len(matches) == 0 {
		return nil
	}
	return &matches[0]
}

func (m *Matcher) score(candidate *PreprocessedTrack, queryArtist, queryBase, queryRemix string, fileDurationMS int) (float64, string) {
	titleScore := m.titleScore(candidate, queryBase, queryRemix)

	var combined float64
	var reason string
	if queryArtist != "" {
		artistScore := m.artistScore(candidate, queryArtist)
		combined = 0.6*artistScore + 0.4*titleScore
		reason = fmt.Sprintf("artist %.2f, title %.2f", artistScore, titleScore)
	} else {
		combined = 0.9 * titleScore
		reason = fmt.Sprintf("title %.2f", titleScore)
	}

	combined *= candidate.MappingPenalty
	if candidate.MappingPenalty < 1.0 {
		reason += fmt.Sprintf(", mapped penalty %.1f", candidate.MappingPenalty)
	}

	if fileDurationMS > 0 && candidate.Track.DurationMS > 0 {
		boost := durationBoost(fileDurationMS, candidate.Track.DurationMS)
		if boost > 1.0 {
			combined *= boost
			reason += fmt.Sprintf(", duration boost %.2f", boost)
		}
	}

	return min(combined, 1.0), reason
}

// artistScore is 1.0 on a substring hit, else the best pairwise edit ratio
// against each of the candidate's artists.
func (m *Matcher) artistScore(candidate *PreprocessedTrack, queryArtist string) float64 {
	if strings.Contains(candidate.NormArtists, queryArtist) {
		return 1.0
	}

	best := 0.0
	for _, artist := range splitArtists(candidate.Track.Artists) {
		if ratio := EditRatio(queryArtist, Normalize(artist)); ratio > best {
			best = ratio
		}
	}
	return best
}

func (m *Matcher) titleScore(candidate *PreprocessedTrack, queryBase, queryRemix string) float64 {
	base := EditRatio(queryBase, candidate.BaseTitle)

	switch {
	case queryRemix != "" && candidate.RemixInfo != "":
		return 0.7*base + 0.3*remixSimilarity(queryRemix, candidate.RemixInfo)
	case queryRemix != "" || candidate.RemixInfo != "":
		return base * 0.6
	default:
		return base
	}
}

// remixSimilarity is the better of string similarity and keyword overlap.
func remixSimilarity(a, b string) float64 {
	ratio := EditRatio(a, b)

	setA, setB := remixKeywordSet(a), remixKeywordSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return ratio
	}

	intersection := 0
	for word := range setA {
		if setB[word] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	jaccard := 0.0
	if union > 0 {
		jaccard = float64(intersection) / float64(union)
	}
	return max(ratio, jaccard)
}

func durationBoost(a, b int) float64 {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}

	// Tier edges are exclusive: a diff of exactly one second lands in the
	// next tier down.
	switch {
	case diff < 1000:
		return 1.25
	case diff < 3000:
		return 1.20
	case diff < 10000:
		return 1.15
	case diff < 30000:
		return 1.10
	default:
		return 1.0
	}
}

func wordsIntersect(a, b map[string]bool) bool {
	for word := range a {
		if b[word] {
			return true
		}
	}
	return false
}
