package matcher

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// remixKeywords are the markers that qualify a title segment as remix info.
var remixKeywords = map[string]bool{
	"remix":    true,
	"edit":     true,
	"mix":      true,
	"version":  true,
	"vip":      true,
	"bootleg":  true,
	"rework":   true,
	"flip":     true,
	"refix":    true,
	"redo":     true,
	"extended": true,
	"radio":    true,
	"club":     true,
	"dub":      true,
}

// filenameSeparators split a file stem into artist and title. First match wins.
var filenameSeparators = []string{" - ", " – ", " — ", " by "}

var (
	accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	whitespaceRe   = regexp.MustCompile(`\s+`)
	bracketGroupRe = regexp.MustCompile(`[(\[]([^)\]]*)[)\]]`)
)

// Normalize lowercases, replaces ampersands with "and", strips accents, and
// collapses whitespace.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "&", " and ")
	if stripped, _, err := transform.String(accentStripper, s); err == nil {
		s = stripped
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// SplitFilename extracts (artist, title) from a file stem. When no separator
// is present the artist is empty and the whole stem is the title.
func SplitFilename(stem string) (artist, title string) {
	for _, sep := range filenameSeparators {
		if idx := strings.Index(stem, sep); idx >= 0 {
			return strings.TrimSpace(stem[:idx]), strings.TrimSpace(stem[idx+len(sep):])
		}
	}
	return "", strings.TrimSpace(stem)
}

// SplitRemix separates a normalized title into its base title and remix info.
//
// Two patterns qualify: parenthesized or bracketed groups containing a remix
// keyword, and trailing dash-separated segments containing one. Groups with no
// remix keyword stay part of the base title.
func SplitRemix(title string) (base, remix string) {
	base = title
	var remixParts []string

	for _, match := range bracketGroupRe.FindAllStringSubmatch(base, -1) {
		group := strings.TrimSpace(match[1])
		if containsRemixKeyword(group) {
			remixParts = append(remixParts, group)
			base = strings.Replace(base, match[0], " ", 1)
		}
	}

	// Trailing dash segments: "title - artist remix" style tags.
	for {
		idx := strings.LastIndex(base, " - ")
		if idx < 0 {
			break
		}
		segment := strings.TrimSpace(base[idx+3:])
		if !containsRemixKeyword(segment) {
			break
		}
		remixParts = append([]string{segment}, remixParts...)
		base = base[:idx]
	}

	base = strings.TrimSpace(whitespaceRe.ReplaceAllString(base, " "))
	remix = strings.TrimSpace(strings.Join(remixParts, " "))
	return base, remix
}

func containsRemixKeyword(s string) bool {
	for _, word := range strings.Fields(s) {
		if remixKeywords[word] {
			return true
		}
	}
	return false
}

// remixKeywordSet collects the remix keywords present in a remix info string.
func remixKeywordSet(remix string) map[string]bool {
	set := make(map[string]bool)
	for _, word := range strings.Fields(remix) {
		if remixKeywords[word] {
			set[word] = true
		}
	}
	return set
}

// artistWordSet splits an artist string on commas, semicolons, and ampersands,
// normalizes each chunk, and collects the individual words.
func artistWordSet(artists string) map[string]bool {
	set := make(map[string]bool)
	for _, chunk := range splitArtists(artists) {
		for _, word := range strings.Fields(Normalize(chunk)) {
			if word != "and" {
				set[word] = true
			}
		}
	}
	return set
}

// splitArtists splits a joined artist string on its list separators.
func splitArtists(artists string) []string {
	parts := strings.FieldsFunc(artists, func(r rune) bool {
		return r == ',' || r == ';' || r == '&'
	})

	var result []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
