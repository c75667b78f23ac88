package ui

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/spindle/internal/binder"
)

var (
	_ list.Item = fileItem{}
	_ list.Item = candidateItem{}
)

// fileItem wraps a [binder.SelectionNeeded] to implement [list.Item].
type fileItem struct {
	selection binder.SelectionNeeded
	chosen    string // Title of the chosen track, empty until decided
	skipped   bool
}

func (i fileItem) FilterValue() string { return filepath.Base(i.selection.FilePath) }
func (i fileItem) Title() string       { return filepath.Base(i.selection.FilePath) }
func (i fileItem) Description() string {
	switch {
	case i.skipped:
		return "skipped"
	case i.chosen != "":
		return fmt.Sprintf("→ %s", i.chosen)
	case len(i.selection.Candidates) == 0:
		return "no candidates"
	default:
		return fmt.Sprintf("%d candidates", len(i.selection.Candidates))
	}
}

// candidateItem wraps a [binder.Candidate] to implement [list.Item].
type candidateItem struct {
	candidate binder.Candidate
}

func (i candidateItem) FilterValue() string { return i.candidate.Track.Title }
func (i candidateItem) Title() string {
	return fmt.Sprintf("%s - %s", i.candidate.Track.Artists, i.candidate.Track.Title)
}

func (i candidateItem) Description() string {
	desc := fmt.Sprintf("%.0f%% • %s", i.candidate.Score*100, i.candidate.Reason)
	if i.candidate.Track.Album != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.candidate.Track.Album)
	}
	return desc
}
