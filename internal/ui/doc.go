// Package ui implements the interactive match picker using bubbletea's Elm
// architecture.
//
// The picker walks the files the binding analysis could not match
// confidently:
//  1. [FileListView] : Browse files awaiting a decision
//  2. [CandidateListView] : Pick a catalog track for the selected file, or skip it
//  3. [SummaryView] : Review choices and confirm
//
// The [Model] implements bubbletea's standard Init/Update/View pattern. All
// candidate data is computed before the picker starts, so the picker never
// blocks on I/O.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, s, y/n, q)
// with contextual help displayed via charmbracelet/bubbles/help.
package ui
