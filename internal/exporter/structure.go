package exporter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// StructureFileName is the state file describing the playlist folder layout.
// It lives at the root of the playlist output directory and is authoritative
// for playlist location across regenerations.
const StructureFileName = ".playlist_structure.json"

const structureVersion = 1

// FolderEntry lists the playlists assigned to one folder.
type FolderEntry struct {
	Playlists []string `json:"playlists"`
}

// Structure is the persisted folder layout.
type Structure struct {
	RootPlaylists    []string               `json:"root_playlists"`
	Folders          map[string]FolderEntry `json:"folders"`
	StructureVersion int                    `json:"structure_version"`
	LastUpdated      string                 `json:"last_updated"`
}

// NewStructure returns an empty layout.
func NewStructure() *Structure {
	return &Structure{Folders: make(map[string]FolderEntry), StructureVersion: structureVersion}
}

// LoadStructure reads the structure file under dir. A missing file yields an
// empty structure, not an error.
func LoadStructure(dir string) (*Structure, error) {
	data, err := os.ReadFile(filepath.Join(dir, StructureFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return NewStructure(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read structure file: %w", err)
	}

	var s Structure
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse structure file: %w", err)
	}
	if s.Folders == nil {
		s.Folders = make(map[string]FolderEntry)
	}
	return &s, nil
}

// Save writes the structure file under dir, stamping version and time.
func (s *Structure) Save(dir string) error {
	s.StructureVersion = structureVersion
	s.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode structure: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, StructureFileName), data, 0644); err != nil {
		return fmt.Errorf("failed to write structure file: %w", err)
	}
	return nil
}

// LocationOf returns the relative folder a playlist is assigned to. Root
// placement returns ("", true); an unknown playlist returns ("", false).
func (s *Structure) LocationOf(name string) (string, bool) {
	for _, root := range s.RootPlaylists {
		if root == name {
			return "", true
		}
	}
	for folder, entry := range s.Folders {
		for _, p := range entry.Playlists {
			if p == name {
				return folder, true
			}
		}
	}
	return "", false
}

// Names returns every playlist mentioned in the structure.
func (s *Structure) Names() map[string]bool {
	names := make(map[string]bool, len(s.RootPlaylists))
	for _, name := range s.RootPlaylists {
		names[name] = true
	}
	for _, entry := range s.Folders {
		for _, name := range entry.Playlists {
			names[name] = true
		}
	}
	return names
}

// Remove drops a playlist from wherever the structure mentions it.
func (s *Structure) Remove(name string) {
	s.RootPlaylists = removeString(s.RootPlaylists, name)
	for folder, entry := range s.Folders {
		entry.Playlists = removeString(entry.Playlists, name)
		if len(entry.Playlists) == 0 {
			delete(s.Folders, folder)
		} else {
			s.Folders[folder] = entry
		}
	}
}

func removeString(list []string, target string) []string {
	out := list[:0]
	for _, v := range list {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}
