package exporter

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Entry is one playlist line pair: metadata plus the absolute file path.
type Entry struct {
	Path        string
	DurationSec int
	Artists     string
	Title       string
}

// WriteM3U writes entries to path. The extended form carries an #EXTM3U
// header and one #EXTINF line per entry; the plain form is bare paths.
// Lines always end with LF.
func WriteM3U(path string, entries []Entry, extended bool) error {
	var b strings.Builder
	if extended {
		b.WriteString("#EXTM3U\n")
	}
	for _, entry := range entries {
		if extended {
			fmt.Fprintf(&b, "#EXTINF:%d,%s - %s\n", entry.DurationSec, entry.Artists, entry.Title)
		}
		b.WriteString(entry.Path)
		b.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write playlist file: %w", err)
	}
	return nil
}

// ReadM3UPaths returns the file paths listed in a playlist file, skipping
// directives and blank lines. CRLF endings are accepted.
func ReadM3UPaths(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open playlist file: %w", err)
	}
	defer f.Close()

	var paths []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read playlist file: %w", err)
	}
	return paths, nil
}
