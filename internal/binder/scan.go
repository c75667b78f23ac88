package binder

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/tcolgate/mp3"
)

// audioExtensions enumerates the file types the scanner picks up.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".wav":  true,
	".m4a":  true,
	".aac":  true,
	".ogg":  true,
	".wma":  true,
}

// ScanAudioFiles walks root and returns the absolute paths of all audio files.
func ScanAudioFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if audioExtensions[strings.ToLower(filepath.Ext(path))] {
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			files = append(files, abs)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	return files, nil
}

// FileDuration returns the audio duration in milliseconds, or 0 when the
// format is unsupported or the file is unreadable. Only MP3 frames are
// decoded; other formats rely on name and tag signals alone.
func FileDuration(path string) int {
	if strings.ToLower(filepath.Ext(path)) != ".mp3" {
		return 0
	}

	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	decoder := mp3.NewDecoder(f)
	var (
		frame   mp3.Frame
		skipped int
		total   time.Duration
	)
	for {
		if err := decoder.Decode(&frame, &skipped); err != nil {
			break
		}
		total += frame.Duration()
	}
	return int(total.Milliseconds())
}

// EmbeddedTrackID reads a catalog URI previously written into the file's
// TRACKID user-defined text frame. Returns "" when absent.
func EmbeddedTrackID(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return ""
	}

	for _, raw := range meta.Raw() {
		if comm, ok := raw.(*tag.Comm); ok && strings.EqualFold(comm.Description, "TRACKID") {
			return strings.TrimSpace(comm.Text)
		}
	}
	return ""
}

// fingerprintFile hashes the file contents and captures size and mtime for
// the mapping row.
func fingerprintFile(path string) (hash string, size int64, modified time.Time, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, time.Time{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", 0, time.Time{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", 0, time.Time{}, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), info.Size(), info.ModTime(), nil
}
