// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/desertthunder/spindle/internal/services"
)

// MockLibrary is a configurable test double for [services.Library]. Zero
// value returns empty results; populate the fields to script responses.
type MockLibrary struct {
	Playlists []services.RemotePlaylist
	Items     map[string][]services.RemoteTrack
	Err       error

	CreatedPlaylists []string
	AddedItems       map[string][]string
	RemovedItems     map[string][]string
}

func (m *MockLibrary) Name() string { return "mock" }

func (m *MockLibrary) ListUserPlaylists(ctx context.Context, filter services.FilterConfig) ([]services.RemotePlaylist, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var out []services.RemotePlaylist
	for _, p := range m.Playlists {
		if !filter.Excludes(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MockLibrary) GetPlaylist(ctx context.Context, playlistID string) (*services.RemotePlaylist, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	for _, p := range m.Playlists {
		if p.ID == playlistID {
			return &p, nil
		}
	}
	return nil, errors.New("playlist not found")
}

func (m *MockLibrary) ListPlaylistItems(ctx context.Context, playlistID string) ([]services.RemoteTrack, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Items[playlistID], nil
}

func (m *MockLibrary) ListPlaylistItemURIs(ctx context.Context, playlistID string) ([]string, error) {
	items, err := m.ListPlaylistItems(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	uris := make([]string, 0, len(items))
	for _, item := range items {
		uris = append(uris, item.URI)
	}
	return uris, nil
}

func (m *MockLibrary) CreatePlaylist(ctx context.Context, name, description string, public bool) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	m.CreatedPlaylists = append(m.CreatedPlaylists, name)
	return "created-" + name, nil
}

func (m *MockLibrary) AddItems(ctx context.Context, playlistID string, uris []string) error {
	if m.Err != nil {
		return m.Err
	}
	if m.AddedItems == nil {
		m.AddedItems = make(map[string][]string)
	}
	m.AddedItems[playlistID] = append(m.AddedItems[playlistID], uris...)
	return nil
}

func (m *MockLibrary) RemoveItems(ctx context.Context, playlistID string, uris []string) error {
	if m.Err != nil {
		return m.Err
	}
	if m.RemovedItems == nil {
		m.RemovedItems = make(map[string][]string)
	}
	m.RemovedItems[playlistID] = append(m.RemovedItems[playlistID], uris...)
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
