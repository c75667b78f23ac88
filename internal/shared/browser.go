package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

var browserGOOS = runtime.GOOS

// OpenBrowser launches the system browser at url. Used to hand the user off
// to the authorization page during login.
func OpenBrowser(url string) error {
	name, args := browserCommand(browserGOOS, url)
	if name == "" {
		return fmt.Errorf("no browser launcher for platform %s", browserGOOS)
	}

	if err := exec.Command(name, args...).Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

func browserCommand(goos, url string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{url}
	case "linux":
		return "xdg-open", []string{url}
	case "windows":
		return "cmd", []string{"/c", "start", url}
	}
	return "", nil
}
