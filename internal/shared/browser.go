package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

// browserCommand returns the launcher for goos, or false when the platform has none.
func browserCommand(goos, url string) ([]string, bool) {
	switch goos {
	case "darwin":
		return []string{"open", url}, true
	case "linux", "freebsd", "openbsd":
		return []string{"xdg-open", url}, true
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler", url}, true
	default:
		return nil, false
	}
}

// OpenBrowser opens the default system browser to url without waiting for it to exit.
func OpenBrowser(url string) error {
	args, ok := browserCommand(runtime.GOOS, url)
	if !ok {
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	if err := exec.Command(args[0], args[1:]...).Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
