package oauth

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
)

// OpenBrowser opens the URL in the user's default browser. Supported on
// Linux, macOS, and Windows.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	// Start without waiting; the browser keeps running on its own.
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	return nil
}

// openBrowserAdvisory opens a URL best-effort. Used for the optional
// pre-login page; failures are logged, never escalated.
func openBrowserAdvisory(url, purpose string) bool {
	if url == "" {
		return false
	}
	if err := OpenBrowser(url); err != nil {
		slog.Debug("Advisory browser open failed",
			"purpose", purpose,
			"error", err.Error(),
		)
		return false
	}
	return true
}
