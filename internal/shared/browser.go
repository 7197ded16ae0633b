package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

// browserCommands maps GOOS to the command that hands a URL to the desktop's default browser.
var browserCommands = map[string][]string{
	"darwin":  {"open"},
	"linux":   {"xdg-open"},
	"freebsd": {"xdg-open"},
	"openbsd": {"xdg-open"},
	"windows": {"rundll32", "url.dll,FileProtocolHandler"},
}

var goos = runtime.GOOS

// OpenBrowser starts the default browser on url without waiting for it to exit.
func OpenBrowser(url string) error {
	launcher, ok := browserCommands[goos]
	if !ok {
		return fmt.Errorf("%w: no browser launcher for %s", ErrServiceUnavailable, goos)
	}

	args := append(append([]string{}, launcher[1:]...), url)
	cmd := exec.Command(launcher[0], args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	go cmd.Wait()

	return nil
}
