package main

import (
	"fmt"
	"os/exec"
	"runtime"
)

// browserOpener launches the authorization URL. Tests replace it.
var browserOpener = openBrowser

// openBrowser asks the desktop environment to open url. It returns once the
// helper process has started.
func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", cmd.Path, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
