package main

import (
	"log/slog"
	"os/exec"
	"runtime"
)

// openFile hands path to the desktop's default viewer. Failures are only
// logged; the image is already on disk.
func openFile(path string, logger *slog.Logger) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", path)
	case "darwin":
		cmd = exec.Command("open", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	if err := cmd.Start(); err != nil {
		logger.Debug("cannot open rendered file", "path", path, "error", err)
		return
	}
	go cmd.Wait()
}
