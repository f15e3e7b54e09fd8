package browser

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ErrNoChrome is returned when no Chrome or Chromium executable can be found.
var ErrNoChrome = errors.New("no Chrome executable found; set browser.exec_path")

// FindChrome locates a Chrome or Chromium executable for the current OS.
func FindChrome() (string, error) {
	return findChrome(runtime.GOOS, os.Getenv, exec.LookPath, fileExists)
}

func findChrome(goos string, getenv func(string) string, lookPath func(string) (string, error), exists func(string) bool) (string, error) {
	for _, candidate := range chromeCandidates(goos, getenv) {
		if filepath.IsAbs(candidate) {
			if exists(candidate) {
				return candidate, nil
			}
			continue
		}
		if path, err := lookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", ErrNoChrome
}

func chromeCandidates(goos string, getenv func(string) string) []string {
	switch goos {
	case "windows":
		var out []string
		for _, env := range []string{"PROGRAMFILES", "PROGRAMFILES(X86)", "LOCALAPPDATA"} {
			if base := getenv(env); base != "" {
				out = append(out, filepath.Join(base, "Google", "Chrome", "Application", "chrome.exe"))
			}
		}
		return append(out, "chrome.exe")
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"google-chrome",
			"chromium",
		}
	default:
		return []string{
			"google-chrome",
			"google-chrome-stable",
			"chromium",
			"chromium-browser",
			"/usr/bin/google-chrome",
			"/snap/bin/chromium",
		}
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
