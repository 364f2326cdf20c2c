package platform

import (
	"fmt"
	"os"
	"path/filepath"
)

// DownloadsDir returns the user's Downloads folder. On Windows this is the
// real known-folder location, which may have been moved by the user or by
// OneDrive. When the folder does not exist the home directory is returned.
func DownloadsDir() (string, error) {
	if dir := knownDownloadsDir(); dir != "" {
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			return dir, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	dir := filepath.Join(home, "Downloads")
	if st, err := os.Stat(dir); err == nil && st.IsDir() {
		return dir, nil
	}
	return home, nil
}

// AppDir returns the directory holding the running executable
func AppDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}
