//go:build !windows

package platform

import (
	"os"
	"path/filepath"
	"strings"
)

// knownDownloadsDir honours XDG_DOWNLOAD_DIR, which may be written as
// "$HOME/Downloads" in user-dirs.dirs style
func knownDownloadsDir() string {
	dir := os.Getenv("XDG_DOWNLOAD_DIR")
	if dir == "" {
		return ""
	}
	if home, err := os.UserHomeDir(); err == nil {
		dir = strings.Replace(dir, "$HOME", home, 1)
	}
	return filepath.Clean(dir)
}
