// Package cookies picks the cookie source handed to yt-dlp: a browser whose
// profile exists and whose cookie database is not locked, a Netscape
// cookies.txt file, or nothing.
package cookies

import (
	"path/filepath"
	"slices"
	"strings"
)

// Browsers lists every supported browser in priority order
var Browsers = []string{
	"chrome",
	"edge",
	"brave",
	"opera",
	"vivaldi",
	"chromium",
	"whale",
	"firefox",
	"safari",
}

// None disables cookies when used as the forced browser
const None = "none"

// profileDirs returns candidate profile directories relative to home.
// Windows, Linux and macOS locations are listed together; only existing ones matter.
var profileDirs = map[string][]string{
	"chrome": {
		"AppData/Local/Google/Chrome/User Data",
		".config/google-chrome",
		"Library/Application Support/Google/Chrome",
	},
	"edge": {
		"AppData/Local/Microsoft/Edge/User Data",
		".config/microsoft-edge",
		"Library/Application Support/Microsoft Edge",
	},
	"brave": {
		"AppData/Local/BraveSoftware/Brave-Browser/User Data",
		".config/BraveSoftware/Brave-Browser",
		"Library/Application Support/BraveSoftware/Brave-Browser",
	},
	"opera": {
		"AppData/Roaming/Opera Software/Opera Stable",
		".config/opera",
		"Library/Application Support/com.operasoftware.Opera",
	},
	"vivaldi": {
		"AppData/Local/Vivaldi/User Data",
		".config/vivaldi",
		"Library/Application Support/Vivaldi",
	},
	"chromium": {
		"AppData/Local/Chromium/User Data",
		".config/chromium",
		"Library/Application Support/Chromium",
	},
	"whale": {
		"AppData/Local/Naver/Naver Whale/User Data",
		".config/naver-whale",
	},
	"firefox": {
		"AppData/Roaming/Mozilla/Firefox/Profiles",
		".mozilla/firefox",
		"Library/Application Support/Firefox/Profiles",
	},
}

// processNames are the executables whose presence means the cookie database
// is locked. Firefox and Safari do not lock theirs.
var processNames = map[string]string{
	"chrome":   "chrome",
	"edge":     "msedge",
	"brave":    "brave",
	"opera":    "opera",
	"vivaldi":  "vivaldi",
	"chromium": "chromium",
	"whale":    "whale",
}

// IsSupported reports whether name is a browser yt-dlp can read cookies from
func IsSupported(name string) bool {
	return slices.Contains(Browsers, strings.ToLower(strings.TrimSpace(name)))
}

func profilePaths(home, browser string) []string {
	rel := profileDirs[browser]
	out := make([]string, 0, len(rel))
	for _, r := range rel {
		out = append(out, filepath.Join(home, filepath.FromSlash(r)))
	}
	return out
}

// locksDatabase reports whether a running browser blocks cookie extraction
func locksDatabase(browser string) bool {
	_, ok := processNames[browser]
	return ok
}

// normalizeProcessName strips the Windows extension and case
func normalizeProcessName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(name, ".exe")
}
