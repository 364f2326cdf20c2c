// Package validate checks user input before it reaches the download engine:
// URLs typed into the window or passed on the command line, output paths and
// names derived from remote titles.
package validate

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	ErrEmptyURL       = errors.New("URL cannot be empty")
	ErrInvalidURL     = errors.New("invalid URL")
	ErrPrivateHost    = errors.New("private/local addresses are not allowed")
	ErrDangerousInput = errors.New("URL contains potentially dangerous patterns")
)

// MaxURLLength bounds accepted URLs
const MaxURLLength = 2048

var allowedSchemes = map[string]bool{"http": true, "https": true}

// Only real shell metacharacter sequences are rejected; parentheses and
// quotes show up in legitimate URLs.
var shellInjection = []*regexp.Regexp{
	regexp.MustCompile(`\$\(`),
	regexp.MustCompile(`\$\{`),
	regexp.MustCompile("`[^`]+`"),
	regexp.MustCompile(`;\s*\w`),
	regexp.MustCompile(`\|\s*\w`),
	regexp.MustCompile(`>\s*/`),
	regexp.MustCompile(`<\s*/`),
}

var privateHost = []*regexp.Regexp{
	regexp.MustCompile(`^localhost`),
	regexp.MustCompile(`^127\.`),
	regexp.MustCompile(`^10\.`),
	regexp.MustCompile(`^172\.(1[6-9]|2[0-9]|3[0-1])\.`),
	regexp.MustCompile(`^192\.168\.`),
	regexp.MustCompile(`^\[::1\]`),
	regexp.MustCompile(`^0\.0\.0\.0`),
}

// URL trims raw and checks scheme, host, length, private addresses and shell
// metacharacters. It returns the trimmed URL.
func URL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrEmptyURL
	}
	if len(s) > MaxURLLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidURL, MaxURLLength)
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !allowedSchemes[strings.ToLower(u.Scheme)] {
		return "", fmt.Errorf("%w: scheme %q, only http and https are allowed", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: URL must have a valid domain", ErrInvalidURL)
	}

	host := strings.ToLower(u.Host)
	for _, re := range privateHost {
		if re.MatchString(host) {
			return "", ErrPrivateHost
		}
	}
	for _, re := range shellInjection {
		if re.MatchString(s) {
			return "", ErrDangerousInput
		}
	}
	return s, nil
}

var playlistPatterns = []*regexp.Regexp{
	regexp.MustCompile(`youtube\.com/playlist\?list=`),
	regexp.MustCompile(`youtube\.com/watch\?.*&list=`),
	regexp.MustCompile(`youtu\.be/.*\?list=`),
}

// MixPrefixes identify auto-generated YouTube radio lists, which never end
var MixPrefixes = []string{"RD", "RDAMVM", "RDCMUC", "RDEM", "RDMM", "RDQM", "RDVM"}

// MixPlaylistLimit caps how many entries of a Mix are downloaded
const MixPlaylistLimit = 25

// IsPlaylistURL reports whether raw points at a playlist rather than a single video
func IsPlaylistURL(raw string) bool {
	for _, re := range playlistPatterns {
		if re.MatchString(raw) {
			return true
		}
	}
	return false
}

// PlaylistID returns the list query parameter, or "" when absent
func PlaylistID(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return u.Query().Get("list")
}

// IsMixPlaylist reports whether raw carries a Mix list id
func IsMixPlaylist(raw string) bool {
	id := PlaylistID(raw)
	if id == "" {
		return false
	}
	for _, prefix := range MixPrefixes {
		if strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return false
}
