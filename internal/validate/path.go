package validate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrEmptyPath     = errors.New("path cannot be empty")
	ErrPathTraversal = errors.New("path traversal detected")
	ErrReservedName  = errors.New("reserved filename")
)

// MaxNameLength bounds names produced by SanitizeName
const MaxNameLength = 100

const illegalNameChars = `<>:"/\|?*`

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// ExpandHome replaces a leading "~" with the user's home directory
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, `~\`) {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[1:])
}

// OutputPath resolves p to an absolute, cleaned path. Relative paths are taken
// from base (or the working directory when base is empty); with a base set the
// result must stay inside it.
func OutputPath(p, base string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", ErrEmptyPath
	}
	p = ExpandHome(p)

	var full string
	if base != "" {
		absBase, err := filepath.Abs(ExpandHome(base))
		if err != nil {
			return "", fmt.Errorf("resolve base %q: %w", base, err)
		}
		full = p
		if !filepath.IsAbs(full) {
			full = filepath.Join(absBase, p)
		}
		full = filepath.Clean(full)
		rel, err := filepath.Rel(absBase, full)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("%w: path must be within %s", ErrPathTraversal, absBase)
		}
	} else {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("resolve %q: %w", p, err)
		}
		full = abs
	}

	if IsReservedName(filepath.Base(full)) {
		return "", fmt.Errorf("%w: %s", ErrReservedName, filepath.Base(full))
	}
	return full, nil
}

// IsReservedName reports Windows device names such as CON or LPT1, with or without extension
func IsReservedName(name string) bool {
	stem := strings.ToUpper(strings.SplitN(name, ".", 2)[0])
	return reservedNames[stem]
}

// SanitizeName makes a remote title safe to use as a file or directory name
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if strings.ContainsRune(illegalNameChars, r) || r < 0x20 {
			b.WriteRune('_')
			continue
		}
		b.WriteRune(r)
	}
	out := []rune(b.String())
	if len(out) > MaxNameLength {
		out = out[:MaxNameLength]
	}
	s := strings.Trim(string(out), ". ")
	if IsReservedName(s) {
		s = "_" + s
	}
	return s
}
