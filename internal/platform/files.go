package platform

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/ytget/video-downloader/internal/validate"
)

// Operating system constants
const (
	OSDarwin  = "darwin"
	OSWindows = "windows"
	OSLinux   = "linux"
)

// File permissions
const (
	DefaultDirPermissions = 0755
)

// Command constants
const (
	OpenCommand     = "open"
	ExplorerCommand = "explorer"
	XDGOpenCommand  = "xdg-open"
	CmdCommand      = "cmd"
	StartCommand    = "start"
)

// Command parameters
const (
	MacOSSelectFlag    = "-R"
	WindowsSelectParam = "/select,"
	WindowsCmdFlag     = "/c"
)

// LinuxFileManagers are tried when xdg-open is missing
var LinuxFileManagers = []string{"nautilus", "dolphin", "thunar", "nemo", "pcmanfm"}

// partialSuffixes mark files yt-dlp is still writing
var partialSuffixes = []string{".part", ".ytdl", ".temp"}

// ErrFileNotFound is returned when no downloaded file matches
var ErrFileNotFound = errors.New("downloaded file not found")

// OpenFolder opens a directory in the system file manager
func OpenFolder(dir string) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	if st, err := os.Stat(absDir); err != nil || !st.IsDir() {
		return fmt.Errorf("folder does not exist: %s", absDir)
	}

	switch runtime.GOOS {
	case OSDarwin:
		return exec.Command(OpenCommand, absDir).Start()
	case OSWindows:
		return exec.Command(ExplorerCommand, absDir).Start()
	default:
		return openWithLinuxManager(absDir)
	}
}

// OpenFileInManager opens the file manager with the file selected where the
// platform supports it, otherwise the containing folder
func OpenFileInManager(filePath string) error {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	if _, err := os.Stat(absPath); err != nil {
		return fmt.Errorf("file does not exist: %v", err)
	}

	switch runtime.GOOS {
	case OSDarwin:
		return exec.Command(OpenCommand, MacOSSelectFlag, absPath).Start()
	case OSWindows:
		return exec.Command(ExplorerCommand, WindowsSelectParam+absPath).Start()
	default:
		// file selection is not standardized on Linux
		return openWithLinuxManager(filepath.Dir(absPath))
	}
}

func openWithLinuxManager(dir string) error {
	if err := exec.Command(XDGOpenCommand, dir).Start(); err == nil {
		return nil
	}
	for _, fm := range LinuxFileManagers {
		if _, err := exec.LookPath(fm); err == nil {
			return exec.Command(fm, dir).Start()
		}
	}
	return fmt.Errorf("no suitable file manager found")
}

// OpenFileWithDefaultApp opens the file with the default system application
func OpenFileWithDefaultApp(filePath string) error {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	if _, err := os.Stat(absPath); err != nil {
		return fmt.Errorf("file does not exist: %v", err)
	}

	switch runtime.GOOS {
	case OSDarwin:
		return exec.Command(OpenCommand, absPath).Start()
	case OSWindows:
		return exec.Command(CmdCommand, WindowsCmdFlag, StartCommand, "", absPath).Start()
	default:
		return exec.Command(XDGOpenCommand, absPath).Start()
	}
}

// CreateDirectoryIfNotExists creates directory if it doesn't exist
func CreateDirectoryIfNotExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}

// FindDownloadedFile locates the file yt-dlp produced in dir when the engine
// did not report it. Files are named "<title>_<id>.<ext>", so the video id
// is the most reliable key; the sanitized title is the fallback. Among
// several matches the most recently modified one wins.
func FindDownloadedFile(dir, videoID, title string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", dir, err)
	}

	idKey := ""
	if videoID != "" {
		idKey = "_" + videoID + "."
	}
	titleKey := strings.ToLower(validate.SanitizeName(title))

	type candidate struct {
		path  string
		mtime int64
	}
	var byID, byTitle []candidate
	for _, e := range entries {
		if e.IsDir() || isPartial(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		c := candidate{filepath.Join(dir, e.Name()), info.ModTime().UnixNano()}
		switch {
		case idKey != "" && strings.Contains(e.Name(), idKey):
			byID = append(byID, c)
		case titleKey != "" && strings.HasPrefix(strings.ToLower(e.Name()), titleKey):
			byTitle = append(byTitle, c)
		}
	}

	for _, group := range [][]candidate{byID, byTitle} {
		if len(group) == 0 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].mtime > group[j].mtime })
		return group[0].path, nil
	}
	return "", ErrFileNotFound
}

func isPartial(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range partialSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}
