package ui

import (
	"path/filepath"

	"fyne.io/fyne/v2"

	"github.com/ytget/video-downloader/internal/platform"
)

// AppIcon is looked up next to the executable, then in the working directory
const AppIcon = "video-downloader.png"

// LoadLogoResource loads the window icon; a missing file leaves the default icon
func LoadLogoResource() (fyne.Resource, error) {
	if res, err := fyne.LoadResourceFromPath(filepath.Join(platform.AppDir(), AppIcon)); err == nil {
		return res, nil
	}
	return fyne.LoadResourceFromPath(AppIcon)
}
