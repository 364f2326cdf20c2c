package ui

import (
	"context"

	"github.com/ytget/video-downloader/internal/config"
	"github.com/ytget/video-downloader/internal/cookies"
)

// SettingsCookies selects cookies with the browser chosen in the settings dialog
type SettingsCookies struct {
	Base     *cookies.Selector
	Settings *config.Settings
}

// Select runs the base selector with the current preference applied
func (s SettingsCookies) Select(ctx context.Context) (cookies.Source, error) {
	sel := *s.Base
	sel.Forced = s.Settings.GetCookieBrowser()
	return sel.Select(ctx)
}
