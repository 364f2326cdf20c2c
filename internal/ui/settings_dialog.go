package ui

import (
	"sort"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/ytget/video-downloader/internal/config"
)

// SettingsDialog edits the persisted preferences
type SettingsDialog struct {
	settings     *config.Settings
	localization *Localization
	window       fyne.Window
	dialog       *dialog.ConfirmDialog
	onSaved      func()

	maxParallelEntry *widget.Entry
	qualitySelect    *widget.Select
	cookieSelect     *widget.Select
	languageSelect   *widget.Select
	autoRevealCheck  *widget.Check

	// language labels to codes
	languageCodes map[string]string
}

// NewSettingsDialog creates a new settings dialog; onSaved runs after a successful save
func NewSettingsDialog(settings *config.Settings, localization *Localization, window fyne.Window, onSaved func()) *SettingsDialog {
	sd := &SettingsDialog{
		settings:     settings,
		localization: localization,
		window:       window,
		onSaved:      onSaved,
	}
	sd.createUI()
	return sd
}

// Show displays the settings dialog
func (sd *SettingsDialog) Show() {
	sd.loadCurrentSettings()
	sd.dialog.Show()
}

func (sd *SettingsDialog) createUI() {
	l := sd.localization

	sd.maxParallelEntry = widget.NewEntry()
	sd.maxParallelEntry.SetPlaceHolder("1-" + strconv.Itoa(config.MaxParallelLimit))
	sd.maxParallelEntry.Validator = func(s string) error {
		_, err := parseParallel(s)
		return err
	}

	sd.qualitySelect = widget.NewSelect(sd.settings.GetQualityOptions(), nil)
	sd.cookieSelect = widget.NewSelect(sd.settings.GetCookieBrowserOptions(), nil)

	sd.languageCodes = map[string]string{}
	labels := []string{}
	for code, label := range sd.settings.GetLanguageOptions() {
		sd.languageCodes[label] = code
		labels = append(labels, label)
	}
	sort.Strings(labels)
	sd.languageSelect = widget.NewSelect(labels, nil)

	sd.autoRevealCheck = widget.NewCheck(l.GetText(KeyAutoReveal), nil)

	form := widget.NewForm(
		widget.NewFormItem(l.GetText(KeyMaxParallel), sd.maxParallelEntry),
		widget.NewFormItem(l.GetText(KeyDefaultQuality), sd.qualitySelect),
		widget.NewFormItem(l.GetText(KeyCookieBrowser), sd.cookieSelect),
		widget.NewFormItem(l.GetText(KeyLanguage), sd.languageSelect),
	)

	sd.dialog = dialog.NewCustomConfirm(
		l.GetText(KeySettings),
		l.GetText(KeySave),
		l.GetText(KeyCancel),
		container.NewVBox(form, sd.autoRevealCheck),
		sd.onSave,
		sd.window,
	)
	sd.dialog.Resize(fyne.NewSize(SettingsDialogWidth, SettingsDialogHeight))
}

func (sd *SettingsDialog) loadCurrentSettings() {
	sd.maxParallelEntry.SetText(strconv.Itoa(sd.settings.GetMaxParallelDownloads()))
	sd.qualitySelect.SetSelected(sd.settings.GetQuality())

	browser := sd.settings.GetCookieBrowser()
	if browser == "" {
		browser = config.CookieBrowserAuto
	}
	sd.cookieSelect.SetSelected(browser)

	lang := sd.settings.GetLanguage()
	sd.languageSelect.SetSelected(sd.settings.GetLanguageOptions()[lang])
	sd.autoRevealCheck.SetChecked(sd.settings.GetAutoRevealOnComplete())
}

func (sd *SettingsDialog) onSave(confirmed bool) {
	if !confirmed {
		return
	}
	sd.apply()
	dialog.ShowInformation(sd.localization.GetText(KeySettings), sd.localization.GetText(KeySettingsSaved), sd.window)
}

// apply writes the dialog fields to the preferences
func (sd *SettingsDialog) apply() {
	if n, err := parseParallel(sd.maxParallelEntry.Text); err == nil {
		sd.settings.SetMaxParallelDownloads(n)
	}
	if sd.qualitySelect.Selected != "" {
		sd.settings.SetQuality(sd.qualitySelect.Selected)
	}
	if sd.cookieSelect.Selected != "" {
		sd.settings.SetCookieBrowser(sd.cookieSelect.Selected)
	}
	if code, ok := sd.languageCodes[sd.languageSelect.Selected]; ok {
		sd.settings.SetLanguage(code)
		sd.localization.SetLanguage(code)
	}
	sd.settings.SetAutoRevealOnComplete(sd.autoRevealCheck.Checked)

	if sd.onSaved != nil {
		sd.onSaved()
	}
}

type parallelRangeError struct{}

func (parallelRangeError) Error() string {
	return "must be between 1 and " + strconv.Itoa(config.MaxParallelLimit)
}

func parseParallel(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 1 || n > config.MaxParallelLimit {
		return 0, parallelRangeError{}
	}
	return n, nil
}
