package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/ytget/video-downloader/internal/config"
	"github.com/ytget/video-downloader/internal/diag"
	"github.com/ytget/video-downloader/internal/download"
	"github.com/ytget/video-downloader/internal/events"
	"github.com/ytget/video-downloader/internal/model"
	"github.com/ytget/video-downloader/internal/platform"
	"github.com/ytget/video-downloader/internal/preflight"
	"github.com/ytget/video-downloader/internal/validate"
)

// Downloader is the part of the download service the window drives
type Downloader interface {
	Run(ctx context.Context, req download.Request) (model.DownloadTask, error)
	DownloadPlaylist(ctx context.Context, req download.Request) (*download.PlaylistResult, error)
	StopTask(id string) error
	RemoveTask(id string) error
	GetAllTasks() []model.DownloadTask
	SetUpdateCallback(func(model.DownloadTask))
	SetMaxParallel(n int)
	SetOutputDir(dir string)
	Bus() *events.Bus
}

// PreflightFunc checks the system before a download starts
type PreflightFunc func(ctx context.Context, outputDir string) preflight.Result

// FileActions open downloaded files with the OS
type FileActions struct {
	OpenFolder func(dir string) error
	Reveal     func(path string) error
	Open       func(path string) error
}

// Options configure the main window
type Options struct {
	App         fyne.App
	Window      fyne.Window
	Service     Downloader
	Settings    *config.Settings
	Diagnostics *diag.Buffer
	Preflight   PreflightFunc
	Files       FileActions
	Logger      *slog.Logger
}

// RootUI represents the main UI structure
type RootUI struct {
	app          fyne.App
	window       fyne.Window
	downloadSvc  Downloader
	settings     *config.Settings
	localization *Localization
	preflight    PreflightFunc
	files        FileActions
	logger       *slog.Logger

	urlEntry      *widget.Entry
	qualitySelect *widget.Select
	downloadBtn   *widget.Button
	cancelBtn     *widget.Button
	settingsBtn   *widget.Button
	folderCaption *widget.Label
	folderLabel   *widget.Label
	browseBtn     *widget.Button
	progressBar   *widget.ProgressBar
	statusLabel   *widget.Label
	tasksLabel    *widget.Label
	taskList      *widget.List
	diagnostics   *DiagnosticsPane

	// owned by the fyne goroutine
	tasks      []model.DownloadTask
	itemPrefix string

	mu           sync.Mutex
	cancel       context.CancelFunc
	lastUIUpdate time.Time

	unsubscribe []func()
}

// NewRootUI builds the window content and wires it to the service
func NewRootUI(opts Options) *RootUI {
	ui := &RootUI{
		app:          opts.App,
		window:       opts.Window,
		downloadSvc:  opts.Service,
		settings:     opts.Settings,
		localization: NewLocalization(),
		preflight:    opts.Preflight,
		files:        opts.Files,
		logger:       opts.Logger,
	}
	if ui.logger == nil {
		ui.logger = slog.Default()
	}
	if ui.files.OpenFolder == nil {
		ui.files.OpenFolder = platform.OpenFolder
	}
	if ui.files.Reveal == nil {
		ui.files.Reveal = platform.OpenFileInManager
	}
	if ui.files.Open == nil {
		ui.files.Open = platform.OpenFileWithDefaultApp
	}
	ui.localization.SetLanguage(ui.settings.GetLanguage())

	dir := ui.settings.GetDownloadDirectory()
	if err := platform.CreateDirectoryIfNotExists(dir); err != nil {
		ui.logger.Warn("output folder unavailable", "dir", dir, "error", err)
	}
	ui.downloadSvc.SetOutputDir(dir)
	ui.downloadSvc.SetMaxParallel(ui.settings.GetMaxParallelDownloads())
	ui.downloadSvc.SetUpdateCallback(ui.onTaskUpdate)

	if unsub, err := ui.downloadSvc.Bus().OnPlaylistItem(ui.onPlaylistItem); err == nil {
		ui.unsubscribe = append(ui.unsubscribe, unsub)
	}

	ui.window.SetTitle(ui.localization.GetText(KeyAppTitle))
	ui.setupUI(opts.Diagnostics)
	return ui
}

func (ui *RootUI) setupUI(buf *diag.Buffer) {
	l := ui.localization
	ui.createMenu()

	ui.urlEntry = widget.NewEntry()
	ui.urlEntry.SetPlaceHolder(l.GetText(KeyEnterURL))
	ui.urlEntry.OnSubmitted = func(string) { ui.onDownloadClick() }

	ui.qualitySelect = widget.NewSelect(ui.settings.GetQualityOptions(), func(q string) {
		ui.settings.SetQuality(q)
	})
	ui.qualitySelect.SetSelected(ui.settings.GetQuality())

	ui.downloadBtn = widget.NewButton(l.GetText(KeyDownload), ui.onDownloadClick)
	ui.downloadBtn.Importance = widget.HighImportance
	ui.cancelBtn = widget.NewButton(l.GetText(KeyCancel), ui.onCancelClick)
	ui.cancelBtn.Disable()

	ui.settingsBtn = widget.NewButton(IconSettings, ui.onShowSettings)
	ui.settingsBtn.Importance = widget.LowImportance

	left := container.NewHBox(ui.settingsBtn)
	if logo, err := LoadLogoResource(); err == nil {
		img := canvas.NewImageFromResource(logo)
		img.SetMinSize(fyne.NewSize(32, 32))
		img.FillMode = canvas.ImageFillContain
		left = container.NewHBox(img, ui.settingsBtn)
	}
	topRow := container.NewBorder(nil, nil, left,
		container.NewHBox(ui.qualitySelect, ui.downloadBtn, ui.cancelBtn), ui.urlEntry)

	ui.folderCaption = widget.NewLabel(l.GetText(KeyOutputFolder) + ":")
	ui.folderLabel = widget.NewLabel(ui.settings.GetDownloadDirectory())
	ui.folderLabel.Truncation = fyne.TextTruncateEllipsis
	ui.browseBtn = widget.NewButton(l.GetText(KeyBrowse), ui.onBrowseFolder)
	folderRow := container.NewBorder(nil, nil, ui.folderCaption, ui.browseBtn, ui.folderLabel)

	ui.progressBar = widget.NewProgressBar()
	ui.statusLabel = widget.NewLabel(l.GetText(KeyReady))
	ui.statusLabel.Truncation = fyne.TextTruncateEllipsis

	top := container.NewVBox(topRow, folderRow, ui.progressBar, ui.statusLabel, widget.NewSeparator())

	ui.tasksLabel = widget.NewLabel(l.GetText(KeyTasks))
	ui.tasksLabel.TextStyle = fyne.TextStyle{Bold: true}
	ui.taskList = widget.NewList(
		func() int { return len(ui.tasks) },
		func() fyne.CanvasObject { return NewTaskRow(model.DownloadTask{}, ui.localization) },
		ui.updateTaskItem,
	)
	tasksPane := container.NewBorder(ui.tasksLabel, nil, nil, nil, ui.taskList)

	var center fyne.CanvasObject = tasksPane
	if buf != nil {
		ui.diagnostics = NewDiagnosticsPane(buf, l, ui.window, ui.settings.GetDownloadDirectory)
		split := container.NewVSplit(tasksPane, ui.diagnostics.Content())
		split.SetOffset(TasksSplitOffset)
		center = split
	}

	ui.window.SetContent(container.NewBorder(top, nil, nil, nil, center))
}

func (ui *RootUI) createMenu() {
	settingsItem := fyne.NewMenuItem(ui.localization.GetText(KeySettings), ui.onShowSettings)

	languageMenu := fyne.NewMenu(ui.localization.GetText(KeyLanguage))
	available := ui.localization.GetAvailableLanguages()
	for _, code := range ui.localization.languageCodes() {
		langCode := code
		item := fyne.NewMenuItem(available[code], func() { ui.onLanguageChange(langCode) })
		item.Checked = ui.localization.GetCurrentLanguage() == code
		languageMenu.Items = append(languageMenu.Items, item)
	}

	ui.window.SetMainMenu(fyne.NewMainMenu(
		fyne.NewMenu(ui.localization.GetText(KeyFile), settingsItem),
		languageMenu,
	))
}

func (ui *RootUI) onLanguageChange(langCode string) {
	ui.localization.SetLanguage(langCode)
	ui.settings.SetLanguage(langCode)
	ui.refreshUITexts()
	ui.createMenu()
}

func (ui *RootUI) refreshUITexts() {
	l := ui.localization
	ui.window.SetTitle(l.GetText(KeyAppTitle))
	ui.urlEntry.SetPlaceHolder(l.GetText(KeyEnterURL))
	ui.downloadBtn.SetText(l.GetText(KeyDownload))
	ui.cancelBtn.SetText(l.GetText(KeyCancel))
	ui.folderCaption.SetText(l.GetText(KeyOutputFolder) + ":")
	ui.browseBtn.SetText(l.GetText(KeyBrowse))
	ui.tasksLabel.SetText(l.GetText(KeyTasks))
	if !ui.isRunning() {
		ui.statusLabel.SetText(l.GetText(KeyReady))
	}
	if ui.diagnostics != nil {
		ui.diagnostics.RefreshTexts()
	}
	ui.taskList.Refresh()
}

func (ui *RootUI) onShowSettings() {
	NewSettingsDialog(ui.settings, ui.localization, ui.window, func() {
		ui.downloadSvc.SetMaxParallel(ui.settings.GetMaxParallelDownloads())
		ui.qualitySelect.SetSelected(ui.settings.GetQuality())
		ui.refreshUITexts()
		ui.createMenu()
	}).Show()
}

func (ui *RootUI) onBrowseFolder() {
	dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
		if err != nil || uri == nil {
			return
		}
		ui.setOutputDir(uri.Path())
	}, ui.window)
}

func (ui *RootUI) setOutputDir(dir string) {
	ui.settings.SetDownloadDirectory(dir)
	ui.downloadSvc.SetOutputDir(dir)
	ui.folderLabel.SetText(dir)
	ui.logger.Info("output folder changed", "dir", dir)
}

func (ui *RootUI) isRunning() bool {
	ui.mu.Lock()
	defer ui.mu.Unlock()
	return ui.cancel != nil
}

// setRunning swaps the Download and Cancel buttons
func (ui *RootUI) setRunning(cancel context.CancelFunc) {
	ui.mu.Lock()
	ui.cancel = cancel
	ui.mu.Unlock()

	if cancel != nil {
		ui.downloadBtn.Disable()
		ui.cancelBtn.Enable()
		return
	}
	ui.downloadBtn.Enable()
	ui.cancelBtn.Disable()
	ui.itemPrefix = ""
}

func (ui *RootUI) onDownloadClick() {
	if ui.isRunning() {
		ui.statusLabel.SetText(ui.localization.GetText(KeyAlreadyDownloading))
		return
	}

	raw, err := validate.URL(ui.urlEntry.Text)
	if err != nil {
		ui.statusLabel.SetText(ui.localization.GetText(KeyInvalidURL))
		dialog.ShowError(err, ui.window)
		return
	}

	req := download.Request{
		URL:       raw,
		OutputDir: ui.settings.GetDownloadDirectory(),
		Quality:   ui.qualitySelect.Selected,
	}

	if validate.IsPlaylistURL(raw) {
		dialog.ShowConfirm(
			ui.localization.GetText(KeyPlaylistDetected),
			ui.localization.GetText(KeyPlaylistQuestion),
			func(whole bool) {
				req.Playlist = whole
				ui.start(req)
			}, ui.window)
		return
	}
	ui.start(req)
}

func (ui *RootUI) onCancelClick() {
	ui.mu.Lock()
	cancel := ui.cancel
	ui.mu.Unlock()
	if cancel != nil {
		ui.logger.Info("cancel requested")
		cancel()
	}
}

func (ui *RootUI) start(req download.Request) {
	ctx, cancel := context.WithCancel(context.Background())
	ui.setRunning(cancel)
	ui.progressBar.SetValue(0)
	ui.statusLabel.SetText(ui.localization.GetText(KeyCheckingSystem))
	go ui.runDownload(ctx, req)
}

// runDownload runs off the fyne goroutine; widget updates go through fyne.Do
func (ui *RootUI) runDownload(ctx context.Context, req download.Request) {
	if ui.preflight != nil && ui.settings.Config().Preflight.Enabled {
		res := ui.preflight(ctx, req.OutputDir)
		for _, w := range res.Warnings {
			ui.logger.Warn(w)
		}
		if !res.Passed {
			for _, issue := range res.Issues {
				ui.logger.Error("pre-flight check failed", slog.String("issue", issue))
			}
			fyne.Do(func() {
				ui.setRunning(nil)
				ui.statusLabel.SetText(ui.localization.GetText(KeyPreflightFailed))
				dialog.ShowError(errors.New(strings.Join(res.Issues, "\n")), ui.window)
			})
			return
		}
	}

	if req.Playlist {
		res, err := ui.downloadSvc.DownloadPlaylist(ctx, req)
		fyne.Do(func() { ui.onPlaylistFinished(res, err) })
		return
	}
	task, err := ui.downloadSvc.Run(ctx, req)
	fyne.Do(func() { ui.onDownloadFinished(task, err) })
}

func (ui *RootUI) onDownloadFinished(task model.DownloadTask, err error) {
	ui.setRunning(nil)
	ui.urlEntry.SetText("")

	switch {
	case err == nil:
		ui.progressBar.SetValue(1)
		ui.statusLabel.SetText(ui.localization.GetText(KeyDownloadCompleted) + StatusSeparator + task.GetDisplayTitle())
		ui.showCompleted(task.OutputPath)
	case errors.Is(err, context.Canceled):
		ui.statusLabel.SetText(ui.localization.GetText(KeyDownloadCancelled))
	default:
		ui.statusLabel.SetText(ui.localization.GetText(KeyDownloadFailed))
		dialog.ShowError(err, ui.window)
	}
}

func (ui *RootUI) onPlaylistFinished(res *download.PlaylistResult, err error) {
	ui.setRunning(nil)
	ui.urlEntry.SetText("")

	if res == nil {
		if errors.Is(err, context.Canceled) {
			ui.statusLabel.SetText(ui.localization.GetText(KeyDownloadCancelled))
			return
		}
		ui.statusLabel.SetText(ui.localization.GetText(KeyDownloadFailed))
		if err != nil {
			dialog.ShowError(err, ui.window)
		}
		return
	}

	summary := fmt.Sprintf(ui.localization.GetText(KeyPlaylistSummary), res.Completed, res.Total, res.Failed, res.Skipped)
	ui.statusLabel.SetText(ui.localization.GetText(KeyPlaylistCompleted) + StatusSeparator + summary)
	if errors.Is(err, context.Canceled) {
		ui.statusLabel.SetText(ui.localization.GetText(KeyDownloadCancelled) + StatusSeparator + summary)
		return
	}
	if res.Completed > 0 {
		ui.progressBar.SetValue(1)
		ui.showCompletedFolder(res.Dir, summary)
	}
}

// showCompleted offers to open the folder holding path
func (ui *RootUI) showCompleted(path string) {
	dir := filepath.Dir(path)
	if path == "" {
		dir = ui.settings.GetDownloadDirectory()
	}
	if ui.settings.GetAutoRevealOnComplete() && path != "" {
		ui.openFile(ui.files.Reveal, path)
		return
	}
	ui.showCompletedFolder(dir, path)
}

func (ui *RootUI) showCompletedFolder(dir, message string) {
	if ui.settings.GetAutoRevealOnComplete() {
		ui.openFile(ui.files.OpenFolder, dir)
		return
	}
	d := dialog.NewConfirm(ui.localization.GetText(KeyDownloadCompleted), message, func(open bool) {
		if open {
			ui.openFile(ui.files.OpenFolder, dir)
		}
	}, ui.window)
	d.SetConfirmText(ui.localization.GetText(KeyOpenFolder))
	d.SetDismissText(ui.localization.GetText(KeyClose))
	d.Show()
}

func (ui *RootUI) openFile(fn func(string) error, path string) {
	if err := fn(path); err != nil {
		ui.logger.Error("failed to open", "path", path, "error", err)
		dialog.ShowError(fmt.Errorf("%s: %w", ui.localization.GetText(KeyErrorOpeningFile), err), ui.window)
	}
}

// onTaskUpdate is called by the service from worker goroutines
func (ui *RootUI) onTaskUpdate(task model.DownloadTask) {
	if task.Status == model.TaskStatusDownloading && !ui.shouldRepaint() {
		return
	}
	fyne.Do(func() {
		ui.upsertTask(task)
		if task.Status.IsActive() {
			ui.showProgress(task)
		}
	})
}

// shouldRepaint drops progress repaints closer than UIUpdateDebounce
func (ui *RootUI) shouldRepaint() bool {
	ui.mu.Lock()
	defer ui.mu.Unlock()
	now := time.Now()
	if now.Sub(ui.lastUIUpdate) < UIUpdateDebounce {
		return false
	}
	ui.lastUIUpdate = now
	return true
}

func (ui *RootUI) upsertTask(task model.DownloadTask) {
	for i := range ui.tasks {
		if ui.tasks[i].ID == task.ID {
			ui.tasks[i] = task
			ui.taskList.RefreshItem(i)
			return
		}
	}
	ui.tasks = append(ui.tasks, task)
	ui.taskList.Refresh()
}

// showProgress renders "Downloading: <title> | <speed> | ETA <eta>"
func (ui *RootUI) showProgress(task model.DownloadTask) {
	ui.progressBar.SetValue(task.Progress)

	var text string
	switch task.Status {
	case model.TaskStatusRetrying:
		text = fmt.Sprintf("%s (%d): %s", ui.localization.GetText(KeyRetrying), task.Attempt, cleanText(task.LastError))
	case model.TaskStatusDownloading:
		speed := task.Speed
		if speed == "" {
			speed = DashPlaceholder
		}
		text = ui.localization.GetText(KeyDownloading) + ": " + cleanText(task.GetDisplayTitle()) +
			StatusSeparator + speed + StatusSeparator + "ETA " + task.GetETAString()
	default:
		text = ui.localization.GetText(KeyDownloading) + ": " + cleanText(task.GetDisplayTitle())
	}
	ui.statusLabel.SetText(ui.itemPrefix + text)
}

func (ui *RootUI) onPlaylistItem(e events.PlaylistItemEvent) {
	if e.Video.Status != model.VideoStatusDownloading {
		return
	}
	fyne.Do(func() {
		ui.itemPrefix = fmt.Sprintf("[%d/%d] ", e.Video.Index, e.Total)
	})
}

func (ui *RootUI) updateTaskItem(id widget.ListItemID, obj fyne.CanvasObject) {
	if id >= len(ui.tasks) {
		return
	}
	row := obj.(*TaskRow)
	row.refreshTexts()
	row.SetActions(TaskActions{
		Stop:     ui.onStopTask,
		Reveal:   func(p string) { ui.openFile(ui.files.Reveal, p) },
		Open:     func(p string) { ui.openFile(ui.files.Open, p) },
		CopyPath: ui.onCopyPath,
		Remove:   ui.onRemoveTask,
	})
	row.UpdateTask(ui.tasks[id])
}

func (ui *RootUI) onStopTask(taskID string) {
	if err := ui.downloadSvc.StopTask(taskID); err != nil {
		dialog.ShowError(fmt.Errorf("%s: %w", ui.localization.GetText(KeyErrorStoppingTask), err), ui.window)
	}
}

func (ui *RootUI) onCopyPath(filePath string) {
	ui.app.Clipboard().SetContent(filePath)
	ui.statusLabel.SetText(ui.localization.GetText(KeyPathCopied))
}

func (ui *RootUI) onRemoveTask(taskID string) {
	if err := ui.downloadSvc.RemoveTask(taskID); err != nil {
		dialog.ShowError(fmt.Errorf("%s: %w", ui.localization.GetText(KeyErrorRemovingTask), err), ui.window)
		return
	}
	for i := range ui.tasks {
		if ui.tasks[i].ID == taskID {
			ui.tasks = append(ui.tasks[:i], ui.tasks[i+1:]...)
			break
		}
	}
	ui.taskList.Refresh()
}

// Close releases subscriptions; it does not stop the service
func (ui *RootUI) Close() {
	ui.onCancelClick()
	for _, unsub := range ui.unsubscribe {
		unsub()
	}
	if ui.diagnostics != nil {
		ui.diagnostics.Close()
	}
}
