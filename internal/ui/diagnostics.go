package ui

import (
	"errors"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/ytget/video-downloader/internal/diag"
)

// DiagnosticsPane shows the in-memory log and exports it
type DiagnosticsPane struct {
	buffer       *diag.Buffer
	localization *Localization
	window       fyne.Window
	exportDir    func() string

	entries     []diag.Entry
	list        *widget.List
	clearBtn    *widget.Button
	exportBtn   *widget.Button
	title       *widget.Label
	unsubscribe func()

	content fyne.CanvasObject
}

// NewDiagnosticsPane subscribes to buf; exportDir picks the folder exported logs go to
func NewDiagnosticsPane(buf *diag.Buffer, localization *Localization, window fyne.Window, exportDir func() string) *DiagnosticsPane {
	p := &DiagnosticsPane{
		buffer:       buf,
		localization: localization,
		window:       window,
		exportDir:    exportDir,
		entries:      buf.Entries(),
	}
	p.createUI()
	p.unsubscribe = buf.Subscribe(func(e diag.Entry) {
		fyne.Do(func() { p.append(e) })
	})
	return p
}

func (p *DiagnosticsPane) createUI() {
	p.list = widget.NewList(
		func() int { return len(p.entries) },
		func() fyne.CanvasObject {
			l := widget.NewLabel("")
			l.TextStyle = fyne.TextStyle{Monospace: true}
			l.Truncation = fyne.TextTruncateEllipsis
			return l
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			if id >= len(p.entries) {
				return
			}
			e := p.entries[id]
			l := obj.(*widget.Label)
			l.Importance = levelImportance(e.Level)
			l.SetText(e.String())
		},
	)

	p.title = widget.NewLabel(p.localization.GetText(KeyDiagnostics))
	p.title.TextStyle = fyne.TextStyle{Bold: true}
	p.clearBtn = widget.NewButton(p.localization.GetText(KeyClear), p.Clear)
	p.exportBtn = widget.NewButton(p.localization.GetText(KeyExportLogs), p.Export)

	header := container.NewBorder(nil, nil, p.title, container.NewHBox(p.clearBtn, p.exportBtn))
	p.content = container.NewBorder(header, nil, nil, nil, p.list)
}

// Content returns the pane's canvas object
func (p *DiagnosticsPane) Content() fyne.CanvasObject {
	return p.content
}

func (p *DiagnosticsPane) append(e diag.Entry) {
	p.entries = append(p.entries, e)
	if over := len(p.entries) - diag.DefaultCapacity; over > 0 {
		p.entries = p.entries[over:]
	}
	p.list.Refresh()
	p.list.ScrollToBottom()
}

// Clear empties the buffer and the pane
func (p *DiagnosticsPane) Clear() {
	p.buffer.Clear()
	p.entries = nil
	p.list.Refresh()
}

// Export writes the log to the export folder and reports the file path
func (p *DiagnosticsPane) Export() {
	path, err := p.buffer.Export(p.exportDir())
	switch {
	case errors.Is(err, diag.ErrEmpty):
		dialog.ShowInformation(p.localization.GetText(KeyExportLogs), p.localization.GetText(KeyNothingToExport), p.window)
	case err != nil:
		dialog.ShowError(err, p.window)
	default:
		dialog.ShowInformation(p.localization.GetText(KeyExportLogs), p.localization.GetText(KeyLogsExported)+"\n"+path, p.window)
	}
}

// RefreshTexts re-applies localized captions
func (p *DiagnosticsPane) RefreshTexts() {
	p.title.SetText(p.localization.GetText(KeyDiagnostics))
	p.clearBtn.SetText(p.localization.GetText(KeyClear))
	p.exportBtn.SetText(p.localization.GetText(KeyExportLogs))
}

// Close stops following the buffer
func (p *DiagnosticsPane) Close() {
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
}

func levelImportance(level string) widget.Importance {
	switch level {
	case diag.LevelError:
		return widget.DangerImportance
	case diag.LevelWarning:
		return widget.WarningImportance
	case diag.LevelSuccess:
		return widget.SuccessImportance
	case diag.LevelDebug:
		return widget.LowImportance
	}
	return widget.MediumImportance
}
