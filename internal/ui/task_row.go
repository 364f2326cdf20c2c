package ui

import (
	"fmt"
	"image/color"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/dustin/go-humanize"

	"github.com/ytget/video-downloader/internal/model"
)

// TaskActions are the callbacks behind a row's buttons
type TaskActions struct {
	Stop     func(taskID string)
	Reveal   func(filePath string)
	Open     func(filePath string)
	CopyPath func(filePath string)
	Remove   func(taskID string)
}

// TaskRow shows one download in the history list
type TaskRow struct {
	widget.BaseWidget

	task         model.DownloadTask
	localization *Localization
	actions      TaskActions

	titleLabel    *widget.Label
	statusLabel   *widget.Label
	progressLabel *widget.Label
	detailLabel   *widget.Label

	stopBtn   *widget.Button
	revealBtn *widget.Button
	openBtn   *widget.Button
	copyBtn   *widget.Button
	removeBtn *widget.Button
}

// NewTaskRow creates a row for task
func NewTaskRow(task model.DownloadTask, localization *Localization) *TaskRow {
	tr := &TaskRow{task: task, localization: localization}
	tr.ExtendBaseWidget(tr)
	tr.createUI()
	tr.updateFromTask()
	return tr
}

// SetActions sets the button callbacks
func (tr *TaskRow) SetActions(actions TaskActions) {
	tr.actions = actions
}

// UpdateTask shows new task data
func (tr *TaskRow) UpdateTask(task model.DownloadTask) {
	tr.task = task
	tr.updateFromTask()
	tr.Refresh()
}

func (tr *TaskRow) createUI() {
	tr.titleLabel = widget.NewLabel("")
	tr.titleLabel.TextStyle = fyne.TextStyle{Bold: true}
	tr.titleLabel.Truncation = fyne.TextTruncateEllipsis

	tr.statusLabel = widget.NewLabel("")
	tr.statusLabel.Alignment = fyne.TextAlignTrailing
	tr.progressLabel = widget.NewLabel("")
	tr.progressLabel.Alignment = fyne.TextAlignTrailing
	tr.detailLabel = widget.NewLabel("")
	tr.detailLabel.TextStyle = fyne.TextStyle{Monospace: true}
	tr.detailLabel.Truncation = fyne.TextTruncateEllipsis

	tr.stopBtn = widget.NewButton(tr.localization.GetText(KeyStop), func() {
		if tr.actions.Stop != nil {
			tr.actions.Stop(tr.task.ID)
		}
	})
	tr.revealBtn = widget.NewButton(tr.localization.GetText(KeyReveal), func() {
		if tr.actions.Reveal != nil && tr.hasFile() {
			tr.actions.Reveal(tr.task.OutputPath)
		}
	})
	tr.openBtn = widget.NewButton(tr.localization.GetText(KeyOpen), func() {
		if tr.actions.Open != nil && tr.hasFile() {
			tr.actions.Open(tr.task.OutputPath)
		}
	})
	tr.copyBtn = widget.NewButton(tr.localization.GetText(KeyCopyPath), func() {
		if tr.actions.CopyPath != nil && tr.hasFile() {
			tr.actions.CopyPath(tr.task.OutputPath)
		}
	})
	tr.removeBtn = widget.NewButton("×", func() {
		if tr.actions.Remove != nil {
			tr.actions.Remove(tr.task.ID)
		}
	})
	tr.removeBtn.Importance = widget.LowImportance
}

// hasFile reports whether the task points at a downloaded file
func (tr *TaskRow) hasFile() bool {
	p := tr.task.OutputPath
	return p != "" && !strings.HasPrefix(p, "http") && strings.ContainsAny(p, `/\`)
}

// refreshTexts re-applies localized button captions
func (tr *TaskRow) refreshTexts() {
	tr.stopBtn.SetText(tr.localization.GetText(KeyStop))
	tr.revealBtn.SetText(tr.localization.GetText(KeyReveal))
	tr.openBtn.SetText(tr.localization.GetText(KeyOpen))
	tr.copyBtn.SetText(tr.localization.GetText(KeyCopyPath))
}

func (tr *TaskRow) updateFromTask() {
	t := tr.task
	tr.titleLabel.SetText(cleanText(t.GetDisplayTitle()))

	icon := ""
	switch t.Status {
	case model.TaskStatusError:
		tr.statusLabel.Importance = widget.DangerImportance
		icon = IconError
	case model.TaskStatusCompleted:
		tr.statusLabel.Importance = widget.SuccessImportance
		icon = IconDone
	case model.TaskStatusDownloading, model.TaskStatusStarting:
		tr.statusLabel.Importance = widget.HighImportance
		icon = IconPlay
	case model.TaskStatusRetrying:
		tr.statusLabel.Importance = widget.WarningImportance
		icon = IconRetry
	case model.TaskStatusPending:
		tr.statusLabel.Importance = widget.MediumImportance
		icon = IconPending
	case model.TaskStatusStopped, model.TaskStatusStopping:
		tr.statusLabel.Importance = widget.MediumImportance
		icon = IconStop
	}
	tr.statusLabel.SetText(strings.TrimSpace(icon + " " + t.Status.String()))

	if t.Status == model.TaskStatusCompleted || t.Status == model.TaskStatusPending {
		tr.progressLabel.SetText("")
	} else {
		tr.progressLabel.SetText(fmt.Sprintf(ProgressLabelFormat, clampPercent(t.Percent)))
	}
	tr.detailLabel.SetText(taskDetail(t))

	if t.Status.IsActive() || t.Status == model.TaskStatusPending {
		tr.stopBtn.Enable()
		tr.removeBtn.Disable()
	} else {
		tr.stopBtn.Disable()
		tr.removeBtn.Enable()
	}
	if tr.hasFile() {
		tr.revealBtn.Enable()
		tr.openBtn.Enable()
		tr.copyBtn.Enable()
	} else {
		tr.revealBtn.Disable()
		tr.openBtn.Disable()
		tr.copyBtn.Disable()
	}
}

// taskDetail is the second line of a row: speed and ETA while running,
// size when done, the error otherwise
func taskDetail(t model.DownloadTask) string {
	switch t.Status {
	case model.TaskStatusDownloading:
		parts := []string{}
		if t.Speed != "" {
			parts = append(parts, t.Speed)
		}
		if t.ETASec > 0 {
			parts = append(parts, "ETA "+t.GetETAString())
		}
		if len(parts) == 0 {
			return DashPlaceholder
		}
		return strings.Join(parts, MiddleDotSeparator)
	case model.TaskStatusRetrying:
		return fmt.Sprintf("attempt %d: %s", t.Attempt, cleanText(t.LastError))
	case model.TaskStatusCompleted:
		if t.FileSize > 0 {
			return humanize.IBytes(uint64(t.FileSize)) + MiddleDotSeparator + t.Quality
		}
		return t.Quality
	case model.TaskStatusError:
		return cleanText(t.LastError)
	}
	return ""
}

func clampPercent(p int) int {
	return max(0, min(100, p))
}

// cleanText flattens control characters that break single-line labels
func cleanText(s string) string {
	return strings.TrimSpace(strings.NewReplacer("\n", " ", "\r", " ", "\t", " ").Replace(s))
}

// CreateRenderer lays out title and details on the left, status and actions on the right
func (tr *TaskRow) CreateRenderer() fyne.WidgetRenderer {
	fixedWidth := func(w float32, obj fyne.CanvasObject) fyne.CanvasObject {
		spacer := canvas.NewRectangle(color.Transparent)
		spacer.SetMinSize(fyne.NewSize(w, obj.MinSize().Height))
		return container.NewStack(spacer, obj)
	}

	info := container.NewVBox(
		fixedWidth(StatusLabelWidth, tr.statusLabel),
		fixedWidth(PercentLabelWidth, tr.progressLabel),
	)
	actions := container.NewHBox(tr.stopBtn, tr.revealBtn, tr.openBtn, tr.copyBtn, tr.removeBtn)
	right := container.NewBorder(nil, nil, nil, actions, info)
	left := container.NewVBox(tr.titleLabel, tr.detailLabel)

	row := container.NewVBox(
		container.NewBorder(nil, nil, nil, right, left),
		widget.NewSeparator(),
	)
	return widget.NewSimpleRenderer(row)
}

// MinSize keeps rows readable in narrow windows
func (tr *TaskRow) MinSize() fyne.Size {
	tr.ExtendBaseWidget(tr)
	s := tr.BaseWidget.MinSize()
	return fyne.NewSize(max(s.Width, RowMinWidth), max(s.Height, RowMinHeight))
}
