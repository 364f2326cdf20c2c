package ui

import "time"

// Icons (emojis/symbols)
const (
	IconSettings = "⚙"
	IconPlay     = "▶"
	IconStop     = "⏹"
	IconPending  = "⏳"
	IconRetry    = "↻"
	IconError    = "❌"
	IconDone     = "✓"
)

// Text fragments
const (
	StatusSeparator     = " | "
	MiddleDotSeparator  = " · "
	DashPlaceholder     = "—"
	ProgressLabelFormat = "%d%%"
)

// Window and layout sizing
const (
	WindowWidth  float32 = 860
	WindowHeight float32 = 640

	StatusLabelWidth  float32 = 110
	SpeedLabelWidth   float32 = 130
	PercentLabelWidth float32 = 48

	RowMinWidth  float32 = 400
	RowMinHeight float32 = 56

	// fraction of the lower split given to the task list
	TasksSplitOffset = 0.55

	SettingsDialogWidth  float32 = 460
	SettingsDialogHeight float32 = 380
)

// Update pacing
const (
	// progress repaints closer together than this are dropped
	UIUpdateDebounce = 100 * time.Millisecond
)
