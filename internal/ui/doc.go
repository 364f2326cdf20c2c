// Package ui contains the Fyne desktop window: URL and quality input, the
// output folder, download progress, the task history and the diagnostics
// pane. All strings are localized via Localization and every widget update
// coming from a download goroutine goes through fyne.Do.
package ui
