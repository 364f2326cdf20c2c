package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// CompactTheme tightens paddings and text so the progress area, the task
// list and the diagnostics pane fit in one window
type CompactTheme struct{}

// NewCompactTheme creates a new compact theme
func NewCompactTheme() fyne.Theme {
	return &CompactTheme{}
}

// status colors shared by both variants
var compactColors = map[fyne.ThemeColorName]color.Color{
	theme.ColorNameSuccess: color.RGBA{R: 46, G: 160, B: 67, A: 255},
	theme.ColorNameError:   color.RGBA{R: 198, G: 40, B: 40, A: 255},
	theme.ColorNameWarning: color.RGBA{R: 237, G: 153, B: 0, A: 255},
	theme.ColorNamePrimary: color.RGBA{R: 25, G: 118, B: 210, A: 255},
}

var compactSizes = map[fyne.ThemeSizeName]float32{
	theme.SizeNamePadding:            3,
	theme.SizeNameInnerPadding:       6,
	theme.SizeNameLineSpacing:        2,
	theme.SizeNameScrollBar:          12,
	theme.SizeNameText:               13,
	theme.SizeNameHeadingText:        16,
	theme.SizeNameSubHeadingText:     13,
	theme.SizeNameCaptionText:        10,
	theme.SizeNameInputRadius:        3,
	theme.SizeNameSelectionRadius:    2,
	theme.SizeNameSeparatorThickness: 1,
}

// Color returns theme colors
func (t *CompactTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	if c, ok := compactColors[name]; ok {
		return c
	}
	switch name {
	case theme.ColorNameBackground:
		if variant == theme.VariantDark {
			return color.RGBA{R: 24, G: 24, B: 27, A: 255}
		}
		return color.RGBA{R: 248, G: 248, B: 250, A: 255}
	case theme.ColorNameForeground:
		if variant == theme.VariantDark {
			return color.RGBA{R: 236, G: 236, B: 240, A: 255}
		}
		return color.RGBA{R: 33, G: 33, B: 36, A: 255}
	}
	return theme.DefaultTheme().Color(name, variant)
}

// Font returns theme fonts
func (t *CompactTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

// Icon returns theme icons
func (t *CompactTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

// Size returns theme sizes with compact adjustments
func (t *CompactTheme) Size(name fyne.ThemeSizeName) float32 {
	if s, ok := compactSizes[name]; ok {
		return s
	}
	return theme.DefaultTheme().Size(name)
}
