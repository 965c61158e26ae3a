package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/roomchat/internal/status"
)

// Theme holds color constants for the TUI.
type Theme struct {
	BgColor           tcell.Color
	FgColor           tcell.Color
	BorderColor       tcell.Color
	BorderFocusColor  tcell.Color
	TableHeaderFg     tcell.Color
	TableCursorFg     tcell.Color
	TableCursorBg     tcell.Color
	MenuKeyColor      tcell.Color
	TitleColor        tcell.Color
	CounterColor      tcell.Color
	OwnColor          tcell.Color
	PeerColor         tcell.Color
	TypingColor       tcell.Color
	TranslationColor  tcell.Color
	UnreadColor       tcell.Color
	FlashInfoColor    tcell.Color
	FlashWarnColor    tcell.Color
	FlashErrColor     tcell.Color
	PromptBorderColor tcell.Color
}

// DefaultTheme returns the dark theme used by roomchat-tui.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:           tcell.ColorBlack,
		FgColor:           tcell.ColorCadetBlue,
		BorderColor:       tcell.ColorDodgerBlue,
		BorderFocusColor:  tcell.ColorLightSkyBlue,
		TableHeaderFg:     tcell.ColorWhite,
		TableCursorFg:     tcell.ColorBlack,
		TableCursorBg:     tcell.ColorAqua,
		MenuKeyColor:      tcell.ColorDodgerBlue,
		TitleColor:        tcell.ColorFuchsia,
		CounterColor:      tcell.ColorPapayaWhip,
		OwnColor:          tcell.ColorMediumSpringGreen,
		PeerColor:         tcell.ColorAqua,
		TypingColor:       tcell.ColorGray,
		TranslationColor:  tcell.ColorKhaki,
		UnreadColor:       tcell.ColorOrange,
		FlashInfoColor:    tcell.ColorNavajoWhite,
		FlashWarnColor:    tcell.ColorOrange,
		FlashErrColor:     tcell.ColorOrangeRed,
		PromptBorderColor: tcell.ColorDodgerBlue,
	}
}

// StatusColor picks the color a room status is rendered with.
func (t *Theme) StatusColor(s status.State) tcell.Color {
	switch s {
	case status.Open:
		return tcell.ColorGreen
	case status.Loading, status.Connecting:
		return tcell.ColorYellow
	case status.Disconnected:
		return t.FlashWarnColor
	case status.Errored:
		return t.FlashErrColor
	default:
		return t.FgColor
	}
}

// ColorName formats c for tview's dynamic color tags.
func ColorName(c tcell.Color) string {
	return fmt.Sprintf("#%06x", c.Hex())
}
