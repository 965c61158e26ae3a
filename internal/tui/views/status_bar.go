package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/roomchat/internal/status"
	"github.com/matheus3301/roomchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// StatusBar is the bottom line: room status and key hints.
type StatusBar struct {
	*tview.TextView
	theme  *ui.Theme
	room   string
	status status.State
	hints  []string
	now    func() time.Time
}

// NewStatusBar creates a new status bar.
func NewStatusBar(theme *ui.Theme) *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv, theme: theme, now: time.Now}
}

// SetRoom updates the room and its status.
func (sb *StatusBar) SetRoom(room string, st status.State) {
	sb.room = room
	sb.status = st
	sb.render()
}

// SetHints updates the key hints for the current page.
func (sb *StatusBar) SetHints(hints []string) {
	sb.hints = hints
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	room := sb.room
	if room == "" {
		room = "no room"
	}
	state := "-"
	if sb.status != "" {
		state = fmt.Sprintf("[%s]%s[-]", ui.ColorName(sb.theme.StatusColor(sb.status)), sb.status)
	}

	line := fmt.Sprintf(" [::b]#%s[-:-:-] | %s | %s", clean(room), state, sb.now().Format("15:04"))
	if len(sb.hints) > 0 {
		line += " | " + tview.Escape(strings.Join(sb.hints, "  "))
	}
	_, _ = fmt.Fprint(sb, line)
}
