package views

import (
	"fmt"

	"github.com/matheus3301/roomchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpView displays the key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	hv.render()
	return hv
}

func (hv *HelpView) render() {
	k := func(s string) string {
		return fmt.Sprintf("[%s]%s[-:-:-]", ui.ColorName(hv.theme.MenuKeyColor), tview.Escape(s))
	}

	_, _ = fmt.Fprintf(hv, `
  [::b]Global[-:-:-]

  %s       Command mode          %s     Cancel / go back
  %s       Help                  %s       Quit
  %s  Quit immediately

  [::b]Rooms[-:-:-]

  %s   Open room             %s     Jump to the Nth room
  %s       Filter rooms          %s       Reload the list

  [::b]Room[-:-:-]

  %s       Focus composer        %s       Load older messages
  %s       Translate a message   %s       Room details
  %s       Mark all read         %s       Reconnect
  %s     Follow newest         %s     Exit composer

  [::b]Commands[-:-:-]

  %s       Open a room by slug
  %s      Translate message id (default language if omitted)
  %s        Load older messages
  %s   Reconnect a dropped room
  %s        Mark the room read
  %s       Reload the room list
  %s / %s      Show this help
  %s / %s      Quit
  %s / %s     Recall earlier commands
`,
		k(":"), k("Esc"),
		k("?"), k("q"),
		k("Ctrl-C"),
		k("Enter"), k("1-9"),
		k("/"), k("r"),
		k("i"), k("m"),
		k("t"), k("d"),
		k("a"), k("R"),
		k("G"), k("Esc"),
		k(":room <slug>"),
		k(":tr <id> [lang]"),
		k(":more"),
		k(":reconnect"),
		k(":read"),
		k(":rooms"),
		k(":help"), k(":h"),
		k(":quit"), k(":q"),
		k("Up"), k("Down"),
	)
}
