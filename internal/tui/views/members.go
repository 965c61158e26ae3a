package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/roomchat/internal/chat"
	"github.com/matheus3301/roomchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// RoomInfo shows the details of the mounted room and who is online in it.
type RoomInfo struct {
	*tview.TextView
	theme  *ui.Theme
	userID string
}

// NewRoomInfo creates a new room info view.
func NewRoomInfo(theme *ui.Theme, userID string) *RoomInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Room Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &RoomInfo{
		TextView: tv,
		theme:    theme,
		userID:   userID,
	}
}

// Update renders st.
func (ri *RoomInfo) Update(st chat.RoomState) {
	ri.Clear()
	ri.SetTitle(fmt.Sprintf(" #%s Details ", clean(st.Room)))

	fg := ui.ColorName(ri.theme.FgColor)
	ct := ui.ColorName(ri.theme.CounterColor)

	lastErr := st.Error
	if lastErr == "" {
		lastErr = "-"
	} else {
		lastErr = fmt.Sprintf("%s (%s)", lastErr, st.ErrorKind)
	}
	typing := strings.Join(st.Typing, ", ")
	if typing == "" {
		typing = "-"
	}

	_, _ = fmt.Fprintf(ri,
		"\n [%s::b]Room:[-:-:-]        [%s]%s[-]\n"+
			" [%s::b]Status:[-:-:-]      [%s]%s[-]\n"+
			" [%s::b]Loaded:[-:-:-]      [%s]%d[-] messages, more: %t\n"+
			" [%s::b]Unread:[-:-:-]      [%s]%d[-]\n"+
			" [%s::b]Typing:[-:-:-]      [%s]%s[-]\n"+
			" [%s::b]Last error:[-:-:-]  [%s]%s[-]\n\n"+
			" [%s::b]Online (%d)[-:-:-]\n",
		fg, ct, clean(st.Room),
		fg, ui.ColorName(ri.theme.StatusColor(st.Status)), st.Status,
		fg, ct, len(st.Messages), st.HasMore,
		fg, ct, st.Unread,
		fg, ct, clean(typing),
		fg, ct, clean(lastErr),
		fg, len(st.Online),
	)

	for _, u := range st.Online {
		marker := "•"
		color := ri.theme.PeerColor
		if u.ID == ri.userID {
			marker = "*"
			color = ri.theme.OwnColor
		}
		_, _ = fmt.Fprintf(ri, "  [%s]%s %s[-] [::d]%s[-:-:-]\n", ui.ColorName(color), marker, clean(u.Name), clean(u.ID))
	}
}
