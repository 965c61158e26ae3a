package ui

import (
	"fmt"

	"github.com/matheus3301/roomchat/internal/status"
	"github.com/rivo/tview"
)

// RoomData holds what the header shows about the mounted room.
type RoomData struct {
	Profile  string
	User     string
	Room     string
	Status   status.State
	Online   int
	Unread   int
	Messages int
	HasMore  bool
}

// Header is the top bar: logo on the left, room summary on the right.
type Header struct {
	*tview.Flex
	theme *Theme
	logo  *tview.TextView
	info  *tview.TextView
}

// NewHeader creates the header.
func NewHeader(theme *Theme) *Header {
	logo := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	logo.SetBackgroundColor(theme.BgColor)
	logo.SetBorderPadding(0, 0, 1, 0)

	info := tview.NewTextView().
		SetDynamicColors(true)
	info.SetBackgroundColor(theme.BgColor)
	info.SetBorderPadding(0, 0, 1, 1)

	h := &Header{
		Flex: tview.NewFlex().
			AddItem(logo, 18, 0, false).
			AddItem(info, 0, 1, false),
		theme: theme,
		logo:  logo,
		info:  info,
	}
	h.renderLogo()
	return h
}

func (h *Header) renderLogo() {
	title := ColorName(h.theme.TitleColor)
	fg := ColorName(h.theme.FgColor)

	_, _ = fmt.Fprintf(h.logo,
		"[%s::b]┬─┐┌─┐┌─┐┌┬┐[-:-:-]\n"+
			"[%s::b]├┬┘│ ││ │││││[-:-:-]\n"+
			"[%s::b]┴└─└─┘└─┘┴ ┴[-:-:-]\n"+
			"[%s]chat[-:-:-]",
		title, title, title, fg,
	)
}

// Update renders the room summary.
func (h *Header) Update(data RoomData) {
	h.info.Clear()

	fg := ColorName(h.theme.FgColor)
	ct := ColorName(h.theme.CounterColor)
	st := ColorName(h.theme.StatusColor(data.Status))

	room := data.Room
	if room == "" {
		room = "-"
	}
	state := string(data.Status)
	if state == "" {
		state = "-"
	}
	more := ""
	if data.HasMore {
		more = "+"
	}

	_, _ = fmt.Fprintf(h.info,
		"[%s::b]Profile:[-:-:-] [%s]%s[-]  [%s::b]User:[-:-:-] [%s]%s[-]\n"+
			"[%s::b]Room:[-:-:-]    [%s]%s[-]\n"+
			"[%s::b]Status:[-:-:-]  [%s]%s[-]\n"+
			"[%s::b]Online:[-:-:-]  [%s]%d[-]  [%s::b]Unread:[-:-:-] [%s]%d[-]  [%s::b]Msgs:[-:-:-] [%s]%d%s[-]",
		fg, ct, tview.Escape(data.Profile), fg, ct, tview.Escape(data.User),
		fg, ct, tview.Escape(room),
		fg, st, state,
		fg, ct, data.Online, fg, ct, data.Unread, fg, ct, data.Messages, more,
	)
}
