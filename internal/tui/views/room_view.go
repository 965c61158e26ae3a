package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/roomchat/internal/chat"
	"github.com/matheus3301/roomchat/internal/protocol"
	"github.com/matheus3301/roomchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// RoomView shows the timeline of the mounted room, who is typing and the
// composer.
type RoomView struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	typing   *tview.TextView
	composer *tview.InputField
	userID   string
	follow   bool
	now      func() time.Time

	onSend      func(text string)
	onKeystroke func()
}

// NewRoomView creates the room view for the local user userID.
func NewRoomView(theme *ui.Theme, userID string) *RoomView {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	typingLine := tview.NewTextView().
		SetDynamicColors(true)
	typingLine.SetBackgroundColor(theme.BgColor)
	typingLine.SetTextColor(theme.TypingColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	rv := &RoomView{
		Flex: tview.NewFlex().
			SetDirection(tview.FlexRow).
			AddItem(messages, 0, 1, true).
			AddItem(typingLine, 1, 0, false).
			AddItem(composer, 3, 0, false),
		theme:    theme,
		messages: messages,
		typing:   typingLine,
		composer: composer,
		userID:   userID,
		follow:   true,
		now:      time.Now,
	}

	messages.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch {
		case ev.Key() == tcell.KeyUp, ev.Key() == tcell.KeyPgUp, ev.Key() == tcell.KeyHome,
			ev.Key() == tcell.KeyRune && ev.Rune() == 'k':
			rv.follow = false
		case ev.Key() == tcell.KeyEnd, ev.Key() == tcell.KeyRune && ev.Rune() == 'G':
			rv.follow = true
		}
		return ev
	})

	composer.SetChangedFunc(func(string) {
		if rv.onKeystroke != nil {
			rv.onKeystroke()
		}
	})
	composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || rv.onSend == nil {
			return
		}
		text := composer.GetText()
		if strings.TrimSpace(text) == "" {
			return
		}
		composer.SetText("")
		rv.onSend(text)
	})

	return rv
}

// SetOnSend sets the callback run when the composer submits text.
func (rv *RoomView) SetOnSend(fn func(text string)) { rv.onSend = fn }

// SetOnKeystroke sets the callback run on every composer edit.
func (rv *RoomView) SetOnKeystroke(fn func()) { rv.onKeystroke = fn }

// Messages returns the timeline view (for focus management).
func (rv *RoomView) Messages() *tview.TextView { return rv.messages }

// Composer returns the composer input (for focus management).
func (rv *RoomView) Composer() *tview.InputField { return rv.composer }

// FollowEnd pins the timeline to its newest message again.
func (rv *RoomView) FollowEnd() {
	rv.follow = true
	rv.messages.ScrollToEnd()
}

// Update renders st. The timeline stays pinned to the newest message unless
// the user scrolled up.
func (rv *RoomView) Update(st chat.RoomState) {
	rv.messages.Clear()
	rv.messages.SetTitle(fmt.Sprintf(" #%s [%s](%d)[-] ", clean(st.Room), ui.ColorName(rv.theme.CounterColor), len(st.Messages)))
	_, _ = fmt.Fprint(rv.messages, RenderTimeline(rv.theme, st, rv.userID, rv.now()))

	rv.typing.Clear()
	if line := TypingLine(st.Typing); line != "" {
		_, _ = fmt.Fprintf(rv.typing, " [::i]%s[-:-:-]", clean(line))
	}

	if rv.follow {
		rv.messages.ScrollToEnd()
	}
}

// RenderTimeline formats the messages of st oldest first. An unread divider
// goes above the first unread message from someone else.
func RenderTimeline(theme *ui.Theme, st chat.RoomState, userID string, now time.Time) string {
	var b strings.Builder
	if st.HasMore {
		fmt.Fprintf(&b, "[%s]  ↑ older messages available (m)[-]\n\n", ui.ColorName(theme.TypingColor))
	}
	if len(st.Messages) == 0 {
		fmt.Fprintf(&b, "[%s]  no messages yet[-]\n", ui.ColorName(theme.TypingColor))
		return b.String()
	}

	divider := st.Unread > 0
	for _, m := range st.Messages {
		own := m.Sender.ID == userID
		if divider && !own && m.ID > st.LastReadID {
			fmt.Fprintf(&b, "[%s]──── %d new ────[-]\n", ui.ColorName(theme.UnreadColor), st.Unread)
			divider = false
		}
		writeMessage(&b, theme, m, own, now)
	}
	return b.String()
}

func writeMessage(b *strings.Builder, theme *ui.Theme, m protocol.Message, own bool, now time.Time) {
	sender := m.Sender.Name
	if sender == "" {
		sender = m.Sender.ID
	}
	color := theme.PeerColor
	if own {
		sender = "You"
		color = theme.OwnColor
	}

	fmt.Fprintf(b, "[%s::b]%s[-:-:-] [::d]%s #%d[-:-:-]", ui.ColorName(color), clean(sender), formatTimestamp(m.Timestamp, now), m.ID)
	if m.ReplyTo != nil {
		fmt.Fprintf(b, " [::d]↳ #%d[-:-:-]", *m.ReplyTo)
	}
	b.WriteString("\n")

	if m.Body != "" {
		b.WriteString(clean(m.Body))
		b.WriteString("\n")
	}
	if m.Media != nil {
		fmt.Fprintf(b, "[::u]%s %s[::-]\n", tview.Escape("["+string(m.Media.Kind)+"]"), clean(m.Media.URL))
	}
	if m.TranslatedBody != "" {
		fmt.Fprintf(b, "[%s]» %s[-]\n", ui.ColorName(theme.TranslationColor), clean(m.TranslatedBody))
	}
	b.WriteString("\n")
}

// TypingLine phrases the typing list for the status line under the timeline.
func TypingLine(users []string) string {
	switch len(users) {
	case 0:
		return ""
	case 1:
		return users[0] + " is typing…"
	case 2:
		return users[0] + " and " + users[1] + " are typing…"
	default:
		return fmt.Sprintf("%d people are typing…", len(users))
	}
}
