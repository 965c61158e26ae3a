package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/roomchat/internal/rest"
	"github.com/matheus3301/roomchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// RoomList is the table of known rooms, most recently active first.
type RoomList struct {
	*tview.Table
	theme   *ui.Theme
	rooms   []rest.RoomSummary
	visible []rest.RoomSummary
	filter  string
	active  string
	now     func() time.Time
}

// NewRoomList creates a new room list table.
func NewRoomList(theme *ui.Theme) *RoomList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0).
		SetBorders(false)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetTitleColor(theme.TitleColor)
	table.SetSelectedStyle(tcellStyle(theme))

	rl := &RoomList{Table: table, theme: theme, now: time.Now}
	rl.render()
	return rl
}

// Update replaces the rooms and re-renders, keeping the filter.
func (rl *RoomList) Update(rooms []rest.RoomSummary) {
	rl.rooms = rooms
	rl.render()
}

// SetFilter narrows the list to rooms whose slug, name or preview contains f.
func (rl *RoomList) SetFilter(f string) {
	rl.filter = f
	rl.render()
}

// Filter returns the current filter.
func (rl *RoomList) Filter() string { return rl.filter }

// SetActive marks the mounted room.
func (rl *RoomList) SetActive(room string) {
	rl.active = room
	rl.render()
}

func (rl *RoomList) render() {
	rl.Clear()

	header := rl.theme.TableHeaderFg
	rl.SetCell(0, 0, tview.NewTableCell(" ROOM").SetSelectable(false).SetTextColor(header))
	rl.SetCell(0, 1, tview.NewTableCell(" LAST MESSAGE").SetSelectable(false).SetTextColor(header))
	rl.SetCell(0, 2, tview.NewTableCell(" TIME").SetSelectable(false).SetTextColor(header))

	rl.visible = rl.visible[:0]
	for _, r := range rl.rooms {
		if rl.filter != "" && !containsFold(r.Slug, rl.filter) && !containsFold(r.Name, rl.filter) &&
			!containsFold(r.LastMessagePreview, rl.filter) {
			continue
		}
		rl.visible = append(rl.visible, r)
	}

	now := rl.now()
	for i, r := range rl.visible {
		row := i + 1
		name := r.Name
		if name == "" {
			name = r.Slug
		}
		label := fmt.Sprintf(" %d %s", row, clean(name))
		if r.Slug == rl.active {
			label = fmt.Sprintf(" %d [%s::b]%s[-:-:-]", row, ui.ColorName(rl.theme.OwnColor), clean(name))
		}
		rl.SetCell(row, 0, tview.NewTableCell(label).SetMaxWidth(30).SetExpansion(1))
		rl.SetCell(row, 1, tview.NewTableCell(" "+clean(truncate(r.LastMessagePreview, 60))).SetExpansion(2))
		rl.SetCell(row, 2, tview.NewTableCell(" "+formatTimestamp(r.LastMessageAt, now)).SetMaxWidth(8))
	}

	title := fmt.Sprintf(" Rooms [%s](%d)[-] ", ui.ColorName(rl.theme.CounterColor), len(rl.visible))
	if rl.filter != "" {
		title = fmt.Sprintf(" Rooms /%s [%s](%d)[-] ", clean(rl.filter), ui.ColorName(rl.theme.CounterColor), len(rl.visible))
	}
	rl.SetTitle(title)
	if len(rl.visible) > 0 {
		if row, _ := rl.GetSelection(); row < 1 || row > len(rl.visible) {
			rl.Select(1, 0)
		}
	}
}

// SelectedRoom returns the slug of the selected room.
func (rl *RoomList) SelectedRoom() string {
	row, _ := rl.GetSelection()
	return rl.RoomByIndex(row)
}

// RoomByIndex returns the slug of the Nth visible room (1-based).
func (rl *RoomList) RoomByIndex(n int) string {
	if n < 1 || n > len(rl.visible) {
		return ""
	}
	return rl.visible[n-1].Slug
}

func tcellStyle(theme *ui.Theme) tcell.Style {
	return tcell.StyleDefault.Foreground(theme.TableCursorFg).Background(theme.TableCursorBg)
}
