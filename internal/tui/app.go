// Package tui is the terminal client: a room list and one mounted room
// session rendered with tview.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/roomchat/internal/tui/keys"
	"github.com/matheus3301/roomchat/internal/tui/model"
	"github.com/matheus3301/roomchat/internal/tui/ui"
	"github.com/matheus3301/roomchat/internal/tui/views"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

const (
	pageRooms = "rooms"
	pageRoom  = "room"
	pageInfo  = "info"
	pageHelp  = "help"
)

// Options identifies the local user and the room to mount at start.
type Options struct {
	Profile  string
	UserID   string
	Username string
	Room     string
}

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	root     *tview.Flex
	pages    *tview.Pages
	vm       *model.ViewModel
	registry *keys.Registry
	theme    *ui.Theme
	opts     Options
	logger   *zap.Logger

	header    *ui.Header
	prompt    *ui.Prompt
	flashBar  *ui.FlashBar
	statusBar *views.StatusBar
	roomList  *views.RoomList
	roomView  *views.RoomView
	roomInfo  *views.RoomInfo
	help      *views.HelpView

	promptShown bool
	backPage    string

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(vm *model.ViewModel, opts Options, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:       tview.NewApplication(),
		root:      tview.NewFlex().SetDirection(tview.FlexRow),
		pages:     tview.NewPages(),
		vm:        vm,
		registry:  keys.NewRegistry(),
		theme:     theme,
		opts:      opts,
		logger:    logger,
		header:    ui.NewHeader(theme),
		prompt:    ui.NewPrompt(theme),
		flashBar:  ui.NewFlashBar(theme),
		statusBar: views.NewStatusBar(theme),
		roomList:  views.NewRoomList(theme),
		roomView:  views.NewRoomView(theme, opts.UserID),
		roomInfo:  views.NewRoomInfo(theme, opts.UserID),
		help:      views.NewHelpView(theme),
		backPage:  pageRooms,
		ctx:       ctx,
		cancel:    cancel,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: a.Stop,
	})
	a.registry.AddGlobal("help", &keys.Action{
		Rune: '?', Key: tcell.KeyRune,
		Description: "?:help", Visible: true,
		Handler: func() { a.showPage(pageHelp) },
	})
	a.registry.AddGlobal("command", &keys.Action{
		Rune: ':', Key: tcell.KeyRune,
		Description: ":cmd", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptCommand, "") },
	})

	a.registry.AddView(pageRooms, "filter", &keys.Action{
		Rune: '/', Key: tcell.KeyRune,
		Description: "/:filter", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptFilter, a.roomList.Filter()) },
	})
	a.registry.AddView(pageRooms, "reload", &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "r:reload", Visible: true,
		Handler: a.reloadRooms,
	})
	for n := 1; n <= 9; n++ {
		a.registry.AddView(pageRooms, fmt.Sprintf("jump%d", n), &keys.Action{
			Rune: rune('0' + n), Key: tcell.KeyRune,
			Handler: func() {
				if slug := a.roomList.RoomByIndex(n); slug != "" {
					a.openRoom(slug)
				}
			},
		})
	}

	room := []struct {
		name string
		r    rune
		desc string
		fn   func()
	}{
		{"compose", 'i', "i:compose", func() { a.app.SetFocus(a.roomView.Composer()) }},
		{"more", 'm', "m:older", a.loadMore},
		{"translate", 't', "t:translate", a.promptTranslate},
		{"details", 'd', "d:details", func() { a.showPage(pageInfo) }},
		{"read", 'a', "a:read", a.vm.MarkRead},
		{"reconnect", 'R', "R:reconnect", a.reconnect},
		{"follow", 'G', "", a.roomView.FollowEnd},
	}
	for _, b := range room {
		a.registry.AddView(pageRoom, b.name, &keys.Action{
			Rune: b.r, Key: tcell.KeyRune,
			Description: b.desc, Visible: b.desc != "",
			Handler: b.fn,
		})
	}
}

func (a *App) setupCallbacks() {
	a.roomList.SetSelectedFunc(func(row, _ int) {
		if slug := a.roomList.RoomByIndex(row); slug != "" {
			a.openRoom(slug)
		}
	})

	a.roomView.SetOnSend(func(text string) {
		go func() {
			if err := a.vm.Send(text); err != nil {
				a.logger.Debug("send failed", zap.Error(err))
				return
			}
			a.app.QueueUpdateDraw(a.roomView.FollowEnd)
		}()
	})
	a.roomView.SetOnKeystroke(func() { go a.vm.Keystroke() })

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptCommand:
			if text != "" {
				a.runCommand(ParseCommand(text))
			}
		case ui.PromptFilter:
			a.roomList.SetFilter(text)
		case ui.PromptTranslate:
			a.translate(text)
		}
		a.render()
	})
	a.prompt.SetOnCancel(a.hidePrompt)
}

func (a *App) setupLayout() {
	a.pages.AddPage(pageRooms, a.roomList, true, true)
	a.pages.AddPage(pageRoom, a.roomView, true, false)
	a.pages.AddPage(pageInfo, a.roomInfo, true, false)
	a.pages.AddPage(pageHelp, a.help, true, false)

	a.layout()
	a.app.SetRoot(a.root, true)
	a.app.SetFocus(a.roomList)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if a.promptShown {
			return event
		}
		page := a.currentPage()

		if event.Key() == tcell.KeyEscape {
			switch {
			case a.app.GetFocus() == a.roomView.Composer():
				a.app.SetFocus(a.roomView.Messages())
			case page == pageInfo || page == pageHelp:
				a.showPage(a.backPage)
			case page == pageRoom:
				a.showPage(pageRooms)
			}
			return nil
		}

		// Let the composer handle all keys normally.
		if _, ok := a.app.GetFocus().(*tview.InputField); ok {
			return event
		}

		if a.registry.HandleEvent(page, event) {
			return nil
		}
		return event
	})
}

func (a *App) layout() {
	a.root.Clear()
	a.root.AddItem(a.header, 4, 0, false)
	if a.promptShown {
		a.root.AddItem(a.prompt, 3, 0, true)
	}
	a.root.AddItem(a.pages, 0, 1, !a.promptShown)
	a.root.AddItem(a.flashBar, 1, 0, false)
	a.root.AddItem(a.statusBar, 1, 0, false)
}

func (a *App) currentPage() string {
	name, _ := a.pages.GetFrontPage()
	return name
}

func (a *App) showPage(name string) {
	if name == pageRoom || name == pageInfo {
		if a.vm.ActiveRoom() == "" {
			a.vm.Flash.Warn(model.ErrNoRoom.Error())
			name = pageRooms
		}
	}
	if cur := a.currentPage(); (name == pageInfo || name == pageHelp) && cur != pageInfo && cur != pageHelp {
		a.backPage = cur
	}
	a.pages.SwitchToPage(name)
	switch name {
	case pageRooms:
		a.app.SetFocus(a.roomList)
	case pageRoom:
		a.app.SetFocus(a.roomView.Messages())
	case pageInfo:
		a.app.SetFocus(a.roomInfo)
	case pageHelp:
		a.app.SetFocus(a.help)
	}
	a.render()
}

func (a *App) showPrompt(mode ui.PromptMode, initial string) {
	a.prompt.Activate(mode, initial)
	a.promptShown = true
	a.layout()
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.promptShown = false
	a.layout()
	a.showPage(a.currentPage())
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "q", "quit":
		a.Stop()
	case "h", "help":
		a.showPage(pageHelp)
	case "room", "join":
		if cmd.Args == "" {
			a.vm.Flash.Warn("usage: room <slug>")
			return
		}
		a.openRoom(cmd.Args)
	case "rooms":
		a.showPage(pageRooms)
		a.reloadRooms()
	case "tr", "translate":
		a.translate(cmd.Args)
	case "more":
		a.loadMore()
	case "reconnect":
		a.reconnect()
	case "read":
		a.vm.MarkRead()
	default:
		a.vm.Flash.Warn("unknown command: " + cmd.Name)
	}
}

func (a *App) openRoom(slug string) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, 15*time.Second)
		defer cancel()
		if err := a.vm.OpenRoom(ctx, slug); err != nil {
			a.logger.Warn("open room failed", zap.String("room", slug), zap.Error(err))
			// An errored room stays mounted so R can reconnect it.
			if a.vm.ActiveRoom() != slug {
				a.app.QueueUpdateDraw(a.render)
				return
			}
		}
		a.app.QueueUpdateDraw(func() {
			a.roomList.SetActive(slug)
			a.roomView.FollowEnd()
			a.showPage(pageRoom)
		})
	}()
}

func (a *App) reloadRooms() {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
		defer cancel()
		if err := a.vm.LoadRooms(ctx); err != nil {
			a.logger.Warn("room list failed", zap.Error(err))
		}
	}()
}

func (a *App) loadMore() {
	go func() {
		if err := a.vm.LoadMore(a.ctx); err != nil {
			a.logger.Debug("load more failed", zap.Error(err))
		}
	}()
}

func (a *App) reconnect() {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, 15*time.Second)
		defer cancel()
		if err := a.vm.Reconnect(ctx); err != nil {
			a.logger.Debug("reconnect failed", zap.Error(err))
		}
	}()
}

func (a *App) promptTranslate() {
	initial := ""
	if id, ok := a.vm.LastPeerMessage(a.opts.UserID); ok {
		initial = fmt.Sprintf("%d ", id)
	}
	a.showPrompt(ui.PromptTranslate, initial)
}

func (a *App) translate(args string) {
	id, lang, err := ParseTranslateArgs(args)
	if err != nil {
		a.vm.Flash.Warn(err.Error())
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, 30*time.Second)
		defer cancel()
		if _, err := a.vm.Translate(ctx, id, lang); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Debug("translate failed", zap.Int64("id", id), zap.Error(err))
		}
	}()
}

// render copies the view model into every widget. Runs on the draw loop.
func (a *App) render() {
	a.roomList.Update(a.vm.Rooms())

	data := ui.RoomData{Profile: a.opts.Profile, User: a.opts.Username}
	if st, ok := a.vm.State(); ok {
		a.roomView.Update(st)
		a.roomInfo.Update(st)
		data.Room = st.Room
		data.Status = st.Status
		data.Online = len(st.Online)
		data.Unread = st.Unread
		data.Messages = len(st.Messages)
		data.HasMore = st.HasMore
	}
	a.header.Update(data)
	a.statusBar.SetRoom(data.Room, data.Status)
	a.statusBar.SetHints(a.registry.Hints(a.currentPage()))
	a.flashBar.Update(a.vm.Flash.Current())
}

func (a *App) refreshLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-a.vm.RefreshCh():
		case <-a.vm.Flash.Watch():
		case <-ticker.C:
		case <-a.ctx.Done():
			return
		}
		a.app.QueueUpdateDraw(a.render)
	}
}

// Run starts the TUI application and blocks until it exits. Every session
// is released on return.
func (a *App) Run() error {
	defer a.vm.Close()
	defer a.cancel()

	go a.refreshLoop()
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
		defer cancel()
		if err := a.vm.LoadRooms(ctx); err != nil {
			a.logger.Warn("room list failed", zap.Error(err))
		}
		if a.opts.Room != "" {
			a.openRoom(a.opts.Room)
		}
	}()

	return a.app.Run()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
