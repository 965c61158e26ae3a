package model

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/matheus3301/roomchat/internal/chat"
	"github.com/matheus3301/roomchat/internal/rest"
	"github.com/matheus3301/roomchat/internal/status"
	"github.com/matheus3301/roomchat/internal/tui/ui"
	"go.uber.org/zap"
)

// ErrNoRoom is returned by room actions while no room is mounted.
var ErrNoRoom = errors.New("no room open")

// RoomLister lists the rooms shown on the room page.
type RoomLister interface {
	Rooms(ctx context.Context) ([]rest.RoomSummary, error)
}

// ViewModel holds what the TUI renders: the room list and the one mounted
// room session. Every change is coalesced into a single refresh signal.
type ViewModel struct {
	mu sync.RWMutex

	api      RoomLister
	registry *chat.Registry
	logger   *zap.Logger
	Flash    *ui.FlashModel

	rooms      []rest.RoomSummary
	active     *chat.Session
	activeRoom string
	stopWatch  context.CancelFunc
	lastStatus status.State
	lastErr    string

	refreshCh chan struct{}
}

// NewViewModel creates a view model whose sessions come from registry.
func NewViewModel(api RoomLister, registry *chat.Registry, logger *zap.Logger) *ViewModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewModel{
		api:       api,
		registry:  registry,
		logger:    logger,
		Flash:     ui.NewFlashModel(),
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// LoadRooms fetches the room list.
func (vm *ViewModel) LoadRooms(ctx context.Context) error {
	rooms, err := vm.api.Rooms(ctx)
	if err != nil {
		vm.Flash.Err(err)
		return err
	}
	vm.mu.Lock()
	vm.rooms = rooms
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// Rooms returns a snapshot of the room list.
func (vm *ViewModel) Rooms() []rest.RoomSummary {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return slices.Clone(vm.rooms)
}

// OpenRoom mounts room, releasing the previously mounted one. Opening the
// mounted room again is a no-op. A room whose first load or connect failed
// is still mounted, ERRORED, so it can be reconnected; the failure is
// returned as well.
func (vm *ViewModel) OpenRoom(ctx context.Context, room string) error {
	vm.mu.RLock()
	same := vm.active != nil && vm.activeRoom == room
	vm.mu.RUnlock()
	if same {
		return nil
	}

	s, err := vm.registry.Acquire(ctx, room)
	if s == nil {
		vm.Flash.Err(err)
		return err
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	vm.mu.Lock()
	prev, prevStop := vm.activeRoom, vm.stopWatch
	vm.active = s
	vm.activeRoom = room
	vm.stopWatch = cancel
	vm.lastStatus = ""
	vm.lastErr = ""
	vm.mu.Unlock()

	if prevStop != nil {
		prevStop()
	}
	if prev != "" {
		vm.registry.Release(prev)
	}

	if err != nil {
		vm.logger.Warn("room opened with an error", zap.String("room", room), zap.Error(err))
	} else {
		vm.logger.Info("room opened", zap.String("room", room))
	}
	vm.noteState(s.State())
	go vm.watch(watchCtx, s)
	vm.signalRefresh()
	return err
}

// watch forwards session changes until the room is switched or closed.
func (vm *ViewModel) watch(ctx context.Context, s *chat.Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.Done():
			vm.signalRefresh()
			return
		case <-s.Changes():
			vm.noteState(s.State())
			vm.signalRefresh()
		}
	}
}

// noteState turns status changes and new errors into flash messages.
func (vm *ViewModel) noteState(st chat.RoomState) {
	vm.mu.Lock()
	statusChanged := st.Status != vm.lastStatus
	errChanged := st.Error != "" && st.Error != vm.lastErr
	vm.lastStatus = st.Status
	vm.lastErr = st.Error
	vm.mu.Unlock()

	if statusChanged {
		switch st.Status {
		case status.Open:
			vm.Flash.Info("connected to #" + st.Room)
		case status.Disconnected:
			vm.Flash.Warn("connection lost, press R to reconnect")
		}
	}
	if errChanged {
		msg := string(st.ErrorKind) + ": " + st.Error
		if st.Status == status.Errored {
			msg += ", press R to reconnect"
		}
		vm.Flash.Warn(msg)
	}
}

// ActiveRoom returns the slug of the mounted room.
func (vm *ViewModel) ActiveRoom() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.activeRoom
}

// State returns the mounted room's state.
func (vm *ViewModel) State() (chat.RoomState, bool) {
	s := vm.session()
	if s == nil {
		return chat.RoomState{}, false
	}
	return s.State(), true
}

func (vm *ViewModel) session() *chat.Session {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.active
}

// Send sends text to the mounted room.
func (vm *ViewModel) Send(text string) error {
	s := vm.session()
	if s == nil {
		return ErrNoRoom
	}
	if err := s.SendMessage(text, nil, nil); err != nil {
		vm.Flash.Err(err)
		return err
	}
	return nil
}

// Keystroke reports composer activity for the typing indicator.
func (vm *ViewModel) Keystroke() {
	if s := vm.session(); s != nil {
		s.SendTyping(true)
	}
}

// LoadMore fetches the next older history page of the mounted room.
func (vm *ViewModel) LoadMore(ctx context.Context) error {
	s := vm.session()
	if s == nil {
		return ErrNoRoom
	}
	if !s.State().HasMore {
		vm.Flash.Info("no older messages")
		return nil
	}
	if err := s.LoadMore(ctx); err != nil {
		vm.Flash.Err(err)
		return err
	}
	return nil
}

// Translate translates message id into lang, or the configured language
// when lang is empty.
func (vm *ViewModel) Translate(ctx context.Context, id int64, lang string) (string, error) {
	s := vm.session()
	if s == nil {
		return "", ErrNoRoom
	}
	text, err := s.Translate(ctx, id, lang)
	if err != nil {
		vm.Flash.Err(err)
		return "", err
	}
	return text, nil
}

// LastPeerMessage returns the newest message written by someone other than
// userID, the default translate target.
func (vm *ViewModel) LastPeerMessage(userID string) (int64, bool) {
	st, ok := vm.State()
	if !ok {
		return 0, false
	}
	for i := len(st.Messages) - 1; i >= 0; i-- {
		if st.Messages[i].Sender.ID != userID {
			return st.Messages[i].ID, true
		}
	}
	return 0, false
}

// MarkRead marks the mounted room read.
func (vm *ViewModel) MarkRead() {
	if s := vm.session(); s != nil {
		s.MarkRead()
	}
}

// Reconnect re-establishes a dropped room connection.
func (vm *ViewModel) Reconnect(ctx context.Context) error {
	s := vm.session()
	if s == nil {
		return ErrNoRoom
	}
	s.DismissError()
	if err := s.Reconnect(ctx); err != nil {
		vm.Flash.Err(err)
		return err
	}
	return nil
}

// Close releases every session.
func (vm *ViewModel) Close() {
	vm.mu.Lock()
	stop := vm.stopWatch
	vm.active = nil
	vm.activeRoom = ""
	vm.stopWatch = nil
	vm.mu.Unlock()

	if stop != nil {
		stop()
	}
	vm.registry.Close()
}
