// Package chat holds the per-room session: the single place where history
// pages from the REST API and deltas from the realtime channel are merged
// into one RoomState.
package chat

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/roomchat/internal/bus"
	"github.com/matheus3301/roomchat/internal/protocol"
	"github.com/matheus3301/roomchat/internal/rest"
	"github.com/matheus3301/roomchat/internal/status"
	"github.com/matheus3301/roomchat/internal/transport"
	"github.com/matheus3301/roomchat/internal/typing"
	"go.uber.org/zap"
)

// DefaultPageSize is the history page size used when none is configured.
const DefaultPageSize = 50

// API is the REST side of a room.
type API interface {
	History(ctx context.Context, room string, before int64, limit int) (*rest.HistoryResponse, error)
	OnlineUsers(ctx context.Context, room string) ([]protocol.OnlineUser, error)
	Translate(ctx context.Context, req rest.TranslateRequest) (string, error)
}

// Transport is the realtime channel of a room. Implementations emit their
// events on the bus they were built with.
type Transport interface {
	Connect(ctx context.Context, room string) error
	Send(f protocol.Frame) bool
	Disconnect()
}

// Dialer builds the Transport for a session around the session's own bus.
type Dialer func(b *bus.Bus) Transport

// TransportDialer returns a Dialer producing websocket transports.
func TransportDialer(cfg transport.Config, logger *zap.Logger) Dialer {
	return func(b *bus.Bus) Transport {
		return transport.New(cfg, b, logger)
	}
}

// Options configures a Session.
type Options struct {
	API    API
	Dial   Dialer
	Logger *zap.Logger

	// UserID and Username identify the local user. Their own typing echoes
	// are ignored and their own messages never count as unread.
	UserID   string
	Username string
	// Language is the default target for Translate.
	Language string

	PageSize     int
	TypingExpiry time.Duration
	TypingIdle   time.Duration
}

// RoomState is a snapshot of one room as seen by the local user.
type RoomState struct {
	Room       string
	Messages   []protocol.Message
	Typing     []string
	Online     []protocol.OnlineUser
	Status     status.State
	Error      string
	ErrorKind  ErrorKind
	HasMore    bool
	Unread     int
	LastReadID int64
}

// Session is the authoritative client state of one room. It owns its bus,
// its transport and every timer it starts; Close releases all of them.
type Session struct {
	id     string
	room   string
	opts   Options
	logger *zap.Logger

	bus       *bus.Bus
	scope     *bus.Scope
	machine   *status.Machine
	conn      Transport
	tracker   *typing.Tracker
	indicator *typing.Indicator

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup
	changes   chan struct{}

	// Status changes are recorded under mu and emitted after it is released,
	// in order, by whichever goroutine holds announcing.
	announcing sync.Mutex
	pending    []*status.StatusChange

	mu            sync.Mutex
	closed        bool
	started       bool
	starting      bool
	loaded        bool
	loadingMore   bool
	timeline      timeline
	online        []protocol.OnlineUser
	onlineSeq     uint64
	onlineApplied uint64
	hasMore       bool
	err           *Error
	unread        int
	lastReadID    int64
}

// New builds a session for room in the LOADING state. Nothing is fetched or
// dialed until Initialize.
func New(room string, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Language == "" {
		opts.Language = "en"
	}

	id := uuid.NewString()
	logger := opts.Logger.With(zap.String("room", room), zap.String("session", id[:8]))
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		id:      id,
		room:    room,
		opts:    opts,
		logger:  logger,
		bus:     bus.New(logger),
		ctx:     ctx,
		cancel:  cancel,
		changes: make(chan struct{}, 1),
	}
	s.scope = s.bus.Scope()
	s.machine = status.NewMachine(room, s.bus)
	s.conn = opts.Dial(s.bus)
	s.tracker = typing.NewTracker(opts.TypingExpiry, s.signal)
	s.indicator = typing.NewIndicator(opts.TypingIdle, func(isTyping bool) bool {
		return s.conn.Send(protocol.NewTyping(isTyping))
	})

	s.scope.On(protocol.EventConnect, func(any) { s.onConnect() })
	s.scope.On(protocol.EventDisconnect, func(any) { s.onDisconnect() })
	s.scope.On(protocol.EventError, s.onError)
	s.scope.On(protocol.EventMessage, s.onMessage)
	s.scope.On(protocol.EventTyping, s.onTyping)
	s.scope.On(protocol.EventUserStatus, func(any) { s.refreshOnline() })
	s.scope.On(protocol.EventTranslationUpdate, s.onTranslation)
	return s
}

// Open builds a session and initializes it. When the first fetch or connect
// fails the session is still returned, ERRORED, along with the error; the
// caller owns it either way and must Close it.
func Open(ctx context.Context, room string, opts Options) (*Session, error) {
	s := New(room, opts)
	return s, s.Initialize(ctx)
}

// ID returns the unique instance id of the session.
func (s *Session) ID() string { return s.id }

// Room returns the room the session is bound to.
func (s *Session) Room() string { return s.room }

// Changes signals, coalesced, that State may have changed.
func (s *Session) Changes() <-chan struct{} { return s.changes }

// Done is closed when the session is closed.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// Subscribe streams the session's bus events whose name starts with
// namespace. Slow readers lose events rather than blocking the session.
func (s *Session) Subscribe(namespace string, bufSize int) (<-chan bus.Event, func()) {
	return s.bus.Subscribe(namespace, bufSize)
}

// Initialize fetches the newest history page and then opens the realtime
// channel. A failed fetch leaves the session ERRORED without a connection.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.starting = true
	s.mu.Unlock()

	return s.start(ctx)
}

// Reconnect retries from DISCONNECTED or ERRORED. History is fetched first
// if the initial page never arrived.
func (s *Session) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	cur := s.machine.Current()
	if s.starting || (cur != status.Disconnected && cur != status.Errored) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotReconnectable, cur)
	}
	s.starting = true
	s.err = nil
	s.mu.Unlock()
	s.signal()

	s.logger.Info("reconnecting")
	return s.start(ctx)
}

func (s *Session) start(ctx context.Context) error {
	defer func() {
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()
	}()

	ctx, cancel := s.bind(ctx)
	defer cancel()

	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()

	if !loaded {
		page, err := s.opts.API.History(ctx, s.room, 0, s.opts.PageSize)
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrClosed
		}
		if err != nil {
			ferr := fetchError("history", err)
			s.failLocked(ferr)
			s.mu.Unlock()
			s.announce()
			s.signal()
			s.logger.Warn("initial history fetch failed", zap.Error(err))
			return ferr
		}
		s.applyPageLocked(page)
		s.loaded = true
		s.mu.Unlock()
		s.logger.Debug("history loaded", zap.Int("messages", len(page.Messages)), zap.Bool("has_more", page.HasMore))
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if err := s.moveLocked(status.Connecting); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()
	s.announce()
	s.signal()

	if err := s.conn.Connect(ctx, s.room); err != nil {
		terr := &Error{Kind: KindTransport, Op: "connect", Err: err}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrClosed
		}
		if s.machine.Current() != status.Errored {
			s.failLocked(terr)
		}
		s.mu.Unlock()
		s.announce()
		s.signal()
		return terr
	}
	return nil
}

// bind derives a context that is also cancelled by Close.
func (s *Session) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// applyPageLocked merges a newest-first history page.
func (s *Session) applyPageLocked(page *rest.HistoryResponse) int {
	msgs := slices.Clone(page.Messages)
	slices.Reverse(msgs)
	s.hasMore = page.HasMore
	return s.timeline.merge(msgs)
}

func (s *Session) failLocked(err *Error) {
	s.err = err
	if terr := s.moveLocked(status.Errored); terr != nil {
		s.logger.Debug("status unchanged", zap.Error(terr))
	}
}

// moveLocked changes status and queues the event for announce.
func (s *Session) moveLocked(to status.State) error {
	change, err := s.machine.Move(to)
	if err != nil {
		return err
	}
	if change != nil {
		s.pending = append(s.pending, change)
	}
	return nil
}

// announce emits queued status changes. It must be called without mu held.
// A call made while another goroutine is announcing leaves its changes to
// that goroutine, which keeps draining until the queue is empty.
func (s *Session) announce() {
	for {
		if !s.announcing.TryLock() {
			return
		}
		s.mu.Lock()
		batch := s.pending
		s.pending = nil
		s.mu.Unlock()
		for _, c := range batch {
			s.machine.Announce(c)
		}
		s.announcing.Unlock()

		s.mu.Lock()
		more := len(s.pending) > 0
		s.mu.Unlock()
		if !more {
			return
		}
	}
}

func (s *Session) onConnect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if err := s.moveLocked(status.Open); err != nil {
		s.logger.Debug("status unchanged", zap.Error(err))
	}
	if s.err != nil && s.err.Kind == KindTransport {
		s.err = nil
	}
	s.mu.Unlock()
	s.announce()
	s.signal()
	s.refreshOnline()
}

func (s *Session) onDisconnect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	switch s.machine.Current() {
	case status.Open, status.Connecting:
		_ = s.moveLocked(status.Disconnected)
	}
	s.mu.Unlock()
	s.announce()
	s.signal()
}

func (s *Session) onError(payload any) {
	err, ok := payload.(error)
	if !ok {
		err = fmt.Errorf("%v", payload)
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.failLocked(&Error{Kind: KindTransport, Op: "realtime", Err: err})
	s.mu.Unlock()
	s.announce()
	s.signal()
}

func (s *Session) onMessage(payload any) {
	msg, ok := payload.(protocol.Message)
	if !ok {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	added := s.timeline.upsert(msg)
	if added && msg.Sender.ID != s.opts.UserID && msg.ID > s.lastReadID {
		s.unread++
	}
	s.mu.Unlock()

	s.tracker.Stop(msg.Sender.Name)
	s.signal()
}

func (s *Session) onTyping(payload any) {
	evt, ok := payload.(protocol.TypingEvent)
	if !ok || evt.Username == "" {
		return
	}
	if s.opts.Username != "" && evt.Username == s.opts.Username {
		return
	}
	if evt.IsTyping {
		s.tracker.Start(evt.Username)
	} else {
		s.tracker.Stop(evt.Username)
	}
}

func (s *Session) onTranslation(payload any) {
	upd, ok := payload.(protocol.TranslationUpdate)
	if !ok {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	found := s.timeline.translate(upd.MessageID, upd.TranslatedBody)
	s.mu.Unlock()
	if !found {
		s.logger.Debug("translation for unknown message", zap.Int64("message_id", upd.MessageID))
		return
	}
	s.signal()
}

// refreshOnline re-fetches the online snapshot in the background. Only the
// newest request's answer is applied.
func (s *Session) refreshOnline() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.onlineSeq++
	seq := s.onlineSeq
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		users, err := s.opts.API.OnlineUsers(s.ctx, s.room)

		s.mu.Lock()
		defer s.signal()
		defer s.mu.Unlock()
		if s.closed || seq <= s.onlineApplied {
			return
		}
		if err != nil {
			s.logger.Warn("online snapshot failed", zap.Error(err))
			s.err = fetchError("online", err)
			return
		}
		s.onlineApplied = seq
		s.online = users
	}()
}

// SendMessage transmits a chat message. Blank content is rejected unless
// media is attached. The message is not added locally; it appears when the
// server echoes it.
func (s *Session) SendMessage(content string, media *protocol.Media, replyTo *int64) error {
	if strings.TrimSpace(content) == "" && media == nil {
		return ErrEmptyMessage
	}
	if media != nil && (media.URL == "" || !media.Kind.Valid()) {
		return ErrInvalidMedia
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if !s.conn.Send(protocol.NewChatMessage(content, media, replyTo)) {
		s.logger.Warn("message not sent")
		return &Error{Kind: KindSend, Op: "chat_message", Err: ErrNotConnected}
	}
	s.indicator.Set(false)
	return nil
}

// SendTyping records a local keystroke (true) or an explicit stop (false).
// Only transitions reach the wire; a stop is sent automatically after the
// idle period. Reports whether a frame was transmitted.
func (s *Session) SendTyping(isTyping bool) bool {
	return s.indicator.Set(isTyping)
}

// LoadMore fetches the page older than the oldest known message and merges
// it. It is a no-op when the server reported no more history or another
// page is already in flight.
func (s *Session) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.loaded || !s.hasMore || s.loadingMore {
		s.mu.Unlock()
		return nil
	}
	s.loadingMore = true
	before := s.timeline.oldest()
	s.mu.Unlock()

	ctx, cancel := s.bind(ctx)
	defer cancel()
	page, err := s.opts.API.History(ctx, s.room, before, s.opts.PageSize)

	s.mu.Lock()
	s.loadingMore = false
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		ferr := fetchError("history", err)
		s.err = ferr
		s.mu.Unlock()
		s.signal()
		return ferr
	}
	added := s.applyPageLocked(page)
	s.mu.Unlock()
	s.signal()

	s.logger.Debug("older page loaded", zap.Int64("before", before), zap.Int("added", added))
	return nil
}

// MarkRead marks everything up to the newest message as read.
func (s *Session) MarkRead() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.lastReadID = s.timeline.newest()
	s.unread = 0
	s.mu.Unlock()
	s.signal()
}

// Translate asks the API to translate message id into lang (the session
// default when empty) and patches the translated body in place.
func (s *Session) Translate(ctx context.Context, id int64, lang string) (string, error) {
	if lang == "" {
		lang = s.opts.Language
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	msg, ok := s.timeline.get(id)
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownMessage, id)
	}

	ctx, cancel := s.bind(ctx)
	defer cancel()
	text, err := s.opts.API.Translate(ctx, rest.TranslateRequest{
		MessageID:      id,
		Text:           msg.Body,
		TargetLanguage: lang,
	})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	if err != nil {
		ferr := fetchError("translate", err)
		s.err = ferr
		s.mu.Unlock()
		s.signal()
		return "", ferr
	}
	s.timeline.translate(id, text)
	s.mu.Unlock()
	s.signal()
	return text, nil
}

// DismissError clears the surfaced error without touching the status.
func (s *Session) DismissError() {
	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
	s.signal()
}

// State returns a snapshot of the room.
func (s *Session) State() RoomState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := RoomState{
		Room:       s.room,
		Messages:   s.timeline.snapshot(),
		Typing:     s.tracker.Users(),
		Online:     slices.Clone(s.online),
		Status:     s.machine.Current(),
		HasMore:    s.hasMore,
		Unread:     s.unread,
		LastReadID: s.lastReadID,
	}
	if s.err != nil {
		st.Error = s.err.Error()
		st.ErrorKind = s.err.Kind
	}
	return st
}

// Close tears the session down: every bus subscription is released, every
// timer is stopped, in-flight fetches are cancelled and the channel is
// closed. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.scope.Close()
		s.indicator.Set(false)
		s.indicator.Close()
		s.tracker.Close()
		s.cancel()
		s.conn.Disconnect()
		s.wg.Wait()

		s.mu.Lock()
		if err := s.moveLocked(status.Closed); err != nil {
			s.logger.Debug("status unchanged", zap.Error(err))
		}
		s.mu.Unlock()
		s.announce()
		s.signal()
		s.logger.Info("session closed")
	})
}

func (s *Session) signal() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
