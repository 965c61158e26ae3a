package sim

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/matheus3301/roomchat/internal/bus"
	"github.com/matheus3301/roomchat/internal/protocol"
	"github.com/matheus3301/roomchat/internal/rest"
	"github.com/matheus3301/roomchat/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server exposes the realtime channel and the REST API of the simulated
// backend.
type Server struct {
	engine   *Engine
	hub      *Hub
	db       *store.DB
	scope    *bus.Scope
	validate *validator.Validate
	upgrader websocket.Upgrader
	router   *gin.Engine
	http     *http.Server
	listener net.Listener
	logger   *zap.Logger
}

// ServerConfig holds the listen address and the accepted websocket origin
// (empty accepts any).
type ServerConfig struct {
	Addr          string
	AllowedOrigin string
}

// NewServer binds the listener and wires the engine's stored events to the hub.
func NewServer(cfg ServerConfig, engine *Engine, hub *Hub, db *store.DB, b *bus.Bus, logger *zap.Logger) (*Server, error) {
	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		engine:   engine,
		hub:      hub,
		db:       db,
		scope:    b.Scope(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		router:   gin.New(),
		listener: listener,
		logger:   logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return cfg.AllowedOrigin == "" || origin == "" || origin == cfg.AllowedOrigin
		},
	}

	s.scope.On(EventMessageStored, func(p any) {
		if msg, ok := p.(protocol.Message); ok {
			hub.Broadcast(context.Background(), msg.RoomID, protocol.MessageFrame(msg), "")
		}
	})
	s.scope.On(EventTranslationStored, func(p any) {
		if t, ok := p.(StoredTranslation); ok {
			u := t.Update
			hub.Broadcast(context.Background(), t.Room, protocol.TranslationFrame(u.MessageID, u.TranslatedBody, u.Language), "")
		}
	})

	s.routes()
	s.http = &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	return s, nil
}

func (s *Server) health(c *gin.Context) {
	count, err := s.db.MessageCount()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "messages": count})
}

func (s *Server) routes() {
	r := s.router
	// Room slugs may contain escaped slashes.
	r.UseRawPath = true
	r.Use(gin.Recovery())

	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws/chat/:room", s.serveWS)

	api := r.Group("/api")
	api.GET("/rooms", s.listRooms)
	api.GET("/rooms/:room/messages", s.history)
	api.GET("/rooms/:room/online", s.online)
	api.POST("/translate", s.translate)
}

// Handler returns the HTTP handler, for tests that serve it themselves.
func (s *Server) Handler() http.Handler { return s.router }

// Addr returns the bound listen address.
func (s *Server) Addr() string { return s.listener.Addr().String() }

// Start serves until Stop. Blocks.
func (s *Server) Start() error {
	s.logger.Info("http server starting", zap.String("addr", s.Addr()))
	if err := s.http.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the HTTP server down and drops every websocket member.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("http server stopping")
	s.scope.Close()
	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Warn("http shutdown", zap.Error(err))
	}
	s.hub.Close()
}

func (s *Server) serveWS(c *gin.Context) {
	room := c.Param("room")
	user := protocol.OnlineUser{ID: c.Query("user_id"), Name: c.Query("username")}
	if user.ID == "" || user.Name == "" {
		abort(c, http.StatusBadRequest, "user_id and username are required")
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	m := newMember(uuid.NewString(), room, user, conn, s.hub, s.logger)
	s.hub.Join(context.Background(), m)
	go m.writePump()
	go m.readPump(s.handleFrame)
}

func (s *Server) handleFrame(m *member, f protocol.Frame) {
	switch f.Type {
	case protocol.FrameChatMessage:
		_, err := s.engine.IngestMessage(m.room, Author{ID: m.user.ID, Name: m.user.Name, Avatar: m.user.Avatar}, SendRequest{
			Content:     f.Content,
			MessageType: f.MessageType,
			MediaURL:    f.MediaURL,
			ReplyTo:     f.ReplyTo,
		})
		if err != nil {
			m.logger.Warn("chat_message rejected", zap.Error(err))
		}
	case protocol.FrameTyping:
		s.hub.Broadcast(context.Background(), m.room, protocol.TypingIndicatorFrame(m.user.Name, f.IsTyping, time.Now().UTC()), m.id)
	default:
		m.logger.Debug("ignoring frame", zap.String("type", f.Type))
	}
}

type historyQuery struct {
	Before int64 `form:"before" validate:"gte=0"`
	Limit  int   `form:"limit" validate:"omitempty,gte=1,lte=200"`
}

func (s *Server) history(c *gin.Context) {
	var q historyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.validate.Struct(q); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}

	msgs, hasMore, err := s.engine.History(c.Param("room"), q.Before, q.Limit)
	if err != nil {
		s.logger.Error("history", zap.Error(err))
		abort(c, http.StatusInternalServerError, "history unavailable")
		return
	}
	c.JSON(http.StatusOK, rest.HistoryResponse{Messages: msgs, HasMore: hasMore})
}

func (s *Server) online(c *gin.Context) {
	c.JSON(http.StatusOK, rest.OnlineResponse{Users: s.hub.Online(c.Param("room"))})
}

func (s *Server) listRooms(c *gin.Context) {
	rooms, err := s.db.ListRooms(100, 0)
	if err != nil {
		s.logger.Error("list rooms", zap.Error(err))
		abort(c, http.StatusInternalServerError, "rooms unavailable")
		return
	}
	resp := rest.RoomsResponse{Rooms: make([]rest.RoomSummary, 0, len(rooms))}
	for _, r := range rooms {
		resp.Rooms = append(resp.Rooms, rest.RoomSummary{
			Slug:               r.Slug,
			Name:               r.Name,
			LastMessageAt:      time.UnixMilli(r.LastMessageAt).UTC(),
			LastMessagePreview: r.LastMessagePreview,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) translate(c *gin.Context) {
	var body rest.TranslateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}

	text, err := s.engine.Translate(c.Request.Context(), TranslateRequest{
		MessageID:      body.MessageID,
		Text:           body.Text,
		TargetLanguage: body.TargetLanguage,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, rest.TranslateResponse{TranslatedText: text})
	case errors.Is(err, ErrInvalid):
		abort(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		abort(c, http.StatusNotFound, "message not found")
	default:
		s.logger.Error("translate", zap.Error(err))
		abort(c, http.StatusBadGateway, "translation failed")
	}
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, rest.ErrorResponse{Error: msg})
}
