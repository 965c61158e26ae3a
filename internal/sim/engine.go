package sim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/matheus3301/roomchat/internal/bus"
	"github.com/matheus3301/roomchat/internal/metrics"
	"github.com/matheus3301/roomchat/internal/protocol"
	"github.com/matheus3301/roomchat/internal/store"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// Bus events announced by the engine. Payloads are protocol.Message,
// StoredTranslation and the seeded message count.
const (
	EventMessageStored     = "sim.message_stored"
	EventTranslationStored = "sim.translation_stored"
	EventHistorySeeded     = "sim.history_seeded"
)

var (
	ErrEmptyMessage = errors.New("message has no content and no media")
	ErrMissingMedia = errors.New("media message without media url")
	ErrInvalid      = errors.New("invalid request")
)

// Author is the connection identity a message is attributed to.
type Author struct {
	ID     string
	Name   string
	Avatar string
}

// SendRequest is the validated form of an inbound chat_message frame.
type SendRequest struct {
	Content     string `validate:"omitempty,max=4000"`
	MessageType string `validate:"required,oneof=text image video file"`
	MediaURL    string `validate:"omitempty,url"`
	ReplyTo     *int64 `validate:"omitempty,gt=0"`
}

// TranslateRequest is the validated form of a translate call.
type TranslateRequest struct {
	MessageID      int64  `validate:"omitempty,gt=0"`
	Text           string `validate:"required_without=MessageID,max=4000"`
	TargetLanguage string `validate:"required,min=2,max=16"`
}

// StoredTranslation is emitted once a translation is cached.
type StoredTranslation struct {
	Room   string
	Update protocol.TranslationUpdate
}

// Engine validates, sanitizes and persists inbound chat traffic, then
// announces the result on the bus so the hub can fan it out.
type Engine struct {
	db         *store.DB
	bus        *bus.Bus
	validate   *validator.Validate
	sanitizer  *bluemonday.Policy
	translator Translator
	logger     *zap.Logger
}

// NewEngine creates a new ingestion engine. A nil translator uses TagTranslator.
func NewEngine(db *store.DB, b *bus.Bus, translator Translator, logger *zap.Logger) *Engine {
	if translator == nil {
		translator = TagTranslator{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:         db,
		bus:        b,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		sanitizer:  bluemonday.UGCPolicy(),
		translator: translator,
		logger:     logger,
	}
}

// IngestMessage stores a message sent by from into room and emits
// EventMessageStored with the wire form.
func (e *Engine) IngestMessage(room string, from Author, req SendRequest) (protocol.Message, error) {
	if req.MessageType == "" {
		req.MessageType = "text"
	}
	if err := e.validate.Struct(req); err != nil {
		return protocol.Message{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	body := strings.TrimSpace(e.sanitizer.Sanitize(req.Content))
	if body == "" && req.MediaURL == "" {
		return protocol.Message{}, ErrEmptyMessage
	}
	if req.MessageType != "text" && req.MediaURL == "" {
		return protocol.Message{}, ErrMissingMedia
	}

	sm := &store.Message{
		Room:         room,
		SenderID:     from.ID,
		SenderName:   from.Name,
		SenderAvatar: from.Avatar,
		Body:         body,
		MessageType:  req.MessageType,
		MediaURL:     req.MediaURL,
		ReplyTo:      req.ReplyTo,
	}
	if err := e.db.InsertMessage(sm); err != nil {
		return protocol.Message{}, fmt.Errorf("store message: %w", err)
	}
	metrics.MessagesStored().Inc()

	msg := toWire(*sm)
	e.bus.Emit(EventMessageStored, msg)
	return msg, nil
}

// SeedHistory stores a batch of pre-built messages in one transaction. Seeded
// messages are not broadcast.
func (e *Engine) SeedHistory(msgs []*store.Message) error {
	if err := e.db.InsertMessages(msgs); err != nil {
		return fmt.Errorf("seed history: %w", err)
	}
	e.bus.Emit(EventHistorySeeded, len(msgs))
	e.logger.Info("history seeded", zap.Int("messages", len(msgs)))
	return nil
}

// History returns one page of room, newest first.
func (e *Engine) History(room string, before int64, limit int) ([]protocol.Message, bool, error) {
	rows, hasMore, err := e.db.ListMessages(room, before, limit)
	if err != nil {
		return nil, false, fmt.Errorf("list messages: %w", err)
	}
	msgs := make([]protocol.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, toWire(r))
	}
	return msgs, hasMore, nil
}

// Translate translates a stored message, caches the result per language and
// emits EventTranslationStored. req.Text overrides the stored body when set.
// Without a MessageID the text is translated and nothing is stored.
func (e *Engine) Translate(ctx context.Context, req TranslateRequest) (string, error) {
	if err := e.validate.Struct(req); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if req.MessageID == 0 {
		translated, err := e.translator.Translate(ctx, req.Text, req.TargetLanguage)
		if err != nil {
			metrics.Translations().WithLabelValues("error").Inc()
			return "", err
		}
		metrics.Translations().WithLabelValues("ok").Inc()
		return translated, nil
	}
	sm, err := e.db.GetMessage(req.MessageID)
	if err != nil {
		return "", err
	}

	translated, cached, err := e.db.GetTranslation(sm.ID, req.TargetLanguage)
	if err != nil {
		return "", fmt.Errorf("lookup translation: %w", err)
	}
	if !cached {
		text := req.Text
		if text == "" {
			text = sm.Body
		}
		translated, err = e.translator.Translate(ctx, text, req.TargetLanguage)
		if err != nil {
			metrics.Translations().WithLabelValues("error").Inc()
			return "", err
		}
		if err := e.db.SetTranslation(sm.ID, req.TargetLanguage, translated); err != nil {
			return "", fmt.Errorf("cache translation: %w", err)
		}
	}
	metrics.Translations().WithLabelValues("ok").Inc()

	e.bus.Emit(EventTranslationStored, StoredTranslation{
		Room: sm.Room,
		Update: protocol.TranslationUpdate{
			MessageID:      sm.ID,
			TranslatedBody: translated,
			Language:       req.TargetLanguage,
		},
	})
	return translated, nil
}

func toWire(m store.Message) protocol.Message {
	out := protocol.Message{
		ID:          m.ID,
		RoomID:      m.Room,
		Sender:      protocol.Sender{ID: m.SenderID, Name: m.SenderName, Avatar: m.SenderAvatar},
		Body:        m.Body,
		MessageType: m.MessageType,
		Timestamp:   time.UnixMilli(m.CreatedAt).UTC(),
		ReplyTo:     m.ReplyTo,
	}
	if m.MediaURL != "" {
		out.Media = &protocol.Media{URL: m.MediaURL, Kind: protocol.MediaKind(m.MessageType)}
	}
	return out
}
