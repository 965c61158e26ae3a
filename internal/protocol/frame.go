package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Frame types on the wire.
const (
	FrameChatMessage       = "chat_message"
	FrameTyping            = "typing"
	FrameTypingIndicator   = "typing_indicator"
	FrameUserStatusUpdate  = "user_status_update"
	FrameTranslationUpdate = "translation_update"
)

// Internal event names emitted on the bus by the transport.
const (
	EventConnect           = "connect"
	EventDisconnect        = "disconnect"
	EventError             = "error"
	EventMessage           = "message"
	EventTyping            = "typing"
	EventUserStatus        = "userStatus"
	EventTranslationUpdate = "translation_update"
)

var (
	ErrUnknownFrame   = errors.New("unknown frame type")
	ErrMalformedFrame = errors.New("malformed frame")
)

// Frame is the JSON envelope used in both directions. Only the fields
// relevant to Type are set.
type Frame struct {
	Type string `json:"type"`

	// chat_message (outbound)
	Content     string `json:"content,omitempty"`
	MessageType string `json:"message_type,omitempty"`
	MediaURL    string `json:"media_url,omitempty"`
	ReplyTo     *int64 `json:"reply_to,omitempty"`

	// chat_message (inbound)
	Message *Message `json:"message,omitempty"`

	// typing / typing_indicator
	Username string `json:"username,omitempty"`
	IsTyping bool   `json:"is_typing,omitempty"`

	// user_status_update
	UserID string `json:"user_id,omitempty"`
	Online bool   `json:"online,omitempty"`

	// translation_update
	MessageID      int64  `json:"message_id,omitempty"`
	TranslatedBody string `json:"translated_body,omitempty"`
	Language       string `json:"language,omitempty"`

	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// MarshalJSON always writes is_typing on typing frames and online on
// user_status_update frames, false included.
func (f Frame) MarshalJSON() ([]byte, error) {
	type plain Frame
	out := struct {
		plain
		IsTyping *bool `json:"is_typing,omitempty"`
		Online   *bool `json:"online,omitempty"`
	}{plain: plain(f)}
	switch f.Type {
	case FrameTyping, FrameTypingIndicator:
		out.IsTyping = &f.IsTyping
	case FrameUserStatusUpdate:
		out.Online = &f.Online
	}
	return json.Marshal(out)
}

// NewChatMessage builds an outbound chat_message frame. A nil media sends a text message.
func NewChatMessage(content string, media *Media, replyTo *int64) Frame {
	f := Frame{Type: FrameChatMessage, Content: content, MessageType: "text", ReplyTo: replyTo}
	if media != nil {
		f.MessageType = string(media.Kind)
		f.MediaURL = media.URL
	}
	return f
}

// NewTyping builds an outbound typing frame.
func NewTyping(isTyping bool) Frame {
	return Frame{Type: FrameTyping, IsTyping: isTyping}
}

// MessageFrame wraps a stored message for delivery on the realtime channel.
func MessageFrame(m Message) Frame {
	return Frame{Type: FrameChatMessage, Message: &m}
}

// TypingIndicatorFrame announces a typing transition for username.
func TypingIndicatorFrame(username string, isTyping bool, at time.Time) Frame {
	return Frame{Type: FrameTypingIndicator, Username: username, IsTyping: isTyping, Timestamp: &at}
}

// UserStatusFrame announces a presence change.
func UserStatusFrame(userID, username string, online bool) Frame {
	return Frame{Type: FrameUserStatusUpdate, UserID: userID, Username: username, Online: online}
}

// TranslationFrame announces a translated body for messageID.
func TranslationFrame(messageID int64, translated, lang string) Frame {
	return Frame{Type: FrameTranslationUpdate, MessageID: messageID, TranslatedBody: translated, Language: lang}
}

// Decode parses a raw inbound frame and returns the internal event name with
// its typed payload: Message, TypingEvent, UserStatusEvent or TranslationUpdate.
func Decode(data []byte) (string, any, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return f.Event()
}

// Event maps an inbound frame to its internal event name and payload.
func (f Frame) Event() (string, any, error) {
	switch f.Type {
	case FrameChatMessage:
		if f.Message == nil || f.Message.ID == 0 {
			return "", nil, fmt.Errorf("%w: chat_message without message id", ErrMalformedFrame)
		}
		return EventMessage, *f.Message, nil
	case FrameTypingIndicator:
		if f.Username == "" {
			return "", nil, fmt.Errorf("%w: typing_indicator without username", ErrMalformedFrame)
		}
		evt := TypingEvent{Username: f.Username, IsTyping: f.IsTyping, Timestamp: time.Now()}
		if f.Timestamp != nil {
			evt.Timestamp = *f.Timestamp
		}
		return EventTyping, evt, nil
	case FrameUserStatusUpdate:
		if f.UserID == "" && f.Username == "" {
			return "", nil, fmt.Errorf("%w: user_status_update without user", ErrMalformedFrame)
		}
		return EventUserStatus, UserStatusEvent{UserID: f.UserID, Username: f.Username, Online: f.Online}, nil
	case FrameTranslationUpdate:
		if f.MessageID == 0 {
			return "", nil, fmt.Errorf("%w: translation_update without message id", ErrMalformedFrame)
		}
		return EventTranslationUpdate, TranslationUpdate{
			MessageID:      f.MessageID,
			TranslatedBody: f.TranslatedBody,
			Language:       f.Language,
		}, nil
	case "":
		return "", nil, fmt.Errorf("%w: empty type", ErrUnknownFrame)
	default:
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownFrame, f.Type)
	}
}
