package protocol

import "time"

// MediaKind classifies an attached media reference.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaFile  MediaKind = "file"
)

// Valid reports whether k is one of the known media kinds.
func (k MediaKind) Valid() bool {
	switch k {
	case MediaImage, MediaVideo, MediaFile:
		return true
	default:
		return false
	}
}

// Sender identifies the author of a message.
type Sender struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Media is an attachment already uploaded elsewhere.
type Media struct {
	URL  string    `json:"url"`
	Kind MediaKind `json:"kind"`
}

// Message is a chat message as delivered by the history endpoint or the realtime channel.
// IDs are assigned by the server and unique within a room.
type Message struct {
	ID             int64     `json:"id"`
	RoomID         string    `json:"room_id,omitempty"`
	Sender         Sender    `json:"sender"`
	Body           string    `json:"content,omitempty"`
	MessageType    string    `json:"message_type,omitempty"`
	Media          *Media    `json:"media,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	ReplyTo        *int64    `json:"reply_to,omitempty"`
	TranslatedBody string    `json:"translated_content,omitempty"`
}

// TypingEvent reports that a user started or stopped composing.
type TypingEvent struct {
	Username  string
	IsTyping  bool
	Timestamp time.Time
}

// UserStatusEvent reports a presence change. Consumers treat it as a hint to
// re-fetch the online snapshot.
type UserStatusEvent struct {
	UserID   string
	Username string
	Online   bool
}

// TranslationUpdate carries a translated body for an existing message.
type TranslationUpdate struct {
	MessageID      int64
	TranslatedBody string
	Language       string
}

// OnlineUser is one entry of the online-users snapshot.
type OnlineUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}
