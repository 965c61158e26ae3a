package rest

import (
	"fmt"
	"time"

	"github.com/matheus3301/roomchat/internal/protocol"
)

// HistoryResponse is one page of the history endpoint. Messages are newest first.
type HistoryResponse struct {
	Messages []protocol.Message `json:"messages"`
	HasMore  bool               `json:"has_more"`
}

// OnlineResponse is the online-users snapshot of a room.
type OnlineResponse struct {
	Users []protocol.OnlineUser `json:"users"`
}

// RoomSummary describes a room and its latest activity.
type RoomSummary struct {
	Slug               string    `json:"slug"`
	Name               string    `json:"name"`
	LastMessageAt      time.Time `json:"last_message_at"`
	LastMessagePreview string    `json:"last_message_preview,omitempty"`
}

// RoomsResponse lists known rooms, most recently active first.
type RoomsResponse struct {
	Rooms []RoomSummary `json:"rooms"`
}

// TranslateRequest asks the platform to translate a message body.
type TranslateRequest struct {
	MessageID      int64  `json:"message_id,omitempty"`
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language"`
}

// TranslateResponse carries the translated text.
type TranslateResponse struct {
	TranslatedText string `json:"translated_text"`
}

// ErrorResponse is the error body returned by the API.
type ErrorResponse struct {
	Error string `json:"error"`
}

// APIError is returned for any non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
}
