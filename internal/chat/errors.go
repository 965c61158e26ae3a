package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyMessage is returned by SendMessage for blank content with no media.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrInvalidMedia is returned when an attachment has no URL or an unknown kind.
	ErrInvalidMedia = errors.New("invalid media attachment")
	// ErrNotConnected is returned when a frame could not be transmitted.
	ErrNotConnected = errors.New("not connected")
	// ErrClosed is returned by every operation after Close, and by fetches
	// that resolved after Close.
	ErrClosed = errors.New("session closed")
	// ErrUnknownMessage is returned by Translate for an ID not in the timeline.
	ErrUnknownMessage = errors.New("unknown message")
	// ErrNotReconnectable is returned by Reconnect unless the session is
	// disconnected or errored.
	ErrNotReconnectable = errors.New("session is not disconnected")
	// ErrAlreadyStarted is returned by a second Initialize.
	ErrAlreadyStarted = errors.New("session already started")
)

// ErrorKind classifies failures surfaced in RoomState.
type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindSend      ErrorKind = "send"
	KindFetch     ErrorKind = "fetch"
)

// Error is a failure attributed to one part of the session.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func fetchError(op string, err error) *Error {
	return &Error{Kind: KindFetch, Op: op, Err: err}
}
