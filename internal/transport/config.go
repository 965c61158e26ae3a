package transport

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config controls how a Conn reaches the realtime endpoint.
type Config struct {
	// BaseURL is the platform origin, e.g. "https://community.example". Its
	// scheme decides between ws:// and wss://.
	BaseURL  string
	Token    string
	UserID   string
	Username string

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// ReadLimit caps a single inbound frame in bytes.
	ReadLimit int64
}

// DefaultConfig returns the timeouts used when none are configured.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		ReadLimit:        1 << 20,
	}
}

// Endpoint builds the realtime URL for room. http maps to ws and https to
// wss; ws and wss base URLs are used as given.
func Endpoint(baseURL, room, userID, username string) (string, error) {
	if room == "" {
		return "", fmt.Errorf("empty room")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base url %q has no host", baseURL)
	}

	// Path holds the decoded room and RawPath its escaped form, so the room
	// is escaped exactly once and a '/' in it stays inside the segment.
	escapedBase := strings.TrimRight(u.EscapedPath(), "/")
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/chat/" + room
	u.RawPath = escapedBase + "/ws/chat/" + url.PathEscape(room)
	q := url.Values{}
	if userID != "" {
		q.Set("user_id", userID)
	}
	if username != "" {
		q.Set("username", username)
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return u.String(), nil
}
