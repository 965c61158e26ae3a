// Package rest is the HTTP side of a room: history pages, the online-users
// snapshot and the translate call.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/matheus3301/roomchat/internal/protocol"
	"go.uber.org/zap"
)

// Client talks to the platform REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a REST client. baseURL is the platform origin, e.g.
// "http://localhost:8080"; the /api prefix is added per call.
func NewClient(baseURL, token string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(client *http.Client) {
	if client != nil {
		c.httpClient = client
	}
}

// History fetches one page of messages older than before (0 for the newest
// page), newest first as the server returns them.
func (c *Client) History(ctx context.Context, room string, before int64, limit int) (*HistoryResponse, error) {
	q := url.Values{}
	if before > 0 {
		q.Set("before", strconv.FormatInt(before, 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/rooms/" + url.PathEscape(room) + "/messages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp HistoryResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("history %s: %w", room, err)
	}
	return &resp, nil
}

// OnlineUsers fetches the current online snapshot for room.
func (c *Client) OnlineUsers(ctx context.Context, room string) ([]protocol.OnlineUser, error) {
	var resp OnlineResponse
	if err := c.get(ctx, "/api/rooms/"+url.PathEscape(room)+"/online", &resp); err != nil {
		return nil, fmt.Errorf("online users %s: %w", room, err)
	}
	if resp.Users == nil {
		resp.Users = []protocol.OnlineUser{}
	}
	return resp.Users, nil
}

// Rooms lists the rooms known to the platform.
func (c *Client) Rooms(ctx context.Context) ([]RoomSummary, error) {
	var resp RoomsResponse
	if err := c.get(ctx, "/api/rooms", &resp); err != nil {
		return nil, fmt.Errorf("rooms: %w", err)
	}
	return resp.Rooms, nil
}

// Translate asks the platform to translate text. When MessageID is set the
// server also broadcasts a translation_update for that message.
func (c *Client) Translate(ctx context.Context, req TranslateRequest) (string, error) {
	var resp TranslateResponse
	if err := c.post(ctx, "/api/translate", req, &resp); err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	return resp.TranslatedText, nil
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, dest)
}

func (c *Client) post(ctx context.Context, path string, body, dest any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, dest)
}

// MaxResponseBytes caps how much of a response body is read.
const MaxResponseBytes = 4 << 20

// ErrResponseTooLarge is returned when a response exceeds MaxResponseBytes.
var ErrResponseTooLarge = errors.New("response too large")

func (c *Client) do(req *http.Request, dest any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if len(body) > MaxResponseBytes {
		return fmt.Errorf("%w: %s %s", ErrResponseTooLarge, req.Method, req.URL.Path)
	}
	c.logger.Debug("api call",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return &APIError{Status: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	if dest != nil {
		if err := json.Unmarshal(body, dest); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
