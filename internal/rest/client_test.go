package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory(t *testing.T) {
	var gotQuery, gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"messages":[{"id":3,"content":"c"},{"id":2,"content":"b"}],"has_more":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "tok", nil)
	c.SetHTTPClient(srv.Client())
	page, err := c.History(context.Background(), "alpha", 4, 2)
	require.NoError(t, err)

	assert.Equal(t, "/api/rooms/alpha/messages", gotPath)
	assert.Equal(t, "before=4&limit=2", gotQuery)
	assert.Equal(t, "Bearer tok", gotAuth)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, int64(3), page.Messages[0].ID)
	assert.True(t, page.HasMore)
}

func TestHistoryFirstPageOmitsCursor(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"messages":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", nil).History(context.Background(), "alpha", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, gotQuery)
}

func TestOnlineUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/rooms/alpha/online", r.URL.Path)
		_, _ = w.Write([]byte(`{"users":[{"id":"u1","name":"ana"}]}`))
	}))
	defer srv.Close()

	users, err := NewClient(srv.URL, "", nil).OnlineUsers(context.Background(), "alpha")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "ana", users[0].Name)
}

func TestOnlineUsersEmptySnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	users, err := NewClient(srv.URL, "", nil).OnlineUsers(context.Background(), "alpha")
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestTranslate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req TranslateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(9), req.MessageID)
		assert.Equal(t, "pt", req.TargetLanguage)
		_ = json.NewEncoder(w).Encode(TranslateResponse{TranslatedText: "olá"})
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, "", nil).Translate(context.Background(),
		TranslateRequest{MessageID: 9, Text: "hello", TargetLanguage: "pt"})
	require.NoError(t, err)
	assert.Equal(t, "olá", got)
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{name: "json error body", body: `{"error":"room not found"}`, wantMsg: "room not found"},
		{name: "plain body", body: "boom\n", wantMsg: "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "", nil).History(context.Background(), "ghost", 0, 10)
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr), "got %v", err)
			assert.Equal(t, http.StatusNotFound, apiErr.Status)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
		})
	}
}

func TestCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"users":[]}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(srv.URL, "", nil).OnlineUsers(ctx, "alpha")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRooms(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/rooms", r.URL.Path)
		_, _ = w.Write([]byte(`{"rooms":[{"slug":"alpha","name":"Alpha","last_message_preview":"hi"}]}`))
	}))
	defer srv.Close()

	rooms, err := NewClient(srv.URL, "", nil).Rooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "alpha", rooms[0].Slug)
	assert.Equal(t, "hi", rooms[0].LastMessagePreview)
}

func TestOversizedResponseIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"users":[],"pad":"`))
		_, _ = w.Write(bytes.Repeat([]byte("x"), MaxResponseBytes))
		_, _ = w.Write([]byte(`"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", nil).OnlineUsers(context.Background(), "alpha")
	require.ErrorIs(t, err, ErrResponseTooLarge)
}
