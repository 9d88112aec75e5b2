package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"supportdesk/backend/internal/chathub"
	"supportdesk/backend/internal/config"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeWebSocket_RequiresToken(t *testing.T) {
	s := newTestServer(t, config.OverrideNone)

	w, body := s.do(t, http.MethodGet, "/ws", "", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", body["error"])
}

func TestServeWebSocket_PushesRefreshForOwnSession(t *testing.T) {
	// Arrange
	s := newTestServer(t, config.OverrideNone)
	token := s.anonToken(t)
	claims, err := s.tokens.Parse(token)
	require.NoError(t, err)

	srv := httptest.NewServer(s.router)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	// Act: registration is asynchronous, so keep publishing until a frame arrives.
	frames := make(chan chathub.Frame, 1)
	go func() {
		var f chathub.Frame
		if err := conn.ReadJSON(&f); err == nil {
			frames <- f
		}
	}()

	var got chathub.Frame
	deadline := time.After(2 * time.Second)
loop:
	for {
		s.h.Hub.Publish(chathub.Event{
			Table:        "chat_messages",
			Op:           "INSERT",
			SessionID:    "s-1",
			RequesterKey: "anon:" + claims.AnonID,
		})
		select {
		case got = <-frames:
			break loop
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("no refresh frame received")
		}
	}

	// Assert
	assert.Equal(t, chathub.FrameRefresh, got.Type)
	assert.Equal(t, []string{"s-1"}, got.SessionIDs)
}
