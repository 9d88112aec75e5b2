package handler

import (
	"errors"
	"net/http"

	"supportdesk/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The widget is embedded on partner LGU sites; tokens gate access, not origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the request to a push-only refresh channel.
// Requesters receive hints for their own sessions, admins for all of them.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	id := identityFrom(c)
	if !id.Requester.Valid() {
		h.fail(c, unauthorized(errors.New("websocket requires a token")))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Warn("websocket upgrade", zap.Error(err))
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, conn, id.Requester.Key(), id.IsAdmin())
	if !h.Hub.Register(client) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}
	client.Run()
}
