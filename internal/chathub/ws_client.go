package chathub

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// WebSocketClient implements Client over a gorilla websocket connection.
// The socket is push-only; anything the browser sends is discarded.
type WebSocketClient struct {
	ID           string
	RequesterKey string
	Admin        bool
	Conn         *websocket.Conn
	Hub          *ManagerService
	Send         chan Frame
	log          *zap.Logger
}

func NewWebSocketClient(hub *ManagerService, conn *websocket.Conn, requesterKey string, admin bool) *WebSocketClient {
	return &WebSocketClient{
		ID:           uuid.NewString(),
		RequesterKey: requesterKey,
		Admin:        admin,
		Conn:         conn,
		Hub:          hub,
		Send:         make(chan Frame, sendBuffer),
		log:          hub.log,
	}
}

func (c *WebSocketClient) GetID() string                { return c.ID }
func (c *WebSocketClient) GetRequesterKey() string      { return c.RequesterKey }
func (c *WebSocketClient) IsAdmin() bool                { return c.Admin }
func (c *WebSocketClient) GetSendChannel() chan<- Frame { return c.Send }

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes Send, which stops writePump. Only the hub calls it.
func (c *WebSocketClient) Close() {
	close(c.Send)
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Info("websocket read", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(frame)
			if err != nil {
				c.log.Error("encode frame", zap.String("client_id", c.ID), zap.Error(err))
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
