// Package chathub pushes change notifications to connected chat widgets and
// admin dashboards over websockets.
package chathub

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type flushRequest struct {
	clientID   string
	sessionIDs []string
}

// ManagerService owns the client registry. All registry state is touched
// only from Run.
type ManagerService struct {
	Clients map[string]Client

	RegisterCh   chan Client
	UnregisterCh chan Client
	EventsCh     chan Event

	flushCh   chan flushRequest
	done      chan struct{}
	debouncer *Debouncer
	log       *zap.Logger
	now       func() time.Time
}

// NewManagerService builds a hub whose refresh hints are debounced by window.
func NewManagerService(log *zap.Logger, window time.Duration) *ManagerService {
	m := &ManagerService{
		Clients:      make(map[string]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		EventsCh:     make(chan Event, 256),
		flushCh:      make(chan flushRequest, 64),
		done:         make(chan struct{}),
		log:          log,
		now:          time.Now,
	}
	m.debouncer = NewDebouncer(window, func(clientID string, ids []string) {
		select {
		case m.flushCh <- flushRequest{clientID: clientID, sessionIDs: ids}:
		case <-m.done:
		}
	})
	return m
}

// Publish hands an event to the hub. It drops the event once the hub has stopped.
func (m *ManagerService) Publish(ev Event) {
	select {
	case m.EventsCh <- ev:
	case <-m.done:
	}
}

// Register adds a client unless the hub has stopped.
func (m *ManagerService) Register(c Client) bool {
	select {
	case m.RegisterCh <- c:
		return true
	case <-m.done:
		return false
	}
}

// Unregister removes a client; safe to call after the hub stopped.
func (m *ManagerService) Unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
	}
}

// Run is the hub's event loop. It returns when ctx is cancelled, closing
// every client.
func (m *ManagerService) Run(ctx context.Context) {
	defer func() {
		m.debouncer.Stop()
		close(m.done)
		for id, c := range m.Clients {
			c.Close()
			delete(m.Clients, id)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-m.RegisterCh:
			m.Clients[c.GetID()] = c
			m.log.Debug("client registered",
				zap.String("client_id", c.GetID()),
				zap.Bool("admin", c.IsAdmin()))

		case c := <-m.UnregisterCh:
			m.drop(c.GetID())

		case ev := <-m.EventsCh:
			for id, c := range m.Clients {
				if c.IsAdmin() || (ev.RequesterKey != "" && c.GetRequesterKey() == ev.RequesterKey) {
					m.debouncer.Add(id, ev.SessionID)
				}
			}

		case req := <-m.flushCh:
			c, ok := m.Clients[req.clientID]
			if !ok {
				continue
			}
			frame := Frame{Type: FrameRefresh, SessionIDs: req.sessionIDs, SentAt: m.now()}
			select {
			case c.GetSendChannel() <- frame:
			default:
				// Slow consumer; it reconnects and re-fetches.
				m.log.Warn("client send buffer full, dropping", zap.String("client_id", req.clientID))
				m.drop(req.clientID)
			}
		}
	}
}

func (m *ManagerService) drop(id string) {
	c, ok := m.Clients[id]
	if !ok {
		return
	}
	delete(m.Clients, id)
	m.debouncer.Forget(id)
	c.Close()
}
