// Package feed relays committed chat row changes from PostgreSQL
// LISTEN/NOTIFY to the websocket hub.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"supportdesk/backend/internal/chathub"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Channel is the NOTIFY channel written by the notify_chat_event trigger.
const Channel = "chat_events"

const (
	minReconnect = 10 * time.Second
	maxReconnect = time.Minute
	pingInterval = 90 * time.Second
)

// Publisher receives decoded events.
type Publisher interface {
	Publish(ev chathub.Event)
}

type Listener struct {
	dsn string
	pub Publisher
	log *zap.Logger
}

func NewListener(dsn string, pub Publisher, log *zap.Logger) *Listener {
	return &Listener{dsn: dsn, pub: pub, log: log}
}

// Run listens until ctx is cancelled. pq.Listener reconnects on its own;
// Run only fails if the initial LISTEN cannot be issued.
func (l *Listener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.dsn, minReconnect, maxReconnect, l.reportProblem)
	defer listener.Close()

	if err := listener.Listen(Channel); err != nil {
		return fmt.Errorf("listen %s: %w", Channel, err)
	}
	l.log.Info("change feed listening", zap.String("channel", Channel))

	l.consume(ctx, listener.Notify, func() {
		if err := listener.Ping(); err != nil {
			l.log.Warn("change feed ping", zap.Error(err))
		}
	}, pingInterval)
	return nil
}

func (l *Listener) consume(ctx context.Context, notify <-chan *pq.Notification, ping func(), idle time.Duration) {
	timer := time.NewTimer(idle)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case n, ok := <-notify:
			if !ok {
				return
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(idle)

			if n == nil {
				// Sent after a reconnect; notifications in the gap are lost
				// and clients recover on their next poll.
				l.log.Info("change feed reconnected")
				continue
			}
			ev, err := Decode(n.Extra)
			if err != nil {
				l.log.Warn("change feed payload", zap.String("payload", n.Extra), zap.Error(err))
				continue
			}
			l.pub.Publish(ev)

		case <-timer.C:
			go ping()
			timer.Reset(idle)
		}
	}
}

func (l *Listener) reportProblem(ev pq.ListenerEventType, err error) {
	if err != nil {
		l.log.Warn("change feed connection", zap.Int("event", int(ev)), zap.Error(err))
	}
}

// Decode parses one trigger payload.
func Decode(payload string) (chathub.Event, error) {
	var ev chathub.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return chathub.Event{}, err
	}
	if ev.SessionID == "" {
		return chathub.Event{}, errors.New("event without session_id")
	}
	return ev, nil
}
