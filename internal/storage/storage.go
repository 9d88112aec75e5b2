// Package storage persists chat sessions and their message logs.
//
// Service is the PostgreSQL implementation used in production; MemoryStorage
// is an in-process twin with the same semantics, used by tests and local runs.
package storage

import (
	"context"
	"errors"
	"time"

	"supportdesk/backend/internal/models"
)

var (
	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrDuplicate is returned when a requester already holds an open session.
	ErrDuplicate = errors.New("storage: requester already has an open session")
	// ErrSessionClosed is returned when appending a non-system message to a closed session.
	ErrSessionClosed = errors.New("storage: session is closed")
)

// Storage is the persistence contract of the chat service.
//
// All state transitions are conditional on the current status so that
// concurrent callers observe exactly one winner.
type Storage interface {
	// CreateSession inserts the session and, when first is non-nil, its first
	// requester message in the same transaction. ErrDuplicate when the
	// requester already has a pending or active session.
	CreateSession(ctx context.Context, session *models.ChatSession, first *models.ChatMessage) error
	GetSession(ctx context.Context, id string) (*models.ChatSession, error)
	// FindOpenSession returns nil, nil when the requester has no open session.
	FindOpenSession(ctx context.Context, r models.Requester) (*models.ChatSession, error)
	// ListSessions returns sessions newest first. An empty status lists all.
	ListSessions(ctx context.Context, status models.SessionStatus, limit int) ([]models.ChatSession, error)

	// ClaimSession moves a pending session to active under adminID.
	// It reports false when the session exists but is no longer pending.
	ClaimSession(ctx context.Context, id, adminID string) (bool, error)
	// CloseSession closes an open session. It reports false when the session
	// was already closed.
	CloseSession(ctx context.Context, id string, at time.Time, reason string) (bool, error)
	// FindIdleSessions returns open sessions whose last requester message is
	// at or before cutoff.
	FindIdleSessions(ctx context.Context, cutoff time.Time) ([]models.ChatSession, error)
	// CloseIfIdle closes the session only if it is still open and still idle
	// relative to cutoff.
	CloseIfIdle(ctx context.Context, id string, cutoff, at time.Time) (bool, error)
	// ReassignRequester moves a session to another requester identity.
	ReassignRequester(ctx context.Context, id string, to models.Requester) error

	// AppendMessage adds a message to the session log. created_at is clamped
	// so the log never goes backwards, and requester messages refresh
	// last_user_message_at. System messages are accepted on closed sessions.
	AppendMessage(ctx context.Context, msg *models.ChatMessage) error
	// ListMessages returns messages with id > afterID in log order.
	ListMessages(ctx context.Context, sessionID string, afterID uint, limit int) ([]models.ChatMessage, error)
	// MarkRead flags every non-requester message of the session as read.
	MarkRead(ctx context.Context, sessionID string) (int64, error)
	CountUnread(ctx context.Context, sessionID string) (int64, error)

	Ping(ctx context.Context) error
}

// DefaultListLimit caps list queries when the caller passes zero.
const DefaultListLimit = 200

func effectiveLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
