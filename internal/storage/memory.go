package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"supportdesk/backend/internal/models"
)

// MemoryStorage keeps sessions and messages in process memory.
// It mirrors Service's conditional-update semantics under a single lock.
type MemoryStorage struct {
	mu       sync.RWMutex
	sessions map[string]*models.ChatSession
	messages map[string][]models.ChatMessage
	nextID   uint
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		sessions: make(map[string]*models.ChatSession),
		messages: make(map[string][]models.ChatMessage),
	}
}

func cloneSession(s *models.ChatSession) *models.ChatSession {
	c := *s
	if s.UserID != nil {
		v := *s.UserID
		c.UserID = &v
	}
	if s.AnonymousID != nil {
		v := *s.AnonymousID
		c.AnonymousID = &v
	}
	if s.AdminID != nil {
		v := *s.AdminID
		c.AdminID = &v
	}
	if s.LastUserMessageAt != nil {
		v := *s.LastUserMessageAt
		c.LastUserMessageAt = &v
	}
	if s.ClosedAt != nil {
		v := *s.ClosedAt
		c.ClosedAt = &v
	}
	return &c
}

func (m *MemoryStorage) Ping(ctx context.Context) error { return ctx.Err() }

func (m *MemoryStorage) openFor(r models.Requester, except string) *models.ChatSession {
	for id, s := range m.sessions {
		if id != except && s.Status.IsOpen() && r.Owns(s) {
			return s
		}
	}
	return nil
}

func (m *MemoryStorage) CreateSession(ctx context.Context, session *models.ChatSession, first *models.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.openFor(session.Requester(), "") != nil {
		return ErrDuplicate
	}
	if err := session.BeforeCreate(nil); err != nil {
		return err
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	m.sessions[session.ID] = cloneSession(session)

	if first != nil {
		first.SessionID = session.ID
		m.insertLocked(first)
	}
	return nil
}

func (m *MemoryStorage) GetSession(ctx context.Context, id string) (*models.ChatSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(s), nil
}

func (m *MemoryStorage) FindOpenSession(ctx context.Context, r models.Requester) (*models.ChatSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s := m.openFor(r, ""); s != nil {
		return cloneSession(s), nil
	}
	return nil, nil
}

func (m *MemoryStorage) ListSessions(ctx context.Context, status models.SessionStatus, limit int) ([]models.ChatSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.ChatSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		if status == "" || s.Status == status {
			out = append(out, *cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if n := effectiveLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (m *MemoryStorage) ClaimSession(ctx context.Context, id, adminID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return false, ErrNotFound
	}
	if s.Status != models.StatusPending {
		return false, nil
	}
	admin := adminID
	s.Status = models.StatusActive
	s.AdminID = &admin
	return true, nil
}

func (m *MemoryStorage) closeLocked(s *models.ChatSession, at time.Time, reason string) {
	closedAt := laterOf(at, s.CreatedAt)
	s.Status = models.StatusClosed
	s.ClosedAt = &closedAt
	s.CloseReason = reason
}

func (m *MemoryStorage) CloseSession(ctx context.Context, id string, at time.Time, reason string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return false, ErrNotFound
	}
	if !s.Status.IsOpen() {
		return false, nil
	}
	m.closeLocked(s, at, reason)
	return true, nil
}

func idle(s *models.ChatSession, cutoff time.Time) bool {
	return s.Status.IsOpen() && s.LastUserMessageAt != nil && !s.LastUserMessageAt.After(cutoff)
}

func (m *MemoryStorage) FindIdleSessions(ctx context.Context, cutoff time.Time) ([]models.ChatSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.ChatSession
	for _, s := range m.sessions {
		if idle(s, cutoff) {
			out = append(out, *cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastUserMessageAt.Before(*out[j].LastUserMessageAt) })
	return out, nil
}

func (m *MemoryStorage) CloseIfIdle(ctx context.Context, id string, cutoff, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || !idle(s, cutoff) {
		return false, nil
	}
	m.closeLocked(s, at, models.CloseReasonTimeout)
	return true, nil
}

func (m *MemoryStorage) ReassignRequester(ctx context.Context, id string, to models.Requester) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if s.Status.IsOpen() && m.openFor(to, id) != nil {
		return ErrDuplicate
	}
	to.Apply(s)
	return nil
}

func (m *MemoryStorage) insertLocked(msg *models.ChatMessage) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	log := m.messages[msg.SessionID]
	if n := len(log); n > 0 {
		msg.CreatedAt = laterOf(msg.CreatedAt, log[n-1].CreatedAt)
	}
	m.nextID++
	msg.ID = m.nextID
	m.messages[msg.SessionID] = append(log, *msg)

	if msg.Sender == models.SenderUser {
		at := msg.CreatedAt
		m.sessions[msg.SessionID].LastUserMessageAt = &at
	}
}

func (m *MemoryStorage) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[msg.SessionID]
	if !ok {
		return ErrNotFound
	}
	if !s.Status.IsOpen() && msg.Sender != models.SenderSystem {
		return ErrSessionClosed
	}
	m.insertLocked(msg)
	return nil
}

func (m *MemoryStorage) ListMessages(ctx context.Context, sessionID string, afterID uint, limit int) ([]models.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.ChatMessage
	n := effectiveLimit(limit)
	for _, msg := range m.messages[sessionID] {
		if msg.ID <= afterID {
			continue
		}
		out = append(out, msg)
		if len(out) == n {
			break
		}
	}
	return out, nil
}

func (m *MemoryStorage) MarkRead(ctx context.Context, sessionID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var changed int64
	log := m.messages[sessionID]
	for i := range log {
		if log[i].Unread() {
			log[i].ReadByUser = true
			changed++
		}
	}
	return changed, nil
}

func (m *MemoryStorage) CountUnread(ctx context.Context, sessionID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, msg := range m.messages[sessionID] {
		if msg.Unread() {
			count++
		}
	}
	return count, nil
}
