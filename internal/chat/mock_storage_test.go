package chat_test

import (
	"context"
	"time"

	"supportdesk/backend/internal/models"
	"supportdesk/backend/internal/storage"

	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

var _ storage.Storage = (*MockStorage)(nil)

func (m *MockStorage) CreateSession(ctx context.Context, session *models.ChatSession, first *models.ChatMessage) error {
	args := m.Called(ctx, session, first)
	return args.Error(0)
}

func (m *MockStorage) GetSession(ctx context.Context, id string) (*models.ChatSession, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*models.ChatSession)
	return s, args.Error(1)
}

func (m *MockStorage) FindOpenSession(ctx context.Context, r models.Requester) (*models.ChatSession, error) {
	args := m.Called(ctx, r)
	s, _ := args.Get(0).(*models.ChatSession)
	return s, args.Error(1)
}

func (m *MockStorage) ListSessions(ctx context.Context, status models.SessionStatus, limit int) ([]models.ChatSession, error) {
	args := m.Called(ctx, status, limit)
	s, _ := args.Get(0).([]models.ChatSession)
	return s, args.Error(1)
}

func (m *MockStorage) ClaimSession(ctx context.Context, id, adminID string) (bool, error) {
	args := m.Called(ctx, id, adminID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) CloseSession(ctx context.Context, id string, at time.Time, reason string) (bool, error) {
	args := m.Called(ctx, id, at, reason)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) FindIdleSessions(ctx context.Context, cutoff time.Time) ([]models.ChatSession, error) {
	args := m.Called(ctx, cutoff)
	s, _ := args.Get(0).([]models.ChatSession)
	return s, args.Error(1)
}

func (m *MockStorage) CloseIfIdle(ctx context.Context, id string, cutoff, at time.Time) (bool, error) {
	args := m.Called(ctx, id, cutoff, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) ReassignRequester(ctx context.Context, id string, to models.Requester) error {
	args := m.Called(ctx, id, to)
	return args.Error(0)
}

func (m *MockStorage) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockStorage) ListMessages(ctx context.Context, sessionID string, afterID uint, limit int) ([]models.ChatMessage, error) {
	args := m.Called(ctx, sessionID, afterID, limit)
	s, _ := args.Get(0).([]models.ChatMessage)
	return s, args.Error(1)
}

func (m *MockStorage) MarkRead(ctx context.Context, sessionID string) (int64, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) CountUnread(ctx context.Context, sessionID string) (int64, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// faultyStore is the in-memory store with append failures injected per sender.
type faultyStore struct {
	*storage.MemoryStorage
	failSender models.SenderRole
}

func (f *faultyStore) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg.Sender == f.failSender {
		return context.DeadlineExceeded
	}
	return f.MemoryStorage.AppendMessage(ctx, msg)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SessionWaiting(session *models.ChatSession) {
	m.Called(session)
}
