package notify_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"supportdesk/backend/internal/localization"
	"supportdesk/backend/internal/models"
	"supportdesk/backend/internal/notify"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

func newNotifier(t *testing.T, s notify.Sender) *notify.TelegramNotifier {
	t.Helper()
	loc, err := localization.Embedded()
	require.NoError(t, err)
	return notify.NewWithSender(s, -100123, loc, zap.NewNop())
}

func anonSession(name string) *models.ChatSession {
	s := &models.ChatSession{ID: "s-1", Status: models.StatusPending, Concern: "How do I register?"}
	models.Requester{AnonymousID: "anon-1", DisplayName: name}.Apply(s)
	return s
}

func TestRender(t *testing.T) {
	n := newNotifier(t, &MockSender{})

	text := n.Render(anonSession("Maria"))
	assert.Contains(t, text, "New support chat waiting")
	assert.Contains(t, text, "Guest (Maria)")
	assert.Contains(t, text, "How do I register?")
	assert.True(t, strings.HasSuffix(text, "ID: s-1"))

	user := &models.ChatSession{ID: "s-2", Concern: strings.Repeat("x", 500)}
	models.Requester{UserID: "42"}.Apply(user)
	text = n.Render(user)
	assert.Contains(t, text, "user 42")
	assert.Contains(t, text, strings.Repeat("x", 300)+"…")
	assert.NotContains(t, text, strings.Repeat("x", 301))
}

func TestRun_SendsQueuedAlert(t *testing.T) {
	sender := &MockSender{}
	sent := make(chan struct{})
	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && strings.Contains(msg.Text, "s-1")
	})).Return(nil).Run(func(mock.Arguments) { close(sent) }).Once()
	n := newNotifier(t, sender)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	n.SessionWaiting(anonSession(""))

	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("alert not sent")
	}
	sender.AssertExpectations(t)
}

func TestRun_SendFailureIsSwallowed(t *testing.T) {
	sender := &MockSender{}
	calls := make(chan struct{}, 2)
	sender.On("Send", mock.Anything).Return(errors.New("telegram down")).Run(func(mock.Arguments) { calls <- struct{}{} })
	n := newNotifier(t, sender)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	n.SessionWaiting(anonSession(""))
	n.SessionWaiting(anonSession(""))

	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(time.Second):
			t.Fatal("notifier stopped after a failed send")
		}
	}
}

func TestSessionWaiting_NeverBlocks(t *testing.T) {
	n := newNotifier(t, &MockSender{})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			n.SessionWaiting(anonSession(""))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SessionWaiting blocked without a running consumer")
	}
}
