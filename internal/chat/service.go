// Package chat implements the support-chat session lifecycle: creation under
// the availability policy, message posting with bot replies, admin claim and
// close, read tracking, and the idle-session reaper.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"supportdesk/backend/internal/availability"
	"supportdesk/backend/internal/bot"
	"supportdesk/backend/internal/config"
	"supportdesk/backend/internal/models"
	"supportdesk/backend/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier is told about sessions that wait for a human admin.
// Implementations must not block.
type Notifier interface {
	SessionWaiting(session *models.ChatSession)
}

type noopNotifier struct{}

func (noopNotifier) SessionWaiting(*models.ChatSession) {}

// Actor is the caller of a message or history operation.
type Actor struct {
	Role      models.SenderRole
	Requester models.Requester
	AdminID   string
}

func RequesterActor(r models.Requester) Actor {
	return Actor{Role: models.SenderUser, Requester: r}
}

func AdminActor(adminID string) Actor {
	return Actor{Role: models.SenderAdmin, AdminID: adminID}
}

// PostResult is a stored message plus the bot's answer, if one was sent.
type PostResult struct {
	Message  *models.ChatMessage `json:"message"`
	BotReply *models.ChatMessage `json:"bot_reply,omitempty"`
}

// CloseResult reports the session after a close request and whether this
// request performed the transition.
type CloseResult struct {
	Session *models.ChatSession `json:"session"`
	Closed  bool                `json:"closed"`
}

// ReapResult is the report of one reaper pass.
type ReapResult struct {
	ClosedCount int      `json:"closedCount"`
	SessionIDs  []string `json:"sessionIds"`
	FailedCount int      `json:"failedCount,omitempty"`
}

// History is a page of a session's message log.
type History struct {
	Session  *models.ChatSession  `json:"session"`
	Messages []models.ChatMessage `json:"messages"`
}

type Service struct {
	store     storage.Storage
	policy    availability.Policy
	responder *bot.Responder
	notifier  Notifier
	metrics   *Metrics
	log       *zap.Logger
	now       func() time.Time
	timeout   time.Duration
}

type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithUserTimeout sets how long a requester may stay silent before the
// reaper closes the session.
func WithUserTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

func NewService(store storage.Storage, policy availability.Policy, opts ...Option) *Service {
	s := &Service{
		store:     store,
		policy:    policy,
		responder: bot.NewResponder(),
		notifier:  noopNotifier{},
		metrics:   &Metrics{},
		log:       zap.NewNop(),
		now:       time.Now,
		timeout:   config.UserInactivityTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Metrics() *Metrics { return s.metrics }

// CreateSession opens a session for the requester. The availability policy
// is consulted once: available admins leave the session pending, otherwise
// it starts active under the bot with a greeting.
func (s *Service) CreateSession(ctx context.Context, r models.Requester, concern string) (*models.ChatSession, error) {
	concern = strings.TrimSpace(concern)
	if concern == "" {
		return nil, validation(CodeConcernRequired, "concern must not be empty")
	}
	if utf8.RuneCountInString(concern) > config.MaxConcernLength {
		return nil, validation(CodeConcernTooLong, "concern is too long")
	}
	r.UserID = strings.TrimSpace(r.UserID)
	r.AnonymousID = strings.TrimSpace(r.AnonymousID)
	r.DisplayName = truncate(strings.TrimSpace(r.DisplayName), config.MaxNameLength)
	if !r.Valid() {
		return nil, validation(CodeIdentityRequired, "requester needs exactly one of user id or anonymous id")
	}

	now := s.now()
	decision := s.policy.Decide(now)

	session := &models.ChatSession{
		Status:            models.StatusPending,
		Concern:           concern,
		CreatedAt:         now,
		LastUserMessageAt: &now,
	}
	if !decision.Available {
		session.Status = models.StatusActive
	}
	r.Apply(session)

	first := &models.ChatMessage{
		Sender:    models.SenderUser,
		Kind:      models.KindText,
		Message:   concern,
		CreatedAt: now,
	}

	err := s.store.CreateSession(ctx, session, first)
	if errors.Is(err, storage.ErrDuplicate) {
		return nil, conflict(CodeOpenSessionExists, "you already have an open chat")
	}
	if err != nil {
		s.log.Error("create session", zap.String("requester", r.Key()), zap.Error(err))
		return nil, upstream("create session", err)
	}
	s.metrics.SessionsCreated.Add(1)
	s.log.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("status", string(session.Status)),
		zap.String("availability", string(decision.Reason)))

	if session.BotServed() {
		s.appendAdvisory(ctx, session.ID, models.SenderBot, s.responder.Greeting(decision.Reason).Body(), "greeting")
	} else {
		s.notifier.SessionWaiting(session)
	}
	return session, nil
}

// CurrentSession returns the requester's open session, or nil.
func (s *Service) CurrentSession(ctx context.Context, r models.Requester) (*models.ChatSession, error) {
	if !r.Valid() {
		return nil, validation(CodeIdentityRequired, "requester identity required")
	}
	session, err := s.store.FindOpenSession(ctx, r)
	if err != nil {
		return nil, upstream("find open session", err)
	}
	return session, nil
}

// validSessionID reports whether id can name a session at all. Session ids
// are UUIDs; anything else cannot exist and must not reach the uuid column.
func validSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// loadFor fetches the session and hides it from requesters who do not own it.
func (s *Service) loadFor(ctx context.Context, sessionID string, actor Actor) (*models.ChatSession, error) {
	if !validSessionID(sessionID) {
		return nil, notFound(CodeSessionNotFound)
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, notFound(CodeSessionNotFound)
	}
	if err != nil {
		return nil, upstream("get session", err)
	}
	switch actor.Role {
	case models.SenderUser:
		if !actor.Requester.Owns(session) {
			return nil, notFound(CodeSessionNotFound)
		}
	case models.SenderAdmin:
		if actor.AdminID == "" {
			return nil, validation(CodeAdminRequired, "admin id required")
		}
	default:
		return nil, validation(CodeInvalidSender, "only requesters and admins may act on a session")
	}
	return session, nil
}

// PostMessage appends text from the actor. Requester messages refresh the
// idle timer and, in bot-served sessions, receive a bot reply.
func (s *Service) PostMessage(ctx context.Context, sessionID string, actor Actor, text string) (*PostResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validation(CodeMessageRequired, "message must not be empty")
	}
	if utf8.RuneCountInString(text) > config.MaxMessageLength {
		return nil, validation(CodeMessageTooLong, "message is too long")
	}

	session, err := s.loadFor(ctx, sessionID, actor)
	if err != nil {
		return nil, err
	}
	if !session.Status.IsOpen() {
		return nil, closed()
	}

	msg := &models.ChatMessage{
		SessionID: session.ID,
		Sender:    actor.Role,
		CreatedAt: s.now(),
	}
	msg.SetBody(models.PlainText(text))

	err = s.store.AppendMessage(ctx, msg)
	switch {
	case errors.Is(err, storage.ErrSessionClosed):
		return nil, closed()
	case errors.Is(err, storage.ErrNotFound):
		return nil, notFound(CodeSessionNotFound)
	case err != nil:
		s.log.Error("append message", zap.String("session_id", session.ID), zap.Error(err))
		return nil, upstream("append message", err)
	}
	s.metrics.MessagesPosted.Add(1)

	result := &PostResult{Message: msg}
	if actor.Role == models.SenderUser && session.BotServed() {
		reply := s.responder.Respond(text)
		result.BotReply = s.appendAdvisory(ctx, session.ID, models.SenderBot, reply.Body(), "bot reply")
		if result.BotReply != nil {
			s.metrics.BotReplies.Add(1)
		}
	}
	return result, nil
}

// History returns messages of the session with id greater than afterID.
func (s *Service) History(ctx context.Context, sessionID string, actor Actor, afterID uint, limit int) (*History, error) {
	session, err := s.loadFor(ctx, sessionID, actor)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.ListMessages(ctx, session.ID, afterID, limit)
	if err != nil {
		return nil, upstream("list messages", err)
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	return &History{Session: session, Messages: messages}, nil
}

// ListSessions is the admin queue view. An empty status lists everything.
func (s *Service) ListSessions(ctx context.Context, status models.SessionStatus, limit int) ([]models.ChatSession, error) {
	switch status {
	case "", models.StatusPending, models.StatusActive, models.StatusClosed:
	default:
		return nil, validation(CodeInvalidStatus, fmt.Sprintf("unknown status %q", status))
	}
	sessions, err := s.store.ListSessions(ctx, status, limit)
	if err != nil {
		return nil, upstream("list sessions", err)
	}
	if sessions == nil {
		sessions = []models.ChatSession{}
	}
	return sessions, nil
}

// Claim assigns a pending session to the admin.
func (s *Service) Claim(ctx context.Context, sessionID, adminID string) (*models.ChatSession, error) {
	adminID = strings.TrimSpace(adminID)
	if adminID == "" {
		return nil, validation(CodeAdminRequired, "admin id required")
	}
	if !validSessionID(sessionID) {
		return nil, notFound(CodeSessionNotFound)
	}
	ok, err := s.store.ClaimSession(ctx, sessionID, adminID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, notFound(CodeSessionNotFound)
	}
	if err != nil {
		return nil, upstream("claim session", err)
	}
	if !ok {
		return nil, conflict(CodeNotPending, "session is not waiting for an admin")
	}
	s.metrics.SessionsClaimed.Add(1)
	s.log.Info("session claimed", zap.String("session_id", sessionID), zap.String("admin_id", adminID))

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, upstream("get session", err)
	}
	return session, nil
}

// Close ends an open session on admin request. Closing a closed session is
// a successful no-op; only the call that performs the transition appends
// the closure notice.
func (s *Service) Close(ctx context.Context, sessionID, adminID string) (*CloseResult, error) {
	if !validSessionID(sessionID) {
		return nil, notFound(CodeSessionNotFound)
	}
	flipped, err := s.store.CloseSession(ctx, sessionID, s.now(), models.CloseReasonAdmin)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, notFound(CodeSessionNotFound)
	}
	if err != nil {
		return nil, upstream("close session", err)
	}
	if flipped {
		s.metrics.SessionsClosed.Add(1)
		s.log.Info("session closed", zap.String("session_id", sessionID), zap.String("admin_id", adminID))
		s.appendAdvisory(ctx, sessionID, models.SenderSystem, models.PlainText(adminClosedText), "close notice")
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, upstream("get session", err)
	}
	return &CloseResult{Session: session, Closed: flipped}, nil
}

// Reap closes every open session whose requester has been silent for the
// user timeout. Overlapping passes are safe: each close is conditional, so a
// session is reported by at most one pass.
func (s *Service) Reap(ctx context.Context) (*ReapResult, error) {
	s.metrics.ReaperRuns.Add(1)
	now := s.now()
	cutoff := now.Add(-s.timeout)

	idle, err := s.store.FindIdleSessions(ctx, cutoff)
	if err != nil {
		s.log.Error("reaper select", zap.Error(err))
		return nil, upstream("find idle sessions", err)
	}

	result := &ReapResult{SessionIDs: []string{}}
	notice := models.PlainText(timeoutClosedText(s.timeout))
	for _, session := range idle {
		ok, err := s.store.CloseIfIdle(ctx, session.ID, cutoff, now)
		if err != nil {
			result.FailedCount++
			s.log.Error("reaper close", zap.String("session_id", session.ID), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		result.ClosedCount++
		result.SessionIDs = append(result.SessionIDs, session.ID)
		s.metrics.SessionsReaped.Add(1)
		s.appendAdvisory(ctx, session.ID, models.SenderSystem, notice, "timeout notice")
	}

	if result.ClosedCount > 0 || result.FailedCount > 0 {
		s.log.Info("reaper pass",
			zap.Int("closed", result.ClosedCount),
			zap.Int("failed", result.FailedCount),
			zap.Strings("session_ids", result.SessionIDs))
	}
	return result, nil
}

// MarkRead marks the admin and bot messages of the requester's session as read.
func (s *Service) MarkRead(ctx context.Context, sessionID string, r models.Requester) (int64, error) {
	session, err := s.loadFor(ctx, sessionID, RequesterActor(r))
	if err != nil {
		return 0, err
	}
	n, err := s.store.MarkRead(ctx, session.ID)
	if err != nil {
		return 0, upstream("mark read", err)
	}
	return n, nil
}

// UnreadCount counts unread messages in the requester's open session.
// Closed history never counts.
func (s *Service) UnreadCount(ctx context.Context, r models.Requester) (int64, error) {
	session, err := s.CurrentSession(ctx, r)
	if err != nil || session == nil {
		return 0, err
	}
	n, err := s.store.CountUnread(ctx, session.ID)
	if err != nil {
		return 0, upstream("count unread", err)
	}
	return n, nil
}

// MigrateAnonymous hands the visitor's open session to the user who just
// logged in. Messages, status and admin assignment are kept.
func (s *Service) MigrateAnonymous(ctx context.Context, anonymousID string, user models.Requester) (*models.ChatSession, error) {
	anon := models.Requester{AnonymousID: strings.TrimSpace(anonymousID)}
	if !anon.Valid() || user.UserID == "" || !user.Valid() {
		return nil, validation(CodeIdentityRequired, "both anonymous id and user id are required")
	}

	session, err := s.store.FindOpenSession(ctx, anon)
	if err != nil {
		return nil, upstream("find open session", err)
	}
	if session == nil {
		return nil, notFound(CodeNoAnonymousChat)
	}

	err = s.store.ReassignRequester(ctx, session.ID, user)
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		return nil, conflict(CodeOpenSessionExists, "you already have an open chat")
	case errors.Is(err, storage.ErrNotFound):
		return nil, notFound(CodeSessionNotFound)
	case err != nil:
		return nil, upstream("reassign requester", err)
	}
	s.log.Info("session migrated", zap.String("session_id", session.ID), zap.String("user_id", user.UserID))

	session, err = s.store.GetSession(ctx, session.ID)
	if err != nil {
		return nil, upstream("get session", err)
	}
	return session, nil
}

// appendAdvisory writes a secondary message after a primary transition has
// committed. Failures are counted and logged but never returned.
func (s *Service) appendAdvisory(ctx context.Context, sessionID string, sender models.SenderRole, body models.Body, what string) *models.ChatMessage {
	msg := &models.ChatMessage{SessionID: sessionID, Sender: sender, CreatedAt: s.now()}
	msg.SetBody(body)
	if err := s.store.AppendMessage(context.WithoutCancel(ctx), msg); err != nil {
		s.metrics.AdvisoryAppendFailures.Add(1)
		s.log.Warn("advisory append failed",
			zap.String("session_id", sessionID),
			zap.String("kind", what),
			zap.Error(err))
		return nil
	}
	return msg
}

const adminClosedText = "This chat has been closed by our staff. Thank you for contacting the PESO Help Desk."

func timeoutClosedText(timeout time.Duration) string {
	minutes := int(timeout.Round(time.Minute) / time.Minute)
	unit := "minutes"
	if minutes == 1 {
		unit = "minute"
	}
	return fmt.Sprintf("This chat was closed automatically after %d %s without a reply. You can start a new chat anytime.", minutes, unit)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
