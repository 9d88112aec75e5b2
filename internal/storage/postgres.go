package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"supportdesk/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:embed migrations.sql
var migrationsSQL string

const statementSeparator = "-- statement"

// Service is the PostgreSQL-backed Storage.
// The *gorm.DB must be opened with TranslateError so unique violations
// surface as gorm.ErrDuplicatedKey.
type Service struct {
	DB *gorm.DB
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// Migrate creates the tables, then applies the partial indexes and
// change-feed triggers from migrations.sql.
func (s *Service) Migrate(ctx context.Context) error {
	db := s.DB.WithContext(ctx)
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	for i, stmt := range splitStatements(migrationsSQL) {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration statement %d: %w", i, err)
		}
	}
	return nil
}

// splitStatements cuts script at lines consisting solely of the separator
// marker. Blank chunks and chunks holding only comments are dropped.
func splitStatements(script string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		stmt := strings.TrimSpace(cur.String())
		cur.Reset()
		if stmt != "" && !commentOnly(stmt) {
			out = append(out, stmt)
		}
	}
	for _, line := range strings.Split(script, "\n") {
		if strings.TrimSpace(line) == statementSeparator {
			flush()
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
	}
	flush()
	return out
}

func commentOnly(chunk string) bool {
	for _, line := range strings.Split(chunk, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}

func (s *Service) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func openStatuses() []string {
	out := make([]string, 0, len(models.OpenStatuses))
	for _, st := range models.OpenStatuses {
		out = append(out, string(st))
	}
	return out
}

func requesterScope(db *gorm.DB, r models.Requester) *gorm.DB {
	if r.UserID != "" {
		return db.Where("user_id = ? AND is_anonymous = ?", r.UserID, false)
	}
	return db.Where("anonymous_id = ? AND is_anonymous = ?", r.AnonymousID, true)
}

func (s *Service) CreateSession(ctx context.Context, session *models.ChatSession, first *models.ChatMessage) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open int64
		q := tx.Model(&models.ChatSession{}).Where("status IN ?", openStatuses())
		if err := requesterScope(q, session.Requester()).Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return ErrDuplicate
		}
		if err := tx.Create(session).Error; err != nil {
			return err
		}
		if first == nil {
			return nil
		}
		first.SessionID = session.ID
		return tx.Create(first).Error
	})
	// Two concurrent creates can both pass the count; the partial unique
	// index rejects the second.
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (s *Service) GetSession(ctx context.Context, id string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Service) FindOpenSession(ctx context.Context, r models.Requester) (*models.ChatSession, error) {
	var session models.ChatSession
	q := s.DB.WithContext(ctx).Where("status IN ?", openStatuses())
	err := requesterScope(q, r).Order("created_at DESC").First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Service) ListSessions(ctx context.Context, status models.SessionStatus, limit int) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	q := s.DB.WithContext(ctx).Model(&models.ChatSession{})
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	if err := q.Order("created_at DESC").Limit(effectiveLimit(limit)).Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// resolveMiss tells "no such session" apart from "lost the race" after a
// conditional update touched no rows.
func (s *Service) resolveMiss(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.ChatSession{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

func (s *Service) ClaimSession(ctx context.Context, id, adminID string) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.ChatSession{}).
		Where("id = ? AND status = ?", id, string(models.StatusPending)).
		Updates(map[string]interface{}{
			"status":   string(models.StatusActive),
			"admin_id": adminID,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return s.resolveMiss(ctx, id)
	}
	return true, nil
}

func (s *Service) CloseSession(ctx context.Context, id string, at time.Time, reason string) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.ChatSession{}).
		Where("id = ? AND status IN ?", id, openStatuses()).
		Updates(closeColumns(at, reason))
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return s.resolveMiss(ctx, id)
	}
	return true, nil
}

func closeColumns(at time.Time, reason string) map[string]interface{} {
	return map[string]interface{}{
		"status":       string(models.StatusClosed),
		"closed_at":    gorm.Expr("GREATEST(?::timestamptz, created_at)", at),
		"close_reason": reason,
	}
}

func (s *Service) FindIdleSessions(ctx context.Context, cutoff time.Time) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	err := s.DB.WithContext(ctx).
		Where("status IN ?", openStatuses()).
		Where("last_user_message_at IS NOT NULL AND last_user_message_at <= ?", cutoff).
		Order("last_user_message_at ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *Service) CloseIfIdle(ctx context.Context, id string, cutoff, at time.Time) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.ChatSession{}).
		Where("id = ? AND status IN ?", id, openStatuses()).
		Where("last_user_message_at IS NOT NULL AND last_user_message_at <= ?", cutoff).
		Updates(closeColumns(at, models.CloseReasonTimeout))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Service) ReassignRequester(ctx context.Context, id string, to models.Requester) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.ChatSession
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&session).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if session.Status.IsOpen() {
			var open int64
			q := tx.Model(&models.ChatSession{}).Where("id <> ? AND status IN ?", id, openStatuses())
			if err := requesterScope(q, to).Count(&open).Error; err != nil {
				return err
			}
			if open > 0 {
				return ErrDuplicate
			}
		}

		to.Apply(&session)
		return tx.Model(&models.ChatSession{}).Where("id = ?", id).
			Updates(map[string]interface{}{
				"user_id":        session.UserID,
				"anonymous_id":   session.AnonymousID,
				"anonymous_name": session.AnonymousName,
				"is_anonymous":   session.IsAnonymous,
			}).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (s *Service) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The row lock serializes appends per session so the created_at
		// clamp below sees every earlier insert.
		var session models.ChatSession
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", msg.SessionID).First(&session).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !session.Status.IsOpen() && msg.Sender != models.SenderSystem {
			return ErrSessionClosed
		}

		var last sql.NullTime
		err = tx.Model(&models.ChatMessage{}).
			Where("session_id = ?", msg.SessionID).
			Select("MAX(created_at)").Row().Scan(&last)
		if err != nil {
			return err
		}
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = time.Now()
		}
		if last.Valid {
			msg.CreatedAt = laterOf(msg.CreatedAt, last.Time)
		}

		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		if msg.Sender != models.SenderUser {
			return nil
		}
		return tx.Model(&models.ChatSession{}).Where("id = ?", msg.SessionID).
			Update("last_user_message_at", msg.CreatedAt).Error
	})
}

func (s *Service) ListMessages(ctx context.Context, sessionID string, afterID uint, limit int) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := s.DB.WithContext(ctx).
		Where("session_id = ? AND id > ?", sessionID, afterID).
		Order("created_at ASC, id ASC").
		Limit(effectiveLimit(limit)).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *Service) MarkRead(ctx context.Context, sessionID string) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.ChatMessage{}).
		Where("session_id = ? AND sender <> ? AND read_by_user = ?", sessionID, string(models.SenderUser), false).
		Update("read_by_user", true)
	return res.RowsAffected, res.Error
}

func (s *Service) CountUnread(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.ChatMessage{}).
		Where("session_id = ? AND sender <> ? AND read_by_user = ?", sessionID, string(models.SenderUser), false).
		Count(&count).Error
	return count, err
}
