package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionStatus is the lifecycle state of a ChatSession.
type SessionStatus string

const (
	StatusPending SessionStatus = "pending"
	StatusActive  SessionStatus = "active"
	StatusClosed  SessionStatus = "closed"
)

// IsOpen reports whether the status still accepts messages.
func (s SessionStatus) IsOpen() bool {
	return s == StatusPending || s == StatusActive
}

// OpenStatuses lists the statuses counted by the one-open-session rule.
var OpenStatuses = []SessionStatus{StatusPending, StatusActive}

// Close reasons recorded on the session row.
const (
	CloseReasonAdmin   = "admin"
	CloseReasonTimeout = "timeout"
)

// ChatSession is one support conversation between a requester and at most one admin.
// Exactly one of UserID / AnonymousID is set, matching IsAnonymous.
type ChatSession struct {
	// ID is the session UUID, assigned in BeforeCreate.
	ID string `gorm:"type:uuid;primaryKey" json:"id"`
	// UserID is the authenticated applicant, nil for anonymous visitors.
	UserID *string `gorm:"type:text;index" json:"user_id,omitempty"`
	// AnonymousID is the client-generated visitor token, nil for applicants.
	AnonymousID *string `gorm:"type:text;index" json:"anonymous_id,omitempty"`
	// AnonymousName is the optional display name of an anonymous visitor.
	AnonymousName string `gorm:"type:varchar(100)" json:"anonymous_name,omitempty"`
	IsAnonymous   bool   `gorm:"not null;default:false" json:"is_anonymous"`

	Status  SessionStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	Concern string        `gorm:"type:text;not null" json:"concern"`
	// AdminID is set only once a human admin claims the session.
	AdminID *string `gorm:"type:text;index" json:"admin_id,omitempty"`

	LastUserMessageAt *time.Time `gorm:"index" json:"last_user_message_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`
	CloseReason       string     `gorm:"type:varchar(16)" json:"close_reason,omitempty"`
}

func (ChatSession) TableName() string { return "chat_sessions" }

// BeforeCreate generates the session UUID when the caller did not set one.
func (s *ChatSession) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return
}

// Requester returns the identity that owns the session.
func (s *ChatSession) Requester() Requester {
	if s.IsAnonymous {
		r := Requester{DisplayName: s.AnonymousName}
		if s.AnonymousID != nil {
			r.AnonymousID = *s.AnonymousID
		}
		return r
	}
	if s.UserID != nil {
		return Requester{UserID: *s.UserID}
	}
	return Requester{}
}

// BotServed reports whether the session is active without a human admin.
func (s *ChatSession) BotServed() bool {
	return s.Status == StatusActive && s.AdminID == nil
}
