package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// SenderRole tags who authored a ChatMessage.
type SenderRole string

const (
	SenderUser   SenderRole = "user"
	SenderAdmin  SenderRole = "admin"
	SenderBot    SenderRole = "bot"
	SenderSystem SenderRole = "system"
)

// Valid reports whether the role is one of the known senders.
func (r SenderRole) Valid() bool {
	switch r {
	case SenderUser, SenderAdmin, SenderBot, SenderSystem:
		return true
	}
	return false
}

// MessageKind distinguishes plain text from text carrying quick-reply buttons.
type MessageKind string

const (
	KindText        MessageKind = "text"
	KindSuggestions MessageKind = "suggestions"
)

// QuickReply is one suggestion button rendered under a bot message.
type QuickReply struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ChatMessage is an append-only entry of a session's message log.
// Only ReadByUser ever changes after insert.
type ChatMessage struct {
	// ID is the insertion sequence and breaks created_at ties.
	ID        uint        `gorm:"primaryKey" json:"id"`
	SessionID string      `gorm:"type:uuid;not null;index:idx_session_msg,priority:1" json:"session_id"`
	Sender    SenderRole  `gorm:"type:varchar(16);not null" json:"sender"`
	Kind      MessageKind `gorm:"type:varchar(16);not null;default:text" json:"kind"`
	Message   string      `gorm:"type:text;not null" json:"message"`
	// Buttons holds the quick replies of KindSuggestions messages as a JSON array.
	Buttons    datatypes.JSON `gorm:"type:jsonb" json:"buttons,omitempty"`
	ReadByUser bool           `gorm:"not null;default:false" json:"read_by_user"`
	CreatedAt  time.Time      `gorm:"index:idx_session_msg,priority:2" json:"created_at"`
}

func (ChatMessage) TableName() string { return "chat_messages" }

// Unread reports whether the requester still has to see this message.
func (m *ChatMessage) Unread() bool {
	return m.Sender != SenderUser && !m.ReadByUser
}

// Body returns the structured payload of the message.
func (m *ChatMessage) Body() Body {
	b := Body{Kind: m.Kind, Text: m.Message}
	if b.Kind == "" {
		b.Kind = KindText
	}
	if len(m.Buttons) > 0 {
		var buttons []QuickReply
		if err := json.Unmarshal(m.Buttons, &buttons); err == nil {
			b.Buttons = buttons
		}
	}
	if b.Kind == KindText && len(b.Buttons) == 0 && m.Sender != SenderUser {
		// Rows written before the kind column existed carry the marker inline.
		// Only the bot ever wrote it; requester text is taken literally.
		if legacy, ok := ParseLegacyBody(m.Message); ok {
			return legacy
		}
	}
	return b
}

// SetBody stores a structured payload on the row.
func (m *ChatMessage) SetBody(b Body) {
	m.Message = b.Text
	if len(b.Buttons) == 0 {
		m.Kind = KindText
		m.Buttons = nil
		return
	}
	m.Kind = KindSuggestions
	raw, _ := json.Marshal(b.Buttons)
	m.Buttons = datatypes.JSON(raw)
}
