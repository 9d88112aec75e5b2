package models

import "strings"

// Requester identifies the party asking for support: an authenticated
// applicant (UserID) or an anonymous visitor (AnonymousID).
type Requester struct {
	UserID      string `json:"user_id,omitempty"`
	AnonymousID string `json:"anonymous_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

func (r Requester) IsAnonymous() bool { return r.UserID == "" }

// Key is a stable string used for fan-out routing and rate limiting.
func (r Requester) Key() string {
	if r.UserID != "" {
		return "user:" + r.UserID
	}
	return "anon:" + r.AnonymousID
}

// Valid reports whether exactly one identity reference is populated.
func (r Requester) Valid() bool {
	hasUser := strings.TrimSpace(r.UserID) != ""
	hasAnon := strings.TrimSpace(r.AnonymousID) != ""
	return hasUser != hasAnon
}

// Owns reports whether the session belongs to this requester.
func (r Requester) Owns(s *ChatSession) bool {
	if s == nil {
		return false
	}
	if r.UserID != "" {
		return !s.IsAnonymous && s.UserID != nil && *s.UserID == r.UserID
	}
	return s.IsAnonymous && s.AnonymousID != nil && r.AnonymousID != "" && *s.AnonymousID == r.AnonymousID
}

// Apply writes the identity fields onto a new session row.
func (r Requester) Apply(s *ChatSession) {
	if r.UserID != "" {
		id := r.UserID
		s.UserID = &id
		s.AnonymousID = nil
		s.AnonymousName = ""
		s.IsAnonymous = false
		return
	}
	anon := r.AnonymousID
	s.AnonymousID = &anon
	s.AnonymousName = r.DisplayName
	s.UserID = nil
	s.IsAnonymous = true
}
