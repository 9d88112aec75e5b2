package models

import (
	"bytes"
	"encoding/json"
	"strings"

	"supportdesk/backend/internal/config"
)

// Body is the tagged message payload: plain text, or text with suggestions.
type Body struct {
	Kind    MessageKind  `json:"kind"`
	Text    string       `json:"text"`
	Buttons []QuickReply `json:"buttons,omitempty"`
}

// PlainText builds a text-only body.
func PlainText(text string) Body {
	return Body{Kind: KindText, Text: text}
}

// WithSuggestions builds a body carrying quick-reply buttons. An empty button
// list degrades to plain text.
func WithSuggestions(text string, buttons []QuickReply) Body {
	if len(buttons) == 0 {
		return PlainText(text)
	}
	return Body{Kind: KindSuggestions, Text: text, Buttons: buttons}
}

// ParseLegacyBody splits a stored "<text><marker><json array>" string.
// It returns false when the marker is absent or the suffix is not a button array,
// in which case the whole string is plain text.
func ParseLegacyBody(raw string) (Body, bool) {
	idx := strings.LastIndex(raw, config.LegacyButtonsMarker)
	if idx < 0 {
		return PlainText(raw), false
	}
	var buttons []QuickReply
	payload := raw[idx+len(config.LegacyButtonsMarker):]
	if err := json.Unmarshal([]byte(payload), &buttons); err != nil {
		return PlainText(raw), false
	}
	return WithSuggestions(raw[:idx], buttons), true
}

// LegacyBody renders the body in the old single-string encoding.
func LegacyBody(b Body) string {
	if len(b.Buttons) == 0 {
		return b.Text
	}
	// Old rows were written without HTML escaping.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(b.Buttons); err != nil {
		return b.Text
	}
	return b.Text + config.LegacyButtonsMarker + strings.TrimSuffix(buf.String(), "\n")
}
