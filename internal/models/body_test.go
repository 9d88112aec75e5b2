package models_test

import (
	"testing"

	"supportdesk/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLegacyBody_WithButtons(t *testing.T) {
	raw := `Hello! How can we help?__BUTTONS__[{"label":"Job Search","value":"jobs"},{"label":"Talk to staff","value":"agent"}]`

	body, ok := models.ParseLegacyBody(raw)

	require.True(t, ok)
	assert.Equal(t, models.KindSuggestions, body.Kind)
	assert.Equal(t, "Hello! How can we help?", body.Text)
	assert.Equal(t, []models.QuickReply{
		{Label: "Job Search", Value: "jobs"},
		{Label: "Talk to staff", Value: "agent"},
	}, body.Buttons)

	// Re-encoding must reproduce the stored bytes.
	assert.Equal(t, raw, models.LegacyBody(body))
}

func TestLegacyBody_RoundTripIsByteExact(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"html-sensitive characters", `Pick one__BUTTONS__[{"label":"Q&A","value":"<menu>"}]`},
		{"non-ascii", `Pumili__BUTTONS__[{"label":"Trabaho ñ","value":"jobs"}]`},
		{"plain text", "no buttons here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := models.ParseLegacyBody(tt.raw)

			assert.Equal(t, tt.raw, models.LegacyBody(body))
		})
	}
}

func TestParseLegacyBody_PlainText(t *testing.T) {
	body, ok := models.ParseLegacyBody("just text")
	assert.False(t, ok)
	assert.Equal(t, models.PlainText("just text"), body)
}

func TestParseLegacyBody_MalformedSuffixIsText(t *testing.T) {
	raw := "see __BUTTONS__ not json"
	body, ok := models.ParseLegacyBody(raw)
	assert.False(t, ok)
	assert.Equal(t, raw, body.Text)
	assert.Empty(t, body.Buttons)
}

func TestChatMessage_BodyAdaptsLegacyRows(t *testing.T) {
	legacy := &models.ChatMessage{
		Sender:  models.SenderAdmin,
		Message: `Pick one__BUTTONS__[{"label":"Menu","value":"menu"}]`,
	}

	body := legacy.Body()

	assert.Equal(t, models.KindSuggestions, body.Kind)
	assert.Equal(t, "Pick one", body.Text)
	assert.Len(t, body.Buttons, 1)
}

func TestChatMessage_BodyKeepsRequesterTextLiteral(t *testing.T) {
	raw := `hi__BUTTONS__[{"label":"Pay here","value":"https://example.invalid"}]`
	msg := &models.ChatMessage{Sender: models.SenderUser, Message: raw}

	body := msg.Body()

	assert.Equal(t, models.KindText, body.Kind)
	assert.Equal(t, raw, body.Text)
	assert.Empty(t, body.Buttons)
}

func TestChatMessage_SetBody(t *testing.T) {
	msg := &models.ChatMessage{}
	msg.SetBody(models.WithSuggestions("Choose", []models.QuickReply{{Label: "A", Value: "a"}}))

	assert.Equal(t, models.KindSuggestions, msg.Kind)
	assert.Equal(t, "Choose", msg.Message)
	assert.JSONEq(t, `[{"label":"A","value":"a"}]`, string(msg.Buttons))
	assert.Equal(t, "Choose", msg.Body().Text)

	msg.SetBody(models.PlainText("plain"))
	assert.Equal(t, models.KindText, msg.Kind)
	assert.Nil(t, msg.Buttons)
}

func TestChatMessage_Unread(t *testing.T) {
	assert.True(t, (&models.ChatMessage{Sender: models.SenderAdmin}).Unread())
	assert.True(t, (&models.ChatMessage{Sender: models.SenderBot}).Unread())
	assert.False(t, (&models.ChatMessage{Sender: models.SenderUser}).Unread(), "own messages never count")
	assert.False(t, (&models.ChatMessage{Sender: models.SenderBot, ReadByUser: true}).Unread())
}
