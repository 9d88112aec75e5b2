package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"supportdesk/backend/internal/chat"
	"supportdesk/backend/internal/models"

	"github.com/gin-gonic/gin"
)

type createSessionRequest struct {
	Concern       string `json:"concern"`
	AnonymousName string `json:"anonymous_name"`
}

type postMessageRequest struct {
	Message string `json:"message"`
}

type migrateRequest struct {
	AnonToken string `json:"anon_token" binding:"required"`
}

// messageView is a message as the widget renders it. Legacy rows are
// decoded into their structured form.
type messageView struct {
	ID         uint                `json:"id"`
	SessionID  string              `json:"session_id"`
	Sender     models.SenderRole   `json:"sender"`
	Kind       models.MessageKind  `json:"kind"`
	Text       string              `json:"text"`
	Buttons    []models.QuickReply `json:"buttons,omitempty"`
	ReadByUser bool                `json:"read_by_user"`
	CreatedAt  time.Time           `json:"created_at"`
}

func viewOf(m *models.ChatMessage) *messageView {
	if m == nil {
		return nil
	}
	body := m.Body()
	return &messageView{
		ID:         m.ID,
		SessionID:  m.SessionID,
		Sender:     m.Sender,
		Kind:       body.Kind,
		Text:       body.Text,
		Buttons:    body.Buttons,
		ReadByUser: m.ReadByUser,
		CreatedAt:  m.CreatedAt,
	}
}

func viewsOf(messages []models.ChatMessage) []*messageView {
	out := make([]*messageView, 0, len(messages))
	for i := range messages {
		out = append(out, viewOf(&messages[i]))
	}
	return out
}

func historyResponse(h *chat.History) gin.H {
	return gin.H{"session": h.Session, "messages": viewsOf(h.Messages)}
}

func postResponse(r *chat.PostResult) gin.H {
	resp := gin.H{"message": viewOf(r.Message)}
	if r.BotReply != nil {
		resp["bot_reply"] = viewOf(r.BotReply)
	}
	return resp
}

// pageParams reads ?after= and ?limit=. Malformed values are rejected.
func pageParams(c *gin.Context) (uint, int, error) {
	var after uint64
	var limit int
	var err error
	if v := c.Query("after"); v != "" {
		if after, err = strconv.ParseUint(v, 10, 64); err != nil {
			return 0, 0, err
		}
	}
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return 0, 0, err
		}
	}
	return uint(after), limit, nil
}

func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	r := identityFrom(c).Requester
	r.DisplayName = req.AnonymousName

	session, err := h.Chat.CreateSession(c.Request.Context(), r, req.Concern)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": session})
}

// CurrentSession returns the caller's open session; session is null when
// there is none.
func (h *Handler) CurrentSession(c *gin.Context) {
	session, err := h.Chat.CurrentSession(c.Request.Context(), identityFrom(c).Requester)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

func (h *Handler) ListMessages(c *gin.Context) {
	after, limit, err := pageParams(c)
	if err != nil {
		h.badRequest(c, err)
		return
	}
	actor := chat.RequesterActor(identityFrom(c).Requester)
	history, err := h.Chat.History(c.Request.Context(), c.Param("id"), actor, after, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, historyResponse(history))
}

func (h *Handler) PostMessage(c *gin.Context) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	actor := chat.RequesterActor(identityFrom(c).Requester)
	result, err := h.Chat.PostMessage(c.Request.Context(), c.Param("id"), actor, req.Message)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, postResponse(result))
}

func (h *Handler) MarkRead(c *gin.Context) {
	n, err := h.Chat.MarkRead(c.Request.Context(), c.Param("id"), identityFrom(c).Requester)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}

func (h *Handler) UnreadCount(c *gin.Context) {
	n, err := h.Chat.UnreadCount(c.Request.Context(), identityFrom(c).Requester)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

// MigrateAnonymous moves the visitor chat named by anon_token to the
// signed-in caller.
func (h *Handler) MigrateAnonymous(c *gin.Context) {
	user := identityFrom(c).Requester
	if user.UserID == "" {
		h.fail(c, unauthorized(errors.New("migration requires a signed-in user")))
		return
	}

	var req migrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	claims, err := h.Tokens.Parse(req.AnonToken)
	if err != nil || claims.AnonID == "" {
		h.fail(c, unauthorized(errors.New("invalid anonymous token")))
		return
	}

	session, err := h.Chat.MigrateAnonymous(c.Request.Context(), claims.AnonID, user)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// RunReaper runs one reaper pass; an external scheduler calls it.
func (h *Handler) RunReaper(c *gin.Context) {
	if err := h.authorizeReaper(c); err != nil {
		h.fail(c, err)
		return
	}
	result, err := h.Chat.Reap(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
