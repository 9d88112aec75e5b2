// Package handler exposes the chat service over HTTP and websockets.
package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"supportdesk/backend/internal/chat"
	"supportdesk/backend/internal/chathub"
	"supportdesk/backend/internal/config"
	"supportdesk/backend/internal/limiter"
	"supportdesk/backend/internal/localization"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler holds the collaborators of every route.
type Handler struct {
	Chat      *chat.Service
	Hub       *chathub.ManagerService
	Tokens    *TokenIssuer
	Limiter   *limiter.Limiter
	Localizer *localization.Localizer
	Reaper    config.ReaperConfig
	// Ping reports storage health for /healthz.
	Ping func(ctx context.Context) error

	log *zap.Logger
}

func NewHandler(svc *chat.Service, hub *chathub.ManagerService, tokens *TokenIssuer, loc *localization.Localizer, log *zap.Logger) *Handler {
	return &Handler{
		Chat:      svc,
		Hub:       hub,
		Tokens:    tokens,
		Localizer: loc,
		log:       log,
	}
}

// Routes registers every endpoint on r.
func (h *Handler) Routes(r *gin.Engine) {
	r.GET("/anonid", h.GetAnonID)
	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", h.Metrics)
	r.GET("/ws", h.identify, h.ServeWebSocket)

	api := r.Group("/api/chat", h.identify)
	{
		api.POST("/sessions", h.rateLimit, h.CreateSession)
		api.GET("/session", h.CurrentSession)
		api.GET("/sessions/:id/messages", h.ListMessages)
		api.POST("/sessions/:id/messages", h.rateLimit, h.PostMessage)
		api.POST("/sessions/:id/read", h.MarkRead)
		api.GET("/unread", h.UnreadCount)
		api.POST("/migrate", h.MigrateAnonymous)
		api.POST("/reaper", h.RunReaper)
		api.GET("/reaper", h.RunReaper)
	}

	admin := r.Group("/api/admin/chat", h.identify, h.requireAdmin)
	{
		admin.GET("/sessions", h.AdminListSessions)
		admin.GET("/sessions/:id/messages", h.AdminListMessages)
		admin.POST("/sessions/:id/claim", h.AdminClaim)
		admin.POST("/sessions/:id/close", h.AdminClose)
		admin.POST("/sessions/:id/messages", h.AdminPostMessage)
	}
}

func (h *Handler) Healthz(c *gin.Context) {
	if h.Ping != nil {
		if err := h.Ping(c.Request.Context()); err != nil {
			h.log.Warn("health check", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Metrics(c *gin.Context) {
	c.String(http.StatusOK, h.Chat.Metrics().Format())
}

// rateLimit throttles writes per requester, falling back to client IP for
// callers without identity.
func (h *Handler) rateLimit(c *gin.Context) {
	key := "ip:" + c.ClientIP()
	if id := identityFrom(c); id.Requester.Valid() {
		key = id.Requester.Key()
	}
	if !h.Limiter.Allow(c.Request.Context(), key) {
		h.abort(c, http.StatusTooManyRequests, "rate_limited")
		return
	}
	c.Next()
}

// authorizeReaper checks the shared secret in constant time. Without a
// configured secret the endpoint stays closed unless explicitly opened.
func (h *Handler) authorizeReaper(c *gin.Context) error {
	if h.Reaper.Secret == "" {
		if h.Reaper.AllowUnauthenticated {
			return nil
		}
		return unauthorized(errors.New("reaper secret not configured"))
	}
	got := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.Reaper.Secret)) != 1 {
		return unauthorized(errors.New("reaper secret mismatch"))
	}
	return nil
}

func unauthorized(cause error) error {
	return chat.Unauthorized(cause.Error())
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, chat.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, chat.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrClosedSession):
		return http.StatusGone
	case errors.Is(err, chat.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// fail renders err as {"error": code, "message": localized text}.
// Internal details are logged, never returned.
func (h *Handler) fail(c *gin.Context, err error) {
	status := statusOf(err)
	switch status {
	case http.StatusInternalServerError:
		h.log.Error("request failed", zap.String("route", c.FullPath()), zap.Error(err))
	case http.StatusUnauthorized:
		h.log.Info("request rejected", zap.String("route", c.FullPath()), zap.Error(err))
	}
	h.abort(c, status, chat.CodeOf(err))
}

func (h *Handler) abort(c *gin.Context, status int, code string) {
	lang := h.Localizer.Negotiate(c.GetHeader("Accept-Language"))
	c.AbortWithStatusJSON(status, gin.H{
		"error":   code,
		"message": h.Localizer.GetString(lang, "error."+code),
	})
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	h.log.Debug("bad request", zap.String("route", c.FullPath()), zap.Error(err))
	h.abort(c, http.StatusBadRequest, "bad_request")
}
