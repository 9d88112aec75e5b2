package handler

import (
	"net/http"
	"strconv"

	"supportdesk/backend/internal/chat"
	"supportdesk/backend/internal/models"

	"github.com/gin-gonic/gin"
)

func (h *Handler) AdminListSessions(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		h.badRequest(c, err)
		return
	}
	status := models.SessionStatus(c.Query("status"))
	sessions, err := h.Chat.ListSessions(c.Request.Context(), status, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *Handler) AdminListMessages(c *gin.Context) {
	after, limit, err := pageParams(c)
	if err != nil {
		h.badRequest(c, err)
		return
	}
	actor := chat.AdminActor(identityFrom(c).AdminID)
	history, err := h.Chat.History(c.Request.Context(), c.Param("id"), actor, after, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, historyResponse(history))
}

func (h *Handler) AdminClaim(c *gin.Context) {
	session, err := h.Chat.Claim(c.Request.Context(), c.Param("id"), identityFrom(c).AdminID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

func (h *Handler) AdminClose(c *gin.Context) {
	result, err := h.Chat.Close(c.Request.Context(), c.Param("id"), identityFrom(c).AdminID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) AdminPostMessage(c *gin.Context) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	actor := chat.AdminActor(identityFrom(c).AdminID)
	result, err := h.Chat.PostMessage(c.Request.Context(), c.Param("id"), actor, req.Message)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, postResponse(result))
}
