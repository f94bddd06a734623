package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/community-service/internal/models"
	"github.com/SAP-F-2025/community-service/internal/services"
	"github.com/SAP-F-2025/community-service/internal/utils"
)

type MessageHandler struct {
	BaseHandler
	service services.MessageService
}

func NewMessageHandler(service services.MessageService, logger utils.Logger) *MessageHandler {
	return &MessageHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// ToggleReaction adds the caller's reaction, or removes it when present
// @Summary Toggle reaction
// @Tags messages
// @Accept json
// @Produce json
// @Param id path string true "Message ID"
// @Param reaction body services.ReactionRequest true "Emoji"
// @Success 200 {object} models.ReactionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /messages/{id}/reaction [post]
func (h *MessageHandler) ToggleReaction(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	var req services.ReactionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	messageID := c.Param("id")
	h.LogRequest(c, "Toggling reaction", "message_id", messageID)

	reactions, err := h.service.ToggleReaction(c.Request.Context(), messageID, principal, req.Emoji)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ReactionResponse{Success: true, Reactions: reactions})
}

// DeleteMessage removes a message; only its sender or an admin may
// @Summary Delete message
// @Tags messages
// @Produce json
// @Param id path string true "Message ID"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /messages/{id} [delete]
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	messageID := c.Param("id")
	h.LogRequest(c, "Deleting message", "message_id", messageID)

	if err := h.service.DeleteMessage(c.Request.Context(), messageID, principal); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.respondSuccess(c, http.StatusOK, "Message deleted", nil)
}
