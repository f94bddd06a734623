package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/community-service/internal/models"
	"github.com/SAP-F-2025/community-service/internal/services"
	"github.com/SAP-F-2025/community-service/internal/utils"
)

type NotificationHandler struct {
	BaseHandler
	service services.NotificationService
}

func NewNotificationHandler(service services.NotificationService, logger utils.Logger) *NotificationHandler {
	return &NotificationHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// ===== NOTIFICATION ENDPOINTS =====

// ListNotifications returns the caller's notifications, newest first
// @Summary List notifications
// @Tags notifications
// @Produce json
// @Param unread query bool false "Only unread"
// @Param page query int false "Page number (default: 1)"
// @Param pageSize query int false "Page size (default: 50, max: 100)"
// @Success 200 {object} models.NotificationList
// @Router /notifications [get]
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	unreadOnly, _ := strconv.ParseBool(c.Query("unread"))
	page, pageSize := services.ParsePagination(c.Query("page"), c.Query("pageSize"))

	h.LogRequest(c, "Listing notifications", "unread_only", unreadOnly, "page", page)

	list, err := h.service.List(c.Request.Context(), principal, unreadOnly, page, pageSize)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// Notify fans a notification out to a user, a role or a room
// @Summary Send notification
// @Tags notifications
// @Accept json
// @Produce json
// @Param notification body services.NotifyRequest true "Target and content"
// @Success 201 {object} models.NotifyResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /notifications [post]
func (h *NotificationHandler) Notify(c *gin.Context) {
	var req services.NotifyRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Sending notification", "type", req.Type)

	recipients, err := h.service.Notify(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.NotifyResponse{Success: true, Recipients: recipients})
}

// MarkRead marks one notification as read
// @Summary Mark notification read
// @Tags notifications
// @Param id path string true "Notification ID"
// @Success 200 {object} models.MarkReadResponse
// @Failure 404 {object} ErrorResponse
// @Router /notifications/{id}/read [put]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	id := c.Param("id")
	h.LogRequest(c, "Marking notification read", "notification_id", id)

	if err := h.service.MarkRead(c.Request.Context(), id, principal); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MarkReadResponse{Success: true, Updated: 1})
}

// MarkAllRead marks every notification of the caller as read
// @Summary Mark all notifications read
// @Tags notifications
// @Success 200 {object} models.MarkReadResponse
// @Router /notifications/read-all [put]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Marking all notifications read")

	updated, err := h.service.MarkAllRead(c.Request.Context(), principal)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MarkReadResponse{Success: true, Updated: updated})
}
