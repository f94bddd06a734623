package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/community-service/internal/models"
	"github.com/SAP-F-2025/community-service/internal/services"
	"github.com/SAP-F-2025/community-service/internal/utils"
)

type RoomHandler struct {
	BaseHandler
	roomService    services.RoomService
	messageService services.MessageService
}

func NewRoomHandler(roomService services.RoomService, messageService services.MessageService, logger utils.Logger) *RoomHandler {
	return &RoomHandler{
		BaseHandler:    NewBaseHandler(logger),
		roomService:    roomService,
		messageService: messageService,
	}
}

// ===== ROOM ENDPOINTS =====

// ListRooms returns the rooms visible to the caller
// @Summary List rooms
// @Description Lists the three global tier rooms with their lock state, plus the caller's direct rooms
// @Tags rooms
// @Produce json
// @Success 200 {array} models.RoomSummary
// @Failure 401 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /rooms [get]
func (h *RoomHandler) ListRooms(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Listing rooms", "level", principal.Level)

	summaries, err := h.roomService.ListRoomsFor(c.Request.Context(), principal)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, summaries)
}

// CreateDirectRoom opens a participant-only room
// @Summary Create direct room
// @Tags rooms
// @Accept json
// @Produce json
// @Param room body services.CreateDirectRoomRequest true "Participants"
// @Success 201 {object} models.Room
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /rooms/direct [post]
func (h *RoomHandler) CreateDirectRoom(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	var req services.CreateDirectRoomRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Creating direct room", "participants", len(req.ParticipantIDs))

	room, err := h.roomService.CreateDirectRoom(c.Request.Context(), principal, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, room)
}

// ===== ROOM MESSAGE ENDPOINTS =====

// ListMessages returns one page of a room's history, oldest first
// @Summary List room messages
// @Tags messages
// @Produce json
// @Param id path string true "Room ID"
// @Param page query int false "Page number (default: 1)"
// @Param pageSize query int false "Page size (default: 50, max: 100)"
// @Success 200 {object} models.MessagePage
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /rooms/{id}/messages [get]
func (h *RoomHandler) ListMessages(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	roomID := c.Param("id")
	page, pageSize := services.ParsePagination(c.Query("page"), c.Query("pageSize"))

	h.LogRequest(c, "Listing messages", "room_id", roomID, "page", page, "page_size", pageSize)

	result, err := h.messageService.ListMessages(c.Request.Context(), roomID, principal, page, pageSize)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// PostMessage appends a message to a room
// @Summary Post message
// @Tags messages
// @Accept json
// @Produce json
// @Param id path string true "Room ID"
// @Param message body services.PostMessageRequest true "Message"
// @Success 201 {object} models.Message
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /rooms/{id}/messages [post]
func (h *RoomHandler) PostMessage(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	var req services.PostMessageRequest
	if !h.bindJSON(c, &req) {
		return
	}

	roomID := c.Param("id")
	h.LogRequest(c, "Posting message", "room_id", roomID, "type", req.Type)

	message, err := h.messageService.PostMessage(c.Request.Context(), roomID, principal, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, message)
}

// MarkSeen records that the caller has read the room
// @Summary Mark room seen
// @Tags messages
// @Produce json
// @Param id path string true "Room ID"
// @Success 200 {object} models.SeenResponse
// @Router /rooms/{id}/seen [post]
func (h *RoomHandler) MarkSeen(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	roomID := c.Param("id")
	h.LogRequest(c, "Marking room seen", "room_id", roomID)

	updated, err := h.messageService.MarkRoomSeen(c.Request.Context(), roomID, principal)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SeenResponse{Success: true, Updated: updated})
}

// ExportTranscript downloads the room history as a spreadsheet
// @Summary Export room transcript
// @Tags rooms
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Room ID"
// @Success 200 {file} binary
// @Failure 403 {object} ErrorResponse
// @Router /rooms/{id}/export [get]
func (h *RoomHandler) ExportTranscript(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	roomID := c.Param("id")
	h.LogRequest(c, "Exporting transcript", "room_id", roomID)

	transcript, err := h.messageService.ExportTranscript(c.Request.Context(), roomID, principal)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, transcript.FileName))
	c.Data(http.StatusOK, transcript.ContentType, transcript.Data)
}
