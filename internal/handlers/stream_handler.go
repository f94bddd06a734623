package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/community-service/internal/realtime"
	"github.com/SAP-F-2025/community-service/internal/services"
	"github.com/SAP-F-2025/community-service/internal/utils"
)

const defaultHeartbeatInterval = 25 * time.Second

// StreamHandler pushes room and user events to browsers over Server-Sent
// Events.
type StreamHandler struct {
	BaseHandler
	rooms     services.RoomService
	transport realtime.Transport
	heartbeat time.Duration
}

func NewStreamHandler(rooms services.RoomService, transport realtime.Transport, logger utils.Logger) *StreamHandler {
	return &StreamHandler{
		BaseHandler: NewBaseHandler(logger),
		rooms:       rooms,
		transport:   transport,
		heartbeat:   defaultHeartbeatInterval,
	}
}

// StreamRoom joins the room topic after the access policy allowed it
// @Summary Stream room events
// @Tags stream
// @Produce text/event-stream
// @Param id path string true "Room ID"
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /stream/rooms/{id} [get]
func (h *StreamHandler) StreamRoom(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	room, err := h.rooms.GetRoom(c.Request.Context(), c.Param("id"), principal)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Joining room stream", "room_id", room.ID)
	h.stream(c, realtime.RoomTopic(room.ID))
}

// StreamMe delivers the caller's personal events
// @Summary Stream user events
// @Tags stream
// @Produce text/event-stream
// @Router /stream/me [get]
func (h *StreamHandler) StreamMe(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Joining user stream")
	h.stream(c, realtime.UserTopic(principal.ID))
}

func (h *StreamHandler) stream(c *gin.Context, topic string) {
	ctx := c.Request.Context()

	sub, err := h.transport.Subscribe(ctx, topic)
	if err != nil {
		h.LogError(c, err, "Failed to subscribe", "topic", topic)
		h.respondError(c, http.StatusServiceUnavailable, "transport_unavailable", "Realtime transport unavailable", nil)
		return
	}
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("ready", gin.H{"topic": topic})
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.SSEvent("heartbeat", time.Now().UTC().Format(time.RFC3339))
			c.Writer.Flush()
		case payload, ok := <-sub.Messages():
			if !ok {
				return
			}
			c.SSEvent(eventName(payload), string(payload))
			c.Writer.Flush()
		}
	}
}

func eventName(payload []byte) string {
	var frame struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(payload, &frame); err != nil || frame.Event == "" {
		return "message"
	}
	return frame.Event
}
