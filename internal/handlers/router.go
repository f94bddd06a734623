package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/community-service/internal/models"
	"github.com/SAP-F-2025/community-service/internal/services"
	"github.com/SAP-F-2025/community-service/internal/utils"
)

const healthCheckTimeout = 3 * time.Second

type HandlerManager struct {
	roomHandler         *RoomHandler
	messageHandler      *MessageHandler
	notificationHandler *NotificationHandler
	profileHandler      *ProfileHandler
	streamHandler       *StreamHandler
	authMiddleware      *CasdoorAuthMiddleware
	serviceManager      services.ServiceManager
	serviceName         string
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	verifier TokenVerifier,
	logger utils.Logger,
	serviceName string,
) *HandlerManager {
	return &HandlerManager{
		roomHandler:         NewRoomHandler(serviceManager.Room(), serviceManager.Message(), logger),
		messageHandler:      NewMessageHandler(serviceManager.Message(), logger),
		notificationHandler: NewNotificationHandler(serviceManager.Notification(), logger),
		profileHandler:      NewProfileHandler(serviceManager.Identity(), serviceManager.Progression(), logger),
		streamHandler:       NewStreamHandler(serviceManager.Room(), serviceManager.Broadcaster().Transport(), logger),
		authMiddleware:      NewCasdoorAuthMiddleware(verifier, serviceManager.Identity(), logger),
		serviceManager:      serviceManager,
		serviceName:         serviceName,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	staff := hm.authMiddleware.RequireRoleMiddleware(models.RoleInstructor, models.RoleAdmin, models.RoleSuperAdmin)
	admins := hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin, models.RoleSuperAdmin)

	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		rooms := v1.Group("/rooms")
		{
			rooms.GET("", hm.roomHandler.ListRooms)
			rooms.POST("/direct", staff, hm.roomHandler.CreateDirectRoom)
			rooms.GET("/:id/messages", hm.roomHandler.ListMessages)
			rooms.POST("/:id/messages", hm.roomHandler.PostMessage)
			rooms.POST("/:id/seen", hm.roomHandler.MarkSeen)
			rooms.GET("/:id/export", staff, hm.roomHandler.ExportTranscript)
		}

		messages := v1.Group("/messages")
		{
			messages.POST("/:id/reaction", hm.messageHandler.ToggleReaction)
			messages.DELETE("/:id", hm.messageHandler.DeleteMessage)
		}

		notifications := v1.Group("/notifications")
		{
			notifications.GET("", hm.notificationHandler.ListNotifications)
			notifications.POST("", staff, hm.notificationHandler.Notify)
			notifications.PUT("/read-all", hm.notificationHandler.MarkAllRead)
			notifications.PUT("/:id/read", hm.notificationHandler.MarkRead)
		}

		v1.GET("/me", hm.profileHandler.GetMe)
		v1.POST("/me/onboarding", hm.profileHandler.CompleteOnboarding)
		v1.GET("/progress/me", hm.profileHandler.GetProgress)

		internal := v1.Group("/internal")
		internal.Use(admins)
		{
			internal.POST("/lesson-completions", hm.profileHandler.RecordLessonCompletion)
		}

		stream := v1.Group("/stream")
		{
			stream.GET("/rooms/:id", hm.streamHandler.StreamRoom)
			stream.GET("/me", hm.streamHandler.StreamMe)
		}
	}

	router.GET("/health", hm.health)
}

func (hm *HandlerManager) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	if err := hm.serviceManager.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"service": hm.serviceName,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": hm.serviceName,
	})
}
