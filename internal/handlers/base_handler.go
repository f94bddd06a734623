package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/community-service/internal/models"
	"github.com/SAP-F-2025/community-service/internal/services"
	"github.com/SAP-F-2025/community-service/internal/utils"
)

type ErrorResponse = models.ErrorResponse
type SuccessResponse = models.SuccessResponse

// BaseHandler carries the logger shared by every resource handler.
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	args = append(args, "method", c.Request.Method, "path", c.FullPath())
	if userID := c.GetString("user_id"); userID != "" {
		args = append(args, "user_id", userID)
	}
	utils.GetLogger(c, h.logger).Info(msg, args...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	args = append(args, "error", err, "path", c.FullPath())
	utils.GetLogger(c, h.logger).Error(msg, args...)
}

// principal returns the caller set by the auth middleware, writing 401 when
// there is none.
func (h *BaseHandler) principal(c *gin.Context) (*models.Principal, bool) {
	p, err := GetPrincipalFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "unauthorized", "User not authenticated", nil)
		return nil, false
	}
	return p, true
}

func (h *BaseHandler) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.respondError(c, http.StatusBadRequest, "invalid_payload", "Invalid request payload", err.Error())
		return false
	}
	return true
}

func (h *BaseHandler) respondError(c *gin.Context, status int, code, message string, details interface{}) {
	c.JSON(status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		Details:   details,
		Timestamp: time.Now().UTC(),
		Path:      c.Request.URL.Path,
	})
}

func (h *BaseHandler) respondSuccess(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, SuccessResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		resp := ErrorResponse{
			Error:     http.StatusText(http.StatusBadRequest),
			Message:   "Validation failed",
			Code:      "validation_failed",
			Timestamp: time.Now().UTC(),
			Path:      c.Request.URL.Path,
		}
		for _, ve := range validationErrors {
			resp.ValidationErrors = append(resp.ValidationErrors, models.ValidationErrorResponse{
				Field:   ve.Field,
				Message: ve.Message,
				Value:   valueString(ve.Value),
				Code:    ve.Rule,
			})
		}
		c.JSON(http.StatusBadRequest, resp)
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		h.respondError(c, http.StatusUnprocessableEntity, "business_rule", businessRuleError.Message, map[string]interface{}{
			"rule":    businessRuleError.Rule,
			"context": businessRuleError.Context,
		})
		return
	}

	if errors.Is(err, services.ErrOnboardingIncomplete) {
		h.respondError(c, http.StatusForbidden, "onboarding_incomplete", "Complete onboarding before posting", nil)
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		code := "access_denied"
		if errors.Is(err, services.ErrForbidden) {
			code = "forbidden"
		}
		h.respondError(c, http.StatusForbidden, code, "Access denied", map[string]interface{}{
			"resource": permissionError.Resource,
			"action":   permissionError.Action,
			"reason":   permissionError.Reason,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrInvalidArgument), errors.Is(err, services.ErrValidationFailed):
		h.respondError(c, http.StatusBadRequest, "invalid_argument", "Invalid argument", err.Error())
	case errors.Is(err, services.ErrUnauthorized):
		h.respondError(c, http.StatusUnauthorized, "unauthorized", "Unauthorized access", nil)
	case errors.Is(err, services.ErrForbidden):
		h.respondError(c, http.StatusForbidden, "forbidden", "Forbidden - insufficient permissions", nil)
	case errors.Is(err, services.ErrAccessDenied):
		h.respondError(c, http.StatusForbidden, "access_denied", "Access denied", nil)
	case errors.Is(err, services.ErrRoomNotFound):
		h.respondError(c, http.StatusNotFound, "room_not_found", "Room not found", nil)
	case errors.Is(err, services.ErrMessageNotFound):
		h.respondError(c, http.StatusNotFound, "message_not_found", "Message not found", nil)
	case errors.Is(err, services.ErrNotificationNotFound):
		h.respondError(c, http.StatusNotFound, "notification_not_found", "Notification not found", nil)
	case errors.Is(err, services.ErrCourseNotFound):
		h.respondError(c, http.StatusNotFound, "course_not_found", "Course not found", nil)
	case errors.Is(err, services.ErrProfileNotFound):
		h.respondError(c, http.StatusNotFound, "profile_not_found", "Profile not found", nil)
	case errors.Is(err, services.ErrNotFound):
		h.respondError(c, http.StatusNotFound, "not_found", "Resource not found", nil)
	case errors.Is(err, services.ErrStoreUnavailable):
		h.LogError(c, err, "Store unavailable")
		h.respondError(c, http.StatusServiceUnavailable, "store_unavailable", "Service temporarily unavailable", nil)
	default:
		h.LogError(c, err, "Unexpected service error")
		h.respondError(c, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
	}
}

func valueString(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
