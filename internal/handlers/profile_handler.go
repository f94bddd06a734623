package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/community-service/internal/services"
	"github.com/SAP-F-2025/community-service/internal/utils"
)

// ProfileHandler serves the caller's own profile, tier progress and the
// internal lesson-completion hook.
type ProfileHandler struct {
	BaseHandler
	identity    services.IdentityService
	progression services.ProgressionService
}

func NewProfileHandler(identity services.IdentityService, progression services.ProgressionService, logger utils.Logger) *ProfileHandler {
	return &ProfileHandler{
		BaseHandler: NewBaseHandler(logger),
		identity:    identity,
		progression: progression,
	}
}

// ===== PROFILE ENDPOINTS =====

// GetMe returns the resolved principal
// @Summary Get current user
// @Tags profile
// @Produce json
// @Success 200 {object} models.Principal
// @Failure 401 {object} ErrorResponse
// @Router /me [get]
func (h *ProfileHandler) GetMe(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, principal)
}

// CompleteOnboarding unlocks posting for the caller
// @Summary Complete onboarding
// @Tags profile
// @Produce json
// @Success 200 {object} models.Principal
// @Failure 404 {object} ErrorResponse
// @Router /me/onboarding [post]
func (h *ProfileHandler) CompleteOnboarding(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Completing onboarding")

	updated, err := h.identity.CompleteOnboarding(c.Request.Context(), principal)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// GetProgress reports completion of the caller's current tier
// @Summary Get tier progress
// @Tags progress
// @Produce json
// @Success 200 {object} models.ProgressResponse
// @Router /progress/me [get]
func (h *ProfileHandler) GetProgress(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Getting progress", "level", principal.Level)

	progress, err := h.progression.GetProgress(c.Request.Context(), principal)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// ===== INTERNAL ENDPOINTS =====

// RecordLessonCompletion ingests a completed lesson and schedules an
// advancement check
// @Summary Record lesson completion
// @Tags internal
// @Accept json
// @Produce json
// @Param completion body services.LessonCompletionRequest true "Completed lesson"
// @Success 202 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /internal/lesson-completions [post]
func (h *ProfileHandler) RecordLessonCompletion(c *gin.Context) {
	var req services.LessonCompletionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Recording lesson completion",
		"learner_id", req.UserID, "course_id", req.CourseID, "lesson_id", req.LessonID)

	if err := h.progression.RecordLessonCompletion(c.Request.Context(), req.UserID, req.CourseID, req.LessonID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.respondSuccess(c, http.StatusAccepted, "Lesson completion recorded", nil)
}
