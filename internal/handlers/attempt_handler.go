package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizdesk/exam-service/internal/models"
	"github.com/quizdesk/exam-service/internal/repositories"
	"github.com/quizdesk/exam-service/internal/services"
	"github.com/quizdesk/exam-service/internal/utils"
	"github.com/quizdesk/exam-service/internal/validator"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	validator      *validator.Validator
}

func NewAttemptHandler(attemptService services.AttemptService, v *validator.Validator, logger utils.Logger) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		validator:      v,
	}
}

// StartAttempt starts (or resumes) an exam attempt
// @Summary Start exam attempt
// @Description Starts a new attempt, or returns the open one when the student
// already has an attempt in progress for this exam
// @Tags attempts
// @Accept json
// @Produce json
// @Param attempt body services.StartAttemptRequest true "Exam to start"
// @Success 201 {object} services.AttemptResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/start [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	h.LogRequest(c, "Starting exam attempt")

	var req services.StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	attempt, err := h.attemptService.Start(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, attempt)
}

// ResumeAttempt returns the current state of an open attempt
// @Summary Resume exam attempt
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id}/resume [post]
func (h *AttemptHandler) ResumeAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Resuming exam attempt", "attempt_id", id)

	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	attempt, err := h.attemptService.Resume(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// GetCurrentAttempt returns the caller's open attempt for an exam
// @Summary Get current attempt
// @Tags attempts
// @Produce json
// @Param exam_id path uint true "Exam ID"
// @Success 200 {object} services.AttemptResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/current/{exam_id} [get]
func (h *AttemptHandler) GetCurrentAttempt(c *gin.Context) {
	examID := h.parseIDParam(c, "exam_id")
	if examID == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	attempt, err := h.attemptService.GetCurrent(c.Request.Context(), examID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// SaveAnswer records one answer selection
// @Summary Save answer
// @Description Records the selected option for a question, addressed by its
// position in the student's presentation order
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param answer body services.SaveAnswerRequest true "Answer data"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /attempts/{id}/answer [post]
func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.SaveAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	if err := h.attemptService.SaveAnswer(c.Request.Context(), id, &req, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Answer saved successfully"})
}

// ToggleBookmark flips the bookmark on a question
// @Summary Toggle bookmark
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param position body services.ToggleRequest true "Question position"
// @Success 200 {object} SuccessResponse
// @Router /attempts/{id}/bookmark [post]
func (h *AttemptHandler) ToggleBookmark(c *gin.Context) {
	h.toggleMark(c, h.attemptService.ToggleBookmark, "Bookmark")
}

// ToggleFlag flips the review flag on a question
// @Summary Toggle review flag
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param position body services.ToggleRequest true "Question position"
// @Success 200 {object} SuccessResponse
// @Router /attempts/{id}/flag [post]
func (h *AttemptHandler) ToggleFlag(c *gin.Context) {
	h.toggleMark(c, h.attemptService.ToggleFlag, "Flag")
}

// UpdatePosition moves the student's current question pointer
// @Summary Update position
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param position body services.PositionRequest true "New position"
// @Success 200 {object} SuccessResponse
// @Router /attempts/{id}/position [put]
func (h *AttemptHandler) UpdatePosition(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.PositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	if err := h.attemptService.UpdatePosition(c.Request.Context(), id, &req, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Position updated successfully"})
}

// GetTimeRemaining returns the server-authoritative countdown for an attempt
// @Summary Get time remaining
// @Description Returns seconds remaining and whether the low-time warning
// should be shown. An expired attempt is finalized and reported as a 400.
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /attempts/{id}/time-remaining [get]
func (h *AttemptHandler) GetTimeRemaining(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	remaining, warning, err := h.attemptService.TimeRemaining(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"time_remaining": remaining,
		"warning":        warning,
	})
}

// SubmitAttempt finalizes an attempt and grades it
// @Summary Submit exam attempt
// @Description Grades the attempt and creates the submission. Exactly one
// submission per attempt: a concurrent or repeated submit returns 409.
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.SubmitResult
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Submitting exam attempt", "attempt_id", id)

	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	result, err := h.attemptService.Submit(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListAttempts lists attempts; students see only their own
// @Summary List attempts
// @Tags attempts
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /attempts [get]
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	filters := parseAttemptFilters(c)
	attempts, total, err := h.attemptService.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"attempts": attempts,
		"total":    total,
	})
}

func (h *AttemptHandler) toggleMark(c *gin.Context, toggle func(ctx context.Context, attemptID uint, req *services.ToggleRequest, studentID string) (bool, error), kind string) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	on, err := toggle(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: kind + " toggled successfully",
		Data:    gin.H{"active": on},
	})
}

func parseAttemptFilters(c *gin.Context) repositories.AttemptFilters {
	filters := repositories.AttemptFilters{}
	filters.Limit, filters.Offset = parsePagination(c)

	if v := c.Query("status"); v != "" {
		status := models.AttemptStatus(v)
		filters.Status = &status
	}
	filters.ExamID = queryUint(c, "exam_id")
	filters.StudentID = queryString(c, "student_id")

	return filters
}
