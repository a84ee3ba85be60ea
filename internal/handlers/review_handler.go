package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizdesk/exam-service/internal/repositories"
	"github.com/quizdesk/exam-service/internal/services"
	"github.com/quizdesk/exam-service/internal/utils"
	"github.com/quizdesk/exam-service/internal/validator"
)

type ReviewHandler struct {
	BaseHandler
	reviewService services.ReviewService
	validator     *validator.Validator
}

func NewReviewHandler(reviewService services.ReviewService, v *validator.Validator, logger utils.Logger) *ReviewHandler {
	return &ReviewHandler{
		BaseHandler:   NewBaseHandler(logger),
		reviewService: reviewService,
		validator:     v,
	}
}

// GetSubmission returns a submission with its full per-question breakdown
// @Summary Get submission
// @Tags submissions
// @Produce json
// @Param id path uint true "Submission ID"
// @Success 200 {object} services.SubmissionResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /submissions/{id} [get]
func (h *ReviewHandler) GetSubmission(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	submission, err := h.reviewService.GetSubmission(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, submission)
}

// ListSubmissionsByExam lists an exam's submissions for its owner
// @Summary List submissions by exam
// @Tags submissions
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} services.SubmissionListResponse
// @Failure 403 {object} ErrorResponse
// @Router /exams/{id}/submissions [get]
func (h *ReviewHandler) ListSubmissionsByExam(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	filters := parseSubmissionFilters(c)
	list, err := h.reviewService.ListByExam(c.Request.Context(), examID, filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// ReviewSubmission records feedback and point overrides on a submission
// @Summary Review submission
// @Description Records teacher feedback and optional per-question point
// overrides; overrides regrade the submission
// @Tags submissions
// @Accept json
// @Produce json
// @Param id path uint true "Submission ID"
// @Param review body services.ReviewRequest true "Review data"
// @Success 200 {object} services.SubmissionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /submissions/{id}/review [post]
func (h *ReviewHandler) ReviewSubmission(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Reviewing submission", "submission_id", id)

	var req services.ReviewRequest
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

	submission, err := h.reviewService.Review(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, submission)
}

// GetPendingReviewCount returns how many submissions await the teacher's review
// @Summary Get pending review count
// @Tags submissions
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /submissions/pending-count [get]
func (h *ReviewHandler) GetPendingReviewCount(c *gin.Context) {
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	count, err := h.reviewService.PendingCount(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"pending": count})
}

func parseSubmissionFilters(c *gin.Context) repositories.SubmissionFilters {
	filters := repositories.SubmissionFilters{
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	filters.Limit, filters.Offset = parsePagination(c)

	filters.Reviewed = queryBool(c, "reviewed")
	filters.Passed = queryBool(c, "passed")

	return filters
}
