package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizdesk/exam-service/internal/models"
	"github.com/quizdesk/exam-service/internal/repositories"
	"github.com/quizdesk/exam-service/internal/services"
	"github.com/quizdesk/exam-service/internal/utils"
	"github.com/quizdesk/exam-service/internal/validator"
)

type ExamHandler struct {
	BaseHandler
	examService services.ExamService
	validator   *validator.Validator
}

func NewExamHandler(examService services.ExamService, v *validator.Validator, logger utils.Logger) *ExamHandler {
	return &ExamHandler{
		BaseHandler: NewBaseHandler(logger),
		examService: examService,
		validator:   v,
	}
}

// CreateExam creates a draft exam
// @Summary Create exam
// @Description Creates a new draft exam with its question list
// @Tags exams
// @Accept json
// @Produce json
// @Param exam body services.CreateExamRequest true "Exam data"
// @Success 201 {object} services.ExamResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /exams [post]
func (h *ExamHandler) CreateExam(c *gin.Context) {
	h.LogRequest(c, "Creating exam")

	var req services.CreateExamRequest
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

	exam, err := h.examService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, exam)
}

// GetExam retrieves exam metadata
// @Summary Get exam
// @Tags exams
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} services.ExamResponse
// @Failure 404 {object} ErrorResponse
// @Router /exams/{id} [get]
func (h *ExamHandler) GetExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

// GetExamWithQuestions retrieves an exam including its question list. The
// answer key is stripped for everyone but the owner.
// @Summary Get exam with questions
// @Tags exams
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} services.ExamResponse
// @Failure 404 {object} ErrorResponse
// @Router /exams/{id}/questions [get]
func (h *ExamHandler) GetExamWithQuestions(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	exam, err := h.examService.GetByIDWithQuestions(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

// UpdateExam updates exam metadata
// @Summary Update exam
// @Tags exams
// @Accept json
// @Produce json
// @Param id path uint true "Exam ID"
// @Param exam body services.UpdateExamRequest true "Fields to update"
// @Success 200 {object} services.ExamResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /exams/{id} [put]
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Updating exam", "exam_id", id)

	var req services.UpdateExamRequest
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

	exam, err := h.examService.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

// DeleteExam deletes an exam that has no attempts
// @Summary Delete exam
// @Tags exams
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} SuccessResponse
// @Failure 409 {object} ErrorResponse
// @Router /exams/{id} [delete]
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Deleting exam", "exam_id", id)

	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	if err := h.examService.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Exam deleted successfully"})
}

// ListExams lists exams visible to the caller: teachers see their own,
// students see published active exams.
// @Summary List exams
// @Tags exams
// @Produce json
// @Success 200 {object} services.ExamListResponse
// @Router /exams [get]
func (h *ExamHandler) ListExams(c *gin.Context) {
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	filters := parseExamFilters(c)
	list, err := h.examService.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// PublishExam publishes a draft exam, making it available to students
// @Summary Publish exam
// @Tags exams
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /exams/{id}/publish [post]
func (h *ExamHandler) PublishExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Publishing exam", "exam_id", id)

	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	if err := h.examService.Publish(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Exam published successfully"})
}

// UpdateExamStatus moves an exam through its lifecycle
// @Summary Update exam status
// @Tags exams
// @Accept json
// @Produce json
// @Param id path uint true "Exam ID"
// @Param status body services.UpdateStatusRequest true "New status"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /exams/{id}/status [put]
func (h *ExamHandler) UpdateExamStatus(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Updating exam status", "exam_id", id, "status", req.Status)

	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	if err := h.examService.UpdateStatus(c.Request.Context(), id, &req, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Exam status updated successfully"})
}

// ArchiveExam archives an exam
// @Summary Archive exam
// @Tags exams
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} SuccessResponse
// @Router /exams/{id}/archive [post]
func (h *ExamHandler) ArchiveExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Archiving exam", "exam_id", id)

	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	if err := h.examService.Archive(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Exam archived successfully"})
}

// ReplaceExamQuestions replaces the full question list of a draft exam
// @Summary Replace exam questions
// @Tags exams
// @Accept json
// @Produce json
// @Param id path uint true "Exam ID"
// @Param questions body []services.ExamQuestionRequest true "Question list"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /exams/{id}/questions [put]
func (h *ExamHandler) ReplaceExamQuestions(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var questions []services.ExamQuestionRequest
	if err := c.ShouldBindJSON(&questions); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Replacing exam questions", "exam_id", id, "count", len(questions))

	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	if err := h.examService.ReplaceQuestions(c.Request.Context(), id, questions, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Questions updated successfully"})
}

// ImportQuestionsFromPool appends pool questions to a draft exam
// @Summary Import questions from the pool
// @Tags exams
// @Accept json
// @Produce json
// @Param id path uint true "Exam ID"
// @Param entries body services.ImportFromPoolRequest true "Pool entry IDs"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /exams/{id}/questions/import [post]
func (h *ExamHandler) ImportQuestionsFromPool(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.ImportFromPoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Importing pool questions", "exam_id", id, "count", len(req.EntryIDs))

	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	imported, err := h.examService.ImportFromPool(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Questions imported successfully",
		Data:    gin.H{"imported": imported},
	})
}

// GetExamStats returns aggregate submission statistics for an exam
// @Summary Get exam statistics
// @Tags exams
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} repositories.ExamStats
// @Failure 403 {object} ErrorResponse
// @Router /exams/{id}/stats [get]
func (h *ExamHandler) GetExamStats(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	stats, err := h.examService.GetStats(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func parseExamFilters(c *gin.Context) repositories.ExamFilters {
	filters := repositories.ExamFilters{
		Query:     c.Query("q"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	filters.Limit, filters.Offset = parsePagination(c)

	if v := c.Query("status"); v != "" {
		status := models.ExamStatus(v)
		filters.Status = &status
	}
	filters.Category = queryString(c, "category")
	filters.Published = queryBool(c, "published")

	return filters
}
