package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizdesk/exam-service/internal/services"
	"github.com/quizdesk/exam-service/internal/utils"
)

type StudentHandler struct {
	BaseHandler
	studentService services.StudentService
}

func NewStudentHandler(studentService services.StudentService, logger utils.Logger) *StudentHandler {
	return &StudentHandler{
		BaseHandler:    NewBaseHandler(logger),
		studentService: studentService,
	}
}

// GetAvailableExams lists published exams the student can take
// @Summary List available exams
// @Tags students
// @Produce json
// @Success 200 {object} services.ExamListResponse
// @Router /students/me/exams [get]
func (h *StudentHandler) GetAvailableExams(c *gin.Context) {
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	filters := parseExamFilters(c)
	list, err := h.studentService.AvailableExams(c.Request.Context(), userID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// GetMySubmissions lists the student's submission history
// @Summary List my submissions
// @Tags students
// @Produce json
// @Success 200 {object} services.SubmissionListResponse
// @Router /students/me/submissions [get]
func (h *StudentHandler) GetMySubmissions(c *gin.Context) {
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	filters := parseSubmissionFilters(c)
	list, err := h.studentService.MySubmissions(c.Request.Context(), userID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// GetMySubmissionDetail returns one of the student's submissions with the
// per-question review breakdown
// @Summary Get my submission
// @Tags students
// @Produce json
// @Param id path uint true "Submission ID"
// @Success 200 {object} services.SubmissionResponse
// @Failure 404 {object} ErrorResponse
// @Router /students/me/submissions/{id} [get]
func (h *StudentHandler) GetMySubmissionDetail(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	submission, err := h.studentService.MySubmissionDetail(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, submission)
}
