package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizdesk/exam-service/internal/models"
	"github.com/quizdesk/exam-service/internal/services"
	"github.com/quizdesk/exam-service/internal/utils"
)

type DashboardHandler struct {
	BaseHandler
	dashboardService services.DashboardService
}

func NewDashboardHandler(dashboardService services.DashboardService, logger utils.Logger) *DashboardHandler {
	return &DashboardHandler{
		BaseHandler:      NewBaseHandler(logger),
		dashboardService: dashboardService,
	}
}

// GetOverview returns the dashboard matching the caller's role
// @Summary Get dashboard overview
// @Tags dashboard
// @Produce json
// @Success 200 {object} services.TeacherDashboard
// @Failure 403 {object} ErrorResponse
// @Router /dashboard [get]
func (h *DashboardHandler) GetOverview(c *gin.Context) {
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	role, err := GetUserRoleFromContext(c)
	if err != nil {
		c.JSON(http.StatusForbidden, ErrorResponse{Message: err.Error()})
		return
	}

	if role == models.RoleTeacher || role == models.RoleAdmin {
		dashboard, err := h.dashboardService.TeacherOverview(c.Request.Context(), userID)
		if err != nil {
			h.handleServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, dashboard)
		return
	}

	dashboard, err := h.dashboardService.StudentOverview(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

// GetExamAnalytics returns score distribution and per-question performance
// @Summary Get exam analytics
// @Tags dashboard
// @Produce json
// @Param exam_id path uint true "Exam ID"
// @Success 200 {object} services.ExamAnalytics
// @Failure 403 {object} ErrorResponse
// @Router /dashboard/exams/{exam_id} [get]
func (h *DashboardHandler) GetExamAnalytics(c *gin.Context) {
	examID := h.parseIDParam(c, "exam_id")
	if examID == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	analytics, err := h.dashboardService.ExamAnalytics(c.Request.Context(), examID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, analytics)
}
