package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/quizdesk/exam-service/internal/config"
	"github.com/quizdesk/exam-service/internal/models"
	"github.com/quizdesk/exam-service/internal/repositories"
	"github.com/quizdesk/exam-service/internal/services"
	"github.com/quizdesk/exam-service/internal/utils"
	"github.com/quizdesk/exam-service/internal/validator"
)

type HandlerManager struct {
	examHandler      *ExamHandler
	attemptHandler   *AttemptHandler
	poolHandler      *PoolHandler
	reviewHandler    *ReviewHandler
	studentHandler   *StudentHandler
	dashboardHandler *DashboardHandler
	userHandler      *UserHandler
	authMiddleware   *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo, logger)

	return &HandlerManager{
		examHandler:      NewExamHandler(serviceManager.Exam(), validator, logger),
		attemptHandler:   NewAttemptHandler(serviceManager.Attempt(), validator, logger),
		poolHandler:      NewPoolHandler(serviceManager.Pool(), serviceManager.Import(), validator, logger),
		reviewHandler:    NewReviewHandler(serviceManager.Review(), validator, logger),
		studentHandler:   NewStudentHandler(serviceManager.Student(), logger),
		dashboardHandler: NewDashboardHandler(serviceManager.Dashboard(), logger),
		userHandler:      NewUserHandler(userRepo, logger),
		authMiddleware:   authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	teacherOnly := hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher)
	studentOnly := hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent)

	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		// Exam routes
		exams := v1.Group("/exams")
		{
			// Authoring - teachers only
			exams.POST("", teacherOnly, hm.examHandler.CreateExam)
			exams.PUT("/:id", teacherOnly, hm.examHandler.UpdateExam)
			exams.DELETE("/:id", teacherOnly, hm.examHandler.DeleteExam)
			exams.POST("/:id/publish", teacherOnly, hm.examHandler.PublishExam)
			exams.PUT("/:id/status", teacherOnly, hm.examHandler.UpdateExamStatus)
			exams.POST("/:id/archive", teacherOnly, hm.examHandler.ArchiveExam)
			exams.PUT("/:id/questions", teacherOnly, hm.examHandler.ReplaceExamQuestions)
			exams.POST("/:id/questions/import", teacherOnly, hm.examHandler.ImportQuestionsFromPool)

			// Viewing - all authenticated users
			exams.GET("", hm.examHandler.ListExams)
			exams.GET("/:id", hm.examHandler.GetExam)
			exams.GET("/:id/questions", hm.examHandler.GetExamWithQuestions)

			// Results - teachers only
			exams.GET("/:id/stats", teacherOnly, hm.examHandler.GetExamStats)
			exams.GET("/:id/submissions", teacherOnly, hm.reviewHandler.ListSubmissionsByExam)
			exams.GET("/:id/results/export", teacherOnly, hm.poolHandler.ExportExamResults)
		}

		// Question pool routes - teachers only
		pool := v1.Group("/pool")
		pool.Use(teacherOnly)
		{
			pool.POST("", hm.poolHandler.CreatePoolEntry)
			pool.GET("", hm.poolHandler.ListPoolEntries)
			pool.GET("/categories", hm.poolHandler.GetPoolCategories)
			pool.POST("/import", hm.poolHandler.ImportPool)
			pool.GET("/:id", hm.poolHandler.GetPoolEntry)
			pool.PUT("/:id", hm.poolHandler.UpdatePoolEntry)
			pool.DELETE("/:id", hm.poolHandler.DeletePoolEntry)
		}

		// Attempt routes
		attempts := v1.Group("/attempts")
		{
			attempts.POST("/start", studentOnly, hm.attemptHandler.StartAttempt)
			attempts.GET("", hm.attemptHandler.ListAttempts)
			attempts.GET("/current/:exam_id", studentOnly, hm.attemptHandler.GetCurrentAttempt)
			attempts.POST("/:id/resume", studentOnly, hm.attemptHandler.ResumeAttempt)
			attempts.POST("/:id/answer", studentOnly, hm.attemptHandler.SaveAnswer)
			attempts.POST("/:id/bookmark", studentOnly, hm.attemptHandler.ToggleBookmark)
			attempts.POST("/:id/flag", studentOnly, hm.attemptHandler.ToggleFlag)
			attempts.PUT("/:id/position", studentOnly, hm.attemptHandler.UpdatePosition)
			attempts.GET("/:id/time-remaining", studentOnly, hm.attemptHandler.GetTimeRemaining)
			attempts.POST("/:id/submit", studentOnly, hm.attemptHandler.SubmitAttempt)
		}

		// Submission review routes
		submissions := v1.Group("/submissions")
		{
			submissions.GET("/pending-count", teacherOnly, hm.reviewHandler.GetPendingReviewCount)
			submissions.GET("/:id", hm.reviewHandler.GetSubmission)
			submissions.POST("/:id/review", teacherOnly, hm.reviewHandler.ReviewSubmission)
		}

		// Dashboard routes
		dashboard := v1.Group("/dashboard")
		{
			dashboard.GET("", hm.dashboardHandler.GetOverview)
			dashboard.GET("/exams/:exam_id", teacherOnly, hm.dashboardHandler.GetExamAnalytics)
		}

		// Student self-service routes
		students := v1.Group("/students")
		students.Use(studentOnly)
		{
			students.GET("/me/exams", hm.studentHandler.GetAvailableExams)
			students.GET("/me/submissions", hm.studentHandler.GetMySubmissions)
			students.GET("/me/submissions/:id", hm.studentHandler.GetMySubmissionDetail)
		}

		// User routes
		users := v1.Group("/users")
		{
			users.GET("/me", hm.userHandler.GetMe)
			users.GET("", teacherOnly, hm.userHandler.ListUsers)
			users.GET("/:id", teacherOnly, hm.userHandler.GetUser)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "exam-service",
		})
	})
}
