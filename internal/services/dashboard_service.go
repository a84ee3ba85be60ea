package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/quizdesk/exam-service/internal/models"
	"github.com/quizdesk/exam-service/internal/repositories"
)

const recentSubmissionsLimit = 10

type dashboardService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
}

func NewDashboardService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger) DashboardService {
	return &dashboardService{
		repo:   repo,
		db:     db,
		logger: logger,
	}
}

func (s *dashboardService) TeacherOverview(ctx context.Context, teacherID string) (*TeacherDashboard, error) {
	isTeacher, err := s.repo.User().HasRole(ctx, s.db, teacherID, models.RoleTeacher)
	if err != nil {
		return nil, fmt.Errorf("failed to check role: %w", err)
	}
	if !isTeacher {
		return nil, NewPermissionError(teacherID, 0, "dashboard", "read", "teacher role required")
	}

	stats, err := s.repo.Dashboard().GetTeacherStats(ctx, s.db, teacherID)
	if err != nil {
		return nil, fmt.Errorf("failed to get teacher stats: %w", err)
	}

	recent, err := s.repo.Dashboard().GetRecentSubmissions(ctx, s.db, teacherID, recentSubmissionsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent submissions: %w", err)
	}

	return &TeacherDashboard{
		Stats:             stats,
		RecentSubmissions: summarizeSubmissions(recent),
		GeneratedAt:       time.Now(),
	}, nil
}

func (s *dashboardService) StudentOverview(ctx context.Context, studentID string) (*StudentDashboard, error) {
	stats, err := s.repo.Dashboard().GetStudentStats(ctx, s.db, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get student stats: %w", err)
	}

	recent, _, err := s.repo.Submission().GetByStudent(ctx, s.db, studentID, repositories.SubmissionFilters{
		Limit:     recentSubmissionsLimit,
		SortBy:    "submitted_at",
		SortOrder: "desc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get recent submissions: %w", err)
	}

	return &StudentDashboard{
		Stats:             stats,
		RecentSubmissions: summarizeSubmissions(recent),
		GeneratedAt:       time.Now(),
	}, nil
}

// ExamAnalytics aggregates one exam's results: summary stats, the score
// histogram, and per-question correct rates.
func (s *dashboardService) ExamAnalytics(ctx context.Context, examID uint, userID string) (*ExamAnalytics, error) {
	exam, err := s.repo.Exam().GetByID(ctx, s.db, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	if exam.CreatedBy != userID {
		return nil, NewPermissionError(userID, examID, "exam", "view_analytics", "not the exam owner")
	}

	stats, err := s.repo.Submission().GetExamStats(ctx, s.db, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam stats: %w", err)
	}
	distribution, err := s.repo.Dashboard().GetScoreDistribution(ctx, s.db, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to get score distribution: %w", err)
	}
	questions, err := s.repo.Dashboard().GetQuestionPerformance(ctx, s.db, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to get question performance: %w", err)
	}

	return &ExamAnalytics{
		ExamID:       examID,
		Title:        exam.Title,
		Stats:        stats,
		Distribution: distribution,
		Questions:    questions,
	}, nil
}

func summarizeSubmissions(submissions []*models.Submission) []*SubmissionResponse {
	responses := make([]*SubmissionResponse, len(submissions))
	for i, submission := range submissions {
		responses[i] = &SubmissionResponse{
			Submission:  submission,
			ExamTitle:   submission.Exam.Title,
			StudentName: submission.Student.FullName,
		}
	}
	return responses
}
