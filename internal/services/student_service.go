package services

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"github.com/quizdesk/exam-service/internal/repositories"
	"github.com/quizdesk/exam-service/internal/validator"
)

// studentService is the student-facing read surface: available exams and the
// student's own results. Writes go through the attempt service.
type studentService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	exams     ExamService
	review    ReviewService
}

func NewStudentService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator, exams ExamService, review ReviewService) StudentService {
	return &studentService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
		exams:     exams,
		review:    review,
	}
}

func (s *studentService) AvailableExams(ctx context.Context, studentID string, filters repositories.ExamFilters) (*ExamListResponse, error) {
	return s.exams.GetAvailable(ctx, studentID, filters)
}

func (s *studentService) MySubmissions(ctx context.Context, studentID string, filters repositories.SubmissionFilters) (*SubmissionListResponse, error) {
	return s.review.ListByStudent(ctx, studentID, filters)
}

// MySubmissionDetail returns the student's own review view, answer key
// included. Only completed submissions reach this path, so revealing the key
// here cannot leak into a live attempt.
func (s *studentService) MySubmissionDetail(ctx context.Context, submissionID uint, studentID string) (*SubmissionResponse, error) {
	resp, err := s.review.GetSubmission(ctx, submissionID, studentID)
	if err != nil {
		return nil, err
	}
	if resp.StudentID != studentID {
		return nil, NewPermissionError(studentID, submissionID, "submission", "read", "not the submission owner")
	}
	return resp, nil
}
