package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/quizdesk/exam-service/internal/engine"
	"github.com/quizdesk/exam-service/internal/events"
	"github.com/quizdesk/exam-service/internal/models"
	"github.com/quizdesk/exam-service/internal/repositories"
	"github.com/quizdesk/exam-service/internal/validator"
)

type reviewService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
}

func NewReviewService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher) ReviewService {
	return &reviewService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
		publisher: publisher,
	}
}

func (s *reviewService) GetSubmission(ctx context.Context, id uint, userID string) (*SubmissionResponse, error) {
	submission, err := s.repo.Submission().GetByIDWithExam(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	// Review detail is for the exam owner and the student who took it.
	if submission.TeacherID != userID && submission.StudentID != userID {
		return nil, NewPermissionError(userID, id, "submission", "read", "not the teacher or student")
	}
	return buildSubmissionDetail(submission)
}

func (s *reviewService) ListByExam(ctx context.Context, examID uint, filters repositories.SubmissionFilters, userID string) (*SubmissionListResponse, error) {
	exam, err := s.repo.Exam().GetByID(ctx, s.db, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	if exam.CreatedBy != userID {
		return nil, NewPermissionError(userID, examID, "exam", "view_submissions", "not the exam owner")
	}

	submissions, total, err := s.repo.Submission().GetByExam(ctx, s.db, examID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return buildSubmissionList(submissions, total, filters), nil
}

func (s *reviewService) ListByStudent(ctx context.Context, studentID string, filters repositories.SubmissionFilters) (*SubmissionListResponse, error) {
	submissions, total, err := s.repo.Submission().GetByStudent(ctx, s.db, studentID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return buildSubmissionList(submissions, total, filters), nil
}

// Review records teacher feedback and optional per-question point overrides.
// Overrides recompute the score from the original answer key, so revoking an
// override later restores the automatic grade.
func (s *reviewService) Review(ctx context.Context, id uint, req *ReviewRequest, reviewerID string) (*SubmissionResponse, error) {
	s.logger.Info("Reviewing submission", "submission_id", id, "reviewer_id", reviewerID)

	if err := s.validator.Validate(req); err != nil {
		return nil, NewValidationError("invalid review", err)
	}

	submission, err := s.repo.Submission().GetByIDWithExam(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	if submission.TeacherID != reviewerID {
		return nil, NewPermissionError(reviewerID, id, "submission", "review", "not the exam owner")
	}

	if req.Feedback != nil {
		submission.Feedback = req.Feedback
	}

	if req.PointOverrides != nil {
		if err := s.applyOverrides(submission, req.PointOverrides); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	reviewed := true
	if req.Reviewed != nil {
		reviewed = *req.Reviewed
	}
	submission.Reviewed = reviewed
	if reviewed {
		submission.ReviewedBy = &reviewerID
		submission.ReviewedAt = &now
	} else {
		submission.ReviewedBy = nil
		submission.ReviewedAt = nil
	}

	if err := s.repo.Submission().Update(ctx, s.db, submission); err != nil {
		return nil, fmt.Errorf("failed to update submission: %w", err)
	}

	if reviewed {
		s.publishEvent(ctx, events.NewEvent(events.EventSubmissionReviewed, events.SubmissionReviewedEvent{
			SubmissionID: submission.ID,
			ExamID:       submission.ExamID,
			StudentID:    submission.StudentID,
			ReviewedBy:   reviewerID,
			Score:        submission.Score,
		}))
	}

	s.logger.Info("Submission reviewed",
		"submission_id", id,
		"score", submission.Score,
		"passed", submission.Passed)
	return buildSubmissionDetail(submission)
}

func (s *reviewService) PendingCount(ctx context.Context, teacherID string) (int64, error) {
	count, err := s.repo.Submission().CountPendingReview(ctx, s.db, teacherID)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending reviews: %w", err)
	}
	return count, nil
}

// ===== HELPERS =====

// applyOverrides merges new overrides into the stored map and regrades. An
// override keyed outside the question range is rejected; a negative award
// drops the override entirely, restoring the automatic grade.
func (s *reviewService) applyOverrides(submission *models.Submission, updates map[int]int) error {
	exam := &submission.Exam
	if len(exam.Questions) == 0 {
		return NewValidationError("submission exam has no questions", nil)
	}

	overrides, err := submission.OverrideMap()
	if err != nil {
		return err
	}
	for original, awarded := range updates {
		if original < 0 || original >= len(exam.Questions) {
			return NewValidationError(fmt.Sprintf("override references question %d of %d", original, len(exam.Questions)), nil)
		}
		if awarded < 0 {
			delete(overrides, original)
			continue
		}
		overrides[original] = awarded
	}

	answers, err := submission.AnswerMap()
	if err != nil {
		return err
	}
	key := make([]engine.ScoredQuestion, len(exam.Questions))
	for i, q := range exam.Questions {
		key[i] = engine.ScoredQuestion{Points: q.Points, CorrectIndex: q.CorrectIndex}
	}
	result := engine.ScoreWithOverrides(key, answers, overrides)

	overridesJSON, err := models.EncodeJSON(overrides)
	if err != nil {
		return err
	}
	submission.PointOverrides = overridesJSON
	submission.Score = result.Score
	submission.EarnedPoints = result.EarnedPoints
	submission.TotalPoints = result.TotalPoints
	submission.Passed = engine.Passed(result.Score, exam.PassingScore)
	return nil
}

func (s *reviewService) publishEvent(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event", "event_type", event.Type, "error", err)
	}
}

// buildSubmissionDetail shapes the full review view: every question in
// original order, the student's answer next to the key.
func buildSubmissionDetail(submission *models.Submission) (*SubmissionResponse, error) {
	resp := &SubmissionResponse{
		Submission:  submission,
		ExamTitle:   submission.Exam.Title,
		StudentName: submission.Student.FullName,
	}
	if len(submission.Exam.Questions) == 0 {
		return resp, nil
	}

	answers, err := submission.AnswerMap()
	if err != nil {
		return nil, err
	}
	overrides, err := submission.OverrideMap()
	if err != nil {
		return nil, err
	}
	bookmarks, err := decodeMarks(submission.Bookmarked)
	if err != nil {
		return nil, err
	}
	flags, err := decodeMarks(submission.Flagged)
	if err != nil {
		return nil, err
	}

	questions := make([]ReviewQuestion, 0, len(submission.Exam.Questions))
	for i, q := range submission.Exam.Questions {
		options, err := q.OptionList()
		if err != nil {
			return nil, err
		}

		item := ReviewQuestion{
			Position:     i,
			Text:         q.Text,
			ImageURL:     q.ImageURL,
			Options:      options,
			CorrectIndex: q.CorrectIndex,
			Points:       q.Points,
			Explanation:  q.Explanation,
			Bookmarked:   bookmarks[i],
			Flagged:      flags[i],
		}
		if selected, ok := answers[i]; ok {
			sel := selected
			item.Selected = &sel
			item.Correct = selected == q.CorrectIndex
		}
		if item.Correct {
			item.EarnedPoints = q.Points
		}
		if awarded, ok := overrides[i]; ok {
			if awarded > q.Points {
				awarded = q.Points
			}
			item.EarnedPoints = awarded
			item.Overridden = true
		}
		questions = append(questions, item)
	}
	resp.Questions = questions
	return resp, nil
}

func buildSubmissionList(submissions []*models.Submission, total int64, filters repositories.SubmissionFilters) *SubmissionListResponse {
	responses := make([]*SubmissionResponse, len(submissions))
	for i, submission := range submissions {
		responses[i] = &SubmissionResponse{
			Submission:  submission,
			ExamTitle:   submission.Exam.Title,
			StudentName: submission.Student.FullName,
		}
	}
	page := 1
	if filters.Limit > 0 {
		page = filters.Offset/filters.Limit + 1
	}
	return &SubmissionListResponse{
		Submissions: responses,
		Total:       total,
		Page:        page,
		Size:        len(responses),
	}
}

func decodeMarks(data []byte) (map[int]bool, error) {
	if len(data) == 0 {
		return map[int]bool{}, nil
	}
	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("invalid mark list: %w", err)
	}
	return intSet(values), nil
}
