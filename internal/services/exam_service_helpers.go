package services

import (
	"context"
	"fmt"

	"github.com/quizdesk/exam-service/internal/events"
	"github.com/quizdesk/exam-service/internal/models"
	"github.com/quizdesk/exam-service/internal/repositories"
	"github.com/quizdesk/exam-service/internal/validator"
)

// getOwnedExam loads an exam and verifies the caller owns it.
func (s *examService) getOwnedExam(ctx context.Context, id uint, userID, action string) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	if exam.CreatedBy != userID {
		return nil, NewPermissionError(userID, id, "exam", action, "not the exam owner")
	}
	return exam, nil
}

func (s *examService) getOwnedExamWithQuestions(ctx context.Context, id uint, userID, action string) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByIDWithQuestions(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam with questions: %w", err)
	}
	if exam.CreatedBy != userID {
		return nil, NewPermissionError(userID, id, "exam", action, "not the exam owner")
	}
	return exam, nil
}

// checkReadAccess allows the owner always; everyone else only sees published
// active exams.
func (s *examService) checkReadAccess(ctx context.Context, exam *models.Exam, userID string) error {
	if exam.CreatedBy == userID {
		return nil
	}
	if !exam.Published || exam.Status != models.ExamStatusActive {
		return ErrExamNotFound
	}
	return nil
}

func (s *examService) buildExamResponse(ctx context.Context, exam *models.Exam, userID string) *ExamResponse {
	isOwner := exam.CreatedBy == userID
	return &ExamResponse{
		Exam:      exam,
		CanEdit:   isOwner,
		CanDelete: isOwner,
		CanTake:   !isOwner && exam.Published && exam.Status == models.ExamStatusActive,
	}
}

func (s *examService) buildExamListResponse(ctx context.Context, exams []*models.Exam, total int64, filters repositories.ExamFilters, userID string) *ExamListResponse {
	responses := make([]*ExamResponse, len(exams))
	for i, exam := range exams {
		responses[i] = s.buildExamResponse(ctx, exam, userID)
	}
	page := 1
	if filters.Limit > 0 {
		page = filters.Offset/filters.Limit + 1
	}
	return &ExamListResponse{
		Exams: responses,
		Total: total,
		Page:  page,
		Size:  len(responses),
	}
}

// publishEvent sends a domain event best effort; a broker failure never fails
// the write that produced it.
func (s *examService) publishEvent(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event", "event_type", event.Type, "error", err)
	}
}

// buildExamQuestions converts request questions into models in canonical
// order. Position is the slice index.
func buildExamQuestions(examID uint, reqs []ExamQuestionRequest) ([]models.ExamQuestion, error) {
	questions := make([]models.ExamQuestion, len(reqs))
	for i, q := range reqs {
		question := models.ExamQuestion{
			ExamID:       examID,
			Position:     i,
			Text:         q.Text,
			ImageURL:     q.ImageURL,
			CorrectIndex: q.CorrectIndex,
			Points:       q.Points,
			Explanation:  q.Explanation,
		}
		if err := question.SetOptions(q.Options); err != nil {
			return nil, NewValidationError(fmt.Sprintf("question %d options", i), err)
		}
		questions[i] = question
	}
	return questions, nil
}

// applyExamUpdate merges non-nil request fields into the exam.
func applyExamUpdate(exam *models.Exam, req *UpdateExamRequest) {
	if req.Title != nil {
		exam.Title = *req.Title
	}
	if req.Description != nil {
		exam.Description = req.Description
	}
	if req.Instructions != nil {
		exam.Instructions = req.Instructions
	}
	if req.Duration != nil {
		exam.Duration = *req.Duration
	}
	if req.PassingScore != nil {
		exam.PassingScore = *req.PassingScore
	}
	if req.Category != nil {
		exam.Category = *req.Category
	}
	if req.Difficulty != nil {
		exam.Difficulty = validator.DifficultyOrDefault(*req.Difficulty)
	}
	if req.Visibility != nil {
		exam.Visibility = visibilityOrDefault(*req.Visibility)
	}
	if req.ShuffleOrder != nil {
		exam.ShuffleOrder = *req.ShuffleOrder
	}
	if req.AllowReattempts != nil {
		exam.AllowReattempts = *req.AllowReattempts
	}
}

func visibilityOrDefault(v string) models.ExamVisibility {
	if v == string(models.VisibilityPublic) {
		return models.VisibilityPublic
	}
	return models.VisibilityPrivate
}

// stripAnswerKey removes grading data from an exam document before it is
// returned to a student.
func stripAnswerKey(exam *models.Exam) {
	for i := range exam.Questions {
		exam.Questions[i].CorrectIndex = -1
		exam.Questions[i].Explanation = nil
	}
}
