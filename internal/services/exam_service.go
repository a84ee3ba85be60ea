package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/quizdesk/exam-service/internal/events"
	"github.com/quizdesk/exam-service/internal/models"
	"github.com/quizdesk/exam-service/internal/repositories"
	"github.com/quizdesk/exam-service/internal/validator"
)

type examService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	business  *validator.BusinessValidator
	publisher events.EventPublisher
}

func NewExamService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher) ExamService {
	return &examService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
		business:  validator.NewBusinessValidator(v),
		publisher: publisher,
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *examService) Create(ctx context.Context, req *CreateExamRequest, creatorID string) (*ExamResponse, error) {
	s.logger.Info("Creating exam", "title", req.Title, "creator_id", creatorID)

	// Validate request
	if err := s.validator.Validate(req); err != nil {
		return nil, NewValidationError("invalid exam", err)
	}
	if errs := s.business.ValidateExamCreate(req); len(errs) > 0 {
		return nil, NewValidationError("invalid exam", errs)
	}

	// Only teachers create exams
	isTeacher, err := s.repo.User().HasRole(ctx, s.db, creatorID, models.RoleTeacher)
	if err != nil {
		return nil, fmt.Errorf("failed to check creator role: %w", err)
	}
	if !isTeacher {
		return nil, NewPermissionError(creatorID, 0, "exam", "create", "teacher role required")
	}

	// Duplicate title check within the creator's exams
	exists, err := s.repo.Exam().ExistsByTitle(ctx, s.db, req.Title, creatorID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check title: %w", err)
	}
	if exists {
		return nil, ErrExamTitleConflict
	}

	exam := &models.Exam{
		Title:           req.Title,
		Description:     req.Description,
		Instructions:    req.Instructions,
		Duration:        req.Duration,
		PassingScore:    req.PassingScore,
		Category:        req.Category,
		Difficulty:      validator.DifficultyOrDefault(req.Difficulty),
		Status:          models.ExamStatusDraft,
		Visibility:      visibilityOrDefault(req.Visibility),
		ShuffleOrder:    req.ShuffleOrder,
		AllowReattempts: req.AllowReattempts,
		CreatedBy:       creatorID,
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Exam().Create(ctx, nil, exam); err != nil {
			return fmt.Errorf("failed to create exam: %w", err)
		}
		if len(req.Questions) > 0 {
			questions, err := buildExamQuestions(exam.ID, req.Questions)
			if err != nil {
				return err
			}
			if err := txRepo.Exam().ReplaceQuestions(ctx, nil, exam.ID, questions); err != nil {
				return fmt.Errorf("failed to create questions: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Exam created", "exam_id", exam.ID, "creator_id", creatorID)
	return s.GetByIDWithQuestions(ctx, exam.ID, creatorID)
}

func (s *examService) GetByID(ctx context.Context, id uint, userID string) (*ExamResponse, error) {
	exam, err := s.repo.Exam().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	if err := s.checkReadAccess(ctx, exam, userID); err != nil {
		return nil, err
	}
	return s.buildExamResponse(ctx, exam, userID), nil
}

func (s *examService) GetByIDWithQuestions(ctx context.Context, id uint, userID string) (*ExamResponse, error) {
	exam, err := s.repo.Exam().GetByIDWithQuestions(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam with questions: %w", err)
	}
	if err := s.checkReadAccess(ctx, exam, userID); err != nil {
		return nil, err
	}

	resp := s.buildExamResponse(ctx, exam, userID)
	// Students never see grading keys.
	if exam.CreatedBy != userID {
		stripAnswerKey(resp.Exam)
	}
	return resp, nil
}

func (s *examService) Update(ctx context.Context, id uint, req *UpdateExamRequest, userID string) (*ExamResponse, error) {
	s.logger.Info("Updating exam", "exam_id", id, "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, NewValidationError("invalid exam update", err)
	}

	exam, err := s.getOwnedExam(ctx, id, userID, "update")
	if err != nil {
		return nil, err
	}

	if req.Title != nil && *req.Title != exam.Title {
		exists, err := s.repo.Exam().ExistsByTitle(ctx, s.db, *req.Title, userID, &id)
		if err != nil {
			return nil, fmt.Errorf("failed to check title: %w", err)
		}
		if exists {
			return nil, ErrExamTitleConflict
		}
	}

	applyExamUpdate(exam, req)
	if err := s.repo.Exam().Update(ctx, s.db, exam); err != nil {
		return nil, fmt.Errorf("failed to update exam: %w", err)
	}

	return s.GetByIDWithQuestions(ctx, id, userID)
}

func (s *examService) Delete(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Deleting exam", "exam_id", id, "user_id", userID)

	exam, err := s.getOwnedExam(ctx, id, userID, "delete")
	if err != nil {
		return err
	}

	hasAttempts, err := s.repo.Exam().HasAttempts(ctx, s.db, id)
	if err != nil {
		return fmt.Errorf("failed to check attempts: %w", err)
	}
	if hasAttempts {
		return ErrExamHasAttempts
	}
	if errs := s.business.ValidateDeletePermission(hasAttempts, exam.Status); len(errs) > 0 {
		return NewValidationError("exam cannot be deleted", errs)
	}

	if err := s.repo.Exam().Delete(ctx, s.db, id); err != nil {
		return fmt.Errorf("failed to delete exam: %w", err)
	}

	s.logger.Info("Exam deleted", "exam_id", id)
	return nil
}

// ===== LIST OPERATIONS =====

func (s *examService) List(ctx context.Context, filters repositories.ExamFilters, userID string) (*ExamListResponse, error) {
	isTeacher, err := s.repo.User().HasRole(ctx, s.db, userID, models.RoleTeacher)
	if err != nil {
		return nil, fmt.Errorf("failed to check role: %w", err)
	}
	if isTeacher {
		return s.GetByCreator(ctx, userID, filters)
	}
	return s.GetAvailable(ctx, userID, filters)
}

func (s *examService) GetByCreator(ctx context.Context, creatorID string, filters repositories.ExamFilters) (*ExamListResponse, error) {
	exams, total, err := s.repo.Exam().GetByCreator(ctx, s.db, creatorID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}
	return s.buildExamListResponse(ctx, exams, total, filters, creatorID), nil
}

func (s *examService) GetAvailable(ctx context.Context, studentID string, filters repositories.ExamFilters) (*ExamListResponse, error) {
	exams, total, err := s.repo.Exam().GetAvailableForStudent(ctx, s.db, studentID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list available exams: %w", err)
	}
	resp := s.buildExamListResponse(ctx, exams, total, filters, studentID)
	for _, e := range resp.Exams {
		stripAnswerKey(e.Exam)
	}
	return resp, nil
}

// ===== LIFECYCLE =====

func (s *examService) Publish(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Publishing exam", "exam_id", id, "user_id", userID)

	exam, err := s.getOwnedExamWithQuestions(ctx, id, userID, "publish")
	if err != nil {
		return err
	}

	if errs := s.business.ValidatePublish(exam); len(errs) > 0 {
		return NewValidationError("exam cannot be published", errs)
	}
	if errs := s.business.ValidateStatusTransition(exam.Status, models.ExamStatusActive); len(errs) > 0 {
		return NewValidationError("invalid status transition", errs)
	}

	if err := s.repo.Exam().UpdateStatus(ctx, s.db, id, models.ExamStatusActive, true); err != nil {
		return fmt.Errorf("failed to publish exam: %w", err)
	}

	s.publishEvent(ctx, events.NewEvent(events.EventExamPublished, events.ExamPublishedEvent{
		ExamID:    exam.ID,
		Title:     exam.Title,
		TeacherID: exam.CreatedBy,
		Duration:  exam.Duration,
	}))

	s.logger.Info("Exam published", "exam_id", id)
	return nil
}

func (s *examService) UpdateStatus(ctx context.Context, id uint, req *UpdateStatusRequest, userID string) error {
	if err := s.validator.Validate(req); err != nil {
		return NewValidationError("invalid status request", err)
	}

	// Publishing runs its own checks.
	if req.Status == models.ExamStatusActive {
		return s.Publish(ctx, id, userID)
	}

	exam, err := s.getOwnedExam(ctx, id, userID, "update_status")
	if err != nil {
		return err
	}
	if errs := s.business.ValidateStatusTransition(exam.Status, req.Status); len(errs) > 0 {
		return NewValidationError("invalid status transition", errs)
	}

	published := exam.Published && req.Status != models.ExamStatusArchived
	if err := s.repo.Exam().UpdateStatus(ctx, s.db, id, req.Status, published); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	s.logger.Info("Exam status updated", "exam_id", id, "status", req.Status)
	return nil
}

func (s *examService) Archive(ctx context.Context, id uint, userID string) error {
	return s.UpdateStatus(ctx, id, &UpdateStatusRequest{Status: models.ExamStatusArchived}, userID)
}

// ===== QUESTION LIST MANAGEMENT =====

func (s *examService) ReplaceQuestions(ctx context.Context, examID uint, questions []ExamQuestionRequest, userID string) error {
	s.logger.Info("Replacing exam questions", "exam_id", examID, "count", len(questions))

	exam, err := s.getOwnedExam(ctx, examID, userID, "edit_questions")
	if err != nil {
		return err
	}
	// Question content is frozen once students can take the exam.
	if exam.Status != models.ExamStatusDraft {
		return NewValidationError("questions can only be edited on a draft exam", nil)
	}

	for i, q := range questions {
		if err := s.validator.Validate(&q); err != nil {
			return NewValidationError(fmt.Sprintf("question %d invalid", i), err)
		}
		if errs := validator.ValidateQuestion(fmt.Sprintf("questions[%d]", i), q.Text, q.Options, q.CorrectIndex); len(errs) > 0 {
			return NewValidationError(fmt.Sprintf("question %d invalid", i), errs)
		}
	}

	items, err := buildExamQuestions(examID, questions)
	if err != nil {
		return err
	}
	if err := s.repo.Exam().ReplaceQuestions(ctx, s.db, examID, items); err != nil {
		return fmt.Errorf("failed to replace questions: %w", err)
	}
	return nil
}

func (s *examService) ImportFromPool(ctx context.Context, examID uint, req *ImportFromPoolRequest, userID string) (int, error) {
	s.logger.Info("Importing pool questions", "exam_id", examID, "count", len(req.EntryIDs))

	if err := s.validator.Validate(req); err != nil {
		return 0, NewValidationError("invalid import request", err)
	}

	exam, err := s.getOwnedExam(ctx, examID, userID, "import_questions")
	if err != nil {
		return 0, err
	}
	if exam.Status != models.ExamStatusDraft {
		return 0, NewValidationError("questions can only be imported into a draft exam", nil)
	}

	entries, err := s.repo.Pool().GetByIDs(ctx, s.db, req.EntryIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to load pool questions: %w", err)
	}
	if len(entries) != len(req.EntryIDs) {
		return 0, ErrPoolEntryNotFound
	}
	for _, e := range entries {
		if e.TeacherID != userID {
			return 0, NewPermissionError(userID, e.ID, "pool_entry", "import", "not owned by teacher")
		}
	}

	questions := make([]models.ExamQuestion, len(entries))
	for i, e := range entries {
		questions[i] = models.ExamQuestion{
			ExamID:       examID,
			Text:         e.Text,
			ImageURL:     e.ImageURL,
			Options:      e.Options,
			CorrectIndex: e.CorrectIndex,
			Points:       e.Points,
			Explanation:  e.Explanation,
		}
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Exam().AppendQuestions(ctx, nil, examID, questions); err != nil {
			return fmt.Errorf("failed to append questions: %w", err)
		}
		if err := txRepo.Pool().IncrementUsage(ctx, nil, req.EntryIDs); err != nil {
			return fmt.Errorf("failed to update usage counts: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(questions), nil
}

// ===== STATISTICS =====

func (s *examService) GetStats(ctx context.Context, id uint, userID string) (*repositories.ExamStats, error) {
	if _, err := s.getOwnedExam(ctx, id, userID, "view_stats"); err != nil {
		return nil, err
	}
	stats, err := s.repo.Submission().GetExamStats(ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam stats: %w", err)
	}
	return stats, nil
}

// ===== PERMISSION CHECKS =====

func (s *examService) CanAccess(ctx context.Context, examID uint, userID string) (bool, error) {
	exam, err := s.repo.Exam().GetByID(ctx, s.db, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, ErrExamNotFound
		}
		return false, fmt.Errorf("failed to get exam: %w", err)
	}
	return s.checkReadAccess(ctx, exam, userID) == nil, nil
}

func (s *examService) CanEdit(ctx context.Context, examID uint, userID string) (bool, error) {
	exam, err := s.repo.Exam().GetByID(ctx, s.db, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, ErrExamNotFound
		}
		return false, fmt.Errorf("failed to get exam: %w", err)
	}
	return exam.CreatedBy == userID, nil
}
