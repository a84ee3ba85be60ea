package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/quizdesk/exam-service/internal/models"
	"github.com/quizdesk/exam-service/internal/repositories"
	"github.com/quizdesk/exam-service/internal/validator"
)

type poolService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewPoolService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator) PoolService {
	return &poolService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
	}
}

func (s *poolService) Create(ctx context.Context, req *CreatePoolEntryRequest, teacherID string) (*PoolEntryResponse, error) {
	s.logger.Info("Creating pool question", "teacher_id", teacherID)

	if err := s.validator.Validate(req); err != nil {
		return nil, NewValidationError("invalid pool question", err)
	}
	if errs := validator.ValidateQuestion("question", req.Text, req.Options, req.CorrectIndex); len(errs) > 0 {
		return nil, NewValidationError("invalid pool question", errs)
	}

	isTeacher, err := s.repo.User().HasRole(ctx, s.db, teacherID, models.RoleTeacher)
	if err != nil {
		return nil, fmt.Errorf("failed to check role: %w", err)
	}
	if !isTeacher {
		return nil, NewPermissionError(teacherID, 0, "pool_entry", "create", "teacher role required")
	}

	entry := &models.QuestionPoolEntry{
		TeacherID:    teacherID,
		Text:         req.Text,
		ImageURL:     req.ImageURL,
		CorrectIndex: req.CorrectIndex,
		Points:       req.Points,
		Explanation:  req.Explanation,
		Category:     req.Category,
		Difficulty:   validator.DifficultyOrDefault(req.Difficulty),
	}
	optionsJSON, err := models.EncodeJSON(req.Options)
	if err != nil {
		return nil, err
	}
	entry.Options = optionsJSON

	if err := s.repo.Pool().Create(ctx, s.db, entry); err != nil {
		return nil, fmt.Errorf("failed to create pool question: %w", err)
	}

	s.logger.Info("Pool question created", "entry_id", entry.ID, "teacher_id", teacherID)
	return s.buildEntryResponse(entry, teacherID)
}

func (s *poolService) GetByID(ctx context.Context, id uint, userID string) (*PoolEntryResponse, error) {
	entry, err := s.getOwnedEntry(ctx, id, userID, "read")
	if err != nil {
		return nil, err
	}
	return s.buildEntryResponse(entry, userID)
}

func (s *poolService) Update(ctx context.Context, id uint, req *UpdatePoolEntryRequest, userID string) (*PoolEntryResponse, error) {
	s.logger.Info("Updating pool question", "entry_id", id, "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, NewValidationError("invalid pool question update", err)
	}

	entry, err := s.getOwnedEntry(ctx, id, userID, "update")
	if err != nil {
		return nil, err
	}

	if err := applyPoolUpdate(entry, req); err != nil {
		return nil, err
	}

	// Re-check the structural rules against the merged content.
	options, err := entry.OptionList()
	if err != nil {
		return nil, err
	}
	if errs := validator.ValidateQuestion("question", entry.Text, options, entry.CorrectIndex); len(errs) > 0 {
		return nil, NewValidationError("invalid pool question", errs)
	}

	if err := s.repo.Pool().Update(ctx, s.db, entry); err != nil {
		return nil, fmt.Errorf("failed to update pool question: %w", err)
	}
	return s.buildEntryResponse(entry, userID)
}

func (s *poolService) Delete(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Deleting pool question", "entry_id", id, "user_id", userID)

	if _, err := s.getOwnedEntry(ctx, id, userID, "delete"); err != nil {
		return err
	}
	if err := s.repo.Pool().Delete(ctx, s.db, id); err != nil {
		return fmt.Errorf("failed to delete pool question: %w", err)
	}
	return nil
}

func (s *poolService) List(ctx context.Context, filters repositories.PoolFilters, teacherID string) (*PoolListResponse, error) {
	// The pool is private to its owner.
	filters.TeacherID = &teacherID

	entries, total, err := s.repo.Pool().List(ctx, s.db, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list pool questions: %w", err)
	}

	responses := make([]*PoolEntryResponse, 0, len(entries))
	for _, entry := range entries {
		resp, err := s.buildEntryResponse(entry, teacherID)
		if err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}

	categories, err := s.repo.Pool().Categories(ctx, s.db, teacherID)
	if err != nil {
		s.logger.Error("Failed to load pool categories", "teacher_id", teacherID, "error", err)
		categories = nil
	}

	page := 1
	if filters.Limit > 0 {
		page = filters.Offset/filters.Limit + 1
	}
	return &PoolListResponse{
		Entries:    responses,
		Total:      total,
		Page:       page,
		Size:       len(responses),
		Categories: categories,
	}, nil
}

func (s *poolService) Categories(ctx context.Context, teacherID string) ([]string, error) {
	categories, err := s.repo.Pool().Categories(ctx, s.db, teacherID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pool categories: %w", err)
	}
	return categories, nil
}

// ===== HELPERS =====

func (s *poolService) getOwnedEntry(ctx context.Context, id uint, userID, action string) (*models.QuestionPoolEntry, error) {
	entry, err := s.repo.Pool().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrPoolEntryNotFound
		}
		return nil, fmt.Errorf("failed to get pool question: %w", err)
	}
	if entry.TeacherID != userID {
		return nil, NewPermissionError(userID, id, "pool_entry", action, "not owned by teacher")
	}
	return entry, nil
}

func (s *poolService) buildEntryResponse(entry *models.QuestionPoolEntry, userID string) (*PoolEntryResponse, error) {
	options, err := entry.OptionList()
	if err != nil {
		return nil, err
	}
	return &PoolEntryResponse{
		QuestionPoolEntry: entry,
		OptionTexts:       options,
		CanEdit:           entry.TeacherID == userID,
	}, nil
}

func applyPoolUpdate(entry *models.QuestionPoolEntry, req *UpdatePoolEntryRequest) error {
	if req.Text != nil {
		entry.Text = *req.Text
	}
	if req.ImageURL != nil {
		entry.ImageURL = req.ImageURL
	}
	if req.Options != nil {
		optionsJSON, err := models.EncodeJSON(req.Options)
		if err != nil {
			return err
		}
		entry.Options = optionsJSON
	}
	if req.CorrectIndex != nil {
		entry.CorrectIndex = *req.CorrectIndex
	}
	if req.Points != nil {
		entry.Points = *req.Points
	}
	if req.Explanation != nil {
		entry.Explanation = req.Explanation
	}
	if req.Category != nil {
		entry.Category = *req.Category
	}
	if req.Difficulty != nil {
		entry.Difficulty = validator.DifficultyOrDefault(*req.Difficulty)
	}
	return nil
}
