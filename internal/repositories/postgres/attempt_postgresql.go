package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/quizdesk/exam-service/internal/models"
	"github.com/quizdesk/exam-service/internal/repositories"
)

// AttemptPostgreSQL persists live attempt state. Attempts are never cached:
// the row is the single source of truth for the submission claim.
type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{db: db}
}

func (a *AttemptPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	if err := a.getDB(tx).WithContext(ctx).Create(attempt).Error; err != nil {
		return fmt.Errorf("failed to create attempt: %w", err)
	}
	return nil
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) {
	var attempt models.ExamAttempt
	if err := a.getDB(tx).WithContext(ctx).First(&attempt, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByIDWithExam(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) {
	var attempt models.ExamAttempt
	err := a.getDB(tx).WithContext(ctx).
		Preload("Exam").
		Preload("Exam.Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("exam_questions.position ASC")
		}).
		First(&attempt, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get attempt with exam: %w", err)
	}
	return &attempt, nil
}

// GetInProgress finds the student's open attempt on an exam, if any.
func (a *AttemptPostgreSQL) GetInProgress(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (*models.ExamAttempt, error) {
	var attempt models.ExamAttempt
	err := a.getDB(tx).WithContext(ctx).
		Where("exam_id = ? AND student_id = ? AND status = ?", examID, studentID, models.AttemptInProgress).
		Order("created_at DESC").
		First(&attempt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get in-progress attempt: %w", err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	db := a.getDB(tx).WithContext(ctx).Model(&models.ExamAttempt{})

	if filters.Status != nil {
		db = db.Where("status = ?", *filters.Status)
	}
	if filters.ExamID != nil {
		db = db.Where("exam_id = ?", *filters.ExamID)
	}
	if filters.StudentID != nil {
		db = db.Where("student_id = ?", *filters.StudentID)
	}
	if filters.DateFrom != nil {
		db = db.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		db = db.Where("created_at <= ?", *filters.DateTo)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count attempts: %w", err)
	}

	var attempts []*models.ExamAttempt
	db = db.Order("created_at DESC")
	if filters.Limit > 0 {
		db = db.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		db = db.Offset(filters.Offset)
	}
	if err := db.Find(&attempts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts: %w", err)
	}

	return attempts, total, nil
}

// SaveState persists the mutable attempt state: answers, bookmarks, flags,
// position and the advisory time snapshot. Only in-progress rows accept it,
// so a save racing a submission cannot resurrect a finished attempt.
func (a *AttemptPostgreSQL) SaveState(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	result := a.getDB(tx).WithContext(ctx).
		Model(&models.ExamAttempt{}).
		Where("id = ? AND status = ?", attempt.ID, models.AttemptInProgress).
		Updates(map[string]interface{}{
			"answers":          attempt.Answers,
			"bookmarked":       attempt.Bookmarked,
			"flagged":          attempt.Flagged,
			"current_position": attempt.CurrentPosition,
			"time_remaining":   attempt.TimeRemaining,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to save attempt state: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (a *AttemptPostgreSQL) UpdateTimeRemaining(ctx context.Context, tx *gorm.DB, id uint, seconds int) error {
	err := a.getDB(tx).WithContext(ctx).
		Model(&models.ExamAttempt{}).
		Where("id = ? AND status = ?", id, models.AttemptInProgress).
		Update("time_remaining", seconds).Error
	if err != nil {
		return fmt.Errorf("failed to update time remaining: %w", err)
	}
	return nil
}

// ClaimSubmitting performs the one-shot submission claim: a conditional
// status transition only one caller can win, whether that caller is the
// student's submit, a second tab, or the timeout sweeper.
func (a *AttemptPostgreSQL) ClaimSubmitting(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	result := a.getDB(tx).WithContext(ctx).
		Model(&models.ExamAttempt{}).
		Where("id = ? AND status = ?", id, models.AttemptInProgress).
		Update("status", models.AttemptSubmitting)
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim submission: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// ReleaseClaim returns a failed claim to in_progress.
func (a *AttemptPostgreSQL) ReleaseClaim(ctx context.Context, tx *gorm.DB, id uint) error {
	err := a.getDB(tx).WithContext(ctx).
		Model(&models.ExamAttempt{}).
		Where("id = ? AND status = ?", id, models.AttemptSubmitting).
		Update("status", models.AttemptInProgress).Error
	if err != nil {
		return fmt.Errorf("failed to release submission claim: %w", err)
	}
	return nil
}

// MarkCompleted finishes a claimed attempt.
func (a *AttemptPostgreSQL) MarkCompleted(ctx context.Context, tx *gorm.DB, id uint, completedAt time.Time) error {
	result := a.getDB(tx).WithContext(ctx).
		Model(&models.ExamAttempt{}).
		Where("id = ? AND status = ?", id, models.AttemptSubmitting).
		Updates(map[string]interface{}{
			"status":         models.AttemptCompleted,
			"completed_at":   completedAt,
			"time_remaining": 0,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark attempt completed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (a *AttemptPostgreSQL) CountByStudent(ctx context.Context, tx *gorm.DB, examID uint, studentID string, status *models.AttemptStatus) (int64, error) {
	db := a.getDB(tx).WithContext(ctx).
		Model(&models.ExamAttempt{}).
		Where("exam_id = ? AND student_id = ?", examID, studentID)
	if status != nil {
		db = db.Where("status = ?", *status)
	}

	var count int64
	if err := db.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return count, nil
}

// ListExpired finds attempts whose deadline passed but are still marked
// in_progress, for the background timeout sweeper.
func (a *AttemptPostgreSQL) ListExpired(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) ([]*models.ExamAttempt, error) {
	var attempts []*models.ExamAttempt
	db := a.getDB(tx).WithContext(ctx).
		Where("status = ? AND ends_at IS NOT NULL AND ends_at <= ?", models.AttemptInProgress, cutoff).
		Order("ends_at ASC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	if err := db.Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to list expired attempts: %w", err)
	}
	return attempts, nil
}
