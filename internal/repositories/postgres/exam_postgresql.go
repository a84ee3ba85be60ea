package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/quizdesk/exam-service/internal/cache"
	"github.com/quizdesk/exam-service/internal/models"
	"github.com/quizdesk/exam-service/internal/repositories"
)

type ExamPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewExamPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.ExamRepository {
	return &ExamPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (e *ExamPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return e.db
}

// Create persists a new exam together with its question list.
func (e *ExamPostgreSQL) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	if err := e.getDB(tx).WithContext(ctx).Create(exam).Error; err != nil {
		return fmt.Errorf("failed to create exam: %w", err)
	}

	cache.InvalidateExamCache(ctx, e.cacheManager, exam.ID, exam.CreatedBy)
	return nil
}

// GetByID retrieves an exam without its question list, cached.
func (e *ExamPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	var exam models.Exam
	cacheKey := fmt.Sprintf("id:%d", id)

	err := e.cacheManager.Exam.CacheOrExecute(ctx, cacheKey, &exam, cache.ExamCacheConfig.TTL, func() (interface{}, error) {
		var dbExam models.Exam
		if err := e.getDB(tx).WithContext(ctx).Preload("Creator").First(&dbExam, id).Error; err != nil {
			return nil, err
		}
		return &dbExam, nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	return &exam, nil
}

// GetByIDWithQuestions retrieves an exam with its questions in canonical
// order, cached. Computed point totals are filled in.
func (e *ExamPostgreSQL) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	var exam models.Exam
	cacheKey := fmt.Sprintf("details:%d", id)

	err := e.cacheManager.Exam.CacheOrExecute(ctx, cacheKey, &exam, cache.ExamCacheConfig.TTL, func() (interface{}, error) {
		var dbExam models.Exam
		err := e.getDB(tx).WithContext(ctx).
			Preload("Creator").
			Preload("Questions", func(db *gorm.DB) *gorm.DB {
				return db.Order("exam_questions.position ASC")
			}).
			First(&dbExam, id).Error
		if err != nil {
			return nil, err
		}

		dbExam.QuestionsCount = len(dbExam.Questions)
		dbExam.TotalPoints = dbExam.SumPoints()
		return &dbExam, nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get exam details: %w", err)
	}

	return &exam, nil
}

// Update saves exam metadata and invalidates cache.
func (e *ExamPostgreSQL) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	result := e.getDB(tx).WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ?", exam.ID).
		Select("title", "description", "instructions", "duration", "passing_score",
			"category", "difficulty", "visibility", "shuffle_order", "allow_reattempts").
		Updates(exam)
	if result.Error != nil {
		return fmt.Errorf("failed to update exam: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	cache.InvalidateExamCache(ctx, e.cacheManager, exam.ID, exam.CreatedBy)
	return nil
}

// UpdateStatus moves an exam between lifecycle states.
func (e *ExamPostgreSQL) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.ExamStatus, published bool) error {
	result := e.getDB(tx).WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":    status,
			"published": published,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update exam status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	cache.SafeDelete(ctx, e.cacheManager.Exam, fmt.Sprintf("id:%d", id), fmt.Sprintf("details:%d", id))
	cache.SafeInvalidatePattern(ctx, e.cacheManager.Exam, "list:*")
	return nil
}

// Delete soft-deletes an exam.
func (e *ExamPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	result := e.getDB(tx).WithContext(ctx).Delete(&models.Exam{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete exam: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	cache.SafeDelete(ctx, e.cacheManager.Exam, fmt.Sprintf("id:%d", id), fmt.Sprintf("details:%d", id))
	cache.SafeInvalidatePattern(ctx, e.cacheManager.Exam, "list:*")
	cache.SafeInvalidatePattern(ctx, e.cacheManager.Exam, "creator:*")
	return nil
}

// ReplaceQuestions swaps the exam's whole question list. Positions are
// reassigned from slice order so the canonical index stays dense.
func (e *ExamPostgreSQL) ReplaceQuestions(ctx context.Context, tx *gorm.DB, examID uint, questions []models.ExamQuestion) error {
	db := e.getDB(tx).WithContext(ctx)

	if err := db.Where("exam_id = ?", examID).Delete(&models.ExamQuestion{}).Error; err != nil {
		return fmt.Errorf("failed to clear exam questions: %w", err)
	}

	for i := range questions {
		questions[i].ExamID = examID
		questions[i].Position = i
		questions[i].ID = 0
	}

	if len(questions) > 0 {
		if err := db.Create(&questions).Error; err != nil {
			return fmt.Errorf("failed to insert exam questions: %w", err)
		}
	}

	cache.SafeDelete(ctx, e.cacheManager.Exam, fmt.Sprintf("details:%d", examID))
	return nil
}

// AppendQuestions adds questions at the end of the exam's canonical order.
func (e *ExamPostgreSQL) AppendQuestions(ctx context.Context, tx *gorm.DB, examID uint, questions []models.ExamQuestion) error {
	if len(questions) == 0 {
		return nil
	}

	db := e.getDB(tx).WithContext(ctx)

	var maxPos *int
	if err := db.Model(&models.ExamQuestion{}).
		Where("exam_id = ?", examID).
		Select("MAX(position)").
		Scan(&maxPos).Error; err != nil {
		return fmt.Errorf("failed to read question positions: %w", err)
	}

	next := 0
	if maxPos != nil {
		next = *maxPos + 1
	}

	for i := range questions {
		questions[i].ExamID = examID
		questions[i].Position = next + i
		questions[i].ID = 0
	}

	if err := db.Create(&questions).Error; err != nil {
		return fmt.Errorf("failed to append exam questions: %w", err)
	}

	cache.SafeDelete(ctx, e.cacheManager.Exam, fmt.Sprintf("details:%d", examID))
	return nil
}

// GetQuestions returns the exam's questions in canonical order.
func (e *ExamPostgreSQL) GetQuestions(ctx context.Context, tx *gorm.DB, examID uint) ([]models.ExamQuestion, error) {
	var questions []models.ExamQuestion
	err := e.getDB(tx).WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("position ASC").
		Find(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get exam questions: %w", err)
	}
	return questions, nil
}

// List returns exams matching the filters with a total count.
func (e *ExamPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	db := e.getDB(tx).WithContext(ctx).Model(&models.Exam{})
	db = ApplyExamFilters(db, filters)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count exams: %w", err)
	}

	var exams []*models.Exam
	db = ApplyPaginationAndSort(db, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := db.Preload("Creator").Find(&exams).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list exams: %w", err)
	}

	return exams, total, nil
}

// GetByCreator returns a teacher's exams.
func (e *ExamPostgreSQL) GetByCreator(ctx context.Context, tx *gorm.DB, creatorID string, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	filters.CreatedBy = &creatorID
	return e.List(ctx, tx, filters)
}

// GetAvailableForStudent returns published active public exams the student can
// browse. Private exams stay out of the listing; they remain reachable by
// direct id. The service layer resolves the student's own attempt state.
func (e *ExamPostgreSQL) GetAvailableForStudent(ctx context.Context, tx *gorm.DB, studentID string, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	published := true
	active := models.ExamStatusActive
	public := models.VisibilityPublic
	filters.Published = &published
	filters.Status = &active
	filters.Visibility = &public
	return e.List(ctx, tx, filters)
}

// ExistsByTitle checks title uniqueness within one creator's exams.
func (e *ExamPostgreSQL) ExistsByTitle(ctx context.Context, tx *gorm.DB, title, creatorID string, excludeID *uint) (bool, error) {
	db := e.getDB(tx).WithContext(ctx).
		Model(&models.Exam{}).
		Where("title = ? AND created_by = ?", title, creatorID)
	if excludeID != nil {
		db = db.Where("id <> ?", *excludeID)
	}

	var count int64
	if err := db.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check exam title: %w", err)
	}
	return count > 0, nil
}

// HasAttempts reports whether any attempt exists for the exam.
func (e *ExamPostgreSQL) HasAttempts(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	var count int64
	err := e.getDB(tx).WithContext(ctx).
		Model(&models.ExamAttempt{}).
		Where("exam_id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count exam attempts: %w", err)
	}
	return count > 0, nil
}
