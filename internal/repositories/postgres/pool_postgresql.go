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

type PoolPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewPoolPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.PoolRepository {
	return &PoolPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (p *PoolPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return p.db
}

func (p *PoolPostgreSQL) Create(ctx context.Context, tx *gorm.DB, entry *models.QuestionPoolEntry) error {
	if err := p.getDB(tx).WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create pool entry: %w", err)
	}

	cache.InvalidatePoolCache(ctx, p.cacheManager, entry.ID, entry.TeacherID)
	return nil
}

// CreateBatch inserts imported entries in one statement.
func (p *PoolPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, entries []*models.QuestionPoolEntry) error {
	if len(entries) == 0 {
		return nil
	}

	if err := p.getDB(tx).WithContext(ctx).Create(&entries).Error; err != nil {
		return fmt.Errorf("failed to create pool entries: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, p.cacheManager.Pool, fmt.Sprintf("teacher:%s:*", entries[0].TeacherID))
	return nil
}

func (p *PoolPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuestionPoolEntry, error) {
	var entry models.QuestionPoolEntry
	if err := p.getDB(tx).WithContext(ctx).First(&entry, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get pool entry: %w", err)
	}
	return &entry, nil
}

func (p *PoolPostgreSQL) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.QuestionPoolEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var entries []*models.QuestionPoolEntry
	err := p.getDB(tx).WithContext(ctx).
		Where("id IN ?", ids).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get pool entries: %w", err)
	}
	return entries, nil
}

func (p *PoolPostgreSQL) Update(ctx context.Context, tx *gorm.DB, entry *models.QuestionPoolEntry) error {
	result := p.getDB(tx).WithContext(ctx).
		Model(&models.QuestionPoolEntry{}).
		Where("id = ?", entry.ID).
		Select("text", "image_url", "options", "correct_index", "points",
			"explanation", "category", "difficulty").
		Updates(entry)
	if result.Error != nil {
		return fmt.Errorf("failed to update pool entry: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	cache.InvalidatePoolCache(ctx, p.cacheManager, entry.ID, entry.TeacherID)
	return nil
}

func (p *PoolPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	result := p.getDB(tx).WithContext(ctx).Delete(&models.QuestionPoolEntry{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete pool entry: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	cache.SafeDelete(ctx, p.cacheManager.Pool, fmt.Sprintf("id:%d", id))
	cache.SafeInvalidatePattern(ctx, p.cacheManager.Pool, "teacher:*")
	return nil
}

func (p *PoolPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.PoolFilters) ([]*models.QuestionPoolEntry, int64, error) {
	db := p.getDB(tx).WithContext(ctx).Model(&models.QuestionPoolEntry{})

	if filters.TeacherID != nil {
		db = db.Where("teacher_id = ?", *filters.TeacherID)
	}
	if filters.Category != nil {
		db = db.Where("category = ?", *filters.Category)
	}
	if filters.Difficulty != nil {
		db = db.Where("difficulty = ?", *filters.Difficulty)
	}
	if filters.Query != "" {
		db = db.Where("text ILIKE ?", "%"+filters.Query+"%")
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count pool entries: %w", err)
	}

	var entries []*models.QuestionPoolEntry
	db = ApplyPaginationAndSort(db, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := db.Find(&entries).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list pool entries: %w", err)
	}

	return entries, total, nil
}

// IncrementUsage bumps the usage counter on the entries just imported into
// an exam.
func (p *PoolPostgreSQL) IncrementUsage(ctx context.Context, tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}

	err := p.getDB(tx).WithContext(ctx).
		Model(&models.QuestionPoolEntry{}).
		Where("id IN ?", ids).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1")).Error
	if err != nil {
		return fmt.Errorf("failed to increment usage count: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, p.cacheManager.Pool, "teacher:*")
	return nil
}

// Categories returns the distinct categories in a teacher's pool.
func (p *PoolPostgreSQL) Categories(ctx context.Context, tx *gorm.DB, teacherID string) ([]string, error) {
	var categories []string
	err := p.getDB(tx).WithContext(ctx).
		Model(&models.QuestionPoolEntry{}).
		Where("teacher_id = ? AND category <> ''", teacherID).
		Distinct("category").
		Order("category ASC").
		Pluck("category", &categories).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pool categories: %w", err)
	}
	return categories, nil
}
