package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quizdesk/exam-service/internal/models"
	"github.com/quizdesk/exam-service/internal/repositories"
)

// UserPostgreSQL stores the local mirror of identity provider accounts.
type UserPostgreSQL struct {
	db *gorm.DB
}

func NewUserPostgreSQL(db *gorm.DB) repositories.UserRepository {
	return &UserPostgreSQL{db: db}
}

func (u *UserPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return u.db
}

// Upsert refreshes the mirror row from a verified token. Called on every
// authenticated request's first sight of a user.
func (u *UserPostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, user *models.User) error {
	err := u.getDB(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"full_name", "email", "role", "avatar_url", "updated_at"}),
		}).
		Create(user).Error
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (u *UserPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.User, error) {
	var user models.User
	if err := u.getDB(tx).WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (u *UserPostgreSQL) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.User, error) {
	var user models.User
	if err := u.getDB(tx).WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

func (u *UserPostgreSQL) GetByIDs(ctx context.Context, tx *gorm.DB, ids []string) ([]*models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var users []*models.User
	err := u.getDB(tx).WithContext(ctx).
		Where("id IN ?", ids).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	return users, nil
}

func (u *UserPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.UserFilters) ([]*models.User, int64, error) {
	db := u.getDB(tx).WithContext(ctx).Model(&models.User{})

	if filters.Role != nil {
		db = db.Where("role = ?", *filters.Role)
	}
	if filters.Query != "" {
		q := "%" + filters.Query + "%"
		db = db.Where("full_name ILIKE ? OR email ILIKE ?", q, q)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	var users []*models.User
	db = db.Order("full_name ASC")
	if filters.Limit > 0 {
		db = db.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		db = db.Offset(filters.Offset)
	}
	if err := db.Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	return users, total, nil
}

func (u *UserPostgreSQL) ExistsByID(ctx context.Context, tx *gorm.DB, id string) (bool, error) {
	var count int64
	err := u.getDB(tx).WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return count > 0, nil
}

func (u *UserPostgreSQL) HasRole(ctx context.Context, tx *gorm.DB, id string, role models.UserRole) (bool, error) {
	var count int64
	err := u.getDB(tx).WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND role = ?", id, role).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check user role: %w", err)
	}
	return count > 0, nil
}
