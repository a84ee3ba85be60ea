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

type SubmissionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewSubmissionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.SubmissionRepository {
	return &SubmissionPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (s *SubmissionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

// Create inserts the submission. The unique index on attempt_id makes a
// duplicate insert for the same attempt fail loudly instead of silently
// doubling a student's record.
func (s *SubmissionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	if err := s.getDB(tx).WithContext(ctx).Create(submission).Error; err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}

	cache.InvalidateSubmissionCache(ctx, s.cacheManager, submission.ExamID, submission.StudentID)
	return nil
}

func (s *SubmissionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Submission, error) {
	var submission models.Submission
	if err := s.getDB(tx).WithContext(ctx).Preload("Student").First(&submission, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) GetByIDWithExam(ctx context.Context, tx *gorm.DB, id uint) (*models.Submission, error) {
	var submission models.Submission
	err := s.getDB(tx).WithContext(ctx).
		Preload("Student").
		Preload("Exam").
		Preload("Exam.Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("exam_questions.position ASC")
		}).
		First(&submission, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get submission with exam: %w", err)
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) (*models.Submission, error) {
	var submission models.Submission
	err := s.getDB(tx).WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		First(&submission).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get submission by attempt: %w", err)
	}
	return &submission, nil
}

// Update saves review mutations: feedback, reviewed flag, point overrides and
// the recomputed result.
func (s *SubmissionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	result := s.getDB(tx).WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ?", submission.ID).
		Select("feedback", "reviewed", "reviewed_by", "reviewed_at", "point_overrides",
			"score", "earned_points", "passed").
		Updates(submission)
	if result.Error != nil {
		return fmt.Errorf("failed to update submission: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	cache.InvalidateSubmissionCache(ctx, s.cacheManager, submission.ExamID, submission.StudentID)
	return nil
}

func (s *SubmissionPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	db := s.getDB(tx).WithContext(ctx).Model(&models.Submission{})
	db = ApplySubmissionFilters(db, filters)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count submissions: %w", err)
	}

	sortBy := filters.SortBy
	if sortBy == "" {
		sortBy = "submitted_at"
	}

	var submissions []*models.Submission
	db = ApplyPaginationAndSort(db, sortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := db.Preload("Student").Preload("Exam").Find(&submissions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list submissions: %w", err)
	}

	return submissions, total, nil
}

func (s *SubmissionPostgreSQL) GetByExam(ctx context.Context, tx *gorm.DB, examID uint, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	filters.ExamID = &examID
	return s.List(ctx, tx, filters)
}

func (s *SubmissionPostgreSQL) GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	filters.StudentID = &studentID
	return s.List(ctx, tx, filters)
}

// GetExamStats aggregates one exam's submissions in SQL, cached. Zero
// submissions yields zeroed stats, never a division error.
func (s *SubmissionPostgreSQL) GetExamStats(ctx context.Context, tx *gorm.DB, examID uint) (*repositories.ExamStats, error) {
	var stats repositories.ExamStats
	cacheKey := fmt.Sprintf("exam:%d:stats", examID)

	err := s.cacheManager.Stats.CacheOrExecute(ctx, cacheKey, &stats, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		db := s.getDB(tx).WithContext(ctx)
		out := &repositories.ExamStats{}

		var agg struct {
			Count   int64
			Avg     *float64
			Max     *int
			Min     *int
			Passed  int64
			AvgTime *float64
		}
		err := db.Model(&models.Submission{}).
			Where("exam_id = ?", examID).
			Select("COUNT(*) AS count, AVG(score) AS avg, MAX(score) AS max, MIN(score) AS min, " +
				"COUNT(*) FILTER (WHERE passed) AS passed, AVG(time_spent) AS avg_time").
			Scan(&agg).Error
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate submissions: %w", err)
		}

		out.SubmissionCount = int(agg.Count)
		if agg.Count > 0 {
			if agg.Avg != nil {
				out.AverageScore = *agg.Avg
			}
			if agg.Max != nil {
				out.HighestScore = *agg.Max
			}
			if agg.Min != nil {
				out.LowestScore = *agg.Min
			}
			if agg.AvgTime != nil {
				out.AverageTimeSpent = int(*agg.AvgTime)
			}
			out.PassRate = float64(agg.Passed) / float64(agg.Count) * 100
		}

		var inProgress int64
		if err := db.Model(&models.ExamAttempt{}).
			Where("exam_id = ? AND status = ?", examID, models.AttemptInProgress).
			Count(&inProgress).Error; err != nil {
			return nil, fmt.Errorf("failed to count in-progress attempts: %w", err)
		}
		out.InProgressCount = int(inProgress)

		var qAgg struct {
			Count int64
			Total *int
		}
		err = db.Model(&models.ExamQuestion{}).
			Where("exam_id = ?", examID).
			Select("COUNT(*) AS count, SUM(points) AS total").
			Scan(&qAgg).Error
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate questions: %w", err)
		}
		out.QuestionCount = int(qAgg.Count)
		if qAgg.Total != nil {
			out.TotalPoints = *qAgg.Total
		}

		return out, nil
	})
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

func (s *SubmissionPostgreSQL) CountPendingReview(ctx context.Context, tx *gorm.DB, teacherID string) (int64, error) {
	var count int64
	err := s.getDB(tx).WithContext(ctx).
		Model(&models.Submission{}).
		Where("teacher_id = ? AND reviewed = false", teacherID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count pending reviews: %w", err)
	}
	return count, nil
}
