package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/quizdesk/exam-service/internal/cache"
	"github.com/quizdesk/exam-service/internal/models"
	"github.com/quizdesk/exam-service/internal/repositories"
)

// DashboardPostgreSQL runs the dashboard aggregations. Everything here is
// read-only and cacheable; counts are computed in SQL, not by scanning rows.
type DashboardPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewDashboardPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.DashboardRepository {
	return &DashboardPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (d *DashboardPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return d.db
}

func (d *DashboardPostgreSQL) GetTeacherStats(ctx context.Context, tx *gorm.DB, teacherID string) (*repositories.TeacherStats, error) {
	var stats repositories.TeacherStats
	cacheKey := fmt.Sprintf("teacher:%s:overview", teacherID)

	err := d.cacheManager.Stats.CacheOrExecute(ctx, cacheKey, &stats, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		db := d.getDB(tx).WithContext(ctx)
		out := &repositories.TeacherStats{}

		var examAgg struct {
			Total  int64
			Active int64
			Draft  int64
		}
		err := db.Model(&models.Exam{}).
			Where("created_by = ?", teacherID).
			Select("COUNT(*) AS total, "+
				"COUNT(*) FILTER (WHERE status = 'active') AS active, "+
				"COUNT(*) FILTER (WHERE status = 'draft') AS draft").
			Scan(&examAgg).Error
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate exams: %w", err)
		}
		out.TotalExams = int(examAgg.Total)
		out.ActiveExams = int(examAgg.Active)
		out.DraftExams = int(examAgg.Draft)

		var subAgg struct {
			Total    int64
			Students int64
			Avg      *float64
			Passed   int64
			Pending  int64
		}
		err = db.Model(&models.Submission{}).
			Where("teacher_id = ?", teacherID).
			Select("COUNT(*) AS total, "+
				"COUNT(DISTINCT student_id) AS students, "+
				"AVG(score) AS avg, "+
				"COUNT(*) FILTER (WHERE passed) AS passed, "+
				"COUNT(*) FILTER (WHERE NOT reviewed) AS pending").
			Scan(&subAgg).Error
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate submissions: %w", err)
		}
		out.TotalSubmissions = int(subAgg.Total)
		out.DistinctStudents = int(subAgg.Students)
		out.PendingReview = int(subAgg.Pending)
		if subAgg.Total > 0 {
			if subAgg.Avg != nil {
				out.AverageScore = *subAgg.Avg
			}
			out.PassRate = float64(subAgg.Passed) / float64(subAgg.Total) * 100
		}

		return out, nil
	})
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

func (d *DashboardPostgreSQL) GetStudentStats(ctx context.Context, tx *gorm.DB, studentID string) (*repositories.StudentStats, error) {
	var stats repositories.StudentStats
	cacheKey := fmt.Sprintf("student:%s:overview", studentID)

	err := d.cacheManager.Stats.CacheOrExecute(ctx, cacheKey, &stats, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		out := &repositories.StudentStats{}

		var agg struct {
			Taken  int64
			Passed int64
			Avg    *float64
			Best   *int
			Time   *int64
		}
		err := d.getDB(tx).WithContext(ctx).
			Model(&models.Submission{}).
			Where("student_id = ?", studentID).
			Select("COUNT(*) AS taken, "+
				"COUNT(*) FILTER (WHERE passed) AS passed, "+
				"AVG(score) AS avg, "+
				"MAX(score) AS best, "+
				"SUM(time_spent) AS time").
			Scan(&agg).Error
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate student submissions: %w", err)
		}

		out.ExamsTaken = int(agg.Taken)
		out.PassedCount = int(agg.Passed)
		out.FailedCount = int(agg.Taken - agg.Passed)
		if agg.Taken > 0 {
			if agg.Avg != nil {
				out.AverageScore = *agg.Avg
			}
			if agg.Best != nil {
				out.BestScore = *agg.Best
			}
			if agg.Time != nil {
				out.TotalTimeSpent = int(*agg.Time)
			}
		}

		return out, nil
	})
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

// GetScoreDistribution buckets an exam's scores into ten-point bands. The
// last band is 90-100 so a perfect score has a home.
func (d *DashboardPostgreSQL) GetScoreDistribution(ctx context.Context, tx *gorm.DB, examID uint) ([]repositories.ScoreBucket, error) {
	type row struct {
		Bucket int
		Count  int64
	}

	var rows []row
	err := d.getDB(tx).WithContext(ctx).
		Model(&models.Submission{}).
		Where("exam_id = ?", examID).
		Select("LEAST(score / 10, 9) AS bucket, COUNT(*) AS count").
		Group("bucket").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute score distribution: %w", err)
	}

	counts := make(map[int]int64, len(rows))
	for _, r := range rows {
		counts[r.Bucket] = r.Count
	}

	buckets := make([]repositories.ScoreBucket, 10)
	for i := 0; i < 10; i++ {
		from := i * 10
		to := from + 9
		if i == 9 {
			to = 100
		}
		buckets[i] = repositories.ScoreBucket{
			Label: fmt.Sprintf("%d-%d", from, to),
			From:  from,
			To:    to,
			Count: counts[i],
		}
	}

	return buckets, nil
}

// GetQuestionPerformance computes per-question correctness across an exam's
// submissions by joining the stored answer maps against the grading key.
// Answer keys are original question positions, so the join is on position.
func (d *DashboardPostgreSQL) GetQuestionPerformance(ctx context.Context, tx *gorm.DB, examID uint) ([]repositories.QuestionPerformance, error) {
	type row struct {
		Position     int
		Text         string
		AnswerCount  int64
		CorrectCount int64
	}

	var rows []row
	err := d.getDB(tx).WithContext(ctx).Raw(`
		SELECT q.position,
		       q.text,
		       COUNT(s.answers ->> q.position::text) AS answer_count,
		       COUNT(*) FILTER (WHERE (s.answers ->> q.position::text)::int = q.correct_index) AS correct_count
		FROM exam_questions q
		LEFT JOIN submissions s ON s.exam_id = q.exam_id
		WHERE q.exam_id = ?
		GROUP BY q.position, q.text
		ORDER BY q.position`, examID).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute question performance: %w", err)
	}

	out := make([]repositories.QuestionPerformance, 0, len(rows))
	for _, r := range rows {
		perf := repositories.QuestionPerformance{
			Position:     r.Position,
			Text:         r.Text,
			AnswerCount:  r.AnswerCount,
			CorrectCount: r.CorrectCount,
		}
		if r.AnswerCount > 0 {
			perf.CorrectRate = float64(r.CorrectCount) / float64(r.AnswerCount) * 100
		}
		out = append(out, perf)
	}

	return out, nil
}

func (d *DashboardPostgreSQL) GetRecentSubmissions(ctx context.Context, tx *gorm.DB, teacherID string, limit int) ([]*models.Submission, error) {
	if limit <= 0 {
		limit = 10
	}

	var submissions []*models.Submission
	err := d.getDB(tx).WithContext(ctx).
		Where("teacher_id = ?", teacherID).
		Order("submitted_at DESC").
		Limit(limit).
		Preload("Student").
		Preload("Exam").
		Find(&submissions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get recent submissions: %w", err)
	}

	return submissions, nil
}
