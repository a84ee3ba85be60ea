package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/quizdesk/exam-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type ExamFilters struct {
	Status     *models.ExamStatus     `json:"status"`
	CreatedBy  *string                `json:"created_by"`
	Category   *string                `json:"category"`
	Published  *bool                  `json:"published"`
	Visibility *models.ExamVisibility `json:"visibility"`
	Query      string                 `json:"query"` // title search
	DateFrom   *time.Time             `json:"date_from"`
	DateTo     *time.Time             `json:"date_to"`
	Limit      int                    `json:"limit"`
	Offset     int                    `json:"offset"`
	SortBy     string                 `json:"sort_by"`    // "created_at", "title", "status"
	SortOrder  string                 `json:"sort_order"` // "asc", "desc"
}

type AttemptFilters struct {
	Status    *models.AttemptStatus `json:"status"`
	ExamID    *uint                 `json:"exam_id"`
	StudentID *string               `json:"student_id"`
	DateFrom  *time.Time            `json:"date_from"`
	DateTo    *time.Time            `json:"date_to"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
}

type SubmissionFilters struct {
	ExamID    *uint      `json:"exam_id"`
	StudentID *string    `json:"student_id"`
	TeacherID *string    `json:"teacher_id"`
	Reviewed  *bool      `json:"reviewed"`
	Passed    *bool      `json:"passed"`
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
	SortBy    string     `json:"sort_by"`    // "submitted_at", "score"
	SortOrder string     `json:"sort_order"` // "asc", "desc"
}

type PoolFilters struct {
	TeacherID  *string                 `json:"teacher_id"`
	Category   *string                 `json:"category"`
	Difficulty *models.DifficultyLevel `json:"difficulty"`
	Query      string                  `json:"query"` // question text search
	Limit      int                     `json:"limit"`
	Offset     int                     `json:"offset"`
	SortBy     string                  `json:"sort_by"`
	SortOrder  string                  `json:"sort_order"`
}

// ===== SHARED STATISTICS STRUCTS =====

type ExamStats struct {
	SubmissionCount  int     `json:"submission_count"`
	InProgressCount  int     `json:"in_progress_count"`
	AverageScore     float64 `json:"average_score"`
	HighestScore     int     `json:"highest_score"`
	LowestScore      int     `json:"lowest_score"`
	PassRate         float64 `json:"pass_rate"`
	AverageTimeSpent int     `json:"average_time_spent"` // seconds
	QuestionCount    int     `json:"question_count"`
	TotalPoints      int     `json:"total_points"`
}

type TeacherStats struct {
	TotalExams       int     `json:"total_exams"`
	ActiveExams      int     `json:"active_exams"`
	DraftExams       int     `json:"draft_exams"`
	TotalSubmissions int     `json:"total_submissions"`
	DistinctStudents int     `json:"distinct_students"`
	AverageScore     float64 `json:"average_score"`
	PassRate         float64 `json:"pass_rate"`
	PendingReview    int     `json:"pending_review"`
}

type StudentStats struct {
	ExamsTaken     int     `json:"exams_taken"`
	PassedCount    int     `json:"passed_count"`
	FailedCount    int     `json:"failed_count"`
	AverageScore   float64 `json:"average_score"`
	BestScore      int     `json:"best_score"`
	TotalTimeSpent int     `json:"total_time_spent"` // seconds
}

// ScoreBucket is one bar of a score histogram ("0-9", "10-19", ..., "90-100").
type ScoreBucket struct {
	Label string `json:"label"`
	From  int    `json:"from"`
	To    int    `json:"to"`
	Count int64  `json:"count"`
}

// QuestionPerformance is per-question correctness across an exam's submissions,
// keyed by original question position.
type QuestionPerformance struct {
	Position     int     `json:"position"`
	Text         string  `json:"text"`
	AnswerCount  int64   `json:"answer_count"`
	CorrectCount int64   `json:"correct_count"`
	CorrectRate  float64 `json:"correct_rate"`
}

// ===== REPOSITORY INTERFACES =====

// ExamRepository persists exam documents and their question lists.
type ExamRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.ExamStatus, published bool) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// Question list management. ReplaceQuestions swaps the whole list in
	// canonical order; AppendQuestions adds at the end.
	ReplaceQuestions(ctx context.Context, tx *gorm.DB, examID uint, questions []models.ExamQuestion) error
	AppendQuestions(ctx context.Context, tx *gorm.DB, examID uint, questions []models.ExamQuestion) error
	GetQuestions(ctx context.Context, tx *gorm.DB, examID uint) ([]models.ExamQuestion, error)

	// Query operations
	List(ctx context.Context, tx *gorm.DB, filters ExamFilters) ([]*models.Exam, int64, error)
	GetByCreator(ctx context.Context, tx *gorm.DB, creatorID string, filters ExamFilters) ([]*models.Exam, int64, error)
	GetAvailableForStudent(ctx context.Context, tx *gorm.DB, studentID string, filters ExamFilters) ([]*models.Exam, int64, error)

	// Validation and checks
	ExistsByTitle(ctx context.Context, tx *gorm.DB, title, creatorID string, excludeID *uint) (bool, error)
	HasAttempts(ctx context.Context, tx *gorm.DB, id uint) (bool, error)
}

// AttemptRepository persists in-progress attempt state. The status column is
// the mutual exclusion point for submission: ClaimSubmitting is a conditional
// update that exactly one caller can win.
type AttemptRepository interface {
	Create(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error)
	GetByIDWithExam(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error)
	GetInProgress(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (*models.ExamAttempt, error)
	List(ctx context.Context, tx *gorm.DB, filters AttemptFilters) ([]*models.ExamAttempt, int64, error)

	// State updates while in progress
	SaveState(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error
	UpdateTimeRemaining(ctx context.Context, tx *gorm.DB, id uint, seconds int) error

	// Submission claim. Returns true when this caller moved the attempt from
	// in_progress to submitting; false when someone else already did.
	ClaimSubmitting(ctx context.Context, tx *gorm.DB, id uint) (bool, error)
	// ReleaseClaim returns a failed submission claim to in_progress so the
	// student can retry.
	ReleaseClaim(ctx context.Context, tx *gorm.DB, id uint) error
	MarkCompleted(ctx context.Context, tx *gorm.DB, id uint, completedAt time.Time) error

	// Counts for start checks
	CountByStudent(ctx context.Context, tx *gorm.DB, examID uint, studentID string, status *models.AttemptStatus) (int64, error)

	// Expired attempts still marked in_progress, for the timeout sweeper.
	ListExpired(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) ([]*models.ExamAttempt, error)
}

// SubmissionRepository persists completed attempts and their review state.
type SubmissionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, submission *models.Submission) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Submission, error)
	GetByIDWithExam(ctx context.Context, tx *gorm.DB, id uint) (*models.Submission, error)
	GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) (*models.Submission, error)
	Update(ctx context.Context, tx *gorm.DB, submission *models.Submission) error

	// Query operations
	List(ctx context.Context, tx *gorm.DB, filters SubmissionFilters) ([]*models.Submission, int64, error)
	GetByExam(ctx context.Context, tx *gorm.DB, examID uint, filters SubmissionFilters) ([]*models.Submission, int64, error)
	GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters SubmissionFilters) ([]*models.Submission, int64, error)

	// Statistics
	GetExamStats(ctx context.Context, tx *gorm.DB, examID uint) (*ExamStats, error)
	CountPendingReview(ctx context.Context, tx *gorm.DB, teacherID string) (int64, error)
}

// PoolRepository persists a teacher's reusable question pool.
type PoolRepository interface {
	Create(ctx context.Context, tx *gorm.DB, entry *models.QuestionPoolEntry) error
	CreateBatch(ctx context.Context, tx *gorm.DB, entries []*models.QuestionPoolEntry) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuestionPoolEntry, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.QuestionPoolEntry, error)
	Update(ctx context.Context, tx *gorm.DB, entry *models.QuestionPoolEntry) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	List(ctx context.Context, tx *gorm.DB, filters PoolFilters) ([]*models.QuestionPoolEntry, int64, error)
	IncrementUsage(ctx context.Context, tx *gorm.DB, ids []uint) error
	Categories(ctx context.Context, tx *gorm.DB, teacherID string) ([]string, error)
}

// UserFilters defines filters for user queries
type UserFilters struct {
	Role   *models.UserRole
	Query  string // name or email search
	Limit  int
	Offset int
}

// UserRepository stores the local mirror of identity provider accounts. Rows
// are upserted at login; this service never owns credentials.
type UserRepository interface {
	Upsert(ctx context.Context, tx *gorm.DB, user *models.User) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.User, error)
	GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.User, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []string) ([]*models.User, error)
	List(ctx context.Context, tx *gorm.DB, filters UserFilters) ([]*models.User, int64, error)
	ExistsByID(ctx context.Context, tx *gorm.DB, id string) (bool, error)
	HasRole(ctx context.Context, tx *gorm.DB, id string, role models.UserRole) (bool, error)
}

// DashboardRepository runs the aggregation queries behind the teacher and
// student dashboards.
type DashboardRepository interface {
	GetTeacherStats(ctx context.Context, tx *gorm.DB, teacherID string) (*TeacherStats, error)
	GetStudentStats(ctx context.Context, tx *gorm.DB, studentID string) (*StudentStats, error)
	GetScoreDistribution(ctx context.Context, tx *gorm.DB, examID uint) ([]ScoreBucket, error)
	GetQuestionPerformance(ctx context.Context, tx *gorm.DB, examID uint) ([]QuestionPerformance, error)
	GetRecentSubmissions(ctx context.Context, tx *gorm.DB, teacherID string, limit int) ([]*models.Submission, error)
}
