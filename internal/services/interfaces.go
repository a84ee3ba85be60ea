package services

import (
	"context"
	"io"
	"time"

	"github.com/quizdesk/exam-service/internal/models"
	"github.com/quizdesk/exam-service/internal/repositories"
	"github.com/quizdesk/exam-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use business validator types
type CreateExamRequest = validator.ExamCreateRequest
type UpdateExamRequest = validator.ExamUpdateRequest
type ExamQuestionRequest = validator.ExamQuestionRequest

// Use business validator types
type CreatePoolEntryRequest = validator.PoolEntryCreateRequest
type UpdatePoolEntryRequest = validator.PoolEntryUpdateRequest
type ImportFromPoolRequest = validator.PoolImportRequest

type SaveAnswerRequest = validator.AnswerRequest
type ToggleRequest = validator.ToggleRequest
type PositionRequest = validator.PositionRequest
type ReviewRequest = validator.ReviewRequest

type ExamResponse struct {
	*models.Exam
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
	CanTake   bool `json:"can_take"`
}

type ExamListResponse struct {
	Exams []*ExamResponse `json:"exams"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Size  int             `json:"size"`
}

type UpdateStatusRequest struct {
	Status models.ExamStatus `json:"status" validate:"required,oneof=draft active completed archived"`
	Reason *string           `json:"reason" validate:"omitempty,max=500"`
}

// ===== ATTEMPT RELATED DTOs =====

type StartAttemptRequest struct {
	ExamID uint `json:"exam_id" validate:"required"`
}

// QuestionForAttempt is a question as the student sees it while taking the
// exam: presentation position, no correct index, no explanation.
type QuestionForAttempt struct {
	Position    int      `json:"position"` // presentation index
	Text        string   `json:"text"`
	ImageURL    *string  `json:"image_url,omitempty"`
	Options     []string `json:"options"`
	Points      int      `json:"points"`
	Answered    bool     `json:"answered"`
	Selected    *int     `json:"selected,omitempty"`
	Bookmarked  bool     `json:"bookmarked"`
	Flagged     bool     `json:"flagged"`
	IsFirst     bool     `json:"is_first"`
	IsLast      bool     `json:"is_last"`
}

type AttemptResponse struct {
	*models.ExamAttempt
	ExamTitle       string               `json:"exam_title"`
	TimeRemaining   int                  `json:"time_remaining"` // seconds, server clock
	WarningIssued   bool                 `json:"warning_issued"` // remaining at or below warning threshold
	AnsweredCount   int                  `json:"answered_count"`
	QuestionsCount  int                  `json:"questions_count"`
	CanSubmit       bool                 `json:"can_submit"`
	Questions       []QuestionForAttempt `json:"questions,omitempty"`
}

type SubmitResult struct {
	Submission    *models.Submission `json:"submission"`
	CorrectCount  int                `json:"correct_count"`
	AnsweredCount int                `json:"answered_count"`
}

// ===== SUBMISSION / REVIEW DTOs =====

// ReviewQuestion is a question in the post-submission review view: the
// student's answer next to the correct one, in original order.
type ReviewQuestion struct {
	Position     int      `json:"position"` // original index
	Text         string   `json:"text"`
	ImageURL     *string  `json:"image_url,omitempty"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Selected     *int     `json:"selected,omitempty"`
	Correct      bool     `json:"correct"`
	Points       int      `json:"points"`
	EarnedPoints int      `json:"earned_points"`
	Overridden   bool     `json:"overridden"`
	Explanation  *string  `json:"explanation,omitempty"`
	Bookmarked   bool     `json:"bookmarked"`
	Flagged      bool     `json:"flagged"`
}

type SubmissionResponse struct {
	*models.Submission
	ExamTitle   string           `json:"exam_title"`
	StudentName string           `json:"student_name,omitempty"`
	Questions   []ReviewQuestion `json:"questions,omitempty"`
}

type SubmissionListResponse struct {
	Submissions []*SubmissionResponse `json:"submissions"`
	Total       int64                 `json:"total"`
	Page        int                   `json:"page"`
	Size        int                   `json:"size"`
}

// ===== POOL DTOs =====

type PoolEntryResponse struct {
	*models.QuestionPoolEntry
	OptionTexts []string `json:"option_texts"`
	CanEdit     bool     `json:"can_edit"`
}

type PoolListResponse struct {
	Entries    []*PoolEntryResponse `json:"entries"`
	Total      int64                `json:"total"`
	Page       int                  `json:"page"`
	Size       int                  `json:"size"`
	Categories []string             `json:"categories,omitempty"`
}

// ImportReport summarizes a bulk pool import from a spreadsheet.
type ImportReport struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// ===== DASHBOARD DTOs =====

type TeacherDashboard struct {
	Stats             *repositories.TeacherStats `json:"stats"`
	RecentSubmissions []*SubmissionResponse      `json:"recent_submissions"`
	GeneratedAt       time.Time                  `json:"generated_at"`
}

type StudentDashboard struct {
	Stats             *repositories.StudentStats `json:"stats"`
	RecentSubmissions []*SubmissionResponse      `json:"recent_submissions"`
	GeneratedAt       time.Time                  `json:"generated_at"`
}

type ExamAnalytics struct {
	ExamID       uint                               `json:"exam_id"`
	Title        string                             `json:"title"`
	Stats        *repositories.ExamStats            `json:"stats"`
	Distribution []repositories.ScoreBucket         `json:"distribution"`
	Questions    []repositories.QuestionPerformance `json:"questions"`
}

// ===== SERVICE INTERFACES =====

type ExamService interface {
	// Core CRUD operations
	Create(ctx context.Context, req *CreateExamRequest, creatorID string) (*ExamResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*ExamResponse, error)
	GetByIDWithQuestions(ctx context.Context, id uint, userID string) (*ExamResponse, error)
	Update(ctx context.Context, id uint, req *UpdateExamRequest, userID string) (*ExamResponse, error)
	Delete(ctx context.Context, id uint, userID string) error

	// List operations
	List(ctx context.Context, filters repositories.ExamFilters, userID string) (*ExamListResponse, error)
	GetByCreator(ctx context.Context, creatorID string, filters repositories.ExamFilters) (*ExamListResponse, error)
	GetAvailable(ctx context.Context, studentID string, filters repositories.ExamFilters) (*ExamListResponse, error)

	// Lifecycle
	Publish(ctx context.Context, id uint, userID string) error
	UpdateStatus(ctx context.Context, id uint, req *UpdateStatusRequest, userID string) error
	Archive(ctx context.Context, id uint, userID string) error

	// Question list management
	ReplaceQuestions(ctx context.Context, examID uint, questions []ExamQuestionRequest, userID string) error
	ImportFromPool(ctx context.Context, examID uint, req *ImportFromPoolRequest, userID string) (int, error)

	// Statistics
	GetStats(ctx context.Context, id uint, userID string) (*repositories.ExamStats, error)

	// Permission checks
	CanAccess(ctx context.Context, examID uint, userID string) (bool, error)
	CanEdit(ctx context.Context, examID uint, userID string) (bool, error)
}

type AttemptService interface {
	// Core attempt operations
	Start(ctx context.Context, req *StartAttemptRequest, studentID string) (*AttemptResponse, error)
	Resume(ctx context.Context, attemptID uint, studentID string) (*AttemptResponse, error)
	GetCurrent(ctx context.Context, examID uint, studentID string) (*AttemptResponse, error)
	Submit(ctx context.Context, attemptID uint, studentID string) (*SubmitResult, error)

	// In-progress state updates
	SaveAnswer(ctx context.Context, attemptID uint, req *SaveAnswerRequest, studentID string) error
	ToggleBookmark(ctx context.Context, attemptID uint, req *ToggleRequest, studentID string) (bool, error)
	ToggleFlag(ctx context.Context, attemptID uint, req *ToggleRequest, studentID string) (bool, error)
	UpdatePosition(ctx context.Context, attemptID uint, req *PositionRequest, studentID string) error

	// Time management
	TimeRemaining(ctx context.Context, attemptID uint, studentID string) (int, bool, error) // seconds, warning
	HandleTimeout(ctx context.Context, attemptID uint) error
	SweepExpired(ctx context.Context) (int, error)

	// List operations
	List(ctx context.Context, filters repositories.AttemptFilters, userID string) ([]*AttemptResponse, int64, error)
}

type PoolService interface {
	Create(ctx context.Context, req *CreatePoolEntryRequest, teacherID string) (*PoolEntryResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*PoolEntryResponse, error)
	Update(ctx context.Context, id uint, req *UpdatePoolEntryRequest, userID string) (*PoolEntryResponse, error)
	Delete(ctx context.Context, id uint, userID string) error

	List(ctx context.Context, filters repositories.PoolFilters, teacherID string) (*PoolListResponse, error)
	Categories(ctx context.Context, teacherID string) ([]string, error)
}

type ImportService interface {
	// Pool imports; format detected by filename extension.
	ImportPoolCSV(ctx context.Context, r io.Reader, teacherID string) (*ImportReport, error)
	ImportPoolXLSX(ctx context.Context, r io.Reader, teacherID string) (*ImportReport, error)

	// Results export for a teacher's exam.
	ExportResultsXLSX(ctx context.Context, examID uint, userID string) ([]byte, error)
}

type ReviewService interface {
	GetSubmission(ctx context.Context, id uint, userID string) (*SubmissionResponse, error)
	ListByExam(ctx context.Context, examID uint, filters repositories.SubmissionFilters, userID string) (*SubmissionListResponse, error)
	ListByStudent(ctx context.Context, studentID string, filters repositories.SubmissionFilters) (*SubmissionListResponse, error)
	Review(ctx context.Context, id uint, req *ReviewRequest, reviewerID string) (*SubmissionResponse, error)
	PendingCount(ctx context.Context, teacherID string) (int64, error)
}

type StudentService interface {
	AvailableExams(ctx context.Context, studentID string, filters repositories.ExamFilters) (*ExamListResponse, error)
	MySubmissions(ctx context.Context, studentID string, filters repositories.SubmissionFilters) (*SubmissionListResponse, error)
	MySubmissionDetail(ctx context.Context, submissionID uint, studentID string) (*SubmissionResponse, error)
}

type DashboardService interface {
	TeacherOverview(ctx context.Context, teacherID string) (*TeacherDashboard, error)
	StudentOverview(ctx context.Context, studentID string) (*StudentDashboard, error)
	ExamAnalytics(ctx context.Context, examID uint, userID string) (*ExamAnalytics, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	// Core service getters
	Exam() ExamService
	Attempt() AttemptService
	Pool() PoolService
	Import() ImportService
	Review() ReviewService
	Student() StudentService
	Dashboard() DashboardService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error

	// SweepInterval is the cadence of the background attempt-timeout sweeper.
	SweepInterval() time.Duration
}
