package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/quizdesk/exam-service/internal/models"
	"github.com/quizdesk/exam-service/internal/repositories"
)

// mockRepository is an in-memory Repository for service tests. It honors the
// contracts the services rely on: conditional submission claims, the unique
// submission-per-attempt rule, and not-found errors.
type mockRepository struct {
	mu          sync.Mutex
	exams       map[uint]*models.Exam
	questions   map[uint][]models.ExamQuestion
	attempts    map[uint]*models.ExamAttempt
	submissions map[uint]*models.Submission
	pool        map[uint]*models.QuestionPoolEntry
	users       map[string]*models.User
	nextID      uint
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		exams:       make(map[uint]*models.Exam),
		questions:   make(map[uint][]models.ExamQuestion),
		attempts:    make(map[uint]*models.ExamAttempt),
		submissions: make(map[uint]*models.Submission),
		pool:        make(map[uint]*models.QuestionPoolEntry),
		users:       make(map[string]*models.User),
	}
}

func (m *mockRepository) id() uint {
	m.nextID++
	return m.nextID
}

func (m *mockRepository) Exam() repositories.ExamRepository             { return &mockExamRepo{m} }
func (m *mockRepository) Attempt() repositories.AttemptRepository       { return &mockAttemptRepo{m} }
func (m *mockRepository) Submission() repositories.SubmissionRepository { return &mockSubmissionRepo{m} }
func (m *mockRepository) Pool() repositories.PoolRepository             { return &mockPoolRepo{m} }
func (m *mockRepository) User() repositories.UserRepository             { return &mockUserRepo{m} }
func (m *mockRepository) Dashboard() repositories.DashboardRepository   { return &mockDashboardRepo{m} }

func (m *mockRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(m)
}

func (m *mockRepository) Ping(ctx context.Context) error { return nil }
func (m *mockRepository) Close() error                   { return nil }

// ===== EXAM =====

type mockExamRepo struct{ m *mockRepository }

func (r *mockExamRepo) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	exam.ID = r.m.id()
	exam.CreatedAt = time.Now()
	stored := *exam
	r.m.exams[exam.ID] = &stored
	return nil
}

func (r *mockExamRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	exam, ok := r.m.exams[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *exam
	return &out, nil
}

func (r *mockExamRepo) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	exam, err := r.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	exam.Questions = append([]models.ExamQuestion(nil), r.m.questions[id]...)
	exam.QuestionsCount = len(exam.Questions)
	exam.TotalPoints = exam.SumPoints()
	return exam, nil
}

func (r *mockExamRepo) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.exams[exam.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *exam
	stored.Questions = nil
	r.m.exams[exam.ID] = &stored
	return nil
}

func (r *mockExamRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.ExamStatus, published bool) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	exam, ok := r.m.exams[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	exam.Status = status
	exam.Published = published
	return nil
}

func (r *mockExamRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.exams[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.m.exams, id)
	delete(r.m.questions, id)
	return nil
}

func (r *mockExamRepo) ReplaceQuestions(ctx context.Context, tx *gorm.DB, examID uint, questions []models.ExamQuestion) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored := make([]models.ExamQuestion, len(questions))
	for i, q := range questions {
		q.ID = r.m.id()
		q.ExamID = examID
		q.Position = i
		stored[i] = q
	}
	r.m.questions[examID] = stored
	return nil
}

func (r *mockExamRepo) AppendQuestions(ctx context.Context, tx *gorm.DB, examID uint, questions []models.ExamQuestion) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	existing := r.m.questions[examID]
	for _, q := range questions {
		q.ID = r.m.id()
		q.ExamID = examID
		q.Position = len(existing)
		existing = append(existing, q)
	}
	r.m.questions[examID] = existing
	return nil
}

func (r *mockExamRepo) GetQuestions(ctx context.Context, tx *gorm.DB, examID uint) ([]models.ExamQuestion, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return append([]models.ExamQuestion(nil), r.m.questions[examID]...), nil
}

func (r *mockExamRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Exam
	for _, exam := range r.m.exams {
		e := *exam
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *mockExamRepo) GetByCreator(ctx context.Context, tx *gorm.DB, creatorID string, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	all, _, _ := r.List(ctx, tx, filters)
	var out []*models.Exam
	for _, exam := range all {
		if exam.CreatedBy == creatorID {
			out = append(out, exam)
		}
	}
	return out, int64(len(out)), nil
}

func (r *mockExamRepo) GetAvailableForStudent(ctx context.Context, tx *gorm.DB, studentID string, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	all, _, _ := r.List(ctx, tx, filters)
	var out []*models.Exam
	for _, exam := range all {
		if exam.Published && exam.Status == models.ExamStatusActive && exam.Visibility == models.VisibilityPublic && exam.CreatedBy != studentID {
			out = append(out, exam)
		}
	}
	return out, int64(len(out)), nil
}

func (r *mockExamRepo) ExistsByTitle(ctx context.Context, tx *gorm.DB, title, creatorID string, excludeID *uint) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, exam := range r.m.exams {
		if excludeID != nil && exam.ID == *excludeID {
			continue
		}
		if exam.CreatedBy == creatorID && strings.EqualFold(exam.Title, title) {
			return true, nil
		}
	}
	return false, nil
}

func (r *mockExamRepo) HasAttempts(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, attempt := range r.m.attempts {
		if attempt.ExamID == id {
			return true, nil
		}
	}
	return false, nil
}

// ===== ATTEMPT =====

type mockAttemptRepo struct{ m *mockRepository }

func (r *mockAttemptRepo) Create(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	attempt.ID = r.m.id()
	attempt.CreatedAt = time.Now()
	stored := *attempt
	stored.Exam = models.Exam{}
	r.m.attempts[attempt.ID] = &stored
	return nil
}

func (r *mockAttemptRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	attempt, ok := r.m.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *attempt
	return &out, nil
}

func (r *mockAttemptRepo) GetByIDWithExam(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) {
	attempt, err := r.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if exam, ok := r.m.exams[attempt.ExamID]; ok {
		e := *exam
		e.Questions = append([]models.ExamQuestion(nil), r.m.questions[e.ID]...)
		attempt.Exam = e
	}
	return attempt, nil
}

func (r *mockAttemptRepo) GetInProgress(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (*models.ExamAttempt, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, attempt := range r.m.attempts {
		if attempt.ExamID == examID && attempt.StudentID == studentID && attempt.Status == models.AttemptInProgress {
			out := *attempt
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockAttemptRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.ExamAttempt
	for _, attempt := range r.m.attempts {
		if filters.StudentID != nil && attempt.StudentID != *filters.StudentID {
			continue
		}
		if filters.ExamID != nil && attempt.ExamID != *filters.ExamID {
			continue
		}
		if filters.Status != nil && attempt.Status != *filters.Status {
			continue
		}
		a := *attempt
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *mockAttemptRepo) SaveState(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.attempts[attempt.ID]
	if !ok || stored.Status != models.AttemptInProgress {
		return gorm.ErrRecordNotFound
	}
	stored.Answers = attempt.Answers
	stored.Bookmarked = attempt.Bookmarked
	stored.Flagged = attempt.Flagged
	stored.CurrentPosition = attempt.CurrentPosition
	stored.TimeRemaining = attempt.TimeRemaining
	return nil
}

func (r *mockAttemptRepo) UpdateTimeRemaining(ctx context.Context, tx *gorm.DB, id uint, seconds int) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if stored, ok := r.m.attempts[id]; ok && stored.Status == models.AttemptInProgress {
		stored.TimeRemaining = seconds
	}
	return nil
}

func (r *mockAttemptRepo) ClaimSubmitting(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.attempts[id]
	if !ok || stored.Status != models.AttemptInProgress {
		return false, nil
	}
	stored.Status = models.AttemptSubmitting
	return true, nil
}

func (r *mockAttemptRepo) ReleaseClaim(ctx context.Context, tx *gorm.DB, id uint) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if stored, ok := r.m.attempts[id]; ok && stored.Status == models.AttemptSubmitting {
		stored.Status = models.AttemptInProgress
	}
	return nil
}

func (r *mockAttemptRepo) MarkCompleted(ctx context.Context, tx *gorm.DB, id uint, completedAt time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.attempts[id]
	if !ok || stored.Status != models.AttemptSubmitting {
		return gorm.ErrRecordNotFound
	}
	stored.Status = models.AttemptCompleted
	stored.CompletedAt = &completedAt
	stored.TimeRemaining = 0
	return nil
}

func (r *mockAttemptRepo) CountByStudent(ctx context.Context, tx *gorm.DB, examID uint, studentID string, status *models.AttemptStatus) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var count int64
	for _, attempt := range r.m.attempts {
		if attempt.ExamID != examID || attempt.StudentID != studentID {
			continue
		}
		if status != nil && attempt.Status != *status {
			continue
		}
		count++
	}
	return count, nil
}

func (r *mockAttemptRepo) ListExpired(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) ([]*models.ExamAttempt, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.ExamAttempt
	for _, attempt := range r.m.attempts {
		if attempt.Status != models.AttemptInProgress || attempt.EndsAt == nil {
			continue
		}
		if attempt.EndsAt.After(cutoff) {
			continue
		}
		a := *attempt
		out = append(out, &a)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ===== SUBMISSION =====

type mockSubmissionRepo struct{ m *mockRepository }

func (r *mockSubmissionRepo) Create(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.submissions {
		if existing.AttemptID == submission.AttemptID {
			return fmt.Errorf("duplicate submission for attempt %d", submission.AttemptID)
		}
	}
	submission.ID = r.m.id()
	submission.CreatedAt = time.Now()
	stored := *submission
	stored.Exam = models.Exam{}
	stored.Student = models.User{}
	r.m.submissions[submission.ID] = &stored
	return nil
}

func (r *mockSubmissionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Submission, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	submission, ok := r.m.submissions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *submission
	return &out, nil
}

func (r *mockSubmissionRepo) GetByIDWithExam(ctx context.Context, tx *gorm.DB, id uint) (*models.Submission, error) {
	submission, err := r.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if exam, ok := r.m.exams[submission.ExamID]; ok {
		e := *exam
		e.Questions = append([]models.ExamQuestion(nil), r.m.questions[e.ID]...)
		submission.Exam = e
	}
	if student, ok := r.m.users[submission.StudentID]; ok {
		submission.Student = *student
	}
	return submission, nil
}

func (r *mockSubmissionRepo) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) (*models.Submission, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, submission := range r.m.submissions {
		if submission.AttemptID == attemptID {
			out := *submission
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockSubmissionRepo) Update(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.submissions[submission.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Feedback = submission.Feedback
	stored.Reviewed = submission.Reviewed
	stored.ReviewedBy = submission.ReviewedBy
	stored.ReviewedAt = submission.ReviewedAt
	stored.PointOverrides = submission.PointOverrides
	stored.Score = submission.Score
	stored.EarnedPoints = submission.EarnedPoints
	stored.TotalPoints = submission.TotalPoints
	stored.Passed = submission.Passed
	return nil
}

func (r *mockSubmissionRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Submission
	for _, submission := range r.m.submissions {
		if filters.ExamID != nil && submission.ExamID != *filters.ExamID {
			continue
		}
		if filters.StudentID != nil && submission.StudentID != *filters.StudentID {
			continue
		}
		if filters.TeacherID != nil && submission.TeacherID != *filters.TeacherID {
			continue
		}
		if filters.Reviewed != nil && submission.Reviewed != *filters.Reviewed {
			continue
		}
		s := *submission
		out = append(out, &s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *mockSubmissionRepo) GetByExam(ctx context.Context, tx *gorm.DB, examID uint, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	filters.ExamID = &examID
	return r.List(ctx, tx, filters)
}

func (r *mockSubmissionRepo) GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	filters.StudentID = &studentID
	return r.List(ctx, tx, filters)
}

func (r *mockSubmissionRepo) GetExamStats(ctx context.Context, tx *gorm.DB, examID uint) (*repositories.ExamStats, error) {
	subs, _, _ := r.GetByExam(ctx, tx, examID, repositories.SubmissionFilters{})
	stats := &repositories.ExamStats{SubmissionCount: len(subs)}
	if len(subs) == 0 {
		return stats, nil
	}
	total, passed := 0, 0
	stats.LowestScore = subs[0].Score
	for _, s := range subs {
		total += s.Score
		if s.Passed {
			passed++
		}
		if s.Score > stats.HighestScore {
			stats.HighestScore = s.Score
		}
		if s.Score < stats.LowestScore {
			stats.LowestScore = s.Score
		}
	}
	stats.AverageScore = float64(total) / float64(len(subs))
	stats.PassRate = float64(passed) / float64(len(subs)) * 100
	return stats, nil
}

func (r *mockSubmissionRepo) CountPendingReview(ctx context.Context, tx *gorm.DB, teacherID string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var count int64
	for _, submission := range r.m.submissions {
		if submission.TeacherID == teacherID && !submission.Reviewed {
			count++
		}
	}
	return count, nil
}

// ===== POOL =====

type mockPoolRepo struct{ m *mockRepository }

func (r *mockPoolRepo) Create(ctx context.Context, tx *gorm.DB, entry *models.QuestionPoolEntry) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	entry.ID = r.m.id()
	stored := *entry
	r.m.pool[entry.ID] = &stored
	return nil
}

func (r *mockPoolRepo) CreateBatch(ctx context.Context, tx *gorm.DB, entries []*models.QuestionPoolEntry) error {
	for _, entry := range entries {
		if err := r.Create(ctx, tx, entry); err != nil {
			return err
		}
	}
	return nil
}

func (r *mockPoolRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuestionPoolEntry, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	entry, ok := r.m.pool[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *entry
	return &out, nil
}

func (r *mockPoolRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.QuestionPoolEntry, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.QuestionPoolEntry
	for _, id := range ids {
		if entry, ok := r.m.pool[id]; ok {
			e := *entry
			out = append(out, &e)
		}
	}
	return out, nil
}

func (r *mockPoolRepo) Update(ctx context.Context, tx *gorm.DB, entry *models.QuestionPoolEntry) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.pool[entry.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *entry
	r.m.pool[entry.ID] = &stored
	return nil
}

func (r *mockPoolRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.pool[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.m.pool, id)
	return nil
}

func (r *mockPoolRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.PoolFilters) ([]*models.QuestionPoolEntry, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.QuestionPoolEntry
	for _, entry := range r.m.pool {
		if filters.TeacherID != nil && entry.TeacherID != *filters.TeacherID {
			continue
		}
		if filters.Category != nil && entry.Category != *filters.Category {
			continue
		}
		e := *entry
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *mockPoolRepo) IncrementUsage(ctx context.Context, tx *gorm.DB, ids []uint) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, id := range ids {
		if entry, ok := r.m.pool[id]; ok {
			entry.UsageCount++
		}
	}
	return nil
}

func (r *mockPoolRepo) Categories(ctx context.Context, tx *gorm.DB, teacherID string) ([]string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, entry := range r.m.pool {
		if entry.TeacherID != teacherID || entry.Category == "" || seen[entry.Category] {
			continue
		}
		seen[entry.Category] = true
		out = append(out, entry.Category)
	}
	sort.Strings(out)
	return out, nil
}

// ===== USER =====

type mockUserRepo struct{ m *mockRepository }

func (r *mockUserRepo) Upsert(ctx context.Context, tx *gorm.DB, user *models.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored := *user
	r.m.users[user.ID] = &stored
	return nil
}

func (r *mockUserRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	user, ok := r.m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *user
	return &out, nil
}

func (r *mockUserRepo) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, user := range r.m.users {
		if user.Email == email {
			out := *user
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockUserRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []string) ([]*models.User, error) {
	var out []*models.User
	for _, id := range ids {
		if user, err := r.GetByID(ctx, tx, id); err == nil {
			out = append(out, user)
		}
	}
	return out, nil
}

func (r *mockUserRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.UserFilters) ([]*models.User, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.User
	for _, user := range r.m.users {
		if filters.Role != nil && user.Role != *filters.Role {
			continue
		}
		u := *user
		out = append(out, &u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *mockUserRepo) ExistsByID(ctx context.Context, tx *gorm.DB, id string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	_, ok := r.m.users[id]
	return ok, nil
}

func (r *mockUserRepo) HasRole(ctx context.Context, tx *gorm.DB, id string, role models.UserRole) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	user, ok := r.m.users[id]
	if !ok {
		return false, nil
	}
	return user.Role == role || user.Role == models.RoleAdmin, nil
}

// ===== DASHBOARD =====

type mockDashboardRepo struct{ m *mockRepository }

func (r *mockDashboardRepo) GetTeacherStats(ctx context.Context, tx *gorm.DB, teacherID string) (*repositories.TeacherStats, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stats := &repositories.TeacherStats{}
	for _, exam := range r.m.exams {
		if exam.CreatedBy != teacherID {
			continue
		}
		stats.TotalExams++
		switch exam.Status {
		case models.ExamStatusActive:
			stats.ActiveExams++
		case models.ExamStatusDraft:
			stats.DraftExams++
		}
	}
	students := make(map[string]bool)
	total := 0
	for _, submission := range r.m.submissions {
		if submission.TeacherID != teacherID {
			continue
		}
		stats.TotalSubmissions++
		students[submission.StudentID] = true
		total += submission.Score
		if !submission.Reviewed {
			stats.PendingReview++
		}
	}
	stats.DistinctStudents = len(students)
	if stats.TotalSubmissions > 0 {
		stats.AverageScore = float64(total) / float64(stats.TotalSubmissions)
	}
	return stats, nil
}

func (r *mockDashboardRepo) GetStudentStats(ctx context.Context, tx *gorm.DB, studentID string) (*repositories.StudentStats, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stats := &repositories.StudentStats{}
	total := 0
	for _, submission := range r.m.submissions {
		if submission.StudentID != studentID {
			continue
		}
		stats.ExamsTaken++
		total += submission.Score
		if submission.Passed {
			stats.PassedCount++
		} else {
			stats.FailedCount++
		}
		if submission.Score > stats.BestScore {
			stats.BestScore = submission.Score
		}
		stats.TotalTimeSpent += submission.TimeSpent
	}
	if stats.ExamsTaken > 0 {
		stats.AverageScore = float64(total) / float64(stats.ExamsTaken)
	}
	return stats, nil
}

func (r *mockDashboardRepo) GetScoreDistribution(ctx context.Context, tx *gorm.DB, examID uint) ([]repositories.ScoreBucket, error) {
	return nil, nil
}

func (r *mockDashboardRepo) GetQuestionPerformance(ctx context.Context, tx *gorm.DB, examID uint) ([]repositories.QuestionPerformance, error) {
	return nil, nil
}

func (r *mockDashboardRepo) GetRecentSubmissions(ctx context.Context, tx *gorm.DB, teacherID string, limit int) ([]*models.Submission, error) {
	subs, _, err := (&mockSubmissionRepo{r.m}).List(ctx, tx, repositories.SubmissionFilters{TeacherID: &teacherID})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(subs) > limit {
		subs = subs[:limit]
	}
	return subs, nil
}
