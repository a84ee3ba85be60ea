package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/quizdesk/exam-service/internal/engine"
	"github.com/quizdesk/exam-service/internal/events"
	"github.com/quizdesk/exam-service/internal/models"
	"github.com/quizdesk/exam-service/internal/repositories"
	"github.com/quizdesk/exam-service/internal/validator"
)

// expiredSweepBatch caps how many overdue attempts one sweep pass finalizes.
const expiredSweepBatch = 100

type attemptService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	business  *validator.BusinessValidator
	publisher events.EventPublisher
}

func NewAttemptService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher) AttemptService {
	return &attemptService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
		business:  validator.NewBusinessValidator(v),
		publisher: publisher,
	}
}

// ===== CORE ATTEMPT OPERATIONS =====

func (s *attemptService) Start(ctx context.Context, req *StartAttemptRequest, studentID string) (*AttemptResponse, error) {
	s.logger.Info("Starting exam attempt", "exam_id", req.ExamID, "student_id", studentID)

	if err := s.validator.Validate(req); err != nil {
		return nil, NewValidationError("invalid start request", err)
	}

	exam, err := s.repo.Exam().GetByIDWithQuestions(ctx, s.db, req.ExamID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	if exam.CreatedBy == studentID {
		return nil, NewPermissionError(studentID, req.ExamID, "exam", "take", "teachers cannot take their own exam")
	}
	if !exam.Published || exam.Status != models.ExamStatusActive {
		return nil, ErrExamNotPublished
	}

	// Starting with an open attempt resumes it; it never creates a second one.
	existing, err := s.repo.Attempt().GetInProgress(ctx, s.db, req.ExamID, studentID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check open attempt: %w", err)
	}
	if existing != nil {
		if s.expired(existing) {
			if err := s.HandleTimeout(ctx, existing.ID); err != nil {
				s.logger.Error("Failed to finalize expired attempt", "attempt_id", existing.ID, "error", err)
			}
		} else {
			s.logger.Info("Resuming open attempt", "attempt_id", existing.ID)
			return s.buildAttemptResponse(existing, exam, true)
		}
	}

	completed, err := s.repo.Attempt().CountByStudent(ctx, s.db, req.ExamID, studentID, attemptStatusPtr(models.AttemptCompleted))
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}
	if errs := s.business.ValidateAttemptStart(exam, int(completed)); len(errs) > 0 {
		return nil, ErrAlreadyAttempted
	}

	questions, err := engineQuestions(exam)
	if err != nil {
		return nil, err
	}
	eng, err := engine.NewAttempt(engine.Config{
		Questions:        questions,
		Shuffle:          exam.ShuffleOrder,
		TimeLimitSeconds: exam.Duration * 60,
	})
	if err != nil {
		return nil, NewValidationError("exam cannot be started", err)
	}

	attempt, err := s.persistNewAttempt(ctx, exam, studentID, eng)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Exam attempt started",
		"attempt_id", attempt.ID,
		"exam_id", req.ExamID,
		"student_id", studentID,
		"shuffled", exam.ShuffleOrder)

	return s.buildAttemptResponse(attempt, exam, true)
}

func (s *attemptService) Resume(ctx context.Context, attemptID uint, studentID string) (*AttemptResponse, error) {
	attempt, err := s.activeAttempt(ctx, attemptID, studentID, "resume")
	if err != nil {
		return nil, err
	}
	return s.buildAttemptResponse(attempt, &attempt.Exam, true)
}

func (s *attemptService) GetCurrent(ctx context.Context, examID uint, studentID string) (*AttemptResponse, error) {
	attempt, err := s.repo.Attempt().GetInProgress(ctx, s.db, examID, studentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get open attempt: %w", err)
	}
	return s.Resume(ctx, attempt.ID, studentID)
}

// Submit is the student-initiated finish. The status claim decides the race
// against a second tab or the timeout sweeper: exactly one caller wins it and
// creates the submission.
func (s *attemptService) Submit(ctx context.Context, attemptID uint, studentID string) (*SubmitResult, error) {
	s.logger.Info("Submitting attempt", "attempt_id", attemptID, "student_id", studentID)

	attempt, err := s.repo.Attempt().GetByIDWithExam(ctx, s.db, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt.StudentID != studentID {
		return nil, NewPermissionError(studentID, attemptID, "attempt", "submit", "not owned by student")
	}
	if attempt.Status != models.AttemptInProgress {
		return nil, ErrAttemptAlreadySubmitted
	}

	claimed, err := s.repo.Attempt().ClaimSubmitting(ctx, s.db, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim submission: %w", err)
	}
	if !claimed {
		return nil, ErrAttemptAlreadySubmitted
	}

	submission, result, err := s.finalize(ctx, attempt, &attempt.Exam, false)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Attempt submitted",
		"attempt_id", attemptID,
		"submission_id", submission.ID,
		"score", submission.Score,
		"passed", submission.Passed)

	return &SubmitResult{
		Submission:    submission,
		CorrectCount:  result.CorrectCount,
		AnsweredCount: result.AnsweredCount,
	}, nil
}

// ===== IN-PROGRESS STATE UPDATES =====

func (s *attemptService) SaveAnswer(ctx context.Context, attemptID uint, req *SaveAnswerRequest, studentID string) error {
	if err := s.validator.Validate(req); err != nil {
		return NewValidationError("invalid answer", err)
	}

	attempt, err := s.activeAttempt(ctx, attemptID, studentID, "answer")
	if err != nil {
		return err
	}
	eng, err := s.restoreEngine(attempt, &attempt.Exam)
	if err != nil {
		return err
	}

	if err := eng.SelectAnswer(req.Position, req.Option); err != nil {
		return NewValidationError("answer rejected", err)
	}

	return s.saveEngineState(ctx, attempt, eng)
}

func (s *attemptService) ToggleBookmark(ctx context.Context, attemptID uint, req *ToggleRequest, studentID string) (bool, error) {
	return s.toggleMark(ctx, attemptID, req, studentID, "bookmark")
}

func (s *attemptService) ToggleFlag(ctx context.Context, attemptID uint, req *ToggleRequest, studentID string) (bool, error) {
	return s.toggleMark(ctx, attemptID, req, studentID, "flag")
}

func (s *attemptService) UpdatePosition(ctx context.Context, attemptID uint, req *PositionRequest, studentID string) error {
	if err := s.validator.Validate(req); err != nil {
		return NewValidationError("invalid position", err)
	}

	attempt, err := s.activeAttempt(ctx, attemptID, studentID, "navigate")
	if err != nil {
		return err
	}
	eng, err := s.restoreEngine(attempt, &attempt.Exam)
	if err != nil {
		return err
	}

	if err := eng.GoTo(req.Position); err != nil {
		return NewValidationError("position out of range", err)
	}

	return s.saveEngineState(ctx, attempt, eng)
}

// ===== TIME MANAGEMENT =====

// TimeRemaining reports the server-authoritative clock. The warning flag is
// raised while remaining time is inside the warning window, so a client that
// missed the exact threshold tick still surfaces it.
func (s *attemptService) TimeRemaining(ctx context.Context, attemptID uint, studentID string) (int, bool, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, s.db, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return 0, false, ErrAttemptNotFound
		}
		return 0, false, fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt.StudentID != studentID {
		return 0, false, NewPermissionError(studentID, attemptID, "attempt", "read", "not owned by student")
	}
	if attempt.Status != models.AttemptInProgress {
		return 0, false, ErrAttemptNotActive
	}

	remaining := s.secondsLeft(attempt)
	if remaining <= 0 {
		if err := s.HandleTimeout(ctx, attemptID); err != nil {
			s.logger.Error("Failed to finalize expired attempt", "attempt_id", attemptID, "error", err)
		}
		return 0, false, ErrAttemptTimeExpired
	}

	warning := remaining <= engine.DefaultWarningThreshold
	return remaining, warning, nil
}

// HandleTimeout auto-submits an expired attempt. Safe to call repeatedly and
// from multiple workers: the claim makes sure only one caller grades it.
func (s *attemptService) HandleTimeout(ctx context.Context, attemptID uint) error {
	attempt, err := s.repo.Attempt().GetByIDWithExam(ctx, s.db, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAttemptNotFound
		}
		return fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt.Status != models.AttemptInProgress {
		return nil
	}
	if !s.expired(attempt) {
		return nil
	}

	claimed, err := s.repo.Attempt().ClaimSubmitting(ctx, s.db, attemptID)
	if err != nil {
		return fmt.Errorf("failed to claim submission: %w", err)
	}
	if !claimed {
		return nil
	}

	submission, _, err := s.finalize(ctx, attempt, &attempt.Exam, true)
	if err != nil {
		return err
	}

	s.logger.Info("Attempt auto-submitted on timeout",
		"attempt_id", attemptID,
		"submission_id", submission.ID,
		"score", submission.Score)
	return nil
}

// SweepExpired finalizes overdue attempts in batches. Run periodically by the
// background sweeper in main.
func (s *attemptService) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.repo.Attempt().ListExpired(ctx, s.db, time.Now(), expiredSweepBatch)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired attempts: %w", err)
	}

	handled := 0
	for _, attempt := range expired {
		if err := s.HandleTimeout(ctx, attempt.ID); err != nil {
			s.logger.Error("Sweep failed to finalize attempt", "attempt_id", attempt.ID, "error", err)
			continue
		}
		handled++
	}
	if handled > 0 {
		s.logger.Info("Expired attempts swept", "count", handled)
	}
	return handled, nil
}

// ===== LIST OPERATIONS =====

func (s *attemptService) List(ctx context.Context, filters repositories.AttemptFilters, userID string) ([]*AttemptResponse, int64, error) {
	isTeacher, err := s.repo.User().HasRole(ctx, s.db, userID, models.RoleTeacher)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to check role: %w", err)
	}
	if !isTeacher {
		filters.StudentID = &userID
	}

	attempts, total, err := s.repo.Attempt().List(ctx, s.db, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts: %w", err)
	}

	responses := make([]*AttemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		resp, err := s.buildAttemptResponse(attempt, nil, false)
		if err != nil {
			return nil, 0, err
		}
		responses = append(responses, resp)
	}
	return responses, total, nil
}
