package services

import (
	"context"
	"fmt"
	"time"

	"github.com/quizdesk/exam-service/internal/engine"
	"github.com/quizdesk/exam-service/internal/events"
	"github.com/quizdesk/exam-service/internal/models"
	"github.com/quizdesk/exam-service/internal/repositories"
)

// activeAttempt loads an attempt for a state mutation: verifies ownership,
// that it is still in progress, and that the clock has not run out. An
// expired attempt is finalized on the spot.
func (s *attemptService) activeAttempt(ctx context.Context, attemptID uint, studentID, action string) (*models.ExamAttempt, error) {
	attempt, err := s.repo.Attempt().GetByIDWithExam(ctx, s.db, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt.StudentID != studentID {
		return nil, NewPermissionError(studentID, attemptID, "attempt", action, "not owned by student")
	}
	if attempt.Status != models.AttemptInProgress {
		return nil, ErrAttemptNotActive
	}
	if s.expired(attempt) {
		if err := s.HandleTimeout(ctx, attemptID); err != nil {
			s.logger.Error("Failed to finalize expired attempt", "attempt_id", attemptID, "error", err)
		}
		return nil, ErrAttemptTimeExpired
	}
	return attempt, nil
}

func (s *attemptService) expired(attempt *models.ExamAttempt) bool {
	return attempt.EndsAt != nil && !time.Now().Before(*attempt.EndsAt)
}

// secondsLeft computes remaining time from the stored deadline. The server
// clock is authoritative; the persisted time_remaining column is only an
// advisory snapshot for display.
func (s *attemptService) secondsLeft(attempt *models.ExamAttempt) int {
	if attempt.EndsAt == nil {
		return attempt.TimeRemaining
	}
	left := int(time.Until(*attempt.EndsAt).Seconds())
	if left < 0 {
		return 0
	}
	return left
}

// persistNewAttempt writes a freshly started attempt row from engine state.
func (s *attemptService) persistNewAttempt(ctx context.Context, exam *models.Exam, studentID string, eng *engine.Attempt) (*models.ExamAttempt, error) {
	orderJSON, err := models.EncodeJSON(eng.Order())
	if err != nil {
		return nil, err
	}
	answersJSON, err := models.EncodeJSON(eng.Answers())
	if err != nil {
		return nil, err
	}
	bookmarkedJSON, err := models.EncodeJSON(eng.Bookmarked())
	if err != nil {
		return nil, err
	}
	flaggedJSON, err := models.EncodeJSON(eng.Flagged())
	if err != nil {
		return nil, err
	}

	now := time.Now()
	endsAt := now.Add(time.Duration(exam.Duration) * time.Minute)
	attempt := &models.ExamAttempt{
		ExamID:        exam.ID,
		StudentID:     studentID,
		Status:        models.AttemptInProgress,
		StartedAt:     &now,
		EndsAt:        &endsAt,
		TimeRemaining: exam.Duration * 60,
		QuestionOrder: orderJSON,
		Answers:       answersJSON,
		Bookmarked:    bookmarkedJSON,
		Flagged:       flaggedJSON,
	}
	if err := s.repo.Attempt().Create(ctx, s.db, attempt); err != nil {
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}
	attempt.Exam = *exam
	return attempt, nil
}

// restoreEngine rebuilds the in-memory attempt from the persisted row.
func (s *attemptService) restoreEngine(attempt *models.ExamAttempt, exam *models.Exam) (*engine.Attempt, error) {
	order, err := attempt.OrderList()
	if err != nil {
		return nil, fmt.Errorf("attempt %d: %w", attempt.ID, err)
	}
	answers, err := attempt.AnswerMap()
	if err != nil {
		return nil, fmt.Errorf("attempt %d: %w", attempt.ID, err)
	}
	bookmarks, err := attempt.BookmarkedList()
	if err != nil {
		return nil, fmt.Errorf("attempt %d: %w", attempt.ID, err)
	}
	flags, err := attempt.FlaggedList()
	if err != nil {
		return nil, fmt.Errorf("attempt %d: %w", attempt.ID, err)
	}

	questions, err := engineQuestions(exam)
	if err != nil {
		return nil, fmt.Errorf("attempt %d: %w", attempt.ID, err)
	}

	eng, err := engine.Restore(engine.Config{
		Questions:        questions,
		TimeLimitSeconds: exam.Duration * 60,
	}, order, answers, bookmarks, flags, attempt.CurrentPosition, s.secondsLeft(attempt))
	if err != nil {
		return nil, fmt.Errorf("attempt %d: failed to restore state: %w", attempt.ID, err)
	}
	return eng, nil
}

// saveEngineState writes engine state back to the attempt row.
func (s *attemptService) saveEngineState(ctx context.Context, attempt *models.ExamAttempt, eng *engine.Attempt) error {
	answersJSON, err := models.EncodeJSON(eng.Answers())
	if err != nil {
		return err
	}
	bookmarkedJSON, err := models.EncodeJSON(eng.Bookmarked())
	if err != nil {
		return err
	}
	flaggedJSON, err := models.EncodeJSON(eng.Flagged())
	if err != nil {
		return err
	}

	attempt.Answers = answersJSON
	attempt.Bookmarked = bookmarkedJSON
	attempt.Flagged = flaggedJSON
	attempt.CurrentPosition = eng.Position()
	attempt.TimeRemaining = s.secondsLeft(attempt)

	if err := s.repo.Attempt().SaveState(ctx, s.db, attempt); err != nil {
		if repositories.IsNotFoundError(err) {
			// The row left in_progress between our read and this write.
			return ErrAttemptNotActive
		}
		return fmt.Errorf("failed to save attempt state: %w", err)
	}
	return nil
}

func (s *attemptService) toggleMark(ctx context.Context, attemptID uint, req *ToggleRequest, studentID, kind string) (bool, error) {
	if err := s.validator.Validate(req); err != nil {
		return false, NewValidationError("invalid toggle", err)
	}

	attempt, err := s.activeAttempt(ctx, attemptID, studentID, kind)
	if err != nil {
		return false, err
	}
	eng, err := s.restoreEngine(attempt, &attempt.Exam)
	if err != nil {
		return false, err
	}

	var on bool
	if kind == "bookmark" {
		on, err = eng.ToggleBookmark(req.Position)
	} else {
		on, err = eng.ToggleFlag(req.Position)
	}
	if err != nil {
		return false, NewValidationError("position out of range", err)
	}

	if err := s.saveEngineState(ctx, attempt, eng); err != nil {
		return false, err
	}
	return on, nil
}

// finalize grades a claimed attempt and records the submission. The claim is
// already won; everything here happens in one transaction so a failure leaves
// no partial state, and the claim is released so the submission can be
// retried.
func (s *attemptService) finalize(ctx context.Context, attempt *models.ExamAttempt, exam *models.Exam, autoSubmitted bool) (*models.Submission, *engine.Result, error) {
	answers, err := attempt.AnswerMap()
	if err != nil {
		return nil, nil, fmt.Errorf("attempt %d: %w", attempt.ID, err)
	}

	key := make([]engine.ScoredQuestion, len(exam.Questions))
	for i, q := range exam.Questions {
		key[i] = engine.ScoredQuestion{Points: q.Points, CorrectIndex: q.CorrectIndex}
	}
	result := engine.Score(key, answers)

	now := time.Now()
	timeSpent := exam.Duration * 60
	if attempt.StartedAt != nil {
		spent := int(now.Sub(*attempt.StartedAt).Seconds())
		if spent >= 0 && spent < timeSpent {
			timeSpent = spent
		}
	}

	submission := &models.Submission{
		ExamID:        exam.ID,
		StudentID:     attempt.StudentID,
		TeacherID:     exam.CreatedBy,
		AttemptID:     attempt.ID,
		Score:         result.Score,
		EarnedPoints:  result.EarnedPoints,
		TotalPoints:   result.TotalPoints,
		Passed:        engine.Passed(result.Score, exam.PassingScore),
		Answers:       attempt.Answers,
		QuestionOrder: attempt.QuestionOrder,
		Bookmarked:    attempt.Bookmarked,
		Flagged:       attempt.Flagged,
		TimeSpent:     timeSpent,
		AutoSubmitted: autoSubmitted,
		StartedAt:     attempt.StartedAt,
		SubmittedAt:   now,
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Submission().Create(ctx, nil, submission); err != nil {
			return fmt.Errorf("failed to create submission: %w", err)
		}
		if err := txRepo.Attempt().MarkCompleted(ctx, nil, attempt.ID, now); err != nil {
			return fmt.Errorf("failed to complete attempt: %w", err)
		}
		return nil
	})
	if err != nil {
		if releaseErr := s.repo.Attempt().ReleaseClaim(ctx, s.db, attempt.ID); releaseErr != nil {
			s.logger.Error("Failed to release submission claim", "attempt_id", attempt.ID, "error", releaseErr)
		}
		return nil, nil, err
	}

	s.publishEvent(ctx, events.NewEvent(events.EventSubmissionCompleted, events.SubmissionCompletedEvent{
		SubmissionID:  submission.ID,
		ExamID:        exam.ID,
		StudentID:     attempt.StudentID,
		TeacherID:     exam.CreatedBy,
		Score:         submission.Score,
		Passed:        submission.Passed,
		AutoSubmitted: autoSubmitted,
	}))

	return submission, &result, nil
}

func (s *attemptService) publishEvent(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event", "event_type", event.Type, "error", err)
	}
}

// buildAttemptResponse shapes an attempt for the student. Questions are laid
// out in presentation order with grading data stripped; exam may be nil when
// the caller only needs the summary row.
func (s *attemptService) buildAttemptResponse(attempt *models.ExamAttempt, exam *models.Exam, withQuestions bool) (*AttemptResponse, error) {
	remaining := s.secondsLeft(attempt)
	if attempt.Status != models.AttemptInProgress {
		remaining = 0
	}

	answers, err := attempt.AnswerMap()
	if err != nil {
		return nil, fmt.Errorf("attempt %d: %w", attempt.ID, err)
	}

	resp := &AttemptResponse{
		ExamAttempt:   attempt,
		TimeRemaining: remaining,
		WarningIssued: remaining > 0 && remaining <= engine.DefaultWarningThreshold,
		AnsweredCount: len(answers),
		CanSubmit:     attempt.Status == models.AttemptInProgress,
	}
	if exam != nil {
		resp.ExamTitle = exam.Title
		resp.QuestionsCount = len(exam.Questions)
	}
	if !withQuestions || exam == nil {
		return resp, nil
	}

	order, err := attempt.OrderList()
	if err != nil {
		return nil, fmt.Errorf("attempt %d: %w", attempt.ID, err)
	}
	bookmarks, err := attempt.BookmarkedList()
	if err != nil {
		return nil, fmt.Errorf("attempt %d: %w", attempt.ID, err)
	}
	flags, err := attempt.FlaggedList()
	if err != nil {
		return nil, fmt.Errorf("attempt %d: %w", attempt.ID, err)
	}
	bookmarked := intSet(bookmarks)
	flagged := intSet(flags)

	questions := make([]QuestionForAttempt, 0, len(order))
	for presentation, original := range order {
		if original < 0 || original >= len(exam.Questions) {
			return nil, fmt.Errorf("attempt %d: order references question %d of %d", attempt.ID, original, len(exam.Questions))
		}
		q := exam.Questions[original]
		options, err := q.OptionList()
		if err != nil {
			return nil, err
		}

		item := QuestionForAttempt{
			Position:   presentation,
			Text:       q.Text,
			ImageURL:   q.ImageURL,
			Options:    options,
			Points:     q.Points,
			Bookmarked: bookmarked[original],
			Flagged:    flagged[original],
			IsFirst:    presentation == 0,
			IsLast:     presentation == len(order)-1,
		}
		if selected, ok := answers[original]; ok {
			sel := selected
			item.Answered = true
			item.Selected = &sel
		}
		questions = append(questions, item)
	}
	resp.Questions = questions
	return resp, nil
}

func engineQuestions(exam *models.Exam) ([]engine.Question, error) {
	questions := make([]engine.Question, len(exam.Questions))
	for i, q := range exam.Questions {
		options, err := q.OptionList()
		if err != nil {
			return nil, fmt.Errorf("exam %d question %d: failed to decode options: %w", exam.ID, i, err)
		}
		questions[i] = engine.Question{
			Points:       q.Points,
			CorrectIndex: q.CorrectIndex,
			OptionCount:  len(options),
		}
	}
	return questions, nil
}

func intSet(values []int) map[int]bool {
	set := make(map[int]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func attemptStatusPtr(status models.AttemptStatus) *models.AttemptStatus {
	return &status
}
