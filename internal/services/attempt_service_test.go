package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/quizdesk/exam-service/internal/events"
	"github.com/quizdesk/exam-service/internal/models"
	"github.com/quizdesk/exam-service/internal/validator"
)

type testEnv struct {
	repo      *mockRepository
	publisher *events.MockEventPublisher
	exams     ExamService
	attempts  AttemptService
	review    ReviewService
	pool      PoolService
	imports   ImportService
	dashboard DashboardService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := newMockRepository()
	publisher := events.NewMockEventPublisher(logger)
	v := validator.New()

	return &testEnv{
		repo:      repo,
		publisher: publisher,
		exams:     NewExamService(repo, nil, logger, v, publisher),
		attempts:  NewAttemptService(repo, nil, logger, v, publisher),
		review:    NewReviewService(repo, nil, logger, v, publisher),
		pool:      NewPoolService(repo, nil, logger, v),
		imports:   NewImportService(repo, nil, logger, v),
		dashboard: NewDashboardService(repo, nil, logger),
	}
}

func (e *testEnv) seedUser(t *testing.T, id string, role models.UserRole) {
	t.Helper()
	err := e.repo.User().Upsert(context.Background(), nil, &models.User{
		ID:       id,
		FullName: "User " + id,
		Email:    id + "@school.test",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

// seedActiveExam creates and publishes a 3-question exam worth 1+2+3 points,
// correct options 1, 0, 2.
func (e *testEnv) seedActiveExam(t *testing.T, teacherID string, shuffle, allowReattempts bool) *models.Exam {
	t.Helper()
	resp, err := e.exams.Create(context.Background(), &CreateExamRequest{
		Title:           "Algebra Midterm " + t.Name(),
		Duration:        45,
		PassingScore:    60,
		Visibility:      "public",
		ShuffleOrder:    shuffle,
		AllowReattempts: allowReattempts,
		Questions: []ExamQuestionRequest{
			{Text: "What is 2+2?", Options: []string{"3", "4", "5"}, CorrectIndex: 1, Points: 1},
			{Text: "What is 10/2?", Options: []string{"5", "2", "25"}, CorrectIndex: 0, Points: 2},
			{Text: "What is 3*3?", Options: []string{"6", "33", "9"}, CorrectIndex: 2, Points: 3},
		},
	}, teacherID)
	if err != nil {
		t.Fatalf("create exam: %v", err)
	}
	if err := e.exams.Publish(context.Background(), resp.ID, teacherID); err != nil {
		t.Fatalf("publish exam: %v", err)
	}
	return resp.Exam
}

func TestAttemptLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "teacher-1", models.RoleTeacher)
	env.seedUser(t, "student-1", models.RoleStudent)
	exam := env.seedActiveExam(t, "teacher-1", false, false)

	attempt, err := env.attempts.Start(ctx, &StartAttemptRequest{ExamID: exam.ID}, "student-1")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if attempt.Status != models.AttemptInProgress {
		t.Errorf("status = %s, want %s", attempt.Status, models.AttemptInProgress)
	}
	if got, want := len(attempt.Questions), 3; got != want {
		t.Fatalf("question count = %d, want %d", got, want)
	}
	if attempt.TimeRemaining <= 0 || attempt.TimeRemaining > 45*60 {
		t.Errorf("time remaining = %d, want within (0, %d]", attempt.TimeRemaining, 45*60)
	}
	for _, q := range attempt.Questions {
		if q.Answered {
			t.Errorf("question %d should start unanswered", q.Position)
		}
	}

	// Starting again resumes the same attempt.
	again, err := env.attempts.Start(ctx, &StartAttemptRequest{ExamID: exam.ID}, "student-1")
	if err != nil {
		t.Fatalf("restart error = %v", err)
	}
	if again.ID != attempt.ID {
		t.Errorf("restart created a new attempt: %d != %d", again.ID, attempt.ID)
	}

	// Answer questions 0 and 2 correctly (identity order, so presentation ==
	// original): 1 + 3 of 6 points.
	if err := env.attempts.SaveAnswer(ctx, attempt.ID, &SaveAnswerRequest{Position: 0, Option: 1}, "student-1"); err != nil {
		t.Fatalf("SaveAnswer(0) error = %v", err)
	}
	if err := env.attempts.SaveAnswer(ctx, attempt.ID, &SaveAnswerRequest{Position: 2, Option: 2}, "student-1"); err != nil {
		t.Fatalf("SaveAnswer(2) error = %v", err)
	}

	// Bookmark and flag survive round trips.
	on, err := env.attempts.ToggleBookmark(ctx, attempt.ID, &ToggleRequest{Position: 1}, "student-1")
	if err != nil || !on {
		t.Fatalf("ToggleBookmark() = %v, %v, want true, nil", on, err)
	}
	resumed, err := env.attempts.Resume(ctx, attempt.ID, "student-1")
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if !resumed.Questions[1].Bookmarked {
		t.Error("bookmark did not survive resume")
	}
	if resumed.AnsweredCount != 2 {
		t.Errorf("answered count = %d, want 2", resumed.AnsweredCount)
	}

	result, err := env.attempts.Submit(ctx, attempt.ID, "student-1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	// 4 of 6 points = 66.67 -> 67, passing at 60.
	if result.Submission.Score != 67 {
		t.Errorf("score = %d, want 67", result.Submission.Score)
	}
	if !result.Submission.Passed {
		t.Error("expected a passing submission")
	}
	if result.Submission.AutoSubmitted {
		t.Error("manual submit must not be marked auto-submitted")
	}
	if result.CorrectCount != 2 || result.AnsweredCount != 2 {
		t.Errorf("correct/answered = %d/%d, want 2/2", result.CorrectCount, result.AnsweredCount)
	}

	// Second submit loses the claim.
	if _, err := env.attempts.Submit(ctx, attempt.ID, "student-1"); !errors.Is(err, ErrAttemptAlreadySubmitted) {
		t.Errorf("second Submit() error = %v, want ErrAttemptAlreadySubmitted", err)
	}

	// Late answers bounce off the completed attempt.
	if err := env.attempts.SaveAnswer(ctx, attempt.ID, &SaveAnswerRequest{Position: 1, Option: 0}, "student-1"); !errors.Is(err, ErrAttemptNotActive) {
		t.Errorf("late SaveAnswer() error = %v, want ErrAttemptNotActive", err)
	}
}

func TestAttemptShuffleKeysAnswersByOriginalIndex(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "teacher-1", models.RoleTeacher)
	env.seedUser(t, "student-1", models.RoleStudent)
	exam := env.seedActiveExam(t, "teacher-1", true, false)

	attempt, err := env.attempts.Start(ctx, &StartAttemptRequest{ExamID: exam.ID}, "student-1")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	order, err := attempt.OrderList()
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	correctByOriginal := []int{1, 0, 2}

	// Answer every question correctly through its presentation position.
	for presentation, original := range order {
		req := &SaveAnswerRequest{Position: presentation, Option: correctByOriginal[original]}
		if err := env.attempts.SaveAnswer(ctx, attempt.ID, req, "student-1"); err != nil {
			t.Fatalf("SaveAnswer(%d) error = %v", presentation, err)
		}
	}

	result, err := env.attempts.Submit(ctx, attempt.ID, "student-1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if result.Submission.Score != 100 {
		t.Errorf("score = %d, want 100: answers must be graded by original index", result.Submission.Score)
	}

	// The stored answer map is keyed by original index.
	answers, err := result.Submission.AnswerMap()
	if err != nil {
		t.Fatalf("answers: %v", err)
	}
	for original, selected := range answers {
		if selected != correctByOriginal[original] {
			t.Errorf("answers[%d] = %d, want %d", original, selected, correctByOriginal[original])
		}
	}
}

func TestAttemptTimeout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "teacher-1", models.RoleTeacher)
	env.seedUser(t, "student-1", models.RoleStudent)
	exam := env.seedActiveExam(t, "teacher-1", false, false)

	attempt, err := env.attempts.Start(ctx, &StartAttemptRequest{ExamID: exam.ID}, "student-1")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := env.attempts.SaveAnswer(ctx, attempt.ID, &SaveAnswerRequest{Position: 0, Option: 1}, "student-1"); err != nil {
		t.Fatalf("SaveAnswer() error = %v", err)
	}

	// Force the deadline into the past.
	past := time.Now().Add(-time.Minute)
	env.repo.attempts[attempt.ID].EndsAt = &past

	swept, err := env.attempts.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired() error = %v", err)
	}
	if swept != 1 {
		t.Fatalf("swept = %d, want 1", swept)
	}

	submission, err := env.repo.Submission().GetByAttempt(ctx, nil, attempt.ID)
	if err != nil {
		t.Fatalf("submission after timeout: %v", err)
	}
	if !submission.AutoSubmitted {
		t.Error("timeout submission must be marked auto-submitted")
	}
	// Only the answered question counts: 1 of 6 points -> 17.
	if submission.Score != 17 {
		t.Errorf("score = %d, want 17", submission.Score)
	}

	// Sweeping again finds nothing; the claim fired exactly once.
	swept, err = env.attempts.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("second SweepExpired() error = %v", err)
	}
	if swept != 0 {
		t.Errorf("second sweep = %d, want 0", swept)
	}

	// The student's manual submit after expiry loses the race cleanly.
	if _, err := env.attempts.Submit(ctx, attempt.ID, "student-1"); !errors.Is(err, ErrAttemptAlreadySubmitted) {
		t.Errorf("Submit() after timeout = %v, want ErrAttemptAlreadySubmitted", err)
	}

	// An auto-submission event went out.
	var sawEvent bool
	for _, ev := range env.publisher.GetPublishedEvents() {
		if ev.Type == events.EventSubmissionCompleted {
			sawEvent = true
		}
	}
	if !sawEvent {
		t.Error("expected a submission.completed event after timeout")
	}
}

func TestAttemptReattemptPolicy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "teacher-1", models.RoleTeacher)
	env.seedUser(t, "student-1", models.RoleStudent)

	t.Run("reattempts disabled", func(t *testing.T) {
		exam := env.seedActiveExam(t, "teacher-1", false, false)

		attempt, err := env.attempts.Start(ctx, &StartAttemptRequest{ExamID: exam.ID}, "student-1")
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if _, err := env.attempts.Submit(ctx, attempt.ID, "student-1"); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}

		if _, err := env.attempts.Start(ctx, &StartAttemptRequest{ExamID: exam.ID}, "student-1"); !errors.Is(err, ErrAlreadyAttempted) {
			t.Errorf("second Start() error = %v, want ErrAlreadyAttempted", err)
		}
	})

	t.Run("reattempts allowed", func(t *testing.T) {
		exam := env.seedActiveExam(t, "teacher-1", false, true)

		first, err := env.attempts.Start(ctx, &StartAttemptRequest{ExamID: exam.ID}, "student-1")
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if _, err := env.attempts.Submit(ctx, first.ID, "student-1"); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}

		second, err := env.attempts.Start(ctx, &StartAttemptRequest{ExamID: exam.ID}, "student-1")
		if err != nil {
			t.Fatalf("second Start() error = %v", err)
		}
		if second.ID == first.ID {
			t.Error("reattempt must create a fresh attempt")
		}
	})
}

func TestAttemptAccessControl(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "teacher-1", models.RoleTeacher)
	env.seedUser(t, "student-1", models.RoleStudent)
	env.seedUser(t, "student-2", models.RoleStudent)
	exam := env.seedActiveExam(t, "teacher-1", false, false)

	attempt, err := env.attempts.Start(ctx, &StartAttemptRequest{ExamID: exam.ID}, "student-1")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Another student cannot touch the attempt.
	if err := env.attempts.SaveAnswer(ctx, attempt.ID, &SaveAnswerRequest{Position: 0, Option: 1}, "student-2"); !IsPermissionError(err) {
		t.Errorf("foreign SaveAnswer() error = %v, want permission error", err)
	}
	if _, err := env.attempts.Submit(ctx, attempt.ID, "student-2"); !IsPermissionError(err) {
		t.Errorf("foreign Submit() error = %v, want permission error", err)
	}

	// The owner cannot take their own exam.
	if _, err := env.attempts.Start(ctx, &StartAttemptRequest{ExamID: exam.ID}, "teacher-1"); !IsPermissionError(err) {
		t.Errorf("owner Start() error = %v, want permission error", err)
	}

	// An unpublished exam is not startable.
	draft, err := env.exams.Create(ctx, &CreateExamRequest{
		Title:        "Draft Quiz",
		Duration:     10,
		PassingScore: 50,
		Questions: []ExamQuestionRequest{
			{Text: "Q?", Options: []string{"a", "b"}, CorrectIndex: 0, Points: 1},
		},
	}, "teacher-1")
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if _, err := env.attempts.Start(ctx, &StartAttemptRequest{ExamID: draft.ID}, "student-1"); !errors.Is(err, ErrExamNotPublished) {
		t.Errorf("Start() on draft error = %v, want ErrExamNotPublished", err)
	}
}

func TestTimeRemaining(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "teacher-1", models.RoleTeacher)
	env.seedUser(t, "student-1", models.RoleStudent)
	exam := env.seedActiveExam(t, "teacher-1", false, false)

	attempt, err := env.attempts.Start(ctx, &StartAttemptRequest{ExamID: exam.ID}, "student-1")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	remaining, warning, err := env.attempts.TimeRemaining(ctx, attempt.ID, "student-1")
	if err != nil {
		t.Fatalf("TimeRemaining() error = %v", err)
	}
	if remaining <= 0 || remaining > 45*60 {
		t.Errorf("remaining = %d, want within (0, %d]", remaining, 45*60)
	}
	if warning {
		t.Error("warning must not fire with most of the clock left")
	}

	// Move into the warning window.
	warnAt := time.Now().Add(200 * time.Second)
	env.repo.attempts[attempt.ID].EndsAt = &warnAt
	remaining, warning, err = env.attempts.TimeRemaining(ctx, attempt.ID, "student-1")
	if err != nil {
		t.Fatalf("TimeRemaining() error = %v", err)
	}
	if !warning {
		t.Errorf("warning must fire at %d seconds remaining", remaining)
	}

	// Past the deadline the attempt is finalized.
	past := time.Now().Add(-time.Second)
	env.repo.attempts[attempt.ID].EndsAt = &past
	if _, _, err := env.attempts.TimeRemaining(ctx, attempt.ID, "student-1"); !errors.Is(err, ErrAttemptTimeExpired) {
		t.Errorf("TimeRemaining() after expiry = %v, want ErrAttemptTimeExpired", err)
	}
	submission, err := env.repo.Submission().GetByAttempt(ctx, nil, attempt.ID)
	if err != nil {
		t.Fatalf("submission after expiry: %v", err)
	}
	if !submission.AutoSubmitted {
		t.Error("expiry via TimeRemaining must auto-submit")
	}
}

func TestAttemptCorruptQuestionOptions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "teacher-1", models.RoleTeacher)
	env.seedUser(t, "student-1", models.RoleStudent)
	exam := env.seedActiveExam(t, "teacher-1", false, false)

	attempt, err := env.attempts.Start(ctx, &StartAttemptRequest{ExamID: exam.ID}, "student-1")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Corrupt one question's stored options.
	env.repo.mu.Lock()
	env.repo.questions[exam.ID][1].Options = datatypes.JSON("{")
	env.repo.mu.Unlock()

	err = env.attempts.SaveAnswer(ctx, attempt.ID, &SaveAnswerRequest{Position: 0, Option: 1}, "student-1")
	if err == nil {
		t.Fatal("SaveAnswer() with undecodable options succeeded, want error")
	}
	if !strings.Contains(err.Error(), "failed to decode options") {
		t.Errorf("SaveAnswer() error = %v, want decode failure surfaced", err)
	}
}
