package services

import (
	"context"
	"testing"

	"github.com/quizdesk/exam-service/internal/events"
	"github.com/quizdesk/exam-service/internal/models"
	"github.com/quizdesk/exam-service/internal/repositories"
)

// submitGradedAttempt walks a student through the seeded exam answering
// question 0 correctly and question 1 wrong, leaving question 2 blank.
// With points 1+2+3 that grades to 1 of 6, score 17.
func submitGradedAttempt(t *testing.T, env *testEnv, examID uint, studentID string) *models.Submission {
	t.Helper()
	ctx := context.Background()

	attempt, err := env.attempts.Start(ctx, &StartAttemptRequest{ExamID: examID}, studentID)
	if err != nil {
		t.Fatalf("start attempt: %v", err)
	}
	if err := env.attempts.SaveAnswer(ctx, attempt.ID, &SaveAnswerRequest{Position: 0, Option: 1}, studentID); err != nil {
		t.Fatalf("answer 0: %v", err)
	}
	if err := env.attempts.SaveAnswer(ctx, attempt.ID, &SaveAnswerRequest{Position: 1, Option: 1}, studentID); err != nil {
		t.Fatalf("answer 1: %v", err)
	}
	result, err := env.attempts.Submit(ctx, attempt.ID, studentID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return result.Submission
}

func TestReviewGetSubmission(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "teacher-1", models.RoleTeacher)
	env.seedUser(t, "student-1", models.RoleStudent)
	env.seedUser(t, "student-2", models.RoleStudent)
	exam := env.seedActiveExam(t, "teacher-1", false, false)
	submission := submitGradedAttempt(t, env, exam.ID, "student-1")

	t.Run("teacher sees the full breakdown", func(t *testing.T) {
		got, err := env.review.GetSubmission(ctx, submission.ID, "teacher-1")
		if err != nil {
			t.Fatalf("GetSubmission() error = %v", err)
		}
		if got.Score != 17 {
			t.Errorf("score = %d, want 17", got.Score)
		}
		if len(got.Questions) != 3 {
			t.Fatalf("question count = %d, want 3", len(got.Questions))
		}

		q0 := got.Questions[0]
		if !q0.Correct || q0.EarnedPoints != 1 || q0.CorrectIndex != 1 {
			t.Errorf("q0 = correct %v earned %d key %d, want true 1 1", q0.Correct, q0.EarnedPoints, q0.CorrectIndex)
		}
		q1 := got.Questions[1]
		if q1.Correct || q1.EarnedPoints != 0 || q1.Selected == nil || *q1.Selected != 1 {
			t.Errorf("q1 must be answered wrong with zero points")
		}
		if got.Questions[2].Selected != nil {
			t.Error("q2 must be unanswered")
		}
	})

	t.Run("the student sees their own submission", func(t *testing.T) {
		if _, err := env.review.GetSubmission(ctx, submission.ID, "student-1"); err != nil {
			t.Errorf("GetSubmission() as owner error = %v", err)
		}
	})

	t.Run("other students are shut out", func(t *testing.T) {
		if _, err := env.review.GetSubmission(ctx, submission.ID, "student-2"); !IsPermissionError(err) {
			t.Errorf("GetSubmission() as stranger error = %v, want permission error", err)
		}
	})
}

func TestReviewOverrides(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "teacher-1", models.RoleTeacher)
	env.seedUser(t, "teacher-2", models.RoleTeacher)
	env.seedUser(t, "student-1", models.RoleStudent)
	exam := env.seedActiveExam(t, "teacher-1", false, false)
	submission := submitGradedAttempt(t, env, exam.ID, "student-1")

	t.Run("only the exam owner reviews", func(t *testing.T) {
		if _, err := env.review.Review(ctx, submission.ID, &ReviewRequest{}, "teacher-2"); !IsPermissionError(err) {
			t.Errorf("Review() error = %v, want permission error", err)
		}
	})

	t.Run("awarding points regrades the submission", func(t *testing.T) {
		feedback := "Partial credit for question two."
		got, err := env.review.Review(ctx, submission.ID, &ReviewRequest{
			Feedback:       &feedback,
			PointOverrides: map[int]int{1: 2},
		}, "teacher-1")
		if err != nil {
			t.Fatalf("Review() error = %v", err)
		}
		// 1 + 2 of 6 points -> 50, still below the 60 passing mark.
		if got.Score != 50 {
			t.Errorf("score = %d, want 50", got.Score)
		}
		if got.Passed {
			t.Error("50 must not pass at a 60 threshold")
		}
		if !got.Reviewed || got.ReviewedBy == nil || *got.ReviewedBy != "teacher-1" {
			t.Error("review must mark the submission reviewed by the teacher")
		}
		if !got.Questions[1].Overridden || got.Questions[1].EarnedPoints != 2 {
			t.Errorf("q1 override not applied: overridden %v earned %d", got.Questions[1].Overridden, got.Questions[1].EarnedPoints)
		}
	})

	t.Run("overrides accumulate across reviews", func(t *testing.T) {
		got, err := env.review.Review(ctx, submission.ID, &ReviewRequest{
			PointOverrides: map[int]int{2: 3},
		}, "teacher-1")
		if err != nil {
			t.Fatalf("Review() error = %v", err)
		}
		// 1 + 2 + 3 of 6 -> 100.
		if got.Score != 100 || !got.Passed {
			t.Errorf("score/passed = %d/%v, want 100/true", got.Score, got.Passed)
		}
	})

	t.Run("awards are clamped to question points", func(t *testing.T) {
		got, err := env.review.Review(ctx, submission.ID, &ReviewRequest{
			PointOverrides: map[int]int{1: 50},
		}, "teacher-1")
		if err != nil {
			t.Fatalf("Review() error = %v", err)
		}
		if got.Questions[1].EarnedPoints != 2 {
			t.Errorf("q1 earned = %d, want clamp to 2", got.Questions[1].EarnedPoints)
		}
	})

	t.Run("a negative award revokes the override", func(t *testing.T) {
		got, err := env.review.Review(ctx, submission.ID, &ReviewRequest{
			PointOverrides: map[int]int{1: -1, 2: -1},
		}, "teacher-1")
		if err != nil {
			t.Fatalf("Review() error = %v", err)
		}
		// Back to the automatic grade: 1 of 6 -> 17.
		if got.Score != 17 {
			t.Errorf("score = %d, want 17 after revoking overrides", got.Score)
		}
		if got.Questions[1].Overridden {
			t.Error("q1 must no longer be overridden")
		}
	})

	t.Run("out of range keys are rejected", func(t *testing.T) {
		if _, err := env.review.Review(ctx, submission.ID, &ReviewRequest{
			PointOverrides: map[int]int{9: 1},
		}, "teacher-1"); !IsValidationError(err) {
			t.Errorf("Review() error = %v, want validation error", err)
		}
	})

	t.Run("a review event goes out", func(t *testing.T) {
		var count int
		for _, ev := range env.publisher.GetPublishedEvents() {
			if ev.Type == events.EventSubmissionReviewed {
				count++
			}
		}
		if count == 0 {
			t.Error("expected at least one submission.reviewed event")
		}
	})
}

func TestReviewListsAndPendingCount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "teacher-1", models.RoleTeacher)
	env.seedUser(t, "student-1", models.RoleStudent)
	env.seedUser(t, "student-2", models.RoleStudent)
	exam := env.seedActiveExam(t, "teacher-1", false, false)

	first := submitGradedAttempt(t, env, exam.ID, "student-1")
	submitGradedAttempt(t, env, exam.ID, "student-2")

	t.Run("owner lists submissions by exam", func(t *testing.T) {
		list, err := env.review.ListByExam(ctx, exam.ID, repositories.SubmissionFilters{Limit: 20}, "teacher-1")
		if err != nil {
			t.Fatalf("ListByExam() error = %v", err)
		}
		if list.Total != 2 {
			t.Errorf("total = %d, want 2", list.Total)
		}
	})

	t.Run("non-owners cannot list", func(t *testing.T) {
		if _, err := env.review.ListByExam(ctx, exam.ID, repositories.SubmissionFilters{Limit: 20}, "student-1"); !IsPermissionError(err) {
			t.Errorf("ListByExam() error = %v, want permission error", err)
		}
	})

	t.Run("students list their own history", func(t *testing.T) {
		list, err := env.review.ListByStudent(ctx, "student-1", repositories.SubmissionFilters{Limit: 20})
		if err != nil {
			t.Fatalf("ListByStudent() error = %v", err)
		}
		if list.Total != 1 {
			t.Errorf("total = %d, want 1", list.Total)
		}
	})

	t.Run("pending count drops as reviews land", func(t *testing.T) {
		pending, err := env.review.PendingCount(ctx, "teacher-1")
		if err != nil {
			t.Fatalf("PendingCount() error = %v", err)
		}
		if pending != 2 {
			t.Errorf("pending = %d, want 2", pending)
		}
		if _, err := env.review.Review(ctx, first.ID, &ReviewRequest{}, "teacher-1"); err != nil {
			t.Fatalf("review: %v", err)
		}
		pending, err = env.review.PendingCount(ctx, "teacher-1")
		if err != nil {
			t.Fatalf("PendingCount() error = %v", err)
		}
		if pending != 1 {
			t.Errorf("pending = %d, want 1 after one review", pending)
		}
	})
}
