package validator

import (
	"testing"

	"github.com/quizdesk/exam-service/internal/models"
)

func strPtr(s string) *string { return &s }

func TestValidateExamCreate(t *testing.T) {
	bv := NewBusinessValidator(New())

	valid := func() *ExamCreateRequest {
		return &ExamCreateRequest{
			Title:        "Algebra Midterm",
			Duration:     45,
			PassingScore: 60,
			Questions: []ExamQuestionRequest{
				{Text: "2 + 2 = ?", Options: []string{"3", "4", "5"}, CorrectIndex: 1, Points: 2},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*ExamCreateRequest)
		wantErr bool
	}{
		{"valid request", func(r *ExamCreateRequest) {}, false},
		{"missing title", func(r *ExamCreateRequest) { r.Title = "" }, true},
		{"blank title", func(r *ExamCreateRequest) { r.Title = "   " }, true},
		{"zero duration", func(r *ExamCreateRequest) { r.Duration = 0 }, true},
		{"duration too long", func(r *ExamCreateRequest) { r.Duration = 301 }, true},
		{"passing score above 100", func(r *ExamCreateRequest) { r.PassingScore = 101 }, true},
		{"single option", func(r *ExamCreateRequest) { r.Questions[0].Options = []string{"4"} }, true},
		{"blank option", func(r *ExamCreateRequest) { r.Questions[0].Options = []string{"4", " "} }, true},
		{"correct index past options", func(r *ExamCreateRequest) { r.Questions[0].CorrectIndex = 3 }, true},
		{"empty question text", func(r *ExamCreateRequest) { r.Questions[0].Text = "" }, true},
		{"zero points", func(r *ExamCreateRequest) { r.Questions[0].Points = 0 }, true},
		{"no questions is a valid draft", func(r *ExamCreateRequest) { r.Questions = nil }, false},
		{"bad difficulty", func(r *ExamCreateRequest) { r.Difficulty = "extreme" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(req)
			errs := bv.ValidateExamCreate(req)
			if tt.wantErr && len(errs) == 0 {
				t.Error("expected validation errors, got none")
			}
			if !tt.wantErr && len(errs) > 0 {
				t.Errorf("unexpected validation errors: %v", errs)
			}
		})
	}
}

func TestValidatePublish(t *testing.T) {
	bv := NewBusinessValidator(New())

	question := func(correctIndex int) models.ExamQuestion {
		q := models.ExamQuestion{Text: "Pick one", CorrectIndex: correctIndex, Points: 1}
		if err := q.SetOptions([]string{"a", "b"}); err != nil {
			t.Fatal(err)
		}
		return q
	}

	t.Run("publishable exam", func(t *testing.T) {
		exam := &models.Exam{Duration: 30, Questions: []models.ExamQuestion{question(0)}}
		if errs := bv.ValidatePublish(exam); len(errs) > 0 {
			t.Errorf("unexpected errors: %v", errs)
		}
	})

	t.Run("no questions", func(t *testing.T) {
		exam := &models.Exam{Duration: 30}
		if errs := bv.ValidatePublish(exam); len(errs) == 0 {
			t.Error("expected error for exam without questions")
		}
	})

	t.Run("correct index out of range", func(t *testing.T) {
		exam := &models.Exam{Duration: 30, Questions: []models.ExamQuestion{question(2)}}
		if errs := bv.ValidatePublish(exam); len(errs) == 0 {
			t.Error("expected error for dangling correct index")
		}
	})
}

func TestValidateStatusTransition(t *testing.T) {
	bv := NewBusinessValidator(New())

	tests := []struct {
		from, to models.ExamStatus
		allowed  bool
	}{
		{models.ExamStatusDraft, models.ExamStatusActive, true},
		{models.ExamStatusDraft, models.ExamStatusArchived, true},
		{models.ExamStatusDraft, models.ExamStatusCompleted, false},
		{models.ExamStatusActive, models.ExamStatusCompleted, true},
		{models.ExamStatusActive, models.ExamStatusDraft, false},
		{models.ExamStatusCompleted, models.ExamStatusActive, true},
		{models.ExamStatusArchived, models.ExamStatusActive, false},
	}

	for _, tt := range tests {
		errs := bv.ValidateStatusTransition(tt.from, tt.to)
		if tt.allowed && len(errs) > 0 {
			t.Errorf("%s -> %s: unexpected errors %v", tt.from, tt.to, errs)
		}
		if !tt.allowed && len(errs) == 0 {
			t.Errorf("%s -> %s: expected rejection", tt.from, tt.to)
		}
	}
}

func TestValidateAttemptStart(t *testing.T) {
	bv := NewBusinessValidator(New())

	open := &models.Exam{Status: models.ExamStatusActive, Published: true}
	draft := &models.Exam{Status: models.ExamStatusDraft}
	reattemptable := &models.Exam{Status: models.ExamStatusActive, Published: true, AllowReattempts: true}

	tests := []struct {
		name      string
		exam      *models.Exam
		completed int
		wantErr   bool
	}{
		{"fresh start on open exam", open, 0, false},
		{"unpublished exam", draft, 0, true},
		{"second attempt blocked", open, 1, true},
		{"second attempt allowed when reattempts on", reattemptable, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := bv.ValidateAttemptStart(tt.exam, tt.completed)
			if tt.wantErr && len(errs) == 0 {
				t.Error("expected validation errors, got none")
			}
			if !tt.wantErr && len(errs) > 0 {
				t.Errorf("unexpected validation errors: %v", errs)
			}
		})
	}
}

func TestReviewRequestValidation(t *testing.T) {
	v := New()

	if err := v.Validate(&ReviewRequest{Feedback: strPtr("Good work"), PointOverrides: map[int]int{0: 2}}); err != nil {
		t.Errorf("valid review request rejected: %v", err)
	}
}
