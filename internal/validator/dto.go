package validator

import (
	"strings"

	"github.com/quizdesk/exam-service/internal/models"
)

// ExamCreateRequest carries everything needed to create a draft exam,
// questions included.
type ExamCreateRequest struct {
	Title           string                `json:"title" validate:"required,exam_title"`
	Description     *string               `json:"description" validate:"omitempty,max=1000"`
	Instructions    *string               `json:"instructions" validate:"omitempty,max=2000"`
	Duration        int                   `json:"duration" validate:"required,exam_duration"`
	PassingScore    int                   `json:"passing_score" validate:"passing_score"`
	Category        string                `json:"category" validate:"omitempty,max=100"`
	Difficulty      string                `json:"difficulty" validate:"omitempty,difficulty_level"`
	Visibility      string                `json:"visibility" validate:"omitempty,exam_visibility"`
	ShuffleOrder    bool                  `json:"shuffle_order"`
	AllowReattempts bool                  `json:"allow_reattempts"`
	Questions       []ExamQuestionRequest `json:"questions" validate:"omitempty,dive"`
}

// ExamUpdateRequest updates exam metadata. Nil fields are left unchanged.
type ExamUpdateRequest struct {
	Title           *string `json:"title" validate:"omitempty,exam_title"`
	Description     *string `json:"description" validate:"omitempty,max=1000"`
	Instructions    *string `json:"instructions" validate:"omitempty,max=2000"`
	Duration        *int    `json:"duration" validate:"omitempty,exam_duration"`
	PassingScore    *int    `json:"passing_score" validate:"omitempty,passing_score"`
	Category        *string `json:"category" validate:"omitempty,max=100"`
	Difficulty      *string `json:"difficulty" validate:"omitempty,difficulty_level"`
	Visibility      *string `json:"visibility" validate:"omitempty,exam_visibility"`
	ShuffleOrder    *bool   `json:"shuffle_order"`
	AllowReattempts *bool   `json:"allow_reattempts"`
}

// ExamQuestionRequest is one question within an exam create or replace call.
// Position is implied by slice order.
type ExamQuestionRequest struct {
	Text         string   `json:"text" validate:"required,min=1,max=2000"`
	ImageURL     *string  `json:"image_url" validate:"omitempty,url,max=500"`
	Options      []string `json:"options" validate:"required,min=2,max=10"`
	CorrectIndex int      `json:"correct_index" validate:"min=0"`
	Points       int      `json:"points" validate:"required,points_range"`
	Explanation  *string  `json:"explanation" validate:"omitempty,max=1000"`
}

// PoolEntryCreateRequest creates a reusable question in a teacher's pool.
type PoolEntryCreateRequest struct {
	Text         string   `json:"text" validate:"required,min=1,max=2000"`
	ImageURL     *string  `json:"image_url" validate:"omitempty,url,max=500"`
	Options      []string `json:"options" validate:"required,min=2,max=10"`
	CorrectIndex int      `json:"correct_index" validate:"min=0"`
	Points       int      `json:"points" validate:"required,points_range"`
	Explanation  *string  `json:"explanation" validate:"omitempty,max=1000"`
	Category     string   `json:"category" validate:"omitempty,max=100"`
	Difficulty   string   `json:"difficulty" validate:"omitempty,difficulty_level"`
}

// PoolEntryUpdateRequest updates a pool question. Nil fields are unchanged.
type PoolEntryUpdateRequest struct {
	Text         *string  `json:"text" validate:"omitempty,min=1,max=2000"`
	ImageURL     *string  `json:"image_url" validate:"omitempty,url,max=500"`
	Options      []string `json:"options" validate:"omitempty,min=2,max=10"`
	CorrectIndex *int     `json:"correct_index" validate:"omitempty,min=0"`
	Points       *int     `json:"points" validate:"omitempty,points_range"`
	Explanation  *string  `json:"explanation" validate:"omitempty,max=1000"`
	Category     *string  `json:"category" validate:"omitempty,max=100"`
	Difficulty   *string  `json:"difficulty" validate:"omitempty,difficulty_level"`
}

// PoolImportRequest appends pool questions to an exam.
type PoolImportRequest struct {
	EntryIDs []uint `json:"entry_ids" validate:"required,min=1,dive,min=1"`
}

// AnswerRequest records one selection made during an attempt. Position is the
// index in the student's presentation order.
type AnswerRequest struct {
	Position int `json:"position" validate:"min=0"`
	Option   int `json:"option" validate:"min=0"`
}

// ToggleRequest flips a bookmark or review flag on a presented question.
type ToggleRequest struct {
	Position int `json:"position" validate:"min=0"`
}

// PositionRequest moves the student's current question pointer.
type PositionRequest struct {
	Position int `json:"position" validate:"min=0"`
}

// ReviewRequest updates a submission's review state. All fields optional;
// PointOverrides is keyed by original question index.
type ReviewRequest struct {
	Feedback       *string     `json:"feedback" validate:"omitempty,max=2000"`
	Reviewed       *bool       `json:"reviewed"`
	PointOverrides map[int]int `json:"point_overrides"`
}

// ValidateQuestion applies the structural rules a single question must meet
// beyond struct tags: non-blank text and options, and a correct index that
// points at an existing option.
func ValidateQuestion(field string, text string, options []string, correctIndex int) ValidationErrors {
	var errs ValidationErrors

	if len(options) < 2 {
		errs = append(errs, ValidationError{
			Field:   field + ".options",
			Message: "must have at least 2 options",
			Value:   len(options),
			Rule:    "min_options",
		})
	}
	for i, opt := range options {
		if strings.TrimSpace(opt) == "" || len(opt) > 500 {
			errs = append(errs, ValidationError{
				Field:   field + ".options",
				Message: "option text must be between 1 and 500 characters",
				Value:   i,
				Rule:    "option_text",
			})
		}
	}
	if correctIndex < 0 || correctIndex >= len(options) {
		errs = append(errs, ValidationError{
			Field:   field + ".correct_index",
			Message: "must reference an existing option",
			Value:   correctIndex,
			Rule:    "correct_index",
		})
	}
	if strings.TrimSpace(text) == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".text",
			Message: "is required",
			Rule:    "required",
		})
	}

	return errs
}

// DifficultyOrDefault maps an optional request difficulty to the model type.
func DifficultyOrDefault(v string) models.DifficultyLevel {
	switch v {
	case string(models.DifficultyEasy):
		return models.DifficultyEasy
	case string(models.DifficultyHard):
		return models.DifficultyHard
	default:
		return models.DifficultyMedium
	}
}
