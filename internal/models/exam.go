package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "draft"
	ExamStatusActive    ExamStatus = "active"
	ExamStatusCompleted ExamStatus = "completed"
	ExamStatusArchived  ExamStatus = "archived"
)

type ExamVisibility string

const (
	VisibilityPrivate ExamVisibility = "private"
	VisibilityPublic  ExamVisibility = "public"
)

type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "easy"
	DifficultyMedium DifficultyLevel = "medium"
	DifficultyHard   DifficultyLevel = "hard"
)

// Exam is one assessment definition: metadata plus an ordered question list.
// Question content is immutable once the exam is created; authoring builds the
// whole document in one shot.
type Exam struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	Title        string          `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description  *string         `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	Instructions *string         `json:"instructions" gorm:"type:text" validate:"omitempty,max=2000"`
	Duration     int             `json:"duration" gorm:"not null" validate:"required,min=1,max=300"` // minutes
	PassingScore int             `json:"passing_score" gorm:"not null" validate:"min=0,max=100"`     // percent, inclusive boundary
	Category     string          `json:"category" gorm:"size:100;index"`
	Difficulty   DifficultyLevel `json:"difficulty" gorm:"default:medium;index" validate:"omitempty,oneof=easy medium hard"`
	Status       ExamStatus      `json:"status" gorm:"default:draft;index" validate:"omitempty,oneof=draft active completed archived"`
	Visibility   ExamVisibility  `json:"visibility" gorm:"default:private" validate:"omitempty,oneof=private public"`

	Published       bool `json:"published" gorm:"not null;default:false;index"`
	ShuffleOrder    bool `json:"shuffle_order" gorm:"not null;default:false"`
	AllowReattempts bool `json:"allow_reattempts" gorm:"not null;default:false"`

	// Metadata
	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questions []ExamQuestion `json:"questions" gorm:"foreignKey:ExamID;constraint:OnDelete:CASCADE"`
	Creator   User           `json:"creator" gorm:"foreignKey:CreatedBy"`

	// Computed fields (not stored)
	TotalPoints     int     `json:"total_points" gorm:"-"`
	QuestionsCount  int     `json:"questions_count" gorm:"-"`
	SubmissionCount int     `json:"submission_count" gorm:"-"`
	AvgScore        float64 `json:"avg_score" gorm:"-"`
}

// ExamQuestion is a question value object owned by exactly one exam. Position
// is the canonical (original) zero-based index all grading is keyed by.
type ExamQuestion struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	ExamID uint `json:"exam_id" gorm:"not null;index"`

	Position     int            `json:"position" gorm:"not null"`
	Text         string         `json:"text" gorm:"type:text;not null" validate:"required"`
	ImageURL     *string        `json:"image_url" gorm:"size:500"`
	Options      datatypes.JSON `json:"options" gorm:"type:jsonb;not null"` // []string, at least 2
	CorrectIndex int            `json:"correct_index" gorm:"not null"`      // zero-based into Options
	Points       int            `json:"points" gorm:"not null;default:1" validate:"min=1,max=100"`
	Explanation  *string        `json:"explanation" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
}

func (Exam) TableName() string {
	return "exams"
}

func (ExamQuestion) TableName() string {
	return "exam_questions"
}

// SumPoints returns the exam's total point value, the sum of its questions'
// points in canonical order.
func (e *Exam) SumPoints() int {
	total := 0
	for _, q := range e.Questions {
		total += q.Points
	}
	return total
}

// OptionList decodes the question's stored option texts.
func (q *ExamQuestion) OptionList() ([]string, error) {
	var options []string
	if err := json.Unmarshal(q.Options, &options); err != nil {
		return nil, fmt.Errorf("question %d: invalid options: %w", q.ID, err)
	}
	return options, nil
}

// SetOptions encodes option texts into the stored column.
func (q *ExamQuestion) SetOptions(options []string) error {
	data, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("question options: %w", err)
	}
	q.Options = data
	return nil
}
