package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitting AttemptStatus = "submitting"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptAbandoned  AttemptStatus = "abandoned"
)

const (
	EndReasonTimeout   = "time_out"
	EndReasonSubmitted = "submitted"
)

// ExamAttempt is the persisted in-progress state of one student's pass through
// one exam: the presentation order fixed at start, the answer map keyed by
// original question index, and the bookkeeping sets. Exactly one attempt per
// (exam, student) may be in progress at a time; finalizing it produces the
// Submission document.
type ExamAttempt struct {
	ID        uint          `json:"id" gorm:"primaryKey"`
	ExamID    uint          `json:"exam_id" gorm:"not null;index:idx_attempt_exam_student"`
	StudentID string        `json:"student_id" gorm:"not null;index:idx_attempt_exam_student;size:255"`
	Status    AttemptStatus `json:"status" gorm:"default:in_progress;index"`

	// Timing
	StartedAt     *time.Time `json:"started_at"`
	EndsAt        *time.Time `json:"ends_at"` // started_at + exam duration
	CompletedAt   *time.Time `json:"completed_at"`
	TimeRemaining int        `json:"time_remaining"` // seconds, advisory snapshot

	// Attempt state. QuestionOrder is the presentation permutation computed once
	// at start ([]int, identity when shuffle is off); Answers maps original
	// question index to selected option index ({"0":2,...}); Bookmarked and
	// Flagged hold original indices ([]int).
	QuestionOrder datatypes.JSON `json:"question_order" gorm:"type:jsonb"`
	Answers       datatypes.JSON `json:"answers" gorm:"type:jsonb"`
	Bookmarked    datatypes.JSON `json:"bookmarked" gorm:"type:jsonb"`
	Flagged       datatypes.JSON `json:"flagged" gorm:"type:jsonb"`

	CurrentPosition int `json:"current_position"` // presentation index, for resume

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Exam    Exam `json:"exam" gorm:"foreignKey:ExamID"`
	Student User `json:"student" gorm:"foreignKey:StudentID"`
}

// Submission is one completed (or auto-submitted) attempt. Created exactly once
// when a student finishes or the timer expires; mutated afterwards only by
// teacher review. Answer keys always refer to the original question order.
type Submission struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	ExamID    uint   `json:"exam_id" gorm:"not null;index"`
	StudentID string `json:"student_id" gorm:"not null;index;size:255"`
	TeacherID string `json:"teacher_id" gorm:"not null;index;size:255"` // exam owner at submission time
	AttemptID uint   `json:"attempt_id" gorm:"not null;uniqueIndex"`

	// Result
	Score        int  `json:"score"` // percent, rounded, 0..100
	EarnedPoints int  `json:"earned_points"`
	TotalPoints  int  `json:"total_points"`
	Passed       bool `json:"passed"`

	// Attempt record
	Answers       datatypes.JSON `json:"answers" gorm:"type:jsonb"`        // original index -> option index
	QuestionOrder datatypes.JSON `json:"question_order" gorm:"type:jsonb"` // presentation permutation, for audit
	Bookmarked    datatypes.JSON `json:"bookmarked" gorm:"type:jsonb"`
	Flagged       datatypes.JSON `json:"flagged" gorm:"type:jsonb"`
	TimeSpent     int            `json:"time_spent"` // seconds
	AutoSubmitted bool           `json:"auto_submitted"`
	StartedAt     *time.Time     `json:"started_at"`
	SubmittedAt   time.Time      `json:"submitted_at"`

	// Teacher review
	Feedback       *string        `json:"feedback" gorm:"type:text"`
	Reviewed       bool           `json:"reviewed" gorm:"not null;default:false"`
	ReviewedBy     *string        `json:"reviewed_by" gorm:"size:255"`
	ReviewedAt     *time.Time     `json:"reviewed_at"`
	PointOverrides datatypes.JSON `json:"point_overrides" gorm:"type:jsonb"` // original index -> awarded points

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Exam    Exam `json:"exam" gorm:"foreignKey:ExamID"`
	Student User `json:"student" gorm:"foreignKey:StudentID"`
}

func (ExamAttempt) TableName() string {
	return "exam_attempts"
}

// OrderList decodes the attempt's presentation permutation.
func (a *ExamAttempt) OrderList() ([]int, error) {
	return decodeIntSlice(a.QuestionOrder, "question_order")
}

// AnswerMap decodes the answer map, keyed by original question index.
func (a *ExamAttempt) AnswerMap() (map[int]int, error) {
	return decodeIntMap(a.Answers, "answers")
}

// BookmarkedList decodes the bookmarked original indices.
func (a *ExamAttempt) BookmarkedList() ([]int, error) {
	return decodeIntSlice(a.Bookmarked, "bookmarked")
}

// FlaggedList decodes the flagged original indices.
func (a *ExamAttempt) FlaggedList() ([]int, error) {
	return decodeIntSlice(a.Flagged, "flagged")
}

// AnswerMap decodes the submission's answer map, keyed by original index.
func (s *Submission) AnswerMap() (map[int]int, error) {
	return decodeIntMap(s.Answers, "answers")
}

// OverrideMap decodes per-question point overrides, keyed by original index.
func (s *Submission) OverrideMap() (map[int]int, error) {
	return decodeIntMap(s.PointOverrides, "point_overrides")
}

// EncodeJSON marshals a value into a JSONB column.
func EncodeJSON(v interface{}) (datatypes.JSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return data, nil
}

func decodeIntSlice(data datatypes.JSON, field string) ([]int, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var out []int
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", field, err)
	}
	return out, nil
}

func decodeIntMap(data datatypes.JSON, field string) (map[int]int, error) {
	if len(data) == 0 {
		return map[int]int{}, nil
	}
	var out map[int]int
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", field, err)
	}
	return out, nil
}

func (Submission) TableName() string {
	return "submissions"
}
