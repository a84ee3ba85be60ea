package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// QuestionPoolEntry is a reusable question owned by a teacher, independent of
// any exam. Importing an entry into an exam copies its content and bumps
// UsageCount.
type QuestionPoolEntry struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	TeacherID string `json:"teacher_id" gorm:"not null;index;size:255"`

	Text         string          `json:"text" gorm:"type:text;not null" validate:"required"`
	ImageURL     *string         `json:"image_url" gorm:"size:500"`
	Options      datatypes.JSON  `json:"options" gorm:"type:jsonb;not null"` // []string
	CorrectIndex int             `json:"correct_index" gorm:"not null"`
	Points       int             `json:"points" gorm:"not null;default:1" validate:"min=1,max=100"`
	Explanation  *string         `json:"explanation" gorm:"type:text"`
	Category     string          `json:"category" gorm:"size:100;index"`
	Difficulty   DifficultyLevel `json:"difficulty" gorm:"default:medium;index"`

	UsageCount int `json:"usage_count" gorm:"not null;default:0"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Teacher User `json:"teacher" gorm:"foreignKey:TeacherID"`
}

func (QuestionPoolEntry) TableName() string {
	return "question_pool"
}

// OptionList decodes the entry's stored option texts.
func (e *QuestionPoolEntry) OptionList() ([]string, error) {
	var options []string
	if err := json.Unmarshal(e.Options, &options); err != nil {
		return nil, fmt.Errorf("pool entry %d: invalid options: %w", e.ID, err)
	}
	return options, nil
}

// SetOptions encodes option texts into the stored column.
func (e *QuestionPoolEntry) SetOptions(options []string) error {
	data, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("pool entry options: %w", err)
	}
	e.Options = data
	return nil
}
