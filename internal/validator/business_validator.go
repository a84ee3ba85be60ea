package validator

import (
	"fmt"

	"github.com/quizdesk/exam-service/internal/models"
)

// BusinessValidator handles rules that span fields or need existing state.
type BusinessValidator struct {
	validator *Validator
}

// NewBusinessValidator creates a new business validator
func NewBusinessValidator(v *Validator) *BusinessValidator {
	return &BusinessValidator{validator: v}
}

// ValidateExamCreate validates exam creation: struct tags plus per-question
// structural rules.
func (bv *BusinessValidator) ValidateExamCreate(req *ExamCreateRequest) ValidationErrors {
	var errs ValidationErrors

	if err := bv.validator.Validate(req); err != nil {
		if ve, ok := err.(ValidationErrors); ok {
			errs = append(errs, ve...)
		}
	}

	for i, q := range req.Questions {
		errs = append(errs, ValidateQuestion(fmt.Sprintf("questions[%d]", i), q.Text, q.Options, q.CorrectIndex)...)
	}

	return errs
}

// ValidatePublish checks whether an exam is fit to go live: at least one
// question, every question structurally valid.
func (bv *BusinessValidator) ValidatePublish(exam *models.Exam) ValidationErrors {
	var errs ValidationErrors

	if len(exam.Questions) == 0 {
		errs = append(errs, ValidationError{
			Field:   "questions",
			Message: "exam must have at least one question before publishing",
			Value:   0,
			Rule:    "business_logic",
		})
		return errs
	}

	for i, q := range exam.Questions {
		options, err := q.OptionList()
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("questions[%d].options", i),
				Message: "stored options are not a valid list",
				Rule:    "business_logic",
			})
			continue
		}
		errs = append(errs, ValidateQuestion(fmt.Sprintf("questions[%d]", i), q.Text, options, q.CorrectIndex)...)
	}

	if exam.Duration < 1 {
		errs = append(errs, ValidationError{
			Field:   "duration",
			Message: "must be at least 1 minute",
			Value:   exam.Duration,
			Rule:    "business_logic",
		})
	}

	return errs
}

// ValidateStatusTransition validates exam status transitions.
func (bv *BusinessValidator) ValidateStatusTransition(currentStatus, newStatus models.ExamStatus) ValidationErrors {
	allowedTransitions := map[models.ExamStatus][]models.ExamStatus{
		models.ExamStatusDraft:     {models.ExamStatusActive, models.ExamStatusArchived},
		models.ExamStatusActive:    {models.ExamStatusCompleted, models.ExamStatusArchived},
		models.ExamStatusCompleted: {models.ExamStatusActive, models.ExamStatusArchived},
		models.ExamStatusArchived:  {}, // no transitions out of archived
	}

	for _, allowed := range allowedTransitions[currentStatus] {
		if newStatus == allowed {
			return nil
		}
	}

	return ValidationErrors{{
		Field:   "status",
		Message: fmt.Sprintf("cannot transition from %s to %s", currentStatus, newStatus),
		Value:   newStatus,
		Rule:    "status_transition",
	}}
}

// ValidateDeletePermission checks whether an exam can be deleted. Exams with
// recorded attempts are archived, never deleted.
func (bv *BusinessValidator) ValidateDeletePermission(hasAttempts bool, status models.ExamStatus) ValidationErrors {
	var errs ValidationErrors

	if hasAttempts {
		errs = append(errs, ValidationError{
			Field:   "attempts",
			Message: "cannot delete exam with existing attempts",
			Value:   hasAttempts,
			Rule:    "business_logic",
		})
	}

	if status == models.ExamStatusActive {
		errs = append(errs, ValidationError{
			Field:   "status",
			Message: "cannot delete active exam",
			Value:   status,
			Rule:    "business_logic",
		})
	}

	return errs
}

// ValidateAttemptStart checks whether a student may start a new attempt.
// An existing in-progress attempt is resumed by the caller, not rejected here.
func (bv *BusinessValidator) ValidateAttemptStart(exam *models.Exam, completedAttempts int) ValidationErrors {
	var errs ValidationErrors

	if !exam.Published || exam.Status != models.ExamStatusActive {
		errs = append(errs, ValidationError{
			Field:   "exam_status",
			Message: "exam is not open for attempts",
			Value:   exam.Status,
			Rule:    "business_logic",
		})
	}

	if completedAttempts > 0 && !exam.AllowReattempts {
		errs = append(errs, ValidationError{
			Field:   "attempts",
			Message: "exam has already been attempted",
			Value:   completedAttempts,
			Rule:    "business_logic",
		})
	}

	return errs
}
