package postgres

import (
	"gorm.io/gorm"

	"github.com/quizdesk/exam-service/internal/repositories"
)

// ApplyExamFilters applies common filters to exam queries.
func ApplyExamFilters(query *gorm.DB, filters repositories.ExamFilters) *gorm.DB {
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.Category != nil {
		query = query.Where("category = ?", *filters.Category)
	}
	if filters.Published != nil {
		query = query.Where("published = ?", *filters.Published)
	}
	if filters.Visibility != nil {
		query = query.Where("visibility = ?", *filters.Visibility)
	}
	if filters.Query != "" {
		query = query.Where("title ILIKE ?", "%"+filters.Query+"%")
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	return query
}

// ApplySubmissionFilters applies common filters to submission queries.
func ApplySubmissionFilters(query *gorm.DB, filters repositories.SubmissionFilters) *gorm.DB {
	if filters.ExamID != nil {
		query = query.Where("exam_id = ?", *filters.ExamID)
	}
	if filters.StudentID != nil {
		query = query.Where("student_id = ?", *filters.StudentID)
	}
	if filters.TeacherID != nil {
		query = query.Where("teacher_id = ?", *filters.TeacherID)
	}
	if filters.Reviewed != nil {
		query = query.Where("reviewed = ?", *filters.Reviewed)
	}
	if filters.Passed != nil {
		query = query.Where("passed = ?", *filters.Passed)
	}
	if filters.DateFrom != nil {
		query = query.Where("submitted_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("submitted_at <= ?", *filters.DateTo)
	}
	return query
}

// ApplyPaginationAndSort applies pagination and sorting with a sort column
// whitelist so user input never reaches the ORDER BY clause raw.
func ApplyPaginationAndSort(query *gorm.DB, sortBy, sortOrder string, limit, offset int) *gorm.DB {
	allowedSortColumns := map[string]bool{
		"created_at":   true,
		"updated_at":   true,
		"id":           true,
		"title":        true,
		"status":       true,
		"difficulty":   true,
		"score":        true,
		"submitted_at": true,
		"usage_count":  true,
	}

	if sortBy == "" || !allowedSortColumns[sortBy] {
		sortBy = "created_at"
	}

	if sortOrder == "asc" || sortOrder == "ASC" {
		sortOrder = "ASC"
	} else {
		sortOrder = "DESC"
	}

	query = query.Order(sortBy + " " + sortOrder)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	return query
}
