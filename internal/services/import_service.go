package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/quizdesk/exam-service/internal/models"
	"github.com/quizdesk/exam-service/internal/repositories"
	"github.com/quizdesk/exam-service/internal/validator"
)

// optionSeparator splits the options column of an imported row.
const optionSeparator = "|"

// importColumns is the expected column layout for pool imports, CSV and XLSX
// alike. The first row is a header and is skipped.
var importColumns = []string{"text", "options", "correct_index", "points", "category", "difficulty", "explanation"}

type importService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewImportService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator) ImportService {
	return &importService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
	}
}

// ===== POOL IMPORTS =====

func (s *importService) ImportPoolCSV(ctx context.Context, r io.Reader, teacherID string) (*ImportReport, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, NewValidationError("malformed csv", err)
		}
		rows = append(rows, record)
	}

	return s.importRows(ctx, rows, teacherID)
}

func (s *importService) ImportPoolXLSX(ctx context.Context, r io.Reader, teacherID string) (*ImportReport, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, NewValidationError("malformed xlsx", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Error("Failed to close workbook", "error", err)
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, NewValidationError("workbook has no sheets", nil)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, NewValidationError("failed to read sheet", err)
	}

	return s.importRows(ctx, rows, teacherID)
}

// importRows parses, validates and stores the rows of one upload. The batch
// is all or nothing by row: bad rows are reported and skipped, good rows are
// written in a single transaction.
func (s *importService) importRows(ctx context.Context, rows [][]string, teacherID string) (*ImportReport, error) {
	isTeacher, err := s.repo.User().HasRole(ctx, s.db, teacherID, models.RoleTeacher)
	if err != nil {
		return nil, fmt.Errorf("failed to check role: %w", err)
	}
	if !isTeacher {
		return nil, NewPermissionError(teacherID, 0, "pool_entry", "import", "teacher role required")
	}

	if len(rows) == 0 {
		return nil, NewValidationError("file has no rows", nil)
	}

	report := &ImportReport{}
	var entries []*models.QuestionPoolEntry
	for i, row := range rows {
		if i == 0 && isHeaderRow(row) {
			continue
		}
		entry, err := parseImportRow(row, teacherID)
		if err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		entries = append(entries, entry)
	}

	if len(entries) > 0 {
		if err := s.repo.Pool().CreateBatch(ctx, s.db, entries); err != nil {
			return nil, fmt.Errorf("failed to store imported questions: %w", err)
		}
		report.Imported = len(entries)
	}

	s.logger.Info("Pool import finished",
		"teacher_id", teacherID,
		"imported", report.Imported,
		"skipped", report.Skipped)
	return report, nil
}

// ===== RESULTS EXPORT =====

// ExportResultsXLSX renders every submission of an exam into a workbook, one
// row per student.
func (s *importService) ExportResultsXLSX(ctx context.Context, examID uint, userID string) ([]byte, error) {
	exam, err := s.repo.Exam().GetByID(ctx, s.db, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	if exam.CreatedBy != userID {
		return nil, NewPermissionError(userID, examID, "exam", "export_results", "not the exam owner")
	}

	submissions, _, err := s.repo.Submission().GetByExam(ctx, s.db, examID, repositories.SubmissionFilters{
		SortBy:    "submitted_at",
		SortOrder: "asc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load submissions: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Error("Failed to close workbook", "error", err)
		}
	}()

	sheet := "Results"
	f.SetSheetName(f.GetSheetName(0), sheet)

	headers := []string{"Student", "Email", "Score", "Earned Points", "Total Points", "Passed", "Auto Submitted", "Time Spent (s)", "Submitted At", "Reviewed"}
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to build header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i, sub := range submissions {
		values := []interface{}{
			sub.Student.FullName,
			sub.Student.Email,
			sub.Score,
			sub.EarnedPoints,
			sub.TotalPoints,
			sub.Passed,
			sub.AutoSubmitted,
			sub.TimeSpent,
			sub.SubmittedAt.Format("2006-01-02 15:04:05"),
			sub.Reviewed,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, fmt.Errorf("failed to build cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}

	s.logger.Info("Exam results exported", "exam_id", examID, "rows", len(submissions))
	return buf.Bytes(), nil
}

// ===== ROW PARSING =====

func isHeaderRow(row []string) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), importColumns[0])
}

func parseImportRow(row []string, teacherID string) (*models.QuestionPoolEntry, error) {
	if len(row) < 4 {
		return nil, fmt.Errorf("expected at least 4 columns (%s), got %d", strings.Join(importColumns[:4], ", "), len(row))
	}

	text := strings.TrimSpace(row[0])
	options := splitOptions(row[1])

	correctIndex, err := strconv.Atoi(strings.TrimSpace(row[2]))
	if err != nil {
		return nil, fmt.Errorf("correct_index is not a number: %q", row[2])
	}
	points, err := strconv.Atoi(strings.TrimSpace(row[3]))
	if err != nil {
		return nil, fmt.Errorf("points is not a number: %q", row[3])
	}
	if points < 1 || points > 100 {
		return nil, fmt.Errorf("points must be between 1 and 100, got %d", points)
	}

	if errs := validator.ValidateQuestion("question", text, options, correctIndex); len(errs) > 0 {
		return nil, errs
	}

	entry := &models.QuestionPoolEntry{
		TeacherID:    teacherID,
		Text:         text,
		CorrectIndex: correctIndex,
		Points:       points,
		Difficulty:   models.DifficultyMedium,
	}
	if err := entry.SetOptions(options); err != nil {
		return nil, err
	}
	if len(row) > 4 {
		entry.Category = strings.TrimSpace(row[4])
	}
	if len(row) > 5 {
		entry.Difficulty = validator.DifficultyOrDefault(strings.TrimSpace(row[5]))
	}
	if len(row) > 6 {
		if explanation := strings.TrimSpace(row[6]); explanation != "" {
			entry.Explanation = &explanation
		}
	}
	return entry, nil
}

func splitOptions(raw string) []string {
	parts := strings.Split(raw, optionSeparator)
	options := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			options = append(options, trimmed)
		}
	}
	return options
}
