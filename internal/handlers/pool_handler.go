package handlers

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/quizdesk/exam-service/internal/models"
	"github.com/quizdesk/exam-service/internal/repositories"
	"github.com/quizdesk/exam-service/internal/services"
	"github.com/quizdesk/exam-service/internal/utils"
	"github.com/quizdesk/exam-service/internal/validator"
)

// Upload limit for pool spreadsheets.
const maxImportSize = 5 << 20

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type PoolHandler struct {
	BaseHandler
	poolService   services.PoolService
	importService services.ImportService
	validator     *validator.Validator
}

func NewPoolHandler(poolService services.PoolService, importService services.ImportService, v *validator.Validator, logger utils.Logger) *PoolHandler {
	return &PoolHandler{
		BaseHandler:   NewBaseHandler(logger),
		poolService:   poolService,
		importService: importService,
		validator:     v,
	}
}

// CreatePoolEntry adds a question to the caller's pool
// @Summary Create pool question
// @Tags pool
// @Accept json
// @Produce json
// @Param entry body services.CreatePoolEntryRequest true "Question data"
// @Success 201 {object} services.PoolEntryResponse
// @Failure 400 {object} ErrorResponse
// @Router /pool [post]
func (h *PoolHandler) CreatePoolEntry(c *gin.Context) {
	h.LogRequest(c, "Creating pool question")

	var req services.CreatePoolEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	entry, err := h.poolService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// GetPoolEntry retrieves one pool question
// @Summary Get pool question
// @Tags pool
// @Produce json
// @Param id path uint true "Entry ID"
// @Success 200 {object} services.PoolEntryResponse
// @Failure 404 {object} ErrorResponse
// @Router /pool/{id} [get]
func (h *PoolHandler) GetPoolEntry(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	entry, err := h.poolService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

// UpdatePoolEntry updates a pool question
// @Summary Update pool question
// @Tags pool
// @Accept json
// @Produce json
// @Param id path uint true "Entry ID"
// @Param entry body services.UpdatePoolEntryRequest true "Fields to update"
// @Success 200 {object} services.PoolEntryResponse
// @Failure 400 {object} ErrorResponse
// @Router /pool/{id} [put]
func (h *PoolHandler) UpdatePoolEntry(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Updating pool question", "entry_id", id)

	var req services.UpdatePoolEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	entry, err := h.poolService.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

// DeletePoolEntry removes a question from the pool
// @Summary Delete pool question
// @Tags pool
// @Produce json
// @Param id path uint true "Entry ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /pool/{id} [delete]
func (h *PoolHandler) DeletePoolEntry(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Deleting pool question", "entry_id", id)

	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	if err := h.poolService.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Pool question deleted successfully"})
}

// ListPoolEntries lists the caller's pool with optional filters
// @Summary List pool questions
// @Tags pool
// @Produce json
// @Success 200 {object} services.PoolListResponse
// @Router /pool [get]
func (h *PoolHandler) ListPoolEntries(c *gin.Context) {
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	filters := parsePoolFilters(c)
	list, err := h.poolService.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// GetPoolCategories lists the distinct categories of the caller's pool
// @Summary List pool categories
// @Tags pool
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /pool/categories [get]
func (h *PoolHandler) GetPoolCategories(c *gin.Context) {
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	categories, err := h.poolService.Categories(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// ImportPool bulk-imports pool questions from an uploaded CSV or XLSX file
// @Summary Import pool questions
// @Description Accepts a multipart "file" field. Rows that fail validation
// are skipped and reported; valid rows are stored.
// @Tags pool
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV or XLSX file"
// @Success 200 {object} services.ImportReport
// @Failure 400 {object} ErrorResponse
// @Router /pool/import [post]
func (h *PoolHandler) ImportPool(c *gin.Context) {
	h.LogRequest(c, "Importing pool questions")

	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Missing file upload",
			Details: err.Error(),
		})
		return
	}
	if fileHeader.Size > maxImportSize {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "File too large",
			Details: fmt.Sprintf("limit is %d bytes", maxImportSize),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Failed to read upload",
			Details: err.Error(),
		})
		return
	}
	defer file.Close()

	var report *services.ImportReport
	switch strings.ToLower(path.Ext(fileHeader.Filename)) {
	case ".csv":
		report, err = h.importService.ImportPoolCSV(c.Request.Context(), file, userID)
	case ".xlsx":
		report, err = h.importService.ImportPoolXLSX(c.Request.Context(), file, userID)
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Unsupported file type",
			Details: "expected a .csv or .xlsx file",
		})
		return
	}
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// ExportExamResults streams an XLSX workbook of an exam's submissions
// @Summary Export exam results
// @Tags pool
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path uint true "Exam ID"
// @Success 200 {file} binary
// @Failure 403 {object} ErrorResponse
// @Router /exams/{id}/results/export [get]
func (h *PoolHandler) ExportExamResults(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	h.LogRequest(c, "Exporting exam results", "exam_id", examID)

	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	data, err := h.importService.ExportResultsXLSX(c.Request.Context(), examID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("exam-%d-results.xlsx", examID)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

func parsePoolFilters(c *gin.Context) repositories.PoolFilters {
	filters := repositories.PoolFilters{
		Query:     c.Query("q"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	filters.Limit, filters.Offset = parsePagination(c)

	filters.Category = queryString(c, "category")
	if v := c.Query("difficulty"); v != "" {
		difficulty := models.DifficultyLevel(v)
		filters.Difficulty = &difficulty
	}

	return filters
}
