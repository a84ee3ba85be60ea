package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/quizdesk/exam-service/internal/services"
	"github.com/quizdesk/exam-service/internal/utils"
)

// ErrorResponse is the error envelope every handler returns.
type ErrorResponse struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse wraps operations that have no natural body.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// BaseHandler carries the logger and the error mapping shared by all handlers.
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// LogRequest logs a handler entry with the request id attached.
func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	args = append(args, "request_id", c.GetString("request_id"), "path", c.Request.URL.Path)
	h.logger.Info(msg, args...)
}

// parseIDParam reads a positive uint path parameter. On failure it writes the
// 400 response itself and returns 0.
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) uint {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + name + " parameter",
			Details: "must be a positive integer",
		})
		return 0
	}
	return uint(id)
}

// currentUserID reads the authenticated user id set by the auth middleware. On
// failure it writes the 401 response itself and returns "".
func (h *BaseHandler) currentUserID(c *gin.Context) string {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
	}
	return userID
}

// handleServiceError maps service errors to HTTP status codes.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrExamNotFound),
		errors.Is(err, services.ErrAttemptNotFound),
		errors.Is(err, services.ErrSubmissionNotFound),
		errors.Is(err, services.ErrPoolEntryNotFound),
		errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error()})

	case errors.Is(err, services.ErrExamTitleConflict),
		errors.Is(err, services.ErrExamHasAttempts),
		errors.Is(err, services.ErrAttemptAlreadySubmitted),
		errors.Is(err, services.ErrAlreadyAttempted):
		c.JSON(http.StatusConflict, ErrorResponse{Message: err.Error()})

	case errors.Is(err, services.ErrExamNotPublished),
		errors.Is(err, services.ErrAttemptNotActive),
		errors.Is(err, services.ErrAttemptTimeExpired):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})

	case services.IsPermissionError(err):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: err.Error()})

	case services.IsValidationError(err):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})

	default:
		h.logger.Error("Unhandled service error", "error", err, "path", c.Request.URL.Path)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}

// ===== QUERY PARSING HELPERS =====

// parsePagination reads limit/offset query parameters with sane bounds.
func parsePagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func queryString(c *gin.Context, name string) *string {
	if v := c.Query(name); v != "" {
		return &v
	}
	return nil
}

func queryBool(c *gin.Context, name string) *bool {
	if v := c.Query(name); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return &b
		}
	}
	return nil
}

func queryUint(c *gin.Context, name string) *uint {
	if v := c.Query(name); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err == nil {
			u := uint(id)
			return &u
		}
	}
	return nil
}
