package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hrline/dtr-api/internal/dto"
	"github.com/hrline/dtr-api/internal/middleware"
	"github.com/hrline/dtr-api/internal/models"
	"github.com/hrline/dtr-api/internal/service"
	appErrors "github.com/hrline/dtr-api/pkg/errors"
	"github.com/hrline/dtr-api/pkg/response"
)

type attendanceViewService interface {
	List(ctx context.Context, claims *models.JWTClaims, req dto.AttendanceListRequest) ([]dto.AttendanceRow, *models.Pagination, error)
	Calendar(ctx context.Context, claims *models.JWTClaims, req dto.CalendarRequest) (*dto.CalendarResponse, bool, error)
	Summary(ctx context.Context, claims *models.JWTClaims, req dto.SummaryRequest) (*dto.SummaryResponse, bool, error)
}

type attendanceExportService interface {
	Render(ctx context.Context, claims *models.JWTClaims, req dto.ExportRequest) (*service.ExportFile, error)
}

// AttendanceHandler exposes the derived attendance views and exports.
type AttendanceHandler struct {
	attendance attendanceViewService
	exports    attendanceExportService
}

// NewAttendanceHandler constructs handler.
func NewAttendanceHandler(attendance attendanceViewService, exports attendanceExportService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, exports: exports}
}

// List godoc
// @Summary List derived attendance records
// @Tags Attendance
// @Produce json
// @Param employee_id query int false "Restrict to one employee"
// @Param date_from query string false "Inclusive start date (YYYY-MM-DD)"
// @Param date_to query string false "Inclusive end date (YYYY-MM-DD)"
// @Param status query string false "Present, Absent, Leave or Late"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param sort_by query string false "date, employee or status"
// @Param sort_order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	employeeID, err := intQuery(c, "employee_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	dateFrom, err := optionalDateQuery(c, "date_from")
	if err != nil {
		response.Error(c, err)
		return
	}
	dateTo, err := optionalDateQuery(c, "date_to")
	if err != nil {
		response.Error(c, err)
		return
	}

	req := dto.AttendanceListRequest{
		EmployeeID: employeeID,
		DateFrom:   dateFrom,
		DateTo:     dateTo,
		Page:       intQueryDefault(c, "page", 1),
		PageSize:   intQueryDefault(c, "page_size", 50),
		SortBy:     c.DefaultQuery("sort_by", "date"),
		SortOrder:  c.DefaultQuery("sort_order", "asc"),
	}
	if status := c.Query("status"); status != "" {
		req.Status = &status
	}

	rows, pagination, err := h.attendance.List(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination, middleware.ExtractMeta(c))
}

// Calendar godoc
// @Summary Per-date attendance counts for a calendar grid
// @Tags Attendance
// @Produce json
// @Param employee_id query int false "Restrict to one employee"
// @Param date_from query string true "Inclusive start date (YYYY-MM-DD)"
// @Param date_to query string true "Inclusive end date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/calendar [get]
func (h *AttendanceHandler) Calendar(c *gin.Context) {
	employeeID, err := intQuery(c, "employee_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	dateFrom, dateTo, err := requiredRangeQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	req := dto.CalendarRequest{EmployeeID: employeeID, DateFrom: dateFrom, DateTo: dateTo}
	resp, hit, err := h.attendance.Calendar(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, resp, nil, middleware.ExtractMeta(c))
}

// Summary godoc
// @Summary Aggregate attendance statistics
// @Tags Attendance
// @Produce json
// @Param employee_id query int false "Restrict to one employee"
// @Param date_from query string true "Inclusive start date (YYYY-MM-DD)"
// @Param date_to query string true "Inclusive end date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/summary [get]
func (h *AttendanceHandler) Summary(c *gin.Context) {
	employeeID, err := intQuery(c, "employee_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	dateFrom, dateTo, err := requiredRangeQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	req := dto.SummaryRequest{EmployeeID: employeeID, DateFrom: dateFrom, DateTo: dateTo}
	resp, hit, err := h.attendance.Summary(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, resp, nil, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Download derived attendance as CSV or PDF
// @Tags Attendance
// @Produce octet-stream
// @Param employee_id query int false "Restrict to one employee"
// @Param date_from query string true "Inclusive start date (YYYY-MM-DD)"
// @Param date_to query string true "Inclusive end date (YYYY-MM-DD)"
// @Param format query string true "csv or pdf"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	employeeID, err := intQuery(c, "employee_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	dateFrom, dateTo, err := requiredRangeQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	req := dto.ExportRequest{
		EmployeeID: employeeID,
		DateFrom:   dateFrom,
		DateTo:     dateTo,
		Format:     c.DefaultQuery("format", "csv"),
	}
	file, err := h.exports.Render(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.FileName))
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be a non-negative integer", name))
	}
	return value, nil
}

func intQueryDefault(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func optionalDateQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be formatted YYYY-MM-DD", name))
	}
	return &parsed, nil
}

func requiredRangeQuery(c *gin.Context) (time.Time, time.Time, error) {
	from, err := optionalDateQuery(c, "date_from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := optionalDateQuery(c, "date_to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if from == nil || to == nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "date_from and date_to are required")
	}
	return *from, *to, nil
}
