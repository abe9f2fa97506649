package dto

import (
	"time"

	"github.com/hrline/dtr-api/internal/models"
)

// DisplayDateLayout renders "MMM DD, YYYY" dates on attendance rows.
const DisplayDateLayout = "Jan 02, 2006"

// AttendanceListRequest captures filters for the list view.
type AttendanceListRequest struct {
	EmployeeID int
	DateFrom   *time.Time
	DateTo     *time.Time
	Status     *string `validate:"omitempty,attendance_status"`
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// AttendanceRow is the flat wire shape of one derived attendance record.
type AttendanceRow struct {
	EmployeeID  int                     `json:"employee_id"`
	DTRID       *int                    `json:"dtr_id"`
	LeaveID     *int                    `json:"leave_id"`
	Employee    string                  `json:"employee"`
	Date        string                  `json:"date"`
	AMArrival   string                  `json:"am_arrival"`
	AMDeparture string                  `json:"am_departure"`
	PMArrival   string                  `json:"pm_arrival"`
	PMDeparture string                  `json:"pm_departure"`
	Status      models.AttendanceStatus `json:"status"`
	Type        *string                 `json:"type,omitempty"`
	Undertime   models.Undertime        `json:"undertime"`
}

// RowFromDerived flattens a derived record into its wire shape.
func RowFromDerived(rec models.DerivedAttendance) AttendanceRow {
	return AttendanceRow{
		EmployeeID:  rec.EmployeeID,
		DTRID:       rec.DTRID,
		LeaveID:     rec.LeaveID,
		Employee:    rec.EmployeeName,
		Date:        rec.Date.Format(DisplayDateLayout),
		AMArrival:   rec.AMArrival,
		AMDeparture: rec.AMDeparture,
		PMArrival:   rec.PMArrival,
		PMDeparture: rec.PMDeparture,
		Status:      rec.Status,
		Type:        rec.LeaveType,
		Undertime:   rec.Undertime,
	}
}

// CalendarRequest scopes the calendar view.
type CalendarRequest struct {
	EmployeeID int
	DateFrom   time.Time
	DateTo     time.Time
}

// CalendarCell holds per-date status counts.
type CalendarCell struct {
	Date    string `json:"date"`
	Present int    `json:"present"`
	Absent  int    `json:"absent"`
	Leave   int    `json:"leave"`
	Late    int    `json:"late"`
	Total   int    `json:"total"`
}

// CalendarResponse is the calendar view payload.
type CalendarResponse struct {
	DateFrom string         `json:"date_from"`
	DateTo   string         `json:"date_to"`
	Cells    []CalendarCell `json:"cells"`
}

// SummaryRequest scopes the summary view.
type SummaryRequest struct {
	EmployeeID int
	DateFrom   time.Time
	DateTo     time.Time
}

// SummaryBucket aggregates status counts with rate percentages, one decimal.
type SummaryBucket struct {
	Present     int     `json:"present"`
	Absent      int     `json:"absent"`
	Leave       int     `json:"leave"`
	Late        int     `json:"late"`
	Total       int     `json:"total"`
	PresentRate float64 `json:"present_rate"`
	AbsentRate  float64 `json:"absent_rate"`
	LeaveRate   float64 `json:"leave_rate"`
	LateRate    float64 `json:"late_rate"`
}

// SummaryDayOfWeek is one weekday aggregate.
type SummaryDayOfWeek struct {
	Day string `json:"day"`
	SummaryBucket
}

// SummaryEmployee is one per-employee aggregate.
type SummaryEmployee struct {
	EmployeeID int    `json:"employee_id"`
	Employee   string `json:"employee"`
	SummaryBucket
}

// SummaryResponse is the summary view payload.
type SummaryResponse struct {
	Overall    SummaryBucket      `json:"overall"`
	ByDay      []SummaryDayOfWeek `json:"by_day"`
	ByEmployee []SummaryEmployee  `json:"by_employee"`
}

// CreateRecordRequest writes one time record. Employee is resolved by full
// name through the directory; Date uses YYYY-MM-DD. Times accept either the
// stored 24-hour or the display 12-hour form.
type CreateRecordRequest struct {
	Employee    string `json:"employee" validate:"required"`
	Date        string `json:"date" validate:"required"`
	AMArrival   string `json:"am_arrival"`
	AMDeparture string `json:"am_departure"`
	PMArrival   string `json:"pm_arrival"`
	PMDeparture string `json:"pm_departure"`
}

// UpdateRecordRequest mutates an existing record. Exactly one of DTRID and
// LeaveID must be set; targeting a leave id is refused because approved
// leave days carry no editable punches.
type UpdateRecordRequest struct {
	DTRID       *int   `json:"dtr_id"`
	LeaveID     *int   `json:"leave_id"`
	AMArrival   string `json:"am_arrival"`
	AMDeparture string `json:"am_departure"`
	PMArrival   string `json:"pm_arrival"`
	PMDeparture string `json:"pm_departure"`
}

// BulkImportItem is one row of a bulk import payload.
type BulkImportItem struct {
	EmployeeID  int    `json:"employee_id" validate:"required,gt=0"`
	Date        string `json:"date" validate:"required"`
	AMArrival   string `json:"am_arrival"`
	AMDeparture string `json:"am_departure"`
	PMArrival   string `json:"pm_arrival"`
	PMDeparture string `json:"pm_departure"`
}

// BulkImportRequest imports many time records at once.
type BulkImportRequest struct {
	Mode  string           `json:"mode" validate:"required,bulk_mode"`
	Items []BulkImportItem `json:"items" validate:"required,min=1,dive"`
}

// BulkImportResult summarises bulk execution.
type BulkImportResult struct {
	Processed int                             `json:"processed"`
	Success   int                             `json:"success"`
	Conflicts []models.TimeRecordBulkConflict `json:"conflicts,omitempty"`
}

// ExportRequest scopes an export download.
type ExportRequest struct {
	EmployeeID int
	DateFrom   time.Time
	DateTo     time.Time
	Format     string
}
