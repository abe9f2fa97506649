package models

import "time"

// AttendanceStatus is the derived per-day classification.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "Present"
	StatusAbsent  AttendanceStatus = "Absent"
	StatusLeave   AttendanceStatus = "Leave"
	StatusLate    AttendanceStatus = "Late"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLeave, StatusLate:
		return true
	default:
		return false
	}
}

// Undertime is the shortfall between worked and required hours.
type Undertime struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// TotalMinutes flattens the undertime figure.
func (u Undertime) TotalMinutes() int {
	return u.Hours*60 + u.Minutes
}

// DerivedAttendance is the computed per-employee per-day view combining
// punches and leave. It is never persisted: every read request derives it
// fresh from the snapshot taken at request start. DTRID/LeaveID point back at
// the originating rows for downstream edit actions.
type DerivedAttendance struct {
	EmployeeID   int              `json:"employee_id"`
	EmployeeName string           `json:"employee"`
	Date         time.Time        `json:"date"`
	DTRID        *int             `json:"dtr_id"`
	LeaveID      *int             `json:"leave_id"`
	AMArrival    string           `json:"am_arrival"`
	AMDeparture  string           `json:"am_departure"`
	PMArrival    string           `json:"pm_arrival"`
	PMDeparture  string           `json:"pm_departure"`
	Status       AttendanceStatus `json:"status"`
	LeaveType    *string          `json:"type,omitempty"`
	Undertime    Undertime        `json:"undertime"`
}

// AttendanceFilter scopes the derivation pipeline. Scope is resolved by the
// access-scope filter before any repository call.
type AttendanceFilter struct {
	Scope     EmployeeScope
	Range     DateRange
	Status    *AttendanceStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
