package models

import "time"

// TimeRecord is one row of raw time-clock punches: up to four optional
// timestamps per employee per calendar day, unique on (employee_id, date).
// Times are stored as 24-hour "HH:MM:SS" strings. A record with all four
// punches null is semantically absent and is never created.
type TimeRecord struct {
	ID         int       `db:"id" json:"id"`
	EmployeeID int       `db:"employee_id" json:"employee_id"`
	Date       time.Time `db:"date" json:"date"`
	AMTimeIn   *string   `db:"am_time_in" json:"am_time_in,omitempty"`
	AMTimeOut  *string   `db:"am_time_out" json:"am_time_out,omitempty"`
	PMTimeIn   *string   `db:"pm_time_in" json:"pm_time_in,omitempty"`
	PMTimeOut  *string   `db:"pm_time_out" json:"pm_time_out,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Empty reports whether all four punches are missing.
func (r TimeRecord) Empty() bool {
	return r.AMTimeIn == nil && r.AMTimeOut == nil && r.PMTimeIn == nil && r.PMTimeOut == nil
}

// EmployeeScope restricts record reads to one employee, or all of them.
// Zero means all; it is only ever produced by the access-scope resolver for
// privileged callers.
type EmployeeScope struct {
	EmployeeID int
}

// All reports whether the scope covers every employee.
func (s EmployeeScope) All() bool {
	return s.EmployeeID == 0
}

// DateRange is an inclusive calendar-day interval.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether d falls inside the range, boundaries included.
func (r DateRange) Contains(d time.Time) bool {
	day := DateOnly(d)
	return !day.Before(DateOnly(r.From)) && !day.After(DateOnly(r.To))
}

// DateOnly truncates a timestamp to its UTC calendar day.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// TimeRecordBulkConflict captures a bulk-import row that could not be written.
type TimeRecordBulkConflict struct {
	EmployeeID int       `json:"employee_id"`
	Date       time.Time `json:"date"`
	Reason     string    `json:"reason"`
}

// BulkOperationMode controls how bulk writes behave on errors.
type BulkOperationMode string

const (
	BulkModeAtomic         BulkOperationMode = "atomic"
	BulkModePartialOnError BulkOperationMode = "partialOnError"
)
