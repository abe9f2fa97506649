package models

import "time"

// LeaveGrant is one approved leave request spanning an inclusive date range.
// Grants are immutable once approved; the approval state machine lives in an
// external workflow and only APPROVED rows are read here. Invariant:
// DateFrom <= DateTo.
type LeaveGrant struct {
	ID         int       `db:"id" json:"id"`
	EmployeeID int       `db:"employee_id" json:"employee_id"`
	DateFrom   time.Time `db:"date_from" json:"date_from"`
	DateTo     time.Time `db:"date_to" json:"date_to"`
	LeaveType  string    `db:"leave_type" json:"leave_type"`
	Status     string    `db:"status" json:"status"`
}

// Days returns the number of calendar days covered, both endpoints included.
func (g LeaveGrant) Days() int {
	from := DateOnly(g.DateFrom)
	to := DateOnly(g.DateTo)
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours()/24) + 1
}

// LeaveDay is one synthetic per-day entry produced by expanding a grant's
// [DateFrom, DateTo] interval.
type LeaveDay struct {
	LeaveID    int       `json:"leave_id"`
	EmployeeID int       `json:"employee_id"`
	Date       time.Time `json:"date"`
	LeaveType  string    `json:"leave_type"`
}
