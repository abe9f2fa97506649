package service

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hrline/dtr-api/internal/models"
)

// DerivationPolicy is the single source of truth for status derivation.
// Every consumer (calendar, list, summary, export) goes through it, so the
// late threshold cannot diverge between call sites.
type DerivationPolicy struct {
	LateThreshold models.TimeOfDay
	RequiredHours int
}

// DefaultDerivationPolicy marks arrivals strictly after 08:00 as Late and
// expects an eight-hour day.
func DefaultDerivationPolicy() DerivationPolicy {
	return DerivationPolicy{
		LateThreshold: models.ParseTimeOfDay("08:00"),
		RequiredHours: 8,
	}
}

// NewDerivationPolicy parses the configured threshold, falling back to the
// default when it is malformed.
func NewDerivationPolicy(lateThreshold string, requiredHours int) DerivationPolicy {
	policy := DefaultDerivationPolicy()
	if t := models.ParseTimeOfDay(lateThreshold); t.Valid() {
		policy.LateThreshold = t
	}
	if requiredHours > 0 {
		policy.RequiredHours = requiredHours
	}
	return policy
}

// expandLeaves turns each grant's inclusive [DateFrom, DateTo] interval into
// one synthetic entry per calendar day. When two grants cover the same
// (employee, date) the first grant encountered wins; upstream approval rules
// should prevent that, so the collision is logged.
func expandLeaves(grants []models.LeaveGrant, logger *zap.Logger) []models.LeaveDay {
	days := make([]models.LeaveDay, 0, len(grants))
	seen := make(map[string]int, len(grants))
	for _, grant := range grants {
		from := models.DateOnly(grant.DateFrom)
		to := models.DateOnly(grant.DateTo)
		for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
			key := dayKey(grant.EmployeeID, d)
			if winner, ok := seen[key]; ok {
				if logger != nil {
					logger.Warn("overlapping leave grants for employee day",
						zap.Int("employee_id", grant.EmployeeID),
						zap.String("date", d.Format("2006-01-02")),
						zap.Int("kept_leave_id", winner),
						zap.Int("ignored_leave_id", grant.ID))
				}
				continue
			}
			seen[key] = grant.ID
			days = append(days, models.LeaveDay{
				LeaveID:    grant.ID,
				EmployeeID: grant.EmployeeID,
				Date:       d,
				LeaveType:  grant.LeaveType,
			})
		}
	}
	return days
}

// deriveStatus merges one employee-day's punch and leave into a derived
// record. Precedence: an approved leave supersedes any stray punch for the
// same date; with neither source the day is Absent; otherwise the day is
// Present, downgraded to Late when the AM arrival falls strictly after the
// policy threshold.
func deriveStatus(punch *models.TimeRecord, leave *models.LeaveDay, policy DerivationPolicy) models.DerivedAttendance {
	rec := models.DerivedAttendance{
		AMArrival:   models.AbsenceMarker,
		AMDeparture: models.AbsenceMarker,
		PMArrival:   models.AbsenceMarker,
		PMDeparture: models.AbsenceMarker,
	}

	if punch != nil {
		rec.EmployeeID = punch.EmployeeID
		rec.Date = models.DateOnly(punch.Date)
		id := punch.ID
		rec.DTRID = &id
	}
	if leave != nil {
		rec.EmployeeID = leave.EmployeeID
		rec.Date = models.DateOnly(leave.Date)
		id := leave.LeaveID
		rec.LeaveID = &id
	}

	if leave != nil {
		// Mirrors the monthly time-record form: the leave-type label
		// occupies the AM-arrival slot, the other three stay blank.
		rec.Status = models.StatusLeave
		leaveType := leave.LeaveType
		rec.LeaveType = &leaveType
		rec.AMArrival = leave.LeaveType
		return rec
	}

	if punch == nil {
		rec.Status = models.StatusAbsent
		return rec
	}

	amIn := models.ClockOf(punch.AMTimeIn)
	amOut := models.ClockOf(punch.AMTimeOut)
	pmIn := models.ClockOf(punch.PMTimeIn)
	pmOut := models.ClockOf(punch.PMTimeOut)

	rec.AMArrival = amIn.Display()
	rec.AMDeparture = amOut.Display()
	rec.PMArrival = pmIn.Display()
	rec.PMDeparture = pmOut.Display()

	rec.Status = models.StatusPresent
	if amIn.After(policy.LateThreshold) {
		rec.Status = models.StatusLate
	}
	rec.Undertime = computeUndertime(amIn, amOut, pmIn, pmOut, policy.RequiredHours)
	return rec
}

// computeUndertime converts the four punches into a worked-minutes figure and
// compares against the required-hours policy. Undertime is only computed for
// fully-punched days; negative intervals clamp to zero, and the result is
// never negative.
func computeUndertime(amIn, amOut, pmIn, pmOut models.TimeOfDay, requiredHours int) models.Undertime {
	if !amIn.Valid() || !amOut.Valid() || !pmIn.Valid() || !pmOut.Valid() {
		return models.Undertime{}
	}
	morning := amOut.MinutesOfDay() - amIn.MinutesOfDay()
	if morning < 0 {
		morning = 0
	}
	afternoon := pmOut.MinutesOfDay() - pmIn.MinutesOfDay()
	if afternoon < 0 {
		afternoon = 0
	}
	worked := morning + afternoon
	expected := requiredHours * 60
	short := expected - worked
	if short < 0 {
		short = 0
	}
	return models.Undertime{Hours: short / 60, Minutes: short % 60}
}

// deriveAll builds the derived set for every (employee, date) combination
// across the union of dates and the union of employee ids appearing in
// either source, so an employee with no punch and no leave on a day other
// employees worked still yields an Absent row. The two-key maps are built
// once and iterated for every view, so no view re-filters the raw slices per
// day per employee. Output is ordered by date then employee id.
func deriveAll(punches []models.TimeRecord, leaveDays []models.LeaveDay, policy DerivationPolicy) []models.DerivedAttendance {
	punchByKey := make(map[string]*models.TimeRecord, len(punches))
	leaveByKey := make(map[string]*models.LeaveDay, len(leaveDays))
	dateSet := make(map[time.Time]struct{})
	employeeSet := make(map[int]struct{})

	for i := range punches {
		day := models.DateOnly(punches[i].Date)
		punchByKey[dayKey(punches[i].EmployeeID, day)] = &punches[i]
		dateSet[day] = struct{}{}
		employeeSet[punches[i].EmployeeID] = struct{}{}
	}
	for i := range leaveDays {
		day := models.DateOnly(leaveDays[i].Date)
		leaveByKey[dayKey(leaveDays[i].EmployeeID, day)] = &leaveDays[i]
		dateSet[day] = struct{}{}
		employeeSet[leaveDays[i].EmployeeID] = struct{}{}
	}

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	employees := make([]int, 0, len(employeeSet))
	for id := range employeeSet {
		employees = append(employees, id)
	}
	sort.Ints(employees)

	records := make([]models.DerivedAttendance, 0, len(dates)*len(employees))
	for _, date := range dates {
		for _, employeeID := range employees {
			key := dayKey(employeeID, date)
			rec := deriveStatus(punchByKey[key], leaveByKey[key], policy)
			if rec.DTRID == nil && rec.LeaveID == nil {
				rec.EmployeeID = employeeID
				rec.Date = date
			}
			records = append(records, rec)
		}
	}
	return records
}

func dayKey(employeeID int, date time.Time) string {
	return fmt.Sprintf("%d|%s", employeeID, models.DateOnly(date).Format("2006-01-02"))
}
