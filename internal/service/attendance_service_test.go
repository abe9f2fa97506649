package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrline/dtr-api/internal/dto"
	"github.com/hrline/dtr-api/internal/models"
	appErrors "github.com/hrline/dtr-api/pkg/errors"
)

type punchRepoStub struct {
	punches []models.TimeRecord
	scope   models.EmployeeScope
	err     error
}

func (s *punchRepoStub) PunchesInRange(ctx context.Context, scope models.EmployeeScope, rng models.DateRange) ([]models.TimeRecord, error) {
	s.scope = scope
	if s.err != nil {
		return nil, s.err
	}
	return s.punches, nil
}

type leaveRepoStub struct {
	grants []models.LeaveGrant
	err    error
}

func (s *leaveRepoStub) LeavesInRange(ctx context.Context, scope models.EmployeeScope, rng models.DateRange) ([]models.LeaveGrant, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.grants, nil
}

type employeeRepoStub struct {
	employees []models.Employee
}

func (s *employeeRepoStub) ListByIDs(ctx context.Context, ids []int) ([]models.Employee, error) {
	return s.employees, nil
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "u-1", Role: models.RoleAdmin}
}

func employeeClaims(employeeID int) *models.JWTClaims {
	return &models.JWTClaims{UserID: "u-2", Role: models.RoleEmployee, EmployeeID: &employeeID}
}

func newTestAttendanceService(punches *punchRepoStub, leaves *leaveRepoStub, employees *employeeRepoStub) *AttendanceService {
	return NewAttendanceService(punches, leaves, employees, nil, nil, nil, DefaultDerivationPolicy())
}

func TestResolveScope(t *testing.T) {
	svc := newTestAttendanceService(&punchRepoStub{}, &leaveRepoStub{}, &employeeRepoStub{})

	scope, err := svc.ResolveScope(adminClaims(), 0)
	require.NoError(t, err)
	assert.True(t, scope.All())

	scope, err = svc.ResolveScope(adminClaims(), 42)
	require.NoError(t, err)
	assert.Equal(t, 42, scope.EmployeeID)

	scope, err = svc.ResolveScope(employeeClaims(7), 0)
	require.NoError(t, err)
	assert.Equal(t, 7, scope.EmployeeID)

	scope, err = svc.ResolveScope(employeeClaims(7), 7)
	require.NoError(t, err)
	assert.Equal(t, 7, scope.EmployeeID)

	_, err = svc.ResolveScope(employeeClaims(7), 8)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.ResolveScope(&models.JWTClaims{UserID: "u-3", Role: models.RoleEmployee}, 0)
	require.Error(t, err, "unlinked account cannot read anything")

	_, err = svc.ResolveScope(nil, 0)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAttendanceListDerivesAndPaginates(t *testing.T) {
	punches := &punchRepoStub{punches: []models.TimeRecord{
		punchRecord(1, 1, day(2024, 3, 4), strptr("08:00:00"), strptr("12:00:00"), strptr("13:00:00"), strptr("17:00:00")),
		punchRecord(2, 2, day(2024, 3, 4), strptr("08:30:00"), strptr("12:00:00"), strptr("13:00:00"), strptr("17:00:00")),
	}}
	leaves := &leaveRepoStub{grants: []models.LeaveGrant{
		{ID: 9, EmployeeID: 1, DateFrom: day(2024, 3, 5), DateTo: day(2024, 3, 5), LeaveType: "Sick Leave"},
	}}
	ext := "Jr."
	employees := &employeeRepoStub{employees: []models.Employee{
		{ID: 1, FirstName: "Juan", LastName: "Dela Cruz", ExtName: &ext},
		{ID: 2, FirstName: "Maria", LastName: "Santos"},
	}}
	svc := newTestAttendanceService(punches, leaves, employees)

	from := day(2024, 3, 4)
	to := day(2024, 3, 5)
	rows, pagination, err := svc.List(context.Background(), adminClaims(), dto.AttendanceListRequest{
		DateFrom: &from, DateTo: &to,
	})
	require.NoError(t, err)
	// Two dates x two employees.
	require.Len(t, rows, 4)
	assert.Equal(t, 4, pagination.TotalCount)

	assert.Equal(t, "Jr. Juan Dela Cruz", rows[0].Employee)
	assert.Equal(t, "Mar 04, 2024", rows[0].Date)
	assert.Equal(t, models.StatusPresent, rows[0].Status)

	assert.Equal(t, models.StatusLate, rows[1].Status)
	assert.Equal(t, "8:30 AM", rows[1].AMArrival)

	assert.Equal(t, models.StatusLeave, rows[2].Status)
	assert.Equal(t, "Sick Leave", rows[2].AMArrival)
	require.NotNil(t, rows[2].Type)

	assert.Equal(t, models.StatusAbsent, rows[3].Status)
	assert.Equal(t, "-", rows[3].AMArrival)
}

func TestAttendanceListStatusFilter(t *testing.T) {
	punches := &punchRepoStub{punches: []models.TimeRecord{
		punchRecord(1, 1, day(2024, 3, 4), strptr("08:45:00"), strptr("12:00:00"), strptr("13:00:00"), strptr("17:00:00")),
		punchRecord(2, 2, day(2024, 3, 4), strptr("07:45:00"), strptr("12:00:00"), strptr("13:00:00"), strptr("17:00:00")),
	}}
	svc := newTestAttendanceService(punches, &leaveRepoStub{}, &employeeRepoStub{})

	from := day(2024, 3, 4)
	to := day(2024, 3, 4)
	status := "Late"
	rows, _, err := svc.List(context.Background(), adminClaims(), dto.AttendanceListRequest{
		DateFrom: &from, DateTo: &to, Status: &status,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].EmployeeID)
}

func TestAttendanceListInvalidStatus(t *testing.T) {
	svc := newTestAttendanceService(&punchRepoStub{}, &leaveRepoStub{}, &employeeRepoStub{})
	status := "Tardy"
	_, _, err := svc.List(context.Background(), adminClaims(), dto.AttendanceListRequest{Status: &status})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceListScopesUnprivilegedCaller(t *testing.T) {
	punches := &punchRepoStub{}
	svc := newTestAttendanceService(punches, &leaveRepoStub{}, &employeeRepoStub{})

	from := day(2024, 3, 4)
	to := day(2024, 3, 4)
	_, _, err := svc.List(context.Background(), employeeClaims(7), dto.AttendanceListRequest{DateFrom: &from, DateTo: &to})
	require.NoError(t, err)
	assert.Equal(t, 7, punches.scope.EmployeeID, "scope must narrow before the repository query")
}

func TestCalendarCountsAndEmptyDays(t *testing.T) {
	punches := &punchRepoStub{punches: []models.TimeRecord{
		punchRecord(1, 1, day(2024, 3, 4), strptr("08:00:00"), strptr("12:00:00"), strptr("13:00:00"), strptr("17:00:00")),
		punchRecord(2, 2, day(2024, 3, 4), strptr("09:00:00"), strptr("12:00:00"), strptr("13:00:00"), strptr("17:00:00")),
	}}
	svc := newTestAttendanceService(punches, &leaveRepoStub{}, &employeeRepoStub{})

	resp, hit, err := svc.Calendar(context.Background(), adminClaims(), dto.CalendarRequest{
		DateFrom: day(2024, 3, 4), DateTo: day(2024, 3, 6),
	})
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, resp.Cells, 3, "one cell per calendar day")

	assert.Equal(t, "2024-03-04", resp.Cells[0].Date)
	assert.Equal(t, 1, resp.Cells[0].Present)
	assert.Equal(t, 1, resp.Cells[0].Late)
	assert.Equal(t, 0, resp.Cells[0].Absent)
	assert.Equal(t, 2, resp.Cells[0].Total)

	// Days with no punches and no leave for anyone render empty cells.
	assert.Equal(t, "2024-03-05", resp.Cells[1].Date)
	assert.Zero(t, resp.Cells[1].Total)
	assert.Zero(t, resp.Cells[2].Total)
}

func TestSummaryRatesOneDecimal(t *testing.T) {
	punches := &punchRepoStub{punches: []models.TimeRecord{
		punchRecord(1, 1, day(2024, 3, 4), strptr("08:00:00"), strptr("12:00:00"), strptr("13:00:00"), strptr("17:00:00")),
		punchRecord(2, 1, day(2024, 3, 5), strptr("08:00:00"), strptr("12:00:00"), strptr("13:00:00"), strptr("17:00:00")),
	}}
	leaves := &leaveRepoStub{grants: []models.LeaveGrant{
		{ID: 3, EmployeeID: 1, DateFrom: day(2024, 3, 6), DateTo: day(2024, 3, 6), LeaveType: "Vacation Leave"},
	}}
	svc := newTestAttendanceService(punches, leaves, &employeeRepoStub{employees: []models.Employee{
		{ID: 1, FirstName: "Juan", LastName: "Dela Cruz"},
	}})

	resp, _, err := svc.Summary(context.Background(), adminClaims(), dto.SummaryRequest{
		DateFrom: day(2024, 3, 4), DateTo: day(2024, 3, 6),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, resp.Overall.Total)
	assert.Equal(t, 2, resp.Overall.Present)
	assert.Equal(t, 1, resp.Overall.Leave)
	assert.InDelta(t, 66.7, resp.Overall.PresentRate, 0.01, "rates round to one decimal")
	assert.InDelta(t, 33.3, resp.Overall.LeaveRate, 0.01)

	require.Len(t, resp.ByDay, 7)
	assert.Equal(t, "Monday", resp.ByDay[0].Day)
	assert.Equal(t, 1, resp.ByDay[0].Present)

	require.Len(t, resp.ByEmployee, 1)
	assert.Equal(t, "Juan Dela Cruz", resp.ByEmployee[0].Employee)
	assert.Equal(t, 3, resp.ByEmployee[0].Total)
}

func TestCalendarCellsMatchListCountsPerDate(t *testing.T) {
	punches := &punchRepoStub{punches: []models.TimeRecord{
		punchRecord(1, 1, day(2024, 3, 4), strptr("08:00:00"), strptr("12:00:00"), strptr("13:00:00"), strptr("17:00:00")),
		punchRecord(2, 2, day(2024, 3, 4), strptr("08:45:00"), strptr("12:00:00"), strptr("13:00:00"), strptr("17:00:00")),
		punchRecord(3, 2, day(2024, 3, 6), strptr("08:00:00"), strptr("12:00:00"), strptr("13:00:00"), strptr("17:00:00")),
	}}
	leaves := &leaveRepoStub{grants: []models.LeaveGrant{
		{ID: 5, EmployeeID: 1, DateFrom: day(2024, 3, 5), DateTo: day(2024, 3, 6), LeaveType: "Sick Leave"},
	}}

	from := day(2024, 3, 4)
	to := day(2024, 3, 7)

	listSvc := newTestAttendanceService(punches, leaves, &employeeRepoStub{})
	rows, _, err := listSvc.List(context.Background(), adminClaims(), dto.AttendanceListRequest{
		DateFrom: &from, DateTo: &to, PageSize: 200,
	})
	require.NoError(t, err)

	calSvc := newTestAttendanceService(punches, leaves, &employeeRepoStub{})
	calendar, _, err := calSvc.Calendar(context.Background(), adminClaims(), dto.CalendarRequest{
		DateFrom: from, DateTo: to,
	})
	require.NoError(t, err)

	type counts struct{ present, absent, leave, late, total int }
	byDate := make(map[string]*counts)
	for _, row := range rows {
		parsed, err := time.Parse(dto.DisplayDateLayout, row.Date)
		require.NoError(t, err)
		key := parsed.Format("2006-01-02")
		c := byDate[key]
		if c == nil {
			c = &counts{}
			byDate[key] = c
		}
		c.total++
		switch row.Status {
		case models.StatusPresent:
			c.present++
		case models.StatusAbsent:
			c.absent++
		case models.StatusLeave:
			c.leave++
		case models.StatusLate:
			c.late++
		}
	}

	require.Len(t, calendar.Cells, 4)
	for _, cell := range calendar.Cells {
		c := byDate[cell.Date]
		if c == nil {
			// A date with no punches and no leave yields no list rows and
			// must render an empty cell.
			assert.Zero(t, cell.Total, "empty cell on %s", cell.Date)
			continue
		}
		assert.Equal(t, c.present, cell.Present, "present on %s", cell.Date)
		assert.Equal(t, c.absent, cell.Absent, "absent on %s", cell.Date)
		assert.Equal(t, c.leave, cell.Leave, "leave on %s", cell.Date)
		assert.Equal(t, c.late, cell.Late, "late on %s", cell.Date)
		assert.Equal(t, c.total, cell.Total, "total on %s", cell.Date)
	}
}

func TestSummaryMatchesCalendarTotals(t *testing.T) {
	punches := &punchRepoStub{punches: []models.TimeRecord{
		punchRecord(1, 1, day(2024, 3, 4), strptr("08:30:00"), strptr("12:00:00"), strptr("13:00:00"), strptr("17:00:00")),
		punchRecord(2, 2, day(2024, 3, 5), strptr("08:00:00"), strptr("12:00:00"), strptr("13:00:00"), strptr("17:00:00")),
	}}
	leaves := &leaveRepoStub{grants: []models.LeaveGrant{
		{ID: 3, EmployeeID: 1, DateFrom: day(2024, 3, 5), DateTo: day(2024, 3, 5), LeaveType: "Sick Leave"},
	}}

	svcA := newTestAttendanceService(punches, leaves, &employeeRepoStub{})
	req := dto.CalendarRequest{DateFrom: day(2024, 3, 4), DateTo: day(2024, 3, 5)}
	calendar, _, err := svcA.Calendar(context.Background(), adminClaims(), req)
	require.NoError(t, err)

	svcB := newTestAttendanceService(punches, leaves, &employeeRepoStub{})
	summary, _, err := svcB.Summary(context.Background(), adminClaims(), dto.SummaryRequest{
		DateFrom: day(2024, 3, 4), DateTo: day(2024, 3, 5),
	})
	require.NoError(t, err)

	var calPresent, calAbsent, calLeave, calLate int
	for _, cell := range calendar.Cells {
		calPresent += cell.Present
		calAbsent += cell.Absent
		calLeave += cell.Leave
		calLate += cell.Late
	}
	assert.Equal(t, summary.Overall.Present, calPresent)
	assert.Equal(t, summary.Overall.Absent, calAbsent)
	assert.Equal(t, summary.Overall.Leave, calLeave)
	assert.Equal(t, summary.Overall.Late, calLate)
}

func TestDeriveRejectsInvertedRange(t *testing.T) {
	svc := newTestAttendanceService(&punchRepoStub{}, &leaveRepoStub{}, &employeeRepoStub{})
	_, err := svc.Derive(context.Background(), models.EmployeeScope{}, models.DateRange{
		From: day(2024, 3, 10), To: day(2024, 3, 4),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDeriveClipsLeaveStraddlingRange(t *testing.T) {
	leaves := &leaveRepoStub{grants: []models.LeaveGrant{
		{ID: 1, EmployeeID: 1, DateFrom: day(2024, 2, 28), DateTo: day(2024, 3, 2), LeaveType: "Vacation Leave"},
	}}
	svc := newTestAttendanceService(&punchRepoStub{}, leaves, &employeeRepoStub{})

	records, err := svc.Derive(context.Background(), models.EmployeeScope{}, models.DateRange{
		From: day(2024, 3, 1), To: day(2024, 3, 31),
	})
	require.NoError(t, err)
	require.Len(t, records, 2, "only the in-range leave days appear")
	for _, rec := range records {
		assert.Equal(t, models.StatusLeave, rec.Status)
		assert.False(t, rec.Date.Before(day(2024, 3, 1)))
	}
}

func TestSortDerived(t *testing.T) {
	records := []models.DerivedAttendance{
		{EmployeeID: 2, EmployeeName: "Beta", Date: day(2024, 3, 4), Status: models.StatusAbsent},
		{EmployeeID: 1, EmployeeName: "Alpha", Date: day(2024, 3, 5), Status: models.StatusPresent},
	}
	sortDerived(records, "employee", "asc")
	assert.Equal(t, "Alpha", records[0].EmployeeName)

	sortDerived(records, "date", "desc")
	assert.Equal(t, day(2024, 3, 5), records[0].Date)
}

func TestRangeOrCurrentMonthDefaults(t *testing.T) {
	rng := rangeOrCurrentMonth(nil, nil)
	now := time.Now().UTC()
	assert.Equal(t, now.Month(), rng.From.Month())
	assert.Equal(t, 1, rng.From.Day())
	assert.Equal(t, rng.From.AddDate(0, 1, -1), rng.To)

	from := day(2024, 3, 10)
	rng = rangeOrCurrentMonth(&from, nil)
	assert.Equal(t, day(2024, 3, 10), rng.From)
	assert.Equal(t, day(2024, 4, 9), rng.To)
}
