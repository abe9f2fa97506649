package service

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hrline/dtr-api/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func strptr(s string) *string { return &s }

func punchRecord(id, employeeID int, date time.Time, amIn, amOut, pmIn, pmOut *string) models.TimeRecord {
	return models.TimeRecord{
		ID: id, EmployeeID: employeeID, Date: date,
		AMTimeIn: amIn, AMTimeOut: amOut, PMTimeIn: pmIn, PMTimeOut: pmOut,
	}
}

func TestExpandLeavesInclusiveRange(t *testing.T) {
	grants := []models.LeaveGrant{
		{ID: 7, EmployeeID: 3, DateFrom: day(2024, 3, 4), DateTo: day(2024, 3, 6), LeaveType: "Sick Leave"},
	}
	days := expandLeaves(grants, zap.NewNop())
	require.Len(t, days, 3)
	assert.Equal(t, day(2024, 3, 4), days[0].Date)
	assert.Equal(t, day(2024, 3, 6), days[2].Date)
	for _, d := range days {
		assert.Equal(t, 7, d.LeaveID)
		assert.Equal(t, "Sick Leave", d.LeaveType)
	}
}

func TestExpandLeavesSingleDay(t *testing.T) {
	grants := []models.LeaveGrant{
		{ID: 1, EmployeeID: 1, DateFrom: day(2024, 3, 4), DateTo: day(2024, 3, 4), LeaveType: "Vacation Leave"},
	}
	days := expandLeaves(grants, zap.NewNop())
	require.Len(t, days, 1)
}

func TestExpandLeavesOverlapFirstWins(t *testing.T) {
	grants := []models.LeaveGrant{
		{ID: 1, EmployeeID: 1, DateFrom: day(2024, 3, 4), DateTo: day(2024, 3, 5), LeaveType: "Vacation Leave"},
		{ID: 2, EmployeeID: 1, DateFrom: day(2024, 3, 5), DateTo: day(2024, 3, 6), LeaveType: "Sick Leave"},
	}
	days := expandLeaves(grants, zap.NewNop())
	require.Len(t, days, 3)

	byDate := make(map[string]models.LeaveDay)
	for _, d := range days {
		byDate[d.Date.Format("2006-01-02")] = d
	}
	assert.Equal(t, 1, byDate["2024-03-05"].LeaveID, "earlier grant keeps the contested day")
	assert.Equal(t, 2, byDate["2024-03-06"].LeaveID)
}

func TestDeriveStatusLeaveSupersedesPunch(t *testing.T) {
	punch := punchRecord(11, 1, day(2024, 3, 4), strptr("08:00:00"), strptr("12:00:00"), strptr("13:00:00"), strptr("17:00:00"))
	leave := models.LeaveDay{LeaveID: 7, EmployeeID: 1, Date: day(2024, 3, 4), LeaveType: "Sick Leave"}

	rec := deriveStatus(&punch, &leave, DefaultDerivationPolicy())
	assert.Equal(t, models.StatusLeave, rec.Status)
	assert.Equal(t, "Sick Leave", rec.AMArrival, "leave type label occupies the AM arrival slot")
	assert.Equal(t, models.AbsenceMarker, rec.AMDeparture)
	assert.Equal(t, models.AbsenceMarker, rec.PMArrival)
	assert.Equal(t, models.AbsenceMarker, rec.PMDeparture)
	require.NotNil(t, rec.LeaveID)
	assert.Equal(t, 7, *rec.LeaveID)
	require.NotNil(t, rec.DTRID, "punch back-reference survives for edit actions")
	assert.Equal(t, 11, *rec.DTRID)
	assert.Zero(t, rec.Undertime.TotalMinutes())
}

func TestDeriveStatusAbsent(t *testing.T) {
	rec := deriveStatus(nil, nil, DefaultDerivationPolicy())
	assert.Equal(t, models.StatusAbsent, rec.Status)
	assert.Equal(t, models.AbsenceMarker, rec.AMArrival)
	assert.Equal(t, models.AbsenceMarker, rec.PMDeparture)
	assert.Nil(t, rec.DTRID)
	assert.Nil(t, rec.LeaveID)
}

func TestDeriveStatusOnTimeBoundary(t *testing.T) {
	punch := punchRecord(1, 1, day(2024, 3, 4), strptr("08:00:00"), strptr("12:00:00"), strptr("13:00:00"), strptr("17:00:00"))
	rec := deriveStatus(&punch, nil, DefaultDerivationPolicy())
	assert.Equal(t, models.StatusPresent, rec.Status, "arrival exactly at the threshold is not late")
	assert.Equal(t, "8:00 AM", rec.AMArrival)
	assert.Equal(t, "5:00 PM", rec.PMDeparture)
	assert.Zero(t, rec.Undertime.TotalMinutes())
}

func TestDeriveStatusLate(t *testing.T) {
	punch := punchRecord(1, 1, day(2024, 3, 4), strptr("08:01:00"), strptr("12:00:00"), strptr("13:00:00"), strptr("17:00:00"))
	rec := deriveStatus(&punch, nil, DefaultDerivationPolicy())
	assert.Equal(t, models.StatusLate, rec.Status)
}

func TestDeriveStatusMissingAMArrivalNotLate(t *testing.T) {
	punch := punchRecord(1, 1, day(2024, 3, 4), nil, strptr("12:00:00"), strptr("13:00:00"), strptr("17:00:00"))
	rec := deriveStatus(&punch, nil, DefaultDerivationPolicy())
	assert.Equal(t, models.StatusPresent, rec.Status, "no AM arrival means lateness cannot be judged")
	assert.Equal(t, models.AbsenceMarker, rec.AMArrival)
	assert.Zero(t, rec.Undertime.TotalMinutes(), "undertime needs all four punches")
}

func TestDeriveStatusMalformedPunchTreatedAsAbsent(t *testing.T) {
	punch := punchRecord(1, 1, day(2024, 3, 4), strptr("garbage"), strptr("12:00:00"), strptr("13:00:00"), strptr("17:00:00"))
	rec := deriveStatus(&punch, nil, DefaultDerivationPolicy())
	assert.Equal(t, models.StatusPresent, rec.Status)
	assert.Equal(t, models.AbsenceMarker, rec.AMArrival)
	assert.Zero(t, rec.Undertime.TotalMinutes())
}

func TestComputeUndertime(t *testing.T) {
	// 9:05-12:00 and 13:00-16:30 works 6h25m of an 8h day.
	got := computeUndertime(
		models.ParseTimeOfDay("09:05:00"),
		models.ParseTimeOfDay("12:00:00"),
		models.ParseTimeOfDay("13:00:00"),
		models.ParseTimeOfDay("16:30:00"),
		8,
	)
	assert.Equal(t, models.Undertime{Hours: 1, Minutes: 35}, got)
}

func TestComputeUndertimeNeverNegative(t *testing.T) {
	got := computeUndertime(
		models.ParseTimeOfDay("06:00:00"),
		models.ParseTimeOfDay("12:00:00"),
		models.ParseTimeOfDay("12:30:00"),
		models.ParseTimeOfDay("18:00:00"),
		8,
	)
	assert.Zero(t, got.TotalMinutes())
}

func TestComputeUndertimeInvertedIntervalClampsToZero(t *testing.T) {
	got := computeUndertime(
		models.ParseTimeOfDay("12:00:00"),
		models.ParseTimeOfDay("08:00:00"),
		models.ParseTimeOfDay("13:00:00"),
		models.ParseTimeOfDay("17:00:00"),
		8,
	)
	// Morning clamps to zero, afternoon works four hours.
	assert.Equal(t, models.Undertime{Hours: 4, Minutes: 0}, got)
}

func TestDeriveAllCrossProduct(t *testing.T) {
	punches := []models.TimeRecord{
		punchRecord(1, 1, day(2024, 3, 4), strptr("08:00:00"), strptr("12:00:00"), strptr("13:00:00"), strptr("17:00:00")),
	}
	leaveDays := []models.LeaveDay{
		{LeaveID: 9, EmployeeID: 2, Date: day(2024, 3, 5), LeaveType: "Vacation Leave"},
	}

	records := deriveAll(punches, leaveDays, DefaultDerivationPolicy())
	// Two dates x two employees.
	require.Len(t, records, 4)

	byKey := make(map[string]models.DerivedAttendance)
	for _, rec := range records {
		byKey[rec.Date.Format("2006-01-02")+"|"+strconv.Itoa(rec.EmployeeID)] = rec
	}
	assert.Equal(t, models.StatusPresent, byKey["2024-03-04|1"].Status)
	assert.Equal(t, models.StatusAbsent, byKey["2024-03-04|2"].Status)
	assert.Equal(t, models.StatusAbsent, byKey["2024-03-05|1"].Status)
	assert.Equal(t, models.StatusLeave, byKey["2024-03-05|2"].Status)

	absent := byKey["2024-03-04|2"]
	assert.Equal(t, 2, absent.EmployeeID)
	assert.Equal(t, day(2024, 3, 4), absent.Date)
}

func TestDeriveAllOrdering(t *testing.T) {
	punches := []models.TimeRecord{
		punchRecord(2, 5, day(2024, 3, 5), strptr("08:00:00"), nil, nil, nil),
		punchRecord(1, 2, day(2024, 3, 4), strptr("08:00:00"), nil, nil, nil),
	}
	records := deriveAll(punches, nil, DefaultDerivationPolicy())
	require.Len(t, records, 4)
	assert.Equal(t, day(2024, 3, 4), records[0].Date)
	assert.Equal(t, 2, records[0].EmployeeID)
	assert.Equal(t, day(2024, 3, 4), records[1].Date)
	assert.Equal(t, 5, records[1].EmployeeID)
	assert.Equal(t, day(2024, 3, 5), records[2].Date)
}

func TestDeriveAllIdempotent(t *testing.T) {
	punches := []models.TimeRecord{
		punchRecord(1, 1, day(2024, 3, 4), strptr("09:05:00"), strptr("12:00:00"), strptr("13:00:00"), strptr("16:30:00")),
	}
	first := deriveAll(punches, nil, DefaultDerivationPolicy())
	second := deriveAll(punches, nil, DefaultDerivationPolicy())
	assert.Equal(t, first, second)
	require.Len(t, first, 1)
	assert.Equal(t, models.StatusLate, first[0].Status)
	assert.Equal(t, models.Undertime{Hours: 1, Minutes: 35}, first[0].Undertime)
}

func TestNewDerivationPolicyFallback(t *testing.T) {
	policy := NewDerivationPolicy("garbage", 0)
	assert.Equal(t, DefaultDerivationPolicy(), policy)

	custom := NewDerivationPolicy("09:30", 6)
	assert.Equal(t, 9, custom.LateThreshold.Hour)
	assert.Equal(t, 30, custom.LateThreshold.Minute)
	assert.Equal(t, 6, custom.RequiredHours)
}
