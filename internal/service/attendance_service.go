package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hrline/dtr-api/internal/dto"
	"github.com/hrline/dtr-api/internal/models"
	appErrors "github.com/hrline/dtr-api/pkg/errors"
)

// maxRangeDays caps a single derivation window. One year plus a leap day is
// enough for every view and export the API exposes.
const maxRangeDays = 366

type attendancePunchRepository interface {
	PunchesInRange(ctx context.Context, scope models.EmployeeScope, rng models.DateRange) ([]models.TimeRecord, error)
}

type attendanceLeaveRepository interface {
	LeavesInRange(ctx context.Context, scope models.EmployeeScope, rng models.DateRange) ([]models.LeaveGrant, error)
}

type attendanceEmployeeRepository interface {
	ListByIDs(ctx context.Context, ids []int) ([]models.Employee, error)
}

// AttendanceService derives per-employee per-day attendance from raw punches
// and approved leave grants and renders the list, calendar and summary views.
// Derived records are computed fresh on every call; only rendered view
// payloads are cached.
type AttendanceService struct {
	punches   attendancePunchRepository
	leaves    attendanceLeaveRepository
	employees attendanceEmployeeRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	policy    DerivationPolicy
}

// NewAttendanceService constructs the service and registers the custom
// request validations.
func NewAttendanceService(
	punches attendancePunchRepository,
	leaves attendanceLeaveRepository,
	employees attendanceEmployeeRepository,
	cache *CacheService,
	validate *validator.Validate,
	logger *zap.Logger,
	policy DerivationPolicy,
) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	RegisterAttendanceValidations(validate)
	return &AttendanceService{
		punches:   punches,
		leaves:    leaves,
		employees: employees,
		cache:     cache,
		validator: validate,
		logger:    logger,
		policy:    policy,
	}
}

// RegisterAttendanceValidations installs the attendance_status and bulk_mode
// tag validators on the shared validator instance.
func RegisterAttendanceValidations(validate *validator.Validate) {
	_ = validate.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(fl.Field().String()).Valid()
	})
	_ = validate.RegisterValidation("bulk_mode", func(fl validator.FieldLevel) bool {
		switch models.BulkOperationMode(fl.Field().String()) {
		case models.BulkModeAtomic, models.BulkModePartialOnError:
			return true
		default:
			return false
		}
	})
}

// ResolveScope applies the access-scope filter before any repository query.
// Privileged roles may request any employee or all of them; everyone else is
// pinned to their own directory entry, and asking for another employee's
// records is refused outright rather than silently narrowed.
func (s *AttendanceService) ResolveScope(claims *models.JWTClaims, requested int) (models.EmployeeScope, error) {
	if claims == nil {
		return models.EmployeeScope{}, appErrors.Clone(appErrors.ErrUnauthorized, "missing authentication context")
	}
	if claims.Role.Privileged() {
		return models.EmployeeScope{EmployeeID: requested}, nil
	}
	if claims.EmployeeID == nil {
		return models.EmployeeScope{}, appErrors.Clone(appErrors.ErrForbidden, "account is not linked to an employee")
	}
	if requested != 0 && requested != *claims.EmployeeID {
		return models.EmployeeScope{}, appErrors.Clone(appErrors.ErrForbidden, "cannot view another employee's records")
	}
	return models.EmployeeScope{EmployeeID: *claims.EmployeeID}, nil
}

// Derive runs the full pipeline for the scope and range: fetch both sources
// once, expand grants to per-day leave entries, merge per (employee, date)
// and decorate rows with display names.
func (s *AttendanceService) Derive(ctx context.Context, scope models.EmployeeScope, rng models.DateRange) ([]models.DerivedAttendance, error) {
	if err := validateRange(rng); err != nil {
		return nil, err
	}

	punches, err := s.punches.PunchesInRange(ctx, scope, rng)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time records")
	}
	grants, err := s.leaves.LeavesInRange(ctx, scope, rng)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave grants")
	}

	leaveDays := clipLeaveDays(expandLeaves(grants, s.logger), rng)
	records := deriveAll(punches, leaveDays, s.policy)
	if err := s.decorateNames(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}

// List renders the paginated tabular view with optional status filtering and
// sorting by date, employee or status.
func (s *AttendanceService) List(ctx context.Context, claims *models.JWTClaims, req dto.AttendanceListRequest) ([]dto.AttendanceRow, *models.Pagination, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid list filters")
	}
	scope, err := s.ResolveScope(claims, req.EmployeeID)
	if err != nil {
		return nil, nil, err
	}

	rng := rangeOrCurrentMonth(req.DateFrom, req.DateTo)
	records, err := s.Derive(ctx, scope, rng)
	if err != nil {
		return nil, nil, err
	}

	if req.Status != nil {
		want := models.AttendanceStatus(*req.Status)
		filtered := records[:0]
		for _, rec := range records {
			if rec.Status == want {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	sortDerived(records, req.SortBy, req.SortOrder)

	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	total := len(records)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	rows := make([]dto.AttendanceRow, 0, end-start)
	for _, rec := range records[start:end] {
		rows = append(rows, dto.RowFromDerived(rec))
	}
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Calendar renders per-date status counts over every calendar day of the
// requested range, including days with no derived records. The rendered
// payload is cached per scope and range.
func (s *AttendanceService) Calendar(ctx context.Context, claims *models.JWTClaims, req dto.CalendarRequest) (*dto.CalendarResponse, bool, error) {
	scope, err := s.ResolveScope(claims, req.EmployeeID)
	if err != nil {
		return nil, false, err
	}
	rng := models.DateRange{From: models.DateOnly(req.DateFrom), To: models.DateOnly(req.DateTo)}
	if err := validateRange(rng); err != nil {
		return nil, false, err
	}

	cacheKey := viewCacheKey("calendar", scope, rng)
	var cached dto.CalendarResponse
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, true, nil
	}

	records, err := s.Derive(ctx, scope, rng)
	if err != nil {
		return nil, false, err
	}

	byDate := make(map[string]*dto.CalendarCell)
	for _, rec := range records {
		key := rec.Date.Format("2006-01-02")
		cell, ok := byDate[key]
		if !ok {
			cell = &dto.CalendarCell{Date: key}
			byDate[key] = cell
		}
		tallyCell(cell, rec.Status)
	}

	cells := make([]dto.CalendarCell, 0, int(rng.To.Sub(rng.From).Hours()/24)+1)
	for d := rng.From; !d.After(rng.To); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		if cell, ok := byDate[key]; ok {
			cells = append(cells, *cell)
			continue
		}
		cells = append(cells, dto.CalendarCell{Date: key})
	}

	resp := &dto.CalendarResponse{
		DateFrom: rng.From.Format("2006-01-02"),
		DateTo:   rng.To.Format("2006-01-02"),
		Cells:    cells,
	}
	_ = s.cache.Set(ctx, cacheKey, resp, 0)
	return resp, false, nil
}

// Summary renders overall, per-weekday and per-employee aggregates with
// rates rounded to one decimal place. The rendered payload is cached per
// scope and range.
func (s *AttendanceService) Summary(ctx context.Context, claims *models.JWTClaims, req dto.SummaryRequest) (*dto.SummaryResponse, bool, error) {
	scope, err := s.ResolveScope(claims, req.EmployeeID)
	if err != nil {
		return nil, false, err
	}
	rng := models.DateRange{From: models.DateOnly(req.DateFrom), To: models.DateOnly(req.DateTo)}
	if err := validateRange(rng); err != nil {
		return nil, false, err
	}

	cacheKey := viewCacheKey("summary", scope, rng)
	var cached dto.SummaryResponse
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, true, nil
	}

	records, err := s.Derive(ctx, scope, rng)
	if err != nil {
		return nil, false, err
	}

	var overall dto.SummaryBucket
	byDay := make(map[time.Weekday]*dto.SummaryBucket)
	type employeeAgg struct {
		name   string
		bucket dto.SummaryBucket
	}
	byEmployee := make(map[int]*employeeAgg)

	for _, rec := range records {
		tallyBucket(&overall, rec.Status)

		weekday := rec.Date.Weekday()
		if byDay[weekday] == nil {
			byDay[weekday] = &dto.SummaryBucket{}
		}
		tallyBucket(byDay[weekday], rec.Status)

		agg := byEmployee[rec.EmployeeID]
		if agg == nil {
			agg = &employeeAgg{name: rec.EmployeeName}
			byEmployee[rec.EmployeeID] = agg
		}
		tallyBucket(&agg.bucket, rec.Status)
	}

	finalizeBucket(&overall)

	weekdays := []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
		time.Friday, time.Saturday, time.Sunday,
	}
	days := make([]dto.SummaryDayOfWeek, 0, len(weekdays))
	for _, wd := range weekdays {
		bucket := dto.SummaryBucket{}
		if agg := byDay[wd]; agg != nil {
			bucket = *agg
		}
		finalizeBucket(&bucket)
		days = append(days, dto.SummaryDayOfWeek{Day: wd.String(), SummaryBucket: bucket})
	}

	employeeIDs := make([]int, 0, len(byEmployee))
	for id := range byEmployee {
		employeeIDs = append(employeeIDs, id)
	}
	sort.Ints(employeeIDs)
	perEmployee := make([]dto.SummaryEmployee, 0, len(employeeIDs))
	for _, id := range employeeIDs {
		agg := byEmployee[id]
		finalizeBucket(&agg.bucket)
		perEmployee = append(perEmployee, dto.SummaryEmployee{
			EmployeeID:    id,
			Employee:      agg.name,
			SummaryBucket: agg.bucket,
		})
	}

	resp := &dto.SummaryResponse{Overall: overall, ByDay: days, ByEmployee: perEmployee}
	_ = s.cache.Set(ctx, cacheKey, resp, 0)
	return resp, false, nil
}

// Rows derives the flat row set for exports, bypassing pagination and the
// view cache.
func (s *AttendanceService) Rows(ctx context.Context, claims *models.JWTClaims, req dto.ExportRequest) ([]dto.AttendanceRow, error) {
	scope, err := s.ResolveScope(claims, req.EmployeeID)
	if err != nil {
		return nil, err
	}
	rng := models.DateRange{From: models.DateOnly(req.DateFrom), To: models.DateOnly(req.DateTo)}
	records, err := s.Derive(ctx, scope, rng)
	if err != nil {
		return nil, err
	}
	rows := make([]dto.AttendanceRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, dto.RowFromDerived(rec))
	}
	return rows, nil
}

func (s *AttendanceService) decorateNames(ctx context.Context, records []models.DerivedAttendance) error {
	if len(records) == 0 {
		return nil
	}
	idSet := make(map[int]struct{})
	for _, rec := range records {
		idSet[rec.EmployeeID] = struct{}{}
	}
	ids := make([]int, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	employees, err := s.employees.ListByIDs(ctx, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee names")
	}
	names := make(map[int]string, len(employees))
	for _, emp := range employees {
		names[emp.ID] = emp.FullName()
	}
	for i := range records {
		if name, ok := names[records[i].EmployeeID]; ok {
			records[i].EmployeeName = name
			continue
		}
		// Punch rows can outlive their directory entry.
		records[i].EmployeeName = fmt.Sprintf("Employee #%d", records[i].EmployeeID)
	}
	return nil
}

// clipLeaveDays drops expanded leave days that fall outside the requested
// range, so a grant straddling the boundary only contributes in-range days.
func clipLeaveDays(days []models.LeaveDay, rng models.DateRange) []models.LeaveDay {
	clipped := days[:0]
	for _, day := range days {
		if rng.Contains(day.Date) {
			clipped = append(clipped, day)
		}
	}
	return clipped
}

func sortDerived(records []models.DerivedAttendance, sortBy, sortOrder string) {
	desc := strings.EqualFold(sortOrder, "desc")
	less := func(i, j int) bool {
		a, b := records[i], records[j]
		switch strings.ToLower(sortBy) {
		case "employee":
			if a.EmployeeName != b.EmployeeName {
				return a.EmployeeName < b.EmployeeName
			}
		case "status":
			if a.Status != b.Status {
				return a.Status < b.Status
			}
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.EmployeeID < b.EmployeeID
	}
	sort.SliceStable(records, func(i, j int) bool {
		if desc {
			return less(j, i)
		}
		return less(i, j)
	})
}

func validateRange(rng models.DateRange) error {
	from := models.DateOnly(rng.From)
	to := models.DateOnly(rng.To)
	if from.IsZero() || to.IsZero() {
		return appErrors.Clone(appErrors.ErrValidation, "date_from and date_to are required")
	}
	if to.Before(from) {
		return appErrors.Clone(appErrors.ErrValidation, "date_to must not precede date_from")
	}
	if int(to.Sub(from).Hours()/24)+1 > maxRangeDays {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("date range exceeds %d days", maxRangeDays))
	}
	return nil
}

// rangeOrCurrentMonth defaults missing bounds to the current calendar month.
func rangeOrCurrentMonth(from, to *time.Time) models.DateRange {
	now := time.Now().UTC()
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastOfMonth := firstOfMonth.AddDate(0, 1, -1)

	rng := models.DateRange{From: firstOfMonth, To: lastOfMonth}
	if from != nil {
		rng.From = models.DateOnly(*from)
	}
	if to != nil {
		rng.To = models.DateOnly(*to)
	}
	if from != nil && to == nil {
		rng.To = rng.From.AddDate(0, 1, -1)
	}
	return rng
}

func viewCacheKey(view string, scope models.EmployeeScope, rng models.DateRange) string {
	return fmt.Sprintf("views:%s:%d:%s:%s",
		view, scope.EmployeeID, rng.From.Format("2006-01-02"), rng.To.Format("2006-01-02"))
}

func tallyCell(cell *dto.CalendarCell, status models.AttendanceStatus) {
	cell.Total++
	switch status {
	case models.StatusPresent:
		cell.Present++
	case models.StatusAbsent:
		cell.Absent++
	case models.StatusLeave:
		cell.Leave++
	case models.StatusLate:
		cell.Late++
	}
}

func tallyBucket(bucket *dto.SummaryBucket, status models.AttendanceStatus) {
	bucket.Total++
	switch status {
	case models.StatusPresent:
		bucket.Present++
	case models.StatusAbsent:
		bucket.Absent++
	case models.StatusLeave:
		bucket.Leave++
	case models.StatusLate:
		bucket.Late++
	}
}

func finalizeBucket(bucket *dto.SummaryBucket) {
	if bucket.Total == 0 {
		return
	}
	bucket.PresentRate = rate(bucket.Present, bucket.Total)
	bucket.AbsentRate = rate(bucket.Absent, bucket.Total)
	bucket.LeaveRate = rate(bucket.Leave, bucket.Total)
	bucket.LateRate = rate(bucket.Late, bucket.Total)
}

func rate(count, total int) float64 {
	return math.Round(float64(count)/float64(total)*1000) / 10
}
