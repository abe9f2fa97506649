package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hrline/dtr-api/internal/dto"
	"github.com/hrline/dtr-api/internal/models"
	"github.com/hrline/dtr-api/internal/repository"
	appErrors "github.com/hrline/dtr-api/pkg/errors"
)

type timeRecordWriteRepository interface {
	FindByID(ctx context.Context, id int) (*models.TimeRecord, error)
	Upsert(ctx context.Context, record *models.TimeRecord) (*models.TimeRecord, error)
	UpdateTimes(ctx context.Context, id int, amIn, amOut, pmIn, pmOut *string) (*models.TimeRecord, error)
	BulkInsert(ctx context.Context, records []models.TimeRecord, atomic bool) ([]models.TimeRecordBulkConflict, error)
	Delete(ctx context.Context, id int) error
}

type leaveLookupRepository interface {
	FindByID(ctx context.Context, id int) (*models.LeaveGrant, error)
}

type employeeLookupRepository interface {
	FindByID(ctx context.Context, id int) (*models.Employee, error)
	FindByFullName(ctx context.Context, name string) (*models.Employee, error)
}

// TimeRecordService owns the write path for raw punches: create/update by
// form input, bulk import, and delete. Every successful write invalidates
// the rendered view cache so no stale aggregate outlives the mutation.
type TimeRecordService struct {
	records   timeRecordWriteRepository
	leaves    leaveLookupRepository
	employees employeeLookupRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	maxBulk   int
}

// NewTimeRecordService constructs the service.
func NewTimeRecordService(
	records timeRecordWriteRepository,
	leaves leaveLookupRepository,
	employees employeeLookupRepository,
	cache *CacheService,
	validate *validator.Validate,
	logger *zap.Logger,
	maxBulk int,
) *TimeRecordService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	RegisterAttendanceValidations(validate)
	if maxBulk <= 0 {
		maxBulk = 500
	}
	return &TimeRecordService{
		records:   records,
		leaves:    leaves,
		employees: employees,
		cache:     cache,
		validator: validate,
		logger:    logger,
		maxBulk:   maxBulk,
	}
}

// Create upserts the punch row for (employee, date). The employee arrives as
// a display full name and is resolved through the directory; a date covered
// by an approved leave is rejected without touching the row.
func (s *TimeRecordService) Create(ctx context.Context, req dto.CreateRecordRequest) (*models.TimeRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid record payload")
	}

	employee, err := s.employees.FindByFullName(ctx, req.Employee)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no employee named %q", req.Employee))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve employee")
	}

	date, err := parseRecordDate(req.Date)
	if err != nil {
		return nil, err
	}
	times, err := parsePunchTimes(req.AMArrival, req.AMDeparture, req.PMArrival, req.PMDeparture)
	if err != nil {
		return nil, err
	}

	record := &models.TimeRecord{
		EmployeeID: employee.ID,
		Date:       date,
		AMTimeIn:   times[0],
		AMTimeOut:  times[1],
		PMTimeIn:   times[2],
		PMTimeOut:  times[3],
	}
	if record.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one punch time is required")
	}

	stored, err := s.records.Upsert(ctx, record)
	if err != nil {
		if errors.Is(err, repository.ErrLeaveOverlap) {
			return nil, appErrors.Clone(appErrors.ErrLeaveConflict,
				fmt.Sprintf("an approved leave covers %s", date.Format("2006-01-02")))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save time record")
	}

	s.invalidateViews(ctx)
	s.logger.Info("time record saved",
		zap.Int("record_id", stored.ID),
		zap.Int("employee_id", stored.EmployeeID),
		zap.String("date", models.DateOnly(stored.Date).Format("2006-01-02")))
	return stored, nil
}

// Update rewrites the punches of an existing row. The caller identifies the
// target by exactly one of the two back-references a derived row carries:
// dtr_id edits that punch row directly; leave_id is refused because leave
// days cannot hold punches while the grant stands.
func (s *TimeRecordService) Update(ctx context.Context, req dto.UpdateRecordRequest) (*models.TimeRecord, error) {
	if (req.DTRID == nil) == (req.LeaveID == nil) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exactly one of dtr_id and leave_id must be set")
	}

	if req.LeaveID != nil {
		grant, err := s.leaves.FindByID(ctx, *req.LeaveID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "leave grant not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave grant")
		}
		return nil, appErrors.Clone(appErrors.ErrLeaveConflict,
			fmt.Sprintf("leave %d covers %s through %s; punches cannot be recorded on leave days",
				grant.ID,
				models.DateOnly(grant.DateFrom).Format("2006-01-02"),
				models.DateOnly(grant.DateTo).Format("2006-01-02")))
	}

	times, err := parsePunchTimes(req.AMArrival, req.AMDeparture, req.PMArrival, req.PMDeparture)
	if err != nil {
		return nil, err
	}
	if times[0] == nil && times[1] == nil && times[2] == nil && times[3] == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one punch time is required")
	}

	stored, err := s.records.UpdateTimes(ctx, *req.DTRID, times[0], times[1], times[2], times[3])
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "time record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update time record")
	}

	s.invalidateViews(ctx)
	s.logger.Info("time record updated", zap.Int("record_id", stored.ID))
	return stored, nil
}

// BulkImport writes a batch of punch rows. Atomic mode aborts the whole
// batch on the first conflict; partialOnError commits the clean rows and
// reports the rest.
func (s *TimeRecordService) BulkImport(ctx context.Context, req dto.BulkImportRequest) (*dto.BulkImportResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk import payload")
	}
	if len(req.Items) > s.maxBulk {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("bulk import is limited to %d records per request", s.maxBulk))
	}

	seen := make(map[string]struct{}, len(req.Items))
	records := make([]models.TimeRecord, 0, len(req.Items))
	conflicts := make([]models.TimeRecordBulkConflict, 0)
	atomic := models.BulkOperationMode(req.Mode) == models.BulkModeAtomic

	for i, item := range req.Items {
		date, err := parseRecordDate(item.Date)
		if err != nil {
			if atomic {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("item %d: unparseable date %q", i, item.Date))
			}
			conflicts = append(conflicts, models.TimeRecordBulkConflict{EmployeeID: item.EmployeeID, Reason: fmt.Sprintf("unparseable date %q", item.Date)})
			continue
		}
		times, err := parsePunchTimes(item.AMArrival, item.AMDeparture, item.PMArrival, item.PMDeparture)
		if err != nil {
			if atomic {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("item %d: %s", i, appErrors.FromError(err).Message))
			}
			conflicts = append(conflicts, models.TimeRecordBulkConflict{EmployeeID: item.EmployeeID, Date: date, Reason: "unparseable punch time"})
			continue
		}

		key := fmt.Sprintf("%d|%s", item.EmployeeID, date.Format("2006-01-02"))
		if _, dup := seen[key]; dup {
			if atomic {
				return nil, appErrors.Clone(appErrors.ErrValidation,
					fmt.Sprintf("item %d: duplicate entry for employee %d on %s", i, item.EmployeeID, date.Format("2006-01-02")))
			}
			conflicts = append(conflicts, models.TimeRecordBulkConflict{EmployeeID: item.EmployeeID, Date: date, Reason: "duplicate entry in payload"})
			continue
		}
		seen[key] = struct{}{}

		records = append(records, models.TimeRecord{
			EmployeeID: item.EmployeeID,
			Date:       date,
			AMTimeIn:   times[0],
			AMTimeOut:  times[1],
			PMTimeIn:   times[2],
			PMTimeOut:  times[3],
		})
	}

	dbConflicts, err := s.records.BulkInsert(ctx, records, atomic)
	if err != nil {
		if errors.Is(err, repository.ErrLeaveOverlap) {
			return nil, appErrors.Clone(appErrors.ErrLeaveConflict, "an approved leave covers one of the imported dates")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "bulk import failed")
	}
	conflicts = append(conflicts, dbConflicts...)

	s.invalidateViews(ctx)
	result := &dto.BulkImportResult{
		Processed: len(req.Items),
		Success:   len(req.Items) - len(conflicts),
		Conflicts: conflicts,
	}
	s.logger.Info("bulk import finished",
		zap.Int("processed", result.Processed),
		zap.Int("success", result.Success),
		zap.Int("conflicts", len(conflicts)),
		zap.Bool("atomic", atomic))
	return result, nil
}

// Delete removes one punch row by id.
func (s *TimeRecordService) Delete(ctx context.Context, id int) error {
	if id <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "record id must be positive")
	}
	if err := s.records.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "time record not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete time record")
	}
	s.invalidateViews(ctx)
	s.logger.Info("time record deleted", zap.Int("record_id", id))
	return nil
}

func (s *TimeRecordService) invalidateViews(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "views:*"); err != nil {
		s.logger.Warn("failed to invalidate view cache", zap.Error(err))
	}
}

// parseRecordDate accepts YYYY-MM-DD or the display form used on rendered
// rows.
func parseRecordDate(raw string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", dto.DisplayDateLayout} {
		if t, err := time.Parse(layout, raw); err == nil {
			return models.DateOnly(t), nil
		}
	}
	return time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unparseable date %q", raw))
}

// parsePunchTimes normalizes the four form inputs to stored 24-hour clock
// strings. Empty inputs and the absence marker become nil; free text that is
// not a clock time is rejected, because tolerating garbage is a read-side
// concession only.
func parsePunchTimes(values ...string) ([4]*string, error) {
	var out [4]*string
	labels := [4]string{"am_arrival", "am_departure", "pm_arrival", "pm_departure"}
	for i, raw := range values {
		parsed := models.ParseTimeOfDay(raw)
		switch parsed.Kind {
		case models.TimeAbsent:
			out[i] = nil
		case models.TimeValid:
			clock := parsed.Clock()
			out[i] = &clock
		default:
			return out, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unparseable %s %q", labels[i], raw))
		}
	}
	return out, nil
}
