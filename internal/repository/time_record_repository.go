package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hrline/dtr-api/internal/models"
)

// ErrLeaveOverlap signals a punch write targeting a date already covered by
// an approved leave grant.
var ErrLeaveOverlap = errors.New("approved leave overlaps date")

const timeRecordColumns = `id, employee_id, date, am_time_in, am_time_out, pm_time_in, pm_time_out, created_at, updated_at`

// TimeRecordRepository handles persistence for raw time-clock punches.
type TimeRecordRepository struct {
	db *sqlx.DB
}

// NewTimeRecordRepository constructs the repository.
func NewTimeRecordRepository(db *sqlx.DB) *TimeRecordRepository {
	return &TimeRecordRepository{db: db}
}

// PunchesInRange returns punch rows for the scope and inclusive date range.
// Pure read; derivation happens in the service layer.
func (r *TimeRecordRepository) PunchesInRange(ctx context.Context, scope models.EmployeeScope, rng models.DateRange) ([]models.TimeRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM time_records WHERE date >= $1 AND date <= $2`, timeRecordColumns)
	args := []interface{}{models.DateOnly(rng.From), models.DateOnly(rng.To)}
	if !scope.All() {
		query += ` AND employee_id = $3`
		args = append(args, scope.EmployeeID)
	}
	query += ` ORDER BY date, employee_id`

	var rows []models.TimeRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("punches in range: %w", err)
	}
	return rows, nil
}

// FindByID returns one punch row.
func (r *TimeRecordRepository) FindByID(ctx context.Context, id int) (*models.TimeRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM time_records WHERE id = $1 LIMIT 1`, timeRecordColumns)
	var rec models.TimeRecord
	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find time record by id: %w", err)
	}
	return &rec, nil
}

// Upsert inserts or updates the punch row keyed on (employee_id, date) inside
// one transaction. The leave-overlap check runs in the same transaction so a
// concurrent leave approval cannot slip a conflicting row in; on overlap the
// whole write is rejected with ErrLeaveOverlap and nothing is committed.
func (r *TimeRecordRepository) Upsert(ctx context.Context, record *models.TimeRecord) (*models.TimeRecord, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin upsert time record: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	overlap, err := leaveOverlapExists(ctx, tx, record.EmployeeID, record.Date)
	if err != nil {
		return nil, err
	}
	if overlap {
		return nil, ErrLeaveOverlap
	}

	now := time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO time_records (employee_id, date, am_time_in, am_time_out, pm_time_in, pm_time_out, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
ON CONFLICT (employee_id, date)
DO UPDATE SET am_time_in = EXCLUDED.am_time_in, am_time_out = EXCLUDED.am_time_out,
        pm_time_in = EXCLUDED.pm_time_in, pm_time_out = EXCLUDED.pm_time_out, updated_at = EXCLUDED.updated_at
RETURNING %s`, timeRecordColumns)
	var stored models.TimeRecord
	if err := tx.GetContext(ctx, &stored, query,
		record.EmployeeID, models.DateOnly(record.Date),
		record.AMTimeIn, record.AMTimeOut, record.PMTimeIn, record.PMTimeOut, now); err != nil {
		return nil, fmt.Errorf("upsert time record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit upsert time record: %w", err)
	}
	committed = true
	return &stored, nil
}

// UpdateTimes rewrites the four punches of an existing row by id.
func (r *TimeRecordRepository) UpdateTimes(ctx context.Context, id int, amIn, amOut, pmIn, pmOut *string) (*models.TimeRecord, error) {
	query := fmt.Sprintf(`UPDATE time_records
SET am_time_in = $2, am_time_out = $3, pm_time_in = $4, pm_time_out = $5, updated_at = $6
WHERE id = $1
RETURNING %s`, timeRecordColumns)
	var stored models.TimeRecord
	if err := r.db.GetContext(ctx, &stored, query, id, amIn, amOut, pmIn, pmOut, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("update time record: %w", err)
	}
	return &stored, nil
}

// BulkInsert upserts many punch rows in one transaction, keyed on
// (employee_id, date) exactly like single-record writes, so a re-import of
// corrected punches replaces the stored times instead of skipping them. In
// atomic mode the first leave conflict aborts and rolls back everything;
// otherwise conflicting rows are collected and the rest commit.
func (r *TimeRecordRepository) BulkInsert(ctx context.Context, records []models.TimeRecord, atomic bool) ([]models.TimeRecordBulkConflict, error) {
	if len(records) == 0 {
		return nil, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin bulk insert time records: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	query := `INSERT INTO time_records (employee_id, date, am_time_in, am_time_out, pm_time_in, pm_time_out, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
ON CONFLICT (employee_id, date)
DO UPDATE SET am_time_in = EXCLUDED.am_time_in, am_time_out = EXCLUDED.am_time_out,
        pm_time_in = EXCLUDED.pm_time_in, pm_time_out = EXCLUDED.pm_time_out, updated_at = EXCLUDED.updated_at
RETURNING id`
	now := time.Now().UTC()
	conflicts := make([]models.TimeRecordBulkConflict, 0)
	for i := range records {
		rec := &records[i]
		date := models.DateOnly(rec.Date)

		overlap, err := leaveOverlapExists(ctx, tx, rec.EmployeeID, date)
		if err != nil {
			return nil, err
		}
		if overlap {
			if atomic {
				return nil, fmt.Errorf("bulk insert time records: employee %d on %s: %w", rec.EmployeeID, date.Format("2006-01-02"), ErrLeaveOverlap)
			}
			conflicts = append(conflicts, models.TimeRecordBulkConflict{EmployeeID: rec.EmployeeID, Date: date, Reason: "approved leave covers date"})
			continue
		}

		var storedID int
		if err := tx.QueryRowxContext(ctx, query, rec.EmployeeID, date,
			rec.AMTimeIn, rec.AMTimeOut, rec.PMTimeIn, rec.PMTimeOut, now).Scan(&storedID); err != nil {
			return nil, fmt.Errorf("bulk insert time records: %w", err)
		}
		rec.ID = storedID
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bulk insert time records: %w", err)
	}
	committed = true
	return conflicts, nil
}

// Delete removes one punch row. Records are never deleted implicitly.
func (r *TimeRecordRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM time_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete time record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete time record: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func leaveOverlapExists(ctx context.Context, tx *sqlx.Tx, employeeID int, date time.Time) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (
SELECT 1 FROM leaves
WHERE employee_id = $1 AND status = 'APPROVED' AND date_from <= $2 AND date_to >= $2)`
	if err := tx.GetContext(ctx, &exists, query, employeeID, models.DateOnly(date)); err != nil {
		return false, fmt.Errorf("check leave overlap: %w", err)
	}
	return exists, nil
}
