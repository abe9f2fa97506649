package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrline/dtr-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func timeRecordRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "employee_id", "date", "am_time_in", "am_time_out", "pm_time_in", "pm_time_out", "created_at", "updated_at"})
}

func TestTimeRecordRepositoryPunchesInRange(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimeRecordRepository(db)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM time_records WHERE date >= \$1 AND date <= \$2 ORDER BY date, employee_id`).
		WithArgs(from, to).
		WillReturnRows(timeRecordRows().
			AddRow(1, 1, from, "08:00:00", "12:00:00", "13:00:00", "17:00:00", time.Now(), time.Now()))

	records, err := repo.PunchesInRange(context.Background(), models.EmployeeScope{}, models.DateRange{From: from, To: to})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].EmployeeID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeRecordRepositoryPunchesInRangeScoped(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimeRecordRepository(db)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM time_records WHERE date >= \$1 AND date <= \$2 AND employee_id = \$3`).
		WithArgs(from, to, 7).
		WillReturnRows(timeRecordRows())

	records, err := repo.PunchesInRange(context.Background(), models.EmployeeScope{EmployeeID: 7}, models.DateRange{From: from, To: to})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeRecordRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimeRecordRepository(db)

	date := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	amIn := "08:00:00"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (")).
		WithArgs(5, date).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO time_records").
		WithArgs(5, date, amIn, nil, nil, nil, sqlmock.AnyArg()).
		WillReturnRows(timeRecordRows().
			AddRow(42, 5, date, amIn, nil, nil, nil, time.Now(), time.Now()))
	mock.ExpectCommit()

	stored, err := repo.Upsert(context.Background(), &models.TimeRecord{EmployeeID: 5, Date: date, AMTimeIn: &amIn})
	require.NoError(t, err)
	assert.Equal(t, 42, stored.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeRecordRepositoryUpsertLeaveOverlap(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimeRecordRepository(db)

	date := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (")).
		WithArgs(5, date).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := repo.Upsert(context.Background(), &models.TimeRecord{EmployeeID: 5, Date: date})
	require.ErrorIs(t, err, ErrLeaveOverlap)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeRecordRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimeRecordRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM time_records WHERE id = $1")).
		WithArgs(8).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), 8))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM time_records WHERE id = $1")).
		WithArgs(9).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Delete(context.Background(), 9)
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeRecordRepositoryBulkInsertPartial(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimeRecordRepository(db)

	date := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	amIn := "08:00:00"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (")).
		WithArgs(1, date).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO time_records").
		WithArgs(1, date, amIn, nil, nil, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (")).
		WithArgs(2, date).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectCommit()

	records := []models.TimeRecord{
		{EmployeeID: 1, Date: date, AMTimeIn: &amIn},
		{EmployeeID: 2, Date: date, AMTimeIn: &amIn},
	}
	conflicts, err := repo.BulkInsert(context.Background(), records, false)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, 2, conflicts[0].EmployeeID)
	assert.Equal(t, 10, records[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeRecordRepositoryBulkInsertReplacesExistingRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimeRecordRepository(db)

	date := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	amIn := "09:15:00"

	// A row already exists for (3, date); the upsert rewrites its punches
	// and hands back the existing id rather than reporting a conflict.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (")).
		WithArgs(3, date).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`(?s)INSERT INTO time_records.+DO UPDATE SET`).
		WithArgs(3, date, amIn, nil, nil, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(27))
	mock.ExpectCommit()

	records := []models.TimeRecord{{EmployeeID: 3, Date: date, AMTimeIn: &amIn}}
	conflicts, err := repo.BulkInsert(context.Background(), records, false)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	assert.Equal(t, 27, records[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeRecordRepositoryBulkInsertAtomicAborts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimeRecordRepository(db)

	date := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	amIn := "08:00:00"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (")).
		WithArgs(1, date).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := repo.BulkInsert(context.Background(), []models.TimeRecord{{EmployeeID: 1, Date: date, AMTimeIn: &amIn}}, true)
	require.ErrorIs(t, err, ErrLeaveOverlap)
	assert.NoError(t, mock.ExpectationsWereMet())
}
