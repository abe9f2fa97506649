package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hrline/dtr-api/internal/models"
)

const leaveColumns = `id, employee_id, date_from, date_to, leave_type, status`

// LeaveRepository reads approved leave grants. The approval workflow writes
// these rows; this service only ever reads them.
type LeaveRepository struct {
	db *sqlx.DB
}

// NewLeaveRepository constructs the repository.
func NewLeaveRepository(db *sqlx.DB) *LeaveRepository {
	return &LeaveRepository{db: db}
}

// LeavesInRange returns approved grants whose [date_from, date_to] interval
// intersects the requested inclusive range, honoring the employee scope.
func (r *LeaveRepository) LeavesInRange(ctx context.Context, scope models.EmployeeScope, rng models.DateRange) ([]models.LeaveGrant, error) {
	query := fmt.Sprintf(`SELECT %s FROM leaves
WHERE status = 'APPROVED' AND date_from <= $1 AND date_to >= $2`, leaveColumns)
	args := []interface{}{models.DateOnly(rng.To), models.DateOnly(rng.From)}
	if !scope.All() {
		query += ` AND employee_id = $3`
		args = append(args, scope.EmployeeID)
	}
	query += ` ORDER BY id`

	var rows []models.LeaveGrant
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("leaves in range: %w", err)
	}
	return rows, nil
}

// FindByID returns one approved grant.
func (r *LeaveRepository) FindByID(ctx context.Context, id int) (*models.LeaveGrant, error) {
	query := fmt.Sprintf(`SELECT %s FROM leaves WHERE id = $1 LIMIT 1`, leaveColumns)
	var grant models.LeaveGrant
	if err := r.db.GetContext(ctx, &grant, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find leave by id: %w", err)
	}
	return &grant, nil
}
