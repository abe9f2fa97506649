package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/hrline/dtr-api/internal/models"
)

const employeeColumns = `id, first_name, last_name, ext_name, active, created_at, updated_at`

// EmployeeRepository provides database access to the employee directory.
type EmployeeRepository struct {
	db *sqlx.DB
}

// NewEmployeeRepository constructs the repository.
func NewEmployeeRepository(db *sqlx.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// List returns directory entries with total count.
func (r *EmployeeRepository) List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, int, error) {
	base := `FROM employees WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(first_name || ' ' || last_name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY last_name, first_name LIMIT %d OFFSET %d", employeeColumns, base, size, offset)
	var rows []models.Employee
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list employees: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count employees: %w", err)
	}
	return rows, total, nil
}

// FindByID returns one directory entry.
func (r *EmployeeRepository) FindByID(ctx context.Context, id int) (*models.Employee, error) {
	query := fmt.Sprintf(`SELECT %s FROM employees WHERE id = $1 LIMIT 1`, employeeColumns)
	var emp models.Employee
	if err := r.db.GetContext(ctx, &emp, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find employee by id: %w", err)
	}
	return &emp, nil
}

// FindByFullName resolves a full-name string from the write endpoint. The
// match tolerates the optional extension-name prefix and is case-insensitive;
// sql.ErrNoRows surfaces when nothing matches.
func (r *EmployeeRepository) FindByFullName(ctx context.Context, name string) (*models.Employee, error) {
	query := fmt.Sprintf(`SELECT %s FROM employees
WHERE LOWER(TRIM(COALESCE(ext_name || ' ', '') || first_name || ' ' || last_name)) = $1
   OR LOWER(first_name || ' ' || last_name) = $1
LIMIT 1`, employeeColumns)
	var emp models.Employee
	if err := r.db.GetContext(ctx, &emp, query, strings.ToLower(strings.TrimSpace(name))); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find employee by name: %w", err)
	}
	return &emp, nil
}

// ListByIDs fetches the directory entries for the given ids in one query.
func (r *EmployeeRepository) ListByIDs(ctx context.Context, ids []int) ([]models.Employee, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf(`SELECT %s FROM employees WHERE id IN (?)`, employeeColumns), ids)
	if err != nil {
		return nil, fmt.Errorf("build employee id query: %w", err)
	}
	query = r.db.Rebind(query)
	var rows []models.Employee
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list employees by ids: %w", err)
	}
	return rows, nil
}
