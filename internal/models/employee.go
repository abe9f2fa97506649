package models

import (
	"strings"
	"time"
)

// Employee represents a directory entry. Role/permission storage lives in an
// external system; only the fields needed for attendance rendering are here.
type Employee struct {
	ID        int       `db:"id" json:"id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	ExtName   *string   `db:"ext_name" json:"ext_name,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// FullName renders "<extname> <fname> <lname>" or "<fname> <lname>".
func (e Employee) FullName() string {
	parts := make([]string, 0, 3)
	if e.ExtName != nil && strings.TrimSpace(*e.ExtName) != "" {
		parts = append(parts, strings.TrimSpace(*e.ExtName))
	}
	parts = append(parts, e.FirstName, e.LastName)
	return strings.Join(parts, " ")
}

// EmployeeFilter captures directory listing criteria.
type EmployeeFilter struct {
	Search   string
	Active   *bool
	Page     int
	PageSize int
}
