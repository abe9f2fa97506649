package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hrline/dtr-api/internal/models"
	appErrors "github.com/hrline/dtr-api/pkg/errors"
	"github.com/hrline/dtr-api/pkg/response"
)

type employeeDirectoryService interface {
	List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, *models.Pagination, error)
	Get(ctx context.Context, id int) (*models.Employee, error)
}

// EmployeeHandler exposes the read-only employee directory.
type EmployeeHandler struct {
	employees employeeDirectoryService
}

// NewEmployeeHandler constructs handler.
func NewEmployeeHandler(employees employeeDirectoryService) *EmployeeHandler {
	return &EmployeeHandler{employees: employees}
}

// List godoc
// @Summary List directory entries
// @Tags Employees
// @Produce json
// @Param search query string false "Match against full name"
// @Param active query bool false "Filter by active flag"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /employees [get]
func (h *EmployeeHandler) List(c *gin.Context) {
	filter := models.EmployeeFilter{
		Search:   c.Query("search"),
		Page:     intQueryDefault(c, "page", 1),
		PageSize: intQueryDefault(c, "page_size", 50),
	}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "active must be true or false"))
			return
		}
		filter.Active = &active
	}

	employees, pagination, err := h.employees.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, employees, pagination)
}

// Get godoc
// @Summary Fetch one directory entry
// @Tags Employees
// @Produce json
// @Param id path int true "Employee id"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /employees/{id} [get]
func (h *EmployeeHandler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "employee id must be an integer"))
		return
	}
	employee, err := h.employees.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, employee, nil)
}
