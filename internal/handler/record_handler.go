package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hrline/dtr-api/internal/dto"
	"github.com/hrline/dtr-api/internal/models"
	appErrors "github.com/hrline/dtr-api/pkg/errors"
	"github.com/hrline/dtr-api/pkg/response"
)

type timeRecordCommandService interface {
	Create(ctx context.Context, req dto.CreateRecordRequest) (*models.TimeRecord, error)
	Update(ctx context.Context, req dto.UpdateRecordRequest) (*models.TimeRecord, error)
	BulkImport(ctx context.Context, req dto.BulkImportRequest) (*dto.BulkImportResult, error)
	Delete(ctx context.Context, id int) error
}

// RecordHandler exposes the time-record write endpoints.
type RecordHandler struct {
	records timeRecordCommandService
}

// NewRecordHandler constructs handler.
func NewRecordHandler(records timeRecordCommandService) *RecordHandler {
	return &RecordHandler{records: records}
}

// Create godoc
// @Summary Create or replace a time record
// @Tags Records
// @Accept json
// @Produce json
// @Param payload body dto.CreateRecordRequest true "Record payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope "Date covered by approved leave"
// @Security BearerAuth
// @Router /attendance/records [post]
func (h *RecordHandler) Create(c *gin.Context) {
	var req dto.CreateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.records.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Update godoc
// @Summary Update the punches of an existing record
// @Tags Records
// @Accept json
// @Produce json
// @Param payload body dto.UpdateRecordRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope "Target is a leave day"
// @Security BearerAuth
// @Router /attendance/records [put]
func (h *RecordHandler) Update(c *gin.Context) {
	var req dto.UpdateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.records.Update(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// BulkImport godoc
// @Summary Import many time records at once
// @Tags Records
// @Accept json
// @Produce json
// @Param payload body dto.BulkImportRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/records/bulk [post]
func (h *RecordHandler) BulkImport(c *gin.Context) {
	var req dto.BulkImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.records.BulkImport(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Delete a time record
// @Tags Records
// @Produce json
// @Param id path int true "Record id"
// @Success 204 "No Content"
// @Security BearerAuth
// @Router /attendance/records/{id} [delete]
func (h *RecordHandler) Delete(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "record id must be an integer"))
		return
	}
	if err := h.records.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
