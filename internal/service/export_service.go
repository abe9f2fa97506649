package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hrline/dtr-api/internal/dto"
	"github.com/hrline/dtr-api/internal/models"
	appErrors "github.com/hrline/dtr-api/pkg/errors"
	"github.com/hrline/dtr-api/pkg/export"
)

type attendanceRowSource interface {
	Rows(ctx context.Context, claims *models.JWTClaims, req dto.ExportRequest) ([]dto.AttendanceRow, error)
}

// ExportFile is a rendered export ready for download.
type ExportFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ExportService renders derived attendance into downloadable CSV or PDF
// documents. Exports reuse the exact same derivation pipeline as the views,
// so a downloaded form can never disagree with the screen.
type ExportService struct {
	rows    attendanceRowSource
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	logger  *zap.Logger
	maxRows int
}

// NewExportService constructs the service.
func NewExportService(rows attendanceRowSource, logger *zap.Logger, maxRows int) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRows <= 0 {
		maxRows = 10000
	}
	return &ExportService{
		rows:    rows,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		logger:  logger,
		maxRows: maxRows,
	}
}

var exportHeaders = []string{
	"Employee", "Date", "AM Arrival", "AM Departure", "PM Arrival", "PM Departure",
	"Status", "Type", "Undertime Hours", "Undertime Minutes",
}

// Render derives the requested range and produces the download in the
// requested format ("csv" or "pdf").
func (s *ExportService) Render(ctx context.Context, claims *models.JWTClaims, req dto.ExportRequest) (*ExportFile, error) {
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format != "csv" && format != "pdf" {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", req.Format))
	}

	rows, err := s.rows.Rows(ctx, claims, req)
	if err != nil {
		return nil, err
	}
	if len(rows) > s.maxRows {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("export exceeds %d rows; narrow the date range", s.maxRows))
	}

	dataset := export.Dataset{Headers: exportHeaders, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		leaveType := ""
		if row.Type != nil {
			leaveType = *row.Type
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Employee":          row.Employee,
			"Date":              row.Date,
			"AM Arrival":        row.AMArrival,
			"AM Departure":      row.AMDeparture,
			"PM Arrival":        row.PMArrival,
			"PM Departure":      row.PMDeparture,
			"Status":            string(row.Status),
			"Type":              leaveType,
			"Undertime Hours":   fmt.Sprintf("%d", row.Undertime.Hours),
			"Undertime Minutes": fmt.Sprintf("%d", row.Undertime.Minutes),
		})
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	switch format {
	case "csv":
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return &ExportFile{
			FileName:    fmt.Sprintf("daily-time-records-%s.csv", stamp),
			ContentType: "text/csv",
			Content:     content,
		}, nil
	default:
		title := fmt.Sprintf("Daily Time Records %s to %s",
			models.DateOnly(req.DateFrom).Format("2006-01-02"),
			models.DateOnly(req.DateTo).Format("2006-01-02"))
		content, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &ExportFile{
			FileName:    fmt.Sprintf("daily-time-records-%s.pdf", stamp),
			ContentType: "application/pdf",
			Content:     content,
		}, nil
	}
}
