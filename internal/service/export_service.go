package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/opportunity-tracker-api/internal/dto"
	"github.com/noah-isme/opportunity-tracker-api/internal/models"
	appErrors "github.com/noah-isme/opportunity-tracker-api/pkg/errors"
	"github.com/noah-isme/opportunity-tracker-api/pkg/export"
)

// ExportFormat enumerates the supported render targets.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
	FormatPDF  ExportFormat = "pdf"
)

// ExportResult is a rendered export ready to stream to the caller.
type ExportResult struct {
	FileName    string
	ContentType string
	Payload     []byte
}

type exportLeadRepository interface {
	List(ctx context.Context, filter models.LeadFilter) ([]models.Lead, int, error)
}

type performanceSource interface {
	Admin(ctx context.Context) (*dto.AdminDashboardResponse, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset, sheetName string) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportService renders filtered lead lists into downloadable files.
type ExportService struct {
	leads       exportLeadRepository
	csv         csvRenderer
	xlsx        xlsxRenderer
	pdf         pdfRenderer
	performance performanceSource
	maxRows     int
	logger      *zap.Logger
	now         func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(leads exportLeadRepository, maxRows int, logger *zap.Logger, csv csvRenderer, xlsx xlsxRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRows <= 0 {
		maxRows = 5000
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		leads:   leads,
		csv:     csv,
		xlsx:    xlsx,
		pdf:     pdf,
		maxRows: maxRows,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetPerformanceSource wires the dashboard aggregates used by the
// user-performance export.
func (s *ExportService) SetPerformanceSource(src performanceSource) {
	s.performance = src
}

var leadExportHeaders = []string{
	"School Name", "Region", "Address", "ZIP", "Contact Person", "Designation",
	"Phone", "Email", "Status", "Stage", "Assigned To", "Locked Until", "Created At",
}

// Leads renders the filtered lead list in the requested format. The
// export is capped at the configured row limit; callers narrow the
// filter when the cap is hit.
func (s *ExportService) Leads(ctx context.Context, filter models.LeadFilter, format ExportFormat, actor *models.JWTClaims) (*ExportResult, error) {
	if actor != nil && actor.Role != models.RoleAdmin {
		filter.AssignedToUserID = actor.UserID
	}
	filter.Page = 1
	filter.PageSize = s.maxRows

	leads, total, err := s.leads.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leads for export")
	}
	if total > s.maxRows {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("export exceeds the %d row limit, narrow the filter", s.maxRows))
	}

	dataset := s.buildLeadDataset(leads)
	return s.render(dataset, format, "leads", "Leads", "Lead Report")
}

// Performance renders the per-distributor funnel counts in the
// requested format. Uses the same aggregates as the admin dashboard.
func (s *ExportService) Performance(ctx context.Context, format ExportFormat) (*ExportResult, error) {
	if s.performance == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "performance export is not configured")
	}
	stats, err := s.performance.Admin(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load performance stats")
	}
	dataset := buildPerformanceDataset(stats.UserPerformance)
	return s.render(dataset, format, "user-performance", "Performance", "User Performance")
}

func (s *ExportService) render(dataset export.Dataset, format ExportFormat, baseName, sheetName, title string) (*ExportResult, error) {
	stamp := s.now().Format("20060102-150405")
	switch format {
	case FormatCSV:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{
			FileName:    baseName + "-" + stamp + ".csv",
			ContentType: "text/csv",
			Payload:     payload,
		}, nil
	case FormatXLSX:
		payload, err := s.xlsx.Render(dataset, sheetName)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render xlsx")
		}
		return &ExportResult{
			FileName:    baseName + "-" + stamp + ".xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Payload:     payload,
		}, nil
	case FormatPDF:
		payload, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{
			FileName:    baseName + "-" + stamp + ".pdf",
			ContentType: "application/pdf",
			Payload:     payload,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}
}

func (s *ExportService) buildLeadDataset(leads []models.Lead) export.Dataset {
	rows := make([]map[string]string, 0, len(leads))
	for _, lead := range leads {
		assignedTo := ""
		if lead.AssignedToName != nil {
			assignedTo = *lead.AssignedToName
		}
		lockedUntil := ""
		if lead.LockedUntil != nil {
			lockedUntil = lead.LockedUntil.Format("2006-01-02")
		}
		rows = append(rows, map[string]string{
			"School Name":    lead.SchoolName,
			"Region":         lead.RegionName,
			"Address":        lead.Address,
			"ZIP":            lead.ZipCode,
			"Contact Person": lead.ContactPerson,
			"Designation":    lead.Designation,
			"Phone":          lead.ContactPhone,
			"Email":          lead.ContactEmail,
			"Status":         string(lead.Status),
			"Stage":          string(lead.Stage),
			"Assigned To":    assignedTo,
			"Locked Until":   lockedUntil,
			"Created At":     lead.CreatedAt.Format("2006-01-02"),
		})
	}
	return export.Dataset{Headers: leadExportHeaders, Rows: rows}
}

var performanceExportHeaders = []string{
	"User", "Generated", "Demos Showed", "Quotations Sent", "Negotiation",
	"Converted", "Cancelled", "Expired",
}

func buildPerformanceDataset(rows []dto.UserPerformance) export.Dataset {
	out := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, map[string]string{
			"User":            row.FullName,
			"Generated":       strconv.Itoa(row.Generated),
			"Demos Showed":    strconv.Itoa(row.DemoShowed),
			"Quotations Sent": strconv.Itoa(row.QuotationSent),
			"Negotiation":     strconv.Itoa(row.Negotiation),
			"Converted":       strconv.Itoa(row.Converted),
			"Cancelled":       strconv.Itoa(row.Cancelled),
			"Expired":         strconv.Itoa(row.Expired),
		})
	}
	return export.Dataset{Headers: performanceExportHeaders, Rows: out}
}

// ParseFormat normalizes a query value into an ExportFormat.
func ParseFormat(raw string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatCSV, "":
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	case FormatPDF:
		return FormatPDF, nil
	}
	return "", fmt.Errorf("unsupported format %s", strconv.Quote(raw))
}
