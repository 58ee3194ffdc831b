package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/learnhub-api/internal/models"
	appErrors "github.com/noah-isme/learnhub-api/pkg/errors"
	"github.com/noah-isme/learnhub-api/pkg/export"
)

// Export formats served by ActivityService.Export.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

const (
	unknownActorName = "Unknown"
	unresolvedField  = "N/A"
	// DefaultExportTimeLayout renders times like "3/14/2025, 9:05:00 AM".
	DefaultExportTimeLayout = "1/2/2006, 3:04:05 PM"
)

var activityExportHeaders = []string{"Time", "User Name", "User Email", "Role", "Action", "Details"}

type activityReader interface {
	ListWithActors(ctx context.Context) ([]models.ActivityEntry, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ActivityExportConfig controls export rendering.
type ActivityExportConfig struct {
	Location   *time.Location
	TimeLayout string
}

// ExportFile is a rendered export ready to be streamed.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
	Rows        int
}

// ActivityService serves the audit trail to admins. Records whose actor currently holds the
// admin role are never returned.
type ActivityService struct {
	repo     activityReader
	gate     *Gate
	csv      csvRenderer
	pdf      pdfRenderer
	metrics  *MetricsService
	logger   *zap.Logger
	location *time.Location
	layout   string
}

// NewActivityService constructs the service.
func NewActivityService(repo activityReader, gate *Gate, csv csvRenderer, pdf pdfRenderer, metrics *MetricsService, logger *zap.Logger, cfg ActivityExportConfig) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gate == nil {
		gate = NewGate(nil)
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.TimeLayout == "" {
		cfg.TimeLayout = DefaultExportTimeLayout
	}
	return &ActivityService{
		repo:     repo,
		gate:     gate,
		csv:      csv,
		pdf:      pdf,
		metrics:  metrics,
		logger:   logger,
		location: cfg.Location,
		layout:   cfg.TimeLayout,
	}
}

// List returns the visible audit trail, newest first. Slicing into pages is left to the caller.
func (s *ActivityService) List(ctx context.Context, actor models.Identity) ([]models.ActivityEntry, error) {
	if err := s.gate.Require(actor, CapabilityReadAudit); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListWithActors(ctx)
	if err != nil {
		return nil, storeFailure(err, "failed to load activity logs")
	}
	return visible(entries), nil
}

// Export renders the same visible trail as List into a downloadable file.
func (s *ActivityService) Export(ctx context.Context, actor models.Identity, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}

	entries, err := s.List(ctx, actor)
	if err != nil {
		return nil, err
	}
	dataset := s.dataset(entries)

	file := &ExportFile{Rows: len(entries)}
	switch format {
	case ExportFormatPDF:
		file.Filename = "activity_logs.pdf"
		file.ContentType = "application/pdf"
		file.Payload, err = s.pdf.Render(dataset, "Activity Logs")
	default:
		file.Filename = "activity_logs.csv"
		file.ContentType = "text/csv"
		file.Payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.metrics.RecordExport(format, file.Rows)
	s.logger.Info("activity export generated", zap.String("format", format), zap.Int("rows", file.Rows), zap.String("requested_by", actor.ID))
	return file, nil
}

func (s *ActivityService) dataset(entries []models.ActivityEntry) export.Dataset {
	rows := make([]map[string]string, 0, len(entries))
	for _, entry := range entries {
		name, email, role := unknownActorName, unresolvedField, unresolvedField
		if entry.Actor != nil {
			name, email, role = entry.Actor.Name, entry.Actor.Email, string(entry.Actor.Role)
		}
		rows = append(rows, map[string]string{
			"Time":       entry.CreatedAt.In(s.location).Format(s.layout),
			"User Name":  name,
			"User Email": email,
			"Role":       role,
			"Action":     string(entry.Action),
			"Details":    entry.Details,
		})
	}
	return export.Dataset{Headers: activityExportHeaders, Rows: rows}
}

// visible drops records whose actor is currently an admin. Unresolvable actors stay visible.
func visible(entries []models.ActivityEntry) []models.ActivityEntry {
	out := make([]models.ActivityEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Actor != nil && entry.Actor.Role == models.RoleAdmin {
			continue
		}
		out = append(out, entry)
	}
	return out
}
