package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ndip-rw/data-portal-api/internal/dto"
	"github.com/ndip-rw/data-portal-api/internal/models"
	appErrors "github.com/ndip-rw/data-portal-api/pkg/errors"
	"github.com/ndip-rw/data-portal-api/pkg/export"
	"github.com/ndip-rw/data-portal-api/pkg/storage"
)

type exportRequestLister interface {
	List(ctx context.Context, filter models.RequestFilter) ([]models.Request, int, error)
}

// ExportConfig controls export generation.
type ExportConfig struct {
	Enabled bool
}

// ExportService renders the caller-visible request register into CSV or PDF
// artifacts with HMAC-signed download tokens. Generation is synchronous; the
// register is small enough that a job queue would be overhead.
type ExportService struct {
	requests exportRequestLister
	store    *storage.LocalStorage
	signer   *storage.SignedURLSigner
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	audit    auditWriter
	logger   *zap.Logger
	config   ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(requests exportRequestLister, store *storage.LocalStorage, signer *storage.SignedURLSigner, audit auditWriter, logger *zap.Logger, config ExportConfig) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		requests: requests,
		store:    store,
		signer:   signer,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		audit:    audit,
		logger:   logger,
		config:   config,
	}
}

// Enabled reports whether the export feature is switched on.
func (s *ExportService) Enabled() bool {
	return s.config.Enabled
}

// GenerateRequestRegister renders the requests visible to the caller and
// returns a signed download token.
func (s *ExportService) GenerateRequestRegister(ctx context.Context, claims *models.JWTClaims, req dto.ExportRequest) (*dto.ExportResult, error) {
	if !s.config.Enabled {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled")
	}
	if req.Format != "csv" && req.Format != "pdf" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	filter := models.RequestFilter{PageSize: 100}
	if !claims.Permissions.Can(models.ActionViewAllRequests) {
		filter.UserID = claims.UserID
	}
	requests, _, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}

	table := buildRegisterTable(requests)

	var payload []byte
	switch req.Format {
	case "csv":
		payload, err = s.csv.Render(table)
	case "pdf":
		payload, err = s.pdf.Render(table, "Data access request register")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	exportID := uuid.NewString()
	filename := fmt.Sprintf("%s/register-%s.%s", time.Now().UTC().Format("2006-01-02"), exportID, req.Format)
	relPath, err := s.store.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(exportID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
	}

	s.recordAudit(ctx, claims, exportID, req.Format, len(requests))

	return &dto.ExportResult{
		ExportID:      exportID,
		Format:        req.Format,
		DownloadToken: token,
		ExpiresAt:     expiresAt,
	}, nil
}

// OpenDownload validates a download token and opens the referenced artifact.
func (s *ExportService) OpenDownload(token string) (*os.File, string, error) {
	if !s.config.Enabled {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "exports are disabled")
	}
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download token")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export artifact no longer available")
	}
	return file, relPath, nil
}

// CleanupExpired removes artifacts older than the given TTL.
func (s *ExportService) CleanupExpired(ttl time.Duration) {
	deleted, err := s.store.CleanupOlderThan(ttl)
	if err != nil {
		s.logger.Warn("failed to clean up exports", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("cleaned up expired exports", zap.Int("count", len(deleted)))
	}
}

func buildRegisterTable(requests []models.Request) export.Table {
	headers := []string{"Request #", "Title", "Status", "Priority", "Recurring", "Created"}
	rows := make([]map[string]string, 0, len(requests))
	for _, r := range requests {
		rows = append(rows, map[string]string{
			"Request #": r.RequestNumber,
			"Title":     r.Title,
			"Status":    string(r.Status),
			"Priority":  string(r.Priority),
			"Recurring": strconv.FormatBool(r.Recurring),
			"Created":   r.CreatedAt.Format(time.RFC3339),
		})
	}
	return export.Table{Headers: headers, Rows: rows}
}

func (s *ExportService) recordAudit(ctx context.Context, claims *models.JWTClaims, exportID, format string, rowCount int) {
	if s.audit == nil {
		return
	}
	payload := []byte(fmt.Sprintf(`{"format":%q,"rows":%d}`, format, rowCount))
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     models.AuditActionExportGenerate,
		Resource:   "export",
		ResourceID: &exportID,
		NewValues:  payload,
	}); err != nil {
		s.logger.Warn("failed to record export audit log", zap.Error(err))
	}
}
