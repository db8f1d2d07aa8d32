package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndip-rw/data-portal-api/internal/dto"
	"github.com/ndip-rw/data-portal-api/internal/models"
	appErrors "github.com/ndip-rw/data-portal-api/pkg/errors"
	"github.com/ndip-rw/data-portal-api/pkg/storage"
)

type fakeExportLister struct {
	requests   []models.Request
	lastFilter models.RequestFilter
}

func (f *fakeExportLister) List(_ context.Context, filter models.RequestFilter) ([]models.Request, int, error) {
	f.lastFilter = filter
	return f.requests, len(f.requests), nil
}

func newExportFixture(t *testing.T, enabled bool) (*ExportService, *fakeExportLister, *stubAuditWriter) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", 30*time.Minute)
	lister := &fakeExportLister{requests: []models.Request{
		{RequestNumber: "REQ-2026-000001", Title: "Transfers study", Status: models.RequestStatusApproved, Priority: models.PriorityNormal, CreatedAt: time.Now()},
		{RequestNumber: "REQ-2026-000002", Title: "Mortgage trends", Status: models.RequestStatusPending, Priority: models.PriorityHigh, CreatedAt: time.Now()},
	}}
	audit := &stubAuditWriter{}
	svc := NewExportService(lister, store, signer, audit, nil, ExportConfig{Enabled: enabled})
	return svc, lister, audit
}

func TestExportService_DisabledIsNotFound(t *testing.T) {
	svc, _, _ := newExportFixture(t, false)

	_, err := svc.GenerateRequestRegister(context.Background(), requesterClaims(), dto.ExportRequest{Format: "csv"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportService_RejectsUnknownFormat(t *testing.T) {
	svc, _, _ := newExportFixture(t, true)

	_, err := svc.GenerateRequestRegister(context.Background(), requesterClaims(), dto.ExportRequest{Format: "xlsx"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportService_GeneratesCSVAndServesDownload(t *testing.T) {
	svc, lister, audit := newExportFixture(t, true)

	result, err := svc.GenerateRequestRegister(context.Background(), requesterClaims(), dto.ExportRequest{Format: "csv"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.ExportID)
	assert.NotEmpty(t, result.DownloadToken)
	assert.True(t, result.ExpiresAt.After(time.Now()))

	// Without viewAllRequests the register is scoped to the caller.
	assert.Equal(t, "user-1", lister.lastFilter.UserID)

	file, relPath, err := svc.OpenDownload(result.DownloadToken)
	require.NoError(t, err)
	defer file.Close()
	assert.True(t, strings.HasSuffix(relPath, ".csv"))

	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(content), "REQ-2026-000001")
	assert.Contains(t, string(content), "Request #")

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionExportGenerate, audit.logs[0].Action)
}

func TestExportService_ElevatedCallerExportsAllRequests(t *testing.T) {
	svc, lister, _ := newExportFixture(t, true)

	claims := &models.JWTClaims{UserID: "user-2", Permissions: models.Permissions{CanViewAllRequests: true, CanExportData: true}}
	_, err := svc.GenerateRequestRegister(context.Background(), claims, dto.ExportRequest{Format: "pdf"})
	require.NoError(t, err)
	assert.Empty(t, lister.lastFilter.UserID)
}

func TestExportService_TamperedTokenRefused(t *testing.T) {
	svc, _, _ := newExportFixture(t, true)

	result, err := svc.GenerateRequestRegister(context.Background(), requesterClaims(), dto.ExportRequest{Format: "csv"})
	require.NoError(t, err)

	_, _, err = svc.OpenDownload(result.DownloadToken + "x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
