package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndip-rw/data-portal-api/internal/models"
)

func requestRows(id, number string, status models.RequestStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "request_number", "title", "description", "priority",
		"user_id", "status", "recurring", "created_at", "updated_at",
	}).AddRow(id, number, "Land statistics", "quarterly figures", string(models.PriorityNormal),
		"u-1", string(status), false, now, now)
}

func TestRequestCreateInsertsSelections(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO requests").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO request_datasets").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO request_datasets").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	request := &models.Request{
		RequestNumber: "REQ-2026-000001",
		Title:         "Land statistics",
		UserID:        "u-1",
		Status:        models.RequestStatusDraft,
		Priority:      models.PriorityNormal,
		Datasets: []models.RequestDataset{
			{DatasetID: "ds-1", Criteria: models.CriteriaValues{}},
			{DatasetID: "ds-2", Criteria: models.CriteriaValues{}},
		},
	}
	err := repo.Create(context.Background(), request)
	require.NoError(t, err)
	assert.NotEmpty(t, request.ID)
	assert.Equal(t, request.ID, request.Datasets[0].RequestID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestCreateRollsBackOnSelectionFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO requests").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO request_datasets").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	request := &models.Request{
		RequestNumber: "REQ-2026-000002",
		Title:         "Land statistics",
		UserID:        "u-1",
		Status:        models.RequestStatusDraft,
		Datasets:      []models.RequestDataset{{DatasetID: "ds-1"}},
	}
	err := repo.Create(context.Background(), request)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestFindByIDLoadsSelections(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM requests WHERE id = \$1`).
		WithArgs("r-1").
		WillReturnRows(requestRows("r-1", "REQ-2026-000001", models.RequestStatusPending))

	datasetRows := sqlmock.NewRows([]string{"id", "request_id", "dataset_id", "criteria", "created_at"}).
		AddRow("rd-1", "r-1", "ds-1", []byte(`{"period":{"type":"dateRange","from":"2026-01-01T00:00:00Z","to":"2026-03-31T00:00:00Z"}}`), time.Now())
	mock.ExpectQuery(`SELECT (.+) FROM request_datasets WHERE request_id = \$1`).
		WithArgs("r-1").
		WillReturnRows(datasetRows)

	request, err := repo.FindByID(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, request.Status)
	require.Len(t, request.Datasets, 1)
	assert.Equal(t, "ds-1", request.Datasets[0].DatasetID)
	assert.Contains(t, request.Datasets[0].Criteria, "period")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestListFiltersByUserAndStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	status := models.RequestStatusPending
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM requests")).
		WithArgs("u-1", string(status)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT (.+) FROM requests WHERE 1=1 AND user_id = \$1 AND status = \$2`).
		WithArgs("u-1", string(status), 20, 0).
		WillReturnRows(requestRows("r-1", "REQ-2026-000001", status))

	requests, total, err := repo.List(context.Background(), models.RequestFilter{UserID: "u-1", Status: &status})
	require.NoError(t, err)
	assert.Len(t, requests, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestUpdateReplacesSelections(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE requests SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM request_datasets").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO request_datasets").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	request := &models.Request{
		ID:       "r-1",
		Title:    "Updated title",
		Datasets: []models.RequestDataset{{DatasetID: "ds-3"}},
	}
	err := repo.Update(context.Background(), request)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestUpdateStatusMissingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectExec("UPDATE requests SET status").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", models.RequestStatusPending)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM request_datasets").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM requests").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), "r-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
