package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ndip-rw/data-portal-api/internal/models"
)

const requestColumns = `id, request_number, title, description, priority, user_id, status, recurring, created_at, updated_at`

const requestDatasetColumns = `id, request_id, dataset_id, criteria, created_at`

// RequestRepository persists data requests and their dataset selections.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// NextRequestNumber allocates a human-readable request number.
func (r *RequestRepository) NextRequestNumber(ctx context.Context) (string, error) {
	var seq int64
	if err := r.db.GetContext(ctx, &seq, `SELECT nextval('request_number_seq')`); err != nil {
		return "", fmt.Errorf("next request number: %w", err)
	}
	return fmt.Sprintf("REQ-%d-%06d", time.Now().UTC().Year(), seq), nil
}

// Create inserts a request together with its dataset selections in one
// transaction.
func (r *RequestRepository) Create(ctx context.Context, request *models.Request) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	request.CreatedAt = now
	request.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create request: %w", err)
	}
	defer tx.Rollback()

	const insertRequest = `INSERT INTO requests (id, request_number, title, description, priority, user_id, status, recurring, created_at, updated_at)
VALUES (:id, :request_number, :title, :description, :priority, :user_id, :status, :recurring, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertRequest, request); err != nil {
		return fmt.Errorf("insert request: %w", err)
	}

	for i := range request.Datasets {
		if err := insertRequestDataset(ctx, tx, request.ID, &request.Datasets[i], now); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create request: %w", err)
	}
	return nil
}

func insertRequestDataset(ctx context.Context, tx *sqlx.Tx, requestID string, rd *models.RequestDataset, now time.Time) error {
	if rd.ID == "" {
		rd.ID = uuid.NewString()
	}
	rd.RequestID = requestID
	rd.CreatedAt = now
	const query = `INSERT INTO request_datasets (id, request_id, dataset_id, criteria, created_at)
VALUES (:id, :request_id, :dataset_id, :criteria, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, rd); err != nil {
		return fmt.Errorf("insert request dataset: %w", err)
	}
	return nil
}

// FindByID loads a request and its dataset selections.
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*models.Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM requests WHERE id = $1`, requestColumns)
	var request models.Request
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}

	datasetQuery := fmt.Sprintf(`SELECT %s FROM request_datasets WHERE request_id = $1 ORDER BY created_at ASC`,
		requestDatasetColumns)
	if err := r.db.SelectContext(ctx, &request.Datasets, datasetQuery, id); err != nil {
		return nil, fmt.Errorf("load request datasets: %w", err)
	}
	return &request, nil
}

// List returns requests matching the filter, newest first, with a total count.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.Request, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(request_number ILIKE $%d OR title ILIKE $%d)", len(args), len(args)))
	}
	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf(`SELECT COUNT(*) FROM requests WHERE %s`, where), args...); err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	args = append(args, pageSize, (page-1)*pageSize)
	query := fmt.Sprintf(`SELECT %s FROM requests WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		requestColumns, where, len(args)-1, len(args))

	var requests []models.Request
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}
	return requests, total, nil
}

// Update rewrites the mutable request fields and reconciles the dataset
// selections in one transaction.
func (r *RequestRepository) Update(ctx context.Context, request *models.Request) error {
	request.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update request: %w", err)
	}
	defer tx.Rollback()

	const updateRequest = `UPDATE requests SET title = :title, description = :description,
	priority = :priority, recurring = :recurring, updated_at = :updated_at
WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, updateRequest, request); err != nil {
		return fmt.Errorf("update request: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM request_datasets WHERE request_id = $1`, request.ID); err != nil {
		return fmt.Errorf("clear request datasets: %w", err)
	}
	now := time.Now().UTC()
	for i := range request.Datasets {
		request.Datasets[i].ID = ""
		if err := insertRequestDataset(ctx, tx, request.ID, &request.Datasets[i], now); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update request: %w", err)
	}
	return nil
}

// UpdateStatus transitions a request to the given workflow status.
func (r *RequestRepository) UpdateStatus(ctx context.Context, id string, status models.RequestStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE requests SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("request %s not found", id)
	}
	return nil
}

// Delete removes a request and its selections.
func (r *RequestRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete request: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM request_datasets WHERE request_id = $1`, id); err != nil {
		return fmt.Errorf("delete request datasets: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("request %s not found", id)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete request: %w", err)
	}
	return nil
}
