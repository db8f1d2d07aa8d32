package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ndip-rw/data-portal-api/internal/models"
)

const datasetColumns = `id, name, description, category_id,
	requires_period, requires_upi, requires_upi_list, requires_id_list,
	has_admin_level, has_user_level, has_transaction_type, has_land_use, has_size_range,
	requires_approval, auto_approve_for_roles, allows_recurring,
	deactivated_at, created_at, updated_at`

// DatasetRepository persists the dataset catalog, its categories and the
// administrative-area hierarchy used for cascading criteria options.
type DatasetRepository struct {
	db *sqlx.DB
}

// NewDatasetRepository constructs the repository.
func NewDatasetRepository(db *sqlx.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

// FindByID loads one dataset.
func (r *DatasetRepository) FindByID(ctx context.Context, id string) (*models.Dataset, error) {
	query := fmt.Sprintf(`SELECT %s FROM datasets WHERE id = $1`, datasetColumns)
	var dataset models.Dataset
	if err := r.db.GetContext(ctx, &dataset, query, id); err != nil {
		return nil, err
	}
	return &dataset, nil
}

// List returns catalog entries with a total count for pagination.
func (r *DatasetRepository) List(ctx context.Context, filter models.DatasetFilter) ([]models.Dataset, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if !filter.IncludeInactive {
		conditions = append(conditions, "deactivated_at IS NULL")
	}
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf(`SELECT COUNT(*) FROM datasets WHERE %s`, where), args...); err != nil {
		return nil, 0, fmt.Errorf("count datasets: %w", err)
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
	query := fmt.Sprintf(`SELECT %s FROM datasets WHERE %s ORDER BY name ASC LIMIT $%d OFFSET $%d`,
		datasetColumns, where, len(args)-1, len(args))

	var datasets []models.Dataset
	if err := r.db.SelectContext(ctx, &datasets, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list datasets: %w", err)
	}
	return datasets, total, nil
}

// Create inserts a dataset definition.
func (r *DatasetRepository) Create(ctx context.Context, dataset *models.Dataset) error {
	if dataset.ID == "" {
		dataset.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	dataset.CreatedAt = now
	dataset.UpdatedAt = now
	const query = `INSERT INTO datasets (id, name, description, category_id,
	requires_period, requires_upi, requires_upi_list, requires_id_list,
	has_admin_level, has_user_level, has_transaction_type, has_land_use, has_size_range,
	requires_approval, auto_approve_for_roles, allows_recurring, created_at, updated_at)
VALUES (:id, :name, :description, :category_id,
	:requires_period, :requires_upi, :requires_upi_list, :requires_id_list,
	:has_admin_level, :has_user_level, :has_transaction_type, :has_land_use, :has_size_range,
	:requires_approval, :auto_approve_for_roles, :allows_recurring, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, dataset); err != nil {
		return fmt.Errorf("insert dataset: %w", err)
	}
	return nil
}

// Update rewrites a dataset definition.
func (r *DatasetRepository) Update(ctx context.Context, dataset *models.Dataset) error {
	dataset.UpdatedAt = time.Now().UTC()
	const query = `UPDATE datasets SET name = :name, description = :description, category_id = :category_id,
	requires_period = :requires_period, requires_upi = :requires_upi, requires_upi_list = :requires_upi_list,
	requires_id_list = :requires_id_list, has_admin_level = :has_admin_level, has_user_level = :has_user_level,
	has_transaction_type = :has_transaction_type, has_land_use = :has_land_use, has_size_range = :has_size_range,
	requires_approval = :requires_approval, auto_approve_for_roles = :auto_approve_for_roles,
	allows_recurring = :allows_recurring, updated_at = :updated_at
WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, dataset)
	if err != nil {
		return fmt.Errorf("update dataset: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("dataset %s not found", dataset.ID)
	}
	return nil
}

// Deactivate soft-deletes a dataset; datasets are never removed.
func (r *DatasetRepository) Deactivate(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE datasets SET deactivated_at = $1, updated_at = $1 WHERE id = $2 AND deactivated_at IS NULL`, at, id)
	if err != nil {
		return fmt.Errorf("deactivate dataset: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("dataset %s not found or already inactive", id)
	}
	return nil
}

// ListCategories returns all dataset categories.
func (r *DatasetRepository) ListCategories(ctx context.Context) ([]models.DatasetCategory, error) {
	var categories []models.DatasetCategory
	const query = `SELECT id, name, icon, description, created_at FROM dataset_categories ORDER BY name ASC`
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("list dataset categories: %w", err)
	}
	return categories, nil
}

// ListAdminAreas returns areas at the given level, scoped to the selected
// parents when provided (the cascade).
func (r *DatasetRepository) ListAdminAreas(ctx context.Context, level models.AdminLevel, parentIDs []string) ([]models.AdminArea, error) {
	query := `SELECT id, name, level, parent_id FROM admin_areas WHERE level = $1`
	args := []interface{}{string(level)}
	if len(parentIDs) > 0 {
		args = append(args, pq.Array(parentIDs))
		query += fmt.Sprintf(" AND parent_id = ANY($%d)", len(args))
	}
	query += " ORDER BY name ASC"

	var areas []models.AdminArea
	if err := r.db.SelectContext(ctx, &areas, query, args...); err != nil {
		return nil, fmt.Errorf("list admin areas: %w", err)
	}
	return areas, nil
}
